package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/commitlog"
)

type fakeServer struct {
	polls    atomic.Int32
	submit   atomic.Value
	checkout atomic.Value
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/listPackages":
		_, _ = io.WriteString(w, `["example.com/a"]`)
	case "/listTests":
		_, _ = io.WriteString(w, `["TestOne","TestTwo"]`)
	case "/listFiles":
		body, _ := io.ReadAll(r.Body)
		f.submit.Store(string(body))
		_, _ = io.WriteString(w, `{"id":"job-7"}`)
	case "/job/job-7":
		if f.polls.Add(1) == 1 {
			_, _ = io.WriteString(w, `{"details":"running TestOne"}`)
			return
		}
		_, _ = io.WriteString(w, `{"complete":true,"results":{"tests":["TestOne","TestTwo"],`+
			`"files":[{"files":{"a.go":"cGFja2FnZSBh"}},{"files":{"a.go":"cGFja2FnZSBh","b.go":"cGFja2FnZSBi"}}]}}`)
	case "/checkout":
		body, _ := io.ReadAll(r.Body)
		f.checkout.Store(string(body))
	default:
		http.NotFound(w, r)
	}
}

// runCLI runs the command against a fake server with a fast poll interval.
func runCLI(t *testing.T, args ...string) (string, string, *fakeServer, error) {
	t.Helper()
	fake := &fakeServer{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	confPath := filepath.Join(t.TempDir(), "commitlog.toml")
	require.NoError(t, os.WriteFile(confPath, []byte("poll_interval = \"1ms\"\n[log]\nlevel = \"error\"\n"), 0o600))

	var stdout, stderr bytes.Buffer
	full := append([]string{"--config", confPath, "--server", srv.URL}, args...)
	err := run(context.Background(), full, &stdout, &stderr)
	return stdout.String(), stderr.String(), fake, err
}

func TestPackagesAndTests(t *testing.T) {
	out, _, _, err := runCLI(t, "packages")
	require.NoError(t, err)
	assert.Equal(t, "example.com/a\n", out)

	out, _, _, err = runCLI(t, "tests", "example.com/a")
	require.NoError(t, err)
	assert.Equal(t, "TestOne\nTestTwo\n", out)
}

func TestRunListsTestsWhenNoneGiven(t *testing.T) {
	out, errOut, fake, err := runCLI(t, "--sort", "net", "run", "example.com/a")
	require.NoError(t, err)

	assert.JSONEq(t, `{"tests":["TestOne","TestTwo"],"pkg":"example.com/a","sort":"NET"}`, fake.submit.Load().(string))
	assert.Contains(t, errOut, "job job-7: running TestOne")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, []string{"TEST", "FILES"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"TestTwo", "2"}, strings.Fields(lines[2]))
}

func TestRunJSONOutput(t *testing.T) {
	out, _, _, err := runCLI(t, "--json", "run", "example.com/a", "TestOne", "TestTwo")
	require.NoError(t, err)

	var results commitlog.JobResults
	require.NoError(t, commitlog.NewCodec(commitlog.CodecOptions{}).UnmarshalJSON([]byte(out), &results))
	assert.Equal(t, []string{"TestOne", "TestTwo"}, results.Tests)
	assert.Equal(t, []byte("package b"), results.Files[1]["b.go"])
}

func TestCheckout(t *testing.T) {
	out, _, fake, err := runCLI(t, "checkout", "example.com/a", "TestOne")
	require.NoError(t, err)
	assert.Equal(t, "checked out 1 files after TestOne\n", out)
	assert.Equal(t, `{"files":{"files":{"a.go":"cGFja2FnZSBh"}}}`, fake.checkout.Load())

	_, _, _, err = runCLI(t, "checkout", "example.com/a", "TestMissing")
	assert.ErrorContains(t, err, `test "TestMissing" not in results`)
}

func TestCommandErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no command", nil, "no command given"},
		{"unknown command", []string{"frobnicate"}, `unknown command "frobnicate"`},
		{"tests without package", []string{"tests"}, "usage: commitlog tests"},
		{"run without package", []string{"run"}, "usage: commitlog run"},
		{"checkout without test", []string{"checkout", "example.com/a"}, "usage: commitlog checkout"},
		{"bad sort", []string{"--sort", "shuffle", "run", "example.com/a"}, `unknown sort "shuffle"`},
		{"bad encoding", []string{"--encoding", "xml", "packages"}, "unknown encoding"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, _, err := runCLI(t, tt.args...)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestWatchRequiresEvents(t *testing.T) {
	_, _, _, err := runCLI(t, "watch")
	assert.ErrorIs(t, err, commitlog.ErrEventsDisabled)
}

func TestHelp(t *testing.T) {
	var stderr bytes.Buffer
	err := run(context.Background(), []string{"--help"}, io.Discard, &stderr)
	assert.ErrorIs(t, err, pflag.ErrHelp)
	assert.Contains(t, stderr.String(), "checkout <package> <test>")
}
