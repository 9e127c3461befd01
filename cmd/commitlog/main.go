// commitlog drives a commitlog server from the command line: list packages
// and tests, run a package's tests to collect per-test file snapshots, check
// a snapshot out, and watch job events.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/drblury/commitlog"
	_ "github.com/drblury/commitlog/transport/transports"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	configPath  string
	server      string
	encoding    string
	cacheDir    string
	logLevel    string
	sort        string
	timeout     time.Duration
	events      string
	topic       string
	metricsAddr string
	jsonOutput  bool
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var opts options
	flagSet := pflag.NewFlagSet("commitlog", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVar(&opts.configPath, "config", "", "TOML configuration file")
	flagSet.StringVar(&opts.server, "server", "", "commitlog server URL (default "+commitlog.DefaultConfig().ServerURL+")")
	flagSet.StringVar(&opts.encoding, "encoding", "", "request body encoding: json or binary")
	flagSet.StringVar(&opts.cacheDir, "cache-dir", "", "directory for cached job results")
	flagSet.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error")
	flagSet.StringVar(&opts.sort, "sort", "HARDCODED", "test order: "+sortNames())
	flagSet.DurationVar(&opts.timeout, "timeout", 0, "abandon jobs that take longer than this")
	flagSet.StringVar(&opts.events, "events", "", "publish job events on this transport")
	flagSet.StringVar(&opts.topic, "topic", "", "topic for job events")
	flagSet.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	flagSet.BoolVar(&opts.jsonOutput, "json", false, "print results as JSON")
	flagSet.Usage = func() { printUsage(stderr, flagSet) }

	if err := flagSet.Parse(args); err != nil {
		return err
	}
	rest := flagSet.Args()
	if len(rest) == 0 {
		printUsage(stderr, flagSet)
		return errors.New("no command given")
	}

	conf, err := loadConfig(flagSet, opts)
	if err != nil {
		return err
	}

	session, err := commitlog.NewSession(ctx, &conf, nil, commitlog.SessionDependencies{
		Hooks: commitlog.ProgressHooks(func(jobID, details string) {
			fmt.Fprintf(stderr, "job %s: %s\n", jobID, details)
		}),
	})
	if err != nil {
		return err
	}
	defer session.Close()

	if opts.metricsAddr != "" {
		shutdown, err := serveMetrics(opts.metricsAddr, session.MetricsHandler())
		if err != nil {
			return err
		}
		defer shutdown()
	}

	cmd, cmdArgs := rest[0], rest[1:]
	switch cmd {
	case "packages":
		return listPackages(ctx, session, stdout)
	case "tests":
		if len(cmdArgs) != 1 {
			return errors.New("usage: commitlog tests <package>")
		}
		return listTests(ctx, session, cmdArgs[0], stdout)
	case "run":
		if len(cmdArgs) == 0 {
			return errors.New("usage: commitlog run <package> [test...]")
		}
		return runJob(ctx, session, opts, cmdArgs[0], cmdArgs[1:], stdout)
	case "checkout":
		if len(cmdArgs) != 2 {
			return errors.New("usage: commitlog checkout <package> <test>")
		}
		return checkout(ctx, session, opts, cmdArgs[0], cmdArgs[1], stdout)
	case "watch":
		return watch(ctx, session, opts, stdout)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// loadConfig reads the config file, then applies the flags that were set.
func loadConfig(flagSet *pflag.FlagSet, opts options) (commitlog.Config, error) {
	conf := commitlog.DefaultConfig()
	if opts.configPath != "" {
		var err error
		if conf, err = commitlog.LoadConfig(opts.configPath); err != nil {
			return commitlog.Config{}, err
		}
	}
	if env := os.Getenv("COMMITLOG_SERVER"); env != "" && !flagSet.Changed("server") {
		conf.ServerURL = env
	}

	overrides := map[string]func(){
		"server":    func() { conf.ServerURL = opts.server },
		"encoding":  func() { conf.Encoding = opts.encoding },
		"cache-dir": func() { conf.CacheDir = opts.cacheDir },
		"log-level": func() { conf.LogLevel = opts.logLevel },
		"timeout":   func() { conf.JobTimeout = opts.timeout },
		"events":    func() { conf.Events.Transport = opts.events },
		"topic":     func() { conf.Events.Topic = opts.topic },
	}
	for name, apply := range overrides {
		if flagSet.Changed(name) {
			apply()
		}
	}
	return conf, conf.Validate()
}

func serveMetrics(addr string, handler http.Handler) (func(), error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() { _ = srv.Serve(listener) }()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

func listPackages(ctx context.Context, session *commitlog.Session, stdout io.Writer) error {
	pkgs, err := session.ListPackages(ctx)
	if err != nil {
		return err
	}
	for _, pkg := range pkgs {
		fmt.Fprintln(stdout, pkg)
	}
	return nil
}

func listTests(ctx context.Context, session *commitlog.Session, pkg string, stdout io.Writer) error {
	tests, err := session.ListTests(ctx, pkg)
	if err != nil {
		return err
	}
	for _, test := range tests {
		fmt.Fprintln(stdout, test)
	}
	return nil
}

// buildRequest runs every test of pkg when tests is empty.
func buildRequest(ctx context.Context, session *commitlog.Session, opts options, pkg string, tests []string) (commitlog.SubmitRequest, error) {
	sort := commitlog.ParseSortSpec(strings.ToUpper(opts.sort))
	if !sort.Recognized() {
		return commitlog.SubmitRequest{}, fmt.Errorf("unknown sort %q, want one of %s", opts.sort, sortNames())
	}
	if len(tests) == 0 {
		var err error
		if tests, err = session.ListTests(ctx, pkg); err != nil {
			return commitlog.SubmitRequest{}, err
		}
	}
	return commitlog.SubmitRequest{Package: pkg, Tests: tests, Sort: sort}, nil
}

func runJob(ctx context.Context, session *commitlog.Session, opts options, pkg string, tests []string, stdout io.Writer) error {
	req, err := buildRequest(ctx, session, opts, pkg, tests)
	if err != nil {
		return err
	}
	results, err := session.Run(ctx, req)
	if err != nil {
		return err
	}

	if opts.jsonOutput {
		out, err := commitlog.NewCodec(commitlog.CodecOptions{}).MarshalJSON(&results)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(stdout, string(out))
		return err
	}

	w := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TEST\tFILES")
	for i, test := range results.Tests {
		fmt.Fprintf(w, "%s\t%d\n", test, len(results.Files[i]))
	}
	return w.Flush()
}

// checkout runs the job (usually served from the cache) and writes the
// snapshot taken after test to the server's working tree.
func checkout(ctx context.Context, session *commitlog.Session, opts options, pkg, test string, stdout io.Writer) error {
	req, err := buildRequest(ctx, session, opts, pkg, nil)
	if err != nil {
		return err
	}
	results, err := session.Run(ctx, req)
	if err != nil {
		return err
	}
	i := slices.Index(results.Tests, test)
	if i < 0 {
		return fmt.Errorf("test %q not in results for %s", test, pkg)
	}
	files := results.Files[i]
	if err := session.Checkout(ctx, files); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "checked out %d files after %s\n", len(files), test)
	return nil
}

func watch(ctx context.Context, session *commitlog.Session, opts options, stdout io.Writer) error {
	evs, err := session.Watch(ctx)
	if err != nil {
		return err
	}
	codec := commitlog.NewCodec(commitlog.CodecOptions{})
	for ev := range evs {
		if opts.jsonOutput {
			out, err := commitlog.EncodeEvent(ev)
			if err != nil {
				return err
			}
			fmt.Fprintln(stdout, string(out))
			continue
		}
		status, err := ev.Status(codec)
		if err != nil {
			return err
		}
		line := fmt.Sprintf("%s %s %s", ev.Time.Format(time.RFC3339), ev.Type, ev.JobID())
		switch {
		case ev.Error != "":
			line += " error=" + ev.Error
		case status.Details != "":
			line += " " + status.Details
		}
		fmt.Fprintln(stdout, line)
	}
	return nil
}

func sortNames() string {
	names := make([]string, 0, 4)
	for _, s := range commitlog.SortSpecs() {
		names = append(names, s.String())
	}
	return strings.Join(names, ", ")
}

func printUsage(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintf(w, `Usage: commitlog [flags] <command> [args]

Commands:
  packages                    list packages known to the server
  tests <package>             list the tests of a package
  run <package> [test...]     run tests and report per-test snapshots
  checkout <package> <test>   write the snapshot taken after test
  watch                       print job events from the event transport

Flags:
%s`, flagSet.FlagUsages())
}
