package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/commitlog/internal/runtime/catalog"
	"github.com/drblury/commitlog/internal/runtime/clock"
	errspkg "github.com/drblury/commitlog/internal/runtime/errors"
	"github.com/drblury/commitlog/internal/runtime/logging"
)

func TestStateTransitions(t *testing.T) {
	allowed := map[State][]State{
		StateIdle:      {StateSubmitted, StateFailed, StateAbandoned},
		StateSubmitted: {StatePolling, StateAbandoned},
		StatePolling:   {StateSucceeded, StateFailed, StateAbandoned},
	}
	all := []State{StateIdle, StateSubmitted, StatePolling, StateSucceeded, StateFailed, StateAbandoned}

	for _, from := range all {
		for _, to := range all {
			want := false
			for _, ok := range allowed[from] {
				if ok == to {
					want = true
				}
			}
			assert.Equal(t, want, isAllowedTransition(from, to), "%s -> %s", from, to)
		}
		assert.Equal(t, len(allowed[from]) == 0, from.IsTerminal(), from.String())
	}
	assert.Equal(t, "unknown", State(42).String())
}

func TestHooksMergeOrder(t *testing.T) {
	var calls []string
	first := Hooks{
		OnSubmitted: func(JobContext) { calls = append(calls, "first-submitted") },
		OnFailed:    func(JobContext, error) { calls = append(calls, "first-failed") },
	}
	second := Hooks{
		OnSubmitted: func(JobContext) { calls = append(calls, "second-submitted") },
		OnSucceeded: func(JobContext, catalog.JobResults) { calls = append(calls, "second-succeeded") },
	}

	merged := first.Merge(second)
	merged.OnSubmitted(JobContext{})
	merged.OnFailed(JobContext{}, errors.New("x"))
	merged.OnSucceeded(JobContext{}, catalog.JobResults{})
	assert.Nil(t, merged.OnProgress)

	assert.Equal(t, []string{"first-submitted", "second-submitted", "first-failed", "second-succeeded"}, calls)
}

type recordedLog struct {
	level string
	msg   string
	err   error
}

type recordingLogger struct {
	entries *[]recordedLog
}

func newRecordingLogger() recordingLogger {
	return recordingLogger{entries: &[]recordedLog{}}
}

func (r recordingLogger) With(logging.LogFields) logging.ServiceLogger { return r }
func (r recordingLogger) Debug(msg string, _ logging.LogFields) {
	*r.entries = append(*r.entries, recordedLog{level: "debug", msg: msg})
}
func (r recordingLogger) Info(msg string, _ logging.LogFields) {
	*r.entries = append(*r.entries, recordedLog{level: "info", msg: msg})
}
func (r recordingLogger) Error(msg string, err error, _ logging.LogFields) {
	*r.entries = append(*r.entries, recordedLog{level: "error", msg: msg, err: err})
}
func (r recordingLogger) Trace(msg string, _ logging.LogFields) {
	*r.entries = append(*r.entries, recordedLog{level: "trace", msg: msg})
}

func TestLoggingHooks(t *testing.T) {
	logger := newRecordingLogger()
	hooks := LoggingHooks(logger)

	boom := errors.New("boom")
	hooks.OnSubmitted(JobContext{JobID: "j"})
	hooks.OnProgress(JobContext{JobID: "j"})
	hooks.OnSucceeded(JobContext{JobID: "j"}, catalog.JobResults{})
	hooks.OnFailed(JobContext{JobID: "j", State: StateFailed}, boom)

	require.Len(t, *logger.entries, 4)
	assert.Equal(t, "Job submitted", (*logger.entries)[0].msg)
	assert.Equal(t, "debug", (*logger.entries)[1].level)
	assert.Equal(t, "Job succeeded", (*logger.entries)[2].msg)
	assert.Equal(t, boom, (*logger.entries)[3].err)
}

func metricValue(t *testing.T, m prometheus.Metric) *dto.Metric {
	t.Helper()
	var out dto.Metric
	require.NoError(t, m.Write(&out))
	return &out
}

func TestMetricsHooksRecordOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg, "test")
	require.NoError(t, m.Register())
	require.NoError(t, m.Register())
	require.NoError(t, NewMetrics(reg, "test").Register())

	api := &scriptedAPI{
		submitResp: catalog.SubmitResponse{ID: "job-m"},
		replies:    []statusReply{{status: catalog.JobStatus{Complete: true}}},
	}
	job := New(api, WithClock(clock.Fake(epoch)), WithHooks(MetricsHooks(m)))
	_, err := job.Run(context.Background(), catalog.SubmitRequest{Package: "p"})
	require.NoError(t, err)

	failing := New(&scriptedAPI{}, WithHooks(MetricsHooks(m)))
	_, err = failing.Run(context.Background(), catalog.SubmitRequest{Package: "p"})
	require.ErrorIs(t, err, errspkg.ErrJobSubmissionFailed)

	assert.Equal(t, 1.0, metricValue(t, m.submittedTotal.WithLabelValues("p")).GetCounter().GetValue())
	assert.Equal(t, 1.0, metricValue(t, m.finishedTotal.WithLabelValues("succeeded")).GetCounter().GetValue())
	assert.Equal(t, 1.0, metricValue(t, m.finishedTotal.WithLabelValues("failed")).GetCounter().GetValue())
	assert.Equal(t, 0.0, metricValue(t, m.inFlight).GetGauge().GetValue())

	polls := m.pollsPerJob.WithLabelValues("succeeded").(prometheus.Metric)
	hist := metricValue(t, polls).GetHistogram()
	assert.Equal(t, uint64(1), hist.GetSampleCount())
	assert.Equal(t, 1.0, hist.GetSampleSum())

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "test_jobs_submitted_total")
	assert.Contains(t, names, "test_jobs_duration_seconds")
}

type memoryCache struct {
	stored map[string]catalog.JobResults
	getErr error
	puts   int
}

func (c *memoryCache) Get(_ context.Context, req catalog.SubmitRequest) (catalog.JobResults, error) {
	if c.getErr != nil {
		return catalog.JobResults{}, c.getErr
	}
	r, ok := c.stored[req.Package]
	if !ok {
		return catalog.JobResults{}, errspkg.ErrCacheMiss
	}
	return r, nil
}

func (c *memoryCache) Put(_ context.Context, req catalog.SubmitRequest, results catalog.JobResults) error {
	c.puts++
	c.stored[req.Package] = results
	return nil
}

func TestRunnerUsesCache(t *testing.T) {
	results := catalog.JobResults{Tests: []string{"TestA"}, Files: []catalog.FileSet{{"a.go": []byte("a")}}}
	api := &scriptedAPI{
		submitResp: catalog.SubmitResponse{ID: "job-r"},
		replies:    []statusReply{{status: catalog.JobStatus{Complete: true, Results: &results}}},
	}
	cache := &memoryCache{stored: map[string]catalog.JobResults{}}
	runner := NewRunner(api, cache, nil, WithClock(clock.Fake(epoch)))

	first, err := runner.Run(context.Background(), catalog.SubmitRequest{Package: "p"})
	require.NoError(t, err)
	assert.True(t, results.Equal(first))
	assert.Equal(t, 1, cache.puts)

	second, err := runner.Run(context.Background(), catalog.SubmitRequest{Package: "p"})
	require.NoError(t, err)
	assert.True(t, results.Equal(second))
	assert.Equal(t, 1, api.submits)
}

func TestRunnerIgnoresBrokenCache(t *testing.T) {
	api := &scriptedAPI{
		submitResp: catalog.SubmitResponse{ID: "job-r2"},
		replies:    []statusReply{{status: catalog.JobStatus{Complete: true}}},
	}
	logger := newRecordingLogger()
	cache := &memoryCache{stored: map[string]catalog.JobResults{}, getErr: errors.New("disk full")}
	runner := NewRunner(api, cache, logger, WithPollInterval(time.Millisecond))

	_, err := runner.Run(context.Background(), catalog.SubmitRequest{Package: "p"})
	require.NoError(t, err)
	assert.Equal(t, 1, api.submits)
	require.NotEmpty(t, *logger.entries)
	assert.Equal(t, "Result cache lookup failed", (*logger.entries)[0].msg)
}

func TestRunnerDoesNotCacheFailures(t *testing.T) {
	api := &scriptedAPI{
		submitResp: catalog.SubmitResponse{ID: "job-r3"},
		replies:    []statusReply{{status: catalog.JobStatus{Complete: true, Error: "no tests"}}},
	}
	cache := &memoryCache{stored: map[string]catalog.JobResults{}}
	runner := NewRunner(api, cache, nil)

	_, err := runner.Run(context.Background(), catalog.SubmitRequest{Package: "p"})
	assert.ErrorIs(t, err, errspkg.ErrJobFailed)
	assert.Equal(t, 0, cache.puts)
}
