// Package jobs drives a server-side analysis job from submission to a
// terminal state: submit once, then poll the status at a fixed interval until
// the server reports completion or failure.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/drblury/commitlog/internal/runtime/catalog"
	"github.com/drblury/commitlog/internal/runtime/clock"
	errspkg "github.com/drblury/commitlog/internal/runtime/errors"
	"github.com/drblury/commitlog/internal/runtime/logging"
)

// DefaultPollInterval is the delay between status queries of a running job.
const DefaultPollInterval = 300 * time.Millisecond

const tracerName = "github.com/drblury/commitlog/jobs"

// API is the server surface a job needs.
type API interface {
	Submit(ctx context.Context, req catalog.SubmitRequest) (catalog.SubmitResponse, error)
	Status(ctx context.Context, id string) (catalog.JobStatus, error)
}

// JobFailedError carries the error text the server reported for a job.
type JobFailedError struct {
	JobID   string
	Message string
}

func (e *JobFailedError) Error() string {
	return fmt.Sprintf("commitlog: job %s failed: %s", e.JobID, e.Message)
}

func (e *JobFailedError) Unwrap() error { return errspkg.ErrJobFailed }

// Option configures a Job.
type Option func(*Job)

// WithPollInterval overrides DefaultPollInterval. Non-positive values are
// ignored.
func WithPollInterval(d time.Duration) Option {
	return func(j *Job) {
		if d > 0 {
			j.interval = d
		}
	}
}

// WithClock replaces the real clock, mainly for tests.
func WithClock(c clock.Clock) Option {
	return func(j *Job) {
		if c != nil {
			j.clock = c
		}
	}
}

// WithHooks adds lifecycle hooks. Repeated calls are merged in order.
func WithHooks(h Hooks) Option {
	return func(j *Job) { j.hooks = j.hooks.Merge(h) }
}

// WithLogger sets the logger used for per-poll debug output.
func WithLogger(l logging.ServiceLogger) Option {
	return func(j *Job) {
		if l != nil {
			j.logger = l
		}
	}
}

// Job is a single run of the lifecycle state machine. A Job is used once;
// submitting again needs a new Job.
type Job struct {
	api      API
	clock    clock.Clock
	interval time.Duration
	hooks    Hooks
	logger   logging.ServiceLogger
	tracer   trace.Tracer

	mu      sync.Mutex
	started bool
	state   State
	id      string
	status  catalog.JobStatus
	polls   int
	err     error
}

// New returns an idle job bound to api.
func New(api API, opts ...Option) *Job {
	if api == nil {
		panic("commitlog: job API cannot be nil")
	}
	j := &Job{
		api:      api,
		clock:    clock.Real(),
		interval: DefaultPollInterval,
		logger:   logging.Discard(),
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// State returns the current lifecycle state.
func (j *Job) State() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// ID returns the server job id, empty before submission succeeded.
func (j *Job) ID() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.id
}

// LastStatus returns the most recent status received from the server.
func (j *Job) LastStatus() catalog.JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// Polls returns the number of status queries issued so far.
func (j *Job) Polls() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.polls
}

// Err returns the terminal error, nil unless the job failed or was abandoned.
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// Run submits req and polls until the job is terminal. Cancelling ctx
// abandons the job: the current request sees the cancelled context and no
// further status query is issued.
func (j *Job) Run(ctx context.Context, req catalog.SubmitRequest) (catalog.JobResults, error) {
	j.mu.Lock()
	if j.started {
		j.mu.Unlock()
		return catalog.JobResults{}, fmt.Errorf("%w: job already started", errspkg.ErrInvalidTransition)
	}
	j.started = true
	j.mu.Unlock()

	ctx, span := j.tracer.Start(ctx, "commitlog.job", trace.WithAttributes(
		attribute.String("job.package", req.Package),
		attribute.Int("job.tests", len(req.Tests)),
	))
	defer span.End()

	jc := JobContext{
		Package:   req.Package,
		Tests:     len(req.Tests),
		StartedAt: j.clock.Now(),
		Context:   ctx,
	}
	results, err := j.run(ctx, req, &jc)

	span.SetAttributes(
		attribute.String("job.id", jc.JobID),
		attribute.String("job.state", jc.State.String()),
		attribute.Int("job.polls", jc.Polls),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return results, err
}

func (j *Job) run(ctx context.Context, req catalog.SubmitRequest, jc *JobContext) (catalog.JobResults, error) {
	if ctx.Err() != nil {
		return j.abandon(ctx, jc)
	}

	id, err := j.submit(ctx, req)
	if ctx.Err() != nil {
		return j.abandon(ctx, jc)
	}
	if err != nil {
		return j.finish(jc, StateFailed, catalog.JobResults{}, err)
	}

	j.mu.Lock()
	j.id = id
	j.mu.Unlock()
	jc.JobID = id
	j.moveTo(jc, StateSubmitted)
	if j.hooks.OnSubmitted != nil {
		j.hooks.OnSubmitted(*jc)
	}
	j.moveTo(jc, StatePolling)

	logger := j.logger.With(logging.LogFields{"job_id": id})
	for {
		if ctx.Err() != nil {
			return j.abandon(ctx, jc)
		}
		status, err := j.poll(ctx, id, jc)
		if ctx.Err() != nil {
			return j.abandon(ctx, jc)
		}
		if err != nil {
			return j.finish(jc, StateFailed, catalog.JobResults{},
				fmt.Errorf("%w: job %s: %w", errspkg.ErrStatusQueryFailed, id, err))
		}

		switch {
		case status.Error != "":
			return j.finish(jc, StateFailed, catalog.JobResults{}, &JobFailedError{JobID: id, Message: status.Error})
		case status.Complete:
			results := catalog.JobResults{}
			if status.Results != nil {
				results = *status.Results
			}
			if err := results.Validate(); err != nil {
				return j.finish(jc, StateFailed, catalog.JobResults{}, fmt.Errorf("job %s: %w", id, err))
			}
			return j.finish(jc, StateSucceeded, results, nil)
		}

		logger.Debug("Job still running", logging.LogFields{"details": status.Details, "polls": jc.Polls})
		if j.hooks.OnProgress != nil {
			j.hooks.OnProgress(*jc)
		}

		select {
		case <-ctx.Done():
			return j.abandon(ctx, jc)
		case <-j.clock.After(j.interval):
		}
	}
}

func (j *Job) submit(ctx context.Context, req catalog.SubmitRequest) (string, error) {
	ctx, span := j.tracer.Start(ctx, "commitlog.job.submit")
	defer span.End()

	resp, err := j.api.Submit(ctx, req)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("%w: %w", errspkg.ErrJobSubmissionFailed, err)
	}
	if resp.ID == "" {
		return "", fmt.Errorf("%w: server returned no job id", errspkg.ErrJobSubmissionFailed)
	}
	span.SetAttributes(attribute.String("job.id", resp.ID))
	return resp.ID, nil
}

func (j *Job) poll(ctx context.Context, id string, jc *JobContext) (catalog.JobStatus, error) {
	ctx, span := j.tracer.Start(ctx, "commitlog.job.poll", trace.WithAttributes(
		attribute.String("job.id", id),
		attribute.Int("job.poll", jc.Polls+1),
	))
	defer span.End()

	status, err := j.api.Status(ctx, id)

	j.mu.Lock()
	j.polls++
	if err == nil {
		j.status = status
	}
	j.mu.Unlock()
	jc.Polls++

	if err != nil {
		span.RecordError(err)
		return catalog.JobStatus{}, err
	}
	jc.Status = status
	span.SetAttributes(attribute.Bool("job.complete", status.Complete))
	return status, nil
}

func (j *Job) abandon(ctx context.Context, jc *JobContext) (catalog.JobResults, error) {
	return j.finish(jc, StateAbandoned, catalog.JobResults{},
		fmt.Errorf("%w: %w", errspkg.ErrJobAbandoned, context.Cause(ctx)))
}

// moveTo applies a non-terminal transition.
func (j *Job) moveTo(jc *JobContext, to State) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !isAllowedTransition(j.state, to) {
		panic(fmt.Sprintf("commitlog: job transition %s -> %s", j.state, to))
	}
	j.state = to
	jc.State = to
}

func (j *Job) finish(jc *JobContext, to State, results catalog.JobResults, err error) (catalog.JobResults, error) {
	j.mu.Lock()
	if !isAllowedTransition(j.state, to) {
		j.mu.Unlock()
		panic(fmt.Sprintf("commitlog: job transition %s -> %s", j.state, to))
	}
	j.state = to
	j.err = err
	j.mu.Unlock()

	jc.State = to
	jc.Duration = j.clock.Now().Sub(jc.StartedAt)
	if err != nil {
		if j.hooks.OnFailed != nil {
			j.hooks.OnFailed(*jc, err)
		}
		return catalog.JobResults{}, err
	}
	if j.hooks.OnSucceeded != nil {
		j.hooks.OnSucceeded(*jc, results)
	}
	return results, nil
}

// Handle controls a job started with Start.
type Handle struct {
	job     *Job
	cancel  context.CancelFunc
	done    chan struct{}
	results catalog.JobResults
	err     error
}

// Start runs the job on a new goroutine. Dropping the job is done through
// Handle.Cancel.
func (j *Job) Start(ctx context.Context, req catalog.SubmitRequest) *Handle {
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{job: j, cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(h.done)
		defer cancel()
		h.results, h.err = j.Run(ctx, req)
	}()
	return h
}

// Cancel abandons the job. No poll is scheduled after Cancel; a request
// already in flight sees a cancelled context.
func (h *Handle) Cancel() { h.cancel() }

// Done is closed once the job is terminal.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the job is terminal and returns its outcome.
func (h *Handle) Wait() (catalog.JobResults, error) {
	<-h.done
	return h.results, h.err
}

// Job returns the job driven by h.
func (h *Handle) Job() *Job { return h.job }
