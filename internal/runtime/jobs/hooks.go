package jobs

import (
	"context"
	"time"

	"github.com/drblury/commitlog/internal/runtime/catalog"
	"github.com/drblury/commitlog/internal/runtime/logging"
)

// JobContext describes a job to hooks.
type JobContext struct {
	// JobID is empty until the server has accepted the job.
	JobID   string
	Package string
	Tests   int
	State   State
	// Status is the most recent status received, if any.
	Status    catalog.JobStatus
	Polls     int
	StartedAt time.Time
	// Duration is set for terminal hooks.
	Duration time.Duration
	Context  context.Context
}

// Hooks are callbacks for job lifecycle events. Nil hooks are skipped.
// Hooks run on the goroutine driving the job and must not block.
type Hooks struct {
	// OnSubmitted runs once the server returned a job id.
	OnSubmitted func(ctx JobContext)
	// OnProgress runs for every status that reports the job still running.
	OnProgress func(ctx JobContext)
	// OnSucceeded runs when the job completed without error.
	OnSucceeded func(ctx JobContext, results catalog.JobResults)
	// OnFailed runs when the job failed or was abandoned.
	OnFailed func(ctx JobContext, err error)
}

// Merge combines two Hooks. The hooks from other run after those of h.
func (h Hooks) Merge(other Hooks) Hooks {
	return Hooks{
		OnSubmitted: chain(h.OnSubmitted, other.OnSubmitted),
		OnProgress:  chain(h.OnProgress, other.OnProgress),
		OnSucceeded: chain2(h.OnSucceeded, other.OnSucceeded),
		OnFailed:    chain2(h.OnFailed, other.OnFailed),
	}
}

func chain[A any](a, b func(A)) func(A) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(x A) {
		a(x)
		b(x)
	}
}

func chain2[A, B any](a, b func(A, B)) func(A, B) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(x A, y B) {
		a(x, y)
		b(x, y)
	}
}

// LoggingHooks returns hooks that log job lifecycle events.
func LoggingHooks(logger logging.ServiceLogger) Hooks {
	return Hooks{
		OnSubmitted: func(ctx JobContext) {
			logger.Info("Job submitted", logging.LogFields{
				"job_id":  ctx.JobID,
				"package": ctx.Package,
				"tests":   ctx.Tests,
			})
		},
		OnProgress: func(ctx JobContext) {
			logger.Debug("Job running", logging.LogFields{
				"job_id":  ctx.JobID,
				"details": ctx.Status.Details,
				"polls":   ctx.Polls,
			})
		},
		OnSucceeded: func(ctx JobContext, results catalog.JobResults) {
			logger.Info("Job succeeded", logging.LogFields{
				"job_id":      ctx.JobID,
				"snapshots":   len(results.Files),
				"polls":       ctx.Polls,
				"duration_ms": ctx.Duration.Milliseconds(),
			})
		},
		OnFailed: func(ctx JobContext, err error) {
			logger.Error("Job failed", err, logging.LogFields{
				"job_id":      ctx.JobID,
				"state":       ctx.State.String(),
				"polls":       ctx.Polls,
				"duration_ms": ctx.Duration.Milliseconds(),
			})
		},
	}
}

// MetricsHooks returns hooks that record job metrics.
func MetricsHooks(m *Metrics) Hooks {
	return Hooks{
		OnSubmitted: func(ctx JobContext) {
			m.RecordSubmitted(ctx.Package)
		},
		OnSucceeded: func(ctx JobContext, _ catalog.JobResults) {
			m.RecordOutcome(ctx)
		},
		OnFailed: func(ctx JobContext, _ error) {
			m.RecordOutcome(ctx)
		},
	}
}

// ProgressHooks returns hooks that report every progress detail to fn,
// skipping repeats of the same text.
func ProgressHooks(fn func(jobID, details string)) Hooks {
	var last string
	return Hooks{
		OnProgress: func(ctx JobContext) {
			if ctx.Status.Details == last {
				return
			}
			last = ctx.Status.Details
			fn(ctx.JobID, last)
		},
	}
}
