package jobs

import (
	"context"
	"errors"

	"github.com/drblury/commitlog/internal/runtime/catalog"
	errspkg "github.com/drblury/commitlog/internal/runtime/errors"
	"github.com/drblury/commitlog/internal/runtime/logging"
)

// Cache stores the results of successful jobs keyed by the request that
// produced them. Get returns ErrCacheMiss when nothing is stored.
type Cache interface {
	Get(ctx context.Context, req catalog.SubmitRequest) (catalog.JobResults, error)
	Put(ctx context.Context, req catalog.SubmitRequest, results catalog.JobResults) error
}

// Runner creates a fresh Job for every request and consults an optional
// result cache first.
type Runner struct {
	api    API
	cache  Cache
	logger logging.ServiceLogger
	opts   []Option
}

// NewRunner returns a Runner. cache and logger may be nil.
func NewRunner(api API, cache Cache, logger logging.ServiceLogger, opts ...Option) *Runner {
	if api == nil {
		panic("commitlog: job API cannot be nil")
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Runner{api: api, cache: cache, logger: logger, opts: opts}
}

// NewJob returns an idle job configured like the runner's jobs.
func (r *Runner) NewJob(extra ...Option) *Job {
	opts := append(append([]Option{WithLogger(r.logger)}, r.opts...), extra...)
	return New(r.api, opts...)
}

// Run returns cached results for req when present, and otherwise runs a new
// job and caches its results on success. Cache failures are logged and never
// fail the run.
func (r *Runner) Run(ctx context.Context, req catalog.SubmitRequest, extra ...Option) (catalog.JobResults, error) {
	fields := logging.LogFields{"package": req.Package, "tests": len(req.Tests), "sort": req.Sort.String()}

	if r.cache != nil {
		results, err := r.cache.Get(ctx, req)
		switch {
		case err == nil:
			r.logger.Debug("Using cached job results", fields)
			return results, nil
		case !errors.Is(err, errspkg.ErrCacheMiss):
			r.logger.Error("Result cache lookup failed", err, fields)
		}
	}

	results, err := r.NewJob(extra...).Run(ctx, req)
	if err != nil {
		return catalog.JobResults{}, err
	}

	if r.cache != nil {
		if err := r.cache.Put(ctx, req, results); err != nil {
			r.logger.Error("Result cache store failed", err, fields)
		}
	}
	return results, nil
}
