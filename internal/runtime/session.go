package runtime

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apipkg "github.com/drblury/commitlog/internal/runtime/api"
	"github.com/drblury/commitlog/internal/runtime/catalog"
	"github.com/drblury/commitlog/internal/runtime/clock"
	configpkg "github.com/drblury/commitlog/internal/runtime/config"
	errspkg "github.com/drblury/commitlog/internal/runtime/errors"
	eventspkg "github.com/drblury/commitlog/internal/runtime/events"
	"github.com/drblury/commitlog/internal/runtime/jobs"
	loggingpkg "github.com/drblury/commitlog/internal/runtime/logging"
	"github.com/drblury/commitlog/internal/runtime/resultcache"
	"github.com/drblury/commitlog/transport"
)

// SessionDependencies holds optional collaborators. Leave fields nil to use
// what the configuration describes.
type SessionDependencies struct {
	HTTPClient *http.Client
	// Cache replaces the cache selected by Config.CacheDir.
	Cache jobs.Cache
	// Registry receives the job metrics. A fresh registry is used when nil.
	Registry *prometheus.Registry
	// Hooks run after the logging, metrics and event hooks.
	Hooks jobs.Hooks
	Clock clock.Clock
}

// Session wires the API client, job runner, result cache, metrics and event
// publisher for one configuration.
type Session struct {
	Conf   *configpkg.Config
	Logger loggingpkg.ServiceLogger

	client   *apipkg.Client
	runner   *jobs.Runner
	cache    jobs.Cache
	metrics  *jobs.Metrics
	registry *prometheus.Registry

	events    *eventspkg.Publisher
	transport transport.Transport
	closeOnce sync.Once
	closeErr  error
}

// NewSession validates conf and builds a Session. A nil log writes to stderr
// using the configured level and format.
func NewSession(ctx context.Context, conf *configpkg.Config, log loggingpkg.ServiceLogger, deps SessionDependencies) (*Session, error) {
	if err := configpkg.ValidateConfig(conf); err != nil {
		return nil, err
	}
	if log == nil {
		var err error
		log, err = loggingpkg.New(os.Stderr, loggingpkg.Options{Level: conf.LogLevel, Format: conf.LogFormat})
		if err != nil {
			return nil, err
		}
	}
	log.Debug("Creating session", loggingpkg.LogFields{"config": conf.String()})

	s := &Session{Conf: conf, Logger: log, registry: deps.Registry}
	codec := catalog.NewCodec(catalog.Options{MaxSize: conf.MaxMessageSize})

	client, err := newAPIClient(conf, codec, log, deps.HTTPClient)
	if err != nil {
		return nil, err
	}
	s.client = client

	s.cache = deps.Cache
	if s.cache == nil && conf.CacheDir != "" {
		compression, err := resultcache.ParseCompression(conf.CacheCompression)
		if err != nil {
			return nil, err
		}
		disk, err := resultcache.NewDisk(conf.CacheDir, conf.ServerURL, codec, compression)
		if err != nil {
			return nil, fmt.Errorf("open result cache: %w", err)
		}
		s.cache = disk
	}

	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
	}
	s.metrics = jobs.NewMetrics(s.registry, conf.MetricsNamespace)
	if err := s.metrics.Register(); err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	hooks := jobs.LoggingHooks(log).Merge(jobs.MetricsHooks(s.metrics))
	if conf.Events.Enabled() {
		eventOpts := []eventspkg.Option{eventspkg.WithCodec(codec)}
		if deps.Clock != nil {
			eventOpts = append(eventOpts, eventspkg.WithClock(deps.Clock))
		}
		pub, tr, err := eventspkg.Open(ctx, conf.Events, log, eventOpts...)
		if err != nil {
			return nil, err
		}
		s.events, s.transport = pub, tr
		hooks = hooks.Merge(pub.Hooks())
	}
	hooks = hooks.Merge(deps.Hooks)

	opts := []jobs.Option{jobs.WithPollInterval(conf.PollInterval), jobs.WithHooks(hooks)}
	if deps.Clock != nil {
		opts = append(opts, jobs.WithClock(deps.Clock))
	}
	s.runner = jobs.NewRunner(client, s.cache, log, opts...)
	return s, nil
}

func newAPIClient(conf *configpkg.Config, codec catalog.Codec, log loggingpkg.ServiceLogger, hc *http.Client) (*apipkg.Client, error) {
	encoding, err := apipkg.ParseEncoding(conf.Encoding)
	if err != nil {
		return nil, err
	}
	if hc == nil {
		hc = &http.Client{Timeout: conf.HTTPTimeout}
	}
	return apipkg.New(conf.ServerURL,
		apipkg.WithHTTPClient(hc),
		apipkg.WithEncoding(encoding),
		apipkg.WithCodec(codec),
		apipkg.WithLogger(log),
	)
}

// API returns the underlying server client.
func (s *Session) API() *apipkg.Client { return s.client }

// Events returns the event publisher, or nil when events are disabled.
func (s *Session) Events() *eventspkg.Publisher { return s.events }

// ListPackages returns the packages the server can test.
func (s *Session) ListPackages(ctx context.Context) ([]string, error) {
	return s.client.ListPackages(ctx)
}

// ListTests returns the tests of pkg.
func (s *Session) ListTests(ctx context.Context, pkg string) ([]string, error) {
	return s.client.ListTests(ctx, pkg)
}

// Checkout asks the server to write files to its working tree.
func (s *Session) Checkout(ctx context.Context, files catalog.FileSet) error {
	return s.client.Checkout(ctx, catalog.CheckoutRequest{Files: files})
}

// Run runs req to completion, serving it from the result cache when
// possible. Config.JobTimeout bounds the whole run.
func (s *Session) Run(ctx context.Context, req catalog.SubmitRequest, extra ...jobs.Option) (catalog.JobResults, error) {
	ctx, cancel := s.withJobTimeout(ctx)
	defer cancel()
	return s.runner.Run(ctx, req, extra...)
}

// Start runs req on a new goroutine, bypassing the result cache. The job is
// dropped through the returned handle.
func (s *Session) Start(ctx context.Context, req catalog.SubmitRequest, extra ...jobs.Option) *jobs.Handle {
	ctx, cancel := s.withJobTimeout(ctx)
	h := s.runner.NewJob(extra...).Start(ctx, req)
	go func() {
		<-h.Done()
		cancel()
	}()
	return h
}

func (s *Session) withJobTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.Conf.JobTimeout > 0 {
		return context.WithTimeout(ctx, s.Conf.JobTimeout)
	}
	return context.WithCancel(ctx)
}

// Watch streams job events from the configured transport.
func (s *Session) Watch(ctx context.Context) (<-chan eventspkg.Event, error) {
	if s.transport.Subscriber == nil {
		return nil, errspkg.ErrEventsDisabled
	}
	return eventspkg.Watch(ctx, s.transport.Subscriber, s.Conf.Events.Topic, s.Logger)
}

// MetricsHandler serves the session's job metrics in the Prometheus text
// format.
func (s *Session) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}

// Close releases the event transport. It is safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.transport.Close()
	})
	return s.closeErr
}
