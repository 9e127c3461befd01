/*
Package runtime assembles the commitlog client from its parts.

# Architecture Overview

A Session owns everything one process needs to talk to a commitlog server.
That is the HTTP API client, the result cache, the job runner with its hooks,
Prometheus metrics and, when configured, a job event publisher on one of the
registered transports.

# Package Structure

## Session (session.go)

NewSession validates the configuration and wires these together:
  - API client (api/) speaking JSON or binary bodies
  - Result cache (resultcache/), in memory or on disk
  - Job runner (jobs/) with logging, metrics and event hooks
  - Event publisher (events/) over a watermill transport
  - Prometheus registry exposed through MetricsHandler

# Sub-packages

  - api/: HTTP client for the server endpoints
  - bytetext/: byte string to text form codec
  - catalog/: message types with their wire and text schemas
  - clock/: time source the poll loop sleeps on
  - config/: client configuration, TOML loading and validation
  - errors/: sentinel errors and error types
  - events/: job lifecycle events in a CloudEvents envelope
  - ids/: ULID generation for event IDs
  - jobs/: job state machine, runner, hooks and metrics
  - jsoncodec/: JSON marshaling utilities
  - logging/: logger interface and adapters
  - metadata/: event message metadata
  - resultcache/: cached job results keyed by request
  - wire/: tag-length-value wire codec

# Usage Example

	conf := config.Default()
	conf.ServerURL = "http://localhost:8080"

	s, err := runtime.NewSession(ctx, &conf, logger, runtime.SessionDependencies{})
	if err != nil {
		return err
	}
	defer s.Close()

	results, err := s.Run(ctx, catalog.SubmitRequest{Package: "example.com/a", Sort: catalog.SortNet})
*/
package runtime
