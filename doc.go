// Package commitlog is the client for a commitlog server, which replays a
// package's tests one at a time and snapshots the covered source after each.
//
// Requests travel as protobuf-compatible binary or as JSON text. Codec
// encodes the message catalog (SubmitRequest, JobStatus, JobResults,
// CheckoutRequest) in both forms, with byte fields carried as base64 in text.
//
// # Jobs
//
// A submission is a job: the server returns an id, and the client polls its
// status every 300ms until it completes or fails. Job walks the states
// Idle, Submitted, Polling and then Succeeded or Failed. Cancelling the
// context, or calling Cancel on the handle returned by Job.Start, abandons
// the job and no further status query is sent.
//
//	session, err := commitlog.NewSession(ctx, &cfg, nil, commitlog.SessionDependencies{})
//	if err != nil {
//		return err
//	}
//	defer session.Close()
//	results, err := session.Run(ctx, commitlog.SubmitRequest{
//		Package: "example.com/pkg",
//		Tests:   []string{"TestA", "TestB"},
//		Sort:    commitlog.SortNet,
//	})
//
// Session wires the HTTP client, an optional on-disk result cache
// (zstd or lz4 compressed, keyed by a BLAKE3 hash of the request), Prometheus
// job metrics and job hooks.
//
// # Events
//
// When Config.Events names a transport, every job transition is published as
// a CloudEvent on that transport's topic. Transports live in transport/<name>
// and register themselves on import; import transport/transports for all of
// them:
//   - channel: in-process Go channels
//   - kafka: consumer-group based streaming
//   - rabbitmq: durable AMQP exchanges
//   - nats: core NATS subjects
//   - aws: SNS topics with SQS subscriptions, LocalStack aware
//   - http: POST per event, with an optional receiving server
//
// Session.Watch or WatchEvents decode the stream again.
package commitlog
