package events

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"go.opentelemetry.io/otel/trace"

	"github.com/drblury/commitlog/internal/runtime/catalog"
	"github.com/drblury/commitlog/internal/runtime/clock"
	errspkg "github.com/drblury/commitlog/internal/runtime/errors"
	"github.com/drblury/commitlog/internal/runtime/ids"
	"github.com/drblury/commitlog/internal/runtime/jobs"
	"github.com/drblury/commitlog/internal/runtime/logging"
	metadatapkg "github.com/drblury/commitlog/internal/runtime/metadata"
	"github.com/drblury/commitlog/transport"
)

// Publisher turns job lifecycle transitions into events on one topic.
type Publisher struct {
	pub    message.Publisher
	topic  string
	caps   transport.Capabilities
	codec  catalog.Codec
	source string
	clock  clock.Clock
	ids    *ids.Generator
	logger logging.ServiceLogger
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithCapabilities bounds payloads by caps.MaxMessageSize.
func WithCapabilities(caps transport.Capabilities) Option {
	return func(p *Publisher) { p.caps = caps }
}

// WithCodec sets the codec used to encode the status carried by events.
func WithCodec(c catalog.Codec) Option {
	return func(p *Publisher) { p.codec = c }
}

// WithSource sets the CloudEvents source attribute.
func WithSource(source string) Option {
	return func(p *Publisher) {
		if source != "" {
			p.source = source
		}
	}
}

// WithClock sets the clock used for event timestamps.
func WithClock(c clock.Clock) Option {
	return func(p *Publisher) {
		if c != nil {
			p.clock = c
		}
	}
}

// WithLogger sets the logger publish failures are reported to.
func WithLogger(l logging.ServiceLogger) Option {
	return func(p *Publisher) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewPublisher returns a Publisher writing to topic on pub.
func NewPublisher(pub message.Publisher, topic string, opts ...Option) (*Publisher, error) {
	if pub == nil {
		return nil, errspkg.ErrPublisherRequired
	}
	if topic == "" {
		return nil, errspkg.ErrTopicRequired
	}
	p := &Publisher{
		pub:    pub,
		topic:  topic,
		codec:  catalog.NewCodec(catalog.Options{}),
		source: DefaultSource,
		clock:  clock.Real(),
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.ids = ids.NewGenerator(p.clock)
	return p, nil
}

// Topic returns the topic events are published to.
func (p *Publisher) Topic() string { return p.topic }

// PublishJob publishes an event of type t describing jc. status is the
// status to carry; jobErr, when set, is recorded as the event's error.
//
// When the payload exceeds the transport's size limit the results are
// dropped from the status and the event is marked with KeyResultsOmitted.
func (p *Publisher) PublishJob(jc jobs.JobContext, t Type, status catalog.JobStatus, jobErr error) error {
	ev := Event{
		SpecVersion:     SpecVersion,
		Type:            t,
		Source:          p.source,
		ID:              p.ids.New(),
		Time:            p.clock.Now().UTC(),
		Subject:         jc.JobID,
		DataContentType: contentTypeJSON,
		State:           jc.State.String(),
		Package:         jc.Package,
		Polls:           jc.Polls,
	}
	if jobErr != nil {
		ev.Error = jobErr.Error()
	}

	md := metadatapkg.New(
		metadatapkg.KeyEventType, string(t),
		metadatapkg.KeyJobState, ev.State,
		metadatapkg.KeyContentType, contentTypeJSON,
	).With(metadatapkg.KeyJobID, jc.JobID).With(metadatapkg.KeyPackage, jc.Package)

	payload, err := p.encode(&ev, status)
	if err != nil {
		return err
	}
	if !p.caps.Accepts(len(payload)) && status.Results != nil {
		status.Results = nil
		md = md.With(metadatapkg.KeyResultsOmitted, "true")
		if payload, err = p.encode(&ev, status); err != nil {
			return err
		}
	}
	if !p.caps.Accepts(len(payload)) {
		return fmt.Errorf("%w: %s event is %d bytes, %s accepts %d",
			errspkg.ErrMessageTooLarge, t, len(payload), p.caps.Name, p.caps.MaxMessageSize)
	}

	ctx := jc.Context
	if ctx == nil {
		ctx = context.Background()
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		md = md.With(metadatapkg.KeyTraceID, sc.TraceID().String()).
			With(metadatapkg.KeySpanID, sc.SpanID().String())
	}

	msg := message.NewMessage(ev.ID, payload)
	msg.Metadata = metadatapkg.ToWatermill(md)
	middleware.SetCorrelationID(p.correlationID(jc), msg)
	// Terminal events of abandoned jobs carry a cancelled context.
	msg.SetContext(context.WithoutCancel(ctx))

	return p.pub.Publish(p.topic, msg)
}

func (p *Publisher) encode(ev *Event, status catalog.JobStatus) ([]byte, error) {
	data, err := p.codec.MarshalJSON(&status)
	if err != nil {
		return nil, fmt.Errorf("encode %s status: %w", ev.Type, err)
	}
	ev.Data = data
	return Encode(*ev)
}

// correlationID ties all events of one job together. Jobs the server never
// accepted get a fresh id since they produce a single event.
func (p *Publisher) correlationID(jc jobs.JobContext) string {
	if jc.JobID != "" {
		return jc.JobID
	}
	return p.ids.New()
}

// Hooks returns job hooks that publish an event for every transition.
// Publish failures are logged and never affect the job.
func (p *Publisher) Hooks() jobs.Hooks {
	publish := func(jc jobs.JobContext, t Type, status catalog.JobStatus, jobErr error) {
		if err := p.PublishJob(jc, t, status, jobErr); err != nil {
			p.logger.Error("Publishing job event failed", err, logging.LogFields{
				"job_id": jc.JobID,
				"type":   string(t),
				"topic":  p.topic,
				"polls":  jc.Polls,
			})
		}
	}
	return jobs.Hooks{
		OnSubmitted: func(jc jobs.JobContext) {
			publish(jc, TypeSubmitted, catalog.JobStatus{}, nil)
		},
		OnProgress: func(jc jobs.JobContext) {
			publish(jc, TypeProgress, jc.Status, nil)
		},
		OnSucceeded: func(jc jobs.JobContext, results catalog.JobResults) {
			status := jc.Status
			status.Complete = true
			status.Results = &results
			publish(jc, TypeSucceeded, status, nil)
		},
		OnFailed: func(jc jobs.JobContext, err error) {
			t := TypeFailed
			if jc.State == jobs.StateAbandoned {
				t = TypeAbandoned
			}
			publish(jc, t, jc.Status, err)
		},
	}
}
