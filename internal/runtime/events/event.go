// Package events publishes job lifecycle transitions as CloudEvents on a
// Watermill transport, and decodes them again for watchers.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/drblury/commitlog/internal/runtime/catalog"
	"github.com/drblury/commitlog/internal/runtime/jsoncodec"
)

// SpecVersion is the CloudEvents version events are encoded with.
const SpecVersion = "1.0"

// DefaultSource is the CloudEvents source of events published without
// WithSource.
const DefaultSource = "commitlog"

const contentTypeJSON = "application/json"

// Type is the CloudEvents type of a job event.
type Type string

const (
	TypeSubmitted Type = "commitlog.job.submitted"
	TypeProgress  Type = "commitlog.job.progress"
	TypeSucceeded Type = "commitlog.job.succeeded"
	TypeFailed    Type = "commitlog.job.failed"
	TypeAbandoned Type = "commitlog.job.abandoned"
)

// IsTerminal reports whether no further events follow t for the same job.
func (t Type) IsTerminal() bool {
	return t == TypeSucceeded || t == TypeFailed || t == TypeAbandoned
}

// Event is a job event in CloudEvents structured JSON form. Data holds the
// text form of the job's latest JobStatus. Fields prefixed commitlog are
// CloudEvents extension attributes.
type Event struct {
	SpecVersion     string          `json:"specversion"`
	Type            Type            `json:"type"`
	Source          string          `json:"source"`
	ID              string          `json:"id"`
	Time            time.Time       `json:"time"`
	Subject         string          `json:"subject,omitempty"`
	DataContentType string          `json:"datacontenttype"`
	Data            json.RawMessage `json:"data"`

	State   string `json:"commitlogstate"`
	Package string `json:"commitlogpackage,omitempty"`
	Polls   int    `json:"commitlogpolls"`
	Error   string `json:"commitlogerror,omitempty"`
}

// JobID returns the id of the job the event is about. It is empty for
// submissions the server never accepted.
func (e Event) JobID() string { return e.Subject }

// Validate checks the attributes every CloudEvent must carry.
func (e Event) Validate() error {
	switch {
	case e.SpecVersion != SpecVersion:
		return fmt.Errorf("event: specversion must be %q, got %q", SpecVersion, e.SpecVersion)
	case e.Type == "":
		return fmt.Errorf("event: type is required")
	case e.Source == "":
		return fmt.Errorf("event: source is required")
	case e.ID == "":
		return fmt.Errorf("event: id is required")
	}
	return nil
}

// Status decodes Data into a JobStatus.
func (e Event) Status(codec catalog.Codec) (catalog.JobStatus, error) {
	var status catalog.JobStatus
	if len(e.Data) == 0 {
		return status, nil
	}
	if err := codec.UnmarshalJSON(e.Data, &status); err != nil {
		return catalog.JobStatus{}, fmt.Errorf("event %s: %w", e.ID, err)
	}
	return status, nil
}

// Encode returns the structured JSON form of e.
func Encode(e Event) ([]byte, error) {
	return jsoncodec.Marshal(e)
}

// Decode parses and validates a structured JSON event.
func Decode(payload []byte) (Event, error) {
	var e Event
	if err := jsoncodec.Unmarshal(payload, &e); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	if err := e.Validate(); err != nil {
		return Event{}, err
	}
	return e, nil
}
