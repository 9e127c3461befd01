// Package metadata names the headers attached to published job events.
package metadata

// Header keys set on every job event.
const (
	KeyEventType     = "commitlog_event_type"
	KeyJobID         = "commitlog_job_id"
	KeyJobState      = "commitlog_job_state"
	KeyPackage       = "commitlog_package"
	KeyContentType   = "content_type"
	KeyCorrelationID = "correlation_id"
	KeyTraceID       = "trace_id"
	KeySpanID        = "span_id"
	// KeyResultsOmitted is "true" when the results were dropped to fit the
	// transport's size limit.
	KeyResultsOmitted = "commitlog_results_omitted"
)

// Metadata represents the headers carried alongside an event.
type Metadata map[string]string

// New constructs Metadata from alternating key/value pairs. A trailing key
// without a value is ignored.
func New(pairs ...string) Metadata {
	md := make(Metadata, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		md[pairs[i]] = pairs[i+1]
	}
	return md
}

// With returns a copy of m with key set. Empty values are skipped.
func (m Metadata) With(key, value string) Metadata {
	out := make(Metadata, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	if value != "" {
		out[key] = value
	}
	return out
}

// Merge returns a copy of m overlaid with other.
func (m Metadata) Merge(other Metadata) Metadata {
	out := make(Metadata, len(m)+len(other))
	for k, v := range m {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}
