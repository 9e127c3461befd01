package errors

import sterrors "errors"

// Codec errors. Each is fatal to the decode call that produced it.
var (
	ErrTruncatedMessage = sterrors.New("commitlog: truncated message")
	ErrMalformedVarint  = sterrors.New("commitlog: malformed varint")
	ErrMalformedTag     = sterrors.New("commitlog: malformed field tag")
	ErrInvalidEncoding  = sterrors.New("commitlog: invalid encoding")
	ErrMessageTooLarge  = sterrors.New("commitlog: message exceeds size limit")
	ErrUnrecognizedEnum = sterrors.New("commitlog: unrecognized enum value cannot be encoded")
)

// Job lifecycle errors.
var (
	ErrJobSubmissionFailed = sterrors.New("commitlog: job submission failed")
	ErrJobFailed           = sterrors.New("commitlog: job failed")
	ErrStatusQueryFailed   = sterrors.New("commitlog: job status query failed")
	ErrInvalidResults      = sterrors.New("commitlog: job results have mismatched tests and files")
	ErrInvalidTransition   = sterrors.New("commitlog: invalid job state transition")
	ErrJobAbandoned        = sterrors.New("commitlog: job abandoned")
)

var (
	ErrConfigRequired         = sterrors.New("commitlog: configuration is required")
	ErrPublisherRequired      = sterrors.New("commitlog: publisher is required")
	ErrTopicRequired          = sterrors.New("commitlog: topic is required")
	ErrTransportNotRegistered = sterrors.New("commitlog: transport not registered")
	ErrUnexpectedStatus       = sterrors.New("commitlog: unexpected response status")
	ErrCacheMiss              = sterrors.New("commitlog: result not cached")
	ErrEventsDisabled         = sterrors.New("commitlog: no event transport configured")
)

// ConfigValidationError marks a configuration that failed Validate.
type ConfigValidationError struct {
	Err error
}

func (e ConfigValidationError) Error() string {
	return "commitlog: invalid configuration: " + e.Err.Error()
}

func (e ConfigValidationError) Unwrap() error { return e.Err }

// NewConfigValidationError wraps err, returning nil for a nil err.
func NewConfigValidationError(err error) error {
	if err == nil {
		return nil
	}
	return ConfigValidationError{Err: err}
}
