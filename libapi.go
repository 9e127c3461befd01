package commitlog

import (
	runtimepkg "github.com/drblury/commitlog/internal/runtime"
	apipkg "github.com/drblury/commitlog/internal/runtime/api"
	"github.com/drblury/commitlog/internal/runtime/bytetext"
	"github.com/drblury/commitlog/internal/runtime/catalog"
	"github.com/drblury/commitlog/internal/runtime/clock"
	configpkg "github.com/drblury/commitlog/internal/runtime/config"
	errspkg "github.com/drblury/commitlog/internal/runtime/errors"
	eventspkg "github.com/drblury/commitlog/internal/runtime/events"
	idspkg "github.com/drblury/commitlog/internal/runtime/ids"
	"github.com/drblury/commitlog/internal/runtime/jobs"
	loggingpkg "github.com/drblury/commitlog/internal/runtime/logging"
	metadatapkg "github.com/drblury/commitlog/internal/runtime/metadata"
	"github.com/drblury/commitlog/internal/runtime/resultcache"
	"github.com/drblury/commitlog/transport"
)

type (
	Config                = configpkg.Config
	EventsConfig          = configpkg.Events
	ConfigValidationError = errspkg.ConfigValidationError

	Session             = runtimepkg.Session
	SessionDependencies = runtimepkg.SessionDependencies

	// Message catalog
	Message         = catalog.Message
	Codec           = catalog.Codec
	CodecOptions    = catalog.Options
	SortSpec        = catalog.SortSpec
	FileSet         = catalog.FileSet
	SubmitRequest   = catalog.SubmitRequest
	SubmitResponse  = catalog.SubmitResponse
	JobStatus       = catalog.JobStatus
	JobResults      = catalog.JobResults
	CheckoutRequest = catalog.CheckoutRequest

	// Job lifecycle
	Job            = jobs.Job
	JobHandle      = jobs.Handle
	JobState       = jobs.State
	JobOption      = jobs.Option
	JobContext     = jobs.JobContext
	JobHooks       = jobs.Hooks
	JobAPI         = jobs.API
	JobCache       = jobs.Cache
	JobFailedError = jobs.JobFailedError
	Runner         = jobs.Runner
	Metrics        = jobs.Metrics
	Clock          = clock.Clock

	// Server client
	Client         = apipkg.Client
	ClientOption   = apipkg.Option
	ClientEncoding = apipkg.Encoding

	// Result cache
	MemoryCache      = resultcache.MemoryCache
	DiskCache        = resultcache.DiskCache
	CacheCompression = resultcache.Compression

	// Job events
	Event          = eventspkg.Event
	EventType      = eventspkg.Type
	EventPublisher = eventspkg.Publisher
	EventOption    = eventspkg.Option
	Metadata       = metadatapkg.Metadata

	LogFields     = loggingpkg.LogFields
	ServiceLogger = loggingpkg.ServiceLogger
	LogOptions    = loggingpkg.Options

	// Event transports
	Transport             = transport.Transport
	TransportBuilder      = transport.Builder
	TransportConfig       = transport.Config
	TransportRegistry     = transport.Registry
	TransportCapabilities = transport.Capabilities
)

var (
	NewSession     = runtimepkg.NewSession
	DefaultConfig  = configpkg.Default
	LoadConfig     = configpkg.Load
	ValidateConfig = configpkg.ValidateConfig

	NewCodec       = catalog.NewCodec
	ParseSortSpec  = catalog.ParseSortSpec
	SortSpecs      = catalog.SortSpecs
	SortHardcoded  = catalog.SortHardcoded
	SortRaw        = catalog.SortRaw
	SortNet        = catalog.SortNet
	SortImportance = catalog.SortImportance
	EncodeBytes    = bytetext.Encode
	DecodeBytes    = bytetext.Decode

	NewJob           = jobs.New
	NewRunner        = jobs.NewRunner
	NewMetrics       = jobs.NewMetrics
	WithPollInterval = jobs.WithPollInterval
	WithClock        = jobs.WithClock
	WithHooks        = jobs.WithHooks
	WithJobLogger    = jobs.WithLogger
	LoggingHooks     = jobs.LoggingHooks
	MetricsHooks     = jobs.MetricsHooks
	ProgressHooks    = jobs.ProgressHooks
	RealClock        = clock.Real

	NewClient         = apipkg.New
	ParseEncoding     = apipkg.ParseEncoding
	WithHTTPClient    = apipkg.WithHTTPClient
	WithEncoding      = apipkg.WithEncoding
	WithCodec         = apipkg.WithCodec
	WithClientLogger  = apipkg.WithLogger
	NewMemoryCache    = resultcache.NewMemory
	NewDiskCache      = resultcache.NewDisk
	ParseCompression  = resultcache.ParseCompression
	NewEventPublisher = eventspkg.NewPublisher
	OpenEvents        = eventspkg.Open
	WatchEvents       = eventspkg.Watch
	EncodeEvent       = eventspkg.Encode
	DecodeEvent       = eventspkg.Decode
	WithEventSource   = eventspkg.WithSource
	NewMetadata       = metadatapkg.New

	NewLogger            = loggingpkg.New
	NewSlogServiceLogger = loggingpkg.NewSlogServiceLogger
	DiscardLogger        = loggingpkg.Discard

	DefaultTransportRegistry = transport.DefaultRegistry
	RegisterTransport        = transport.Register
	OpenTransport            = transport.Open
	LookupTransport          = transport.Lookup

	CreateULID = idspkg.CreateULID

	ErrTruncatedMessage       = errspkg.ErrTruncatedMessage
	ErrMalformedVarint        = errspkg.ErrMalformedVarint
	ErrMalformedTag           = errspkg.ErrMalformedTag
	ErrInvalidEncoding        = errspkg.ErrInvalidEncoding
	ErrMessageTooLarge        = errspkg.ErrMessageTooLarge
	ErrUnrecognizedEnum       = errspkg.ErrUnrecognizedEnum
	ErrJobSubmissionFailed    = errspkg.ErrJobSubmissionFailed
	ErrJobFailed              = errspkg.ErrJobFailed
	ErrStatusQueryFailed      = errspkg.ErrStatusQueryFailed
	ErrInvalidResults         = errspkg.ErrInvalidResults
	ErrInvalidTransition      = errspkg.ErrInvalidTransition
	ErrJobAbandoned           = errspkg.ErrJobAbandoned
	ErrConfigRequired         = errspkg.ErrConfigRequired
	ErrPublisherRequired      = errspkg.ErrPublisherRequired
	ErrTopicRequired          = errspkg.ErrTopicRequired
	ErrTransportNotRegistered = errspkg.ErrTransportNotRegistered
	ErrUnexpectedStatus       = errspkg.ErrUnexpectedStatus
	ErrCacheMiss              = errspkg.ErrCacheMiss
	ErrEventsDisabled         = errspkg.ErrEventsDisabled
)

// Job states.
const (
	StateIdle      = jobs.StateIdle
	StateSubmitted = jobs.StateSubmitted
	StatePolling   = jobs.StatePolling
	StateSucceeded = jobs.StateSucceeded
	StateFailed    = jobs.StateFailed
	StateAbandoned = jobs.StateAbandoned
)

// Event types.
const (
	EventSubmitted = eventspkg.TypeSubmitted
	EventProgress  = eventspkg.TypeProgress
	EventSucceeded = eventspkg.TypeSucceeded
	EventFailed    = eventspkg.TypeFailed
	EventAbandoned = eventspkg.TypeAbandoned
)

// Body encodings and cache compressions.
const (
	EncodingJSON   = apipkg.EncodingJSON
	EncodingBinary = apipkg.EncodingBinary

	CompressionNone = resultcache.CompressionNone
	CompressionLZ4  = resultcache.CompressionLZ4
	CompressionZstd = resultcache.CompressionZstd
)

// Metadata keys set on published job events.
const (
	MetadataKeyEventType     = metadatapkg.KeyEventType
	MetadataKeyJobID         = metadatapkg.KeyJobID
	MetadataKeyJobState      = metadatapkg.KeyJobState
	MetadataKeyCorrelationID = metadatapkg.KeyCorrelationID
	MetadataKeyTraceID       = metadatapkg.KeyTraceID
)
