package catalog

import (
	"fmt"

	errspkg "github.com/drblury/commitlog/internal/runtime/errors"
	"github.com/drblury/commitlog/internal/runtime/jsoncodec"
	"github.com/drblury/commitlog/internal/runtime/wire"
)

// Message is implemented by pointers to the catalog message types.
type Message interface {
	bind() binding
}

type binding interface {
	append(b []byte) ([]byte, error)
	merge(b []byte) error
	reset()
	toText() (map[string]any, error)
	fromText(obj map[string]any) error
}

type bound[M any] struct {
	schema *wire.Schema[M]
	msg    *M
}

func (x bound[M]) append(b []byte) ([]byte, error) { return x.schema.Append(b, x.msg) }
func (x bound[M]) merge(b []byte) error            { return x.schema.Merge(b, x.msg) }
func (x bound[M]) toText() (map[string]any, error) { return x.schema.ToText(x.msg) }
func (x bound[M]) fromText(obj map[string]any) error {
	return x.schema.FromText(obj, x.msg)
}

func (x bound[M]) reset() {
	var zero M
	*x.msg = zero
}

func (m *SubmitRequest) bind() binding   { return bound[SubmitRequest]{submitRequestSchema, m} }
func (m *SubmitResponse) bind() binding  { return bound[SubmitResponse]{submitResponseSchema, m} }
func (m *JobStatus) bind() binding       { return bound[JobStatus]{jobStatusSchema, m} }
func (m *JobResults) bind() binding      { return bound[JobResults]{jobResultsSchema, m} }
func (m *CheckoutRequest) bind() binding { return bound[CheckoutRequest]{checkoutRequestSchema, m} }

// Options configure a Codec.
type Options struct {
	// MaxSize bounds the encoded size accepted or produced, in bytes.
	// Zero means unlimited.
	MaxSize int
}

// Codec encodes catalog messages. It holds no mutable state and is safe for
// concurrent use.
type Codec struct {
	opts Options
}

// NewCodec returns a codec configured with opts.
func NewCodec(opts Options) Codec {
	return Codec{opts: opts}
}

// Options returns the codec configuration.
func (c Codec) Options() Options { return c.opts }

// Marshal returns the binary encoding of m.
func (c Codec) Marshal(m Message) ([]byte, error) {
	b, err := m.bind().append(nil)
	if err != nil {
		return nil, err
	}
	if err := c.checkSize(len(b)); err != nil {
		return nil, err
	}
	return b, nil
}

// Unmarshal replaces m with the message decoded from b. On error m is left
// at its default value.
func (c Codec) Unmarshal(b []byte, m Message) error {
	if err := c.checkSize(len(b)); err != nil {
		return err
	}
	x := m.bind()
	x.reset()
	if err := x.merge(b); err != nil {
		x.reset()
		return err
	}
	return nil
}

// ToText returns the structured text form of m. Strings that are not valid
// UTF-8 fail with ErrInvalidEncoding.
func (c Codec) ToText(m Message) (map[string]any, error) {
	return m.bind().toText()
}

// FromText replaces m with the message described by obj.
func (c Codec) FromText(obj map[string]any, m Message) error {
	x := m.bind()
	x.reset()
	if err := x.fromText(obj); err != nil {
		x.reset()
		return err
	}
	return nil
}

// MarshalJSON returns the JSON text form of m.
func (c Codec) MarshalJSON(m Message) ([]byte, error) {
	obj, err := m.bind().toText()
	if err != nil {
		return nil, err
	}
	b, err := jsoncodec.Marshal(obj)
	if err != nil {
		return nil, err
	}
	if err := c.checkSize(len(b)); err != nil {
		return nil, err
	}
	return b, nil
}

// UnmarshalJSON replaces m with the message described by JSON text b.
func (c Codec) UnmarshalJSON(b []byte, m Message) error {
	if err := c.checkSize(len(b)); err != nil {
		return err
	}
	obj, err := jsoncodec.UnmarshalObject(b)
	if err != nil {
		return fmt.Errorf("%w: %v", errspkg.ErrInvalidEncoding, err)
	}
	return c.FromText(obj, m)
}

func (c Codec) checkSize(n int) error {
	if c.opts.MaxSize > 0 && n > c.opts.MaxSize {
		return fmt.Errorf("%w: %d > %d bytes", errspkg.ErrMessageTooLarge, n, c.opts.MaxSize)
	}
	return nil
}

var defaultCodec = NewCodec(Options{})

func (m SubmitRequest) MarshalJSON() ([]byte, error)    { return defaultCodec.MarshalJSON(&m) }
func (m *SubmitRequest) UnmarshalJSON(b []byte) error   { return defaultCodec.UnmarshalJSON(b, m) }
func (m SubmitResponse) MarshalJSON() ([]byte, error)   { return defaultCodec.MarshalJSON(&m) }
func (m *SubmitResponse) UnmarshalJSON(b []byte) error  { return defaultCodec.UnmarshalJSON(b, m) }
func (m JobStatus) MarshalJSON() ([]byte, error)        { return defaultCodec.MarshalJSON(&m) }
func (m *JobStatus) UnmarshalJSON(b []byte) error       { return defaultCodec.UnmarshalJSON(b, m) }
func (m JobResults) MarshalJSON() ([]byte, error)       { return defaultCodec.MarshalJSON(&m) }
func (m *JobResults) UnmarshalJSON(b []byte) error      { return defaultCodec.UnmarshalJSON(b, m) }
func (m CheckoutRequest) MarshalJSON() ([]byte, error)  { return defaultCodec.MarshalJSON(&m) }
func (m *CheckoutRequest) UnmarshalJSON(b []byte) error { return defaultCodec.UnmarshalJSON(b, m) }
