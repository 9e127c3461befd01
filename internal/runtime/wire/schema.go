// Package wire implements the binary message encoding used between the
// commitlog client and server: varint tags, length-delimited blocks, repeated
// fields and maps encoded as repeated entry messages.
//
// Messages are described declaratively. A Schema lists the fields of one Go
// struct type together with their field numbers and text names; the schema
// then drives binary encoding, binary decoding and conversion to and from the
// structured text form used on JSON transports.
package wire

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	errspkg "github.com/drblury/commitlog/internal/runtime/errors"
)

// Field describes how one field of M is encoded. Fields are created with the
// constructors in fields.go.
type Field[M any] struct {
	Number protowire.Number
	Name   string
	Type   protowire.Type

	append   func(b []byte, m *M) ([]byte, error)
	consume  func(b []byte, m *M) (int, error)
	toText   func(m *M) (any, bool, error)
	fromText func(v any, m *M) error
}

// Schema is the field layout of message type M.
type Schema[M any] struct {
	name     string
	fields   []Field[M]
	byNumber map[protowire.Number]int
	init     func(m *M)
}

// NewSchema builds a schema. It panics on duplicate or invalid field numbers,
// which are programming errors in the catalog.
func NewSchema[M any](name string, fields ...Field[M]) *Schema[M] {
	s := &Schema[M]{
		name:     name,
		fields:   fields,
		byNumber: make(map[protowire.Number]int, len(fields)),
	}
	for i, f := range fields {
		if !f.Number.IsValid() {
			panic(fmt.Sprintf("wire: %s.%s has invalid field number %d", name, f.Name, f.Number))
		}
		if _, dup := s.byNumber[f.Number]; dup {
			panic(fmt.Sprintf("wire: %s has duplicate field number %d", name, f.Number))
		}
		s.byNumber[f.Number] = i
	}
	return s
}

// WithInit registers a hook run on every freshly decoded value before its
// fields are read. Used to give map-typed messages a non-nil map.
func (s *Schema[M]) WithInit(fn func(m *M)) *Schema[M] {
	s.init = fn
	return s
}

// Name returns the message name used in error messages.
func (s *Schema[M]) Name() string { return s.name }

// Fields returns the declared fields in encoding order.
func (s *Schema[M]) Fields() []Field[M] { return s.fields }

// Marshal encodes m. Fields equal to their default are omitted, so the
// default value of every message encodes to zero bytes.
func (s *Schema[M]) Marshal(m *M) ([]byte, error) {
	return s.Append(nil, m)
}

// Append appends the encoding of m to b.
func (s *Schema[M]) Append(b []byte, m *M) ([]byte, error) {
	var err error
	for i := range s.fields {
		f := &s.fields[i]
		if b, err = f.append(b, m); err != nil {
			return nil, fmt.Errorf("%s.%s: %w", s.name, f.Name, err)
		}
	}
	return b, nil
}

// Unmarshal decodes b into a new value. Any error aborts the whole decode;
// no partially decoded message is returned.
func (s *Schema[M]) Unmarshal(b []byte) (M, error) {
	var m M
	if err := s.Merge(b, &m); err != nil {
		var zero M
		return zero, err
	}
	return m, nil
}

// Merge decodes b into m. Scalars present in b overwrite m, repeated fields
// are appended and map entries inserted.
func (s *Schema[M]) Merge(b []byte, m *M) error {
	if s.init != nil {
		s.init(m)
	}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%s: %w", s.name, parseError(n))
		}
		b = b[n:]

		if i, ok := s.byNumber[num]; ok && s.fields[i].Type == typ {
			f := &s.fields[i]
			n, err := f.consume(b, m)
			if err != nil {
				return fmt.Errorf("%s.%s: %w", s.name, f.Name, err)
			}
			b = b[n:]
			continue
		}

		// Unknown field, or a known number with a foreign wire type.
		n = protowire.ConsumeFieldValue(num, typ, b)
		if n < 0 {
			return fmt.Errorf("%s: field %d: %w", s.name, num, parseError(n))
		}
		b = b[n:]
	}
	return nil
}

// protowire reports failures as negative lengths.
const (
	codeTruncated = -1
	codeOverflow  = -3
)

func parseError(n int) error {
	cause := protowire.ParseError(n)
	switch n {
	case codeTruncated:
		return fmt.Errorf("%w: %w", errspkg.ErrTruncatedMessage, cause)
	case codeOverflow:
		return fmt.Errorf("%w: %w", errspkg.ErrMalformedVarint, cause)
	default:
		return fmt.Errorf("%w: %w", errspkg.ErrMalformedTag, cause)
	}
}
