package wire

import (
	"bytes"
	"fmt"
	"math"
	"slices"
	"strconv"
	"unicode/utf8"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/drblury/commitlog/internal/runtime/bytetext"
	errspkg "github.com/drblury/commitlog/internal/runtime/errors"
)

// Enum is implemented by closed enumerations with an explicit unrecognized
// variant. The zero value of E is the default and is never written.
type Enum interface {
	comparable
	// WireNumber reports the number to write and whether the value can be
	// written at all.
	WireNumber() (int32, bool)
	String() string
}

// Bool is a singular bool field.
func Bool[M any](num protowire.Number, name string, ptr func(*M) *bool) Field[M] {
	return Field[M]{
		Number: num,
		Name:   name,
		Type:   protowire.VarintType,
		append: func(b []byte, m *M) ([]byte, error) {
			if !*ptr(m) {
				return b, nil
			}
			b = protowire.AppendTag(b, num, protowire.VarintType)
			return protowire.AppendVarint(b, 1), nil
		},
		consume: func(b []byte, m *M) (int, error) {
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return 0, parseError(n)
			}
			*ptr(m) = protowire.DecodeBool(v)
			return n, nil
		},
		toText: func(m *M) (any, bool, error) { return *ptr(m), true, nil },
		fromText: func(v any, m *M) error {
			x, ok := v.(bool)
			if !ok {
				return fmt.Errorf("%w: expected bool, got %T", errspkg.ErrInvalidEncoding, v)
			}
			*ptr(m) = x
			return nil
		},
	}
}

// String is a singular UTF-8 string field.
func String[M any](num protowire.Number, name string, ptr func(*M) *string) Field[M] {
	return Field[M]{
		Number: num,
		Name:   name,
		Type:   protowire.BytesType,
		append: func(b []byte, m *M) ([]byte, error) {
			s := *ptr(m)
			if s == "" {
				return b, nil
			}
			if !utf8.ValidString(s) {
				return nil, errspkg.ErrInvalidEncoding
			}
			b = protowire.AppendTag(b, num, protowire.BytesType)
			return protowire.AppendString(b, s), nil
		},
		consume: func(b []byte, m *M) (int, error) {
			s, n, err := consumeString(b)
			if err != nil {
				return 0, err
			}
			*ptr(m) = s
			return n, nil
		},
		toText: func(m *M) (any, bool, error) {
			s := *ptr(m)
			if !utf8.ValidString(s) {
				return nil, false, errspkg.ErrInvalidEncoding
			}
			return s, true, nil
		},
		fromText: func(v any, m *M) error {
			s, err := textString(v)
			if err != nil {
				return err
			}
			*ptr(m) = s
			return nil
		},
	}
}

// RepeatedString is a list of strings, one tag per element.
func RepeatedString[M any](num protowire.Number, name string, ptr func(*M) *[]string) Field[M] {
	return Field[M]{
		Number: num,
		Name:   name,
		Type:   protowire.BytesType,
		append: func(b []byte, m *M) ([]byte, error) {
			for _, s := range *ptr(m) {
				if !utf8.ValidString(s) {
					return nil, errspkg.ErrInvalidEncoding
				}
				b = protowire.AppendTag(b, num, protowire.BytesType)
				b = protowire.AppendString(b, s)
			}
			return b, nil
		},
		consume: func(b []byte, m *M) (int, error) {
			s, n, err := consumeString(b)
			if err != nil {
				return 0, err
			}
			p := ptr(m)
			*p = append(*p, s)
			return n, nil
		},
		toText: func(m *M) (any, bool, error) {
			out := make([]any, 0, len(*ptr(m)))
			for i, s := range *ptr(m) {
				if !utf8.ValidString(s) {
					return nil, false, fmt.Errorf("[%d]: %w", i, errspkg.ErrInvalidEncoding)
				}
				out = append(out, s)
			}
			return out, true, nil
		},
		fromText: func(v any, m *M) error {
			items, err := textArray(v)
			if err != nil {
				return err
			}
			out := make([]string, 0, len(items))
			for _, item := range items {
				s, err := textString(item)
				if err != nil {
					return err
				}
				out = append(out, s)
			}
			*ptr(m) = out
			return nil
		},
	}
}

// EnumField is a singular enum field. fromNumber maps every wire number,
// known or not, to a value; parse does the same for text names.
func EnumField[M any, E Enum](num protowire.Number, name string, ptr func(*M) *E, fromNumber func(int32) E, parse func(string) E) Field[M] {
	return Field[M]{
		Number: num,
		Name:   name,
		Type:   protowire.VarintType,
		append: func(b []byte, m *M) ([]byte, error) {
			var zero E
			e := *ptr(m)
			if e == zero {
				return b, nil
			}
			n, ok := e.WireNumber()
			if !ok {
				return nil, fmt.Errorf("%w: %s", errspkg.ErrUnrecognizedEnum, e)
			}
			b = protowire.AppendTag(b, num, protowire.VarintType)
			return protowire.AppendVarint(b, uint64(int64(n))), nil
		},
		consume: func(b []byte, m *M) (int, error) {
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return 0, parseError(n)
			}
			*ptr(m) = fromNumber(int32(v))
			return n, nil
		},
		toText: func(m *M) (any, bool, error) { return (*ptr(m)).String(), true, nil },
		fromText: func(v any, m *M) error {
			if s, ok := v.(string); ok {
				*ptr(m) = parse(s)
				return nil
			}
			n, err := textInt(v)
			if err != nil {
				return err
			}
			if n < math.MinInt32 || n > math.MaxInt32 {
				// No enum value has this number; parse yields the
				// unrecognized variant without truncating it.
				*ptr(m) = parse(strconv.FormatInt(n, 10))
				return nil
			}
			*ptr(m) = fromNumber(int32(n))
			return nil
		},
	}
}

// Optional is a nested message held by pointer; nil means absent.
func Optional[M, N any](num protowire.Number, name string, ptr func(*M) **N, s *Schema[N]) Field[M] {
	return Field[M]{
		Number: num,
		Name:   name,
		Type:   protowire.BytesType,
		append: func(b []byte, m *M) ([]byte, error) {
			nested := *ptr(m)
			if nested == nil {
				return b, nil
			}
			return appendNested(b, num, s, nested)
		},
		consume: func(b []byte, m *M) (int, error) {
			block, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return 0, parseError(n)
			}
			p := ptr(m)
			if *p == nil {
				*p = new(N)
			}
			if err := s.Merge(block, *p); err != nil {
				return 0, err
			}
			return n, nil
		},
		toText: func(m *M) (any, bool, error) {
			nested := *ptr(m)
			if nested == nil {
				return nil, false, nil
			}
			obj, err := s.ToText(nested)
			return obj, err == nil, err
		},
		fromText: func(v any, m *M) error {
			obj, err := textObject(v)
			if err != nil {
				return err
			}
			nested := new(N)
			if err := s.FromText(obj, nested); err != nil {
				return err
			}
			*ptr(m) = nested
			return nil
		},
	}
}

// Embedded is a nested message held by value. present reports whether the
// value is set; unset values are not written.
func Embedded[M, N any](num protowire.Number, name string, ptr func(*M) *N, present func(*N) bool, s *Schema[N]) Field[M] {
	return Field[M]{
		Number: num,
		Name:   name,
		Type:   protowire.BytesType,
		append: func(b []byte, m *M) ([]byte, error) {
			nested := ptr(m)
			if !present(nested) {
				return b, nil
			}
			return appendNested(b, num, s, nested)
		},
		consume: func(b []byte, m *M) (int, error) {
			block, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return 0, parseError(n)
			}
			if err := s.Merge(block, ptr(m)); err != nil {
				return 0, err
			}
			return n, nil
		},
		toText: func(m *M) (any, bool, error) {
			nested := ptr(m)
			if !present(nested) {
				return nil, false, nil
			}
			obj, err := s.ToText(nested)
			return obj, err == nil, err
		},
		fromText: func(v any, m *M) error {
			obj, err := textObject(v)
			if err != nil {
				return err
			}
			var nested N
			if err := s.FromText(obj, &nested); err != nil {
				return err
			}
			*ptr(m) = nested
			return nil
		},
	}
}

// RepeatedMessage is a list of nested messages, one block per element.
func RepeatedMessage[M, N any](num protowire.Number, name string, ptr func(*M) *[]N, s *Schema[N]) Field[M] {
	return Field[M]{
		Number: num,
		Name:   name,
		Type:   protowire.BytesType,
		append: func(b []byte, m *M) ([]byte, error) {
			var err error
			items := *ptr(m)
			for i := range items {
				if b, err = appendNested(b, num, s, &items[i]); err != nil {
					return nil, fmt.Errorf("[%d]: %w", i, err)
				}
			}
			return b, nil
		},
		consume: func(b []byte, m *M) (int, error) {
			block, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return 0, parseError(n)
			}
			var item N
			if err := s.Merge(block, &item); err != nil {
				return 0, err
			}
			p := ptr(m)
			*p = append(*p, item)
			return n, nil
		},
		toText: func(m *M) (any, bool, error) {
			items := *ptr(m)
			out := make([]any, 0, len(items))
			for i := range items {
				obj, err := s.ToText(&items[i])
				if err != nil {
					return nil, false, fmt.Errorf("[%d]: %w", i, err)
				}
				out = append(out, obj)
			}
			return out, true, nil
		},
		fromText: func(v any, m *M) error {
			raw, err := textArray(v)
			if err != nil {
				return err
			}
			out := make([]N, 0, len(raw))
			for i, r := range raw {
				obj, err := textObject(r)
				if err != nil {
					return fmt.Errorf("[%d]: %w", i, err)
				}
				var item N
				if err := s.FromText(obj, &item); err != nil {
					return fmt.Errorf("[%d]: %w", i, err)
				}
				out = append(out, item)
			}
			*ptr(m) = out
			return nil
		},
	}
}

// Map entry layout: key is field 1, value is field 2.
const (
	entryKey   protowire.Number = 1
	entryValue protowire.Number = 2
)

// StringBytesMap is a map<string, bytes> field, written as repeated entry
// messages in ascending key order. In text form values are base64.
func StringBytesMap[M any](num protowire.Number, name string, ptr func(*M) *map[string][]byte) Field[M] {
	return Field[M]{
		Number: num,
		Name:   name,
		Type:   protowire.BytesType,
		append: func(b []byte, m *M) ([]byte, error) {
			entries := *ptr(m)
			if len(entries) == 0 {
				return b, nil
			}
			keys := make([]string, 0, len(entries))
			for k := range entries {
				keys = append(keys, k)
			}
			slices.Sort(keys)

			var entry []byte
			for _, k := range keys {
				if !utf8.ValidString(k) {
					return nil, fmt.Errorf("key %q: %w", k, errspkg.ErrInvalidEncoding)
				}
				entry = entry[:0]
				if k != "" {
					entry = protowire.AppendTag(entry, entryKey, protowire.BytesType)
					entry = protowire.AppendString(entry, k)
				}
				if v := entries[k]; len(v) > 0 {
					entry = protowire.AppendTag(entry, entryValue, protowire.BytesType)
					entry = protowire.AppendBytes(entry, v)
				}
				b = protowire.AppendTag(b, num, protowire.BytesType)
				b = protowire.AppendBytes(b, entry)
			}
			return b, nil
		},
		consume: func(b []byte, m *M) (int, error) {
			block, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return 0, parseError(n)
			}
			key, value, err := consumeEntry(block)
			if err != nil {
				return 0, err
			}
			p := ptr(m)
			if *p == nil {
				*p = make(map[string][]byte)
			}
			(*p)[key] = value
			return n, nil
		},
		toText: func(m *M) (any, bool, error) {
			entries := *ptr(m)
			out := make(map[string]any, len(entries))
			for k, v := range entries {
				if !utf8.ValidString(k) {
					return nil, false, fmt.Errorf("key %q: %w", k, errspkg.ErrInvalidEncoding)
				}
				out[k] = bytetext.Encode(v)
			}
			return out, true, nil
		},
		fromText: func(v any, m *M) error {
			obj, err := textObject(v)
			if err != nil {
				return err
			}
			out := make(map[string][]byte, len(obj))
			for k, raw := range obj {
				s, ok := raw.(string)
				if !ok {
					return fmt.Errorf("%w: value for %q is %T, want base64 string", errspkg.ErrInvalidEncoding, k, raw)
				}
				decoded, err := bytetext.Decode(s)
				if err != nil {
					return fmt.Errorf("value for %q: %w", k, err)
				}
				out[k] = decoded
			}
			*ptr(m) = out
			return nil
		},
	}
}

func consumeEntry(b []byte) (string, []byte, error) {
	key := ""
	value := []byte{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return "", nil, parseError(n)
		}
		b = b[n:]
		switch {
		case num == entryKey && typ == protowire.BytesType:
			s, n, err := consumeString(b)
			if err != nil {
				return "", nil, err
			}
			key = s
			b = b[n:]
		case num == entryValue && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return "", nil, parseError(n)
			}
			value = bytes.Clone(v)
			if value == nil {
				value = []byte{}
			}
			b = b[n:]
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return "", nil, parseError(n)
			}
			b = b[n:]
		}
	}
	return key, value, nil
}

func consumeString(b []byte) (string, int, error) {
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return "", 0, parseError(n)
	}
	if !utf8.Valid(v) {
		return "", 0, errspkg.ErrInvalidEncoding
	}
	return string(v), n, nil
}

func appendNested[N any](b []byte, num protowire.Number, s *Schema[N], nested *N) ([]byte, error) {
	block, err := s.Marshal(nested)
	if err != nil {
		return nil, err
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, block), nil
}
