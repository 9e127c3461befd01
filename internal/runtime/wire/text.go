package wire

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	errspkg "github.com/drblury/commitlog/internal/runtime/errors"
)

// ToText converts m to its structured text form, keyed by field text name.
// Scalars and repeated fields are always present; absent nested messages are
// left out. Strings that are not valid UTF-8 fail with ErrInvalidEncoding,
// as they do on the binary path.
func (s *Schema[M]) ToText(m *M) (map[string]any, error) {
	out := make(map[string]any, len(s.fields))
	for i := range s.fields {
		f := &s.fields[i]
		v, ok, err := f.toText(m)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", s.name, f.Name, err)
		}
		if ok {
			out[f.Name] = v
		}
	}
	return out, nil
}

// FromText fills m from its structured text form. Missing and null keys keep
// their default; keys that name no field are ignored.
func (s *Schema[M]) FromText(obj map[string]any, m *M) error {
	if s.init != nil {
		s.init(m)
	}
	for i := range s.fields {
		f := &s.fields[i]
		v, ok := obj[f.Name]
		if !ok || v == nil {
			continue
		}
		if err := f.fromText(v, m); err != nil {
			return fmt.Errorf("%s.%s: %w", s.name, f.Name, err)
		}
	}
	return nil
}

func textString(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case json.Number:
		return x.String(), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(x), nil
	default:
		return "", fmt.Errorf("%w: expected string, got %T", errspkg.ErrInvalidEncoding, v)
	}
}

func textInt(v any) (int64, error) {
	switch x := v.(type) {
	case json.Number:
		n, err := x.Int64()
		if err != nil {
			return 0, fmt.Errorf("%w: %v", errspkg.ErrInvalidEncoding, err)
		}
		return n, nil
	case float64:
		if x != math.Trunc(x) {
			return 0, fmt.Errorf("%w: %v is not an integer", errspkg.ErrInvalidEncoding, x)
		}
		return int64(x), nil
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	default:
		return 0, fmt.Errorf("%w: expected number, got %T", errspkg.ErrInvalidEncoding, v)
	}
}

func textArray(v any) ([]any, error) {
	switch x := v.(type) {
	case []any:
		return x, nil
	case []string:
		out := make([]any, len(x))
		for i, s := range x {
			out[i] = s
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: expected array, got %T", errspkg.ErrInvalidEncoding, v)
	}
}

func textObject(v any) (map[string]any, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected object, got %T", errspkg.ErrInvalidEncoding, v)
	}
	return obj, nil
}
