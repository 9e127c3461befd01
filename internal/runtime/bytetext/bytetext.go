// Package bytetext maps raw byte strings to and from the base64 text used for
// byte-valued fields in the JSON encoding of messages.
package bytetext

import (
	"fmt"

	"github.com/cloudwego/base64x"

	errspkg "github.com/drblury/commitlog/internal/runtime/errors"
)

var encoding = base64x.StdEncoding

// Encode returns the padded standard base64 form of b.
func Encode(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return encoding.EncodeToString(b)
}

// Decode reverses Encode. Text outside the base64 alphabet, or with bad
// padding, fails with ErrInvalidEncoding.
func Decode(s string) ([]byte, error) {
	if s == "" {
		return []byte{}, nil
	}
	// base64x tolerates truncated padding such as "QQ=".
	if len(s)%4 != 0 {
		return nil, fmt.Errorf("%w: base64 length %d is not a multiple of 4", errspkg.ErrInvalidEncoding, len(s))
	}
	b, err := encoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errspkg.ErrInvalidEncoding, err)
	}
	return b, nil
}
