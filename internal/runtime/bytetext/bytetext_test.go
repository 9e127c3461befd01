package bytetext

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errspkg "github.com/drblury/commitlog/internal/runtime/errors"
)

func TestRoundTrip(t *testing.T) {
	inputs := [][]byte{
		{},
		{0x00},
		{0xff, 0xfe},
		[]byte("package main\n"),
		{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 250, 251, 252, 253, 254, 255},
	}
	for _, in := range inputs {
		text := Encode(in)
		out, err := Decode(text)
		require.NoError(t, err)
		assert.Equal(t, in, out)
	}
}

func TestEncodeStandardAlphabet(t *testing.T) {
	assert.Equal(t, "aGVsbG8=", Encode([]byte("hello")))
	assert.Equal(t, "+/8=", Encode([]byte{0xfb, 0xff}))
	assert.Equal(t, "", Encode(nil))
}

func TestDecodeRejectsForeignCharacters(t *testing.T) {
	for _, text := range []string{"aGVs*G8=", "not base64!", "-_8=", "QQ=", "QQ", "aGVsbG8"} {
		_, err := Decode(text)
		require.Error(t, err, text)
		assert.ErrorIs(t, err, errspkg.ErrInvalidEncoding)
	}
}
