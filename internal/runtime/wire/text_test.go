package wire

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errspkg "github.com/drblury/commitlog/internal/runtime/errors"
)

func TestTextRoundTrip(t *testing.T) {
	in := fullSample()
	obj, err := sampleSchema.ToText(&in)
	require.NoError(t, err)

	var out sample
	require.NoError(t, sampleSchema.FromText(obj, &out))
	assert.Equal(t, in, out)
}

func TestToTextShape(t *testing.T) {
	in := sample{Entries: map[string][]byte{"a.go": []byte("hello")}}
	obj, err := sampleSchema.ToText(&in)
	require.NoError(t, err)

	assert.Equal(t, false, obj["done"])
	assert.Equal(t, "", obj["name"])
	assert.Equal(t, []any{}, obj["tags"])
	assert.Equal(t, "LOW", obj["level"])
	assert.NotContains(t, obj, "child")
	assert.NotContains(t, obj, "blob")
	assert.Equal(t, []any{}, obj["blobs"])
	assert.Equal(t, map[string]any{"a.go": "aGVsbG8="}, obj["entries"])
}

func TestFromTextEnumByNumberOrName(t *testing.T) {
	var byName sample
	require.NoError(t, sampleSchema.FromText(map[string]any{"level": "HIGH"}, &byName))
	assert.Equal(t, level{n: 2}, byName.Level)

	var byNumber sample
	require.NoError(t, sampleSchema.FromText(map[string]any{"level": json.Number("1")}, &byNumber))
	assert.Equal(t, level{n: 1}, byNumber.Level)

	var unknown sample
	require.NoError(t, sampleSchema.FromText(map[string]any{"level": "PURPLE"}, &unknown))
	assert.Equal(t, "UNKNOWN", unknown.Level.String())
	_, ok := unknown.Level.WireNumber()
	assert.False(t, ok)
}

func TestToTextRejectsInvalidUTF8(t *testing.T) {
	tests := []struct {
		name string
		in   sample
	}{
		{"name", sample{Name: "a\xffb"}},
		{"tags", sample{Tags: []string{"ok", "\xc3"}}},
		{"nested", sample{Child: &inner{Label: "\xfe"}}},
		{"entry key", sample{Entries: map[string][]byte{"\xff": nil}}},
		{"repeated message", sample{Blobs: []blob{{Entries: map[string][]byte{"\xff": {1}}}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj, err := sampleSchema.ToText(&tt.in)
			assert.ErrorIs(t, err, errspkg.ErrInvalidEncoding)
			assert.Nil(t, obj)
		})
	}
}

func TestFromTextEnumNumberOutsideInt32(t *testing.T) {
	for _, n := range []int64{1<<32 + 2, -(1 << 32) + 1} {
		var out sample
		require.NoError(t, sampleSchema.FromText(map[string]any{"level": n}, &out))
		assert.Equal(t, "UNKNOWN", out.Level.String())
		_, ok := out.Level.WireNumber()
		assert.False(t, ok)
	}
}

func TestFromTextIgnoresNullAndUnknownKeys(t *testing.T) {
	var out sample
	err := sampleSchema.FromText(map[string]any{"name": nil, "extra": 12, "done": true}, &out)
	require.NoError(t, err)
	assert.Equal(t, sample{Done: true}, out)
}

func TestFromTextRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		obj  map[string]any
	}{
		{"bool as string", map[string]any{"done": "yes"}},
		{"tags not array", map[string]any{"tags": "TestA"}},
		{"bad base64", map[string]any{"entries": map[string]any{"a": "!!"}}},
		{"entry not string", map[string]any{"entries": map[string]any{"a": 3.0}}},
		{"fractional enum", map[string]any{"level": 1.5}},
		{"child not object", map[string]any{"child": []any{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out sample
			err := sampleSchema.FromText(tt.obj, &out)
			assert.ErrorIs(t, err, errspkg.ErrInvalidEncoding)
		})
	}
}
