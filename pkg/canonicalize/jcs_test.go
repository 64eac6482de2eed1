package canonicalize

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJCS_Sorting(t *testing.T) {
	input := map[string]any{"c": 3, "a": 1, "b": 2}

	b, err := JCS(input)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1,"b":2,"c":3}`, string(b))
}

func TestJCS_RecursiveSorting(t *testing.T) {
	input := map[string]any{
		"z": map[string]any{"y": "foo", "x": "bar"},
		"a": 1,
	}

	b, err := JCS(input)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1,"z":{"x":"bar","y":"foo"}}`, string(b))
}

func TestJCS_NoHTMLEscaping(t *testing.T) {
	input := map[string]string{"html": "<script>alert('xss')</script> &"}

	b, err := JCS(input)
	require.NoError(t, err)
	assert.Equal(t, `{"html":"<script>alert('xss')</script> &"}`, string(b))
}

func TestJCS_NumberTypes(t *testing.T) {
	b, err := JCS(map[string]any{"num": json.Number("123.456")})
	require.NoError(t, err)
	assert.Equal(t, `{"num":123.456}`, string(b))
}

func TestCanonicalHash_StructAndMapAgree(t *testing.T) {
	type S struct {
		B int `json:"b"`
		A int `json:"a"`
	}

	h1, err := CanonicalHash(map[string]any{"a": 1, "b": 2})
	require.NoError(t, err)
	h2, err := CanonicalHash(S{A: 1, B: 2})
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
}

func TestPrefixedHash(t *testing.T) {
	h, err := PrefixedHash(map[string]any{"a": 1})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(h, HashPrefix))
	assert.Len(t, h, len(HashPrefix)+64)
}

func TestJCSString_MatchesBytes(t *testing.T) {
	s, err := JCSString(map[string]int{"b": 2, "a": 1})
	require.NoError(t, err)
	b, err := JCS(map[string]int{"b": 2, "a": 1})
	require.NoError(t, err)
	assert.Equal(t, string(b), s)
}

func TestHashBytes_KnownVector(t *testing.T) {
	assert.Equal(t,
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		HashBytes(nil))
	assert.Equal(t, HashBytes([]byte("abc")), HashString("abc"))
}
