package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical_SortsKeys(t *testing.T) {
	got, err := MarshalCanonical(map[string]any{
		"metric": "Drought",
		"entity": "",
		"period": "1980",
	})
	require.NoError(t, err)
	assert.Equal(t, `{"entity":"","metric":"Drought","period":"1980"}`, string(got))
}

func TestMarshalCanonical_NoHTMLEscape(t *testing.T) {
	got, err := MarshalCanonical("a < b & c")
	require.NoError(t, err)
	assert.Equal(t, `"a < b & c"`, string(got))
}

func TestMarshalCanonical_NFC(t *testing.T) {
	decomposed := "Zu\u0308rich"
	precomposed := "Z\u00fcrich"

	a, err := MarshalCanonical(decomposed)
	require.NoError(t, err)
	b, err := MarshalCanonical(precomposed)
	require.NoError(t, err)
	assert.Equal(t, string(b), string(a))
}

func TestMarshalCanonical_Nested(t *testing.T) {
	n, err := ParseNumber("5.25")
	require.NoError(t, err)

	got, err := MarshalCanonical(map[string]any{
		"facts": []any{
			map[string]any{"value": n, "year": Int(1980)},
		},
		"tags": []string{"b", "a"},
		"ok":   true,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"facts":[{"value":"5.25","year":1980}],"ok":true,"tags":["b","a"]}`, string(got))
}

func TestMarshalCanonical_RejectsFloats(t *testing.T) {
	_, err := MarshalCanonical(map[string]any{"x": 1.5})
	assert.Error(t, err)
}

func TestCompareKeysRFC8785(t *testing.T) {
	// U+FFFD sorts after a surrogate pair in UTF-16 but before it in UTF-8.
	assert.Equal(t, 1, compareKeysRFC8785("\uFFFD", "\U0001F600"))
	assert.Equal(t, -1, compareKeysRFC8785("a", "b"))
	assert.Equal(t, -1, compareKeysRFC8785("a", "ab"))
	assert.Equal(t, 0, compareKeysRFC8785("x", "x"))
}
