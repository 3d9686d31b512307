package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"string", String("hallo"), `"hallo"`},
		{"int", Int(42), "42"},
		{"negative int", Int(-100), "-100"},
		{"float", Float(12.5), "12.5"},
		{"small float", Float(0.0000001), "1e-07"},
		{"bool", Bool(true), "true"},
		{"null", Null{}, "null"},
		{"empty list", List{}, "[]"},
		{"empty object", Object{}, "{}"},
		{"plain go map", map[string]any{"b": 1, "a": "x"}, `{"a":"x","b":1}`},
		{"no html escaping", String("<tisch & stuhl>"), `"<tisch & stuhl>"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(got))
		})
	}
}

func TestMarshalCanonicalNestedSortedKeys(t *testing.T) {
	obj := Object{
		"z": Object{"b": Int(1), "a": Int(2)},
		"a": Int(3),
	}
	got, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"a":3,"z":{"a":2,"b":1}}`, string(got))
}

func TestMarshalCanonicalNFC(t *testing.T) {
	decomposed := String("fu\u0308r")
	precomposed := String("f\u00fcr")

	a, err := MarshalCanonical(decomposed)
	require.NoError(t, err)
	b, err := MarshalCanonical(precomposed)
	require.NoError(t, err)
	assert.Equal(t, string(b), string(a))
}

func TestMarshalCanonicalLineSeparators(t *testing.T) {
	got, err := MarshalCanonical(String("a\u2028b"))
	require.NoError(t, err)
	assert.Equal(t, "\"a\u2028b\"", string(got))

	// A literal backslash followed by the text u2028 stays as text.
	got, err = MarshalCanonical(String(`a\u2028b`))
	require.NoError(t, err)
	assert.Equal(t, `"a\\u2028b"`, string(got))
}

func TestMarshalCanonicalUnsupported(t *testing.T) {
	_, err := MarshalCanonical(struct{}{})
	assert.Error(t, err)
}
