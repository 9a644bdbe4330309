package ir

import (
	"math"
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
		{"string", IRString("hello"), `"hello"`},
		{"empty string", IRString(""), `""`},
		{"integral number", IRNumber(42), "42"},
		{"negative number", IRNumber(-100), "-100"},
		{"zero", IRNumber(0), "0"},
		{"fraction", IRNumber(12.5), "12.5"},
		{"large", IRNumber(1e21), "1e+21"},
		{"bool true", IRBool(true), "true"},
		{"null", IRNull{}, "null"},
		{"empty array", IRArray{}, "[]"},
		{"empty object", IRObject{}, "{}"},
		{"array", IRArray{IRNumber(1), IRString("a"), IRNull{}}, `[1,"a",null]`},
		{"go map", map[string]any{"b": 1, "a": "x"}, `{"a":"x","b":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalSortedKeys(t *testing.T) {
	obj := IRObject{
		"zebra": IRNumber(1),
		"alpha": IRNumber(2),
		"beta":  IRObject{"d": IRNumber(1), "c": IRNumber(2)},
	}

	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":2,"beta":{"c":2,"d":1},"zebra":1}`, string(result))
}

func TestMarshalCanonicalUTF16Ordering(t *testing.T) {
	// U+E000 vs U+10000: UTF-16 order differs from UTF-8
	obj := IRObject{
		"\uE000":     IRNumber(1),
		"\U00010000": IRNumber(2),
	}

	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, "{\"\U00010000\":2,\"\uE000\":1}", string(result))
}

func TestMarshalCanonicalNoHTMLEscape(t *testing.T) {
	result, err := MarshalCanonical(IRString("<a&b>"))
	require.NoError(t, err)
	assert.Equal(t, `"<a&b>"`, string(result))
}

func TestMarshalCanonicalNFC(t *testing.T) {
	// "e" + combining acute accent normalizes to U+00E9
	decomposed, err := MarshalCanonical(IRString("e\u0301"))
	require.NoError(t, err)
	composed, err := MarshalCanonical(IRString("\u00e9"))
	require.NoError(t, err)
	assert.Equal(t, string(composed), string(decomposed))
}

func TestMarshalCanonicalLineSeparators(t *testing.T) {
	result, err := MarshalCanonical(IRString("a\u2028b"))
	require.NoError(t, err)
	assert.Equal(t, "\"a\u2028b\"", string(result))

	// An escaped backslash followed by the text u2028 stays escaped
	result, err = MarshalCanonical(IRString(`a\u2028`))
	require.NoError(t, err)
	assert.Equal(t, `"a\\u2028"`, string(result))
}

func TestMarshalCanonicalRejectsNaN(t *testing.T) {
	_, err := MarshalCanonical(IRNumber(math.NaN()))
	assert.Error(t, err)

	_, err = MarshalCanonical(IRNumber(math.Inf(1)))
	assert.Error(t, err)
}

func TestIRNumberIsFinite(t *testing.T) {
	assert.True(t, IRNumber(425).IsFinite())
	assert.False(t, IRNumber(math.NaN()).IsFinite())
	assert.False(t, IRNumber(math.Inf(1)).IsFinite())
	assert.False(t, IRNumber(math.Inf(-1)).IsFinite())
}

func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b IRValue
		want bool
	}{
		{"same number", IRNumber(425), IRNumber(425.0), true},
		{"different number", IRNumber(1), IRNumber(2), false},
		{"number vs string", IRNumber(1), IRString("1"), false},
		{"objects ignore key order", IRObject{"a": IRNumber(1), "b": IRBool(true)}, IRObject{"b": IRBool(true), "a": IRNumber(1)}, true},
		{"arrays keep order", IRArray{IRNumber(1), IRNumber(2)}, IRArray{IRNumber(2), IRNumber(1)}, false},
		{"undefined vs null", nil, IRNull{}, false},
		{"undefined vs undefined", nil, nil, true},
		{"NaN never equal", IRNumber(math.NaN()), IRNumber(math.NaN()), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Equal(tt.a, tt.b))
		})
	}
}
