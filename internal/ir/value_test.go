package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIRValueSealed(t *testing.T) {
	var _ IRValue = IRNull{}
	var _ IRValue = IRString("test")
	var _ IRValue = IRNumber(42.5)
	var _ IRValue = IRBool(true)
	var _ IRValue = IRArray{IRString("a"), IRNumber(1)}
	var _ IRValue = IRObject{"key": IRString("value")}
}

func TestIRObjectSortedKeys(t *testing.T) {
	obj := IRObject{
		"a":  IRNumber(1),
		"A":  IRNumber(2),
		"aa": IRNumber(3),
		"Aa": IRNumber(5),
		"AA": IRNumber(6),
	}

	assert.Equal(t, []string{"A", "AA", "Aa", "a", "aa"}, obj.SortedKeys())
}

func TestIRObjectCloneIsolated(t *testing.T) {
	orig := IRObject{"price": IRNumber(100)}
	clone := orig.Clone()
	clone["price"] = IRNumber(200)

	assert.Equal(t, IRNumber(100), orig["price"])
	assert.NotNil(t, IRObject(nil).Clone(), "cloning nil yields an empty map")
}

func TestIRObjectMerge(t *testing.T) {
	obj := IRObject{"a": IRNumber(1), "b": IRNumber(2)}
	obj.Merge(IRObject{"b": IRNumber(3), "c": IRString("x")})

	assert.Equal(t, IRObject{"a": IRNumber(1), "b": IRNumber(3), "c": IRString("x")}, obj)
}

func TestIRObjectJSONRoundTrip(t *testing.T) {
	obj := IRObject{
		"name":    IRString("Invoice 7"),
		"total":   IRNumber(425.75),
		"paid":    IRBool(false),
		"note":    IRNull{},
		"flights": IRArray{IRString("f-1"), IRString("f-2")},
	}

	data, err := json.Marshal(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"flights":["f-1","f-2"],"name":"Invoice 7","note":null,"paid":false,"total":425.75}`, string(data))

	var decoded IRObject
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, obj, decoded)
}

func TestRecordClone(t *testing.T) {
	rec := Record{ID: "r1", ModelID: "Invoice", Fields: IRObject{"total": IRNumber(1)}, Version: 3}
	clone := rec.Clone()
	clone.Fields["total"] = IRNumber(2)

	assert.Equal(t, IRNumber(1), rec.Fields["total"])
	assert.Equal(t, int64(3), clone.Version)
}

func TestParseLiteral(t *testing.T) {
	tests := []struct {
		in   string
		want IRValue
	}{
		{"425", IRNumber(425)},
		{"12.5", IRNumber(12.5)},
		{"true", IRBool(true)},
		{"null", IRNull{}},
		{`"quoted"`, IRString("quoted")},
		{"plain text", IRString("plain text")},
		{"123abc", IRString("123abc")},
		{`["a",1]`, IRArray{IRString("a"), IRNumber(1)}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLiteral(tt.in))
		})
	}
}

func TestFromGoAndToGo(t *testing.T) {
	v, err := FromGo(map[string]any{"n": 3, "s": "x", "l": []any{true, nil}})
	require.NoError(t, err)
	assert.Equal(t, IRObject{"n": IRNumber(3), "s": IRString("x"), "l": IRArray{IRBool(true), IRNull{}}}, v)

	back := ToGo(v)
	assert.Equal(t, map[string]any{"n": float64(3), "s": "x", "l": []any{true, nil}}, back)

	_, err = FromGo(struct{}{})
	assert.Error(t, err)
}
