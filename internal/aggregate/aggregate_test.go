package aggregate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cascade/internal/ir"
)

func nums(vals ...float64) []ir.IRValue {
	out := make([]ir.IRValue, len(vals))
	for i, v := range vals {
		out[i] = ir.IRNumber(v)
	}
	return out
}

func intp(n int) *int { return &n }

func TestApply_Numeric(t *testing.T) {
	values := append(nums(100, 200, 50), ir.IRNull{}, nil, ir.IRString("25"), ir.IRString("n/a"))

	tests := []struct {
		op   Op
		want ir.IRValue
	}{
		{Sum, ir.IRNumber(375)},
		{Average, ir.IRNumber(93.75)},
		{Count, ir.IRNumber(4)},
		{Min, ir.IRNumber(25)},
		{Max, ir.IRNumber(200)},
	}

	for _, tt := range tests {
		t.Run(string(tt.op), func(t *testing.T) {
			got, err := Apply(context.Background(), tt.op, values, Options{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestApply_NumericEmptyIsZero(t *testing.T) {
	for _, op := range []Op{Sum, Average, Count, Min, Max} {
		got, err := Apply(context.Background(), op, nil, Options{})
		require.NoError(t, err)
		assert.Equal(t, ir.IRNumber(0), got, string(op))
	}
}

func TestApply_Precision(t *testing.T) {
	got, err := Apply(context.Background(), Average, nums(1, 2, 2), Options{Precision: intp(2)})
	require.NoError(t, err)
	assert.Equal(t, ir.IRNumber(1.67), got)

	got, err = Apply(context.Background(), Sum, nums(0.1, 0.2), Options{Precision: intp(1)})
	require.NoError(t, err)
	assert.Equal(t, ir.IRNumber(0.3), got)
}

func TestApply_FlattensLookupLists(t *testing.T) {
	values := []ir.IRValue{ir.IRArray{ir.IRNumber(1), ir.IRNumber(2)}, ir.IRNumber(3)}
	got, err := Apply(context.Background(), Sum, values, Options{})
	require.NoError(t, err)
	assert.Equal(t, ir.IRNumber(6), got)
}

func TestApply_Concatenate(t *testing.T) {
	values := []ir.IRValue{ir.IRString("AMS"), ir.IRNull{}, ir.IRNumber(12.5), ir.IRBool(true), nil}
	got, err := Apply(context.Background(), Concatenate, values, Options{})
	require.NoError(t, err)
	assert.Equal(t, ir.IRString("AMS, 12.5, true"), got)
}

func TestApply_ListKeepsAbsentValues(t *testing.T) {
	values := []ir.IRValue{ir.IRString("a"), nil, ir.IRNumber(1)}
	got, err := Apply(context.Background(), List, values, Options{})
	require.NoError(t, err)
	assert.Equal(t, ir.IRArray{ir.IRString("a"), ir.IRNull{}, ir.IRNumber(1)}, got)
}

func TestApply_ListNames(t *testing.T) {
	names := StaticNames{"u1": "Ada", "u2": "Grace"}
	values := []ir.IRValue{ir.IRString("u1"), ir.IRArray{ir.IRString("u2"), ir.IRString("u9")}, ir.IRNull{}}

	got, err := Apply(context.Background(), ListNames, values, Options{Names: names})
	require.NoError(t, err)
	assert.Equal(t, ir.IRArray{ir.IRString("Ada"), ir.IRString("Grace"), ir.IRString("u9")}, got)
}

type failingNames struct{}

func (failingNames) ResolveNames(context.Context, []string) (map[string]string, error) {
	return nil, errors.New("directory offline")
}

func TestApply_ListNamesResolverError(t *testing.T) {
	_, err := Apply(context.Background(), ListNames, []ir.IRValue{ir.IRString("u1")}, Options{Names: failingNames{}})
	assert.ErrorContains(t, err, "directory offline")
}

func TestApply_UnknownOp(t *testing.T) {
	_, err := Apply(context.Background(), Op("MEDIAN"), nil, Options{})
	assert.Error(t, err)
}

func TestParseOp(t *testing.T) {
	op, err := ParseOp("sum")
	require.NoError(t, err)
	assert.Equal(t, Sum, op)

	_, err = ParseOp("median")
	assert.Error(t, err)
}

func TestOpEmpty(t *testing.T) {
	assert.Equal(t, ir.IRNumber(0), Sum.Empty())
	assert.Equal(t, ir.IRString(""), Concatenate.Empty())
	assert.Equal(t, ir.IRString(""), ListNames.Empty())
}
