package formula

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cascade/internal/ir"
)

func TestReferences(t *testing.T) {
	assert.Equal(t, []string{"price", "quantity"}, References("{price} * {quantity} + {price}"))
	assert.Equal(t, []string{"Total Price"}, References("round({ Total Price }, 2)"))
	assert.Nil(t, References("1 + 2"))
}

func TestExecute_Arithmetic(t *testing.T) {
	e := NewEvaluator()
	record := ir.IRObject{"price": ir.IRNumber(120), "quantity": ir.IRNumber(3)}

	got, ok, err := e.Execute(context.Background(), "{price} * {quantity}", record, nil)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ir.IRNumber(360), got)
}

func TestExecute_FieldNamesWithSpaces(t *testing.T) {
	e := NewEvaluator()
	record := ir.IRObject{"Total Price": ir.IRNumber(10), "nights": ir.IRNumber(3)}

	got, ok, err := e.Execute(context.Background(), "round({Total Price} / {nights}, 2)", record, nil)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ir.IRNumber(3.33), got)
}

func TestExecute_Ternary(t *testing.T) {
	e := NewEvaluator()

	got, ok, err := e.Execute(context.Background(), `{total} > 100 ? "large" : "small"`, ir.IRObject{"total": ir.IRNumber(425)}, nil)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ir.IRString("large"), got)
}

func TestExecute_Concat(t *testing.T) {
	e := NewEvaluator()
	record := ir.IRObject{"code": ir.IRString("KL"), "number": ir.IRNumber(1001)}

	got, ok, err := e.Execute(context.Background(), `concat({code}, "-", {number})`, record, nil)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ir.IRString("KL-1001"), got)
}

func TestExecute_DivisionByZeroIsNaN(t *testing.T) {
	e := NewEvaluator()
	record := ir.IRObject{"a": ir.IRNumber(0), "b": ir.IRNumber(0)}

	got, ok, err := e.Execute(context.Background(), "{a} / {b}", record, nil)
	require.NoError(t, err)
	require.True(t, ok)
	n, isNum := got.(ir.IRNumber)
	require.True(t, isNum)
	assert.True(t, math.IsNaN(float64(n)))
}

func TestExecute_UnknownActiveField(t *testing.T) {
	e := NewEvaluator()

	_, _, err := e.Execute(context.Background(), "{price} * 2", ir.IRObject{"price": ir.IRNumber(1)}, []string{"quantity"})
	assert.ErrorContains(t, err, `unknown field "price"`)
}

func TestExecute_CoalesceUndefined(t *testing.T) {
	e := NewEvaluator()

	got, ok, err := e.Execute(context.Background(), "coalesce({nickname}, {name})", ir.IRObject{"name": ir.IRString("Ada")}, nil)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ir.IRString("Ada"), got)

	_, ok, err = e.Execute(context.Background(), "coalesce({nickname})", ir.IRObject{}, nil)
	require.NoError(t, err)
	assert.False(t, ok, "nil result means undefined")
}

func TestExecute_Len(t *testing.T) {
	e := NewEvaluator()
	record := ir.IRObject{"tags": ir.IRArray{ir.IRString("a"), ir.IRString("b")}}

	got, ok, err := e.Execute(context.Background(), "len({tags})", record, nil)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ir.IRNumber(2), got)
}

func TestCompile_ParseError(t *testing.T) {
	e := NewEvaluator()
	assert.Error(t, e.Compile("({price} * 2"))
	assert.NoError(t, e.Compile("{price} * 2"))
}

func TestExecute_CachesPrograms(t *testing.T) {
	e := NewEvaluator()
	require.NoError(t, e.Compile("{a} + 1"))
	require.NoError(t, e.Compile("{a} + 1"))
	assert.Len(t, e.compiled, 1)
}
