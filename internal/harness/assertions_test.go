package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cascade/internal/engine"
	"github.com/roach88/cascade/internal/ir"
	"github.com/roach88/cascade/internal/store"
	"github.com/roach88/cascade/internal/testutil"
)

// tracedResult returns a result with two steps: a price change that
// cascaded to the invoice, and a step that committed nothing.
func tracedResult() *Result {
	r := NewResult()
	r.AddStep(0, "set", engine.Result{
		TransactionID: "txn-1",
		Applied: []ir.Operation{
			{ModelID: "Flight", RecordID: "f1", Updates: ir.IRObject{"price": ir.IRNumber(150)}},
			{ModelID: "Invoice", RecordID: "i1", Updates: ir.IRObject{
				"totalPrice":   ir.IRNumber(350),
				"totalWithTax": ir.IRNumber(420),
			}},
		},
	})
	r.AddStep(1, "recompute", engine.Result{TransactionID: "txn-2"})
	return r
}

func TestAddStep_Trace(t *testing.T) {
	r := tracedResult()

	require.Len(t, r.Trace, 2)
	assert.Equal(t, "txn-1", r.Trace[0].TransactionID)
	assert.Len(t, r.Trace[0].Operations, 2)
	assert.Empty(t, r.Trace[1].Operations)
	assert.NotNil(t, r.Trace[1].Operations)
	assert.Len(t, r.Operations(-1), 2)
	assert.Nil(t, r.Operations(5))
}

func TestAddStep_Warnings(t *testing.T) {
	r := NewResult()
	r.AddStep(0, "set", engine.Result{
		Warnings: []*engine.RuntimeError{
			{Code: engine.ErrCodeDepthExceeded, ScopeID: "s1", ModelID: "A", RecordID: "a1", FieldID: "out"},
			{Code: engine.ErrCodeStepsExceeded, ModelID: "A", RecordID: "a1"},
		},
	})

	assert.Equal(t, []string{
		"DEPTH_EXCEEDED A/a1.out",
		"STEPS_EXCEEDED A/a1",
	}, r.Trace[0].Warnings)
}

func TestAssertOperationCount(t *testing.T) {
	r := tracedResult()

	assert.NoError(t, assertOperationCount(r, Assertion{Type: AssertOperationCount, Count: 2}))
	assert.NoError(t, assertOperationCount(r, Assertion{Type: AssertOperationCount, Step: testutil.Ptr(1), Count: 0}))

	err := assertOperationCount(r, Assertion{Type: AssertOperationCount, Step: testutil.Ptr(0), Count: 1})
	require.Error(t, err)
	var aerr *AssertionError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, "1 operation(s) in step 0", aerr.Expected)
	assert.Equal(t, "2 operation(s)", aerr.Actual)
	assert.Contains(t, err.Error(), "Full trace:")
	assert.Contains(t, err.Error(), `Invoice/i1 {"totalPrice":350,"totalWithTax":420}`)
}

func TestAssertOperationContains(t *testing.T) {
	r := tracedResult()

	assert.NoError(t, assertOperationContains(r, Assertion{
		Type:   AssertOperationContains,
		Model:  "Invoice",
		ID:     "i1",
		Expect: map[string]any{"totalPrice": 350},
	}))

	err := assertOperationContains(r, Assertion{
		Type:   AssertOperationContains,
		Model:  "Invoice",
		ID:     "i1",
		Expect: map[string]any{"totalPrice": 300},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found in trace")

	err = assertOperationContains(r, Assertion{
		Type:  AssertOperationContains,
		Model: "Invoice",
		ID:    "i1",
		Step:  testutil.Ptr(1),
	})
	assert.Error(t, err, "step 1 touched nothing")
}

func TestAssertNoOperations(t *testing.T) {
	r := tracedResult()

	assert.NoError(t, assertNoOperations(r, Assertion{Type: AssertNoOperations, Step: testutil.Ptr(1)}))
	assert.Error(t, assertNoOperations(r, Assertion{Type: AssertNoOperations, Step: testutil.Ptr(0)}))
}

func TestAssertRecordEquals(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	defer st.Close()

	_, err = st.InsertRecords(ctx, []ir.Record{{
		ID:      "i1",
		ModelID: "Invoice",
		Fields: ir.IRObject{
			"number":     ir.IRString("INV-1"),
			"totalPrice": ir.IRNumber(300),
		},
	}})
	require.NoError(t, err)

	assert.NoError(t, assertRecordEquals(ctx, st, Assertion{
		Model:  "Invoice",
		ID:     "i1",
		Expect: map[string]any{"totalPrice": 300},
	}))

	err = assertRecordEquals(ctx, st, Assertion{
		Model:  "Invoice",
		ID:     "i1",
		Expect: map[string]any{"totalPrice": 350, "carriers": "AF"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "carriers: missing")
	assert.Contains(t, err.Error(), "totalPrice: got 300, want 350")

	err = assertRecordEquals(ctx, st, Assertion{
		Model:  "Invoice",
		ID:     "nope",
		Expect: map[string]any{"totalPrice": 300},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "record not found")
}

func TestEvaluateAssertions(t *testing.T) {
	r := tracedResult()

	errs := EvaluateAssertions(r, []Assertion{
		{Type: AssertOperationCount, Count: 2},
		{Type: AssertNoOperations, Step: testutil.Ptr(0)},
		{Type: AssertRecordEquals, Model: "Invoice", ID: "i1", Expect: map[string]any{"x": 1}},
		{Type: "bogus"},
	}, nil)

	require.Len(t, errs, 3)
	assert.Contains(t, errs[0], "no operations in step 0")
	assert.Contains(t, errs[1], "requires database context")
	assert.Contains(t, errs[2], `unknown assertion type "bogus"`)
}
