package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cascade/internal/ir"
)

func TestWorklist_FIFO(t *testing.T) {
	w := newWorklist()

	for _, id := range []string{"A", "B", "C"} {
		merged := w.push(task{modelID: "Invoice", recordID: id})
		require.False(t, merged)
	}
	assert.Equal(t, 3, w.Len())

	for _, want := range []string{"A", "B", "C"} {
		got, ok := w.pop()
		require.True(t, ok)
		assert.Equal(t, want, got.recordID)
	}
}

func TestWorklist_PopEmpty(t *testing.T) {
	w := newWorklist()

	_, ok := w.pop()
	assert.False(t, ok, "pop from empty worklist should return false")
}

func TestWorklist_CoalescesSameRecord(t *testing.T) {
	w := newWorklist()

	w.push(task{modelID: "Invoice", recordID: "i1", changes: ir.IRObject{"a": ir.IRNumber(1)}, touched: []string{"flights"}, depth: 3})
	w.push(task{modelID: "Flight", recordID: "f1"})
	merged := w.push(task{
		modelID:  "Invoice",
		recordID: "i1",
		changes:  ir.IRObject{"a": ir.IRNumber(2), "b": ir.IRString("x")},
		touched:  []string{"flights", "other"},
		full:     true,
		depth:    1,
	})

	require.True(t, merged)
	assert.Equal(t, 2, w.Len())
	assert.Equal(t, 1, w.coalesced)

	got, _ := w.pop()
	assert.Equal(t, "i1", got.recordID, "merged task keeps its queue position")
	assert.Equal(t, ir.IRObject{"a": ir.IRNumber(2), "b": ir.IRString("x")}, got.changes, "later change wins")
	assert.Equal(t, []string{"flights", "other"}, got.touched)
	assert.True(t, got.full)
	assert.Equal(t, 1, got.depth, "shallower depth wins")
}

func TestWorklist_PoppedRecordQueuesAgain(t *testing.T) {
	w := newWorklist()

	w.push(task{modelID: "Invoice", recordID: "i1"})
	w.pop()

	merged := w.push(task{modelID: "Invoice", recordID: "i1"})
	assert.False(t, merged, "only pending tasks are coalesced")
	assert.Equal(t, 1, w.Len())
}

func TestWorklist_SameIDDifferentModel(t *testing.T) {
	w := newWorklist()

	w.push(task{modelID: "Invoice", recordID: "x"})
	merged := w.push(task{modelID: "Flight", recordID: "x"})

	assert.False(t, merged)
	assert.Equal(t, 2, w.Len())
}

func TestWorklist_PushCopiesInputs(t *testing.T) {
	w := newWorklist()
	changes := ir.IRObject{"a": ir.IRNumber(1)}
	touched := []string{"flights"}

	w.push(task{modelID: "Invoice", recordID: "i1", changes: changes, touched: touched})
	changes["a"] = ir.IRNumber(99)
	touched[0] = "mutated"

	got, _ := w.pop()
	assert.Equal(t, ir.IRNumber(1), got.changes["a"])
	assert.Equal(t, []string{"flights"}, got.touched)
}

func TestWorklist_PendingDiffers(t *testing.T) {
	w := newWorklist()
	w.push(task{modelID: "Invoice", recordID: "i1", changes: ir.IRObject{"total": ir.IRNumber(5)}})

	assert.False(t, w.pendingDiffers("Invoice", "i1", "total", ir.IRNumber(5)))
	assert.True(t, w.pendingDiffers("Invoice", "i1", "total", ir.IRNumber(6)))
	assert.False(t, w.pendingDiffers("Invoice", "i1", "other", ir.IRNumber(6)), "no pending value for field")
	assert.False(t, w.pendingDiffers("Invoice", "i2", "total", ir.IRNumber(6)), "no pending task")
}
