package engine

import (
	"slices"

	"github.com/roach88/cascade/internal/ir"
)

// task is one unit of propagation: a record, the values to write into it,
// and the fields known to be dirty.
type task struct {
	modelID  string
	recordID string

	// record, when set, is used instead of fetching (seed tasks).
	record *ir.Record

	// changes are written into the record when they differ from its
	// current value.
	changes ir.IRObject

	// touched fields are dirty without a new value (link fields after a
	// link was created or removed).
	touched []string

	// full recomputes every computed field.
	full bool

	depth int
}

type taskKey struct {
	modelID  string
	recordID string
}

// worklist is the FIFO of pending tasks for one cascade.
//
// A task pushed while another task for the same record is still pending
// is coalesced into it: changes merge (later wins), touched fields union,
// and the shallower depth is kept. The record is then visited once with
// the combined dirty set.
//
// Not safe for concurrent use; one cascade runs on one goroutine.
type worklist struct {
	tasks     []*task
	pending   map[taskKey]*task
	coalesced int
}

func newWorklist() *worklist {
	return &worklist{
		tasks:   make([]*task, 0, 16),
		pending: make(map[taskKey]*task),
	}
}

// push appends t, or merges it into the pending task for the same record.
// Reports whether it was merged.
func (w *worklist) push(t task) bool {
	k := taskKey{t.modelID, t.recordID}
	if p, ok := w.pending[k]; ok {
		if len(t.changes) > 0 {
			if p.changes == nil {
				p.changes = ir.IRObject{}
			}
			p.changes.Merge(t.changes)
		}
		for _, f := range t.touched {
			if !slices.Contains(p.touched, f) {
				p.touched = append(p.touched, f)
			}
		}
		p.full = p.full || t.full
		p.depth = min(p.depth, t.depth)
		w.coalesced++
		return true
	}

	nt := t
	nt.changes = t.changes.Clone()
	nt.touched = slices.Clone(t.touched)
	w.tasks = append(w.tasks, &nt)
	w.pending[k] = &nt
	return false
}

// pop removes and returns the front task.
func (w *worklist) pop() (*task, bool) {
	if len(w.tasks) == 0 {
		return nil, false
	}
	t := w.tasks[0]
	w.tasks[0] = nil
	if len(w.tasks) == 1 {
		w.tasks = w.tasks[:0]
	} else {
		w.tasks = w.tasks[1:]
	}
	delete(w.pending, taskKey{t.modelID, t.recordID})
	return t, true
}

// Len returns the number of pending tasks.
func (w *worklist) Len() int {
	return len(w.tasks)
}

// pendingDiffers reports whether a pending task for the record would
// write a value other than v into fieldID.
func (w *worklist) pendingDiffers(modelID, recordID, fieldID string, v ir.IRValue) bool {
	p, ok := w.pending[taskKey{modelID, recordID}]
	if !ok {
		return false
	}
	pv, ok := p.changes[fieldID]
	return ok && !ir.Equal(pv, v)
}
