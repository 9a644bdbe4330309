// Package txn accumulates the field updates of one cascade and commits them
// to storage in per-model batches.
//
// A Transaction is an in-process batch, not a storage transaction: each
// model group is applied atomically by the storage collaborator, and a
// failing group does not roll back groups already applied.
package txn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/cascade/internal/ir"
)

// Applier writes one model group of operations. Implemented by
// *store.Store.
type Applier interface {
	ApplyBatch(ctx context.Context, batch ir.OperationBatch) ([]ir.OperationResult, error)
}

// Option configures a Transaction.
type Option func(*Transaction)

// WithOptimisticLocking makes every committed operation carry the record
// version first observed in the transaction.
func WithOptimisticLocking(enabled bool) Option {
	return func(t *Transaction) {
		t.locking = enabled
	}
}

// Sequencer hands out operation sequence numbers. Implemented by *Clock.
type Sequencer interface {
	Next() int64
}

// WithClock replaces the transaction's own clock, e.g. with one shared by
// every transaction of a test scenario.
func WithClock(c Sequencer) Option {
	return func(t *Transaction) {
		t.clock = c
	}
}

// Transaction is an ordered list of pending operations plus the acting user.
//
// Thread-safety: safe for concurrent use, though one cascade drives it
// sequentially.
type Transaction struct {
	ID     string
	UserID string

	clock   Sequencer
	locking bool

	mu       sync.Mutex
	ops      []ir.Operation
	pending  map[recordKey]ir.IRObject // merged updates per record
	observed map[recordKey]int64
}

type recordKey struct {
	modelID  string
	recordID string
}

// New creates an empty transaction.
func New(id, userID string, opts ...Option) *Transaction {
	t := &Transaction{
		ID:       id,
		UserID:   userID,
		clock:    NewClock(),
		pending:  make(map[recordKey]ir.IRObject),
		observed: make(map[recordKey]int64),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// AddOperation appends an operation, stamped with the next sequence
// number. Duplicates for the same record are legal; later updates win per
// field at commit.
func (t *Transaction) AddOperation(op ir.Operation) ir.Operation {
	t.mu.Lock()
	defer t.mu.Unlock()

	op.Seq = t.clock.Next()
	op.Updates = op.Updates.Clone()
	t.ops = append(t.ops, op)

	k := recordKey{op.ModelID, op.RecordID}
	merged, ok := t.pending[k]
	if !ok {
		merged = ir.IRObject{}
		t.pending[k] = merged
	}
	merged.Merge(op.Updates)
	return op
}

// Operations returns the pending operations in the order they were added.
func (t *Transaction) Operations() []ir.Operation {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]ir.Operation(nil), t.ops...)
}

// Len returns the number of pending operations.
func (t *Transaction) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.ops)
}

// Pending returns the merged pending updates for one record, or nil.
func (t *Transaction) Pending(modelID, recordID string) ir.IRObject {
	t.mu.Lock()
	defer t.mu.Unlock()

	merged, ok := t.pending[recordKey{modelID, recordID}]
	if !ok {
		return nil
	}
	return merged.Clone()
}

// Patch returns copies of records with every pending update of the same
// (model, record) overlaid in order, so readers see in-flight values.
func (t *Transaction) Patch(modelID string, records []ir.Record) []ir.Record {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]ir.Record, len(records))
	for i, rec := range records {
		out[i] = rec.Clone()
		if merged, ok := t.pending[recordKey{modelID, rec.ID}]; ok {
			out[i].Fields.Merge(merged)
		}
	}
	return out
}

// Observe remembers the version a record had when first read. Later
// observations of the same record are ignored.
func (t *Transaction) Observe(modelID, recordID string, version int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	k := recordKey{modelID, recordID}
	if _, ok := t.observed[k]; !ok {
		t.observed[k] = version
	}
}

// FailedOperation is an operation storage did not apply.
type FailedOperation struct {
	Op  ir.Operation
	Err error
}

// Result reports what Process applied.
type Result struct {
	Applied []ir.Operation
	Failed  []FailedOperation
}

// Process commits the pending operations, one storage batch per model in
// order of first appearance. Operations for the same record are merged
// into one (first sequence number, later fields win).
//
// Failures never hide successes: the result lists both, and the returned
// error joins every failure (nil when everything applied).
func (t *Transaction) Process(ctx context.Context, applier Applier) (Result, error) {
	groups, order := t.groups()

	var result Result
	var errs []error
	for _, modelID := range order {
		batch := ir.OperationBatch{
			TxnID:   t.ID,
			UserID:  t.UserID,
			ModelID: modelID,
			Ops:     groups[modelID],
		}

		results, err := applier.ApplyBatch(ctx, batch)
		if err != nil {
			slog.Error("operation batch failed",
				"txn_id", t.ID,
				"model_id", modelID,
				"operations", len(batch.Ops),
				"error", err)
			for _, op := range batch.Ops {
				result.Failed = append(result.Failed, FailedOperation{Op: op, Err: err})
			}
			errs = append(errs, fmt.Errorf("apply %s batch: %w", modelID, err))
			continue
		}

		for _, r := range results {
			if r.Err != nil {
				slog.Warn("operation not applied",
					"txn_id", t.ID,
					"model_id", r.Op.ModelID,
					"record_id", r.Op.RecordID,
					"error", r.Err)
				result.Failed = append(result.Failed, FailedOperation{Op: r.Op, Err: r.Err})
				errs = append(errs, fmt.Errorf("apply %s/%s: %w", r.Op.ModelID, r.Op.RecordID, r.Err))
				continue
			}
			result.Applied = append(result.Applied, r.Op)
		}
	}

	return result, errors.Join(errs...)
}

// groups merges pending operations per record and groups them by model.
func (t *Transaction) groups() (map[string][]ir.Operation, []string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	groups := make(map[string][]ir.Operation)
	var order []string
	index := make(map[recordKey]int)

	for _, op := range t.ops {
		k := recordKey{op.ModelID, op.RecordID}
		if i, ok := index[k]; ok {
			groups[op.ModelID][i].Updates.Merge(op.Updates)
			continue
		}
		if _, ok := groups[op.ModelID]; !ok {
			order = append(order, op.ModelID)
		}

		merged := op
		merged.Updates = op.Updates.Clone()
		if t.locking {
			merged.BaseVersion = t.observed[k]
		}
		index[k] = len(groups[op.ModelID])
		groups[op.ModelID] = append(groups[op.ModelID], merged)
	}
	return groups, order
}
