package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/cascade/internal/cache"
	"github.com/roach88/cascade/internal/ir"
	"github.com/roach88/cascade/internal/linkstore"
	"github.com/roach88/cascade/internal/schema"
	"github.com/roach88/cascade/internal/store"
	"github.com/roach88/cascade/internal/txn"
)

// Result is the outcome of an orchestrator call.
type Result struct {
	TransactionID string
	Applied       []ir.Operation
	Failed        []txn.FailedOperation
	Warnings      []*RuntimeError
}

// Err joins the storage failures of the commit, nil if everything applied.
func (r Result) Err() error {
	errs := make([]error, 0, len(r.Failed))
	for _, f := range r.Failed {
		errs = append(errs, fmt.Errorf("%s/%s: %w", f.Op.ModelID, f.Op.RecordID, f.Err))
	}
	return errors.Join(errs...)
}

// operation is one orchestrator call: its scope, transaction and warnings.
type operation struct {
	scope    *cache.Scope
	tx       *txn.Transaction
	warnings []*RuntimeError
}

func (e *Engine) begin(bulk bool, userID string) *operation {
	token := e.tokens.Generate()
	scopeID := operationScopeID(token)
	if bulk {
		scopeID = bulkScopeID(token)
	}
	return &operation{
		scope: e.caches.Open(scopeID),
		tx:    e.NewTransaction(token, userID),
	}
}

func (op *operation) warn(w *RuntimeError) {
	op.warnings = append(op.warnings, w)
}

// propagate runs one cascade seeded with seeds inside op.
func (e *Engine) propagate(ctx context.Context, op *operation, seeds ...task) {
	c := e.newCascade(op.tx, op.scope)
	e.run(ctx, c, seeds...)
	op.warnings = append(op.warnings, c.warnings...)
}

// commit applies the transaction and releases the scope.
func (e *Engine) commit(ctx context.Context, op *operation) Result {
	defer e.caches.Dispose(op.scope.ID())

	res := Result{
		TransactionID: op.tx.ID,
		Applied:       []ir.Operation{},
		Warnings:      op.warnings,
	}
	if op.tx.Len() == 0 {
		return res
	}

	processed, err := op.tx.Process(ctx, e.records)
	res.Applied = append(res.Applied, processed.Applied...)
	res.Failed = processed.Failed
	e.metrics.OperationsApplied.Add(float64(len(processed.Applied)))
	e.metrics.OperationsFailed.Add(float64(len(processed.Failed)))

	if err != nil {
		slog.Error("transaction partially applied",
			"txn_id", op.tx.ID,
			"scope_id", op.scope.ID(),
			"applied", len(processed.Applied),
			"failed", len(processed.Failed),
			"error", err)
		for _, f := range processed.Failed {
			if errors.Is(f.Err, store.ErrVersionConflict) {
				res.Warnings = append(res.Warnings, NewConflictError(op.scope.ID(), f.Op.ModelID, f.Op.RecordID, f.Err))
			} else {
				res.Warnings = append(res.Warnings, NewStorageError(op.scope.ID(), f.Op.ModelID, f.Err))
			}
		}
	}

	stats := op.scope.Stats()
	slog.Info("transaction committed",
		"txn_id", op.tx.ID,
		"user_id", op.tx.UserID,
		"applied", len(res.Applied),
		"failed", len(res.Failed),
		"warnings", len(res.Warnings),
		"cache_hits", stats.Hits,
		"cache_misses", stats.Misses)
	return res
}

// UpdateOneDeep writes changes into one record and propagates them.
//
// Changes to link fields are ignored (links live in the link table) and
// changes to computed fields are ignored (the engine owns them); both are
// reported as warnings. Nil changes recompute the record from scratch.
func (e *Engine) UpdateOneDeep(ctx context.Context, modelID, recordID string, changes ir.IRObject, userID string) Result {
	op := e.begin(false, userID)

	model, ok := e.registry.Model(modelID)
	if !ok {
		slog.Warn("update of unknown model", "model_id", modelID, "record_id", recordID)
		op.warn(NewResolutionError(op.scope.ID(), modelID, recordID, "unknown model"))
		return e.commit(ctx, op)
	}

	var writable ir.IRObject
	if changes != nil {
		writable = ir.IRObject{}
		for _, k := range changes.SortedKeys() {
			if f, ok := model.Field(k); ok && (schema.IsComputed(f) || f.Kind() == schema.KindLink) {
				slog.Warn("ignoring write to engine-owned field",
					"model_id", modelID,
					"record_id", recordID,
					"field_id", k,
					"kind", f.Kind().String())
				op.warn(&RuntimeError{
					Code:     ErrCodeResolutionFailed,
					Message:  fmt.Sprintf("%s field cannot be written directly", f.Kind()),
					ScopeID:  op.scope.ID(),
					ModelID:  modelID,
					RecordID: recordID,
					FieldID:  k,
				})
				continue
			}
			writable[k] = changes[k]
		}
	}

	c := e.newCascade(op.tx, op.scope)
	recs, err := e.fetch(ctx, c, modelID, []string{recordID})
	op.warnings = append(op.warnings, c.warnings...)
	if err != nil {
		return e.commit(ctx, op)
	}
	if len(recs) == 0 {
		slog.Warn("update of missing record", "model_id", modelID, "record_id", recordID)
		op.warn(NewResolutionError(op.scope.ID(), modelID, recordID, "record not found"))
		return e.commit(ctx, op)
	}

	op.warnings = append(op.warnings, e.ComputeTransactionToUpdate(ctx, recs[0], writable, op.tx, op.scope)...)
	return e.commit(ctx, op)
}

// UpdateManyDeep recomputes the given records of a model against one
// pre-warmed cache scope and commits once.
func (e *Engine) UpdateManyDeep(ctx context.Context, modelID string, ids []string, userID string) Result {
	op := e.begin(true, userID)
	if _, ok := e.registry.Model(modelID); !ok {
		op.warn(NewResolutionError(op.scope.ID(), modelID, "", "unknown model"))
		return e.commit(ctx, op)
	}

	e.prewarm(ctx, op, modelID)
	e.recomputeAll(ctx, op, modelID, ids)
	return e.commit(ctx, op)
}

// UpdateAllDeep recomputes every record of a model.
func (e *Engine) UpdateAllDeep(ctx context.Context, modelID string, userID string) Result {
	op := e.begin(true, userID)
	if _, ok := e.registry.Model(modelID); !ok {
		op.warn(NewResolutionError(op.scope.ID(), modelID, "", "unknown model"))
		return e.commit(ctx, op)
	}

	e.prewarm(ctx, op, modelID)
	recs, err := e.records.Find(ctx, modelID, nil)
	if err != nil {
		slog.Error("listing records failed", "model_id", modelID, "error", err)
		op.warn(NewStorageError(op.scope.ID(), modelID, err))
		return e.commit(ctx, op)
	}
	ids := make([]string, len(recs))
	for i, r := range recs {
		ids[i] = r.ID
	}
	e.recomputeAll(ctx, op, modelID, ids)
	return e.commit(ctx, op)
}

// recomputeAll runs one full-recompute cascade per record, in order.
// A cascade that fails stops on its own; its siblings still run.
func (e *Engine) recomputeAll(ctx context.Context, op *operation, modelID string, ids []string) {
	for _, id := range ids {
		c := e.newCascade(op.tx, op.scope)
		recs, err := e.fetch(ctx, c, modelID, []string{id})
		op.warnings = append(op.warnings, c.warnings...)
		if err != nil {
			continue
		}
		if len(recs) == 0 {
			op.warn(NewResolutionError(op.scope.ID(), modelID, id, "record not found"))
			continue
		}
		op.warnings = append(op.warnings, e.ComputeTransactionToUpdate(ctx, recs[0], nil, op.tx, op.scope)...)
	}
}

// prewarm loads every record of every model connected to modelID into the
// bulk scope, one query per model.
func (e *Engine) prewarm(ctx context.Context, op *operation, modelID string) {
	for _, m := range e.GetConnectedModels(modelID) {
		recs, err := e.records.Find(ctx, m, nil)
		if err != nil {
			slog.Error("cache prewarm failed", "scope_id", op.scope.ID(), "model_id", m, "error", err)
			op.warn(NewStorageError(op.scope.ID(), m, err))
			continue
		}
		op.scope.Warm(m, recs)
		slog.Debug("cache prewarmed",
			"scope_id", op.scope.ID(),
			"model_id", m,
			"records", len(recs))
	}
}

// GetConnectedModels returns every model whose change can cascade into
// modelID or the other way round, starting with modelID.
func (e *Engine) GetConnectedModels(modelID string) []string {
	return e.registry.ConnectedModels(modelID)
}

// UpdateLink recomputes both endpoints of a link that was just created or
// removed. Call it after the link table changed.
func (e *Engine) UpdateLink(ctx context.Context, link ir.Link, userID string) Result {
	op := e.begin(false, userID)

	seeds := []task{{modelID: link.ModelX, recordID: link.RecordX, touched: []string{link.FieldX}}}
	if link.FieldY != "" {
		seeds = append(seeds, task{modelID: link.ModelY, recordID: link.RecordY, touched: []string{link.FieldY}})
	}

	e.propagate(ctx, op, seeds...)
	return e.commit(ctx, op)
}

// UpdateForeignRecords corrects the records that were linked to a deleted
// record. links are the deleted record's links as they were before the
// deletion; nil reads them from the link table. The deleted record is
// marked deleted in the scope so it is never fetched again.
func (e *Engine) UpdateForeignRecords(ctx context.Context, modelID, recordID string, links []linkstore.LinkRef, userID string) Result {
	op := e.begin(false, userID)
	e.propagate(ctx, op, e.foreignSeeds(ctx, op, modelID, recordID, links)...)
	return e.commit(ctx, op)
}

// UpdateForeignRecordsForMultipleRecords is UpdateForeignRecords for a set
// of deleted records of one model, committed once.
func (e *Engine) UpdateForeignRecordsForMultipleRecords(ctx context.Context, modelID string, recordIDs []string, userID string) Result {
	op := e.begin(false, userID)
	for _, id := range recordIDs {
		op.scope.MarkDeleted(modelID, id)
	}

	var seeds []task
	for _, id := range recordIDs {
		seeds = append(seeds, e.foreignSeeds(ctx, op, modelID, id, nil)...)
	}
	e.propagate(ctx, op, seeds...)
	return e.commit(ctx, op)
}

func (e *Engine) foreignSeeds(ctx context.Context, op *operation, modelID, recordID string, links []linkstore.LinkRef) []task {
	op.scope.MarkDeleted(modelID, recordID)
	if links == nil {
		links = e.links.GetLinks(ctx, modelID, recordID)
	}

	seeds := make([]task, 0, len(links))
	for _, l := range links {
		if op.scope.IsDeleted(l.ModelID, l.RecordID) {
			continue
		}
		// A neighbour without a field on its side cannot see the link.
		if l.ForeignFieldID == "" {
			continue
		}
		seeds = append(seeds, task{modelID: l.ModelID, recordID: l.RecordID, touched: []string{l.ForeignFieldID}})
	}
	return seeds
}
