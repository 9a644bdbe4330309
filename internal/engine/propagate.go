package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/cascade/internal/aggregate"
	"github.com/roach88/cascade/internal/cache"
	"github.com/roach88/cascade/internal/ir"
	"github.com/roach88/cascade/internal/linkstore"
	"github.com/roach88/cascade/internal/metrics"
	"github.com/roach88/cascade/internal/schema"
	"github.com/roach88/cascade/internal/txn"
)

// cascade is the state of one propagation run.
type cascade struct {
	scope    *cache.Scope
	tx       *txn.Transaction
	quota    *QuotaEnforcer
	work     *worklist
	capped   map[taskKey]bool
	warnings []*RuntimeError
}

func (e *Engine) newCascade(tx *txn.Transaction, scope *cache.Scope) *cascade {
	return &cascade{
		scope:  scope,
		tx:     tx,
		quota:  NewQuotaEnforcer(e.maxSteps),
		work:   newWorklist(),
		capped: make(map[taskKey]bool),
	}
}

func (c *cascade) warn(w *RuntimeError) {
	c.warnings = append(c.warnings, w)
}

// ComputeTransactionToUpdate propagates a change of one record into tx.
//
// changes are written into the record where they differ from its current
// value; nil changes recompute every computed field of the record. Every
// derived field that changes, in this record and transitively in linked
// records, is recorded as an operation on tx. Records are read through
// scope and patched with tx's pending updates.
//
// Problems never abort the call; they are logged and returned as warnings.
func (e *Engine) ComputeTransactionToUpdate(
	ctx context.Context,
	rec ir.Record,
	changes ir.IRObject,
	tx *txn.Transaction,
	scope *cache.Scope,
) []*RuntimeError {
	c := e.newCascade(tx, scope)
	seed := rec.Clone()
	e.run(ctx, c, task{
		modelID:  rec.ModelID,
		recordID: rec.ID,
		record:   &seed,
		changes:  changes,
		full:     changes == nil,
	})
	return c.warnings
}

// run drains the worklist, seeded with seeds.
func (e *Engine) run(ctx context.Context, c *cascade, seeds ...task) {
	for _, s := range seeds {
		c.work.push(s)
	}

	for {
		if err := ctx.Err(); err != nil {
			slog.Warn("propagation cancelled",
				"scope_id", c.scope.ID(),
				"pending", c.work.Len(),
				"error", err)
			c.warn(NewStorageError(c.scope.ID(), "", err))
			return
		}

		t, ok := c.work.pop()
		if !ok {
			break
		}

		if err := c.quota.Check(c.scope.ID()); err != nil {
			se := err.(*StepsExceededError)
			slog.Error("max steps quota exceeded",
				"scope_id", c.scope.ID(),
				"model_id", t.modelID,
				"record_id", t.recordID,
				"steps", se.Steps,
				"limit", se.Limit)
			e.metrics.StepLimitHits.Inc()
			c.warn(NewQuotaError(se, t.modelID, t.recordID))
			return
		}

		e.metrics.Tasks.Inc()
		e.process(ctx, c, t)
	}

	if c.work.coalesced > 0 {
		slog.Debug("coalesced pending tasks",
			"scope_id", c.scope.ID(),
			"coalesced", c.work.coalesced)
	}
}

// process recomputes one record and queues the linked records its changes
// feed into.
func (e *Engine) process(ctx context.Context, c *cascade, t *task) {
	model, ok := e.registry.Model(t.modelID)
	if !ok {
		slog.Warn("unknown model, skipping record",
			"scope_id", c.scope.ID(),
			"model_id", t.modelID,
			"record_id", t.recordID)
		c.warn(NewResolutionError(c.scope.ID(), t.modelID, t.recordID, "unknown model"))
		return
	}

	if t.depth >= e.maxDepth {
		e.depthExceeded(c, t.modelID, t.recordID, t.depth)
		return
	}

	var rec ir.Record
	if t.record != nil {
		rec = c.tx.Patch(t.modelID, []ir.Record{*t.record})[0]
	} else {
		recs, err := e.fetch(ctx, c, t.modelID, []string{t.recordID})
		if err != nil {
			return
		}
		if len(recs) == 0 {
			slog.Debug("record no longer exists, skipping",
				"scope_id", c.scope.ID(),
				"model_id", t.modelID,
				"record_id", t.recordID)
			return
		}
		rec = recs[0]
	}

	current := rec.Fields
	updates := ir.IRObject{}
	dirty := make(map[string]bool, len(t.touched)+len(t.changes))
	for _, f := range t.touched {
		dirty[f] = true
	}
	for _, k := range t.changes.SortedKeys() {
		v := t.changes[k]
		if ir.Equal(current[k], v) {
			continue
		}
		current[k] = v
		updates[k] = v
		dirty[k] = true
	}

	full := t.full
	depth := t.depth
	for full || len(dirty) > 0 {
		if depth >= e.maxDepth {
			e.depthExceeded(c, t.modelID, t.recordID, depth)
			break
		}

		next := make(map[string]bool)
		for _, f := range model.ComputedFields() {
			if !full && !dependsOn(f, dirty) {
				continue
			}
			v, ok := e.computeField(ctx, c, t.modelID, rec.ID, current, f)
			if !ok {
				continue
			}
			if ir.Equal(current[f.ID()], v) {
				e.metrics.Evaluated(f.Kind().String(), metrics.OutcomeUnchanged)
				continue
			}
			e.metrics.Evaluated(f.Kind().String(), metrics.OutcomeChanged)
			current[f.ID()] = v
			updates[f.ID()] = v
			next[f.ID()] = true
		}

		full = false
		dirty = next
		depth++
	}

	if len(updates) == 0 {
		return
	}

	op := c.tx.AddOperation(ir.Operation{
		ModelID:  t.modelID,
		RecordID: rec.ID,
		Updates:  updates,
	})
	slog.Debug("record updated",
		"scope_id", c.scope.ID(),
		"model_id", t.modelID,
		"record_id", rec.ID,
		"seq", op.Seq,
		"fields", len(updates),
		"depth", t.depth)

	for _, fieldID := range model.FieldIDs() {
		if _, changed := updates[fieldID]; !changed {
			continue
		}
		for _, ref := range e.registry.SourceFor(t.modelID, fieldID) {
			if ref.CrossRecord() {
				e.cascadeTo(ctx, c, t, ref)
			}
		}
	}
}

// cascadeTo recomputes ref's field on every record of ref.ModelID linked
// to t's record and queues the ones that change.
func (e *Engine) cascadeTo(ctx context.Context, c *cascade, t *task, ref schema.SourceRef) {
	f, ok := e.registry.Field(ref.ModelID, ref.FieldID)
	if !ok {
		return
	}

	neighbours := e.links.GetBacklinks(ctx, t.modelID, t.recordID, ref.ModelID, ref.LinkFieldID)
	// Neighbours that could not be read were reported by fetch.
	recs, _ := e.fetch(ctx, c, ref.ModelID, linkstore.RecordIDs(neighbours))
	for _, fr := range recs {
		v, ok := e.computeField(ctx, c, ref.ModelID, fr.ID, fr.Fields, f)
		if !ok {
			continue
		}
		if ir.Equal(fr.Fields[f.ID()], v) && !c.work.pendingDiffers(ref.ModelID, fr.ID, f.ID(), v) {
			continue
		}
		c.work.push(task{
			modelID:  ref.ModelID,
			recordID: fr.ID,
			changes:  ir.IRObject{f.ID(): v},
			depth:    t.depth + 1,
		})
	}
}

// computeField evaluates a computed field. It reports false when the field
// has no value to write: undefined, a NaN or infinite number, or an
// evaluation error (logged and reported as a warning).
func (e *Engine) computeField(ctx context.Context, c *cascade, modelID, recordID string, fields ir.IRObject, f schema.Field) (ir.IRValue, bool) {
	var v ir.IRValue
	var ok bool
	var err error

	switch fd := f.(type) {
	case *schema.Lookup:
		v, ok, err = e.lookup(ctx, c, modelID, recordID, fd)
	case *schema.Summary:
		v, ok, err = e.summarize(ctx, c, modelID, recordID, fd)
	case *schema.Formula:
		v, ok, err = e.formulas.Execute(ctx, fd.Expression, fields, e.registry.ActiveFields(modelID))
	default:
		return nil, false
	}

	kind := f.Kind().String()
	if err != nil {
		slog.Warn("field evaluation failed",
			"scope_id", c.scope.ID(),
			"model_id", modelID,
			"record_id", recordID,
			"field_id", f.ID(),
			"error", err)
		e.metrics.Evaluated(kind, metrics.OutcomeError)
		c.warn(NewEvaluationError(c.scope.ID(), modelID, recordID, f.ID(), err))
		return nil, false
	}
	if !ok || v == nil {
		e.metrics.Evaluated(kind, metrics.OutcomeSkipped)
		return nil, false
	}
	if n, isNum := v.(ir.IRNumber); isNum && !n.IsFinite() {
		slog.Debug("non-finite result skipped",
			"scope_id", c.scope.ID(),
			"model_id", modelID,
			"record_id", recordID,
			"field_id", f.ID())
		e.metrics.Evaluated(kind, metrics.OutcomeSkipped)
		return nil, false
	}
	return v, true
}

// lookup copies the foreign value: "" with no neighbour, the value with
// one, a LIST with several.
func (e *Engine) lookup(ctx context.Context, c *cascade, modelID, recordID string, f *schema.Lookup) (ir.IRValue, bool, error) {
	values, ok, err := e.foreignValues(ctx, c, modelID, recordID, f.LinkFieldID, f.ForeignFieldID)
	if err != nil || !ok {
		return nil, false, err
	}

	switch len(values) {
	case 0:
		return ir.IRString(""), true, nil
	case 1:
		return values[0], values[0] != nil, nil
	}
	v, err := aggregate.Apply(ctx, aggregate.List, values, aggregate.Options{})
	return v, err == nil, err
}

// summarize aggregates the foreign values; no neighbours yields the
// operation's empty value.
func (e *Engine) summarize(ctx context.Context, c *cascade, modelID, recordID string, f *schema.Summary) (ir.IRValue, bool, error) {
	values, ok, err := e.foreignValues(ctx, c, modelID, recordID, f.LinkFieldID, f.ForeignFieldID)
	if err != nil || !ok {
		return nil, false, err
	}
	if len(values) == 0 {
		return f.Operation.Empty(), true, nil
	}

	v, err := aggregate.Apply(ctx, f.Operation, values, aggregate.Options{
		Precision: f.Precision,
		Names:     e.names,
	})
	return v, err == nil, err
}

// foreignValues returns foreignFieldID of every record linked through
// linkFieldID, in link order; nil marks an undefined value. It reports
// false when the link field cannot be resolved, and an error when a
// neighbour could not be read, since a partial set would yield a wrong
// aggregate.
func (e *Engine) foreignValues(ctx context.Context, c *cascade, modelID, recordID, linkFieldID, foreignFieldID string) ([]ir.IRValue, bool, error) {
	link, ok := e.registry.LinkFieldByID(modelID, linkFieldID)
	if !ok {
		slog.Debug("link field not resolvable",
			"model_id", modelID,
			"field_id", linkFieldID)
		return nil, false, nil
	}

	refs := e.links.GetLinksFromField(ctx, modelID, recordID, linkFieldID)
	recs, err := e.fetch(ctx, c, link.ForeignModelID, linkstore.RecordIDs(refs))
	if err != nil {
		return nil, false, fmt.Errorf("read %s records: %w", link.ForeignModelID, err)
	}
	values := make([]ir.IRValue, len(recs))
	for i, r := range recs {
		values[i] = r.Fields[foreignFieldID]
	}
	return values, true, nil
}

func (e *Engine) depthExceeded(c *cascade, modelID, recordID string, depth int) {
	k := taskKey{modelID, recordID}
	if c.capped[k] {
		return
	}
	c.capped[k] = true

	slog.Warn("propagation depth cap reached, cascade truncated",
		"scope_id", c.scope.ID(),
		"model_id", modelID,
		"record_id", recordID,
		"depth", depth,
		"max_depth", e.maxDepth)
	e.metrics.DepthCapHits.Inc()
	c.warn(NewDepthError(c.scope.ID(), modelID, recordID, e.maxDepth))
}

// dependsOn reports whether any local source of f is dirty.
func dependsOn(f schema.Field, dirty map[string]bool) bool {
	for _, src := range schema.LocalSources(f) {
		if dirty[src] {
			return true
		}
	}
	return false
}
