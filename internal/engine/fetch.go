package engine

import (
	"context"
	"log/slog"

	"github.com/roach88/cascade/internal/ir"
)

// fetch returns the records of modelID with the given ids, in id order,
// patched with the transaction's pending updates.
//
// Records come from the cache scope when present. The rest are read from
// storage in one batch; ids storage does not return are marked deleted in
// the scope and never read again while it lives. A storage error is logged,
// reported as a warning and returned along with the records that could be
// served; the unread ids are not marked deleted.
func (e *Engine) fetch(ctx context.Context, c *cascade, modelID string, ids []string) ([]ir.Record, error) {
	if len(ids) == 0 {
		return []ir.Record{}, nil
	}

	found := make(map[string]ir.Record, len(ids))
	var missing []string
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if c.scope.IsDeleted(modelID, id) {
			continue
		}
		if rec, ok := c.scope.Get(modelID, id); ok {
			found[id] = rec
			continue
		}
		missing = append(missing, id)
	}

	var fetchErr error
	if len(missing) > 0 {
		e.metrics.RecordFetches.Inc()
		recs, err := e.records.FindByIDs(ctx, modelID, missing)
		if err != nil {
			fetchErr = err
			slog.Error("record fetch failed",
				"scope_id", c.scope.ID(),
				"model_id", modelID,
				"records", len(missing),
				"error", err)
			c.warn(NewStorageError(c.scope.ID(), modelID, err))
		} else {
			for _, rec := range recs {
				c.scope.Put(rec)
				found[rec.ID] = rec
			}
			for _, id := range missing {
				if _, ok := found[id]; !ok {
					slog.Debug("linked record missing, marking deleted",
						"scope_id", c.scope.ID(),
						"model_id", modelID,
						"record_id", id)
					c.scope.MarkDeleted(modelID, id)
				}
			}
		}
	}

	out := make([]ir.Record, 0, len(found))
	for _, id := range ids {
		rec, ok := found[id]
		if !ok {
			continue
		}
		delete(found, id)
		c.tx.Observe(modelID, id, rec.Version)
		out = append(out, rec)
	}
	return c.tx.Patch(modelID, out), fetchErr
}
