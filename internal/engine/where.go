package engine

import (
	"context"
	"log/slog"

	"github.com/roach88/cascade/internal/queryir"
)

// UpdateWhereDeep recomputes the records of a model matching filter, the
// way UpdateManyDeep does. A nil filter selects every record.
func (e *Engine) UpdateWhereDeep(ctx context.Context, modelID string, filter queryir.Predicate, userID string) Result {
	op := e.begin(true, userID)
	if _, ok := e.registry.Model(modelID); !ok {
		op.warn(NewResolutionError(op.scope.ID(), modelID, "", "unknown model"))
		return e.commit(ctx, op)
	}

	if filter != nil {
		if v := queryir.Validate(queryir.Select{Model: modelID, Filter: filter}); !v.IsValid {
			for _, w := range v.Warnings {
				op.warn(NewResolutionError(op.scope.ID(), modelID, "", w))
			}
			return e.commit(ctx, op)
		}
	}

	recs, err := e.records.Find(ctx, modelID, filter)
	if err != nil {
		slog.Error("selecting records failed", "model_id", modelID, "error", err)
		op.warn(NewStorageError(op.scope.ID(), modelID, err))
		return e.commit(ctx, op)
	}

	ids := make([]string, len(recs))
	for i, r := range recs {
		ids[i] = r.ID
	}
	slog.Debug("recomputing selected records",
		"scope_id", op.scope.ID(),
		"model_id", modelID,
		"records", len(ids))

	e.prewarm(ctx, op, modelID)
	e.recomputeAll(ctx, op, modelID, ids)
	return e.commit(ctx, op)
}
