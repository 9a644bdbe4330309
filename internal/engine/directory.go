package engine

import (
	"context"
	"fmt"

	"github.com/roach88/cascade/internal/aggregate"
	"github.com/roach88/cascade/internal/ir"
)

// RecordDirectory resolves user ids to display names by reading a
// directory model, e.g. a "User" model with a "name" field.
type RecordDirectory struct {
	records   RecordStore
	modelID   string
	nameField string
}

var _ aggregate.NameResolver = (*RecordDirectory)(nil)

// NewRecordDirectory creates a directory over records of modelID.
func NewRecordDirectory(records RecordStore, modelID, nameField string) *RecordDirectory {
	return &RecordDirectory{records: records, modelID: modelID, nameField: nameField}
}

// ResolveNames implements aggregate.NameResolver. Ids without a record or
// without a text name are left out.
func (d *RecordDirectory) ResolveNames(ctx context.Context, ids []string) (map[string]string, error) {
	recs, err := d.records.FindByIDs(ctx, d.modelID, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve names from %s: %w", d.modelID, err)
	}

	out := make(map[string]string, len(recs))
	for _, r := range recs {
		if name, ok := r.Fields[d.nameField].(ir.IRString); ok && name != "" {
			out[r.ID] = string(name)
		}
	}
	return out, nil
}
