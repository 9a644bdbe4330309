// Package linkstore answers "what is linked to this record" over the link
// table.
//
// Every relationship is one link row with an X endpoint (the side whose
// link field created it) and a Y endpoint (the inverse side, if any). A
// record's neighbours through a link field can sit on either side of a
// row, so every query checks both.
//
// Queries never fail: unknown models or fields, and storage read errors,
// degrade to an empty result so propagation keeps going while schemas are
// edited underneath it.
package linkstore

import (
	"context"
	"log/slog"

	"github.com/roach88/cascade/internal/ir"
	"github.com/roach88/cascade/internal/schema"
)

// LinkQuerier reads link rows. Implemented by *store.Store.
type LinkQuerier interface {
	QueryLinks(ctx context.Context, q ir.LinkQuery) ([]ir.Link, error)
}

// LinkRef is one neighbour of a record.
type LinkRef struct {
	LinkID   string `json:"link_id"`
	ModelID  string `json:"model_id"`
	RecordID string `json:"record_id"`

	// FieldID is the link field on the queried record's side,
	// ForeignFieldID the one on the neighbour's side ("" if none).
	FieldID        string `json:"field_id"`
	ForeignFieldID string `json:"foreign_field_id,omitempty"`
}

// Store resolves neighbours through the schema registry and the link table.
// It is read only and safe for concurrent use.
type Store struct {
	links    LinkQuerier
	registry *schema.Registry
}

// New creates a link store.
func New(links LinkQuerier, registry *schema.Registry) *Store {
	return &Store{links: links, registry: registry}
}

// GetLinksFromField returns the records linked to (modelID, recordID)
// through linkFieldID without duplicates: X-side rows first, each side in
// link creation order.
//
// Rows where the record is the X endpoint match on field_x. Rows where it
// is the Y endpoint were created from the foreign side and match on the
// inverse field; they are skipped for a link field that points at its own
// model without a distinct inverse, where both sides name the same field.
func (s *Store) GetLinksFromField(ctx context.Context, modelID, recordID, linkFieldID string) []LinkRef {
	link, ok := s.registry.LinkFieldByID(modelID, linkFieldID)
	if !ok {
		slog.Debug("link field not resolvable",
			"model_id", modelID, "field_id", linkFieldID)
		return []LinkRef{}
	}

	var rows []ir.Link
	xSide, err := s.links.QueryLinks(ctx, ir.LinkQuery{
		Side:       ir.SideX,
		ModelID:    modelID,
		RecordID:   recordID,
		FieldX:     linkFieldID,
		OtherModel: link.ForeignModelID,
	})
	if err != nil {
		return s.degrade(modelID, recordID, err)
	}
	rows = append(rows, xSide...)

	selfLink := link.ForeignModelID == modelID &&
		(link.ForeignLinkFieldID == "" || link.ForeignLinkFieldID == linkFieldID)
	if !selfLink {
		q := ir.LinkQuery{
			Side:       ir.SideY,
			ModelID:    modelID,
			RecordID:   recordID,
			OtherModel: link.ForeignModelID,
		}
		if link.ForeignLinkFieldID != "" {
			q.FieldX = link.ForeignLinkFieldID
		} else {
			q.FieldY = linkFieldID
		}
		ySide, err := s.links.QueryLinks(ctx, q)
		if err != nil {
			return s.degrade(modelID, recordID, err)
		}
		rows = append(rows, ySide...)
	}

	return refsFrom(modelID, recordID, rows)
}

// GetLinks returns every record linked to (modelID, recordID) from either
// side through any field. Used to cascade after a record is deleted.
func (s *Store) GetLinks(ctx context.Context, modelID, recordID string) []LinkRef {
	var rows []ir.Link
	for _, side := range []ir.LinkSide{ir.SideX, ir.SideY} {
		found, err := s.links.QueryLinks(ctx, ir.LinkQuery{Side: side, ModelID: modelID, RecordID: recordID})
		if err != nil {
			return s.degrade(modelID, recordID, err)
		}
		rows = append(rows, found...)
	}
	return refsFrom(modelID, recordID, rows)
}

// GetBacklinks returns the records of foreignModelID whose link field
// foreignLinkFieldID points at (modelID, recordID).
func (s *Store) GetBacklinks(ctx context.Context, modelID, recordID, foreignModelID, foreignLinkFieldID string) []LinkRef {
	if _, ok := s.registry.LinkFieldByID(foreignModelID, foreignLinkFieldID); !ok {
		slog.Debug("backlink field not resolvable",
			"model_id", foreignModelID, "field_id", foreignLinkFieldID)
		return []LinkRef{}
	}

	// Created through the foreign link field: the record is the Y endpoint.
	created, err := s.links.QueryLinks(ctx, ir.LinkQuery{
		Side:       ir.SideY,
		ModelID:    modelID,
		RecordID:   recordID,
		FieldX:     foreignLinkFieldID,
		OtherModel: foreignModelID,
	})
	if err != nil {
		return s.degrade(modelID, recordID, err)
	}

	// Created from this side with the foreign field as inverse.
	inverse, err := s.links.QueryLinks(ctx, ir.LinkQuery{
		Side:       ir.SideX,
		ModelID:    modelID,
		RecordID:   recordID,
		FieldY:     foreignLinkFieldID,
		OtherModel: foreignModelID,
	})
	if err != nil {
		return s.degrade(modelID, recordID, err)
	}

	return refsFrom(modelID, recordID, append(created, inverse...))
}

func (s *Store) degrade(modelID, recordID string, err error) []LinkRef {
	slog.Error("link query failed",
		"model_id", modelID, "record_id", recordID, "error", err)
	return []LinkRef{}
}

// refsFrom turns rows into neighbours of (modelID, recordID), keeping the
// first occurrence of each neighbour.
func refsFrom(modelID, recordID string, rows []ir.Link) []LinkRef {
	type key struct{ model, record string }
	seen := make(map[key]bool, len(rows))
	refs := make([]LinkRef, 0, len(rows))

	for _, l := range rows {
		var ref LinkRef
		if l.ModelX == modelID && l.RecordX == recordID {
			ref = LinkRef{LinkID: l.ID, ModelID: l.ModelY, RecordID: l.RecordY, FieldID: l.FieldX, ForeignFieldID: l.FieldY}
		} else {
			ref = LinkRef{LinkID: l.ID, ModelID: l.ModelX, RecordID: l.RecordX, FieldID: l.FieldY, ForeignFieldID: l.FieldX}
		}
		k := key{ref.ModelID, ref.RecordID}
		if seen[k] {
			continue
		}
		seen[k] = true
		refs = append(refs, ref)
	}
	return refs
}

// RecordIDs returns the record ids of refs, in order.
func RecordIDs(refs []LinkRef) []string {
	ids := make([]string, len(refs))
	for i, r := range refs {
		ids[i] = r.RecordID
	}
	return ids
}
