// Package session wires a SQLite store, the schema registry, the link
// store and the propagation engine into one handle, and implements the
// record mutations (set, link, unlink, delete, import, undo) in terms of
// the engine's orchestrators. The CLI and the conformance harness both
// drive the engine through it.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/roach88/cascade/internal/engine"
	"github.com/roach88/cascade/internal/ir"
	"github.com/roach88/cascade/internal/linkstore"
	"github.com/roach88/cascade/internal/queryir"
	"github.com/roach88/cascade/internal/schema"
	"github.com/roach88/cascade/internal/store"
)

// ErrUnknownModel is returned for model names the schema does not define.
var ErrUnknownModel = errors.New("unknown model")

// Session is an open store with an engine over it.
type Session struct {
	Store    *store.Store
	Registry *schema.Registry
	Links    *linkstore.Store
	Engine   *engine.Engine
}

// Open opens the database at path and builds an engine for specs.
func Open(path string, specs []ir.ModelSpec, opts ...engine.Option) (*Session, error) {
	reg, err := schema.New(specs)
	if err != nil {
		return nil, fmt.Errorf("build schema: %w", err)
	}

	st, err := store.Open(path)
	if err != nil {
		return nil, err
	}
	return New(st, reg, opts...), nil
}

// New wraps an already open store.
func New(st *store.Store, reg *schema.Registry, opts ...engine.Option) *Session {
	links := linkstore.New(st, reg)
	return &Session{
		Store:    st,
		Registry: reg,
		Links:    links,
		Engine:   engine.New(st, links, reg, opts...),
	}
}

// Close closes the store.
func (s *Session) Close() error {
	return s.Store.Close()
}

func (s *Session) model(modelID string) (*schema.Model, error) {
	m, ok := s.Registry.Model(modelID)
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownModel, modelID)
	}
	return m, nil
}

// Set writes stored field values. A record that does not exist yet is
// created with the values and fully computed.
func (s *Session) Set(ctx context.Context, modelID, recordID string, changes ir.IRObject, userID string) (engine.Result, error) {
	if _, err := s.model(modelID); err != nil {
		return engine.Result{}, err
	}

	existing, err := s.Store.FindByIDs(ctx, modelID, []string{recordID})
	if err != nil {
		return engine.Result{}, err
	}
	if len(existing) > 0 {
		return s.Engine.UpdateOneDeep(ctx, modelID, recordID, changes, userID), nil
	}

	fields, dropped := s.storedOnly(modelID, changes)
	for _, id := range dropped {
		slog.Warn("ignoring engine-owned field", "model_id", modelID, "field_id", id)
	}
	if _, err := s.Store.InsertRecords(ctx, []ir.Record{{ID: recordID, ModelID: modelID, Fields: fields}}); err != nil {
		return engine.Result{}, err
	}
	slog.Info("record created", "model_id", modelID, "record_id", recordID)
	return s.Engine.UpdateManyDeep(ctx, modelID, []string{recordID}, userID), nil
}

// storedOnly drops engine-owned fields: computed values and link fields,
// which are written through Link. dropped lists the removed ids.
func (s *Session) storedOnly(modelID string, fields ir.IRObject) (out ir.IRObject, dropped []string) {
	out = make(ir.IRObject, len(fields))
	for _, k := range fields.SortedKeys() {
		f, ok := s.Registry.Field(modelID, k)
		if ok && (schema.IsComputed(f) || f.Kind() == schema.KindLink) {
			dropped = append(dropped, k)
			continue
		}
		out[k] = fields[k]
	}
	return out, dropped
}

// NewLink builds the link row for modelX.fieldX pointing at recordY,
// filling in the target model and inverse field from the schema.
func (s *Session) NewLink(modelX, recordX, fieldX, recordY string) (ir.Link, error) {
	lf, ok := s.Registry.LinkFieldByID(modelX, fieldX)
	if !ok {
		return ir.Link{}, fmt.Errorf("%s.%s is not a link field", modelX, fieldX)
	}
	l := ir.Link{
		ModelX:  modelX,
		RecordX: recordX,
		FieldX:  fieldX,
		ModelY:  lf.ForeignModelID,
		RecordY: recordY,
		FieldY:  lf.ForeignLinkFieldID,
	}
	l.ID = ir.LinkID(l)
	return l, nil
}

// Link connects two records and recomputes both sides. Linking records
// that are already linked is a no-op.
func (s *Session) Link(ctx context.Context, modelX, recordX, fieldX, recordY, userID string) (engine.Result, error) {
	l, err := s.NewLink(modelX, recordX, fieldX, recordY)
	if err != nil {
		return engine.Result{}, err
	}
	if err := s.requireRecord(ctx, l.ModelX, l.RecordX); err != nil {
		return engine.Result{}, err
	}
	if err := s.requireRecord(ctx, l.ModelY, l.RecordY); err != nil {
		return engine.Result{}, err
	}

	stored, created, err := s.Store.InsertLink(ctx, l)
	if err != nil {
		return engine.Result{}, err
	}
	if !created {
		slog.Debug("link already exists", "link_id", stored.ID)
		return engine.Result{Applied: []ir.Operation{}}, nil
	}
	return s.Engine.UpdateLink(ctx, stored, userID), nil
}

// Unlink removes a link and recomputes both sides.
func (s *Session) Unlink(ctx context.Context, modelX, recordX, fieldX, recordY, userID string) (engine.Result, error) {
	l, err := s.NewLink(modelX, recordX, fieldX, recordY)
	if err != nil {
		return engine.Result{}, err
	}
	removed, err := s.Store.DeleteLink(ctx, l.ID)
	if err != nil {
		return engine.Result{}, fmt.Errorf("unlink %s/%s.%s -> %s: %w", modelX, recordX, fieldX, recordY, err)
	}
	return s.Engine.UpdateLink(ctx, removed, userID), nil
}

// Delete removes records, corrects every record that was linked to them,
// then drops their link rows.
func (s *Session) Delete(ctx context.Context, modelID string, ids []string, userID string) (engine.Result, error) {
	if _, err := s.model(modelID); err != nil {
		return engine.Result{}, err
	}
	if _, err := s.Store.DeleteRecords(ctx, modelID, ids); err != nil {
		return engine.Result{}, err
	}

	res := s.Engine.UpdateForeignRecordsForMultipleRecords(ctx, modelID, ids, userID)

	for _, id := range ids {
		if _, err := s.Store.DeleteLinksForRecord(ctx, modelID, id); err != nil {
			return res, err
		}
	}
	return res, nil
}

// Recompute brings computed fields of a model up to date: the given ids,
// the records matching filter, or every record when both are empty.
func (s *Session) Recompute(ctx context.Context, modelID string, ids []string, filter queryir.Predicate, userID string) (engine.Result, error) {
	if _, err := s.model(modelID); err != nil {
		return engine.Result{}, err
	}
	switch {
	case len(ids) > 0:
		return s.Engine.UpdateManyDeep(ctx, modelID, ids, userID), nil
	case filter != nil:
		return s.Engine.UpdateWhereDeep(ctx, modelID, filter, userID), nil
	default:
		return s.Engine.UpdateAllDeep(ctx, modelID, userID), nil
	}
}

func (s *Session) requireRecord(ctx context.Context, modelID, recordID string) error {
	recs, err := s.Store.FindByIDs(ctx, modelID, []string{recordID})
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		return fmt.Errorf("%s/%s: %w", modelID, recordID, store.ErrNotFound)
	}
	return nil
}

// Undo restores the stored field values a transaction overwrote. Computed
// and link fields are not restored directly; they are recomputed from the
// restored values. Returns one result per restored record.
func (s *Session) Undo(ctx context.Context, txnID, userID string) ([]engine.Result, error) {
	ops, err := s.Store.ReadOperations(ctx, txnID)
	if err != nil {
		return nil, err
	}
	if len(ops) == 0 {
		return nil, fmt.Errorf("transaction %s: %w", txnID, store.ErrNotFound)
	}

	type key struct{ model, record string }
	var order []key
	restore := make(map[key]ir.IRObject)

	// Walk newest first so the oldest previous value of a field wins.
	for _, op := range slices.Backward(ops) {
		k := key{op.ModelID, op.RecordID}
		changes, _ := s.storedOnly(op.ModelID, op.Previous)
		if len(changes) == 0 {
			continue
		}
		if _, seen := restore[k]; !seen {
			order = append(order, k)
			restore[k] = ir.IRObject{}
		}
		restore[k].Merge(changes)
	}

	results := make([]engine.Result, 0, len(order))
	for _, k := range order {
		results = append(results, s.Engine.UpdateOneDeep(ctx, k.model, k.record, restore[k], userID))
	}
	slog.Info("transaction undone", "txn_id", txnID, "records", len(order))
	return results, nil
}
