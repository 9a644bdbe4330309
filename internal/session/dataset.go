package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/cascade/internal/engine"
	"github.com/roach88/cascade/internal/ir"
)

// Dataset is a batch of records and links to load, as written in YAML:
//
//	records:
//	  - {model: Invoice, id: i1, fields: {number: INV-1}}
//	  - {model: Flight, id: f1, fields: {price: 100}}
//	links:
//	  - {model: Invoice, id: i1, field: flights, to: f1}
type Dataset struct {
	Records []RecordEntry `yaml:"records"`
	Links   []LinkEntry   `yaml:"links"`
}

// RecordEntry is one record of a Dataset.
type RecordEntry struct {
	Model  string         `yaml:"model"`
	ID     string         `yaml:"id"`
	Fields map[string]any `yaml:"fields"`
}

// LinkEntry links record ID of Model through Field to record To.
type LinkEntry struct {
	Model string `yaml:"model"`
	ID    string `yaml:"id"`
	Field string `yaml:"field"`
	To    string `yaml:"to"`
}

// LoadDataset reads a Dataset from a YAML file. Unknown keys are errors.
func LoadDataset(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	return DecodeDataset(f)
}

// DecodeDataset parses a Dataset from YAML.
func DecodeDataset(r io.Reader) (*Dataset, error) {
	var ds Dataset
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&ds); err != nil && err != io.EOF {
		return nil, fmt.Errorf("parse dataset: %w", err)
	}
	return &ds, nil
}

// Import inserts the dataset's records and links, then recomputes every
// model that received records, in schema order. Link rows are inserted
// directly, without per-link propagation; the recompute covers them.
func (s *Session) Import(ctx context.Context, ds *Dataset, userID string) ([]engine.Result, error) {
	byModel := make(map[string][]ir.Record)
	for i, entry := range ds.Records {
		if entry.ID == "" {
			return nil, fmt.Errorf("records[%d]: id is required", i)
		}
		if _, err := s.model(entry.Model); err != nil {
			return nil, fmt.Errorf("records[%d]: %w", i, err)
		}
		fields, err := ir.FromGo(entry.Fields)
		if err != nil {
			return nil, fmt.Errorf("records[%d]: %w", i, err)
		}
		obj, _ := fields.(ir.IRObject)
		if obj == nil {
			obj = ir.IRObject{}
		}
		obj, dropped := s.storedOnly(entry.Model, obj)
		for _, id := range dropped {
			slog.Warn("ignoring engine-owned field", "model_id", entry.Model, "record_id", entry.ID, "field_id", id)
		}
		byModel[entry.Model] = append(byModel[entry.Model], ir.Record{ID: entry.ID, ModelID: entry.Model, Fields: obj})
	}

	for _, modelID := range s.Registry.ModelIDs() {
		if len(byModel[modelID]) == 0 {
			continue
		}
		if _, err := s.Store.InsertRecords(ctx, byModel[modelID]); err != nil {
			return nil, err
		}
	}

	for i, entry := range ds.Links {
		l, err := s.NewLink(entry.Model, entry.ID, entry.Field, entry.To)
		if err != nil {
			return nil, fmt.Errorf("links[%d]: %w", i, err)
		}
		if _, _, err := s.Store.InsertLink(ctx, l); err != nil {
			return nil, fmt.Errorf("links[%d]: %w", i, err)
		}
	}

	var results []engine.Result
	for _, modelID := range s.Registry.ModelIDs() {
		if len(byModel[modelID]) == 0 {
			continue
		}
		results = append(results, s.Engine.UpdateAllDeep(ctx, modelID, userID))
	}
	slog.Info("dataset imported", "records", len(ds.Records), "links", len(ds.Links))
	return results, nil
}
