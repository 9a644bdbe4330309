package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/cascade/internal/ir"
)

// createTestStore creates a new file-backed store in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRecord builds a record with the given field pairs.
func createTestRecord(modelID, id string, pairs ...ir.IRPair) ir.Record {
	return ir.Record{
		ID:      id,
		ModelID: modelID,
		Fields:  ir.NewIRObjectFromPairs(pairs...),
	}
}

// mustInsert inserts records and fails the test on error.
func mustInsert(t *testing.T, s *Store, records ...ir.Record) {
	t.Helper()
	if _, err := s.InsertRecords(context.Background(), records); err != nil {
		t.Fatalf("InsertRecords() failed: %v", err)
	}
}

// createTestLink builds an Invoice.flights <-> Flight.invoice link row.
func createTestLink(invoiceID, flightID string) ir.Link {
	return ir.Link{
		ModelX:  "Invoice",
		RecordX: invoiceID,
		FieldX:  "flights",
		ModelY:  "Flight",
		RecordY: flightID,
		FieldY:  "invoice",
	}
}
