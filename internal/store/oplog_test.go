package store

import (
	"context"
	"testing"

	"github.com/roach88/cascade/internal/ir"
)

func applyTestBatch(t *testing.T, s *Store, txnID, recordID string, seq int64, price float64) {
	t.Helper()
	results, err := s.ApplyBatch(context.Background(), ir.OperationBatch{
		TxnID:   txnID,
		UserID:  "u",
		ModelID: "Flight",
		Ops: []ir.Operation{{
			Seq: seq, ModelID: "Flight", RecordID: recordID,
			Updates: ir.IRObject{"price": ir.IRNumber(price)},
		}},
	})
	if err != nil {
		t.Fatalf("ApplyBatch() failed: %v", err)
	}
	for _, r := range results {
		if r.Err != nil {
			t.Fatalf("operation failed: %v", r.Err)
		}
	}
}

func TestReadTransactions_NewestFirst(t *testing.T) {
	s := createTestStore(t)
	mustInsert(t, s, createTestRecord("Flight", "f1"), createTestRecord("Flight", "f2"))

	applyTestBatch(t, s, "txn-a", "f1", 1, 10)
	applyTestBatch(t, s, "txn-b", "f1", 1, 20)
	applyTestBatch(t, s, "txn-b", "f2", 2, 30)

	txns, err := s.ReadTransactions(context.Background(), 0)
	if err != nil {
		t.Fatalf("ReadTransactions() failed: %v", err)
	}
	if len(txns) != 2 {
		t.Fatalf("got %d transactions, want 2", len(txns))
	}
	if txns[0].ID != "txn-b" || txns[0].Operations != 2 {
		t.Errorf("txns[0] = %+v, want txn-b with 2 operations", txns[0])
	}

	limited, err := s.ReadTransactions(context.Background(), 1)
	if err != nil {
		t.Fatalf("ReadTransactions(1) failed: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("ReadTransactions(1) = %d, want 1", len(limited))
	}
}

func TestRecordHistory(t *testing.T) {
	s := createTestStore(t)
	mustInsert(t, s, createTestRecord("Flight", "f1", ir.O("price", ir.IRNumber(5))))

	applyTestBatch(t, s, "txn-a", "f1", 1, 10)
	applyTestBatch(t, s, "txn-b", "f1", 1, 20)

	history, err := s.RecordHistory(context.Background(), "Flight", "f1")
	if err != nil {
		t.Fatalf("RecordHistory() failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history = %d entries, want 2", len(history))
	}
	if !ir.Equal(history[0].Previous["price"], ir.IRNumber(5)) {
		t.Errorf("first previous = %v, want 5", history[0].Previous["price"])
	}
	if !ir.Equal(history[1].Previous["price"], ir.IRNumber(10)) {
		t.Errorf("second previous = %v, want 10", history[1].Previous["price"])
	}
	if history[1].Version != 3 {
		t.Errorf("version = %d, want 3", history[1].Version)
	}
}
