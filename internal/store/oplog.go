package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/cascade/internal/ir"
)

// ReadTransactions returns the most recent transactions, newest first.
// A limit <= 0 returns all of them.
func (s *Store) ReadTransactions(ctx context.Context, limit int) ([]ir.TransactionInfo, error) {
	query := `
		SELECT t.id, t.user_id, COUNT(o.id), MAX(o.id) AS last_op
		FROM transactions t
		LEFT JOIN operations o ON o.txn_id = t.id
		GROUP BY t.id, t.user_id
		ORDER BY last_op DESC, t.id ASC COLLATE BINARY
	`
	var params []any
	if limit > 0 {
		query += ` LIMIT ?`
		params = append(params, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	txns := []ir.TransactionInfo{}
	for rows.Next() {
		var info ir.TransactionInfo
		var lastOp sql.NullInt64
		if err := rows.Scan(&info.ID, &info.UserID, &info.Operations, &lastOp); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txns = append(txns, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return txns, nil
}

// ReadOperations returns the applied operations of a transaction in the
// order they were logged.
func (s *Store) ReadOperations(ctx context.Context, txnID string) ([]ir.AppliedOperation, error) {
	return s.queryOperations(ctx, `WHERE txn_id = ?`, txnID)
}

// RecordHistory returns every applied operation that touched a record,
// oldest first.
func (s *Store) RecordHistory(ctx context.Context, modelID, recordID string) ([]ir.AppliedOperation, error) {
	return s.queryOperations(ctx, `WHERE model_id = ? AND record_id = ?`, modelID, recordID)
}

func (s *Store) queryOperations(ctx context.Context, where string, params ...any) ([]ir.AppliedOperation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, txn_id, op_seq, model_id, record_id, updates, previous, version, user_id
		FROM operations `+where+`
		ORDER BY id ASC
	`, params...)
	if err != nil {
		return nil, fmt.Errorf("query operations: %w", err)
	}
	defer rows.Close()

	ops := []ir.AppliedOperation{}
	for rows.Next() {
		var op ir.AppliedOperation
		var updates, previous string
		if err := rows.Scan(&op.ID, &op.TxnID, &op.Seq, &op.ModelID, &op.RecordID,
			&updates, &previous, &op.Version, &op.UserID); err != nil {
			return nil, fmt.Errorf("scan operation: %w", err)
		}
		if op.Updates, err = unmarshalFields(updates); err != nil {
			return nil, fmt.Errorf("operation %d updates: %w", op.ID, err)
		}
		if op.Previous, err = unmarshalFields(previous); err != nil {
			return nil, fmt.Errorf("operation %d previous: %w", op.ID, err)
		}
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate operations: %w", err)
	}
	return ops, nil
}
