package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/cascade/internal/ir"
)

// InsertRecords inserts new records at version 1.
// Uses ON CONFLICT DO NOTHING: records that already exist are left
// untouched. Returns how many rows were inserted.
func (s *Store) InsertRecords(ctx context.Context, records []ir.Record) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("insert records: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	inserted := 0
	for _, rec := range records {
		if rec.ModelID == "" || rec.ID == "" {
			return 0, fmt.Errorf("insert records: model and id are required")
		}
		data, err := marshalFields(rec.Fields)
		if err != nil {
			return 0, fmt.Errorf("insert records %s/%s: %w", rec.ModelID, rec.ID, err)
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO records (model_id, id, data, version)
			VALUES (?, ?, ?, 1)
			ON CONFLICT(model_id, id) DO NOTHING
		`, rec.ModelID, rec.ID, data)
		if err != nil {
			return 0, fmt.Errorf("insert records %s/%s: %w", rec.ModelID, rec.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("insert records: rows affected: %w", err)
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("insert records: commit: %w", err)
	}
	return inserted, nil
}

// DeleteRecords removes records of a model. Link rows are left alone;
// the caller owns link cleanup. Returns how many rows were removed.
func (s *Store) DeleteRecords(ctx context.Context, modelID string, ids []string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("delete records: begin tx: %w", err)
	}
	defer tx.Rollback()

	var total int64
	for _, id := range ids {
		res, err := tx.ExecContext(ctx, `DELETE FROM records WHERE model_id = ? AND id = ?`, modelID, id)
		if err != nil {
			return 0, fmt.Errorf("delete record %s/%s: %w", modelID, id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("delete records: rows affected: %w", err)
		}
		total += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("delete records: commit: %w", err)
	}
	return total, nil
}

// ApplyBatch applies the updates of one model group in a single SQL
// transaction and appends each applied update to the operation log.
//
// Per-record failures (missing record, version conflict, unstorable value)
// are reported in the result slice and do not abort the batch. Any other
// error rolls the whole batch back and is returned.
func (s *Store) ApplyBatch(ctx context.Context, batch ir.OperationBatch) ([]ir.OperationResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("apply batch: begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO transactions (id, user_id)
		VALUES (?, ?)
		ON CONFLICT(id) DO NOTHING
	`, batch.TxnID, batch.UserID)
	if err != nil {
		return nil, fmt.Errorf("apply batch: record transaction: %w", err)
	}

	results := make([]ir.OperationResult, 0, len(batch.Ops))
	for _, op := range batch.Ops {
		res, err := applyOperation(ctx, tx, batch, op)
		if err != nil {
			return nil, fmt.Errorf("apply batch %s/%s: %w", op.ModelID, op.RecordID, err)
		}
		results = append(results, res)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("apply batch: commit: %w", err)
	}
	return results, nil
}

// applyOperation applies one update. A failure confined to the operation
// is reported in the result's Err; a returned error aborts the batch.
func applyOperation(ctx context.Context, tx *sql.Tx, batch ir.OperationBatch, op ir.Operation) (ir.OperationResult, error) {
	res := ir.OperationResult{Op: op}
	if op.ModelID != batch.ModelID {
		res.Err = fmt.Errorf("operation for %s in %s batch", op.ModelID, batch.ModelID)
		return res, nil
	}

	var data string
	var version int64
	err := tx.QueryRowContext(ctx, `
		SELECT data, version FROM records WHERE model_id = ? AND id = ?
	`, op.ModelID, op.RecordID).Scan(&data, &version)
	if errors.Is(err, sql.ErrNoRows) {
		res.Err = fmt.Errorf("%s/%s: %w", op.ModelID, op.RecordID, ErrNotFound)
		return res, nil
	}
	if err != nil {
		return res, fmt.Errorf("read record: %w", err)
	}

	if op.BaseVersion != 0 && op.BaseVersion != version {
		res.Err = fmt.Errorf("%s/%s at version %d, computed from %d: %w",
			op.ModelID, op.RecordID, version, op.BaseVersion, ErrVersionConflict)
		return res, nil
	}

	fields, err := unmarshalFields(data)
	if err != nil {
		return res, err
	}

	previous := make(ir.IRObject, len(op.Updates))
	for k := range op.Updates {
		if v, ok := fields[k]; ok {
			previous[k] = v
		} else {
			previous[k] = ir.IRNull{}
		}
	}
	fields.Merge(op.Updates)

	newData, err := marshalFields(fields)
	if err != nil {
		res.Err = err
		return res, nil
	}
	updatesJSON, err := marshalFields(op.Updates)
	if err != nil {
		res.Err = err
		return res, nil
	}
	previousJSON, err := marshalFields(previous)
	if err != nil {
		res.Err = err
		return res, nil
	}

	newVersion := version + 1
	if _, err := tx.ExecContext(ctx, `
		UPDATE records SET data = ?, version = ?
		WHERE model_id = ? AND id = ? AND version = ?
	`, newData, newVersion, op.ModelID, op.RecordID, version); err != nil {
		return res, fmt.Errorf("update record: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO operations
		(txn_id, op_seq, model_id, record_id, updates, previous, version, user_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, batch.TxnID, op.Seq, op.ModelID, op.RecordID, updatesJSON, previousJSON, newVersion, batch.UserID); err != nil {
		return res, fmt.Errorf("log operation: %w", err)
	}

	res.Version = newVersion
	return res, nil
}
