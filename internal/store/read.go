package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/cascade/internal/ir"
	"github.com/roach88/cascade/internal/queryir"
	"github.com/roach88/cascade/internal/querysql"
)

// Find returns the records of a model matching filter (nil = all).
// Results are ordered by the sort keys, then id ASC COLLATE BINARY.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) Find(ctx context.Context, modelID string, filter queryir.Predicate, sort ...queryir.Sort) ([]ir.Record, error) {
	return s.Select(ctx, queryir.Select{Model: modelID, Filter: filter, Sort: sort})
}

// FindByIDs returns the records of a model with the given ids. Ids that do
// not exist are simply absent from the result.
func (s *Store) FindByIDs(ctx context.Context, modelID string, ids []string, sort ...queryir.Sort) ([]ir.Record, error) {
	if len(ids) == 0 {
		return []ir.Record{}, nil
	}
	return s.Find(ctx, modelID, queryir.IDIn(ids...), sort...)
}

// FindOne returns the first record of a model matching filter.
// Returns ErrNotFound if nothing matches.
func (s *Store) FindOne(ctx context.Context, modelID string, filter queryir.Predicate) (ir.Record, error) {
	recs, err := s.Select(ctx, queryir.Select{Model: modelID, Filter: filter, Limit: 1})
	if err != nil {
		return ir.Record{}, err
	}
	if len(recs) == 0 {
		return ir.Record{}, fmt.Errorf("find one %s: %w", modelID, ErrNotFound)
	}
	return recs[0], nil
}

// Get returns a record by id. Returns ErrNotFound if it does not exist.
func (s *Store) Get(ctx context.Context, modelID, id string) (ir.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT model_id, id, data, version
		FROM records
		WHERE model_id = ? AND id = ?
	`, modelID, id)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Record{}, fmt.Errorf("get %s/%s: %w", modelID, id, ErrNotFound)
	}
	return rec, err
}

// Select runs a compiled QueryIR select.
func (s *Store) Select(ctx context.Context, q queryir.Select) ([]ir.Record, error) {
	query, params, err := querysql.NewSQLCompiler().Compile(q)
	if err != nil {
		return nil, fmt.Errorf("compile query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	records := []ir.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}

	return records, nil
}

// Count returns the number of records of a model.
func (s *Store) Count(ctx context.Context, modelID string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records WHERE model_id = ?`, modelID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (ir.Record, error) {
	var rec ir.Record
	var data string
	if err := row.Scan(&rec.ModelID, &rec.ID, &data, &rec.Version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ir.Record{}, err
		}
		return ir.Record{}, fmt.Errorf("scan record: %w", err)
	}

	fields, err := unmarshalFields(data)
	if err != nil {
		return ir.Record{}, fmt.Errorf("record %s/%s: %w", rec.ModelID, rec.ID, err)
	}
	rec.Fields = fields
	return rec, nil
}
