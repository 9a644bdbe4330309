package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/cascade/internal/ir"
)

// InsertLink stores a link row. The ID is content-addressed, so inserting
// the same link twice is a no-op. Returns the stored link and whether a
// new row was written.
func (s *Store) InsertLink(ctx context.Context, l ir.Link) (ir.Link, bool, error) {
	if l.ModelX == "" || l.RecordX == "" || l.FieldX == "" || l.ModelY == "" || l.RecordY == "" {
		return ir.Link{}, false, fmt.Errorf("insert link: both endpoints and field_x are required")
	}
	l.ID = ir.LinkID(l)

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO links (id, model_x, record_x, field_x, model_y, record_y, field_y)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, l.ID, l.ModelX, l.RecordX, l.FieldX, l.ModelY, l.RecordY, l.FieldY)
	if err != nil {
		return ir.Link{}, false, fmt.Errorf("insert link: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return ir.Link{}, false, fmt.Errorf("insert link: rows affected: %w", err)
	}
	return l, n > 0, nil
}

// DeleteLink removes a link row by ID and returns the removed row.
// Returns ErrNotFound if it does not exist.
func (s *Store) DeleteLink(ctx context.Context, id string) (ir.Link, error) {
	l, err := s.GetLink(ctx, id)
	if err != nil {
		return ir.Link{}, err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM links WHERE id = ?`, id); err != nil {
		return ir.Link{}, fmt.Errorf("delete link: %w", err)
	}
	return l, nil
}

// GetLink returns a link row by ID.
func (s *Store) GetLink(ctx context.Context, id string) (ir.Link, error) {
	links, err := s.queryLinks(ctx, `WHERE id = ?`, id)
	if err != nil {
		return ir.Link{}, err
	}
	if len(links) == 0 {
		return ir.Link{}, fmt.Errorf("link %s: %w", id, ErrNotFound)
	}
	return links[0], nil
}

// DeleteLinksForRecord removes every link row touching a record, on either
// side, and returns the removed rows in insertion order.
func (s *Store) DeleteLinksForRecord(ctx context.Context, modelID, recordID string) ([]ir.Link, error) {
	links, err := s.queryLinks(ctx, `
		WHERE (model_x = ? AND record_x = ?) OR (model_y = ? AND record_y = ?)
	`, modelID, recordID, modelID, recordID)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		DELETE FROM links
		WHERE (model_x = ? AND record_x = ?) OR (model_y = ? AND record_y = ?)
	`, modelID, recordID, modelID, recordID)
	if err != nil {
		return nil, fmt.Errorf("delete links for %s/%s: %w", modelID, recordID, err)
	}
	return links, nil
}

// QueryLinks returns the link rows whose q.Side endpoint is
// (q.ModelID, q.RecordID), narrowed by the optional filters.
// Rows come back in insertion order.
func (s *Store) QueryLinks(ctx context.Context, q ir.LinkQuery) ([]ir.Link, error) {
	self, other := "x", "y"
	if q.Side == ir.SideY {
		self, other = "y", "x"
	}

	conds := []string{
		fmt.Sprintf("model_%s = ?", self),
		fmt.Sprintf("record_%s = ?", self),
	}
	params := []any{q.ModelID, q.RecordID}

	if q.FieldX != "" {
		conds = append(conds, "field_x = ?")
		params = append(params, q.FieldX)
	}
	if q.FieldY != "" {
		conds = append(conds, "field_y = ?")
		params = append(params, q.FieldY)
	}
	if q.OtherModel != "" {
		conds = append(conds, fmt.Sprintf("model_%s = ?", other))
		params = append(params, q.OtherModel)
	}

	return s.queryLinks(ctx, "WHERE "+strings.Join(conds, " AND "), params...)
}

func (s *Store) queryLinks(ctx context.Context, where string, params ...any) ([]ir.Link, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, model_x, record_x, field_x, model_y, record_y, field_y
		FROM links `+where+`
		ORDER BY rowid ASC
	`, params...)
	if err != nil {
		return nil, fmt.Errorf("query links: %w", err)
	}
	defer rows.Close()

	links := []ir.Link{}
	for rows.Next() {
		var l ir.Link
		if err := rows.Scan(&l.ID, &l.ModelX, &l.RecordX, &l.FieldX, &l.ModelY, &l.RecordY, &l.FieldY); err != nil {
			return nil, fmt.Errorf("scan link: %w", err)
		}
		links = append(links, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate links: %w", err)
	}
	return links, nil
}
