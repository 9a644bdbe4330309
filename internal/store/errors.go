package store

import "errors"

var (
	// ErrNotFound is returned when a record or link does not exist.
	ErrNotFound = errors.New("not found")

	// ErrVersionConflict is returned when a record changed after the
	// version an update was computed from.
	ErrVersionConflict = errors.New("version conflict")
)
