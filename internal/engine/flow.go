package engine

import (
	"github.com/google/uuid"

	"github.com/roach88/cascade/internal/cache"
)

// TokenGenerator generates unique operation tokens. Each orchestrator call
// takes one token and uses it for its transaction id and cache scope id.
// Implemented by UUIDv7Generator (production) and the testutil generators.
type TokenGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 tokens.
//
// UUIDv7 embeds a timestamp in the most significant bits, so the operation
// log's transaction ids sort by creation time.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// operationScopeID names the flat cache scope of a single-record operation.
func operationScopeID(token string) string {
	return cache.OperationPrefix + token
}

// bulkScopeID names the by-model cache scope of a bulk operation.
func bulkScopeID(token string) string {
	return cache.BulkPrefix + token
}
