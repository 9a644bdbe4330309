package testutil

import (
	"fmt"
	"sync"
)

// FixedTokenGenerator generates the same token every time.
//
// Cache scope and transaction ids carry the token, so a fixed token makes
// log output and golden traces byte-identical across runs. Operations run
// sequentially in tests; concurrent operations need distinct tokens.
//
// Thread-safety: FixedTokenGenerator is stateless and safe for concurrent use.
type FixedTokenGenerator struct {
	token string
}

// NewFixedTokenGenerator creates a new fixed token generator.
// If token is empty, Generate() returns "test-token".
func NewFixedTokenGenerator(token string) *FixedTokenGenerator {
	if token == "" {
		token = "test-token"
	}
	return &FixedTokenGenerator{token: token}
}

// Generate returns the fixed token.
//
// Implements engine.TokenGenerator.
func (g *FixedTokenGenerator) Generate() string {
	return g.token
}

// CountingTokenGenerator returns prefix-1, prefix-2, ... in order.
type CountingTokenGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewCountingTokenGenerator creates a counting generator.
func NewCountingTokenGenerator(prefix string) *CountingTokenGenerator {
	return &CountingTokenGenerator{prefix: prefix}
}

// Generate returns the next token.
func (g *CountingTokenGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
