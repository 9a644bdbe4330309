package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFixedTokenGenerator(t *testing.T) {
	gen := NewFixedTokenGenerator("tok")
	assert.Equal(t, "tok", gen.Generate())
	assert.Equal(t, "tok", gen.Generate())

	assert.Equal(t, "test-token", NewFixedTokenGenerator("").Generate())
}

func TestCountingTokenGenerator(t *testing.T) {
	gen := NewCountingTokenGenerator("txn")
	assert.Equal(t, "txn-1", gen.Generate())
	assert.Equal(t, "txn-2", gen.Generate())
}
