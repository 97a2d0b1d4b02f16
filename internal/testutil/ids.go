package testutil

import (
	"strconv"
	"sync"
)

// FixedIDGenerator generates predictable store ids: prefix-1, prefix-2, ...
//
// This enables deterministic registry contents in tests and golden traces.
// Unlike store.SequenceGenerator it never runs out of ids.
//
// Thread-safety: FixedIDGenerator is safe for concurrent use.
type FixedIDGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewFixedIDGenerator creates a generator for prefix.
// If prefix is empty, ids start with "test-store".
func NewFixedIDGenerator(prefix string) *FixedIDGenerator {
	if prefix == "" {
		prefix = "test-store"
	}
	return &FixedIDGenerator{prefix: prefix}
}

// Generate returns the next id.
//
// Implements store.IDGenerator.
func (g *FixedIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return g.prefix + "-" + strconv.Itoa(g.n)
}
