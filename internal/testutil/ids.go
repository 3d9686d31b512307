package testutil

import (
	"fmt"
	"sync"
)

// FixedIDs returns predetermined context ids for testing.
//
// This enables deterministic test execution and golden trace comparison.
// Tests can provide a known sequence of ids and verify exact trace output.
//
// Thread-safety: FixedIDs is safe for concurrent use via internal mutex.
type FixedIDs struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedIDs creates a generator that returns ids in order.
//
// Example:
//
//	gen := NewFixedIDs("ctx-1", "ctx-2")
//	gen.Generate() // "ctx-1"
//	gen.Generate() // "ctx-2"
//	gen.Generate() // panic: all ids exhausted
func NewFixedIDs(ids ...string) *FixedIDs {
	return &FixedIDs{ids: ids}
}

// Generate returns the next predetermined id.
//
// Panics if all ids have been consumed. This is a fail-fast approach
// to catch test misconfiguration (test made more transitions than expected).
func (g *FixedIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.ids) {
		panic("FixedIDs: all ids exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}

// SequentialIDs generates "<prefix>-1", "<prefix>-2", ... without limit.
// Used where the number of transitions is not known up front, such as
// harness scenarios.
//
// Thread-safety: SequentialIDs is safe for concurrent use via internal mutex.
type SequentialIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialIDs creates a generator. An empty prefix becomes "ctx".
func NewSequentialIDs(prefix string) *SequentialIDs {
	if prefix == "" {
		prefix = "ctx"
	}
	return &SequentialIDs{prefix: prefix}
}

// Generate returns the next id.
func (g *SequentialIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
