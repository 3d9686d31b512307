package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/vox/internal/ir"
)

var epoch = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

// createTestStore creates a new store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestResult creates a successful exact match for intent.
func createTestResult(intent, transcript string) ir.MatchResult {
	return ir.MatchResult{
		Intent:        intent,
		Confidence:    1,
		MatchType:     ir.MatchExact,
		Category:      "order",
		Params:        ir.Object{},
		Pattern:       transcript,
		Original:      transcript,
		Preprocessed:  transcript,
		RegistryHash:  "test-hash",
		ActiveContext: "idle",
	}
}
