package workflow

import "github.com/google/uuid"

// IDGenerator produces context ids. Implemented by UUIDGenerator
// (production) and testutil.FixedIDs / testutil.SequentialIDs (tests).
type IDGenerator interface {
	Generate() string
}

// UUIDGenerator generates time-sortable UUIDv7 context ids, so that ids
// in history and snapshots sort by activation time.
//
// Thread-safety: UUIDGenerator is stateless and safe for concurrent use.
type UUIDGenerator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDGenerator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
