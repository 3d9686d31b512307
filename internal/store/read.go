package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/vox/internal/ir"
	"github.com/roach88/vox/internal/workflow"
)

// MatchRecord is one row of the match log.
type MatchRecord struct {
	Seq        int64          `json:"seq"`
	Result     ir.MatchResult `json:"result"`
	RecordedAt time.Time      `json:"recorded_at"`
}

// SnapshotInfo describes a stored snapshot without its state.
type SnapshotInfo struct {
	Seq        int64     `json:"seq"`
	Name       string    `json:"name"`
	Hash       string    `json:"hash"`
	ExportedAt time.Time `json:"exported_at"`
}

const matchColumns = `seq, transcript, preprocessed, intent, category, match_type, confidence,
		       params, pattern, registry_hash, active_context, recorded_at`

// RecentMatches returns up to limit match records, most recent first.
// limit <= 0 returns all.
//
// Returns an empty slice (not nil) if the log is empty.
func (s *Store) RecentMatches(ctx context.Context, limit int) ([]MatchRecord, error) {
	return s.queryMatches(ctx, `
		SELECT `+matchColumns+`
		FROM matches
		ORDER BY seq DESC
		LIMIT ?
	`, sqlLimit(limit))
}

// MatchesForIntent returns up to limit records classified as intent,
// most recent first. An empty intent selects failed matches.
func (s *Store) MatchesForIntent(ctx context.Context, intent string, limit int) ([]MatchRecord, error) {
	return s.queryMatches(ctx, `
		SELECT `+matchColumns+`
		FROM matches
		WHERE intent = ?
		ORDER BY seq DESC
		LIMIT ?
	`, intent, sqlLimit(limit))
}

// IntentCounts returns how often each intent was matched. Failed matches
// count under the empty intent.
func (s *Store) IntentCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT intent, COUNT(*) FROM matches GROUP BY intent
	`)
	if err != nil {
		return nil, fmt.Errorf("query intent counts: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var intent string
		var n int
		if err := rows.Scan(&intent, &n); err != nil {
			return nil, fmt.Errorf("scan intent count: %w", err)
		}
		out[intent] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate intent counts: %w", err)
	}
	return out, nil
}

func (s *Store) queryMatches(ctx context.Context, query string, args ...any) ([]MatchRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query matches: %w", err)
	}
	defer rows.Close()

	var records []MatchRecord
	for rows.Next() {
		rec, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate matches: %w", err)
	}

	if records == nil {
		records = []MatchRecord{}
	}
	return records, nil
}

func scanMatch(rows *sql.Rows) (MatchRecord, error) {
	var (
		rec        MatchRecord
		matchType  string
		paramsJSON string
		recordedAt string
	)
	r := &rec.Result
	err := rows.Scan(
		&rec.Seq, &r.Original, &r.Preprocessed, &r.Intent, &r.Category, &matchType, &r.Confidence,
		&paramsJSON, &r.Pattern, &r.RegistryHash, &r.ActiveContext, &recordedAt,
	)
	if err != nil {
		return MatchRecord{}, fmt.Errorf("scan match: %w", err)
	}

	r.MatchType = ir.MatchType(matchType)
	if r.Params, err = unmarshalParams(paramsJSON); err != nil {
		return MatchRecord{}, fmt.Errorf("match %d: %w", rec.Seq, err)
	}
	if rec.RecordedAt, err = parseTime(recordedAt); err != nil {
		return MatchRecord{}, fmt.Errorf("match %d: %w", rec.Seq, err)
	}
	return rec, nil
}

// LoadSnapshot returns the latest state saved under name.
// Returns sql.ErrNoRows (wrapped) if none exists.
func (s *Store) LoadSnapshot(ctx context.Context, name string) (workflow.State, error) {
	var stateJSON string
	err := s.db.QueryRowContext(ctx, `
		SELECT state FROM snapshots
		WHERE name = ?
		ORDER BY seq DESC
		LIMIT 1
	`, name).Scan(&stateJSON)
	if err != nil {
		return workflow.State{}, fmt.Errorf("load snapshot %q: %w", name, err)
	}

	var st workflow.State
	if err := json.Unmarshal([]byte(stateJSON), &st); err != nil {
		return workflow.State{}, fmt.Errorf("load snapshot %q: %w", name, err)
	}
	return st, nil
}

// Snapshots lists the snapshots stored under name, oldest first.
func (s *Store) Snapshots(ctx context.Context, name string) ([]SnapshotInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, name, hash, exported_at
		FROM snapshots
		WHERE name = ?
		ORDER BY seq ASC
	`, name)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	out := []SnapshotInfo{}
	for rows.Next() {
		var info SnapshotInfo
		var exportedAt string
		if err := rows.Scan(&info.Seq, &info.Name, &info.Hash, &exportedAt); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		if info.ExportedAt, err = parseTime(exportedAt); err != nil {
			return nil, fmt.Errorf("snapshot %d: %w", info.Seq, err)
		}
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return out, nil
}

// sqlLimit maps "no limit" to SQLite's LIMIT -1.
func sqlLimit(n int) int {
	if n <= 0 {
		return -1
	}
	return n
}
