package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/vox/internal/ir"
	"github.com/roach88/vox/internal/workflow"
)

// AppendMatch records a match result, failed matches included, and
// returns its seq.
func (s *Store) AppendMatch(ctx context.Context, r ir.MatchResult, at time.Time) (int64, error) {
	paramsJSON, err := marshalParams(r.Params)
	if err != nil {
		return 0, fmt.Errorf("append match: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO matches
		(transcript, preprocessed, intent, category, match_type, confidence,
		 params, pattern, registry_hash, active_context, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.Original,
		r.Preprocessed,
		r.Intent,
		r.Category,
		string(r.MatchType),
		r.Confidence,
		paramsJSON,
		r.Pattern,
		r.RegistryHash,
		r.ActiveContext,
		formatTime(at),
	)
	if err != nil {
		return 0, fmt.Errorf("append match: %w", err)
	}

	seq, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("append match: last insert id: %w", err)
	}
	return seq, nil
}

// PruneMatches deletes match records recorded before cutoff and returns
// how many were removed. Snapshots are kept.
func (s *Store) PruneMatches(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM matches WHERE recorded_at < ?
	`, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("prune matches: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune matches: rows affected: %w", err)
	}
	if n > 0 {
		s.logger.Info("match log pruned", "removed", n, "cutoff", cutoff)
	}
	return n, nil
}

// SaveSnapshot stores st under name and returns its hash. A snapshot
// whose hash equals the latest one stored under name is not written
// again; inserted reports whether a row was added.
func (s *Store) SaveSnapshot(ctx context.Context, name string, st workflow.State) (hash string, inserted bool, err error) {
	if name == "" {
		return "", false, errors.New("save snapshot: empty name")
	}
	hash, err = st.Hash()
	if err != nil {
		return "", false, fmt.Errorf("save snapshot: %w", err)
	}
	stateJSON, err := json.Marshal(st)
	if err != nil {
		return "", false, fmt.Errorf("save snapshot: marshal state: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", false, fmt.Errorf("save snapshot: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var latest string
	err = tx.QueryRowContext(ctx, `
		SELECT hash FROM snapshots
		WHERE name = ?
		ORDER BY seq DESC
		LIMIT 1
	`, name).Scan(&latest)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return "", false, fmt.Errorf("save snapshot: query latest: %w", err)
	case latest == hash:
		return hash, false, nil
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO snapshots (name, hash, state, exported_at)
		VALUES (?, ?, ?, ?)
	`, name, hash, string(stateJSON), formatTime(st.ExportedAt))
	if err != nil {
		return "", false, fmt.Errorf("save snapshot: insert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", false, fmt.Errorf("save snapshot: commit: %w", err)
	}
	return hash, true, nil
}
