package matcher

import (
	"github.com/roach88/vox/internal/similarity"
)

// Similar is one example phrase ranked by FindSimilar.
type Similar struct {
	Intent  string  `json:"intent"`
	Example string  `json:"example"`
	Score   float64 `json:"score"`
}

// FindSimilar ranks every example phrase of the registry by similarity to
// transcript and returns the top n, highest first. n <= 0 returns all.
// Used to offer "did you mean" prompts after a failed match.
func (m *Matcher) FindSimilar(transcript string, n int) []Similar {
	pre := Preprocess(transcript)
	if pre == "" {
		return nil
	}

	m.mu.RLock()
	entries := m.entries
	m.mu.RUnlock()

	var (
		phrases []string
		owners  []*entry
		raw     []string
	)
	for _, e := range entries {
		for _, ex := range e.Examples {
			phrases = append(phrases, Preprocess(ex))
			owners = append(owners, e)
			raw = append(raw, ex)
		}
	}
	if len(phrases) == 0 {
		return nil
	}

	ranked := similarity.Rank(pre, phrases, n)
	out := make([]Similar, len(ranked))
	for i, r := range ranked {
		out[i] = Similar{
			Intent:  owners[r.Index].Intent,
			Example: raw[r.Index],
			Score:   r.Score,
		}
	}
	return out
}
