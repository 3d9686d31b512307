// Package similarity scores how alike two tokens or phrases are.
//
// All functions are pure and safe for concurrent use.
package similarity

import (
	"sort"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

const (
	// PrefixWeight scales how much a shared prefix lifts the score.
	PrefixWeight = 0.1
	// MaxPrefix caps the shared-prefix length that earns a bonus.
	MaxPrefix = 4
)

// Distance returns the Levenshtein edit distance between a and b,
// counted in runes so that umlauts and accents cost one edit.
func Distance(a, b string) int {
	return fuzzy.LevenshteinDistance(a, b)
}

// Similarity returns a score in [0,1] for two tokens.
//
// The base score is 1 - distance/longest. A shared prefix of up to
// MaxPrefix runes then closes PrefixWeight of the remaining gap per rune,
// since spoken-word typos tend to keep the start of a word intact
// ("bstellig" vs "bestellung", "fürs" vs "für").
func Similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}

	longest := max(len(ra), len(rb))
	base := 1 - float64(Distance(a, b))/float64(longest)
	if base < 0 {
		base = 0
	}

	prefix := 0
	for prefix < len(ra) && prefix < len(rb) && prefix < MaxPrefix && ra[prefix] == rb[prefix] {
		prefix++
	}

	return base + float64(prefix)*PrefixWeight*(1-base)
}

// BestAlignment averages, over every token, its best Similarity against
// any candidate. Returns 0 when either side is empty.
func BestAlignment(tokens, candidates []string) float64 {
	if len(tokens) == 0 || len(candidates) == 0 {
		return 0
	}
	var total float64
	for _, tok := range tokens {
		total += Best(tok, candidates)
	}
	return total / float64(len(tokens))
}

// Best returns the highest Similarity of token against candidates.
func Best(token string, candidates []string) float64 {
	best := 0.0
	for _, c := range candidates {
		if s := Similarity(token, c); s > best {
			best = s
			if best == 1 {
				break
			}
		}
	}
	return best
}

// Scored pairs a candidate phrase with its score. Index is the
// candidate's position in the slice given to Rank.
type Scored struct {
	Text  string  `json:"text"`
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// Rank scores every candidate against query and returns the top n,
// highest first. Ties keep candidate order. n <= 0 returns all.
func Rank(query string, candidates []string, n int) []Scored {
	out := make([]Scored, 0, len(candidates))
	for i, c := range candidates {
		out = append(out, Scored{Text: c, Index: i, Score: Similarity(query, c)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
