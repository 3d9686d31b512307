package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"tisch", "tisch", 0},
		{"tisch", "tish", 1},
		{"für", "fürs", 1},
		{"föif", "fünf", 2},
		{"bestellung", "bstellig", 3},
		{"", "abc", 3},
	}
	for _, tt := range tests {
		t.Run(tt.a+"/"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.want, Distance(tt.a, tt.b))
			assert.Equal(t, tt.want, Distance(tt.b, tt.a), "distance is symmetric")
		})
	}
}

func TestSimilarityBounds(t *testing.T) {
	pairs := [][2]string{
		{"tisch", "tisch"},
		{"bestellung", "bstellig"},
		{"a", "zzzzzzzz"},
		{"", "x"},
		{"zahlen", "bezahlen"},
	}
	for _, p := range pairs {
		s := Similarity(p[0], p[1])
		assert.GreaterOrEqual(t, s, 0.0, p)
		assert.LessOrEqual(t, s, 1.0, p)
	}
	assert.Equal(t, 1.0, Similarity("tisch", "tisch"))
	assert.Equal(t, 0.0, Similarity("", "tisch"))
}

func TestSimilarityPrefixBonus(t *testing.T) {
	// Same edit distance, but one keeps the prefix.
	withPrefix := Similarity("fürs", "für")
	withoutPrefix := Similarity("rfür", "für")
	assert.Greater(t, withPrefix, withoutPrefix)

	// bstellig vs bestellung: base 0.7, one shared rune of prefix.
	assert.InDelta(t, 0.73, Similarity("bstellig", "bestellung"), 1e-9)
}

func TestBestAlignment(t *testing.T) {
	score := BestAlignment([]string{"tisch", "fünf"}, []string{"tisch", "fünf", "bestellung"})
	assert.Equal(t, 1.0, score)

	assert.Equal(t, 0.0, BestAlignment(nil, []string{"a"}))
	assert.Equal(t, 0.0, BestAlignment([]string{"a"}, nil))

	// "xyz" shares nothing with "tisch", so the average is exactly half.
	assert.InDelta(t, 0.5, BestAlignment([]string{"tisch", "xyz"}, []string{"tisch"}), 1e-9)

	partial := BestAlignment([]string{"tisch", "tish"}, []string{"tisch"})
	assert.Greater(t, partial, 0.5)
	assert.Less(t, partial, 1.0)
}

func TestRank(t *testing.T) {
	phrases := []string{"zeige die karte", "neue bestellung", "bezahlen bitte"}
	ranked := Rank("neue bestelung", phrases, 2)

	assert.Len(t, ranked, 2)
	assert.Equal(t, "neue bestellung", ranked[0].Text)
	assert.Equal(t, 1, ranked[0].Index)
	assert.GreaterOrEqual(t, ranked[0].Score, ranked[1].Score)

	assert.Len(t, Rank("x", phrases, 0), 3)
}
