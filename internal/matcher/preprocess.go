package matcher

import (
	"strings"
	"unicode"

	"github.com/roach88/vox/internal/compiler"
)

// Preprocess normalizes a raw transcript for matching: NFC, lower case,
// apostrophes dropped ("gibt's" becomes "gibts"), punctuation other than
// the separators numbers, times and amounts need replaced by spaces,
// whitespace collapsed. Separators left dangling at a word edge are
// removed, as is a sentence-final period.
func Preprocess(transcript string) string {
	s := compiler.NormalizeWord(transcript)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\'' || r == '\u2019' || r == '`':
			// dropped
		case unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r):
			b.WriteRune(r)
		case keepRune(r):
			b.WriteRune(r)
		case unicode.IsMark(r):
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}

	fields := strings.Fields(b.String())
	out := fields[:0]
	for i, f := range fields {
		f = strings.Trim(f, ",:")
		if i == len(fields)-1 {
			f = strings.TrimRight(f, ".,:")
		}
		if f == "" || f == "." {
			continue
		}
		out = append(out, f)
	}
	return strings.Join(out, " ")
}

func keepRune(r rune) bool {
	switch r {
	case ':', '.', ',', '€', '$':
		return true
	}
	return false
}

// tokens splits preprocessed text into words.
func tokens(pre string) []string {
	return strings.Fields(pre)
}
