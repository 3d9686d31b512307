// Package locale holds the per-language word tables used by matching and
// entity normalization: stop-words, number words, relative-date words and
// the verbs that mark an utterance as a command.
//
// The tables are configuration data. Matching runs against the merged
// view (All) because a single transcript from a Swiss kitchen routinely
// mixes dialect, standard German and the odd French or English word.
package locale

import (
	"fmt"
	"sort"

	"golang.org/x/text/language"
)

// Locale identifies one language variant.
type Locale string

const (
	German      Locale = "de"
	SwissGerman Locale = "gsw"
	French      Locale = "fr"
	Italian     Locale = "it"
	English     Locale = "en"
)

// Locales lists the supported variants in lookup priority order.
// Earlier locales win when merged tables disagree on a word.
var Locales = []Locale{German, SwissGerman, French, Italian, English}

// Symbolic relative-date tokens produced by the date normalizer.
const (
	DateToday              = "today"
	DateTomorrow           = "tomorrow"
	DateDayAfterTomorrow   = "day_after_tomorrow"
	DateYesterday          = "yesterday"
	DateDayBeforeYesterday = "day_before_yesterday"
)

// Table is the word data for one locale.
type Table struct {
	StopWords   map[string]bool
	Numbers     map[string]int
	Dates       map[string]string
	Verbs       map[string]bool
	TableWords  map[string]bool
	PersonWords map[string]bool
}

// Get returns the table for l, or false if l is not supported.
func Get(l Locale) (*Table, bool) {
	t, ok := tables[l]
	return t, ok
}

// Parse maps a BCP 47 tag onto a supported locale. "de-CH" and "gsw"
// both resolve to SwissGerman.
func Parse(tag string) (Locale, error) {
	t, err := language.Parse(tag)
	if err != nil {
		return "", fmt.Errorf("parse locale %q: %w", tag, err)
	}

	base, _ := t.Base()
	switch base.String() {
	case "gsw":
		return SwissGerman, nil
	case "de":
		if region, conf := t.Region(); conf == language.Exact && region.String() == "CH" {
			return SwissGerman, nil
		}
		return German, nil
	case "fr":
		return French, nil
	case "it":
		return Italian, nil
	case "en":
		return English, nil
	}
	return "", fmt.Errorf("unsupported locale %q", tag)
}

// All returns the merged view across every locale.
func All() *Table {
	return merged
}

// Merge combines the tables of the given locales. Earlier locales win on
// conflicting number or date words.
func Merge(locales ...Locale) *Table {
	out := &Table{
		StopWords:   map[string]bool{},
		Numbers:     map[string]int{},
		Dates:       map[string]string{},
		Verbs:       map[string]bool{},
		TableWords:  map[string]bool{},
		PersonWords: map[string]bool{},
	}
	for _, l := range locales {
		t, ok := tables[l]
		if !ok {
			continue
		}
		for w := range t.StopWords {
			out.StopWords[w] = true
		}
		for w, n := range t.Numbers {
			if _, seen := out.Numbers[w]; !seen {
				out.Numbers[w] = n
			}
		}
		for w, d := range t.Dates {
			if _, seen := out.Dates[w]; !seen {
				out.Dates[w] = d
			}
		}
		for w := range t.Verbs {
			out.Verbs[w] = true
		}
		for w := range t.TableWords {
			out.TableWords[w] = true
		}
		for w := range t.PersonWords {
			out.PersonWords[w] = true
		}
	}
	return out
}

// SortedByLength returns the keys of m longest first, then alphabetically.
// Regular expression alternations built from word tables need this order
// so "übermorgen" is tried before "morgen".
func SortedByLength[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		li, lj := len([]rune(keys[i])), len([]rune(keys[j]))
		if li != lj {
			return li > lj
		}
		return keys[i] < keys[j]
	})
	return keys
}

// IsStopWord reports whether w is a stop-word in any locale.
func IsStopWord(w string) bool {
	return merged.StopWords[w]
}

// IsVerb reports whether w is one of the command verbs in any locale.
func IsVerb(w string) bool {
	return merged.Verbs[w]
}

var merged = Merge(Locales...)

func set(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}
