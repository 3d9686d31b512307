// Package entity recognizes and normalizes typed sub-spans of a transcript:
// numbers, times, relative dates, currency amounts, quantities, table
// references and person counts.
//
// Extraction is the most expensive per-call step of matching, so results
// are cached per input string in a bounded LRU. The cache is only ever
// invalidated explicitly (ClearCache), never by time.
package entity

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"unicode"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/roach88/vox/internal/ir"
	"github.com/roach88/vox/internal/locale"
)

// DefaultCacheSize is the number of distinct transcripts whose entities
// are kept.
const DefaultCacheSize = 256

var (
	currencyRe = regexp.MustCompile(`(?:chf|fr\.|eur|usd|€|\$)\s*\d+(?:[.,]\d{1,2})?(?:\.-)?|\d+(?:[.,]\d{1,2})?(?:\.-)?\s*(?:chf|franken|fränkli|francs|franchi|fr\.|euro|eur|€|\$|dollars?)`)
	timeRe     = regexp.MustCompile(`\b\d{1,2}(?:[:.]\d{2})?\s*(?:uhr|am|pm)\b|\b\d{1,2}:\d{2}\b|\b\d{1,2}h\d{2}\b`)
	quantityRe = regexp.MustCompile(`\b\d+\s*x\b`)
)

// Extractor finds entities in preprocessed (lower-cased) transcripts.
// Safe for concurrent use.
type Extractor struct {
	table *locale.Table
	dates []datePhrase
	cache *lru.Cache[string, []ir.EntityMatch]

	hits   atomic.Int64
	misses atomic.Int64
}

type datePhrase struct {
	words []string
	token string
}

// Option configures an Extractor.
type Option func(*extractorConfig)

type extractorConfig struct {
	cacheSize int
	locales   []locale.Locale
}

// WithCacheSize sets the LRU capacity. Must be positive.
func WithCacheSize(n int) Option {
	return func(c *extractorConfig) {
		c.cacheSize = n
	}
}

// WithLocales restricts word-based detection to the given locales.
// Default: all supported locales.
func WithLocales(locales ...locale.Locale) Option {
	return func(c *extractorConfig) {
		c.locales = locales
	}
}

// NewExtractor builds an Extractor.
func NewExtractor(opts ...Option) (*Extractor, error) {
	cfg := extractorConfig{
		cacheSize: DefaultCacheSize,
		locales:   locale.Locales,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	cache, err := lru.New[string, []ir.EntityMatch](cfg.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("entity cache: %w", err)
	}

	table := locale.Merge(cfg.locales...)
	e := &Extractor{table: table, cache: cache}
	for _, phrase := range locale.SortedByLength(table.Dates) {
		e.dates = append(e.dates, datePhrase{words: strings.Fields(phrase), token: table.Dates[phrase]})
	}
	return e, nil
}

// Extract returns the entities in text ordered by position. The returned
// slice is the caller's to keep.
func (e *Extractor) Extract(text string) []ir.EntityMatch {
	if cached, ok := e.cache.Get(text); ok {
		e.hits.Add(1)
		return cloneMatches(cached)
	}
	e.misses.Add(1)

	found := e.extract(text)
	e.cache.Add(text, found)
	return cloneMatches(found)
}

// ClearCache drops every cached extraction.
func (e *Extractor) ClearCache() {
	e.cache.Purge()
}

// CacheStats reports cache hits, misses and current size.
func (e *Extractor) CacheStats() (hits, misses int64, size int) {
	return e.hits.Load(), e.misses.Load(), e.cache.Len()
}

// IsNumberWord reports whether tok is a digit string or a number word
// known to this extractor's locales.
func (e *Extractor) IsNumberWord(tok string) bool {
	if _, ok := e.table.Numbers[tok]; ok {
		return true
	}
	_, err := strconv.ParseInt(tok, 10, 64)
	return err == nil
}

func (e *Extractor) extract(text string) []ir.EntityMatch {
	s := &spanSet{}
	var out []ir.EntityMatch

	add := func(kind ir.EntityKind, start, end int, value ir.Value) {
		if s.overlaps(start, end) {
			return
		}
		s.add(start, end)
		out = append(out, ir.EntityMatch{
			Kind:  kind,
			Raw:   text[start:end],
			Value: value,
			Start: start,
			End:   end,
		})
	}

	// Specific formats first so that "12.50 chf" is not also a number.
	for _, loc := range currencyRe.FindAllStringIndex(text, -1) {
		add(ir.EntityCurrency, loc[0], loc[1], NormalizeCurrency(text[loc[0]:loc[1]]))
	}

	toks := tokenize(text)

	// Table and person references before times, so the "am" in
	// "tisch 5 am fenster" is not read as a clock suffix.
	for i := 0; i+1 < len(toks); i++ {
		if e.table.TableWords[toks[i].text] && e.IsNumberWord(toks[i+1].text) {
			add(ir.EntityTable, toks[i].start, toks[i+1].end, NormalizeNumber(toks[i+1].text))
		}
	}
	for i := 0; i+1 < len(toks); i++ {
		if e.IsNumberWord(toks[i].text) && e.table.PersonWords[toks[i+1].text] {
			add(ir.EntityPersons, toks[i].start, toks[i+1].end, NormalizeNumber(toks[i].text))
		}
	}

	for _, loc := range timeRe.FindAllStringIndex(text, -1) {
		add(ir.EntityTime, loc[0], loc[1], NormalizeTime(text[loc[0]:loc[1]]))
	}

	for _, d := range e.dates {
		for i := 0; i+len(d.words) <= len(toks); i++ {
			if tokensEqual(toks[i:i+len(d.words)], d.words) {
				start, end := toks[i].start, toks[i+len(d.words)-1].end
				add(ir.EntityDate, start, end, ir.String(d.token))
			}
		}
	}

	for _, loc := range quantityRe.FindAllStringIndex(text, -1) {
		add(ir.EntityQuantity, loc[0], loc[1], NormalizeQuantity(text[loc[0]:loc[1]]))
	}

	for _, tok := range toks {
		if e.IsNumberWord(tok.text) {
			add(ir.EntityNumber, tok.start, tok.end, NormalizeNumber(tok.text))
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Start < out[j].Start
	})
	return out
}

type token struct {
	text       string
	start, end int
}

// tokenize splits on whitespace, keeping byte offsets.
func tokenize(text string) []token {
	var toks []token
	start := -1
	for i, r := range text {
		if unicode.IsSpace(r) {
			if start >= 0 {
				toks = append(toks, token{text: text[start:i], start: start, end: i})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		toks = append(toks, token{text: text[start:], start: start, end: len(text)})
	}
	return toks
}

func tokensEqual(toks []token, words []string) bool {
	for i, w := range words {
		if toks[i].text != w {
			return false
		}
	}
	return true
}

type spanSet struct {
	spans [][2]int
}

func (s *spanSet) overlaps(start, end int) bool {
	for _, sp := range s.spans {
		if start < sp[1] && sp[0] < end {
			return true
		}
	}
	return false
}

func (s *spanSet) add(start, end int) {
	s.spans = append(s.spans, [2]int{start, end})
}

func cloneMatches(in []ir.EntityMatch) []ir.EntityMatch {
	if in == nil {
		return nil
	}
	out := make([]ir.EntityMatch, len(in))
	copy(out, in)
	return out
}
