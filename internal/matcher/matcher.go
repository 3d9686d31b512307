package matcher

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/vox/internal/compiler"
	"github.com/roach88/vox/internal/entity"
	"github.com/roach88/vox/internal/ir"
	"github.com/roach88/vox/internal/ring"
)

// DefaultHistorySize is how many results History keeps.
const DefaultHistorySize = 100

// Thresholds gate the cascade.
type Thresholds struct {
	// High: fuzzy matching runs while the best confidence is below it.
	High float64
	// Medium: partial and semantic matching run while the best is below it.
	Medium float64
	// Low: the minimum confidence of a partial match, after scaling by
	// the pattern's Confidence. Semantic matches are not gated.
	Low float64
	// Fuzzy: the minimum average token similarity of a fuzzy match.
	Fuzzy float64
	// SemanticCutoff: the similarity at which a transcript keyword counts
	// as overlapping a pattern keyword.
	SemanticCutoff float64
}

// DefaultThresholds returns the production thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		High:           0.9,
		Medium:         0.7,
		Low:            0.5,
		Fuzzy:          0.7,
		SemanticCutoff: 0.8,
	}
}

// Scoring constants of the individual strategies.
const (
	ExactSpanWeight = 1.2
	ContextBoost    = 1.1

	FuzzyScale = 0.8
	FuzzyCap   = 0.95

	PartialScale = 0.6
	VerbBoost    = 1.3
	PartialCap   = 0.8

	SemanticScale = 0.7
	SemanticCap   = 0.85
)

// Stats summarizes every Match call since construction.
type Stats struct {
	Total             int                  `json:"total"`
	Successful        int                  `json:"successful"`
	Failed            int                  `json:"failed"`
	ByType            map[ir.MatchType]int `json:"by_type"`
	AverageConfidence float64              `json:"average_confidence"` // over successful matches
}

// Observer receives every match result for metrics.
type Observer interface {
	ObserveMatch(result ir.MatchResult, elapsed time.Duration)
	ObserveReload(patterns int)
}

type noopObserver struct{}

func (noopObserver) ObserveMatch(ir.MatchResult, time.Duration) {}
func (noopObserver) ObserveReload(int)                          {}

// Matcher classifies transcripts against a compiled registry.
//
// Thread-safety: all methods are safe for concurrent use. Match reads the
// registry under a read lock; Reload swaps it wholesale.
type Matcher struct {
	mu sync.RWMutex

	reg     *compiler.Registry
	entries []*entry
	active  ir.ContextType
	history *ring.Buffer[ir.MatchResult]
	stats   Stats

	extractor  *entity.Extractor
	thresholds Thresholds
	verbs      map[string]bool
	semantic   bool
	logger     *slog.Logger
	observer   Observer

	historySize int
	cacheSize   int
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithThresholds replaces the cascade thresholds.
func WithThresholds(t Thresholds) Option {
	return func(m *Matcher) {
		m.thresholds = t
	}
}

// WithImportantVerbs replaces the verbs that boost a partial match.
// Default: the command verbs of every supported locale.
func WithImportantVerbs(verbs ...string) Option {
	return func(m *Matcher) {
		m.verbs = make(map[string]bool, len(verbs))
		for _, v := range verbs {
			m.verbs[compiler.NormalizeWord(v)] = true
		}
	}
}

// WithSemantic enables or disables the semantic strategy. Default: true.
func WithSemantic(enabled bool) Option {
	return func(m *Matcher) {
		m.semantic = enabled
	}
}

// WithHistorySize bounds the result history. Default: DefaultHistorySize.
func WithHistorySize(n int) Option {
	return func(m *Matcher) {
		m.historySize = n
	}
}

// WithExtractor supplies the entity extractor. Default: a new extractor
// over all locales.
func WithExtractor(e *entity.Extractor) Option {
	return func(m *Matcher) {
		m.extractor = e
	}
}

// WithEntityCacheSize sizes the default extractor's cache.
// Ignored when WithExtractor is given.
func WithEntityCacheSize(n int) Option {
	return func(m *Matcher) {
		m.cacheSize = n
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(m *Matcher) {
		m.logger = l
	}
}

// WithObserver attaches a metrics observer.
func WithObserver(o Observer) Option {
	return func(m *Matcher) {
		if o != nil {
			m.observer = o
		}
	}
}

// New creates a Matcher over reg. reg may be nil or empty; every Match
// then fails with zero confidence until Reload supplies patterns.
func New(reg *compiler.Registry, opts ...Option) (*Matcher, error) {
	m := &Matcher{
		thresholds:  DefaultThresholds(),
		semantic:    true,
		logger:      slog.Default(),
		observer:    noopObserver{},
		historySize: DefaultHistorySize,
		cacheSize:   entity.DefaultCacheSize,
		stats:       Stats{ByType: make(map[ir.MatchType]int)},
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.verbs == nil {
		m.verbs = defaultVerbs()
	}
	if m.extractor == nil {
		e, err := entity.NewExtractor(entity.WithCacheSize(m.cacheSize))
		if err != nil {
			return nil, fmt.Errorf("matcher: %w", err)
		}
		m.extractor = e
	}
	m.history = ring.New[ir.MatchResult](m.historySize)
	m.reg = reg
	m.entries = buildIndex(reg)
	return m, nil
}

// MatchOption modifies a single Match call.
type MatchOption func(*matchConfig)

type matchConfig struct {
	context    ir.ContextType
	hasContext bool
}

// WithContext matches as if ct were the active context.
func WithContext(ct ir.ContextType) MatchOption {
	return func(c *matchConfig) {
		c.context = ct
		c.hasContext = true
	}
}

// Match classifies transcript. It never fails: an empty transcript or
// one no strategy accepts yields a result with empty Intent and zero
// Confidence.
func (m *Matcher) Match(transcript string, opts ...MatchOption) (result ir.MatchResult) {
	start := time.Now()

	m.mu.RLock()
	reg, entries, active := m.reg, m.entries, m.active
	m.mu.RUnlock()

	var cfg matchConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.hasContext {
		active = cfg.context
	}

	pre := Preprocess(transcript)
	result = ir.MatchResult{
		Params:        ir.Object{},
		Original:      transcript,
		Preprocessed:  pre,
		ActiveContext: string(active),
	}
	if reg != nil {
		result.RegistryHash = reg.Hash
	}

	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("match panicked", "transcript", transcript, "panic", fmt.Sprint(r))
			result = ir.MatchResult{
				Params:        ir.Object{},
				Original:      transcript,
				Preprocessed:  pre,
				ActiveContext: string(active),
			}
		}
		m.record(result, time.Since(start))
	}()

	if pre == "" || len(entries) == 0 {
		return result
	}

	best := m.cascade(entries, pre, active)
	if best.entry == nil {
		return result
	}

	result.Intent = best.entry.Intent
	result.Category = best.entry.Category
	result.Confidence = best.confidence
	result.MatchType = best.kind
	result.Pattern = best.source
	if best.kind == ir.MatchExact {
		result.Params = exactParams(best)
	} else {
		result.Params = m.entityParams(best.entry, pre)
	}
	return result
}

// cascade runs the strategies in order of decreasing precision. A later
// strategy only replaces the best candidate with a strictly higher
// confidence, and never replaces an exact one.
func (m *Matcher) cascade(entries []*entry, pre string, active ir.ContextType) candidate {
	th := m.thresholds
	toks := tokens(pre)

	best := m.matchExact(entries, pre, active)
	if best.confidence < th.High {
		best = better(best, m.matchFuzzy(entries, toks, active))
	}
	if best.confidence < th.Medium {
		best = better(best, m.matchPartial(entries, toks, active))
	}
	if best.confidence < th.Medium && m.semantic {
		best = better(best, m.matchSemantic(entries, toks, active))
	}
	return best
}

// better returns c when it should displace best. A template that matched
// structurally keeps its result even when it covers only part of the
// transcript and a looser strategy scores higher.
func better(best, c candidate) candidate {
	if best.kind == ir.MatchExact || c.confidence <= best.confidence {
		return best
	}
	return c
}

func (m *Matcher) record(r ir.MatchResult, elapsed time.Duration) {
	m.mu.Lock()
	m.stats.Total++
	if r.Matched() {
		m.stats.Successful++
		m.stats.ByType[r.MatchType]++
		n := float64(m.stats.Successful)
		m.stats.AverageConfidence += (r.Confidence - m.stats.AverageConfidence) / n
	} else {
		m.stats.Failed++
	}
	m.history.Push(r)
	m.observer.ObserveMatch(r, elapsed)
	m.mu.Unlock()

	if r.Matched() {
		m.logger.Debug("matched",
			"intent", r.Intent, "type", r.MatchType,
			"confidence", r.Confidence, "transcript", r.Preprocessed)
	} else {
		m.logger.Debug("no match", "transcript", r.Preprocessed)
	}
}

// SetContext sets the active context used to filter and boost patterns.
// The zero value disables filtering.
func (m *Matcher) SetContext(ct ir.ContextType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = ct
}

// Context returns the active context.
func (m *Matcher) Context() ir.ContextType {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active
}

// Reload swaps in a new registry and clears the entity cache. It reports
// false and keeps the current index when reg has the same hash as the
// registry in use.
func (m *Matcher) Reload(reg *compiler.Registry) bool {
	m.mu.RLock()
	same := m.reg != nil && reg != nil && m.reg.Hash == reg.Hash
	m.mu.RUnlock()
	if same {
		m.logger.Debug("matcher registry unchanged", "hash", reg.Hash)
		return false
	}

	entries := buildIndex(reg)

	m.mu.Lock()
	m.reg = reg
	m.entries = entries
	m.observer.ObserveReload(reg.Len())
	m.mu.Unlock()

	m.extractor.ClearCache()
	m.logger.Info("matcher registry swapped", "patterns", reg.Len())
	return true
}

// Registry returns the registry in use.
func (m *Matcher) Registry() *compiler.Registry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reg
}

// Stats returns a copy of the match statistics.
func (m *Matcher) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := m.stats
	out.ByType = make(map[ir.MatchType]int, len(m.stats.ByType))
	for k, v := range m.stats.ByType {
		out.ByType[k] = v
	}
	return out
}

// History returns up to n recent results, most recent first.
// n <= 0 returns all.
func (m *Matcher) History(n int) []ir.MatchResult {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.history.Newest(n)
}

// ClearHistory empties the result history. Stats are kept.
func (m *Matcher) ClearHistory() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history.Clear()
}

// Extractor returns the entity extractor.
func (m *Matcher) Extractor() *entity.Extractor {
	return m.extractor
}
