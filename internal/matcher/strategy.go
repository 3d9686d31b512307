package matcher

import (
	"math"

	"github.com/roach88/vox/internal/ir"
	"github.com/roach88/vox/internal/locale"
	"github.com/roach88/vox/internal/similarity"
)

// candidate is the best match one strategy found.
type candidate struct {
	entry      *entry
	template   int
	kind       ir.MatchType
	confidence float64
	source     string
	slots      map[string]string // exact only
}

// scope reports whether e is considered under the active context and
// whether it earns the context boost. A pattern without an allow-list is
// considered everywhere but never boosted.
func scope(e *entry, active ir.ContextType) (considered, boosted bool) {
	if active == "" {
		return true, false
	}
	if !e.RelevantIn(active) {
		return false, false
	}
	return true, len(e.Contexts) > 0
}

func boost(conf float64, boosted bool) float64 {
	if boosted {
		return conf * ContextBoost
	}
	return conf
}

// matchExact runs every template structurally. Confidence grows with the
// share of the transcript the match covers.
func (m *Matcher) matchExact(entries []*entry, pre string, active ir.ContextType) candidate {
	var best candidate
	total := float64(len(pre))
	for _, e := range entries {
		considered, boosted := scope(e, active)
		if !considered {
			continue
		}
		for i := range e.Templates {
			tm, ok := e.Templates[i].Match(pre)
			if !ok {
				continue
			}
			conf := math.Min(1, ExactSpanWeight*float64(tm.Span)/total) * e.Confidence
			conf = math.Min(1, boost(conf, boosted))
			if conf > best.confidence {
				best = candidate{
					entry:      e,
					template:   i,
					kind:       ir.MatchExact,
					confidence: conf,
					source:     e.Templates[i].Source,
					slots:      tm.Slots,
				}
			}
		}
	}
	return best
}

// matchFuzzy aligns every transcript token with its closest template word.
// Numeric tokens align with numeric slots at full similarity, one token
// per slot.
func (m *Matcher) matchFuzzy(entries []*entry, toks []string, active ir.ContextType) candidate {
	var best candidate
	if len(toks) == 0 {
		return best
	}
	for _, e := range entries {
		considered, boosted := scope(e, active)
		if !considered {
			continue
		}
		for i, tw := range e.templates {
			avg := m.fuzzyAlignment(toks, tw)
			if avg < m.thresholds.Fuzzy {
				continue
			}
			conf := avg * FuzzyScale * e.Confidence
			conf = math.Min(FuzzyCap, boost(conf, boosted))
			if conf > best.confidence {
				best = candidate{
					entry:      e,
					template:   i,
					kind:       ir.MatchFuzzy,
					confidence: conf,
					source:     e.Templates[i].Source,
				}
			}
		}
	}
	return best
}

// fuzzyAlignment first lets numeric slots absorb number tokens at full
// similarity, then aligns the rest against the template words.
func (m *Matcher) fuzzyAlignment(toks []string, tw templateWords) float64 {
	if len(tw.words) == 0 {
		return 0
	}
	budget := tw.numberSlots
	rest := make([]string, 0, len(toks))
	for _, tok := range toks {
		if budget > 0 && m.extractor.IsNumberWord(tok) {
			budget--
			continue
		}
		rest = append(rest, tok)
	}
	absorbed := len(toks) - len(rest)
	if len(rest) == 0 {
		return 1
	}
	aligned := similarity.BestAlignment(rest, tw.words) * float64(len(rest))
	return (float64(absorbed) + aligned) / float64(len(toks))
}

// matchPartial counts transcript tokens that are keywords of a pattern's
// examples. A command verb among them boosts the score. The score is
// scaled by the pattern's Confidence before the cap and the Low gate, so
// a pattern authored below 1 needs more keyword hits to be accepted.
func (m *Matcher) matchPartial(entries []*entry, toks []string, active ir.ContextType) candidate {
	var best candidate
	if len(toks) == 0 {
		return best
	}
	for _, e := range entries {
		considered, boosted := scope(e, active)
		if !considered || len(e.keywords) == 0 {
			continue
		}
		matches := 0
		verb := false
		for _, tok := range toks {
			if e.keywords[tok] {
				matches++
				if m.verbs[tok] {
					verb = true
				}
			}
		}
		if matches == 0 {
			continue
		}
		conf := float64(matches) / float64(len(toks)) * PartialScale
		if verb {
			conf *= VerbBoost
		}
		conf = math.Min(PartialCap, boost(conf*e.Confidence, boosted))
		if conf < m.thresholds.Low {
			continue
		}
		if conf > best.confidence {
			best = candidate{entry: e, kind: ir.MatchPartial, confidence: conf, source: firstExample(e)}
		}
	}
	return best
}

// matchSemantic measures how many meaningful transcript words are close
// to a pattern's concept words (intent name and example keywords). Any
// overlap yields a candidate; it has no acceptance threshold.
func (m *Matcher) matchSemantic(entries []*entry, toks []string, active ir.ContextType) candidate {
	var best candidate

	var keys []string
	for _, tok := range toks {
		if locale.IsStopWord(tok) || m.extractor.IsNumberWord(tok) {
			continue
		}
		keys = append(keys, tok)
	}
	if len(keys) == 0 {
		return best
	}

	for _, e := range entries {
		considered, boosted := scope(e, active)
		if !considered || len(e.concepts) == 0 {
			continue
		}
		overlap := 0
		for _, k := range keys {
			if similarity.Best(k, e.concepts) >= m.thresholds.SemanticCutoff {
				overlap++
			}
		}
		if overlap == 0 {
			continue
		}
		conf := float64(overlap) / float64(len(keys)) * SemanticScale * e.Confidence
		conf = math.Min(SemanticCap, boost(conf, boosted))
		if conf > best.confidence {
			best = candidate{entry: e, kind: ir.MatchSemantic, confidence: conf, source: firstExample(e)}
		}
	}
	return best
}

func firstExample(e *entry) string {
	if len(e.Examples) > 0 {
		return e.Examples[0]
	}
	if len(e.Patterns) > 0 {
		return e.Patterns[0]
	}
	return ""
}
