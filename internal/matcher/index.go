package matcher

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/roach88/vox/internal/compiler"
	"github.com/roach88/vox/internal/ir"
	"github.com/roach88/vox/internal/locale"
)

// entry is a compiled pattern with the word sets the non-structural
// strategies score against, derived once per registry.
type entry struct {
	*compiler.CompiledPattern

	templates []templateWords
	keywords  map[string]bool // example keywords, for partial matching
	concepts  []string        // intent words and example keywords, for semantic matching
	params    []param         // declared params, sorted by name
}

type templateWords struct {
	words       []string
	numberSlots int
	slotTypes   map[string]ir.ParamType
}

type param struct {
	name string
	typ  ir.ParamType
}

func buildIndex(reg *compiler.Registry) []*entry {
	if reg == nil {
		return nil
	}
	out := make([]*entry, 0, len(reg.Patterns))
	for _, cp := range reg.Patterns {
		out = append(out, newEntry(cp))
	}
	return out
}

func newEntry(cp *compiler.CompiledPattern) *entry {
	e := &entry{CompiledPattern: cp, keywords: make(map[string]bool)}

	types := make(map[string]ir.ParamType)
	for name, t := range cp.ParamTypes {
		types[name] = t
	}
	for _, ct := range cp.Templates {
		tw := templateWords{words: ct.Words(), slotTypes: make(map[string]ir.ParamType)}
		for _, s := range ct.Slots() {
			tw.slotTypes[s.Name] = s.Type
			types[s.Name] = s.Type
			if s.Type == ir.ParamNumber {
				tw.numberSlots++
			}
		}
		e.templates = append(e.templates, tw)
	}
	for name, t := range types {
		e.params = append(e.params, param{name: name, typ: t})
	}
	sort.Slice(e.params, func(i, j int) bool { return e.params[i].name < e.params[j].name })

	for _, ex := range cp.Examples {
		for _, w := range tokens(Preprocess(ex)) {
			if isKeyword(w) {
				e.keywords[w] = true
			}
		}
	}

	seen := make(map[string]bool)
	for _, w := range strings.Split(compiler.NormalizeWord(cp.Intent), "_") {
		if w != "" && !seen[w] {
			seen[w] = true
			e.concepts = append(e.concepts, w)
		}
	}
	for _, w := range sortedKeys(e.keywords) {
		if !seen[w] {
			seen[w] = true
			e.concepts = append(e.concepts, w)
		}
	}
	return e
}

// isKeyword reports whether w carries meaning: not a stop-word and longer
// than two runes.
func isKeyword(w string) bool {
	return !locale.IsStopWord(w) && utf8.RuneCountInString(w) > 2
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func defaultVerbs() map[string]bool {
	out := make(map[string]bool, len(locale.All().Verbs))
	for v := range locale.All().Verbs {
		out[v] = true
	}
	return out
}
