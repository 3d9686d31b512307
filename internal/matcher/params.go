package matcher

import (
	"github.com/roach88/vox/internal/entity"
	"github.com/roach88/vox/internal/ir"
)

// exactParams normalizes the raw slot captures of a structural match by
// the slot types of the template that matched.
func exactParams(c candidate) ir.Object {
	out := ir.Object{}
	types := c.entry.templates[c.template].slotTypes
	for name, raw := range c.slots {
		out[name] = entity.NormalizeParam(types[name], raw)
	}
	return out
}

// entityParams fills a pattern's declared params from the entities found
// in the transcript. Params are filled in name order; each takes an
// entity whose kind equals the param name if there is one, otherwise the
// first compatible entity. No entity fills two params.
func (m *Matcher) entityParams(e *entry, pre string) ir.Object {
	out := ir.Object{}
	if len(e.params) == 0 {
		return out
	}
	found := m.extractor.Extract(pre)
	used := make([]bool, len(found))

	for _, p := range e.params {
		pick := -1
		for i, em := range found {
			if used[i] || !compatible(p.typ, em.Kind) {
				continue
			}
			if string(em.Kind) == p.name {
				pick = i
				break
			}
			if pick < 0 {
				pick = i
			}
		}
		if pick < 0 {
			continue
		}
		used[pick] = true
		out[p.name] = found[pick].Value
	}
	return out
}

// compatible reports whether an entity of kind k can fill a param of type t.
func compatible(t ir.ParamType, k ir.EntityKind) bool {
	switch t {
	case ir.ParamNumber:
		switch k {
		case ir.EntityNumber, ir.EntityTable, ir.EntityPersons, ir.EntityQuantity, ir.EntityCurrency:
			return true
		}
		return false
	case ir.ParamDate:
		return k == ir.EntityDate
	case ir.ParamTime:
		return k == ir.EntityTime
	default:
		return true
	}
}
