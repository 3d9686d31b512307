package ir

// ParamType is the semantic type of a capture slot.
type ParamType string

const (
	ParamString   ParamType = "string"
	ParamNumber   ParamType = "number"
	ParamDate     ParamType = "date"
	ParamTime     ParamType = "time"
	ParamBoolean  ParamType = "boolean"
	ParamEntity   ParamType = "entity"
	ParamWildcard ParamType = "wildcard"
)

// ValidParamTypes lists the accepted paramTypes values.
var ValidParamTypes = map[ParamType]bool{
	ParamString:   true,
	ParamNumber:   true,
	ParamDate:     true,
	ParamTime:     true,
	ParamBoolean:  true,
	ParamEntity:   true,
	ParamWildcard: true,
}

// CommandPattern is one recognizable phrasing family of an intent, as
// authored in configuration. Immutable once compiled.
type CommandPattern struct {
	Intent     string               `json:"intent" validate:"required,intent"`
	Category   string               `json:"category" validate:"required"`
	Patterns   []string             `json:"patterns" validate:"required,min=1,dive,required"`
	Examples   []string             `json:"examples,omitempty" validate:"dive,required"`
	ParamTypes map[string]ParamType `json:"param_types,omitempty" validate:"dive,keys,required,endkeys,oneof=string number date time boolean entity wildcard"`
	Confidence float64              `json:"confidence" validate:"gte=0,lte=1"`
	Contexts   []ContextType        `json:"contexts,omitempty" validate:"dive,contexttype"`
	Dialect    bool                 `json:"dialect,omitempty"`
}

// RelevantIn reports whether the pattern applies in the given context.
// An empty allow-list is relevant everywhere.
func (p *CommandPattern) RelevantIn(ctx ContextType) bool {
	if len(p.Contexts) == 0 {
		return true
	}
	for _, c := range p.Contexts {
		if c == ctx {
			return true
		}
	}
	return false
}

// toObject renders the pattern for content hashing.
func (p *CommandPattern) toObject() Object {
	patterns := make(List, len(p.Patterns))
	for i, s := range p.Patterns {
		patterns[i] = String(s)
	}
	examples := make(List, len(p.Examples))
	for i, s := range p.Examples {
		examples[i] = String(s)
	}
	types := make(Object, len(p.ParamTypes))
	for k, v := range p.ParamTypes {
		types[k] = String(v)
	}
	contexts := make(List, len(p.Contexts))
	for i, c := range p.Contexts {
		contexts[i] = String(c)
	}
	return NewObject(
		P("intent", String(p.Intent)),
		P("category", String(p.Category)),
		P("patterns", patterns),
		P("examples", examples),
		P("param_types", types),
		P("confidence", Float(p.Confidence)),
		P("contexts", contexts),
		P("dialect", Bool(p.Dialect)),
	)
}

// SegmentKind distinguishes the parts of a compiled template.
type SegmentKind int

const (
	// SegmentLiteral matches one word exactly.
	SegmentLiteral SegmentKind = iota + 1
	// SegmentSlot binds one or more words to a named parameter.
	SegmentSlot
	// SegmentOptional matches its children or nothing.
	SegmentOptional
	// SegmentChoice matches exactly one of its alternatives.
	SegmentChoice
)

func (k SegmentKind) String() string {
	switch k {
	case SegmentLiteral:
		return "literal"
	case SegmentSlot:
		return "slot"
	case SegmentOptional:
		return "optional"
	case SegmentChoice:
		return "choice"
	default:
		return "unknown"
	}
}

// Segment is one node of a compiled template.
//
//	literal:  Text
//	slot:     Name, Type
//	optional: Children (matched in sequence)
//	choice:   Alternatives (each a sequence)
type Segment struct {
	Kind         SegmentKind `json:"kind"`
	Text         string      `json:"text,omitempty"`
	Name         string      `json:"name,omitempty"`
	Type         ParamType   `json:"type,omitempty"`
	Children     []Segment   `json:"children,omitempty"`
	Alternatives [][]Segment `json:"alternatives,omitempty"`
}

// Template is the engine-neutral compiled form of one structural pattern
// string: a sequence of literal and slot segments.
type Template struct {
	Source   string    `json:"source"`
	Segments []Segment `json:"segments"`
}

// Slots returns the slot segments in order of appearance, including those
// nested in optional and choice groups.
func (t Template) Slots() []Segment {
	var out []Segment
	var walk func([]Segment)
	walk = func(segs []Segment) {
		for _, s := range segs {
			switch s.Kind {
			case SegmentSlot:
				out = append(out, s)
			case SegmentOptional:
				walk(s.Children)
			case SegmentChoice:
				for _, alt := range s.Alternatives {
					walk(alt)
				}
			}
		}
	}
	walk(t.Segments)
	return out
}

// Words returns the de-structured template: every literal word in order,
// with choice groups contributing all alternatives and slots omitted.
func (t Template) Words() []string {
	var out []string
	var walk func([]Segment)
	walk = func(segs []Segment) {
		for _, s := range segs {
			switch s.Kind {
			case SegmentLiteral:
				out = append(out, s.Text)
			case SegmentOptional:
				walk(s.Children)
			case SegmentChoice:
				for _, alt := range s.Alternatives {
					walk(alt)
				}
			}
		}
	}
	walk(t.Segments)
	return out
}
