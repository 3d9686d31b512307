package compiler

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/vox/internal/ir"
)

// TemplateError reports a syntax error in a structural template.
type TemplateError struct {
	Source  string
	Offset  int
	Message string
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("template %q at offset %d: %s", e.Source, e.Offset, e.Message)
}

var slotNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// NormalizeWord lower-cases and NFC-normalizes one template word so that
// it compares equal to the same word in a preprocessed transcript.
func NormalizeWord(s string) string {
	return norm.NFC.String(cases.Lower(language.Und).String(s))
}

// ParseTemplate parses the structural template language into its IR:
//
//	word            literal, matched case-insensitively
//	{name}          slot; type from types[name], default string
//	{name:type}     slot with an inline type
//	[ ... ]         optional group
//	( a | b c )     choice between word sequences
//
// Example: "(neue|new) bestellung [für] tisch {table:number}".
func ParseTemplate(src string, types map[string]ir.ParamType) (ir.Template, error) {
	p := &templateParser{src: src, types: types}
	segs, err := p.parseSeq("")
	if err != nil {
		return ir.Template{}, err
	}
	if len(segs) == 0 {
		return ir.Template{}, p.errorf("template is empty")
	}
	if !hasLiteral(segs) {
		return ir.Template{}, p.errorf("template needs at least one literal word")
	}
	return ir.Template{Source: src, Segments: segs}, nil
}

type templateParser struct {
	src   string
	pos   int
	types map[string]ir.ParamType
}

func (p *templateParser) errorf(format string, args ...any) error {
	return &TemplateError{Source: p.src, Offset: p.pos, Message: fmt.Sprintf(format, args...)}
}

func (p *templateParser) skipSpace() {
	for p.pos < len(p.src) && isSpace(p.src[p.pos]) {
		p.pos++
	}
}

// parseSeq reads segments until EOF or one of the bytes in stop, which is
// left unconsumed for the caller.
func (p *templateParser) parseSeq(stop string) ([]ir.Segment, error) {
	var segs []ir.Segment
	for {
		p.skipSpace()
		if p.pos >= len(p.src) {
			if stop != "" {
				return nil, p.errorf("unexpected end of template, want one of %q", stop)
			}
			return segs, nil
		}

		c := p.src[p.pos]
		if strings.IndexByte(stop, c) >= 0 {
			return segs, nil
		}

		switch c {
		case '{':
			seg, err := p.parseSlot()
			if err != nil {
				return nil, err
			}
			segs = append(segs, seg)
		case '[':
			p.pos++
			children, err := p.parseSeq("]")
			if err != nil {
				return nil, err
			}
			if len(children) == 0 {
				return nil, p.errorf("empty optional group")
			}
			p.pos++
			segs = append(segs, ir.Segment{Kind: ir.SegmentOptional, Children: children})
		case '(':
			seg, err := p.parseChoice()
			if err != nil {
				return nil, err
			}
			segs = append(segs, seg)
		case '}', ']', ')', '|':
			return nil, p.errorf("unexpected %q", c)
		default:
			start := p.pos
			for p.pos < len(p.src) && !isSpace(p.src[p.pos]) && !isSyntax(p.src[p.pos]) {
				p.pos++
			}
			segs = append(segs, ir.Segment{Kind: ir.SegmentLiteral, Text: NormalizeWord(p.src[start:p.pos])})
		}
	}
}

func (p *templateParser) parseSlot() (ir.Segment, error) {
	p.pos++ // {
	end := strings.IndexByte(p.src[p.pos:], '}')
	if end < 0 {
		return ir.Segment{}, p.errorf("unclosed slot")
	}
	body := strings.TrimSpace(p.src[p.pos : p.pos+end])

	name, typ, hasType := strings.Cut(body, ":")
	name = strings.TrimSpace(name)
	if !slotNamePattern.MatchString(name) {
		return ir.Segment{}, p.errorf("invalid slot name %q", name)
	}

	t := ir.ParamString
	if declared, ok := p.types[name]; ok {
		t = declared
	}
	if hasType {
		t = ir.ParamType(strings.TrimSpace(typ))
	}
	if !ir.ValidParamTypes[t] {
		return ir.Segment{}, p.errorf("slot %q has unknown type %q", name, t)
	}

	p.pos += end + 1
	return ir.Segment{Kind: ir.SegmentSlot, Name: name, Type: t}, nil
}

func (p *templateParser) parseChoice() (ir.Segment, error) {
	p.pos++ // (
	var alts [][]ir.Segment
	for {
		alt, err := p.parseSeq("|)")
		if err != nil {
			return ir.Segment{}, err
		}
		if len(alt) == 0 {
			return ir.Segment{}, p.errorf("empty choice alternative")
		}
		alts = append(alts, alt)

		sep := p.src[p.pos]
		p.pos++
		if sep == ')' {
			break
		}
	}
	if len(alts) < 2 {
		return ir.Segment{}, p.errorf("choice needs at least two alternatives")
	}
	return ir.Segment{Kind: ir.SegmentChoice, Alternatives: alts}, nil
}

func hasLiteral(segs []ir.Segment) bool {
	for _, s := range segs {
		switch s.Kind {
		case ir.SegmentLiteral:
			return true
		case ir.SegmentChoice:
			all := true
			for _, alt := range s.Alternatives {
				all = all && hasLiteral(alt)
			}
			if all {
				return true
			}
		}
	}
	return false
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isSyntax(c byte) bool {
	return strings.IndexByte("{}[]()|", c) >= 0
}

// slotExpr is the regexp body for one slot. Multi-word types are lazy
// unless the slot ends the template, where they take the rest of the span.
func slotExpr(t ir.ParamType, tail bool) string {
	switch t {
	case ir.ParamNumber, ir.ParamBoolean:
		return `\S+`
	case ir.ParamTime:
		return `\d{1,2}(?:[:.h]\d{2})?(?:\s*(?:uhr|am|pm|h))?|\S+\s+uhr|\S+`
	case ir.ParamDate:
		if tail {
			return `\S+(?:\s+\S+){0,2}`
		}
		return `\S+(?:\s+\S+){0,2}?`
	default:
		if tail {
			return `\S+(?:\s+\S+)*`
		}
		return `\S+(?:\s+\S+)*?`
	}
}

// renderSeq writes segs as a regexp. Every element carries its own
// leading \s+, so the haystack is matched with a space prepended.
func renderSeq(b *strings.Builder, segs []ir.Segment, tail bool) {
	for i, s := range segs {
		last := tail && i == len(segs)-1
		switch s.Kind {
		case ir.SegmentLiteral:
			b.WriteString(`\s+`)
			b.WriteString(regexp.QuoteMeta(s.Text))
		case ir.SegmentSlot:
			b.WriteString(`\s+(?P<`)
			b.WriteString(s.Name)
			b.WriteString(`>`)
			b.WriteString(slotExpr(s.Type, last))
			b.WriteString(`)`)
		case ir.SegmentOptional:
			b.WriteString(`(?:`)
			renderSeq(b, s.Children, last)
			b.WriteString(`)?`)
		case ir.SegmentChoice:
			b.WriteString(`(?:`)
			for j, alt := range s.Alternatives {
				if j > 0 {
					b.WriteString(`|`)
				}
				renderSeq(b, alt, last)
			}
			b.WriteString(`)`)
		}
	}
}

// TemplateRegexp renders a template IR for the regexp engine.
func TemplateRegexp(t ir.Template) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString(`(`)
	renderSeq(&b, t.Segments, true)
	b.WriteString(`)(?:\s|$)`)
	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, fmt.Errorf("template %q: %w", t.Source, err)
	}
	return re, nil
}

// CompiledTemplate is a parsed template bound to its regexp.
type CompiledTemplate struct {
	ir.Template
	re *regexp.Regexp
}

// TemplateMatch is one structural match of a template.
// Span is the byte length of the matched words; Slots holds the raw text
// bound to each slot that participated in the match.
type TemplateMatch struct {
	Span  int
	Slots map[string]string
}

// Match runs the template against preprocessed text.
func (c *CompiledTemplate) Match(text string) (TemplateMatch, bool) {
	haystack := " " + text
	loc := c.re.FindStringSubmatchIndex(haystack)
	if loc == nil {
		return TemplateMatch{}, false
	}

	m := TemplateMatch{
		Span:  len(strings.TrimSpace(haystack[loc[2]:loc[3]])),
		Slots: make(map[string]string),
	}
	for i, name := range c.re.SubexpNames() {
		if name == "" || loc[2*i] < 0 {
			continue
		}
		if _, seen := m.Slots[name]; seen {
			continue
		}
		m.Slots[name] = haystack[loc[2*i]:loc[2*i+1]]
	}
	return m, true
}

// CompileTemplate parses and renders one template string.
func CompileTemplate(src string, types map[string]ir.ParamType) (CompiledTemplate, error) {
	t, err := ParseTemplate(src, types)
	if err != nil {
		return CompiledTemplate{}, err
	}
	re, err := TemplateRegexp(t)
	if err != nil {
		return CompiledTemplate{}, err
	}
	return CompiledTemplate{Template: t, re: re}, nil
}
