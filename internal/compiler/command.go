package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/vox/internal/ir"
)

// DefaultConfidence is the authored weight of a pattern that omits one.
const DefaultConfidence = 1.0

// CompileCommand parses a CUE value into a CommandPattern.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the command struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`command: NEW_ORDER: { ... }`)
//	p, err := CompileCommand(v.LookupPath(cue.ParsePath("command.NEW_ORDER")))
func CompileCommand(v cue.Value) (*ir.CommandPattern, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	p := &ir.CommandPattern{Confidence: DefaultConfidence}

	// Intent is the struct label
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		p.Intent = labels[len(labels)-1].String()
	}

	categoryVal := v.LookupPath(cue.ParsePath("category"))
	if !categoryVal.Exists() {
		return nil, &CompileError{
			Field:   "category",
			Message: "category is required",
			Pos:     v.Pos(),
		}
	}
	category, err := categoryVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	p.Category = category

	// patterns: a string or a list of strings (required)
	patternsVal := v.LookupPath(cue.ParsePath("patterns"))
	if !patternsVal.Exists() {
		return nil, &CompileError{
			Field:   "patterns",
			Message: "at least one pattern is required",
			Pos:     v.Pos(),
		}
	}
	p.Patterns, err = stringOrList(patternsVal, "patterns")
	if err != nil {
		return nil, err
	}

	if examplesVal := v.LookupPath(cue.ParsePath("examples")); examplesVal.Exists() {
		p.Examples, err = stringOrList(examplesVal, "examples")
		if err != nil {
			return nil, err
		}
	}

	p.ParamTypes, err = parseParams(v)
	if err != nil {
		return nil, err
	}

	if confVal := v.LookupPath(cue.ParsePath("confidence")); confVal.Exists() {
		conf, err := confVal.Float64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		p.Confidence = conf
	}

	if ctxVal := v.LookupPath(cue.ParsePath("contexts")); ctxVal.Exists() {
		names, err := stringOrList(ctxVal, "contexts")
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			ct, err := ir.ParseContextType(name)
			if err != nil {
				return nil, &CompileError{
					Field:   "contexts",
					Message: err.Error(),
					Pos:     ctxVal.Pos(),
				}
			}
			p.Contexts = append(p.Contexts, ct)
		}
	}

	return p, nil
}

// parseParams reads the params struct: slot name to param type.
func parseParams(v cue.Value) (map[string]ir.ParamType, error) {
	paramsVal := v.LookupPath(cue.ParsePath("params"))
	if !paramsVal.Exists() {
		return nil, nil
	}

	iter, err := paramsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	params := make(map[string]ir.ParamType)
	for iter.Next() {
		name := iter.Label()
		typ, err := iter.Value().String()
		if err != nil {
			return nil, &CompileError{
				Field:   "params." + name,
				Message: "param type must be a string",
				Pos:     iter.Value().Pos(),
			}
		}
		params[name] = ir.ParamType(typ)
	}
	return params, nil
}

// stringOrList accepts either a single string or a list of strings.
func stringOrList(v cue.Value, field string) ([]string, error) {
	if s, err := v.String(); err == nil {
		return []string{s}, nil
	}

	iter, err := v.List()
	if err != nil {
		return nil, &CompileError{
			Field:   field,
			Message: "must be a string or a list of strings",
			Pos:     v.Pos(),
		}
	}

	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, &CompileError{
				Field:   fmt.Sprintf("%s[%d]", field, len(out)),
				Message: "must be a string",
				Pos:     iter.Value().Pos(),
			}
		}
		out = append(out, s)
	}
	return out, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
