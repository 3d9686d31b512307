package compiler

import (
	"errors"
	"fmt"

	"github.com/roach88/vox/internal/ir"
)

// CompiledPattern is a validated CommandPattern with its templates
// pre-parsed. Immutable once built.
type CompiledPattern struct {
	ir.CommandPattern
	Templates []CompiledTemplate
}

// CompilePattern validates p and compiles each of its templates.
func CompilePattern(p ir.CommandPattern) (*CompiledPattern, error) {
	if errs := Validate(&p); len(errs) > 0 {
		return nil, joinValidation(errs)
	}

	cp := &CompiledPattern{CommandPattern: p}
	for i, src := range p.Patterns {
		ct, err := CompileTemplate(src, p.ParamTypes)
		if err != nil {
			return nil, fmt.Errorf("%s: patterns[%d]: %w", p.Intent, i, err)
		}
		cp.Templates = append(cp.Templates, ct)
	}
	return cp, nil
}

// Registry is the compiled, ordered set of patterns a matcher scores
// against. Order is the tie-break order: on equal confidence the earlier
// pattern wins.
type Registry struct {
	Patterns []*CompiledPattern
	Hash     string
}

// Len returns the number of compiled patterns.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Patterns)
}

// CompileRegistry compiles base patterns followed by dialect patterns.
// Dialect patterns are marked as such and may repeat a base intent.
// Fails on the first invalid pattern; ValidateRegistry reports all.
func CompileRegistry(base, dialect []ir.CommandPattern) (*Registry, error) {
	all := make([]ir.CommandPattern, 0, len(base)+len(dialect))
	all = append(all, base...)
	for _, p := range dialect {
		p.Dialect = true
		all = append(all, p)
	}

	if errs := ValidateRegistry(all); len(errs) > 0 {
		return nil, joinValidation(errs)
	}

	reg := &Registry{}
	for _, p := range all {
		cp, err := CompilePattern(p)
		if err != nil {
			return nil, err
		}
		reg.Patterns = append(reg.Patterns, cp)
	}

	hash, err := ir.RegistryHash(all)
	if err != nil {
		return nil, err
	}
	reg.Hash = hash
	return reg, nil
}

// MustCompileRegistry is CompileRegistry for statically known patterns.
// Panics on error.
func MustCompileRegistry(base, dialect []ir.CommandPattern) *Registry {
	reg, err := CompileRegistry(base, dialect)
	if err != nil {
		panic(err)
	}
	return reg
}

func joinValidation(errs []ValidationError) error {
	out := make([]error, len(errs))
	for i := range errs {
		out[i] = errs[i]
	}
	return errors.Join(out...)
}
