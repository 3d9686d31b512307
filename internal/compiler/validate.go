package compiler

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/roach88/vox/internal/ir"
)

// Validation error codes (E100-E199)
const (
	// General validation errors (E100)
	ErrUnsupportedType = "E100" // unsupported type for validation

	// CommandPattern errors (E101-E119)
	ErrIntentInvalid       = "E101" // intent missing or not UPPER_SNAKE
	ErrCategoryEmpty       = "E102" // category is required
	ErrNoPatterns          = "E103" // at least one template required
	ErrInvalidParamType    = "E104" // unknown param type
	ErrConfidenceRange     = "E105" // confidence outside [0,1]
	ErrUnknownContext      = "E106" // contexts lists an unknown context type
	ErrTemplateSyntax      = "E107" // template does not parse
	ErrUndeclaredSlot      = "E108" // param type declared for a slot no template has
	ErrEmptyExample        = "E109" // blank example phrase
	ErrDuplicateIntent     = "E110" // intent defined twice in one registry
	ErrConflictingSlotType = "E111" // slot typed differently across templates

	// Workflow configuration errors (E120-E129)
	ErrInvalidTimeout = "E120" // timeout not a positive duration
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

var intentPattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)

// patternValidate checks the struct tags on ir.CommandPattern.
var patternValidate *validator.Validate

func init() {
	patternValidate = validator.New()

	patternValidate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = patternValidate.RegisterValidation("intent", func(fl validator.FieldLevel) bool {
		return intentPattern.MatchString(fl.Field().String())
	})
	_ = patternValidate.RegisterValidation("contexttype", func(fl validator.FieldLevel) bool {
		return ir.ContextType(fl.Field().String()).Valid()
	})
}

// Validate validates a command pattern against schema rules.
// Returns all errors found (does not fail-fast).
func Validate(v any) []ValidationError {
	switch p := v.(type) {
	case *ir.CommandPattern:
		return validatePattern(p)
	case ir.CommandPattern:
		return validatePattern(&p)
	default:
		return []ValidationError{{
			Field:   "type",
			Message: fmt.Sprintf("unsupported type: %T", v),
			Code:    ErrUnsupportedType,
		}}
	}
}

func validatePattern(p *ir.CommandPattern) []ValidationError {
	prefix := p.Intent
	if prefix == "" {
		prefix = "<unnamed>"
	}

	var errs []ValidationError
	if err := patternValidate.Struct(p); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return []ValidationError{{Field: prefix, Message: err.Error(), Code: ErrUnsupportedType}}
		}
		for _, fe := range fieldErrs {
			errs = append(errs, fromFieldError(prefix, fe))
		}
	}

	// Template syntax and slot typing.
	slots := make(map[string]ir.ParamType)
	for i, src := range p.Patterns {
		if strings.TrimSpace(src) == "" {
			continue // reported by the struct tags
		}
		tmpl, err := ParseTemplate(src, p.ParamTypes)
		if err != nil {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("%s.patterns[%d]", prefix, i),
				Message: err.Error(),
				Code:    ErrTemplateSyntax,
			})
			continue
		}
		for _, s := range tmpl.Slots() {
			if prev, ok := slots[s.Name]; ok && prev != s.Type {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("%s.patterns[%d]", prefix, i),
					Message: fmt.Sprintf("slot %q is %s here but %s in an earlier template", s.Name, s.Type, prev),
					Code:    ErrConflictingSlotType,
				})
				continue
			}
			slots[s.Name] = s.Type
		}
	}

	for name := range p.ParamTypes {
		if _, ok := slots[name]; !ok && len(slots) > 0 {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("%s.param_types.%s", prefix, name),
				Message: fmt.Sprintf("no template has a slot named %q", name),
				Code:    ErrUndeclaredSlot,
			})
		}
	}

	return errs
}

func fromFieldError(prefix string, fe validator.FieldError) ValidationError {
	field := prefix + strings.TrimPrefix(fe.Namespace(), "CommandPattern")

	switch fe.StructField() {
	case "Intent":
		return ValidationError{Field: field, Code: ErrIntentInvalid,
			Message: "intent is required and must be UPPER_SNAKE_CASE"}
	case "Category":
		return ValidationError{Field: field, Code: ErrCategoryEmpty,
			Message: "category is required"}
	case "Confidence":
		return ValidationError{Field: field, Code: ErrConfidenceRange,
			Message: fmt.Sprintf("confidence %v outside [0,1]", fe.Value())}
	case "Contexts":
		return ValidationError{Field: field, Code: ErrUnknownContext,
			Message: fmt.Sprintf("unknown context type %q", fe.Value())}
	case "Examples":
		return ValidationError{Field: field, Code: ErrEmptyExample,
			Message: "example phrases must be non-empty"}
	}

	// Dive errors carry the element as StructField ("patterns[0]", "param_types[x]").
	switch {
	case strings.HasPrefix(fe.StructField(), "Patterns"):
		return ValidationError{Field: field, Code: ErrNoPatterns,
			Message: "at least one non-empty template is required"}
	case strings.HasPrefix(fe.StructField(), "ParamTypes"):
		return ValidationError{Field: field, Code: ErrInvalidParamType,
			Message: fmt.Sprintf("invalid param type %q", fe.Value())}
	case strings.HasPrefix(fe.StructField(), "Contexts"):
		return ValidationError{Field: field, Code: ErrUnknownContext,
			Message: fmt.Sprintf("unknown context type %q", fe.Value())}
	case strings.HasPrefix(fe.StructField(), "Examples"):
		return ValidationError{Field: field, Code: ErrEmptyExample,
			Message: "example phrases must be non-empty"}
	}
	return ValidationError{Field: field, Code: ErrUnsupportedType, Message: fe.Error()}
}

// ValidateRegistry validates every pattern and checks that no intent is
// defined twice within the base or the dialect set.
func ValidateRegistry(patterns []ir.CommandPattern) []ValidationError {
	var errs []ValidationError
	type key struct {
		intent  string
		dialect bool
	}
	seen := make(map[key]bool)
	for i := range patterns {
		p := &patterns[i]
		errs = append(errs, validatePattern(p)...)

		k := key{p.Intent, p.Dialect}
		if p.Intent != "" && seen[k] {
			errs = append(errs, ValidationError{
				Field:   p.Intent,
				Message: fmt.Sprintf("intent %q defined more than once", p.Intent),
				Code:    ErrDuplicateIntent,
			})
		}
		seen[k] = true
	}
	return errs
}
