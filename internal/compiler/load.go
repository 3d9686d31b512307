package compiler

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/vox/internal/ir"
)

// LoadMode controls how errors are handled during pattern loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// LoadResult contains the results of loading patterns from a directory.
type LoadResult struct {
	Commands  []ir.CommandPattern
	Dialect   []ir.CommandPattern
	Timeouts  map[ir.ContextType]time.Duration
	CUEValue  cue.Value // The raw CUE value for additional processing
	FileCount int       // Number of CUE files found
}

// Registry compiles the loaded base and dialect commands.
func (r *LoadResult) Registry() (*Registry, error) {
	return CompileRegistry(r.Commands, r.Dialect)
}

// LoadError represents an error that occurred during pattern loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error code constants for loading.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
)

// LoadPatterns loads and compiles CUE command definitions from a directory:
//
//	command: NEW_ORDER: { category: "order", patterns: [...], ... }
//	dialect: NEW_ORDER: { ... }           // optional parallel registry
//	workflow: timeouts: payment: "5m"     // optional timeout overrides
//
// If mode is LoadModeFailFast, returns on first error.
// If mode is LoadModeCollectAll, collects all errors.
func LoadPatterns(dir string, mode LoadMode) (*LoadResult, []error) {
	var errs []error

	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("patterns directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing patterns directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(cueFiles) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
	}

	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}}
	}

	result := &LoadResult{
		CUEValue:  value,
		FileCount: len(cueFiles),
	}

	for _, section := range []struct {
		path string
		dst  *[]ir.CommandPattern
	}{
		{"command", &result.Commands},
		{"dialect", &result.Dialect},
	} {
		sectionVal := value.LookupPath(cue.ParsePath(section.path))
		if !sectionVal.Exists() {
			continue
		}
		iter, iterErr := sectionVal.Fields()
		if iterErr != nil {
			errs = append(errs, &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("iterating %s: %v", section.path, iterErr)})
			if mode == LoadModeFailFast {
				return result, errs
			}
			continue
		}
		for iter.Next() {
			p, compileErr := CompileCommand(iter.Value())
			if compileErr != nil {
				errs = append(errs, convertCompileError(compileErr, section.path+"."+iter.Label()))
				if mode == LoadModeFailFast {
					return result, errs
				}
				continue
			}
			*section.dst = append(*section.dst, *p)
		}
	}

	timeouts, timeoutErrs := loadTimeouts(value)
	result.Timeouts = timeouts
	for _, e := range timeoutErrs {
		errs = append(errs, e)
		if mode == LoadModeFailFast {
			return result, errs
		}
	}

	if len(result.Commands) == 0 && len(result.Dialect) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeGeneric, Message: "no commands found in patterns"})
	}

	return result, errs
}

// loadTimeouts reads workflow.timeouts: context type to duration string.
// "0" or "0s" disables the timeout for that context.
func loadTimeouts(v cue.Value) (map[ir.ContextType]time.Duration, []error) {
	timeoutsVal := v.LookupPath(cue.ParsePath("workflow.timeouts"))
	if !timeoutsVal.Exists() {
		return nil, nil
	}

	iter, err := timeoutsVal.Fields()
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("iterating workflow.timeouts: %v", err)}}
	}

	var errs []error
	out := make(map[ir.ContextType]time.Duration)
	for iter.Next() {
		label := iter.Label()
		ct, err := ir.ParseContextType(label)
		if err != nil {
			errs = append(errs, &LoadError{Code: ErrUnknownContext, Message: err.Error(), Pos: iter.Value().Pos()})
			continue
		}
		s, err := iter.Value().String()
		if err != nil {
			errs = append(errs, &LoadError{Code: ErrInvalidTimeout, Message: fmt.Sprintf("timeout for %s must be a duration string", label), Pos: iter.Value().Pos()})
			continue
		}
		d, err := time.ParseDuration(s)
		if err != nil || d < 0 {
			errs = append(errs, &LoadError{Code: ErrInvalidTimeout, Message: fmt.Sprintf("timeout for %s: invalid duration %q", label, s), Pos: iter.Value().Pos()})
			continue
		}
		out[ct] = d
	}
	return out, errs
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error, context string) *LoadError {
	var compileErr *CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: fmt.Sprintf("%s: %s", context, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeGeneric,
		Message: fmt.Sprintf("%s: %v", context, err),
	}
}

// MapFieldToErrorCode maps a compiler error field to an error code.
func MapFieldToErrorCode(field string) string {
	switch field {
	case "category":
		return ErrCategoryEmpty
	case "patterns":
		return ErrNoPatterns
	case "contexts":
		return ErrUnknownContext
	case "examples":
		return ErrEmptyExample
	default:
		if len(field) > 7 && field[:7] == "params." {
			return ErrInvalidParamType
		}
		return ErrCodeGeneric
	}
}
