package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/vox/internal/compiler"
	"github.com/roach88/vox/internal/workflow"
)

// ValidationResult is the payload of the validate command.
type ValidationResult struct {
	Valid    bool              `json:"valid"`
	Files    int               `json:"files,omitempty"`
	Commands int               `json:"commands,omitempty"`
	Dialect  int               `json:"dialect,omitempty"`
	Timeouts int               `json:"timeouts,omitempty"`
	Hash     string            `json:"hash,omitempty"`
	Errors   []ValidationIssue `json:"errors,omitempty"`

	Warnings []workflow.TableWarning `json:"warnings,omitempty"`
}

// ValidationIssue is one problem found in the pattern directory.
type ValidationIssue struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [patterns-dir]",
		Short: "Check a pattern directory",
		Long: `Load and compile every command pattern, reporting all problems at once.

Checks CUE syntax, required fields, template syntax, parameter types,
context names and workflow timeouts. The transition tables, with the
timeout overrides applied, are checked for unreachable contexts and for
contexts that can never return to idle; those are reported as warnings.
The directory defaults to the configured pattern directory.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := rootOpts.Config.Patterns
			if len(args) == 1 {
				dir = args[0]
			}
			return runValidate(rootOpts, dir, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, dir string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	res, errs := compiler.LoadPatterns(dir, compiler.LoadModeCollectAll)
	if res == nil {
		var loadErr *compiler.LoadError
		if len(errs) > 0 && errors.As(errs[0], &loadErr) {
			_ = f.Error(loadErr.Code, loadErr.Message, nil)
			return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", loadErr.Code, loadErr.Message))
		}
		_ = f.Error(compiler.ErrCodeGeneric, errors.Join(errs...).Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load patterns", errors.Join(errs...))
	}
	f.VerboseLog("Found %d CUE file(s) in %s", res.FileCount, dir)

	result := ValidationResult{
		Files:    res.FileCount,
		Commands: len(res.Commands),
		Dialect:  len(res.Dialect),
		Timeouts: len(res.Timeouts),
		Warnings: workflow.DefaultTables().WithTimeouts(res.Timeouts).Analyze(),
	}
	for _, err := range errs {
		result.Errors = append(result.Errors, toIssue(err))
	}
	if len(errs) == 0 {
		reg, err := res.Registry()
		if err != nil {
			result.Errors = append(result.Errors, registryIssues(err)...)
		} else {
			result.Hash = reg.Hash
		}
	}

	if len(result.Errors) > 0 {
		msg := fmt.Sprintf("validation failed with %d error(s)", len(result.Errors))
		return f.Failure(ExitFailure, result.Errors[0].Code, msg, result, func(w io.Writer) {
			fmt.Fprintln(w, "✗ Validation failed")
			fmt.Fprintln(w)
			for _, issue := range result.Errors {
				if issue.Line > 0 {
					fmt.Fprintf(w, "%s:%d\n", issue.File, issue.Line)
				}
				fmt.Fprintf(w, "  %s: %s\n\n", issue.Code, issue.Message)
			}
		})
	}

	result.Valid = true
	return f.Success(result, func(w io.Writer) {
		fmt.Fprintf(w, "✓ %d command(s), %d dialect variant(s), %d timeout override(s)\n",
			result.Commands, result.Dialect, result.Timeouts)
		fmt.Fprintf(w, "  registry %s\n", result.Hash)
		for _, warn := range result.Warnings {
			fmt.Fprintf(w, "  warning (%s): %s\n", warn.Kind, warn.Message)
		}
	})
}

func toIssue(err error) ValidationIssue {
	var loadErr *compiler.LoadError
	if errors.As(err, &loadErr) {
		issue := ValidationIssue{Code: loadErr.Code, Message: loadErr.Message}
		if loadErr.Pos.IsValid() {
			issue.File = loadErr.Pos.Filename()
			issue.Line = loadErr.Pos.Line()
		}
		return issue
	}
	var vErr compiler.ValidationError
	if errors.As(err, &vErr) {
		return ValidationIssue{Code: vErr.Code, Message: vErr.Field + ": " + vErr.Message, Line: vErr.Line}
	}
	return ValidationIssue{Code: compiler.ErrCodeGeneric, Message: err.Error()}
}

// registryIssues splits a joined compile error into one issue per cause.
func registryIssues(err error) []ValidationIssue {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []ValidationIssue
		for _, e := range joined.Unwrap() {
			out = append(out, toIssue(e))
		}
		return out
	}
	return []ValidationIssue{toIssue(err)}
}
