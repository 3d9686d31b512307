package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/vox/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // scenario filter (glob pattern)
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run conversation scenarios",
		Long: `Run YAML conversation scenarios against the matcher and context manager.

Each scenario's expectations and assertions are checked. When
<scenarios-dir>/golden/<file>.golden exists, the trace must also match it
byte for byte.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  vox test ./scenarios
  vox test ./scenarios --filter "order-*"
  vox test ./scenarios --update
  vox test ./scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runTests(opts *TestOptions, dir string, cmd *cobra.Command) error {
	if _, err := os.Stat(dir); err != nil {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", dir))
	}

	suite, err := harness.RunDir(cmd.Context(), dir, opts.Filter, harness.WithLogger(opts.Logger))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to run scenarios", err)
	}

	for i := range suite.Scenarios {
		o := &suite.Scenarios[i]
		if o.Trace == nil {
			continue
		}
		if err := checkGolden(o, opts.Update); err != nil {
			o.Errors = append(o.Errors, err.Error())
			if o.Pass {
				o.Pass = false
				suite.Passed--
				suite.Failed++
			}
		}
	}

	f := opts.formatter(cmd)
	text := func(w io.Writer) { writeSuite(w, suite, opts.Update) }
	if suite.Failed > 0 {
		return f.Failure(ExitFailure, "E_TEST_FAILED",
			fmt.Sprintf("%d scenario(s) failed", suite.Failed), suite, text)
	}
	return f.Success(suite, text)
}

// goldenFilePath returns the path to the golden file for a scenario file.
func goldenFilePath(scenarioFile string) string {
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(filepath.Dir(scenarioFile), "golden", name+".golden")
}

// checkGolden compares or rewrites the golden trace of one scenario. A
// missing golden file is not an error unless update is set, in which case
// it is created.
func checkGolden(o *harness.ScenarioOutcome, update bool) error {
	path := goldenFilePath(o.Path)
	if update {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return fmt.Errorf("failed to create golden directory: %w", err)
		}
		if err := os.WriteFile(path, o.Trace, 0644); err != nil {
			return fmt.Errorf("failed to write golden file: %w", err)
		}
		return nil
	}

	want, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read golden file: %w", err)
	}
	if !bytes.Equal(want, o.Trace) {
		return fmt.Errorf("trace does not match golden file (run with --update to regenerate)")
	}
	return nil
}

func writeSuite(w io.Writer, suite *harness.SuiteResult, updated bool) {
	if suite.Total == 0 {
		fmt.Fprintln(w, "No scenarios found.")
		return
	}
	for _, o := range suite.Scenarios {
		if o.Pass {
			if updated {
				fmt.Fprintf(w, "✓ %s (golden updated)\n", o.Name)
			} else {
				fmt.Fprintf(w, "✓ %s\n", o.Name)
			}
			continue
		}
		fmt.Fprintf(w, "✗ %s\n", o.Name)
		for _, e := range o.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", suite.Passed, suite.Failed, suite.Total)
	if suite.Failed == 0 {
		fmt.Fprintln(w, "✓ All scenarios passed")
	}
}
