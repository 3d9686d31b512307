package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/vox/internal/ir"
	"github.com/roach88/vox/internal/matcher"
)

// MatchOptions holds flags for the match command.
type MatchOptions struct {
	*RootOptions
	Context string
	Suggest int
}

// MatchOutput is the JSON payload of the match command.
type MatchOutput struct {
	Result      ir.MatchResult    `json:"result"`
	Suggestions []matcher.Similar `json:"suggestions,omitempty"`
}

// NewMatchCommand creates the match command.
func NewMatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "match <transcript>...",
		Short: "Classify one transcript",
		Long: `Classify a transcript against the pattern directory and print the intent,
match type, confidence and extracted parameters.

Exit codes:
  0 - The transcript matched
  1 - No pattern matched (the closest examples are suggested)
  2 - Command error (invalid patterns, unknown context, etc.)

Examples:
  vox match "neue bestellung für tisch 5"
  vox match --context cart_management "bezahlen mit karte"
  vox match --format json "zeige die speisekarte"`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMatch(opts, strings.Join(args, " "), cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Context, "context", "c", "", "active context used to filter and boost patterns")
	cmd.Flags().IntVar(&opts.Suggest, "suggest", 3, "similar examples to show when nothing matches")

	return cmd
}

func runMatch(opts *MatchOptions, transcript string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	var matchOpts []matcher.MatchOption
	if opts.Context != "" {
		ct, err := ir.ParseContextType(opts.Context)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --context", err)
		}
		matchOpts = append(matchOpts, matcher.WithContext(ct))
	}

	reg, _, err := loadRegistry(opts.Config.Patterns)
	if err != nil {
		return err
	}
	m, err := opts.newMatcher(reg)
	if err != nil {
		return err
	}

	out := MatchOutput{Result: m.Match(transcript, matchOpts...)}
	if out.Result.Matched() {
		return f.Success(out, func(w io.Writer) { writeMatch(w, out.Result) })
	}

	out.Suggestions = m.FindSimilar(transcript, opts.Suggest)
	return f.Failure(ExitFailure, "E_NO_MATCH", "no pattern matched", out, func(w io.Writer) {
		fmt.Fprintf(w, "✗ no match for %q\n", out.Result.Preprocessed)
		writeSuggestions(w, out.Suggestions)
	})
}

func writeMatch(w io.Writer, r ir.MatchResult) {
	fmt.Fprintf(w, "✓ %s (%s, %.2f)\n", r.Intent, r.MatchType, r.Confidence)
	fmt.Fprintf(w, "  category: %s\n", r.Category)
	fmt.Fprintf(w, "  pattern:  %s\n", r.Pattern)
	if r.ActiveContext != "" {
		fmt.Fprintf(w, "  context:  %s\n", r.ActiveContext)
	}
	for _, k := range r.Params.SortedKeys() {
		fmt.Fprintf(w, "  %s = %s\n", k, formatValue(r.Params[k]))
	}
}

func writeSuggestions(w io.Writer, s []matcher.Similar) {
	if len(s) == 0 {
		return
	}
	fmt.Fprintln(w, "  did you mean:")
	for _, sim := range s {
		fmt.Fprintf(w, "    %-24q %s (%.2f)\n", sim.Example, sim.Intent, sim.Score)
	}
}

func formatValue(v ir.Value) string {
	b, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
