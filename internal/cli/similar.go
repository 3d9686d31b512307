package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

// NewSimilarCommand creates the similar command.
func NewSimilarCommand(rootOpts *RootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "similar <transcript>...",
		Short: "Rank pattern examples by similarity",
		Long: `Rank every example phrase in the pattern directory by edit-distance
similarity to the transcript, highest first.

Examples:
  vox similar "bstellig fürs tisch"
  vox similar -n 10 "menü"`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, _, err := loadRegistry(rootOpts.Config.Patterns)
			if err != nil {
				return err
			}
			m, err := rootOpts.newMatcher(reg)
			if err != nil {
				return err
			}
			ranked := m.FindSimilar(strings.Join(args, " "), limit)
			return rootOpts.formatter(cmd).Success(ranked, func(w io.Writer) {
				if len(ranked) == 0 {
					fmt.Fprintln(w, "No examples.")
					return
				}
				for i, s := range ranked {
					fmt.Fprintf(w, "%2d. %.3f  %-16s %s\n", i+1, s.Score, s.Intent, s.Example)
				}
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 5, "number of examples (0 for all)")

	return cmd
}
