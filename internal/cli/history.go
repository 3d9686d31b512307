package cli

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/vox/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	DBPath string
	Intent string
	Limit  int
	Counts bool
	Prune  time.Duration
}

// IntentCount is one row of the --counts output.
type IntentCount struct {
	Intent string `json:"intent"`
	Count  int    `json:"count"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show logged match results",
		Long: `Show the match results recorded by "vox listen" in the SQLite store.

Examples:
  vox history --db vox.db
  vox history --db vox.db --intent NEW_ORDER -n 5
  vox history --db vox.db --counts
  vox history --db vox.db --prune 720h`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DBPath, "db", "", "path to the SQLite store (overrides store.path)")
	cmd.Flags().StringVar(&opts.Intent, "intent", "", "only show results for this intent")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "maximum records to show (0 for all)")
	cmd.Flags().BoolVar(&opts.Counts, "counts", false, "show how often each intent matched")
	cmd.Flags().DurationVar(&opts.Prune, "prune", 0, "first delete records older than this")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	path := opts.Config.Store.Path
	if cmd.Flags().Changed("db") {
		path = opts.DBPath
	}
	if path == "" {
		return NewExitError(ExitCommandError, "no store configured: pass --db or set store.path")
	}

	st, err := store.Open(path, store.WithLogger(opts.Logger))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open store", err)
	}
	defer st.Close()

	f := opts.formatter(cmd)
	ctx := cmd.Context()

	if opts.Prune > 0 {
		n, err := st.PruneMatches(ctx, time.Now().Add(-opts.Prune))
		if err != nil {
			return WrapExitError(ExitFailure, "failed to prune match log", err)
		}
		f.VerboseLog("Pruned %d record(s) older than %s", n, opts.Prune)
	}

	if opts.Counts {
		counts, err := st.IntentCounts(ctx)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to count intents", err)
		}
		rows := sortCounts(counts)
		return f.Success(rows, func(w io.Writer) { writeCounts(w, rows) })
	}

	var records []store.MatchRecord
	if opts.Intent != "" {
		records, err = st.MatchesForIntent(ctx, opts.Intent, opts.Limit)
	} else {
		records, err = st.RecentMatches(ctx, opts.Limit)
	}
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read match log", err)
	}
	return f.Success(records, func(w io.Writer) { writeRecords(w, records) })
}

// sortCounts orders intents by count, then name. Failed matches are
// reported under the empty intent.
func sortCounts(counts map[string]int) []IntentCount {
	rows := make([]IntentCount, 0, len(counts))
	for intent, n := range counts {
		rows = append(rows, IntentCount{Intent: intent, Count: n})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		return rows[i].Intent < rows[j].Intent
	})
	return rows
}

func writeCounts(w io.Writer, rows []IntentCount) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No matches recorded.")
		return
	}
	for _, r := range rows {
		name := r.Intent
		if name == "" {
			name = "(no match)"
		}
		fmt.Fprintf(w, "%6d  %s\n", r.Count, name)
	}
}

func writeRecords(w io.Writer, records []store.MatchRecord) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No matches recorded.")
		return
	}
	for _, rec := range records {
		r := rec.Result
		stamp := rec.RecordedAt.Format("2006-01-02 15:04:05")
		if !r.Matched() {
			fmt.Fprintf(w, "#%-5d %s  ✗ %q\n", rec.Seq, stamp, r.Original)
			continue
		}
		fmt.Fprintf(w, "#%-5d %s  %s (%s, %.2f) %q\n",
			rec.Seq, stamp, r.Intent, r.MatchType, r.Confidence, r.Original)
	}
}
