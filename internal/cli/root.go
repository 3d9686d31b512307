package cli

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/roach88/vox/internal/config"
)

// RootOptions holds global flags and the loaded configuration shared by
// all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigFile string

	// Config is populated by the root command before any subcommand runs.
	Config config.Config
	Logger *slog.Logger

	viper *viper.Viper
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the vox CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{viper: config.New()}

	cmd := &cobra.Command{
		Use:   "vox",
		Short: "vox - voice command interpretation",
		Long: `Classify voice transcripts against CUE command patterns and track the
conversation context they occur in.

Settings come from vox.yaml (or --config) and VOX_* environment variables;
flags override both.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return opts.load(cmd)
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "config file (default ./vox.yaml if present)")
	cmd.PersistentFlags().StringP("patterns", "p", "", "pattern directory (overrides config)")
	cmd.PersistentFlags().StringSlice("locales", nil, "restrict entity locales (de, gsw, fr, it, en)")
	_ = opts.viper.BindPFlag("patterns", cmd.PersistentFlags().Lookup("patterns"))
	_ = opts.viper.BindPFlag("locales", cmd.PersistentFlags().Lookup("locales"))

	cmd.AddCommand(NewMatchCommand(opts))
	cmd.AddCommand(NewSimilarCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewListenCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))

	return cmd
}

// load configures logging and reads the configuration. Logs go to stderr
// so JSON on stdout stays parseable.
func (o *RootOptions) load(cmd *cobra.Command) error {
	level := slog.LevelWarn
	if o.Verbose {
		level = slog.LevelDebug
	}
	o.Logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	slog.SetDefault(o.Logger)

	cfg, err := config.Load(o.viper, o.ConfigFile)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	o.Config = cfg
	return nil
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}
