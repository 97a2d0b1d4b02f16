package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/roach88/tabstore/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	DB         string
	Backend    string

	// Config and Logger are resolved from the flags before a subcommand
	// runs. Commands built directly (as in tests) fall back to defaults.
	Config *config.Config
	Logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the tabstore CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "tabstore",
		Short: "tabstore - reactive tabular store",
		Long: `An in-memory store of tables and keyed values with fine-grained change listeners.

The CLI runs YAML listener scenarios, compiles CUE schemas and moves
content between JSON and the sqlite, bolt and file backends.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.resolve(cmd)
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (.yaml, .yml or .toml)")
	cmd.PersistentFlags().StringVar(&opts.DB, "db", "", "database or content file path (default tabstore.db)")
	cmd.PersistentFlags().StringVar(&opts.Backend, "backend", "", "persistence backend (sqlite|bolt|file)")

	// Add subcommands
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewSchemaCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewInspectCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))

	return cmd
}

// resolve builds the effective configuration. Precedence, lowest first:
// defaults, config file, TABSTORE_* environment, flags.
func (o *RootOptions) resolve(cmd *cobra.Command) error {
	flags := cmd.Flags()
	if flags.Changed("format") && !isValidFormat(o.Format) {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", o.Format, ValidFormats))
	}

	cfg := config.Default()
	if o.ConfigPath != "" {
		loaded, err := config.Load(o.ConfigPath)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load config", err)
		}
		cfg = loaded
	} else {
		cfg.ApplyEnv(os.Getenv)
	}

	if flags.Changed("db") {
		cfg.DB = o.DB
	}
	if flags.Changed("backend") {
		cfg.Backend = o.Backend
	}
	if flags.Changed("format") {
		cfg.Format = o.Format
	}
	if o.Verbose {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	o.Format = cfg.Format
	o.Config = cfg
	o.Logger = newLogger(cmd.ErrOrStderr(), cfg.Level())
	slog.SetDefault(o.Logger)
	o.Logger.Debug("configuration resolved", "db", cfg.DB, "backend", cfg.Backend, "config", o.ConfigPath)
	return nil
}

// config returns the resolved configuration, or the defaults overlaid with
// any flag values when resolve has not run.
func (o *RootOptions) config() *config.Config {
	if o.Config != nil {
		return o.Config
	}
	cfg := config.Default()
	if o.DB != "" {
		cfg.DB = o.DB
	}
	if o.Backend != "" {
		cfg.Backend = o.Backend
	}
	return cfg
}

func (o *RootOptions) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   o.Verbose,
	}
}

// newLogger returns a tint logger on w. Color is only used on terminals.
func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	noColor := true
	if f, ok := w.(*os.File); ok {
		noColor = !isatty.IsTerminal(f.Fd())
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05.000",
		NoColor:    noColor,
	}))
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
