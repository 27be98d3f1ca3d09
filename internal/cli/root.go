package cli

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/climq/internal/config"
)

// RootOptions holds global flags for all commands, and the configuration
// and logger they resolve to.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	ConfigPath  string
	DataDir     string
	VocabDir    string
	Domain      string
	MetricsAddr string

	Config *config.Config
	Logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the climq CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "climq",
		Short: "climq - climate and disaster questions over SQL datasets",
		Long: `Answer plain-language questions about billion-dollar disasters, FEMA
assistance, ERA5 reanalysis and EDGAR emissions.

Questions are parsed into metrics, locations, categories and dates,
validated against the datasets, compiled to read-only SQL and answered
from the matching rows.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return opts.setup(cmd)
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "config file (default: ./climq.yaml if present)")
	cmd.PersistentFlags().StringVar(&opts.DataDir, "data-dir", "", "directory holding the <database>.db files")
	cmd.PersistentFlags().StringVar(&opts.VocabDir, "vocab", "", "directory of CUE domain files replacing the built-in domains")
	cmd.PersistentFlags().StringVarP(&opts.Domain, "domain", "d", "", "dataset domain or \"auto\"")
	cmd.PersistentFlags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")

	cmd.AddCommand(NewAskCommand(opts))
	cmd.AddCommand(NewPlanCommand(opts))
	cmd.AddCommand(NewReplCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewVocabCommand(opts))
	cmd.AddCommand(NewCheckCommand(opts))
	cmd.AddCommand(NewLoadCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// setup loads configuration, applies flag overrides and builds the logger.
// Flags beat environment variables, which beat the config file.
func (o *RootOptions) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(".", o.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if o.DataDir != "" {
		cfg.DataDir = o.DataDir
	}
	if o.VocabDir != "" {
		cfg.VocabDir = o.VocabDir
	}
	if o.Domain != "" {
		cfg.Domain = o.Domain
	}
	if o.MetricsAddr != "" {
		cfg.Metrics.Addr = o.MetricsAddr
	}
	o.Config = cfg

	level := levelFromString(cfg.Logging.Level)
	if o.Verbose {
		level = slog.LevelDebug
	}
	o.Logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	return nil
}

// levelFromString maps a config level name to a slog level. Unknown names
// fall back to info.
func levelFromString(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
