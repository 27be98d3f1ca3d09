package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/climq/internal/dataset"
)

// LoadResult is the outcome of a load command.
type LoadResult struct {
	Domain   string `json:"domain"`
	Table    string `json:"table"`
	Rows     int    `json:"rows"`
	Database string `json:"database_path"`
}

// NewLoadCommand creates the load command.
func NewLoadCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "load <domain> <table> <file.csv>",
		Short: "Create a domain's databases and load a CSV file into one table",
		Long: `Create every database file and table of a domain under the data
directory (existing tables are kept), then append the rows of a CSV file
to one table. The CSV header names domain columns; empty cells load as
NULL.

Examples:
  climq load billion_dollar disaster_records ./billion.csv
  climq load edgar co2.emissions ./edgar_co2.csv --data-dir ./data`,
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(rootOpts, cmd, args[0], args[1], args[2])
		},
	}
}

func runLoad(opts *RootOptions, cmd *cobra.Command, domain, table, file string) error {
	reg, err := loadRegistry(opts.Config)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load vocabulary", err)
	}
	d, ok := reg.Domain(domain)
	if !ok {
		return NewExitError(ExitCommandError, fmt.Sprintf("unknown domain %q (have %v)", domain, reg.Names()))
	}
	t, ok := d.Table(table)
	if !ok {
		return NewExitError(ExitCommandError, fmt.Sprintf("domain %s has no table %q", domain, table))
	}

	f, err := os.Open(file)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open CSV", err)
	}
	defer f.Close()

	if err := os.MkdirAll(opts.Config.DataDir, 0o755); err != nil {
		return WrapExitError(ExitCommandError, "failed to create data directory", err)
	}
	w := dataset.NewWriter(opts.Config.DataDir, d)
	if err := w.Create(cmd.Context()); err != nil {
		return WrapExitError(ExitFailure, "failed to create tables", err)
	}
	n, err := w.LoadCSV(cmd.Context(), t, f)
	if err != nil {
		return WrapExitError(ExitFailure, fmt.Sprintf("failed to load %s", file), err)
	}
	opts.Logger.Info("loaded csv", "domain", domain, "table", t.ID(), "rows", n)

	res := LoadResult{Domain: domain, Table: t.ID(), Rows: n, Database: dataset.Path(opts.Config.DataDir, t.Database)}
	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	return out.Success(fmt.Sprintf("Loaded %d rows into %s (%s)", n, res.Table, res.Database), res)
}
