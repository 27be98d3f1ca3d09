package cli

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/climq/internal/dataset"
	"github.com/roach88/climq/internal/engine"
	execpkg "github.com/roach88/climq/internal/execute"
	"github.com/roach88/climq/internal/plan"
	"github.com/roach88/climq/internal/vocab"
)

// TableCheck is the schema check of one table.
type TableCheck struct {
	Domain  string   `json:"domain"`
	Table   string   `json:"table"`
	Found   bool     `json:"found"`
	Missing []string `json:"missing,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// OK reports whether the table exists with every column it needs.
func (c TableCheck) OK() bool {
	return c.Found && len(c.Missing) == 0 && c.Error == ""
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check that the datasets have the tables and columns the vocabulary needs",
		Long: `Introspect every table of the selected domain (or all domains) through
the configured dataset source and compare its columns with the columns
questions can compile to.

Exit codes:
  0 - Every table matches
  1 - A table or column is missing
  2 - Command error`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(rootOpts, cmd)
		},
	}
}

func runCheck(opts *RootOptions, cmd *cobra.Command) error {
	a, err := openApp(cmd.Context(), opts)
	if err != nil {
		return err
	}
	defer a.Close()

	var checks []TableCheck
	for _, d := range a.Registry.Domains() {
		if opts.Config.Domain != engine.AutoDomain && opts.Config.Domain != d.Name {
			continue
		}
		checks = append(checks, checkDomain(cmd.Context(), a.Source, d)...)
	}

	failed := 0
	var text strings.Builder
	for _, c := range checks {
		switch {
		case c.Error != "":
			fmt.Fprintf(&text, "✗ %s %s: %s\n", c.Domain, c.Table, c.Error)
		case !c.Found:
			fmt.Fprintf(&text, "✗ %s %s: table not found\n", c.Domain, c.Table)
		case len(c.Missing) > 0:
			fmt.Fprintf(&text, "✗ %s %s: missing columns %s\n", c.Domain, c.Table, strings.Join(c.Missing, ", "))
		default:
			fmt.Fprintf(&text, "✓ %s %s\n", c.Domain, c.Table)
		}
		if !c.OK() {
			failed++
		}
	}
	fmt.Fprintf(&text, "\nChecked %d tables, %d failed", len(checks), failed)

	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if err := f.Success(text.String(), checks); err != nil {
		return err
	}
	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d table(s) failed the schema check", failed))
	}
	return nil
}

// checkDomain introspects each table of d with PRAGMA table_info.
func checkDomain(ctx context.Context, src dataset.Source, d *vocab.Domain) []TableCheck {
	planner := plan.New(d)
	out := make([]TableCheck, 0, len(d.Tables))
	for _, t := range d.Tables {
		c := TableCheck{Domain: d.Name, Table: t.ID()}
		q, err := planner.Introspect(t)
		if err != nil {
			c.Error = err.Error()
			out = append(out, c)
			continue
		}
		reply, err := src.Execute(ctx, q.Database, q.Statement)
		if err != nil {
			c.Error = err.Error()
			out = append(out, c)
			continue
		}

		records := reply.Records
		if records == nil && reply.Text != "" {
			records = execpkg.DecodeText(reply.Text)
		}
		// cid, name, type, notnull, dflt_value, pk
		var have []string
		for _, rec := range records {
			if len(rec) > 1 {
				if name, ok := rec[1].(string); ok {
					have = append(have, name)
				}
			}
		}
		c.Found = len(have) > 0
		if c.Found {
			for _, col := range requiredColumns(d, t) {
				if !slices.Contains(have, col) {
					c.Missing = append(c.Missing, col)
				}
			}
		}
		out = append(out, c)
	}
	return out
}

// requiredColumns lists the columns a question can compile to on table t:
// the time, entity and default columns plus the columns of every metric
// and category served from t.
func requiredColumns(d *vocab.Domain, t vocab.Table) []string {
	var out []string
	add := func(names ...string) {
		for _, n := range names {
			if n != "" && !slices.Contains(out, n) {
				out = append(out, n)
			}
		}
	}

	if d.Time.Kind != vocab.TimeYearColumns {
		add(d.Time.Column)
	}
	if d.Entity != nil {
		add(d.Entity.Column, d.Entity.CodeColumn)
	}
	add(d.DefaultColumns...)

	served := map[string]bool{}
	for _, m := range d.Metrics {
		if !servedBy(m, t) {
			continue
		}
		served[m.Key] = true
		add(m.Columns...)
		add(m.ThresholdColumn)
		keys := make([]string, 0, len(m.Filter))
		for k := range m.Filter {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		add(keys...)
		if m.Group != nil {
			add(m.Group.Column)
		}
	}
	for _, c := range d.Categories {
		if c.Metric == "" || served[c.Metric] {
			add(c.Column)
		}
	}
	return out
}

func servedBy(m vocab.Metric, t vocab.Table) bool {
	if m.Table != "" && m.Table != t.Name && m.Table != t.ID() {
		return false
	}
	if m.Database != "" && m.Database != t.Database {
		return false
	}
	return m.Family == "" || m.Family == t.Family
}
