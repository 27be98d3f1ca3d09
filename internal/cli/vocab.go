package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/climq/internal/vocab"
)

// NewVocabCommand creates the vocab command.
func NewVocabCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "vocab [domain]",
		Short: "List the domains, or the metrics and categories of one domain",
		Long: `Without arguments, list the loaded domains with their databases and
time range. With a domain name, list what questions can ask about:
metrics with their aliases and units, category values and the entity
column.

Examples:
  climq vocab
  climq vocab edgar --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := loadRegistry(rootOpts.Config)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load vocabulary", err)
			}
			f := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}

			if len(args) == 0 {
				var b strings.Builder
				for _, d := range reg.Domains() {
					fmt.Fprintf(&b, "%-15s %d-%d  %s\n", d.Name, d.Time.Min, d.Time.Max, d.Description)
				}
				return f.Success(strings.TrimRight(b.String(), "\n"), reg.Domains())
			}

			d, ok := reg.Domain(args[0])
			if !ok {
				return NewExitError(ExitCommandError, fmt.Sprintf("unknown domain %q (have %v)", args[0], reg.Names()))
			}
			return f.Success(describeDomain(d), d)
		},
	}
}

func describeDomain(d *vocab.Domain) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s\n", d.Name, d.Description)
	fmt.Fprintf(&b, "Databases: %s\n", strings.Join(d.Databases, ", "))
	fmt.Fprintf(&b, "Time: %s %s %d-%d\n", d.Time.Kind, d.Time.Column, d.Time.Min, d.Time.Max)
	if d.Entity != nil {
		fmt.Fprintf(&b, "Entity: %s (%s)\n", d.Entity.Column, d.Entity.Source)
	}
	if len(d.Require) > 0 || len(d.RequireWithMetric) > 0 {
		fmt.Fprintf(&b, "Requires: %v, with a metric: %v\n", d.Require, d.RequireWithMetric)
	}

	fmt.Fprintln(&b, "Metrics:")
	for _, m := range d.Metrics {
		unit := ""
		if m.Unit != "" {
			unit = " [" + m.Unit + "]"
		}
		fmt.Fprintf(&b, "  %s%s: %s\n", m.Key, unit, strings.Join(m.Aliases, ", "))
	}
	for _, c := range d.Categories {
		values := make([]string, len(c.Values))
		for i, v := range c.Values {
			values[i] = v.Value
		}
		fmt.Fprintf(&b, "Category %s: %s\n", c.Name, strings.Join(values, ", "))
	}
	return strings.TrimRight(b.String(), "\n")
}
