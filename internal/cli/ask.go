package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/climq/internal/engine"
)

// NewAskCommand creates the ask command.
func NewAskCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer one question",
		Long: `Answer one question and print the reply.

The question may be quoted or given as several words.

Exit codes:
  0 - Answered, or answered with no matching data
  1 - Not answerable as asked (missing filters, nothing recognised, rejected)
  2 - Command error

Examples:
  climq ask "How many droughts occurred in 1980?"
  climq ask --domain fema What was the pa total for hurricanes in TX in 2017?
  climq ask --format json "CO2 emissions of Germany in 2010"`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuestion(cmd, rootOpts, strings.Join(args, " "), true)
		},
	}
}

// NewPlanCommand creates the plan command.
func NewPlanCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "plan <question>",
		Short: "Show the compiled queries of a question without running them",
		Long: `Extract, resolve and compile a question, then print the resolved
entities and every compiled statement. Nothing is executed; entity
validation still reads the datasets.

Example:
  climq plan "Compare the flooding and tropical cyclone cost between 1980-1984"`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuestion(cmd, rootOpts, strings.Join(args, " "), false)
		},
	}
}

func runQuestion(cmd *cobra.Command, opts *RootOptions, question string, execute bool) error {
	a, err := openApp(cmd.Context(), opts)
	if err != nil {
		return err
	}
	defer a.Close()

	ask := a.Engine.Ask
	if !execute {
		ask = a.Engine.Explain
	}
	out, err := ask(cmd.Context(), question)
	if err != nil {
		return WrapExitError(ExitFailure, "question failed", err)
	}

	f := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	var text strings.Builder
	if execute {
		text.WriteString(out.Text)
		for _, it := range out.Plan.Items {
			f.VerboseLog("query %s [%s %s %s]: %s", it.Role, it.Triple.Entity, it.Triple.Metric, it.Triple.Period, it.Query.Statement)
		}
	} else {
		writePlan(&text, out)
	}

	if out.Problem != nil && opts.Format == "json" {
		if err := f.Error(string(out.Problem.Code), out.Text, out); err != nil {
			return err
		}
	} else if err := f.SuccessFor(out.QuestionID, strings.TrimRight(text.String(), "\n"), out); err != nil {
		return err
	}

	if out.Problem != nil {
		return WrapExitError(ExitFailure, "question not answered", out.Problem)
	}
	return nil
}

// writePlan prints the route, resolved entities and compiled statements.
func writePlan(w io.Writer, out engine.Outcome) {
	fmt.Fprintf(w, "Domain: %s\n", out.Domain)
	fmt.Fprintf(w, "Status: %s\n", out.Status)
	if len(out.Resolution.Entities) > 0 {
		fmt.Fprintln(w, "Entities:")
		for _, e := range out.Resolution.Entities {
			fmt.Fprintf(w, "  %-9s %s (%s, %.2f)\n", e.Kind, e.Value, e.Source, e.Confidence)
		}
	}
	if out.Problem != nil {
		fmt.Fprintln(w, out.Text)
		return
	}
	fmt.Fprintf(w, "Queries: %d\n", len(out.Plan.Items))
	for i, it := range out.Plan.Items {
		fmt.Fprintf(w, "  %d. [%s] %s: %s\n", i+1, it.Role, it.Query.Database, it.Query.Statement)
	}
}
