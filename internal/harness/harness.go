package harness

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/roach88/climq/internal/dataset"
	"github.com/roach88/climq/internal/engine"
	"github.com/roach88/climq/internal/testutil"
	"github.com/roach88/climq/internal/vocab"
)

// Options are the collaborators a scenario runs against.
type Options struct {
	Registry *vocab.Registry
	Source   dataset.Source

	// Logger receives engine logs. Default: discard.
	Logger *slog.Logger
}

// Run asks the scenario's question on a fresh engine and checks the
// outcome against the scenario's expectations.
//
// Each run gets its own engine, so sequence numbers start at 1 and the
// question ID is fixed. Mismatches are reported in Result.Errors; the error
// return is reserved for runs that could not complete.
func Run(ctx context.Context, scenario *Scenario, opts Options) (*Result, error) {
	if opts.Registry == nil || opts.Source == nil {
		return nil, fmt.Errorf("scenario %s: registry and source are required", scenario.Name)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	eng, err := engine.New(opts.Registry, opts.Source, scenario.Domain,
		engine.WithIDGenerator(testutil.NewFixedIDGenerator(scenario.QuestionID)),
		engine.WithLogger(logger.With(slog.String("scenario", scenario.Name))),
	)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	out, err := eng.Ask(ctx, scenario.Question)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	result := NewResult()
	result.Outcome = out
	check(result, scenario.Expect)
	return result, nil
}

// check compares the outcome with the expectations.
func check(r *Result, want Expect) {
	out := r.Outcome
	if string(out.Status) != want.Status {
		r.AddError(fmt.Sprintf("status: expected %s, got %s", want.Status, out.Status))
	}

	got := r.Statements()
	if want.Statements != nil && !slices.Equal(want.Statements, got) {
		r.AddError(fmt.Sprintf("statements: expected %q, got %q", want.Statements, got))
	}
	if want.StatementCount != nil && *want.StatementCount != len(got) {
		r.AddError(fmt.Sprintf("statement_count: expected %d, got %d", *want.StatementCount, len(got)))
	}

	for _, s := range want.TextContains {
		if !strings.Contains(out.Text, s) {
			r.AddError(fmt.Sprintf("text_contains: %q not in reply %q", s, out.Text))
		}
	}

	if want.Missing != nil {
		var missing []string
		if out.Problem != nil {
			for _, k := range out.Problem.Missing {
				missing = append(missing, string(k))
			}
		}
		if !slices.Equal(want.Missing, missing) {
			r.AddError(fmt.Sprintf("missing: expected %v, got %v", want.Missing, missing))
		}
	}
}
