package harness

import "github.com/roach88/climq/internal/engine"

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every expectation matched.
	Pass bool `json:"pass"`

	// Errors lists expectation mismatches. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Outcome is what the engine produced.
	Outcome engine.Outcome `json:"outcome"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Errors: []string{},
	}
}

// AddError records a mismatch and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Statements returns the compiled statements of the outcome in plan order.
func (r *Result) Statements() []string {
	out := make([]string, 0, len(r.Outcome.Plan.Items))
	for _, it := range r.Outcome.Plan.Items {
		out = append(out, it.Query.Statement)
	}
	return out
}
