package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/climq/internal/ir"
)

// Snapshot renders a result as canonical JSON for golden comparison.
//
// It holds what a reviewer checks by eye: the routed domain, the status,
// each compiled query with its role and database, and the reply lines.
// Question IDs, sequence numbers and diagnostics are left out.
func Snapshot(scenario *Scenario, result *Result) ([]byte, error) {
	out := result.Outcome

	queries := make([]any, 0, len(out.Plan.Items))
	for _, it := range out.Plan.Items {
		queries = append(queries, map[string]any{
			"role":      string(it.Role),
			"database":  it.Query.Database,
			"statement": it.Query.Statement,
		})
	}

	var lines []string
	if out.Text != "" {
		lines = strings.Split(out.Text, "\n")
	}

	snapshot := map[string]any{
		"scenario": scenario.Name,
		"question": out.Question,
		"domain":   out.Domain,
		"status":   string(out.Status),
		"queries":  queries,
		"lines":    append([]string{}, lines...),
	}
	return ir.MarshalCanonical(snapshot)
}

// RunWithGolden runs a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario, opts Options) (*Result, error) {
	t.Helper()

	result, err := Run(t.Context(), scenario, opts)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against its golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenario *Scenario, result *Result) error {
	t.Helper()

	data, err := Snapshot(scenario, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, data)
	return nil
}

// GoldenPath returns the golden file of a scenario file: golden/<name>.golden
// next to it.
func GoldenPath(scenarioFile string) string {
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(filepath.Dir(scenarioFile), "golden", name+".golden")
}

// WriteGolden stores the result's snapshot as the scenario file's golden.
func WriteGolden(scenarioFile string, scenario *Scenario, result *Result) error {
	data, err := Snapshot(scenario, result)
	if err != nil {
		return err
	}
	path := GoldenPath(scenarioFile)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write golden file: %w", err)
	}
	return nil
}

// CompareGolden reports whether the result matches the scenario file's
// golden. ok is false with a nil error when no golden file exists.
func CompareGolden(scenarioFile string, scenario *Scenario, result *Result) (match, ok bool, err error) {
	want, err := os.ReadFile(GoldenPath(scenarioFile))
	if os.IsNotExist(err) {
		return false, false, nil
	}
	if err != nil {
		return false, false, fmt.Errorf("failed to read golden file: %w", err)
	}
	got, err := Snapshot(scenario, result)
	if err != nil {
		return false, true, err
	}
	return bytes.Equal(bytes.TrimSpace(want), got), true, nil
}
