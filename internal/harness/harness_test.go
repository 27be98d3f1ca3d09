package harness

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/climq/internal/testutil"
)

func fixtureOptions(t *testing.T) Options {
	t.Helper()
	reg := testutil.Registry(t)
	return Options{Registry: reg, Source: testutil.Store(t, reg)}
}

func TestRun_Testdata(t *testing.T) {
	opts := fixtureOptions(t)
	files, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, f := range files {
		name := strings.TrimSuffix(filepath.Base(f), ".yaml")
		t.Run(name, func(t *testing.T) {
			s, err := LoadScenario(f)
			require.NoError(t, err)

			result, err := Run(context.Background(), s, opts)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Equal(t, DefaultQuestionID, result.Outcome.QuestionID)
			assert.Equal(t, int64(1), result.Outcome.Seq)
		})
	}
}

func TestRun_ReportsMismatches(t *testing.T) {
	count := 3
	s := &Scenario{
		Name:        "wrong",
		Description: "Every expectation is off",
		Domain:      "billion_dollar",
		Question:    "How many droughts occurred in 1980?",
		QuestionID:  DefaultQuestionID,
		Expect: Expect{
			Status:         "no_data",
			Statements:     []string{"SELECT 1"},
			StatementCount: &count,
			TextContains:   []string{"earthquake"},
			Missing:        []string{"DATE"},
		},
	}

	result, err := Run(context.Background(), s, fixtureOptions(t))
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 5)
	assert.Contains(t, result.Errors[0], "status: expected no_data, got answered")
	assert.Contains(t, result.Errors[1], "statements:")
	assert.Contains(t, result.Errors[2], "statement_count: expected 3, got 1")
	assert.Contains(t, result.Errors[3], `"earthquake" not in reply`)
	assert.Contains(t, result.Errors[4], "missing: expected [DATE], got []")
}

func TestRun_UnknownDomain(t *testing.T) {
	s := &Scenario{Name: "bad", Domain: "weather", Question: "q", Expect: Expect{Status: "answered"}}

	_, err := Run(context.Background(), s, fixtureOptions(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scenario bad")
	assert.Contains(t, err.Error(), "unknown domain")
}

func TestRun_RequiresCollaborators(t *testing.T) {
	s := &Scenario{Name: "bare", Domain: "auto", Question: "q", Expect: Expect{Status: "answered"}}

	_, err := Run(context.Background(), s, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "registry and source are required")
}

func TestRun_FreshEnginePerScenario(t *testing.T) {
	opts := fixtureOptions(t)
	s, err := LoadScenario("testdata/scenarios/scenario_a_drought_1980.yaml")
	require.NoError(t, err)

	first, err := Run(context.Background(), s, opts)
	require.NoError(t, err)
	second, err := Run(context.Background(), s, opts)
	require.NoError(t, err)

	assert.Equal(t, first.Outcome.Seq, second.Outcome.Seq)
	assert.Equal(t, first.Outcome.Text, second.Outcome.Text)
	assert.Equal(t, first.Statements(), second.Statements())
}
