package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/climq/internal/engine"
)

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	path := writeScenario(t, `
name: drought
description: "Drought count and cost"
domain: billion_dollar
question: "How many droughts occurred in 1980?"
question_id: q-1
expect:
  status: answered
  statement_count: 1
  statements:
    - SELECT 1
  text_contains: ["$41.2 billion"]
`)

	s, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "drought", s.Name)
	assert.Equal(t, "billion_dollar", s.Domain)
	assert.Equal(t, "q-1", s.QuestionID)
	assert.Equal(t, "answered", s.Expect.Status)
	require.NotNil(t, s.Expect.StatementCount)
	assert.Equal(t, 1, *s.Expect.StatementCount)
	assert.Equal(t, []string{"$41.2 billion"}, s.Expect.TextContains)
}

func TestLoadScenario_Defaults(t *testing.T) {
	path := writeScenario(t, `
name: auto
description: "Routed by vocabulary"
question: "CO2 emissions of Germany in 2010"
expect:
  status: answered
`)

	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, engine.AutoDomain, s.Domain)
	assert.Equal(t, DefaultQuestionID, s.QuestionID)
	assert.Nil(t, s.Expect.Statements)
	assert.Nil(t, s.Expect.StatementCount)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_UnknownField(t *testing.T) {
	path := writeScenario(t, `
name: typo
description: "Misspelled key"
question: "How many droughts occurred in 1980?"
expect:
  status: answered
  statement: ["SELECT 1"]
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
	assert.Contains(t, err.Error(), "statement")
}

func TestLoadScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "missing name",
			content: `
description: "d"
question: "q"
expect: {status: answered}
`,
			wantErr: "name is required",
		},
		{
			name: "missing description",
			content: `
name: n
question: "q"
expect: {status: answered}
`,
			wantErr: "description is required",
		},
		{
			name: "missing question",
			content: `
name: n
description: "d"
expect: {status: answered}
`,
			wantErr: "question is required",
		},
		{
			name: "missing status",
			content: `
name: n
description: "d"
question: "q"
expect: {statement_count: 0}
`,
			wantErr: "expect.status is required",
		},
		{
			name: "unknown status",
			content: `
name: n
description: "d"
question: "q"
expect: {status: done}
`,
			wantErr: `unknown status "done"`,
		},
		{
			name: "negative count",
			content: `
name: n
description: "d"
question: "q"
expect: {status: answered, statement_count: -1}
`,
			wantErr: "must be non-negative",
		},
		{
			name: "count disagrees with statements",
			content: `
name: n
description: "d"
question: "q"
expect: {status: answered, statement_count: 2, statements: ["SELECT 1"]}
`,
			wantErr: "disagrees with 1 statements",
		},
		{
			name: "unknown missing kind",
			content: `
name: n
description: "d"
question: "q"
expect: {status: missing_filters, missing: [PLACE]}
`,
			wantErr: `unknown kind "PLACE"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid scenario")
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenario_Testdata(t *testing.T) {
	files, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	names := map[string]bool{}
	for _, f := range files {
		s, err := LoadScenario(f)
		require.NoError(t, err, f)
		assert.False(t, names[s.Name], "duplicate scenario name %s", s.Name)
		names[s.Name] = true
	}
}
