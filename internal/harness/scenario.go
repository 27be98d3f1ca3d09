package harness

import (
	"bytes"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/climq/internal/engine"
	"github.com/roach88/climq/internal/ir"
)

// Scenario is one question with its expected outcome.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Domain is a registry domain name or "auto". Default: auto.
	Domain string `yaml:"domain,omitempty"`

	// Question is asked verbatim.
	Question string `yaml:"question"`

	// QuestionID fixes the question ID. Default: DefaultQuestionID.
	QuestionID string `yaml:"question_id,omitempty"`

	Expect Expect `yaml:"expect"`
}

// DefaultQuestionID is the question ID of scenarios that do not set one.
const DefaultQuestionID = "scenario-question"

// Expect lists what the outcome must look like. Unset fields are not
// checked.
type Expect struct {
	Status string `yaml:"status"`

	// Statements must equal the compiled statements exactly, in order.
	Statements []string `yaml:"statements,omitempty"`

	// StatementCount is the number of compiled statements.
	StatementCount *int `yaml:"statement_count,omitempty"`

	// TextContains are substrings the rendered reply must contain.
	TextContains []string `yaml:"text_contains,omitempty"`

	// Missing are the kinds reported as missing.
	Missing []string `yaml:"missing,omitempty"`
}

var validStatuses = []string{
	string(engine.StatusAnswered),
	string(engine.StatusNoData),
	string(engine.StatusInsufficientInformation),
	string(engine.StatusMissingFilters),
	string(engine.StatusRejected),
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Domain == "" {
		scenario.Domain = engine.AutoDomain
	}
	if scenario.QuestionID == "" {
		scenario.QuestionID = DefaultQuestionID
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Question == "" {
		return fmt.Errorf("question is required")
	}
	if s.Expect.Status == "" {
		return fmt.Errorf("expect.status is required")
	}
	if !slices.Contains(validStatuses, s.Expect.Status) {
		return fmt.Errorf("expect.status: unknown status %q", s.Expect.Status)
	}
	if s.Expect.StatementCount != nil && *s.Expect.StatementCount < 0 {
		return fmt.Errorf("expect.statement_count must be non-negative")
	}
	if s.Expect.StatementCount != nil && s.Expect.Statements != nil && *s.Expect.StatementCount != len(s.Expect.Statements) {
		return fmt.Errorf("expect.statement_count %d disagrees with %d statements", *s.Expect.StatementCount, len(s.Expect.Statements))
	}
	for i, k := range s.Expect.Missing {
		if !ir.Kind(k).Valid() {
			return fmt.Errorf("expect.missing[%d]: unknown kind %q", i, k)
		}
	}
	return nil
}
