package testutil

// FixedIDGenerator generates the same question ID every time.
//
// Engines built with it produce byte-identical outcomes for the same
// question, which keeps golden files stable.
type FixedIDGenerator struct {
	id string
}

// NewFixedIDGenerator creates a fixed question ID generator. If id is
// empty, Generate returns "test-question".
func NewFixedIDGenerator(id string) *FixedIDGenerator {
	if id == "" {
		id = "test-question"
	}
	return &FixedIDGenerator{id: id}
}

// Generate returns the fixed ID.
func (g *FixedIDGenerator) Generate() string {
	return g.id
}
