package ir

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Kind classifies a candidate or resolved entity.
type Kind string

const (
	KindLocation   Kind = "LOCATION"
	KindMetric     Kind = "METRIC"
	KindCategory   Kind = "CATEGORY"
	KindDate       Kind = "DATE"
	KindComparison Kind = "COMPARISON"
	KindThreshold  Kind = "THRESHOLD"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindLocation, KindMetric, KindCategory, KindDate, KindComparison, KindThreshold:
		return true
	}
	return false
}

// Source records which resolution tier accepted an entity.
type Source string

const (
	SourceExactVocab     Source = "EXACT_VOCAB"
	SourceExactDataset   Source = "EXACT_DATASET"
	SourceFuzzyDataset   Source = "FUZZY_DATASET"
	SourceExternalLookup Source = "EXTERNAL_LOOKUP"
)

// Op is a comparison operator usable in a filter predicate.
type Op string

const (
	OpEq  Op = "="
	OpGt  Op = ">"
	OpLt  Op = "<"
	OpGte Op = ">="
	OpLte Op = "<="
	OpIn  Op = "IN"
)

// Valid reports whether o is a known operator.
func (o Op) Valid() bool {
	switch o {
	case OpEq, OpGt, OpLt, OpGte, OpLte, OpIn:
		return true
	}
	return false
}

// DateForm records how a date mention appeared in the question. It drives
// temporal precedence when predicates are built.
type DateForm string

const (
	// FormBare is a year (optionally with month) with no qualifying word.
	FormBare DateForm = "bare"
	// FormPreposition is a year following in/during/for/from/of.
	FormPreposition DateForm = "preposition"
	// FormDirectional is a year following after/before/since/until or a
	// comparison phrase.
	FormDirectional DateForm = "directional"
	// FormRange is an explicit span: "between X and Y", "X-Y", "from X to Y".
	FormRange DateForm = "range"
	// FormMonth is a month name without a year of its own.
	FormMonth DateForm = "month"
)

// DateMention is the typed payload of a DATE span.
type DateMention struct {
	Form  DateForm `json:"form"`
	Year  int      `json:"year,omitempty"`
	Month int      `json:"month,omitempty"` // 1-12, 0 when absent
	Until int      `json:"until,omitempty"` // inclusive end year for FormRange
	Op    Op       `json:"op,omitempty"`
}

// String renders the mention compactly for logs and period labels.
func (d DateMention) String() string {
	switch d.Form {
	case FormRange:
		return fmt.Sprintf("%d-%d", d.Year, d.Until)
	case FormMonth:
		return fmt.Sprintf("month %02d", d.Month)
	}
	s := fmt.Sprintf("%d", d.Year)
	if d.Month > 0 {
		s = fmt.Sprintf("%d-%02d", d.Year, d.Month)
	}
	if d.Op != "" && d.Op != OpEq {
		s = string(d.Op) + s
	}
	return s
}

// CandidateSpan is an unvalidated window of question text proposed as a
// possible entity mention. Start and End are token offsets, End exclusive.
type CandidateSpan struct {
	Text       string  `json:"text"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Kind       Kind    `json:"kind"`
	Confidence float64 `json:"confidence"`

	// Match is the canonical vocabulary key the window scored against.
	// Empty for location windows awaiting dataset validation.
	Match string `json:"match,omitempty"`

	// Exact is true when Match came from an exact alias hit.
	Exact bool `json:"exact,omitempty"`

	Date   *DateMention     `json:"date,omitempty"`
	Op     Op               `json:"op,omitempty"`
	Number *decimal.Decimal `json:"number,omitempty"`

	// Scaled is true when a magnitude word (thousand, million, billion)
	// multiplied Number. Scaled thresholds are divided by the column scale.
	Scaled bool `json:"scaled,omitempty"`
}

// Len returns the span length in tokens.
func (s CandidateSpan) Len() int {
	return s.End - s.Start
}

// Overlaps reports whether two spans share at least one token.
func (s CandidateSpan) Overlaps(o CandidateSpan) bool {
	return s.Start < o.End && o.Start < s.End
}

// ResolvedEntity is a CandidateSpan validated against the vocabulary,
// the dataset, or an external lookup.
type ResolvedEntity struct {
	Kind       Kind          `json:"kind"`
	Value      string        `json:"value"`
	Source     Source        `json:"source"`
	Confidence float64       `json:"confidence"`
	Span       CandidateSpan `json:"span"`

	// Tables lists the dataset tables the value was found in.
	Tables []string `json:"tables,omitempty"`

	// Region is the country code reported by an external lookup.
	Region string `json:"region,omitempty"`
}

// Place is a gazetteer hit.
type Place struct {
	Name        string `json:"name"`
	Class       string `json:"class"`
	Type        string `json:"type"`
	AddressType string `json:"addresstype"`
	CountryCode string `json:"country_code"`
}
