package queryir

import (
	"fmt"
	"slices"

	"github.com/roach88/climq/internal/ir"
)

// ValidationResult contains the structural problems found in a query.
type ValidationResult struct {
	// Valid is true when the query can be rendered as a read-only statement.
	Valid bool

	// Warnings lists every problem found. Empty when Valid is true.
	Warnings []string
}

// Pragmas lists the introspection pragmas a Pragma may name. None of them
// can change database state.
var Pragmas = []string{"table_info", "table_list", "index_list"}

// Validate checks a query for structural problems before rendering.
//
// Rules:
//  1. Explicit projection - no empty column list
//  2. Only SUM as aggregate
//  3. Compare operators are =, >, <, >=, <=; values are never nil
//  4. In carries at least one value
//  5. Pragma names are from the Pragmas allowlist
//
// Validate is a pure function with no side effects.
func Validate(query Query) ValidationResult {
	v := &validator{
		warnings: []string{},
	}
	v.validateQuery(query)

	return ValidationResult{
		Valid:    len(v.warnings) == 0,
		Warnings: v.warnings,
	}
}

// validator accumulates warnings during traversal.
type validator struct {
	warnings []string
}

// addWarning appends a warning message.
func (v *validator) addWarning(format string, args ...any) {
	v.warnings = append(v.warnings, fmt.Sprintf(format, args...))
}

func (v *validator) validateQuery(q Query) {
	if q == nil {
		v.addWarning("nil query")
		return
	}

	switch query := q.(type) {
	case Select:
		v.validateSelect(query)
	case *Select:
		v.validateSelect(*query)
	case Pragma:
		v.validatePragma(query)
	case *Pragma:
		v.validatePragma(*query)
	default:
		v.addWarning("unknown query type: %T", q)
	}
}

func (v *validator) validateSelect(sel Select) {
	if sel.From == "" {
		v.addWarning("select has no table")
	}
	if len(sel.Columns) == 0 {
		v.addWarning("empty projection - explicit columns are required")
	}
	for _, c := range sel.Columns {
		if c.Name == "" {
			v.addWarning("projected column has no name")
		}
		if c.Aggregate != AggregateNone && c.Aggregate != AggregateSum {
			v.addWarning("column %q uses unsupported aggregate %q", c.Name, c.Aggregate)
		}
	}
	if sel.Limit < 0 {
		v.addWarning("negative limit %d", sel.Limit)
	}
	if sel.Filter != nil {
		v.validatePredicate(sel.Filter)
	}
}

func (v *validator) validatePragma(p Pragma) {
	if !slices.Contains(Pragmas, p.Name) {
		v.addWarning("pragma %q is not an introspection pragma", p.Name)
	}
}

func (v *validator) validatePredicate(p Predicate) {
	if p == nil {
		return
	}

	switch pred := p.(type) {
	case Compare:
		v.validateCompare(pred)
	case *Compare:
		v.validateCompare(*pred)
	case In:
		v.validateIn(pred)
	case *In:
		v.validateIn(*pred)
	case And:
		v.validateAnd(pred)
	case *And:
		v.validateAnd(*pred)
	default:
		v.addWarning("unknown predicate type: %T", p)
	}
}

func (v *validator) validateCompare(c Compare) {
	if c.Field == "" {
		v.addWarning("comparison has no field")
	}
	if !c.Op.Valid() || c.Op == ir.OpIn {
		v.addWarning("field '%s' uses unsupported operator %q", c.Field, c.Op)
	}
	if c.Value == nil {
		v.addWarning("field '%s' compared to nil", c.Field)
	}
}

func (v *validator) validateIn(in In) {
	if len(in.Values) == 0 {
		v.addWarning("field '%s' IN empty set", in.Field)
	}
	for _, val := range in.Values {
		if val == nil {
			v.addWarning("field '%s' IN set holds nil", in.Field)
		}
	}
}

func (v *validator) validateAnd(and And) {
	for _, sub := range and.Predicates {
		v.validatePredicate(sub)
	}
}
