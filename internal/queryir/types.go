package queryir

import "github.com/roach88/climq/internal/ir"

// Query represents an abstract read-only query.
//
// This is a sealed interface - only types in this package implement it.
type Query interface {
	queryNode() // Marker method - seals interface to this package
}

// Predicate represents a filter condition in a Select.
//
// This is a sealed interface - only types in this package implement it.
//
// Predicate types:
//   - Compare: field <op> literal
//   - In: field IN (literal, ...)
//   - And: all predicates must be true
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// Aggregate is a projection function.
type Aggregate string

const (
	// AggregateNone projects the raw column.
	AggregateNone Aggregate = ""
	// AggregateSum projects SUM(column).
	AggregateSum Aggregate = "SUM"
)

// Column is one projected column.
type Column struct {
	Name      string    // Column name from the registry
	Aggregate Aggregate // Optional aggregate function
	Alias     string    // Output name (empty = column name, or "total" for SUM)
}

// OutputName is the name the column has in the result set.
func (c Column) OutputName() string {
	if c.Alias != "" {
		return c.Alias
	}
	if c.Aggregate == AggregateSum {
		return "total"
	}
	return c.Name
}

// Order is one ORDER BY key.
type Order struct {
	Column string
	Desc   bool
}

// Select represents read access to one table.
//
// Semantics:
//
//	SELECT [DISTINCT] <columns> FROM <from> [WHERE <filter>]
//	[ORDER BY <order>] [LIMIT <limit>]
//
// Example:
//
//	Select{
//	  Database: "disasters",
//	  From:     "disaster_records",
//	  Columns:  []Column{{Name: "Year"}, {Name: "Drought Count"}},
//	  Filter:   Compare{Field: "Year", Op: ir.OpEq, Value: ir.Int(1980)},
//	  OrderBy:  []Order{{Column: "Year"}},
//	  Limit:    20,
//	}
//
// Translates to SQL:
//
//	SELECT Year, "Drought Count" FROM disaster_records
//	WHERE Year = 1980 ORDER BY Year ASC LIMIT 20
//
// Rules:
//   - Columns must be explicit (no SELECT *)
//   - Filter nil means no WHERE clause
//   - Limit 0 means no LIMIT clause
type Select struct {
	Database string    // Database the table lives in
	From     string    // Table name
	Columns  []Column  // Projection, in output order
	Filter   Predicate // WHERE conditions (nil = no filter)
	OrderBy  []Order
	Limit    int
	Distinct bool
}

func (Select) queryNode() {}

// Pragma represents a metadata introspection statement.
//
//	PRAGMA <name>(<arg>)
type Pragma struct {
	Database string
	Name     string // e.g. "table_info"
	Arg      string // table name, optional
}

func (Pragma) queryNode() {}

// Compare represents a field-operator-literal predicate.
//
// Semantics:
//
//	<field> <op> <value>
//
// Op is one of =, >, <, >=, <=. Value is an ir.Value; floats cannot be
// expressed.
type Compare struct {
	Field string
	Op    ir.Op
	Value ir.Value
}

func (Compare) predicateNode() {}

// In represents set membership.
//
//	<field> IN (<v1>, <v2>, ...)
type In struct {
	Field  string
	Values []ir.Value
}

func (In) predicateNode() {}

// And represents a conjunction of predicates (all must be true).
//
// An empty And is vacuously true. An And holding exactly a >= and a <=
// on the same field is how BETWEEN is expressed.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Between builds the And that expresses field BETWEEN lo AND hi.
func Between(field string, lo, hi ir.Value) And {
	return And{Predicates: []Predicate{
		Compare{Field: field, Op: ir.OpGte, Value: lo},
		Compare{Field: field, Op: ir.OpLte, Value: hi},
	}}
}

// Conjoin combines predicates into one. Nil entries are skipped and nested
// Ands are kept as groups. It returns nil when nothing remains and the
// single predicate when only one remains.
func Conjoin(preds ...Predicate) Predicate {
	var out []Predicate
	for _, p := range preds {
		if p == nil {
			continue
		}
		if a, ok := p.(And); ok && len(a.Predicates) == 0 {
			continue
		}
		out = append(out, p)
	}
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	default:
		return And{Predicates: out}
	}
}

// Fields returns the fields a predicate references, in order of first use.
func Fields(p Predicate) []string {
	var out []string
	seen := map[string]bool{}
	var walk func(Predicate)
	walk = func(p Predicate) {
		switch pred := p.(type) {
		case Compare:
			if !seen[pred.Field] {
				seen[pred.Field] = true
				out = append(out, pred.Field)
			}
		case In:
			if !seen[pred.Field] {
				seen[pred.Field] = true
				out = append(out, pred.Field)
			}
		case And:
			for _, sub := range pred.Predicates {
				walk(sub)
			}
		}
	}
	walk(p)
	return out
}
