package querysql

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/roach88/climq/internal/ir"
	"github.com/roach88/climq/internal/queryir"
)

// CompiledQuery is a rendered read-only statement ready for dispatch.
//
// Statement carries every literal inline, quoted and escaped; it is what a
// text-only dataset collaborator receives. Parameterized carries the same
// query with ? placeholders and Args in order, for drivers that bind.
type CompiledQuery struct {
	Database      string   `json:"database"`
	Table         string   `json:"table"`
	Statement     string   `json:"statement"`
	Parameterized string   `json:"parameterized"`
	Args          []any    `json:"args,omitempty"`
	Columns       []string `json:"columns"`
	RowCap        int      `json:"row_cap,omitempty"`
	OrderBy       string   `json:"order_by,omitempty"`
}

// Compiler compiles queryir queries to SQLite statements.
//
// CRITICAL: table and column names come from the registry and are quoted
// when needed. Literal values are either single-quoted with embedded quotes
// doubled, or bound as parameters. Every emitted statement passes Guard.
type Compiler struct{}

// NewCompiler creates a new Compiler.
func NewCompiler() *Compiler {
	return &Compiler{}
}

// Compile converts a queryir query to a CompiledQuery.
func (c *Compiler) Compile(q queryir.Query) (CompiledQuery, error) {
	if q == nil {
		return CompiledQuery{}, fmt.Errorf("cannot compile nil query")
	}
	if res := queryir.Validate(q); !res.Valid {
		return CompiledQuery{}, &RejectedError{Statement: describe(q), Reason: strings.Join(res.Warnings, "; ")}
	}

	var (
		out CompiledQuery
		err error
	)
	switch query := q.(type) {
	case queryir.Select:
		out, err = c.compileSelect(query)
	case *queryir.Select:
		out, err = c.compileSelect(*query)
	case queryir.Pragma:
		out = c.compilePragma(query)
	case *queryir.Pragma:
		out = c.compilePragma(*query)
	default:
		return CompiledQuery{}, fmt.Errorf("unsupported query type: %T", q)
	}
	if err != nil {
		return CompiledQuery{}, err
	}
	if err := Guard(out.Statement); err != nil {
		return CompiledQuery{}, err
	}
	return out, nil
}

// describe outlines a query that failed validation and was never rendered.
func describe(q queryir.Query) string {
	switch query := q.(type) {
	case *queryir.Select:
		return describe(*query)
	case queryir.Select:
		names := make([]string, 0, len(query.Columns))
		for _, col := range query.Columns {
			names = append(names, col.OutputName())
		}
		if len(names) == 0 {
			return "SELECT FROM " + query.From
		}
		return fmt.Sprintf("SELECT %s FROM %s", strings.Join(names, ", "), query.From)
	case *queryir.Pragma:
		return describe(*query)
	case queryir.Pragma:
		if query.Arg == "" {
			return "PRAGMA " + query.Name
		}
		return fmt.Sprintf("PRAGMA %s(%s)", query.Name, query.Arg)
	}
	return fmt.Sprintf("%T", q)
}

// compileSelect renders a Select in both literal and parameterized form.
func (c *Compiler) compileSelect(q queryir.Select) (CompiledQuery, error) {
	cols := make([]string, 0, len(q.Columns))
	names := make([]string, 0, len(q.Columns))
	for _, col := range q.Columns {
		cols = append(cols, compileColumn(col))
		names = append(names, col.OutputName())
	}

	head := "SELECT "
	if q.Distinct {
		head += "DISTINCT "
	}
	head += strings.Join(cols, ", ") + " FROM " + QuoteIdent(q.From)

	var where, whereParam string
	var args []any
	if q.Filter != nil {
		lit, param, filterArgs, err := c.compilePredicate(q.Filter)
		if err != nil {
			return CompiledQuery{}, fmt.Errorf("compile filter: %w", err)
		}
		where = " WHERE " + lit
		whereParam = " WHERE " + param
		args = filterArgs
	}

	var tail string
	var orderBy string
	if len(q.OrderBy) > 0 {
		keys := make([]string, 0, len(q.OrderBy))
		for _, o := range q.OrderBy {
			dir := "ASC"
			if o.Desc {
				dir = "DESC"
			}
			keys = append(keys, QuoteIdent(o.Column)+" "+dir)
		}
		orderBy = strings.Join(keys, ", ")
		tail += " ORDER BY " + orderBy
	}
	if q.Limit > 0 {
		tail += " LIMIT " + strconv.Itoa(q.Limit)
	}

	return CompiledQuery{
		Database:      q.Database,
		Table:         q.From,
		Statement:     head + where + tail,
		Parameterized: head + whereParam + tail,
		Args:          args,
		Columns:       names,
		RowCap:        q.Limit,
		OrderBy:       orderBy,
	}, nil
}

func (c *Compiler) compilePragma(p queryir.Pragma) CompiledQuery {
	stmt := "PRAGMA " + p.Name
	if p.Arg != "" {
		stmt += "(" + QuoteIdent(p.Arg) + ")"
	}
	return CompiledQuery{
		Database:      p.Database,
		Table:         p.Arg,
		Statement:     stmt,
		Parameterized: stmt,
	}
}

func compileColumn(col queryir.Column) string {
	expr := QuoteIdent(col.Name)
	if col.Aggregate == queryir.AggregateSum {
		return "SUM(" + expr + ") AS " + QuoteIdent(col.OutputName())
	}
	if col.Alias != "" && col.Alias != col.Name {
		return expr + " AS " + QuoteIdent(col.Alias)
	}
	return expr
}

// compilePredicate returns the literal rendering, the parameterized
// rendering and the bound arguments of a predicate.
func (c *Compiler) compilePredicate(p queryir.Predicate) (string, string, []any, error) {
	if p == nil {
		return "1 = 1", "1 = 1", nil, nil // Always true
	}

	switch pred := p.(type) {
	case queryir.Compare:
		return c.compileCompare(pred)
	case *queryir.Compare:
		return c.compileCompare(*pred)
	case queryir.In:
		return c.compileIn(pred)
	case *queryir.In:
		return c.compileIn(*pred)
	case queryir.And:
		return c.compileAnd(pred)
	case *queryir.And:
		return c.compileAnd(*pred)
	default:
		return "", "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func (c *Compiler) compileCompare(cmp queryir.Compare) (string, string, []any, error) {
	lit, err := Literal(cmp.Value)
	if err != nil {
		return "", "", nil, err
	}
	arg, err := valueToParam(cmp.Value)
	if err != nil {
		return "", "", nil, err
	}
	field := QuoteIdent(cmp.Field)
	op := string(cmp.Op)
	return field + " " + op + " " + lit, field + " " + op + " ?", []any{arg}, nil
}

func (c *Compiler) compileIn(in queryir.In) (string, string, []any, error) {
	lits := make([]string, 0, len(in.Values))
	marks := make([]string, 0, len(in.Values))
	args := make([]any, 0, len(in.Values))
	for _, v := range in.Values {
		lit, err := Literal(v)
		if err != nil {
			return "", "", nil, err
		}
		arg, err := valueToParam(v)
		if err != nil {
			return "", "", nil, err
		}
		lits = append(lits, lit)
		marks = append(marks, "?")
		args = append(args, arg)
	}
	field := QuoteIdent(in.Field)
	return field + " IN (" + strings.Join(lits, ", ") + ")",
		field + " IN (" + strings.Join(marks, ", ") + ")", args, nil
}

// compileAnd compiles an And predicate to a conjunction. A pair of >= and
// <= bounds on one field renders as BETWEEN.
func (c *Compiler) compileAnd(and queryir.And) (string, string, []any, error) {
	if len(and.Predicates) == 0 {
		return "1 = 1", "1 = 1", nil, nil // Always true (vacuous truth)
	}
	if field, lo, hi, ok := betweenBounds(and); ok {
		loLit, err := Literal(lo)
		if err != nil {
			return "", "", nil, err
		}
		hiLit, err := Literal(hi)
		if err != nil {
			return "", "", nil, err
		}
		loArg, err := valueToParam(lo)
		if err != nil {
			return "", "", nil, err
		}
		hiArg, err := valueToParam(hi)
		if err != nil {
			return "", "", nil, err
		}
		f := QuoteIdent(field)
		return f + " BETWEEN " + loLit + " AND " + hiLit, f + " BETWEEN ? AND ?", []any{loArg, hiArg}, nil
	}

	var lits, params []string
	var allArgs []any
	for _, pred := range and.Predicates {
		lit, param, args, err := c.compilePredicate(pred)
		if err != nil {
			return "", "", nil, err
		}
		lits = append(lits, lit)
		params = append(params, param)
		allArgs = append(allArgs, args...)
	}
	return strings.Join(lits, " AND "), strings.Join(params, " AND "), allArgs, nil
}

// betweenBounds reports whether and is exactly field >= lo AND field <= hi.
func betweenBounds(and queryir.And) (string, ir.Value, ir.Value, bool) {
	if len(and.Predicates) != 2 {
		return "", nil, nil, false
	}
	a, okA := and.Predicates[0].(queryir.Compare)
	b, okB := and.Predicates[1].(queryir.Compare)
	if !okA || !okB || a.Field != b.Field {
		return "", nil, nil, false
	}
	switch {
	case a.Op == ir.OpGte && b.Op == ir.OpLte:
		return a.Field, a.Value, b.Value, true
	case a.Op == ir.OpLte && b.Op == ir.OpGte:
		return a.Field, b.Value, a.Value, true
	default:
		return "", nil, nil, false
	}
}

var plainIdent = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// QuoteIdent returns name unchanged when it is a plain identifier and
// double-quoted (embedded quotes doubled) otherwise.
func QuoteIdent(name string) string {
	if plainIdent.MatchString(name) {
		return name
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteString renders s as a single-quoted SQL string literal.
func QuoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// Literal renders an ir.Value as an SQL literal. Strings are quoted;
// numbers are not.
func Literal(v ir.Value) (string, error) {
	switch val := v.(type) {
	case ir.String:
		return QuoteString(string(val)), nil
	case ir.Int:
		return strconv.FormatInt(int64(val), 10), nil
	case ir.Number:
		return val.Decimal.String(), nil
	default:
		return "", fmt.Errorf("unsupported value type for SQL literal: %T", v)
	}
}

// valueToParam converts an ir.Value to a Go native type for SQL binding.
func valueToParam(v ir.Value) (any, error) {
	switch val := v.(type) {
	case ir.String:
		return string(val), nil
	case ir.Int:
		return int64(val), nil
	case ir.Number:
		if val.Decimal.IsInteger() {
			return val.Decimal.IntPart(), nil
		}
		return val.Decimal.InexactFloat64(), nil
	default:
		return nil, fmt.Errorf("unsupported value type for SQL parameter: %T", v)
	}
}
