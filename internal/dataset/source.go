package dataset

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// NoDataText is the reply text for an empty result.
const NoDataText = "No data found for the query."

// Source is the dataset collaborator contract.
type Source interface {
	// Tables lists the tables of a database.
	Tables(ctx context.Context, database string) ([]string, error)

	// Execute runs one read-only statement.
	Execute(ctx context.Context, database, statement string) (Reply, error)

	// Schema describes every table of a database.
	Schema(ctx context.Context, database string) ([]TableSchema, error)
}

// Binder is implemented by sources that bind literal values as
// parameters. statement uses ? placeholders for args in order.
type Binder interface {
	ExecuteArgs(ctx context.Context, database, statement string, args ...any) (Reply, error)
}

// Reply is the result of Execute. Exactly one of Records or Text carries
// the rows; NoData marks an empty result.
type Reply struct {
	Columns []string `json:"columns,omitempty"`
	Records [][]any  `json:"records,omitempty"`
	Text    string   `json:"text,omitempty"`
	NoData  bool     `json:"no_data,omitempty"`
}

// TableSchema is the introspected shape of one table.
type TableSchema struct {
	Name    string       `json:"name"`
	Columns []ColumnInfo `json:"columns"`
}

// ColumnInfo is one row of PRAGMA table_info.
type ColumnInfo struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	NotNull bool   `json:"not_null"`
	Primary bool   `json:"primary"`
}

// Names returns the column names in declaration order.
func (t TableSchema) Names() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// Render returns the reply as tuple text: one "(v1, v2, ...)" line per
// record, strings single-quoted, NULL as None. An empty reply renders as
// NoDataText.
func (r Reply) Render() string {
	if r.Text != "" {
		return r.Text
	}
	if r.NoData || len(r.Records) == 0 {
		return NoDataText
	}
	lines := make([]string, len(r.Records))
	for i, rec := range r.Records {
		lines[i] = FormatTuple(rec)
	}
	return strings.Join(lines, "\n")
}

// FormatTuple renders one record as a tuple literal.
func FormatTuple(rec []any) string {
	parts := make([]string, len(rec))
	for i, v := range rec {
		parts[i] = formatValue(v)
	}
	if len(parts) == 1 {
		return "(" + parts[0] + ",)"
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "None"
	case int64:
		return strconv.FormatInt(val, 10)
	case int:
		return strconv.Itoa(val)
	case float64:
		if math.IsInf(val, 0) || math.IsNaN(val) {
			return "None"
		}
		s := strconv.FormatFloat(val, 'f', -1, 64)
		if !strings.ContainsAny(s, ".e") {
			s += ".0"
		}
		return s
	case bool:
		if val {
			return "1"
		}
		return "0"
	case []byte:
		return quote(string(val))
	case string:
		return quote(val)
	default:
		return quote(fmt.Sprint(val))
	}
}

// quote single-quotes s, switching to double quotes when s holds a single
// quote and no double quote.
func quote(s string) string {
	q := "'"
	if strings.Contains(s, "'") && !strings.Contains(s, `"`) {
		q = `"`
	}
	r := strings.NewReplacer(`\`, `\\`, q, `\`+q, "\n", `\n`)
	return q + r.Replace(s) + q
}
