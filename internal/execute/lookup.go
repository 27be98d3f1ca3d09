package execute

import (
	"context"
	"fmt"

	"github.com/roach88/climq/internal/dataset"
	"github.com/roach88/climq/internal/queryir"
	"github.com/roach88/climq/internal/querysql"
)

// Lookup enumerates distinct column values through the dataset source. It
// serves the resolver's dataset tier.
type Lookup struct {
	source   dataset.Source
	compiler *querysql.Compiler
}

// NewLookup creates a Lookup over source.
func NewLookup(source dataset.Source) *Lookup {
	return &Lookup{source: source, compiler: querysql.NewCompiler()}
}

// Distinct returns the distinct non-null tuples of columns in table,
// ordered by the first column.
func (l *Lookup) Distinct(ctx context.Context, database, table string, columns ...string) ([][]string, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("distinct %s.%s: no columns", database, table)
	}
	sel := queryir.Select{
		Database: database,
		From:     table,
		Distinct: true,
		OrderBy:  []queryir.Order{{Column: columns[0]}},
	}
	for _, c := range columns {
		sel.Columns = append(sel.Columns, queryir.Column{Name: c})
	}
	q, err := l.compiler.Compile(sel)
	if err != nil {
		return nil, err
	}

	reply, err := l.source.Execute(ctx, database, q.Statement)
	if err != nil {
		return nil, err
	}
	records := reply.Records
	if records == nil && !reply.NoData && reply.Text != dataset.NoDataText {
		records = DecodeText(reply.Text)
	}

	var out [][]string
	for _, rec := range records {
		if len(rec) != len(columns) || rec[0] == nil {
			continue
		}
		row := make([]string, len(rec))
		for i, v := range rec {
			row[i] = text(v)
		}
		out = append(out, row)
	}
	return out, nil
}
