package querysql

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/climq/internal/ir"
	"github.com/roach88/climq/internal/queryir"
)

func TestCompile_DroughtIn1980(t *testing.T) {
	compiler := NewCompiler()

	query := queryir.Select{
		Database: "disasters",
		From:     "disaster_records",
		Columns:  []queryir.Column{{Name: "Year"}, {Name: "Drought Count"}, {Name: "Drought Cost"}},
		Filter:   queryir.Compare{Field: "Year", Op: ir.OpEq, Value: ir.Int(1980)},
		OrderBy:  []queryir.Order{{Column: "Year"}},
		Limit:    20,
	}

	cq, err := compiler.Compile(query)
	require.NoError(t, err)

	assert.Equal(t, `SELECT Year, "Drought Count", "Drought Cost" FROM disaster_records WHERE Year = 1980 ORDER BY Year ASC LIMIT 20`, cq.Statement)
	assert.Equal(t, `SELECT Year, "Drought Count", "Drought Cost" FROM disaster_records WHERE Year = ? ORDER BY Year ASC LIMIT 20`, cq.Parameterized)
	assert.Equal(t, []any{int64(1980)}, cq.Args)
	assert.Equal(t, "disasters", cq.Database)
	assert.Equal(t, "disaster_records", cq.Table)
	assert.Equal(t, []string{"Year", "Drought Count", "Drought Cost"}, cq.Columns)
	assert.Equal(t, 20, cq.RowCap)
	assert.Equal(t, "Year ASC", cq.OrderBy)
}

func TestCompile_YearRangeRendersBetween(t *testing.T) {
	compiler := NewCompiler()

	query := queryir.Select{
		Database: "disasters",
		From:     "disaster_records",
		Columns:  []queryir.Column{{Name: "Year"}, {Name: "Flooding Cost"}, {Name: "Tropical Cyclone Cost"}},
		Filter:   queryir.Between("Year", ir.Int(1980), ir.Int(1984)),
		OrderBy:  []queryir.Order{{Column: "Year"}},
		Limit:    20,
	}

	cq, err := compiler.Compile(query)
	require.NoError(t, err)

	assert.Equal(t, `SELECT Year, "Flooding Cost", "Tropical Cyclone Cost" FROM disaster_records WHERE Year BETWEEN 1980 AND 1984 ORDER BY Year ASC LIMIT 20`, cq.Statement)
	assert.Equal(t, []any{int64(1980), int64(1984)}, cq.Args)
}

func TestCompile_ReversedBoundsStillBetween(t *testing.T) {
	cq, err := NewCompiler().Compile(queryir.Select{
		From:    "t",
		Columns: []queryir.Column{{Name: "a"}},
		Filter: queryir.And{Predicates: []queryir.Predicate{
			queryir.Compare{Field: "Year", Op: ir.OpLte, Value: ir.Int(1990)},
			queryir.Compare{Field: "Year", Op: ir.OpGte, Value: ir.Int(1985)},
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, "SELECT a FROM t WHERE Year BETWEEN 1985 AND 1990", cq.Statement)
}

func TestCompile_LiteralQuoting(t *testing.T) {
	tests := []struct {
		name  string
		value ir.Value
		want  string
	}{
		{"integer unquoted", ir.Int(2020), `"2020" = 2020`},
		{"decimal unquoted", ir.Number{Decimal: decimal.RequireFromString("0.5")}, `"2020" = 0.5`},
		{"string quoted", ir.String("Texas"), `"2020" = 'Texas'`},
		{"embedded quote doubled", ir.String("Cote d'Ivoire"), `"2020" = 'Cote d''Ivoire'`},
		{"injection stays literal", ir.String("x'; DROP TABLE t; --"), `"2020" = 'x''; DROP TABLE t; --'`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cq, err := NewCompiler().Compile(queryir.Select{
				From:    "emissions",
				Columns: []queryir.Column{{Name: "Name"}},
				Filter:  queryir.Compare{Field: "2020", Op: ir.OpEq, Value: tt.value},
			})
			require.NoError(t, err)
			assert.Equal(t, "SELECT Name FROM emissions WHERE "+tt.want, cq.Statement)
		})
	}
}

func TestCompile_InAndSum(t *testing.T) {
	cq, err := NewCompiler().Compile(queryir.Select{
		Database: "fluorinated",
		From:     "emissions",
		Columns:  []queryir.Column{{Name: "2000", Aggregate: queryir.AggregateSum}},
		Filter: queryir.Conjoin(
			queryir.Compare{Field: "Name", Op: ir.OpEq, Value: ir.String("Germany")},
			queryir.In{Field: "Substance", Values: []ir.Value{ir.String("HFC-32"), ir.String("HFC-125")}},
		),
	})
	require.NoError(t, err)

	assert.Equal(t, `SELECT SUM("2000") AS total FROM emissions WHERE Name = 'Germany' AND Substance IN ('HFC-32', 'HFC-125')`, cq.Statement)
	assert.Equal(t, `SELECT SUM("2000") AS total FROM emissions WHERE Name = ? AND Substance IN (?, ?)`, cq.Parameterized)
	assert.Equal(t, []any{"Germany", "HFC-32", "HFC-125"}, cq.Args)
	assert.Equal(t, []string{"total"}, cq.Columns)
}

func TestCompile_Distinct(t *testing.T) {
	cq, err := NewCompiler().Compile(queryir.Select{
		From:     "india_df0",
		Columns:  []queryir.Column{{Name: "City"}},
		Distinct: true,
		OrderBy:  []queryir.Order{{Column: "City"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "SELECT DISTINCT City FROM india_df0 ORDER BY City ASC", cq.Statement)
	assert.Nil(t, cq.Args)
}

func TestCompile_Pragma(t *testing.T) {
	cq, err := NewCompiler().Compile(queryir.Pragma{Database: "disasters", Name: "table_info", Arg: "disaster_records"})
	require.NoError(t, err)
	assert.Equal(t, "PRAGMA table_info(disaster_records)", cq.Statement)

	_, err = NewCompiler().Compile(queryir.Pragma{Name: "journal_mode"})
	require.Error(t, err)
	var re *RejectedError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "PRAGMA journal_mode", re.Statement)
}

func TestCompile_Rejections(t *testing.T) {
	tests := []struct {
		name      string
		query     queryir.Query
		statement string
	}{
		{"empty projection", queryir.Select{From: "t"}, "SELECT FROM t"},
		{"bad operator", queryir.Select{From: "t", Columns: []queryir.Column{{Name: "a"}}, Filter: queryir.Compare{Field: "a", Op: "!=", Value: ir.Int(1)}}, "SELECT a FROM t"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCompiler().Compile(tt.query)
			require.Error(t, err)
			var re *RejectedError
			require.ErrorAs(t, err, &re)
			assert.Equal(t, tt.statement, re.Statement)
			assert.Contains(t, err.Error(), tt.statement)
		})
	}

	_, err := NewCompiler().Compile(nil)
	require.Error(t, err)
	assert.False(t, IsRejected(err))
}

func TestCompile_Deterministic(t *testing.T) {
	query := queryir.Select{
		From:    "disaster_dollar_db",
		Columns: []queryir.Column{{Name: "year"}, {Name: "pa_total"}},
		Filter: queryir.Conjoin(
			queryir.Compare{Field: "state", Op: ir.OpEq, Value: ir.String("TX")},
			queryir.Compare{Field: "incident_type", Op: ir.OpEq, Value: ir.String("Hurricane")},
			queryir.Compare{Field: "year", Op: ir.OpEq, Value: ir.Int(2017)},
		),
	}

	first, err := NewCompiler().Compile(query)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := NewCompiler().Compile(query)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, "Year", QuoteIdent("Year"))
	assert.Equal(t, "Total_Disaster_Cost", QuoteIdent("Total_Disaster_Cost"))
	assert.Equal(t, `"Drought Cost"`, QuoteIdent("Drought Cost"))
	assert.Equal(t, `"1990"`, QuoteIdent("1990"))
	assert.Equal(t, `"a""b"`, QuoteIdent(`a"b`))
}
