package vocab

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/climq/internal/ir"
)

func builtin(t *testing.T) *Registry {
	t.Helper()
	reg, err := Builtin()
	require.NoError(t, err)
	return reg
}

func TestBuiltinLoadsAllDomains(t *testing.T) {
	reg := builtin(t)
	assert.Equal(t, []string{"billion_dollar", "edgar", "era5", "fema"}, reg.Names())

	_, ok := reg.Domain("nope")
	assert.False(t, ok)
}

func TestBillionDollarDomain(t *testing.T) {
	d, ok := builtin(t).Domain("billion_dollar")
	require.True(t, ok)

	assert.Equal(t, TimeYear, d.Time.Kind)
	assert.Equal(t, 1980, d.Time.Min)
	assert.Equal(t, 2024, d.Time.Max)
	assert.Equal(t, 20, d.RowCap)

	m, ok := d.Metric("Drought")
	require.True(t, ok)
	assert.Equal(t, []string{"Drought Count", "Drought Cost"}, m.Columns)
	assert.Equal(t, "Drought", m.Label)

	c, ok := d.Column("Drought Cost")
	require.True(t, ok)
	assert.True(t, c.Numeric())
	assert.Equal(t, "1000000000", c.Scale)
	assert.Equal(t, "${value} billion", c.Display)

	year, ok := d.Column("Year")
	require.True(t, ok)
	assert.Equal(t, "integer", year.Type)
	assert.Equal(t, "1", year.Scale)

	assert.True(t, d.IsStopWord("the"), "common stop words are merged in")
	assert.True(t, d.IsStopWord("cost"))
	assert.Equal(t, []ir.Kind{ir.KindMetric}, d.Required(false))
}

func TestEdgarDomain(t *testing.T) {
	d, ok := builtin(t).Domain("edgar")
	require.True(t, ok)

	assert.Equal(t, TimeYearColumns, d.Time.Kind)
	assert.True(t, d.HasColumn("1970"))
	assert.True(t, d.HasColumn("2023"))
	assert.False(t, d.HasColumn("2024"))

	m, ok := d.Metric("fluorinated_emissions")
	require.True(t, ok)
	require.NotNil(t, m.Group)
	assert.Len(t, m.Group.Members, 25)

	co2, ok := d.Metric("co2_emissions")
	require.True(t, ok)
	assert.Equal(t, map[string]string{"Substance": "CO2"}, co2.Filter)
	tbl, ok := d.TableFor(co2)
	require.True(t, ok)
	assert.Equal(t, "co2.emissions", tbl.ID())

	cat, v, ok := d.CategoryValue("HFC")
	require.True(t, ok)
	assert.Equal(t, "Substance", cat.Column)
	assert.Len(t, v.Members, 14)

	assert.Equal(t, 1.0, d.Acceptance(ir.KindCategory))
	assert.Equal(t, 0.85, d.Acceptance(ir.KindLocation))
	require.NotNil(t, d.Entity)
	assert.Equal(t, "Country_code_A3", d.Entity.CodeColumn)
}

func TestERA5Domain(t *testing.T) {
	d, ok := builtin(t).Domain("era5")
	require.True(t, ok)

	assert.Len(t, d.Tables, 14)
	assert.Len(t, d.Metrics, 13)
	assert.True(t, d.Monthly())

	tbl, ok := d.Table("pakistan_df1")
	require.True(t, ok)
	assert.Equal(t, "df1", tbl.Family)
	assert.Equal(t, "PK", tbl.Region)

	m, ok := d.Metric("skin_temperature")
	require.True(t, ok)
	assert.Equal(t, "K", m.Unit)
	assert.Equal(t, "df0", m.Family)

	require.NotNil(t, d.Entity)
	assert.True(t, d.Entity.Gazetteer)
	assert.Equal(t, []string{"IN", "NP", "BT", "PK", "BD", "LK", "AF"}, d.Entity.Regions)
	assert.Contains(t, d.Entity.Accept, "city")
	assert.Len(t, d.EntityTables(), 14)
	assert.True(t, d.IsMetricToken("temperature"))
}

func TestFEMADomain(t *testing.T) {
	d, ok := builtin(t).Domain("fema")
	require.True(t, ok)

	aliases := d.EntityAliases()
	assert.Contains(t, aliases, Alias{Text: "california", Key: "CA"})
	assert.Contains(t, aliases, Alias{Text: "ca", Key: "CA"})

	cats := d.CategoryAliases()
	assert.Contains(t, cats, Alias{Text: "earthquake", Key: "Earthquake"})
	assert.Contains(t, cats, Alias{Text: "wildfires", Key: "Fire"})

	assert.Empty(t, d.Required(false))
	assert.ElementsMatch(t, []ir.Kind{ir.KindLocation, ir.KindCategory, ir.KindDate}, d.Required(true))
	assert.Len(t, d.DefaultColumns, 7)
}

func TestMetricAliasesIncludeKey(t *testing.T) {
	d, ok := builtin(t).Domain("fema")
	require.True(t, ok)

	aliases := d.MetricAliases()
	assert.Contains(t, aliases, Alias{Text: "pa total", Key: "pa_total"})
	assert.Contains(t, aliases, Alias{Text: "public assistance", Key: "pa_total"})

	seen := map[Alias]bool{}
	for _, a := range aliases {
		assert.False(t, seen[a], "duplicate alias %v", a)
		seen[a] = true
	}
}

func writeVocab(t *testing.T, src string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "domain.cue"), []byte(src), 0o644))
	return dir
}

func TestLoadDir(t *testing.T) {
	dir := writeVocab(t, `package climq

domain: tiny: {
	name: "tiny"
	databases: ["db"]
	tables: [{name: "t", database: "db"}]
	time: {column: "yr", kind: "year", min: 2000, max: 2010}
	metrics: [{key: "rain", columns: ["rain"]}]
	columns: [{name: "yr", type: "integer"}, {name: "rain", type: "real"}]
	cutoffs: {}
}
`)
	reg, err := LoadDir(dir)
	require.NoError(t, err)

	d, ok := reg.Domain("tiny")
	require.True(t, ok)
	assert.Equal(t, 0.6, d.Cutoffs.Metric)
	assert.Equal(t, "year", d.Time.Granularity)
	assert.True(t, d.YearInRange(2005))
	assert.False(t, d.YearInRange(2011))
}

func TestLoadDirErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "schema violation",
			src: `package climq
domain: bad: {
	name: "bad"
	databases: ["db"]
	tables: [{name: "t", database: "db"}]
	time: {column: "yr", kind: "decade", min: 2000, max: 2010}
	columns: [{name: "yr"}]
	cutoffs: {}
}
`,
			want: "cue",
		},
		{
			name: "unknown metric column",
			src: `package climq
domain: bad: {
	name: "bad"
	databases: ["db"]
	tables: [{name: "t", database: "db"}]
	time: {column: "yr", kind: "year", min: 2000, max: 2010}
	metrics: [{key: "rain", columns: ["rainfall"]}]
	columns: [{name: "yr"}]
	cutoffs: {}
}
`,
			want: "domain.bad",
		},
		{
			name: "name mismatch",
			src: `package climq
domain: bad: {
	name: "other"
	databases: ["db"]
	tables: [{name: "t", database: "db"}]
	time: {column: "yr", kind: "year", min: 2000, max: 2010}
	columns: [{name: "yr"}]
	cutoffs: {}
}
`,
			want: "domain.bad.name",
		},
		{
			name: "no domains",
			src:  "package climq\nx: 1\n",
			want: "domain",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadDir(writeVocab(t, tt.src))
			require.Error(t, err)
			var le *LoadError
			require.True(t, errors.As(err, &le))
			assert.Equal(t, tt.want, le.Field)
		})
	}
}

func TestLoadDirMissing(t *testing.T) {
	_, err := LoadDir(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
