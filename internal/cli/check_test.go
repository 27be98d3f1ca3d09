package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/climq/internal/testutil"
)

func TestCheck_Fixtures(t *testing.T) {
	dir := fixtureDir(t)

	stdout, _, err := execute(t, "", "check", "--data-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, stdout, "✓ billion_dollar disasters.disaster_records")
	assert.Contains(t, stdout, "✓ era5 era5.india_df1")
	assert.Contains(t, stdout, ", 0 failed")
	assert.NotContains(t, stdout, "✗")
}

func TestCheck_DomainFilterJSON(t *testing.T) {
	dir := fixtureDir(t)

	stdout, _, err := execute(t, "", "check", "--format", "json", "--data-dir", dir, "--domain", "edgar")
	require.NoError(t, err)

	var resp struct {
		Status string       `json:"status"`
		Data   []TableCheck `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.NotEmpty(t, resp.Data)
	for _, c := range resp.Data {
		assert.Equal(t, "edgar", c.Domain)
		assert.True(t, c.OK(), "table %s: %+v", c.Table, c)
	}
}

func TestCheck_MissingDatabases(t *testing.T) {
	t.Setenv("CLIMQ_GAZETTEER_ENABLED", "false")

	stdout, _, err := execute(t, "", "check", "--data-dir", t.TempDir(), "--domain", "billion_dollar")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "✗ billion_dollar disasters.disaster_records")
	assert.Contains(t, stdout, "Checked 1 tables, 1 failed")
}

func TestRequiredColumns_PerFamily(t *testing.T) {
	d := testutil.Domain(t, "era5")
	df0, ok := d.Table("india_df0")
	require.True(t, ok)

	cols := requiredColumns(d, df0)
	assert.Contains(t, cols, "date")
	assert.Contains(t, cols, "City")
	assert.Contains(t, cols, "skin_temperature")
	assert.Contains(t, cols, "wind_speed")
	assert.NotContains(t, cols, "snowfall")
	assert.NotContains(t, cols, "total_precipitation")
}

func TestRequiredColumns_YearColumnsHaveNoTimeColumn(t *testing.T) {
	d := testutil.Domain(t, "edgar")
	tbl, ok := d.Table("co2.emissions")
	require.True(t, ok)

	cols := requiredColumns(d, tbl)
	assert.Contains(t, cols, "Name")
	assert.NotContains(t, cols, "")
}

func TestTableCheck_OK(t *testing.T) {
	assert.True(t, TableCheck{Found: true}.OK())
	assert.False(t, TableCheck{}.OK())
	assert.False(t, TableCheck{Found: true, Missing: []string{"Year"}}.OK())
	assert.False(t, TableCheck{Found: true, Error: "locked"}.OK())
}
