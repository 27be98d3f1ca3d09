package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/climq/internal/testutil"
)

func TestVocab_ListsDomains(t *testing.T) {
	stdout, _, err := execute(t, "", "vocab")
	require.NoError(t, err)

	for _, name := range []string{"billion_dollar", "edgar", "era5", "fema"} {
		assert.Contains(t, stdout, name)
	}
	assert.Contains(t, stdout, "1980-2024")
	assert.Contains(t, stdout, "1970-2023")
}

func TestVocab_ListJSON(t *testing.T) {
	stdout, _, err := execute(t, "", "vocab", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Data []struct {
			Name string `json:"name"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	var names []string
	for _, d := range resp.Data {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"billion_dollar", "edgar", "era5", "fema"}, names)
}

func TestVocab_DescribesDomain(t *testing.T) {
	stdout, _, err := execute(t, "", "vocab", "era5")
	require.NoError(t, err)

	assert.Contains(t, stdout, "era5: ERA5 monthly means")
	assert.Contains(t, stdout, "Databases: era5")
	assert.Contains(t, stdout, "Entity: City (dataset)")
	assert.Contains(t, stdout, "Metrics:")
	assert.Contains(t, stdout, "  skin_temperature [K]: temperature, skin temperature")
}

func TestVocab_UnknownDomain(t *testing.T) {
	_, _, err := execute(t, "", "vocab", "weather")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), `unknown domain "weather"`)
}

func TestDescribeDomain_Categories(t *testing.T) {
	d := testutil.Domain(t, "fema")
	text := describeDomain(d)

	assert.Contains(t, text, "Category ")
	assert.Contains(t, text, "Hurricane")
	assert.Contains(t, text, "Requires: ")
}

func TestVocab_MissingVocabDir(t *testing.T) {
	_, _, err := execute(t, "", "vocab", "--vocab", t.TempDir()+"/absent")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "vocabulary directory not found")
}
