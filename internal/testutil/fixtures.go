package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/climq/internal/dataset"
	"github.com/roach88/climq/internal/vocab"
)

// Fixtures are the sample rows written for each builtin domain, keyed by
// domain name and then by table ID.
var Fixtures = map[string]map[string][]map[string]any{
	"billion_dollar": {
		"disasters.disaster_records": {
			{"Year": 1980, "Drought Count": 1, "Drought Cost": 41.2, "Flooding Count": 0, "Flooding Cost": 0.0,
				"Tropical Cyclone Count": 1, "Tropical Cyclone Cost": 1.6, "Total_Disaster_Count": 3, "Total_Disaster_Cost": 46.0},
			{"Year": 1981, "Drought Count": 0, "Drought Cost": 0.0, "Flooding Count": 1, "Flooding Cost": 1.1,
				"Tropical Cyclone Count": 0, "Tropical Cyclone Cost": 0.0, "Total_Disaster_Count": 2, "Total_Disaster_Cost": 2.4},
			{"Year": 1982, "Drought Count": 0, "Drought Cost": 0.0, "Flooding Count": 1, "Flooding Cost": 2.3,
				"Tropical Cyclone Count": 0, "Tropical Cyclone Cost": 0.0, "Total_Disaster_Count": 3, "Total_Disaster_Cost": 5.8},
			{"Year": 1983, "Drought Count": 1, "Drought Cost": 8.5, "Flooding Count": 2, "Flooding Cost": 6.2,
				"Tropical Cyclone Count": 1, "Tropical Cyclone Cost": 9.3, "Total_Disaster_Count": 6, "Total_Disaster_Cost": 30.1},
			{"Year": 1984, "Drought Count": 0, "Drought Cost": 0.0, "Flooding Count": 1, "Flooding Cost": 1.0,
				"Tropical Cyclone Count": 0, "Tropical Cyclone Cost": 0.0, "Total_Disaster_Count": 2, "Total_Disaster_Cost": 2.9},
		},
	},
	"fema": {
		"disaster_dollar.disaster_dollar_db": {
			{"year": 2017, "event": "Hurricane Harvey", "incident_number": "4332", "incident_start": "2017-08-23", "incident_end": "2017-09-15",
				"state": "TX", "incident_type": "Hurricane", "valid_ihp_applications": 895000, "eligible_ihp_applications": 373000,
				"ihp_total": 1650000000.0, "pa_total": 7654321.25, "pa_projects_count": 4120, "cdbg_dr_allocation": 5024215000.0},
			{"year": 2017, "event": "Hurricane Irma", "incident_number": "4337", "incident_start": "2017-09-04", "incident_end": "2017-10-18",
				"state": "FL", "incident_type": "Hurricane", "valid_ihp_applications": 1200000, "eligible_ihp_applications": 388000,
				"ihp_total": 1020000000.0, "pa_total": 3200000.5, "pa_projects_count": 2800, "cdbg_dr_allocation": 615922000.0},
			{"year": 2016, "event": "Severe Storms and Flooding", "incident_number": "4272", "incident_start": "2016-05-22", "incident_end": "2016-06-24",
				"state": "TX", "incident_type": "Flood", "pa_total": 210000.0},
			{"year": 2015, "event": "Valley Fire", "incident_number": "4240", "incident_start": "2015-09-12", "incident_end": "2015-10-05",
				"state": "CA", "incident_type": "Fire", "pa_total": 51000.0},
		},
	},
	"era5": {
		"era5.india_df0": {
			{"City": "DELHI", "date": "2020-03-01", "latitude": 28.61, "longitude": 77.21, "skin_temperature": 298.4, "wind_speed": 2.1},
			{"City": "DELHI", "date": "2020-04-01", "latitude": 28.61, "longitude": 77.21, "skin_temperature": 303.1, "wind_speed": 2.6},
			{"City": "MUMBAI", "date": "2020-03-01", "latitude": 19.08, "longitude": 72.88, "skin_temperature": 301.2, "wind_speed": 3.4},
		},
		"era5.india_df1": {
			{"City": "DELHI", "date": "2019-07-01", "latitude": 28.61, "longitude": 77.21, "total_precipitation": 0.0123, "snowfall": 0.0},
			{"City": "DELHI", "date": "2020-07-01", "latitude": 28.61, "longitude": 77.21, "total_precipitation": 0.0098, "snowfall": 0.0},
		},
		"era5.nepal_df0": {
			{"City": "KATHMANDU", "date": "2020-03-01", "latitude": 27.72, "longitude": 85.32, "skin_temperature": 285.6},
		},
		"era5.pakistan_df0": {
			{"City": "KARACHI", "date": "2020-03-01", "latitude": 24.86, "longitude": 67.01, "skin_temperature": 300.9},
		},
	},
	"edgar": {
		"co2.emissions": {
			{"Name": "Germany", "Country_code_A3": "DEU", "Substance": "CO2", "2010": 800.5, "2015": 780.25, "2020": 644.0},
			{"Name": "France", "Country_code_A3": "FRA", "Substance": "CO2", "2010": 350.0, "2015": 327.75, "2020": 276.5},
			{"Name": "Côte d'Ivoire", "Country_code_A3": "CIV", "Substance": "CO2", "2010": 7.5},
		},
		"ch4.emissions": {
			{"Name": "Germany", "Country_code_A3": "DEU", "Substance": "CH4", "2010": 2.5, "2015": 2.25},
		},
		"n2o.emissions": {
			{"Name": "Germany", "Country_code_A3": "DEU", "Substance": "N2O", "2010": 120.0},
		},
		"fluorinated.emissions": {
			{"Name": "Japan", "Country_code_A3": "JPN", "Substance": "HFC-134a", "2015": 12.5},
			{"Name": "Japan", "Country_code_A3": "JPN", "Substance": "HFC-125", "2015": 7.5},
			{"Name": "Japan", "Country_code_A3": "JPN", "Substance": "SF6", "2015": 2.0},
		},
	},
}

// Registry loads the builtin vocabulary.
func Registry(t testing.TB) *vocab.Registry {
	t.Helper()
	reg, err := vocab.Builtin()
	require.NoError(t, err)
	return reg
}

// Domain returns one builtin domain.
func Domain(t testing.TB, name string) *vocab.Domain {
	t.Helper()
	d, ok := Registry(t).Domain(name)
	require.True(t, ok, "unknown domain %q", name)
	return d
}

// Datasets writes the fixture databases of every domain in reg into a new
// temporary directory and returns it. Every declared table is created,
// including tables without fixture rows.
func Datasets(t testing.TB, reg *vocab.Registry) string {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()
	for _, d := range reg.Domains() {
		w := dataset.NewWriter(dir, d)
		require.NoError(t, w.Create(ctx), "create %s", d.Name)
		for id, rows := range Fixtures[d.Name] {
			table, ok := d.Table(id)
			require.True(t, ok, "fixture table %s not in domain %s", id, d.Name)
			require.NoError(t, w.Insert(ctx, table, rows), "insert %s", id)
		}
	}
	return dir
}

// Store opens a read-only store over fresh fixture databases for every
// domain in reg. It is closed when the test ends.
func Store(t testing.TB, reg *vocab.Registry) *dataset.Store {
	t.Helper()
	dir := Datasets(t, reg)
	var dbs []string
	for _, d := range reg.Domains() {
		dbs = append(dbs, d.Databases...)
	}
	s, err := dataset.Open(dir, dbs)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}
