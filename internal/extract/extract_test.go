package extract

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/climq/internal/ir"
	"github.com/roach88/climq/internal/vocab"
)

func domain(t *testing.T, name string) *vocab.Domain {
	t.Helper()
	reg, err := vocab.Builtin()
	require.NoError(t, err)
	d, ok := reg.Domain(name)
	require.True(t, ok)
	return d
}

func spansOf(spans []ir.CandidateSpan, kind ir.Kind) []ir.CandidateSpan {
	var out []ir.CandidateSpan
	for _, s := range spans {
		if s.Kind == kind {
			out = append(out, s)
		}
	}
	return out
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"How many droughts occurred in 1980?", []string{"How", "many", "droughts", "occurred", "in", "1980"}},
		{"cost between 1980-1984", []string{"cost", "between", "1980-1984"}},
		{"more than $1,200,000.50 in 03/2020", []string{"more", "than", "$1,200,000.50", "in", "03/2020"}},
		{"HFC-134a and HFC-43-10-mee", []string{"HFC-134a", "and", "HFC-43-10-mee"}},
		{"Delhi, Lahore vs Kabul", []string{"Delhi", ",", "Lahore", "vs", "Kabul"}},
		{"1980,1990", []string{"1980", ",", "1990"}},
		{"Côte d'Ivoire", []string{"Côte", "d'Ivoire"}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var got []string
			for _, tok := range Tokenize(tt.in) {
				got = append(got, tok.Text)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTokenKinds(t *testing.T) {
	toks := Tokenize("Drought, $5 1980")
	require.Len(t, toks, 4)
	assert.Equal(t, TokenWord, toks[0].Kind)
	assert.Equal(t, "drought", toks[0].Fold)
	assert.Equal(t, TokenComma, toks[1].Kind)
	assert.Equal(t, TokenNumber, toks[2].Kind)
	assert.Equal(t, TokenNumber, toks[3].Kind)
}

func TestSegments(t *testing.T) {
	toks := Tokenize("rain in Delhi, Lahore and Kabul versus Dhaka")
	assert.Equal(t, [][2]int{{0, 3}, {4, 5}, {6, 7}, {8, 9}}, Segments(toks))
}

func TestWindowsStayInsideSegments(t *testing.T) {
	toks := Tokenize("a b c d e f g h, i")
	for _, w := range windows(toks) {
		assert.LessOrEqual(t, w.end-w.start, MaxWindow)
		for i := w.start; i < w.end; i++ {
			assert.NotEqual(t, TokenComma, toks[i].Kind)
		}
	}
}

func TestExtract_DroughtsIn1980(t *testing.T) {
	e := New(domain(t, "billion_dollar"))
	res := e.Extract(nil, "How many droughts occurred in 1980?")

	require.Len(t, res.Spans, 2)
	m := res.Spans[0]
	assert.Equal(t, ir.KindMetric, m.Kind)
	assert.Equal(t, "Drought", m.Match)
	assert.True(t, m.Exact)
	assert.Equal(t, 1.0, m.Confidence)

	d := res.Spans[1]
	assert.Equal(t, ir.KindDate, d.Kind)
	assert.Equal(t, "in 1980", d.Text)
	require.NotNil(t, d.Date)
	assert.Equal(t, ir.DateMention{Form: ir.FormPreposition, Year: 1980, Op: ir.OpEq}, *d.Date)
}

func TestExtract_CompareFloodingAndCyclones(t *testing.T) {
	e := New(domain(t, "billion_dollar"))
	res := e.Extract(nil, "Compare the flooding and tropical cyclone cost between 1980-1984")

	metrics := spansOf(res.Spans, ir.KindMetric)
	require.Len(t, metrics, 2)
	assert.Equal(t, "Flooding", metrics[0].Match)
	assert.Equal(t, "Tropical Cyclone", metrics[1].Match)
	assert.Equal(t, "tropical cyclone", metrics[1].Text)

	dates := spansOf(res.Spans, ir.KindDate)
	require.Len(t, dates, 1)
	assert.Equal(t, ir.DateMention{Form: ir.FormRange, Year: 1980, Until: 1984}, *dates[0].Date)
	assert.Equal(t, "between 1980-1984", dates[0].Text)
}

func TestExtract_RangePhrases(t *testing.T) {
	e := New(domain(t, "billion_dollar"))
	tests := []struct {
		q        string
		from, to int
	}{
		{"droughts between 1990 and 1995", 1990, 1995},
		{"droughts from 1990 to 1995", 1990, 1995},
		{"droughts from 1990 until 1995", 1990, 1995},
		{"droughts 1990 through 1995", 1990, 1995},
		{"droughts 1990 to 1995", 1990, 1995},
		{"droughts 1990-1995", 1990, 1995},
	}

	for _, tt := range tests {
		t.Run(tt.q, func(t *testing.T) {
			dates := spansOf(e.Extract(nil, tt.q).Spans, ir.KindDate)
			require.Len(t, dates, 1)
			assert.Equal(t, ir.FormRange, dates[0].Date.Form)
			assert.Equal(t, tt.from, dates[0].Date.Year)
			assert.Equal(t, tt.to, dates[0].Date.Until)
		})
	}
}

func TestExtract_DirectionalAndPrepositions(t *testing.T) {
	e := New(domain(t, "billion_dollar"))
	tests := []struct {
		q    string
		form ir.DateForm
		op   ir.Op
	}{
		{"droughts after 2000", ir.FormDirectional, ir.OpGt},
		{"droughts before 2000", ir.FormDirectional, ir.OpLt},
		{"droughts since 2000", ir.FormDirectional, ir.OpGte},
		{"droughts until 2000", ir.FormDirectional, ir.OpLte},
		{"droughts more than 2000", ir.FormDirectional, ir.OpGt},
		{"droughts during 2000", ir.FormPreposition, ir.OpEq},
		{"droughts from 2000", ir.FormPreposition, ir.OpGte},
		{"droughts 2000", ir.FormBare, ir.OpEq},
	}

	for _, tt := range tests {
		t.Run(tt.q, func(t *testing.T) {
			res := e.Extract(nil, tt.q)
			dates := spansOf(res.Spans, ir.KindDate)
			require.Len(t, dates, 1)
			assert.Equal(t, tt.form, dates[0].Date.Form)
			assert.Equal(t, tt.op, dates[0].Date.Op)
			assert.Empty(t, spansOf(res.Spans, ir.KindThreshold), "a valid year is never a threshold")
		})
	}
}

func TestExtract_YearCoverage(t *testing.T) {
	d := domain(t, "billion_dollar")
	e := New(d)

	for y := d.Time.Min; y <= d.Time.Max; y++ {
		dates := spansOf(e.Extract(nil, fmt.Sprintf("droughts in %d", y)).Spans, ir.KindDate)
		require.Len(t, dates, 1, "year %d", y)
		assert.Equal(t, y, dates[0].Date.Year)
	}

	// Out-of-range years stay DATE candidates for the resolver to drop.
	for _, y := range []int{d.Time.Min - 1, d.Time.Max + 1} {
		dates := spansOf(e.Extract(nil, fmt.Sprintf("droughts in %d", y)).Spans, ir.KindDate)
		require.Len(t, dates, 1, "year %d", y)
		assert.Equal(t, y, dates[0].Date.Year)
	}
}

func TestExtract_YearShapedTokens(t *testing.T) {
	e := New(domain(t, "billion_dollar"))

	tests := []struct {
		name  string
		q     string
		dates int
		th    int
	}{
		{"range past the data", "drought cost between 1975-1979", 1, 0},
		{"not calendar shaped", "droughts in 9999", 0, 0},
		{"out-of-range number after comparison", "drought cost more than 3000", 0, 1},
		{"in-range year after comparison", "droughts after 2000", 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := e.Extract(nil, tt.q)
			assert.Len(t, spansOf(res.Spans, ir.KindDate), tt.dates)
			assert.Len(t, spansOf(res.Spans, ir.KindThreshold), tt.th)
		})
	}
}

func TestExtract_Threshold(t *testing.T) {
	e := New(domain(t, "billion_dollar"))
	res := e.Extract(nil, "Which years had drought cost more than $5 billion?")

	cmps := spansOf(res.Spans, ir.KindComparison)
	require.Len(t, cmps, 1)
	assert.Equal(t, ir.OpGt, cmps[0].Op)

	th := spansOf(res.Spans, ir.KindThreshold)
	require.Len(t, th, 1)
	assert.Equal(t, ir.OpGt, th[0].Op)
	require.NotNil(t, th[0].Number)
	assert.Equal(t, "5000000000", th[0].Number.String())
	assert.True(t, th[0].Scaled)
	assert.Equal(t, "more than $5 billion", th[0].Text)
}

func TestComparisonTable(t *testing.T) {
	e := New(domain(t, "billion_dollar"))
	for phrase, op := range Comparisons {
		t.Run(phrase, func(t *testing.T) {
			th := spansOf(e.Extract(nil, "drought cost "+phrase+" 12").Spans, ir.KindThreshold)
			require.Len(t, th, 1)
			assert.Equal(t, op, th[0].Op)
			assert.Equal(t, "12", th[0].Number.String())
			assert.False(t, th[0].Scaled)
		})
	}
}

func TestParseNumber(t *testing.T) {
	d, ok := ParseNumber("$1,200,000.50")
	require.True(t, ok)
	assert.Equal(t, "1200000.5", d.String())

	_, ok = ParseNumber("1980-1984")
	assert.False(t, ok)
}

func TestExtract_FuzzyMetric(t *testing.T) {
	e := New(domain(t, "billion_dollar"))
	metrics := spansOf(e.Extract(nil, "how many droughtt in 1990").Spans, ir.KindMetric)

	require.Len(t, metrics, 1)
	assert.Equal(t, "Drought", metrics[0].Match)
	assert.False(t, metrics[0].Exact)
	assert.InDelta(t, 0.93, metrics[0].Confidence, 0.01)
}

func TestExtract_ERA5CityAndMonth(t *testing.T) {
	e := New(domain(t, "era5"))
	res := e.Extract(nil, "What was the temperature in Delhi in March 2020?")

	metrics := spansOf(res.Spans, ir.KindMetric)
	require.Len(t, metrics, 1)
	assert.Equal(t, "skin_temperature", metrics[0].Match)

	dates := spansOf(res.Spans, ir.KindDate)
	require.Len(t, dates, 1)
	assert.Equal(t, ir.DateMention{Form: ir.FormPreposition, Year: 2020, Month: 3, Op: ir.OpEq}, *dates[0].Date)

	locs := spansOf(res.Spans, ir.KindLocation)
	require.Len(t, locs, 1)
	assert.Equal(t, "Delhi", locs[0].Text)
	assert.Zero(t, locs[0].Confidence)
	assert.Empty(t, locs[0].Match)
}

func TestExtract_MayNeedsAYear(t *testing.T) {
	e := New(domain(t, "era5"))

	res := e.Extract(nil, "rainfall in May 2019 in Kabul")
	dates := spansOf(res.Spans, ir.KindDate)
	require.Len(t, dates, 1)
	assert.Equal(t, 5, dates[0].Date.Month)

	res = e.Extract(nil, "may rainfall in Kabul")
	assert.Empty(t, spansOf(res.Spans, ir.KindDate))

	res = e.Extract(nil, "rainfall in Kabul in July")
	dates = spansOf(res.Spans, ir.KindDate)
	require.Len(t, dates, 1)
	assert.Equal(t, ir.DateMention{Form: ir.FormMonth, Month: 7}, *dates[0].Date)
}

func TestExtract_MonthsIgnoredForYearlyDomains(t *testing.T) {
	e := New(domain(t, "billion_dollar"))
	dates := spansOf(e.Extract(nil, "droughts in March 1990").Spans, ir.KindDate)

	require.Len(t, dates, 1)
	assert.Zero(t, dates[0].Date.Month)
}

func TestExtract_FEMACodesAndCategories(t *testing.T) {
	e := New(domain(t, "fema"))
	res := e.Extract(nil, "What was the pa total for hurricanes in TX in 2017?")

	metrics := spansOf(res.Spans, ir.KindMetric)
	require.Len(t, metrics, 1)
	assert.Equal(t, "pa_total", metrics[0].Match)

	cats := spansOf(res.Spans, ir.KindCategory)
	require.Len(t, cats, 1)
	assert.Equal(t, "Hurricane", cats[0].Match)

	locs := spansOf(res.Spans, ir.KindLocation)
	require.Len(t, locs, 1, "lowercase 'in' is not Indiana")
	assert.Equal(t, "TX", locs[0].Match)
	assert.True(t, locs[0].Exact)
}

func TestExtract_FEMAStateNames(t *testing.T) {
	e := New(domain(t, "fema"))
	locs := spansOf(e.Extract(nil, "floods in New York and Californa in 2012").Spans, ir.KindLocation)

	require.Len(t, locs, 2)
	assert.Equal(t, "NY", locs[0].Match)
	assert.True(t, locs[0].Exact)
	assert.Equal(t, "CA", locs[1].Match)
	assert.False(t, locs[1].Exact)
}

func TestExtract_EdgarCountries(t *testing.T) {
	e := New(domain(t, "edgar"))
	res := e.Extract(nil, "CO2 emissions of Germany and United States in 2010")

	metrics := spansOf(res.Spans, ir.KindMetric)
	require.Len(t, metrics, 1)
	assert.Equal(t, "co2_emissions", metrics[0].Match)

	var texts []string
	for _, s := range spansOf(res.Spans, ir.KindLocation) {
		texts = append(texts, s.Text)
	}
	assert.Equal(t, []string{"Germany", "United States", "United", "States"}, texts)
}

func TestExtract_EdgarSubstance(t *testing.T) {
	e := New(domain(t, "edgar"))
	res := e.Extract(nil, "HFC-134a emissions of Japan in 2015")

	cats := spansOf(res.Spans, ir.KindCategory)
	require.Len(t, cats, 1)
	assert.Equal(t, "HFC-134a", cats[0].Match)

	locs := spansOf(res.Spans, ir.KindLocation)
	require.Len(t, locs, 1)
	assert.Equal(t, "Japan", locs[0].Text)
}

func TestExtract_Deterministic(t *testing.T) {
	e := New(domain(t, "fema"))
	q := "Compare ihp total for floods in California vs Texas between 2015 and 2018"

	first := e.Extract(nil, q)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, e.Extract(nil, q))
	}
}

func TestResultScore(t *testing.T) {
	bd := New(domain(t, "billion_dollar")).Extract(nil, "How many droughts occurred in 1980?")
	era := New(domain(t, "era5")).Extract(nil, "How many droughts occurred in 1980?")

	assert.Greater(t, bd.Score(), era.Score())
}
