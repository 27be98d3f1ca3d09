package vocab

import (
	"strconv"
	"strings"

	"github.com/roach88/climq/internal/ir"
	"github.com/roach88/climq/internal/textnorm"
)

// TimeKind says how a domain stores time.
type TimeKind string

const (
	// TimeYear is an integer year column; one row per year.
	TimeYear TimeKind = "year"
	// TimeDate is a text date column holding ISO dates (YYYY-MM-DD).
	TimeDate TimeKind = "date"
	// TimeYearColumns spreads years across columns named "1970", "1971", ...
	TimeYearColumns TimeKind = "year_columns"
)

// Domain is the vocabulary for one dataset family: its tables, columns,
// metrics with their aliases and units, and the accepted time range.
//
// A Domain is built once at load time and never mutated afterwards.
type Domain struct {
	Name           string     `json:"name"`
	Description    string     `json:"description"`
	Databases      []string   `json:"databases"`
	Tables         []Table    `json:"tables"`
	Time           Time       `json:"time"`
	Entity         *Entity    `json:"entity,omitempty"`
	Metrics        []Metric   `json:"metrics"`
	Categories     []Category `json:"categories"`
	Columns        []Column   `json:"columns"`
	DefaultColumns []string   `json:"default_columns"`
	StopWords      []string   `json:"stop_words"`
	Cutoffs        Cutoffs    `json:"cutoffs"`

	// Require lists entity kinds a question must resolve to be answerable.
	Require []ir.Kind `json:"require"`

	// RequireWithMetric lists kinds that become required once a metric
	// resolves (FEMA metric questions need state, incident type and year).
	RequireWithMetric []ir.Kind `json:"require_with_metric"`

	RowCap int `json:"row_cap"`

	columns      map[string]Column
	metrics      map[string]int
	stop         map[string]bool
	metricTokens map[string]bool
}

// Table is a queryable table in one database.
type Table struct {
	Name     string `json:"name"`
	Database string `json:"database"`
	Family   string `json:"family"`
	Region   string `json:"region"`
}

// ID identifies the table across databases.
func (t Table) ID() string {
	return t.Database + "." + t.Name
}

// Time describes the time dimension of a domain.
type Time struct {
	Column      string   `json:"column"`
	Kind        TimeKind `json:"kind"`
	Min         int      `json:"min"`
	Max         int      `json:"max"`
	Granularity string   `json:"granularity"`
}

// Entity describes the location-like dimension a question filters on.
type Entity struct {
	Column     string `json:"column"`
	CodeColumn string `json:"code_column"`
	// Source is "vocab" when Values is the full list of valid entities and
	// "dataset" when valid entities must be enumerated from the tables.
	Source    string   `json:"source"`
	Codes     bool     `json:"codes"`
	Gazetteer bool     `json:"gazetteer"`
	Regions   []string `json:"regions"`
	Accept    []string `json:"accept"`
	Values    []Value  `json:"values"`
	Tables    []string `json:"tables"`
}

// Value is a vocabulary value with its aliases.
type Value struct {
	Value   string   `json:"value"`
	Aliases []string `json:"aliases"`
}

// Metric is a measurable quantity and the column(s) that hold it.
type Metric struct {
	Key             string            `json:"key"`
	Label           string            `json:"label"`
	Aliases         []string          `json:"aliases"`
	Columns         []string          `json:"columns"`
	Unit            string            `json:"unit"`
	Database        string            `json:"database"`
	Table           string            `json:"table"`
	Family          string            `json:"family"`
	Filter          map[string]string `json:"filter"`
	ThresholdColumn string            `json:"threshold_column"`
	Group           *Group            `json:"group,omitempty"`
}

// Group enumerates the members a metric sums over when no single member
// is named ("all fluorinated gases").
type Group struct {
	Column  string   `json:"column"`
	Members []string `json:"members"`
}

// Category is an enumerated non-metric filter dimension.
type Category struct {
	Name   string          `json:"name"`
	Column string          `json:"column"`
	Metric string          `json:"metric"`
	Values []CategoryValue `json:"values"`
}

// CategoryValue is one allowed category value. A value with Members is a
// named subgroup that filters with IN and sums.
type CategoryValue struct {
	Value   string   `json:"value"`
	Aliases []string `json:"aliases"`
	Members []string `json:"members"`
}

// Column is a typed dataset column.
type Column struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Unit      string `json:"unit"`
	Display   string `json:"display"`
	Precision int    `json:"precision"`
	Scale     string `json:"scale"`
}

// Numeric reports whether the column holds numbers.
func (c Column) Numeric() bool {
	return c.Type == "integer" || c.Type == "real"
}

// Cutoffs are the minimum similarity scores per kind.
type Cutoffs struct {
	Metric   float64 `json:"metric"`
	Location float64 `json:"location"`
	Category float64 `json:"category"`
}

// Alias is an alias string pointing at a canonical key.
type Alias struct {
	Text string // folded alias text
	Key  string // canonical key or value
}

// index builds lookup tables. It runs once after decoding.
func (d *Domain) index() {
	d.columns = make(map[string]Column, len(d.Columns))
	for _, c := range d.Columns {
		d.columns[c.Name] = c
	}
	if d.Time.Kind == TimeYearColumns {
		for y := d.Time.Min; y <= d.Time.Max; y++ {
			name := strconv.Itoa(y)
			if _, ok := d.columns[name]; !ok {
				d.columns[name] = Column{Name: name, Type: "real", Precision: -1, Scale: "1"}
			}
		}
	}

	d.metrics = make(map[string]int, len(d.Metrics))
	d.metricTokens = make(map[string]bool)
	for i, m := range d.Metrics {
		d.metrics[m.Key] = i
		for _, a := range m.Aliases {
			for _, tok := range strings.Fields(textnorm.Fold(a)) {
				d.metricTokens[tok] = true
			}
		}
	}

	d.stop = make(map[string]bool, len(d.StopWords))
	for _, w := range d.StopWords {
		d.stop[textnorm.Fold(w)] = true
	}
}

// Column returns the column with the given name.
func (d *Domain) Column(name string) (Column, bool) {
	c, ok := d.columns[name]
	return c, ok
}

// AllColumns returns the declared columns followed by generated year
// columns.
func (d *Domain) AllColumns() []Column {
	out := append([]Column(nil), d.Columns...)
	if d.Time.Kind != TimeYearColumns {
		return out
	}
	for y := d.Time.Min; y <= d.Time.Max; y++ {
		if c, ok := d.columns[strconv.Itoa(y)]; ok && !d.declared(c.Name) {
			out = append(out, c)
		}
	}
	return out
}

func (d *Domain) declared(name string) bool {
	for _, c := range d.Columns {
		if c.Name == name {
			return true
		}
	}
	return false
}

// HasColumn reports whether name is a known column.
func (d *Domain) HasColumn(name string) bool {
	_, ok := d.columns[name]
	return ok
}

// Metric returns the metric with the given key.
func (d *Domain) Metric(key string) (Metric, bool) {
	i, ok := d.metrics[key]
	if !ok {
		return Metric{}, false
	}
	return d.Metrics[i], true
}

// IsStopWord reports whether the folded token is a stop word.
func (d *Domain) IsStopWord(tok string) bool {
	return d.stop[tok]
}

// IsMetricToken reports whether the folded token appears in a metric alias.
func (d *Domain) IsMetricToken(tok string) bool {
	return d.metricTokens[tok]
}

// MetricAliases lists every metric alias, folded, in declaration order.
// The metric key itself (with underscores as spaces) counts as an alias.
func (d *Domain) MetricAliases() []Alias {
	var out []Alias
	for _, m := range d.Metrics {
		seen := map[string]bool{}
		add := func(s string) {
			f := textnorm.Fold(s)
			if f == "" || seen[f] {
				return
			}
			seen[f] = true
			out = append(out, Alias{Text: f, Key: m.Key})
		}
		add(strings.ReplaceAll(m.Key, "_", " "))
		for _, a := range m.Aliases {
			add(a)
		}
	}
	return out
}

// CategoryAliases lists every category value alias, folded. The value
// itself counts as an alias.
func (d *Domain) CategoryAliases() []Alias {
	var out []Alias
	for _, c := range d.Categories {
		for _, v := range c.Values {
			seen := map[string]bool{}
			for _, a := range append([]string{v.Value}, v.Aliases...) {
				f := textnorm.Fold(a)
				if f == "" || seen[f] {
					continue
				}
				seen[f] = true
				out = append(out, Alias{Text: f, Key: v.Value})
			}
		}
	}
	return out
}

// CategoryValue finds a category value by its canonical value.
func (d *Domain) CategoryValue(value string) (Category, CategoryValue, bool) {
	for _, c := range d.Categories {
		for _, v := range c.Values {
			if v.Value == value {
				return c, v, true
			}
		}
	}
	return Category{}, CategoryValue{}, false
}

// EntityAliases lists vocabulary entity aliases, folded.
func (d *Domain) EntityAliases() []Alias {
	if d.Entity == nil {
		return nil
	}
	var out []Alias
	for _, v := range d.Entity.Values {
		out = append(out, Alias{Text: textnorm.Fold(v.Value), Key: v.Value})
		for _, a := range v.Aliases {
			out = append(out, Alias{Text: textnorm.Fold(a), Key: v.Value})
		}
	}
	return out
}

// EntityTables returns the tables whose entity column should be enumerated.
func (d *Domain) EntityTables() []Table {
	if d.Entity == nil {
		return nil
	}
	if len(d.Entity.Tables) == 0 {
		return d.Tables
	}
	var out []Table
	for _, name := range d.Entity.Tables {
		if t, ok := d.Table(name); ok {
			out = append(out, t)
		}
	}
	return out
}

// Table returns the table with the given ID, or the first table with the
// given name.
func (d *Domain) Table(ref string) (Table, bool) {
	for _, t := range d.Tables {
		if t.ID() == ref || t.Name == ref {
			return t, true
		}
	}
	return Table{}, false
}

// TableFor returns the table a metric is read from when the domain is not
// partitioned by family: the metric's own table, or the first table in the
// metric's database, or the domain's first table.
func (d *Domain) TableFor(m Metric) (Table, bool) {
	if m.Table != "" {
		return d.Table(m.Table)
	}
	for _, t := range d.Tables {
		if m.Database == "" || t.Database == m.Database {
			if m.Family == "" || t.Family == m.Family {
				return t, true
			}
		}
	}
	return Table{}, false
}

// YearInRange reports whether y lies in the domain's valid range.
func (d *Domain) YearInRange(y int) bool {
	return y >= d.Time.Min && y <= d.Time.Max
}

// Monthly reports whether the domain resolves months.
func (d *Domain) Monthly() bool {
	return d.Time.Granularity == "month"
}

// Acceptance is the minimum confidence an entity of kind k needs to be
// promoted to a predicate.
func (d *Domain) Acceptance(k ir.Kind) float64 {
	switch k {
	case ir.KindMetric:
		return d.Cutoffs.Metric
	case ir.KindLocation:
		return d.Cutoffs.Location
	case ir.KindCategory:
		return d.Cutoffs.Category
	default:
		return 1
	}
}

// Required returns the kinds a question must resolve. metric says whether
// a metric resolved.
func (d *Domain) Required(metric bool) []ir.Kind {
	out := append([]ir.Kind(nil), d.Require...)
	if metric {
		for _, k := range d.RequireWithMetric {
			if !containsKind(out, k) {
				out = append(out, k)
			}
		}
	}
	return out
}

func containsKind(kinds []ir.Kind, k ir.Kind) bool {
	for _, x := range kinds {
		if x == k {
			return true
		}
	}
	return false
}
