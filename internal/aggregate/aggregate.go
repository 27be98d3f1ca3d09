// Package aggregate assembles executed plan results into the answer for a
// question: one cell per (entity, metric, period) triple in plan order,
// and the flat list of facts handed to the narrative renderer.
package aggregate

import (
	"slices"

	"github.com/roach88/climq/internal/execute"
	"github.com/roach88/climq/internal/plan"
	"github.com/roach88/climq/internal/vocab"
)

// TotalColumn is the column of the fact a group total contributes.
const TotalColumn = "total"

// Fact is one dataset-verified value.
type Fact struct {
	Entity string `json:"entity,omitempty"`
	Metric string `json:"metric,omitempty"`
	Period string `json:"period,omitempty"`

	// Member names the group member a value belongs to, or the group for
	// a total.
	Member string `json:"member,omitempty"`

	Column  string `json:"column"`
	Value   string `json:"value"`
	Unit    string `json:"unit,omitempty"`
	Display string `json:"display"`

	// Context holds the row's other values as "column=value", for rows
	// that need them to be told apart (FEMA incidents).
	Context []string `json:"context,omitempty"`
}

// Cell is the answer for one triple. A cell without rows is an explicit
// no-data marker.
type Cell struct {
	Triple plan.Triple   `json:"triple"`
	Rows   []execute.Row `json:"rows,omitempty"`
	Totals []execute.Row `json:"totals,omitempty"`
	Facts  []Fact        `json:"facts,omitempty"`
	NoData bool          `json:"no_data"`
	Failed bool          `json:"failed,omitempty"`
}

// Answer is the aggregated result of a question. Facts lists every cell's
// facts in result order.
type Answer struct {
	Cells []Cell `json:"cells"`
	Facts []Fact `json:"facts"`
}

// NoData reports whether no cell produced a row.
func (a Answer) NoData() bool {
	for _, c := range a.Cells {
		if !c.NoData {
			return false
		}
	}
	return true
}

// Aggregator builds answers for one domain.
type Aggregator struct {
	domain *vocab.Domain
}

// New creates an Aggregator for d.
func New(d *vocab.Domain) *Aggregator {
	return &Aggregator{domain: d}
}

// Aggregate merges results into cells keyed by triple, in the order the
// triples first appear. Rows whose measures are all null are skipped. A
// single-valued item keeps its first row only. A group total is merged
// into the cell of its member listing.
func (a *Aggregator) Aggregate(results []execute.Result) Answer {
	var out Answer
	index := map[plan.Triple]int{}
	for _, r := range results {
		i, ok := index[r.Item.Triple]
		if !ok {
			i = len(out.Cells)
			index[r.Item.Triple] = i
			out.Cells = append(out.Cells, Cell{Triple: r.Item.Triple, NoData: true})
		}
		cell := &out.Cells[i]
		if r.Err != nil {
			cell.Failed = true
		}

		rows := slices.DeleteFunc(slices.Clone(r.Rows), blank)
		if r.Item.Single && len(rows) > 1 {
			rows = rows[:1]
		}
		if len(rows) == 0 {
			continue
		}
		cell.NoData = false
		if r.Item.Role == plan.RoleTotal {
			cell.Totals = append(cell.Totals, rows...)
		} else {
			cell.Rows = append(cell.Rows, rows...)
		}
		for _, row := range rows {
			facts := a.facts(r.Item, row)
			cell.Facts = append(cell.Facts, facts...)
			out.Facts = append(out.Facts, facts...)
		}
	}
	return out
}

// blank reports whether a row has measure cells and all of them are null.
func blank(row execute.Row) bool {
	measures := false
	for _, c := range row.Cells {
		if c.Measure {
			if !c.Null {
				return false
			}
			measures = true
		}
	}
	return measures
}

// facts turns the measure values of one row into facts.
func (a *Aggregator) facts(it plan.Item, row execute.Row) []Fact {
	period := it.Triple.Period
	timeCol := ""
	if a.domain != nil && a.domain.Time.Kind != vocab.TimeYearColumns {
		timeCol = a.domain.Time.Column
	}
	if c, ok := row.Get(timeCol); ok && timeCol != "" && !c.Null {
		period = c.Text
	}

	member := ""
	if it.Role == plan.RoleTotal {
		member = it.Group
	} else if g := a.groupColumn(it); g != "" {
		if c, ok := row.Get(g); ok {
			member = c.Text
		}
	}

	var extra []string
	for _, c := range row.Cells {
		if c.Measure || c.Null || c.Column == timeCol || c.Column == a.groupColumn(it) || a.isEntityColumn(c.Column) {
			continue
		}
		extra = append(extra, c.Column+"="+c.Text)
	}

	var out []Fact
	for _, c := range row.Cells {
		if !c.Measure || c.Null {
			continue
		}
		f := Fact{
			Entity:  it.Triple.Entity,
			Metric:  a.metricLabel(it.Triple.Metric),
			Period:  period,
			Member:  member,
			Column:  c.Column,
			Value:   c.Text,
			Unit:    c.Unit,
			Display: c.Display,
			Context: slices.Clone(extra),
		}
		if f.Display == "" {
			f.Display = c.Text
		}
		if it.Role == plan.RoleTotal {
			f.Column = TotalColumn
		}
		out = append(out, f)
	}
	return out
}

func (a *Aggregator) groupColumn(it plan.Item) string {
	if it.Role != plan.RoleMember || a.domain == nil {
		return ""
	}
	if m, ok := a.domain.Metric(it.Triple.Metric); ok && m.Group != nil {
		return m.Group.Column
	}
	return ""
}

func (a *Aggregator) isEntityColumn(col string) bool {
	return a.domain != nil && a.domain.Entity != nil && a.domain.Entity.Column == col
}

func (a *Aggregator) metricLabel(key string) string {
	if a.domain == nil {
		return key
	}
	if m, ok := a.domain.Metric(key); ok && m.Label != "" {
		return m.Label
	}
	return key
}
