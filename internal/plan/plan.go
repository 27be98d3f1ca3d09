// Package plan builds the query plan of a question: one compiled query per
// (entity, metric, period) combination, each reading a single table.
package plan

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strconv"

	"github.com/roach88/climq/internal/diag"
	"github.com/roach88/climq/internal/ir"
	"github.com/roach88/climq/internal/predicate"
	"github.com/roach88/climq/internal/queryir"
	"github.com/roach88/climq/internal/querysql"
	"github.com/roach88/climq/internal/resolve"
	"github.com/roach88/climq/internal/vocab"
)

// Role says what an item contributes to its cell.
type Role string

const (
	// RolePrimary is the only query of its cell.
	RolePrimary Role = "primary"
	// RoleMember lists the members of a group.
	RoleMember Role = "member"
	// RoleTotal sums the members of a group.
	RoleTotal Role = "total"
)

// Triple is the provenance of a query. Empty fields mean the question did
// not name that axis.
type Triple struct {
	Entity string `json:"entity,omitempty"`
	Metric string `json:"metric,omitempty"`
	Period string `json:"period,omitempty"`
}

// Item is one compiled query with its provenance.
type Item struct {
	Triple Triple `json:"triple"`
	Role   Role   `json:"role"`

	// Group names the metric group or subgroup a member or total item
	// covers.
	Group string `json:"group,omitempty"`

	Query querysql.CompiledQuery `json:"query"`

	// Single marks a located metric query whose first row is the answer
	// for its cell.
	Single bool `json:"single,omitempty"`

	// Measures are the columns holding metric values. Column i of a total
	// item's query sums Measures[i].
	Measures []string `json:"measures,omitempty"`
}

// QueryPlan is the set of compiled queries for one question.
type QueryPlan struct {
	Domain string `json:"domain"`
	Items  []Item `json:"items"`
}

// Empty reports whether no combination resolved.
func (p QueryPlan) Empty() bool {
	return len(p.Items) == 0
}

// Tables lists the distinct tables the plan touches, as database.table.
func (p QueryPlan) Tables() []string {
	var out []string
	for _, it := range p.Items {
		id := it.Query.Database + "." + it.Query.Table
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

// Planner plans questions for one domain.
type Planner struct {
	domain   *vocab.Domain
	compiler *querysql.Compiler
	preds    *predicate.Builder
}

// New creates a Planner for d.
func New(d *vocab.Domain) *Planner {
	return &Planner{domain: d, compiler: querysql.NewCompiler(), preds: predicate.New(d)}
}

// Domain returns the planner's domain.
func (p *Planner) Domain() *vocab.Domain {
	return p.domain
}

// cell is one (entity, metric, period) combination before compilation.
type cell struct {
	location *ir.ResolvedEntity
	metric   *vocab.Metric
	period   predicate.Period
}

func (c cell) triple() Triple {
	var t Triple
	if c.location != nil {
		t.Entity = c.location.Value
	}
	if c.metric != nil {
		t.Metric = c.metric.Key
	}
	t.Period = c.period.Label
	return t
}

// Plan compiles res into a QueryPlan. Combinations that cannot be mapped to
// a table or projection are dropped and logged. A rejected statement
// rejects the whole plan: the returned plan is empty and the error is a
// *querysql.RejectedError.
func (p *Planner) Plan(dc *diag.Context, res resolve.Resolution) (QueryPlan, error) {
	out := QueryPlan{Domain: p.domain.Name}
	if res.Empty() || res.MissingFilters() {
		return out, nil
	}

	set := p.preds.Build(dc, res.Entities)

	locations := res.Of(ir.KindLocation)
	var metrics []vocab.Metric
	for _, e := range res.Of(ir.KindMetric) {
		if m, ok := p.domain.Metric(e.Value); ok {
			metrics = append(metrics, m)
		}
	}
	periods := set.Periods
	if len(periods) == 0 {
		periods = []predicate.Period{{}}
	}

	var cells []cell
	for i := range max(len(locations), 1) {
		var loc *ir.ResolvedEntity
		if len(locations) > 0 {
			loc = &locations[i]
		}
		for j := range max(len(metrics), 1) {
			var m *vocab.Metric
			if len(metrics) > 0 {
				m = &metrics[j]
			}
			for _, per := range periods {
				cells = append(cells, cell{location: loc, metric: m, period: per})
			}
		}
	}

	for _, c := range cells {
		items, err := p.items(dc, set, c)
		if err != nil {
			var re *querysql.RejectedError
			if errors.As(err, &re) {
				dc.Warn("plan", "query rejected", "reason", re.Reason, "statement", re.Statement)
				return QueryPlan{Domain: p.domain.Name}, err
			}
			return QueryPlan{Domain: p.domain.Name}, fmt.Errorf("plan %v: %w", c.triple(), err)
		}
		out.Items = append(out.Items, items...)
	}

	for _, it := range out.Items {
		dc.Record("plan", "compiled query", "role", string(it.Role), "statement", it.Query.Statement)
	}
	return out, nil
}

// items compiles one cell: a primary query, or a member listing and a SUM
// total for group metrics.
func (p *Planner) items(dc *diag.Context, set predicate.Set, c cell) ([]Item, error) {
	table, ok := p.table(c)
	if !ok {
		dc.Drop("plan", fmt.Sprintf("%v", c.triple()), "no table serves the combination")
		return nil, nil
	}

	identity, measures := p.projection(c)
	if len(identity)+len(measures) == 0 {
		dc.Drop("plan", fmt.Sprintf("%v", c.triple()), "nothing to project")
		return nil, nil
	}

	filters := []queryir.Predicate{}
	if c.location != nil {
		filters = append(filters, p.preds.Location(dc, *c.location))
	}
	metricKey := ""
	if c.metric != nil {
		metricKey = c.metric.Key
		filters = append(filters, p.fixedFilters(dc, *c.metric)...)
	}
	filters = append(filters, set.For(metricKey), c.period.Filter)

	sel := queryir.Select{
		Database: table.Database,
		From:     table.Name,
		Columns:  columns(append(slices.Clone(identity), measures...)),
		Limit:    p.domain.RowCap,
	}
	if col := p.timeColumn(); col != "" {
		sel.OrderBy = []queryir.Order{{Column: col}}
	}

	groups := p.groups(set, c)
	if len(groups) == 0 {
		sel.Filter = queryir.Conjoin(filters...)
		q, err := p.compiler.Compile(sel)
		if err != nil {
			return nil, err
		}
		single := c.location != nil && c.metric != nil && len(p.domain.DefaultColumns) == 0
		return []Item{{Triple: c.triple(), Role: RolePrimary, Single: single, Query: q, Measures: measures}}, nil
	}

	var out []Item
	for _, g := range groups {
		in := queryir.In{Field: g.Column, Values: stringValues(g.Members)}
		filter := queryir.Conjoin(append(slices.Clone(filters), in)...)

		members := sel
		members.Columns = columns(append(append(slices.Clone(identity), g.Column), measures...))
		members.Filter = filter
		members.Limit = max(sel.Limit, len(g.Members))
		mq, err := p.compiler.Compile(members)
		if err != nil {
			return nil, err
		}

		total := queryir.Select{Database: table.Database, From: table.Name, Filter: filter}
		for _, m := range measures {
			alias := "total"
			if len(measures) > 1 {
				alias = "total_" + m
			}
			total.Columns = append(total.Columns, queryir.Column{Name: m, Aggregate: queryir.AggregateSum, Alias: alias})
		}
		tq, err := p.compiler.Compile(total)
		if err != nil {
			return nil, err
		}

		out = append(out,
			Item{Triple: c.triple(), Role: RoleMember, Group: g.Label, Query: mq, Measures: measures},
			Item{Triple: c.triple(), Role: RoleTotal, Group: g.Label, Query: tq, Measures: measures},
		)
	}
	return out, nil
}

// groups returns the member sets a cell sums over. A metric group applies
// only when no category already restricts its column.
func (p *Planner) groups(set predicate.Set, c cell) []predicate.Subgroup {
	if c.metric == nil || c.metric.Group == nil {
		return nil
	}
	var out []predicate.Subgroup
	for _, g := range set.Subgroups {
		if g.Column == c.metric.Group.Column {
			out = append(out, g)
		}
	}
	if len(out) > 0 || set.Constrains(c.metric.Group.Column) {
		return out
	}
	return []predicate.Subgroup{{Label: c.metric.Key, Column: c.metric.Group.Column, Members: c.metric.Group.Members}}
}

// table picks the table a cell reads. Partitioned domains pick the table
// of the metric's family that holds the location, by enumerated table or
// by region code.
func (p *Planner) table(c cell) (vocab.Table, bool) {
	if c.metric == nil {
		if len(p.domain.Tables) == 0 {
			return vocab.Table{}, false
		}
		return p.domain.Tables[0], true
	}
	if c.metric.Family == "" || c.location == nil || !p.partitioned() {
		return p.domain.TableFor(*c.metric)
	}
	for _, t := range p.domain.Tables {
		if t.Family != c.metric.Family {
			continue
		}
		if slices.Contains(c.location.Tables, t.ID()) || (c.location.Region != "" && t.Region == c.location.Region) {
			return t, true
		}
	}
	return vocab.Table{}, false
}

func (p *Planner) partitioned() bool {
	return slices.ContainsFunc(p.domain.Tables, func(t vocab.Table) bool { return t.Region != "" })
}

// projection returns identity columns and measure columns for a cell.
func (p *Planner) projection(c cell) ([]string, []string) {
	var identity, measures []string
	add := func(dst *[]string, name string) {
		if name != "" && p.domain.HasColumn(name) && !slices.Contains(identity, name) && !slices.Contains(measures, name) {
			*dst = append(*dst, name)
		}
	}

	switch {
	case c.metric == nil:
		for _, col := range p.domain.DefaultColumns {
			add(&identity, col)
		}
		return identity, nil
	case len(p.domain.DefaultColumns) > 0:
		for _, col := range p.domain.DefaultColumns {
			add(&identity, col)
		}
	default:
		if c.location != nil && p.domain.Entity != nil {
			add(&identity, p.domain.Entity.Column)
		}
		add(&identity, p.timeColumn())
	}

	if p.domain.Time.Kind == vocab.TimeYearColumns {
		if c.period.Column != "" {
			add(&measures, c.period.Column)
		} else {
			add(&measures, strconv.Itoa(p.domain.Time.Max))
		}
		return identity, measures
	}
	for _, col := range c.metric.Columns {
		add(&measures, col)
	}
	return identity, measures
}

// timeColumn is the row time column, empty for year_columns domains.
func (p *Planner) timeColumn() string {
	if p.domain.Time.Kind == vocab.TimeYearColumns || !p.domain.HasColumn(p.domain.Time.Column) {
		return ""
	}
	return p.domain.Time.Column
}

// fixedFilters renders a metric's fixed column filters in column order.
func (p *Planner) fixedFilters(dc *diag.Context, m vocab.Metric) []queryir.Predicate {
	keys := make([]string, 0, len(m.Filter))
	for k := range m.Filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []queryir.Predicate
	for _, k := range keys {
		if !p.domain.HasColumn(k) {
			dc.Drop("plan", "filter "+k, "unknown column")
			continue
		}
		out = append(out, queryir.Compare{Field: k, Op: ir.OpEq, Value: ir.String(m.Filter[k])})
	}
	return out
}

// Introspect compiles the schema query for one table.
func (p *Planner) Introspect(t vocab.Table) (querysql.CompiledQuery, error) {
	return p.compiler.Compile(queryir.Pragma{Database: t.Database, Name: "table_info", Arg: t.Name})
}

func columns(names []string) []queryir.Column {
	out := make([]queryir.Column, len(names))
	for i, n := range names {
		out[i] = queryir.Column{Name: n}
	}
	return out
}

func stringValues(ss []string) []ir.Value {
	out := make([]ir.Value, len(ss))
	for i, s := range ss {
		out[i] = ir.String(s)
	}
	return out
}
