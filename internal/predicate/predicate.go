// Package predicate turns resolved entities into filter predicates over
// registry columns.
//
// Temporal precedence, highest first:
//
//  1. explicit range phrases ("between 1980 and 1984", "1980-1984")
//  2. directional phrases ("after 2000", "until 2010"), AND-ed together
//  3. prepositions that imply an operator ("from 2000")
//  4. plain years, one period each
//
// Columns missing from the registry are dropped and logged.
package predicate

import (
	"cmp"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/roach88/climq/internal/diag"
	"github.com/roach88/climq/internal/ir"
	"github.com/roach88/climq/internal/queryir"
	"github.com/roach88/climq/internal/vocab"
)

// Period is one slice of the time axis.
type Period struct {
	Label string `json:"label"`

	// Filter restricts the time column. Nil for year_columns domains and
	// for questions without dates.
	Filter queryir.Predicate `json:"-"`

	// Column is the year column holding the period's values, set for
	// year_columns domains only.
	Column string `json:"column,omitempty"`
}

// Subgroup is a named subset of a metric group ("all HFCs").
type Subgroup struct {
	Label   string   `json:"label"`
	Column  string   `json:"column"`
	Members []string `json:"members"`
}

// Set is the predicate set of one question.
type Set struct {
	// Common applies to every query of the question.
	Common []queryir.Predicate `json:"-"`

	// Thresholds holds metric-bound predicates keyed by metric key.
	Thresholds map[string][]queryir.Predicate `json:"-"`

	Subgroups []Subgroup `json:"subgroups,omitempty"`

	// Periods is empty when the question names no time.
	Periods []Period `json:"periods,omitempty"`
}

// Empty reports whether the set filters nothing, meaning "return
// everything".
func (s Set) Empty() bool {
	return len(s.Common) == 0 && len(s.Thresholds) == 0 && len(s.Subgroups) == 0 && len(s.Periods) == 0
}

// For returns the combined non-temporal filter for a metric. An empty
// metric key returns the common predicates only.
func (s Set) For(metric string) queryir.Predicate {
	preds := slices.Clone(s.Common)
	if metric != "" {
		preds = append(preds, s.Thresholds[metric]...)
	}
	return queryir.Conjoin(preds...)
}

// Constrains reports whether a common predicate or subgroup already
// restricts column.
func (s Set) Constrains(column string) bool {
	for _, p := range s.Common {
		if slices.Contains(queryir.Fields(p), column) {
			return true
		}
	}
	return slices.ContainsFunc(s.Subgroups, func(g Subgroup) bool { return g.Column == column })
}

// Builder builds predicate sets for one domain.
type Builder struct {
	domain *vocab.Domain
}

// New creates a Builder for d.
func New(d *vocab.Domain) *Builder {
	return &Builder{domain: d}
}

// Build converts resolved entities into a predicate set. Locations are not
// part of the set; see Location.
func (b *Builder) Build(dc *diag.Context, entities []ir.ResolvedEntity) Set {
	var (
		set        Set
		dates      []ir.ResolvedEntity
		metrics    []ir.ResolvedEntity
		thresholds []ir.ResolvedEntity
		categories []ir.ResolvedEntity
	)
	for _, e := range entities {
		switch e.Kind {
		case ir.KindDate:
			dates = append(dates, e)
		case ir.KindMetric:
			metrics = append(metrics, e)
		case ir.KindThreshold:
			thresholds = append(thresholds, e)
		case ir.KindCategory:
			categories = append(categories, e)
		}
	}

	set.Common, set.Subgroups = b.categories(dc, categories)
	set.Thresholds = b.thresholds(dc, metrics, thresholds)
	set.Periods = b.periods(dc, dates)

	dc.Record("predicate", "built predicate set",
		"common", len(set.Common), "thresholds", len(set.Thresholds),
		"subgroups", len(set.Subgroups), "periods", len(set.Periods))
	return set
}

// Location returns the filter selecting one resolved location, or nil when
// the domain's entity column is unknown.
func (b *Builder) Location(dc *diag.Context, e ir.ResolvedEntity) queryir.Predicate {
	if b.domain.Entity == nil || !b.domain.HasColumn(b.domain.Entity.Column) {
		dc.Drop("predicate", "location "+e.Value, "no entity column")
		return nil
	}
	return queryir.Compare{Field: b.domain.Entity.Column, Op: ir.OpEq, Value: ir.String(e.Value)}
}

// categories groups category values by column in first-seen order. One
// value filters with =, several with IN. Values with members become
// subgroups.
func (b *Builder) categories(dc *diag.Context, entities []ir.ResolvedEntity) ([]queryir.Predicate, []Subgroup) {
	var (
		columns []string
		values  = map[string][]ir.Value{}
		groups  []Subgroup
	)
	for _, e := range entities {
		cat, val, ok := b.domain.CategoryValue(e.Value)
		if !ok {
			continue
		}
		if !b.domain.HasColumn(cat.Column) {
			dc.Drop("predicate", "category "+e.Value, "unknown column "+cat.Column)
			continue
		}
		if len(val.Members) > 0 {
			groups = append(groups, Subgroup{Label: val.Value, Column: cat.Column, Members: val.Members})
			continue
		}
		if _, ok := values[cat.Column]; !ok {
			columns = append(columns, cat.Column)
		}
		values[cat.Column] = append(values[cat.Column], ir.String(val.Value))
	}

	var preds []queryir.Predicate
	for _, col := range columns {
		vs := values[col]
		if len(vs) == 1 {
			preds = append(preds, queryir.Compare{Field: col, Op: ir.OpEq, Value: vs[0]})
			continue
		}
		preds = append(preds, queryir.In{Field: col, Values: vs})
	}
	return preds, groups
}

// thresholds binds each threshold to the nearest metric mentioned before
// it, else the first one after it. Money amounts and scaled numbers
// compare against the metric's threshold column, divided by the column
// scale when a magnitude word was given. Other numbers compare against the
// metric's first column.
func (b *Builder) thresholds(dc *diag.Context, metrics, thresholds []ir.ResolvedEntity) map[string][]queryir.Predicate {
	if len(thresholds) == 0 {
		return nil
	}
	out := map[string][]queryir.Predicate{}
	for _, t := range thresholds {
		owner, ok := nearestMetric(metrics, t.Span.Start)
		if !ok {
			dc.Drop("predicate", "threshold "+t.Span.Text, "no metric to compare")
			continue
		}
		m, _ := b.domain.Metric(owner.Value)

		money := t.Span.Scaled || strings.Contains(t.Span.Text, "$")
		col := m.ThresholdColumn
		if (!money || col == "") && len(m.Columns) > 0 {
			col = m.Columns[0]
		}
		c, ok := b.domain.Column(col)
		if col == "" || !ok || !c.Numeric() {
			dc.Drop("predicate", "threshold "+t.Span.Text, "metric "+m.Key+" has no numeric column")
			continue
		}

		v := *t.Span.Number
		if t.Span.Scaled {
			if scale, err := decimal.NewFromString(c.Scale); err == nil && !scale.IsZero() {
				v = v.Div(scale)
			}
		}
		out[m.Key] = append(out[m.Key], queryir.Compare{Field: col, Op: t.Span.Op, Value: ir.NewNumber(v)})
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func nearestMetric(metrics []ir.ResolvedEntity, at int) (ir.ResolvedEntity, bool) {
	var before, after *ir.ResolvedEntity
	for i := range metrics {
		m := &metrics[i]
		if m.Span.Start <= at {
			if before == nil || m.Span.Start >= before.Span.Start {
				before = m
			}
			continue
		}
		if after == nil || cmp.Less(m.Span.Start, after.Span.Start) {
			after = m
		}
	}
	switch {
	case before != nil:
		return *before, true
	case after != nil:
		return *after, true
	default:
		return ir.ResolvedEntity{}, false
	}
}
