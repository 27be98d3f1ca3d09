// Package resolve validates candidate spans against the vocabulary, the
// live dataset and an optional gazetteer, producing resolved entities.
//
// Location candidates go through four tiers in order:
//
//  1. exact, case-insensitive, against vocabulary aliases or enumerated
//     dataset values and codes
//  2. fuzzy against enumerated dataset values
//  3. gazetteer lookup restricted to the domain's regions
//  4. dropped and logged
package resolve

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/roach88/climq/internal/diag"
	"github.com/roach88/climq/internal/ir"
	"github.com/roach88/climq/internal/textnorm"
	"github.com/roach88/climq/internal/vocab"
)

// Lookup enumerates distinct dataset values. Each returned row holds one
// value per requested column.
type Lookup interface {
	Distinct(ctx context.Context, database, table string, columns ...string) ([][]string, error)
}

// Gazetteer resolves a place phrase within a set of country codes. A nil
// place with a nil error means no match.
type Gazetteer interface {
	Lookup(ctx context.Context, phrase string, regions []string) (*ir.Place, error)
}

// DefaultGazetteerBudget caps gazetteer calls per question.
const DefaultGazetteerBudget = 3

// Options configures a Resolver.
type Options struct {
	Gazetteer       Gazetteer
	GazetteerBudget int
}

// Resolver resolves spans for one domain.
type Resolver struct {
	domain *vocab.Domain
	lookup Lookup
	gaz    Gazetteer
	budget int
}

// New creates a Resolver. lookup may be nil for domains whose entities are
// fully enumerated in the vocabulary.
func New(d *vocab.Domain, lookup Lookup, opts Options) *Resolver {
	budget := opts.GazetteerBudget
	if budget <= 0 {
		budget = DefaultGazetteerBudget
	}
	return &Resolver{domain: d, lookup: lookup, gaz: opts.Gazetteer, budget: budget}
}

// Resolution is the outcome of resolving one question.
type Resolution struct {
	Entities []ir.ResolvedEntity `json:"entities"`

	// Missing lists required kinds that did not resolve. Non-empty means
	// the question cannot be answered as asked.
	Missing []ir.Kind `json:"missing,omitempty"`

	Dropped []ir.CandidateSpan `json:"dropped,omitempty"`

	// OutOfRange holds the dropped DATE spans naming years outside the
	// domain's valid range.
	OutOfRange []ir.CandidateSpan `json:"out_of_range,omitempty"`
}

// DateOutOfRange reports whether the question named only years the
// domain holds no data for.
func (r Resolution) DateOutOfRange() bool {
	return len(r.OutOfRange) > 0 && !r.Has(ir.KindDate)
}

// Empty reports whether nothing resolved.
func (r Resolution) Empty() bool {
	return len(r.Entities) == 0
}

// MissingFilters reports whether required kinds are missing.
func (r Resolution) MissingFilters() bool {
	return len(r.Missing) > 0
}

// Of returns the entities of kind k in order.
func (r Resolution) Of(k ir.Kind) []ir.ResolvedEntity {
	var out []ir.ResolvedEntity
	for _, e := range r.Entities {
		if e.Kind == k {
			out = append(out, e)
		}
	}
	return out
}

// Has reports whether any entity of kind k resolved.
func (r Resolution) Has(k ir.Kind) bool {
	return slices.ContainsFunc(r.Entities, func(e ir.ResolvedEntity) bool { return e.Kind == k })
}

// Resolve validates spans. Lookup and gazetteer failures degrade to
// "no match" for the affected candidates.
func (r *Resolver) Resolve(ctx context.Context, dc *diag.Context, spans []ir.CandidateSpan) Resolution {
	var res Resolution
	var entities []ir.ResolvedEntity
	var locations []ir.CandidateSpan

	for _, s := range spans {
		if s.Kind == ir.KindLocation {
			locations = append(locations, s)
			continue
		}
		if e, ok := r.resolveFixed(s); ok {
			entities = append(entities, e)
			continue
		}
		res.Dropped = append(res.Dropped, s)
		if s.Kind == ir.KindDate && s.Date != nil && r.outOfRange(*s.Date) {
			res.OutOfRange = append(res.OutOfRange, s)
			dc.Drop("resolve", string(s.Kind)+" "+s.Text,
				fmt.Sprintf("year outside %d-%d", r.domain.Time.Min, r.domain.Time.Max))
			continue
		}
		dc.Drop("resolve", string(s.Kind)+" "+s.Text, "not in vocabulary or below threshold")
	}

	locs, dropped := r.resolveLocations(ctx, dc, locations)
	entities = append(entities, locs...)
	res.Dropped = append(res.Dropped, dropped...)

	slices.SortStableFunc(entities, func(a, b ir.ResolvedEntity) int {
		return cmp.Compare(a.Span.Start, b.Span.Start)
	})
	entities = dedupe(entities)
	entities = r.implyMetric(entities)
	res.Entities = entities

	metric := slices.ContainsFunc(entities, func(e ir.ResolvedEntity) bool { return e.Kind == ir.KindMetric })
	for _, k := range r.domain.Required(metric) {
		if !res.Has(k) {
			res.Missing = append(res.Missing, k)
		}
	}

	dc.Record("resolve", "resolved entities", "entities", len(res.Entities), "dropped", len(res.Dropped), "missing", len(res.Missing))
	return res
}

// resolveFixed handles kinds validated against the registry alone.
func (r *Resolver) resolveFixed(s ir.CandidateSpan) (ir.ResolvedEntity, bool) {
	e := ir.ResolvedEntity{Kind: s.Kind, Source: ir.SourceExactVocab, Confidence: s.Confidence, Span: s}
	if !s.Exact {
		e.Source = ir.SourceFuzzyDataset
	}

	switch s.Kind {
	case ir.KindMetric:
		if _, ok := r.domain.Metric(s.Match); !ok || s.Confidence < r.domain.Acceptance(ir.KindMetric) {
			return e, false
		}
		e.Value = s.Match
	case ir.KindCategory:
		if _, _, ok := r.domain.CategoryValue(s.Match); !ok || s.Confidence < r.domain.Acceptance(ir.KindCategory) {
			return e, false
		}
		e.Value = s.Match
	case ir.KindDate:
		if s.Date == nil || !r.validDate(*s.Date) {
			return e, false
		}
		e.Value = s.Date.String()
	case ir.KindComparison:
		if !s.Op.Valid() || s.Op == ir.OpIn {
			return e, false
		}
		e.Value = string(s.Op)
	case ir.KindThreshold:
		if s.Number == nil || !s.Op.Valid() {
			return e, false
		}
		e.Value = s.Number.String()
	default:
		return e, false
	}
	return e, true
}

func (r *Resolver) validDate(d ir.DateMention) bool {
	switch d.Form {
	case ir.FormMonth:
		return r.domain.Monthly() && d.Month >= 1 && d.Month <= 12
	case ir.FormRange:
		return r.domain.YearInRange(d.Year) && r.domain.YearInRange(d.Until) && d.Year <= d.Until
	default:
		if d.Month != 0 && (d.Month < 1 || d.Month > 12) {
			return false
		}
		return r.domain.YearInRange(d.Year)
	}
}

// outOfRange reports whether a year of d lies outside the domain range.
func (r *Resolver) outOfRange(d ir.DateMention) bool {
	if d.Form == ir.FormMonth {
		return false
	}
	if !r.domain.YearInRange(d.Year) {
		return true
	}
	return d.Form == ir.FormRange && !r.domain.YearInRange(d.Until)
}

// implyMetric adds the metric a resolved category belongs to when no metric
// was named ("HFC-134a emissions" implies fluorinated emissions).
func (r *Resolver) implyMetric(entities []ir.ResolvedEntity) []ir.ResolvedEntity {
	if slices.ContainsFunc(entities, func(e ir.ResolvedEntity) bool { return e.Kind == ir.KindMetric }) {
		return entities
	}
	for _, e := range entities {
		if e.Kind != ir.KindCategory {
			continue
		}
		cat, _, ok := r.domain.CategoryValue(e.Value)
		if !ok || cat.Metric == "" {
			continue
		}
		implied := ir.ResolvedEntity{
			Kind:       ir.KindMetric,
			Value:      cat.Metric,
			Source:     ir.SourceExactVocab,
			Confidence: e.Confidence,
			Span:       e.Span,
		}
		i := slices.IndexFunc(entities, func(x ir.ResolvedEntity) bool { return x.Span.Start >= e.Span.Start })
		return slices.Insert(slices.Clone(entities), i, implied)
	}
	return entities
}

// dedupe keeps the first entity per (kind, value), comparing values
// case-insensitively.
func dedupe(entities []ir.ResolvedEntity) []ir.ResolvedEntity {
	seen := map[string]bool{}
	out := entities[:0:0]
	for _, e := range entities {
		key := string(e.Kind) + "\x00" + textnorm.Fold(e.Value)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, e)
	}
	return out
}
