package resolve

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"strings"

	"github.com/roach88/climq/internal/diag"
	"github.com/roach88/climq/internal/ir"
	"github.com/roach88/climq/internal/textnorm"
	"github.com/roach88/climq/internal/vocab"
)

// datasetValues is the per-question enumeration of entity values.
type datasetValues struct {
	names  []string            // canonical values in first-seen order
	folded map[string]string   // folded value -> canonical value
	codes  map[string]string   // code -> canonical value
	tables map[string][]string // canonical value -> table IDs
}

// resolveLocations runs the tiers over location candidates, longest first
// within a tier. Every candidate gets the exact tier before any candidate is
// tried fuzzily, and the gazetteer comes last. A candidate overlapping an
// accepted location is skipped.
func (r *Resolver) resolveLocations(ctx context.Context, dc *diag.Context, spans []ir.CandidateSpan) ([]ir.ResolvedEntity, []ir.CandidateSpan) {
	if len(spans) == 0 || r.domain.Entity == nil {
		return nil, spans
	}
	slices.SortStableFunc(spans, func(a, b ir.CandidateSpan) int {
		if c := cmp.Compare(b.Len(), a.Len()); c != 0 {
			return c
		}
		return cmp.Compare(a.Start, b.Start)
	})

	var (
		values  *datasetValues
		budget  = r.budget
		out     []ir.ResolvedEntity
		dropped []ir.CandidateSpan
		settled = make([]bool, len(spans))
	)
	fromDataset := r.domain.Entity.Source == "dataset"
	enumerated := func() *datasetValues {
		if values == nil {
			values = r.enumerate(ctx, dc)
		}
		return values
	}
	accepted := func(s ir.CandidateSpan) bool {
		return slices.ContainsFunc(out, func(e ir.ResolvedEntity) bool { return e.Span.Overlaps(s) })
	}
	// pass visits each candidate still open that does not overlap an
	// accepted location.
	pass := func(try func(s ir.CandidateSpan) (ir.ResolvedEntity, bool)) {
		for i, s := range spans {
			if settled[i] {
				continue
			}
			if accepted(s) {
				settled[i] = true
				continue
			}
			if e, ok := try(s); ok {
				out = append(out, e)
				settled[i] = true
			}
		}
	}
	acceptance := r.domain.Acceptance(ir.KindLocation)

	// Tier 1: exact vocabulary alias, dataset value or code.
	pass(func(s ir.CandidateSpan) (ir.ResolvedEntity, bool) {
		if s.Match != "" {
			if !s.Exact {
				return ir.ResolvedEntity{}, false
			}
			return ir.ResolvedEntity{Kind: ir.KindLocation, Value: s.Match, Source: ir.SourceExactVocab, Confidence: s.Confidence, Span: s}, true
		}
		if fromDataset {
			return r.exactDataset(enumerated(), s)
		}
		return ir.ResolvedEntity{}, false
	})

	// Tier 2: fuzzy vocabulary alias or dataset value.
	pass(func(s ir.CandidateSpan) (ir.ResolvedEntity, bool) {
		if s.Match != "" {
			if s.Confidence >= acceptance {
				return ir.ResolvedEntity{Kind: ir.KindLocation, Value: s.Match, Source: ir.SourceFuzzyDataset, Confidence: s.Confidence, Span: s}, true
			}
			return ir.ResolvedEntity{}, false
		}
		if fromDataset {
			return r.fuzzyDataset(enumerated(), s)
		}
		return ir.ResolvedEntity{}, false
	})

	// Tier 3: gazetteer, for candidates the vocabulary never matched.
	if r.gaz != nil && r.domain.Entity.Gazetteer {
		pass(func(s ir.CandidateSpan) (ir.ResolvedEntity, bool) {
			if s.Match != "" || budget == 0 {
				return ir.ResolvedEntity{}, false
			}
			budget--
			return r.geocode(ctx, dc, values, s)
		})
	}

	for i, s := range spans {
		switch {
		case settled[i]:
		case s.Match != "":
			dropped = append(dropped, s)
			dc.Drop("resolve", "location "+s.Text, "below acceptance threshold")
		default:
			dropped = append(dropped, s)
			dc.Logger().Debug("unresolved location candidate", slog.String("text", s.Text))
		}
	}
	return out, dropped
}

// exactDataset matches a candidate's folded text or code against the
// enumerated values.
func (r *Resolver) exactDataset(v *datasetValues, s ir.CandidateSpan) (ir.ResolvedEntity, bool) {
	e := ir.ResolvedEntity{Kind: ir.KindLocation, Span: s, Source: ir.SourceExactDataset, Confidence: 1}
	if name, ok := v.folded[textnorm.Fold(s.Text)]; ok {
		e.Value, e.Tables = name, v.tables[name]
		return e, true
	}
	if r.domain.Entity.Codes && textnorm.IsUpper(s.Text) {
		if name, ok := v.codes[s.Text]; ok {
			e.Value, e.Tables = name, v.tables[name]
			return e, true
		}
	}
	return ir.ResolvedEntity{}, false
}

func (r *Resolver) fuzzyDataset(v *datasetValues, s ir.CandidateSpan) (ir.ResolvedEntity, bool) {
	folded := make([]string, len(v.names))
	for i, n := range v.names {
		folded[i] = textnorm.Fold(n)
	}
	m, ok := textnorm.BestMatch(textnorm.Fold(s.Text), folded, r.domain.Acceptance(ir.KindLocation))
	if !ok {
		return ir.ResolvedEntity{}, false
	}
	name := v.names[m.Index]
	return ir.ResolvedEntity{
		Kind:       ir.KindLocation,
		Value:      name,
		Source:     ir.SourceFuzzyDataset,
		Confidence: m.Score,
		Span:       s,
		Tables:     v.tables[name],
	}, true
}

// geocode runs tier 3. A hit whose name is also a dataset value takes the
// dataset's canonical spelling and tables.
func (r *Resolver) geocode(ctx context.Context, dc *diag.Context, v *datasetValues, s ir.CandidateSpan) (ir.ResolvedEntity, bool) {
	place, err := r.gaz.Lookup(ctx, s.Text, r.domain.Entity.Regions)
	if err != nil {
		dc.Warn("resolve", "gazetteer lookup failed", "text", s.Text, "error", err.Error())
		return ir.ResolvedEntity{}, false
	}
	if place == nil {
		return ir.ResolvedEntity{}, false
	}
	if !acceptPlace(r.domain.Entity, place) {
		dc.Drop("resolve", "location "+s.Text, "gazetteer class "+place.AddressType+" not accepted")
		return ir.ResolvedEntity{}, false
	}

	region := strings.ToUpper(place.CountryCode)
	if len(r.domain.Entity.Regions) > 0 && !slices.Contains(r.domain.Entity.Regions, region) {
		dc.Drop("resolve", "location "+s.Text, "outside regions")
		return ir.ResolvedEntity{}, false
	}

	e := ir.ResolvedEntity{
		Kind:       ir.KindLocation,
		Value:      place.Name,
		Source:     ir.SourceExternalLookup,
		Confidence: 1,
		Span:       s,
		Region:     region,
	}
	if v != nil {
		if name, ok := v.folded[textnorm.Fold(place.Name)]; ok {
			e.Value, e.Tables = name, v.tables[name]
		}
	}
	return e, true
}

func acceptPlace(ent *vocab.Entity, p *ir.Place) bool {
	for _, c := range []string{p.AddressType, p.Type, p.Class} {
		if c != "" && slices.Contains(ent.Accept, c) {
			return true
		}
	}
	return false
}

// enumerate lists entity values once per question across the entity
// tables. Failed tables are logged and skipped.
func (r *Resolver) enumerate(ctx context.Context, dc *diag.Context) *datasetValues {
	v := &datasetValues{
		folded: map[string]string{},
		codes:  map[string]string{},
		tables: map[string][]string{},
	}
	if r.lookup == nil {
		return v
	}
	ent := r.domain.Entity
	cols := []string{ent.Column}
	if ent.CodeColumn != "" {
		cols = append(cols, ent.CodeColumn)
	}

	for _, t := range r.domain.EntityTables() {
		rows, err := r.lookup.Distinct(ctx, t.Database, t.Name, cols...)
		if err != nil {
			dc.Warn("resolve", "dataset enumeration failed", "table", t.ID(), "error", err.Error())
			continue
		}
		for _, row := range rows {
			if len(row) == 0 || row[0] == "" {
				continue
			}
			name := row[0]
			f := textnorm.Fold(name)
			if canonical, ok := v.folded[f]; ok {
				name = canonical
			} else {
				v.folded[f] = name
				v.names = append(v.names, name)
			}
			if !slices.Contains(v.tables[name], t.ID()) {
				v.tables[name] = append(v.tables[name], t.ID())
			}
			if len(row) > 1 && row[1] != "" {
				if _, ok := v.codes[row[1]]; !ok {
					v.codes[row[1]] = name
				}
			}
		}
	}
	dc.Record("resolve", "enumerated dataset values", "values", len(v.names))
	return v
}
