// Package extract turns question text into candidate entity spans for one
// domain: metrics, categories, locations, dates, comparisons and
// thresholds. Spans are unvalidated; package resolve checks them against
// the vocabulary and the live dataset.
package extract

import (
	"cmp"
	"slices"

	"github.com/roach88/climq/internal/diag"
	"github.com/roach88/climq/internal/ir"
	"github.com/roach88/climq/internal/textnorm"
	"github.com/roach88/climq/internal/vocab"
)

// Extractor proposes candidate spans for one domain. It is immutable and
// safe for concurrent use.
type Extractor struct {
	domain     *vocab.Domain
	metrics    aliasIndex
	categories aliasIndex
	places     aliasIndex
	codes      map[string]string
}

// Result is the outcome of extracting one question.
type Result struct {
	Tokens []Token
	Spans  []ir.CandidateSpan
}

// New builds an Extractor for d.
func New(d *vocab.Domain) *Extractor {
	e := &Extractor{
		domain:     d,
		metrics:    newAliasIndex(d.MetricAliases()),
		categories: newAliasIndex(d.CategoryAliases()),
		codes:      map[string]string{},
	}
	if d.Entity != nil && d.Entity.Source == "vocab" {
		var names []vocab.Alias
		for _, a := range d.EntityAliases() {
			if d.Entity.Codes && a.Text == textnorm.Fold(a.Key) {
				e.codes[a.Key] = a.Key
				continue
			}
			names = append(names, a)
		}
		e.places = newAliasIndex(names)
	}
	return e
}

// Domain returns the domain the extractor serves.
func (e *Extractor) Domain() *vocab.Domain {
	return e.domain
}

// Extract tokenizes question and returns every candidate span, ordered by
// position.
func (e *Extractor) Extract(dc *diag.Context, question string) Result {
	toks := Tokenize(question)
	blocked := make([]bool, len(toks))

	spans, dateUsed := scanDates(e.domain, toks)
	copy(blocked, dateUsed)
	cmpSpans := scanComparisons(toks, dateUsed)
	for _, s := range cmpSpans {
		mark(blocked, s.Start, s.End)
	}
	spans = append(spans, cmpSpans...)

	wins := windows(toks)
	metrics := e.pick(toks, wins, e.metrics, ir.KindMetric, e.domain.Cutoffs.Metric, blocked)
	categories := e.pick(toks, wins, e.categories, ir.KindCategory, e.domain.Cutoffs.Category, blocked)
	spans = append(spans, metrics...)
	spans = append(spans, categories...)

	covered := slices.Clone(blocked)
	for _, s := range append(slices.Clone(metrics), categories...) {
		mark(covered, s.Start, s.End)
	}

	if ent := e.domain.Entity; ent != nil {
		places := e.pick(toks, wins, e.places, ir.KindLocation, e.domain.Cutoffs.Location, covered)
		places = append(places, e.codeSpans(toks, covered, places)...)
		spans = append(spans, places...)
		for _, s := range places {
			mark(covered, s.Start, s.End)
		}
		if ent.Source == "dataset" || ent.Gazetteer {
			spans = append(spans, e.openLocations(toks, wins, covered)...)
		}
	}

	slices.SortStableFunc(spans, func(a, b ir.CandidateSpan) int {
		if c := cmp.Compare(a.Start, b.Start); c != 0 {
			return c
		}
		if c := cmp.Compare(b.Len(), a.Len()); c != 0 {
			return c
		}
		return cmp.Compare(kindOrder(a.Kind), kindOrder(b.Kind))
	})

	dc.Record("extract", "candidate spans", "tokens", len(toks), "spans", len(spans))
	return Result{Tokens: toks, Spans: spans}
}

// Score rates how strongly a result belongs to its domain: the summed
// confidence of metric and category spans plus exact location hits.
func (r Result) Score() float64 {
	var s float64
	for _, sp := range r.Spans {
		switch sp.Kind {
		case ir.KindMetric, ir.KindCategory:
			s += sp.Confidence
		case ir.KindLocation:
			if sp.Exact {
				s += sp.Confidence
			}
		}
	}
	return s
}

// scored is a window that matched an alias.
type scored struct {
	w     window
	key   string
	score float64
	exact bool
}

// pick scores windows against an alias index and resolves overlaps: the
// longest exact matches first, then fuzzy matches by descending score with
// ties in first-found order.
func (e *Extractor) pick(toks []Token, wins []window, ix aliasIndex, kind ir.Kind, cutoff float64, blocked []bool) []ir.CandidateSpan {
	if len(ix.texts) == 0 {
		return nil
	}
	var exact, fuzzy []scored
	for _, w := range wins {
		if touches(blocked, w) || e.allStop(toks, w) {
			continue
		}
		if key, ok := ix.exact[w.fold]; ok {
			exact = append(exact, scored{w: w, key: key, score: 1, exact: true})
			continue
		}
		if !e.fuzzyEligible(toks, w) {
			continue
		}
		if m, ok := textnorm.BestMatch(w.fold, ix.texts, cutoff); ok {
			fuzzy = append(fuzzy, scored{w: w, key: ix.keys[m.Index], score: m.Score})
		}
	}

	slices.SortStableFunc(exact, func(a, b scored) int {
		if c := cmp.Compare(b.w.end-b.w.start, a.w.end-a.w.start); c != 0 {
			return c
		}
		return cmp.Compare(a.w.order, b.w.order)
	})
	slices.SortStableFunc(fuzzy, func(a, b scored) int {
		if c := cmp.Compare(b.score, a.score); c != 0 {
			return c
		}
		return cmp.Compare(a.w.order, b.w.order)
	})

	var taken []scored
	for _, c := range append(exact, fuzzy...) {
		if slices.ContainsFunc(taken, func(t scored) bool { return t.w.overlaps(c.w) }) {
			continue
		}
		taken = append(taken, c)
	}

	out := make([]ir.CandidateSpan, 0, len(taken))
	for _, t := range taken {
		out = append(out, ir.CandidateSpan{
			Text:       t.w.text,
			Start:      t.w.start,
			End:        t.w.end,
			Kind:       kind,
			Confidence: t.score,
			Match:      t.key,
			Exact:      t.exact,
		})
	}
	return out
}

// codeSpans matches vocabulary codes. Codes only match tokens written in
// upper case, so "IN" is Indiana but "in" is a preposition.
func (e *Extractor) codeSpans(toks []Token, covered []bool, places []ir.CandidateSpan) []ir.CandidateSpan {
	var out []ir.CandidateSpan
	for i, t := range toks {
		if covered[i] || t.Kind != TokenWord || !textnorm.IsUpper(t.Text) {
			continue
		}
		value, ok := e.codes[t.Text]
		if !ok {
			continue
		}
		span := ir.CandidateSpan{Text: t.Text, Start: i, End: i + 1, Kind: ir.KindLocation, Confidence: 1, Match: value, Exact: true}
		if slices.ContainsFunc(places, span.Overlaps) {
			continue
		}
		out = append(out, span)
	}
	return out
}

// openLocations emits clean windows as zero-confidence location candidates
// for dataset validation. A clean window holds only words that are not stop
// words, metric tokens, dates or already matched.
func (e *Extractor) openLocations(toks []Token, wins []window, covered []bool) []ir.CandidateSpan {
	var out []ir.CandidateSpan
	for _, w := range wins {
		if !e.clean(toks, w, covered) {
			continue
		}
		out = append(out, ir.CandidateSpan{
			Text:  w.text,
			Start: w.start,
			End:   w.end,
			Kind:  ir.KindLocation,
		})
	}
	return out
}

func (e *Extractor) clean(toks []Token, w window, covered []bool) bool {
	for i := w.start; i < w.end; i++ {
		t := toks[i]
		if covered[i] || t.Kind != TokenWord || e.domain.IsStopWord(t.Fold) || e.domain.IsMetricToken(t.Fold) {
			return false
		}
	}
	return true
}

func (e *Extractor) allStop(toks []Token, w window) bool {
	for i := w.start; i < w.end; i++ {
		if !e.domain.IsStopWord(toks[i].Fold) {
			return false
		}
	}
	return true
}

// fuzzyEligible rejects windows that start or end with a stop word or
// contain a number.
func (e *Extractor) fuzzyEligible(toks []Token, w window) bool {
	if e.domain.IsStopWord(toks[w.start].Fold) || e.domain.IsStopWord(toks[w.end-1].Fold) {
		return false
	}
	for i := w.start; i < w.end; i++ {
		if toks[i].Kind != TokenWord {
			return false
		}
	}
	return true
}

func touches(blocked []bool, w window) bool {
	for i := w.start; i < w.end; i++ {
		if blocked[i] {
			return true
		}
	}
	return false
}

func mark(flags []bool, start, end int) {
	for i := start; i < end; i++ {
		flags[i] = true
	}
}

func kindOrder(k ir.Kind) int {
	switch k {
	case ir.KindMetric:
		return 0
	case ir.KindCategory:
		return 1
	case ir.KindLocation:
		return 2
	case ir.KindDate:
		return 3
	case ir.KindComparison:
		return 4
	default:
		return 5
	}
}

// aliasIndex supports exact and fuzzy alias lookup.
type aliasIndex struct {
	exact map[string]string
	texts []string
	keys  []string
}

func newAliasIndex(aliases []vocab.Alias) aliasIndex {
	ix := aliasIndex{exact: make(map[string]string, len(aliases))}
	for _, a := range aliases {
		if a.Text == "" {
			continue
		}
		if _, dup := ix.exact[a.Text]; dup {
			continue
		}
		ix.exact[a.Text] = a.Key
		ix.texts = append(ix.texts, a.Text)
		ix.keys = append(ix.keys, a.Key)
	}
	return ix
}
