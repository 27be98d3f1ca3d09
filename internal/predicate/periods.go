package predicate

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/climq/internal/diag"
	"github.com/roach88/climq/internal/ir"
	"github.com/roach88/climq/internal/queryir"
	"github.com/roach88/climq/internal/vocab"
)

// span is a half-open interval of months, counted as year*12 + month-1.
// A negative bound is open.
type span struct {
	lo, hi int
}

func monthsOf(m ir.DateMention) span {
	if m.Month > 0 {
		start := m.Year*12 + m.Month - 1
		return span{start, start + 1}
	}
	return span{m.Year * 12, (m.Year + 1) * 12}
}

// bound narrows s by one directional mention.
func (s span) bound(m ir.DateMention) span {
	iv := monthsOf(m)
	switch m.Op {
	case ir.OpGt:
		s.lo = max(s.lo, iv.hi)
	case ir.OpGte:
		s.lo = max(s.lo, iv.lo)
	case ir.OpLt:
		s.hi = minOpen(s.hi, iv.lo)
	case ir.OpLte:
		s.hi = minOpen(s.hi, iv.hi)
	case ir.OpEq:
		s.lo, s.hi = max(s.lo, iv.lo), minOpen(s.hi, iv.hi)
	}
	return s
}

func (s span) empty() bool {
	return s.lo >= 0 && s.hi >= 0 && s.lo >= s.hi
}

func minOpen(a, b int) int {
	if a < 0 {
		return b
	}
	return min(a, b)
}

// periods applies temporal precedence to the resolved dates.
func (b *Builder) periods(dc *diag.Context, dates []ir.ResolvedEntity) []Period {
	if len(dates) == 0 {
		return nil
	}
	t := b.domain.Time
	if t.Kind != vocab.TimeYearColumns && !b.domain.HasColumn(t.Column) {
		dc.Drop("predicate", "dates", "unknown time column "+t.Column)
		return nil
	}

	var ranges, directional, inferred, equal, months []ir.DateMention
	for _, e := range dates {
		m := *e.Span.Date
		switch {
		case m.Form == ir.FormRange:
			ranges = append(ranges, m)
		case m.Form == ir.FormDirectional:
			directional = append(directional, m)
		case m.Form == ir.FormMonth:
			months = append(months, m)
		case m.Form == ir.FormPreposition && m.Op != "" && m.Op != ir.OpEq:
			inferred = append(inferred, m)
		default:
			equal = append(equal, m)
		}
	}

	var out []Period
	switch {
	case len(ranges) > 0:
		for _, m := range ranges {
			out = append(out, b.rangePeriods(m)...)
		}
	case len(directional) > 0:
		out = b.boundPeriods(dc, directional)
	case len(inferred) > 0:
		out = b.boundPeriods(dc, inferred)
	default:
		for _, m := range equal {
			out = append(out, b.equalPeriods(m, months)...)
		}
	}

	attached := len(ranges)+len(directional)+len(inferred) == 0 && len(equal) > 0 && b.domain.Monthly()
	if len(months) > 0 && !attached {
		dc.Drop("predicate", "month", "no plain year to attach to")
	}
	return dedupePeriods(out)
}

// equalPeriods handles one plain year. Lone months attach to it in
// monthly domains.
func (b *Builder) equalPeriods(m ir.DateMention, months []ir.DateMention) []Period {
	if m.Month > 0 || len(months) == 0 || !b.domain.Monthly() {
		if !b.domain.Monthly() {
			m.Month = 0
		}
		return b.render([]ir.DateMention{m}, monthsOf(m))
	}
	var out []Period
	for _, lone := range months {
		withMonth := ir.DateMention{Form: m.Form, Year: m.Year, Month: lone.Month, Op: ir.OpEq}
		out = append(out, b.render([]ir.DateMention{withMonth}, monthsOf(withMonth))...)
	}
	return out
}

func (b *Builder) rangePeriods(m ir.DateMention) []Period {
	if b.domain.Time.Kind == vocab.TimeYear {
		col := b.domain.Time.Column
		return []Period{{Label: m.String(), Filter: queryir.Between(col, ir.Int(m.Year), ir.Int(m.Until))}}
	}
	return b.render([]ir.DateMention{m}, span{m.Year * 12, (m.Until + 1) * 12})
}

func (b *Builder) boundPeriods(dc *diag.Context, mentions []ir.DateMention) []Period {
	if !b.domain.Monthly() {
		for i := range mentions {
			mentions[i].Month = 0
		}
	}
	s := span{-1, -1}
	for _, m := range mentions {
		s = s.bound(m)
	}
	if s.empty() {
		dc.Drop("predicate", "dates", "contradictory bounds")
		return nil
	}
	return b.render(mentions, s)
}

// render turns mentions covering s into periods for the domain's time kind.
func (b *Builder) render(mentions []ir.DateMention, s span) []Period {
	t := b.domain.Time
	labels := make([]string, len(mentions))
	for i, m := range mentions {
		labels[i] = m.String()
	}
	label := strings.Join(labels, " ")

	switch t.Kind {
	case vocab.TimeYear:
		var preds []queryir.Predicate
		for _, m := range mentions {
			op := m.Op
			if op == "" {
				op = ir.OpEq
			}
			preds = append(preds, queryir.Compare{Field: t.Column, Op: op, Value: ir.Int(m.Year)})
		}
		return []Period{{Label: label, Filter: queryir.Conjoin(preds...)}}

	case vocab.TimeDate:
		var preds []queryir.Predicate
		if s.lo >= 0 {
			preds = append(preds, queryir.Compare{Field: t.Column, Op: ir.OpGte, Value: ir.String(monthDate(s.lo))})
		}
		if s.hi >= 0 {
			preds = append(preds, queryir.Compare{Field: t.Column, Op: ir.OpLt, Value: ir.String(monthDate(s.hi))})
		}
		return []Period{{Label: label, Filter: queryir.Conjoin(preds...)}}

	case vocab.TimeYearColumns:
		lo, hi := t.Min, t.Max
		if s.lo >= 0 {
			lo = max(lo, ceilDiv(s.lo, 12))
		}
		if s.hi >= 0 {
			hi = min(hi, s.hi/12-1)
		}
		var out []Period
		for y := lo; y <= hi; y++ {
			col := strconv.Itoa(y)
			if b.domain.HasColumn(col) {
				out = append(out, Period{Label: col, Column: col})
			}
		}
		return out
	}
	return nil
}

func monthDate(idx int) string {
	return fmt.Sprintf("%04d-%02d-01", idx/12, idx%12+1)
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

func dedupePeriods(periods []Period) []Period {
	seen := map[string]bool{}
	out := periods[:0:0]
	for _, p := range periods {
		key := p.Label + "\x00" + p.Column
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, p)
	}
	return out
}
