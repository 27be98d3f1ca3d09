package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/roach88/climq/internal/ir"
	"github.com/roach88/climq/internal/vocab"
)

var months = map[string]int{
	"january": 1, "jan": 1,
	"february": 2, "feb": 2,
	"march": 3, "mar": 3,
	"april": 4, "apr": 4,
	"may": 5,
	"june": 6, "jun": 6,
	"july": 7, "jul": 7,
	"august": 8, "aug": 8,
	"september": 9, "sept": 9, "sep": 9,
	"october": 10, "oct": 10,
	"november": 11, "nov": 11,
	"december": 12, "dec": 12,
}

// directional words put a bound on the year that follows them.
var directional = map[string]ir.Op{
	"after":  ir.OpGt,
	"before": ir.OpLt,
	"since":  ir.OpGte,
	"until":  ir.OpLte,
}

// prepositions infer an operator for a bare year.
var prepositions = map[string]ir.Op{
	"in":     ir.OpEq,
	"during": ir.OpEq,
	"for":    ir.OpEq,
	"of":     ir.OpEq,
	"from":   ir.OpGte,
}

// rangeWords join the two ends of an explicit range.
var rangeWords = map[string]bool{"to": true, "until": true, "through": true, "thru": true}

var (
	yearPattern      = regexp.MustCompile(`^\d{4}$`)
	yearRangePattern = regexp.MustCompile(`^(\d{4})-(\d{4})$`)
	monthYearPattern = regexp.MustCompile(`^(\d{1,2})[/-](\d{4})$`)
)

// dateScanner finds DATE spans and records which tokens they cover.
type dateScanner struct {
	domain *vocab.Domain
	toks   []Token
	used   []bool
	spans  []ir.CandidateSpan
}

func scanDates(d *vocab.Domain, toks []Token) ([]ir.CandidateSpan, []bool) {
	s := &dateScanner{domain: d, toks: toks, used: make([]bool, len(toks))}
	for i := 0; i < len(toks); i++ {
		if s.used[i] || toks[i].Kind != TokenNumber {
			continue
		}
		s.scanNumber(i)
	}
	if d.Monthly() {
		s.scanLoneMonths()
	}
	return s.spans, s.used
}

// Calendar bounds for a year-shaped token. Years outside the domain's
// range are still DATE candidates; the resolver drops them.
const (
	minCalendarYear = 1000
	maxCalendarYear = 2999
)

func calendarYear(y int) bool {
	return y >= minCalendarYear && y <= maxCalendarYear
}

// year returns the year held by token i. An out-of-range number after a
// comparison phrase is left to the threshold scanner.
func (s *dateScanner) year(i int) (int, bool) {
	if i < 0 || i >= len(s.toks) || s.used[i] || s.toks[i].Kind != TokenNumber {
		return 0, false
	}
	if !yearPattern.MatchString(s.toks[i].Text) {
		return 0, false
	}
	y, _ := strconv.Atoi(s.toks[i].Text)
	if !calendarYear(y) {
		return 0, false
	}
	if !s.domain.YearInRange(y) {
		if _, _, ok := comparisonBefore(s.toks, i); ok {
			return 0, false
		}
	}
	return y, true
}

func (s *dateScanner) fold(i int) string {
	if i < 0 || i >= len(s.toks) {
		return ""
	}
	return s.toks[i].Fold
}

// month returns the month named by token i. "may" only counts when
// adjacent to a year.
func (s *dateScanner) month(i int, nextToYear bool) (int, bool) {
	if !s.domain.Monthly() || i < 0 || i >= len(s.toks) || s.used[i] {
		return 0, false
	}
	m, ok := months[s.fold(i)]
	if !ok || (m == 5 && !nextToYear) {
		return 0, false
	}
	return m, true
}

func (s *dateScanner) scanNumber(i int) {
	text := s.toks[i].Text

	if m := yearRangePattern.FindStringSubmatch(text); m != nil {
		lo, _ := strconv.Atoi(m[1])
		hi, _ := strconv.Atoi(m[2])
		if calendarYear(lo) && calendarYear(hi) && lo <= hi {
			start := i
			if w := s.fold(i - 1); w == "between" || w == "from" {
				start = i - 1
			}
			s.emit(start, i+1, ir.DateMention{Form: ir.FormRange, Year: lo, Until: hi})
		}
		return
	}

	if m := monthYearPattern.FindStringSubmatch(text); m != nil {
		mon, _ := strconv.Atoi(m[1])
		y, _ := strconv.Atoi(m[2])
		if mon >= 1 && mon <= 12 && calendarYear(y) {
			start, form, op := s.prefix(i)
			s.emit(start, i+1, ir.DateMention{Form: form, Year: y, Month: mon, Op: op})
		}
		return
	}

	y, ok := s.year(i)
	if !ok {
		return
	}

	// Explicit range: between X and Y, from X to Y, X to Y, X through Y.
	if y2, ok := s.year(i + 2); ok && y <= y2 {
		join := s.fold(i + 1)
		prev := s.fold(i - 1)
		if (join == "and" && prev == "between") || rangeWords[join] {
			start := i
			if prev == "between" || prev == "from" {
				start = i - 1
			}
			s.emit(start, i+3, ir.DateMention{Form: ir.FormRange, Year: y, Until: y2})
			return
		}
	}

	// Month next to the year: "March 2020", "2020 March".
	start, end := i, i+1
	mention := ir.DateMention{Year: y}
	if mon, ok := s.month(i-1, true); ok {
		mention.Month = mon
		start = i - 1
	} else if mon, ok := s.month(i+1, true); ok {
		mention.Month = mon
		end = i + 2
	}

	pstart, form, op := s.prefix(start)
	mention.Form, mention.Op = form, op
	s.emit(pstart, end, mention)
}

// prefix inspects the words before token i for a comparison phrase,
// directional word or preposition. It returns the span start including
// those words, the date form and the operator.
func (s *dateScanner) prefix(i int) (int, ir.DateForm, ir.Op) {
	if op, n, ok := comparisonBefore(s.toks, i); ok {
		return i - n, ir.FormDirectional, op
	}
	prev := s.fold(i - 1)
	if op, ok := directional[prev]; ok {
		return i - 1, ir.FormDirectional, op
	}
	if op, ok := prepositions[prev]; ok {
		return i - 1, ir.FormPreposition, op
	}
	return i, ir.FormBare, ir.OpEq
}

// scanLoneMonths emits month names that did not attach to a year.
func (s *dateScanner) scanLoneMonths() {
	for i := range s.toks {
		if mon, ok := s.month(i, false); ok {
			s.emit(i, i+1, ir.DateMention{Form: ir.FormMonth, Month: mon})
		}
	}
}

func (s *dateScanner) emit(start, end int, m ir.DateMention) {
	texts := make([]string, 0, end-start)
	for j := start; j < end; j++ {
		s.used[j] = true
		texts = append(texts, s.toks[j].Text)
	}
	mention := m
	s.spans = append(s.spans, ir.CandidateSpan{
		Text:       strings.Join(texts, " "),
		Start:      start,
		End:        end,
		Kind:       ir.KindDate,
		Confidence: 1,
		Match:      mention.String(),
		Exact:      true,
		Date:       &mention,
	})
}
