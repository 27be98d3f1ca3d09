package extract

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/roach88/climq/internal/ir"
)

// Comparisons maps comparison phrases to operators.
var Comparisons = map[string]ir.Op{
	"more than":    ir.OpGt,
	"greater than": ir.OpGt,
	"less than":    ir.OpLt,
	"under":        ir.OpLt,
	"at least":     ir.OpGte,
	"at most":      ir.OpLte,
	"over":         ir.OpGt,
	"above":        ir.OpGt,
	"below":        ir.OpLt,
	"fewer than":   ir.OpLt,
}

var magnitudes = map[string]decimal.Decimal{
	"thousand": decimal.NewFromInt(1_000),
	"million":  decimal.NewFromInt(1_000_000),
	"billion":  decimal.NewFromInt(1_000_000_000),
}

// comparisonAt matches a comparison phrase starting at token i.
func comparisonAt(toks []Token, i int) (ir.Op, int, bool) {
	if i+1 < len(toks) {
		if op, ok := Comparisons[toks[i].Fold+" "+toks[i+1].Fold]; ok {
			return op, 2, true
		}
	}
	if i < len(toks) {
		if op, ok := Comparisons[toks[i].Fold]; ok {
			return op, 1, true
		}
	}
	return "", 0, false
}

// comparisonBefore matches a comparison phrase ending right before token i.
func comparisonBefore(toks []Token, i int) (ir.Op, int, bool) {
	if i >= 2 {
		if op, n, ok := comparisonAt(toks, i-2); ok && n == 2 {
			return op, 2, true
		}
	}
	if i >= 1 {
		if op, n, ok := comparisonAt(toks, i-1); ok && n == 1 {
			return op, 1, true
		}
	}
	return "", 0, false
}

// ParseNumber parses a number token, dropping "$" and thousands separators.
func ParseNumber(text string) (decimal.Decimal, bool) {
	s := strings.ReplaceAll(strings.TrimPrefix(text, "$"), ",", "")
	if strings.ContainsAny(s, "-/") {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

// scanComparisons emits COMPARISON spans and, when a number follows, a
// THRESHOLD span carrying the comparison operator. Tokens in used belong
// to dates and are skipped.
func scanComparisons(toks []Token, used []bool) []ir.CandidateSpan {
	var out []ir.CandidateSpan
	for i := 0; i < len(toks); i++ {
		if used[i] {
			continue
		}
		op, n, ok := comparisonAt(toks, i)
		if !ok || (n == 2 && used[i+1]) {
			continue
		}
		out = append(out, ir.CandidateSpan{
			Text:       joinText(toks[i : i+n]),
			Start:      i,
			End:        i + n,
			Kind:       ir.KindComparison,
			Confidence: 1,
			Match:      string(op),
			Exact:      true,
			Op:         op,
		})

		j := i + n
		if j >= len(toks) || used[j] || toks[j].Kind != TokenNumber {
			i = j - 1
			continue
		}
		num, ok := ParseNumber(toks[j].Text)
		if !ok {
			i = j - 1
			continue
		}
		end := j + 1
		scaled := false
		if end < len(toks) {
			if mag, ok := magnitudes[toks[end].Fold]; ok {
				num = num.Mul(mag)
				scaled = true
				end++
			}
		}
		out = append(out, ir.CandidateSpan{
			Text:       joinText(toks[i:end]),
			Start:      i,
			End:        end,
			Kind:       ir.KindThreshold,
			Confidence: 1,
			Match:      num.String(),
			Exact:      true,
			Op:         op,
			Number:     &num,
			Scaled:     scaled,
		})
		i = end - 1
	}
	return out
}

func joinText(toks []Token) string {
	texts := make([]string, len(toks))
	for i, t := range toks {
		texts[i] = t.Text
	}
	return strings.Join(texts, " ")
}
