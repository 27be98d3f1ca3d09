// Package textnorm normalizes question text and scores string similarity.
//
// Similarity is the Ratcliff/Obershelp ratio computed by difflib's
// SequenceMatcher over characters, the same measure used to pick close
// matches for aliases, dataset values and place names.
package textnorm

import (
	"slices"
	"strings"
	"unicode"

	"github.com/pmezard/go-difflib/difflib"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold returns the comparison key for s: diacritics removed, Unicode case
// folded, surrounding space trimmed and inner runs of space collapsed.
//
//	Fold("  São  Paulo ") == "sao paulo"
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	folded := cases.Fold().String(stripped)
	return strings.Join(strings.Fields(folded), " ")
}

// Equal reports whether a and b have the same Fold key.
func Equal(a, b string) bool {
	return Fold(a) == Fold(b)
}

// IsUpper reports whether s has at least one letter and no lowercase
// letters. Dataset codes ("TX", "DEU") only match tokens written this way.
func IsUpper(s string) bool {
	hasLetter := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsLetter(r) {
			hasLetter = true
		}
	}
	return hasLetter
}

// Ratio returns the similarity of a and b in [0, 1].
func Ratio(a, b string) float64 {
	return difflib.NewMatcher(chars(a), chars(b)).Ratio()
}

// Match is a scored close match.
type Match struct {
	Value string
	Index int // position in the candidate list
	Score float64
}

// CloseMatches returns up to n candidates whose similarity to word is at
// least cutoff, best first. Candidates with equal scores keep their input
// order. n <= 0 means no limit.
func CloseMatches(word string, candidates []string, n int, cutoff float64) []Match {
	m := difflib.NewMatcher(nil, chars(word))

	var out []Match
	for i, c := range candidates {
		m.SetSeq1(chars(c))
		if m.RealQuickRatio() < cutoff || m.QuickRatio() < cutoff {
			continue
		}
		if score := m.Ratio(); score >= cutoff {
			out = append(out, Match{Value: c, Index: i, Score: score})
		}
	}

	slices.SortStableFunc(out, func(a, b Match) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// BestMatch returns the single best close match, if any.
func BestMatch(word string, candidates []string, cutoff float64) (Match, bool) {
	matches := CloseMatches(word, candidates, 1, cutoff)
	if len(matches) == 0 {
		return Match{}, false
	}
	return matches[0], true
}

func chars(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
