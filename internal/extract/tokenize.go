package extract

import (
	"regexp"
	"strings"

	"github.com/roach88/climq/internal/textnorm"
)

// TokenKind classifies a token.
type TokenKind int

const (
	TokenWord TokenKind = iota
	TokenNumber
	TokenComma
)

// Token is one lexical unit of a question.
type Token struct {
	Text string    // as written
	Fold string    // textnorm.Fold(Text)
	Kind TokenKind // word, number or comma
}

// tokenPattern matches, in order of preference: numbers (optional $,
// thousands separators, decimals, -/ compounds such as 1980-1984 or
// 03/2020), words with inner hyphens or apostrophes (HFC-134a, d'Ivoire),
// and commas.
var tokenPattern = regexp.MustCompile(`\$?(?:\d{1,3}(?:,\d{3})+|\d+)(?:\.\d+)?(?:[-/]\d+)*|[\p{L}\p{N}]+(?:[-'][\p{L}\p{N}]+)*|,`)

// Tokenize splits a question into tokens.
func Tokenize(question string) []Token {
	matches := tokenPattern.FindAllString(question, -1)
	toks := make([]Token, 0, len(matches))
	for _, m := range matches {
		kind := TokenWord
		switch {
		case m == ",":
			kind = TokenComma
		case m[0] == '$' || (m[0] >= '0' && m[0] <= '9'):
			kind = TokenNumber
		}
		toks = append(toks, Token{Text: m, Fold: textnorm.Fold(m), Kind: kind})
	}
	return toks
}

// separators split a question into segments. Commas are separators too.
var separators = map[string]bool{"and": true, "vs": true, "versus": true}

// Segments returns the half-open token ranges between separators.
func Segments(toks []Token) [][2]int {
	var out [][2]int
	start := 0
	for i, t := range toks {
		if t.Kind == TokenComma || (t.Kind == TokenWord && separators[t.Fold]) {
			if i > start {
				out = append(out, [2]int{start, i})
			}
			start = i + 1
		}
	}
	if start < len(toks) {
		out = append(out, [2]int{start, len(toks)})
	}
	return out
}

// MaxWindow is the longest candidate window in tokens.
const MaxWindow = 6

// window is a contiguous run of tokens inside one segment.
type window struct {
	start, end int
	text       string // original text joined by single spaces
	fold       string // folded text
	order      int    // generation order, for first-found tie breaks
}

func (w window) overlaps(o window) bool {
	return w.start < o.end && o.start < w.end
}

// windows enumerates every window of up to MaxWindow tokens within each
// segment, by start position and then by length.
func windows(toks []Token) []window {
	var out []window
	for _, seg := range Segments(toks) {
		for i := seg[0]; i < seg[1]; i++ {
			for n := 1; n <= MaxWindow && i+n <= seg[1]; n++ {
				texts := make([]string, 0, n)
				folds := make([]string, 0, n)
				for _, t := range toks[i : i+n] {
					texts = append(texts, t.Text)
					folds = append(folds, t.Fold)
				}
				out = append(out, window{
					start: i,
					end:   i + n,
					text:  strings.Join(texts, " "),
					fold:  strings.Join(folds, " "),
					order: len(out),
				})
			}
		}
	}
	return out
}
