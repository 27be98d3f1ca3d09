package execute

import (
	"strconv"
	"strings"
)

// DecodeText parses flattened tuple text into records. It accepts one
// tuple per line, a bracketed list of tuples, or bare comma-separated
// lines. Fields split on commas outside quotes; quoted fields are
// unquoted, None and NULL become nil, integers and floats become int64
// and float64, and anything else stays a string.
func DecodeText(text string) [][]any {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if !strings.Contains(text, "(") {
		var out [][]any
		for _, line := range strings.Split(text, "\n") {
			if strings.TrimSpace(line) == "" {
				continue
			}
			out = append(out, fields(line))
		}
		return out
	}

	var out [][]any
	var quote rune
	escaped := false
	depth, start := 0, 0
	for i, r := range text {
		switch {
		case quote != 0:
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == quote:
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
		case r == '(':
			if depth == 0 {
				start = i + 1
			}
			depth++
		case r == ')':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				out = append(out, fields(text[start:i]))
			}
		}
	}
	return out
}

// fields splits the inside of one tuple. A trailing comma, as in "(x,)",
// does not add a field.
func fields(s string) []any {
	var raw []string
	var quote rune
	escaped := false
	start := 0
	for i, r := range s {
		switch {
		case quote != 0:
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == quote:
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
		case r == ',':
			raw = append(raw, s[start:i])
			start = i + 1
		}
	}
	last := s[start:]
	if strings.TrimSpace(last) != "" || len(raw) == 0 {
		raw = append(raw, last)
	}

	out := make([]any, len(raw))
	for i, f := range raw {
		out[i] = field(strings.TrimSpace(f))
	}
	return out
}

func field(s string) any {
	if len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0] {
		return unescape(s[1 : len(s)-1])
	}
	switch s {
	case "None", "NULL", "null", "":
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	escaped := false
	for _, r := range s {
		if escaped {
			switch r {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			default:
				b.WriteRune(r)
			}
			escaped = false
			continue
		}
		if r == '\\' {
			escaped = true
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
