package querysql

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// RejectedError is returned for a statement that is not a single read-only
// SELECT or introspection PRAGMA. A rejected statement is never executed.
type RejectedError struct {
	Statement string
	Reason    string
}

func (e *RejectedError) Error() string {
	if e.Statement == "" {
		return "query rejected: " + e.Reason
	}
	return fmt.Sprintf("query rejected: %s: %q", e.Reason, e.Statement)
}

// IsRejected reports whether err is a RejectedError.
func IsRejected(err error) bool {
	var re *RejectedError
	return errors.As(err, &re)
}

// Guard checks that statement is a single read-only statement:
//   - the leading verb is SELECT or PRAGMA
//   - no ';' appears outside quotes
//   - a SELECT projects at least one column
//   - a PRAGMA does not assign
func Guard(statement string) error {
	s := strings.TrimSpace(statement)
	if s == "" {
		return &RejectedError{Statement: statement, Reason: "empty statement"}
	}

	verb := strings.ToUpper(firstWord(s))
	if verb != "SELECT" && verb != "PRAGMA" {
		return &RejectedError{Statement: statement, Reason: fmt.Sprintf("leading verb %q is not SELECT or PRAGMA", verb)}
	}

	bare, ok := unquoted(s)
	if !ok {
		return &RejectedError{Statement: statement, Reason: "unterminated quote"}
	}
	if strings.Contains(bare, ";") {
		return &RejectedError{Statement: statement, Reason: "multiple statements"}
	}

	switch verb {
	case "SELECT":
		rest := strings.Fields(strings.ToUpper(bare))[1:]
		if len(rest) > 0 && (rest[0] == "DISTINCT" || rest[0] == "ALL") {
			rest = rest[1:]
		}
		if len(rest) == 0 || rest[0] == "FROM" {
			return &RejectedError{Statement: statement, Reason: "empty projection"}
		}
	case "PRAGMA":
		if strings.Contains(bare, "=") {
			return &RejectedError{Statement: statement, Reason: "pragma assignment"}
		}
	}
	return nil
}

func firstWord(s string) string {
	end := strings.IndexFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	if end < 0 {
		return s
	}
	return s[:end]
}

// unquoted blanks out the contents of single- and double-quoted sections,
// keeping the quote characters. Doubled quotes inside a section toggle
// twice and so stay inside it.
func unquoted(s string) (string, bool) {
	var b strings.Builder
	var quote rune
	for _, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
				b.WriteRune(r)
			} else {
				b.WriteByte(' ')
			}
		case r == '\'' || r == '"':
			quote = r
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String(), quote == 0
}
