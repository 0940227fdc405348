package curl

import "strings"

type quoteMode int

const (
	quoteNone quoteMode = iota
	quoteSingle
	quoteDouble
)

// Tokenize splits a shell-like command line into arguments.
//
// Outside quotes, whitespace separates tokens, backslash-newline is a line
// continuation and a backslash escapes the following character. Single quotes
// are fully literal. Inside double quotes a backslash escapes the following
// character. Empty tokens are never returned.
func Tokenize(text string) []string {
	var (
		tokens []string
		cur    strings.Builder
		mode   = quoteNone
	)

	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		ch := runes[i]

		switch mode {
		case quoteSingle:
			if ch == '\'' {
				mode = quoteNone
			} else {
				cur.WriteRune(ch)
			}

		case quoteDouble:
			switch {
			case ch == '"':
				mode = quoteNone
			case ch == '\\' && i+1 < len(runes):
				i++
				cur.WriteRune(runes[i])
			default:
				cur.WriteRune(ch)
			}

		default:
			switch {
			case ch == '\'':
				mode = quoteSingle
			case ch == '"':
				mode = quoteDouble
			case ch == '\\':
				if i+1 >= len(runes) {
					// trailing backslash is dropped
					continue
				}
				i++
				if runes[i] != '\n' {
					cur.WriteRune(runes[i])
				}
			case isSpace(ch):
				flush()
			default:
				cur.WriteRune(ch)
			}
		}
	}
	flush()

	return tokens
}

func isSpace(ch rune) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r'
}
