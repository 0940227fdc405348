// Package curl extracts the request URL, headers and cookie from text
// produced by a browser's "Copy as cURL" action.
package curl

import (
	"regexp"
	"strings"
)

var (
	lineContinuation = regexp.MustCompile(`\\\r?\n`)
	httpURL          = regexp.MustCompile(`^https?://`)
)

// Capture is the structured form of a captured request.
type Capture struct {
	URL string
	// Headers maps lower-cased header names to trimmed values. Cookie
	// headers are not included here.
	Headers map[string]string
	// Cookie is empty when no cookie was captured.
	Cookie string
}

// ParseError reports capture text from which no URL could be determined.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return "failed to parse cURL: " + e.Reason
}

// Parse reads a cURL command line. It understands --url, -H/--header and
// -b/--cookie, plus a bare http(s) URL. Everything else is ignored.
// A cookie given with -b/--cookie takes precedence over a Cookie header.
func Parse(text string) (*Capture, error) {
	normalized := lineContinuation.ReplaceAllString(strings.TrimSpace(text), " ")
	tokens := Tokenize(normalized)

	var (
		rawURL           string
		headers          = make(map[string]string)
		cookieFromHeader string
		cookieFromFlag   string
		haveFlagCookie   bool
	)

	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]

		// consume the next token as this flag's argument
		next := func() (string, bool) {
			if i+1 < len(tokens) {
				i++
				return tokens[i], true
			}
			return "", false
		}

		switch tok {
		case "curl":

		case "--url":
			if v, ok := next(); ok {
				rawURL = v
			}

		case "-H", "--header":
			v, ok := next()
			if !ok {
				continue
			}
			name, value, ok := splitHeader(v)
			if !ok {
				continue
			}
			if name == "cookie" {
				cookieFromHeader = value
			} else {
				headers[name] = value
			}

		case "-b", "--cookie":
			if v, ok := next(); ok {
				cookieFromFlag = v
				haveFlagCookie = true
			}

		default:
			if rawURL == "" && !strings.HasPrefix(tok, "-") && httpURL.MatchString(tok) {
				rawURL = tok
			}
		}
	}

	if rawURL == "" {
		return nil, &ParseError{Reason: "missing URL"}
	}

	cookie := cookieFromHeader
	if haveFlagCookie {
		cookie = cookieFromFlag
	}

	return &Capture{
		URL:     rawURL,
		Headers: headers,
		Cookie:  strings.TrimSpace(cookie),
	}, nil
}

// splitHeader splits "Name: value" on the first colon. The name is trimmed
// and lower-cased, the value trimmed. A line without a name is rejected.
func splitHeader(line string) (string, string, bool) {
	idx := strings.IndexByte(line, ':')
	if idx <= 0 {
		return "", "", false
	}
	name := strings.ToLower(strings.TrimSpace(line[:idx]))
	if name == "" {
		return "", "", false
	}
	return name, strings.TrimSpace(line[idx+1:]), true
}
