// Package align maps the token stream reported by the synthesis backend
// onto spans of the original source text, so the word being spoken can be
// highlighted and clicked.
package align

import (
	"regexp"
	"strings"
)

// Token is one word extracted from the source text, with its byte span.
type Token struct {
	Text  string
	Start int
	End   int
	Clean string // lowercase alphanumeric form used for matching
}

// wordPattern keeps currency amounts, percentages, dotted acronyms and
// hyphen/apostrophe-joined words as single tokens. En and em dashes are not
// in any class, so they separate tokens the way the speech engine treats
// them: as pauses, not words.
var wordPattern = regexp.MustCompile(
	`(?:[A-Za-z]\.){2,}` + // U.S., e.g., Ph.D.
		`|[$€£¥]?\d[\d,]*(?:\.\d+)?%?` + // $1,234.56, 12%, 2024
		`|[A-Za-z0-9]+(?:['’-][A-Za-z0-9]+)*`, // don't, anti-union
)

// Tokenize splits source text into tokens carrying their character spans
// and clean forms.
func Tokenize(source string) []Token {
	spans := wordPattern.FindAllStringIndex(source, -1)
	tokens := make([]Token, 0, len(spans))
	for _, sp := range spans {
		text := source[sp[0]:sp[1]]
		tokens = append(tokens, Token{
			Text:  text,
			Start: sp[0],
			End:   sp[1],
			Clean: cleanForm(text),
		})
	}
	return tokens
}

// cleanForm reduces a token to lowercase alphanumeric characters only.
func cleanForm(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// hasDigit reports whether a clean form contains a numeric character.
func hasDigit(s string) bool {
	for _, r := range s {
		if r >= '0' && r <= '9' {
			return true
		}
	}
	return false
}
