package extraction

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const fence = "```"

// Sanitize strips markdown code fences, with or without a language tag, and the
// whitespace around them from a model response. Text without fences is returned
// untouched. Sanitize(Sanitize(s)) == Sanitize(s).
func Sanitize(raw string) string {
	s := strings.TrimSpace(raw)
	if !fenced(s) {
		return raw
	}
	for fenced(s) {
		if rest, ok := strings.CutPrefix(s, fence); ok {
			s = dropLanguageTag(rest)
		}
		s = strings.TrimSpace(strings.TrimSuffix(s, fence))
	}
	return s
}

func fenced(s string) bool {
	return strings.HasPrefix(s, fence) || strings.HasSuffix(s, fence)
}

// dropLanguageTag removes an info string such as "json" that directly follows an
// opening fence and is terminated by whitespace.
func dropLanguageTag(s string) string {
	i := strings.IndexFunc(s, func(r rune) bool { return !isTagRune(r) })
	switch {
	case i < 0:
		return ""
	case i > 0:
		if r, _ := utf8.DecodeRuneInString(s[i:]); unicode.IsSpace(r) {
			return s[i:]
		}
		return s
	default:
		return s
	}
}

func isTagRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' || r == '+'
}
