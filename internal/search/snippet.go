package search

import (
	"regexp"
	"strings"
)

// snippetLimit caps result snippets.
const snippetLimit = 120

var (
	markdownGlyphRE = regexp.MustCompile("[#*_`>\\[\\]\"]")
	wsRE            = regexp.MustCompile(`\s+`)
)

// Snippet reduces markdown content to a short plain-text preview: glyphs
// stripped, whitespace collapsed, capped at 120 characters with trailing
// separators trimmed and an ellipsis appended.
func Snippet(contentMD string) string {
	if contentMD == "" {
		return "No content"
	}
	plain := markdownGlyphRE.ReplaceAllString(contentMD, "")
	plain = strings.TrimSpace(wsRE.ReplaceAllString(plain, " "))
	if plain == "" {
		return "No content"
	}
	runes := []rune(plain)
	if len(runes) <= snippetLimit {
		return plain
	}
	return strings.TrimRight(string(runes[:snippetLimit]), ",.;: ") + "…"
}
