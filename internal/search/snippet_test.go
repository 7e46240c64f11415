package search

import (
	"strings"
	"testing"
)

func TestSnippet(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", "No content"},
		{"glyphs only", "# *_`> []\"", "No content"},
		{"strips markdown", "# Heading\n\nSome *emphasised* text", "Heading Some emphasised text"},
		{"collapses whitespace", "a\n\n\tb   c", "a b c"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Snippet(tc.in); got != tc.want {
				t.Errorf("Snippet(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestSnippet_CapsAt120(t *testing.T) {
	long := strings.Repeat("word ", 50)
	got := Snippet(long)
	if !strings.HasSuffix(got, "…") {
		t.Errorf("Snippet() = %q, want ellipsis suffix", got)
	}
	if n := len([]rune(strings.TrimSuffix(got, "…"))); n > 120 {
		t.Errorf("snippet body is %d runes, want <= 120", n)
	}
}

func TestSnippet_TrimsTrailingSeparators(t *testing.T) {
	// Build content whose 120th char lands right after a comma.
	content := strings.Repeat("x", 118) + ", and more then some"
	got := Snippet(content)
	body := strings.TrimSuffix(got, "…")
	if strings.HasSuffix(body, ",") || strings.HasSuffix(body, " ") {
		t.Errorf("Snippet() = %q, trailing separator not trimmed", got)
	}
}
