package queryparse

import (
	"reflect"
	"testing"
)

// fakeResolver implements CorpusResolver over a fixed prefix table.
type fakeResolver struct {
	prefixes  map[string]string
	defaultID string
}

func (f *fakeResolver) ResolvePrefix(prefix string) string { return f.prefixes[prefix] }
func (f *fakeResolver) DefaultID() string                  { return f.defaultID }

var testResolver = &fakeResolver{
	prefixes: map[string]string{
		"ITAA1997": "ITAA1997",
		"ITAA1936": "ITAA1936",
		"ITAA97":   "ITAA1997",
	},
	defaultID: "ITAA1997",
}

func TestNormalizeSection(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"6-5", "6-5"},
		{"6.5", "6-5"},
		{"6 5", "6-5"},
		{"83a-10", "83A-10"},
		{"6--5", "6-5"},
		{"-6-5-", "6-5"},
		{"6–5", "6-5"},
		{"", ""},
		{"  ", ""},
	}
	for _, tc := range cases {
		if got := NormalizeSection(tc.in); got != tc.want {
			t.Errorf("NormalizeSection(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestParseFlexibleToken_SectionPrefix(t *testing.T) {
	tok := ParseFlexibleToken("s 6-5 ordinary income", "", testResolver, true)
	if tok == nil {
		t.Fatal("ParseFlexibleToken() = nil, want token")
	}
	if tok.Corpus != "ITAA1997" {
		t.Errorf("Corpus = %q, want %q", tok.Corpus, "ITAA1997")
	}
	if tok.Section != "6-5" {
		t.Errorf("Section = %q, want %q", tok.Section, "6-5")
	}
	if want := []string{"ordinary income"}; !reflect.DeepEqual(tok.Terms, want) {
		t.Errorf("Terms = %v, want %v", tok.Terms, want)
	}
}

func TestParseFlexibleToken_Variants(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		section string
		corpus  string
		terms   []string
	}{
		{"section word", "section 83A-10", "83A-10", "ITAA1997", nil},
		{"sec with dot", "sec. 26AH", "26AH", "ITAA1997", nil},
		{"bare id", "6-5", "6-5", "ITAA1997", nil},
		{"dotted id", "12.5", "12-5", "ITAA1997", nil},
		{"gap form", "6 5", "6-5", "ITAA1997", nil},
		{"corpus prefix", "ITAA1936: 26AH", "26AH", "ITAA1936", nil},
		{"prefix alias", "ITAA97: s 6-5", "6-5", "ITAA1997", nil},
		{"comma terms", "s 6-5 ordinary income, termination", "6-5", "ITAA1997", []string{"ordinary income", "termination"}},
		{"semicolon terms", "6-5 one; two", "6-5", "ITAA1997", []string{"one", "two"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tok := ParseFlexibleToken(tc.in, "", testResolver, true)
			if tok == nil {
				t.Fatalf("ParseFlexibleToken(%q) = nil", tc.in)
			}
			if tok.Section != tc.section {
				t.Errorf("Section = %q, want %q", tok.Section, tc.section)
			}
			if tok.Corpus != tc.corpus {
				t.Errorf("Corpus = %q, want %q", tok.Corpus, tc.corpus)
			}
			if !reflect.DeepEqual(tok.Terms, tc.terms) {
				t.Errorf("Terms = %v, want %v", tok.Terms, tc.terms)
			}
		})
	}
}

func TestParseFlexibleToken_NoMatch(t *testing.T) {
	for _, in := range []string{"", "   ", "ordinary income", "what is income"} {
		if tok := ParseFlexibleToken(in, "", testResolver, true); tok != nil {
			t.Errorf("ParseFlexibleToken(%q) = %+v, want nil", in, tok)
		}
	}
}

func TestParseFlexibleToken_GapDisabled(t *testing.T) {
	tok := ParseFlexibleToken("6 5", "", testResolver, false)
	if tok == nil {
		t.Fatal("ParseFlexibleToken() = nil")
	}
	// Without gap support the bare rule consumes only the leading number.
	if tok.Section != "6" {
		t.Errorf("Section = %q, want %q", tok.Section, "6")
	}
}

func TestParseFlexibleToken_UnknownPrefixNotConsumed(t *testing.T) {
	// An unrecognised corpus prefix is left in place, so the head is no
	// longer section-shaped and parsing fails rather than misattributing
	// the citation to the default corpus.
	if tok := ParseFlexibleToken("XYZ9999: 6-5", "", testResolver, true); tok != nil {
		t.Errorf("ParseFlexibleToken() = %+v, want nil", tok)
	}
}
