package queryparse

import (
	"regexp"
	"strings"
)

// FlexibleToken is the structured form of a user-friendly citation such as
// "s 6-5 ordinary income" or "ITAA1936: 26AH, termination payment".
type FlexibleToken struct {
	// Corpus is the resolved corpus id.
	Corpus string `json:"corpus"`

	// Section is the normalised local id (upper-cased, '-' separated).
	Section string `json:"section"`

	// Terms are the trailing comma/semicolon separated qualifiers.
	Terms []string `json:"terms"`
}

var (
	corpusPrefixRE  = regexp.MustCompile(`^([A-Z][A-Z0-9]{2,}):\s*(.+)$`)
	sectionPrefixRE = regexp.MustCompile(`^(?i:section|sec|s)\.?\s*([0-9]+[0-9A-Za-z]*(?:[.\-][0-9A-Za-z]+)*)`)
	sectionGapRE    = regexp.MustCompile(`^([0-9]+[0-9A-Za-z]*)\s+([0-9A-Za-z]+)`)
	bareSectionRE   = regexp.MustCompile(`^([0-9]+[0-9A-Za-z]*(?:[.\-][0-9A-Za-z]+)*)`)
	dashRepeatRE    = regexp.MustCompile(`-+`)
)

// CorpusResolver resolves flexible-token corpus prefixes. Implemented by
// [github.com/gunba/taxiv/internal/corpus.Registry].
type CorpusResolver interface {
	ResolvePrefix(prefix string) string
	DefaultID() string
}

// SectionGapPolicy reports whether a corpus allows "6 5" to mean "6-5".
type SectionGapPolicy interface {
	SupportsSectionGaps(corpusID string) bool
}

// NormalizeSection canonicalises a local id: dashes unified, '.' and spaces
// become '-', repeats collapsed, result upper-cased. Returns "" when nothing
// survives.
func NormalizeSection(raw string) string {
	v := strings.TrimSpace(raw)
	v = strings.ReplaceAll(v, "–", "-")
	v = strings.ReplaceAll(v, "—", "-")
	v = strings.ReplaceAll(v, ".", "-")
	v = strings.ReplaceAll(v, " ", "-")
	v = dashRepeatRE.ReplaceAllString(v, "-")
	v = strings.Trim(v, "-")
	return strings.ToUpper(v)
}

// ParseFlexibleToken parses text as a flexible citation token. The corpus
// prefix, when present and recognised by resolver, overrides defaultCorpus;
// otherwise defaultCorpus (or the registry default) applies. allowGaps
// controls the "<number> <alnum>" two-part section rule.
//
// Returns nil when no section-shaped head is found; textual oddities never
// produce errors.
func ParseFlexibleToken(text, defaultCorpus string, resolver CorpusResolver, allowGaps bool) *FlexibleToken {
	working := strings.TrimSpace(text)
	if working == "" {
		return nil
	}

	resolved := defaultCorpus
	if resolved == "" {
		resolved = resolver.DefaultID()
	}
	if m := corpusPrefixRE.FindStringSubmatch(working); m != nil {
		if id := resolver.ResolvePrefix(m[1]); id != "" {
			resolved = id
			working = strings.TrimSpace(m[2])
		}
	}

	var sectionPart, rest string
	if m := sectionPrefixRE.FindStringSubmatch(working); m != nil {
		sectionPart = m[1]
		rest = strings.TrimSpace(working[len(m[0]):])
	} else if m := sectionGapRE.FindStringSubmatch(working); allowGaps && m != nil {
		sectionPart = m[1] + "-" + m[2]
		rest = strings.TrimSpace(working[len(m[0]):])
	} else if m := bareSectionRE.FindStringSubmatch(working); m != nil {
		sectionPart = m[1]
		rest = strings.TrimSpace(working[len(m[0]):])
	} else {
		return nil
	}

	section := NormalizeSection(sectionPart)
	if section == "" {
		return nil
	}

	var terms []string
	for _, segment := range strings.FieldsFunc(rest, func(r rune) bool { return r == ',' || r == ';' }) {
		if s := strings.TrimSpace(segment); s != "" {
			terms = append(terms, s)
		}
	}

	return &FlexibleToken{Corpus: resolved, Section: section, Terms: terms}
}
