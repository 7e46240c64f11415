// Package queryparse converts raw query text into a structured
// interpretation: explicit provision ids, definition ids, residual keywords,
// and — when the query leads with a citation token — its parsed form.
//
// The parser never fails on textual oddities; unrecognised input simply ends
// up in the keywords. Database lookups are the only fallible operations and
// their errors propagate unchanged.
package queryparse

import (
	"context"
	"regexp"
	"strings"

	"github.com/gunba/taxiv/internal/corpus"
	"github.com/gunba/taxiv/pkg/legis"
)

// Interpretation is the structured reading of a query.
type Interpretation struct {
	// Provisions are internal ids of explicitly named provisions, in
	// recognition order, de-duplicated. Exclusions are NOT applied here;
	// the orchestrator filters after reporting.
	Provisions []string `json:"provisions"`

	// Definitions are internal ids of defined terms named in the query.
	Definitions []string `json:"definitions"`

	// Keywords is the residual whitespace-normalised free text.
	Keywords string `json:"keywords"`

	// Parsed is the flexible-token reading when one resolved, else nil.
	Parsed *FlexibleToken `json:"parsed"`
}

var (
	refIDRE = regexp.MustCompile(
		`\b([A-Z][A-Z0-9]{2,}:(?:Act|Chapter|Part|Division|Subdivision|Section|Definition|Guide|Schedule(?::[A-Z0-9]+)?):[^\s,;]+)`)
	sectionShorthandRE = regexp.MustCompile(`(?i)\b(?:s|sect|section)\s*([0-9]+[A-Z]*-[0-9A-Z]+|[0-9]+[A-Z]*)\b`)
	subdivShorthandRE  = regexp.MustCompile(`(?i)\bsubdiv(?:ision)?\s*([0-9]+[A-Z]*-[A-Z])\b`)
	divShorthandRE     = regexp.MustCompile(`(?i)\bdiv(?:ision)?\s*([0-9]+[A-Z]?)\b`)
	partShorthandRE    = regexp.MustCompile(`(?i)\bpart\s*([IVXLCDM]+|[0-9A-Z\-]+)\b`)
	bareLocalRE        = regexp.MustCompile(`\b([0-9]+[A-Za-z]*-[0-9A-Za-z]+)\b`)

	spaceRE = regexp.MustCompile(`\s+`)
	punctRE = regexp.MustCompile(`[^\w\s\-():]`)
)

// Normalize applies the query normalisation rules: ampersands become " and ",
// typographic dashes and quotes are unified, punctuation other than
// '-', '(', ')', ':' is stripped, and whitespace collapses.
func Normalize(text string) string {
	t := strings.NewReplacer(
		"—", "-", "–", "-",
		"’", "'", "“", `"`, "”", `"`,
		"&", " and ",
	).Replace(text)
	t = punctRE.ReplaceAllString(t, " ")
	return strings.TrimSpace(spaceRE.ReplaceAllString(t, " "))
}

// Parser resolves recognised tokens against the store. One instance serves
// all corpora.
type Parser struct {
	store legis.ProvisionReader
	reg   *corpus.Registry
}

// NewParser creates a Parser over store and reg.
func NewParser(store legis.ProvisionReader, reg *corpus.Registry) *Parser {
	return &Parser{store: store, reg: reg}
}

// Parse interprets raw against the active corpus. corpusID may be the
// wildcard, in which case recognition runs against the default corpus (a
// multi-corpus query still carries at most one citation token).
func (p *Parser) Parse(ctx context.Context, corpusID, raw string) (Interpretation, error) {
	interp := Interpretation{Provisions: []string{}, Definitions: []string{}}

	active := corpusID
	if active == corpus.AllCorpora || !p.reg.IsKnown(active) {
		active = p.reg.DefaultID()
	}

	text := Normalize(raw)
	if text == "" {
		return interp, nil
	}

	seen := make(map[string]struct{})
	addProvision := func(id string) {
		if _, dup := seen[id]; !dup {
			seen[id] = struct{}{}
			interp.Provisions = append(interp.Provisions, id)
		}
	}

	// 1) Flexible token. Only consumed when its section resolves; a query
	// that merely starts with a number stays free text.
	meta := p.reg.Get(active)
	allowGaps := meta == nil || meta.SupportsSectionGaps
	if tok := ParseFlexibleToken(text, active, p.reg, allowGaps); tok != nil {
		prov, err := p.lookupAnyKind(ctx, tok.Corpus, tok.Section)
		if err != nil {
			return interp, err
		}
		if prov != nil {
			addProvision(prov.InternalID)
			interp.Parsed = tok
			text = strings.Join(tok.Terms, " ")
		}
	}

	// 2) Explicit ref-ids, looked up verbatim.
	for _, m := range refIDRE.FindAllString(text, -1) {
		prov, err := p.lookupRefID(ctx, m)
		if err != nil {
			return interp, err
		}
		if prov != nil {
			addProvision(prov.InternalID)
			text = strings.Replace(text, m, " ", 1)
		}
	}

	// 3) Structural shorthands.
	type shorthand struct {
		re   *regexp.Regexp
		kind string
	}
	for _, sh := range []shorthand{
		{sectionShorthandRE, ""},
		{subdivShorthandRE, legis.KindSubdivision},
		{divShorthandRE, legis.KindDivision},
		{partShorthandRE, legis.KindPart},
	} {
		for _, m := range sh.re.FindAllStringSubmatch(text, -1) {
			local := NormalizeSection(m[1])
			var (
				prov *legis.Provision
				err  error
			)
			if sh.kind == "" {
				prov, err = p.lookupAnyKind(ctx, active, local)
			} else {
				prov, err = p.store.FindProvisionByRef(ctx, active, sh.kind, local)
			}
			if err != nil {
				return interp, err
			}
			if prov != nil {
				addProvision(prov.InternalID)
				text = strings.Replace(text, m[0], " ", 1)
			}
		}
	}

	// 4) Bare local ids like "83A-10".
	for _, m := range bareLocalRE.FindAllString(text, -1) {
		prov, err := p.store.FindProvisionByLocal(ctx, active, NormalizeSection(m))
		if err != nil {
			return interp, err
		}
		if prov != nil {
			addProvision(prov.InternalID)
			text = strings.Replace(text, m, " ", 1)
		}
	}

	// 5) Definitions: remaining segments matched exactly (case-insensitive)
	// against Definition titles and stripped when they hit.
	defSeen := make(map[string]struct{})
	for _, segment := range strings.FieldsFunc(text, func(r rune) bool {
		return r == '+' || r == ',' || r == ';'
	}) {
		title := strings.TrimSpace(spaceRE.ReplaceAllString(segment, " "))
		if len(title) < 3 {
			continue
		}
		defs, err := p.store.FindDefinitionsByTitle(ctx, active, title)
		if err != nil {
			return interp, err
		}
		for _, d := range defs {
			if _, dup := defSeen[d.InternalID]; !dup {
				defSeen[d.InternalID] = struct{}{}
				interp.Definitions = append(interp.Definitions, d.InternalID)
			}
		}
		if len(defs) > 0 {
			text = strings.Replace(text, segment, " ", 1)
		}
	}

	interp.Keywords = strings.TrimSpace(spaceRE.ReplaceAllString(text, " "))
	return interp, nil
}

// ResolveToken resolves a bare flexible token (as accepted by the detail API)
// to a provision. Returns the parsed token alongside, or (nil, nil, nil) when
// nothing matched.
func (p *Parser) ResolveToken(ctx context.Context, corpusID, text string) (*legis.Provision, *FlexibleToken, error) {
	active := corpusID
	if active == "" || !p.reg.IsKnown(active) {
		active = p.reg.DefaultID()
	}
	meta := p.reg.Get(active)
	allowGaps := meta == nil || meta.SupportsSectionGaps
	tok := ParseFlexibleToken(Normalize(text), active, p.reg, allowGaps)
	if tok == nil {
		return nil, nil, nil
	}
	prov, err := p.lookupAnyKind(ctx, tok.Corpus, tok.Section)
	if err != nil || prov == nil {
		return nil, nil, err
	}
	return prov, tok, nil
}

// lookupAnyKind tries the structural kinds in canonical order for a
// normalised local id.
func (p *Parser) lookupAnyKind(ctx context.Context, corpusID, local string) (*legis.Provision, error) {
	for _, kind := range legis.StructuralKinds {
		prov, err := p.store.FindProvisionByRef(ctx, corpusID, kind, local)
		if err != nil {
			return nil, err
		}
		if prov != nil {
			return prov, nil
		}
	}
	return nil, nil
}

// lookupRefID resolves a verbatim ref-id of any known corpus.
func (p *Parser) lookupRefID(ctx context.Context, refID string) (*legis.Provision, error) {
	return p.store.GetProvision(ctx, legis.InternalID(refID))
}
