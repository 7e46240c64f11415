package queryparse_test

import (
	"context"
	"reflect"
	"testing"

	"github.com/gunba/taxiv/internal/config"
	"github.com/gunba/taxiv/internal/corpus"
	"github.com/gunba/taxiv/internal/queryparse"
	"github.com/gunba/taxiv/pkg/legis"
	"github.com/gunba/taxiv/pkg/legis/mock"
)

// ─────────────────────────────────────────────────────────────────────────────
// fixtures
// ─────────────────────────────────────────────────────────────────────────────

func testRegistry() *corpus.Registry {
	return corpus.NewRegistry([]config.CorpusConfig{
		{ID: "ITAA1997", Title: "Income Tax Assessment Act 1997", Default: true},
		{ID: "ITAA1936", Title: "Income Tax Assessment Act 1936"},
	})
}

func seededStore() *mock.Store {
	store := mock.NewStore()
	order := func(n int) *int { return &n }

	store.AddProvision(legis.Provision{
		RefID: "ITAA1997:Act:ITAA1997", CorpusID: "ITAA1997", Type: legis.KindAct,
		LocalID: "ITAA1997", Title: "Income Tax Assessment Act 1997",
		HierarchyPath: "ITAA1997", Level: 0,
	})
	store.AddProvision(legis.Provision{
		RefID: "ITAA1997:Division:6", CorpusID: "ITAA1997", Type: legis.KindDivision,
		LocalID: "6", Title: "Assessable income",
		HierarchyPath: "ITAA1997.Division_6", Level: 1,
		ParentInternalID: "ITAA1997_Act_ITAA1997", SiblingOrder: order(1),
	})
	store.AddProvision(legis.Provision{
		RefID: "ITAA1997:Section:6-5", CorpusID: "ITAA1997", Type: legis.KindSection,
		LocalID: "6-5", Title: "Ordinary income",
		ContentMD:     "Your assessable income includes income according to ordinary concepts.",
		HierarchyPath: "ITAA1997.Division_6.Section_6-5", Level: 2,
		ParentInternalID: "ITAA1997_Division_6", SiblingOrder: order(1),
	})
	store.AddProvision(legis.Provision{
		RefID: "ITAA1997:Subdivision:6-A", CorpusID: "ITAA1997", Type: legis.KindSubdivision,
		LocalID: "6-A", Title: "Assessable income generally",
		HierarchyPath: "ITAA1997.Division_6.Subdivision_6-A", Level: 2,
		ParentInternalID: "ITAA1997_Division_6", SiblingOrder: order(2),
	})
	store.AddProvision(legis.Provision{
		RefID: "ITAA1997:Definition:ordinary-income", CorpusID: "ITAA1997", Type: legis.KindDefinition,
		LocalID: "ordinary-income", Title: "ordinary income",
		ContentMD:     "Income according to ordinary concepts.",
		HierarchyPath: "ITAA1997.Definitions.ordinary-income", Level: 2,
	})
	store.AddProvision(legis.Provision{
		RefID: "ITAA1936:Section:26AH", CorpusID: "ITAA1936", Type: legis.KindSection,
		LocalID: "26AH", Title: "Bonuses on certain policies",
		HierarchyPath: "ITAA1936.Section_26AH", Level: 1,
	})
	return store
}

// ─────────────────────────────────────────────────────────────────────────────
// tests
// ─────────────────────────────────────────────────────────────────────────────

func TestParse_FlexibleToken(t *testing.T) {
	p := queryparse.NewParser(seededStore(), testRegistry())

	interp, err := p.Parse(context.Background(), "ITAA1997", "s 6-5 ordinary income")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if want := []string{"ITAA1997_Section_6-5"}; !reflect.DeepEqual(interp.Provisions, want) {
		t.Errorf("Provisions = %v, want %v", interp.Provisions, want)
	}
	if interp.Parsed == nil {
		t.Fatal("Parsed = nil, want flexible token")
	}
	if interp.Parsed.Corpus != "ITAA1997" || interp.Parsed.Section != "6-5" {
		t.Errorf("Parsed = %+v, want corpus ITAA1997 section 6-5", interp.Parsed)
	}
	if want := []string{"ordinary income"}; !reflect.DeepEqual(interp.Parsed.Terms, want) {
		t.Errorf("Parsed.Terms = %v, want %v", interp.Parsed.Terms, want)
	}
	// "ordinary income" is also a Definition title, so it resolves and is
	// stripped from the keywords.
	if want := []string{"ITAA1997_Definition_ordinary-income"}; !reflect.DeepEqual(interp.Definitions, want) {
		t.Errorf("Definitions = %v, want %v", interp.Definitions, want)
	}
	if interp.Keywords != "" {
		t.Errorf("Keywords = %q, want empty", interp.Keywords)
	}
}

func TestParse_ExplicitRefID(t *testing.T) {
	p := queryparse.NewParser(seededStore(), testRegistry())

	interp, err := p.Parse(context.Background(), "ITAA1997", "compare with ITAA1936:Section:26AH please")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if want := []string{"ITAA1936_Section_26AH"}; !reflect.DeepEqual(interp.Provisions, want) {
		t.Errorf("Provisions = %v, want %v", interp.Provisions, want)
	}
	if interp.Keywords != "compare with please" {
		t.Errorf("Keywords = %q, want %q", interp.Keywords, "compare with please")
	}
}

func TestParse_StructuralShorthands(t *testing.T) {
	p := queryparse.NewParser(seededStore(), testRegistry())

	cases := []struct {
		query string
		want  string
	}{
		{"division 6 overview", "ITAA1997_Division_6"},
		{"subdivision 6-A rules", "ITAA1997_Subdivision_6-A"},
	}
	for _, tc := range cases {
		interp, err := p.Parse(context.Background(), "ITAA1997", tc.query)
		if err != nil {
			t.Fatalf("Parse(%q) error = %v", tc.query, err)
		}
		if len(interp.Provisions) != 1 || interp.Provisions[0] != tc.want {
			t.Errorf("Parse(%q).Provisions = %v, want [%s]", tc.query, interp.Provisions, tc.want)
		}
	}
}

func TestParse_BareLocalID(t *testing.T) {
	p := queryparse.NewParser(seededStore(), testRegistry())

	interp, err := p.Parse(context.Background(), "ITAA1997", "meaning of 6-5 here")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(interp.Provisions) != 1 || interp.Provisions[0] != "ITAA1997_Section_6-5" {
		t.Errorf("Provisions = %v, want [ITAA1997_Section_6-5]", interp.Provisions)
	}
	if interp.Keywords != "meaning of here" {
		t.Errorf("Keywords = %q, want %q", interp.Keywords, "meaning of here")
	}
}

func TestParse_FreeTextOnly(t *testing.T) {
	p := queryparse.NewParser(seededStore(), testRegistry())

	interp, err := p.Parse(context.Background(), "ITAA1997", "termination payment rules")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(interp.Provisions) != 0 || len(interp.Definitions) != 0 {
		t.Errorf("expected no structured matches, got %v / %v", interp.Provisions, interp.Definitions)
	}
	if interp.Keywords != "termination payment rules" {
		t.Errorf("Keywords = %q, want %q", interp.Keywords, "termination payment rules")
	}
	if interp.Parsed != nil {
		t.Errorf("Parsed = %+v, want nil", interp.Parsed)
	}
}

func TestParse_EmptyQuery(t *testing.T) {
	p := queryparse.NewParser(seededStore(), testRegistry())

	interp, err := p.Parse(context.Background(), "ITAA1997", "   ")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(interp.Provisions) != 0 || len(interp.Definitions) != 0 || interp.Keywords != "" {
		t.Errorf("empty query produced %+v", interp)
	}
}

func TestParse_RoundTripFromRefID(t *testing.T) {
	// Re-parsing a query built from a canonical ref-id recovers the
	// original provision.
	p := queryparse.NewParser(seededStore(), testRegistry())

	interp, err := p.Parse(context.Background(), "ITAA1997", "ITAA1997:Section:6-5")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(interp.Provisions) != 1 || interp.Provisions[0] != legis.InternalID("ITAA1997:Section:6-5") {
		t.Errorf("Provisions = %v, want the internal id of the ref-id", interp.Provisions)
	}
}

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"a  &  b", "a and b"},
		{"what's “this”?", "what s this"},
		{"s 6-5 (cap) x: y", "s 6-5 (cap) x: y"},
		{"  spaced   out  ", "spaced out"},
	}
	for _, tc := range cases {
		if got := queryparse.Normalize(tc.in); got != tc.want {
			t.Errorf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestResolveToken(t *testing.T) {
	p := queryparse.NewParser(seededStore(), testRegistry())

	prov, tok, err := p.ResolveToken(context.Background(), "", "s 6-5")
	if err != nil {
		t.Fatalf("ResolveToken() error = %v", err)
	}
	if prov == nil || prov.InternalID != "ITAA1997_Section_6-5" {
		t.Fatalf("ResolveToken() provision = %+v, want section 6-5", prov)
	}
	if tok == nil || tok.Section != "6-5" {
		t.Errorf("ResolveToken() token = %+v, want section 6-5", tok)
	}

	prov, tok, err = p.ResolveToken(context.Background(), "", "no such thing")
	if err != nil {
		t.Fatalf("ResolveToken() error = %v", err)
	}
	if prov != nil || tok != nil {
		t.Errorf("ResolveToken() = %+v, %+v, want nil, nil", prov, tok)
	}
}
