package provision_test

import (
	"context"
	"errors"
	"testing"

	"github.com/gunba/taxiv/internal/config"
	"github.com/gunba/taxiv/internal/corpus"
	"github.com/gunba/taxiv/internal/provision"
	"github.com/gunba/taxiv/internal/queryparse"
	"github.com/gunba/taxiv/pkg/legis"
	"github.com/gunba/taxiv/pkg/legis/mock"
)

func newService(store *mock.Store) *provision.Service {
	reg := corpus.NewRegistry([]config.CorpusConfig{{ID: "ITAA1997", Default: true}})
	return provision.NewService(store, queryparse.NewParser(store, reg))
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
		LocalID: "6", Title: "Assessable income", HierarchyPath: "ITAA1997.Division_6",
		Level: 1, ParentInternalID: "ITAA1997_Act_ITAA1997", SiblingOrder: order(1),
	})
	store.AddProvision(legis.Provision{
		RefID: "ITAA1997:Section:6-5", CorpusID: "ITAA1997", Type: legis.KindSection,
		LocalID: "6-5", Title: "Ordinary income",
		ContentMD:     "Your assessable income includes *ordinary income*.",
		HierarchyPath: "ITAA1997.Division_6.Section_6-5", Level: 2,
		ParentInternalID: "ITAA1997_Division_6", SiblingOrder: order(1),
	})
	store.AddProvision(legis.Provision{
		RefID: "ITAA1997:Section:6-10", CorpusID: "ITAA1997", Type: legis.KindSection,
		LocalID: "6-10", Title: "Statutory income", ContentMD: "Also assessable.",
		HierarchyPath: "ITAA1997.Division_6.Section_6-10", Level: 2,
		ParentInternalID: "ITAA1997_Division_6", SiblingOrder: order(2),
	})
	store.AddProvision(legis.Provision{
		RefID: "ITAA1997:Definition:income-year", CorpusID: "ITAA1997", Type: legis.KindDefinition,
		LocalID: "income-year", Title: "income year",
		ContentMD:     "The income year is the financial year.",
		HierarchyPath: "ITAA1997.Definitions.income-year", Level: 2,
	})

	store.AddReference(legis.Reference{
		SourceInternalID: "ITAA1997_Section_6-5",
		TargetRefID:      "ITAA1997:Section:6-10",
		TargetInternalID: "ITAA1997_Section_6-10",
		Snippet:          "see statutory income",
	})
	store.AddReference(legis.Reference{
		SourceInternalID: "ITAA1997_Section_6-10",
		TargetRefID:      "ITAA1997:Section:6-5",
		TargetInternalID: "ITAA1997_Section_6-5",
	})
	store.AddReference(legis.Reference{
		SourceInternalID: "ITAA1997_Definition_income-year",
		TargetRefID:      "ITAA1997:Section:6-10",
		TargetInternalID: "ITAA1997_Section_6-10",
	})
	store.AddTermUsage(legis.DefinedTermUsage{
		SourceInternalID:     "ITAA1997_Section_6-5",
		TermText:             "income year",
		DefinitionInternalID: "ITAA1997_Definition_income-year",
	})
	return store
}

func TestGet_Basics(t *testing.T) {
	svc := newService(seededStore())

	d, err := svc.Get(context.Background(), "ITAA1997_Section_6-5", provision.Options{})
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	if d.RefID != "ITAA1997:Section:6-5" || d.CorpusID != "ITAA1997" || d.LocalID != "6-5" {
		t.Errorf("identity = %s/%s/%s", d.RefID, d.CorpusID, d.LocalID)
	}
	if len(d.ReferencesTo) != 1 || d.ReferencesTo[0].TargetInternalID != "ITAA1997_Section_6-10" {
		t.Errorf("ReferencesTo = %+v, want one edge to 6-10", d.ReferencesTo)
	}
	if d.ReferencesTo[0].TargetTitle != "Statutory income" {
		t.Errorf("TargetTitle = %q, want joined title", d.ReferencesTo[0].TargetTitle)
	}
	if len(d.ReferencedBy) != 1 || d.ReferencedBy[0].SourceInternalID != "ITAA1997_Section_6-10" {
		t.Errorf("ReferencedBy = %+v, want one edge from 6-10", d.ReferencedBy)
	}
	if len(d.DefinedTermsUsed) != 1 || d.DefinedTermsUsed[0].TermText != "income year" {
		t.Errorf("DefinedTermsUsed = %+v", d.DefinedTermsUsed)
	}
	if d.ETag == "" {
		t.Error("ETag empty")
	}
	if d.SizeBytes != len(d.ContentMD) {
		t.Errorf("SizeBytes = %d, want %d", d.SizeBytes, len(d.ContentMD))
	}
	// Optional sections stay empty (not nil) by default.
	if len(d.Breadcrumbs) != 0 || len(d.Children) != 0 || len(d.DefinitionsWithReferences) != 0 {
		t.Errorf("optional sections populated without opts: %+v", d)
	}
}

func TestGet_OptionalSections(t *testing.T) {
	svc := newService(seededStore())

	d, err := svc.Get(context.Background(), "ITAA1997_Division_6", provision.Options{
		IncludeBreadcrumbs: true,
		IncludeChildren:    true,
	})
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	// Breadcrumbs are root-first and include the provision itself.
	if len(d.Breadcrumbs) != 2 {
		t.Fatalf("Breadcrumbs = %+v, want act then division", d.Breadcrumbs)
	}
	if d.Breadcrumbs[0].InternalID != "ITAA1997_Act_ITAA1997" ||
		d.Breadcrumbs[1].InternalID != "ITAA1997_Division_6" {
		t.Errorf("Breadcrumbs order = %+v", d.Breadcrumbs)
	}

	if len(d.Children) != 2 {
		t.Fatalf("Children = %+v, want the two sections", d.Children)
	}
	if d.Children[0].InternalID != "ITAA1997_Section_6-5" {
		t.Errorf("children not in sibling order: %+v", d.Children)
	}
}

func TestGet_DefinitionsWithReferences(t *testing.T) {
	svc := newService(seededStore())

	d, err := svc.Get(context.Background(), "ITAA1997_Section_6-5", provision.Options{
		IncludeDefinitions: true,
	})
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(d.DefinitionsWithReferences) != 1 {
		t.Fatalf("DefinitionsWithReferences = %+v, want one bundle", d.DefinitionsWithReferences)
	}
	bundle := d.DefinitionsWithReferences[0]
	if bundle.InternalID != "ITAA1997_Definition_income-year" {
		t.Errorf("bundle id = %s", bundle.InternalID)
	}
	if len(bundle.TermTexts) != 1 || bundle.TermTexts[0] != "income year" {
		t.Errorf("TermTexts = %v", bundle.TermTexts)
	}
	if len(bundle.ReferencesTo) != 1 || bundle.ReferencesTo[0].TargetInternalID != "ITAA1997_Section_6-10" {
		t.Errorf("bundle references = %+v", bundle.ReferencesTo)
	}
}

func TestGet_ExcludeReferences(t *testing.T) {
	svc := newService(seededStore())

	d, err := svc.Get(context.Background(), "ITAA1997_Section_6-5", provision.Options{
		ExcludeReferences: true,
	})
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(d.ReferencesTo) != 0 || len(d.ReferencedBy) != 0 {
		t.Errorf("references included despite ExcludeReferences: %+v / %+v", d.ReferencesTo, d.ReferencedBy)
	}
}

func TestGet_FlexibleTokenResolution(t *testing.T) {
	svc := newService(seededStore())

	d, err := svc.Get(context.Background(), "s 6-5", provision.Options{})
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if d.InternalID != "ITAA1997_Section_6-5" {
		t.Errorf("InternalID = %s, want section 6-5", d.InternalID)
	}
	if d.Parsed == nil || d.Parsed.Section != "6-5" {
		t.Errorf("Parsed = %+v, want populated token", d.Parsed)
	}
}

func TestGet_NotFound(t *testing.T) {
	svc := newService(seededStore())

	_, err := svc.Get(context.Background(), "ITAA1997_Section_999-999", provision.Options{})
	if !errors.Is(err, legis.ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}
