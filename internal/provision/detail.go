// Package provision assembles the detailed view of a single provision:
// content, breadcrumbs, children, outbound and inbound references, and the
// definitions its text relies on, each bundled with its own references.
package provision

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"github.com/gunba/taxiv/internal/queryparse"
	"github.com/gunba/taxiv/pkg/legis"
)

// Options select the optional sections of a detail view. The zero value
// includes references only, matching the API default.
type Options struct {
	IncludeBreadcrumbs bool
	IncludeChildren    bool
	IncludeDefinitions bool
	ExcludeReferences  bool

	// Fields is echoed back verbatim in the detail. The service always
	// resolves the full row, and neither it nor the MCP tool filters the
	// rendered fields by this list.
	Fields []string
}

// TermUsage is one defined term the provision uses.
type TermUsage struct {
	TermText             string `json:"term_text"`
	DefinitionInternalID string `json:"definition_internal_id,omitempty"`
}

// DefinitionBundle is a definition used by the provision together with the
// terms that point at it and its own outbound references.
type DefinitionBundle struct {
	InternalID   string                   `json:"internal_id"`
	RefID        string                   `json:"ref_id"`
	Title        string                   `json:"title"`
	ContentMD    string                   `json:"content_md"`
	TermTexts    []string                 `json:"term_texts"`
	ReferencesTo []legis.OutboundReference `json:"references_to"`
}

// Detail is the full provision view.
type Detail struct {
	InternalID       string  `json:"internal_id"`
	RefID            string  `json:"ref_id"`
	CorpusID         string  `json:"corpus_id"`
	Type             string  `json:"type"`
	LocalID          string  `json:"local_id"`
	Title            string  `json:"title"`
	ContentMD        string  `json:"content_md"`
	Level            int     `json:"level"`
	HierarchyPath    string  `json:"hierarchy_path"`
	ParentInternalID string  `json:"parent_internal_id,omitempty"`
	SiblingOrder     *int    `json:"sibling_order,omitempty"`

	ReferencesTo              []legis.OutboundReference `json:"references_to"`
	ReferencedBy              []legis.InboundReference  `json:"referenced_by"`
	DefinedTermsUsed          []TermUsage               `json:"defined_terms_used"`
	DefinitionsWithReferences []DefinitionBundle        `json:"definitions_with_references"`
	Breadcrumbs               []legis.BreadcrumbItem    `json:"breadcrumbs"`
	Children                  []legis.HierarchyNode     `json:"children"`

	ETag         string    `json:"etag"`
	LastModified time.Time `json:"last_modified"`
	SizeBytes    int       `json:"size_bytes"`

	Fields []string                  `json:"fields,omitempty"`
	Parsed *queryparse.FlexibleToken `json:"parsed,omitempty"`
}

// Deps is the store slice the detail service reads from.
type Deps interface {
	legis.ProvisionReader
	legis.ReferenceReader
	TermsUsedBy(ctx context.Context, ids []string) ([]legis.DefinedTermUsage, error)
	GraphVersionInfo(ctx context.Context) (legis.GraphVersion, error)
}

// Service resolves detail views.
type Service struct {
	store  Deps
	parser *queryparse.Parser
}

// NewService creates a Service. parser backs flexible-token resolution and
// may be shared with the search path.
func NewService(store Deps, parser *queryparse.Parser) *Service {
	return &Service{store: store, parser: parser}
}

// Get resolves idOrToken — an internal id, or any flexible citation token
// the query parser accepts — and assembles the detail view. Returns
// [legis.ErrNotFound] when nothing resolves.
func (s *Service) Get(ctx context.Context, idOrToken string, opts Options) (*Detail, error) {
	prov, err := s.store.GetProvision(ctx, idOrToken)
	if err != nil {
		return nil, err
	}

	var parsed *queryparse.FlexibleToken
	if prov == nil {
		prov, parsed, err = s.parser.ResolveToken(ctx, "", idOrToken)
		if err != nil {
			return nil, err
		}
	}
	if prov == nil {
		return nil, fmt.Errorf("provision detail: %q: %w", idOrToken, legis.ErrNotFound)
	}

	d := &Detail{
		InternalID:       prov.InternalID,
		RefID:            prov.RefID,
		CorpusID:         prov.CorpusID,
		Type:             prov.Type,
		LocalID:          prov.LocalID,
		Title:            prov.Title,
		ContentMD:        prov.ContentMD,
		Level:            prov.Level,
		HierarchyPath:    prov.HierarchyPath,
		ParentInternalID: prov.ParentInternalID,
		SiblingOrder:     prov.SiblingOrder,

		ReferencesTo:              []legis.OutboundReference{},
		ReferencedBy:              []legis.InboundReference{},
		DefinedTermsUsed:          []TermUsage{},
		DefinitionsWithReferences: []DefinitionBundle{},
		Breadcrumbs:               []legis.BreadcrumbItem{},
		Children:                  []legis.HierarchyNode{},

		ETag:      etag(prov),
		SizeBytes: len(prov.ContentMD),
		Fields:    opts.Fields,
		Parsed:    parsed,
	}

	if gv, err := s.store.GraphVersionInfo(ctx); err == nil {
		d.LastModified = gv.UpdatedAt
	}

	usages, err := s.store.TermsUsedBy(ctx, []string{prov.InternalID})
	if err != nil {
		return nil, err
	}
	for _, u := range usages {
		d.DefinedTermsUsed = append(d.DefinedTermsUsed, TermUsage{
			TermText:             u.TermText,
			DefinitionInternalID: u.DefinitionInternalID,
		})
	}

	if !opts.ExcludeReferences {
		if d.ReferencesTo, err = s.store.ReferencesFrom(ctx, prov.InternalID); err != nil {
			return nil, err
		}
		if d.ReferencedBy, err = s.store.ReferencesTo(ctx, prov.InternalID); err != nil {
			return nil, err
		}
	}

	if opts.IncludeBreadcrumbs {
		if d.Breadcrumbs, err = s.store.ListAncestors(ctx, prov.InternalID); err != nil {
			return nil, err
		}
	}

	if opts.IncludeChildren {
		if d.Children, err = s.store.ListChildren(ctx, prov.CorpusID, prov.InternalID); err != nil {
			return nil, err
		}
	}

	if opts.IncludeDefinitions {
		if d.DefinitionsWithReferences, err = s.definitionBundles(ctx, usages); err != nil {
			return nil, err
		}
	}

	return d, nil
}

// definitionBundles groups the provision's term usages by their resolved
// definition and attaches each definition's content and references.
func (s *Service) definitionBundles(ctx context.Context, usages []legis.DefinedTermUsage) ([]DefinitionBundle, error) {
	termsByDef := make(map[string][]string)
	for _, u := range usages {
		if u.DefinitionInternalID == "" {
			continue
		}
		termsByDef[u.DefinitionInternalID] = append(termsByDef[u.DefinitionInternalID], u.TermText)
	}

	defIDs := make([]string, 0, len(termsByDef))
	for id := range termsByDef {
		defIDs = append(defIDs, id)
	}
	sort.Strings(defIDs)

	bundles := make([]DefinitionBundle, 0, len(defIDs))
	for _, id := range defIDs {
		def, err := s.store.GetProvision(ctx, id)
		if err != nil {
			return nil, err
		}
		if def == nil {
			continue
		}
		refs, err := s.store.ReferencesFrom(ctx, id)
		if err != nil {
			return nil, err
		}
		terms := termsByDef[id]
		sort.Strings(terms)
		bundles = append(bundles, DefinitionBundle{
			InternalID:   def.InternalID,
			RefID:        def.RefID,
			Title:        def.Title,
			ContentMD:    def.ContentMD,
			TermTexts:    terms,
			ReferencesTo: refs,
		})
	}
	return bundles, nil
}

// etag derives a stable content tag from the identity and markdown body.
func etag(p *legis.Provision) string {
	sum := sha256.Sum256([]byte(p.RefID + "\x00" + p.ContentMD))
	return hex.EncodeToString(sum[:8])
}
