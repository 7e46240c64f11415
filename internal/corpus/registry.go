// Package corpus maintains the registry of configured legislation corpora
// and the exclusion policy derived from it.
//
// Exclusions are provisions that are formally part of a corpus but poison
// relatedness — typically the dictionary section every other provision cites.
// The policy is applied uniformly at seed validation, subgraph expansion,
// semantic-kNN filtering, fingerprint filtering, and final ranking.
package corpus

import (
	"sort"

	"github.com/gunba/taxiv/internal/config"
	"github.com/gunba/taxiv/pkg/legis"
)

// AllCorpora is the corpus-id wildcard selecting every configured corpus.
const AllCorpora = "*"

// Meta describes one registered corpus.
type Meta struct {
	ID          string
	Title       string
	Description string
	Default     bool

	// SupportsSectionGaps enables the "6 5" → "6-5" flexible-token rule.
	SupportsSectionGaps bool

	excludedRefIDs      map[string]struct{}
	excludedInternalIDs map[string]struct{}
}

// Registry resolves corpus ids, token prefixes, and exclusions. It is
// immutable after construction and safe for concurrent use.
type Registry struct {
	byID      map[string]*Meta
	byPrefix  map[string]string
	orderedID []string
	defaultID string
}

// NewRegistry builds a Registry from configuration. The first corpus becomes
// the default when none is marked.
func NewRegistry(corpora []config.CorpusConfig) *Registry {
	r := &Registry{
		byID:     make(map[string]*Meta, len(corpora)),
		byPrefix: make(map[string]string),
	}
	for _, c := range corpora {
		m := &Meta{
			ID:                  c.ID,
			Title:               c.Title,
			Description:         c.Description,
			Default:             c.Default,
			SupportsSectionGaps: c.SupportsSectionGaps == nil || *c.SupportsSectionGaps,
			excludedRefIDs:      make(map[string]struct{}, len(c.ExcludedRefIDs)),
			excludedInternalIDs: make(map[string]struct{}, len(c.ExcludedRefIDs)),
		}
		for _, ref := range c.ExcludedRefIDs {
			m.excludedRefIDs[ref] = struct{}{}
			m.excludedInternalIDs[legis.InternalID(ref)] = struct{}{}
		}
		r.byID[c.ID] = m
		r.orderedID = append(r.orderedID, c.ID)
		r.byPrefix[c.ID] = c.ID
		for _, prefix := range c.TokenizerPrefixes {
			r.byPrefix[prefix] = c.ID
		}
		if c.Default && r.defaultID == "" {
			r.defaultID = c.ID
		}
	}
	sort.Strings(r.orderedID)
	if r.defaultID == "" && len(corpora) > 0 {
		r.defaultID = corpora[0].ID
	}
	return r
}

// DefaultID returns the default corpus id, or "" when none is configured.
func (r *Registry) DefaultID() string { return r.defaultID }

// Get returns the metadata of a corpus, or nil when unknown.
func (r *Registry) Get(corpusID string) *Meta { return r.byID[corpusID] }

// IsKnown reports whether corpusID is configured.
func (r *Registry) IsKnown(corpusID string) bool { return r.byID[corpusID] != nil }

// IDs returns all corpus ids in stable (sorted) order.
func (r *Registry) IDs() []string {
	out := make([]string, len(r.orderedID))
	copy(out, r.orderedID)
	return out
}

// ResolvePrefix maps a flexible-token corpus prefix (the corpus id itself or
// a configured alias) to its corpus id. Returns "" when unrecognised.
func (r *Registry) ResolvePrefix(prefix string) string { return r.byPrefix[prefix] }

// Resolve returns corpusID when known, the default corpus otherwise. The
// wildcard passes through unchanged.
func (r *Registry) Resolve(corpusID string) string {
	if corpusID == AllCorpora || r.IsKnown(corpusID) {
		return corpusID
	}
	return r.defaultID
}

// IsExcluded reports whether the provision identified by id — an internal id
// or a ref-id, both forms are accepted — is excluded from corpusID.
func (r *Registry) IsExcluded(corpusID, id string) bool {
	m := r.byID[corpusID]
	if m == nil {
		return false
	}
	if _, ok := m.excludedRefIDs[id]; ok {
		return true
	}
	_, ok := m.excludedInternalIDs[id]
	return ok
}
