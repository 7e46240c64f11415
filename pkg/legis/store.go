package legis

import "context"

// BreadcrumbItem is one ancestor on the path from a corpus root to a
// provision, in root-to-leaf order.
type BreadcrumbItem struct {
	InternalID string `json:"internal_id"`
	Title      string `json:"title"`
}

// HierarchyNode is one row of a children listing.
type HierarchyNode struct {
	InternalID   string `json:"internal_id"`
	RefID        string `json:"ref_id"`
	Title        string `json:"title"`
	Type         string `json:"type"`
	SiblingOrder *int   `json:"sibling_order,omitempty"`
	HasChildren  bool   `json:"has_children"`
}

// HierarchyEntry is the slim parent/child projection the graph builder
// snapshots: every provision of a corpus with its parent link and sibling
// position, nothing else.
type HierarchyEntry struct {
	InternalID       string
	ParentInternalID string
	SiblingOrder     *int
}

// InboundReference is an incoming citation resolved to its source provision.
type InboundReference struct {
	SourceInternalID string `json:"source_internal_id"`
	SourceRefID      string `json:"source_ref_id"`
	SourceTitle      string `json:"source_title"`
}

// OutboundReference is an outgoing citation with the target's title joined in
// when the target resolved.
type OutboundReference struct {
	TargetRefID      string `json:"target_ref_id"`
	TargetInternalID string `json:"target_internal_id,omitempty"`
	TargetTitle      string `json:"target_title,omitempty"`
	Snippet          string `json:"snippet,omitempty"`
}

// ProvisionReader provides typed read access to individual provisions and
// hierarchy views. Lookups return (nil, nil) when nothing matches.
type ProvisionReader interface {
	GetProvision(ctx context.Context, internalID string) (*Provision, error)

	// FindProvisionByRef resolves "{corpusID}:{kind}:{localID}" exactly.
	FindProvisionByRef(ctx context.Context, corpusID, kind, localID string) (*Provision, error)

	// FindProvisionByLocal resolves a bare local id such as "6-5" against
	// any structural kind of the corpus.
	FindProvisionByLocal(ctx context.Context, corpusID, localID string) (*Provision, error)

	// FindDefinitionsByTitle matches Definition provisions whose title
	// equals title case-insensitively.
	FindDefinitionsByTitle(ctx context.Context, corpusID, title string) ([]Provision, error)

	// ScanCandidates returns the slim projection for the given ids,
	// restricted to corpusID. Unknown ids are silently skipped.
	ScanCandidates(ctx context.Context, corpusID string, ids []string) ([]ProvisionLite, error)

	// ListAncestors returns the breadcrumb trail for a provision, root
	// first, including the provision itself.
	ListAncestors(ctx context.Context, internalID string) ([]BreadcrumbItem, error)

	// ListChildren lists the children of parentInternalID, or the corpus
	// top level when parentInternalID is empty. Ordered by sibling order
	// (nulls last), then hierarchy path.
	ListChildren(ctx context.Context, corpusID, parentInternalID string) ([]HierarchyNode, error)
}

// GraphSource provides the raw material for subgraph expansion: citation
// edges, the parent/child skeleton, defined-term usages, and vector
// neighbourhoods.
type GraphSource interface {
	// ReferencesTouching returns resolved citation edges where either
	// endpoint is in frontier.
	ReferencesTouching(ctx context.Context, frontier []string) ([]Reference, error)

	// ListHierarchy snapshots the whole parent/child skeleton of a corpus.
	ListHierarchy(ctx context.Context, corpusID string) ([]HierarchyEntry, error)

	// TermsUsedBy returns the defined-term usages whose source is one of ids.
	TermsUsedBy(ctx context.Context, ids []string) ([]DefinedTermUsage, error)

	// ProvisionsUsingTerms returns, per term, the usages across the corpus
	// for the given term texts.
	ProvisionsUsingTerms(ctx context.Context, corpusID string, terms []string) ([]DefinedTermUsage, error)

	// GetEmbedding fetches a stored vector. Returns (nil, nil) on miss.
	GetEmbedding(ctx context.Context, kind, entityID, model string) ([]float32, error)

	// SemanticKNN returns the limit nearest entities of the given kind by
	// L2 vector distance, with similarity 1 - d/2. The query entity itself
	// is not excluded; callers filter.
	SemanticKNN(ctx context.Context, kind, model string, vector []float32, limit int) ([]SemanticHit, error)
}

// LexicalSearcher runs the combined full-text + trigram candidate query.
type LexicalSearcher interface {
	// LexicalQuery matches title+content against the raw and normalised
	// query forms. orTerms is the relaxed OR-tsquery lexeme set; rows match
	// when the websearch query hits, the OR query hits, or the best trigram
	// similarity reaches trigramFloor. Scores are returned unblended.
	LexicalQuery(ctx context.Context, corpusID, normalized, raw string, orTerms []string, trigramFloor float64, limit int) ([]LexicalHit, error)
}

// ReferenceReader provides the citation views of the detail API.
type ReferenceReader interface {
	ReferencesFrom(ctx context.Context, internalID string) ([]OutboundReference, error)
	ReferencesTo(ctx context.Context, internalID string) ([]InboundReference, error)
}

// ArtifactStore persists the relatedness artifacts: the baseline stationary
// distribution, per-seed fingerprints, and the graph version that ties them
// to a corpus state.
type ArtifactStore interface {
	// GetBaseline returns π for each id. Ids with no stored score map to
	// 1e-12 so lift denominators never vanish.
	GetBaseline(ctx context.Context, ids []string) (map[string]float64, error)

	// PutBaseline replaces the baseline of a corpus, stamped with version.
	PutBaseline(ctx context.Context, corpusID string, pi map[string]float64, version int) error

	// GetFingerprints returns the stored fingerprints whose version equals
	// expectedVersion, plus the ids that missed (absent or stale).
	GetFingerprints(ctx context.Context, ids []string, expectedVersion int) (map[string]Fingerprint, []string, error)

	// PutFingerprint upserts one fingerprint. Last writer wins.
	PutFingerprint(ctx context.Context, sourceID string, fp Fingerprint) error

	// PutFingerprints bulk-upserts fingerprints within a single transaction.
	PutFingerprints(ctx context.Context, fps map[string]Fingerprint) error

	CurrentGraphVersion(ctx context.Context) (int, error)

	// GraphVersionInfo returns the current version row including its
	// update timestamp.
	GraphVersionInfo(ctx context.Context) (GraphVersion, error)

	// BumpGraphVersion atomically increments and returns the new version.
	BumpGraphVersion(ctx context.Context) (int, error)
}

// IngestWriter accepts the bulk upserts of the ingest pipeline. Each call is
// transactional.
type IngestWriter interface {
	UpsertProvisions(ctx context.Context, provisions []Provision) error
	UpsertReferences(ctx context.Context, refs []Reference) error
	UpsertTermUsages(ctx context.Context, usages []DefinedTermUsage) error
	UpsertEmbeddings(ctx context.Context, embeddings []Embedding) error

	// ListProvisions returns every provision of a corpus (full rows), used
	// by the indexer to enumerate seeds.
	ListProvisions(ctx context.Context, corpusID string) ([]Provision, error)

	// ListReferences returns every resolved reference of a corpus.
	ListReferences(ctx context.Context, corpusID string) ([]Reference, error)

	// ListTermUsages returns every defined-term usage of a corpus.
	ListTermUsages(ctx context.Context, corpusID string) ([]DefinedTermUsage, error)
}

// Store is the full entity-store contract. The PostgreSQL implementation in
// [github.com/gunba/taxiv/pkg/legis/postgres] satisfies it; consumers should
// depend on the narrowest sub-interface that covers their needs.
type Store interface {
	ProvisionReader
	GraphSource
	LexicalSearcher
	ReferenceReader
	ArtifactStore
	IngestWriter
}
