// Package legis defines the domain model for the Taxiv legislation corpus —
// provisions, citation references, defined-term usages, embeddings, and the
// relatedness artifacts (baseline distribution, fingerprints, graph version) —
// together with the [Store] contract that every persistence backend satisfies.
//
// All identifiers come in two canonical forms:
//
//   - ref_id:      "CORPUS:Kind:Local", e.g. "ITAA1997:Section:6-5"
//   - internal_id: the ref_id with ':' and '/' replaced by '_',
//     e.g. "ITAA1997_Section_6-5"
//
// [InternalID] derives one from the other. Every provision's internal_id is
// prefixed by its corpus id.
package legis

import (
	"strings"
	"time"
)

// Provision kinds. KindSchedule may appear as a composite ref-id segment
// ("Schedule:1:Section:12-5") for acts that nest sections under schedules.
const (
	KindAct         = "Act"
	KindChapter     = "Chapter"
	KindPart        = "Part"
	KindDivision    = "Division"
	KindSubdivision = "Subdivision"
	KindSection     = "Section"
	KindSchedule    = "Schedule"
	KindDefinition  = "Definition"
	KindGuide       = "Guide"
)

// StructuralKinds are the kinds tried, in order, when resolving a bare
// identifier such as "6-5" without an explicit kind.
var StructuralKinds = []string{KindSection, KindSubdivision, KindDivision, KindPart}

// InternalID derives the internal identifier from a canonical ref-id by
// escaping the separator characters.
func InternalID(refID string) string {
	return strings.NewReplacer(":", "_", "/", "_").Replace(refID)
}

// Provision is a single node of the legislation hierarchy: an act, a
// structural grouping (part, division, …), a section, or an embedded
// definition.
type Provision struct {
	// InternalID is the opaque stable key, unique across the corpus.
	// It always begins with "{CorpusID}_".
	InternalID string

	// CorpusID identifies the logical corpus (e.g. "ITAA1997").
	CorpusID string

	// RefID is the canonical citation form "CORPUS:Kind:Local".
	RefID string

	// LocalID is the normalised alphanumeric tail (e.g. "6-5").
	LocalID string

	// Type is one of the Kind* constants.
	Type string

	Title     string
	ContentMD string
	Level     int

	// HierarchyPath is the ordered label sequence from the corpus root to
	// this provision, dot-separated (ltree style). A child's path is its
	// parent's path plus one label.
	HierarchyPath string

	// ParentInternalID is empty for corpus roots.
	ParentInternalID string

	// SiblingOrder orders a provision among its siblings. Nil when the
	// source document gave no explicit ordering.
	SiblingOrder *int
}

// ProvisionLite is the slim projection used by candidate scans and search
// result enrichment.
type ProvisionLite struct {
	InternalID string
	RefID      string
	Title      string
	Type       string
	ContentMD  string
}

// Reference is a citation edge from one provision to another. TargetInternalID
// is empty when the target could not be resolved inside the corpus (external
// or repealed provisions).
type Reference struct {
	SourceInternalID string
	TargetRefID      string
	TargetInternalID string
	Snippet          string
}

// DefinedTermUsage records that a provision's text uses a defined term.
// (SourceInternalID, TermText) is unique. DefinitionInternalID links to the
// Definition provision when one was resolved.
type DefinedTermUsage struct {
	SourceInternalID     string
	TermText             string
	DefinitionInternalID string
}

// Neighbor is one entry of a relatedness fingerprint: a provision reachable
// from the seed and the APPR mass it accumulated.
type Neighbor struct {
	ID   string  `json:"prov_id"`
	Mass float64 `json:"ppr_mass"`
}

// Fingerprint is the persisted APPR result for a single seed: the top
// neighbors ordered by descending mass, the total mass they capture, and the
// graph version the computation saw. A fingerprint is only valid while the
// current graph version equals GraphVersion.
type Fingerprint struct {
	Neighbors    []Neighbor
	Captured     float64
	GraphVersion int
}

// LexicalHit is one row of a combined full-text + trigram query: the raw
// ts_rank score and the best trigram similarity, still unblended.
type LexicalHit struct {
	InternalID string
	Type       string
	TSScore    float64
	TriScore   float64
}

// SemanticHit is one vector-space neighbour with its cosine-style similarity
// (1 - d/2 for L2 distance d over unit vectors).
type SemanticHit struct {
	EntityID   string
	Similarity float64
}

// GraphVersion tags relatedness artifacts with the corpus state they were
// computed against. A single monotonically increasing row per deployment.
type GraphVersion struct {
	Version   int
	UpdatedAt time.Time
}

// EntityKindProvision is the embedding entity kind for provisions. Document
// chunks use their own kind so that both can share the embeddings table.
const (
	EntityKindProvision = "provision"
	EntityKindDocChunk  = "doc_chunk"
)

// Embedding is a stored dense vector for an entity. Vectors are
// L2-normalised at write time so dot product equals cosine similarity.
type Embedding struct {
	EntityKind string
	EntityID   string
	Model      string
	Dim        int
	Vector     []float32
	L2Norm     float64
}
