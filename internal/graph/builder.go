// Package graph materialises per-seed local subgraphs of the legislation
// corpus. Citation edges are expanded breadth-first to a bounded radius, then
// hierarchy, defined-term co-usage, and semantic k-NN edges are overlaid.
// Every edge carries its view tag so the relatedness engine can apply the
// per-view mixing weights at use sites.
package graph

import (
	"context"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/gunba/taxiv/internal/config"
	"github.com/gunba/taxiv/internal/corpus"
	"github.com/gunba/taxiv/pkg/legis"
)

// View identifies the relation a typed edge came from.
type View string

// The four graph views.
const (
	ViewCitation  View = "cit"
	ViewHierarchy View = "hier"
	ViewTerm      View = "term"
	ViewSemantic  View = "sem"
)

// TypedEdge is one directed use-site edge of a local subgraph. Undirected
// views emit both directions.
type TypedEdge struct {
	Source string
	Target string
	View   View
}

// snapshotCacheSize bounds the per-version hierarchy snapshots. Two entries
// cover the version currently serving plus the one an ingest just installed.
const snapshotCacheSize = 2

// vectorCacheSize bounds the memoised seed vectors.
const vectorCacheSize = 512

type snapshotKey struct {
	corpusID string
	version  int
}

// hierSnapshot is the parent/child skeleton of one corpus at one graph
// version. childrenOf lists are ordered by sibling order (nulls last), then
// id, so sibling adjacency is deterministic.
type hierSnapshot struct {
	parentOf   map[string]string
	childrenOf map[string][]string
}

// Builder expands local subgraphs. Safe for concurrent use; the snapshot and
// vector caches are shared across requests.
type Builder struct {
	store      legis.GraphSource
	reg        *corpus.Registry
	cfg        config.RelatednessConfig
	embedModel string

	snapshots *lru.Cache[snapshotKey, *hierSnapshot]
	vectors   *lru.Cache[string, []float32]
}

// NewBuilder creates a Builder. embedModel selects which stored embedding
// space backs the semantic view.
func NewBuilder(store legis.GraphSource, reg *corpus.Registry, cfg config.RelatednessConfig, embedModel string) *Builder {
	snapshots, _ := lru.New[snapshotKey, *hierSnapshot](snapshotCacheSize)
	vectors, _ := lru.New[string, []float32](vectorCacheSize)
	return &Builder{
		store:      store,
		reg:        reg,
		cfg:        cfg,
		embedModel: embedModel,
		snapshots:  snapshots,
		vectors:    vectors,
	}
}

// inCorpus reports corpus membership by the internal-id prefix invariant.
func inCorpus(corpusID, id string) bool {
	return strings.HasPrefix(id, corpusID+"_")
}

// Expand builds the local subgraph around seeds. Seeds outside the corpus or
// excluded by policy are dropped; when none survive, both returns are empty.
// Node ids come back sorted so downstream iteration is deterministic.
func (b *Builder) Expand(ctx context.Context, seeds []string, corpusID string, version int) ([]string, []TypedEdge, error) {
	live := make([]string, 0, len(seeds))
	for _, s := range seeds {
		if inCorpus(corpusID, s) && !b.reg.IsExcluded(corpusID, s) {
			live = append(live, s)
		}
	}
	sort.Strings(live)
	if len(live) == 0 {
		return []string{}, nil, nil
	}

	nodes := make(map[string]struct{}, len(live))
	for _, s := range live {
		nodes[s] = struct{}{}
	}
	var edges []TypedEdge

	edges, err := b.expandCitations(ctx, corpusID, live, nodes, edges)
	if err != nil {
		return nil, nil, err
	}

	edges, err = b.overlayHierarchy(ctx, corpusID, version, nodes, edges)
	if err != nil {
		return nil, nil, err
	}

	edges, err = b.overlayTerms(ctx, corpusID, live, nodes, edges)
	if err != nil {
		return nil, nil, err
	}

	edges, err = b.overlaySemantic(ctx, corpusID, live, nodes, edges)
	if err != nil {
		return nil, nil, err
	}

	sorted := make([]string, 0, len(nodes))
	for id := range nodes {
		sorted = append(sorted, id)
	}
	sort.Strings(sorted)
	return sorted, edges, nil
}

// expandCitations runs the bounded breadth-first citation expansion. Both
// directions are admitted; an edge is kept only when both endpoints are
// in-corpus and not excluded.
func (b *Builder) expandCitations(ctx context.Context, corpusID string, seeds []string, nodes map[string]struct{}, edges []TypedEdge) ([]TypedEdge, error) {
	frontier := make(map[string]struct{}, len(seeds))
	for _, s := range seeds {
		frontier[s] = struct{}{}
	}

	for hop := 0; hop < b.cfg.Radius; hop++ {
		if len(frontier) == 0 || len(nodes) >= b.cfg.MaxNodes {
			break
		}
		refs, err := b.store.ReferencesTouching(ctx, sortedKeys(frontier))
		if err != nil {
			return edges, err
		}
		sort.Slice(refs, func(i, j int) bool {
			if refs[i].SourceInternalID != refs[j].SourceInternalID {
				return refs[i].SourceInternalID < refs[j].SourceInternalID
			}
			return refs[i].TargetInternalID < refs[j].TargetInternalID
		})

		next := make(map[string]struct{})
		for _, r := range refs {
			if r.TargetInternalID == "" {
				continue
			}
			if !b.admit(corpusID, r.SourceInternalID) || !b.admit(corpusID, r.TargetInternalID) {
				continue
			}
			edges = append(edges, TypedEdge{r.SourceInternalID, r.TargetInternalID, ViewCitation})
			nodes[r.SourceInternalID] = struct{}{}
			nodes[r.TargetInternalID] = struct{}{}
			next[r.SourceInternalID] = struct{}{}
			next[r.TargetInternalID] = struct{}{}
			if len(edges) >= b.cfg.MaxEdges || len(nodes) >= b.cfg.MaxNodes {
				return edges, nil
			}
		}
		for id := range frontier {
			delete(next, id)
		}
		frontier = next
	}
	return edges, nil
}

// overlayHierarchy connects every collected node to its parent and every
// collected parent to its children, including adjacent-sibling edges.
func (b *Builder) overlayHierarchy(ctx context.Context, corpusID string, version int, nodes map[string]struct{}, edges []TypedEdge) ([]TypedEdge, error) {
	snap, err := b.snapshot(ctx, corpusID, version)
	if err != nil {
		return edges, err
	}

	parents := make(map[string]struct{})
	for _, id := range sortedKeys(nodes) {
		parent := snap.parentOf[id]
		if parent == "" || !b.admit(corpusID, parent) {
			continue
		}
		edges = append(edges,
			TypedEdge{id, parent, ViewHierarchy},
			TypedEdge{parent, id, ViewHierarchy},
		)
		nodes[parent] = struct{}{}
		parents[parent] = struct{}{}
	}

	for _, parent := range sortedKeys(parents) {
		children := snap.childrenOf[parent]
		var admitted []string
		for _, child := range children {
			if !b.admit(corpusID, child) {
				continue
			}
			admitted = append(admitted, child)
			if _, present := nodes[child]; !present {
				nodes[child] = struct{}{}
				edges = append(edges,
					TypedEdge{child, parent, ViewHierarchy},
					TypedEdge{parent, child, ViewHierarchy},
				)
			}
		}
		for i := 0; i+1 < len(admitted); i++ {
			edges = append(edges,
				TypedEdge{admitted[i], admitted[i+1], ViewHierarchy},
				TypedEdge{admitted[i+1], admitted[i], ViewHierarchy},
			)
		}
	}
	return edges, nil
}

// overlayTerms adds complete-graph co-usage edges for every defined term any
// seed uses, capped per term.
func (b *Builder) overlayTerms(ctx context.Context, corpusID string, seeds []string, nodes map[string]struct{}, edges []TypedEdge) ([]TypedEdge, error) {
	seedUsages, err := b.store.TermsUsedBy(ctx, seeds)
	if err != nil {
		return edges, err
	}
	termSet := make(map[string]struct{})
	for _, u := range seedUsages {
		if u.TermText != "" {
			termSet[u.TermText] = struct{}{}
		}
	}
	if len(termSet) == 0 {
		return edges, nil
	}

	usages, err := b.store.ProvisionsUsingTerms(ctx, corpusID, sortedKeys(termSet))
	if err != nil {
		return edges, err
	}

	byTerm := make(map[string][]string)
	for _, u := range usages {
		if !b.admit(corpusID, u.SourceInternalID) {
			continue
		}
		byTerm[u.TermText] = append(byTerm[u.TermText], u.SourceInternalID)
	}

	for _, term := range sortedKeys(byTerm) {
		ids := dedupe(byTerm[term])
		if len(ids) > b.cfg.TermLimitPerTerm {
			ids = ids[:b.cfg.TermLimitPerTerm]
		}
		for _, id := range ids {
			nodes[id] = struct{}{}
		}
		for i := 0; i < len(ids); i++ {
			for j := i + 1; j < len(ids); j++ {
				edges = append(edges,
					TypedEdge{ids[i], ids[j], ViewTerm},
					TypedEdge{ids[j], ids[i], ViewTerm},
				)
			}
		}
	}
	return edges, nil
}

// overlaySemantic adds undirected edges from each seed to its vector
// neighbours until the node or edge caps are hit. A seed without a stored
// embedding contributes no semantic edges but keeps its other views.
func (b *Builder) overlaySemantic(ctx context.Context, corpusID string, seeds []string, nodes map[string]struct{}, edges []TypedEdge) ([]TypedEdge, error) {
	for _, seed := range seeds {
		vec, err := b.seedVector(ctx, seed)
		if err != nil {
			return edges, err
		}
		if vec == nil {
			continue
		}
		hits, err := b.store.SemanticKNN(ctx, legis.EntityKindProvision, b.embedModel, vec, b.cfg.SemanticK)
		if err != nil {
			return edges, err
		}
		for _, h := range hits {
			if h.EntityID == seed || !b.admit(corpusID, h.EntityID) {
				continue
			}
			if len(nodes) >= b.cfg.MaxNodes || len(edges) >= b.cfg.MaxEdges {
				return edges, nil
			}
			nodes[h.EntityID] = struct{}{}
			edges = append(edges,
				TypedEdge{seed, h.EntityID, ViewSemantic},
				TypedEdge{h.EntityID, seed, ViewSemantic},
			)
		}
	}
	return edges, nil
}

// admit reports whether id participates in subgraphs of corpusID.
func (b *Builder) admit(corpusID, id string) bool {
	return inCorpus(corpusID, id) && !b.reg.IsExcluded(corpusID, id)
}

// seedVector fetches a seed embedding through the LRU.
func (b *Builder) seedVector(ctx context.Context, seed string) ([]float32, error) {
	if vec, ok := b.vectors.Get(seed); ok {
		return vec, nil
	}
	vec, err := b.store.GetEmbedding(ctx, legis.EntityKindProvision, seed, b.embedModel)
	if err != nil {
		return nil, err
	}
	if vec != nil {
		b.vectors.Add(seed, vec)
	}
	return vec, nil
}

// snapshot memoises the parent/child skeleton per (corpus, version).
func (b *Builder) snapshot(ctx context.Context, corpusID string, version int) (*hierSnapshot, error) {
	key := snapshotKey{corpusID: corpusID, version: version}
	if snap, ok := b.snapshots.Get(key); ok {
		return snap, nil
	}

	entries, err := b.store.ListHierarchy(ctx, corpusID)
	if err != nil {
		return nil, err
	}

	snap := &hierSnapshot{
		parentOf:   make(map[string]string, len(entries)),
		childrenOf: make(map[string][]string),
	}
	order := make(map[string]*int, len(entries))
	for _, e := range entries {
		order[e.InternalID] = e.SiblingOrder
		if e.ParentInternalID == "" {
			continue
		}
		snap.parentOf[e.InternalID] = e.ParentInternalID
		snap.childrenOf[e.ParentInternalID] = append(snap.childrenOf[e.ParentInternalID], e.InternalID)
	}
	for _, children := range snap.childrenOf {
		sort.SliceStable(children, func(i, j int) bool {
			a, b := order[children[i]], order[children[j]]
			switch {
			case a == nil && b == nil:
				return children[i] < children[j]
			case a == nil:
				return false
			case b == nil:
				return true
			case *a != *b:
				return *a < *b
			default:
				return children[i] < children[j]
			}
		})
	}

	b.snapshots.Add(key, snap)
	return snap, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if _, dup := seen[id]; !dup {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}
