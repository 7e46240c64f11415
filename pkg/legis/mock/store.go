// Package mock provides an in-memory implementation of [legis.Store] for
// tests. It is behavioural rather than canned: provisions, references, term
// usages, embeddings, and relatedness artifacts seeded into it behave like a
// tiny corpus, with a deliberately crude lexical scorer and a brute-force
// vector scan standing in for PostgreSQL full-text and pgvector.
//
// The zero value is not ready; use [NewStore]. All methods are safe for
// concurrent use.
package mock

import (
	"context"
	"math"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gunba/taxiv/pkg/legis"
)

// Compile-time interface check.
var _ legis.Store = (*Store)(nil)

// Store is the in-memory [legis.Store] test double.
type Store struct {
	mu sync.RWMutex

	provisions map[string]legis.Provision
	references []legis.Reference
	usages     []legis.DefinedTermUsage
	embeddings map[string][]float32 // key: kind "\x00" id "\x00" model
	baseline   map[string]float64
	prints     map[string]legis.Fingerprint
	version    int

	// LexicalResults, when non-nil, is returned verbatim by LexicalQuery
	// instead of the built-in scorer. Useful for forcing exact candidates.
	LexicalResults []legis.LexicalHit

	// FailWith, when non-nil, is returned by every store operation. Useful
	// for exercising error propagation.
	FailWith error
}

// NewStore returns an initialised empty Store at graph version 1.
func NewStore() *Store {
	return &Store{
		provisions: make(map[string]legis.Provision),
		embeddings: make(map[string][]float32),
		baseline:   make(map[string]float64),
		prints:     make(map[string]legis.Fingerprint),
		version:    1,
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Seeding helpers
// ─────────────────────────────────────────────────────────────────────────────

// AddProvision seeds one provision, deriving InternalID from RefID when unset.
func (s *Store) AddProvision(p legis.Provision) {
	if p.InternalID == "" {
		p.InternalID = legis.InternalID(p.RefID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.provisions[p.InternalID] = p
}

// AddReference seeds one citation edge.
func (s *Store) AddReference(r legis.Reference) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.references = append(s.references, r)
}

// AddTermUsage seeds one defined-term usage.
func (s *Store) AddTermUsage(u legis.DefinedTermUsage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usages = append(s.usages, u)
}

// AddEmbedding seeds one vector.
func (s *Store) AddEmbedding(kind, id, model string, vec []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.embeddings[embKey(kind, id, model)] = slices.Clone(vec)
}

// SetBaseline seeds one baseline score.
func (s *Store) SetBaseline(id string, pi float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.baseline[id] = pi
}

func embKey(kind, id, model string) string {
	return kind + "\x00" + id + "\x00" + model
}

// ─────────────────────────────────────────────────────────────────────────────
// ProvisionReader
// ─────────────────────────────────────────────────────────────────────────────

func (s *Store) GetProvision(_ context.Context, internalID string) (*legis.Provision, error) {
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.provisions[internalID]; ok {
		out := p
		return &out, nil
	}
	return nil, nil
}

func (s *Store) FindProvisionByRef(_ context.Context, corpusID, kind, localID string) (*legis.Provision, error) {
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	refID := corpusID + ":" + kind + ":" + localID
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.provisions {
		if p.CorpusID == corpusID && p.RefID == refID {
			out := p
			return &out, nil
		}
	}
	return nil, nil
}

func (s *Store) FindProvisionByLocal(_ context.Context, corpusID, localID string) (*legis.Provision, error) {
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, kind := range legis.StructuralKinds {
		var best *legis.Provision
		for _, id := range s.sortedIDs() {
			p := s.provisions[id]
			if p.CorpusID == corpusID && p.Type == kind && p.LocalID == localID {
				out := p
				best = &out
				break
			}
		}
		if best != nil {
			return best, nil
		}
	}
	return nil, nil
}

func (s *Store) FindDefinitionsByTitle(_ context.Context, corpusID, title string) ([]legis.Provision, error) {
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var defs []legis.Provision
	for _, id := range s.sortedIDs() {
		p := s.provisions[id]
		if p.CorpusID == corpusID && p.Type == legis.KindDefinition && strings.EqualFold(p.Title, title) {
			defs = append(defs, p)
		}
	}
	return defs, nil
}

func (s *Store) ScanCandidates(_ context.Context, corpusID string, ids []string) ([]legis.ProvisionLite, error) {
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	lites := make([]legis.ProvisionLite, 0, len(ids))
	for _, id := range ids {
		p, ok := s.provisions[id]
		if !ok || p.CorpusID != corpusID {
			continue
		}
		lites = append(lites, legis.ProvisionLite{
			InternalID: p.InternalID,
			RefID:      p.RefID,
			Title:      p.Title,
			Type:       p.Type,
			ContentMD:  p.ContentMD,
		})
	}
	return lites, nil
}

func (s *Store) ListAncestors(_ context.Context, internalID string) ([]legis.BreadcrumbItem, error) {
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	target, ok := s.provisions[internalID]
	if !ok {
		return []legis.BreadcrumbItem{}, nil
	}
	type ranked struct {
		level int
		path  string
		item  legis.BreadcrumbItem
	}
	var found []ranked
	for _, p := range s.provisions {
		if target.HierarchyPath == p.HierarchyPath ||
			strings.HasPrefix(target.HierarchyPath, p.HierarchyPath+".") {
			found = append(found, ranked{p.Level, p.HierarchyPath, legis.BreadcrumbItem{InternalID: p.InternalID, Title: p.Title}})
		}
	}
	sort.Slice(found, func(i, j int) bool {
		if found[i].level != found[j].level {
			return found[i].level < found[j].level
		}
		return found[i].path < found[j].path
	})
	items := make([]legis.BreadcrumbItem, len(found))
	for i, f := range found {
		items[i] = f.item
	}
	return items, nil
}

func (s *Store) ListChildren(_ context.Context, corpusID, parentInternalID string) ([]legis.HierarchyNode, error) {
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	hasChildren := make(map[string]bool)
	for _, p := range s.provisions {
		if p.ParentInternalID != "" {
			hasChildren[p.ParentInternalID] = true
		}
	}
	var nodes []legis.HierarchyNode
	for _, id := range s.sortedIDs() {
		p := s.provisions[id]
		if p.CorpusID != corpusID || p.ParentInternalID != parentInternalID {
			continue
		}
		nodes = append(nodes, legis.HierarchyNode{
			InternalID:   p.InternalID,
			RefID:        p.RefID,
			Title:        p.Title,
			Type:         p.Type,
			SiblingOrder: p.SiblingOrder,
			HasChildren:  hasChildren[p.InternalID],
		})
	}
	sort.SliceStable(nodes, func(i, j int) bool {
		a, b := nodes[i].SiblingOrder, nodes[j].SiblingOrder
		switch {
		case a == nil && b == nil:
			return false
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return *a < *b
		}
	})
	return nodes, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// GraphSource
// ─────────────────────────────────────────────────────────────────────────────

func (s *Store) ReferencesTouching(_ context.Context, frontier []string) ([]legis.Reference, error) {
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	in := make(map[string]struct{}, len(frontier))
	for _, id := range frontier {
		in[id] = struct{}{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []legis.Reference
	for _, r := range s.references {
		if r.TargetInternalID == "" {
			continue
		}
		_, src := in[r.SourceInternalID]
		_, dst := in[r.TargetInternalID]
		if src || dst {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Store) ListHierarchy(_ context.Context, corpusID string) ([]legis.HierarchyEntry, error) {
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var entries []legis.HierarchyEntry
	for _, id := range s.sortedIDs() {
		p := s.provisions[id]
		if p.CorpusID != corpusID {
			continue
		}
		entries = append(entries, legis.HierarchyEntry{
			InternalID:       p.InternalID,
			ParentInternalID: p.ParentInternalID,
			SiblingOrder:     p.SiblingOrder,
		})
	}
	return entries, nil
}

func (s *Store) TermsUsedBy(_ context.Context, ids []string) ([]legis.DefinedTermUsage, error) {
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	in := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		in[id] = struct{}{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []legis.DefinedTermUsage
	for _, u := range s.usages {
		if _, ok := in[u.SourceInternalID]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *Store) ProvisionsUsingTerms(_ context.Context, corpusID string, terms []string) ([]legis.DefinedTermUsage, error) {
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	want := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		want[t] = struct{}{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []legis.DefinedTermUsage
	for _, u := range s.usages {
		if _, ok := want[u.TermText]; !ok {
			continue
		}
		if p, ok := s.provisions[u.SourceInternalID]; !ok || p.CorpusID != corpusID {
			continue
		}
		out = append(out, u)
	}
	return out, nil
}

func (s *Store) GetEmbedding(_ context.Context, kind, entityID, model string) ([]float32, error) {
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if vec, ok := s.embeddings[embKey(kind, entityID, model)]; ok {
		return slices.Clone(vec), nil
	}
	return nil, nil
}

func (s *Store) SemanticKNN(_ context.Context, kind, model string, vector []float32, limit int) ([]legis.SemanticHit, error) {
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var hits []legis.SemanticHit
	prefix := kind + "\x00"
	suffix := "\x00" + model
	for key, vec := range s.embeddings {
		if !strings.HasPrefix(key, prefix) || !strings.HasSuffix(key, suffix) {
			continue
		}
		id := strings.TrimSuffix(strings.TrimPrefix(key, prefix), suffix)
		d := l2Distance(vector, vec)
		hits = append(hits, legis.SemanticHit{EntityID: id, Similarity: 1.0 - d/2.0})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].EntityID < hits[j].EntityID
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func l2Distance(a, b []float32) float64 {
	n := min(len(a), len(b))
	var sum float64
	for i := 0; i < n; i++ {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// ─────────────────────────────────────────────────────────────────────────────
// LexicalSearcher
// ─────────────────────────────────────────────────────────────────────────────

// LexicalQuery approximates the PostgreSQL scorer: the full-text rank is the
// fraction of query words found in the provision text, the trigram score is 1
// for a whole-phrase containment in the title and 0.5 for one in the content.
func (s *Store) LexicalQuery(_ context.Context, corpusID, normalized, raw string, orTerms []string, trigramFloor float64, limit int) ([]legis.LexicalHit, error) {
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	if s.LexicalResults != nil {
		out := slices.Clone(s.LexicalResults)
		if len(out) > limit {
			out = out[:limit]
		}
		return out, nil
	}

	words := strings.Fields(strings.ToLower(normalized))
	phrase := strings.ToLower(strings.TrimSpace(normalized))

	s.mu.RLock()
	defer s.mu.RUnlock()
	var hits []legis.LexicalHit
	for _, id := range s.sortedIDs() {
		p := s.provisions[id]
		if p.CorpusID != corpusID {
			continue
		}
		text := strings.ToLower(p.Title + " " + p.ContentMD)
		matched := 0
		for _, w := range words {
			if strings.Contains(text, w) {
				matched++
			}
		}
		var ts float64
		if len(words) > 0 {
			ts = float64(matched) / float64(len(words))
		}
		var tri float64
		if phrase != "" {
			if strings.Contains(strings.ToLower(p.Title), phrase) {
				tri = 1.0
			} else if strings.Contains(text, phrase) {
				tri = 0.5
			}
		}
		if matched == 0 && tri < trigramFloor {
			continue
		}
		hits = append(hits, legis.LexicalHit{InternalID: p.InternalID, Type: p.Type, TSScore: ts, TriScore: tri})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		a := hits[i].TSScore*0.7 + hits[i].TriScore*0.3
		b := hits[j].TSScore*0.7 + hits[j].TriScore*0.3
		return a > b
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// ReferenceReader
// ─────────────────────────────────────────────────────────────────────────────

func (s *Store) ReferencesFrom(_ context.Context, internalID string) ([]legis.OutboundReference, error) {
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []legis.OutboundReference
	for _, r := range s.references {
		if r.SourceInternalID != internalID {
			continue
		}
		ref := legis.OutboundReference{
			TargetRefID:      r.TargetRefID,
			TargetInternalID: r.TargetInternalID,
			Snippet:          r.Snippet,
		}
		if t, ok := s.provisions[r.TargetInternalID]; ok {
			ref.TargetTitle = t.Title
		}
		out = append(out, ref)
	}
	return out, nil
}

func (s *Store) ReferencesTo(_ context.Context, internalID string) ([]legis.InboundReference, error) {
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	var out []legis.InboundReference
	for _, r := range s.references {
		if r.TargetInternalID != internalID {
			continue
		}
		if _, dup := seen[r.SourceInternalID]; dup {
			continue
		}
		seen[r.SourceInternalID] = struct{}{}
		src, ok := s.provisions[r.SourceInternalID]
		if !ok {
			continue
		}
		out = append(out, legis.InboundReference{
			SourceInternalID: src.InternalID,
			SourceRefID:      src.RefID,
			SourceTitle:      src.Title,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SourceInternalID < out[j].SourceInternalID })
	return out, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// ArtifactStore
// ─────────────────────────────────────────────────────────────────────────────

func (s *Store) GetBaseline(_ context.Context, ids []string) (map[string]float64, error) {
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	pi := make(map[string]float64, len(ids))
	for _, id := range ids {
		if v, ok := s.baseline[id]; ok {
			pi[id] = v
		} else {
			pi[id] = 1e-12
		}
	}
	return pi, nil
}

func (s *Store) PutBaseline(_ context.Context, corpusID string, pi map[string]float64, version int) error {
	if s.FailWith != nil {
		return s.FailWith
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.baseline {
		if p, ok := s.provisions[id]; ok && p.CorpusID == corpusID {
			delete(s.baseline, id)
		}
	}
	for id, v := range pi {
		s.baseline[id] = v
	}
	return nil
}

func (s *Store) GetFingerprints(_ context.Context, ids []string, expectedVersion int) (map[string]legis.Fingerprint, []string, error) {
	if s.FailWith != nil {
		return nil, nil, s.FailWith
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	hits := make(map[string]legis.Fingerprint, len(ids))
	var missing []string
	for _, id := range ids {
		fp, ok := s.prints[id]
		if !ok || fp.GraphVersion != expectedVersion {
			missing = append(missing, id)
			continue
		}
		fp.Neighbors = slices.Clone(fp.Neighbors)
		hits[id] = fp
	}
	return hits, missing, nil
}

func (s *Store) PutFingerprint(_ context.Context, sourceID string, fp legis.Fingerprint) error {
	if s.FailWith != nil {
		return s.FailWith
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fp.Neighbors = slices.Clone(fp.Neighbors)
	s.prints[sourceID] = fp
	return nil
}

func (s *Store) PutFingerprints(ctx context.Context, fps map[string]legis.Fingerprint) error {
	for id, fp := range fps {
		if err := s.PutFingerprint(ctx, id, fp); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) CurrentGraphVersion(_ context.Context) (int, error) {
	if s.FailWith != nil {
		return 0, s.FailWith
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version, nil
}

func (s *Store) GraphVersionInfo(_ context.Context) (legis.GraphVersion, error) {
	if s.FailWith != nil {
		return legis.GraphVersion{}, s.FailWith
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return legis.GraphVersion{Version: s.version, UpdatedAt: time.Unix(0, 0).UTC()}, nil
}

func (s *Store) BumpGraphVersion(_ context.Context) (int, error) {
	if s.FailWith != nil {
		return 0, s.FailWith
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.version++
	return s.version, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// IngestWriter
// ─────────────────────────────────────────────────────────────────────────────

func (s *Store) UpsertProvisions(_ context.Context, provisions []legis.Provision) error {
	if s.FailWith != nil {
		return s.FailWith
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range provisions {
		s.provisions[p.InternalID] = p
	}
	return nil
}

func (s *Store) UpsertReferences(_ context.Context, refs []legis.Reference) error {
	if s.FailWith != nil {
		return s.FailWith
	}
	sources := make(map[string]struct{})
	for _, r := range refs {
		sources[r.SourceInternalID] = struct{}{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.references[:0]
	for _, r := range s.references {
		if _, replaced := sources[r.SourceInternalID]; !replaced {
			kept = append(kept, r)
		}
	}
	s.references = append(kept, refs...)
	return nil
}

func (s *Store) UpsertTermUsages(_ context.Context, usages []legis.DefinedTermUsage) error {
	if s.FailWith != nil {
		return s.FailWith
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range usages {
		replaced := false
		for i, old := range s.usages {
			if old.SourceInternalID == u.SourceInternalID && old.TermText == u.TermText {
				s.usages[i] = u
				replaced = true
				break
			}
		}
		if !replaced {
			s.usages = append(s.usages, u)
		}
	}
	return nil
}

func (s *Store) UpsertEmbeddings(_ context.Context, embeddings []legis.Embedding) error {
	if s.FailWith != nil {
		return s.FailWith
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range embeddings {
		s.embeddings[embKey(e.EntityKind, e.EntityID, e.Model)] = slices.Clone(e.Vector)
	}
	return nil
}

func (s *Store) ListProvisions(_ context.Context, corpusID string) ([]legis.Provision, error) {
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []legis.Provision
	for _, id := range s.sortedIDs() {
		if p := s.provisions[id]; p.CorpusID == corpusID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Store) ListReferences(_ context.Context, corpusID string) ([]legis.Reference, error) {
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []legis.Reference
	for _, r := range s.references {
		if r.TargetInternalID == "" {
			continue
		}
		if p, ok := s.provisions[r.SourceInternalID]; ok && p.CorpusID == corpusID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Store) ListTermUsages(_ context.Context, corpusID string) ([]legis.DefinedTermUsage, error) {
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []legis.DefinedTermUsage
	for _, u := range s.usages {
		if p, ok := s.provisions[u.SourceInternalID]; ok && p.CorpusID == corpusID {
			out = append(out, u)
		}
	}
	return out, nil
}

// sortedIDs returns provision ids in lexical order for deterministic
// iteration. Callers must hold at least the read lock.
func (s *Store) sortedIDs() []string {
	ids := make([]string, 0, len(s.provisions))
	for id := range s.provisions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
