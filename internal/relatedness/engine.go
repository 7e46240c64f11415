// Package relatedness computes approximate personalised PageRank
// fingerprints over the mixed legislation graph and maintains their
// versioned cache. The push algorithm (Andersen–Chung–Lang style) keeps
// per-seed computation local: only nodes that accumulate at least epsilon of
// residual mass are ever touched.
package relatedness

import (
	"context"
	"log/slog"

	"github.com/gunba/taxiv/internal/config"
	"github.com/gunba/taxiv/internal/corpus"
	"github.com/gunba/taxiv/internal/graph"
	"github.com/gunba/taxiv/pkg/legis"
)

// Engine computes and caches relatedness fingerprints. Safe for concurrent
// use; APPR itself is sequential per call.
type Engine struct {
	builder *graph.Builder
	store   legis.ArtifactStore
	reg     *corpus.Registry
	cfg     config.RelatednessConfig
}

// NewEngine creates an Engine over builder and store.
func NewEngine(builder *graph.Builder, store legis.ArtifactStore, reg *corpus.Registry, cfg config.RelatednessConfig) *Engine {
	return &Engine{builder: builder, store: store, reg: reg, cfg: cfg}
}

// ComputeFingerprint expands the local subgraph around seedID, mixes and
// normalises it, and runs a single-seed APPR. The seed itself is dropped
// from the neighbour list. version only stamps the result; the subgraph is
// always read from the live store.
func (e *Engine) ComputeFingerprint(ctx context.Context, seedID, corpusID string, version int) (legis.Fingerprint, error) {
	return e.computeMulti(ctx, map[string]float64{seedID: 1.0}, corpusID, version)
}

// ComputeFingerprintMulti is the multi-seed variant: seedWeights is scaled
// into a distribution and every seed's self-contribution is removed from the
// output.
func (e *Engine) ComputeFingerprintMulti(ctx context.Context, seedWeights map[string]float64, corpusID string, version int) (legis.Fingerprint, error) {
	return e.computeMulti(ctx, seedWeights, corpusID, version)
}

func (e *Engine) computeMulti(ctx context.Context, seedWeights map[string]float64, corpusID string, version int) (legis.Fingerprint, error) {
	seeds := make([]string, 0, len(seedWeights))
	var total float64
	for id, w := range seedWeights {
		seeds = append(seeds, id)
		total += w
	}
	if total <= 0 {
		total = 1.0
	}

	nodes, edges, err := e.builder.Expand(ctx, seeds, corpusID, version)
	if err != nil {
		return legis.Fingerprint{}, err
	}
	if len(nodes) == 0 {
		return legis.Fingerprint{GraphVersion: version}, nil
	}

	// Seeds outside the expanded subgraph (excluded or foreign) carry no
	// residual; renormalise over the survivors.
	live := make(map[string]float64)
	var liveTotal float64
	inGraph := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		inGraph[n] = struct{}{}
	}
	for id, w := range seedWeights {
		if _, ok := inGraph[id]; ok && w > 0 {
			live[id] = w
			liveTotal += w
		}
	}
	if len(live) == 0 {
		return legis.Fingerprint{GraphVersion: version}, nil
	}
	for id := range live {
		live[id] /= liveTotal
	}

	adj := e.mixAdjacency(nodes, edges)

	// Ask for enough headroom that dropping the seeds still fills top-k.
	items, _ := apprPush(adj, live, e.cfg.Gamma, e.cfg.Epsilon, e.cfg.TopK+len(live))

	neighbors := make([]legis.Neighbor, 0, len(items))
	var captured float64
	for _, item := range items {
		if _, isSeed := live[item.ID]; isSeed {
			continue
		}
		if len(neighbors) == e.cfg.TopK {
			break
		}
		neighbors = append(neighbors, item)
		captured += item.Mass
	}

	return legis.Fingerprint{
		Neighbors:    neighbors,
		Captured:     captured,
		GraphVersion: version,
	}, nil
}

// GetOrComputeAndCache returns the cached fingerprint for seedID when its
// version matches the current graph version, computing, persisting, and
// returning a fresh one otherwise. Persistence failures are logged and
// ignored — the computed fingerprint stays authoritative for this request.
func (e *Engine) GetOrComputeAndCache(ctx context.Context, seedID, corpusID string) (legis.Fingerprint, error) {
	version, err := e.store.CurrentGraphVersion(ctx)
	if err != nil {
		return legis.Fingerprint{}, err
	}

	hits, _, err := e.store.GetFingerprints(ctx, []string{seedID}, version)
	if err != nil {
		return legis.Fingerprint{}, err
	}
	if fp, ok := hits[seedID]; ok {
		return e.filterFingerprint(corpusID, fp), nil
	}

	fp, err := e.ComputeFingerprint(ctx, seedID, corpusID, version)
	if err != nil {
		return legis.Fingerprint{}, err
	}
	if err := e.store.PutFingerprint(ctx, seedID, fp); err != nil {
		slog.Warn("fingerprint cache write failed", "seed", seedID, "err", err)
	}
	return e.filterFingerprint(corpusID, fp), nil
}

// CachedFingerprints fetches the stored fingerprints for seeds at
// expectedVersion. Hits have their neighbour lists filtered by corpus and
// exclusion; stale or absent seeds come back as misses.
func (e *Engine) CachedFingerprints(ctx context.Context, seeds []string, expectedVersion int, corpusID string) (map[string]legis.Fingerprint, []string, error) {
	hits, misses, err := e.store.GetFingerprints(ctx, seeds, expectedVersion)
	if err != nil {
		return nil, nil, err
	}
	filtered := make(map[string]legis.Fingerprint, len(hits))
	for id, fp := range hits {
		filtered[id] = e.filterFingerprint(corpusID, fp)
	}
	return filtered, misses, nil
}

// NormalizeAdjacency row-normalises a pre-weighted adjacency (view mixing
// already applied), adding a self-loop for every node whose row is empty.
// Exposed for the indexer, which builds the global corpus graph with
// per-edge weights the typed-edge form cannot carry.
func (e *Engine) NormalizeAdjacency(weights map[string]map[string]float64, nodes []string) Adjacency {
	for _, node := range nodes {
		if len(weights[node]) == 0 {
			if weights[node] == nil {
				weights[node] = make(map[string]float64, 1)
			}
			weights[node][node] = 1.0
		}
	}
	return Adjacency(rowNormalize(weights))
}

// BaselineFromAdjacency computes the stationary distribution of a normalised
// adjacency over nodes.
func (e *Engine) BaselineFromAdjacency(adj Adjacency, nodes []string) map[string]float64 {
	return powerIteration(adjacency(adj), nodes, e.cfg.Gamma, e.cfg.BaselineIterations)
}

// FingerprintFromAdjacency runs a single-seed APPR over a pre-mixed
// adjacency. Used by the indexer's bulk precompute, where the global
// adjacency is built once and shared across seeds.
func (e *Engine) FingerprintFromAdjacency(adj Adjacency, seedID string, version int) legis.Fingerprint {
	items, _ := apprPush(adjacency(adj), map[string]float64{seedID: 1.0}, e.cfg.Gamma, e.cfg.Epsilon, e.cfg.TopK+1)
	neighbors := make([]legis.Neighbor, 0, len(items))
	var captured float64
	for _, item := range items {
		if item.ID == seedID {
			continue
		}
		if len(neighbors) == e.cfg.TopK {
			break
		}
		neighbors = append(neighbors, item)
		captured += item.Mass
	}
	return legis.Fingerprint{Neighbors: neighbors, Captured: captured, GraphVersion: version}
}

// MixedAdjacency builds the mixed, row-normalised adjacency for the given
// subgraph.
func (e *Engine) MixedAdjacency(nodes []string, edges []graph.TypedEdge) Adjacency {
	return Adjacency(e.mixAdjacency(nodes, edges))
}

// Adjacency is the opaque normalised-adjacency handle shared between the
// engine and the indexer.
type Adjacency adjacency

// filterFingerprint drops neighbours outside corpusID or excluded by policy.
// Captured mass keeps the pre-filter value: it reflects how much of the walk
// the stored neighbour list explains, not what survives filtering.
func (e *Engine) filterFingerprint(corpusID string, fp legis.Fingerprint) legis.Fingerprint {
	kept := make([]legis.Neighbor, 0, len(fp.Neighbors))
	for _, n := range fp.Neighbors {
		if !graphInCorpus(corpusID, n.ID) || e.reg.IsExcluded(corpusID, n.ID) {
			continue
		}
		kept = append(kept, n)
	}
	fp.Neighbors = kept
	return fp
}

// graphInCorpus mirrors the internal-id prefix invariant.
func graphInCorpus(corpusID, id string) bool {
	return len(id) > len(corpusID) && id[:len(corpusID)] == corpusID && id[len(corpusID)] == '_'
}
