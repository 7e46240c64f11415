// Package indexer builds the ingest-time relatedness artifacts for a corpus:
// the baseline stationary distribution and, optionally, a fingerprint per
// provision. Artifacts are stamped with the next graph version and become
// authoritative only when the version is bumped, which is the last step — an
// interrupted run leaves the previous version's artifacts untouched.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gunba/taxiv/internal/config"
	"github.com/gunba/taxiv/internal/relatedness"
	"github.com/gunba/taxiv/pkg/legis"
)

// Hierarchy edge weights of the global graph.
const (
	weightParentChild     = 1.0
	weightAdjacentSibling = 0.8
)

// IDF clamp bounds for term co-usage edges.
const (
	idfMin = 0.2
	idfMax = 2.0
)

// Indexer runs the batch build.
type Indexer struct {
	store  legis.Store
	engine *relatedness.Engine
	cfg    config.RelatednessConfig

	// Workers bounds the fingerprint precompute parallelism. Defaults to
	// GOMAXPROCS when zero.
	Workers int
}

// New creates an Indexer over store and engine.
func New(store legis.Store, engine *relatedness.Engine, cfg config.RelatednessConfig) *Indexer {
	return &Indexer{store: store, engine: engine, cfg: cfg}
}

// Result summarises one indexing run.
type Result struct {
	CorpusID     string
	Version      int
	Provisions   int
	Edges        int
	Fingerprints int
	Elapsed      time.Duration
}

// Run builds and installs the artifacts for corpusID. When precompute is
// set, a fingerprint is computed for every provision; otherwise fingerprints
// are left to lazy query-time computation.
func (ix *Indexer) Run(ctx context.Context, corpusID string, precompute bool) (*Result, error) {
	start := time.Now()

	provisions, err := ix.store.ListProvisions(ctx, corpusID)
	if err != nil {
		return nil, err
	}
	if len(provisions) == 0 {
		return nil, fmt.Errorf("indexer: corpus %q has no provisions", corpusID)
	}
	references, err := ix.store.ListReferences(ctx, corpusID)
	if err != nil {
		return nil, err
	}
	usages, err := ix.store.ListTermUsages(ctx, corpusID)
	if err != nil {
		return nil, err
	}

	nodes, weights, edgeCount := ix.buildGlobalAdjacency(provisions, references, usages)
	adj := ix.engine.NormalizeAdjacency(weights, nodes)

	pi := ix.engine.BaselineFromAdjacency(adj, nodes)
	var sum float64
	for _, v := range pi {
		sum += v
	}
	if sum <= 0 || math.Abs(sum-1.0) > 1e-6 {
		return nil, fmt.Errorf("indexer: baseline sums to %v: %w", sum, legis.ErrInvariantViolation)
	}

	current, err := ix.store.CurrentGraphVersion(ctx)
	if err != nil {
		return nil, err
	}
	target := current + 1

	if err := ix.store.PutBaseline(ctx, corpusID, pi, target); err != nil {
		return nil, err
	}

	fingerprints := 0
	if precompute {
		fps, err := ix.precomputeFingerprints(ctx, adj, nodes, target)
		if err != nil {
			return nil, err
		}
		if err := ix.store.PutFingerprints(ctx, fps); err != nil {
			return nil, err
		}
		fingerprints = len(fps)
	}

	version, err := ix.store.BumpGraphVersion(ctx)
	if err != nil {
		return nil, err
	}
	if version != target {
		// Another build raced this one; its artifacts win.
		slog.Warn("graph version advanced past target during build",
			"corpus", corpusID, "target", target, "version", version)
	}

	res := &Result{
		CorpusID:     corpusID,
		Version:      version,
		Provisions:   len(provisions),
		Edges:        edgeCount,
		Fingerprints: fingerprints,
		Elapsed:      time.Since(start),
	}
	slog.Info("relatedness index built",
		"corpus", res.CorpusID,
		"version", res.Version,
		"provisions", res.Provisions,
		"edges", res.Edges,
		"fingerprints", res.Fingerprints,
		"elapsed", res.Elapsed,
	)
	return res, nil
}

// buildGlobalAdjacency folds the corpus into a weighted adjacency with the
// citation, hierarchy, and term views pre-mixed by their alpha weights.
// The semantic view stays query-local: it is seed-relative by construction
// and does not contribute to the global baseline.
func (ix *Indexer) buildGlobalAdjacency(
	provisions []legis.Provision,
	references []legis.Reference,
	usages []legis.DefinedTermUsage,
) (nodes []string, weights map[string]map[string]float64, edgeCount int) {
	inSet := make(map[string]struct{}, len(provisions))
	nodes = make([]string, 0, len(provisions))
	for _, p := range provisions {
		inSet[p.InternalID] = struct{}{}
		nodes = append(nodes, p.InternalID)
	}
	sort.Strings(nodes)

	weights = make(map[string]map[string]float64, len(provisions))
	add := func(u, v string, w float64) {
		row, ok := weights[u]
		if !ok {
			row = make(map[string]float64)
			weights[u] = row
		}
		if _, existed := row[v]; !existed {
			edgeCount++
		}
		row[v] += w
	}

	// Citation view: one unit per reference instance.
	for _, r := range references {
		if r.SourceInternalID == "" || r.TargetInternalID == "" || r.SourceInternalID == r.TargetInternalID {
			continue
		}
		if _, ok := inSet[r.SourceInternalID]; !ok {
			continue
		}
		if _, ok := inSet[r.TargetInternalID]; !ok {
			continue
		}
		add(r.SourceInternalID, r.TargetInternalID, ix.cfg.AlphaCitation)
	}

	// Hierarchy view: parent links plus adjacent siblings.
	siblings := make(map[string][]legis.Provision)
	for _, p := range provisions {
		if p.ParentInternalID != "" {
			if _, ok := inSet[p.ParentInternalID]; ok {
				add(p.InternalID, p.ParentInternalID, ix.cfg.AlphaHierarchy*weightParentChild)
				add(p.ParentInternalID, p.InternalID, ix.cfg.AlphaHierarchy*weightParentChild)
			}
		}
		siblings[p.ParentInternalID] = append(siblings[p.ParentInternalID], p)
	}
	for _, group := range siblings {
		sort.SliceStable(group, func(i, j int) bool {
			a, b := group[i].SiblingOrder, group[j].SiblingOrder
			switch {
			case a == nil && b == nil:
				return group[i].InternalID < group[j].InternalID
			case a == nil:
				return false
			case b == nil:
				return true
			case *a != *b:
				return *a < *b
			default:
				return group[i].InternalID < group[j].InternalID
			}
		})
		for i := 0; i+1 < len(group); i++ {
			add(group[i].InternalID, group[i+1].InternalID, ix.cfg.AlphaHierarchy*weightAdjacentSibling)
			add(group[i+1].InternalID, group[i].InternalID, ix.cfg.AlphaHierarchy*weightAdjacentSibling)
		}
	}

	// Term view: complete graphs per term, IDF-damped so ubiquitous terms
	// contribute little.
	termMap := make(map[string][]string)
	termSeen := make(map[string]map[string]struct{})
	for _, u := range usages {
		if u.SourceInternalID == "" || u.TermText == "" {
			continue
		}
		if _, ok := inSet[u.SourceInternalID]; !ok {
			continue
		}
		seen, ok := termSeen[u.TermText]
		if !ok {
			seen = make(map[string]struct{})
			termSeen[u.TermText] = seen
		}
		if _, dup := seen[u.SourceInternalID]; dup {
			continue
		}
		seen[u.SourceInternalID] = struct{}{}
		termMap[u.TermText] = append(termMap[u.TermText], u.SourceInternalID)
	}
	terms := make([]string, 0, len(termMap))
	for t := range termMap {
		terms = append(terms, t)
	}
	sort.Strings(terms)
	for _, term := range terms {
		ids := termMap[term]
		sort.Strings(ids)
		df := float64(len(ids))
		if df < 1 {
			df = 1
		}
		idf := 1.0 / math.Log(1.0+df)
		idf = math.Max(idfMin, math.Min(idfMax, idf))
		for i := 0; i < len(ids); i++ {
			for j := i + 1; j < len(ids); j++ {
				add(ids[i], ids[j], ix.cfg.AlphaTerm*idf)
				add(ids[j], ids[i], ix.cfg.AlphaTerm*idf)
			}
		}
	}

	return nodes, weights, edgeCount
}

// precomputeFingerprints runs one APPR per provision over the shared global
// adjacency, bounded by the worker limit.
func (ix *Indexer) precomputeFingerprints(ctx context.Context, adj relatedness.Adjacency, nodes []string, version int) (map[string]legis.Fingerprint, error) {
	workers := ix.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	var mu sync.Mutex
	fps := make(map[string]legis.Fingerprint, len(nodes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, seed := range nodes {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fp := ix.engine.FingerprintFromAdjacency(adj, seed, version)
			mu.Lock()
			fps[seed] = fp
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return fps, nil
}
