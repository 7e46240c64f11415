// Package search orchestrates unified provision search: query parsing,
// seeding, fingerprint aggregation, lexical blending, lift scoring against
// the baseline distribution, pagination, and response caching.
package search

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/gunba/taxiv/internal/config"
	"github.com/gunba/taxiv/internal/corpus"
	"github.com/gunba/taxiv/internal/lexical"
	"github.com/gunba/taxiv/internal/observe"
	"github.com/gunba/taxiv/internal/queryparse"
	"github.com/gunba/taxiv/internal/relatedness"
	"github.com/gunba/taxiv/pkg/legis"
)

// Pagination and blending knobs.
const (
	// DefaultK is the page size when the caller passes none.
	DefaultK = 10

	// MaxK caps the page size.
	MaxK = 100

	// seedSelfBoost is the fraction of a seed's weight added to its own
	// related mass so explicit seeds stay in the candidate pool.
	seedSelfBoost = 0.05

	// Lexical-fallback URS values. The 100/80 split is a policy knob kept
	// from the original ranking behaviour.
	fallbackTopURS  = 100
	fallbackRestURS = 80
)

// Deps is the slice of the entity store the searcher needs directly.
type Deps interface {
	legis.ProvisionReader
	legis.ArtifactStore
}

// Searcher runs unified queries over one corpus or all of them. Safe for
// concurrent use; the response cache is shared across requests.
type Searcher struct {
	store   Deps
	parser  *queryparse.Parser
	lex     *lexical.Retriever
	engine  *relatedness.Engine
	reg     *corpus.Registry
	cfg     config.SearchConfig
	metrics *observe.Metrics
	cache   *responseCache
}

// NewSearcher wires a Searcher. metrics may be nil.
func NewSearcher(store Deps, parser *queryparse.Parser, lex *lexical.Retriever, engine *relatedness.Engine, reg *corpus.Registry, cfg config.SearchConfig, metrics *observe.Metrics) *Searcher {
	return &Searcher{
		store:   store,
		parser:  parser,
		lex:     lex,
		engine:  engine,
		reg:     reg,
		cfg:     cfg,
		metrics: metrics,
		cache:   newResponseCache(cfg.CacheCapacity, time.Duration(cfg.CacheTTLSeconds)*time.Second),
	}
}

// Search runs a unified query. corpusID selects one corpus or the "*"
// wildcard; unknown ids fall back to the default corpus. k defaults to
// [DefaultK] when non-positive and must not exceed [MaxK].
func (s *Searcher) Search(ctx context.Context, query string, k, offset int, corpusID string) (*Response, error) {
	if k <= 0 {
		k = DefaultK
	}
	if k > MaxK {
		return nil, fmt.Errorf("search: page size %d exceeds %d: %w", k, MaxK, legis.ErrInvalidQuery)
	}
	if offset < 0 {
		return nil, fmt.Errorf("search: negative offset %d: %w", offset, legis.ErrInvalidQuery)
	}

	corpusID = s.reg.Resolve(corpusID)

	if strings.TrimSpace(query) == "" {
		return emptyResponse(k, offset, ""), nil
	}

	start := time.Now()
	resp, err := s.dispatch(ctx, query, k, offset, corpusID)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	s.metrics.RecordSearch(ctx, time.Since(start).Seconds(), corpusID, outcome)
	return resp, err
}

func (s *Searcher) dispatch(ctx context.Context, query string, k, offset int, corpusID string) (*Response, error) {
	version, err := s.store.CurrentGraphVersion(ctx)
	if err != nil {
		return nil, err
	}

	key := s.cache.key(query, k, offset, version, corpusID)
	if resp, ok := s.cache.get(key); ok {
		s.metrics.RecordCacheLookup(ctx, corpusID, true)
		return resp, nil
	}
	s.metrics.RecordCacheLookup(ctx, corpusID, false)

	var resp *Response
	if corpusID == corpus.AllCorpora {
		resp, err = s.searchAll(ctx, query, k, offset, version)
	} else {
		resp, err = s.searchCorpus(ctx, query, k, offset, corpusID, version)
	}
	if err != nil {
		return nil, err
	}
	s.cache.put(key, resp)
	return resp, nil
}

// searchCorpus is the single-corpus procedure.
func (s *Searcher) searchCorpus(ctx context.Context, query string, k, offset int, corpusID string, version int) (*Response, error) {
	interp, err := s.parser.Parse(ctx, corpusID, query)
	if err != nil {
		return nil, err
	}

	out := Interpretation{
		Provisions:  interp.Provisions,
		Definitions: interp.Definitions,
		Keywords:    interp.Keywords,
		Parsed:      interp.Parsed,
		PseudoSeeds: []string{},
	}

	// Explicit seeds, exclusion- and corpus-filtered. The interpretation
	// above still reports the raw ids.
	seedWeights := make(map[string]float64)
	for _, id := range interp.Provisions {
		if s.admit(corpusID, id) {
			seedWeights[id] += 1.0
		}
	}
	for _, id := range interp.Definitions {
		if s.admit(corpusID, id) {
			seedWeights[id] += 1.0
		}
	}

	lexScores, err := s.lex.Candidates(ctx, corpusID, query, interp.Keywords, s.cfg.LexicalTop)
	if err != nil {
		return nil, err
	}

	// Pseudo seeds from the lexical top when nothing explicit survived.
	if len(seedWeights) == 0 && len(lexScores) > 0 {
		seedWeights = s.pseudoSeeds(lexScores)
		out.PseudoSeeds = sortedSeedIDs(seedWeights)
	}

	if len(seedWeights) == 0 {
		resp := emptyResponse(k, offset, "No lexical or exact seeds")
		resp.QueryInterpretation = out
		resp.Parsed = out.Parsed
		return resp, nil
	}

	related, captured, err := s.aggregateFingerprints(ctx, seedWeights, corpusID, version)
	if err != nil {
		return nil, err
	}

	debug := Debug{
		MassCaptured: round4(captured),
		NumSeeds:     len(seedWeights),
	}

	if len(related) == 0 {
		resp := s.lexicalFallback(ctx, lexScores, k, offset, corpusID)
		resp.QueryInterpretation = out
		resp.Parsed = out.Parsed
		resp.Debug.NumSeeds = debug.NumSeeds
		return resp, nil
	}

	ranked, urs, err := s.scoreCandidates(ctx, related, lexScores, corpusID)
	if err != nil {
		return nil, err
	}

	results, err := s.enrich(ctx, corpusID, window(ranked, offset, k), urs)
	if err != nil {
		return nil, err
	}

	return &Response{
		QueryInterpretation: out,
		Results:             results,
		Debug:               debug,
		Pagination:          newPagination(offset, k, len(ranked)),
		Parsed:              out.Parsed,
	}, nil
}

// pseudoSeeds promotes the lexical top into a seed distribution: scores are
// min-max scaled to 0..100, then normalised to sum to 1.
func (s *Searcher) pseudoSeeds(lexScores map[string]float64) map[string]float64 {
	type cand struct {
		id    string
		score float64
	}
	cands := make([]cand, 0, len(lexScores))
	for id, score := range lexScores {
		cands = append(cands, cand{id, score})
	}
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].score != cands[j].score {
			return cands[i].score > cands[j].score
		}
		return cands[i].id < cands[j].id
	})
	if len(cands) > s.cfg.SeedTop {
		cands = cands[:s.cfg.SeedTop]
	}

	top := make(map[string]float64, len(cands))
	for _, c := range cands {
		top[c.id] = c.score
	}
	scaled := minMaxScale(top)

	var total float64
	for _, v := range scaled {
		total += v
	}
	if total <= 0 {
		// Degenerate all-equal page: fall back to uniform weights.
		uniform := 1.0 / float64(len(scaled))
		for id := range scaled {
			scaled[id] = uniform
		}
		return scaled
	}
	for id := range scaled {
		scaled[id] /= total
	}
	return scaled
}

// aggregateFingerprints folds per-seed fingerprints into the related-mass
// map. Cached fingerprints are used when their version matches; misses above
// the multi threshold run as one combined APPR, below it they are computed
// and cached per seed. A seed whose fingerprint produced neighbours receives
// the self-boost regardless of which path served it.
func (s *Searcher) aggregateFingerprints(ctx context.Context, seedWeights map[string]float64, corpusID string, version int) (map[string]float64, float64, error) {
	related := make(map[string]float64)
	var captured float64

	seedIDs := sortedSeedIDs(seedWeights)
	hits, misses, err := s.engine.CachedFingerprints(ctx, seedIDs, version, corpusID)
	if err != nil {
		return nil, 0, err
	}

	boost := func(seed string) {
		if w := seedWeights[seed]; w > 0 {
			related[seed] += w * seedSelfBoost
		}
	}

	for _, seed := range seedIDs {
		fp, ok := hits[seed]
		if !ok {
			continue
		}
		w := seedWeights[seed]
		for _, n := range fp.Neighbors {
			related[n.ID] += w * n.Mass
		}
		captured += w * fp.Captured
		if len(fp.Neighbors) > 0 {
			boost(seed)
		}
	}

	switch {
	case len(misses) == 0:
		// Nothing left to compute.

	case len(misses) > s.cfg.SeedMultiThreshold:
		missWeights := make(map[string]float64, len(misses))
		var sum float64
		for _, seed := range misses {
			missWeights[seed] = seedWeights[seed]
			sum += seedWeights[seed]
		}
		start := time.Now()
		fp, err := s.engine.ComputeFingerprintMulti(ctx, missWeights, corpusID, version)
		if err != nil {
			return nil, 0, err
		}
		s.metrics.RecordFingerprint(ctx, time.Since(start).Seconds(), "multi")
		for _, n := range fp.Neighbors {
			related[n.ID] += sum * n.Mass
		}
		captured += sum * fp.Captured
		if len(fp.Neighbors) > 0 {
			for _, seed := range misses {
				boost(seed)
			}
		}

	default:
		sort.Strings(misses)
		for _, seed := range misses {
			start := time.Now()
			fp, err := s.engine.GetOrComputeAndCache(ctx, seed, corpusID)
			if err != nil {
				return nil, 0, err
			}
			s.metrics.RecordFingerprint(ctx, time.Since(start).Seconds(), "single")
			w := seedWeights[seed]
			for _, n := range fp.Neighbors {
				related[n.ID] += w * n.Mass
			}
			captured += w * fp.Captured
			if len(fp.Neighbors) > 0 {
				boost(seed)
			}
		}
	}

	return related, captured, nil
}

// scoreCandidates blends the normalised graph lift with the scaled lexical
// scores and ranks the result.
func (s *Searcher) scoreCandidates(ctx context.Context, related, lexScores map[string]float64, corpusID string) ([]scored, map[string]int, error) {
	var totalMass float64
	for id, mass := range related {
		if s.reg.IsExcluded(corpusID, id) {
			delete(related, id)
			continue
		}
		totalMass += mass
	}
	if totalMass <= 0 {
		totalMass = 1.0
	}

	candidates := make([]string, 0, len(related))
	graphNorm := make(map[string]float64, len(related))
	for id, mass := range related {
		graphNorm[id] = mass / totalMass
		candidates = append(candidates, id)
	}
	sort.Strings(candidates)

	baseline, err := s.store.GetBaseline(ctx, candidates)
	if err != nil {
		return nil, nil, err
	}

	graphRaw := make(map[string]float64, len(candidates))
	lexOver := make(map[string]float64, len(candidates))
	for _, id := range candidates {
		graphRaw[id] = graphLift(graphNorm[id], baseline[id])
		lexOver[id] = lexScores[id]
	}

	graphScaled := minMaxScale(graphRaw)
	lexScaled := minMaxScale(lexOver)

	composite := make(map[string]float64, len(candidates))
	for _, id := range candidates {
		composite[id] = s.cfg.WeightGraph*(graphScaled[id]/100.0) +
			s.cfg.WeightLexical*(lexScaled[id]/100.0)
	}

	ranked := rankComposite(composite)
	return ranked, ursScores(ranked), nil
}

// lexicalFallback serves a page straight from the lexical candidates when
// the graph produced no signal.
func (s *Searcher) lexicalFallback(ctx context.Context, lexScores map[string]float64, k, offset int, corpusID string) *Response {
	type cand struct {
		id    string
		score float64
	}
	cands := make([]cand, 0, len(lexScores))
	for id, score := range lexScores {
		cands = append(cands, cand{id, score})
	}
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].score != cands[j].score {
			return cands[i].score > cands[j].score
		}
		return cands[i].id < cands[j].id
	})

	total := len(cands)
	var page []scored
	urs := make(map[string]int)
	for rank := offset; rank < total && rank < offset+k; rank++ {
		id := cands[rank].id
		page = append(page, scored{id: id})
		if rank == 0 {
			urs[id] = fallbackTopURS
		} else {
			urs[id] = fallbackRestURS
		}
	}

	results, err := s.enrich(ctx, corpusID, page, urs)
	if err != nil {
		results = []Result{}
	}

	return &Response{
		Results: results,
		Debug: Debug{
			Note: "Graph produced no neighbors; lexical-only page.",
		},
		Pagination: newPagination(offset, k, total),
	}
}

// enrich resolves the ranked window into full result rows, preserving order.
func (s *Searcher) enrich(ctx context.Context, corpusID string, page []scored, urs map[string]int) ([]Result, error) {
	ids := make([]string, len(page))
	for i, r := range page {
		ids[i] = r.id
	}
	lites, err := s.store.ScanCandidates(ctx, corpusID, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]legis.ProvisionLite, len(lites))
	for _, l := range lites {
		byID[l.InternalID] = l
	}

	results := make([]Result, 0, len(page))
	for _, r := range page {
		lite, ok := byID[r.id]
		if !ok {
			continue
		}
		results = append(results, Result{
			ID:             lite.InternalID,
			CorpusID:       corpusID,
			RefID:          lite.RefID,
			Title:          lite.Title,
			Type:           lite.Type,
			ScoreURS:       urs[r.id],
			ContentSnippet: Snippet(lite.ContentMD),
		})
	}
	return results, nil
}

// admit applies the corpus-membership and exclusion filters to seed ids.
func (s *Searcher) admit(corpusID, id string) bool {
	return strings.HasPrefix(id, corpusID+"_") && !s.reg.IsExcluded(corpusID, id)
}

func emptyResponse(k, offset int, note string) *Response {
	return &Response{
		QueryInterpretation: Interpretation{
			Provisions:  []string{},
			Definitions: []string{},
			PseudoSeeds: []string{},
		},
		Results:    []Result{},
		Debug:      Debug{Note: note},
		Pagination: newPagination(offset, k, 0),
	}
}

func window(ranked []scored, offset, k int) []scored {
	if offset >= len(ranked) {
		return nil
	}
	end := offset + k
	if end > len(ranked) {
		end = len(ranked)
	}
	return ranked[offset:end]
}

func sortedSeedIDs(weights map[string]float64) []string {
	ids := make([]string, 0, len(weights))
	for id := range weights {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
