package search

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"
)

// searchAll fans the query out to every configured corpus, then merges the
// per-corpus rankings by URS. Each sub-search asks for the first offset+k
// results of its corpus so the merged window is complete, and runs through
// the normal per-corpus cache.
func (s *Searcher) searchAll(ctx context.Context, query string, k, offset, version int) (*Response, error) {
	corpora := s.reg.IDs()
	responses := make([]*Response, len(corpora))

	g, gctx := errgroup.WithContext(ctx)
	for i, corpusID := range corpora {
		g.Go(func() error {
			resp, err := s.dispatch(gctx, query, k+offset, 0, corpusID)
			if err != nil {
				return err
			}
			responses[i] = resp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Deduplicate by internal id keeping the best URS, then rank globally.
	best := make(map[string]Result)
	debug := Debug{MultiCorpus: true, CorpusIDs: corpora}
	var interp *Interpretation
	for _, resp := range responses {
		for _, r := range resp.Results {
			if prev, ok := best[r.ID]; !ok || r.ScoreURS > prev.ScoreURS {
				best[r.ID] = r
			}
		}
		debug.NumSeeds += resp.Debug.NumSeeds
		if resp.Debug.MassCaptured > debug.MassCaptured {
			debug.MassCaptured = resp.Debug.MassCaptured
		}
		if interp == nil && resp.Debug.NumSeeds > 0 {
			interp = &resp.QueryInterpretation
		}
	}
	if interp == nil && len(responses) > 0 {
		interp = &responses[0].QueryInterpretation
	}

	merged := make([]Result, 0, len(best))
	for _, r := range best {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].ScoreURS != merged[j].ScoreURS {
			return merged[i].ScoreURS > merged[j].ScoreURS
		}
		return merged[i].ID < merged[j].ID
	})

	total := len(merged)
	lo := offset
	if lo > total {
		lo = total
	}
	hi := offset + k
	if hi > total {
		hi = total
	}

	resp := &Response{
		Results:    merged[lo:hi],
		Debug:      debug,
		Pagination: newPagination(offset, k, total),
	}
	if interp != nil {
		resp.QueryInterpretation = *interp
		resp.Parsed = interp.Parsed
	} else {
		resp.QueryInterpretation = Interpretation{
			Provisions:  []string{},
			Definitions: []string{},
			PseudoSeeds: []string{},
		}
	}
	return resp, nil
}
