// Package lexical produces bounded sets of full-text candidates for the
// unified search blend. It combines PostgreSQL ts_rank and trigram
// similarity with a relaxed OR-tsquery fallback so that near-miss phrasings
// still surface candidates.
package lexical

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/gunba/taxiv/internal/corpus"
	"github.com/gunba/taxiv/pkg/legis"
)

// Scoring and candidate-set knobs.
const (
	// TSQueryOrMaxTerms caps the relaxed OR-tsquery at the most distinctive
	// lexemes of the query.
	TSQueryOrMaxTerms = 8

	// TrigramMatchFloor is the minimum trigram similarity that admits a row
	// on its own.
	TrigramMatchFloor = 0.35

	// weightTS and weightTrigram blend the two scores per candidate.
	weightTS      = 0.7
	weightTrigram = 0.3
)

var wordRE = regexp.MustCompile(`[0-9A-Za-z\-]+`)

// Retriever runs lexical candidate queries against the store, filtered by
// the exclusion policy.
type Retriever struct {
	store legis.LexicalSearcher
	reg   *corpus.Registry
}

// NewRetriever creates a Retriever over store and reg.
func NewRetriever(store legis.LexicalSearcher, reg *corpus.Registry) *Retriever {
	return &Retriever{store: store, reg: reg}
}

// Candidates returns up to limit provisions scored by the blended full-text
// and trigram rank. Scores are non-negative; excluded provisions are dropped.
// An empty query yields an empty map, never an error.
func (r *Retriever) Candidates(ctx context.Context, corpusID, raw, normalized string, limit int) (map[string]float64, error) {
	if strings.TrimSpace(normalized) == "" {
		return map[string]float64{}, nil
	}

	orTerms := OrTerms(normalized, TSQueryOrMaxTerms)
	hits, err := r.store.LexicalQuery(ctx, corpusID, normalized, raw, orTerms, TrigramMatchFloor, limit)
	if err != nil {
		return nil, err
	}

	scores := make(map[string]float64, len(hits))
	for _, h := range hits {
		if r.reg.IsExcluded(corpusID, h.InternalID) {
			continue
		}
		score := h.TSScore*weightTS + h.TriScore*weightTrigram
		if score < 0 {
			score = 0
		}
		if prev, ok := scores[h.InternalID]; !ok || score > prev {
			scores[h.InternalID] = score
		}
	}
	return scores, nil
}

// OrTerms selects up to maxTerms distinctive lexemes for the relaxed
// OR-tsquery: longest first, original order breaking ties, de-duplicated
// case-insensitively, single-character tokens dropped.
func OrTerms(normalized string, maxTerms int) []string {
	words := wordRE.FindAllString(normalized, -1)

	type cand struct {
		word string
		pos  int
	}
	var cands []cand
	seen := make(map[string]struct{})
	for i, w := range words {
		lower := strings.ToLower(w)
		if len(lower) < 2 {
			continue
		}
		if _, dup := seen[lower]; dup {
			continue
		}
		seen[lower] = struct{}{}
		cands = append(cands, cand{word: lower, pos: i})
	}

	sort.SliceStable(cands, func(i, j int) bool {
		if len(cands[i].word) != len(cands[j].word) {
			return len(cands[i].word) > len(cands[j].word)
		}
		return cands[i].pos < cands[j].pos
	})

	if len(cands) > maxTerms {
		cands = cands[:maxTerms]
	}
	terms := make([]string, len(cands))
	for i, c := range cands {
		terms[i] = c.word
	}
	return terms
}
