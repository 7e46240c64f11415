package search

import "github.com/gunba/taxiv/internal/queryparse"

// Interpretation is the query reading echoed back to the caller. Explicitly
// named ids are reported even when exclusion later drops them from seeding.
type Interpretation struct {
	Provisions  []string                  `json:"provisions"`
	Definitions []string                  `json:"definitions"`
	Keywords    string                    `json:"keywords"`
	Parsed      *queryparse.FlexibleToken `json:"parsed"`

	// PseudoSeeds lists the lexical candidates promoted to seeds. Non-empty
	// only when no named provision or definition survived the corpus and
	// exclusion filters.
	PseudoSeeds []string `json:"pseudo_seeds"`
}

// Result is one ranked provision.
type Result struct {
	ID             string `json:"id"`
	CorpusID       string `json:"corpus_id"`
	RefID          string `json:"ref_id"`
	Title          string `json:"title"`
	Type           string `json:"type"`
	ScoreURS       int    `json:"score_urs"`
	ContentSnippet string `json:"content_snippet"`
}

// Debug carries diagnostic values that accompany every successful response.
type Debug struct {
	MassCaptured float64  `json:"mass_captured"`
	NumSeeds     int      `json:"num_seeds"`
	Note         string   `json:"note,omitempty"`
	MultiCorpus  bool     `json:"multi_corpus,omitempty"`
	CorpusIDs    []string `json:"corpus_ids,omitempty"`
}

// Pagination describes the returned window. NextOffset is nil on the last
// page.
type Pagination struct {
	Offset     int  `json:"offset"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	NextOffset *int `json:"next_offset"`
}

// Response is the unified-search payload.
type Response struct {
	QueryInterpretation Interpretation            `json:"query_interpretation"`
	Results             []Result                  `json:"results"`
	Debug               Debug                     `json:"debug"`
	Pagination          Pagination                `json:"pagination"`
	Parsed              *queryparse.FlexibleToken `json:"parsed"`
}

// newPagination assembles the window descriptor.
func newPagination(offset, limit, total int) Pagination {
	p := Pagination{Offset: offset, Limit: limit, Total: total}
	if next := offset + limit; next < total {
		p.NextOffset = &next
	}
	return p
}
