// Package mcpserver exposes the search engine over the Model Context
// Protocol: a semantic_search tool returning the unified search payload and
// a provision_detail tool returning the full provision view. Tool outputs
// are structured JSON; presentation is the client's concern.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/gunba/taxiv/internal/provision"
	"github.com/gunba/taxiv/internal/resilience"
	"github.com/gunba/taxiv/internal/search"
	"github.com/gunba/taxiv/pkg/legis"
)

// instructions is the server-level usage guidance surfaced to MCP clients.
const instructions = `Taxiv legislation search.

Tools:
- semantic_search(query, k, offset, corpus_id): unified relatedness search.
  Prefer explicit identifiers (e.g. "s 6-5 ordinary income") and keep k
  small (10-25). Pass corpus_id "*" to search every corpus.
- provision_detail(internal_id, ...): one provision with content,
  breadcrumbs, children, references, and the definitions it uses.

Start with semantic_search, then drill into interesting internal_ids.`

// SearchArgs is the semantic_search tool input.
type SearchArgs struct {
	Query    string `json:"query" jsonschema:"the search query"`
	K        int    `json:"k,omitempty" jsonschema:"page size, default 10, max 100"`
	Offset   int    `json:"offset,omitempty" jsonschema:"pagination offset"`
	CorpusID string `json:"corpus_id,omitempty" jsonschema:"corpus id or * for all"`
}

// DetailArgs is the provision_detail tool input.
type DetailArgs struct {
	InternalID         string   `json:"internal_id" jsonschema:"internal id or citation token"`
	IncludeBreadcrumbs bool     `json:"include_breadcrumbs,omitempty"`
	IncludeChildren    bool     `json:"include_children,omitempty"`
	IncludeDefinitions bool     `json:"include_definitions,omitempty"`
	IncludeReferences  *bool    `json:"include_references,omitempty" jsonschema:"default true"`
	Fields             []string `json:"fields,omitempty"`
}

// Server serves the two Taxiv tools over MCP.
type Server struct {
	searcher *search.Searcher
	details  *provision.Service
	breaker  *resilience.Breaker
	retry    resilience.RetryConfig
	mcp      *mcp.Server
}

// New wires a Server around the search and detail services.
func New(searcher *search.Searcher, details *provision.Service, version string) *Server {
	s := &Server{
		searcher: searcher,
		details:  details,
		breaker:  resilience.NewBreaker(resilience.BreakerConfig{Name: "entity-store"}),
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{Name: "taxiv", Version: version},
		&mcp.ServerOptions{Instructions: instructions},
	)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "semantic_search",
		Description: "Run unified relatedness search over the legislation corpus. Returns ranked provision headers with URS scores.",
	}, s.handleSearch)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "provision_detail",
		Description: "Fetch one provision: content, hierarchy, references, and definitions used.",
	}, s.handleDetail)

	return s
}

// RunStdio serves over stdio until ctx is cancelled.
func (s *Server) RunStdio(ctx context.Context) error {
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

// Handler returns the Streamable HTTP handler for serving over TCP.
func (s *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return s.mcp }, nil)
}

func (s *Server) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, args SearchArgs) (*mcp.CallToolResult, *search.Response, error) {
	resp, err := resilience.RetryResult(ctx, s.retry, func() (*search.Response, error) {
		var out *search.Response
		err := s.breaker.Do(func() error {
			var innerErr error
			out, innerErr = s.searcher.Search(ctx, args.Query, args.K, args.Offset, args.CorpusID)
			return innerErr
		})
		return out, err
	})
	if err != nil {
		return nil, nil, userError(err)
	}
	return nil, resp, nil
}

func (s *Server) handleDetail(ctx context.Context, _ *mcp.CallToolRequest, args DetailArgs) (*mcp.CallToolResult, *provision.Detail, error) {
	if args.InternalID == "" {
		return nil, nil, fmt.Errorf("internal_id must not be empty")
	}
	opts := provision.Options{
		IncludeBreadcrumbs: args.IncludeBreadcrumbs,
		IncludeChildren:    args.IncludeChildren,
		IncludeDefinitions: args.IncludeDefinitions,
		ExcludeReferences:  args.IncludeReferences != nil && !*args.IncludeReferences,
		Fields:             args.Fields,
	}
	detail, err := resilience.RetryResult(ctx, s.retry, func() (*provision.Detail, error) {
		var out *provision.Detail
		err := s.breaker.Do(func() error {
			var innerErr error
			out, innerErr = s.details.Get(ctx, args.InternalID, opts)
			return innerErr
		})
		return out, err
	})
	if err != nil {
		return nil, nil, userError(err)
	}
	return nil, detail, nil
}

// userError reduces internal failures to the user-visible vocabulary.
// Invariant violations and unclassified errors surface as a generic retry
// hint; the details stay in the server log.
func userError(err error) error {
	switch {
	case errors.Is(err, legis.ErrNotFound):
		return errors.New("not found")
	case errors.Is(err, legis.ErrInvalidQuery):
		return err
	case errors.Is(err, legis.ErrDeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		return errors.New("deadline exceeded")
	case errors.Is(err, legis.ErrStoreUnavailable), errors.Is(err, resilience.ErrOpen):
		return errors.New("temporary error, please retry")
	default:
		return errors.New("temporary error, please retry")
	}
}
