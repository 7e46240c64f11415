package graph_test

import (
	"context"
	"testing"

	"github.com/gunba/taxiv/internal/config"
	"github.com/gunba/taxiv/internal/corpus"
	"github.com/gunba/taxiv/internal/graph"
	"github.com/gunba/taxiv/pkg/legis"
	"github.com/gunba/taxiv/pkg/legis/mock"
)

const model = "sentence-transformers/all-MiniLM-L6-v2"

func relatednessConfig() config.RelatednessConfig {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	return cfg.Relatedness
}

func testRegistry() *corpus.Registry {
	return corpus.NewRegistry([]config.CorpusConfig{
		{ID: "ITAA1997", Default: true, ExcludedRefIDs: []string{"ITAA1997:Section:995-1"}},
	})
}

// chainStore builds a citation chain A -> B -> C -> D plus a small hierarchy
// and one shared defined term.
func chainStore() *mock.Store {
	store := mock.NewStore()
	order := func(n int) *int { return &n }

	add := func(local string, ord int) {
		store.AddProvision(legis.Provision{
			RefID: "ITAA1997:Section:" + local, CorpusID: "ITAA1997", Type: legis.KindSection,
			LocalID: local, Title: "Section " + local,
			HierarchyPath:    "ITAA1997.Division_1.Section_" + local,
			ParentInternalID: "ITAA1997_Division_1",
			SiblingOrder:     order(ord),
		})
	}
	store.AddProvision(legis.Provision{
		RefID: "ITAA1997:Division:1", CorpusID: "ITAA1997", Type: legis.KindDivision,
		LocalID: "1", Title: "Division 1", HierarchyPath: "ITAA1997.Division_1",
	})
	add("A", 1)
	add("B", 2)
	add("C", 3)
	add("D", 4)

	ref := func(src, dst string) {
		store.AddReference(legis.Reference{
			SourceInternalID: "ITAA1997_Section_" + src,
			TargetRefID:      "ITAA1997:Section:" + dst,
			TargetInternalID: "ITAA1997_Section_" + dst,
		})
	}
	ref("A", "B")
	ref("B", "C")
	ref("C", "D")

	store.AddTermUsage(legis.DefinedTermUsage{SourceInternalID: "ITAA1997_Section_A", TermText: "income"})
	store.AddTermUsage(legis.DefinedTermUsage{SourceInternalID: "ITAA1997_Section_D", TermText: "income"})
	return store
}

func edgeSet(edges []graph.TypedEdge) map[graph.TypedEdge]int {
	set := make(map[graph.TypedEdge]int, len(edges))
	for _, e := range edges {
		set[e]++
	}
	return set
}

func TestExpand_CitationRadius(t *testing.T) {
	b := graph.NewBuilder(chainStore(), testRegistry(), relatednessConfig(), model)

	nodes, edges, err := b.Expand(context.Background(), []string{"ITAA1997_Section_A"}, "ITAA1997", 1)
	if err != nil {
		t.Fatalf("Expand() error = %v", err)
	}

	inNodes := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		inNodes[n] = true
	}
	// Radius 2 from A reaches B and C via citations; D joins through the
	// hierarchy overlay (same division), not through a third citation hop.
	for _, want := range []string{"ITAA1997_Section_A", "ITAA1997_Section_B", "ITAA1997_Section_C"} {
		if !inNodes[want] {
			t.Errorf("node %s missing", want)
		}
	}

	set := edgeSet(edges)
	if set[graph.TypedEdge{Source: "ITAA1997_Section_A", Target: "ITAA1997_Section_B", View: graph.ViewCitation}] == 0 {
		t.Error("citation edge A->B missing")
	}
	if set[graph.TypedEdge{Source: "ITAA1997_Section_B", Target: "ITAA1997_Section_C", View: graph.ViewCitation}] == 0 {
		t.Error("citation edge B->C missing (second hop)")
	}
	if set[graph.TypedEdge{Source: "ITAA1997_Section_C", Target: "ITAA1997_Section_D", View: graph.ViewCitation}] != 0 {
		t.Error("citation edge C->D present, want BFS stopped after two hops")
	}
}

func TestExpand_HierarchyOverlay(t *testing.T) {
	b := graph.NewBuilder(chainStore(), testRegistry(), relatednessConfig(), model)

	_, edges, err := b.Expand(context.Background(), []string{"ITAA1997_Section_A"}, "ITAA1997", 1)
	if err != nil {
		t.Fatalf("Expand() error = %v", err)
	}
	set := edgeSet(edges)

	parent := "ITAA1997_Division_1"
	if set[graph.TypedEdge{Source: "ITAA1997_Section_A", Target: parent, View: graph.ViewHierarchy}] == 0 {
		t.Error("child->parent hierarchy edge missing")
	}
	if set[graph.TypedEdge{Source: parent, Target: "ITAA1997_Section_A", View: graph.ViewHierarchy}] == 0 {
		t.Error("parent->child hierarchy edge missing")
	}
	// Adjacent siblings by sibling order: A-B, B-C, C-D.
	if set[graph.TypedEdge{Source: "ITAA1997_Section_A", Target: "ITAA1997_Section_B", View: graph.ViewHierarchy}] == 0 {
		t.Error("adjacent sibling edge A-B missing")
	}
	if set[graph.TypedEdge{Source: "ITAA1997_Section_A", Target: "ITAA1997_Section_C", View: graph.ViewHierarchy}] != 0 {
		t.Error("non-adjacent sibling edge A-C present")
	}
}

func TestExpand_TermOverlay(t *testing.T) {
	b := graph.NewBuilder(chainStore(), testRegistry(), relatednessConfig(), model)

	_, edges, err := b.Expand(context.Background(), []string{"ITAA1997_Section_A"}, "ITAA1997", 1)
	if err != nil {
		t.Fatalf("Expand() error = %v", err)
	}
	set := edgeSet(edges)
	if set[graph.TypedEdge{Source: "ITAA1997_Section_A", Target: "ITAA1997_Section_D", View: graph.ViewTerm}] == 0 {
		t.Error("term co-usage edge A-D missing")
	}
	if set[graph.TypedEdge{Source: "ITAA1997_Section_D", Target: "ITAA1997_Section_A", View: graph.ViewTerm}] == 0 {
		t.Error("term co-usage edge D-A missing")
	}
}

func TestExpand_SemanticOverlay(t *testing.T) {
	store := chainStore()
	store.AddEmbedding(legis.EntityKindProvision, "ITAA1997_Section_A", model, []float32{1, 0, 0})
	store.AddEmbedding(legis.EntityKindProvision, "ITAA1997_Section_D", model, []float32{0.9, 0.1, 0})
	b := graph.NewBuilder(store, testRegistry(), relatednessConfig(), model)

	_, edges, err := b.Expand(context.Background(), []string{"ITAA1997_Section_A"}, "ITAA1997", 1)
	if err != nil {
		t.Fatalf("Expand() error = %v", err)
	}
	set := edgeSet(edges)
	if set[graph.TypedEdge{Source: "ITAA1997_Section_A", Target: "ITAA1997_Section_D", View: graph.ViewSemantic}] == 0 {
		t.Error("semantic edge A-D missing")
	}
}

func TestExpand_MissingEmbeddingTolerated(t *testing.T) {
	// No embeddings at all: the seed still gets citation/hierarchy/term
	// edges and no error.
	b := graph.NewBuilder(chainStore(), testRegistry(), relatednessConfig(), model)
	nodes, edges, err := b.Expand(context.Background(), []string{"ITAA1997_Section_A"}, "ITAA1997", 1)
	if err != nil {
		t.Fatalf("Expand() error = %v", err)
	}
	if len(nodes) == 0 || len(edges) == 0 {
		t.Errorf("Expand() = %d nodes, %d edges; want non-empty", len(nodes), len(edges))
	}
	for _, e := range edges {
		if e.View == graph.ViewSemantic {
			t.Errorf("unexpected semantic edge %+v", e)
		}
	}
}

func TestExpand_ExcludedAndForeignSeedsDropped(t *testing.T) {
	store := chainStore()
	store.AddProvision(legis.Provision{
		RefID: "ITAA1997:Section:995-1", CorpusID: "ITAA1997", Type: legis.KindSection,
		LocalID: "995-1", Title: "Definitions", HierarchyPath: "ITAA1997.S995-1",
	})
	b := graph.NewBuilder(store, testRegistry(), relatednessConfig(), model)

	nodes, edges, err := b.Expand(context.Background(),
		[]string{"ITAA1997_Section_995-1", "OTHER_Section_1"}, "ITAA1997", 1)
	if err != nil {
		t.Fatalf("Expand() error = %v", err)
	}
	if len(nodes) != 0 || len(edges) != 0 {
		t.Errorf("Expand() = %d nodes, %d edges; want empties", len(nodes), len(edges))
	}
}

func TestExpand_Deterministic(t *testing.T) {
	b := graph.NewBuilder(chainStore(), testRegistry(), relatednessConfig(), model)

	nodes1, edges1, err := b.Expand(context.Background(), []string{"ITAA1997_Section_A"}, "ITAA1997", 1)
	if err != nil {
		t.Fatalf("Expand() error = %v", err)
	}
	nodes2, edges2, err := b.Expand(context.Background(), []string{"ITAA1997_Section_A"}, "ITAA1997", 1)
	if err != nil {
		t.Fatalf("Expand() error = %v", err)
	}
	if len(nodes1) != len(nodes2) || len(edges1) != len(edges2) {
		t.Fatalf("repeat expansion differs: %d/%d nodes, %d/%d edges",
			len(nodes1), len(nodes2), len(edges1), len(edges2))
	}
	for i := range nodes1 {
		if nodes1[i] != nodes2[i] {
			t.Fatalf("node order differs at %d: %s vs %s", i, nodes1[i], nodes2[i])
		}
	}
	for i := range edges1 {
		if edges1[i] != edges2[i] {
			t.Fatalf("edge order differs at %d: %+v vs %+v", i, edges1[i], edges2[i])
		}
	}
}
