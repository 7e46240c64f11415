package indexer_test

import (
	"context"
	"math"
	"testing"

	"github.com/gunba/taxiv/internal/config"
	"github.com/gunba/taxiv/internal/corpus"
	"github.com/gunba/taxiv/internal/graph"
	"github.com/gunba/taxiv/internal/indexer"
	"github.com/gunba/taxiv/internal/relatedness"
	"github.com/gunba/taxiv/pkg/legis"
	"github.com/gunba/taxiv/pkg/legis/mock"
)

const model = "sentence-transformers/all-MiniLM-L6-v2"

// tinyCorpus is the baseline sanity fixture: five provisions, three citation
// edges, one hierarchy tree.
func tinyCorpus() (*mock.Store, []string) {
	store := mock.NewStore()
	order := func(n int) *int { return &n }

	store.AddProvision(legis.Provision{
		RefID: "ACT:Act:ACT", CorpusID: "ACT", Type: legis.KindAct,
		LocalID: "ACT", Title: "The Act", HierarchyPath: "ACT", Level: 0,
	})
	locals := []string{"1-1", "1-2", "1-3", "1-4"}
	for i, local := range locals {
		store.AddProvision(legis.Provision{
			RefID: "ACT:Section:" + local, CorpusID: "ACT", Type: legis.KindSection,
			LocalID: local, Title: "Section " + local,
			HierarchyPath:    "ACT.Section_" + local,
			ParentInternalID: "ACT_Act_ACT",
			SiblingOrder:     order(i + 1),
		})
	}

	// 1-2, 1-3, and 1-4 all cite the hub 1-1.
	for _, src := range []string{"1-2", "1-3", "1-4"} {
		store.AddReference(legis.Reference{
			SourceInternalID: "ACT_Section_" + src,
			TargetRefID:      "ACT:Section:1-1",
			TargetInternalID: "ACT_Section_1-1",
		})
	}

	ids := []string{"ACT_Act_ACT"}
	for _, local := range locals {
		ids = append(ids, "ACT_Section_"+local)
	}
	return store, ids
}

func newIndexer(store *mock.Store) *indexer.Indexer {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	reg := corpus.NewRegistry([]config.CorpusConfig{{ID: "ACT", Default: true}})
	builder := graph.NewBuilder(store, reg, cfg.Relatedness, model)
	engine := relatedness.NewEngine(builder, store, reg, cfg.Relatedness)
	return indexer.New(store, engine, cfg.Relatedness)
}

func TestRun_BaselineSanity(t *testing.T) {
	store, ids := tinyCorpus()
	ix := newIndexer(store)
	ctx := context.Background()

	res, err := ix.Run(ctx, "ACT", false)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Version != 2 {
		t.Errorf("Version = %d, want 2 after first build", res.Version)
	}
	if res.Provisions != 5 {
		t.Errorf("Provisions = %d, want 5", res.Provisions)
	}

	pi, err := store.GetBaseline(ctx, ids)
	if err != nil {
		t.Fatalf("GetBaseline() error = %v", err)
	}
	var sum float64
	for _, id := range ids {
		if pi[id] < 0 {
			t.Errorf("pi[%s] = %v, want >= 0", id, pi[id])
		}
		sum += pi[id]
	}
	if math.Abs(sum-1.0) > 1e-9 {
		t.Errorf("sum(pi) = %v, want 1 ± 1e-9", sum)
	}

	// The citation hub outranks a section with no incoming citations.
	if pi["ACT_Section_1-1"] <= pi["ACT_Section_1-4"] {
		t.Errorf("pi[hub] = %v <= pi[leaf] = %v, want hub larger",
			pi["ACT_Section_1-1"], pi["ACT_Section_1-4"])
	}
}

func TestRun_PrecomputesFingerprints(t *testing.T) {
	store, ids := tinyCorpus()
	ix := newIndexer(store)
	ctx := context.Background()

	res, err := ix.Run(ctx, "ACT", true)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Fingerprints != len(ids) {
		t.Errorf("Fingerprints = %d, want %d", res.Fingerprints, len(ids))
	}

	hits, missing, err := store.GetFingerprints(ctx, ids, res.Version)
	if err != nil {
		t.Fatalf("GetFingerprints() error = %v", err)
	}
	if len(missing) != 0 {
		t.Errorf("missing = %v, want all fingerprints stored at version %d", missing, res.Version)
	}
	for id, fp := range hits {
		if fp.Captured < 0 || fp.Captured > 1 {
			t.Errorf("Captured[%s] = %v, want in [0, 1]", id, fp.Captured)
		}
		for _, n := range fp.Neighbors {
			if n.ID == id {
				t.Errorf("seed %s present in its own neighbor list", id)
			}
		}
		for i := 1; i < len(fp.Neighbors); i++ {
			if fp.Neighbors[i-1].Mass < fp.Neighbors[i].Mass {
				t.Errorf("neighbors of %s not sorted by mass desc", id)
			}
		}
	}
}

func TestRun_VersionBumpIsLast(t *testing.T) {
	store, _ := tinyCorpus()
	ix := newIndexer(store)
	ctx := context.Background()

	before, err := store.CurrentGraphVersion(ctx)
	if err != nil {
		t.Fatalf("CurrentGraphVersion() error = %v", err)
	}

	res, err := ix.Run(ctx, "ACT", true)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Version != before+1 {
		t.Errorf("Version = %d, want %d", res.Version, before+1)
	}

	// Artifacts are stamped with the bumped version, so fingerprints that
	// existed before the build are invisible at the new version.
	after, err := store.CurrentGraphVersion(ctx)
	if err != nil {
		t.Fatalf("CurrentGraphVersion() error = %v", err)
	}
	if after != res.Version {
		t.Errorf("current version = %d, want %d", after, res.Version)
	}
}

func TestRun_EmptyCorpusRejected(t *testing.T) {
	ix := newIndexer(mock.NewStore())
	if _, err := ix.Run(context.Background(), "ACT", false); err == nil {
		t.Error("Run() on empty corpus succeeded, want error")
	}
}
