// Command taxiv-index runs the ingest-time relatedness build for one corpus
// (or all of them): embedding backfill, baseline distribution, optional
// fingerprint precompute, and the atomic graph-version bump that makes the
// new artifacts authoritative.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gunba/taxiv/internal/config"
	"github.com/gunba/taxiv/internal/corpus"
	"github.com/gunba/taxiv/internal/embed"
	"github.com/gunba/taxiv/internal/graph"
	"github.com/gunba/taxiv/internal/indexer"
	"github.com/gunba/taxiv/internal/relatedness"
	"github.com/gunba/taxiv/pkg/legis/postgres"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	corpusID := flag.String("corpus", "", "corpus to index; empty indexes every configured corpus")
	precompute := flag.Bool("precompute", false, "precompute a fingerprint per provision")
	backfill := flag.Bool("embed", false, "backfill missing provision embeddings before indexing")
	workers := flag.Int("workers", 0, "fingerprint precompute parallelism (default GOMAXPROCS)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "taxiv-index: %v\n", err)
		return 1
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := postgres.NewStore(ctx, cfg.Database.DSN, cfg.Embeddings.Dim)
	if err != nil {
		slog.Error("failed to open store", "err", err)
		return 1
	}
	defer store.Close()

	reg := corpus.NewRegistry(cfg.Corpora)
	builder := graph.NewBuilder(store, reg, cfg.Relatedness, cfg.Embeddings.Model)
	engine := relatedness.NewEngine(builder, store, reg, cfg.Relatedness)
	ix := indexer.New(store, engine, cfg.Relatedness)
	ix.Workers = *workers

	targets := reg.IDs()
	if *corpusID != "" {
		if !reg.IsKnown(*corpusID) {
			slog.Error("unknown corpus", "corpus", *corpusID)
			return 1
		}
		targets = []string{*corpusID}
	}

	if *backfill {
		embedder, err := embed.NewOpenAI(cfg.Embeddings.APIKey, cfg.Embeddings.Model, cfg.Embeddings.Dim)
		if err != nil {
			slog.Error("failed to build embedder", "err", err)
			return 1
		}
		manager := embed.NewManager(store, embedder)
		for _, target := range targets {
			if _, err := manager.BackfillCorpus(ctx, target); err != nil {
				slog.Error("embedding backfill failed", "corpus", target, "err", err)
				return 1
			}
		}
	}

	for _, target := range targets {
		res, err := ix.Run(ctx, target, *precompute)
		if err != nil {
			slog.Error("index build failed", "corpus", target, "err", err)
			return 1
		}
		fmt.Printf("%s: version %d, %d provisions, %d edges, %d fingerprints (%s)\n",
			res.CorpusID, res.Version, res.Provisions, res.Edges, res.Fingerprints, res.Elapsed)
	}
	return 0
}
