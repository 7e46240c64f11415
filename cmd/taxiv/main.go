// Command taxiv serves the legislation search engine over the Model Context
// Protocol, either on stdio or as a Streamable HTTP endpoint.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gunba/taxiv/internal/config"
	"github.com/gunba/taxiv/internal/corpus"
	"github.com/gunba/taxiv/internal/graph"
	"github.com/gunba/taxiv/internal/health"
	"github.com/gunba/taxiv/internal/lexical"
	"github.com/gunba/taxiv/internal/mcpserver"
	"github.com/gunba/taxiv/internal/observe"
	"github.com/gunba/taxiv/internal/provision"
	"github.com/gunba/taxiv/internal/queryparse"
	"github.com/gunba/taxiv/internal/relatedness"
	"github.com/gunba/taxiv/internal/search"
	"github.com/gunba/taxiv/pkg/legis/postgres"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	stdio := flag.Bool("stdio", false, "serve MCP over stdio instead of HTTP")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "taxiv: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "taxiv: %v\n", err)
		}
		return 1
	}

	logger := newLogger(cfg.Server.LogLevel, *stdio)
	slog.SetDefault(logger)

	slog.Info("taxiv starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"corpora", len(cfg.Corpora),
		"version", version,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownMetrics, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "taxiv",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownMetrics(shutdownCtx); err != nil {
			slog.Error("telemetry shutdown error", "err", err)
		}
	}()

	// ── Storage ───────────────────────────────────────────────────────────────
	store, err := postgres.NewStore(ctx, cfg.Database.DSN, cfg.Embeddings.Dim)
	if err != nil {
		slog.Error("failed to open store", "err", err)
		return 1
	}
	defer store.Close()

	// ── Engine wiring ─────────────────────────────────────────────────────────
	app, err := buildApp(store, cfg)
	if err != nil {
		slog.Error("failed to wire application", "err", err)
		return 1
	}

	// ── Metrics & health listener ─────────────────────────────────────────────
	if cfg.Server.MetricsAddr != "" {
		go serveMetrics(ctx, cfg.Server.MetricsAddr, store)
	}

	// ── Serve ─────────────────────────────────────────────────────────────────
	if *stdio {
		if err := app.RunStdio(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("stdio serve error", "err", err)
			return 1
		}
		return 0
	}

	srv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           app.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("http shutdown error", "err", err)
		}
	}()

	slog.Info("serving MCP over streamable HTTP", "addr", cfg.Server.ListenAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("serve error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// buildApp wires the component graph around the store.
func buildApp(store *postgres.Store, cfg *config.Config) (*mcpserver.Server, error) {
	metrics, err := observe.NewMetrics(observe.MeterProvider())
	if err != nil {
		return nil, err
	}

	reg := corpus.NewRegistry(cfg.Corpora)
	parser := queryparse.NewParser(store, reg)
	retriever := lexical.NewRetriever(store, reg)
	builder := graph.NewBuilder(store, reg, cfg.Relatedness, cfg.Embeddings.Model)
	engine := relatedness.NewEngine(builder, store, reg, cfg.Relatedness)
	searcher := search.NewSearcher(store, parser, retriever, engine, reg, cfg.Search, metrics)
	details := provision.NewService(store, parser)

	return mcpserver.New(searcher, details, version), nil
}

// serveMetrics runs the Prometheus scrape endpoint plus health probes.
func serveMetrics(ctx context.Context, addr string, store *postgres.Store) {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	health.New(health.Probe{
		Name: "database",
		Check: func(ctx context.Context) error {
			_, err := store.CurrentGraphVersion(ctx)
			return err
		},
	}).Register(mux)

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("metrics listener up", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("metrics listener error", "err", err)
	}
}

// newLogger builds the process logger. When serving on stdio the log output
// must stay off stdout, which carries the MCP protocol stream.
func newLogger(level string, stdio bool) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
