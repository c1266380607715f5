// Command server wires every collaborator of the Gweta query core and
// exposes spec §6's two external operations over net/http, grounded on the
// donor's cmd/server/main.go (graceful shutdown via signal.Notify +
// srv.Shutdown) but with a stdlib ServeMux in place of the donor's chi
// router, since HTTP routing/middleware is explicitly out of core scope
// (spec §1) and the mux here only needs to dispatch four fixed routes.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/connexus-ai/gweta-core/internal/cache"
	"github.com/connexus-ai/gweta-core/internal/config"
	"github.com/connexus-ai/gweta-core/internal/graph"
	"github.com/connexus-ai/gweta-core/internal/handler"
	"github.com/connexus-ai/gweta-core/internal/memory"
	"github.com/connexus-ai/gweta-core/internal/metrics"
	"github.com/connexus-ai/gweta-core/internal/providers"
	"github.com/connexus-ai/gweta-core/internal/providers/byollm"
	"github.com/connexus-ai/gweta-core/internal/providers/vertexembed"
	"github.com/connexus-ai/gweta-core/internal/providers/vertexllm"
	"github.com/connexus-ai/gweta-core/internal/providers/vertexrerank"
	"github.com/connexus-ai/gweta-core/internal/retrieval"
	"github.com/connexus-ai/gweta-core/internal/service"
)

// Version identifies the build, surfaced on /healthz.
const Version = "0.1.0"

func getPort(cfg *config.Config) string {
	if port := os.Getenv("PORT"); port != "" {
		return port
	}
	return fmt.Sprintf("%d", cfg.Port)
}

func buildLLM(ctx context.Context, cfg *config.Config) (providers.LLM, error) {
	if cfg.BYOLLMAPIKey != "" {
		slog.Info("[SERVER] using BYOLLM provider", "model", cfg.BYOLLMModel)
		return byollm.New(cfg.BYOLLMAPIKey, cfg.BYOLLMBaseURL, cfg.BYOLLMModel), nil
	}
	adapter, err := vertexllm.New(ctx, cfg.GCPProject, cfg.VertexAILocation, cfg.VertexAIModel)
	if err != nil {
		return nil, fmt.Errorf("main.buildLLM: %w", err)
	}
	return adapter, nil
}

func newRouter(g *graph.Graph, db handler.DBPinger, reg *prometheus.Registry, deadline time.Duration) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", handler.Health(db, Version))
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/v1/query", handler.RunQuery(g, deadline))
	mux.HandleFunc("/v1/query/stream", handler.StreamQuery(g, deadline))
	return mux
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("main.run: %w", err)
	}

	pool, err := retrieval.NewPool(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConns)
	if err != nil {
		return fmt.Errorf("main.run: database: %w", err)
	}
	defer pool.Close()

	redisBackend, err := cache.NewRedisBackend(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("main.run: redis: %w", err)
	}

	llm, err := buildLLM(ctx, cfg)
	if err != nil {
		return fmt.Errorf("main.run: %w", err)
	}

	embedder, err := vertexembed.New(ctx, cfg.GCPProject, cfg.EmbeddingLocation, cfg.EmbeddingModel)
	if err != nil {
		return fmt.Errorf("main.run: embedder: %w", err)
	}

	crossEncoder, err := vertexrerank.New(ctx, cfg.GCPProject, cfg.VertexAILocation)
	if err != nil {
		return fmt.Errorf("main.run: cross encoder: %w", err)
	}

	lexical := retrieval.NewLexicalRepo(pool)
	dense := retrieval.NewDenseRepo(pool)
	parentStore := retrieval.NewParentRepo(pool)
	profileStore := memory.NewProfileRepo(pool)

	qcache := cache.New(redisBackend)
	shortTerm := memory.NewShortTermStore(redisBackend, cfg.ShortTermWindow)
	longTerm := memory.NewLongTermStore(profileStore)
	coordinator := memory.NewCoordinator(shortTerm, longTerm, cfg.MemoryTokenSplit)

	intent := service.NewIntentClassifier(llm, qcache)
	synth := service.NewSynthesizer(llm)
	quality := service.NewQualityGate(llm)
	critic := service.NewSelfCritic(llm)

	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)

	g := graph.New(lexical, dense, embedder, crossEncoder, parentStore, qcache, coordinator, shortTerm, longTerm, intent, synth, quality, critic, m)
	g.DiversityCapRatio = cfg.DiversityCapRatio
	g.ParentFetchConcurrency = cfg.ParentFetchConcurrency
	g.ParentFetchTimeout = cfg.ParentFetchTimeout
	g.IterationCap = cfg.IterationCap

	router := newRouter(g, pool, reg, cfg.RequestDeadline)

	srv := &http.Server{
		Addr:         ":" + getPort(cfg),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RequestDeadline + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("[SERVER] gweta-core starting", "version", Version, "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		slog.Info("[SERVER] shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("main.run: server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("main.run: graceful shutdown failed: %w", err)
	}

	slog.Info("[SERVER] stopped")
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
