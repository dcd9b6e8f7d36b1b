package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/zapcontext/retrieval-engine/internal/cache"
	"github.com/zapcontext/retrieval-engine/internal/config"
	"github.com/zapcontext/retrieval-engine/internal/core/ports"
	"github.com/zapcontext/retrieval-engine/internal/core/usecase"
	"github.com/zapcontext/retrieval-engine/internal/infrastructure/graph/neo4j"
	"github.com/zapcontext/retrieval-engine/internal/infrastructure/llm/ollama"
	"github.com/zapcontext/retrieval-engine/internal/infrastructure/queue/nats"
	"github.com/zapcontext/retrieval-engine/internal/infrastructure/repository/postgres"
	"github.com/zapcontext/retrieval-engine/internal/infrastructure/resilience"
	"github.com/zapcontext/retrieval-engine/internal/infrastructure/vector/qdrant"
	"github.com/zapcontext/retrieval-engine/internal/observability/metrics"
)

// App holds the wired dependency graph for the api process. Postgres, NATS
// and Neo4j are optional: an empty DSN or URL leaves the corresponding
// capability disabled and the pipeline degrades as documented.
type App struct {
	Config config.Config

	Retriever *usecase.RetrieveUseCase
	Queue     ports.InvalidationEvents
	Metrics   *metrics.RetrievalMetrics
	Cache     *cache.ResultCache

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	executor := resilience.NewExecutor(resilience.DefaultConfig())

	var settings ports.TenantSettingsStore
	var closeDB func()
	if cfg.PostgresDSN != "" {
		db, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		repo := postgres.NewTenantSettingsRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		settings = repo
		closeDB = func() { _ = db.Close() }
	}

	var adjacency ports.GraphAdjacency
	var closeGraph func()
	if cfg.Neo4jURI != "" {
		store, err := neo4j.New(cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword, cfg.Neo4jDatabase)
		if err != nil {
			if closeDB != nil {
				closeDB()
			}
			return nil, fmt.Errorf("init graph store: %w", err)
		}
		adjacency = store
		closeGraph = func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = store.Close(closeCtx)
		}
	}

	var queue *nats.Queue
	if cfg.NATSURL != "" {
		q, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			ResilienceExecutor: executor,
		})
		if err != nil {
			if closeGraph != nil {
				closeGraph()
			}
			if closeDB != nil {
				closeDB()
			}
			return nil, fmt.Errorf("init message queue: %w", err)
		}
		queue = q
	}

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, ollama.Options{
		ResilienceExecutor: executor,
	})
	embedder := ollama.NewEmbedder(ollamaClient)
	scorer := ollama.NewScorer(ollamaClient)

	vectorDB := qdrant.New(cfg.QdrantURL, cfg.QdrantDocsCollection, cfg.QdrantEntitiesCollection, qdrant.Options{
		Distance:           cfg.QdrantDistance,
		ResilienceExecutor: executor,
	})

	m := metrics.NewRetrievalMetrics("api")
	resultCache := cache.New(
		time.Duration(cfg.CacheTTLSeconds)*time.Second,
		time.Duration(cfg.CacheSweepSeconds)*time.Second,
	)

	expander := usecase.NewGraphExpander(adjacency, logger)
	retriever := usecase.NewRetrieveUseCase(
		embedder,
		vectorDB,
		expander,
		scorer,
		settings,
		resultCache,
		pipelineConfig(cfg),
		logger,
		m,
	)

	app := &App{
		Config:    cfg,
		Retriever: retriever,
		Metrics:   m,
		Cache:     resultCache,

		closeFn: func() {
			resultCache.Shutdown()
			if queue != nil {
				queue.Close()
			}
			if closeGraph != nil {
				closeGraph()
			}
			if closeDB != nil {
				closeDB()
			}
		},
	}
	if queue != nil {
		app.Queue = queue
	}
	return app, nil
}

func pipelineConfig(cfg config.Config) usecase.Config {
	return usecase.Config{
		DefaultMaxResults:          cfg.MaxResults,
		DefaultSimilarityThreshold: cfg.SimilarityThreshold,
		Weights: usecase.FusionWeights{
			Vector:  cfg.VectorWeight,
			Lexical: cfg.LexicalWeight,
			Rerank:  cfg.RerankWeight,
		},
		BM25K1:             cfg.BM25K1,
		BM25B:              cfg.BM25B,
		RerankTopN:         cfg.RerankTopN,
		RerankTimeout:      time.Duration(cfg.RerankTimeoutSeconds) * time.Second,
		RecencyDivisor:     cfg.RecencyDivisor,
		PrioritizeRecent:   cfg.PrioritizeRecent,
		GraphMaxHops:       cfg.GraphMaxHops,
		GraphRelationTypes: cfg.GraphRelationTypes,
		GraphTimeout:       time.Duration(cfg.GraphTimeoutSeconds) * time.Second,
		EmbedTimeout:       time.Duration(cfg.EmbedTimeoutSeconds) * time.Second,
		SearchTimeout:      time.Duration(cfg.SearchTimeoutSeconds) * time.Second,
		CacheTTL:           time.Duration(cfg.CacheTTLSeconds) * time.Second,
	}
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
