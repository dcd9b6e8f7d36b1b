package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zapcontext/retrieval-engine/internal/cache"
	"github.com/zapcontext/retrieval-engine/internal/core/domain"
	"github.com/zapcontext/retrieval-engine/internal/core/ports"
)

// Observer receives pipeline-level signals for operational visibility. A nil
// observer is valid and means "don't record".
type Observer interface {
	RetrievalCompleted(status string, took time.Duration, documents int, confidence float64)
	StageDegraded(stage string)
	CacheLookup(hit bool)
}

// Config carries every pipeline tunable with its documented default. None of
// the heuristic constants are hardcoded at the call sites.
type Config struct {
	DefaultMaxResults          int
	DefaultSimilarityThreshold float64

	Weights        FusionWeights
	BM25K1         float64
	BM25B          float64
	RerankTopN     int
	RerankTimeout  time.Duration
	RecencyDivisor float64

	PrioritizeRecent bool

	GraphMaxHops       int
	GraphRelationTypes []string
	GraphTimeout       time.Duration

	EmbedTimeout  time.Duration
	SearchTimeout time.Duration

	CacheTTL time.Duration
}

func DefaultConfig() Config {
	return Config{
		DefaultMaxResults:          5,
		DefaultSimilarityThreshold: 0.7,
		Weights:                    DefaultFusionWeights(),
		BM25K1:                     defaultBM25K1,
		BM25B:                      defaultBM25B,
		RerankTopN:                 defaultRerankTopN,
		RerankTimeout:              5 * time.Second,
		RecencyDivisor:             defaultRecencyDivisor,
		GraphMaxHops:               defaultGraphMaxHops,
		GraphTimeout:               5 * time.Second,
		EmbedTimeout:               10 * time.Second,
		SearchTimeout:              10 * time.Second,
		CacheTTL:                   5 * time.Minute,
	}
}

// RetrieveUseCase runs the hybrid retrieval pipeline: vector retrieval with
// a lexical fallback, optional graph expansion, BM25 scoring, cross-encoder
// reranking, weighted fusion, and context assembly, fronted by the result
// cache.
type RetrieveUseCase struct {
	embedder ports.Embedder
	vectors  ports.VectorSearcher
	expander *GraphExpander
	scorer   ports.RelevanceScorer
	settings ports.TenantSettingsStore
	cache    *cache.ResultCache
	cfg      Config
	logger   *slog.Logger
	observer Observer
}

func NewRetrieveUseCase(
	embedder ports.Embedder,
	vectors ports.VectorSearcher,
	expander *GraphExpander,
	scorer ports.RelevanceScorer,
	settings ports.TenantSettingsStore,
	resultCache *cache.ResultCache,
	cfg Config,
	logger *slog.Logger,
	observer Observer,
) *RetrieveUseCase {
	def := DefaultConfig()
	if cfg.DefaultMaxResults <= 0 {
		cfg.DefaultMaxResults = def.DefaultMaxResults
	}
	if cfg.DefaultSimilarityThreshold <= 0 || cfg.DefaultSimilarityThreshold > 1 {
		cfg.DefaultSimilarityThreshold = def.DefaultSimilarityThreshold
	}
	if cfg.Weights.Vector <= 0 && cfg.Weights.Lexical <= 0 && cfg.Weights.Rerank <= 0 {
		cfg.Weights = def.Weights
	}
	if cfg.BM25K1 <= 0 {
		cfg.BM25K1 = def.BM25K1
	}
	if cfg.BM25B <= 0 || cfg.BM25B > 1 {
		cfg.BM25B = def.BM25B
	}
	if cfg.RerankTopN <= 0 {
		cfg.RerankTopN = def.RerankTopN
	}
	if cfg.RecencyDivisor <= 0 {
		cfg.RecencyDivisor = def.RecencyDivisor
	}
	if cfg.GraphMaxHops <= 0 {
		cfg.GraphMaxHops = def.GraphMaxHops
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = def.CacheTTL
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &RetrieveUseCase{
		embedder: embedder,
		vectors:  vectors,
		expander: expander,
		scorer:   scorer,
		settings: settings,
		cache:    resultCache,
		cfg:      cfg,
		logger:   logger,
		observer: observer,
	}
}

// Retrieve executes the pipeline for one query. Stage-local failures (graph
// expansion, reranking, entity search) degrade to "no contribution"; only the
// total loss of both the embedding path and the lexical fallback is a hard
// error. An empty result is a valid outcome, not a failure.
func (uc *RetrieveUseCase) Retrieve(
	ctx context.Context,
	query domain.RetrievalQuery,
) (*domain.RetrievalResult, domain.RetrievalMeta, error) {
	start := time.Now()

	if err := validateQuery(query); err != nil {
		uc.completed("invalid", start, nil)
		return nil, domain.RetrievalMeta{}, err
	}

	cfg := uc.effectiveConfig(ctx, query.TenantID)
	if query.MaxResults <= 0 {
		query.MaxResults = cfg.DefaultMaxResults
	}
	if query.SimilarityThreshold <= 0 {
		query.SimilarityThreshold = cfg.DefaultSimilarityThreshold
	}

	compute := func(ctx context.Context) (*domain.RetrievalResult, error) {
		return uc.runPipeline(ctx, query, cfg)
	}

	if query.UseCache && uc.cache != nil {
		key := cache.Key{
			TenantID:  query.TenantID,
			QueryText: query.Text,
			Options:   encodeQueryOptions(query),
		}
		result, hit, err := uc.cache.GetOrCompute(ctx, key, cfg.CacheTTL, compute)
		if uc.observer != nil {
			uc.observer.CacheLookup(hit)
		}
		if err != nil {
			uc.completed("error", start, nil)
			return nil, domain.RetrievalMeta{}, err
		}
		uc.completed("ok", start, result)
		return result, domain.RetrievalMeta{CacheHit: hit, Took: time.Since(start)}, nil
	}

	result, err := compute(ctx)
	if err != nil {
		uc.completed("error", start, nil)
		return nil, domain.RetrievalMeta{}, err
	}
	uc.completed("ok", start, result)
	return result, domain.RetrievalMeta{Took: time.Since(start)}, nil
}

func (uc *RetrieveUseCase) runPipeline(
	ctx context.Context,
	query domain.RetrievalQuery,
	cfg Config,
) (*domain.RetrievalResult, error) {
	documents, entities, err := uc.retrieveByVector(ctx, query, cfg)
	if err != nil {
		return nil, err
	}

	if query.EnableGraphExpansion && uc.expander != nil && len(entities) > 0 {
		expandCtx := ctx
		if cfg.GraphTimeout > 0 {
			var cancel context.CancelFunc
			expandCtx, cancel = context.WithTimeout(ctx, cfg.GraphTimeout)
			defer cancel()
		}
		expanded := uc.expander.Expand(expandCtx, query.TenantID, entities, cfg.GraphMaxHops, cfg.GraphRelationTypes)
		if expanded != nil {
			entities = expanded
		} else if uc.observer != nil {
			uc.observer.StageDegraded("graph_expansion")
		}
	}

	contents := make([]string, len(documents))
	for i := range documents {
		contents[i] = documents[i].Content
	}
	indexed := indexDocuments(contents)
	queryTerms := tokenizeLower(query.Text)
	lexicalScores := scoreLexical(indexed, queryTerms, averageLength(indexed), cfg.BM25K1, cfg.BM25B)

	rerank := rerankScores(ctx, uc.scorer, query.Text, documents, cfg.RerankTopN, cfg.RerankTimeout, uc.logger)

	ranked := fuseHybrid(documents, lexicalScores, rerank, cfg.Weights)
	result := assembleResult(ranked, entities, query.MaxResults, cfg.PrioritizeRecent, cfg.RecencyDivisor)
	return &result, nil
}

// retrieveByVector embeds the query and runs the document and entity
// similarity searches concurrently, both bounded to 2x the requested result
// count. When embedding or the document search fails it falls back to the
// store's lexical search path; only when that also fails does the pipeline
// give up.
func (uc *RetrieveUseCase) retrieveByVector(
	ctx context.Context,
	query domain.RetrievalQuery,
	cfg Config,
) ([]domain.Document, []domain.Entity, error) {
	candidateLimit := 2 * query.MaxResults

	embedCtx := ctx
	if cfg.EmbedTimeout > 0 {
		var cancel context.CancelFunc
		embedCtx, cancel = context.WithTimeout(ctx, cfg.EmbedTimeout)
		defer cancel()
	}
	queryVector, embedErr := uc.embedder.EmbedQuery(embedCtx, query.Text)
	if embedErr != nil {
		uc.logger.Warn("embedding_unavailable",
			"tenant_id", query.TenantID,
			"error", embedErr,
		)
		if uc.observer != nil {
			uc.observer.StageDegraded("embedding")
		}
		docs, err := uc.lexicalFallback(ctx, query, cfg, candidateLimit)
		if err != nil {
			joined := errors.Join(
				domain.WrapError(domain.ErrEmbeddingUnavailable, "embed query", embedErr),
				err,
			)
			return nil, nil, domain.WrapError(domain.ErrRetrievalUnavailable, "retrieve", joined)
		}
		return docs, nil, nil
	}

	var (
		documents []domain.Document
		entities  []domain.Entity
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		searchCtx, cancel := uc.searchContext(gctx, cfg)
		defer cancel()
		docs, err := uc.vectors.SearchDocuments(searchCtx, query.TenantID, queryVector, candidateLimit, query.SimilarityThreshold)
		if err != nil {
			return fmt.Errorf("search documents: %w", err)
		}
		documents = docs
		return nil
	})
	g.Go(func() error {
		searchCtx, cancel := uc.searchContext(gctx, cfg)
		defer cancel()
		ents, err := uc.vectors.SearchEntities(searchCtx, query.TenantID, queryVector, candidateLimit, query.SimilarityThreshold)
		if err != nil {
			// Entity search is enrichment, never fatal.
			uc.logger.Warn("entity_search_degraded", "tenant_id", query.TenantID, "error", err)
			if uc.observer != nil {
				uc.observer.StageDegraded("entity_search")
			}
			return nil
		}
		entities = ents
		return nil
	})
	if err := g.Wait(); err != nil {
		uc.logger.Warn("vector_search_unavailable",
			"tenant_id", query.TenantID,
			"error", err,
		)
		if uc.observer != nil {
			uc.observer.StageDegraded("vector_search")
		}
		docs, fallbackErr := uc.lexicalFallback(ctx, query, cfg, candidateLimit)
		if fallbackErr != nil {
			return nil, nil, domain.WrapError(domain.ErrRetrievalUnavailable, "retrieve", errors.Join(err, fallbackErr))
		}
		return docs, entities, nil
	}

	for i := range documents {
		documents[i].Score = clamp01(documents[i].Score)
		documents[i].SourceKind = domain.SourceVector
	}
	return documents, entities, nil
}

func (uc *RetrieveUseCase) lexicalFallback(
	ctx context.Context,
	query domain.RetrievalQuery,
	cfg Config,
	limit int,
) ([]domain.Document, error) {
	searchCtx, cancel := uc.searchContext(ctx, cfg)
	defer cancel()

	docs, err := uc.vectors.SearchDocumentsLexical(searchCtx, query.TenantID, query.Text, limit)
	if err != nil {
		return nil, fmt.Errorf("lexical fallback: %w", err)
	}
	for i := range docs {
		docs[i].Score = clamp01(docs[i].Score)
		docs[i].SourceKind = domain.SourceLexical
	}
	return docs, nil
}

func (uc *RetrieveUseCase) searchContext(ctx context.Context, cfg Config) (context.Context, context.CancelFunc) {
	if cfg.SearchTimeout > 0 {
		return context.WithTimeout(ctx, cfg.SearchTimeout)
	}
	return context.WithCancel(ctx)
}

// effectiveConfig layers per-tenant overrides on top of the service defaults.
// Settings lookups are best-effort; a store error falls back to defaults.
func (uc *RetrieveUseCase) effectiveConfig(ctx context.Context, tenantID string) Config {
	cfg := uc.cfg
	if uc.settings == nil {
		return cfg
	}

	settings, err := uc.settings.GetSettings(ctx, tenantID)
	if err != nil {
		uc.logger.Debug("tenant_settings_unavailable", "tenant_id", tenantID, "error", err)
		return cfg
	}
	if settings == nil {
		return cfg
	}

	if settings.VectorWeight != nil {
		cfg.Weights.Vector = *settings.VectorWeight
	}
	if settings.LexicalWeight != nil {
		cfg.Weights.Lexical = *settings.LexicalWeight
	}
	if settings.RerankWeight != nil {
		cfg.Weights.Rerank = *settings.RerankWeight
	}
	if settings.SimilarityThreshold != nil && *settings.SimilarityThreshold > 0 && *settings.SimilarityThreshold <= 1 {
		cfg.DefaultSimilarityThreshold = *settings.SimilarityThreshold
	}
	if settings.RerankTopN != nil && *settings.RerankTopN > 0 {
		cfg.RerankTopN = *settings.RerankTopN
	}
	if settings.CacheTTLSeconds != nil && *settings.CacheTTLSeconds > 0 {
		cfg.CacheTTL = time.Duration(*settings.CacheTTLSeconds) * time.Second
	}
	if settings.PrioritizeRecent != nil {
		cfg.PrioritizeRecent = *settings.PrioritizeRecent
	}
	return cfg
}

// InvalidateCache removes the tenant's cached results whose query text
// contains queryPattern (all of them when the pattern is empty).
func (uc *RetrieveUseCase) InvalidateCache(ctx context.Context, tenantID, queryPattern string) (int, error) {
	if strings.TrimSpace(tenantID) == "" {
		return 0, domain.WrapError(domain.ErrInvalidQuery, "invalidate cache", fmt.Errorf("tenant id is required"))
	}
	if uc.cache == nil {
		return 0, nil
	}
	removed := uc.cache.Invalidate(tenantID, queryPattern)
	uc.logger.Info("cache_invalidated",
		"tenant_id", tenantID,
		"pattern", queryPattern,
		"removed", removed,
	)
	return removed, nil
}

func (uc *RetrieveUseCase) GetCacheStats(_ context.Context) (domain.CacheStats, error) {
	if uc.cache == nil {
		return domain.CacheStats{}, nil
	}
	return uc.cache.Stats(), nil
}

func (uc *RetrieveUseCase) completed(status string, start time.Time, result *domain.RetrievalResult) {
	if uc.observer == nil {
		return
	}
	documents := 0
	confidence := 0.0
	if result != nil {
		documents = len(result.Documents)
		confidence = result.Confidence
	}
	uc.observer.RetrievalCompleted(status, time.Since(start), documents, confidence)
}

func validateQuery(query domain.RetrievalQuery) error {
	if strings.TrimSpace(query.Text) == "" {
		return domain.WrapError(domain.ErrInvalidQuery, "retrieve", fmt.Errorf("query text is required"))
	}
	if strings.TrimSpace(query.TenantID) == "" {
		return domain.WrapError(domain.ErrInvalidQuery, "retrieve", fmt.Errorf("tenant id is required"))
	}
	if query.SimilarityThreshold < 0 || query.SimilarityThreshold > 1 {
		return domain.WrapError(domain.ErrInvalidQuery, "retrieve", fmt.Errorf("similarity threshold must be in [0,1]"))
	}
	return nil
}

// encodeQueryOptions serializes every option that changes pipeline output so
// the cache key separates otherwise-identical query texts.
func encodeQueryOptions(query domain.RetrievalQuery) string {
	return fmt.Sprintf("max=%d|threshold=%.4f|graph=%t",
		query.MaxResults,
		query.SimilarityThreshold,
		query.EnableGraphExpansion,
	)
}
