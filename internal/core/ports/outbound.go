package ports

import (
	"context"

	"github.com/zapcontext/retrieval-engine/internal/core/domain"
)

// Embedder converts query text to a fixed-length vector. A failure must
// surface as an error, never as a zero vector.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorSearcher runs tenant-scoped similarity queries against the vector
// store. Tenant isolation is enforced at the store boundary. Returned scores
// are similarities already normalized to [0,1].
type VectorSearcher interface {
	SearchDocuments(ctx context.Context, tenantID string, queryVector []float32, limit int, minSimilarity float64) ([]domain.Document, error)
	SearchEntities(ctx context.Context, tenantID string, queryVector []float32, limit int, minSimilarity float64) ([]domain.Entity, error)
	SearchDocumentsLexical(ctx context.Context, tenantID, queryText string, limit int) ([]domain.Document, error)
}

// GraphAdjacency answers one batched neighbor query for a traversal frontier.
// An empty relationTypes slice means all relationship types are allowed.
type GraphAdjacency interface {
	Neighbors(ctx context.Context, tenantID string, frontier []string, relationTypes []string) ([]domain.GraphEdge, error)
}

// RelevanceScorer is the cross-encoder boundary: it jointly scores one
// (query, passage) pair and returns a relevance in [0,1].
type RelevanceScorer interface {
	ScoreRelevance(ctx context.Context, query, passage string) (float64, error)
}

// TenantSettingsStore reads per-tenant pipeline overrides. A missing row is
// reported as (nil, nil).
type TenantSettingsStore interface {
	GetSettings(ctx context.Context, tenantID string) (*domain.TenantSettings, error)
}

// InvalidationEvents carries knowledge-update notifications between services
// so in-process caches can drop stale entries.
type InvalidationEvents interface {
	PublishKnowledgeUpdated(ctx context.Context, tenantID string) error
	SubscribeKnowledgeUpdated(ctx context.Context, handler func(ctx context.Context, tenantID string) error) error
}
