package ports

import (
	"context"

	"github.com/zapcontext/retrieval-engine/internal/core/domain"
)

// Retriever is the inbound contract for the full retrieval pipeline.
type Retriever interface {
	Retrieve(ctx context.Context, query domain.RetrievalQuery) (*domain.RetrievalResult, domain.RetrievalMeta, error)
}

// CacheAdministrator exposes operational control over the result cache.
type CacheAdministrator interface {
	InvalidateCache(ctx context.Context, tenantID, queryPattern string) (int, error)
	GetCacheStats(ctx context.Context) (domain.CacheStats, error)
}
