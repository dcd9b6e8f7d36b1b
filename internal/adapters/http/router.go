package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/zapcontext/retrieval-engine/internal/core/domain"
	"github.com/zapcontext/retrieval-engine/internal/core/ports"
	"github.com/zapcontext/retrieval-engine/internal/observability/metrics"
)

type Router struct {
	retriever ports.Retriever
	admin     ports.CacheAdministrator
	metrics   *metrics.RetrievalMetrics
	limiter   *tenantRateLimiter
}

func NewRouter(
	retriever ports.Retriever,
	admin ports.CacheAdministrator,
	m *metrics.RetrievalMetrics,
	ratePerTenant float64,
	rateBurst int,
) *Router {
	return &Router{
		retriever: retriever,
		admin:     admin,
		metrics:   m,
		limiter:   newTenantRateLimiter(ratePerTenant, rateBurst),
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/retrieve", rt.retrieve)
	mux.HandleFunc("/v1/cache/invalidate", rt.invalidateCache)
	mux.HandleFunc("/v1/cache/stats", rt.cacheStats)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	handler = rateLimitMiddleware(rt.limiter)(handler)
	if rt.metrics != nil {
		handler = metricsMiddleware(rt.metrics)(handler)
	}
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type retrieveRequest struct {
	TenantID             string  `json:"tenant_id"`
	Query                string  `json:"query"`
	MaxResults           int     `json:"max_results"`
	SimilarityThreshold  float64 `json:"similarity_threshold"`
	EnableGraphExpansion bool    `json:"enable_graph_expansion"`
	UseCache             *bool   `json:"use_cache"`
}

type retrieveResponse struct {
	Result   *domain.RetrievalResult `json:"result"`
	CacheHit bool                    `json:"cache_hit"`
	TookMS   float64                 `json:"took_ms"`
}

func (rt *Router) retrieve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req retrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	useCache := true
	if req.UseCache != nil {
		useCache = *req.UseCache
	}

	result, meta, err := rt.retriever.Retrieve(r.Context(), domain.RetrievalQuery{
		TenantID:             strings.TrimSpace(req.TenantID),
		Text:                 req.Query,
		MaxResults:           req.MaxResults,
		SimilarityThreshold:  req.SimilarityThreshold,
		EnableGraphExpansion: req.EnableGraphExpansion,
		UseCache:             useCache,
	})
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, retrieveResponse{
		Result:   result,
		CacheHit: meta.CacheHit,
		TookMS:   float64(meta.Took.Microseconds()) / 1000.0,
	})
}

func (rt *Router) invalidateCache(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		TenantID     string `json:"tenant_id"`
		QueryPattern string `json:"query_pattern"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	removed, err := rt.admin.InvalidateCache(r.Context(), strings.TrimSpace(req.TenantID), req.QueryPattern)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func (rt *Router) cacheStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	stats, err := rt.admin.GetCacheStats(r.Context())
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
