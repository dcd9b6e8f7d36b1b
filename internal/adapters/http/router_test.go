package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/zapcontext/retrieval-engine/internal/core/domain"
)

type fakeRetriever struct {
	lastQuery domain.RetrievalQuery
	result    *domain.RetrievalResult
	meta      domain.RetrievalMeta
	err       error

	removed   int
	stats     domain.CacheStats
	adminErr  error
	lastWipe  string
	lastMatch string
}

func (f *fakeRetriever) Retrieve(_ context.Context, query domain.RetrievalQuery) (*domain.RetrievalResult, domain.RetrievalMeta, error) {
	f.lastQuery = query
	return f.result, f.meta, f.err
}

func (f *fakeRetriever) InvalidateCache(_ context.Context, tenantID, pattern string) (int, error) {
	f.lastWipe = tenantID
	f.lastMatch = pattern
	return f.removed, f.adminErr
}

func (f *fakeRetriever) GetCacheStats(_ context.Context) (domain.CacheStats, error) {
	return f.stats, f.adminErr
}

func newTestRouter(f *fakeRetriever) http.Handler {
	return NewRouter(f, f, nil, 1000, 1000).Handler()
}

func TestRetrieveEndpoint(t *testing.T) {
	fake := &fakeRetriever{
		result: &domain.RetrievalResult{
			Documents:  []domain.Document{{ID: "doc-1", Score: 0.9}},
			Confidence: 0.9,
			Sources:    []string{"wiki"},
		},
		meta: domain.RetrievalMeta{CacheHit: true},
	}
	handler := newTestRouter(fake)

	body := `{"tenant_id": "tenant-1", "query": "postgres", "max_results": 3}`
	req := httptest.NewRequest(http.MethodPost, "/v1/retrieve", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if fake.lastQuery.TenantID != "tenant-1" || fake.lastQuery.MaxResults != 3 {
		t.Fatalf("unexpected query mapping: %+v", fake.lastQuery)
	}
	if !fake.lastQuery.UseCache {
		t.Fatalf("expected use_cache to default true")
	}

	var resp retrieveResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.CacheHit {
		t.Fatalf("expected cache_hit true in response")
	}
	if len(resp.Result.Documents) != 1 {
		t.Fatalf("expected 1 document in response, got %d", len(resp.Result.Documents))
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected request id header set")
	}
}

func TestRetrieveEndpointUseCacheFalse(t *testing.T) {
	fake := &fakeRetriever{result: &domain.RetrievalResult{}}
	handler := newTestRouter(fake)

	body := `{"tenant_id": "tenant-1", "query": "postgres", "use_cache": false}`
	req := httptest.NewRequest(http.MethodPost, "/v1/retrieve", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if fake.lastQuery.UseCache {
		t.Fatalf("expected use_cache false honored")
	}
}

func TestRetrieveEndpointErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.WrapError(domain.ErrInvalidQuery, "retrieve", errors.New("empty")), http.StatusBadRequest},
		{domain.WrapError(domain.ErrRetrievalUnavailable, "retrieve", errors.New("down")), http.StatusServiceUnavailable},
		{domain.WrapError(domain.ErrTemporary, "retrieve", errors.New("overload")), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		handler := newTestRouter(&fakeRetriever{err: tc.err})
		req := httptest.NewRequest(http.MethodPost, "/v1/retrieve", strings.NewReader(`{"tenant_id":"t","query":"q"}`))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != tc.want {
			t.Fatalf("expected %d for %v, got %d", tc.want, tc.err, rec.Code)
		}
	}
}

func TestRetrieveEndpointRejectsBadJSONAndMethod(t *testing.T) {
	handler := newTestRouter(&fakeRetriever{})

	req := httptest.NewRequest(http.MethodPost, "/v1/retrieve", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad json, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/retrieve", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for GET, got %d", rec.Code)
	}
}

func TestCacheInvalidateEndpoint(t *testing.T) {
	fake := &fakeRetriever{removed: 4}
	handler := newTestRouter(fake)

	body := `{"tenant_id": "tenant-1", "query_pattern": "postgres"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/cache/invalidate", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if fake.lastWipe != "tenant-1" || fake.lastMatch != "postgres" {
		t.Fatalf("unexpected invalidation args: %q %q", fake.lastWipe, fake.lastMatch)
	}
	var resp map[string]int
	_ = json.NewDecoder(rec.Body).Decode(&resp)
	if resp["removed"] != 4 {
		t.Fatalf("expected removed 4, got %d", resp["removed"])
	}
}

func TestCacheStatsEndpoint(t *testing.T) {
	fake := &fakeRetriever{stats: domain.CacheStats{Entries: 7, HitRate: 0.25}}
	handler := newTestRouter(fake)

	req := httptest.NewRequest(http.MethodGet, "/v1/cache/stats", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var stats domain.CacheStats
	_ = json.NewDecoder(rec.Body).Decode(&stats)
	if stats.Entries != 7 || stats.HitRate != 0.25 {
		t.Fatalf("unexpected stats payload: %+v", stats)
	}
}

func TestHealthzEndpoint(t *testing.T) {
	handler := newTestRouter(&fakeRetriever{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestRateLimitPerTenant(t *testing.T) {
	handler := NewRouter(&fakeRetriever{result: &domain.RetrievalResult{}}, &fakeRetriever{}, nil, 1, 2).Handler()

	send := func(tenant string) int {
		req := httptest.NewRequest(http.MethodPost, "/v1/retrieve", strings.NewReader(`{"tenant_id":"t","query":"q"}`))
		req.Header.Set("X-Tenant-Id", tenant)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	if send("tenant-a") != http.StatusOK || send("tenant-a") != http.StatusOK {
		t.Fatalf("expected burst of 2 to pass")
	}
	if send("tenant-a") != http.StatusTooManyRequests {
		t.Fatalf("expected third request rate limited")
	}
	if send("tenant-b") != http.StatusOK {
		t.Fatalf("expected other tenant unaffected")
	}
}

func TestRateLimitSkipsHealthz(t *testing.T) {
	handler := NewRouter(&fakeRetriever{}, &fakeRetriever{}, nil, 1, 1).Handler()
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected healthz exempt from rate limiting, got %d", rec.Code)
		}
	}
}

func TestRequestIDPropagatedFromHeader(t *testing.T) {
	handler := newTestRouter(&fakeRetriever{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-Id", "req-42")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-Id"); got != "req-42" {
		t.Fatalf("expected inbound request id echoed, got %q", got)
	}
}
