package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/zapcontext/retrieval-engine/internal/core/domain"
)

func testResult(confidence float64) *domain.RetrievalResult {
	return &domain.RetrievalResult{Confidence: confidence}
}

func countingCompute(counter *int, result *domain.RetrievalResult) func(context.Context) (*domain.RetrievalResult, error) {
	return func(context.Context) (*domain.RetrievalResult, error) {
		*counter++
		return result, nil
	}
}

func TestGetOrComputeMissThenHit(t *testing.T) {
	c := New(time.Minute, 0)
	defer c.Shutdown()
	key := Key{TenantID: "tenant-1", QueryText: "postgres"}

	computed := 0
	value, hit, err := c.GetOrCompute(context.Background(), key, 0, countingCompute(&computed, testResult(0.8)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hit {
		t.Fatalf("expected miss on first lookup")
	}

	value2, hit, err := c.GetOrCompute(context.Background(), key, 0, countingCompute(&computed, testResult(0.1)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !hit {
		t.Fatalf("expected hit on second lookup")
	}
	if computed != 1 {
		t.Fatalf("expected one computation, got %d", computed)
	}
	if value2 != value {
		t.Fatalf("expected the cached pointer back")
	}
}

func TestGetOrComputeExpiryWithInjectedClock(t *testing.T) {
	c := New(time.Minute, 0)
	defer c.Shutdown()
	current := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return current }
	key := Key{TenantID: "tenant-1", QueryText: "postgres"}

	computed := 0
	if _, _, err := c.GetOrCompute(context.Background(), key, 5*time.Minute, countingCompute(&computed, testResult(0.8))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	current = current.Add(4 * time.Minute)
	_, hit, _ := c.GetOrCompute(context.Background(), key, 5*time.Minute, countingCompute(&computed, testResult(0.8)))
	if !hit {
		t.Fatalf("expected hit before expiry")
	}

	current = current.Add(2 * time.Minute)
	_, hit, _ = c.GetOrCompute(context.Background(), key, 5*time.Minute, countingCompute(&computed, testResult(0.8)))
	if hit {
		t.Fatalf("expected miss after expiry")
	}
	if computed != 2 {
		t.Fatalf("expected recompute after expiry, got %d computations", computed)
	}
}

func TestGetOrComputeFailureNotStored(t *testing.T) {
	c := New(time.Minute, 0)
	defer c.Shutdown()
	key := Key{TenantID: "tenant-1", QueryText: "postgres"}

	_, _, err := c.GetOrCompute(context.Background(), key, 0, func(context.Context) (*domain.RetrievalResult, error) {
		return nil, errors.New("pipeline failed")
	})
	if err == nil {
		t.Fatalf("expected compute error surfaced")
	}

	computed := 0
	_, hit, _ := c.GetOrCompute(context.Background(), key, 0, countingCompute(&computed, testResult(0.5)))
	if hit {
		t.Fatalf("expected failed compute to leave no entry")
	}
	if computed != 1 {
		t.Fatalf("expected recompute, got %d", computed)
	}
}

func TestKeyOptionsSeparateEntries(t *testing.T) {
	c := New(time.Minute, 0)
	defer c.Shutdown()

	computed := 0
	keyA := Key{TenantID: "tenant-1", QueryText: "postgres", Options: "max=5"}
	keyB := Key{TenantID: "tenant-1", QueryText: "postgres", Options: "max=10"}

	_, _, _ = c.GetOrCompute(context.Background(), keyA, 0, countingCompute(&computed, testResult(0.5)))
	_, hit, _ := c.GetOrCompute(context.Background(), keyB, 0, countingCompute(&computed, testResult(0.5)))
	if hit {
		t.Fatalf("expected different options to use a different entry")
	}
	if computed != 2 {
		t.Fatalf("expected two computations, got %d", computed)
	}
}

func TestInvalidateByTenantAndPattern(t *testing.T) {
	c := New(time.Minute, 0)
	defer c.Shutdown()

	computed := 0
	seed := []Key{
		{TenantID: "tenant-1", QueryText: "postgres replication"},
		{TenantID: "tenant-1", QueryText: "kubernetes ingress"},
		{TenantID: "tenant-2", QueryText: "postgres replication"},
	}
	for _, key := range seed {
		_, _, _ = c.GetOrCompute(context.Background(), key, 0, countingCompute(&computed, testResult(0.5)))
	}

	if removed := c.Invalidate("tenant-1", "postgres"); removed != 1 {
		t.Fatalf("expected 1 entry removed by pattern, got %d", removed)
	}
	if removed := c.Invalidate("tenant-1", ""); removed != 1 {
		t.Fatalf("expected 1 remaining tenant-1 entry removed, got %d", removed)
	}
	if removed := c.Invalidate("tenant-2", ""); removed != 1 {
		t.Fatalf("expected tenant-2 entry untouched until now, got %d", removed)
	}
}

func TestStatsCountsLiveEntriesAndHitRate(t *testing.T) {
	c := New(time.Minute, 0)
	defer c.Shutdown()
	current := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return current }

	computed := 0
	key := Key{TenantID: "tenant-1", QueryText: "postgres"}
	_, _, _ = c.GetOrCompute(context.Background(), key, time.Minute, countingCompute(&computed, testResult(0.5)))
	_, _, _ = c.GetOrCompute(context.Background(), key, time.Minute, countingCompute(&computed, testResult(0.5)))

	stats := c.Stats()
	if stats.Entries != 1 {
		t.Fatalf("expected 1 live entry, got %d", stats.Entries)
	}
	if stats.HitRate != 0.5 {
		t.Fatalf("expected hit rate 0.5 after one miss and one hit, got %f", stats.HitRate)
	}

	current = current.Add(2 * time.Minute)
	if live := c.Stats().Entries; live != 0 {
		t.Fatalf("expected expired entries excluded from stats, got %d", live)
	}
}

func TestSweepReclaimsExpiredEntries(t *testing.T) {
	c := New(time.Minute, 0)
	defer c.Shutdown()
	current := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return current }

	computed := 0
	_, _, _ = c.GetOrCompute(context.Background(), Key{TenantID: "tenant-1", QueryText: "a"}, time.Minute, countingCompute(&computed, testResult(0.5)))
	_, _, _ = c.GetOrCompute(context.Background(), Key{TenantID: "tenant-1", QueryText: "b"}, time.Hour, countingCompute(&computed, testResult(0.5)))

	current = current.Add(5 * time.Minute)
	c.sweep()

	c.mu.Lock()
	remaining := len(c.entries)
	c.mu.Unlock()
	if remaining != 1 {
		t.Fatalf("expected sweep to keep only the long-lived entry, got %d", remaining)
	}
}
