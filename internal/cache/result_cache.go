package cache

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"github.com/zapcontext/retrieval-engine/internal/core/domain"
)

// Key identifies one pipeline invocation. Options must encode every knob that
// changes the output, so two requests differing only in, say, max results
// never collide.
type Key struct {
	TenantID  string
	QueryText string
	Options   string
}

func (k Key) hash() string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(k.TenantID))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(k.QueryText))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(k.Options))
	return fmt.Sprintf("%016x", h.Sum64())
}

type entry struct {
	tenantID  string
	queryText string
	value     *domain.RetrievalResult
	expiresAt time.Time
}

// ResultCache memoizes pipeline output per key with a bounded lifetime.
// Correctness relies on expiry-on-read only; the background sweep exists to
// reclaim memory. Concurrent misses for the same key may compute more than
// once, the last writer wins.
type ResultCache struct {
	mu      sync.Mutex
	entries map[string]entry
	hits    uint64
	misses  uint64

	ttl  time.Duration
	now  func() time.Time
	done chan struct{}
	wg   sync.WaitGroup
}

// New creates a cache with the given default TTL. A sweepEvery of zero
// disables the background sweep.
func New(ttl, sweepEvery time.Duration) *ResultCache {
	c := &ResultCache{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
		done:    make(chan struct{}),
	}
	if sweepEvery > 0 {
		c.wg.Add(1)
		go c.sweepLoop(sweepEvery)
	}
	return c
}

// Shutdown stops the sweep goroutine and drops all entries.
func (c *ResultCache) Shutdown() {
	close(c.done)
	c.wg.Wait()

	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.mu.Unlock()
}

// GetOrCompute returns the cached value for key when it is still live,
// otherwise it runs compute and stores the outcome under ttl (the cache
// default when ttl <= 0). The second return reports a cache hit. Failed
// computations are never stored.
func (c *ResultCache) GetOrCompute(
	ctx context.Context,
	key Key,
	ttl time.Duration,
	compute func(context.Context) (*domain.RetrievalResult, error),
) (*domain.RetrievalResult, bool, error) {
	if ttl <= 0 {
		ttl = c.ttl
	}
	hash := key.hash()

	c.mu.Lock()
	if e, ok := c.entries[hash]; ok && c.now().Before(e.expiresAt) {
		c.hits++
		c.mu.Unlock()
		return e.value, true, nil
	}
	c.misses++
	c.mu.Unlock()

	value, err := compute(ctx)
	if err != nil {
		return nil, false, err
	}

	c.mu.Lock()
	c.entries[hash] = entry{
		tenantID:  key.TenantID,
		queryText: key.QueryText,
		value:     value,
		expiresAt: c.now().Add(ttl),
	}
	c.mu.Unlock()
	return value, false, nil
}

// Invalidate removes every entry for the tenant whose query text contains
// pattern. An empty pattern removes all of the tenant's entries. It returns
// the number of removed entries.
func (c *ResultCache) Invalidate(tenantID, pattern string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for hash, e := range c.entries {
		if e.tenantID != tenantID {
			continue
		}
		if pattern != "" && !strings.Contains(e.queryText, pattern) {
			continue
		}
		delete(c.entries, hash)
		removed++
	}
	return removed
}

func (c *ResultCache) Stats() domain.CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	live := 0
	now := c.now()
	for _, e := range c.entries {
		if now.Before(e.expiresAt) {
			live++
		}
	}

	total := c.hits + c.misses
	hitRate := 0.0
	if total > 0 {
		hitRate = float64(c.hits) / float64(total)
	}
	return domain.CacheStats{Entries: live, HitRate: hitRate}
}

func (c *ResultCache) sweepLoop(every time.Duration) {
	defer c.wg.Done()
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *ResultCache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for hash, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, hash)
		}
	}
}
