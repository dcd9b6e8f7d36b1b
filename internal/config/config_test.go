package config

import "testing"

func TestLoadPipelineDefaults(t *testing.T) {
	t.Setenv("FUSION_VECTOR_WEIGHT", "")
	t.Setenv("FUSION_LEXICAL_WEIGHT", "")
	t.Setenv("FUSION_RERANK_WEIGHT", "")
	t.Setenv("RETRIEVAL_MAX_RESULTS", "")
	t.Setenv("RETRIEVAL_SIMILARITY_THRESHOLD", "")
	t.Setenv("CACHE_TTL_SECONDS", "")
	t.Setenv("GRAPH_MAX_HOPS", "")
	t.Setenv("RECENCY_DIVISOR", "")

	cfg := Load()
	if cfg.VectorWeight != 0.4 || cfg.LexicalWeight != 0.3 || cfg.RerankWeight != 0.3 {
		t.Fatalf("expected default weights 0.4/0.3/0.3, got %f/%f/%f", cfg.VectorWeight, cfg.LexicalWeight, cfg.RerankWeight)
	}
	if cfg.MaxResults != 5 {
		t.Fatalf("expected default max results 5, got %d", cfg.MaxResults)
	}
	if cfg.SimilarityThreshold != 0.7 {
		t.Fatalf("expected default similarity threshold 0.7, got %f", cfg.SimilarityThreshold)
	}
	if cfg.CacheTTLSeconds != 300 {
		t.Fatalf("expected default cache ttl 300s, got %d", cfg.CacheTTLSeconds)
	}
	if cfg.GraphMaxHops != 2 {
		t.Fatalf("expected default max hops 2, got %d", cfg.GraphMaxHops)
	}
	if cfg.RecencyDivisor != 1e9 {
		t.Fatalf("expected default recency divisor 1e9, got %f", cfg.RecencyDivisor)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("FUSION_VECTOR_WEIGHT", "0.6")
	t.Setenv("RETRIEVAL_MAX_RESULTS", "12")
	t.Setenv("GRAPH_RELATION_TYPES", "RELATES_TO, DEPENDS_ON")
	t.Setenv("PRIORITIZE_RECENT", "true")
	t.Setenv("RATE_LIMIT_PER_TENANT", "25")

	cfg := Load()
	if cfg.VectorWeight != 0.6 {
		t.Fatalf("expected vector weight override, got %f", cfg.VectorWeight)
	}
	if cfg.MaxResults != 12 {
		t.Fatalf("expected max results 12, got %d", cfg.MaxResults)
	}
	if len(cfg.GraphRelationTypes) != 2 || cfg.GraphRelationTypes[1] != "DEPENDS_ON" {
		t.Fatalf("expected relation type list parsed, got %v", cfg.GraphRelationTypes)
	}
	if !cfg.PrioritizeRecent {
		t.Fatalf("expected prioritize recent true")
	}
	if cfg.RateLimitPerTenant != 25 {
		t.Fatalf("expected rate limit 25, got %f", cfg.RateLimitPerTenant)
	}
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("RETRIEVAL_MAX_RESULTS", "not-a-number")
	t.Setenv("FUSION_VECTOR_WEIGHT", "also-bad")

	cfg := Load()
	if cfg.MaxResults != 5 {
		t.Fatalf("expected fallback to default on malformed int, got %d", cfg.MaxResults)
	}
	if cfg.VectorWeight != 0.4 {
		t.Fatalf("expected fallback to default on malformed float, got %f", cfg.VectorWeight)
	}
}
