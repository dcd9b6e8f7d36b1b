package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	APIPort  string
	LogLevel string

	PostgresDSN string

	NATSURL     string
	NATSSubject string

	OllamaURL        string
	OllamaGenModel   string
	OllamaEmbedModel string

	QdrantURL                string
	QdrantDocsCollection     string
	QdrantEntitiesCollection string
	QdrantDistance           string

	Neo4jURI      string
	Neo4jUser     string
	Neo4jPassword string
	Neo4jDatabase string

	MaxResults          int
	SimilarityThreshold float64

	VectorWeight  float64
	LexicalWeight float64
	RerankWeight  float64

	BM25K1 float64
	BM25B  float64

	RerankTopN           int
	RerankTimeoutSeconds int

	RecencyDivisor   float64
	PrioritizeRecent bool

	GraphMaxHops        int
	GraphRelationTypes  []string
	GraphTimeoutSeconds int

	EmbedTimeoutSeconds  int
	SearchTimeoutSeconds int

	CacheTTLSeconds   int
	CacheSweepSeconds int

	RateLimitPerTenant float64
	RateLimitBurst     int

	TuningPath string
}

func Load() Config {
	return Config{
		APIPort:  mustEnv("API_PORT", "8080"),
		LogLevel: mustEnv("LOG_LEVEL", "info"),

		PostgresDSN: mustEnv("POSTGRES_DSN", ""),

		NATSURL:     mustEnv("NATS_URL", ""),
		NATSSubject: mustEnv("NATS_SUBJECT", "knowledge.updated"),

		OllamaURL:        mustEnv("OLLAMA_URL", "http://localhost:11434"),
		OllamaGenModel:   mustEnv("OLLAMA_GEN_MODEL", "llama3.1:8b"),
		OllamaEmbedModel: mustEnv("OLLAMA_EMBED_MODEL", "nomic-embed-text"),

		QdrantURL:                mustEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantDocsCollection:     mustEnv("QDRANT_DOCS_COLLECTION", "knowledge_documents"),
		QdrantEntitiesCollection: mustEnv("QDRANT_ENTITIES_COLLECTION", "knowledge_entities"),
		QdrantDistance:           mustEnv("QDRANT_DISTANCE", "Cosine"),

		Neo4jURI:      mustEnv("NEO4J_URI", ""),
		Neo4jUser:     mustEnv("NEO4J_USER", "neo4j"),
		Neo4jPassword: mustEnv("NEO4J_PASSWORD", ""),
		Neo4jDatabase: mustEnv("NEO4J_DATABASE", "neo4j"),

		MaxResults:          mustEnvInt("RETRIEVAL_MAX_RESULTS", 5),
		SimilarityThreshold: mustEnvFloat("RETRIEVAL_SIMILARITY_THRESHOLD", 0.7),

		VectorWeight:  mustEnvFloat("FUSION_VECTOR_WEIGHT", 0.4),
		LexicalWeight: mustEnvFloat("FUSION_LEXICAL_WEIGHT", 0.3),
		RerankWeight:  mustEnvFloat("FUSION_RERANK_WEIGHT", 0.3),

		BM25K1: mustEnvFloat("BM25_K1", 1.2),
		BM25B:  mustEnvFloat("BM25_B", 0.75),

		RerankTopN:           mustEnvInt("RERANK_TOP_N", 20),
		RerankTimeoutSeconds: mustEnvInt("RERANK_TIMEOUT_SECONDS", 5),

		RecencyDivisor:   mustEnvFloat("RECENCY_DIVISOR", 1e9),
		PrioritizeRecent: mustEnvBool("PRIORITIZE_RECENT", false),

		GraphMaxHops:        mustEnvInt("GRAPH_MAX_HOPS", 2),
		GraphRelationTypes:  mustEnvList("GRAPH_RELATION_TYPES", nil),
		GraphTimeoutSeconds: mustEnvInt("GRAPH_TIMEOUT_SECONDS", 5),

		EmbedTimeoutSeconds:  mustEnvInt("EMBED_TIMEOUT_SECONDS", 10),
		SearchTimeoutSeconds: mustEnvInt("SEARCH_TIMEOUT_SECONDS", 10),

		CacheTTLSeconds:   mustEnvInt("CACHE_TTL_SECONDS", 300),
		CacheSweepSeconds: mustEnvInt("CACHE_SWEEP_SECONDS", 60),

		RateLimitPerTenant: mustEnvFloat("RATE_LIMIT_PER_TENANT", 10),
		RateLimitBurst:     mustEnvInt("RATE_LIMIT_BURST", 20),

		TuningPath: mustEnv("RETRIEVAL_TUNING_PATH", ""),
	}
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func mustEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func mustEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
