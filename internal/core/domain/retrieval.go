package domain

import "time"

type SourceKind string

const (
	SourceVector  SourceKind = "vector"
	SourceLexical SourceKind = "lexical"
	SourceHybrid  SourceKind = "hybrid"
)

// RetrievalQuery identifies one retrieval attempt. Immutable once built.
type RetrievalQuery struct {
	TenantID             string  `json:"tenant_id"`
	Text                 string  `json:"text"`
	MaxResults           int     `json:"max_results"`
	SimilarityThreshold  float64 `json:"similarity_threshold"`
	EnableGraphExpansion bool    `json:"enable_graph_expansion"`
	UseCache             bool    `json:"use_cache"`
}

// DocumentMetadata carries the typed keys every producer agrees on, plus an
// Extra bag for payload fields not modeled here.
type DocumentMetadata struct {
	Source    string         `json:"source,omitempty"`
	CreatedAt time.Time      `json:"created_at,omitzero"`
	Extra     map[string]any `json:"extra,omitempty"`
}

type Document struct {
	ID         string           `json:"id"`
	Content    string           `json:"content"`
	Metadata   DocumentMetadata `json:"metadata"`
	Score      float64          `json:"score"`
	SourceKind SourceKind       `json:"source_kind"`
}

// Relationship is a directed edge owned by its source entity. It is read-only
// graph data; this subsystem never persists edges.
type Relationship struct {
	TargetEntityID string         `json:"target_entity_id"`
	RelationType   string         `json:"relation_type"`
	Properties     map[string]any `json:"properties,omitempty"`
}

type Entity struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Type          string         `json:"type"`
	Properties    map[string]any `json:"properties,omitempty"`
	Relationships []Relationship `json:"relationships,omitempty"`
}

// GraphEdge is one adjacency record returned by the graph store: the edge
// plus a snapshot of the node it points at.
type GraphEdge struct {
	SourceID     string
	RelationType string
	Properties   map[string]any
	Target       Entity
}

type RetrievalResult struct {
	Documents  []Document `json:"documents"`
	Entities   []Entity   `json:"entities"`
	Confidence float64    `json:"confidence"`
	Sources    []string   `json:"sources"`
}

// RetrievalMeta is per-call information exposed to the caller alongside the
// result. It lives outside RetrievalResult so cached values stay identical
// across hits.
type RetrievalMeta struct {
	CacheHit bool          `json:"cache_hit"`
	Took     time.Duration `json:"-"`
}

type CacheStats struct {
	Entries int     `json:"entries"`
	HitRate float64 `json:"hit_rate"`
}
