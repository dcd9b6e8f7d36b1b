package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Tuning is the optional file-based overlay for the pipeline's heuristic
// constants. Fields left at zero keep the env/default value. Operators use it
// to experiment with weights without redeploying.
type Tuning struct {
	Fusion struct {
		VectorWeight  float64 `yaml:"vector_weight"`
		LexicalWeight float64 `yaml:"lexical_weight"`
		RerankWeight  float64 `yaml:"rerank_weight"`
	} `yaml:"fusion"`

	BM25 struct {
		K1 float64 `yaml:"k1"`
		B  float64 `yaml:"b"`
	} `yaml:"bm25"`

	Rerank struct {
		TopN int `yaml:"top_n"`
	} `yaml:"rerank"`

	Recency struct {
		Divisor float64 `yaml:"divisor"`
	} `yaml:"recency"`

	Graph struct {
		MaxHops       int      `yaml:"max_hops"`
		RelationTypes []string `yaml:"relation_types"`
	} `yaml:"graph"`
}

func LoadTuning(path string) (Tuning, error) {
	var tuning Tuning
	data, err := os.ReadFile(path)
	if err != nil {
		return tuning, fmt.Errorf("read tuning file: %w", err)
	}
	if err := yaml.Unmarshal(data, &tuning); err != nil {
		return tuning, fmt.Errorf("parse tuning file: %w", err)
	}
	return tuning, nil
}

// Apply overlays the non-zero tuning values onto cfg.
func (t Tuning) Apply(cfg Config) Config {
	if t.Fusion.VectorWeight > 0 {
		cfg.VectorWeight = t.Fusion.VectorWeight
	}
	if t.Fusion.LexicalWeight > 0 {
		cfg.LexicalWeight = t.Fusion.LexicalWeight
	}
	if t.Fusion.RerankWeight > 0 {
		cfg.RerankWeight = t.Fusion.RerankWeight
	}
	if t.BM25.K1 > 0 {
		cfg.BM25K1 = t.BM25.K1
	}
	if t.BM25.B > 0 {
		cfg.BM25B = t.BM25.B
	}
	if t.Rerank.TopN > 0 {
		cfg.RerankTopN = t.Rerank.TopN
	}
	if t.Recency.Divisor > 0 {
		cfg.RecencyDivisor = t.Recency.Divisor
	}
	if t.Graph.MaxHops > 0 {
		cfg.GraphMaxHops = t.Graph.MaxHops
	}
	if len(t.Graph.RelationTypes) > 0 {
		cfg.GraphRelationTypes = t.Graph.RelationTypes
	}
	return cfg
}
