package usecase

import (
	"context"
	"log/slog"

	"github.com/zapcontext/retrieval-engine/internal/core/domain"
	"github.com/zapcontext/retrieval-engine/internal/core/ports"
)

const defaultGraphMaxHops = 2

// GraphExpander grows a seed entity set by bounded-hop breadth-first
// traversal over the graph store's adjacency. One batched neighbor query is
// issued per hop frontier, so a traversal costs at most maxHops queries.
type GraphExpander struct {
	adjacency ports.GraphAdjacency
	logger    *slog.Logger
}

func NewGraphExpander(adjacency ports.GraphAdjacency, logger *slog.Logger) *GraphExpander {
	if logger == nil {
		logger = slog.Default()
	}
	return &GraphExpander{adjacency: adjacency, logger: logger}
}

// Expand returns the seed entities plus everything reachable within maxHops
// across the allowed relationship types, deduplicated by id. Relationship
// lists only carry edges whose target is part of the returned set.
//
// Expansion is best-effort: any traversal error degrades to "no expansion"
// (nil) and an empty seed set short-circuits without touching the store.
func (e *GraphExpander) Expand(
	ctx context.Context,
	tenantID string,
	seeds []domain.Entity,
	maxHops int,
	relationTypes []string,
) []domain.Entity {
	if len(seeds) == 0 || e.adjacency == nil {
		return nil
	}
	if maxHops <= 0 {
		maxHops = defaultGraphMaxHops
	}

	collected := make(map[string]domain.Entity, len(seeds))
	order := make([]string, 0, len(seeds))
	frontier := make([]string, 0, len(seeds))
	for _, seed := range seeds {
		if seed.ID == "" {
			continue
		}
		if _, ok := collected[seed.ID]; ok {
			continue
		}
		seed.Relationships = nil
		collected[seed.ID] = seed
		order = append(order, seed.ID)
		frontier = append(frontier, seed.ID)
	}
	if len(frontier) == 0 {
		return nil
	}

	edges := make([]domain.GraphEdge, 0, 32)
	for hop := 0; hop < maxHops && len(frontier) > 0; hop++ {
		batch, err := e.adjacency.Neighbors(ctx, tenantID, frontier, relationTypes)
		if err != nil {
			e.logger.Warn("graph_expansion_degraded",
				"tenant_id", tenantID,
				"hop", hop+1,
				"frontier_size", len(frontier),
				"error", err,
			)
			return nil
		}

		next := make([]string, 0, len(batch))
		for _, edge := range batch {
			edges = append(edges, edge)
			target := edge.Target
			if target.ID == "" {
				continue
			}
			if _, seen := collected[target.ID]; seen {
				continue
			}
			target.Relationships = nil
			collected[target.ID] = target
			order = append(order, target.ID)
			next = append(next, target.ID)
		}
		frontier = next
	}

	// Attach only edges that stay inside the expanded node set, so no
	// relationship dangles past this call.
	for _, edge := range edges {
		source, ok := collected[edge.SourceID]
		if !ok {
			continue
		}
		if _, ok := collected[edge.Target.ID]; !ok {
			continue
		}
		source.Relationships = append(source.Relationships, domain.Relationship{
			TargetEntityID: edge.Target.ID,
			RelationType:   edge.RelationType,
			Properties:     edge.Properties,
		})
		collected[edge.SourceID] = source
	}

	out := make([]domain.Entity, 0, len(order))
	for _, id := range order {
		out = append(out, collected[id])
	}
	return out
}
