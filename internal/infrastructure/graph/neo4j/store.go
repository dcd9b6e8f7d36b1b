package neo4j

import (
	"context"
	"fmt"

	neo4jdriver "github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/zapcontext/retrieval-engine/internal/core/domain"
)

// reserved node property keys; everything else lands in Entity.Properties.
var reservedNodeKeys = map[string]struct{}{
	"id":        {},
	"name":      {},
	"type":      {},
	"tenant_id": {},
}

// Store answers batched adjacency queries against a Neo4j knowledge graph.
// The traversal itself (hops, visited set, dedup) lives in the pipeline; this
// adapter only resolves one frontier at a time.
type Store struct {
	driver   neo4jdriver.DriverWithContext
	database string
}

func New(uri, username, password, database string) (*Store, error) {
	driver, err := neo4jdriver.NewDriverWithContext(uri, neo4jdriver.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	return &Store{driver: driver, database: database}, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

// Neighbors returns every outgoing edge from the frontier nodes to entities
// of the same tenant, restricted to the allowed relationship types when the
// allow-list is non-empty.
func (s *Store) Neighbors(
	ctx context.Context,
	tenantID string,
	frontier []string,
	relationTypes []string,
) ([]domain.GraphEdge, error) {
	if len(frontier) == 0 {
		return nil, nil
	}

	session := s.driver.NewSession(ctx, neo4jdriver.SessionConfig{
		DatabaseName: s.database,
		AccessMode:   neo4jdriver.AccessModeRead,
	})
	defer session.Close(ctx)

	const cypher = `
MATCH (a:Entity {tenant_id: $tenant_id})-[r]->(b:Entity {tenant_id: $tenant_id})
WHERE a.id IN $frontier AND (size($relation_types) = 0 OR type(r) IN $relation_types)
RETURN a.id AS source_id, type(r) AS relation_type, properties(r) AS relation_props, b AS target`

	if relationTypes == nil {
		relationTypes = []string{}
	}
	result, err := session.Run(ctx, cypher, map[string]any{
		"tenant_id":      tenantID,
		"frontier":       frontier,
		"relation_types": relationTypes,
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j neighbors query: %w", err)
	}

	edges := make([]domain.GraphEdge, 0, 16)
	for result.Next(ctx) {
		record := result.Record()

		sourceID, _, err := neo4jdriver.GetRecordValue[string](record, "source_id")
		if err != nil {
			return nil, fmt.Errorf("read source id: %w", err)
		}
		relationType, _, err := neo4jdriver.GetRecordValue[string](record, "relation_type")
		if err != nil {
			return nil, fmt.Errorf("read relation type: %w", err)
		}
		node, _, err := neo4jdriver.GetRecordValue[dbtype.Node](record, "target")
		if err != nil {
			return nil, fmt.Errorf("read target node: %w", err)
		}

		var relationProps map[string]any
		if raw, ok := record.Get("relation_props"); ok {
			relationProps, _ = raw.(map[string]any)
		}

		edges = append(edges, domain.GraphEdge{
			SourceID:     sourceID,
			RelationType: relationType,
			Properties:   relationProps,
			Target:       entityFromNode(node),
		})
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("neo4j neighbors result: %w", err)
	}
	return edges, nil
}

func entityFromNode(node dbtype.Node) domain.Entity {
	entity := domain.Entity{
		ID:   strProp(node.Props, "id"),
		Name: strProp(node.Props, "name"),
		Type: strProp(node.Props, "type"),
	}
	for key, value := range node.Props {
		if _, reserved := reservedNodeKeys[key]; reserved {
			continue
		}
		if entity.Properties == nil {
			entity.Properties = make(map[string]any)
		}
		entity.Properties[key] = value
	}
	return entity
}

func strProp(props map[string]any, key string) string {
	if v, ok := props[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
