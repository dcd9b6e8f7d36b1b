package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/zapcontext/retrieval-engine/internal/core/domain"
	"github.com/zapcontext/retrieval-engine/internal/infrastructure/resilience"
)

const lexicalVectorName = "lexical"

// Client is a read-only qdrant adapter for the retrieval pipeline. It queries
// two collections (documents and knowledge entities), always filtered by
// tenant at the store boundary, and never writes points.
type Client struct {
	baseURL             string
	documentsCollection string
	entitiesCollection  string
	distance            string
	httpClient          *http.Client
	executor            *resilience.Executor
}

type Options struct {
	Distance           string // "Cosine" (default) or "Euclid"
	RequestTimeout     time.Duration
	ResilienceExecutor *resilience.Executor
}

func New(baseURL, documentsCollection, entitiesCollection string, options Options) *Client {
	distance := options.Distance
	if distance == "" {
		distance = "Cosine"
	}
	timeout := options.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:             strings.TrimRight(baseURL, "/"),
		documentsCollection: documentsCollection,
		entitiesCollection:  entitiesCollection,
		distance:            distance,
		httpClient:          &http.Client{Timeout: timeout},
		executor:            options.ResilienceExecutor,
	}
}

type searchHit struct {
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

func (c *Client) SearchDocuments(
	ctx context.Context,
	tenantID string,
	queryVector []float32,
	limit int,
	minSimilarity float64,
) ([]domain.Document, error) {
	reqBody := map[string]any{
		"vector":          queryVector,
		"limit":           limit,
		"with_payload":    true,
		"score_threshold": c.thresholdForStore(minSimilarity),
		"filter":          tenantFilter(tenantID),
	}

	hits, err := c.search(ctx, c.documentsCollection, "search_documents", reqBody)
	if err != nil {
		return nil, err
	}
	return c.documentsFromHits(hits), nil
}

func (c *Client) SearchEntities(
	ctx context.Context,
	tenantID string,
	queryVector []float32,
	limit int,
	minSimilarity float64,
) ([]domain.Entity, error) {
	reqBody := map[string]any{
		"vector":          queryVector,
		"limit":           limit,
		"with_payload":    true,
		"score_threshold": c.thresholdForStore(minSimilarity),
		"filter":          tenantFilter(tenantID),
	}

	hits, err := c.search(ctx, c.entitiesCollection, "search_entities", reqBody)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Entity, 0, len(hits))
	for _, hit := range hits {
		out = append(out, domain.Entity{
			ID:         payloadString(hit.Payload, "entity_id"),
			Name:       payloadString(hit.Payload, "name"),
			Type:       payloadString(hit.Payload, "entity_type"),
			Properties: payloadMap(hit.Payload, "properties"),
		})
	}
	return out, nil
}

// SearchDocumentsLexical is the fallback path used when no query embedding is
// available: the query text is encoded into a sparse term vector and matched
// against the collection's named lexical vector.
func (c *Client) SearchDocumentsLexical(
	ctx context.Context,
	tenantID, queryText string,
	limit int,
) ([]domain.Document, error) {
	sparse := encodeSparseQuery(queryText)
	if len(sparse.Indices) == 0 {
		return nil, nil
	}

	reqBody := map[string]any{
		"vector": map[string]any{
			"name":   lexicalVectorName,
			"vector": sparse,
		},
		"limit":        limit,
		"with_payload": true,
		"filter":       tenantFilter(tenantID),
	}

	hits, err := c.search(ctx, c.documentsCollection, "search_lexical", reqBody)
	if err != nil {
		return nil, err
	}
	return c.documentsFromHits(hits), nil
}

func (c *Client) search(ctx context.Context, collection, operation string, reqBody map[string]any) ([]searchHit, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal %s body: %w", operation, err)
	}

	var hits []searchHit
	call := func(ctx context.Context) error {
		url := fmt.Sprintf("%s/collections/%s/points/search", c.baseURL, collection)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create %s request: %w", operation, err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("qdrant %s request: %w", operation, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			return newStatusError(operation, resp)
		}

		var searchResp struct {
			Result []searchHit `json:"result"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
			return fmt.Errorf("decode %s response: %w", operation, err)
		}
		hits = searchResp.Result
		return nil
	}

	if c.executor != nil {
		err = c.executor.Execute(ctx, "qdrant."+operation, call, classifyQdrantError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, wrapTemporaryIfNeeded("qdrant "+operation, err)
	}
	return hits, nil
}

func (c *Client) documentsFromHits(hits []searchHit) []domain.Document {
	out := make([]domain.Document, 0, len(hits))
	for _, hit := range hits {
		out = append(out, domain.Document{
			ID:      payloadString(hit.Payload, "doc_id"),
			Content: payloadString(hit.Payload, "content"),
			Metadata: domain.DocumentMetadata{
				Source:    payloadString(hit.Payload, "source"),
				CreatedAt: payloadTime(hit.Payload, "created_at"),
				Extra:     payloadMap(hit.Payload, "extra"),
			},
			Score:      c.toSimilarity(hit.Score),
			SourceKind: domain.SourceVector,
		})
	}
	return out
}

// toSimilarity maps the store-reported score onto a [0,1] similarity. For
// distance metrics the store reports distance and similarity = 1 - distance;
// for cosine the store already reports similarity.
func (c *Client) toSimilarity(score float64) float64 {
	if c.distance == "Euclid" {
		score = 1 - score
	}
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

func (c *Client) thresholdForStore(minSimilarity float64) float64 {
	if c.distance == "Euclid" {
		return 1 - minSimilarity
	}
	return minSimilarity
}

func tenantFilter(tenantID string) map[string]any {
	return map[string]any{
		"must": []map[string]any{
			{
				"key": "tenant_id",
				"match": map[string]any{
					"value": tenantID,
				},
			},
		},
	}
}

func payloadString(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func payloadTime(payload map[string]any, key string) time.Time {
	raw := payloadString(payload, key)
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

func payloadMap(payload map[string]any, key string) map[string]any {
	v, ok := payload[key]
	if !ok || v == nil {
		return nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	return m
}

func newStatusError(operation string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return &HTTPStatusError{
		Operation:  operation,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       strings.TrimSpace(string(body)),
	}
}
