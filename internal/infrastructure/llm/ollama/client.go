package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/zapcontext/retrieval-engine/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	genModel   string
	embedModel string
	httpClient *http.Client
	executor   *resilience.Executor
}

type Options struct {
	RequestTimeout     time.Duration
	ResilienceExecutor *resilience.Executor
}

func New(baseURL, genModel, embedModel string, options Options) *Client {
	timeout := options.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: timeout},
		executor:   options.ResilienceExecutor,
	}
}

// Embedder converts query text into the model's embedding space.
type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	request := map[string]any{
		"model": e.client.embedModel,
		"input": texts,
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := e.client.postJSON(ctx, "/api/embed", request, &response, "embed"); err != nil {
		return nil, err
	}
	return response.Embeddings, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return vectors[0], nil
}

// Scorer is the cross-encoder boundary: it asks the generation model for a
// numeric relevance judgment of one (query, passage) pair.
type Scorer struct {
	client *Client
}

func NewScorer(client *Client) *Scorer {
	return &Scorer{client: client}
}

func (s *Scorer) ScoreRelevance(ctx context.Context, query, passage string) (float64, error) {
	raw, err := s.client.generateJSON(ctx, buildRelevancePrompt(query, passage))
	if err != nil {
		return 0, err
	}
	score, err := parseRelevanceScore(raw)
	if err != nil {
		return 0, fmt.Errorf("parse relevance score: %w", err)
	}
	return score, nil
}

func (c *Client) generateJSON(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]any{
		"model":  c.genModel,
		"prompt": prompt,
		"stream": false,
		"format": "json",
	}

	var response struct {
		Response string `json:"response"`
	}
	if err := c.postJSON(ctx, "/api/generate", reqBody, &response, "generate"); err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}

// parseRelevanceScore accepts either the requested {"score": x} object or a
// bare number, clamped to [0,1]. Anything else is a malformed response.
func parseRelevanceScore(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("empty response")
	}

	if v, err := strconv.ParseFloat(raw, 64); err == nil {
		return clampScore(v), nil
	}

	obj := extractJSONObject(raw)
	var parsed struct {
		Score *float64 `json:"score"`
	}
	if err := unmarshalLoose(obj, &parsed); err != nil {
		return 0, fmt.Errorf("non-numeric output %q", truncateForError(raw))
	}
	if parsed.Score == nil {
		return 0, fmt.Errorf("missing score field in %q", truncateForError(raw))
	}
	return clampScore(*parsed.Score), nil
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}

func truncateForError(raw string) string {
	const limit = 120
	if len(raw) <= limit {
		return raw
	}
	return raw[:limit] + "..."
}
