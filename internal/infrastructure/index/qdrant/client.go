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

	"github.com/avolkova/ragcore/internal/core/domain"
	"github.com/avolkova/ragcore/internal/core/ports"
	"github.com/avolkova/ragcore/internal/infrastructure/resilience"
)

const (
	denseVectorName   = "dense"
	lexicalVectorName = "lexical"
)

// Index implements the content index contract over the Qdrant HTTP API.
// It is retrieval-only; indexing is owned by whatever pipeline fills the
// collection.
type Index struct {
	baseURL    string
	collection string
	httpClient *http.Client
	embedder   ports.Embedder
	exec       *resilience.Executor
}

func New(baseURL, collection string, embedder ports.Embedder) *Index {
	return NewWithResilience(baseURL, collection, embedder, resilience.DefaultConfig())
}

func NewWithResilience(baseURL, collection string, embedder ports.Embedder, cfg resilience.Config) *Index {
	return &Index{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		embedder:   embedder,
		exec:       resilience.NewExecutor(cfg),
	}
}

var _ ports.ContentIndex = (*Index)(nil)

func (c *Index) Retrieve(ctx context.Context, query string, plan domain.RetrievalPlan) ([]domain.RetrievedChunk, error) {
	limit := plan.RerankCandidates
	if limit <= 0 {
		limit = plan.TopK
	}
	if limit <= 0 {
		limit = 10
	}

	dense, err := c.denseSearch(ctx, query, plan, limit)
	if err != nil {
		return nil, err
	}

	switch plan.Strategy {
	case domain.StrategyHybrid, domain.StrategyEntityFocused:
		lexical, err := c.sparseSearch(ctx, query, plan, limit)
		if err != nil {
			return nil, err
		}
		fused := fuseRRF(dense, lexical, 0)
		return trimChunks(fused, limit), nil
	default:
		return trimChunks(dense, limit), nil
	}
}

func (c *Index) denseSearch(ctx context.Context, query string, plan domain.RetrievalPlan, limit int) ([]domain.RetrievedChunk, error) {
	vector, err := c.embedder.Encode(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}

	reqBody := map[string]any{
		"vector": map[string]any{
			"name":   denseVectorName,
			"vector": vector,
		},
		"limit":        limit,
		"with_payload": true,
	}
	if plan.ScoreThreshold > 0 {
		reqBody["score_threshold"] = plan.ScoreThreshold
	}
	if filter := buildFilter(plan); filter != nil {
		reqBody["filter"] = filter
	}

	var searchResp struct {
		Result []scoredPoint `json:"result"`
	}
	err = c.exec.Execute(ctx, "qdrant.search", func(ctx context.Context) error {
		return c.postJSON(ctx, fmt.Sprintf("/collections/%s/points/search", c.collection), reqBody, &searchResp, "search")
	}, classifyQdrantError)
	if err != nil {
		return nil, wrapTemporaryIfNeeded("qdrant.search", err)
	}
	return pointsToChunks(searchResp.Result), nil
}

func (c *Index) sparseSearch(ctx context.Context, query string, plan domain.RetrievalPlan, limit int) ([]domain.RetrievedChunk, error) {
	sparse := encodeSparseQuery(query)
	if len(sparse.Indices) == 0 {
		return nil, nil
	}

	reqBody := map[string]any{
		"query": map[string]any{
			"indices": sparse.Indices,
			"values":  sparse.Values,
		},
		"using":        lexicalVectorName,
		"limit":        limit,
		"with_payload": true,
	}
	if filter := buildFilter(plan); filter != nil {
		reqBody["filter"] = filter
	}

	var queryResp struct {
		Result struct {
			Points []scoredPoint `json:"points"`
		} `json:"result"`
	}
	err := c.exec.Execute(ctx, "qdrant.query", func(ctx context.Context) error {
		return c.postJSON(ctx, fmt.Sprintf("/collections/%s/points/query", c.collection), reqBody, &queryResp, "query")
	}, classifyQdrantError)
	if err != nil {
		return nil, wrapTemporaryIfNeeded("qdrant.query", err)
	}
	return pointsToChunks(queryResp.Result.Points), nil
}

type scoredPoint struct {
	ID      any            `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

func pointsToChunks(points []scoredPoint) []domain.RetrievedChunk {
	out := make([]domain.RetrievedChunk, 0, len(points))
	for _, p := range points {
		chunk := domain.RetrievedChunk{
			ID:       getStringPayload(p.Payload, "chunk_id"),
			SourceID: getStringPayload(p.Payload, "source_id"),
			Content:  getStringPayload(p.Payload, "content"),
			Score:    p.Score,
		}
		if chunk.ID == "" {
			chunk.ID = fmt.Sprintf("%v", p.ID)
		}
		if meta := payloadMetadata(p.Payload); meta != nil {
			chunk.Metadata = meta
		}
		out = append(out, chunk)
	}
	return out
}

func payloadMetadata(payload map[string]any) *domain.ChunkMetadata {
	meta := &domain.ChunkMetadata{
		Author: getStringPayload(payload, "author"),
	}
	if raw := getStringPayload(payload, "timestamp"); raw != "" {
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			meta.Timestamp = ts
		}
	}
	if rawTags, ok := payload["tags"].([]any); ok {
		for _, t := range rawTags {
			if s, ok := t.(string); ok {
				meta.Tags = append(meta.Tags, s)
			}
		}
	}
	if meta.Author == "" && meta.Timestamp.IsZero() && len(meta.Tags) == 0 {
		return nil
	}
	return meta
}

func buildFilter(plan domain.RetrievalPlan) map[string]any {
	var must []map[string]any

	if len(plan.Filters.SourceIDs) > 0 {
		must = append(must, map[string]any{
			"key":   "source_id",
			"match": map[string]any{"any": plan.Filters.SourceIDs},
		})
	}
	if len(plan.Filters.Tags) > 0 {
		must = append(must, map[string]any{
			"key":   "tags",
			"match": map[string]any{"any": plan.Filters.Tags},
		})
	}

	window := plan.TimeRange
	if window == nil {
		window = plan.Filters.TimeRange
	}
	if window != nil {
		rng := map[string]any{}
		if !window.From.IsZero() {
			rng["gte"] = window.From.Unix()
		}
		if !window.To.IsZero() {
			rng["lte"] = window.To.Unix()
		}
		if len(rng) > 0 {
			must = append(must, map[string]any{
				"key":   "timestamp_unix",
				"range": rng,
			})
		}
	}

	if len(must) == 0 {
		return nil
	}
	return map[string]any{"must": must}
}

func trimChunks(chunks []domain.RetrievedChunk, limit int) []domain.RetrievedChunk {
	if limit <= 0 || len(chunks) <= limit {
		return chunks
	}
	return chunks[:limit]
}

func (c *Index) postJSON(ctx context.Context, path string, payload any, out any, operation string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s body: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
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
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &HTTPStatusError{
			Operation:  operation,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(raw),
		}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
