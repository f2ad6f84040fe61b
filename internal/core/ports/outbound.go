package ports

import (
	"context"

	"github.com/avolkova/ragcore/internal/core/domain"
)

// Embedder encodes text into a vector. The hashed bag-of-words encoder is
// the dependency-free fallback; a real embedding backend can be substituted
// without touching the reranker.
type Embedder interface {
	Encode(ctx context.Context, text string) ([]float32, error)
}

// ContentIndex retrieves candidate chunks for a query according to a plan.
// An empty result is not an error.
type ContentIndex interface {
	Retrieve(ctx context.Context, query string, plan domain.RetrievalPlan) ([]domain.RetrievedChunk, error)
}

// GenerationResult is what the text-generation backend returns for one
// synthesis call.
type GenerationResult struct {
	Answer     string
	Citations  []domain.Citation
	TokensUsed int
	Cost       float64
	Confidence float64
}

// AnswerGenerator produces a grounded answer from reranked evidence.
type AnswerGenerator interface {
	Generate(
		ctx context.Context,
		query string,
		chunks []domain.RerankedChunk,
		intent domain.IntentAnalysis,
		answerability domain.AnswerabilityResult,
	) (*GenerationResult, error)
}

// UsageRecord is one append-only analytics row, emitted once per terminal
// response.
type UsageRecord struct {
	RequesterID    string  `json:"requester_id"`
	Operation      string  `json:"operation"`
	Model          string  `json:"model"`
	RequestTokens  int     `json:"request_tokens"`
	ResponseTokens int     `json:"response_tokens"`
	Cost           float64 `json:"cost"`
	LatencyMS      int64   `json:"latency_ms"`
	Confidence     float64 `json:"confidence"`
	Answerability  float64 `json:"answerability"`
	CitationCount  int     `json:"citation_count"`
	CacheHit       bool    `json:"cache_hit"`
	Fingerprint    string  `json:"fingerprint"`
}

// AnalyticsSink appends usage records; failures are logged, never
// propagated into the response path.
type AnalyticsSink interface {
	LogUsage(ctx context.Context, record UsageRecord) error
}
