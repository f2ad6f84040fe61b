package domain

type AnswerabilityResult struct {
	CanAnswer      bool     `json:"can_answer"`
	Confidence     float64  `json:"confidence"`
	Reasoning      string   `json:"reasoning"`
	MissingInfo    []string `json:"missing_info,omitempty"`
	Reformulations []string `json:"reformulations,omitempty"`
}

// Citation ties an answer span to a source chunk. SourceChunkID must
// reference a chunk present in the reranked set used for synthesis; a
// dangling citation is a validation failure.
type Citation struct {
	ID            string  `json:"id"`
	Text          string  `json:"text"`
	SourceChunkID string  `json:"source_chunk_id"`
	Confidence    float64 `json:"confidence"`
}

type ResponseStatus string

const (
	StatusAnswered      ResponseStatus = "answered"
	StatusNoResults     ResponseStatus = "no_results"
	StatusUnanswerable  ResponseStatus = "unanswerable"
	StatusCostBlocked   ResponseStatus = "cost_blocked"
	StatusErrorFallback ResponseStatus = "error_fallback"
)

type ResponseMetadata struct {
	RequestID      string  `json:"request_id"`
	LatencyMS      int64   `json:"latency_ms"`
	Model          string  `json:"model"`
	RequestTokens  int     `json:"request_tokens"`
	ResponseTokens int     `json:"response_tokens"`
	Cost           float64 `json:"cost"`
	RetrievedCount int     `json:"retrieved_count"`
	RerankedCount  int     `json:"reranked_count"`
	CacheHit       bool    `json:"cache_hit"`
}

// RAGResponse is terminal and immutable; the orchestrator logs it exactly
// once per request.
type RAGResponse struct {
	Status        ResponseStatus   `json:"status"`
	Answer        string           `json:"answer"`
	Citations     []Citation       `json:"citations"`
	Confidence    float64          `json:"confidence"`
	Answerability float64          `json:"answerability"`
	Sources       []RetrievedChunk `json:"sources"`
	Metadata      ResponseMetadata `json:"metadata"`
	Reasoning     string           `json:"reasoning,omitempty"`
}
