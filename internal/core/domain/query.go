package domain

import "time"

// Priority orders admission-control treatment of a request. Higher tiers
// receive larger rate and budget allowances.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

type ConversationTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type SearchFilter struct {
	SourceIDs []string   `json:"source_ids,omitempty"`
	Tags      []string   `json:"tags,omitempty"`
	TimeRange *TimeRange `json:"time_range,omitempty"`
}

// QueryRequest is immutable once submitted; the pipeline never writes to it.
type QueryRequest struct {
	Query          string             `json:"query"`
	RequesterID    string             `json:"requester_id"`
	History        []ConversationTurn `json:"history,omitempty"`
	Filters        SearchFilter       `json:"filters,omitempty"`
	Priority       Priority           `json:"priority,omitempty"`
	MaxResults     int                `json:"max_results,omitempty"`
	ScoreThreshold float64            `json:"score_threshold,omitempty"`
	RerankDisabled bool               `json:"rerank_disabled,omitempty"`
}

type IntentType string

const (
	IntentFactual     IntentType = "factual"
	IntentProcedural  IntentType = "procedural"
	IntentCausal      IntentType = "causal"
	IntentTemporal    IntentType = "temporal"
	IntentEntity      IntentType = "entity"
	IntentComparative IntentType = "comparative"
)

// IntentAnalysis is derived once per request and never mutated afterwards.
type IntentAnalysis struct {
	Type        IntentType `json:"type"`
	Complexity  float64    `json:"complexity"`
	Scopes      []string   `json:"scopes,omitempty"`
	Entities    []string   `json:"entities,omitempty"`
	TimeRange   *TimeRange `json:"time_range,omitempty"`
	AnswerShape string     `json:"answer_shape"`
}

type RetrievalStrategy string

const (
	StrategyTemporal      RetrievalStrategy = "temporal"
	StrategyEntityFocused RetrievalStrategy = "entity_focused"
	StrategyHybrid        RetrievalStrategy = "hybrid"
	StrategySemantic      RetrievalStrategy = "semantic"
)

// RetrievalPlan is consumed exactly once by the content index adapter.
type RetrievalPlan struct {
	Strategy         RetrievalStrategy `json:"strategy"`
	TopK             int               `json:"top_k"`
	RerankCandidates int               `json:"rerank_candidates"`
	Filters          SearchFilter      `json:"filters,omitempty"`
	IncludeMetadata  bool              `json:"include_metadata"`
	TimeRange        *TimeRange        `json:"time_range,omitempty"`
	ScoreThreshold   float64           `json:"score_threshold,omitempty"`
}
