package ports

import (
	"context"
	"time"

	"github.com/avolkova/ragcore/internal/core/domain"
)

// QueryService is the inbound contract for the query pipeline. It never
// returns an error to the caller; every failure mode is a typed terminal
// response.
type QueryService interface {
	Query(ctx context.Context, req domain.QueryRequest) *domain.RAGResponse
}

// Admission is the pre-flight allow/deny/degrade contract, usable
// standalone by other subsystems needing admission control.
type Admission interface {
	ShouldProceed(ctx context.Context, operation string, estimatedTokens int, estimatedCost float64, priority domain.Priority, requesterID string) domain.CostDecision
	// RefundCost credits back an admission-time estimate for work that
	// terminated before spending it, such as an empty retrieval.
	RefundCost(amount float64)
	RecordOutcome(latency time.Duration, success bool)
	Metrics() domain.UsageSnapshot
}
