package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/avolkova/ragcore/internal/core/answer"
	"github.com/avolkova/ragcore/internal/core/domain"
	"github.com/avolkova/ragcore/internal/core/intent"
	"github.com/avolkova/ragcore/internal/core/ports"
	"github.com/avolkova/ragcore/internal/core/rerank"
)

const ragOperation = "rag_query"

// Options are the pipeline's own calibration knobs.
type Options struct {
	MaxQueryLength int
	CostPerToken   float64
	TokenOverhead  int
	ModelTag       string
	FallbackModel  string
}

func DefaultOptions() Options {
	return Options{
		MaxQueryLength: 4096,
		CostPerToken:   0.00002,
		TokenOverhead:  200,
		ModelTag:       "ragcore-v1",
		FallbackModel:  "fallback",
	}
}

func (o Options) normalize() Options {
	def := DefaultOptions()
	if o.MaxQueryLength <= 0 {
		o.MaxQueryLength = def.MaxQueryLength
	}
	if o.CostPerToken <= 0 {
		o.CostPerToken = def.CostPerToken
	}
	if o.TokenOverhead <= 0 {
		o.TokenOverhead = def.TokenOverhead
	}
	if o.ModelTag == "" {
		o.ModelTag = def.ModelTag
	}
	if o.FallbackModel == "" {
		o.FallbackModel = def.FallbackModel
	}
	return o
}

// Observer receives each terminal response exactly once; the prometheus
// registry implements it.
type Observer interface {
	ObserveQuery(status domain.ResponseStatus, latency time.Duration)
}

// Pipeline is the query orchestrator: admission pre-flight, intent
// analysis, retrieval, reranking, answerability gating, synthesis and
// response assembly. Every stage may short-circuit into a typed terminal
// response; Query never returns an error to the caller.
type Pipeline struct {
	admission   ports.Admission
	analyzer    *intent.Analyzer
	index       ports.ContentIndex
	reranker    *rerank.Reranker
	gate        *answer.Gate
	synthesizer *answer.Synthesizer
	sink        ports.AnalyticsSink
	observer    Observer
	opts        Options
}

func NewPipeline(
	admissionCtl ports.Admission,
	analyzer *intent.Analyzer,
	index ports.ContentIndex,
	reranker *rerank.Reranker,
	gate *answer.Gate,
	synthesizer *answer.Synthesizer,
	sink ports.AnalyticsSink,
	observer Observer,
	opts Options,
) *Pipeline {
	return &Pipeline{
		admission:   admissionCtl,
		analyzer:    analyzer,
		index:       index,
		reranker:    reranker,
		gate:        gate,
		synthesizer: synthesizer,
		sink:        sink,
		observer:    observer,
		opts:        opts.normalize(),
	}
}

// Query runs the full pipeline and always returns a terminal response.
func (p *Pipeline) Query(ctx context.Context, req domain.QueryRequest) *domain.RAGResponse {
	start := time.Now()
	meta := domain.ResponseMetadata{
		RequestID: uuid.NewString(),
		Model:     p.opts.ModelTag,
	}

	query := strings.TrimSpace(req.Query)
	if query == "" {
		return p.finish(ctx, req, start, errorResponse(meta, p.opts.FallbackModel, "query is empty"))
	}
	if len(query) > p.opts.MaxQueryLength {
		return p.finish(ctx, req, start,
			errorResponse(meta, p.opts.FallbackModel, fmt.Sprintf("query exceeds %d characters", p.opts.MaxQueryLength)))
	}

	priority := req.Priority
	if !priority.Valid() {
		priority = domain.PriorityMedium
	}

	estimatedTokens := len(strings.Fields(query)) + p.opts.TokenOverhead
	estimatedCost := float64(estimatedTokens) * p.opts.CostPerToken

	decision := p.admission.ShouldProceed(ctx, ragOperation, estimatedTokens, estimatedCost, priority, req.RequesterID)
	meta.CacheHit = decision.CacheHit
	if !decision.Allowed {
		resp := &domain.RAGResponse{
			Status:    domain.StatusCostBlocked,
			Citations: []domain.Citation{},
			Metadata:  meta,
			Reasoning: decision.Reason,
		}
		return p.finish(ctx, req, start, resp)
	}
	meta.Cost = decision.EstimatedCost
	meta.RequestTokens = estimatedTokens

	if deadlineExceeded(ctx) {
		return p.finish(ctx, req, start, errorResponse(meta, p.opts.FallbackModel, "deadline exceeded before retrieval"))
	}

	analysis := p.analyzer.Analyze(query, req.History)
	plan := intent.BuildPlan(analysis, req)

	chunks, err := p.index.Retrieve(ctx, query, plan)
	if err != nil {
		p.admission.RecordOutcome(time.Since(start), false)
		slog.Error("retrieval_failed", "request_id", meta.RequestID, "error", err)
		return p.finish(ctx, req, start, errorResponse(meta, p.opts.FallbackModel, "content index unavailable"))
	}
	meta.RetrievedCount = len(chunks)

	if len(chunks) == 0 {
		// Empty retrieval charges nothing: credit the admission-time
		// estimate back and report zero cost.
		p.admission.RefundCost(meta.Cost)
		meta.Cost = 0
		resp := &domain.RAGResponse{
			Status:    domain.StatusNoResults,
			Citations: []domain.Citation{},
			Sources:   []domain.RetrievedChunk{},
			Metadata:  meta,
			Reasoning: "no content matched the query",
		}
		return p.finish(ctx, req, start, resp)
	}

	if deadlineExceeded(ctx) {
		return p.finish(ctx, req, start, errorResponse(meta, p.opts.FallbackModel, "deadline exceeded before reranking"))
	}

	var reranked []domain.RerankedChunk
	if req.RerankDisabled {
		reranked = p.reranker.Passthrough(chunks, req.MaxResults)
	} else {
		reranked = p.reranker.Rerank(query, chunks, analysis, req.History, req.MaxResults)
	}
	meta.RerankedCount = len(reranked)

	answerability := p.gate.Assess(query, reranked)
	if !answerability.CanAnswer {
		resp := &domain.RAGResponse{
			Status:        domain.StatusUnanswerable,
			Citations:     []domain.Citation{},
			Answerability: answerability.Confidence,
			Sources:       sourcesOf(reranked),
			Metadata:      meta,
			Reasoning:     answerability.Reasoning,
		}
		return p.finish(ctx, req, start, resp)
	}

	if deadlineExceeded(ctx) {
		return p.finish(ctx, req, start, errorResponse(meta, p.opts.FallbackModel, "deadline exceeded before synthesis"))
	}

	result, err := p.synthesizer.Synthesize(ctx, query, reranked, analysis, answerability)
	if err != nil {
		p.admission.RecordOutcome(time.Since(start), false)
		slog.Error("synthesis_failed", "request_id", meta.RequestID, "error", err)
		return p.finish(ctx, req, start, errorResponse(meta, p.opts.FallbackModel, "generation backend unavailable"))
	}

	meta.ResponseTokens = result.TokensUsed
	meta.Cost += result.Cost
	p.admission.RecordOutcome(time.Since(start), true)

	resp := &domain.RAGResponse{
		Status:        domain.StatusAnswered,
		Answer:        result.Answer,
		Citations:     result.Citations,
		Confidence:    result.Confidence,
		Answerability: answerability.Confidence,
		Sources:       sourcesOf(reranked),
		Metadata:      meta,
	}
	return p.finish(ctx, req, start, resp)
}

// finish stamps latency, emits the single analytics record and metrics
// observation, and logs the terminal response once.
func (p *Pipeline) finish(ctx context.Context, req domain.QueryRequest, start time.Time, resp *domain.RAGResponse) *domain.RAGResponse {
	latency := time.Since(start)
	resp.Metadata.LatencyMS = latency.Milliseconds()

	if p.observer != nil {
		p.observer.ObserveQuery(resp.Status, latency)
	}

	if p.sink != nil {
		record := ports.UsageRecord{
			RequesterID:    req.RequesterID,
			Operation:      ragOperation,
			Model:          resp.Metadata.Model,
			RequestTokens:  resp.Metadata.RequestTokens,
			ResponseTokens: resp.Metadata.ResponseTokens,
			Cost:           resp.Metadata.Cost,
			LatencyMS:      resp.Metadata.LatencyMS,
			Confidence:     resp.Confidence,
			Answerability:  resp.Answerability,
			CitationCount:  len(resp.Citations),
			CacheHit:       resp.Metadata.CacheHit,
			Fingerprint:    fingerprint(req.Query),
		}
		if err := p.sink.LogUsage(context.WithoutCancel(ctx), record); err != nil {
			slog.Warn("analytics_log_failed", "request_id", resp.Metadata.RequestID, "error", err)
		}
	}

	slog.Info("rag_response",
		"request_id", resp.Metadata.RequestID,
		"status", string(resp.Status),
		"latency_ms", resp.Metadata.LatencyMS,
		"cost", resp.Metadata.Cost,
		"confidence", resp.Confidence,
		"citations", len(resp.Citations),
		"cache_hit", resp.Metadata.CacheHit,
	)
	return resp
}

func errorResponse(meta domain.ResponseMetadata, fallbackModel, reason string) *domain.RAGResponse {
	meta.Model = fallbackModel
	return &domain.RAGResponse{
		Status:    domain.StatusErrorFallback,
		Citations: []domain.Citation{},
		Sources:   []domain.RetrievedChunk{},
		Metadata:  meta,
		Reasoning: reason,
	}
}

func sourcesOf(reranked []domain.RerankedChunk) []domain.RetrievedChunk {
	out := make([]domain.RetrievedChunk, 0, len(reranked))
	for _, chunk := range reranked {
		out = append(out, chunk.RetrievedChunk)
	}
	return out
}

func deadlineExceeded(ctx context.Context) bool {
	return ctx.Err() != nil
}

func fingerprint(query string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(query))))
	return hex.EncodeToString(sum[:8])
}
