package eval

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/avolkova/ragcore/internal/core/domain"
	"github.com/avolkova/ragcore/internal/core/ports"
)

// Options calibrates pass criteria and retry behavior.
type Options struct {
	PassF1           float64
	MaxHallucination float64
	MaxAttempts      int
	InitialBackoff   time.Duration
	MaxBackoff       time.Duration
	PerCaseTimeout   time.Duration
	Priority         domain.Priority
	sleep            func(time.Duration)
}

func DefaultOptions() Options {
	return Options{
		PassF1:           0.3,
		MaxHallucination: 0.5,
		MaxAttempts:      3,
		InitialBackoff:   500 * time.Millisecond,
		MaxBackoff:       30 * time.Second,
		PerCaseTimeout:   30 * time.Second,
		Priority:         domain.PriorityLow,
	}
}

func (o Options) normalize() Options {
	def := DefaultOptions()
	if o.PassF1 <= 0 || o.PassF1 > 1 {
		o.PassF1 = def.PassF1
	}
	if o.MaxHallucination <= 0 || o.MaxHallucination > 1 {
		o.MaxHallucination = def.MaxHallucination
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = def.MaxAttempts
	}
	if o.InitialBackoff <= 0 {
		o.InitialBackoff = def.InitialBackoff
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = def.MaxBackoff
	}
	if o.PerCaseTimeout <= 0 {
		o.PerCaseTimeout = def.PerCaseTimeout
	}
	if !o.Priority.Valid() {
		o.Priority = def.Priority
	}
	if o.sleep == nil {
		o.sleep = time.Sleep
	}
	return o
}

// Harness runs a labeled battery through the query pipeline and scores
// each response. It only observes responses; it never mutates pipeline
// state beyond the queries it issues.
type Harness struct {
	service ports.QueryService
	battery []Case
	opts    Options
}

func NewHarness(service ports.QueryService, battery []Case, opts Options) *Harness {
	if len(battery) == 0 {
		battery = BuiltinBattery()
	}
	return &Harness{service: service, battery: battery, opts: opts.normalize()}
}

// Run executes every case and aggregates the scores into a report.
func (h *Harness) Run(ctx context.Context, requesterID string) (*Report, error) {
	report := &Report{
		RequesterID: requesterID,
		RanAt:       time.Now().UTC(),
		ByCategory:  make(map[string]CategoryStats),
	}

	for _, c := range h.battery {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		resp := h.runCase(ctx, c, requesterID)
		result := h.score(c, resp)
		report.add(result)
		slog.Info("eval_case",
			"case_id", c.ID,
			"category", c.Category,
			"status", string(resp.Status),
			"passed", result.Passed,
			"f1", result.F1,
		)
	}

	report.finalize()
	return report, nil
}

// runCase issues the query, retrying transient pipeline fallbacks with
// capped exponential backoff and jitter.
func (h *Harness) runCase(ctx context.Context, c Case, requesterID string) *domain.RAGResponse {
	backoff := h.opts.InitialBackoff
	var resp *domain.RAGResponse
	for attempt := 1; ; attempt++ {
		caseCtx, cancel := context.WithTimeout(ctx, h.opts.PerCaseTimeout)
		resp = h.service.Query(caseCtx, domain.QueryRequest{
			Query:       c.Query,
			RequesterID: requesterID,
			Priority:    h.opts.Priority,
		})
		cancel()

		if resp.Status != domain.StatusErrorFallback || attempt >= h.opts.MaxAttempts || ctx.Err() != nil {
			return resp
		}
		jittered := backoff + time.Duration(rand.Int63n(int64(backoff)/2+1))
		if jittered > h.opts.MaxBackoff {
			jittered = h.opts.MaxBackoff
		}
		h.opts.sleep(jittered)
		backoff *= 2
	}
}

func (h *Harness) score(c Case, resp *domain.RAGResponse) CaseResult {
	result := CaseResult{
		CaseID:     c.ID,
		Category:   c.Category,
		Difficulty: c.Difficulty,
		Status:     string(resp.Status),
		Confidence: resp.Confidence,
	}

	if c.ExpectRefusal {
		result.Passed = resp.Status == domain.StatusUnanswerable ||
			resp.Status == domain.StatusNoResults
		if !result.Passed {
			result.Failure = "trap question was answered instead of declined"
		}
		return result
	}

	if resp.Status != domain.StatusAnswered {
		result.Failure = "expected an answer, got " + string(resp.Status)
		return result
	}

	result.CitationAccuracy = CitationAccuracy(resp.Citations, resp.Sources)
	result.HallucinationRate = HallucinationRate(resp.Answer, resp.Sources)

	if c.ReferenceAnswer != "" {
		result.HasReference = true
		result.ExactMatch = ExactMatch(resp.Answer, c.ReferenceAnswer)
		result.F1 = TokenF1(resp.Answer, c.ReferenceAnswer)
		result.BLEU1 = BLEU1(resp.Answer, c.ReferenceAnswer)
		result.ROUGE1 = ROUGEN(resp.Answer, c.ReferenceAnswer, 1)
		result.ROUGE2 = ROUGEN(resp.Answer, c.ReferenceAnswer, 2)
		result.ROUGEL = ROUGEL(resp.Answer, c.ReferenceAnswer)
	}

	switch {
	case len(resp.Citations) == 0:
		result.Failure = "answer carried no citations"
	case result.HallucinationRate > h.opts.MaxHallucination:
		result.Failure = "answer insufficiently grounded in sources"
	case c.ReferenceAnswer != "" && result.F1 < h.opts.PassF1:
		result.Failure = "answer diverged from the reference"
	default:
		result.Passed = true
	}
	return result
}
