package eval

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/avolkova/ragcore/internal/core/domain"
)

// scriptedService answers each query from a canned response table keyed by
// a query substring, falling back to unanswerable.
type scriptedService struct {
	responses map[string]*domain.RAGResponse
	calls     int
}

func (s *scriptedService) Query(_ context.Context, req domain.QueryRequest) *domain.RAGResponse {
	s.calls++
	for needle, resp := range s.responses {
		if strings.Contains(req.Query, needle) {
			return resp
		}
	}
	return &domain.RAGResponse{
		Status:    domain.StatusUnanswerable,
		Citations: []domain.Citation{},
		Reasoning: "insufficient evidence",
	}
}

func answeredResponse(answer string, chunk domain.RetrievedChunk, citationText string) *domain.RAGResponse {
	return &domain.RAGResponse{
		Status:     domain.StatusAnswered,
		Answer:     answer,
		Confidence: 0.8,
		Citations: []domain.Citation{
			{ID: "cit-1", Text: citationText, SourceChunkID: chunk.ID, Confidence: 0.9},
		},
		Sources: []domain.RetrievedChunk{chunk},
	}
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.InitialBackoff = time.Millisecond
	opts.PerCaseTimeout = time.Second
	opts.sleep = func(time.Duration) {}
	return opts
}

func TestHarnessScoresBattery(t *testing.T) {
	parisChunk := domain.RetrievedChunk{
		ID:      "c-paris",
		Content: "Paris est la capitale de la France",
		Score:   0.9,
	}
	service := &scriptedService{responses: map[string]*domain.RAGResponse{
		"capitale de la France": answeredResponse(
			"Paris est la capitale de la France.",
			parisChunk,
			"Paris est la capitale",
		),
	}}

	battery := []Case{
		{ID: "factual-1", Category: "factual", Query: "Quelle est la capitale de la France?",
			ReferenceAnswer: "Paris est la capitale de la France."},
		{ID: "trap-1", Category: "trap", Query: "What happened at the 2031 all-hands?",
			ExpectRefusal: true},
	}

	h := NewHarness(service, battery, testOptions())
	report, err := h.Run(context.Background(), "eval-user")
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if report.Total != 2 || report.Passed != 2 {
		t.Fatalf("expected 2/2 passed, got %d/%d", report.Passed, report.Total)
	}
	if report.ByCategory["factual"].Passed != 1 || report.ByCategory["trap"].Passed != 1 {
		t.Fatalf("category breakdown wrong: %+v", report.ByCategory)
	}
	if report.MeanF1 != 1 {
		t.Fatalf("identical answer must yield F1 1, got %f", report.MeanF1)
	}
	if report.CitationAccuracy != 1 {
		t.Fatalf("expected citation accuracy 1, got %f", report.CitationAccuracy)
	}
	if report.HallucinationRate != 0 {
		t.Fatalf("expected hallucination rate 0, got %f", report.HallucinationRate)
	}
}

func TestHarnessFlagsAnsweredTrap(t *testing.T) {
	fabricated := domain.RetrievedChunk{ID: "c-x", Content: "unrelated content"}
	service := &scriptedService{responses: map[string]*domain.RAGResponse{
		"2031": answeredResponse("The CEO announced teleportation.", fabricated, "unrelated content"),
	}}

	battery := []Case{
		{ID: "trap-1", Category: "trap", Query: "What happened at the 2031 all-hands?", ExpectRefusal: true},
	}
	report, err := NewHarness(service, battery, testOptions()).Run(context.Background(), "eval-user")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Passed != 0 {
		t.Fatalf("answered trap must fail, got %d passed", report.Passed)
	}
	if len(report.Recommendations) == 0 {
		t.Fatalf("expected a recommendation about the permissive gate")
	}
}

func TestHarnessRetriesTransientFallback(t *testing.T) {
	resp := &domain.RAGResponse{Status: domain.StatusErrorFallback, Reasoning: "backend down"}
	service := &scriptedService{responses: map[string]*domain.RAGResponse{"anything": resp}}

	battery := []Case{{ID: "f-1", Category: "factual", Query: "anything at all"}}
	opts := testOptions()
	opts.MaxAttempts = 3

	report, err := NewHarness(service, battery, opts).Run(context.Background(), "eval-user")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if service.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", service.calls)
	}
	if report.Passed != 0 {
		t.Fatalf("persistent fallback must fail the case")
	}
}

func TestHarnessUngroundedAnswerFails(t *testing.T) {
	chunk := domain.RetrievedChunk{ID: "c-1", Content: "The scheduler retries failed jobs."}
	service := &scriptedService{responses: map[string]*domain.RAGResponse{
		"scheduler": answeredResponse(
			"Quantum tunneling accelerates interstellar deployment pipelines dramatically.",
			chunk,
			"scheduler retries",
		),
	}}

	battery := []Case{{ID: "f-1", Category: "factual", Query: "How does the scheduler handle failures?"}}
	report, err := NewHarness(service, battery, testOptions()).Run(context.Background(), "eval-user")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Passed != 0 {
		t.Fatalf("ungrounded answer must fail")
	}
	if report.Cases[0].Failure == "" {
		t.Fatalf("expected a failure explanation")
	}
}

func TestLoadBattery(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "battery.yaml")
	content := `cases:
  - id: custom-1
    category: factual
    query: "What is the retention period?"
    reference_answer: "Ninety days."
  - id: custom-trap
    query: "Who won the 2050 election?"
    expect_refusal: true
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cases, err := LoadBattery(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cases) != 2 {
		t.Fatalf("expected 2 cases, got %d", len(cases))
	}
	if cases[1].Category != "factual" {
		t.Fatalf("missing category must default to factual, got %q", cases[1].Category)
	}
	if !cases[1].ExpectRefusal {
		t.Fatalf("expect_refusal flag lost")
	}

	if _, err := LoadBattery(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatalf("missing file must error")
	}
}
