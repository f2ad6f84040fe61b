package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/avolkova/ragcore/internal/core/domain"
	"github.com/avolkova/ragcore/internal/infrastructure/resilience"
)

func testConfig(baseURL string) Config {
	return Config{
		BaseURL:       baseURL,
		GenerateModel: "gen",
		EmbedModel:    "embed",
		CostPerToken:  0.00002,
		Resilience: resilience.Config{
			RetryMaxAttempts: 1,
			BreakerEnabled:   false,
		},
	}
}

func evidenceChunk(id, content string) domain.RerankedChunk {
	return domain.RerankedChunk{
		RetrievedChunk: domain.RetrievedChunk{ID: id, SourceID: "src-" + id, Content: content, Score: 0.9},
		FinalScore:     0.8,
	}
}

func TestGenerateParsesCitedAnswer(t *testing.T) {
	var capturedPrompt string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		capturedPrompt, _ = payload["prompt"].(string)
		if format, _ := payload["format"].(string); format != "json" {
			t.Fatalf("expected json format request, got %q", format)
		}
		body := `{"response":"{\"answer\":\"Paris est la capitale.\",\"confidence\":0.85,\"citations\":[{\"text\":\"Paris est la capitale\",\"source_chunk_id\":\"c-1\",\"confidence\":0.9}]}","prompt_eval_count":100,"eval_count":50}`
		_, _ = w.Write([]byte(body))
	}))
	defer server.Close()

	gen := NewGenerator(New(testConfig(server.URL)))
	result, err := gen.Generate(
		context.Background(),
		"Quelle est la capitale de la France?",
		[]domain.RerankedChunk{evidenceChunk("c-1", "Paris est la capitale de la France")},
		domain.IntentAnalysis{Type: domain.IntentFactual, AnswerShape: "short_fact"},
		domain.AnswerabilityResult{CanAnswer: true, Confidence: 0.7},
	)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if !strings.Contains(capturedPrompt, "Quelle est la capitale") ||
		!strings.Contains(capturedPrompt, "chunk_id=c-1") {
		t.Fatalf("prompt missing question or evidence: %s", capturedPrompt)
	}
	if result.Answer != "Paris est la capitale." {
		t.Fatalf("unexpected answer %q", result.Answer)
	}
	if len(result.Citations) != 1 || result.Citations[0].SourceChunkID != "c-1" {
		t.Fatalf("unexpected citations %+v", result.Citations)
	}
	if result.TokensUsed != 150 {
		t.Fatalf("expected 150 tokens, got %d", result.TokensUsed)
	}
	if result.Cost != 150*0.00002 {
		t.Fatalf("unexpected cost %f", result.Cost)
	}
}

func TestGenerateKeepsRawTextWhenNotJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"response":"plain prose answer","prompt_eval_count":10,"eval_count":5}`))
	}))
	defer server.Close()

	gen := NewGenerator(New(testConfig(server.URL)))
	result, err := gen.Generate(context.Background(), "q", nil, domain.IntentAnalysis{}, domain.AnswerabilityResult{})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if result.Answer != "plain prose answer" {
		t.Fatalf("unexpected answer %q", result.Answer)
	}
	if len(result.Citations) != 0 {
		t.Fatalf("non-json response must not invent citations")
	}
}

func TestEncodeReturnsFirstVector(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"embeddings":[[0.1,0.2,0.3]]}`))
	}))
	defer server.Close()

	embedder := NewEmbedder(New(testConfig(server.URL)))
	vec, err := embedder.Encode(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if len(vec) != 3 || vec[1] != 0.2 {
		t.Fatalf("unexpected vector %v", vec)
	}
}

func TestEncodeIncludesHTTPBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model unavailable", http.StatusBadRequest)
	}))
	defer server.Close()

	embedder := NewEmbedder(New(testConfig(server.URL)))
	_, err := embedder.Encode(context.Background(), "hello")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "model unavailable") {
		t.Fatalf("expected response body in error, got %v", err)
	}
}
