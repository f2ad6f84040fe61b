package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/avolkova/ragcore/internal/core/domain"
	"github.com/avolkova/ragcore/internal/infrastructure/resilience"
)

type stubEmbedder struct {
	vector []float32
	err    error
}

func (s *stubEmbedder) Encode(context.Context, string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.vector, nil
}

func searchResult(points ...map[string]any) []byte {
	body, _ := json.Marshal(map[string]any{"result": points})
	return body
}

func point(id, content string, score float64) map[string]any {
	return map[string]any{
		"id":    id,
		"score": score,
		"payload": map[string]any{
			"chunk_id":  id,
			"source_id": "src-" + id,
			"content":   content,
		},
	}
}

func TestRetrieveSemanticStrategy(t *testing.T) {
	var capturedBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/docs/points/search" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&capturedBody); err != nil {
			t.Fatalf("decode: %v", err)
		}
		_, _ = w.Write(searchResult(
			point("c-1", "first chunk", 0.9),
			point("c-2", "second chunk", 0.7),
		))
	}))
	defer server.Close()

	index := New(server.URL, "docs", &stubEmbedder{vector: []float32{0.1, 0.2}})
	chunks, err := index.Retrieve(context.Background(), "a query", domain.RetrievalPlan{
		Strategy:         domain.StrategySemantic,
		TopK:             4,
		RerankCandidates: 16,
		ScoreThreshold:   0.25,
	})
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}

	if len(chunks) != 2 || chunks[0].ID != "c-1" || chunks[0].SourceID != "src-c-1" {
		t.Fatalf("unexpected chunks %+v", chunks)
	}
	if limit, _ := capturedBody["limit"].(float64); limit != 16 {
		t.Fatalf("expected candidate limit 16, got %v", capturedBody["limit"])
	}
	if threshold, _ := capturedBody["score_threshold"].(float64); threshold != 0.25 {
		t.Fatalf("score threshold not forwarded: %v", capturedBody["score_threshold"])
	}
	if _, hasFilter := capturedBody["filter"]; hasFilter {
		t.Fatalf("no filter expected for an unconstrained plan")
	}
}

func TestRetrieveHybridFusesBothLists(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/collections/docs/points/search":
			_, _ = w.Write(searchResult(
				point("c-1", "dense only", 0.9),
				point("c-2", "both lists", 0.8),
			))
		case "/collections/docs/points/query":
			body, _ := json.Marshal(map[string]any{
				"result": map[string]any{
					"points": []map[string]any{
						point("c-2", "both lists", 3.1),
						point("c-3", "lexical only", 2.2),
					},
				},
			})
			_, _ = w.Write(body)
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	index := New(server.URL, "docs", &stubEmbedder{vector: []float32{0.1}})
	chunks, err := index.Retrieve(context.Background(), "hybrid query terms", domain.RetrievalPlan{
		Strategy: domain.StrategyHybrid,
		TopK:     10,
	})
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}

	if len(chunks) != 3 {
		t.Fatalf("expected 3 fused chunks, got %d", len(chunks))
	}
	// c-2 appears in both lists so reciprocal rank fusion puts it first.
	if chunks[0].ID != "c-2" {
		t.Fatalf("expected c-2 first after fusion, got %s", chunks[0].ID)
	}
}

func TestRetrieveTemporalFilter(t *testing.T) {
	var capturedBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&capturedBody); err != nil {
			t.Fatalf("decode: %v", err)
		}
		_, _ = w.Write(searchResult())
	}))
	defer server.Close()

	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(30 * 24 * time.Hour)
	index := New(server.URL, "docs", &stubEmbedder{vector: []float32{0.1}})
	_, err := index.Retrieve(context.Background(), "recent changes", domain.RetrievalPlan{
		Strategy:  domain.StrategyTemporal,
		TopK:      5,
		TimeRange: &domain.TimeRange{From: from, To: to},
	})
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}

	filter, ok := capturedBody["filter"].(map[string]any)
	if !ok {
		t.Fatalf("expected a filter in the request body")
	}
	must, _ := filter["must"].([]any)
	if len(must) != 1 {
		t.Fatalf("expected one must clause, got %v", filter)
	}
	clause, _ := must[0].(map[string]any)
	if clause["key"] != "timestamp_unix" {
		t.Fatalf("expected timestamp range clause, got %v", clause)
	}
}

func TestRetrieveSurfacesBackendError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "collection not found", http.StatusNotFound)
	}))
	defer server.Close()

	index := New(server.URL, "docs", &stubEmbedder{vector: []float32{0.1}})
	_, err := index.Retrieve(context.Background(), "q", domain.RetrievalPlan{Strategy: domain.StrategySemantic, TopK: 3})
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestEncodeSparseQueryDeterministic(t *testing.T) {
	a := encodeSparseQuery("kubernetes ingress routing")
	b := encodeSparseQuery("kubernetes ingress routing")
	if len(a.Indices) == 0 || len(a.Indices) != len(a.Values) {
		t.Fatalf("malformed sparse vector %+v", a)
	}
	if len(a.Indices) != len(b.Indices) {
		t.Fatalf("non-deterministic sparse encoding")
	}
	for i := range a.Indices {
		if a.Indices[i] != b.Indices[i] || a.Values[i] != b.Values[i] {
			t.Fatalf("non-deterministic sparse encoding at %d", i)
		}
	}
	for i := 1; i < len(a.Indices); i++ {
		if a.Indices[i-1] >= a.Indices[i] {
			t.Fatalf("indices not strictly ascending")
		}
	}
}

func TestFuseRRFPrefersOverlap(t *testing.T) {
	dense := []domain.RetrievedChunk{
		{ID: "a", Content: "alpha", Score: 0.9},
		{ID: "b", Content: "beta", Score: 0.8},
	}
	lexical := []domain.RetrievedChunk{
		{ID: "b", Content: "beta", Score: 5.0},
		{ID: "c", Content: "gamma", Score: 4.0},
	}

	fused := fuseRRF(dense, lexical, 60)
	if len(fused) != 3 {
		t.Fatalf("expected 3 fused, got %d", len(fused))
	}
	if fused[0].ID != "b" {
		t.Fatalf("chunk in both lists must rank first, got %s", fused[0].ID)
	}
	for _, c := range fused {
		if c.Content == "" {
			t.Fatalf("fusion dropped content for %s", c.ID)
		}
	}
}

func TestRetrieveRetriesTransientStatus(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls == 1 {
			http.Error(w, "temporarily unavailable", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write(searchResult(point("c-1", "recovered", 0.5)))
	}))
	defer server.Close()

	index := NewWithResilience(server.URL, "docs", &stubEmbedder{vector: []float32{0.1}}, resilience.Config{
		RetryMaxAttempts:    2,
		RetryInitialBackoff: time.Millisecond,
	})
	chunks, err := index.Retrieve(context.Background(), "q", domain.RetrievalPlan{Strategy: domain.StrategySemantic, TopK: 3})
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected one retry, got %d calls", calls)
	}
	if len(chunks) != 1 || chunks[0].ID != "c-1" {
		t.Fatalf("unexpected chunks %+v", chunks)
	}
}
