package signal

import "testing"

func TestBM25ScoreMatchingTermsScoreHigher(t *testing.T) {
	query := "circuit breaker timeout"
	relevant := "The circuit breaker opens after repeated failures and resets once the timeout elapses."
	unrelated := "Quarterly planning meetings are scheduled every Monday morning."

	relScore := BM25Score(query, relevant)
	unrelScore := BM25Score(query, unrelated)

	if relScore <= unrelScore {
		t.Fatalf("expected relevant doc to outscore unrelated: %f <= %f", relScore, unrelScore)
	}
	if relScore < 0 || relScore > 1 {
		t.Fatalf("score out of [0,1]: %f", relScore)
	}
}

func TestBM25ScoreEmptyInputs(t *testing.T) {
	if s := BM25Score("", "some document"); s != 0 {
		t.Fatalf("empty query expected 0, got %f", s)
	}
	if s := BM25Score("query terms", ""); s != 0 {
		t.Fatalf("empty doc expected 0, got %f", s)
	}
}

func TestExtractEntities(t *testing.T) {
	text := "Marie Curie visited Paris on 2023-05-14 at 14:30 and again on 3/7/2024."
	entities := ExtractEntities(text)

	want := map[string]bool{
		"Marie Curie": false,
		"Paris":       false,
		"2023-05-14":  false,
		"14:30":       false,
		"3/7/2024":    false,
	}
	for _, e := range entities {
		if _, ok := want[e]; ok {
			want[e] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Fatalf("missing entity %q in %v", name, entities)
		}
	}
}

func TestExtractEntitiesEmpty(t *testing.T) {
	if out := ExtractEntities(""); out != nil {
		t.Fatalf("expected nil for empty input, got %v", out)
	}
}

func TestQualityScoreBounds(t *testing.T) {
	texts := []string{
		"",
		"short",
		"This is a well formed paragraph. It has several sentences, because quality matters. However, it also stays within a reasonable length and uses varied vocabulary throughout the explanation of the topic at hand, covering multiple distinct aspects carefully and precisely for the reader.",
	}
	var prev float64 = -1
	for _, text := range texts {
		s := QualityScore(text)
		if s < 0 || s > 1 {
			t.Fatalf("quality score out of [0,1]: %f for %q", s, text)
		}
		if s < prev {
			t.Fatalf("expected non-decreasing quality across increasingly rich texts")
		}
		prev = s
	}
}

func TestTokenOverlap(t *testing.T) {
	q := TokenSet("risk report summary")
	full := TokenOverlap(q, TokenSet("risk report summary"))
	if full != 1 {
		t.Fatalf("expected full overlap 1, got %f", full)
	}
	partial := TokenOverlap(q, TokenSet("risk only"))
	if partial <= 0 || partial >= 1 {
		t.Fatalf("expected partial overlap in (0,1), got %f", partial)
	}
	if TokenOverlap(nil, q) != 0 {
		t.Fatalf("expected 0 for empty query set")
	}
}

func TestContentTermsDedupAndMinLen(t *testing.T) {
	terms := ContentTerms("the cat and the cathedral, the cat again", 4)
	if len(terms) != 2 {
		t.Fatalf("expected [cathedral again], got %v", terms)
	}
	if terms[0] != "cathedral" || terms[1] != "again" {
		t.Fatalf("unexpected terms %v", terms)
	}
}
