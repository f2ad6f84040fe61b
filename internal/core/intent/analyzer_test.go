package intent

import (
	"testing"
	"time"

	"github.com/avolkova/ragcore/internal/core/domain"
)

func TestAnalyzeTypeClassification(t *testing.T) {
	cases := []struct {
		query string
		want  domain.IntentType
	}{
		{"why did the deployment fail", domain.IntentCausal},
		{"what changed last week in the config", domain.IntentTemporal},
		{"who is Alan Turing", domain.IntentEntity},
		{"difference between staging and production setups", domain.IntentComparative},
		{"how to configure the database pool", domain.IntentProcedural},
		{"capital of France", domain.IntentFactual},
	}

	analyzer := NewAnalyzer()
	for _, tc := range cases {
		got := analyzer.Analyze(tc.query, nil)
		if got.Type != tc.want {
			t.Fatalf("query %q: expected type %s, got %s", tc.query, tc.want, got.Type)
		}
	}
}

func TestAnalyzeComplexityScoring(t *testing.T) {
	analyzer := NewAnalyzer()

	simple := analyzer.Analyze("capital of France", nil)
	if simple.Complexity != 0 {
		t.Fatalf("expected complexity 0 for trivial query, got %f", simple.Complexity)
	}

	// >10 words (+0.3), two question marks (+0.2), two interrogatives (+0.3).
	multi := analyzer.Analyze("what happened to the primary cluster and how did the failover behave afterwards? was it fast?", nil)
	if multi.Complexity < 0.79 || multi.Complexity > 0.81 {
		t.Fatalf("expected complexity 0.8, got %f", multi.Complexity)
	}

	// Comparison marker pushes past the clamp.
	comparative := analyzer.Analyze("what is the difference between the old scheduler and the new one, and why does it matter overall?", nil)
	if comparative.Complexity != 1 {
		t.Fatalf("expected complexity clamped to 1, got %f", comparative.Complexity)
	}
}

func TestAnalyzeTemporalLookbackWindow(t *testing.T) {
	analyzer := NewAnalyzer()
	fixed := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	analyzer.now = func() time.Time { return fixed }

	got := analyzer.Analyze("what changed recently", nil)
	if got.TimeRange == nil {
		t.Fatalf("expected temporal range for relative-time query")
	}
	if !got.TimeRange.To.Equal(fixed) {
		t.Fatalf("expected range end %v, got %v", fixed, got.TimeRange.To)
	}
	if want := fixed.Add(-30 * 24 * time.Hour); !got.TimeRange.From.Equal(want) {
		t.Fatalf("expected 30-day lookback start %v, got %v", want, got.TimeRange.From)
	}

	plain := analyzer.Analyze("capital of France", nil)
	if plain.TimeRange != nil {
		t.Fatalf("expected no time range for non-temporal query")
	}
}

func TestAnalyzeEntities(t *testing.T) {
	analyzer := NewAnalyzer()
	got := analyzer.Analyze("did Grafana or Loki cause the outage in Berlin?", nil)

	want := map[string]bool{"Grafana": false, "Loki": false, "Berlin": false}
	for _, e := range got.Entities {
		if _, ok := want[e]; ok {
			want[e] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Fatalf("missing entity %q in %v", name, got.Entities)
		}
	}
}

func TestBuildPlanStrategyPriority(t *testing.T) {
	req := domain.QueryRequest{}

	temporal := BuildPlan(domain.IntentAnalysis{Type: domain.IntentTemporal, Entities: []string{"Paris"}}, req)
	if temporal.Strategy != domain.StrategyTemporal {
		t.Fatalf("temporal intent should win, got %s", temporal.Strategy)
	}

	entity := BuildPlan(domain.IntentAnalysis{Type: domain.IntentFactual, Entities: []string{"Paris"}, Complexity: 0.9}, req)
	if entity.Strategy != domain.StrategyEntityFocused {
		t.Fatalf("entities should win over complexity, got %s", entity.Strategy)
	}

	hybrid := BuildPlan(domain.IntentAnalysis{Type: domain.IntentFactual, Complexity: 0.9}, req)
	if hybrid.Strategy != domain.StrategyHybrid {
		t.Fatalf("high complexity should pick hybrid, got %s", hybrid.Strategy)
	}
	if hybrid.TopK != 8 {
		t.Fatalf("complexity > 0.8 should set topK 8, got %d", hybrid.TopK)
	}

	plain := BuildPlan(domain.IntentAnalysis{Type: domain.IntentFactual}, req)
	if plain.Strategy != domain.StrategySemantic || plain.TopK != 4 {
		t.Fatalf("default should be semantic/4, got %s/%d", plain.Strategy, plain.TopK)
	}
}

func TestBuildPlanCarriesFiltersAndThreshold(t *testing.T) {
	req := domain.QueryRequest{
		Filters:        domain.SearchFilter{SourceIDs: []string{"src-1"}},
		ScoreThreshold: 0.42,
	}
	plan := BuildPlan(domain.IntentAnalysis{Type: domain.IntentFactual}, req)
	if len(plan.Filters.SourceIDs) != 1 || plan.Filters.SourceIDs[0] != "src-1" {
		t.Fatalf("expected caller filters carried into plan")
	}
	if plan.ScoreThreshold != 0.42 {
		t.Fatalf("expected threshold 0.42, got %f", plan.ScoreThreshold)
	}
	if plan.RerankCandidates != plan.TopK*rerankCandidateFactor {
		t.Fatalf("expected rerank candidates %d, got %d", plan.TopK*rerankCandidateFactor, plan.RerankCandidates)
	}
}
