package config

import "testing"

func TestLoadIncludesAdmissionDefaults(t *testing.T) {
	t.Setenv("ADMISSION_DAILY_BUDGET", "")
	t.Setenv("ADMISSION_HOURLY_REQUEST_LIMIT", "")
	t.Setenv("ADMISSION_CACHE_ENABLED", "")
	t.Setenv("ADMISSION_BATCH_DISCOUNT", "")

	cfg := Load()
	if cfg.DailyBudget != 5.0 {
		t.Fatalf("expected default daily budget 5.0, got %v", cfg.DailyBudget)
	}
	if cfg.HourlyRequestLimit != 60 {
		t.Fatalf("expected default hourly request limit 60, got %d", cfg.HourlyRequestLimit)
	}
	if !cfg.CacheEnabled {
		t.Fatalf("expected decision cache enabled by default")
	}
	if cfg.BatchDiscount != 0.3 {
		t.Fatalf("expected default batch discount 0.3, got %v", cfg.BatchDiscount)
	}
}

func TestLoadParsesAdmissionOverrides(t *testing.T) {
	t.Setenv("ADMISSION_DAILY_BUDGET", "12.5")
	t.Setenv("ADMISSION_HOURLY_REQUEST_LIMIT", "120")
	t.Setenv("ADMISSION_CACHE_ENABLED", "false")
	t.Setenv("ADMISSION_BATCHING_ENABLED", "false")

	cfg := Load()
	if cfg.DailyBudget != 12.5 {
		t.Fatalf("expected daily budget override 12.5, got %v", cfg.DailyBudget)
	}
	if cfg.HourlyRequestLimit != 120 {
		t.Fatalf("expected hourly request limit 120, got %d", cfg.HourlyRequestLimit)
	}
	if cfg.CacheEnabled {
		t.Fatalf("expected cache disabled by override")
	}
	if cfg.BatchingEnabled {
		t.Fatalf("expected batching disabled by override")
	}
}

func TestLoadFallsBackOnUnparsableValues(t *testing.T) {
	t.Setenv("ADMISSION_DAILY_BUDGET", "not-a-number")
	t.Setenv("ADMISSION_HOURLY_REQUEST_LIMIT", "sixty")
	t.Setenv("ADMISSION_CACHE_ENABLED", "yep")

	cfg := Load()
	if cfg.DailyBudget != 5.0 {
		t.Fatalf("expected fallback daily budget 5.0, got %v", cfg.DailyBudget)
	}
	if cfg.HourlyRequestLimit != 60 {
		t.Fatalf("expected fallback hourly request limit 60, got %d", cfg.HourlyRequestLimit)
	}
	if !cfg.CacheEnabled {
		t.Fatalf("expected fallback cache enabled")
	}
}

func TestLoadRetrievalAndGateDefaults(t *testing.T) {
	t.Setenv("RERANK_MAX_RESULTS", "")
	t.Setenv("GATE_THRESHOLD", "")
	t.Setenv("EMBEDDER_BACKEND", "")
	t.Setenv("ANALYTICS_SINK", "")

	cfg := Load()
	if cfg.RerankMaxResults != 8 {
		t.Fatalf("expected default rerank max results 8, got %d", cfg.RerankMaxResults)
	}
	if cfg.GateThreshold != 0.6 {
		t.Fatalf("expected default gate threshold 0.6, got %v", cfg.GateThreshold)
	}
	if cfg.EmbedderBackend != "hashed" {
		t.Fatalf("expected default embedder backend hashed, got %q", cfg.EmbedderBackend)
	}
	if cfg.AnalyticsSink != "log" {
		t.Fatalf("expected default analytics sink log, got %q", cfg.AnalyticsSink)
	}
}
