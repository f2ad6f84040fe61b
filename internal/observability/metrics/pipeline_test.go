package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/avolkova/ragcore/internal/core/domain"
)

func TestPipelineMetricsUseConfiguredService(t *testing.T) {
	m := NewPipelineMetrics("eval")

	m.ObserveQuery(domain.StatusAnswered, 120*time.Millisecond)
	m.RecordAdmission(domain.CostDecision{Allowed: true})

	if got := testutil.ToFloat64(m.queryTotal.WithLabelValues("eval", string(domain.StatusAnswered))); got != 1 {
		t.Fatalf("expected 1 response under service eval, got %f", got)
	}
	if got := testutil.ToFloat64(m.queryTotal.WithLabelValues("api", string(domain.StatusAnswered))); got != 0 {
		t.Fatalf("response counted under wrong service: %f", got)
	}
	if got := testutil.ToFloat64(m.admissionTotal.WithLabelValues("eval", "true", "none")); got != 1 {
		t.Fatalf("expected 1 admission under service eval, got %f", got)
	}
}
