package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/avolkova/ragcore/internal/core/domain"
)

// PipelineMetrics covers the query pipeline and the admission controller.
// It implements the pipeline's observer contract.
type PipelineMetrics struct {
	registry *prometheus.Registry
	service  string

	queryTotal      *prometheus.CounterVec
	queryDuration   *prometheus.HistogramVec
	admissionTotal  *prometheus.CounterVec
	cacheHitsTotal  prometheus.Counter
	breakerState    prometheus.Gauge
	batchFlushTotal prometheus.Counter
	batchFlushSize  prometheus.Histogram
}

func NewPipelineMetrics(service string) *PipelineMetrics {
	registry := prometheus.NewRegistry()

	queryTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragcore",
			Subsystem: "query",
			Name:      "responses_total",
			Help:      "Total terminal responses by status.",
		},
		[]string{"service", "status"},
	)
	queryDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ragcore",
			Subsystem: "query",
			Name:      "duration_seconds",
			Help:      "End-to-end query duration in seconds by status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	admissionTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragcore",
			Subsystem: "admission",
			Name:      "decisions_total",
			Help:      "Total admission decisions by outcome and degradation action.",
		},
		[]string{"service", "allowed", "action"},
	)
	cacheHitsTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ragcore",
			Subsystem: "admission",
			Name:      "cache_hits_total",
			Help:      "Total admission decision cache hits.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	breakerState := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ragcore",
			Subsystem: "admission",
			Name:      "breaker_state",
			Help:      "Circuit breaker state: 0 closed, 1 half-open, 2 open.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	batchFlushTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ragcore",
			Subsystem: "admission",
			Name:      "batch_flushes_total",
			Help:      "Total batch queue flushes.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	batchFlushSize := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "ragcore",
			Subsystem: "admission",
			Name:      "batch_flush_size",
			Help:      "Distribution of operations per batch flush.",
			Buckets:   []float64{1, 2, 4, 8, 16, 32},
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)

	registry.MustRegister(
		queryTotal,
		queryDuration,
		admissionTotal,
		cacheHitsTotal,
		breakerState,
		batchFlushTotal,
		batchFlushSize,
	)

	return &PipelineMetrics{
		registry:        registry,
		service:         service,
		queryTotal:      queryTotal,
		queryDuration:   queryDuration,
		admissionTotal:  admissionTotal,
		cacheHitsTotal:  cacheHitsTotal,
		breakerState:    breakerState,
		batchFlushTotal: batchFlushTotal,
		batchFlushSize:  batchFlushSize,
	}
}

func (m *PipelineMetrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *PipelineMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *PipelineMetrics) ObserveQuery(status domain.ResponseStatus, latency time.Duration) {
	m.queryTotal.WithLabelValues(m.service, string(status)).Inc()
	m.queryDuration.WithLabelValues(m.service, string(status)).Observe(latency.Seconds())
}

func (m *PipelineMetrics) RecordAdmission(decision domain.CostDecision) {
	allowed := "false"
	if decision.Allowed {
		allowed = "true"
	}
	action := string(decision.Action)
	if action == "" {
		action = "none"
	}
	m.admissionTotal.WithLabelValues(m.service, allowed, action).Inc()
	if decision.CacheHit {
		m.cacheHitsTotal.Inc()
	}
}

func (m *PipelineMetrics) SetBreakerState(state domain.BreakerState) {
	var v float64
	switch state {
	case domain.BreakerHalfOpen:
		v = 1
	case domain.BreakerOpen:
		v = 2
	}
	m.breakerState.Set(v)
}

func (m *PipelineMetrics) RecordBatchFlush(size int) {
	m.batchFlushTotal.Inc()
	if size > 0 {
		m.batchFlushSize.Observe(float64(size))
	}
}
