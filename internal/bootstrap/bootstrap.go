package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/avolkova/ragcore/internal/admission"
	"github.com/avolkova/ragcore/internal/config"
	"github.com/avolkova/ragcore/internal/core/answer"
	"github.com/avolkova/ragcore/internal/core/domain"
	"github.com/avolkova/ragcore/internal/core/intent"
	"github.com/avolkova/ragcore/internal/core/ports"
	"github.com/avolkova/ragcore/internal/core/rerank"
	"github.com/avolkova/ragcore/internal/core/signal"
	"github.com/avolkova/ragcore/internal/core/usecase"
	"github.com/avolkova/ragcore/internal/eval"
	"github.com/avolkova/ragcore/internal/infrastructure/analytics"
	analyticsnats "github.com/avolkova/ragcore/internal/infrastructure/analytics/nats"
	analyticspg "github.com/avolkova/ragcore/internal/infrastructure/analytics/postgres"
	"github.com/avolkova/ragcore/internal/infrastructure/index/qdrant"
	"github.com/avolkova/ragcore/internal/infrastructure/llm/ollama"
	"github.com/avolkova/ragcore/internal/infrastructure/resilience"
	"github.com/avolkova/ragcore/internal/observability/metrics"
)

type App struct {
	Config config.Config

	Admission ports.Admission
	Service   ports.QueryService
	Harness   *eval.Harness
	Metrics   *metrics.PipelineMetrics

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	pipelineMetrics := metrics.NewPipelineMetrics("api")

	controller := admission.NewController(
		admissionPolicy(cfg),
		admission.WithFlushHook(func(b admission.FlushedBatch) {
			pipelineMetrics.RecordBatchFlush(b.Entries)
		}),
	)
	admissionPort := &instrumentedAdmission{inner: controller, metrics: pipelineMetrics}

	ollamaClient := ollama.New(ollama.Config{
		BaseURL:        cfg.OllamaURL,
		GenerateModel:  cfg.OllamaGenModel,
		EmbedModel:     cfg.OllamaEmbedModel,
		RequestTimeout: time.Duration(cfg.OllamaTimeoutSeconds) * time.Second,
		CostPerToken:   cfg.CostPerToken,
		Resilience:     resilience.DefaultConfig(),
	})
	generator := ollama.NewGenerator(ollamaClient)

	var embedder ports.Embedder
	switch cfg.EmbedderBackend {
	case "ollama":
		embedder = ollama.NewEmbedder(ollamaClient)
	default:
		embedder = signal.NewHashedEmbedder(signal.DefaultEmbeddingDim)
	}

	index := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, embedder)

	sink, closeSink, err := buildSink(ctx, cfg)
	if err != nil {
		return nil, err
	}

	pipeline := usecase.NewPipeline(
		admissionPort,
		intent.NewAnalyzer(),
		index,
		rerank.New(rerank.Config{
			DiversityFactor:  cfg.RerankDiversityFactor,
			QualityThreshold: cfg.RerankQualityThreshold,
			MaxResults:       cfg.RerankMaxResults,
		}),
		answer.NewGate(cfg.GateThreshold),
		answer.NewSynthesizer(generator),
		sink,
		pipelineMetrics,
		usecase.Options{
			MaxQueryLength: cfg.MaxQueryLength,
			CostPerToken:   cfg.CostPerToken,
			TokenOverhead:  cfg.TokenOverhead,
			ModelTag:       cfg.ModelTag,
		},
	)

	var harness *eval.Harness
	if cfg.EvalEnabled {
		battery, err := loadBattery(cfg.EvalBatteryPath)
		if err != nil {
			return nil, err
		}
		harness = eval.NewHarness(pipeline, battery, eval.Options{
			PassF1:           cfg.EvalPassF1,
			MaxHallucination: cfg.EvalMaxHallucination,
		})
	}

	return &App{
		Config:    cfg,
		Admission: admissionPort,
		Service:   pipeline,
		Harness:   harness,
		Metrics:   pipelineMetrics,

		closeFn: func() {
			controller.Close()
			closeSink()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func admissionPolicy(cfg config.Config) admission.Policy {
	return admission.Policy{
		DailyBudget:   cfg.DailyBudget,
		MonthlyBudget: cfg.MonthlyBudget,

		HourlyRequestLimit: cfg.HourlyRequestLimit,

		BreakerFailureThreshold: uint32(cfg.BreakerFailureThreshold),
		BreakerOpenTimeout:      time.Duration(cfg.BreakerOpenTimeoutSecs) * time.Second,

		CacheEnabled: cfg.CacheEnabled,
		CacheTTL:     time.Duration(cfg.CacheTTLSeconds) * time.Second,

		BatchingEnable: cfg.BatchingEnabled,
		BatchWindow:    time.Duration(cfg.BatchWindowSeconds) * time.Second,
		BatchQueueCap:  cfg.BatchQueueCap,
		BatchDiscount:  cfg.BatchDiscount,
	}
}

func buildSink(ctx context.Context, cfg config.Config) (ports.AnalyticsSink, func(), error) {
	switch cfg.AnalyticsSink {
	case "postgres":
		db, err := analyticspg.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		sink := analyticspg.NewSink(db)
		if err := sink.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("ensure analytics schema: %w", err)
		}
		return sink, func() { _ = db.Close() }, nil
	case "nats":
		sink, err := analyticsnats.New(cfg.NATSURL, cfg.NATSSubject)
		if err != nil {
			return nil, nil, fmt.Errorf("init nats sink: %w", err)
		}
		return sink, sink.Close, nil
	default:
		return analytics.NewLogSink(nil), func() {}, nil
	}
}

func loadBattery(path string) ([]eval.Case, error) {
	if path == "" {
		return eval.BuiltinBattery(), nil
	}
	battery, err := eval.LoadBattery(path)
	if err != nil {
		return nil, fmt.Errorf("load eval battery: %w", err)
	}
	return battery, nil
}

// instrumentedAdmission mirrors every decision into prometheus before
// handing it to the caller.
type instrumentedAdmission struct {
	inner   *admission.Controller
	metrics *metrics.PipelineMetrics
}

func (a *instrumentedAdmission) ShouldProceed(
	ctx context.Context,
	operation string,
	estimatedTokens int,
	estimatedCost float64,
	priority domain.Priority,
	requesterID string,
) domain.CostDecision {
	decision := a.inner.ShouldProceed(ctx, operation, estimatedTokens, estimatedCost, priority, requesterID)
	a.metrics.RecordAdmission(decision)
	return decision
}

func (a *instrumentedAdmission) RefundCost(amount float64) {
	a.inner.RefundCost(amount)
}

func (a *instrumentedAdmission) RecordOutcome(latency time.Duration, success bool) {
	a.inner.RecordOutcome(latency, success)
	a.metrics.SetBreakerState(a.inner.Metrics().Breaker)
}

func (a *instrumentedAdmission) Metrics() domain.UsageSnapshot {
	return a.inner.Metrics()
}
