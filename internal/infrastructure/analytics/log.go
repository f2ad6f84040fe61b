// Package analytics provides append-only sinks for per-response usage
// records. The log sink is the zero-dependency default; postgres and nats
// variants live in subpackages and are selected at bootstrap.
package analytics

import (
	"context"
	"log/slog"

	"github.com/avolkova/ragcore/internal/core/ports"
)

// LogSink writes each usage record as one structured log line.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

var _ ports.AnalyticsSink = (*LogSink)(nil)

func (s *LogSink) LogUsage(_ context.Context, record ports.UsageRecord) error {
	s.logger.Info("usage_record",
		"requester_id", record.RequesterID,
		"operation", record.Operation,
		"model", record.Model,
		"request_tokens", record.RequestTokens,
		"response_tokens", record.ResponseTokens,
		"cost", record.Cost,
		"latency_ms", record.LatencyMS,
		"confidence", record.Confidence,
		"answerability", record.Answerability,
		"citation_count", record.CitationCount,
		"cache_hit", record.CacheHit,
		"fingerprint", record.Fingerprint,
	)
	return nil
}
