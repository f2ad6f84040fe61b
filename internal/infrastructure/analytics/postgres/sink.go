package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/avolkova/ragcore/internal/core/ports"
)

// Sink appends usage records to postgres. Records are insert-only; no
// read path exists here.
type Sink struct {
	db *sql.DB
}

func NewSink(db *sql.DB) *Sink {
	return &Sink{db: db}
}

var _ ports.AnalyticsSink = (*Sink)(nil)

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (s *Sink) EnsureSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across concurrent service startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026083001)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS usage_records (
	id BIGSERIAL PRIMARY KEY,
	requester_id TEXT NOT NULL,
	operation TEXT NOT NULL,
	model TEXT NOT NULL,
	request_tokens INTEGER NOT NULL,
	response_tokens INTEGER NOT NULL,
	cost DOUBLE PRECISION NOT NULL,
	latency_ms BIGINT NOT NULL,
	confidence DOUBLE PRECISION NOT NULL,
	answerability DOUBLE PRECISION NOT NULL,
	citation_count INTEGER NOT NULL,
	cache_hit BOOLEAN NOT NULL,
	fingerprint TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_usage_records_requester ON usage_records(requester_id);
CREATE INDEX IF NOT EXISTS idx_usage_records_created_at ON usage_records(created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (s *Sink) LogUsage(ctx context.Context, record ports.UsageRecord) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO usage_records (
	requester_id, operation, model, request_tokens, response_tokens, cost, latency_ms, confidence, answerability, citation_count, cache_hit, fingerprint, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
`,
		record.RequesterID, record.Operation, record.Model, record.RequestTokens, record.ResponseTokens,
		record.Cost, record.LatencyMS, record.Confidence, record.Answerability, record.CitationCount,
		record.CacheHit, record.Fingerprint, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert usage record: %w", err)
	}
	return nil
}
