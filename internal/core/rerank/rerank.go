package rerank

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/avolkova/ragcore/internal/core/domain"
	"github.com/avolkova/ragcore/internal/core/signal"
)

// Config holds the reranker's calibration parameters.
type Config struct {
	DiversityFactor  float64
	QualityThreshold float64
	MaxResults       int
	EmbeddingDim     int
	TemporalHalfLife time.Duration
	ContextTurns     int
}

func DefaultConfig() Config {
	return Config{
		DiversityFactor:  0.2,
		QualityThreshold: 0.3,
		MaxResults:       8,
		EmbeddingDim:     signal.DefaultEmbeddingDim,
		TemporalHalfLife: 30 * 24 * time.Hour,
		ContextTurns:     3,
	}
}

func (c Config) normalize() Config {
	def := DefaultConfig()
	if c.DiversityFactor <= 0 || c.DiversityFactor > 1 {
		c.DiversityFactor = def.DiversityFactor
	}
	if c.QualityThreshold < 0 || c.QualityThreshold >= 1 {
		c.QualityThreshold = def.QualityThreshold
	}
	if c.MaxResults <= 0 {
		c.MaxResults = def.MaxResults
	}
	if c.EmbeddingDim <= 0 {
		c.EmbeddingDim = def.EmbeddingDim
	}
	if c.TemporalHalfLife <= 0 {
		c.TemporalHalfLife = def.TemporalHalfLife
	}
	if c.ContextTurns <= 0 {
		c.ContextTurns = def.ContextTurns
	}
	return c
}

// Reranker turns retrieved chunks into an ordered, diversity-filtered,
// quality-gated list. Stateless apart from configuration; safe for
// concurrent use.
type Reranker struct {
	cfg Config
	now func() time.Time
}

func New(cfg Config) *Reranker {
	return &Reranker{cfg: cfg.normalize(), now: time.Now}
}

// Rerank is best-effort: on any internal error it falls back to the
// original retrieval ordering with neutral signals rather than failing the
// pipeline.
func (r *Reranker) Rerank(
	query string,
	candidates []domain.RetrievedChunk,
	analysis domain.IntentAnalysis,
	history []domain.ConversationTurn,
	maxResults int,
) (out []domain.RerankedChunk) {
	if len(candidates) == 0 {
		return nil
	}
	if maxResults <= 0 {
		maxResults = r.cfg.MaxResults
	}

	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("rerank_fallback", "error", fmt.Sprint(rec))
			out = passthrough(candidates, maxResults)
		}
	}()

	weights := ProfileFor(analysis.Type)
	scored := r.score(query, candidates, analysis, history, weights)
	kept := r.diversityFilter(scored, weights)

	filtered := make([]domain.RerankedChunk, 0, len(kept))
	for _, c := range kept {
		if c.FinalScore >= r.cfg.QualityThreshold {
			filtered = append(filtered, c.RerankedChunk)
		}
	}
	// The top candidate survives even a strict threshold; callers always
	// see the strongest available evidence.
	if len(filtered) == 0 && len(kept) > 0 {
		filtered = append(filtered, kept[0].RerankedChunk)
	}
	if len(filtered) > maxResults {
		filtered = filtered[:maxResults]
	}
	return filtered
}

// Passthrough returns candidates in their original order with neutral
// signals; used when reranking is disabled for a request.
func (r *Reranker) Passthrough(candidates []domain.RetrievedChunk, maxResults int) []domain.RerankedChunk {
	if maxResults <= 0 {
		maxResults = r.cfg.MaxResults
	}
	return passthrough(candidates, maxResults)
}

// scoredChunk keeps the normalized original retrieval score alongside the
// ranked chunk so the diversity pass can rebuild FinalScore when it fills
// in the diversity signal.
type scoredChunk struct {
	domain.RerankedChunk
	original float64
}

func (r *Reranker) score(
	query string,
	candidates []domain.RetrievedChunk,
	analysis domain.IntentAnalysis,
	history []domain.ConversationTurn,
	weights Weights,
) []scoredChunk {
	queryVec := signal.EmbedText(query, r.cfg.EmbeddingDim)
	contextSet := r.contextTokens(history)
	now := r.now()

	minScore, maxScore := candidates[0].Score, candidates[0].Score
	for _, c := range candidates[1:] {
		if c.Score < minScore {
			minScore = c.Score
		}
		if c.Score > maxScore {
			maxScore = c.Score
		}
	}
	scoreRange := maxScore - minScore

	out := make([]scoredChunk, 0, len(candidates))
	for _, candidate := range candidates {
		signals := domain.SignalVector{
			Semantic:  signal.SemanticSimilarity(queryVec, signal.EmbedText(candidate.Content, r.cfg.EmbeddingDim)),
			Lexical:   signal.BM25Score(query, candidate.Content),
			Temporal:  r.temporalRelevance(candidate, analysis, now),
			Entity:    entityRelevance(analysis.Entities, candidate.Content),
			Context:   signal.TokenOverlap(contextSet, signal.TokenSet(candidate.Content)),
			Quality:   signal.QualityScore(candidate.Content),
			Diversity: 1, // refined during the diversity pass
		}

		original := normalizeOriginal(candidate.Score, minScore, scoreRange)
		out = append(out, scoredChunk{
			RerankedChunk: domain.RerankedChunk{
				RetrievedChunk: candidate,
				Signals:        signals,
				FinalScore:     blendScores(weights.Apply(signals), original),
			},
			original: original,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].FinalScore != out[j].FinalScore {
			return out[i].FinalScore > out[j].FinalScore
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// blendScores combines the rerank score with the normalized original
// retrieval score using a harmonic-mean-style blend: 2rs/(r+s) when both
// are positive, otherwise the larger of the two. Deterministic.
func blendScores(rerankScore, original float64) float64 {
	if rerankScore > 0 && original > 0 {
		return signal.Clamp01(2 * rerankScore * original / (rerankScore + original))
	}
	return signal.Clamp01(math.Max(rerankScore, original))
}

func normalizeOriginal(score, minScore, scoreRange float64) float64 {
	if scoreRange <= 0 {
		if score > 0 {
			return 1
		}
		return 0
	}
	return (score - minScore) / scoreRange
}

func (r *Reranker) temporalRelevance(chunk domain.RetrievedChunk, analysis domain.IntentAnalysis, now time.Time) float64 {
	if chunk.Metadata == nil || chunk.Metadata.Timestamp.IsZero() {
		return 0.5
	}
	if analysis.TimeRange != nil {
		ts := chunk.Metadata.Timestamp
		if ts.Before(analysis.TimeRange.From) || ts.After(analysis.TimeRange.To) {
			return 0.1
		}
	}
	age := now.Sub(chunk.Metadata.Timestamp)
	if age < 0 {
		age = 0
	}
	return signal.Clamp01(math.Exp(-float64(age) / float64(r.cfg.TemporalHalfLife)))
}

func entityRelevance(entities []string, content string) float64 {
	if len(entities) == 0 {
		return 0.5
	}
	lower := strings.ToLower(content)
	matches := 0
	for _, entity := range entities {
		if strings.Contains(lower, strings.ToLower(entity)) {
			matches++
		}
	}
	return float64(matches) / float64(len(entities))
}

func (r *Reranker) contextTokens(history []domain.ConversationTurn) map[string]struct{} {
	if len(history) == 0 {
		return nil
	}
	start := len(history) - r.cfg.ContextTurns
	if start < 0 {
		start = 0
	}
	var b strings.Builder
	for _, turn := range history[start:] {
		b.WriteString(turn.Content)
		b.WriteByte(' ')
	}
	return signal.TokenSet(b.String())
}

func passthrough(candidates []domain.RetrievedChunk, maxResults int) []domain.RerankedChunk {
	n := len(candidates)
	if n > maxResults {
		n = maxResults
	}
	out := make([]domain.RerankedChunk, 0, n)
	for _, candidate := range candidates[:n] {
		out = append(out, domain.RerankedChunk{
			RetrievedChunk: candidate,
			Signals:        domain.NeutralSignals(),
			FinalScore:     signal.Clamp01(candidate.Score),
		})
	}
	return out
}
