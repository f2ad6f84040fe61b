package answer

import (
	"context"
	"fmt"

	"github.com/avolkova/ragcore/internal/core/domain"
	"github.com/avolkova/ragcore/internal/core/ports"
	"github.com/avolkova/ragcore/internal/core/signal"
)

const (
	citationConfidenceWeight = 0.4
	synthesisWeight          = 0.3
	answerabilityWeight      = 0.3

	maxResponseConfidence = 0.95

	// droppedCitationPenalty reduces synthesis confidence per invalid
	// citation the backend proposed.
	droppedCitationPenalty = 0.1
)

// SynthesisResult is the validated output of one generation call.
type SynthesisResult struct {
	Answer     string
	Citations  []domain.Citation
	TokensUsed int
	Cost       float64
	Confidence float64
}

// Synthesizer orchestrates the external generation backend and validates
// its proposed citations against the evidence.
type Synthesizer struct {
	generator ports.AnswerGenerator
}

func NewSynthesizer(generator ports.AnswerGenerator) *Synthesizer {
	return &Synthesizer{generator: generator}
}

func (s *Synthesizer) Synthesize(
	ctx context.Context,
	query string,
	chunks []domain.RerankedChunk,
	analysis domain.IntentAnalysis,
	answerability domain.AnswerabilityResult,
) (*SynthesisResult, error) {
	generated, err := s.generator.Generate(ctx, query, chunks, analysis, answerability)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	citations, dropped := ValidateCitations(generated.Citations, chunks)

	synthesisConfidence := generated.Confidence - droppedCitationPenalty*float64(dropped)
	if synthesisConfidence < 0 {
		synthesisConfidence = 0
	}

	var citationConfidence float64
	if len(citations) > 0 {
		for _, c := range citations {
			citationConfidence += c.Confidence
		}
		citationConfidence /= float64(len(citations))
	}

	confidence := citationConfidenceWeight*citationConfidence +
		synthesisWeight*synthesisConfidence +
		answerabilityWeight*answerability.Confidence
	confidence = signal.Clamp01(confidence)
	if confidence > maxResponseConfidence {
		confidence = maxResponseConfidence
	}

	return &SynthesisResult{
		Answer:     generated.Answer,
		Citations:  citations,
		TokensUsed: generated.TokensUsed,
		Cost:       generated.Cost,
		Confidence: confidence,
	}, nil
}
