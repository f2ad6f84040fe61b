package answer

import (
	"fmt"

	"github.com/avolkova/ragcore/internal/core/domain"
	"github.com/avolkova/ragcore/internal/core/signal"
)

const (
	answerableThreshold = 0.6

	evidenceWeight  = 0.5
	coverageWeight  = 0.3
	coherenceWeight = 0.2

	lowEvidence  = 0.4
	lowCoverage  = 0.5
	lowCoherence = 0.4
)

// Gate decides whether the query can be answered from reranked evidence.
type Gate struct {
	threshold float64
}

func NewGate(threshold float64) *Gate {
	if threshold <= 0 || threshold >= 1 {
		threshold = answerableThreshold
	}
	return &Gate{threshold: threshold}
}

// Assess is pure: identical inputs always produce identical results.
func (g *Gate) Assess(query string, chunks []domain.RerankedChunk) domain.AnswerabilityResult {
	if len(chunks) == 0 {
		return domain.AnswerabilityResult{
			CanAnswer:      false,
			Confidence:     0,
			Reasoning:      "no supporting content retrieved",
			Reformulations: reformulations(query),
		}
	}

	queryTerms := signal.ContentTerms(query, 3)
	evidence := evidenceScore(queryTerms, chunks)
	coverage, missing := coverageScore(queryTerms, chunks)
	coherence := coherenceScore(chunks)

	overall := signal.Clamp01(evidenceWeight*evidence + coverageWeight*coverage + coherenceWeight*coherence)
	if overall >= g.threshold {
		return domain.AnswerabilityResult{
			CanAnswer:  true,
			Confidence: overall,
			Reasoning: fmt.Sprintf("evidence %.2f, coverage %.2f, coherence %.2f across %d chunks",
				evidence, coverage, coherence, len(chunks)),
		}
	}

	reason := "the retrieved content does not support a confident answer"
	switch {
	case evidence < lowEvidence:
		reason = "insufficient evidence in the retrieved content"
	case coverage < lowCoverage:
		reason = "parts of the question are not covered by any retrieved content"
	case coherence < lowCoherence:
		reason = "retrieved sources appear contradictory or too narrow"
	}

	return domain.AnswerabilityResult{
		CanAnswer:      false,
		Confidence:     overall,
		Reasoning:      reason,
		MissingInfo:    missing,
		Reformulations: reformulations(query),
	}
}

// evidenceScore averages per-chunk query-term density, damp-weighted by the
// chunk's final score so weak chunks contribute less.
func evidenceScore(queryTerms []string, chunks []domain.RerankedChunk) float64 {
	if len(queryTerms) == 0 {
		return 0
	}
	var total float64
	for _, chunk := range chunks {
		tokens := signal.TokenSet(chunk.Content)
		matched := 0
		for _, term := range queryTerms {
			if _, ok := tokens[term]; ok {
				matched++
			}
		}
		density := float64(matched) / float64(len(queryTerms))
		total += density * (0.5 + 0.5*chunk.FinalScore)
	}
	return signal.Clamp01(total / float64(len(chunks)))
}

// coverageScore is the fraction of query terms with at least one supporting
// chunk; it also returns the unsupported terms.
func coverageScore(queryTerms []string, chunks []domain.RerankedChunk) (float64, []string) {
	if len(queryTerms) == 0 {
		return 0, nil
	}
	tokenSets := make([]map[string]struct{}, len(chunks))
	for i, chunk := range chunks {
		tokenSets[i] = signal.TokenSet(chunk.Content)
	}

	covered := 0
	var missing []string
	for _, term := range queryTerms {
		supported := false
		for _, tokens := range tokenSets {
			if _, ok := tokens[term]; ok {
				supported = true
				break
			}
		}
		if supported {
			covered++
		} else {
			missing = append(missing, term)
		}
	}
	return float64(covered) / float64(len(queryTerms)), missing
}

// coherenceScore saturates toward 1.0 as distinct sources diversify.
func coherenceScore(chunks []domain.RerankedChunk) float64 {
	sources := make(map[string]struct{}, len(chunks))
	for _, chunk := range chunks {
		sources[chunk.SourceID] = struct{}{}
	}
	n := float64(len(sources))
	if n == 0 {
		return 0
	}
	return 0.7 + 0.3*(1-1/n)
}

func reformulations(query string) []string {
	out := []string{
		"rephrase the question with more specific terms",
		"split the question into smaller, single-topic questions",
	}
	if len(signal.ContentTerms(query, 3)) <= 2 {
		out = append(out, "add context about the subject you are asking about")
	}
	return out
}
