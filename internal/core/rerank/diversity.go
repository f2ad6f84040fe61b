package rerank

import (
	"sort"

	"github.com/avolkova/ragcore/internal/core/signal"
)

const (
	signatureMinWordLen = 5
	signatureSize       = 10
)

// diversityFilter always keeps the top-ranked chunk; each subsequent chunk
// is dropped when its content signature's Jaccard similarity to any kept
// signature exceeds 1 − diversityFactor. Kept chunks record their
// diversity signal as 1 − max similarity to the kept set, and FinalScore
// is rebuilt from the completed signal vector so the published score
// matches the published signals. Output keeps the selection order.
func (r *Reranker) diversityFilter(ranked []scoredChunk, weights Weights) []scoredChunk {
	if len(ranked) <= 1 {
		return ranked
	}

	limit := 1 - r.cfg.DiversityFactor
	kept := make([]scoredChunk, 0, len(ranked))
	signatures := make([][]string, 0, len(ranked))

	for i, chunk := range ranked {
		sig := contentSignature(chunk.Content)
		if i == 0 {
			chunk.Signals.Diversity = 1
			kept = append(kept, chunk)
			signatures = append(signatures, sig)
			continue
		}

		maxSim := 0.0
		for _, keptSig := range signatures {
			if sim := jaccard(sig, keptSig); sim > maxSim {
				maxSim = sim
			}
		}
		if maxSim > limit {
			continue
		}
		chunk.Signals.Diversity = signal.Clamp01(1 - maxSim)
		chunk.FinalScore = blendScores(weights.Apply(chunk.Signals), chunk.original)
		kept = append(kept, chunk)
		signatures = append(signatures, sig)
	}
	return kept
}

// contentSignature is the sorted top-N lower-cased content words longer
// than four characters.
func contentSignature(content string) []string {
	terms := signal.ContentTerms(content, signatureMinWordLen)
	sort.Strings(terms)
	if len(terms) > signatureSize {
		terms = terms[:signatureSize]
	}
	return terms
}

func jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(a))
	for _, term := range a {
		set[term] = struct{}{}
	}
	intersection := 0
	for _, term := range b {
		if _, ok := set[term]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
