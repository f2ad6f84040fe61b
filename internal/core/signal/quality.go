package signal

import "strings"

var discourseConnectives = []string{
	"however", "therefore", "because", "although", "moreover",
	"furthermore", "consequently", "additionally", "instead", "whereas",
}

// QualityScore is a content-quality heuristic over length, sentence count,
// lexical diversity and discourse connectives, clamped to [0,1].
func QualityScore(text string) float64 {
	tokens := TokenizeAlphaNum(text)
	if len(tokens) == 0 {
		return 0
	}

	var score float64

	// Length in a useful range: ramps up to 1 at 40 words, decays past 400.
	words := float64(len(tokens))
	switch {
	case words >= 40 && words <= 400:
		score += 0.35
	case words < 40:
		score += 0.35 * words / 40
	default:
		score += 0.35 * 400 / words
	}

	sentences := strings.Count(text, ".") + strings.Count(text, "!") + strings.Count(text, "?")
	if sentences >= 2 {
		score += 0.25
	} else if sentences == 1 {
		score += 0.15
	}

	unique := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		unique[token] = struct{}{}
	}
	score += 0.25 * float64(len(unique)) / words

	lower := strings.ToLower(text)
	for _, connective := range discourseConnectives {
		if strings.Contains(lower, connective) {
			score += 0.15
			break
		}
	}

	return Clamp01(score)
}
