package eval

import (
	"strings"

	"github.com/avolkova/ragcore/internal/core/domain"
	"github.com/avolkova/ragcore/internal/core/signal"
)

const (
	// A sentence counts as grounded when at least this fraction of its
	// content terms appear in the concatenated source text.
	sentenceSupportThreshold = 0.6
	contentTermMinLen        = 4
)

// CitationAccuracy returns the fraction of citations whose text literally
// occurs, case-insensitively, in their claimed source chunk. A response
// with no citations is vacuously accurate.
func CitationAccuracy(citations []domain.Citation, sources []domain.RetrievedChunk) float64 {
	if len(citations) == 0 {
		return 1
	}
	byID := make(map[string]string, len(sources))
	for _, chunk := range sources {
		byID[chunk.ID] = strings.ToLower(chunk.Content)
	}
	found := 0
	for _, cit := range citations {
		content, ok := byID[cit.SourceChunkID]
		if !ok {
			continue
		}
		if strings.Contains(content, strings.ToLower(cit.Text)) {
			found++
		}
	}
	return float64(found) / float64(len(citations))
}

// HallucinationRate returns the fraction of answer sentences whose content
// terms are insufficiently covered by the concatenated source text.
// Sentences without content terms are skipped.
func HallucinationRate(answer string, sources []domain.RetrievedChunk) float64 {
	sentences := splitSentences(answer)
	if len(sentences) == 0 {
		return 0
	}
	var corpus strings.Builder
	for _, chunk := range sources {
		corpus.WriteString(strings.ToLower(chunk.Content))
		corpus.WriteByte(' ')
	}
	sourceTokens := signal.TokenSet(corpus.String())

	scored := 0
	unsupported := 0
	for _, sentence := range sentences {
		terms := signal.ContentTerms(sentence, contentTermMinLen)
		if len(terms) == 0 {
			continue
		}
		covered := 0
		for _, term := range terms {
			if _, ok := sourceTokens[term]; ok {
				covered++
			}
		}
		scored++
		if float64(covered)/float64(len(terms)) < sentenceSupportThreshold {
			unsupported++
		}
	}
	if scored == 0 {
		return 0
	}
	return float64(unsupported) / float64(scored)
}

func splitSentences(text string) []string {
	raw := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
