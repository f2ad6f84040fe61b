package ollama

import (
	"fmt"
	"strings"

	"github.com/avolkova/ragcore/internal/core/domain"
)

const maxEvidenceChars = 2000

func buildAnswerPrompt(
	query string,
	chunks []domain.RerankedChunk,
	intent domain.IntentAnalysis,
	answerability domain.AnswerabilityResult,
) string {
	var evidence strings.Builder
	for _, chunk := range chunks {
		content := chunk.Content
		if len(content) > maxEvidenceChars {
			content = content[:maxEvidenceChars]
		}
		evidence.WriteString(fmt.Sprintf(
			"[chunk_id=%s] source=%s score=%.3f\n%s\n\n",
			chunk.ID,
			chunk.SourceID,
			chunk.FinalScore,
			content,
		))
	}

	var hints strings.Builder
	fmt.Fprintf(&hints, "Question type: %s. Expected shape: %s.", intent.Type, intent.AnswerShape)
	if answerability.Confidence > 0 {
		fmt.Fprintf(&hints, " Evidence confidence: %.2f.", answerability.Confidence)
	}

	return fmt.Sprintf(`Answer the question using only the evidence below.
Every factual claim must carry a citation quoting the source verbatim.
Return a strict JSON object with keys:
answer (string), confidence (number from 0 to 1),
citations (array of objects with keys text, source_chunk_id, confidence).
Each citation text must be an exact substring of the chunk it cites.
No markdown, no extra keys.

%s

Question:
%s

Evidence:
%s`, hints.String(), query, evidence.String())
}
