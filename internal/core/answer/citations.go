package answer

import (
	"log/slog"
	"strings"

	"github.com/avolkova/ragcore/internal/core/domain"
)

// ValidateCitations keeps only citations whose text literally occurs
// (case-insensitive) in their claimed source chunk, and whose source chunk
// is present in the reranked set used for synthesis. Invalid citations are
// dropped and logged, never silently accepted.
func ValidateCitations(proposed []domain.Citation, chunks []domain.RerankedChunk) (valid []domain.Citation, dropped int) {
	if len(proposed) == 0 {
		return nil, 0
	}

	contentByID := make(map[string]string, len(chunks))
	for _, chunk := range chunks {
		contentByID[chunk.ID] = strings.ToLower(chunk.Content)
	}

	valid = make([]domain.Citation, 0, len(proposed))
	for _, citation := range proposed {
		content, ok := contentByID[citation.SourceChunkID]
		if !ok {
			slog.Warn("citation_dangling_source",
				"citation_id", citation.ID,
				"source_chunk_id", citation.SourceChunkID,
			)
			dropped++
			continue
		}
		text := strings.ToLower(strings.TrimSpace(citation.Text))
		if text == "" || !strings.Contains(content, text) {
			slog.Warn("citation_text_mismatch",
				"citation_id", citation.ID,
				"source_chunk_id", citation.SourceChunkID,
			)
			dropped++
			continue
		}
		valid = append(valid, citation)
	}
	if len(valid) == 0 {
		return nil, dropped
	}
	return valid, dropped
}
