package domain

import "time"

type ChunkMetadata struct {
	Timestamp time.Time `json:"timestamp,omitempty"`
	Author    string    `json:"author,omitempty"`
	Tags      []string  `json:"tags,omitempty"`
}

// RetrievedChunk is owned by the retriever and read-only downstream.
type RetrievedChunk struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	SourceID string         `json:"source_id"`
	Score    float64        `json:"score"`
	Metadata *ChunkMetadata `json:"metadata,omitempty"`
}

// SignalVector holds the per-dimension ranking signals, each in [0,1].
type SignalVector struct {
	Semantic  float64 `json:"semantic"`
	Lexical   float64 `json:"lexical"`
	Temporal  float64 `json:"temporal"`
	Entity    float64 `json:"entity"`
	Context   float64 `json:"context"`
	Quality   float64 `json:"quality"`
	Diversity float64 `json:"diversity"`
}

// NeutralSignals is the fallback vector used when reranking degrades to the
// original retrieval ordering.
func NeutralSignals() SignalVector {
	return SignalVector{
		Semantic:  0.5,
		Lexical:   0.5,
		Temporal:  0.5,
		Entity:    0.5,
		Context:   0.5,
		Quality:   0.5,
		Diversity: 0.5,
	}
}

// RerankedChunk extends a retrieved chunk with its signal vector and final
// score. FinalScore is a deterministic function of the signals, the active
// weight profile, and the original retrieval score.
type RerankedChunk struct {
	RetrievedChunk
	Signals    SignalVector `json:"signals"`
	FinalScore float64      `json:"final_score"`
}
