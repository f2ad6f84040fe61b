package signal

import (
	"context"
	"hash/fnv"
	"math"
)

// DefaultEmbeddingDim is the fixed dimension of the hashed bag-of-words
// embedding.
const DefaultEmbeddingDim = 384

// EmbedText builds a deterministic hashed bag-of-words vector of the given
// dimension, L2-normalized. This is a cheap semantic-similarity proxy, not
// a trained embedding.
func EmbedText(text string, dim int) []float32 {
	if dim <= 0 {
		dim = DefaultEmbeddingDim
	}
	vec := make([]float32, dim)
	tokens := TokenizeAlphaNum(text)
	if len(tokens) == 0 {
		return vec
	}

	for _, token := range tokens {
		idx, sign := hashTokenSigned(token, dim)
		vec[idx] += sign
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}

func hashTokenSigned(token string, dim int) (int, float32) {
	h := fnv.New32a()
	_, _ = h.Write([]byte(token))
	sum := h.Sum32()
	idx := int(sum % uint32(dim))
	if sum&0x80000000 != 0 {
		return idx, -1
	}
	return idx, 1
}

// CosineSimilarity returns the cosine of two vectors in [-1,1]; zero for
// mismatched or zero-norm inputs.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// SemanticSimilarity rescales cosine similarity to [0,1].
func SemanticSimilarity(a, b []float32) float64 {
	return Clamp01((CosineSimilarity(a, b) + 1) / 2)
}

// HashedEmbedder exposes the hashed embedding through the Embedder port as
// the dependency-free fallback backend.
type HashedEmbedder struct {
	dim int
}

func NewHashedEmbedder(dim int) *HashedEmbedder {
	if dim <= 0 {
		dim = DefaultEmbeddingDim
	}
	return &HashedEmbedder{dim: dim}
}

func (e *HashedEmbedder) Encode(_ context.Context, text string) ([]float32, error) {
	return EmbedText(text, e.dim), nil
}
