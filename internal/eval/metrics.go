package eval

import (
	"strings"

	"github.com/avolkova/ragcore/internal/core/signal"
)

// ExactMatch returns 1 when candidate and reference are identical after
// tokenization, else 0.
func ExactMatch(candidate, reference string) float64 {
	c := signal.TokenizeAlphaNum(candidate)
	r := signal.TokenizeAlphaNum(reference)
	if len(c) == 0 || len(c) != len(r) {
		return 0
	}
	for i := range c {
		if c[i] != r[i] {
			return 0
		}
	}
	return 1
}

// TokenF1 computes the harmonic mean of token precision and recall over
// token multisets.
func TokenF1(candidate, reference string) float64 {
	c := tokenCounts(candidate)
	r := tokenCounts(reference)
	if len(c) == 0 || len(r) == 0 {
		return 0
	}
	overlap := 0
	candTotal := 0
	refTotal := 0
	for tok, n := range c {
		candTotal += n
		if m, ok := r[tok]; ok {
			overlap += min(n, m)
		}
	}
	for _, n := range r {
		refTotal += n
	}
	if overlap == 0 {
		return 0
	}
	precision := float64(overlap) / float64(candTotal)
	recall := float64(overlap) / float64(refTotal)
	return 2 * precision * recall / (precision + recall)
}

// BLEU1 computes modified unigram precision with a brevity penalty.
func BLEU1(candidate, reference string) float64 {
	c := signal.TokenizeAlphaNum(candidate)
	r := tokenCounts(reference)
	if len(c) == 0 || len(r) == 0 {
		return 0
	}
	clipped := 0
	used := make(map[string]int, len(r))
	for _, tok := range c {
		if used[tok] < r[tok] {
			used[tok]++
			clipped++
		}
	}
	precision := float64(clipped) / float64(len(c))

	refLen := 0
	for _, n := range r {
		refLen += n
	}
	penalty := 1.0
	if len(c) < refLen {
		penalty = float64(len(c)) / float64(refLen)
	}
	return precision * penalty
}

// ROUGEN computes n-gram recall of the reference against the candidate.
func ROUGEN(candidate, reference string, n int) float64 {
	c := ngramCounts(signal.TokenizeAlphaNum(candidate), n)
	r := ngramCounts(signal.TokenizeAlphaNum(reference), n)
	if len(r) == 0 {
		return 0
	}
	overlap := 0
	refTotal := 0
	for gram, count := range r {
		refTotal += count
		if m, ok := c[gram]; ok {
			overlap += min(count, m)
		}
	}
	return float64(overlap) / float64(refTotal)
}

// ROUGEL computes the longest-common-subsequence F measure.
func ROUGEL(candidate, reference string) float64 {
	c := signal.TokenizeAlphaNum(candidate)
	r := signal.TokenizeAlphaNum(reference)
	if len(c) == 0 || len(r) == 0 {
		return 0
	}
	lcs := lcsLength(c, r)
	if lcs == 0 {
		return 0
	}
	precision := float64(lcs) / float64(len(c))
	recall := float64(lcs) / float64(len(r))
	return 2 * precision * recall / (precision + recall)
}

func tokenCounts(s string) map[string]int {
	tokens := signal.TokenizeAlphaNum(s)
	out := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		out[tok]++
	}
	return out
}

func ngramCounts(tokens []string, n int) map[string]int {
	if n <= 0 || len(tokens) < n {
		return nil
	}
	out := make(map[string]int, len(tokens)-n+1)
	for i := 0; i+n <= len(tokens); i++ {
		out[strings.Join(tokens[i:i+n], " ")]++
	}
	return out
}

func lcsLength(a, b []string) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
			} else if prev[j] >= cur[j-1] {
				cur[j] = prev[j]
			} else {
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
