package signal

const (
	bm25K1 = 1.2
	bm25B  = 0.75

	// approximateIDF stands in for a corpus-wide IDF; the index is external
	// and per-term document frequencies are not available here.
	approximateIDF = 1.2

	// averageDocLength approximates the corpus mean chunk length in tokens.
	averageDocLength = 120.0

	// bm25Saturation maps the unbounded BM25 sum into [0,1).
	bm25Saturation = 5.0
)

// BM25Score computes a BM25-style lexical score of doc against query,
// normalized to [0,1] via score/(score+bm25Saturation).
func BM25Score(query, doc string) float64 {
	queryTerms := ContentTerms(query, 3)
	if len(queryTerms) == 0 {
		return 0
	}
	docTokens := TokenizeAlphaNum(doc)
	if len(docTokens) == 0 {
		return 0
	}

	termFreq := make(map[string]int, len(docTokens))
	for _, token := range docTokens {
		termFreq[token]++
	}

	docLen := float64(len(docTokens))
	lengthNorm := bm25K1 * (1 - bm25B + bm25B*docLen/averageDocLength)

	var score float64
	for _, term := range queryTerms {
		tf := float64(termFreq[term])
		if tf == 0 {
			continue
		}
		score += approximateIDF * (tf * (bm25K1 + 1)) / (tf + lengthNorm)
	}

	return Clamp01(score / (score + bm25Saturation))
}
