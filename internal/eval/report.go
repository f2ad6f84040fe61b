package eval

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// CaseResult holds the scored outcome of a single battery case.
type CaseResult struct {
	CaseID            string  `json:"case_id"`
	Category          string  `json:"category"`
	Difficulty        string  `json:"difficulty"`
	Status            string  `json:"status"`
	Passed            bool    `json:"passed"`
	HasReference      bool    `json:"has_reference"`
	Failure           string  `json:"failure,omitempty"`
	Confidence        float64 `json:"confidence"`
	ExactMatch        float64 `json:"exact_match"`
	F1                float64 `json:"f1"`
	BLEU1             float64 `json:"bleu_1"`
	ROUGE1            float64 `json:"rouge_1"`
	ROUGE2            float64 `json:"rouge_2"`
	ROUGEL            float64 `json:"rouge_l"`
	CitationAccuracy  float64 `json:"citation_accuracy"`
	HallucinationRate float64 `json:"hallucination_rate"`
}

// CategoryStats aggregates pass counts per question category.
type CategoryStats struct {
	Total  int `json:"total"`
	Passed int `json:"passed"`
}

// Report is the aggregated outcome of one battery run.
type Report struct {
	RequesterID       string                   `json:"requester_id"`
	RanAt             time.Time                `json:"ran_at"`
	Total             int                      `json:"total"`
	Passed            int                      `json:"passed"`
	MeanF1            float64                  `json:"mean_f1"`
	MeanBLEU1         float64                  `json:"mean_bleu_1"`
	MeanROUGEL        float64                  `json:"mean_rouge_l"`
	CitationAccuracy  float64                  `json:"citation_accuracy"`
	HallucinationRate float64                  `json:"hallucination_rate"`
	ByCategory        map[string]CategoryStats `json:"by_category"`
	Cases             []CaseResult             `json:"cases"`
	Recommendations   []string                 `json:"recommendations"`
}

func (r *Report) add(result CaseResult) {
	r.Cases = append(r.Cases, result)
	r.Total++
	if result.Passed {
		r.Passed++
	}
	stats := r.ByCategory[result.Category]
	stats.Total++
	if result.Passed {
		stats.Passed++
	}
	r.ByCategory[result.Category] = stats
}

// finalize computes aggregate metrics over answered cases and derives the
// recommendation list.
func (r *Report) finalize() {
	answered := 0
	referenced := 0
	var sumF1, sumBLEU, sumROUGEL, sumCitation, sumHallucination float64
	for _, c := range r.Cases {
		if c.Status != "answered" {
			continue
		}
		answered++
		sumCitation += c.CitationAccuracy
		sumHallucination += c.HallucinationRate
		if c.HasReference {
			referenced++
			sumF1 += c.F1
			sumBLEU += c.BLEU1
			sumROUGEL += c.ROUGEL
		}
	}
	if answered > 0 {
		r.CitationAccuracy = sumCitation / float64(answered)
		r.HallucinationRate = sumHallucination / float64(answered)
	}
	if referenced > 0 {
		r.MeanF1 = sumF1 / float64(referenced)
		r.MeanBLEU1 = sumBLEU / float64(referenced)
		r.MeanROUGEL = sumROUGEL / float64(referenced)
	}
	r.Recommendations = r.recommend()
}

func (r *Report) recommend() []string {
	var recs []string
	if r.Total == 0 {
		return recs
	}
	if r.HallucinationRate > 0.2 {
		recs = append(recs, "hallucination rate exceeds 20%: raise the answerability threshold or tighten citation validation")
	}
	if r.CitationAccuracy < 0.9 {
		recs = append(recs, "citation accuracy below 90%: inspect generation prompts for paraphrased citation text")
	}
	if stats, ok := r.ByCategory["trap"]; ok && stats.Passed < stats.Total {
		recs = append(recs, "trap questions were answered instead of declined: the evidence gate is too permissive")
	}
	if r.MeanF1 > 0 && r.MeanF1 < 0.4 {
		recs = append(recs, "mean token F1 below 0.4: review retrieval quality and rerank weight profiles")
	}
	for category, stats := range r.ByCategory {
		if category == "trap" {
			continue
		}
		if stats.Total > 0 && stats.Passed == 0 {
			recs = append(recs, fmt.Sprintf("every %s case failed: check intent classification for that category", category))
		}
	}
	sort.Strings(recs)
	return recs
}

// Format renders a human-readable summary.
func (r *Report) Format() string {
	var b strings.Builder
	b.WriteString("Evaluation Battery Report\n")
	b.WriteString("=========================\n\n")
	fmt.Fprintf(&b, "Requester:          %s\n", r.RequesterID)
	fmt.Fprintf(&b, "Cases:              %d/%d passed\n", r.Passed, r.Total)
	fmt.Fprintf(&b, "Mean F1:            %.2f\n", r.MeanF1)
	fmt.Fprintf(&b, "Mean BLEU-1:        %.2f\n", r.MeanBLEU1)
	fmt.Fprintf(&b, "Mean ROUGE-L:       %.2f\n", r.MeanROUGEL)
	fmt.Fprintf(&b, "Citation accuracy:  %.2f\n", r.CitationAccuracy)
	fmt.Fprintf(&b, "Hallucination rate: %.2f\n", r.HallucinationRate)

	b.WriteString("\nPer category:\n")
	categories := make([]string, 0, len(r.ByCategory))
	for category := range r.ByCategory {
		categories = append(categories, category)
	}
	sort.Strings(categories)
	for _, category := range categories {
		stats := r.ByCategory[category]
		fmt.Fprintf(&b, "  %-14s %d/%d\n", category+":", stats.Passed, stats.Total)
	}

	if len(r.Recommendations) > 0 {
		b.WriteString("\nRecommendations:\n")
		for _, rec := range r.Recommendations {
			fmt.Fprintf(&b, "  - %s\n", rec)
		}
	}

	b.WriteString("\n")
	if r.Passed == r.Total && r.Total > 0 {
		b.WriteString("Verdict: PASS\n")
	} else {
		fmt.Fprintf(&b, "Verdict: %d failing case(s), see details\n", r.Total-r.Passed)
	}
	return b.String()
}

// JSON renders the report as indented JSON.
func (r *Report) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}
