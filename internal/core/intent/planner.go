package intent

import "github.com/avolkova/ragcore/internal/core/domain"

const rerankCandidateFactor = 4

// BuildPlan turns an intent analysis plus caller filters into a retrieval
// plan. Strategy priority: temporal intent > entities present > high
// complexity > default semantic.
func BuildPlan(analysis domain.IntentAnalysis, req domain.QueryRequest) domain.RetrievalPlan {
	strategy := domain.StrategySemantic
	switch {
	case analysis.Type == domain.IntentTemporal:
		strategy = domain.StrategyTemporal
	case len(analysis.Entities) > 0:
		strategy = domain.StrategyEntityFocused
	case analysis.Complexity > 0.8:
		strategy = domain.StrategyHybrid
	}

	topK := 4
	if analysis.Complexity > 0.8 {
		topK = 8
	} else if strategy == domain.StrategyHybrid {
		topK = 6
	}

	filters := req.Filters
	if len(analysis.Scopes) > 0 && len(filters.Tags) == 0 {
		filters.Tags = analysis.Scopes
	}

	return domain.RetrievalPlan{
		Strategy:         strategy,
		TopK:             topK,
		RerankCandidates: topK * rerankCandidateFactor,
		Filters:          filters,
		IncludeMetadata:  analysis.Type == domain.IntentTemporal || analysis.Type == domain.IntentEntity,
		TimeRange:        analysis.TimeRange,
		ScoreThreshold:   req.ScoreThreshold,
	}
}
