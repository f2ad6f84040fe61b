package intent

import (
	"strings"
	"time"

	"github.com/avolkova/ragcore/internal/core/domain"
	"github.com/avolkova/ragcore/internal/core/signal"
)

var (
	interrogativeMarkers = []string{"what", "how", "why", "when", "where", "which", "who"}
	comparisonMarkers    = []string{"compare", "comparison", "versus", " vs ", "difference between", "better than", "worse than"}
	causalMarkers        = []string{"why", "because", "cause of", "reason for", "lead to", "result in"}
	temporalMarkers      = []string{"when", "yesterday", "today", "last week", "last month", "recently", "latest", "ago", "this week"}
	entityMarkers        = []string{"who is", "who was", "whose", "whom"}
	proceduralMarkers    = []string{"how to", "how do i", "how can i", "steps to", "guide", "install", "configure", "set up"}
)

const relativeLookback = 30 * 24 * time.Hour

// Analyzer classifies a query into a type/complexity/entity/temporal
// profile. Pure given its inputs and the current time.
type Analyzer struct {
	now func() time.Time
}

func NewAnalyzer() *Analyzer {
	return &Analyzer{now: time.Now}
}

func (a *Analyzer) Analyze(query string, history []domain.ConversationTurn) domain.IntentAnalysis {
	lower := strings.ToLower(query)

	analysis := domain.IntentAnalysis{
		Type:       classifyType(lower),
		Complexity: complexityScore(query, lower),
		Entities:   extractQueryEntities(query),
		Scopes:     scopeTags(lower, history),
	}
	analysis.AnswerShape = answerShapeFor(analysis.Type)

	if containsAny(lower, temporalMarkers) {
		now := a.now()
		analysis.TimeRange = &domain.TimeRange{From: now.Add(-relativeLookback), To: now}
	}
	return analysis
}

// classifyType is a first-match-wins keyword rule, defaulting to factual.
func classifyType(lower string) domain.IntentType {
	switch {
	case containsAny(lower, causalMarkers):
		return domain.IntentCausal
	case containsAny(lower, temporalMarkers):
		return domain.IntentTemporal
	case containsAny(lower, entityMarkers):
		return domain.IntentEntity
	case containsAny(lower, comparisonMarkers):
		return domain.IntentComparative
	case containsAny(lower, proceduralMarkers):
		return domain.IntentProcedural
	default:
		return domain.IntentFactual
	}
}

func complexityScore(query, lower string) float64 {
	var score float64
	if len(strings.Fields(query)) > 10 {
		score += 0.3
	}
	if strings.Count(query, "?") > 1 {
		score += 0.2
	}
	if countMarkers(lower, interrogativeMarkers) >= 2 {
		score += 0.3
	}
	if containsAny(lower, comparisonMarkers) {
		score += 0.4
	}
	return signal.Clamp01(score)
}

// extractQueryEntities keeps capitalized tokens longer than 3 characters.
func extractQueryEntities(query string) []string {
	fields := strings.Fields(query)
	out := make([]string, 0, 4)
	seen := make(map[string]struct{}, 4)
	for _, field := range fields {
		token := strings.Trim(field, ".,;:!?\"'()")
		if len(token) <= 3 {
			continue
		}
		first := rune(token[0])
		if first < 'A' || first > 'Z' {
			continue
		}
		if _, ok := seen[token]; ok {
			continue
		}
		seen[token] = struct{}{}
		out = append(out, token)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func scopeTags(lower string, history []domain.ConversationTurn) []string {
	tags := make([]string, 0, 2)
	if len(history) > 0 {
		tags = append(tags, "conversational")
	}
	if containsAny(lower, temporalMarkers) {
		tags = append(tags, "recent")
	}
	if len(tags) == 0 {
		return nil
	}
	return tags
}

func answerShapeFor(t domain.IntentType) string {
	switch t {
	case domain.IntentProcedural:
		return "steps"
	case domain.IntentCausal:
		return "explanation"
	case domain.IntentTemporal:
		return "timeline"
	case domain.IntentEntity:
		return "entity_summary"
	case domain.IntentComparative:
		return "comparison"
	default:
		return "short_fact"
	}
}

func containsAny(s string, markers []string) bool {
	for _, marker := range markers {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}

func countMarkers(s string, markers []string) int {
	n := 0
	for _, marker := range markers {
		if strings.Contains(s, marker) {
			n++
		}
	}
	return n
}
