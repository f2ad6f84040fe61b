package rerank

import "github.com/avolkova/ragcore/internal/core/domain"

// Weights is the active weight profile over the ranking signals. Profiles
// always renormalize to sum 1 before scoring.
type Weights struct {
	Semantic  float64
	Lexical   float64
	Temporal  float64
	Entity    float64
	Context   float64
	Quality   float64
	Diversity float64
}

// BaseWeights is the default distribution before intent adjustments.
func BaseWeights() Weights {
	return Weights{
		Semantic: 0.35,
		Lexical:  0.25,
		Temporal: 0.10,
		Entity:   0.15,
		Context:  0.10,
		Quality:  0.05,
	}
}

// ProfileFor applies intent-specific adjustments to the base weights and
// renormalizes. Comparative intent enables diversity weighting.
func ProfileFor(intentType domain.IntentType) Weights {
	w := BaseWeights()
	switch intentType {
	case domain.IntentFactual:
		w.Semantic += 0.10
		w.Entity += 0.10
		w.Lexical -= 0.10
	case domain.IntentTemporal:
		w.Temporal += 0.20
		w.Semantic -= 0.10
	case domain.IntentProcedural:
		w.Context += 0.15
		w.Quality += 0.10
	case domain.IntentComparative:
		w.Diversity = 0.10
	case domain.IntentEntity:
		w.Entity += 0.15
		w.Lexical -= 0.05
	case domain.IntentCausal:
		w.Semantic += 0.05
		w.Quality += 0.05
	}
	return w.normalize()
}

func (w Weights) normalize() Weights {
	for _, v := range []*float64{&w.Semantic, &w.Lexical, &w.Temporal, &w.Entity, &w.Context, &w.Quality, &w.Diversity} {
		if *v < 0 {
			*v = 0
		}
	}
	sum := w.Semantic + w.Lexical + w.Temporal + w.Entity + w.Context + w.Quality + w.Diversity
	if sum <= 0 {
		return BaseWeights()
	}
	w.Semantic /= sum
	w.Lexical /= sum
	w.Temporal /= sum
	w.Entity /= sum
	w.Context /= sum
	w.Quality /= sum
	w.Diversity /= sum
	return w
}

func (w Weights) sum() float64 {
	return w.Semantic + w.Lexical + w.Temporal + w.Entity + w.Context + w.Quality + w.Diversity
}

// Apply computes the weighted sum of a signal vector under this profile.
func (w Weights) Apply(s domain.SignalVector) float64 {
	return w.Semantic*s.Semantic +
		w.Lexical*s.Lexical +
		w.Temporal*s.Temporal +
		w.Entity*s.Entity +
		w.Context*s.Context +
		w.Quality*s.Quality +
		w.Diversity*s.Diversity
}
