// Package score computes the confidence of a resolution attempt.
//
// confidence = base_weight * validation_factor * reliability_factor
//
// The product form is deliberate: a strategy with a perfect historical
// record still contributes nothing when the current attempt fails
// validation. Confidence is a function of this evidence modulated by
// history, never a historical score alone.
package score

import "github.com/hazyhaar/domresolve/selector"

// RateSource provides recent success rates. ok=false means below the
// minimum sample count — cold start assumes good faith (factor 1.0).
type RateSource interface {
	SuccessRate(intent, strategy string) (float64, bool)
}

// Scorer combines strategy weight, validation outcome, and history.
type Scorer struct {
	rates RateSource
}

// New creates a scorer backed by the given rate source.
func New(rates RateSource) *Scorer {
	return &Scorer{rates: rates}
}

// Score returns the confidence for one attempt of ref on intent.
func (s *Scorer) Score(intent string, ref *selector.StrategyRef, validated bool) float64 {
	if !validated {
		return 0
	}
	reliability := 1.0
	if rate, ok := s.rates.SuccessRate(intent, ref.Name); ok {
		reliability = rate
	}
	return ref.BaseWeight * reliability
}
