package domresolve

import (
	"github.com/hazyhaar/domresolve/internal/adapt"
	"github.com/hazyhaar/domresolve/internal/drift"
	"github.com/hazyhaar/domresolve/selector"
)

// Re-exported types from selector and the internal packages for use by
// cmd/ and external callers.
type (
	SelectorDefinition = selector.SelectorDefinition
	StrategyRef        = selector.StrategyRef
	StrategyParams     = selector.StrategyParams
	StrategyKind       = selector.StrategyKind
	ValidationRule     = selector.ValidationRule
	ResolutionResult   = selector.ResolutionResult
	ResolutionAttempt  = selector.ResolutionAttempt
	FailureContext     = selector.FailureContext
	DriftSample        = selector.DriftSample
	Event              = selector.Event
	Decision           = selector.Decision
	PairStats          = drift.PairStats
	DriftConfig        = drift.Config
	AdaptConfig        = adapt.Config
)

const (
	DecisionAccept = selector.DecisionAccept
	DecisionWarn   = selector.DecisionWarn
	DecisionReject = selector.DecisionReject
)
