package selector

import (
	"time"

	"github.com/hazyhaar/domresolve/driver"
)

// Decision is the outcome class of a resolution.
type Decision string

const (
	// DecisionAccept means the element cleared the accept threshold and is
	// safe to extract directly.
	DecisionAccept Decision = "accept"
	// DecisionWarn means the element is usable but the caller should tag the
	// resulting data as lower-confidence.
	DecisionWarn Decision = "warn"
	// DecisionReject means no strategy produced an acceptable candidate; the
	// element is absent and the caller must skip this field.
	DecisionReject Decision = "reject"
)

// ResolutionAttempt records one strategy execution within a resolve call.
type ResolutionAttempt struct {
	Strategy   string        `json:"strategy"`
	Kind       StrategyKind  `json:"kind"`
	Matched    bool          `json:"matched"`
	Validated  bool          `json:"validated"`
	Confidence float64       `json:"confidence"`
	Duration   time.Duration `json:"duration"`
	Reasons    []string      `json:"reasons,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// ResolutionResult is returned to the caller. Immutable once constructed.
// Element is non-nil iff Decision is accept or warn.
type ResolutionResult struct {
	Intent       string              `json:"intent"`
	Scope        string              `json:"scope"`
	Generation   uint64              `json:"generation"`
	Decision     Decision            `json:"decision"`
	Element      driver.Node         `json:"-"`
	Confidence   float64             `json:"confidence"`
	StrategyUsed string              `json:"strategy_used,omitempty"`
	Validated    bool                `json:"validated"`
	Attempts     []ResolutionAttempt `json:"attempts"`
	ResolvedAt   time.Time           `json:"resolved_at"`
}

// Stale reports whether the result was computed under an older scope
// generation than gen and should be discarded without re-querying the DOM.
func (r *ResolutionResult) Stale(gen uint64) bool {
	return r.Generation < gen
}

// DriftSample is one longitudinal success/failure observation for a
// (intent, strategy) pair.
type DriftSample struct {
	Intent   string    `json:"intent"`
	Strategy string    `json:"strategy"`
	Success  bool      `json:"success"`
	At       time.Time `json:"at"`
}

// FailureContext is emitted to the diagnostic-capture collaborator on every
// reject decision (and optionally on warn). It carries the full attempt
// history plus the scope's HTML at failure time.
type FailureContext struct {
	ID         string              `json:"id"`
	Intent     string              `json:"intent"`
	Scope      string              `json:"scope"`
	Generation uint64              `json:"generation"`
	Decision   Decision            `json:"decision"`
	Attempts   []ResolutionAttempt `json:"attempts"`
	ScopeHTML  string              `json:"scope_html,omitempty"`
	CapturedAt time.Time           `json:"captured_at"`
}

// EventType classifies telemetry events.
type EventType string

const (
	EventResolution    EventType = "resolution"
	EventPromotion     EventType = "promotion"
	EventDemotion      EventType = "demotion"
	EventBlacklist     EventType = "blacklist"
	EventRecovery      EventType = "recovery"
	EventBlacklistVeto EventType = "blacklist_veto"
)

// Event is a structured telemetry record for resolution outcomes and
// adaptation actions.
type Event struct {
	Type     EventType `json:"type"`
	Intent   string    `json:"intent"`
	Strategy string    `json:"strategy,omitempty"`
	Decision Decision  `json:"decision,omitempty"`
	Detail   string    `json:"detail,omitempty"`
	At       time.Time `json:"at"`
}
