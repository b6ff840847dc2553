// Package selector defines the shared data model for semantic element
// resolution: selector definitions, strategy references, validation rules,
// resolution results, drift samples, and the error taxonomy.
//
// A SelectorDefinition names a piece of data by intent ("home_team_name")
// rather than by DOM structure, and carries an ordered list of independent
// matching strategies. The registry owns definitions; the adaptation engine
// is the only writer of strategy ordering.
package selector

import (
	"fmt"
	"strings"
)

// StrategyKind identifies one matching approach from the strategy library.
type StrategyKind string

const (
	// KindStructural matches by a positional/structural CSS query.
	KindStructural StrategyKind = "structural"
	// KindAttribute matches by attribute presence or value.
	KindAttribute StrategyKind = "attribute"
	// KindTextAnchor matches by a visible text phrase.
	KindTextAnchor StrategyKind = "text_anchor"
	// KindRelativePath matches by a path relative to a stable anchor element.
	KindRelativePath StrategyKind = "relative_path"
	// KindRole matches by accessibility role.
	KindRole StrategyKind = "role"
)

// Valid reports whether k is a known strategy kind.
func (k StrategyKind) Valid() bool {
	switch k {
	case KindStructural, KindAttribute, KindTextAnchor, KindRelativePath, KindRole:
		return true
	}
	return false
}

// DefaultWeight returns the intrinsic trust weight for a strategy kind.
// Accessibility roles survive markup churn best; bare positional queries
// survive it worst. These are tunable starting points, not physics — a
// definition may override per strategy.
func DefaultWeight(k StrategyKind) float64 {
	switch k {
	case KindStructural:
		return 0.3
	case KindAttribute:
		return 0.5
	case KindTextAnchor:
		return 0.6
	case KindRelativePath:
		return 0.7
	case KindRole:
		return 0.8
	}
	return 0
}

// StrategyParams carries the kind-specific parameters of a strategy.
type StrategyParams struct {
	// Query is a CSS selector. Required for structural; optional narrowing
	// filter for text_anchor, attribute, and role.
	Query string `yaml:"query,omitempty" json:"query,omitempty"`

	// Anchor is the text phrase for text_anchor strategies.
	Anchor string `yaml:"anchor,omitempty" json:"anchor,omitempty"`

	// Attr / Value identify an attribute match. Empty Value means presence.
	Attr  string `yaml:"attr,omitempty" json:"attr,omitempty"`
	Value string `yaml:"value,omitempty" json:"value,omitempty"`

	// Role is the accessibility role for role strategies.
	Role string `yaml:"role,omitempty" json:"role,omitempty"`

	// AnchorQuery locates the stable anchor for relative_path strategies;
	// Relative is the CSS path followed from that anchor.
	AnchorQuery string `yaml:"anchor_query,omitempty" json:"anchor_query,omitempty"`
	Relative    string `yaml:"relative,omitempty" json:"relative,omitempty"`
}

// StrategyRef is a named strategy entry inside a definition. Refs are owned
// by their definition — the registry deep-copies on load so reordering one
// definition can never bleed into another.
type StrategyRef struct {
	Name       string         `yaml:"name,omitempty" json:"name"`
	Kind       StrategyKind   `yaml:"kind" json:"kind"`
	Params     StrategyParams `yaml:"params" json:"params"`
	BaseWeight float64        `yaml:"base_weight,omitempty" json:"base_weight"`

	// Blacklisted is set only by the adaptation engine. A blacklisted
	// strategy sinks to the end of the order and runs as a last resort,
	// which lets it accrue fresh samples and recover if the DOM reverts.
	Blacklisted bool `yaml:"-" json:"blacklisted,omitempty"`
}

// validateParams checks that the parameters required by the ref's kind are set.
func (r *StrategyRef) validateParams() error {
	switch r.Kind {
	case KindStructural:
		if r.Params.Query == "" {
			return fmt.Errorf("structural strategy requires params.query")
		}
	case KindAttribute:
		if r.Params.Attr == "" {
			return fmt.Errorf("attribute strategy requires params.attr")
		}
	case KindTextAnchor:
		if r.Params.Anchor == "" {
			return fmt.Errorf("text_anchor strategy requires params.anchor")
		}
	case KindRole:
		if r.Params.Role == "" {
			return fmt.Errorf("role strategy requires params.role")
		}
	case KindRelativePath:
		if r.Params.AnchorQuery == "" || r.Params.Relative == "" {
			return fmt.Errorf("relative_path strategy requires params.anchor_query and params.relative")
		}
	default:
		return fmt.Errorf("unknown strategy kind %q", r.Kind)
	}
	return nil
}

// SelectorDefinition is the declarative description of one intent.
type SelectorDefinition struct {
	Intent          string           `yaml:"intent" json:"intent"`
	Scope           string           `yaml:"scope" json:"scope"`
	Strategies      []StrategyRef    `yaml:"strategies" json:"strategies"`
	Rules           []ValidationRule `yaml:"rules,omitempty" json:"rules,omitempty"`
	AcceptThreshold float64          `yaml:"accept_threshold" json:"accept_threshold"`
	RejectThreshold float64          `yaml:"reject_threshold" json:"reject_threshold"`
	SchemaVersion   int              `yaml:"schema_version,omitempty" json:"schema_version,omitempty"`
}

// Normalise fills defaulted fields: strategy names, base weights, thresholds.
// A zero threshold (or weight) means unset and gets the default; a definition
// that wants a floor of "reject nothing" or a bar of "accept anything" must
// use a small positive value such as 0.01 instead of a literal 0.
func (d *SelectorDefinition) Normalise() {
	if d.AcceptThreshold == 0 {
		d.AcceptThreshold = 0.7
	}
	if d.RejectThreshold == 0 {
		d.RejectThreshold = 0.35
	}
	for i := range d.Strategies {
		s := &d.Strategies[i]
		if s.Name == "" {
			s.Name = string(s.Kind)
		}
		if s.BaseWeight == 0 {
			s.BaseWeight = DefaultWeight(s.Kind)
		}
	}
}

// Validate checks the structural invariants a definition must satisfy to be
// loadable. Violations are reported as InvalidDefinitionError.
func (d *SelectorDefinition) Validate() error {
	fail := func(format string, args ...any) error {
		return &InvalidDefinitionError{Intent: d.Intent, Reason: fmt.Sprintf(format, args...)}
	}

	if strings.TrimSpace(d.Intent) == "" {
		return fail("empty intent name")
	}
	if strings.TrimSpace(d.Scope) == "" {
		return fail("empty scope")
	}
	if len(d.Strategies) == 0 {
		return fail("definition has zero strategies")
	}
	if d.AcceptThreshold < 0 || d.AcceptThreshold > 1 {
		return fail("accept_threshold %v outside [0,1]", d.AcceptThreshold)
	}
	if d.RejectThreshold < 0 || d.RejectThreshold > 1 {
		return fail("reject_threshold %v outside [0,1]", d.RejectThreshold)
	}
	if d.RejectThreshold > d.AcceptThreshold {
		return fail("reject_threshold %v > accept_threshold %v", d.RejectThreshold, d.AcceptThreshold)
	}

	seen := make(map[string]bool, len(d.Strategies))
	for i := range d.Strategies {
		s := &d.Strategies[i]
		if !s.Kind.Valid() {
			return fail("strategy %d: unknown kind %q", i, s.Kind)
		}
		if s.BaseWeight < 0 || s.BaseWeight > 1 {
			return fail("strategy %q: base_weight %v outside [0,1]", s.Name, s.BaseWeight)
		}
		if seen[s.Name] {
			return fail("duplicate strategy name %q", s.Name)
		}
		seen[s.Name] = true
		if err := s.validateParams(); err != nil {
			return fail("strategy %q: %v", s.Name, err)
		}
	}

	for i := range d.Rules {
		if err := d.Rules[i].compile(); err != nil {
			return fail("rule %d: %v", i, err)
		}
	}
	return nil
}

// Clone returns a deep copy of the definition. Strategy refs and rules are
// copied so the registry's internal state is never aliased by callers.
func (d *SelectorDefinition) Clone() SelectorDefinition {
	out := *d
	out.Strategies = make([]StrategyRef, len(d.Strategies))
	copy(out.Strategies, d.Strategies)
	out.Rules = make([]ValidationRule, len(d.Rules))
	copy(out.Rules, d.Rules)
	return out
}

// Usable returns the count of non-blacklisted strategies.
func (d *SelectorDefinition) Usable() int {
	n := 0
	for i := range d.Strategies {
		if !d.Strategies[i].Blacklisted {
			n++
		}
	}
	return n
}

// Strategy returns the ref with the given name, or nil.
func (d *SelectorDefinition) Strategy(name string) *StrategyRef {
	for i := range d.Strategies {
		if d.Strategies[i].Name == name {
			return &d.Strategies[i]
		}
	}
	return nil
}
