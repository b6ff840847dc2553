package selector

import (
	"fmt"
	"regexp"
)

// RuleKind identifies one validation predicate.
type RuleKind string

const (
	// RuleNonEmpty requires non-empty visible text after sanitisation.
	RuleNonEmpty RuleKind = "non_empty"
	// RuleRegex requires the text to match Pattern.
	RuleRegex RuleKind = "regex"
	// RuleLength bounds the text length in runes.
	RuleLength RuleKind = "length"
	// RuleNumericRange requires the text to parse as a number within [Min, Max].
	RuleNumericRange RuleKind = "numeric_range"
	// RuleNodeType requires the element's tag and/or role attribute to match.
	RuleNodeType RuleKind = "node_type"
)

// ValidationRule is a declarative content check applied to a candidate.
// Rules are compiled once at registry load; a malformed rule fails the load
// batch, never a resolve call.
type ValidationRule struct {
	Kind    RuleKind `yaml:"kind" json:"kind"`
	Pattern string   `yaml:"pattern,omitempty" json:"pattern,omitempty"`
	MinLen  int      `yaml:"min_len,omitempty" json:"min_len,omitempty"`
	MaxLen  int      `yaml:"max_len,omitempty" json:"max_len,omitempty"`
	Min     float64  `yaml:"min,omitempty" json:"min,omitempty"`
	Max     float64  `yaml:"max,omitempty" json:"max,omitempty"`
	Tag     string   `yaml:"tag,omitempty" json:"tag,omitempty"`
	Role    string   `yaml:"role,omitempty" json:"role,omitempty"`

	re *regexp.Regexp
}

// compile verifies the rule and pre-compiles its regex.
func (r *ValidationRule) compile() error {
	switch r.Kind {
	case RuleNonEmpty:
	case RuleRegex:
		if r.Pattern == "" {
			return fmt.Errorf("regex rule requires pattern")
		}
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return fmt.Errorf("regex rule: %w", err)
		}
		r.re = re
	case RuleLength:
		if r.MinLen < 0 {
			return fmt.Errorf("length rule: negative min_len")
		}
		if r.MaxLen > 0 && r.MaxLen < r.MinLen {
			return fmt.Errorf("length rule: max_len %d < min_len %d", r.MaxLen, r.MinLen)
		}
	case RuleNumericRange:
		if r.Max < r.Min {
			return fmt.Errorf("numeric_range rule: max %v < min %v", r.Max, r.Min)
		}
	case RuleNodeType:
		if r.Tag == "" && r.Role == "" {
			return fmt.Errorf("node_type rule requires tag or role")
		}
	default:
		return fmt.Errorf("unknown rule kind %q", r.Kind)
	}
	return nil
}

// Regexp returns the compiled pattern for a regex rule, compiling lazily if
// the rule was constructed directly rather than through registry load.
func (r *ValidationRule) Regexp() (*regexp.Regexp, error) {
	if r.re != nil {
		return r.re, nil
	}
	re, err := regexp.Compile(r.Pattern)
	if err != nil {
		return nil, err
	}
	r.re = re
	return re, nil
}
