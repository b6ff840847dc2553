// Package validate applies declarative content rules to a candidate element.
//
// A candidate that fails validation is treated identically to "no match" for
// that strategy, but every failure reason is retained for diagnostics.
// Errors are reserved for driver read failures; rule outcomes are plain
// booleans plus reasons.
package validate

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"

	"github.com/hazyhaar/domresolve/driver"
	"github.com/hazyhaar/domresolve/selector"
)

// strict strips every tag — drivers may surface markup in text reads.
var strict = bluemonday.StrictPolicy()

// Check runs all rules against the candidate. Returns pass/fail and the
// reasons for every failed rule. A non-nil error means a driver read failed
// (execution failure), not a rule outcome.
func Check(ctx context.Context, n driver.Node, rules []selector.ValidationRule) (bool, []string, error) {
	raw, err := n.Text(ctx)
	if err != nil {
		return false, nil, fmt.Errorf("validate: read text: %w", err)
	}
	text := CleanText(strict.Sanitize(raw))

	var reasons []string
	for i := range rules {
		r := &rules[i]
		ok, reason, err := checkRule(ctx, n, r, text)
		if err != nil {
			return false, reasons, err
		}
		if !ok {
			reasons = append(reasons, reason)
		}
	}
	return len(reasons) == 0, reasons, nil
}

func checkRule(ctx context.Context, n driver.Node, r *selector.ValidationRule, text string) (bool, string, error) {
	switch r.Kind {
	case selector.RuleNonEmpty:
		if text == "" {
			return false, "non_empty: text is empty", nil
		}

	case selector.RuleRegex:
		re, err := r.Regexp()
		if err != nil {
			return false, "", fmt.Errorf("validate: regex: %w", err)
		}
		if !re.MatchString(text) {
			return false, fmt.Sprintf("regex: %q does not match %s", text, r.Pattern), nil
		}

	case selector.RuleLength:
		length := utf8.RuneCountInString(text)
		if length < r.MinLen {
			return false, fmt.Sprintf("length: %d < min %d", length, r.MinLen), nil
		}
		if r.MaxLen > 0 && length > r.MaxLen {
			return false, fmt.Sprintf("length: %d > max %d", length, r.MaxLen), nil
		}

	case selector.RuleNumericRange:
		v, ok := parseNumber(text)
		if !ok {
			return false, fmt.Sprintf("numeric_range: %q is not numeric", text), nil
		}
		if v < r.Min || v > r.Max {
			return false, fmt.Sprintf("numeric_range: %v outside [%v, %v]", v, r.Min, r.Max), nil
		}

	case selector.RuleNodeType:
		if r.Tag != "" {
			tag, err := n.Tag(ctx)
			if err != nil {
				return false, "", fmt.Errorf("validate: read tag: %w", err)
			}
			if !strings.EqualFold(tag, r.Tag) {
				return false, fmt.Sprintf("node_type: tag %q, want %q", tag, r.Tag), nil
			}
		}
		if r.Role != "" {
			role, err := n.Attribute(ctx, "role")
			if err != nil {
				return false, "", fmt.Errorf("validate: read role: %w", err)
			}
			if role != r.Role {
				return false, fmt.Sprintf("node_type: role %q, want %q", role, r.Role), nil
			}
		}
	}
	return true, "", nil
}

// parseNumber extracts the first decimal number from text. Thousands
// separators are tolerated ("1,234" parses as 1234).
func parseNumber(text string) (float64, bool) {
	start := -1
	for i, r := range text {
		if unicode.IsDigit(r) || r == '-' || r == '+' {
			start = i
			break
		}
	}
	if start < 0 {
		return 0, false
	}
	end := start
	for end < len(text) {
		c := text[end]
		if c >= '0' && c <= '9' || c == '.' || c == ',' || c == '-' || c == '+' {
			end++
			continue
		}
		break
	}
	cleaned := strings.ReplaceAll(text[start:end], ",", "")
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// CleanText collapses whitespace, removes zero-width characters, and trims.
func CleanText(text string) string {
	text = strings.Map(func(r rune) rune {
		switch r {
		case '\u200b', '\u200c', '\u200d', '\ufeff', '\u00ad':
			return -1
		}
		return r
	}, text)
	return strings.TrimSpace(strings.Join(strings.Fields(text), " "))
}
