// Package strategy executes selector strategies against a DOM driver.
//
// Each strategy kind is a stateless translation from StrategyParams to a
// driver.Query, resolved through a fixed dispatch table built at
// construction — runtime-configurable behaviour without reflection.
// Executors are side-effect-free and safe to invoke concurrently for
// distinct intents.
package strategy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hazyhaar/domresolve/driver"
	"github.com/hazyhaar/domresolve/selector"
)

// Timeouts bounds execution per strategy kind. A timeout is an execution
// failure (counts toward drift as a failure), never an indefinite block.
type Timeouts map[selector.StrategyKind]time.Duration

// DefaultTimeouts returns the per-kind execution bounds used when the
// config does not override them.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		selector.KindStructural:   2 * time.Second,
		selector.KindAttribute:    2 * time.Second,
		selector.KindTextAnchor:   3 * time.Second,
		selector.KindRole:         3 * time.Second,
		selector.KindRelativePath: 4 * time.Second,
	}
}

// buildQuery translates a strategy ref into a driver query.
type buildQuery func(p selector.StrategyParams) driver.Query

// Set is the strategy library: one executor per kind.
type Set struct {
	timeouts Timeouts
	builders map[selector.StrategyKind]buildQuery
}

// NewSet builds the dispatch table. Unset timeouts fall back to defaults.
func NewSet(timeouts Timeouts) *Set {
	t := DefaultTimeouts()
	for k, d := range timeouts {
		if d > 0 {
			t[k] = d
		}
	}
	return &Set{
		timeouts: t,
		builders: map[selector.StrategyKind]buildQuery{
			selector.KindStructural: func(p selector.StrategyParams) driver.Query {
				return driver.Query{CSS: p.Query}
			},
			selector.KindAttribute: func(p selector.StrategyParams) driver.Query {
				return driver.Query{CSS: p.Query, Attr: p.Attr, Value: p.Value}
			},
			selector.KindTextAnchor: func(p selector.StrategyParams) driver.Query {
				return driver.Query{CSS: p.Query, Text: p.Anchor}
			},
			selector.KindRole: func(p selector.StrategyParams) driver.Query {
				return driver.Query{CSS: p.Query, Role: p.Role}
			},
			selector.KindRelativePath: func(p selector.StrategyParams) driver.Query {
				return driver.Query{AnchorCSS: p.AnchorQuery, CSS: p.Relative}
			},
		},
	}
}

// Timeout returns the execution bound for a kind.
func (s *Set) Timeout(k selector.StrategyKind) time.Duration {
	if d, ok := s.timeouts[k]; ok {
		return d
	}
	return 2 * time.Second
}

// Execute runs one strategy under the given scope root. Returns (nil, nil)
// for an ordinary absence; a StrategyExecutionError only for genuine
// execution failure (timeout, cancelled generation, driver error).
func (s *Set) Execute(ctx context.Context, d driver.Driver, scopeCSS string, ref *selector.StrategyRef) (driver.Node, error) {
	build, ok := s.builders[ref.Kind]
	if !ok {
		return nil, &selector.StrategyExecutionError{
			Strategy: ref.Name,
			Err:      fmt.Errorf("no executor for kind %q", ref.Kind),
		}
	}

	execCtx, cancel := context.WithTimeout(ctx, s.Timeout(ref.Kind))
	defer cancel()

	node, err := d.Find(execCtx, scopeCSS, build(ref.Params))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %s: %w", s.Timeout(ref.Kind), err)
		}
		return nil, &selector.StrategyExecutionError{Strategy: ref.Name, Err: err}
	}
	return node, nil
}
