// Package registry holds the loaded selector definitions. It is the single
// source of truth consulted by the resolution engine and mutated only by the
// adaptation engine.
//
// Loads are atomic: the incoming batch is validated in full before the live
// map is swapped, so a bad batch leaves the previous state untouched.
// Reads return deep copies, so a concurrent reorder can never change the
// strategy sequence of an in-flight resolve call.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/hazyhaar/domresolve/selector"
)

// Registry stores selector definitions keyed by intent name.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]*selector.SelectorDefinition
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{defs: make(map[string]*selector.SelectorDefinition)}
}

// Load validates and installs a batch of definitions. The batch replaces the
// current state only if every definition is valid and intent names are
// unique; otherwise the previous state remains active and the first
// violation is returned as an InvalidDefinitionError.
func (r *Registry) Load(defs []selector.SelectorDefinition) error {
	next := make(map[string]*selector.SelectorDefinition, len(defs))
	for i := range defs {
		d := defs[i].Clone()
		d.Normalise()
		if err := d.Validate(); err != nil {
			return err
		}
		if _, dup := next[d.Intent]; dup {
			return &selector.InvalidDefinitionError{Intent: d.Intent, Reason: "duplicate intent name"}
		}
		next[d.Intent] = &d
	}

	r.mu.Lock()
	r.defs = next
	r.mu.Unlock()
	return nil
}

// Get returns a copy of the definition for intent. The copy reflects the
// strategy order at call time; later reorders do not affect it.
func (r *Registry) Get(intent string) (selector.SelectorDefinition, error) {
	r.mu.RLock()
	d, ok := r.defs[intent]
	r.mu.RUnlock()
	if !ok {
		return selector.SelectorDefinition{}, &selector.NotRegisteredError{Intent: intent}
	}
	return d.Clone(), nil
}

// Intents returns all registered intent names, sorted.
func (r *Registry) Intents() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.defs))
	for name := range r.defs {
		out = append(out, name)
	}
	r.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Snapshot returns copies of all definitions, sorted by intent.
func (r *Registry) Snapshot() []selector.SelectorDefinition {
	r.mu.RLock()
	out := make([]selector.SelectorDefinition, 0, len(r.defs))
	for _, d := range r.defs {
		out = append(out, d.Clone())
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Intent < out[j].Intent })
	return out
}

// Reorder is the single mutation entry point, used by the adaptation engine.
// order must be a permutation of the definition's current strategy names;
// blacklisted (optional) sets per-strategy blacklist flags. The update is
// rejected if it would leave zero usable strategies. Atomic with respect to
// concurrent Get calls.
func (r *Registry) Reorder(intent string, order []string, blacklisted map[string]bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.defs[intent]
	if !ok {
		return &selector.NotRegisteredError{Intent: intent}
	}
	if len(order) != len(d.Strategies) {
		return fmt.Errorf("registry: reorder %q: got %d names, definition has %d strategies",
			intent, len(order), len(d.Strategies))
	}

	next := make([]selector.StrategyRef, 0, len(order))
	seen := make(map[string]bool, len(order))
	usable := 0
	for _, name := range order {
		if seen[name] {
			return fmt.Errorf("registry: reorder %q: duplicate strategy %q", intent, name)
		}
		seen[name] = true
		ref := d.Strategy(name)
		if ref == nil {
			return fmt.Errorf("registry: reorder %q: unknown strategy %q", intent, name)
		}
		cp := *ref
		if blacklisted != nil {
			if bl, ok := blacklisted[name]; ok {
				cp.Blacklisted = bl
			}
		}
		if !cp.Blacklisted {
			usable++
		}
		next = append(next, cp)
	}
	if usable == 0 {
		return fmt.Errorf("registry: reorder %q would leave zero usable strategies", intent)
	}

	d.Strategies = next
	return nil
}
