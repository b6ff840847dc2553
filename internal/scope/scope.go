// Package scope tracks the active logical UI context (tab, panel, container)
// and its generation counter. Every navigation or tab switch advances the
// generation; anything computed under an older generation is stale.
package scope

import (
	"context"
	"sync"
)

// Manager is the single source of truth for the active scope. Safe for
// concurrent use.
type Manager struct {
	mu      sync.Mutex
	scope   string
	gen     uint64
	nextID  uint64
	cancels map[uint64]context.CancelFunc // in-flight work bound to the current generation
}

// New creates a Manager with no active scope (generation 0).
func New() *Manager {
	return &Manager{cancels: make(map[uint64]context.CancelFunc)}
}

// Enter activates a scope, advances the generation, and cancels all work
// bound to the previous generation. Returns the new generation.
func (m *Manager) Enter(scopeID string) uint64 {
	m.mu.Lock()
	cancels := m.cancels
	m.cancels = make(map[uint64]context.CancelFunc)
	m.scope = scopeID
	m.gen++
	gen := m.gen
	m.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	return gen
}

// Current returns the active scope ID and generation.
func (m *Manager) Current() (string, uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scope, m.gen
}

// IsStale reports whether gen is older than the current generation.
func (m *Manager) IsStale(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return gen < m.gen
}

// Bind derives a context that is cancelled when the generation advances past
// the current one, so in-flight DOM queries bound to a dead tab stop early.
// The returned release must be called when the work finishes; it cancels the
// context and drops the binding so a long-lived generation does not
// accumulate one entry per resolve.
func (m *Manager) Bind(parent context.Context) (context.Context, context.CancelFunc, string, uint64) {
	ctx, cancel := context.WithCancel(parent)

	m.mu.Lock()
	scopeID, gen := m.scope, m.gen
	id := m.nextID
	m.nextID++
	m.cancels[id] = cancel
	m.mu.Unlock()

	release := func() {
		cancel()
		m.mu.Lock()
		// May hit the map of a later generation; the id is unique across
		// generations, so the delete is a no-op there.
		delete(m.cancels, id)
		m.mu.Unlock()
	}
	return ctx, release, scopeID, gen
}
