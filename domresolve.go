// Package domresolve is a semantic element-resolution engine for
// browser-driven extraction from volatile single-page applications.
//
// Callers ask for an element by intent ("home_team_name", scoped to
// "match_header") rather than by a concrete DOM query. The resolver tries
// the definition's strategies in order, validates and scores each candidate,
// and applies an accept/warn/reject policy. Outcomes feed a drift detector
// whose rolling statistics drive an out-of-band adaptation engine that
// reorders, promotes, or blacklists strategies as the target DOM shifts.
//
// Pipeline:
//
//	caller → Resolve → registry lookup → scope bind → strategies (ordered)
//	       → validation → scoring → decision → drift record → caller
//
// Usage:
//
//	r, err := domresolve.New(cfg, drv, logger)
//	defer r.Close()
//	r.LoadDefinitions(defs)
//	r.EnterScope("match_header")
//	res, err := r.Resolve(ctx, "home_team_name")
//	r.Start(ctx)  // background adaptation
package domresolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/domresolve/capture"
	"github.com/hazyhaar/domresolve/driver"
	"github.com/hazyhaar/domresolve/idgen"
	"github.com/hazyhaar/domresolve/internal/adapt"
	"github.com/hazyhaar/domresolve/internal/drift"
	"github.com/hazyhaar/domresolve/internal/registry"
	"github.com/hazyhaar/domresolve/internal/scope"
	"github.com/hazyhaar/domresolve/internal/score"
	"github.com/hazyhaar/domresolve/internal/store"
	"github.com/hazyhaar/domresolve/internal/strategy"
	"github.com/hazyhaar/domresolve/internal/validate"
	"github.com/hazyhaar/domresolve/selector"
)

// Resolver is the main orchestrator.
type Resolver struct {
	registry   *registry.Registry
	scopes     *scope.Manager
	drift      *drift.Detector
	scorer     *score.Scorer
	strategies *strategy.Set
	drv        driver.Driver
	adapt      *adapt.Engine
	sinks      *capture.Router
	store      *store.Store // nil when persistence is disabled
	logger     *slog.Logger
	config     *Config
	newID      idgen.Generator
}

// New creates a Resolver. Opens the SQLite database when cfg.DBPath is set
// and rehydrates drift windows from the journal. Extra sinks receive failure
// contexts and telemetry events alongside the built-in ones.
func New(cfg *Config, drv driver.Driver, logger *slog.Logger, sinks ...capture.Sink) (*Resolver, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if drv == nil {
		return nil, fmt.Errorf("domresolve: nil driver")
	}

	r := &Resolver{
		registry: registry.New(),
		scopes:   scope.New(),
		drv:      drv,
		sinks:    capture.NewRouter(logger, sinks...),
		logger:   logger,
		config:   cfg,
		newID:    idgen.Prefixed("fc_", idgen.Default),
	}

	timeouts := make(strategy.Timeouts, len(cfg.StrategyTimeouts))
	for kind, d := range cfg.StrategyTimeouts {
		timeouts[selector.StrategyKind(kind)] = d
	}
	r.strategies = strategy.NewSet(timeouts)

	driftOpts := []drift.Option{drift.WithLogger(logger)}
	if cfg.DBPath != "" {
		s, err := store.Open(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("domresolve: open store: %w", err)
		}
		r.store = s
		r.sinks.Add(newStoreSink(s, logger))
		driftOpts = append(driftOpts, drift.WithJournal(s))
	}
	r.drift = drift.New(cfg.Drift, driftOpts...)
	r.scorer = score.New(r.drift)
	r.adapt = adapt.New(r.registry, r.drift, cfg.Adapt, logger, func(ctx context.Context, ev selector.Event) {
		if err := r.sinks.SendEvent(ctx, ev); err != nil {
			logger.Warn("resolver: adaptation event emit failed", "error", err)
		}
	})

	if r.store != nil {
		samples, err := r.store.RecentSamples(context.Background(), cfg.Drift.WindowSize)
		if err != nil {
			logger.Warn("resolver: drift rehydration failed", "error", err)
		} else if len(samples) > 0 {
			r.drift.Seed(samples)
			logger.Info("resolver: drift windows rehydrated", "samples", len(samples))
		}
	}

	if cfg.SelectorsPath != "" {
		defs, err := selector.LoadDefinitionsFile(cfg.SelectorsPath)
		if err != nil {
			r.Close()
			return nil, err
		}
		if err := r.registry.Load(defs); err != nil {
			r.Close()
			return nil, err
		}
		logger.Info("resolver: definitions loaded", "path", cfg.SelectorsPath, "count", len(defs))
	}

	return r, nil
}

// Start launches the background adaptation loop.
func (r *Resolver) Start(ctx context.Context) {
	go r.adapt.Run(ctx)
	r.logger.Info("resolver: started")
}

// Close shuts down sinks and the database.
func (r *Resolver) Close() error {
	err := r.sinks.Close()
	if r.store != nil {
		if cerr := r.store.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// LoadDefinitions validates and installs a definition batch atomically.
// On error the previously loaded state stays active.
func (r *Resolver) LoadDefinitions(defs []selector.SelectorDefinition) error {
	return r.registry.Load(defs)
}

// Definitions returns copies of all loaded definitions.
func (r *Resolver) Definitions() []selector.SelectorDefinition {
	return r.registry.Snapshot()
}

// EnterScope activates a logical scope (tab, panel). It advances the
// generation counter and cancels strategy executions bound to the previous
// generation. Returns the new generation.
func (r *Resolver) EnterScope(scopeID string) uint64 {
	gen := r.scopes.Enter(scopeID)
	r.logger.Debug("resolver: scope entered", "scope", scopeID, "generation", gen)
	return gen
}

// CurrentScope returns the active scope ID and generation.
func (r *Resolver) CurrentScope() (string, uint64) {
	return r.scopes.Current()
}

// IsStale reports whether a generation is older than the current one.
func (r *Resolver) IsStale(gen uint64) bool {
	return r.scopes.IsStale(gen)
}

// AdaptNow runs one adaptation pass immediately.
func (r *Resolver) AdaptNow(ctx context.Context) {
	r.adapt.Tick(ctx)
}

// DriftReport returns rolling success statistics for every tracked pair.
func (r *Resolver) DriftReport() []drift.PairStats {
	return r.drift.Report()
}

// Resolve locates the element for intent under the currently active scope.
//
// The strategy order is read once at call start; a concurrent adaptation
// pass cannot produce an inconsistent attempt sequence. The first strategy
// clearing the accept bar wins and short-circuits the rest. A warn-tier
// match is kept but resolution continues so remaining attempts are recorded
// for diagnostics. A result computed against a stale generation is degraded
// to reject, never returned as live.
func (r *Resolver) Resolve(ctx context.Context, intent string) (*selector.ResolutionResult, error) {
	def, err := r.registry.Get(intent)
	if err != nil {
		return nil, err
	}

	boundCtx, release, activeScope, gen := r.scopes.Bind(ctx)
	defer release()

	if def.Scope != activeScope {
		return nil, &selector.ScopeMismatchError{
			Intent: intent, Want: def.Scope, Active: activeScope, Generation: gen,
		}
	}
	scopeCSS := r.scopeQuery(activeScope)

	res := &selector.ResolutionResult{
		Intent:     intent,
		Scope:      activeScope,
		Generation: gen,
		Decision:   selector.DecisionReject,
		ResolvedAt: time.Now(),
	}

	for i := range def.Strategies {
		ref := &def.Strategies[i]
		attempt := r.attemptStrategy(boundCtx, scopeCSS, intent, &def, ref)
		res.Attempts = append(res.Attempts, attempt.record)

		if attempt.node == nil {
			continue
		}

		switch {
		case attempt.record.Confidence >= def.AcceptThreshold:
			if res.Decision != selector.DecisionWarn {
				res.Decision = selector.DecisionAccept
				res.Element = attempt.node
				res.Confidence = attempt.record.Confidence
				res.StrategyUsed = ref.Name
				res.Validated = attempt.record.Validated
			}
		case attempt.record.Confidence >= def.RejectThreshold:
			if res.Decision == selector.DecisionReject {
				res.Decision = selector.DecisionWarn
				res.Element = attempt.node
				res.Confidence = attempt.record.Confidence
				res.StrategyUsed = ref.Name
				res.Validated = attempt.record.Validated
			}
		}

		if res.Decision == selector.DecisionAccept {
			// First strategy clearing the accept bar wins.
			break
		}
		// Warn tier: keep iterating to record remaining attempts for
		// diagnostics, not to find a better candidate.
	}

	// A generation change mid-resolution invalidates the result: the DOM
	// handles belong to a dead tab. Degrade to reject.
	if r.scopes.IsStale(gen) {
		r.logger.Debug("resolver: result discarded, generation advanced",
			"intent", intent, "generation", gen)
		res.Decision = selector.DecisionReject
		res.Element = nil
		res.Confidence = 0
		res.StrategyUsed = ""
		res.Validated = false
	}

	r.recordOutcome(ctx, intent, res)
	return res, nil
}

// ResolveAll resolves every definition bound to the currently active scope.
// Independent intents run concurrently; the strategy library and validation
// are stateless, and registry/drift support concurrent readers.
func (r *Resolver) ResolveAll(ctx context.Context) map[string]*selector.ResolutionResult {
	activeScope, _ := r.scopes.Current()

	var intents []string
	for _, d := range r.registry.Snapshot() {
		if d.Scope == activeScope {
			intents = append(intents, d.Intent)
		}
	}

	out := make(map[string]*selector.ResolutionResult, len(intents))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, intent := range intents {
		wg.Add(1)
		go func(intent string) {
			defer wg.Done()
			res, err := r.Resolve(ctx, intent)
			if err != nil {
				r.logger.Warn("resolver: resolve failed", "intent", intent, "error", err)
				return
			}
			mu.Lock()
			out[intent] = res
			mu.Unlock()
		}(intent)
	}
	wg.Wait()
	return out
}

// strategyAttempt pairs the diagnostic record with the located node.
type strategyAttempt struct {
	record selector.ResolutionAttempt
	node   driver.Node
}

// attemptStrategy executes one strategy: query, validate, score. Execution
// failures are recovered locally — recorded on the attempt, never thrown.
func (r *Resolver) attemptStrategy(ctx context.Context, scopeCSS, intent string, def *selector.SelectorDefinition, ref *selector.StrategyRef) strategyAttempt {
	start := time.Now()
	rec := selector.ResolutionAttempt{Strategy: ref.Name, Kind: ref.Kind}

	node, err := r.strategies.Execute(ctx, r.drv, scopeCSS, ref)
	if err != nil {
		rec.Error = err.Error()
		rec.Duration = time.Since(start)
		return strategyAttempt{record: rec}
	}
	if node == nil {
		rec.Duration = time.Since(start)
		return strategyAttempt{record: rec}
	}
	rec.Matched = true

	passed, reasons, err := validate.Check(ctx, node, def.Rules)
	if err != nil {
		rec.Error = (&selector.StrategyExecutionError{Strategy: ref.Name, Err: err}).Error()
		rec.Duration = time.Since(start)
		return strategyAttempt{record: rec}
	}
	rec.Validated = passed
	rec.Reasons = reasons
	rec.Confidence = r.scorer.Score(intent, ref, passed)
	rec.Duration = time.Since(start)

	// A candidate failing validation is treated as no match for decisions,
	// but the attempt keeps its reasons for diagnostics.
	if !passed {
		return strategyAttempt{record: rec}
	}
	return strategyAttempt{record: rec, node: node}
}

// recordOutcome reports drift samples, emits telemetry, and captures
// failure contexts. ctx is the caller's context, not the generation-bound
// one — diagnostics still flow after a tab switch.
func (r *Resolver) recordOutcome(ctx context.Context, intent string, res *selector.ResolutionResult) {
	// One sample per attempted strategy: success means matched and validated,
	// independent of which strategy ultimately won.
	for _, a := range res.Attempts {
		r.drift.Record(ctx, intent, a.Strategy, a.Matched && a.Validated)
	}

	ev := selector.Event{
		Type:     selector.EventResolution,
		Intent:   intent,
		Strategy: res.StrategyUsed,
		Decision: res.Decision,
		At:       time.Now(),
	}
	if err := r.sinks.SendEvent(ctx, ev); err != nil {
		r.logger.Warn("resolver: event emit failed", "intent", intent, "error", err)
	}

	if res.Decision == selector.DecisionReject || (res.Decision == selector.DecisionWarn && r.config.CaptureWarn) {
		r.captureFailure(ctx, res)
	}

	r.logger.Debug("resolver: resolved",
		"intent", intent, "decision", res.Decision,
		"strategy", res.StrategyUsed, "confidence", res.Confidence,
		"attempts", len(res.Attempts))
}

func (r *Resolver) captureFailure(ctx context.Context, res *selector.ResolutionResult) {
	fc := selector.FailureContext{
		ID:         r.newID(),
		Intent:     res.Intent,
		Scope:      res.Scope,
		Generation: res.Generation,
		Decision:   res.Decision,
		Attempts:   res.Attempts,
		CapturedAt: time.Now(),
	}

	// Best effort: the scope may be gone entirely, which is itself the
	// failure being diagnosed.
	if html, err := r.drv.ScopeHTML(ctx, r.scopeQuery(res.Scope)); err == nil {
		fc.ScopeHTML = html
	} else if !errors.Is(err, context.Canceled) {
		r.logger.Debug("resolver: scope HTML unavailable", "scope", res.Scope, "error", err)
	}

	if err := r.sinks.SendFailure(ctx, fc); err != nil {
		r.logger.Warn("resolver: failure capture emit failed", "intent", res.Intent, "error", err)
	}
}

// scopeQuery maps a logical scope ID to its container query. Unmapped
// scopes search the whole document.
func (r *Resolver) scopeQuery(scopeID string) string {
	if css, ok := r.config.Scopes[scopeID]; ok {
		return css
	}
	return ""
}

// Stats holds resolver counts for the operational surfaces.
type Stats struct {
	Definitions  int `json:"definitions"`
	TrackedPairs int `json:"tracked_pairs"`
	Failures     int `json:"failures,omitempty"`
}

// Stats returns current resolver statistics.
func (r *Resolver) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{
		Definitions:  len(r.registry.Intents()),
		TrackedPairs: len(r.drift.Report()),
	}
	if r.store != nil {
		n, err := r.store.CountFailures(ctx)
		if err != nil {
			return nil, err
		}
		st.Failures = n
	}
	return st, nil
}

// Failures returns recent persisted failure contexts. Requires DBPath.
func (r *Resolver) Failures(ctx context.Context, intent string, limit int) ([]*selector.FailureContext, error) {
	if r.store == nil {
		return nil, fmt.Errorf("domresolve: persistence disabled")
	}
	return r.store.ListFailures(ctx, intent, limit)
}
