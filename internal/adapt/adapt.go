// Package adapt reorders, promotes, and blacklists strategies based on the
// drift detector's rolling success rates.
//
// The policy is conservative and monotonic: margin-gated promotion, sample-
// size-gated demotion, and a hard veto on blacklisting the last usable
// strategy. This avoids oscillation from small-sample noise.
package adapt

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/domresolve/internal/drift"
	"github.com/hazyhaar/domresolve/internal/registry"
	"github.com/hazyhaar/domresolve/selector"
)

// Config tunes the adaptation policy.
type Config struct {
	// Interval between adaptation passes. Default: 1m.
	Interval time.Duration `yaml:"interval"`
	// PromoteMargin is how far a non-primary strategy's success rate must
	// exceed the primary's before promotion. Default: 0.15.
	PromoteMargin float64 `yaml:"promote_margin"`
	// BlacklistBelow is the success rate under which a strategy is
	// soft-demoted to the end of the order. Default: 0.2.
	BlacklistBelow float64 `yaml:"blacklist_below"`
	// MinSamples gates both promotion and demotion. Default: 10.
	MinSamples int `yaml:"min_samples"`
}

func (c *Config) defaults() {
	if c.Interval <= 0 {
		c.Interval = time.Minute
	}
	if c.PromoteMargin <= 0 {
		c.PromoteMargin = 0.15
	}
	if c.BlacklistBelow <= 0 {
		c.BlacklistBelow = 0.2
	}
	if c.MinSamples <= 0 {
		c.MinSamples = 10
	}
}

// EventFunc receives promotion/demotion telemetry.
type EventFunc func(ctx context.Context, ev selector.Event)

// Engine runs the adaptation loop against the registry.
type Engine struct {
	reg    *registry.Registry
	rates  *drift.Detector
	cfg    Config
	logger *slog.Logger
	emit   EventFunc
}

// New creates an engine. emit may be nil.
func New(reg *registry.Registry, rates *drift.Detector, cfg Config, logger *slog.Logger, emit EventFunc) *Engine {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{reg: reg, rates: rates, cfg: cfg, logger: logger, emit: emit}
}

// Run ticks the adaptation pass until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	e.logger.Info("adapt: started", "interval", e.cfg.Interval)
	for {
		select {
		case <-ctx.Done():
			e.logger.Info("adapt: stopped")
			return
		case <-ticker.C:
			e.Tick(ctx)
		}
	}
}

// Tick runs one adaptation pass over every definition.
func (e *Engine) Tick(ctx context.Context) {
	for _, intent := range e.reg.Intents() {
		if err := e.adaptIntent(ctx, intent); err != nil {
			e.logger.Warn("adapt: pass failed", "intent", intent, "error", err)
		}
	}
}

// rateFor returns the strategy's gated success rate, ok=false below MinSamples.
func (e *Engine) rateFor(intent, strategy string) (float64, bool) {
	if e.rates.Samples(intent, strategy) < e.cfg.MinSamples {
		return 0, false
	}
	rate, ok := e.rates.SuccessRate(intent, strategy)
	return rate, ok
}

func (e *Engine) adaptIntent(ctx context.Context, intent string) error {
	def, err := e.reg.Get(intent)
	if err != nil {
		return err
	}

	blacklisted := make(map[string]bool, len(def.Strategies))
	var events []selector.Event

	// Demotion pass: flag strategies whose rate fell under the threshold,
	// clear flags on recovered ones. Veto the whole pass rather than leave
	// zero usable strategies.
	usable := 0
	for i := range def.Strategies {
		s := &def.Strategies[i]
		bl := s.Blacklisted
		if rate, ok := e.rateFor(intent, s.Name); ok {
			switch {
			case !s.Blacklisted && rate < e.cfg.BlacklistBelow:
				bl = true
				events = append(events, selector.Event{
					Type: selector.EventBlacklist, Intent: intent, Strategy: s.Name,
					Detail: detail(rate), At: time.Now(),
				})
			case s.Blacklisted && rate >= e.cfg.BlacklistBelow+e.cfg.PromoteMargin:
				bl = false
				events = append(events, selector.Event{
					Type: selector.EventRecovery, Intent: intent, Strategy: s.Name,
					Detail: detail(rate), At: time.Now(),
				})
			}
		}
		blacklisted[s.Name] = bl
		if !bl {
			usable++
		}
	}
	if usable == 0 {
		e.logger.Warn("adapt: all strategies would be blacklisted, keeping current set",
			"intent", intent)
		e.fire(ctx, selector.Event{Type: selector.EventBlacklistVeto, Intent: intent, At: time.Now()})
		return nil
	}

	// Promotion pass: the best-performing usable strategy takes the front
	// when it beats the current primary by more than the margin.
	order := make([]string, 0, len(def.Strategies))
	for i := range def.Strategies {
		order = append(order, def.Strategies[i].Name)
	}

	primary := firstUsable(order, blacklisted)
	promoted := ""
	if primary != "" {
		primaryRate, primaryOK := e.rateFor(intent, primary)
		bestName, bestRate := "", 0.0
		for _, name := range order {
			if name == primary || blacklisted[name] {
				continue
			}
			if rate, ok := e.rateFor(intent, name); ok && rate > bestRate {
				bestName, bestRate = name, rate
			}
		}
		if bestName != "" && primaryOK && bestRate > primaryRate+e.cfg.PromoteMargin {
			promoted = bestName
			events = append(events, selector.Event{
				Type: selector.EventPromotion, Intent: intent, Strategy: bestName,
				Detail: detail(bestRate), At: time.Now(),
			})
			events = append(events, selector.Event{
				Type: selector.EventDemotion, Intent: intent, Strategy: primary,
				Detail: detail(primaryRate), At: time.Now(),
			})
		}
	}

	newOrder := buildOrder(order, promoted, blacklisted)
	if equal(order, newOrder) && !flagsChanged(&def, blacklisted) {
		return nil
	}

	if err := e.reg.Reorder(intent, newOrder, blacklisted); err != nil {
		return err
	}
	for _, ev := range events {
		e.fire(ctx, ev)
	}
	e.logger.Info("adapt: definition updated", "intent", intent, "order", newOrder)
	return nil
}

func (e *Engine) fire(ctx context.Context, ev selector.Event) {
	if e.emit != nil {
		e.emit(ctx, ev)
	}
}

func detail(rate float64) string {
	return fmt.Sprintf("success_rate=%.2f", rate)
}

// buildOrder places the promoted strategy first, keeps the stable order of
// the remaining usable strategies, and sinks blacklisted ones to the end.
func buildOrder(order []string, promoted string, blacklisted map[string]bool) []string {
	out := make([]string, 0, len(order))
	if promoted != "" {
		out = append(out, promoted)
	}
	for _, name := range order {
		if name != promoted && !blacklisted[name] {
			out = append(out, name)
		}
	}
	for _, name := range order {
		if name != promoted && blacklisted[name] {
			out = append(out, name)
		}
	}
	return out
}

func firstUsable(order []string, blacklisted map[string]bool) string {
	for _, name := range order {
		if !blacklisted[name] {
			return name
		}
	}
	return ""
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func flagsChanged(def *selector.SelectorDefinition, blacklisted map[string]bool) bool {
	for i := range def.Strategies {
		s := &def.Strategies[i]
		if s.Blacklisted != blacklisted[s.Name] {
			return true
		}
	}
	return false
}
