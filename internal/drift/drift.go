// Package drift maintains rolling reliability profiles per (intent, strategy)
// pair. Each pair owns a bounded count-based sliding window of success
// samples; the oldest sample is evicted once the window is full.
//
// The detector is the only long-lived mutable state in the subsystem besides
// the registry's strategy ordering. Many concurrent readers, serialized
// writers.
package drift

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/hazyhaar/domresolve/selector"
)

// Config tunes the detector.
type Config struct {
	// WindowSize is the number of samples kept per pair. Default: 50.
	WindowSize int `yaml:"window_size"`
	// MinSamples is the sample count below which no rate is reported
	// (cold start assumes good faith). Default: 5.
	MinSamples int `yaml:"min_samples"`
}

func (c *Config) defaults() {
	if c.WindowSize <= 0 {
		c.WindowSize = 50
	}
	if c.MinSamples <= 0 {
		c.MinSamples = 5
	}
}

// Journal persists samples for rehydration across restarts. Optional.
type Journal interface {
	AppendSample(ctx context.Context, s selector.DriftSample) error
}

// Detector tracks success windows per (intent, strategy) pair.
type Detector struct {
	cfg     Config
	journal Journal
	logger  *slog.Logger

	mu      sync.RWMutex
	windows map[key]*window
}

type key struct {
	intent   string
	strategy string
}

// window is a fixed-size ring of success observations.
type window struct {
	samples []bool
	next    int
	full    bool
}

func (w *window) push(success bool) {
	w.samples[w.next] = success
	w.next++
	if w.next == len(w.samples) {
		w.next = 0
		w.full = true
	}
}

func (w *window) stats() (successes, total int) {
	total = w.next
	if w.full {
		total = len(w.samples)
	}
	for i := 0; i < total; i++ {
		if w.samples[i] {
			successes++
		}
	}
	return successes, total
}

// Option customises the detector.
type Option func(*Detector)

// WithJournal persists every recorded sample.
func WithJournal(j Journal) Option {
	return func(d *Detector) { d.journal = j }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(d *Detector) { d.logger = l }
}

// New creates a detector.
func New(cfg Config, opts ...Option) *Detector {
	cfg.defaults()
	d := &Detector{
		cfg:     cfg,
		logger:  slog.Default(),
		windows: make(map[key]*window),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Record appends one success/failure observation. Journal failures are
// logged, never propagated — a failing journal must not block resolution.
func (d *Detector) Record(ctx context.Context, intent, strategy string, success bool) {
	k := key{intent, strategy}

	d.mu.Lock()
	w, ok := d.windows[k]
	if !ok {
		w = &window{samples: make([]bool, d.cfg.WindowSize)}
		d.windows[k] = w
	}
	w.push(success)
	d.mu.Unlock()

	if d.journal != nil {
		s := selector.DriftSample{Intent: intent, Strategy: strategy, Success: success, At: time.Now()}
		if err := d.journal.AppendSample(ctx, s); err != nil {
			d.logger.Warn("drift: journal append failed", "intent", intent, "strategy", strategy, "error", err)
		}
	}
}

// Seed replays persisted samples into the windows, oldest first. Used at
// startup to rehydrate reliability history. Does not re-journal.
func (d *Detector) Seed(samples []selector.DriftSample) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, s := range samples {
		k := key{s.Intent, s.Strategy}
		w, ok := d.windows[k]
		if !ok {
			w = &window{samples: make([]bool, d.cfg.WindowSize)}
			d.windows[k] = w
		}
		w.push(s.Success)
	}
}

// SuccessRate returns the recent success rate for a pair, or ok=false when
// fewer than MinSamples observations exist.
func (d *Detector) SuccessRate(intent, strategy string) (float64, bool) {
	d.mu.RLock()
	w, exists := d.windows[key{intent, strategy}]
	if !exists {
		d.mu.RUnlock()
		return 0, false
	}
	successes, total := w.stats()
	d.mu.RUnlock()

	if total < d.cfg.MinSamples {
		return 0, false
	}
	return float64(successes) / float64(total), true
}

// Samples returns the observation count for a pair.
func (d *Detector) Samples(intent, strategy string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	w, ok := d.windows[key{intent, strategy}]
	if !ok {
		return 0
	}
	_, total := w.stats()
	return total
}

// PairStats is one row of the drift report.
type PairStats struct {
	Intent      string  `json:"intent"`
	Strategy    string  `json:"strategy"`
	Samples     int     `json:"samples"`
	SuccessRate float64 `json:"success_rate"`
	Usable      bool    `json:"usable"` // true once MinSamples is reached
}

// Report returns stats for every tracked pair, sorted by intent then strategy.
func (d *Detector) Report() []PairStats {
	d.mu.RLock()
	out := make([]PairStats, 0, len(d.windows))
	for k, w := range d.windows {
		successes, total := w.stats()
		ps := PairStats{Intent: k.intent, Strategy: k.strategy, Samples: total}
		if total > 0 {
			ps.SuccessRate = float64(successes) / float64(total)
		}
		ps.Usable = total >= d.cfg.MinSamples
		out = append(out, ps)
	}
	d.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Intent != out[j].Intent {
			return out[i].Intent < out[j].Intent
		}
		return out[i].Strategy < out[j].Strategy
	})
	return out
}
