package capture

import (
	"context"
	"log/slog"

	"github.com/hazyhaar/domresolve/selector"
)

// Router fans out diagnostics to all configured sinks. One sink error does
// not block the others — errors are logged and the first encountered is
// returned.
type Router struct {
	sinks  []Sink
	logger *slog.Logger
}

// NewRouter creates a fan-out router delivering to all sinks.
func NewRouter(logger *slog.Logger, sinks ...Sink) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{sinks: sinks, logger: logger}
}

// Add appends a sink. Not safe to call concurrently with Send.
func (r *Router) Add(s Sink) {
	r.sinks = append(r.sinks, s)
}

func (r *Router) SendFailure(ctx context.Context, fc selector.FailureContext) error {
	var firstErr error
	for _, s := range r.sinks {
		if err := s.SendFailure(ctx, fc); err != nil {
			r.logger.Warn("capture: send failure context failed", "intent", fc.Intent, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (r *Router) SendEvent(ctx context.Context, ev selector.Event) error {
	var firstErr error
	for _, s := range r.sinks {
		if err := s.SendEvent(ctx, ev); err != nil {
			r.logger.Warn("capture: send event failed", "type", ev.Type, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (r *Router) Close() error {
	var firstErr error
	for _, s := range r.sinks {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
