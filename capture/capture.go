// Package capture defines output backends for resolution diagnostics:
// failure contexts (emitted on reject, optionally on warn) and telemetry
// events (resolution outcomes, adaptation actions).
//
// The resolution engine has no opinion on where captures go — sinks deliver
// them to stdout, an in-process callback, or persistent storage, and a
// Router fans out to several at once.
package capture

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/hazyhaar/domresolve/selector"
)

// Sink receives failure contexts and telemetry events.
type Sink interface {
	SendFailure(ctx context.Context, fc selector.FailureContext) error
	SendEvent(ctx context.Context, ev selector.Event) error
	Close() error
}

// Stdout writes JSON lines to a writer (default os.Stdout). Each line is an
// envelope {"kind": "failure"|"event", ...payload}.
type Stdout struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewStdout creates a JSON-lines sink. w nil = os.Stdout.
func NewStdout(w io.Writer) *Stdout {
	if w == nil {
		w = os.Stdout
	}
	return &Stdout{enc: json.NewEncoder(w)}
}

func (s *Stdout) SendFailure(ctx context.Context, fc selector.FailureContext) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(struct {
		Kind string `json:"kind"`
		selector.FailureContext
	}{Kind: "failure", FailureContext: fc})
}

func (s *Stdout) SendEvent(ctx context.Context, ev selector.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(struct {
		Kind string `json:"kind"`
		selector.Event
	}{Kind: "event", Event: ev})
}

func (s *Stdout) Close() error { return nil }

// Callback delivers in-process with zero serialisation. Either func may be nil.
type Callback struct {
	OnFailure func(ctx context.Context, fc selector.FailureContext) error
	OnEvent   func(ctx context.Context, ev selector.Event) error
}

// NewCallback creates an in-process sink.
func NewCallback(
	onFailure func(ctx context.Context, fc selector.FailureContext) error,
	onEvent func(ctx context.Context, ev selector.Event) error,
) *Callback {
	return &Callback{OnFailure: onFailure, OnEvent: onEvent}
}

func (c *Callback) SendFailure(ctx context.Context, fc selector.FailureContext) error {
	if c.OnFailure == nil {
		return nil
	}
	return c.OnFailure(ctx, fc)
}

func (c *Callback) SendEvent(ctx context.Context, ev selector.Event) error {
	if c.OnEvent == nil {
		return nil
	}
	return c.OnEvent(ctx, ev)
}

func (c *Callback) Close() error { return nil }
