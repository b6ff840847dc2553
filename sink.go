package domresolve

import (
	"context"
	"log/slog"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"

	"github.com/hazyhaar/domresolve/internal/store"
	"github.com/hazyhaar/domresolve/selector"
)

// storeSink persists failure contexts and events to SQLite. The captured
// scope HTML is also rendered to markdown so operators can read a failure
// without loading the raw fragment in a browser.
type storeSink struct {
	store  *store.Store
	conv   *converter.Converter
	logger *slog.Logger
}

func newStoreSink(s *store.Store, logger *slog.Logger) *storeSink {
	conv := converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(),
		),
	)
	return &storeSink{store: s, conv: conv, logger: logger}
}

func (s *storeSink) SendFailure(ctx context.Context, fc selector.FailureContext) error {
	md := ""
	if fc.ScopeHTML != "" {
		var err error
		md, err = s.conv.ConvertString(fc.ScopeHTML)
		if err != nil {
			// Markdown is an operator convenience; the raw HTML is the record.
			s.logger.Debug("storeSink: markdown conversion failed", "intent", fc.Intent, "error", err)
			md = ""
		}
	}
	return s.store.InsertFailure(ctx, &fc, md)
}

func (s *storeSink) SendEvent(ctx context.Context, ev selector.Event) error {
	return s.store.InsertEvent(ctx, ev)
}

// Close is a no-op; the Resolver owns the store's lifecycle.
func (s *storeSink) Close() error { return nil }
