// Package driver defines the DOM access contract between the resolution
// engine and a browser-automation backend.
//
// A Driver answers one question: given a scope root and a query description,
// is there a matching element right now? Absence is not an error — Find
// returns (nil, nil) when nothing matches, and reserves errors for genuine
// execution failures (timeout, disconnected browser, scope root missing).
//
// Two implementations ship with this module: rodriver (live Chrome via Rod)
// and htmldriver (static parsed HTML, used by tests and HTTP-fetched pages).
package driver

import "context"

// Query describes one element lookup. Fields combine as filters: a query
// with both CSS and Text matches the first element satisfying the selector
// whose visible text contains Text.
type Query struct {
	// CSS is a selector (simple subset: tag, #id, .class, [attr=val],
	// descendant combinator) evaluated under the scope root — or under the
	// anchor element when AnchorCSS is set.
	CSS string

	// Text requires the element's visible text to contain this phrase.
	Text string

	// Role requires a matching role attribute (ARIA or implicit via the
	// backend's accessibility mapping).
	Role string

	// Attr/Value require an attribute match. Value empty = attribute present.
	Attr  string
	Value string

	// AnchorCSS locates a stable anchor element first; CSS is then evaluated
	// relative to that anchor instead of the scope root.
	AnchorCSS string
}

// Node is a handle to a located element. Reads may suspend (awaiting the
// browser) and fail if the underlying document has been replaced.
type Node interface {
	// Text returns the element's visible text.
	Text(ctx context.Context) (string, error)

	// HTML returns the element's outer HTML.
	HTML(ctx context.Context) (string, error)

	// Attribute returns the named attribute's value, "" when absent.
	Attribute(ctx context.Context, name string) (string, error)

	// Tag returns the lower-case tag name.
	Tag(ctx context.Context) (string, error)

	// Attached reports whether the handle still points into the live document.
	Attached(ctx context.Context) (bool, error)
}

// Driver is the DOM query capability consumed by the resolution engine.
type Driver interface {
	// Find returns the first element matching q under the scope root, or
	// (nil, nil) when no element matches. scope is a CSS selector for the
	// container to search within; empty means the whole document.
	Find(ctx context.Context, scope string, q Query) (Node, error)

	// ScopeHTML returns the outer HTML of the scope root, for diagnostics.
	ScopeHTML(ctx context.Context, scope string) (string, error)
}
