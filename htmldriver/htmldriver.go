// Package htmldriver implements driver.Driver over a statically parsed HTML
// document. It backs tests and pages fetched over plain HTTP, where no live
// browser is involved.
//
// The CSS support is a practical subset: tag, #id, .class, [attr=val], and
// the descendant combinator. Handles stay bound to the tree they were found
// in — after SetHTML replaces the document, old handles report detached,
// which mirrors what a browser does across navigation.
package htmldriver

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/domresolve/driver"
)

// Driver holds one parsed document. Safe for concurrent Find calls;
// SetHTML swaps the document atomically.
type Driver struct {
	mu  sync.RWMutex
	doc *html.Node
}

// New creates an empty driver. Call SetHTML before querying.
func New() *Driver {
	return &Driver{}
}

// SetHTML parses raw HTML and replaces the current document. Handles issued
// against the previous document become detached.
func (d *Driver) SetHTML(raw []byte) error {
	doc, err := html.Parse(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("htmldriver: parse: %w", err)
	}
	d.mu.Lock()
	d.doc = doc
	d.mu.Unlock()
	return nil
}

// Find returns the first element matching q under the scope root, or
// (nil, nil) when nothing matches.
func (d *Driver) Find(ctx context.Context, scope string, q driver.Query) (driver.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.RLock()
	doc := d.doc
	d.mu.RUnlock()
	if doc == nil {
		return nil, fmt.Errorf("htmldriver: no document loaded")
	}

	root := doc
	if scope != "" {
		roots := querySelectorAll(doc, scope)
		if len(roots) == 0 {
			return nil, fmt.Errorf("htmldriver: scope root %q not found", scope)
		}
		root = roots[0]
	}

	if q.AnchorCSS != "" {
		anchors := querySelectorAll(root, q.AnchorCSS)
		if len(anchors) == 0 {
			return nil, nil
		}
		root = anchors[0]
	}

	var candidates []*html.Node
	if q.CSS != "" {
		candidates = querySelectorAll(root, q.CSS)
	} else {
		candidates = allElements(root)
	}

	for _, n := range candidates {
		if q.Role != "" && getAttr(n, "role") != q.Role {
			continue
		}
		if q.Attr != "" {
			if q.Value != "" {
				if getAttr(n, q.Attr) != q.Value {
					continue
				}
			} else if !hasAttr(n, q.Attr) {
				continue
			}
		}
		if q.Text != "" && !strings.Contains(collectText(n), q.Text) {
			continue
		}
		return &node{drv: d, n: n, doc: doc}, nil
	}
	return nil, nil
}

// ScopeHTML renders the scope root's outer HTML for diagnostics.
func (d *Driver) ScopeHTML(ctx context.Context, scope string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	d.mu.RLock()
	doc := d.doc
	d.mu.RUnlock()
	if doc == nil {
		return "", fmt.Errorf("htmldriver: no document loaded")
	}

	root := doc
	if scope != "" {
		roots := querySelectorAll(doc, scope)
		if len(roots) == 0 {
			return "", fmt.Errorf("htmldriver: scope root %q not found", scope)
		}
		root = roots[0]
	}
	return renderNode(root), nil
}

// node is a handle into one specific parsed tree.
type node struct {
	drv *Driver
	n   *html.Node
	doc *html.Node // the tree this handle was issued against
}

func (nd *node) Text(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return collectText(nd.n), nil
}

func (nd *node) HTML(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return renderNode(nd.n), nil
}

func (nd *node) Attribute(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return getAttr(nd.n, name), nil
}

func (nd *node) Tag(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return strings.ToLower(nd.n.Data), nil
}

// Attached reports whether the handle's tree is still the live document.
func (nd *node) Attached(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	nd.drv.mu.RLock()
	defer nd.drv.mu.RUnlock()
	return nd.drv.doc == nd.doc, nil
}

// allElements returns every element node under root in document order.
func allElements(root *html.Node) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}

// collectText extracts all visible text from a node subtree.
func collectText(n *html.Node) string {
	var sb strings.Builder
	var f func(*html.Node)
	f = func(n *html.Node) {
		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(text)
			}
		}
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript:
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			f(c)
		}
	}
	f(n)
	return sb.String()
}

// renderNode serialises an HTML node subtree back to a string.
func renderNode(n *html.Node) string {
	var buf bytes.Buffer
	html.Render(&buf, n)
	return buf.String()
}
