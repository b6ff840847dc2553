// Package rodriver implements the driver contract against a live Chrome
// instance via Rod. One Driver owns one page; tab lifecycle (navigation,
// stealth setup, recycling) happens at Open/Navigate, element lookups are
// read-only against whatever document the page currently holds.
package rodriver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/hazyhaar/domresolve/driver"
)

// Config configures the Rod driver.
type Config struct {
	// RemoteURL is the WebSocket URL of an external Chrome instance.
	// Empty = launch a local headless Chrome via launcher.
	RemoteURL string

	// Stealth applies the stealth page patches. The target sites this
	// engine is built for actively fingerprint automation, so cmd/ enables
	// it by default.
	Stealth bool

	// NavigateTimeout bounds Navigate plus the load wait. Default: 30s.
	NavigateTimeout time.Duration

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.NavigateTimeout <= 0 {
		c.NavigateTimeout = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Driver drives one Chrome page through Rod.
type Driver struct {
	cfg     Config
	browser *rod.Browser
	lnch    *launcher.Launcher
	page    *rod.Page
}

// Open launches or connects to Chrome and creates a blank page.
func Open(cfg Config) (*Driver, error) {
	cfg.defaults()

	d := &Driver{cfg: cfg}

	wsURL := cfg.RemoteURL
	if wsURL == "" {
		l := launcher.New().
			Headless(true).
			Set("disable-blink-features", "AutomationControlled")
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("rodriver: launch: %w", err)
		}
		wsURL = u
		d.lnch = l
		cfg.Logger.Info("rodriver: launched local chrome", "url", wsURL)
	} else {
		cfg.Logger.Info("rodriver: connecting to remote", "url", wsURL)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		d.cleanup()
		return nil, fmt.Errorf("rodriver: connect: %w", err)
	}
	d.browser = b

	if err := b.IgnoreCertErrors(true); err != nil {
		cfg.Logger.Warn("rodriver: ignore cert errors failed", "error", err)
	}

	page, err := d.newPage()
	if err != nil {
		d.cleanup()
		return nil, err
	}
	d.page = page

	return d, nil
}

func (d *Driver) newPage() (*rod.Page, error) {
	if d.cfg.Stealth {
		page, err := stealth.Page(d.browser)
		if err != nil {
			return nil, fmt.Errorf("rodriver: stealth page: %w", err)
		}
		return page, nil
	}
	page, err := d.browser.Page(proto.TargetCreateTarget{URL: ""})
	if err != nil {
		return nil, fmt.Errorf("rodriver: create page: %w", err)
	}
	return page, nil
}

// Navigate loads pageURL and waits for the load event. A load wait timeout
// is logged, not returned: SPA targets routinely keep connections open past
// the load event and still render.
func (d *Driver) Navigate(ctx context.Context, pageURL string) error {
	navCtx, cancel := context.WithTimeout(ctx, d.cfg.NavigateTimeout)
	defer cancel()

	if err := d.page.Context(navCtx).Navigate(pageURL); err != nil {
		return fmt.Errorf("rodriver: navigate %s: %w", pageURL, err)
	}
	if err := d.page.Context(navCtx).WaitLoad(); err != nil {
		d.cfg.Logger.Warn("rodriver: wait load timeout", "url", pageURL, "error", err)
	}
	return nil
}

// Page exposes the underlying Rod page for callers needing interaction
// beyond lookups (clicks, tab switches).
func (d *Driver) Page() *rod.Page {
	return d.page
}

// Close shuts down the page, the browser connection, and a locally
// launched Chrome.
func (d *Driver) Close() error {
	if d.page != nil {
		d.page.Close()
		d.page = nil
	}
	return d.cleanup()
}

func (d *Driver) cleanup() error {
	if d.browser != nil {
		d.browser.Close()
		d.browser = nil
	}
	if d.lnch != nil {
		d.lnch.Cleanup()
		d.lnch = nil
	}
	return nil
}

// Find locates the first element matching q under the scope root.
func (d *Driver) Find(ctx context.Context, scope string, q driver.Query) (driver.Node, error) {
	page := d.page.Context(ctx)

	root, err := d.scopeRoot(page, scope)
	if err != nil {
		return nil, err
	}
	if root == nil {
		return nil, fmt.Errorf("rodriver: scope root %q not found", scope)
	}

	base := root
	if q.AnchorCSS != "" {
		anchor, err := elementOrNil(base, q.AnchorCSS)
		if err != nil {
			return nil, fmt.Errorf("rodriver: anchor %q: %w", q.AnchorCSS, err)
		}
		if anchor == nil {
			return nil, nil
		}
		base = anchor
	}

	var candidates rod.Elements
	if q.CSS != "" {
		candidates, err = base.Elements(q.CSS)
		if err != nil {
			return nil, fmt.Errorf("rodriver: query %q: %w", q.CSS, err)
		}
	} else {
		candidates, err = base.Elements("*")
		if err != nil {
			return nil, fmt.Errorf("rodriver: enumerate scope: %w", err)
		}
	}

	for _, el := range candidates {
		ok, err := matches(el, q)
		if err != nil {
			return nil, err
		}
		if ok {
			return &node{el: el}, nil
		}
	}
	return nil, nil
}

// ScopeHTML returns the outer HTML of the scope root.
func (d *Driver) ScopeHTML(ctx context.Context, scope string) (string, error) {
	page := d.page.Context(ctx)
	root, err := d.scopeRoot(page, scope)
	if err != nil {
		return "", err
	}
	if root == nil {
		return "", fmt.Errorf("rodriver: scope root %q not found", scope)
	}
	html, err := root.HTML()
	if err != nil {
		return "", fmt.Errorf("rodriver: scope HTML: %w", err)
	}
	return html, nil
}

func (d *Driver) scopeRoot(page *rod.Page, scope string) (*rod.Element, error) {
	if scope == "" {
		el, err := page.Element("html")
		if err != nil {
			return nil, fmt.Errorf("rodriver: document root: %w", err)
		}
		return el, nil
	}
	has, el, err := page.Has(scope)
	if err != nil {
		return nil, fmt.Errorf("rodriver: scope %q: %w", scope, err)
	}
	if !has {
		return nil, nil
	}
	return el, nil
}

func elementOrNil(base *rod.Element, css string) (*rod.Element, error) {
	has, el, err := base.Has(css)
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, nil
	}
	return el, nil
}

// matches applies the non-CSS filters of a query to one candidate.
func matches(el *rod.Element, q driver.Query) (bool, error) {
	if q.Role != "" {
		role, err := attr(el, "role")
		if err != nil {
			return false, err
		}
		if role != q.Role {
			return false, nil
		}
	}
	if q.Attr != "" {
		v, err := attr(el, q.Attr)
		if err != nil {
			return false, err
		}
		if q.Value != "" && v != q.Value {
			return false, nil
		}
		if q.Value == "" && v == "" {
			// Present-check: Attribute returns "" both for absent and
			// empty, so ask the DOM directly.
			present, err := hasAttr(el, q.Attr)
			if err != nil || !present {
				return false, err
			}
		}
	}
	if q.Text != "" {
		text, err := el.Text()
		if err != nil {
			return false, fmt.Errorf("rodriver: read text: %w", err)
		}
		if !strings.Contains(text, q.Text) {
			return false, nil
		}
	}
	return true, nil
}

func attr(el *rod.Element, name string) (string, error) {
	v, err := el.Attribute(name)
	if err != nil {
		return "", fmt.Errorf("rodriver: attribute %q: %w", name, err)
	}
	if v == nil {
		return "", nil
	}
	return *v, nil
}

func hasAttr(el *rod.Element, name string) (bool, error) {
	v, err := el.Attribute(name)
	if err != nil {
		return false, fmt.Errorf("rodriver: attribute %q: %w", name, err)
	}
	return v != nil, nil
}

// node adapts a rod.Element to the driver.Node contract.
type node struct {
	el *rod.Element
}

func (n *node) Text(ctx context.Context) (string, error) {
	text, err := n.el.Context(ctx).Text()
	if err != nil {
		return "", fmt.Errorf("rodriver: text: %w", err)
	}
	return text, nil
}

func (n *node) HTML(ctx context.Context) (string, error) {
	html, err := n.el.Context(ctx).HTML()
	if err != nil {
		return "", fmt.Errorf("rodriver: html: %w", err)
	}
	return html, nil
}

func (n *node) Attribute(ctx context.Context, name string) (string, error) {
	v, err := n.el.Context(ctx).Attribute(name)
	if err != nil {
		return "", fmt.Errorf("rodriver: attribute %q: %w", name, err)
	}
	if v == nil {
		return "", nil
	}
	return *v, nil
}

func (n *node) Tag(ctx context.Context) (string, error) {
	res, err := n.el.Context(ctx).Eval(`() => this.tagName.toLowerCase()`)
	if err != nil {
		return "", fmt.Errorf("rodriver: tag: %w", err)
	}
	return res.Value.Str(), nil
}

func (n *node) Attached(ctx context.Context) (bool, error) {
	res, err := n.el.Context(ctx).Eval(`() => this.isConnected`)
	if err != nil {
		// A handle whose backing node is gone errors out; report detached
		// rather than failing the resolution.
		return false, nil
	}
	return res.Value.Bool(), nil
}
