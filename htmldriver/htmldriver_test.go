package htmldriver_test

import (
	"context"
	"strings"
	"testing"

	"github.com/hazyhaar/domresolve/driver"
	"github.com/hazyhaar/domresolve/htmldriver"
)

const page = `<!DOCTYPE html>
<html><body>
  <div id="match-header" class="header">
    <h1 role="heading" data-team="home" class="team-name">Arsenal</h1>
    <h1 role="heading" data-team="away" class="team-name">Chelsea</h1>
    <div class="score">2 - 1</div>
    <span class="meta">Kickoff 15:00</span>
  </div>
  <div id="stats">
    <span class="label">Possession</span>
    <span class="value">61%</span>
    <script>var hidden = "secret";</script>
  </div>
</body></html>`

func newDriver(t *testing.T) *htmldriver.Driver {
	t.Helper()
	d := htmldriver.New()
	if err := d.SetHTML([]byte(page)); err != nil {
		t.Fatal(err)
	}
	return d
}

func mustFind(t *testing.T, d *htmldriver.Driver, scope string, q driver.Query) driver.Node {
	t.Helper()
	n, err := d.Find(context.Background(), scope, q)
	if err != nil {
		t.Fatal(err)
	}
	if n == nil {
		t.Fatalf("no match for %+v in scope %q", q, scope)
	}
	return n
}

func text(t *testing.T, n driver.Node) string {
	t.Helper()
	s, err := n.Text(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestFindByCSS(t *testing.T) {
	d := newDriver(t)
	n := mustFind(t, d, "", driver.Query{CSS: ".score"})
	if got := text(t, n); got != "2 - 1" {
		t.Fatalf("got %q, want 2 - 1", got)
	}
}

func TestFindScoped(t *testing.T) {
	d := newDriver(t)

	// The same class exists in both containers; scope picks the right one.
	n := mustFind(t, d, "#stats", driver.Query{CSS: "span"})
	if got := text(t, n); got != "Possession" {
		t.Fatalf("got %q, want Possession", got)
	}
}

func TestFindByAttr(t *testing.T) {
	d := newDriver(t)

	n := mustFind(t, d, "#match-header", driver.Query{Attr: "data-team", Value: "away"})
	if got := text(t, n); got != "Chelsea" {
		t.Fatalf("got %q, want Chelsea", got)
	}

	// Presence check (empty value).
	n = mustFind(t, d, "#match-header", driver.Query{Attr: "data-team"})
	if got := text(t, n); got != "Arsenal" {
		t.Fatalf("got %q, want first match Arsenal", got)
	}
}

func TestFindByRole(t *testing.T) {
	d := newDriver(t)
	n := mustFind(t, d, "", driver.Query{Role: "heading"})
	if got := text(t, n); got != "Arsenal" {
		t.Fatalf("got %q, want Arsenal", got)
	}
}

func TestFindByText(t *testing.T) {
	d := newDriver(t)
	n := mustFind(t, d, "", driver.Query{CSS: "span", Text: "Kickoff"})
	if got := text(t, n); got != "Kickoff 15:00" {
		t.Fatalf("got %q", got)
	}
}

func TestFindRelativeToAnchor(t *testing.T) {
	d := newDriver(t)
	n := mustFind(t, d, "", driver.Query{AnchorCSS: "#stats", CSS: ".value"})
	if got := text(t, n); got != "61%" {
		t.Fatalf("got %q, want 61%%", got)
	}
}

func TestCombinedFilters(t *testing.T) {
	d := newDriver(t)
	n := mustFind(t, d, "", driver.Query{CSS: ".team-name", Attr: "data-team", Value: "home", Role: "heading"})
	if got := text(t, n); got != "Arsenal" {
		t.Fatalf("got %q", got)
	}
}

func TestNoMatchIsNilNil(t *testing.T) {
	d := newDriver(t)
	n, err := d.Find(context.Background(), "", driver.Query{CSS: ".does-not-exist"})
	if err != nil {
		t.Fatal(err)
	}
	if n != nil {
		t.Fatal("expected nil node")
	}

	// Missing anchor is also an ordinary absence.
	n, err = d.Find(context.Background(), "", driver.Query{AnchorCSS: "#nope", CSS: "span"})
	if err != nil || n != nil {
		t.Fatalf("got %v/%v, want nil/nil", n, err)
	}
}

func TestMissingScopeRootIsAnError(t *testing.T) {
	d := newDriver(t)
	if _, err := d.Find(context.Background(), "#gone", driver.Query{CSS: "span"}); err == nil {
		t.Fatal("expected an error for a missing scope root")
	}
}

func TestNodeAccessors(t *testing.T) {
	d := newDriver(t)
	ctx := context.Background()
	n := mustFind(t, d, "", driver.Query{CSS: ".score"})

	if tag, _ := n.Tag(ctx); tag != "div" {
		t.Fatalf("got tag %q, want div", tag)
	}
	if cls, _ := n.Attribute(ctx, "class"); cls != "score" {
		t.Fatalf("got class %q", cls)
	}
	if missing, _ := n.Attribute(ctx, "nope"); missing != "" {
		t.Fatalf("got %q, want empty for absent attribute", missing)
	}
	h, _ := n.HTML(ctx)
	if !strings.Contains(h, `<div class="score">`) {
		t.Fatalf("got html %q", h)
	}
}

func TestHandleDetachedAfterSetHTML(t *testing.T) {
	d := newDriver(t)
	ctx := context.Background()
	n := mustFind(t, d, "", driver.Query{CSS: ".score"})

	if ok, _ := n.Attached(ctx); !ok {
		t.Fatal("fresh handle must be attached")
	}

	if err := d.SetHTML([]byte("<html><body><p>new</p></body></html>")); err != nil {
		t.Fatal(err)
	}
	if ok, _ := n.Attached(ctx); ok {
		t.Fatal("handle into a replaced document must report detached")
	}
}

func TestScriptTextExcluded(t *testing.T) {
	d := newDriver(t)
	n := mustFind(t, d, "", driver.Query{CSS: "#stats"})
	if got := text(t, n); strings.Contains(got, "secret") {
		t.Fatalf("script content leaked into text: %q", got)
	}
}

func TestScopeHTML(t *testing.T) {
	d := newDriver(t)
	h, err := d.ScopeHTML(context.Background(), "#match-header")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(h, "Arsenal") || strings.Contains(h, "Possession") {
		t.Fatalf("got %q, want only the header subtree", h)
	}
}

func TestCancelledContext(t *testing.T) {
	d := newDriver(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := d.Find(ctx, "", driver.Query{CSS: "div"}); err == nil {
		t.Fatal("expected a context error")
	}
}

func TestNoDocumentLoaded(t *testing.T) {
	d := htmldriver.New()
	if _, err := d.Find(context.Background(), "", driver.Query{CSS: "div"}); err == nil {
		t.Fatal("expected an error before SetHTML")
	}
}
