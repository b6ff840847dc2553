package adapt_test

import (
	"context"
	"testing"
	"time"

	"github.com/hazyhaar/domresolve/internal/adapt"
	"github.com/hazyhaar/domresolve/internal/drift"
	"github.com/hazyhaar/domresolve/internal/registry"
	"github.com/hazyhaar/domresolve/selector"
)

func newFixture(t *testing.T) (*registry.Registry, *drift.Detector) {
	t.Helper()
	reg := registry.New()
	err := reg.Load([]selector.SelectorDefinition{{
		Intent: "home_team_name",
		Scope:  "match_header",
		Strategies: []selector.StrategyRef{
			{Name: "css", Kind: selector.KindStructural, Params: selector.StrategyParams{Query: ".team"}},
			{Name: "role", Kind: selector.KindRole, Params: selector.StrategyParams{Role: "heading"}},
			{Name: "anchor", Kind: selector.KindTextAnchor, Params: selector.StrategyParams{Anchor: "Home"}},
		},
	}})
	if err != nil {
		t.Fatal(err)
	}
	det := drift.New(drift.Config{WindowSize: 50, MinSamples: 5})
	return reg, det
}

func feed(det *drift.Detector, intent, strategy string, successes, failures int) {
	ctx := context.Background()
	for i := 0; i < successes; i++ {
		det.Record(ctx, intent, strategy, true)
	}
	for i := 0; i < failures; i++ {
		det.Record(ctx, intent, strategy, false)
	}
}

func collectEvents(evs *[]selector.Event) adapt.EventFunc {
	return func(_ context.Context, ev selector.Event) {
		*evs = append(*evs, ev)
	}
}

func TestPromotionOverMargin(t *testing.T) {
	reg, det := newFixture(t)

	// Primary css decayed to 0.3, role holds 0.9. Margin 0.15 is cleared.
	feed(det, "home_team_name", "css", 6, 14)
	feed(det, "home_team_name", "role", 18, 2)

	var events []selector.Event
	e := adapt.New(reg, det, adapt.Config{MinSamples: 10}, nil, collectEvents(&events))
	e.Tick(context.Background())

	d, _ := reg.Get("home_team_name")
	if d.Strategies[0].Name != "role" {
		t.Fatalf("got order %v, want role first", names(d))
	}

	var sawPromotion, sawDemotion bool
	for _, ev := range events {
		switch ev.Type {
		case selector.EventPromotion:
			sawPromotion = ev.Strategy == "role"
		case selector.EventDemotion:
			sawDemotion = ev.Strategy == "css"
		}
	}
	if !sawPromotion || !sawDemotion {
		t.Fatalf("got events %v, want promotion of role and demotion of css", events)
	}
}

func TestNoPromotionWithinMargin(t *testing.T) {
	reg, det := newFixture(t)

	// role at 0.6 vs css at 0.5: inside the 0.15 margin, order must hold.
	feed(det, "home_team_name", "css", 10, 10)
	feed(det, "home_team_name", "role", 12, 8)

	e := adapt.New(reg, det, adapt.Config{MinSamples: 10}, nil, nil)
	e.Tick(context.Background())

	d, _ := reg.Get("home_team_name")
	if d.Strategies[0].Name != "css" {
		t.Fatalf("got order %v, want unchanged", names(d))
	}
}

func TestNoActionBelowMinSamples(t *testing.T) {
	reg, det := newFixture(t)

	// Strong signal but only 5 samples against a 10-sample gate.
	feed(det, "home_team_name", "css", 0, 5)
	feed(det, "home_team_name", "role", 5, 0)

	e := adapt.New(reg, det, adapt.Config{MinSamples: 10}, nil, nil)
	e.Tick(context.Background())

	d, _ := reg.Get("home_team_name")
	if d.Strategies[0].Name != "css" || d.Strategies[0].Blacklisted {
		t.Fatalf("got %v, small samples must not trigger adaptation", names(d))
	}
}

func TestBlacklistSinksToEnd(t *testing.T) {
	reg, det := newFixture(t)

	// css collapsed to 0.1, below the 0.2 threshold.
	feed(det, "home_team_name", "css", 2, 18)
	feed(det, "home_team_name", "role", 15, 5)

	var events []selector.Event
	e := adapt.New(reg, det, adapt.Config{MinSamples: 10}, nil, collectEvents(&events))
	e.Tick(context.Background())

	d, _ := reg.Get("home_team_name")
	last := d.Strategies[len(d.Strategies)-1]
	if last.Name != "css" || !last.Blacklisted {
		t.Fatalf("got order %v, want css blacklisted at the end", names(d))
	}

	var sawBlacklist bool
	for _, ev := range events {
		if ev.Type == selector.EventBlacklist && ev.Strategy == "css" {
			sawBlacklist = true
		}
	}
	if !sawBlacklist {
		t.Fatalf("got events %v, want a blacklist event", events)
	}
}

func TestBlacklistRecovery(t *testing.T) {
	reg, det := newFixture(t)

	// Blacklist css first.
	feed(det, "home_team_name", "css", 2, 18)
	e := adapt.New(reg, det, adapt.Config{MinSamples: 10}, nil, nil)
	e.Tick(context.Background())

	d, _ := reg.Get("home_team_name")
	if ref := d.Strategy("css"); ref == nil || !ref.Blacklisted {
		t.Fatal("css should be blacklisted")
	}

	// The DOM reverts: 50 fresh successes push the rate past
	// BlacklistBelow + PromoteMargin (0.35).
	feed(det, "home_team_name", "css", 50, 0)

	var events []selector.Event
	e2 := adapt.New(reg, det, adapt.Config{MinSamples: 10}, nil, collectEvents(&events))
	e2.Tick(context.Background())

	d, _ = reg.Get("home_team_name")
	if ref := d.Strategy("css"); ref == nil || ref.Blacklisted {
		t.Fatal("css should have recovered")
	}

	var sawRecovery bool
	for _, ev := range events {
		if ev.Type == selector.EventRecovery && ev.Strategy == "css" {
			sawRecovery = true
		}
	}
	if !sawRecovery {
		t.Fatalf("got events %v, want a recovery event", events)
	}
}

func TestVetoWhenAllWouldBeBlacklisted(t *testing.T) {
	reg, det := newFixture(t)

	// Every strategy collapsed. The pass must refuse to blacklist the set.
	feed(det, "home_team_name", "css", 1, 19)
	feed(det, "home_team_name", "role", 1, 19)
	feed(det, "home_team_name", "anchor", 1, 19)

	var events []selector.Event
	e := adapt.New(reg, det, adapt.Config{MinSamples: 10}, nil, collectEvents(&events))
	e.Tick(context.Background())

	d, _ := reg.Get("home_team_name")
	for i := range d.Strategies {
		if d.Strategies[i].Blacklisted {
			t.Fatalf("strategy %q blacklisted, want full veto", d.Strategies[i].Name)
		}
	}

	var sawVeto bool
	for _, ev := range events {
		if ev.Type == selector.EventBlacklistVeto {
			sawVeto = true
		}
	}
	if !sawVeto {
		t.Fatalf("got events %v, want a veto event", events)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	reg, det := newFixture(t)
	e := adapt.New(reg, det, adapt.Config{Interval: time.Millisecond}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.Run(ctx)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on cancellation")
	}
}

func names(d selector.SelectorDefinition) []string {
	out := make([]string, len(d.Strategies))
	for i := range d.Strategies {
		out[i] = d.Strategies[i].Name
	}
	return out
}
