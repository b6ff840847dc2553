package registry_test

import (
	"errors"
	"testing"

	"github.com/hazyhaar/domresolve/internal/registry"
	"github.com/hazyhaar/domresolve/selector"
)

func defs() []selector.SelectorDefinition {
	return []selector.SelectorDefinition{
		{
			Intent: "home_team_name",
			Scope:  "match_header",
			Strategies: []selector.StrategyRef{
				{Name: "role", Kind: selector.KindRole, Params: selector.StrategyParams{Role: "heading"}},
				{Name: "css", Kind: selector.KindStructural, Params: selector.StrategyParams{Query: ".team-home"}},
			},
		},
		{
			Intent: "score",
			Scope:  "match_header",
			Strategies: []selector.StrategyRef{
				{Name: "css", Kind: selector.KindStructural, Params: selector.StrategyParams{Query: ".score"}},
			},
		},
	}
}

func load(t *testing.T) *registry.Registry {
	t.Helper()
	r := registry.New()
	if err := r.Load(defs()); err != nil {
		t.Fatal(err)
	}
	return r
}

func TestLoadAndGet(t *testing.T) {
	r := load(t)

	d, err := r.Get("home_team_name")
	if err != nil {
		t.Fatal(err)
	}
	if d.Scope != "match_header" {
		t.Fatalf("got scope %q", d.Scope)
	}
	if len(d.Strategies) != 2 {
		t.Fatalf("got %d strategies, want 2", len(d.Strategies))
	}
	// Normalise ran during load.
	if d.AcceptThreshold != 0.7 {
		t.Fatalf("got accept %v, want 0.7", d.AcceptThreshold)
	}

	if _, err := r.Get("missing"); err == nil {
		t.Fatal("expected NotRegisteredError")
	} else {
		var nr *selector.NotRegisteredError
		if !errors.As(err, &nr) {
			t.Fatalf("got %T", err)
		}
	}
}

func TestLoadBadBatchKeepsPriorState(t *testing.T) {
	r := load(t)

	bad := defs()
	bad[1].Strategies = nil
	if err := r.Load(bad); err == nil {
		t.Fatal("expected a load error")
	}

	// Prior batch still live.
	if _, err := r.Get("score"); err != nil {
		t.Fatalf("prior state lost: %v", err)
	}
	if got := len(r.Intents()); got != 2 {
		t.Fatalf("got %d intents, want 2", got)
	}
}

func TestLoadRejectsDuplicateIntent(t *testing.T) {
	r := registry.New()
	d := defs()
	d[1].Intent = d[0].Intent
	if err := r.Load(d); err == nil {
		t.Fatal("expected duplicate intent error")
	}
}

func TestGetReturnsCopy(t *testing.T) {
	r := load(t)

	d1, _ := r.Get("home_team_name")
	d1.Strategies[0].Blacklisted = true
	d1.Strategies[0].Name = "mutated"

	d2, _ := r.Get("home_team_name")
	if d2.Strategies[0].Blacklisted || d2.Strategies[0].Name == "mutated" {
		t.Fatal("Get returned aliased internal state")
	}
}

func TestReorder(t *testing.T) {
	r := load(t)

	err := r.Reorder("home_team_name", []string{"css", "role"}, map[string]bool{"role": true})
	if err != nil {
		t.Fatal(err)
	}

	d, _ := r.Get("home_team_name")
	if d.Strategies[0].Name != "css" {
		t.Fatalf("got first strategy %q, want css", d.Strategies[0].Name)
	}
	if !d.Strategies[1].Blacklisted {
		t.Fatal("role should be blacklisted")
	}
}

func TestReorderRejectsBadInput(t *testing.T) {
	r := load(t)

	if err := r.Reorder("missing", []string{"css"}, nil); err == nil {
		t.Fatal("expected unknown intent error")
	}
	if err := r.Reorder("home_team_name", []string{"css"}, nil); err == nil {
		t.Fatal("expected length mismatch error")
	}
	if err := r.Reorder("home_team_name", []string{"css", "css"}, nil); err == nil {
		t.Fatal("expected duplicate error")
	}
	if err := r.Reorder("home_team_name", []string{"css", "nope"}, nil); err == nil {
		t.Fatal("expected unknown strategy error")
	}
	err := r.Reorder("home_team_name", []string{"role", "css"},
		map[string]bool{"role": true, "css": true})
	if err == nil {
		t.Fatal("expected zero-usable rejection")
	}

	// Failed reorders leave the definition untouched.
	d, _ := r.Get("home_team_name")
	if d.Strategies[0].Name != "role" || d.Strategies[0].Blacklisted {
		t.Fatalf("definition mutated by failed reorder: %+v", d.Strategies)
	}
}
