package store_test

import (
	"context"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/domresolve/dbopen"
	"github.com/hazyhaar/domresolve/internal/store"
	"github.com/hazyhaar/domresolve/selector"
)

func openStore(t *testing.T) *store.Store {
	t.Helper()
	db := dbopen.OpenMemory(t, dbopen.WithSchema(store.Schema))
	return store.NewWithDB(db)
}

func TestInsertAndListFailures(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	fc := &selector.FailureContext{
		Intent:     "home_team_name",
		Scope:      "match_header",
		Generation: 3,
		Decision:   selector.DecisionReject,
		Attempts: []selector.ResolutionAttempt{
			{Strategy: "role", Kind: selector.KindRole, Matched: false},
			{Strategy: "css", Kind: selector.KindStructural, Matched: true, Validated: false,
				Reasons: []string{"non_empty: text is empty"}},
		},
		ScopeHTML: "<div id=\"match-header\"></div>",
	}
	if err := s.InsertFailure(ctx, fc, "# header"); err != nil {
		t.Fatal(err)
	}
	if fc.ID == "" {
		t.Fatal("InsertFailure must assign an ID")
	}

	got, err := s.ListFailures(ctx, "home_team_name", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d failures, want 1", len(got))
	}
	f := got[0]
	if f.ID != fc.ID || f.Generation != 3 || f.Decision != selector.DecisionReject {
		t.Fatalf("got %+v", f)
	}
	if len(f.Attempts) != 2 || f.Attempts[1].Reasons[0] != "non_empty: text is empty" {
		t.Fatalf("attempts did not round-trip: %+v", f.Attempts)
	}

	// Filter by a different intent.
	got, err = s.ListFailures(ctx, "score", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("got %d, want 0", len(got))
	}

	n, err := s.CountFailures(ctx)
	if err != nil || n != 1 {
		t.Fatalf("got count %d/%v, want 1", n, err)
	}
}

func TestSamplesRoundTrip(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 6; i++ {
		err := s.AppendSample(ctx, selector.DriftSample{
			Intent:   "score",
			Strategy: "css",
			Success:  i%2 == 0,
			At:       base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	samples, err := s.RecentSamples(ctx, 4)
	if err != nil {
		t.Fatal(err)
	}
	if len(samples) != 4 {
		t.Fatalf("got %d samples, want per-pair cap 4", len(samples))
	}
	// Oldest first, capped to the newest 4 (indices 2..5).
	if !samples[0].At.Before(samples[3].At) {
		t.Fatal("samples must be ordered oldest first")
	}
	if samples[0].Success != true || samples[3].Success != false {
		t.Fatalf("got %+v, want replay of the newest window", samples)
	}
}

func TestRecentSamplesPerPair(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		s.AppendSample(ctx, selector.DriftSample{Intent: "score", Strategy: "css", Success: true})
		s.AppendSample(ctx, selector.DriftSample{Intent: "score", Strategy: "role", Success: false})
	}

	samples, err := s.RecentSamples(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(samples) != 4 {
		t.Fatalf("got %d samples, want 2 per pair", len(samples))
	}
}

func TestPruneSamples(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	old := time.Now().Add(-48 * time.Hour)
	s.AppendSample(ctx, selector.DriftSample{Intent: "score", Strategy: "css", Success: true, At: old})
	s.AppendSample(ctx, selector.DriftSample{Intent: "score", Strategy: "css", Success: true})

	removed, err := s.PruneSamples(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Fatalf("got %d removed, want 1", removed)
	}
}

func TestEvents(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	events := []selector.Event{
		{Type: selector.EventResolution, Intent: "score", Strategy: "css", Decision: selector.DecisionAccept},
		{Type: selector.EventPromotion, Intent: "score", Strategy: "role", Detail: "success_rate=0.90"},
		{Type: selector.EventBlacklist, Intent: "score", Strategy: "css", Detail: "success_rate=0.10"},
	}
	for _, ev := range events {
		if err := s.InsertEvent(ctx, ev); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.ListEvents(ctx, "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d events, want 3", len(got))
	}

	got, err = s.ListEvents(ctx, string(selector.EventPromotion), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Strategy != "role" || got[0].Detail != "success_rate=0.90" {
		t.Fatalf("got %+v", got)
	}
}
