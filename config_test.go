package domresolve

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigFile(t *testing.T) {
	doc := `
db_path: /var/lib/domresolve/state.db
selectors_path: selectors.yaml
capture_warn: true
scopes:
  match_header: "#match-header"
  stats_panel: "div[data-panel=stats]"
strategy_timeouts:
  structural: 1s
  relative_path: 5s
drift:
  window_size: 100
  min_samples: 8
adapt:
  interval: 30s
  promote_margin: 0.2
  blacklist_below: 0.1
  min_samples: 20
`
	path := filepath.Join(t.TempDir(), "domresolve.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.DBPath != "/var/lib/domresolve/state.db" || !cfg.CaptureWarn {
		t.Fatalf("got %+v", cfg)
	}
	if cfg.Scopes["match_header"] != "#match-header" {
		t.Fatalf("got scopes %v", cfg.Scopes)
	}
	if cfg.StrategyTimeouts["structural"] != time.Second {
		t.Fatalf("got timeouts %v", cfg.StrategyTimeouts)
	}
	if cfg.Drift.WindowSize != 100 || cfg.Drift.MinSamples != 8 {
		t.Fatalf("got drift %+v", cfg.Drift)
	}
	if cfg.Adapt.Interval != 30*time.Second || cfg.Adapt.PromoteMargin != 0.2 {
		t.Fatalf("got adapt %+v", cfg.Adapt)
	}
}

func TestLoadConfigFileMissing(t *testing.T) {
	if _, err := LoadConfigFile("/does/not/exist.yaml"); err == nil {
		t.Fatal("expected an error")
	}
}
