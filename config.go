package domresolve

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/domresolve/internal/adapt"
	"github.com/hazyhaar/domresolve/internal/drift"
)

// Config holds all resolver configuration.
type Config struct {
	// DBPath enables SQLite persistence of failure contexts, the drift
	// journal, and events. Empty disables persistence.
	DBPath string `yaml:"db_path"`

	// SelectorsPath is the YAML selector definitions file loaded at Start.
	// Optional: definitions may also be loaded programmatically.
	SelectorsPath string `yaml:"selectors_path"`

	// Scopes maps logical scope IDs to container queries, e.g.
	// match_header: "div[data-panel=header]". An unmapped scope resolves
	// against the whole document.
	Scopes map[string]string `yaml:"scopes"`

	// CaptureWarn also emits a FailureContext on warn decisions.
	CaptureWarn bool `yaml:"capture_warn"`

	// StrategyTimeouts overrides per-kind execution bounds, keyed by kind
	// name ("structural", "role", ...).
	StrategyTimeouts map[string]time.Duration `yaml:"strategy_timeouts"`

	Drift drift.Config `yaml:"drift"`
	Adapt adapt.Config `yaml:"adapt"`
}

// LoadConfigFile reads a YAML config file.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
