package selector

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// definitionsFile is the on-disk shape of a selector definitions document:
//
//	schema_version: 1
//	selectors:
//	  - intent: home_team_name
//	    scope: match_header
//	    accept_threshold: 0.75
//	    reject_threshold: 0.4
//	    strategies:
//	      - kind: role
//	        params: {role: heading}
//	      - kind: text_anchor
//	        params: {anchor: "Home"}
//	    rules:
//	      - kind: non_empty
//
// Omitted thresholds default to 0.7/0.35. An explicit 0 is read the same as
// omitted (see SelectorDefinition.Normalise); use a small positive value to
// effectively disable a threshold.
type definitionsFile struct {
	SchemaVersion int                  `yaml:"schema_version"`
	Selectors     []SelectorDefinition `yaml:"selectors"`
}

// ParseDefinitions parses a YAML definitions document and normalises each
// definition (default weights, strategy names, thresholds). It does not
// validate — the registry does that atomically at load.
func ParseDefinitions(data []byte) ([]SelectorDefinition, error) {
	var f definitionsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("selector: parse definitions: %w", err)
	}
	for i := range f.Selectors {
		if f.Selectors[i].SchemaVersion == 0 {
			f.Selectors[i].SchemaVersion = f.SchemaVersion
		}
		f.Selectors[i].Normalise()
	}
	return f.Selectors, nil
}

// LoadDefinitionsFile reads and parses a YAML definitions file.
func LoadDefinitionsFile(path string) ([]SelectorDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("selector: read definitions: %w", err)
	}
	return ParseDefinitions(data)
}
