package compilerdriver

import (
	"encoding/json"
	"fmt"
	"os"
)

// LoadDialectAssociations reads a dialect-association map document (the
// shape config.ValidateDialectAssociations checks) into the form Config
// expects.
func LoadDialectAssociations(path string) (map[string][]string, error) {
	raw, err := os.ReadFile(path) //nolint:gosec // path is operator-supplied configuration, not user input
	if err != nil {
		return nil, fmt.Errorf("compilerdriver: read dialect associations %s: %w", path, err)
	}

	var associations map[string][]string
	if unmarshalErr := json.Unmarshal(raw, &associations); unmarshalErr != nil {
		return nil, fmt.Errorf("compilerdriver: parse dialect associations %s: %w", path, unmarshalErr)
	}

	return associations, nil
}
