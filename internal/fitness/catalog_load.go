package fitness

import (
	"encoding/json"
	"fmt"
	"os"
)

// catalogEntryDTO is the on-disk shape of one InsertPattern, validated
// against config.ValidateInsertPatternCatalog's JSON schema before a caller
// loads it here.
type catalogEntryDTO struct {
	MatchPattern []json.RawMessage `json:"match_pattern"`
	ChildRules   []string          `json:"child_rules"`
}

type quantifierDTO struct {
	RuleName string `json:"rule_name"`
	Min      int    `json:"min"`
	Max      any    `json:"max"`
}

// LoadCatalog reads an insert-pattern catalog document (the shape
// config.ValidateInsertPatternCatalog checks) into a Catalog.
func LoadCatalog(path string) (Catalog, error) {
	raw, err := os.ReadFile(path) //nolint:gosec // path is operator-supplied configuration, not user input
	if err != nil {
		return nil, fmt.Errorf("fitness: read catalog %s: %w", path, err)
	}

	var entries map[string]catalogEntryDTO
	if unmarshalErr := json.Unmarshal(raw, &entries); unmarshalErr != nil {
		return nil, fmt.Errorf("fitness: parse catalog %s: %w", path, unmarshalErr)
	}

	catalog := make(Catalog, len(entries))

	for parent, entry := range entries {
		pattern, patternErr := decodeMatchPattern(entry.MatchPattern)
		if patternErr != nil {
			return nil, fmt.Errorf("fitness: catalog %s: entry %q: %w", path, parent, patternErr)
		}

		childRules := make(map[string]struct{}, len(entry.ChildRules))
		for _, name := range entry.ChildRules {
			childRules[name] = struct{}{}
		}

		catalog[parent] = InsertPattern{MatchPattern: pattern, ChildRules: childRules}
	}

	return catalog, nil
}

func decodeMatchPattern(raw []json.RawMessage) ([]MatchElement, error) {
	pattern := make([]MatchElement, 0, len(raw))

	for _, elem := range raw {
		var literal string
		if err := json.Unmarshal(elem, &literal); err == nil {
			pattern = append(pattern, MatchElement{Literal: literal})

			continue
		}

		var q quantifierDTO
		if err := json.Unmarshal(elem, &q); err != nil {
			return nil, fmt.Errorf("match_pattern element is neither a string nor a quantifier object: %w", err)
		}

		max := MaxUnbounded
		if f, ok := q.Max.(float64); ok {
			max = f
		}

		pattern = append(pattern, MatchElement{Quantifier: QuantifierSpec{RuleName: q.RuleName, Min: q.Min, Max: max}})
	}

	return pattern, nil
}
