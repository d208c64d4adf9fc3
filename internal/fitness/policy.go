// Package fitness implements the configurable constraints the mutation
// kernel enforces on produced mutants: which nodes must be re-bound to a
// parameter value, which node kinds must be unique within a mutant, and
// which node kinds are never eligible to become parameter candidates.
package fitness

import (
	"strings"

	"github.com/synthfuzz/synthfuzz-core/internal/tree"
)

// MatchMap maps a child rule name to either the wildcard (matches under
// any parent) or a set of allowed parent rule names.
type MatchMap map[string]map[string]struct{}

// IsAny reports whether name is registered in m with the "any parent"
// wildcard.
func (m MatchMap) IsAny(name string) bool {
	parents, ok := m[name]

	return ok && parents == nil
}

// Has reports whether name is registered in m at all (wildcard or not).
func (m MatchMap) Has(name string) bool {
	_, ok := m[name]

	return ok
}

// AllowsParent reports whether name is registered under parent (or under
// the wildcard).
func (m MatchMap) AllowsParent(name, parent string) bool {
	parents, ok := m[name]
	if !ok {
		return false
	}

	if parents == nil {
		return true
	}

	_, allowed := parents[parent]

	return allowed
}

// BuildMatchMap builds a MatchMap from a list of "parent.child" or bare
// "child" entries (the format used by every one of the three fitness/
// parameterization configuration lists). A bare name with no "." resolves
// to the wildcard "any parent" for that name, applied the same way across
// all three policies: this was an inconsistency in the tool this engine is
// modeled on (its match-dict builder only special-cased the blacklist, and
// its quantifier-pattern builder referenced an undefined local for bare
// names); this package treats "bare name -> wildcard" as the one correct
// rule everywhere.
func BuildMatchMap(entries []string) MatchMap {
	m := make(MatchMap, len(entries))

	for _, entry := range entries {
		parent, child, hasDot := strings.Cut(entry, ".")
		if !hasDot {
			// entry was a bare child name; "parent" holds it.
			m[parent] = nil

			continue
		}

		parents, alreadyWildcard := m[child]
		if alreadyWildcard && parents == nil {
			continue // wildcard already covers every parent for this child
		}

		if parents == nil {
			parents = make(map[string]struct{})
			m[child] = parents
		}

		parents[parent] = struct{}{}
	}

	return m
}

// Matches reports whether n satisfies MatchMap m: n's name is registered,
// and either the wildcard applies or n.Parent's name is among the allowed
// parents. A root node (nil Parent) only matches a wildcard entry.
func Matches(n *tree.Node, m MatchMap) bool {
	parentName := ""
	if n.Parent != nil {
		parentName = n.Parent.Name
	}

	return m.AllowsParent(n.Name, parentName)
}

// Policy bundles the three fitness/parameterization mappings read once from
// the mutation configuration document and treated as immutable for the
// run.
type Policy struct {
	// ShouldSubstitute lists node kinds that must be replaced by a
	// parameter value when the edit kernel runs.
	ShouldSubstitute MatchMap
	// NoDuplicate lists node kinds whose serialized form must be unique
	// within a produced mutant.
	NoDuplicate MatchMap
	// ParameterBlacklist lists node kinds that must never be considered
	// as parameter-substitution candidates.
	ParameterBlacklist MatchMap
}

// NewPolicy builds a Policy from the raw "parent.child"/"child" entry lists
// loaded from a mutation configuration document.
func NewPolicy(shouldSubstitute, noDuplicate, blacklist []string) Policy {
	return Policy{
		ShouldSubstitute:   BuildMatchMap(shouldSubstitute),
		NoDuplicate:        BuildMatchMap(noDuplicate),
		ParameterBlacklist: BuildMatchMap(blacklist),
	}
}
