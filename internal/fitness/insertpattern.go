package fitness

import "math"

// QuantifierSpec matches between Min and Max consecutive children of
// RuleName at the current position in an InsertPattern's match sequence.
// Max == math.Inf(1) (via MaxUnbounded) means no upper limit.
type QuantifierSpec struct {
	RuleName string
	Min      int
	Max      float64
}

// MaxUnbounded is the sentinel for an unbounded quantifier upper limit.
var MaxUnbounded = math.Inf(1)

// MatchElement is one element of an InsertPattern's match_pattern sequence:
// either a literal rule name (Literal != "", Quantifier is zero) or a
// quantifier (Literal == "").
type MatchElement struct {
	Literal    string
	Quantifier QuantifierSpec
}

// IsQuantifier reports whether e is a quantifier element rather than a
// literal rule-name element.
func (e MatchElement) IsQuantifier() bool {
	return e.Literal == ""
}

// InsertPattern describes, for one parent rule name, the ordered child
// pattern a recipient occurrence of that parent must match, and the set of
// rule names a donor tree must contain for the insertion to be eligible at
// all.
type InsertPattern struct {
	MatchPattern []MatchElement
	ChildRules   map[string]struct{}
}

// Catalog maps a parent rule name to its InsertPattern.
type Catalog map[string]InsertPattern
