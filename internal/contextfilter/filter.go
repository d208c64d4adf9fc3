// Package contextfilter verifies that a candidate recipient/donor node pair
// agrees on rule names up to a bounded number of ancestors and left/right
// siblings, before the mutation kernel is allowed to splice one into the
// other's position. It is the context-agreement predicate the paper's
// k-ancestor / l-sibling / r-sibling match rule names.
package contextfilter

import "github.com/synthfuzz/synthfuzz-core/internal/tree"

// Filter holds the bounds for one context check.
type Filter struct {
	// KAncestors, LSiblings, RSiblings bound how many ancestors / left
	// siblings / right siblings must agree on rule name.
	KAncestors int
	LSiblings  int
	RSiblings  int

	// LimitByDonorContext, when true, truncates the comparison instead of
	// failing once the donor's chain runs out before the bound is reached.
	// This lets small donors still match against a deeper recipient
	// context. It never relaxes the recipient side: if the recipient's
	// chain runs out first, the pair still fails.
	LimitByDonorContext bool
}

// Verify runs all three checks (ancestors, left siblings, right siblings)
// and reports whether the pair is admissible under f.
func (f Filter) Verify(recipient, donor *tree.Node) bool {
	return f.VerifyKAncestors(recipient, donor) &&
		f.VerifyLSiblings(recipient, donor) &&
		f.VerifyRSiblings(recipient, donor)
}

// VerifyKAncestors checks that the i-th ancestor of recipient and donor
// share a name, for every i in [1..KAncestors].
func (f Filter) VerifyKAncestors(recipient, donor *tree.Node) bool {
	r, d := recipient.Parent, donor.Parent

	for range f.KAncestors {
		if f.LimitByDonorContext && d == nil {
			break
		}

		if r == nil || d == nil {
			return false
		}

		if r.Name != d.Name {
			return false
		}

		r, d = r.Parent, d.Parent
	}

	return true
}

// VerifyLSiblings checks that the i-th left sibling of recipient and donor
// share a name, for every i in [1..LSiblings].
func (f Filter) VerifyLSiblings(recipient, donor *tree.Node) bool {
	return f.verifySiblings(recipient, donor, f.LSiblings, (*tree.Node).LeftSibling)
}

// VerifyRSiblings checks that the i-th right sibling of recipient and donor
// share a name, for every i in [1..RSiblings].
func (f Filter) VerifyRSiblings(recipient, donor *tree.Node) bool {
	return f.verifySiblings(recipient, donor, f.RSiblings, (*tree.Node).RightSibling)
}

func (f Filter) verifySiblings(recipient, donor *tree.Node, bound int, step func(*tree.Node) *tree.Node) bool {
	r, d := step(recipient), step(donor)

	for range bound {
		if f.LimitByDonorContext && d == nil {
			break
		}

		if r == nil || d == nil {
			return false
		}

		if r.Name != d.Name {
			return false
		}

		r, d = step(r), step(d)
	}

	return true
}
