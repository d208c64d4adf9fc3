package mutate

import "github.com/synthfuzz/synthfuzz-core/internal/tree"

// FitnessViolation flags which fitness criteria an Edit or Insert result
// failed. Zero means the mutant is fit.
type FitnessViolation uint8

const (
	FitnessNone FitnessViolation = 0
	// FitnessSub means a should-substitute parameter was never bound to a
	// context value.
	FitnessSub FitnessViolation = 1 << 0
	// FitnessDupe means the mutant contains two no-duplicate nodes with an
	// identical serialized form.
	FitnessDupe FitnessViolation = 1 << 1
	// FitnessNoInsertLoc means Insert exhausted every candidate parent
	// occurrence without finding one that matched its pattern and passed
	// the context filter.
	FitnessNoInsertLoc FitnessViolation = 1 << 2
)

// Has reports whether bit is set in f.
func (f FitnessViolation) Has(bit FitnessViolation) bool {
	return f&bit != 0
}

func (f FitnessViolation) String() string {
	if f == FitnessNone {
		return "none"
	}

	s := ""

	for _, b := range []struct {
		flag FitnessViolation
		name string
	}{
		{FitnessSub, "sub"},
		{FitnessDupe, "dupe"},
		{FitnessNoInsertLoc, "no_insert_loc"},
	} {
		if f.Has(b.flag) {
			if s != "" {
				s += "|"
			}

			s += b.name
		}
	}

	return s
}

// NodePair associates a donor-side ("abstract") node with the recipient-side
// ("concrete") node it was matched against while walking the shared
// ancestor/sibling chain during Edit.
type NodePair struct {
	Concrete *tree.Node
	Abstract *tree.Node
}

// CreatorResult is the common result shape: the root of the produced
// mutant tree.
type CreatorResult struct {
	Mutant *tree.Node
}

// RecombineResult additionally records the original (pre-splice) donor and
// recipient subtrees, for logging and edit-log replay.
type RecombineResult struct {
	CreatorResult
	Donor     *tree.Node
	Recipient *tree.Node
}

// EditResult is the outcome of an adaptive edit: the splice plus whichever
// parameter substitutions were performed and the fitness verdict over them.
type EditResult struct {
	RecombineResult
	// Substitutions maps each donor-fragment parameter node to the
	// recipient-context value it was bound to.
	Substitutions    map[*tree.Node]*tree.Node
	IsFit            bool
	FitnessViolation FitnessViolation
}

// InsertResult is the outcome of a quantifier-slot insertion. It wraps an
// EditResult because a successful insertion always finishes by delegating
// to Edit at the chosen insertion site.
type InsertResult struct {
	EditResult
}

// MutateResult is the outcome of re-generating a subtree in place.
type MutateResult struct {
	CreatorResult
	MutatedNode  *tree.Node
	OriginalNode *tree.Node
}

// MutantOf extracts the produced tree root from any of the five result
// types, by concrete type rather than through a shared interface — there is
// a small, closed set of these, so a switch reads better than a forced
// common method.
func MutantOf(result any) *tree.Node {
	switch r := result.(type) {
	case *CreatorResult:
		return r.Mutant
	case *MutateResult:
		return r.Mutant
	case *RecombineResult:
		return r.Mutant
	case *EditResult:
		return r.Mutant
	case *InsertResult:
		return r.Mutant
	default:
		return nil
	}
}

// isFit reports whether result passed its fitness check. Results with no
// fitness concept (generate, mutate, recombine) are always fit.
func isFit(result any) bool {
	switch r := result.(type) {
	case *EditResult:
		return r.IsFit
	case *InsertResult:
		return r.IsFit
	default:
		return true
	}
}
