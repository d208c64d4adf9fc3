package mutate

import (
	"math/rand/v2"
	"sort"

	"github.com/synthfuzz/synthfuzz-core/internal/fitness"
	"github.com/synthfuzz/synthfuzz-core/internal/rng"
	"github.com/synthfuzz/synthfuzz-core/internal/tree"
)

// quantifierSlot pairs one matched quantifier element with the child
// positions in the recipient parent where a node could be inserted for it.
type quantifierSlot struct {
	element fitness.MatchElement
	locs    []int
}

// Insert looks for a parent-rule occurrence in the recipient tree whose
// children match one of the catalog's quantifier patterns, inserts a
// placeholder node at a matched quantifier slot, and if the donor tree has
// a candidate for that slot and the context filter accepts the pair,
// delegates to Edit to fill it in. Parent rules and insertion positions are
// tried in random order; the first site that produces a context-filter
// match wins. If no site in the whole catalog works out, the result
// reports FitnessNoInsertLoc.
func (k *Kernel) Insert(recipientTree, donorTree *tree.Tree) (*InsertResult, error) {
	validParents := make([]string, 0, len(k.Catalog))

	for name := range k.Catalog {
		if _, ok := recipientTree.NodesByName[name]; ok {
			validParents = append(validParents, name)
		}
	}

	sort.Strings(validParents) // deterministic before the shuffle below
	rng.Shuffle(k.RNG.Main, validParents)

	for _, parentName := range validParents {
		pattern := k.Catalog[parentName]
		if !donorHasChildRules(donorTree, pattern.ChildRules) {
			continue
		}

		recipientParents := append([]*tree.Node(nil), recipientTree.NodesByName[parentName]...)

		for _, recipientParent := range recipientParents {
			slots := greedyQuantifierMatch(recipientParent, pattern, k.RNG.Main)
			if slots == nil {
				continue
			}

			if result, done, err := k.tryInsertAtSlots(recipientParent, slots, donorTree); done || err != nil {
				return result, err
			}
		}
	}

	return &InsertResult{
		EditResult: EditResult{
			RecombineResult: RecombineResult{
				CreatorResult: CreatorResult{Mutant: recipientTree.Root},
				Donor:         donorTree.Root,
				Recipient:     recipientTree.Root,
			},
			IsFit:            false,
			FitnessViolation: FitnessNoInsertLoc,
		},
	}, nil
}

func (k *Kernel) tryInsertAtSlots(recipientParent *tree.Node, slots []quantifierSlot, donorTree *tree.Tree) (*InsertResult, bool, error) {
	for _, slot := range slots {
		locs := slot.locs
		if len(locs) > k.MaxInsertsPerQuantifier {
			locs = locs[:k.MaxInsertsPerQuantifier]
		}

		for _, idx := range locs {
			placeholder := tree.NewRule(slot.element.Quantifier.RuleName)
			recipientParent.InsertChild(idx, placeholder)

			candidates := donorTree.NodesByName[slot.element.Quantifier.RuleName]
			if len(candidates) == 0 {
				continue
			}

			donorNode := rng.Choice(k.RNG.Main, candidates)
			if !k.Filter.Verify(placeholder, donorNode) {
				continue
			}

			edited, err := k.Edit(placeholder, donorNode)
			if err != nil {
				return nil, true, err
			}

			return &InsertResult{EditResult: *edited}, true, nil
		}
	}

	return nil, false, nil
}

func donorHasChildRules(donorTree *tree.Tree, childRules map[string]struct{}) bool {
	for rule := range childRules {
		if _, ok := donorTree.NodesByName[rule]; !ok {
			return false
		}
	}

	return true
}

// greedyQuantifierMatch walks recipientParent's children against pattern's
// match sequence in order. A literal element must match the child at the
// current position exactly; a quantifier element greedily consumes
// consecutive children of its rule name (up to its max), failing the whole
// match if it consumed fewer than its min. It does not backtrack: a
// multi-element pattern with ambiguous boundaries may fail to match even
// when some split of the children would satisfy it.
func greedyQuantifierMatch(recipientParent *tree.Node, pattern fitness.InsertPattern, r *rand.Rand) []quantifierSlot {
	children := recipientParent.Children
	childIdx := 0

	var slots []quantifierSlot

	for _, el := range pattern.MatchPattern {
		if !el.IsQuantifier() {
			if childIdx >= len(children) || children[childIdx].Name != el.Literal {
				return nil
			}

			childIdx++

			continue
		}

		q := el.Quantifier
		numMatches := 0

		var possible []int

		for childIdx < len(children) {
			if children[childIdx].Name != q.RuleName {
				break
			}

			possible = append(possible, childIdx)
			numMatches++
			childIdx++

			if float64(numMatches) >= q.Max {
				break
			}
		}

		if numMatches < q.Min {
			return nil
		}

		rng.Shuffle(r, possible)

		if q.Max != fitness.MaxUnbounded {
			keep := int(q.Max) - numMatches
			if keep < 0 {
				keep = 0
			}

			if keep < len(possible) {
				possible = possible[:keep]
			}
		}

		slots = append(slots, quantifierSlot{element: el, locs: possible})
	}

	return slots
}
