package mutate

import (
	"github.com/synthfuzz/synthfuzz-core/internal/fitness"
	"github.com/synthfuzz/synthfuzz-core/internal/rng"
	"github.com/synthfuzz/synthfuzz-core/internal/tree"
)

// Edit splices donor into recipient's position like Recombine, but first
// tries to adapt the donor fragment's parameter-like nodes (identifiers,
// constants, anything with a stable serialized form) to values discovered
// in the recipient's own surrounding context, so the spliced-in fragment
// reads as though it belonged to the recipient tree all along.
//
// The discovery walk has three layers:
//  1. index the donor fragment's own nodes ("fragment") and the rest of
//     the donor tree ("context"), excluding the blacklisted node kinds;
//  2. walk the shared ancestor chain of recipient and donor outward,
//     comparing left/right siblings pairwise by rule name at each level,
//     recursing into matched pairs' children, to find which context nodes
//     correspond to which recipient-side values;
//  3. for every context node that also appears as a fragment node (i.e. is
//     a parameter candidate), replace every matching fragment occurrence
//     with a value discovered in step 2, and check the should-substitute
//     and no-duplicate fitness criteria on the result.
//
// If the donor fragment has no children, or parameter substitution is
// disabled on the kernel, Edit degrades to a plain Recombine: there is
// nothing inside the fragment to adapt.
func (k *Kernel) Edit(recipient, donor *tree.Node) (*EditResult, error) {
	if len(donor.Children) == 0 || k.DisableParameters {
		return k.Recombine(recipient, donor)
	}

	originalDonor := donor.DeepCopy()
	originalRecipient := recipient.DeepCopy()

	donorRoot := donor.Root()

	fragmentNodes := map[string][]*tree.Node{}
	for _, child := range donor.Children {
		indexNodes(child, fragmentNodes, nil, k.Policy.ParameterBlacklist)
	}

	contextNodes := map[string][]*tree.Node{}
	indexNodes(donorRoot, contextNodes, donor, k.Policy.ParameterBlacklist)

	// parameters maps a context-side node to the fragment-side nodes that
	// are candidates to be replaced by whatever concrete value is found
	// to correspond to that context node.
	parameters := map[*tree.Node][]*tree.Node{}

	for name, nodesInContext := range contextNodes {
		nodesInFragment, ok := fragmentNodes[name]
		if !ok {
			continue
		}

		byString := map[string][]*tree.Node{}
		for _, n := range nodesInFragment {
			s := n.String()
			byString[s] = append(byString[s], n)
		}

		for _, ctxNode := range nodesInContext {
			matches, ok := byString[ctxNode.String()]
			if !ok {
				continue
			}

			parameters[ctxNode] = matches
		}
	}

	// Walk the shared ancestor chain outward from (recipient, donor),
	// collecting the recipient-side values that correspond to each
	// context-side parameter candidate.
	ancestorsConcrete := []*tree.Node{recipient}
	ancestorsAbstract := []*tree.Node{donor}

	concrete, abstract := recipient, donor
	for concrete.Parent != nil && abstract.Parent != nil && concrete.Parent.Name == abstract.Parent.Name {
		concrete, abstract = concrete.Parent, abstract.Parent
		ancestorsConcrete = append(ancestorsConcrete, concrete)
		ancestorsAbstract = append(ancestorsAbstract, abstract)
	}

	parameterValues := map[*tree.Node][]*tree.Node{}

	var paramOrder []*tree.Node

	saveParam := func(abstractNode, concreteNode *tree.Node) {
		if _, seen := parameterValues[abstractNode]; !seen {
			paramOrder = append(paramOrder, abstractNode)
		}

		parameterValues[abstractNode] = append(parameterValues[abstractNode], concreteNode)
	}

	var recursivelyMatch func(abstractNodes, concreteNodes []*tree.Node)

	matchNodes := func(abstractNodes, concreteNodes []*tree.Node) []NodePair {
		var matching []NodePair

		cIdx := 0

		for _, a := range abstractNodes {
			old := cIdx

			for cIdx < len(concreteNodes) {
				c := concreteNodes[cIdx]
				cIdx++

				if a.Name != c.Name {
					continue
				}

				if _, isParam := parameters[a]; isParam {
					saveParam(a, c)
				} else {
					matching = append(matching, NodePair{Concrete: c, Abstract: a})
				}

				break
			}

			if cIdx >= len(concreteNodes) {
				cIdx = old
			}
		}

		return matching
	}

	recursivelyMatch = func(abstractNodes, concreteNodes []*tree.Node) {
		for _, pair := range matchNodes(abstractNodes, concreteNodes) {
			if pair.Abstract.Children == nil || pair.Concrete.Children == nil {
				continue
			}

			recursivelyMatch(pair.Abstract.Children, pair.Concrete.Children)
		}
	}

	for i := 1; i < len(ancestorsConcrete); i++ {
		leftC, rightC := siblingsAt(ancestorsConcrete, i)
		leftA, rightA := siblingsAt(ancestorsAbstract, i)

		recursivelyMatch(leftA, leftC)
		recursivelyMatch(rightA, rightC)
	}

	// Determine which parameter candidates carry a should-substitute
	// obligation, so we can tell after substitution whether every
	// obligation was discharged.
	toCheck := map[*tree.Node]struct{}{}

	for _, paramNodes := range parameters {
		for _, paramNode := range paramNodes {
			if fitness.Matches(paramNode, k.Policy.ShouldSubstitute) {
				toCheck[paramNode] = struct{}{}
			}
		}
	}

	substitutions := map[*tree.Node]*tree.Node{}

	for _, abstractNode := range paramOrder {
		values := parameterValues[abstractNode]
		if len(values) == 0 {
			continue
		}

		chosen := rng.Choice(k.RNG.Edit, values)
		substitutions[abstractNode] = chosen

		for _, paramNode := range parameters[abstractNode] {
			paramNode.Replace(chosen)
			delete(toCheck, paramNode)
		}
	}

	isFit := len(toCheck) == 0

	violation := FitnessNone
	if !isFit {
		violation = FitnessSub
	}

	node := recipient.Replace(donor)
	for node.Parent != nil {
		node = node.Parent
	}

	if hasDuplicates(node, k.Policy.NoDuplicate) {
		isFit = false
		violation |= FitnessDupe
	}

	if len(substitutions) > 0 {
		k.logger().Debug("edit substituted parameters", "diff", DiffSummary(originalDonor, donor))
	}

	return &EditResult{
		RecombineResult: RecombineResult{
			CreatorResult: CreatorResult{Mutant: node},
			Donor:         originalDonor,
			Recipient:     originalRecipient,
		},
		Substitutions:    substitutions,
		IsFit:            isFit,
		FitnessViolation: violation,
	}, nil
}

// indexNodes walks current's subtree with an explicit stack (mirroring
// tree.Walk, since donor trees can nest as deeply as any other tree this
// engine handles), recording every node by rule name into out. Hitting
// exclude, or a node covered by the parameter blacklist, prunes that whole
// subtree: exclude marks the fragment being spliced in (never a parameter
// candidate for itself), and a blacklisted node's descendants are no more
// eligible as parameter candidates than the node itself.
func indexNodes(current *tree.Node, out map[string][]*tree.Node, exclude *tree.Node, blacklist fitness.MatchMap) {
	stack := []*tree.Node{current}

	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if n == exclude || fitness.Matches(n, blacklist) {
			continue
		}

		out[n.Name] = append(out[n.Name], n)

		for i := len(n.Children) - 1; i >= 0; i-- {
			stack = append(stack, n.Children[i])
		}
	}
}

// siblingsAt splits ancestors[idx]'s children around ancestors[idx-1],
// returning the left and right sibling slices.
func siblingsAt(ancestors []*tree.Node, idx int) (left, right []*tree.Node) {
	parent := ancestors[idx]
	child := ancestors[idx-1]

	siblings := parent.Children

	pos := -1

	for i, s := range siblings {
		if s == child {
			pos = i

			break
		}
	}

	return siblings[:pos], siblings[pos+1:]
}

// hasDuplicates reports whether node's subtree contains two or more
// no-duplicate-policy nodes with an identical serialized form.
func hasDuplicates(node *tree.Node, noDuplicate fitness.MatchMap) bool {
	seen := map[string]struct{}{}
	stack := []*tree.Node{node}

	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if fitness.Matches(n, noDuplicate) {
			s := n.String()
			if _, ok := seen[s]; ok {
				return true
			}

			seen[s] = struct{}{}
		}

		stack = append(stack, n.Children...)
	}

	return false
}
