package mutate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/synthfuzz/synthfuzz-core/internal/contextfilter"
	"github.com/synthfuzz/synthfuzz-core/internal/fitness"
	"github.com/synthfuzz/synthfuzz-core/internal/generation"
	"github.com/synthfuzz/synthfuzz-core/internal/population"
	"github.com/synthfuzz/synthfuzz-core/internal/rng"
	"github.com/synthfuzz/synthfuzz-core/internal/tree"
)

// maxFitnessRetries bounds how many attempts in all, the first one
// included, Create makes at an edit or insert that fails its fitness check
// before giving up and emitting the last attempt anyway.
const maxFitnessRetries = 10

// ErrNameMismatch is returned by Recombine when the recipient and donor
// nodes do not share a rule name, which would produce a structurally
// invalid splice.
var ErrNameMismatch = errors.New("mutate: recipient and donor rule names differ")

// Kernel bundles everything the five production strategies need: a
// generator collaborator for from-scratch subtrees, the fitness policy and
// context filter that gate adaptive edits, the insert-pattern catalog, and
// the dual PRNG pair that makes every strategy reproducible given a seed.
type Kernel struct {
	Generator  generation.Generator
	Population *population.Population
	Policy     fitness.Policy
	Filter     contextfilter.Filter
	Catalog    fitness.Catalog
	RNG        *rng.Pair

	Rule     string
	MaxDepth int

	// MaxInsertsPerQuantifier caps how many insertion slots are attempted
	// per matched quantifier in a single Insert call.
	MaxInsertsPerQuantifier int

	// DisableParameters forces Edit to behave like a plain Recombine,
	// skipping adaptive substitution entirely.
	DisableParameters bool
	// FitnessLogOnly disables the Create retry loop: a fitness failure is
	// recorded but never retried.
	FitnessLogOnly bool

	EnableGenerate  bool
	EnableMutate    bool
	EnableRecombine bool
	EnableEdit      bool
	EnableInsert    bool

	Logger *slog.Logger
}

func (k *Kernel) logger() *slog.Logger {
	if k.Logger != nil {
		return k.Logger
	}

	return slog.Default()
}

// Generate instantiates a fresh subtree for rule (or the kernel's default
// start rule, if rule is empty), bounded by the kernel's max depth.
func (k *Kernel) Generate(ctx context.Context, rule string) (*CreatorResult, error) {
	return k.generateWithDepth(ctx, rule, k.MaxDepth)
}

func (k *Kernel) generateWithDepth(ctx context.Context, rule string, maxDepth int) (*CreatorResult, error) {
	if rule == "" {
		rule = k.Rule
	}

	if minDepth, ok := k.Generator.MinDepth(rule); ok && minDepth > maxDepth {
		return nil, fmt.Errorf("mutate: rule %q cannot be generated within max depth %d (min needed %d)", rule, maxDepth, minDepth)
	}

	root, err := k.Generator.Generate(ctx, rule, maxDepth)
	if err != nil {
		return nil, fmt.Errorf("mutate: generate %q: %w", rule, err)
	}

	return &CreatorResult{Mutant: root}, nil
}

// Mutate discards the subtree rooted at node and regenerates it from
// scratch, bounded by however much depth budget remains at node's level.
func (k *Kernel) Mutate(ctx context.Context, node *tree.Node) (*MutateResult, error) {
	originalNode := node.DeepCopy()

	level := 0
	for cur := node; cur.Parent != nil; cur = cur.Parent {
		level++
	}

	generated, err := k.generateWithDepth(ctx, node.Name, k.MaxDepth-level)
	if err != nil {
		return nil, err
	}

	mutatedNode := node.Replace(generated.Mutant)

	root := mutatedNode
	for root.Parent != nil {
		root = root.Parent
	}

	return &MutateResult{
		CreatorResult: CreatorResult{Mutant: root},
		MutatedNode:   mutatedNode,
		OriginalNode:  originalNode,
	}, nil
}

// Recombine discards the recipient subtree and splices the donor subtree in
// its place. The two nodes must share a rule name. The result is always
// fit: a plain recombine performs no adaptive substitution to fail.
func (k *Kernel) Recombine(recipient, donor *tree.Node) (*EditResult, error) {
	if recipient.Name != donor.Name {
		return nil, fmt.Errorf("%w: %q vs %q", ErrNameMismatch, recipient.Name, donor.Name)
	}

	originalDonor := donor.DeepCopy()
	originalRecipient := recipient.DeepCopy()

	node := recipient.Replace(donor)
	for node.Parent != nil {
		node = node.Parent
	}

	return &EditResult{
		RecombineResult: RecombineResult{
			CreatorResult: CreatorResult{Mutant: node},
			Donor:         originalDonor,
			Recipient:     originalRecipient,
		},
		Substitutions:    map[*tree.Node]*tree.Node{},
		IsFit:            true,
		FitnessViolation: FitnessNone,
	}, nil
}

// candidate is one strategy available for this call to Create, paired with
// the thunk that runs it.
type candidate struct {
	strategy Strategy
	run      func() (any, error)
}

// candidates builds the list of strategies eligible for this test case:
// generation is available whenever enabled, the population-backed
// strategies only when a population is configured, non-empty, and enabled.
func (k *Kernel) candidates(ctx context.Context) ([]candidate, error) {
	var out []candidate

	if k.EnableGenerate {
		out = append(out, candidate{StrategyGenerate, func() (any, error) { return k.Generate(ctx, "") }})
	}

	if k.Population == nil {
		return out, nil
	}

	if k.EnableMutate {
		canMutate, err := k.Population.CanMutate()
		if err != nil {
			return nil, err
		}

		if canMutate {
			out = append(out, candidate{StrategyMutate, func() (any, error) {
				node, _, err := k.Population.SelectToMutate(k.RNG.Main)
				if err != nil {
					return nil, err
				}

				return k.Mutate(ctx, node)
			}})
		}
	}

	if k.EnableRecombine {
		canRecombine, err := k.Population.CanRecombine()
		if err != nil {
			return nil, err
		}

		if canRecombine {
			out = append(out, candidate{StrategyRecombine, func() (any, error) {
				recipient, donor, ok, err := k.Population.SelectToRecombine(k.RNG.Main, k.MaxDepth)
				if err != nil {
					return nil, err
				}

				if !ok {
					return nil, fmt.Errorf("mutate: recombine: %w", errNoCandidatePair)
				}

				return k.Recombine(recipient, donor)
			}})
		}
	}

	if k.EnableEdit {
		canRecombine, err := k.Population.CanRecombine()
		if err != nil {
			return nil, err
		}

		if canRecombine {
			out = append(out, candidate{StrategyEdit, func() (any, error) {
				recipient, donor, ok, err := k.Population.SelectToRecombine(k.RNG.Main, k.MaxDepth)
				if err != nil {
					return nil, err
				}

				if !ok {
					return nil, fmt.Errorf("mutate: edit: %w", errNoCandidatePair)
				}

				return k.Edit(recipient, donor)
			}})
		}
	}

	if k.EnableInsert {
		canRecombine, err := k.Population.CanRecombine()
		if err != nil {
			return nil, err
		}

		if canRecombine {
			out = append(out, candidate{StrategyInsert, func() (any, error) {
				recipientTree, donorTree, ok, err := k.Population.SelectToInsert(k.RNG.Main)
				if err != nil {
					return nil, err
				}

				if !ok {
					return nil, fmt.Errorf("mutate: insert: %w", errNoCandidatePair)
				}

				return k.Insert(recipientTree, donorTree)
			}})
		}
	}

	return out, nil
}

var errNoCandidatePair = errors.New("no eligible node pair in this draw")

// Create picks a strategy uniformly at random among those eligible for this
// call, runs it, and for edit/insert reruns it on a fitness failure until
// maxFitnessRetries attempts have been made in all, then returns the last
// (unfit) attempt with a warning logged.
func (k *Kernel) Create(ctx context.Context, index int) (Strategy, any, error) {
	candidates, err := k.candidates(ctx)
	if err != nil {
		return 0, nil, err
	}

	if len(candidates) == 0 {
		return 0, nil, errors.New("mutate: no strategy is eligible for this test case")
	}

	chosen := rng.Choice(k.RNG.Main, candidates)

	result, err := chosen.run()
	if err != nil {
		return chosen.strategy, nil, err
	}

	if chosen.strategy.retries() {
		tries := 1
		for !k.FitnessLogOnly && !isFit(result) && tries < maxFitnessRetries {
			result, err = chosen.run()
			if err != nil {
				return chosen.strategy, nil, err
			}

			tries++
		}

		if !isFit(result) {
			k.logger().Warn("mutant failed fitness criteria after max retries; keeping it anyway",
				"strategy", chosen.strategy.String(), "index", index, "tries", tries)
		}
	}

	return chosen.strategy, result, nil
}
