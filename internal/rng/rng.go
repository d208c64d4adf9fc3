// Package rng provides the two independent seedable random sources the
// mutation kernel requires: a main source that drives strategy selection,
// tree sampling, and quantifier-position shuffling, and a separate edit
// source that drives parameter-value selection during adaptive edits. The
// two must never share state, or toggling parameter adaptation on and off
// would reshuffle unrelated recombine draws.
package rng

import (
	"math/rand/v2"
)

// Pair bundles the main and edit PRNGs for one worker.
type Pair struct {
	Main *rand.Rand
	Edit *rand.Rand
}

// NewPair seeds both sources from the given base seeds. A worker at index i
// should be constructed with baseSeed+i and editSeed+i so that multi-worker
// runs remain deterministic per index regardless of worker count.
func NewPair(mainSeed, editSeed int64) *Pair {
	return &Pair{
		Main: rand.New(rand.NewPCG(uint64(mainSeed), uint64(mainSeed)>>1)), //nolint:gosec // deterministic fuzzing seed, not cryptographic
		Edit: rand.New(rand.NewPCG(uint64(editSeed), uint64(editSeed)>>1)), //nolint:gosec // deterministic fuzzing seed, not cryptographic
	}
}

// Shuffle shuffles s in place using r.
func Shuffle[T any](r *rand.Rand, s []T) {
	r.Shuffle(len(s), func(i, j int) { s[i], s[j] = s[j], s[i] })
}

// Choice returns a uniformly random element of s. Panics on an empty slice;
// callers are expected to check length first, as every call site in this
// module already has a non-empty-slice invariant established by its caller.
func Choice[T any](r *rand.Rand, s []T) T {
	return s[r.IntN(len(s))]
}

// Sample draws k distinct elements from s without replacement, preserving
// none of the original order. If k >= len(s), the full (shuffled) slice is
// returned.
func Sample[T any](r *rand.Rand, s []T, k int) []T {
	cp := make([]T, len(s))
	copy(cp, s)
	Shuffle(r, cp)

	if k > len(cp) {
		k = len(cp)
	}

	return cp[:k]
}
