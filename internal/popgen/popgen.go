// Package popgen implements the default generation.Generator this module
// ships out of the box: one that replays whole trees out of a seed
// directory instead of generating from a grammar. A grammar-driven
// generator (grammarinator-style, per generator.py's generator_factory
// collaborator) is the real thing a production deployment wires in; this
// package exists so `synthfuzz generate` has something to run against a
// seed corpus without one.
package popgen

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/synthfuzz/synthfuzz-core/internal/population"
	"github.com/synthfuzz/synthfuzz-core/internal/tree"
)

// ErrNoSeeds is returned by Generate when the seed directory holds no tree
// whose root rule matches the requested rule.
var ErrNoSeeds = errors.New("popgen: no seed tree matches requested rule")

// SeedReplayGenerator implements generation.Generator by returning a deep
// copy of a uniformly random tree loaded from dir whose root rule name
// matches the requested rule. It never synthesizes new structure, so it
// has no notion of depth: MinDepth always reports ok=false and Generate
// ignores maxDepth, the same stance generation.Generator's MinDepth
// documents for generators that cannot report a minimum.
type SeedReplayGenerator struct {
	dir   string
	codec population.Codec
	rng   *rand.Rand

	mu     sync.Mutex
	loaded bool
	byRule map[string][]string
}

// New creates a SeedReplayGenerator over the ".tree.lz4" files in dir,
// drawing from r whenever Generate is called.
func New(dir string, r *rand.Rand) *SeedReplayGenerator {
	return &SeedReplayGenerator{dir: dir, rng: r}
}

func (g *SeedReplayGenerator) ensureLoaded() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.loaded {
		return nil
	}

	entries, err := os.ReadDir(g.dir)
	if err != nil {
		if os.IsNotExist(err) {
			g.byRule = map[string][]string{}
			g.loaded = true

			return nil
		}

		return fmt.Errorf("popgen: read dir %s: %w", g.dir, err)
	}

	byRule := map[string][]string{}

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".tree.lz4") {
			continue
		}

		path := filepath.Join(g.dir, e.Name())

		root, loadErr := g.codec.Load(path)
		if loadErr != nil {
			return fmt.Errorf("popgen: load %s: %w", path, loadErr)
		}

		byRule[root.Name] = append(byRule[root.Name], path)
	}

	for rule := range byRule {
		sort.Strings(byRule[rule])
	}

	g.byRule = byRule
	g.loaded = true

	return nil
}

// Generate returns a deep copy of a random seed tree rooted at rule.
// maxDepth is ignored: a replayed seed's depth is whatever it already is.
func (g *SeedReplayGenerator) Generate(_ context.Context, rule string, _ int) (*tree.Node, error) {
	if err := g.ensureLoaded(); err != nil {
		return nil, err
	}

	g.mu.Lock()
	candidates := g.byRule[rule]
	g.mu.Unlock()

	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNoSeeds, rule)
	}

	path := candidates[g.rng.IntN(len(candidates))]

	root, err := g.codec.Load(path)
	if err != nil {
		return nil, fmt.Errorf("popgen: reload %s: %w", path, err)
	}

	return root, nil
}

// MinDepth always reports ok=false: a replayed seed's depth isn't bounded
// by any grammar this generator knows about.
func (g *SeedReplayGenerator) MinDepth(string) (int, bool) {
	return 0, false
}
