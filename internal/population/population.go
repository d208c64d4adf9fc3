// Package population implements the directory-backed tree pool the
// mutation kernel draws donor/recipient pairs from: lazy loading, uniform
// random sampling without replacement, and the recombine/insert candidate
// selection described by the paper's context-aware donor/recipient
// selector.
package population

import (
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/synthfuzz/synthfuzz-core/internal/contextfilter"
	"github.com/synthfuzz/synthfuzz-core/internal/rng"
	"github.com/synthfuzz/synthfuzz-core/internal/tree"
)

const treeFileExt = ".tree.lz4"

// Population is a lazily loaded, directory-backed set of serialized trees.
// Individuals are identified by file path and are never mutated in place on
// disk; Add always creates a new file.
type Population struct {
	dir    string
	codec  Codec
	filter contextfilter.Filter

	loaded bool
	files  []string
}

// New creates a Population rooted at dir. filter is the context-agreement
// predicate applied during recombine/insert candidate selection.
func New(dir string, filter contextfilter.Filter) *Population {
	return &Population{dir: dir, codec: Codec{}, filter: filter}
}

// ensureLoaded lists the population directory once, lazily.
func (p *Population) ensureLoaded() error {
	if p.loaded {
		return nil
	}

	entries, err := os.ReadDir(p.dir)
	if err != nil {
		if os.IsNotExist(err) {
			p.loaded = true

			return nil
		}

		return fmt.Errorf("population: read dir %s: %w", p.dir, err)
	}

	files := make([]string, 0, len(entries))

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), treeFileExt) {
			continue
		}

		files = append(files, filepath.Join(p.dir, e.Name()))
	}

	sort.Strings(files) // deterministic ordering before any random draw

	p.files = files
	p.loaded = true

	return nil
}

// Len reports how many individuals are currently known, loading the
// directory listing first if needed.
func (p *Population) Len() (int, error) {
	if err := p.ensureLoaded(); err != nil {
		return 0, err
	}

	return len(p.files), nil
}

// CanMutate reports whether the population has at least one individual.
func (p *Population) CanMutate() (bool, error) {
	n, err := p.Len()

	return n >= 1, err
}

// CanRecombine reports whether the population has at least two individuals.
func (p *Population) CanRecombine() (bool, error) {
	n, err := p.Len()

	return n >= 2, err
}

// drawDistinct draws n distinct file paths uniformly at random without
// replacement.
func (p *Population) drawDistinct(r *rand.Rand, n int) ([]string, error) {
	if err := p.ensureLoaded(); err != nil {
		return nil, err
	}

	if n > len(p.files) {
		n = len(p.files)
	}

	idx := r.Perm(len(p.files))[:n]
	out := make([]string, n)

	for i, j := range idx {
		out[i] = p.files[j]
	}

	return out, nil
}

// SelectToMutate draws one tree and one node within it uniformly at random.
// This selection is not part of the paper's context-aware selector (it is
// the baseline behavior a population must provide for the plain mutate
// strategy); it does not consult the context filter.
func (p *Population) SelectToMutate(r *rand.Rand) (node *tree.Node, level int, err error) {
	paths, err := p.drawDistinct(r, 1)
	if err != nil {
		return nil, 0, err
	}

	if len(paths) == 0 {
		return nil, 0, nil
	}

	root, err := p.codec.Load(paths[0])
	if err != nil {
		return nil, 0, err
	}

	idx := tree.Index(root)

	var all []*tree.Node

	tree.Walk(root, func(n *tree.Node) { all = append(all, n) })

	chosen := all[r.IntN(len(all))]

	return chosen, idx.Level(chosen), nil
}

// SelectToRecombine draws two trees without replacement, intersects their
// NodesByName keys, and searches for a (recipient, donor) node pair that
// both satisfies the context filter and keeps the spliced result within
// maxDepth. Recipient candidates are filtered to those whose subtree fits
// the depth budget before the shuffle, exactly as the reference selector
// does it. Returns ok=false if no eligible pair exists in this draw; callers
// may retry.
func (p *Population) SelectToRecombine(r *rand.Rand, maxDepth int) (recipient, donor *tree.Node, ok bool, err error) {
	paths, err := p.drawDistinct(r, 2)
	if err != nil || len(paths) < 2 {
		return nil, nil, false, err
	}

	recipientRoot, err := p.codec.Load(paths[0])
	if err != nil {
		return nil, nil, false, err
	}

	donorRoot, err := p.codec.Load(paths[1])
	if err != nil {
		return nil, nil, false, err
	}

	recipientTree := tree.Index(recipientRoot)
	donorTree := tree.Index(donorRoot)

	commonNames := intersectNames(recipientTree.NodesByName, donorTree.NodesByName)

	var recipientOptions []*tree.Node

	for _, name := range commonNames {
		for _, n := range recipientTree.NodesByName[name] {
			// Coarse pre-filter: the recipient's own subtree must fit the
			// depth budget at its level. The exact check, once a donor
			// candidate is known, compares against the donor's height
			// instead (below).
			if recipientTree.Level(n)+recipientTree.Height(n) <= maxDepth {
				recipientOptions = append(recipientOptions, n)
			}
		}
	}

	rng.Shuffle(r, recipientOptions)

	for _, recipientNode := range recipientOptions {
		donorOptions := append([]*tree.Node(nil), donorTree.NodesByName[recipientNode.Name]...)
		rng.Shuffle(r, donorOptions)

		for _, donorNode := range donorOptions {
			if !p.filter.Verify(recipientNode, donorNode) {
				continue
			}

			if recipientTree.Level(recipientNode)+donorTree.Height(donorNode) <= maxDepth {
				return recipientNode, donorNode, true, nil
			}
		}
	}

	return nil, nil, false, nil
}

// SelectToInsert draws two whole trees without replacement and leaves
// insertion-site discovery to the mutation kernel.
func (p *Population) SelectToInsert(r *rand.Rand) (recipientTree, donorTree *tree.Tree, ok bool, err error) {
	paths, err := p.drawDistinct(r, 2)
	if err != nil || len(paths) < 2 {
		return nil, nil, false, err
	}

	recipientRoot, err := p.codec.Load(paths[0])
	if err != nil {
		return nil, nil, false, err
	}

	donorRoot, err := p.codec.Load(paths[1])
	if err != nil {
		return nil, nil, false, err
	}

	return tree.Index(recipientRoot), tree.Index(donorRoot), true, nil
}

// Add serializes root and writes it to the population under path, updating
// the in-memory file listing. Ownership of root transfers to the
// population store.
func (p *Population) Add(root *tree.Node, path string) error {
	if err := p.ensureLoaded(); err != nil {
		return err
	}

	if err := os.MkdirAll(p.dir, dirPerm); err != nil {
		return fmt.Errorf("population: mkdir %s: %w", p.dir, err)
	}

	full := filepath.Join(p.dir, filepath.Base(path)+treeFileExt)

	if err := p.codec.Save(full, root); err != nil {
		return err
	}

	p.files = append(p.files, full)

	return nil
}

const dirPerm = 0o750

func intersectNames[T any](a, b map[string][]T) []string {
	names := make([]string, 0, len(a))

	for name := range a {
		if _, ok := b[name]; ok {
			names = append(names, name)
		}
	}

	sort.Strings(names) // deterministic before the caller shuffles

	return names
}
