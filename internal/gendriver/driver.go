// Package gendriver orchestrates per-test-case production: it drives the
// mutation kernel to pick a strategy and build a mutant, runs the
// configured transformer pipeline, serializes the result, and optionally
// filters it through a compiler driver or feeds it back into the
// population. Driver.Run fans this out over a worker pool while keeping
// every index's result fully reproducible regardless of how many workers
// ran it.
package gendriver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/synthfuzz/synthfuzz-core/internal/compilerdriver"
	"github.com/synthfuzz/synthfuzz-core/internal/generation"
	"github.com/synthfuzz/synthfuzz-core/internal/mutate"
	"github.com/synthfuzz/synthfuzz-core/internal/observability"
	"github.com/synthfuzz/synthfuzz-core/internal/rng"
	"github.com/synthfuzz/synthfuzz-core/internal/tree"
)

// batchSeparator joins test cases accumulated into one batch file.
const batchSeparator = "\n// -----\n"

const (
	outFilePerm = 0o640
	outDirPerm  = 0o750
)

// Transformer postprocesses a produced tree before serialization, e.g. to
// bind a fragment's free parameters to names unique within the test case.
type Transformer func(*tree.Node) *tree.Node

// KernelFactory builds a fresh mutation kernel for one test case, seeded
// with that case's own private RNG pair. Index-level determinism depends
// on every field of the returned kernel being configured identically
// across calls except for pair.
type KernelFactory func(pair *rng.Pair) *mutate.Kernel

// Output is the result of one RunOne call.
type Output struct {
	Index    int
	Strategy mutate.Strategy
	Text     string
	// Kept reports whether the result survived ErrorsOnly filtering (always
	// true when ErrorsOnly is unset).
	Kept bool
}

// Driver orchestrates test-case production across however many test cases
// and workers the caller asks for.
type Driver struct {
	NewKernel    KernelFactory
	Serializer   generation.Serializer
	Transformers []Transformer

	// BaseSeed and EditSeed are the run-level seeds; test case index gets
	// its own kernel seeded with BaseSeed+index and EditSeed+index, so the
	// result for a given index never depends on worker count or scheduling.
	BaseSeed int64
	EditSeed int64

	// ErrorsOnly, when set, runs every produced test through Compiler and
	// drops it unless TestOne reports it accepted (a genuine crash).
	ErrorsOnly bool
	Compiler   *compilerdriver.Driver

	// KeepTrees re-adds a retained mutant to the kernel's own population,
	// identified by its output path.
	KeepTrees bool

	// OutPattern is the output file name pattern; "%d" is replaced with the
	// test case index. Ignored when BatchSize > 1.
	OutPattern string

	// BatchSize batches this many consecutive test cases per output file
	// when greater than 1; BatchDir must then be set. BatchExt is appended
	// to each batch file's name, including the leading '.' if desired.
	BatchSize int
	BatchDir  string
	BatchExt  string

	Metrics *observability.FuzzMetrics
}

// RunOne produces the index-th test case: it builds a fresh kernel seeded
// from index, runs the chosen strategy, applies the transformer pipeline,
// serializes the mutant, and applies ErrorsOnly/KeepTrees handling. Its only
// file writes are the population entries KeepTrees adds; Run writes the
// test-case files afterward, in index order.
func (d *Driver) RunOne(ctx context.Context, index int) (*Output, error) {
	pair := rng.NewPair(d.BaseSeed+int64(index), d.EditSeed+int64(index))
	kernel := d.NewKernel(pair)

	start := time.Now()

	strategy, result, err := kernel.Create(ctx, index)
	if err != nil {
		return nil, fmt.Errorf("gendriver: create test %d: %w", index, err)
	}

	if d.Metrics != nil {
		d.Metrics.RecordStrategyDuration(ctx, strategy.String(), time.Since(start))
	}

	if violation, ok := fitnessViolationOf(result); ok && violation != mutate.FitnessNone && d.Metrics != nil {
		d.Metrics.RecordFitnessViolation(ctx, violation.String())
	}

	mutant := mutate.MutantOf(result)
	for _, tr := range d.Transformers {
		mutant = tr(mutant)
	}

	serialize := d.Serializer
	if serialize == nil {
		serialize = generation.DefaultSerializer
	}

	text := serialize(mutant)
	out := &Output{Index: index, Strategy: strategy, Text: text}

	if d.ErrorsOnly {
		return d.runErrorsOnly(ctx, out, mutant, kernel, index)
	}

	if d.KeepTrees && kernel.Population != nil {
		if addErr := kernel.Population.Add(mutant, d.outputPath(index)); addErr != nil {
			return nil, fmt.Errorf("gendriver: add retained tree %d: %w", index, addErr)
		}
	}

	out.Kept = true

	if d.Metrics != nil {
		d.Metrics.RecordTest(ctx, strategy.String())
	}

	return out, nil
}

func (d *Driver) runErrorsOnly(ctx context.Context, out *Output, mutant *tree.Node, kernel *mutate.Kernel, index int) (*Output, error) {
	if d.Compiler == nil {
		return nil, errors.New("gendriver: ErrorsOnly requires a Compiler")
	}

	result, err := d.Compiler.TestOne(ctx, out.Text)
	if err != nil {
		return nil, fmt.Errorf("gendriver: compiler test %d: %w", index, err)
	}

	if d.Metrics != nil {
		d.Metrics.RecordCompilerOutcome(ctx, compilerOutcome(result))
	}

	// Every 1000th clean run is kept anyway, to keep the population from
	// drifting toward only ever holding crashing mutants.
	if result.ExitCode == 0 && index%1000 == 0 && d.KeepTrees && kernel.Population != nil {
		if addErr := kernel.Population.Add(mutant, d.outputPath(index)); addErr != nil {
			return nil, fmt.Errorf("gendriver: add retained tree %d: %w", index, addErr)
		}
	}

	if !result.Accepted {
		return nil, nil
	}

	out.Kept = true

	if d.Metrics != nil {
		d.Metrics.RecordTest(ctx, out.Strategy.String())
	}

	return out, nil
}

// Run produces n test cases across workers goroutines and writes the
// surviving results to disk. Each test case's kernel is seeded purely from
// its own index, so the set of files written is identical no matter how
// many workers ran it; only the concurrency, not the content, changes with
// workers.
func (d *Driver) Run(ctx context.Context, n, workers int) error {
	if n <= 0 {
		return nil
	}

	if workers < 1 {
		workers = 1
	}

	results := make([]*Output, n)

	jobs := make(chan int)
	errCh := make(chan error, workers)

	var wg sync.WaitGroup

	for range workers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for idx := range jobs {
				out, err := d.RunOne(ctx, idx)
				if err != nil {
					select {
					case errCh <- err:
					default:
					}

					continue
				}

				results[idx] = out
			}
		}()
	}

feed:
	for i := range n {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}

	close(jobs)
	wg.Wait()
	close(errCh)

	if err, ok := <-errCh; ok {
		return err
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("gendriver: run: %w", err)
	}

	return d.writeResults(results)
}

func (d *Driver) writeResults(results []*Output) error {
	if d.BatchSize > 1 {
		return d.writeBatches(results)
	}

	for _, out := range results {
		if out == nil || !out.Kept {
			continue
		}

		path := d.outputPath(out.Index)

		if err := os.MkdirAll(filepath.Dir(path), outDirPerm); err != nil {
			return fmt.Errorf("gendriver: mkdir %s: %w", filepath.Dir(path), err)
		}

		if err := os.WriteFile(path, []byte(out.Text), outFilePerm); err != nil {
			return fmt.Errorf("gendriver: write %s: %w", path, err)
		}
	}

	return nil
}

// writeBatches accumulates consecutive kept test cases, joined with
// batchSeparator, and flushes them whenever a kept case's index+1 is a
// multiple of BatchSize, matching generate.py's batched_run. Each file is
// named "batch_{start}-{end}{BatchExt}": end is the index of the case that
// triggered the flush, start is the previous flush's end (0 for the first
// file), and the final partial batch is named through len(results).
func (d *Driver) writeBatches(results []*Output) error {
	if d.BatchDir == "" {
		return errors.New("gendriver: BatchDir is required when BatchSize > 1")
	}

	if err := os.MkdirAll(d.BatchDir, outDirPerm); err != nil {
		return fmt.Errorf("gendriver: mkdir %s: %w", d.BatchDir, err)
	}

	firstIdx := 0
	batch := make([]string, 0, d.BatchSize)

	flush := func(lastIdx int) error {
		if len(batch) == 0 {
			return nil
		}

		name := fmt.Sprintf("batch_%d-%d%s", firstIdx, lastIdx, d.BatchExt)
		path := filepath.Join(d.BatchDir, name)

		if err := os.WriteFile(path, []byte(strings.Join(batch, batchSeparator)), outFilePerm); err != nil {
			return fmt.Errorf("gendriver: write batch %s: %w", path, err)
		}

		batch = batch[:0]

		return nil
	}

	for _, out := range results {
		if out == nil || !out.Kept {
			continue
		}

		batch = append(batch, out.Text)

		if (out.Index+1)%d.BatchSize == 0 {
			if err := flush(out.Index); err != nil {
				return err
			}

			firstIdx = out.Index
		}
	}

	return flush(len(results))
}

func (d *Driver) outputPath(index int) string {
	if strings.Contains(d.OutPattern, "%d") {
		return fmt.Sprintf(d.OutPattern, index)
	}

	return d.OutPattern
}

// SplitBatch is the inverse of writeBatches' join: it splits a batch file's
// text back into the individual test cases that were joined into it.
func SplitBatch(text string) []string {
	return strings.Split(text, batchSeparator)
}

func fitnessViolationOf(result any) (mutate.FitnessViolation, bool) {
	switch r := result.(type) {
	case *mutate.EditResult:
		return r.FitnessViolation, true
	case *mutate.InsertResult:
		return r.FitnessViolation, true
	default:
		return mutate.FitnessNone, false
	}
}

func compilerOutcome(r compilerdriver.Result) string {
	switch {
	case r.ExitCode == compilerdriver.TimeoutExitCode:
		return "timeout"
	case r.Accepted:
		return "accept"
	default:
		return "reject"
	}
}
