package depgraph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// CorpusOptions configures AnalyzeCorpus: how many files to process before
// persisting a resumable checkpoint, where to persist it, and how many
// files to analyze concurrently.
type CorpusOptions struct {
	// CheckpointEvery is how many newly processed files trigger a
	// checkpoint write. Zero disables checkpointing.
	CheckpointEvery int
	// CheckpointDir holds the checkpoint file and is required whenever
	// CheckpointEvery is nonzero.
	CheckpointDir string
	// Workers bounds how many files are analyzed concurrently. Zero or
	// negative means unbounded (one goroutine per file).
	Workers int
}

// CorpusReport is the aggregate outcome of AnalyzeCorpus: the per-operation
// dependency edges unioned across every successfully analyzed file, the
// dialect-level reduction of each, and the files that failed along with
// their errors.
type CorpusReport struct {
	Control map[string][]string
	Data    map[string][]string

	DialectControl map[string][]string
	DialectData    map[string][]string

	Failed map[string]string
}

type checkpointFile struct {
	Control map[string][]string `json:"control"`
	Data    map[string][]string `json:"data"`
	Files   []string            `json:"files"`
}

// AnalyzeCorpus runs Analyze over every ".mlir" file in dir, merging their
// dependency edges into one report. Files that fail to analyze (malformed
// input, unresolved operands) are recorded in CorpusReport.Failed rather
// than aborting the run, matching compute_pairs.py's main(), which logs and
// continues past a single bad file in a directory-wide sweep.
//
// When opts.CheckpointEvery is nonzero, progress is periodically persisted
// as JSON under opts.CheckpointDir so a long corpus run can resume instead
// of restarting from scratch, mirroring compute_pairs.py's own
// `--cache-dir` checkpointing. Unlike a tree (internal/population.Codec),
// a checkpoint here is a handful of string-keyed maps with no cyclic
// pointers to strip, so it is written directly as JSON rather than through
// the tree-specific codec.
func AnalyzeCorpus(ctx context.Context, dir string, opts CorpusOptions) (*CorpusReport, error) {
	if opts.CheckpointEvery > 0 && opts.CheckpointDir == "" {
		return nil, errors.New("depgraph: CheckpointDir is required when CheckpointEvery > 0")
	}

	matches, err := filepath.Glob(filepath.Join(dir, "*.mlir"))
	if err != nil {
		return nil, fmt.Errorf("depgraph: glob %s: %w", dir, err)
	}

	sort.Strings(matches)

	control := map[string]map[string]struct{}{}
	data := map[string]map[string]struct{}{}
	failed := map[string]string{}
	seen := map[string]struct{}{}

	if opts.CheckpointEvery > 0 && opts.CheckpointDir != "" {
		cp, loadErr := loadLatestCheckpoint(opts.CheckpointDir)
		if loadErr != nil {
			return nil, loadErr
		}

		if cp != nil {
			mergeInto(control, cp.Control)
			mergeInto(data, cp.Data)

			for _, f := range cp.Files {
				seen[f] = struct{}{}
			}
		}
	}

	var pending []string

	for _, m := range matches {
		if _, ok := seen[m]; !ok {
			pending = append(pending, m)
		}
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = len(pending)
	}

	if workers == 0 {
		workers = 1
	}

	type fileResult struct {
		path   string
		record *DependencyRecord
		err    error
	}

	jobs := make(chan string)
	results := make(chan fileResult)

	var wg sync.WaitGroup

	for range workers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for path := range jobs {
				raw, readErr := os.ReadFile(path) //nolint:gosec // corpus directory is operator-configured
				if readErr != nil {
					results <- fileResult{path: path, err: readErr}
					continue
				}

				record, analyzeErr := Analyze(string(raw))
				results <- fileResult{path: path, record: record, err: analyzeErr}
			}
		}()
	}

	go func() {
		defer close(jobs)

		for _, path := range pending {
			select {
			case jobs <- path:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	processedSinceCheckpoint := 0

	for res := range results {
		if res.err != nil {
			failed[res.path] = res.err.Error()
		} else {
			mergeInto(control, res.record.Control)
			mergeInto(data, res.record.Data)
			seen[res.path] = struct{}{}
		}

		processedSinceCheckpoint++

		if opts.CheckpointEvery > 0 && opts.CheckpointDir != "" && processedSinceCheckpoint%opts.CheckpointEvery == 0 {
			if err := writeCheckpoint(opts.CheckpointDir, control, data, seen); err != nil {
				return nil, err
			}
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("depgraph: corpus analysis canceled: %w", err)
	}

	controlFlat := toSortedLists(control)
	dataFlat := toSortedLists(data)

	return &CorpusReport{
		Control:        controlFlat,
		Data:           dataFlat,
		DialectControl: ReduceToDialect(controlFlat),
		DialectData:    ReduceToDialect(dataFlat),
		Failed:         failed,
	}, nil
}

func mergeInto(dst map[string]map[string]struct{}, src map[string][]string) {
	for name, deps := range src {
		if _, ok := dst[name]; !ok {
			dst[name] = map[string]struct{}{}
		}

		for _, dep := range deps {
			dst[name][dep] = struct{}{}
		}
	}
}

// loadLatestCheckpoint returns the checkpoint with the highest numeric
// filename in dir, or nil if dir has no checkpoint files yet.
func loadLatestCheckpoint(dir string) (*checkpointFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("depgraph: read checkpoint dir %s: %w", dir, err)
	}

	best := -1
	bestName := ""

	for _, e := range entries {
		idx, ok := parseCheckpointIndex(e.Name())
		if !ok {
			continue
		}

		if idx > best {
			best = idx
			bestName = e.Name()
		}
	}

	if bestName == "" {
		return nil, nil
	}

	raw, err := os.ReadFile(filepath.Join(dir, bestName)) //nolint:gosec // checkpoint dir is operator-configured
	if err != nil {
		return nil, fmt.Errorf("depgraph: read checkpoint %s: %w", bestName, err)
	}

	var cp checkpointFile
	if err := json.Unmarshal(raw, &cp); err != nil {
		return nil, fmt.Errorf("depgraph: unmarshal checkpoint %s: %w", bestName, err)
	}

	return &cp, nil
}

func writeCheckpoint(dir string, control, data map[string]map[string]struct{}, seen map[string]struct{}) error {
	if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:gosec // checkpoint dir is operator-configured
		return fmt.Errorf("depgraph: create checkpoint dir %s: %w", dir, err)
	}

	files := make([]string, 0, len(seen))
	for f := range seen {
		files = append(files, f)
	}

	sort.Strings(files)

	cp := checkpointFile{
		Control: toSortedLists(control),
		Data:    toSortedLists(data),
		Files:   files,
	}

	payload, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("depgraph: marshal checkpoint: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("%d.json", len(files)))
	tmp := path + ".tmp"

	if err := os.WriteFile(tmp, payload, 0o644); err != nil { //nolint:gosec // checkpoint dir is operator-configured
		return fmt.Errorf("depgraph: write checkpoint temp file: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("depgraph: rename checkpoint into place: %w", err)
	}

	return nil
}
