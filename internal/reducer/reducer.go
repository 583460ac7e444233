// Package reducer implements the reduce phase: it collects one partition's
// intermediate files across all mappers, aggregates the counts, and writes the
// partition's sorted output file.
package reducer

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"pkg.jsn.cam/wordmill/internal/fileio"
	"pkg.jsn.cam/wordmill/internal/pool"
	"pkg.jsn.cam/wordmill/pkg/wordmill"
)

// aggregation chunks follow the same floor as the map phase
const minChunkPairs = 256

// Reducer processes one partition index.
type Reducer struct {
	OutputDir string
	TempDir   string
	ID        int
	Bounds    wordmill.PoolBounds
	Logger    *log.Logger

	// OutputName overrides the default result file name. Empty means
	// "result_partition{ID}.txt".
	OutputName string
}

// Run executes the reduce phase for this partition. A missing temp directory
// or an unwritable output file is fatal; an unreadable individual
// intermediate file is logged and skipped.
func (r *Reducer) Run() error {
	logger := r.Logger
	if logger == nil {
		logger = log.Default()
	}

	pairs, err := r.collect(logger)
	if err != nil {
		return err
	}

	// Sort by key so each chunk task aggregates a contiguous key range.
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Key < pairs[j].Key })

	totals := r.aggregate(pairs, logger)

	outputName := r.OutputName
	if outputName == "" {
		outputName = wordmill.DefaultPartitionPrefix + fmt.Sprint(r.ID) + wordmill.DefaultPartitionSuffix
	}
	outputPath := filepath.Join(r.OutputDir, outputName)

	if err := fileio.WriteSortedCounts(outputPath, totals); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	logger.Printf("[REDUCER:%d] Wrote %d keys to %s", r.ID, len(totals), outputPath)

	return nil
}

// collect gathers (key, count) pairs from every mapper's file for this
// partition.
func (r *Reducer) collect(logger *log.Logger) ([]wordmill.KeyCount, error) {
	entries, err := os.ReadDir(r.TempDir)
	if err != nil {
		return nil, fmt.Errorf("enumerate temp dir: %w", err)
	}

	var pairs []wordmill.KeyCount
	matched := 0
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !wordmill.IsIntermediateFor(entry.Name(), r.ID) {
			continue
		}
		matched++

		path := filepath.Join(r.TempDir, entry.Name())
		filePairs, err := fileio.ReadCounts(path, logger)
		if err != nil {
			// Missing contribution understates counts but the run completes.
			logger.Printf("[REDUCER:%d] Warning: skipping unreadable intermediate %s: %v", r.ID, path, err)
			continue
		}

		pairs = append(pairs, filePairs...)
	}

	logger.Printf("[REDUCER:%d] Collected %d pairs from %d intermediate files", r.ID, len(pairs), matched)

	return pairs, nil
}

// aggregate sums the sorted pair list into a key → total table using the
// worker pool, one contiguous slice per chunk task.
func (r *Reducer) aggregate(pairs []wordmill.KeyCount, logger *log.Logger) map[string]int {
	totals := make(map[string]int)
	if len(pairs) == 0 {
		return totals
	}

	p := pool.New(r.Bounds, logger)
	threads := p.Workers()

	chunkSize := len(pairs) / threads
	if chunkSize < minChunkPairs {
		chunkSize = minChunkPairs
	}

	var mu sync.Mutex
	for start := 0; start < len(pairs); start += chunkSize {
		end := start + chunkSize
		if end > len(pairs) {
			end = len(pairs)
		}

		chunk := pairs[start:end]
		if err := p.Submit(func() {
			local := make(map[string]int)
			for _, kc := range chunk {
				local[kc.Key] += kc.Count
			}

			mu.Lock()
			for key, count := range local {
				totals[key] += count
			}
			mu.Unlock()
		}); err != nil {
			// The pool only rejects after shutdown, which cannot happen here.
			logger.Printf("[REDUCER:%d] Submit failed: %v", r.ID, err)
		}
	}

	p.Shutdown()

	return totals
}
