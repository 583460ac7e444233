// Package mapper implements the map phase: it reads a mapper's assigned input
// files and writes R hash-partitioned intermediate files.
package mapper

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"pkg.jsn.cam/wordmill/internal/fileio"
	"pkg.jsn.cam/wordmill/internal/pool"
	"pkg.jsn.cam/wordmill/pkg/wordmill"
)

// minChunkLines is the floor for the per-task chunk size. Small inputs are not
// worth fanning out.
const minChunkLines = 256

// Mapper processes one mapper's file assignment.
type Mapper struct {
	TempDir  string
	ID       int
	Reducers int
	Bounds   wordmill.PoolBounds
	Logger   *log.Logger
}

// partitionFile serializes appends from concurrent chunk tasks into one
// intermediate file.
type partitionFile struct {
	mu  sync.Mutex
	f   *os.File
	w   *bufio.Writer
	err error
}

func (p *partitionFile) append(entries []wordmill.KeyCount) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.err != nil {
		return p.err
	}

	for _, e := range entries {
		if _, err := fmt.Fprintf(p.w, "%s: %d\n", e.Key, e.Count); err != nil {
			p.err = err
			return err
		}
	}

	return nil
}

func (p *partitionFile) close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.w != nil {
		if err := p.w.Flush(); err != nil && p.err == nil {
			p.err = err
		}
	}
	if p.f != nil {
		if err := p.f.Close(); err != nil && p.err == nil {
			p.err = err
		}
	}

	return p.err
}

// Run executes the map phase for the assigned inputs. Any partition-file or
// input-file error is fatal to the mapper.
func (m *Mapper) Run(inputFiles []string) error {
	logger := m.Logger
	if logger == nil {
		logger = log.Default()
	}

	if m.Reducers < 1 {
		return wordmill.ErrInvalidReducerCount
	}

	if err := fileio.ValidateDirectory(m.TempDir, true); err != nil {
		return fmt.Errorf("temp dir: %w", err)
	}

	// Open all R partition files up front; failing any of them aborts before
	// any input work happens.
	parts := make([]*partitionFile, m.Reducers)
	for r := 0; r < m.Reducers; r++ {
		path := filepath.Join(m.TempDir, wordmill.IntermediateFileName(m.ID, r))
		f, err := os.Create(path)
		if err != nil {
			closePartitions(parts)
			return fmt.Errorf("open partition file %s: %w", path, err)
		}
		parts[r] = &partitionFile{f: f, w: bufio.NewWriter(f)}
	}

	lines, err := m.readInputs(inputFiles)
	if err != nil {
		closePartitions(parts)
		return err
	}

	logger.Printf("[MAPPER:%d] Read %d lines from %d files", m.ID, len(lines), len(inputFiles))

	if err := m.processChunks(lines, parts, logger); err != nil {
		closePartitions(parts)
		return err
	}

	for r, part := range parts {
		if err := part.close(); err != nil {
			return fmt.Errorf("close partition %d: %w", r, err)
		}
	}

	logger.Printf("[MAPPER:%d] Map phase complete (%d partitions)", m.ID, m.Reducers)

	return nil
}

// readInputs loads all assigned input files into one line buffer. Order across
// files is insignificant; a failed read aborts the mapper.
func (m *Mapper) readInputs(inputFiles []string) ([]string, error) {
	var lines []string
	for _, path := range inputFiles {
		fileLines, err := fileio.ReadLines(path)
		if err != nil {
			return nil, fmt.Errorf("input file: %w", err)
		}
		lines = append(lines, fileLines...)
	}

	return lines, nil
}

// processChunks fans the line buffer out over the worker pool in chunks and
// appends each chunk's partitioned counts to the intermediate files.
func (m *Mapper) processChunks(lines []string, parts []*partitionFile, logger *log.Logger) error {
	if len(lines) == 0 {
		return nil
	}

	p := pool.New(m.Bounds, logger)
	threads := p.Workers()
	chunkSize := chunkSizeFor(len(lines), threads)

	var (
		errMu    sync.Mutex
		firstErr error
	)
	fail := func(err error) {
		errMu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		errMu.Unlock()
	}

	chunks := 0
	for start := 0; start < len(lines); start += chunkSize {
		end := start + chunkSize
		if end > len(lines) {
			end = len(lines)
		}

		chunk := lines[start:end]
		chunks++

		if err := p.Submit(func() {
			table := make(map[string]int)
			wordmill.CountTokens(chunk, table)

			for r, entries := range wordmill.PartitionCounts(table, m.Reducers) {
				if err := parts[r].append(entries); err != nil {
					fail(fmt.Errorf("write partition %d: %w", r, err))
					return
				}
			}
		}); err != nil {
			fail(err)
			break
		}
	}

	logger.Printf("[MAPPER:%d] Submitted %d chunks of up to %d lines across %d workers",
		m.ID, chunks, chunkSize, threads)

	p.Shutdown()

	return firstErr
}

// chunkSizeFor derives the per-task chunk size: lines spread evenly over the
// effective threads, clamped so chunks hold at least minChunkLines and the
// chunk count never exceeds threads*4.
func chunkSizeFor(totalLines, threads int) int {
	if threads < 1 {
		threads = 1
	}

	size := totalLines / threads
	if size < minChunkLines {
		size = minChunkLines
	}

	if floor := (totalLines + threads*4 - 1) / (threads * 4); size < floor {
		size = floor
	}

	return size
}

func closePartitions(parts []*partitionFile) {
	for _, part := range parts {
		if part != nil {
			part.close()
		}
	}
}
