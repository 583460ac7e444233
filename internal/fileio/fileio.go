// Package fileio holds the file and directory operations shared by the
// controller, mappers, and reducers: directory validation, input listing, and
// the "key: count" intermediate/output format.
package fileio

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"pkg.jsn.cam/wordmill/pkg/wordmill"
)

// ValidateDirectory verifies that path exists and is a directory. With
// createIfMissing it creates the directory (and parents) first.
func ValidateDirectory(path string, createIfMissing bool) error {
	info, err := os.Stat(path)

	switch {
	case err == nil:
		if !info.IsDir() {
			return fmt.Errorf("%w: %s", wordmill.ErrNotADirectory, path)
		}
		return nil

	case os.IsNotExist(err):
		if !createIfMissing {
			return fmt.Errorf("%w: %s", wordmill.ErrDirectoryNotFound, path)
		}
		if err := os.MkdirAll(path, 0755); err != nil {
			return fmt.Errorf("%w: %s: %v", wordmill.ErrDirectoryUnusable, path, err)
		}
		return nil

	default:
		return fmt.Errorf("stat %s: %w", path, err)
	}
}

// ListFiles enumerates the regular files in dir whose name ends with ext
// (non-recursive). The result is sorted lexicographically so that file
// distribution is deterministic across runs.
func ListFiles(dir, ext string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if ext != "" && !strings.HasSuffix(entry.Name(), ext) {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}

	sort.Strings(files)

	return files, nil
}

// ReadLines returns all lines of the file, without terminators.
func ReadLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	return lines, nil
}

// WriteSortedCounts writes one "key: count" line per table entry, ascending by
// key, replacing any existing file.
func WriteSortedCounts(path string, table map[string]int) error {
	keys := make([]string, 0, len(table))
	for key := range table {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	w := bufio.NewWriter(f)
	for _, key := range keys {
		if _, err := fmt.Fprintf(w, "%s: %d\n", key, table[key]); err != nil {
			f.Close()
			return fmt.Errorf("write %s: %w", path, err)
		}
	}

	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("flush %s: %w", path, err)
	}

	return f.Close()
}

// ParseCountLine parses one "key: count" line, tolerating surrounding
// whitespace on both sides of the colon.
func ParseCountLine(line string) (wordmill.KeyCount, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return wordmill.KeyCount{}, false
	}

	key, countStr, found := strings.Cut(trimmed, ":")
	if !found {
		return wordmill.KeyCount{}, false
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return wordmill.KeyCount{}, false
	}

	count, err := strconv.Atoi(strings.TrimSpace(countStr))
	if err != nil || count < 0 {
		return wordmill.KeyCount{}, false
	}

	return wordmill.KeyCount{Key: key, Count: count}, true
}

// ReadCounts parses "key: count" lines from the file. Malformed lines are
// logged as warnings and skipped; trailing blank lines are ignored silently.
func ReadCounts(path string, logger *log.Logger) ([]wordmill.KeyCount, error) {
	if logger == nil {
		logger = log.Default()
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var pairs []wordmill.KeyCount
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		kc, ok := ParseCountLine(line)
		if !ok {
			logger.Printf("[FILEIO] Warning: skipping malformed line %d in %s: %q", lineNo, path, line)
			continue
		}

		pairs = append(pairs, kc)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	return pairs, nil
}

// CreateEmptyFile creates (or truncates) a zero-byte file, used for the
// success marker.
func CreateEmptyFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	return f.Close()
}

// DirSize sums the sizes of the regular files directly inside dir.
func DirSize(dir string) (int64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read dir %s: %w", dir, err)
	}

	var total int64
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		total += info.Size()
	}

	return total, nil
}
