// Package tracker derives job progress from the output directory of a task:
// which indices produced output, which are missing, and how many jobs left
// logs behind.
package tracker

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// listNames returns the entry names of dir. A missing directory is empty.
func listNames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	return names, nil
}

// OutputFiles returns the distinct entries of dir containing ".root".
func OutputFiles(dir string) ([]string, error) {
	names, err := listNames(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, n := range names {
		if strings.Contains(n, ".root") {
			out = append(out, n)
		}
	}
	return out, nil
}

// CountCompleted counts distinct output entries of dir.
func CountCompleted(dir string) (int, error) {
	files, err := OutputFiles(dir)
	return len(files), err
}

// CountDone counts log entries containing ".out" and not containing "test".
func CountDone(logDir string) (int, error) {
	names, err := listNames(logDir)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, name := range names {
		if strings.Contains(name, ".out") && !strings.Contains(name, "test") {
			n++
		}
	}
	return n, nil
}

// OutputIndex extracts the job index embedded before the extension of an
// output name: "_" and "." become field separators and the second-to-last
// field is parsed.
func OutputIndex(name string) (int, bool) {
	fields := strings.Fields(strings.NewReplacer("_", " ", ".", " ").Replace(name))
	if len(fields) < 2 {
		return 0, false
	}
	n, err := strconv.Atoi(fields[len(fields)-2])
	if err != nil {
		return 0, false
	}
	return n, true
}

// ProducedIndices returns the set of job indices that have output in dir.
func ProducedIndices(dir string) (map[int]bool, error) {
	files, err := OutputFiles(dir)
	if err != nil {
		return nil, err
	}
	produced := make(map[int]bool, len(files))
	for _, f := range files {
		if idx, ok := OutputIndex(f); ok {
			produced[idx] = true
		}
	}
	return produced, nil
}

// Missing returns {1..n} minus produced, ascending.
func Missing(n int, produced map[int]bool) []int {
	var out []int
	for i := 1; i <= n; i++ {
		if !produced[i] {
			out = append(out, i)
		}
	}
	return out
}

// FindMissing returns the job indices of a task of n jobs without output
// in dir.
func FindMissing(dir string, n int) ([]int, error) {
	produced, err := ProducedIndices(dir)
	if err != nil {
		return nil, err
	}
	return Missing(n, produced), nil
}

// FormatIndices renders indices comma-separated, zero-padded to four
// digits when pad is set.
func FormatIndices(indices []int, pad bool) string {
	parts := make([]string, len(indices))
	for i, idx := range indices {
		if pad {
			parts[i] = fmt.Sprintf("%04d", idx)
		} else {
			parts[i] = strconv.Itoa(idx)
		}
	}
	return strings.Join(parts, ",")
}
