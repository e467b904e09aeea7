package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
)

// ErrNoCertification is returned when a task has no certification file.
var ErrNoCertification = errors.New("no certification json provided, this is not supported anymore")

// Certification is a golden-JSON run certification: run number to the list
// of certified luminosity-section ranges.
type Certification map[string][][2]int

// LoadCertification reads a certification file.
func LoadCertification(path string) (Certification, error) {
	if path == "" {
		return nil, ErrNoCertification
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNoCertification, path)
		}
		return nil, fmt.Errorf("failed to read certification: %w", err)
	}
	var c Certification
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse certification %s: %w", path, err)
	}
	return c, nil
}

// Runs returns the certified runs in ascending numeric order.
func (c Certification) Runs() []string {
	runs := make([]string, 0, len(c))
	for run := range c {
		runs = append(runs, run)
	}
	sort.Slice(runs, func(i, j int) bool {
		a, errA := strconv.Atoi(runs[i])
		b, errB := strconv.Atoi(runs[j])
		if errA != nil || errB != nil {
			return runs[i] < runs[j]
		}
		return a < b
	})
	return runs
}

// ResolveRuns returns the runs a task processes: its explicit list, or the
// certified runs.
func (t *Task) ResolveRuns(c Certification) []string {
	if t.Runs.Explicit {
		return append([]string(nil), t.Runs.Runs...)
	}
	return c.Runs()
}
