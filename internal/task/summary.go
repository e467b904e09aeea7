package task

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Summary keys.
const (
	KeyTaskName  = "Task name"
	KeyOutputDir = "Output dir"
	KeyFileLists = "Input filelists in "
	KeyTemplate  = "Slurm jobs template"
	KeyNumJobs   = "Number of jobs"
	KeyProgram   = "Program to run"
)

// ErrNoSummary is returned when a task directory has no readable summary.
var ErrNoSummary = errors.New("task summary not found, run create first")

// Summary is the task record written at create time and read by every
// other mode.
type Summary struct {
	TaskName string
	OutDir   string
	NumJobs  int
	Program  string
}

// Render returns the summary in its on-disk format.
func (s Summary) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "NTuple conversion process for %s summary\n\n", s.TaskName)
	fmt.Fprintf(&b, "%s: %s\n", KeyTaskName, s.TaskName)
	fmt.Fprintf(&b, "%s: %s\n", KeyOutputDir, s.OutDir)
	fmt.Fprintf(&b, "%s: %s/input*.txt\n", KeyFileLists, FileListDir)
	fmt.Fprintf(&b, "%s: %s\n", KeyTemplate, JobScriptFile)
	fmt.Fprintf(&b, "%s: %d\n", KeyNumJobs, s.NumJobs)
	if s.Program != "" {
		fmt.Fprintf(&b, "%s: %s\n", KeyProgram, s.Program)
	}
	return b.String()
}

// WriteSummary writes the summary file.
func WriteSummary(path string, s Summary) error {
	if err := os.WriteFile(path, []byte(s.Render()), 0644); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	return nil
}

// ParseSummary splits every line at the first ": ". Unknown keys are
// ignored.
func ParseSummary(data []byte) (Summary, error) {
	var s Summary
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		key, value, ok := strings.Cut(sc.Text(), ": ")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch key {
		case KeyTaskName:
			s.TaskName = value
		case KeyOutputDir:
			s.OutDir = value
		case KeyNumJobs:
			n, err := strconv.Atoi(value)
			if err != nil {
				return s, fmt.Errorf("invalid %s %q: %w", KeyNumJobs, value, err)
			}
			s.NumJobs = n
		case KeyProgram:
			s.Program = value
		}
	}
	if err := sc.Err(); err != nil {
		return s, err
	}
	return s, nil
}

// ReadSummary reads and parses a summary file.
func ReadSummary(path string) (Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Summary{}, fmt.Errorf("%w: %s", ErrNoSummary, path)
		}
		return Summary{}, fmt.Errorf("failed to read summary: %w", err)
	}
	s, err := ParseSummary(data)
	if err != nil {
		return s, fmt.Errorf("failed to parse summary %s: %w", path, err)
	}
	if s.TaskName == "" || s.OutDir == "" {
		return s, fmt.Errorf("%w: %s is incomplete", ErrNoSummary, path)
	}
	return s, nil
}
