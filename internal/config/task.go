package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Fatal checkpoints of the task configuration.
var (
	ErrNoInput  = errors.New("no config json specified")
	ErrNoOutdir = errors.New("no output directory specified")
	ErrNoTask   = errors.New("no task name specified")
)

// Task is the per-task JSON configuration passed with --input.
type Task struct {
	TaskName     string       `json:"taskname"`
	OutDir       string       `json:"outdir"`
	Era          string       `json:"era"`
	Cert         string       `json:"cert"`
	JobTemplate  string       `json:"job_template"`
	CMSSW        string       `json:"cmssw"`
	DataTier     string       `json:"datatier"`
	Conditions   string       `json:"conditions"`
	CMSRunScript string       `json:"cmsRun_script"`
	Program      string       `json:"program,omitempty"`
	Sample       SampleList   `json:"sample"`
	BackupSample SampleGroups `json:"backup_sample"`
	Runs         RunSelection `json:"runs"`
}

// SampleList is a dataset name or a list of dataset names.
type SampleList []string

// UnmarshalJSON accepts "X" or ["X", "Y"].
func (s *SampleList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = nil
		return nil
	}
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		if one == "" {
			*s = nil
		} else {
			*s = SampleList{one}
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("sample must be a string or a list of strings: %w", err)
	}
	*s = SampleList(many)
	return nil
}

// SampleGroups is the fallback chain used when the primary samples return
// no files: a dataset, a list of datasets, or a list whose entries are
// datasets or lists of datasets. Every dataset is queried in order.
type SampleGroups [][]string

// UnmarshalJSON accepts "X", ["X", "Y"] and ["X", ["Y", "Z"]].
func (g *SampleGroups) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*g = nil
		return nil
	}
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		if one == "" {
			*g = nil
		} else {
			*g = SampleGroups{{one}}
		}
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("backup_sample must be a string or a list: %w", err)
	}
	out := make(SampleGroups, 0, len(raw))
	for _, item := range raw {
		var list SampleList
		if err := list.UnmarshalJSON(item); err != nil {
			return fmt.Errorf("backup_sample entry: %w", err)
		}
		if len(list) > 0 {
			out = append(out, list)
		}
	}
	*g = out
	return nil
}

// Flatten returns the fallback datasets in query order.
func (g SampleGroups) Flatten() []string {
	var out []string
	for _, group := range g {
		out = append(out, group...)
	}
	return out
}

// RunSelection is either an explicit run list or "take the runs from the
// certification file" (any non-list JSON value).
type RunSelection struct {
	Explicit bool
	Runs     []string
}

// UnmarshalJSON accepts a list of numbers or strings; anything else selects
// the certification file.
func (r *RunSelection) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '[' {
		*r = RunSelection{}
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("runs: %w", err)
	}
	runs := make([]string, 0, len(raw))
	for _, item := range raw {
		dec := json.NewDecoder(bytes.NewReader(item))
		dec.UseNumber()
		var v interface{}
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("runs entry: %w", err)
		}
		switch t := v.(type) {
		case json.Number:
			if _, err := t.Int64(); err != nil {
				return fmt.Errorf("runs entry %s is not a run number", t)
			}
			runs = append(runs, t.String())
		case string:
			if _, err := strconv.Atoi(strings.TrimSpace(t)); err != nil {
				return fmt.Errorf("runs entry %q is not a run number", t)
			}
			runs = append(runs, strings.TrimSpace(t))
		default:
			return fmt.Errorf("runs entry %s is not a run number", string(item))
		}
	}
	*r = RunSelection{Explicit: true, Runs: runs}
	return nil
}

// MarshalJSON writes the explicit list, or "cert".
func (r RunSelection) MarshalJSON() ([]byte, error) {
	if !r.Explicit {
		return json.Marshal("cert")
	}
	return json.Marshal(r.Runs)
}

// LoadTask reads and validates a task configuration. Relative paths for the
// job template and certification file are resolved against the caller's
// working directory, so they stay valid after the task directory is created.
func LoadTask(path string) (*Task, error) {
	if path == "" {
		return nil, ErrNoInput
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read task config: %w", err)
	}
	var t Task
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse task config %s: %w", path, err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if t.JobTemplate != "" {
		if abs, err := filepath.Abs(t.JobTemplate); err == nil {
			t.JobTemplate = abs
		}
	}
	if t.Cert != "" {
		if abs, err := filepath.Abs(t.Cert); err == nil {
			t.Cert = abs
		}
	}
	return &t, nil
}

// Validate checks the fields every mode depends on.
func (t *Task) Validate() error {
	if t.TaskName == "" {
		return ErrNoTask
	}
	if strings.ContainsAny(t.TaskName, "/ \t") {
		return fmt.Errorf("task name %q must not contain slashes or spaces", t.TaskName)
	}
	if t.OutDir == "" {
		return ErrNoOutdir
	}
	return nil
}
