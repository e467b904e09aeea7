// Package merge prepares hadd jobs over the outputs of a task: it lists the
// produced files, remaps their storage prefix to a remote-access URL,
// groups them and writes the merge file lists and submission scripts.
package merge

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"ntuplesub/internal/config"
	"ntuplesub/internal/logging"
	"ntuplesub/internal/scheduler"
	"ntuplesub/internal/task"
)

// ErrNoInputs is returned when there is nothing to merge.
var ErrNoInputs = errors.New("no output files to merge")

// Remap rewrites the first matching storage prefix of path.
func Remap(path string, remaps []config.PrefixRemap) string {
	for _, r := range remaps {
		if r.From != "" && strings.HasPrefix(path, r.From) {
			return r.To + strings.TrimPrefix(path, r.From)
		}
	}
	return path
}

// Inputs lists the files to merge in dir. Stage one takes every entry
// containing ".root"; stage two only the previously merged ones.
func Inputs(dir string, stepTwo bool, remaps []config.PrefixRemap) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		name := e.Name()
		if !strings.Contains(name, ".root") {
			continue
		}
		if stepTwo && !strings.Contains(name, "merged") {
			continue
		}
		files = append(files, Remap(filepath.Join(dir, name), remaps))
	}
	return files, nil
}

// Chunk splits files into consecutive groups of at most size.
func Chunk(files []string, size int) [][]string {
	if size < 1 {
		size = 1
	}
	var groups [][]string
	for start := 0; start < len(files); start += size {
		end := min(start+size, len(files))
		groups = append(groups, files[start:end])
	}
	return groups
}

// Options configure one merge preparation.
type Options struct {
	StepTwo      bool
	FilesPerJob  int
	Program      string
	Remap        []config.PrefixRemap
	SubmitBinary string
	LogDir       string
}

// Plan is a prepared merge stage.
type Plan struct {
	InputDir  string
	OutputDir string
	Files     int
	Lists     []string
	Lines     []string
	TestLine  string
}

// Prepare writes the merge file lists, merging_job_list.txt,
// merging_alljobs.sh and merging_test.sh of a task.
func Prepare(layout task.Layout, summary task.Summary, opts Options) (*Plan, error) {
	outDir := task.OutputDir(summary.OutDir, summary.TaskName)
	if opts.StepTwo {
		outDir = filepath.Join(outDir, task.MergedSubdir)
	}
	plan := &Plan{InputDir: outDir, OutputDir: outDir}

	if err := os.MkdirAll(layout.FileLists(), 0755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", layout.FileLists(), err)
	}
	if err := layout.RemoveMergeLists(); err != nil {
		return nil, fmt.Errorf("failed to remove previous merge lists: %w", err)
	}

	files, err := Inputs(plan.InputDir, opts.StepTwo, opts.Remap)
	if err != nil {
		return nil, err
	}
	plan.Files = len(files)
	if len(files) == 0 {
		return plan, fmt.Errorf("%w in %s", ErrNoInputs, plan.InputDir)
	}

	groups := Chunk(files, opts.FilesPerJob)
	logging.Merge("Merging %d files from %s in %d jobs", len(files), plan.InputDir, len(groups))

	var names []string
	for i, group := range groups {
		idx := i + 1
		list := layout.MergeList(idx)
		if err := task.WriteLines(list, group); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", list, err)
		}
		plan.Lists = append(plan.Lists, list)
		names = append(names, filepath.Base(list))

		line, err := scheduler.RenderMerge(scheduler.MergeParams{
			Submit:    opts.SubmitBinary,
			Task:      summary.TaskName,
			Index:     scheduler.JobIndex(idx),
			LogDir:    opts.LogDir,
			JobScript: task.JobScriptFile,
			FileList:  list,
			OutDir:    plan.OutputDir,
			Program:   opts.Program,
		})
		if err != nil {
			return nil, err
		}
		plan.Lines = append(plan.Lines, line)
	}

	if err := task.WriteLines(layout.MergeJobList(), names); err != nil {
		return nil, fmt.Errorf("failed to write merge job list: %w", err)
	}
	if err := task.WriteLines(layout.MergeAllJobs(), plan.Lines); err != nil {
		return nil, fmt.Errorf("failed to write merge jobs: %w", err)
	}
	plan.TestLine, _ = scheduler.TestLine(plan.Lines)
	if err := task.WriteLines(layout.MergeTestJob(), []string{plan.TestLine}); err != nil {
		return nil, fmt.Errorf("failed to write merge test job: %w", err)
	}
	logging.MergeDebug("Wrote %s and %s", layout.MergeAllJobs(), layout.MergeTestJob())
	return plan, nil
}
