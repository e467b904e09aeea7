package workflow

import (
	"context"
	"errors"
	"os"

	"ntuplesub/internal/logging"
	"ntuplesub/internal/merge"
	"ntuplesub/internal/task"
)

// Merge prepares the hadd jobs over the task outputs (or, with StepTwo,
// over the merged outputs) and offers to submit them.
func (w *Workflow) Merge(ctx context.Context, o Options) error {
	w.printer.Rule()
	summary, err := w.readSummary()
	if err != nil {
		return err
	}

	program := summary.Program
	if program == "" {
		program = w.env.Settings.Merge.Program
	}

	plan, err := merge.Prepare(w.layout, summary, merge.Options{
		StepTwo:      o.StepTwo,
		FilesPerJob:  w.env.Settings.Merge.FilesPerJob,
		Program:      program,
		Remap:        w.env.Settings.Merge.Remap,
		SubmitBinary: w.env.Settings.Scheduler.SubmitBinary,
		LogDir:       w.env.Settings.Scheduler.LogDir,
	})
	if errors.Is(err, merge.ErrNoInputs) {
		w.printer.Warn(err.Error())
		w.printer.Rule()
		return nil
	}
	if err != nil {
		return err
	}
	w.printer.Printf("%d files from %s in %d merge jobs\n", plan.Files, w.printer.Path(plan.InputDir), len(plan.Lines))

	if err := w.promptAndSubmit(ctx, w.layout.MergeAllJobs(), w.layout.MergeTestJob()); err != nil {
		return err
	}

	if !w.env.Debug {
		if err := os.Remove(w.layout.MergeJobList()); err != nil && !os.IsNotExist(err) {
			logging.TaskWarn("Failed to remove %s: %v", task.MergeJobListFile, err)
		}
	}
	w.printer.Rule()
	return nil
}
