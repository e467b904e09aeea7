package workflow

import (
	"context"
	"fmt"
	"os"

	"ntuplesub/internal/logging"
	"ntuplesub/internal/scheduler"
	"ntuplesub/internal/task"
	"ntuplesub/internal/tracker"
)

// Missing returns the job indices without output, ascending.
func (w *Workflow) Missing(ctx context.Context) ([]int, error) {
	summary, err := w.readSummary()
	if err != nil {
		return nil, err
	}
	missing, err := tracker.FindMissing(task.OutputDir(summary.OutDir, summary.TaskName), summary.NumJobs)
	if err != nil {
		return nil, fmt.Errorf("failed to list outputs: %w", err)
	}
	logging.TaskDebug("%d of %d jobs missing", len(missing), summary.NumJobs)
	return missing, nil
}

// PrintMissing prints the missing job indices comma-separated.
func (w *Workflow) PrintMissing(ctx context.Context) error {
	missing, err := w.Missing(ctx)
	if err != nil {
		return err
	}
	w.printer.Rule()
	if len(missing) == 0 {
		w.printer.Println("No missing jobs")
	} else {
		w.printer.Println(tracker.FormatIndices(missing, false))
	}
	w.printer.Rule()
	return nil
}

// Resubmit writes resubmit.sh with the alljobs.sh lines of the missing jobs
// and applies queue and time overrides to the job script. It returns the
// selected lines.
func (w *Workflow) Resubmit(ctx context.Context, o Options) ([]string, error) {
	summary, err := w.readSummary()
	if err != nil {
		return nil, err
	}
	missing, err := w.Missing(ctx)
	if err != nil {
		return nil, err
	}

	if err := os.Remove(w.layout.Resubmit()); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to remove old %s: %w", task.ResubmitFile, err)
	}

	var selected []string
	if len(missing) > 0 {
		all, err := task.ReadLines(w.layout.AllJobs())
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", task.AllJobsFile, err)
		}
		selected = scheduler.FilterByIndex(all, summary.TaskName, missing)
		logging.Task("Resubmitting %s", tracker.FormatIndices(missing, true))
	}
	if len(selected) > 0 {
		if err := task.WriteLines(w.layout.Resubmit(), selected); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", task.ResubmitFile, err)
		}
	}

	if err := task.RewriteJobScript(w.layout.JobScript(), w.queue(o), w.timeLimit(o)); err != nil {
		logging.TaskWarn("%v", err)
	}
	return selected, nil
}

// PrintResubmit runs Resubmit and reports the outcome.
func (w *Workflow) PrintResubmit(ctx context.Context, o Options) error {
	w.printer.Rule()
	selected, err := w.Resubmit(ctx, o)
	if err != nil {
		return err
	}
	if len(selected) > 0 {
		w.printer.Done(task.ResubmitFile, w.layout.Resubmit())
	} else {
		w.printer.Println("No jobs to resubmit")
	}
	w.printer.Rule()
	return nil
}
