package workflow

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"ntuplesub/internal/ledger"
	"ntuplesub/internal/logging"
	"ntuplesub/internal/scheduler"
	"ntuplesub/internal/task"
	"ntuplesub/internal/tracker"
	"ntuplesub/internal/ui"
	"ntuplesub/internal/watch"
)

// Status polls the queue and the output directory. The counts are derived
// independently and are not reconciled.
func (w *Workflow) Status(ctx context.Context) (ui.StatusReport, error) {
	summary, err := w.readSummary()
	if err != nil {
		return ui.StatusReport{}, err
	}
	report := ui.StatusReport{Task: summary.TaskName, Jobs: summary.NumJobs, Resubmitted: -1}

	lines, err := task.ReadLines(w.layout.AllJobs())
	if err != nil {
		logging.SchedulerWarn("Cannot read %s: %v", w.layout.AllJobs(), err)
	}
	counts := w.sched.Query(ctx, scheduler.JobNames(lines))
	report.Pending = counts.Pending
	report.Running = counts.Running

	outDir := task.OutputDir(summary.OutDir, summary.TaskName)
	if report.Done, err = tracker.CountDone(filepath.Join(outDir, task.LogsSubdir)); err != nil {
		logging.TaskWarn("Cannot list logs: %v", err)
	}
	if report.Completed, err = tracker.CountCompleted(outDir); err != nil {
		logging.TaskWarn("Cannot list outputs: %v", err)
	}

	if ledger.Exists(w.layout.Ledger()) {
		if l, err := ledger.Open(w.layout.Ledger()); err != nil {
			logging.LedgerWarn("Submission ledger unavailable: %v", err)
		} else {
			if n, err := l.ResubmittedCount(ctx); err != nil {
				logging.LedgerWarn("%v", err)
			} else {
				report.Resubmitted = n
			}
			l.Close()
		}
	}
	return report, nil
}

// PrintStatus prints the status report between rules.
func (w *Workflow) PrintStatus(ctx context.Context) error {
	report, err := w.Status(ctx)
	if err != nil {
		return err
	}
	w.printer.Rule()
	w.printer.Printf("%s", report.Render())
	w.printer.Rule()
	return nil
}

// WatchStatus prints the status report, then again whenever the output or
// log directory changes and every interval, until ctx is done.
func (w *Workflow) WatchStatus(ctx context.Context, interval time.Duration) error {
	summary, err := w.readSummary()
	if err != nil {
		return err
	}
	if err := w.PrintStatus(ctx); err != nil {
		return err
	}

	outDir := task.OutputDir(summary.OutDir, summary.TaskName)
	dirs := []string{outDir, filepath.Join(outDir, task.LogsSubdir)}

	watcher, err := watch.New(dirs, 500*time.Millisecond, interval, func(r watch.Reason) {
		w.printer.Printf("\n[%s] %s\n", time.Now().Format("15:04:05"), strings.ToUpper(string(r)))
		if err := w.PrintStatus(ctx); err != nil {
			logging.WatchWarn("Status refresh failed: %v", err)
		}
	})
	if err != nil {
		return err
	}
	if err := watcher.Start(ctx); err != nil {
		return err
	}
	defer watcher.Stop()

	<-ctx.Done()
	return nil
}
