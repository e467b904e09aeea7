// Package workflow implements the ntuplesub modes on top of the catalog,
// scheduler, tracker, merge and ledger packages.
package workflow

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"ntuplesub/internal/config"
	"ntuplesub/internal/ledger"
	"ntuplesub/internal/logging"
	"ntuplesub/internal/proxy"
	"ntuplesub/internal/runner"
	"ntuplesub/internal/scheduler"
	"ntuplesub/internal/task"
	"ntuplesub/internal/ui"
)

// Env is what every mode runs against.
type Env struct {
	Settings *config.Settings
	Exec     runner.Executor
	In       io.Reader
	Out      io.Writer
	Workdir  string
	Debug    bool

	// Answer is a preset reply to the submission prompt. Empty prompts.
	Answer ui.Answer
}

// Options are the per-invocation mode options.
type Options struct {
	Queue     string
	Time      string
	SlurmFile string
	StepTwo   bool
	Script    string
}

// Workflow runs the modes of one task.
type Workflow struct {
	env     Env
	task    *config.Task
	layout  task.Layout
	printer *ui.Printer
	sched   *scheduler.Client
}

// New binds a task configuration to an environment. The task directory is
// <workdir>/<taskname>.
func New(env Env, t *config.Task) (*Workflow, error) {
	if env.Settings == nil {
		env.Settings = config.DefaultSettings()
	}
	if env.In == nil {
		env.In = os.Stdin
	}
	if env.Out == nil {
		env.Out = os.Stdout
	}
	workdir := env.Workdir
	if workdir == "" {
		workdir = "."
	}
	abs, err := filepath.Abs(workdir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workdir: %w", err)
	}
	env.Workdir = abs

	return &Workflow{
		env:     env,
		task:    t,
		layout:  task.NewLayout(abs, t.TaskName),
		printer: ui.NewPrinter(env.Out),
		sched: &scheduler.Client{
			Exec:        env.Exec,
			QueryBinary: env.Settings.Scheduler.QueryBinary,
			Shell:       env.Settings.Scheduler.Shell,
		},
	}, nil
}

// Layout returns the task directory layout.
func (w *Workflow) Layout() task.Layout {
	return w.layout
}

// Printer returns the report printer.
func (w *Workflow) Printer() *ui.Printer {
	return w.printer
}

// CheckProxy fails when the grid proxy is missing or about to expire.
func (w *Workflow) CheckProxy(ctx context.Context) error {
	c := &proxy.Checker{
		Exec:        w.env.Exec,
		Binary:      w.env.Settings.Proxy.Binary,
		MinLifetime: w.env.Settings.Proxy.MinLifetime,
	}
	if err := c.Check(ctx); err != nil {
		return err
	}
	logging.Boot("Current proxy is long enough")
	return nil
}

func (w *Workflow) queue(o Options) string {
	if o.Queue != "" {
		return o.Queue
	}
	return w.env.Settings.Scheduler.DefaultQueue
}

func (w *Workflow) timeLimit(o Options) string {
	if o.Time != "" {
		return o.Time
	}
	return w.env.Settings.Scheduler.DefaultTime
}

func (w *Workflow) readSummary() (task.Summary, error) {
	return task.ReadSummary(w.layout.Summary())
}

// answer returns the preset reply or asks.
func (w *Workflow) answer() ui.Answer {
	if w.env.Answer != "" {
		return w.env.Answer
	}
	return w.printer.Ask(w.env.In, ui.SubmitQuestion)
}

// promptAndSubmit asks and submits either every line of allPath or the
// single test line of testPath.
func (w *Workflow) promptAndSubmit(ctx context.Context, allPath, testPath string) error {
	var path string
	switch w.answer() {
	case ui.AnswerYes:
		path = allPath
	case ui.AnswerTest:
		path = testPath
	default:
		return nil
	}
	return w.submitFile(ctx, path)
}

// submitFile submits every line of a script, recording each attempt in the
// ledger.
func (w *Workflow) submitFile(ctx context.Context, path string) error {
	lines, err := task.ReadLines(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	script := filepath.Base(path)
	w.printer.Printf("submitting %d jobs from %s ...\n", len(lines), script)

	batchID := ledger.NewBatchID()
	var onSubmit func(scheduler.Submission)
	if l, err := ledger.Open(w.layout.Ledger()); err != nil {
		logging.LedgerWarn("Submission ledger unavailable: %v", err)
	} else {
		defer l.Close()
		onSubmit = func(s scheduler.Submission) {
			_, rerr := l.Record(ctx, ledger.Entry{
				BatchID:        batchID,
				JobName:        s.JobName,
				Script:         script,
				Command:        s.Line,
				SchedulerJobID: s.JobID,
				ExitCode:       s.ExitCode,
			})
			if rerr != nil {
				logging.LedgerWarn("%v", rerr)
			}
		}
	}

	done, err := w.sched.Submit(ctx, w.layout.Dir, lines, onSubmit)
	if err != nil {
		return fmt.Errorf("%w (%d of %d jobs submitted from %s)", err, len(done), len(lines), script)
	}
	w.printer.Printf("submitted %d jobs from %s ...\n", len(done), script)
	return nil
}
