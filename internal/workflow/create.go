package workflow

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"ntuplesub/internal/catalog"
	"ntuplesub/internal/config"
	"ntuplesub/internal/logging"
	"ntuplesub/internal/scheduler"
	"ntuplesub/internal/task"
	"ntuplesub/internal/ui"
)

// DefaultJobTemplate is used when neither the task nor the command line
// names a job template.
const DefaultJobTemplate = "slurm_template.sh"

// Create builds the task directory: per-run input lists from the catalog,
// the job script, the summary and the submission scripts. It then offers
// to submit.
func (w *Workflow) Create(ctx context.Context, o Options) error {
	cert, err := config.LoadCertification(w.task.Cert)
	if err != nil {
		return err
	}

	if err := w.layout.ResetFileLists(); err != nil {
		return err
	}

	runs := w.task.ResolveRuns(cert)
	w.printer.Println("Processing runs: " + strings.Join(runs, ", "))
	logging.Task("Creating task %s in %s with %d runs", w.task.TaskName, w.layout.Dir, len(runs))

	bar := ui.NewProgress(w.env.Out, "preparing job scripts", len(runs))
	builder := &catalog.Builder{
		Client: &catalog.Client{
			Exec:    w.env.Exec,
			Binary:  w.env.Settings.Catalog.Binary,
			Timeout: w.env.Settings.GetCatalogTimeout(),
		},
		Dir:         w.layout.FileLists(),
		Samples:     w.task.Sample,
		Fallback:    w.task.BackupSample.Flatten(),
		Parallelism: w.env.Settings.Catalog.Parallelism,
		OnRunDone:   func(catalog.RunList) { bar.Increment() },
	}
	runLists, err := builder.Build(ctx, runs)
	bar.Finish()
	if err != nil {
		return err
	}
	for _, rl := range runLists {
		if rl.Files == 0 {
			w.printer.Warn(fmt.Sprintf("no input files found for run %s", rl.Run))
		}
	}

	template := w.task.JobTemplate
	if o.SlurmFile != "" {
		template = o.SlurmFile
	}
	if template == "" {
		template = DefaultJobTemplate
	}
	if err := w.layout.InstallJobScript(template, w.queue(o), w.timeLimit(o)); err != nil {
		return err
	}

	certCopy, err := w.layout.CopyCertification(w.task.Cert)
	if err != nil {
		return err
	}

	summary := task.Summary{
		TaskName: w.task.TaskName,
		OutDir:   w.task.OutDir,
		NumJobs:  len(runs),
		Program:  w.task.Program,
	}
	if err := task.WriteSummary(w.layout.Summary(), summary); err != nil {
		return err
	}

	w.printer.Rule()
	w.printer.Printf("number of jobs: %d\n\n", len(runs))
	w.printer.Println("Job Script file: " + w.printer.Path(template))

	lines, err := w.writeJobScripts(certCopy)
	if err != nil {
		return err
	}
	logging.TaskDebug("Wrote %d submission lines", len(lines))

	w.printer.Println("Jobs prepared at: " + w.printer.Path(w.layout.Dir) + " as: " + w.printer.Path(task.AllJobsFile))
	w.printer.Println("or test 1 job with: " + task.TestJobFile)
	w.printer.Rule()

	if err := w.promptAndSubmit(ctx, w.layout.AllJobs(), w.layout.TestJob()); err != nil {
		return err
	}
	w.printer.Rule()
	return nil
}

// writeJobScripts writes job_list.txt, alljobs.sh and test.sh from the
// input lists present in the file list directory.
func (w *Workflow) writeJobScripts(cert string) ([]string, error) {
	lists, err := w.layout.InputLists()
	if err != nil {
		return nil, err
	}
	if err := task.WriteLines(w.layout.JobList(), lists); err != nil {
		return nil, fmt.Errorf("failed to write job list: %w", err)
	}

	lines := make([]string, 0, len(lists))
	for i, list := range lists {
		line, err := scheduler.RenderJob(scheduler.JobParams{
			Submit:       w.env.Settings.Scheduler.SubmitBinary,
			Task:         w.task.TaskName,
			Index:        scheduler.JobIndex(i + 1),
			LogDir:       w.env.Settings.Scheduler.LogDir,
			JobScript:    task.JobScriptFile,
			CMSSW:        w.task.CMSSW,
			OutDir:       task.OutputDir(w.task.OutDir, w.task.TaskName),
			DataTier:     w.task.DataTier,
			Conditions:   w.task.Conditions,
			CMSRunScript: w.task.CMSRunScript,
			Cert:         cert,
			FileList:     filepath.Join(w.layout.FileLists(), list),
		})
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}

	if err := task.WriteLines(w.layout.AllJobs(), lines); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", task.AllJobsFile, err)
	}
	// test.sh is written even when empty so that a test submission of an
	// empty task is a no-op.
	var testLines []string
	if test, ok := scheduler.TestLine(lines); ok {
		testLines = []string{test}
	}
	if err := task.WriteLines(w.layout.TestJob(), testLines); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", task.TestJobFile, err)
	}
	return lines, nil
}
