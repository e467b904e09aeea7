// Command ntuplesub prepares, submits and tracks SLURM ntuple production
// tasks over CMS datasets.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"ntuplesub/internal/config"
	"ntuplesub/internal/logging"
	"ntuplesub/internal/runner"
	"ntuplesub/internal/task"
	"ntuplesub/internal/ui"
	"ntuplesub/internal/workflow"
)

var (
	// Global flags
	inputPath    string
	slurmFile    string
	queue        string
	jobTime      string
	stepTwo      bool
	debug        bool
	answerFlag   string
	workdir      string
	settingsPath string
	envFile      string

	// Legacy mode flags
	modeCreate   bool
	modeSubmit   bool
	modeStatus   bool
	modeMissing  bool
	modeResubmit bool
	modeHadd     bool

	// Set up by PersistentPreRunE
	flow     *workflow.Workflow
	auditLog *runner.AuditLog

	// newExecutor is replaced in tests.
	newExecutor = func(cfg runner.ExecutorConfig) runner.Executor {
		return runner.NewDirectExecutorWithConfig(cfg)
	}
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "ntuplesub",
	Short: "Prepare and submit ntuple production jobs to SLURM",
	Long: `ntuplesub turns a task configuration into one SLURM job per run.

It queries the data catalog for the files of every run, writes the
submission scripts, tracks which jobs produced output, prepares
resubmission of the missing ones and merges the outputs with hadd.

Every mode checks the grid proxy first.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if auditLog != nil {
			_ = auditLog.Close()
			auditLog = nil
		}
		logging.Sync()
	},
	RunE: runLegacyMode,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&inputPath, "input", "", "Task configuration JSON (required)")
	pf.StringVar(&slurmFile, "slurm-file", "", "Job script template (overrides job_template)")
	pf.StringVar(&queue, "queue", "", "SLURM partition (default from settings)")
	pf.StringVar(&jobTime, "time", "", "SLURM time limit HH:00:00 (default from settings)")
	pf.BoolVar(&stepTwo, "step-two", false, "Merge the already merged outputs")
	pf.BoolVar(&debug, "debug", false, "Debug logging, keep merge job lists, write the exec audit log")
	pf.StringVar(&answerFlag, "answer", "", "Answer the submission prompt: y, n or test")
	pf.StringVar(&workdir, "workdir", ".", "Directory holding the task directory")
	pf.StringVar(&settingsPath, "settings", config.DefaultSettingsPath(), "Settings YAML")
	pf.StringVar(&envFile, "env", ".env", "dotenv file loaded before NTUPLESUB_* overrides")

	f := rootCmd.Flags()
	f.BoolVar(&modeCreate, "create", false, "Same as the create command")
	f.BoolVar(&modeSubmit, "submit", false, "Same as the submit command")
	f.BoolVar(&modeStatus, "status", false, "Same as the status command")
	f.BoolVar(&modeMissing, "missing", false, "Same as the missing command")
	f.BoolVar(&modeResubmit, "resubmit", false, "Same as the resubmit command")
	f.BoolVar(&modeHadd, "hadd", false, "Same as the hadd command")
	rootCmd.MarkFlagsMutuallyExclusive("create", "submit", "status", "missing", "resubmit", "hadd")

	rootCmd.AddCommand(createCmd, submitCmd, statusCmd, missingCmd, resubmitCmd, haddCmd, historyCmd)
}

// setup loads settings and the task, builds the executor and checks the
// grid proxy.
func setup(cmd *cobra.Command, args []string) error {
	if cmd.Name() == "help" {
		return nil
	}

	settings, err := config.Load(settingsPath, envFile)
	if err != nil {
		return err
	}
	if err := logging.Initialize(logging.Config{
		Level:  settings.Logging.Level,
		Format: settings.Logging.Format,
		Debug:  debug,
	}); err != nil {
		return err
	}

	var answer ui.Answer
	if answerFlag != "" {
		if answer, err = ui.ParseAnswer(answerFlag); err != nil {
			return err
		}
	}

	t, err := config.LoadTask(inputPath)
	if err != nil {
		return err
	}
	logging.Boot("Loaded task %s from %s", t.TaskName, inputPath)

	abs, err := filepath.Abs(workdir)
	if err != nil {
		return fmt.Errorf("failed to resolve workdir: %w", err)
	}

	execCfg := runner.ConfigFromSettings(settings)
	if debug {
		auditLog, err = runner.OpenAuditLog(task.NewLayout(abs, t.TaskName).Audit())
		if err != nil {
			return err
		}
		execCfg.AuditCallback = auditLog.Record
		logging.BootDebug("Writing exec audit log to %s", auditLog.Path())
	}

	flow, err = workflow.New(workflow.Env{
		Settings: settings,
		Exec:     newExecutor(execCfg),
		In:       cmd.InOrStdin(),
		Out:      cmd.OutOrStdout(),
		Workdir:  abs,
		Debug:    debug,
		Answer:   answer,
	}, t)
	if err != nil {
		return err
	}
	return flow.CheckProxy(cmd.Context())
}

func options() workflow.Options {
	return workflow.Options{
		Queue:     queue,
		Time:      jobTime,
		SlurmFile: slurmFile,
		StepTwo:   stepTwo,
	}
}

// runLegacyMode dispatches the --create/--submit/... flags.
func runLegacyMode(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	switch {
	case modeCreate:
		return flow.Create(ctx, options())
	case modeSubmit:
		return flow.Submit(ctx, options())
	case modeStatus:
		return flow.PrintStatus(ctx)
	case modeMissing:
		return flow.PrintMissing(ctx)
	case modeResubmit:
		return flow.PrintResubmit(ctx, options())
	case modeHadd:
		return flow.Merge(ctx, options())
	}
	return cmd.Help()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
