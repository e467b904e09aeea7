package main

import (
	"time"

	"github.com/spf13/cobra"
)

var (
	submitScript  string
	watchStatus   bool
	watchInterval time.Duration
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Build the task directory and the submission scripts",
	Long: `Queries the catalog for every run of the task, writes one input list
per run, installs the job script with the requested queue and time limit,
writes the summary, alljobs.sh and test.sh and offers to submit.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return flow.Create(cmd.Context(), options())
	},
}

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit all jobs, or the test job, of an existing task",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		o := options()
		o.Script = submitScript
		return flow.Submit(cmd.Context(), o)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pending, running, done and completed jobs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if watchStatus {
			return flow.WatchStatus(cmd.Context(), watchInterval)
		}
		return flow.PrintStatus(cmd.Context())
	},
}

var missingCmd = &cobra.Command{
	Use:   "missing",
	Short: "List the job indices without output",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return flow.PrintMissing(cmd.Context())
	},
}

var resubmitCmd = &cobra.Command{
	Use:   "resubmit",
	Short: "Write resubmit.sh with the missing jobs",
	Long: `Writes resubmit.sh with the alljobs.sh lines of every job that has no
output yet and applies --queue and --time to the job script. Submit it with
"ntuplesub submit --script resubmit.sh".`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return flow.PrintResubmit(cmd.Context(), options())
	},
}

var haddCmd = &cobra.Command{
	Use:   "hadd",
	Short: "Prepare and submit the merge jobs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return flow.Merge(cmd.Context(), options())
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the submission attempts recorded for each job",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return flow.History(cmd.Context())
	},
}

func init() {
	submitCmd.Flags().StringVar(&submitScript, "script", "", "Script to submit, relative to the task directory (default alljobs.sh)")
	statusCmd.Flags().BoolVar(&watchStatus, "watch", false, "Refresh the report on output changes until interrupted")
	statusCmd.Flags().DurationVar(&watchInterval, "interval", time.Minute, "Periodic refresh interval with --watch")
}
