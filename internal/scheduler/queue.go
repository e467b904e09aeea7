package scheduler

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"ntuplesub/internal/logging"
	"ntuplesub/internal/runner"
)

// QueueCounts are the states of a task's jobs as reported by the queue.
type QueueCounts struct {
	Pending int
	Running int
}

// Classify counts queue listing lines: lines containing "PD" are pending,
// lines containing " R " are running.
func Classify(listing string) QueueCounts {
	var c QueueCounts
	for _, line := range strings.Split(listing, "\n") {
		switch {
		case strings.Contains(line, "PD"):
			c.Pending++
		case strings.Contains(line, " R "):
			c.Running++
		}
	}
	return c
}

var submittedRe = regexp.MustCompile(`Submitted batch job (\d+)`)

// ParseJobID returns the scheduler job id from submission output.
func ParseJobID(out string) string {
	m := submittedRe.FindStringSubmatch(out)
	if m == nil {
		return ""
	}
	return m[1]
}

// Client talks to the batch scheduler.
type Client struct {
	Exec        runner.Executor
	QueryBinary string
	Shell       string
}

// Query lists the queued jobs with the given names. A failing query is
// logged and reported as an empty queue.
func (c *Client) Query(ctx context.Context, names []string) QueueCounts {
	if len(names) == 0 {
		return QueueCounts{}
	}
	res, err := c.Exec.Execute(ctx, runner.Command{
		Binary:    c.QueryBinary,
		Arguments: []string{"-n", strings.Join(names, ",")},
		Tags:      map[string]string{"step": "status"},
	})
	if err == nil {
		err = res.Err()
	}
	if err != nil {
		logging.SchedulerWarn("Queue query failed: %v", err)
		return QueueCounts{}
	}
	return Classify(res.Stdout)
}

// Submission is the outcome of one submitted line.
type Submission struct {
	Line     string
	JobName  string
	JobID    string
	ExitCode int
	Output   string
}

// Submit runs each line through the shell in dir, in order. The first
// failing line stops submission; the submissions made so far are returned
// with the error. onSubmit, if set, sees every attempt including the
// failing one.
func (c *Client) Submit(ctx context.Context, dir string, lines []string, onSubmit func(Submission)) ([]Submission, error) {
	var done []Submission
	for _, line := range lines {
		names := JobNames([]string{line})
		sub := Submission{Line: line}
		if len(names) == 1 {
			sub.JobName = names[0]
		}

		cmd := runner.Shell(c.Shell, line, dir)
		cmd.Tags = map[string]string{"step": "submit", "job": sub.JobName}
		res, err := c.Exec.Execute(ctx, cmd)
		if err != nil {
			return done, fmt.Errorf("failed to submit %s: %w", sub.JobName, err)
		}
		sub.ExitCode = res.ExitCode
		sub.Output = strings.TrimSpace(res.Output())
		sub.JobID = ParseJobID(res.Stdout)

		if onSubmit != nil {
			onSubmit(sub)
		}
		if rerr := res.Err(); rerr != nil {
			return done, fmt.Errorf("submission of %s failed: %w", sub.JobName, rerr)
		}
		logging.Scheduler("Submitted %s (job id %s)", sub.JobName, sub.JobID)
		done = append(done, sub)
	}
	return done, nil
}
