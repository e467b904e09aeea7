// Package runner executes the external programs ntuplesub drives: the grid
// proxy inspector, the data catalog client and the batch scheduler.
//
// Every invocation goes through an Executor so the modes above it can be
// exercised with a scripted Fake instead of a real cluster.
package runner

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"ntuplesub/internal/config"
)

// Command represents a command to be executed.
type Command struct {
	// Binary is the executable to run (e.g. "sbatch", "dasgoclient").
	Binary string `json:"binary"`

	// Arguments are the command-line arguments.
	Arguments []string `json:"arguments"`

	// WorkingDirectory is the directory to execute in.
	// If empty, uses the executor's default working directory.
	WorkingDirectory string `json:"working_directory,omitempty"`

	// Environment variables to set (in KEY=VALUE format), merged with the
	// allowed environment.
	Environment []string `json:"environment,omitempty"`

	// Timeout overrides the executor default when positive.
	Timeout time.Duration `json:"timeout,omitempty"`

	// RequestID uniquely identifies this execution request.
	RequestID string `json:"request_id,omitempty"`

	// Tags are arbitrary key-value pairs recorded in the audit log.
	Tags map[string]string `json:"tags,omitempty"`
}

// CommandString returns the full command as a string (for display/logging).
func (c Command) CommandString() string {
	if len(c.Arguments) == 0 {
		return c.Binary
	}
	return c.Binary + " " + strings.Join(c.Arguments, " ")
}

// Shell builds a command that runs line through shell -c in dir.
func Shell(shell, line, dir string) Command {
	return Command{
		Binary:           shell,
		Arguments:        []string{"-c", line},
		WorkingDirectory: dir,
	}
}

// ExecutionResult is the output of command execution.
type ExecutionResult struct {
	// Success indicates the process was started and waited for.
	// A command that runs but returns non-zero exit code has Success=true.
	Success bool `json:"success"`

	// ExitCode is the command's exit code (-1 if not available).
	ExitCode int `json:"exit_code"`

	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	Combined string `json:"combined"`

	Duration   time.Duration `json:"duration"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`

	// Killed indicates the command was terminated by timeout or cancellation.
	Killed     bool   `json:"killed"`
	KillReason string `json:"kill_reason,omitempty"`

	// Truncated indicates output was cut at the capture limit.
	Truncated      bool  `json:"truncated"`
	TruncatedBytes int64 `json:"truncated_bytes,omitempty"`

	// Error contains any infrastructure-level error message.
	Error string `json:"error,omitempty"`

	// Command is a copy of the command that was executed.
	Command *Command `json:"command,omitempty"`
}

// IsError returns true if the execution failed (infrastructure error).
func (r *ExecutionResult) IsError() bool {
	return !r.Success || r.Error != ""
}

// IsNonZeroExit returns true if the command ran but returned non-zero.
func (r *ExecutionResult) IsNonZeroExit() bool {
	return r.Success && r.ExitCode != 0
}

// Output returns Combined if available, otherwise Stdout+Stderr.
func (r *ExecutionResult) Output() string {
	if r.Combined != "" {
		return r.Combined
	}
	if r.Stderr == "" {
		return r.Stdout
	}
	if r.Stdout == "" {
		return r.Stderr
	}
	return r.Stdout + "\n" + r.Stderr
}

// Err folds every unsuccessful outcome into an error: infrastructure
// failure, kill, or non-zero exit.
func (r *ExecutionResult) Err() error {
	name := "command"
	if r.Command != nil {
		name = r.Command.Binary
	}
	switch {
	case r.IsError():
		return fmt.Errorf("%s failed: %s", name, r.Error)
	case r.Killed:
		return fmt.Errorf("%s killed: %s", name, r.KillReason)
	case r.ExitCode != 0:
		out := strings.TrimSpace(r.Stderr)
		if out == "" {
			out = strings.TrimSpace(r.Stdout)
		}
		if out == "" {
			return fmt.Errorf("%s exited with code %d", name, r.ExitCode)
		}
		return fmt.Errorf("%s exited with code %d: %s", name, r.ExitCode, out)
	}
	return nil
}

// AuditEventType categorizes audit events.
type AuditEventType string

const (
	AuditEventStart    AuditEventType = "start"
	AuditEventComplete AuditEventType = "complete"
	AuditEventKilled   AuditEventType = "killed"
	AuditEventError    AuditEventType = "error"
)

// AuditEvent is emitted for each stage of an execution.
type AuditEvent struct {
	Type         AuditEventType   `json:"type"`
	Timestamp    time.Time        `json:"timestamp"`
	Command      Command          `json:"command"`
	Result       *ExecutionResult `json:"result,omitempty"`
	ExecutorName string           `json:"executor_name"`
}

// ExecutorConfig is the configuration for creating executors.
type ExecutorConfig struct {
	// DefaultWorkingDir is used when Command.WorkingDirectory is empty.
	DefaultWorkingDir string `json:"default_working_dir"`

	// DefaultTimeout is used when Command.Timeout is zero.
	DefaultTimeout time.Duration `json:"default_timeout"`

	// MaxTimeout caps all timeout values.
	MaxTimeout time.Duration `json:"max_timeout"`

	// InheritEnvironment passes the whole current environment to children.
	// When false only AllowedEnvironment is passed through.
	InheritEnvironment bool `json:"inherit_environment"`

	// AllowedEnvironment lists environment variables to pass through when
	// InheritEnvironment is off.
	AllowedEnvironment []string `json:"allowed_environment"`

	// MaxOutputBytes caps output capture per stream.
	MaxOutputBytes int64 `json:"max_output_bytes"`

	// AuditCallback is called for each execution event (optional).
	AuditCallback func(AuditEvent) `json:"-"`
}

// DefaultExecutorConfig returns sensible defaults.
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		DefaultWorkingDir:  ".",
		DefaultTimeout:     2 * time.Minute,
		MaxTimeout:         30 * time.Minute,
		MaxOutputBytes:     16 * 1024 * 1024,
		InheritEnvironment: true,
		AllowedEnvironment: []string{"PATH", "HOME", "USER", "LANG", "LC_ALL"},
	}
}

// ConfigFromSettings derives the executor configuration from tool settings.
func ConfigFromSettings(s *config.Settings) ExecutorConfig {
	cfg := DefaultExecutorConfig()
	cfg.DefaultTimeout = s.GetExecutionTimeout()
	if ct := s.GetCatalogTimeout(); ct > cfg.MaxTimeout {
		cfg.MaxTimeout = ct
	}
	cfg.InheritEnvironment = !s.Execution.RestrictEnv
	if len(s.Execution.AllowedEnvVars) > 0 {
		cfg.AllowedEnvironment = append([]string(nil), s.Execution.AllowedEnvVars...)
	}
	return cfg
}

// Merge fills command defaults from the config: working directory, timeout
// (capped at MaxTimeout) and a request id.
func (c ExecutorConfig) Merge(cmd Command) Command {
	result := cmd

	if result.WorkingDirectory == "" {
		result.WorkingDirectory = c.DefaultWorkingDir
	}

	if result.Timeout <= 0 {
		result.Timeout = c.DefaultTimeout
	}
	if c.MaxTimeout > 0 && result.Timeout > c.MaxTimeout {
		result.Timeout = c.MaxTimeout
	}

	if result.RequestID == "" {
		result.RequestID = uuid.NewString()
	}

	return result
}
