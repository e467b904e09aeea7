package task

import (
	"fmt"
	"os"
	"regexp"
)

// Scheduler directive defaults baked into job templates.
const (
	DefaultQueue = "standard"
	DefaultTime  = "12:00:00"
)

var (
	partitionDirective = regexp.MustCompile(`#SBATCH --partition=standard\b`)
	timeDirective      = regexp.MustCompile(`#SBATCH --time=\d+:00:00\b`)
)

// RewriteDirectives replaces the default partition and time directives of a
// job script when queue or time differ from the defaults.
func RewriteDirectives(script []byte, queue, time string) []byte {
	if queue != "" && queue != DefaultQueue {
		script = partitionDirective.ReplaceAllLiteral(script, []byte("#SBATCH --partition="+queue))
	}
	if time != "" && time != DefaultTime {
		script = timeDirective.ReplaceAllLiteral(script, []byte("#SBATCH --time="+time))
	}
	return script
}

// RewriteJobScript applies RewriteDirectives to a script file in place.
func RewriteJobScript(path, queue, time string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat job script: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read job script: %w", err)
	}
	out := RewriteDirectives(data, queue, time)
	if err := os.WriteFile(path, out, info.Mode().Perm()); err != nil {
		return fmt.Errorf("failed to write job script: %w", err)
	}
	return nil
}

// InstallJobScript copies the job template into the task directory and
// applies the queue and time overrides.
func (l Layout) InstallJobScript(template, queue, time string) error {
	if template == "" {
		return fmt.Errorf("no job template specified")
	}
	if err := CopyFile(template, l.JobScript()); err != nil {
		return fmt.Errorf("failed to copy job template: %w", err)
	}
	return RewriteJobScript(l.JobScript(), queue, time)
}
