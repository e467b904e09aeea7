package runner

import (
	"context"
	"strings"
	"sync"
)

// Fake is a scripted Executor. Rules are matched in registration order
// against each command; unmatched commands succeed with empty output.
// Every command is recorded.
type Fake struct {
	mu    sync.Mutex
	rules []fakeRule
	calls []Command
}

type fakeRule struct {
	match  func(Command) bool
	handle func(Command) ExecutionResult
}

// NewFake returns an empty Fake.
func NewFake() *Fake {
	return &Fake{}
}

// On registers a handler for commands accepted by match.
func (f *Fake) On(match func(Command) bool, handle func(Command) ExecutionResult) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, fakeRule{match: match, handle: handle})
	return f
}

// OnContains answers commands whose CommandString contains substr.
func (f *Fake) OnContains(substr, stdout string, exitCode int) *Fake {
	return f.On(func(c Command) bool {
		return strings.Contains(c.CommandString(), substr)
	}, func(Command) ExecutionResult {
		return ExecutionResult{Success: true, ExitCode: exitCode, Stdout: stdout}
	})
}

// OnBinary answers every command running binary.
func (f *Fake) OnBinary(binary, stdout string, exitCode int) *Fake {
	return f.On(func(c Command) bool {
		return c.Binary == binary
	}, func(Command) ExecutionResult {
		return ExecutionResult{Success: true, ExitCode: exitCode, Stdout: stdout}
	})
}

// Execute implements Executor.
func (f *Fake) Execute(_ context.Context, cmd Command) (*ExecutionResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, cmd)
	rules := append([]fakeRule(nil), f.rules...)
	f.mu.Unlock()

	res := ExecutionResult{Success: true}
	for _, r := range rules {
		if r.match(cmd) {
			res = r.handle(cmd)
			break
		}
	}
	res.Command = &cmd
	res.Combined = res.Stdout
	if res.Stderr != "" {
		res.Combined += res.Stderr
	}
	return &res, nil
}

// Calls returns the recorded commands.
func (f *Fake) Calls() []Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Command(nil), f.calls...)
}

// CallStrings returns the recorded commands rendered with CommandString.
func (f *Fake) CallStrings() []string {
	calls := f.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.CommandString()
	}
	return out
}
