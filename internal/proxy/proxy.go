// Package proxy checks the lifetime of the user's grid proxy before any
// mode talks to the catalog or the scheduler.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"ntuplesub/internal/logging"
	"ntuplesub/internal/runner"
)

// RenewHint is the command users run to obtain a fresh proxy.
const RenewHint = "voms-proxy-init -voms cms -valid 168:00"

var (
	ErrNoProxy       = errors.New("no grid proxy found")
	ErrProxyTooShort = errors.New("grid proxy lifetime too short")
)

// Checker queries the proxy inspector.
type Checker struct {
	Exec        runner.Executor
	Binary      string
	MinLifetime int // seconds
}

// TimeLeft returns the remaining proxy lifetime in seconds. A missing proxy,
// a failing inspector or unparsable output all count as zero.
func (c *Checker) TimeLeft(ctx context.Context) (int, error) {
	res, err := c.Exec.Execute(ctx, runner.Command{
		Binary:    c.Binary,
		Arguments: []string{"--timeleft"},
		Tags:      map[string]string{"step": "proxy"},
	})
	if err != nil {
		return 0, err
	}
	out := res.Output()
	if strings.Contains(out, "Proxy not found") {
		return 0, ErrNoProxy
	}
	if rerr := res.Err(); rerr != nil {
		logging.BootDebug("Proxy inspector failed: %v", rerr)
		return 0, ErrNoProxy
	}
	left, perr := parseTimeLeft(res.Stdout)
	if perr != nil {
		logging.BootDebug("Unparsable proxy lifetime %q: %v", res.Stdout, perr)
		return 0, nil
	}
	return left, nil
}

// Check fails unless the proxy lives at least MinLifetime seconds.
func (c *Checker) Check(ctx context.Context) error {
	left, err := c.TimeLeft(ctx)
	if err != nil {
		if errors.Is(err, ErrNoProxy) {
			return fmt.Errorf("%w, please run %s", ErrNoProxy, RenewHint)
		}
		return fmt.Errorf("proxy check failed: %w", err)
	}
	if left < c.MinLifetime {
		return fmt.Errorf("%w: %d s left (minimum %d s), please run %s",
			ErrProxyTooShort, left, c.MinLifetime, RenewHint)
	}
	logging.BootDebug("Grid proxy valid for %d s", left)
	return nil
}

// parseTimeLeft reads the last non-empty line as an integer.
func parseTimeLeft(out string) (int, error) {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	last := strings.TrimSpace(lines[len(lines)-1])
	return strconv.Atoi(last)
}
