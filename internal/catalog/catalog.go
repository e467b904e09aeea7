// Package catalog builds per-run input file lists by querying the data
// catalog client.
package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"ntuplesub/internal/logging"
	"ntuplesub/internal/runner"
)

// Client queries the data catalog.
type Client struct {
	Exec    runner.Executor
	Binary  string
	Timeout time.Duration
}

// Query is the catalog query selecting the files of one run of a dataset.
func Query(dataset, run string) string {
	return fmt.Sprintf("file dataset=%s run=%s", dataset, run)
}

// Files lists the files of one run of a dataset.
func (c *Client) Files(ctx context.Context, dataset, run string) ([]string, error) {
	res, err := c.Exec.Execute(ctx, runner.Command{
		Binary:    c.Binary,
		Arguments: []string{"-query=" + Query(dataset, run)},
		Timeout:   c.Timeout,
		Tags:      map[string]string{"step": "catalog", "run": run},
	})
	if err != nil {
		return nil, err
	}
	if err := res.Err(); err != nil {
		return nil, err
	}
	var files []string
	for _, line := range strings.Split(res.Stdout, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			files = append(files, line)
		}
	}
	return files, nil
}

// RunList is the file list produced for one run.
type RunList struct {
	Run          string
	Path         string
	Files        int
	UsedFallback bool
}

// ListName is the file list name of a run.
func ListName(run string) string {
	return "input_run" + run + ".txt"
}

// Builder writes one file list per run into Dir.
type Builder struct {
	Client      *Client
	Dir         string
	Samples     []string
	Fallback    []string
	Parallelism int

	// OnRunDone is called after each run, from the worker goroutine.
	OnRunDone func(RunList)
}

// Build queries every run, at most Parallelism at a time, and returns the
// lists in run order. A failing query is logged and the list keeps whatever
// was collected; only a failure to write a list is returned.
func (b *Builder) Build(ctx context.Context, runs []string) ([]RunList, error) {
	limit := b.Parallelism
	if limit < 1 {
		limit = 1
	}

	results := make([]RunList, len(runs))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(limit)

	for i, run := range runs {
		eg.Go(func() error {
			rl, err := b.buildRun(egCtx, run)
			if err != nil {
				return err
			}
			results[i] = rl
			if b.OnRunDone != nil {
				b.OnRunDone(rl)
			}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (b *Builder) buildRun(ctx context.Context, run string) (RunList, error) {
	rl := RunList{Run: run, Path: filepath.Join(b.Dir, ListName(run))}

	files := b.collect(ctx, run, b.Samples)
	if len(files) == 0 && len(b.Fallback) > 0 {
		logging.CatalogDebug("Run %s: no files in primary samples, trying backup samples", run)
		files = b.collect(ctx, run, b.Fallback)
		rl.UsedFallback = true
	}
	rl.Files = len(files)

	var sb strings.Builder
	for _, f := range files {
		sb.WriteString(f)
		sb.WriteByte('\n')
	}
	if err := os.WriteFile(rl.Path, []byte(sb.String()), 0644); err != nil {
		return rl, fmt.Errorf("failed to write file list for run %s: %w", run, err)
	}
	if rl.Files == 0 {
		logging.CatalogWarn("Run %s: catalog returned no files", run)
	} else {
		logging.CatalogDebug("Run %s: %d files", run, rl.Files)
	}
	return rl, nil
}

func (b *Builder) collect(ctx context.Context, run string, datasets []string) []string {
	var files []string
	for _, ds := range datasets {
		got, err := b.Client.Files(ctx, ds, run)
		if err != nil {
			logging.CatalogWarn("Catalog query %q failed: %v", Query(ds, run), err)
			continue
		}
		files = append(files, got...)
	}
	return files
}
