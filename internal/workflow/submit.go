package workflow

import (
	"context"
	"path/filepath"
)

// Submit offers to submit script (alljobs.sh when empty) or the test job.
func (w *Workflow) Submit(ctx context.Context, o Options) error {
	all := w.layout.AllJobs()
	switch {
	case o.Script == "":
	case filepath.IsAbs(o.Script):
		all = o.Script
	default:
		all = filepath.Join(w.layout.Dir, o.Script)
	}
	w.printer.Rule()
	if err := w.promptAndSubmit(ctx, all, w.layout.TestJob()); err != nil {
		return err
	}
	w.printer.Rule()
	return nil
}
