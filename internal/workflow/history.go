package workflow

import (
	"context"

	"ntuplesub/internal/ledger"
	"ntuplesub/internal/ui"
)

// History prints per-job submission attempts from the ledger.
func (w *Workflow) History(ctx context.Context) error {
	var rows []ui.HistoryRow
	if ledger.Exists(w.layout.Ledger()) {
		l, err := ledger.Open(w.layout.Ledger())
		if err != nil {
			return err
		}
		defer l.Close()

		hist, err := l.History(ctx)
		if err != nil {
			return err
		}
		for _, h := range hist {
			rows = append(rows, ui.HistoryRow{
				JobName:       h.JobName,
				Attempts:      h.Attempts,
				Failures:      h.Failures,
				LastJobID:     h.LastJobID,
				LastSubmitted: h.LastSubmitted,
			})
		}
	}
	ui.WriteHistory(w.env.Out, w.printer.Styles, w.task.TaskName, rows)
	return nil
}
