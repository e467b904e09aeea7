package ui

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// StatusReport is the status of one task.
type StatusReport struct {
	Task        string
	Jobs        int
	Pending     int
	Running     int
	Done        int
	Completed   int
	Resubmitted int // jobs submitted more than once; -1 when unknown
}

// Render returns the status report text.
func (r StatusReport) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Status of Task %s: (%d Jobs)\n", r.Task, r.Jobs)
	fmt.Fprintf(&b, "Jobs - Pending                : %d\n", r.Pending)
	fmt.Fprintf(&b, "     - Running                : %d\n", r.Running)
	fmt.Fprintf(&b, "     - Done (with STDOUT)     : %d\n", r.Done)
	b.WriteString("------------------------------------\n")
	fmt.Fprintf(&b, "     - Completed (has output) : %d\n", r.Completed)
	if r.Resubmitted >= 0 {
		fmt.Fprintf(&b, "     - Resubmitted (ledger)   : %d\n", r.Resubmitted)
	}
	return b.String()
}

// Table is a simple table component for rendering static data.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
}

// NewTable creates a table with the given title and headers.
func NewTable(title string, headers []string) *Table {
	return &Table{Title: title, Headers: headers}
}

// AddRow adds a row to the table.
func (t *Table) AddRow(row ...string) {
	t.Rows = append(t.Rows, row)
}

// View renders the table. An empty table renders nothing.
func (t *Table) View(styles Styles) string {
	if len(t.Rows) == 0 {
		return ""
	}

	var sb strings.Builder
	if t.Title != "" {
		sb.WriteString(styles.Title.Render(t.Title))
		sb.WriteString("\n")
	}

	colWidths := make([]int, len(t.Headers))
	for i, h := range t.Headers {
		colWidths[i] = lipgloss.Width(h)
	}
	for _, row := range t.Rows {
		for i, cell := range row {
			if i < len(colWidths) {
				colWidths[i] = max(colWidths[i], lipgloss.Width(cell))
			}
		}
	}
	// lipgloss Width includes padding
	for i := range colWidths {
		colWidths[i] += 2
	}

	headerStyle := styles.Bold.Padding(0, 1)
	rowStyle := styles.Body.Padding(0, 1)
	sepStyle := styles.Muted

	writeRow := func(cells []string, style lipgloss.Style) {
		for i := range colWidths {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			sb.WriteString(style.Width(colWidths[i]).Render(cell))
			if i < len(colWidths)-1 {
				sb.WriteString(sepStyle.Render("|"))
			}
		}
		sb.WriteString("\n")
	}

	writeRow(t.Headers, headerStyle)
	total := len(colWidths) - 1
	for _, w := range colWidths {
		total += w
	}
	sb.WriteString(sepStyle.Render(strings.Repeat("-", total)) + "\n")
	for _, row := range t.Rows {
		writeRow(row, rowStyle)
	}
	return sb.String()
}

// HistoryRow is one line of the submission history table.
type HistoryRow struct {
	JobName       string
	Attempts      int
	Failures      int
	LastJobID     string
	LastSubmitted time.Time
}

// HistoryTable builds the submission history table.
func HistoryTable(task string, rows []HistoryRow) *Table {
	t := NewTable("Submission history of "+task, []string{"Job", "Attempts", "Failed", "Last job id", "Last submitted"})
	for _, r := range rows {
		id := r.LastJobID
		if id == "" {
			id = "-"
		}
		t.AddRow(r.JobName, strconv.Itoa(r.Attempts), strconv.Itoa(r.Failures), id, r.LastSubmitted.Format("2006-01-02 15:04:05"))
	}
	return t
}

// WriteHistory renders the history table, or a note when it is empty.
func WriteHistory(out io.Writer, styles Styles, task string, rows []HistoryRow) {
	if len(rows) == 0 {
		fmt.Fprintf(out, "No submissions recorded for %s\n", task)
		return
	}
	fmt.Fprint(out, HistoryTable(task, rows).View(styles))
}
