// Package ledger records every submission attempt of a task in a SQLite
// database inside the task directory.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"ntuplesub/internal/logging"
)

// Entry is one submission attempt.
type Entry struct {
	ID             int64
	BatchID        string
	JobName        string
	JobIndex       int // 0 for test and unnamed jobs
	Script         string
	Command        string
	SchedulerJobID string
	ExitCode       int
	SubmittedAt    time.Time
}

// JobHistory aggregates the attempts of one job.
type JobHistory struct {
	JobName       string
	JobIndex      int
	Attempts      int
	Failures      int
	LastJobID     string
	LastSubmitted time.Time
}

// Ledger is the submission ledger of one task.
type Ledger struct {
	db     *sql.DB
	mu     sync.Mutex
	dbPath string
}

// Open creates or opens the ledger at path.
func Open(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	db.SetMaxOpenConns(1)

	l := &Ledger{db: db, dbPath: path}
	if err := l.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize ledger schema: %w", err)
	}
	logging.Ledger("Opened ledger %s", path)
	return l, nil
}

// Close closes the database connection.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Path returns the database file path.
func (l *Ledger) Path() string {
	return l.dbPath
}

func (l *Ledger) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS submissions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		batch_id TEXT NOT NULL,
		job_name TEXT NOT NULL,
		job_index INTEGER NOT NULL DEFAULT 0,
		script TEXT NOT NULL,
		command TEXT NOT NULL,
		scheduler_job_id TEXT,
		exit_code INTEGER NOT NULL,
		submitted_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_submissions_job ON submissions(job_name);
	CREATE INDEX IF NOT EXISTS idx_submissions_batch ON submissions(batch_id);
	`
	_, err := l.db.Exec(schema)
	return err
}

// NewBatchID returns an id grouping the attempts of one submit invocation.
func NewBatchID() string {
	return uuid.NewString()
}

// IndexFromJobName parses the numeric suffix of <task>_<NNNN> style names.
func IndexFromJobName(name string) int {
	i := strings.LastIndex(name, "_")
	if i < 0 {
		return 0
	}
	n, err := strconv.Atoi(name[i+1:])
	if err != nil {
		return 0
	}
	return n
}

// Record stores one attempt. A zero SubmittedAt is set to now and a zero
// JobIndex is derived from the job name.
func (l *Ledger) Record(ctx context.Context, e Entry) (int64, error) {
	if e.SubmittedAt.IsZero() {
		e.SubmittedAt = time.Now()
	}
	if e.JobIndex == 0 {
		e.JobIndex = IndexFromJobName(e.JobName)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	res, err := l.db.ExecContext(ctx, `
		INSERT INTO submissions (batch_id, job_name, job_index, script, command, scheduler_job_id, exit_code, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.BatchID, e.JobName, e.JobIndex, e.Script, e.Command, e.SchedulerJobID, e.ExitCode, e.SubmittedAt.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to record submission: %w", err)
	}
	return res.LastInsertId()
}

// Entries returns all attempts in insertion order.
func (l *Ledger) Entries(ctx context.Context) ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rows, err := l.db.QueryContext(ctx, `
		SELECT id, batch_id, job_name, job_index, script, command, COALESCE(scheduler_job_id, ''), exit_code, submitted_at
		FROM submissions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query submissions: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var ts int64
		if err := rows.Scan(&e.ID, &e.BatchID, &e.JobName, &e.JobIndex, &e.Script, &e.Command,
			&e.SchedulerJobID, &e.ExitCode, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		e.SubmittedAt = time.Unix(0, ts)
		out = append(out, e)
	}
	return out, rows.Err()
}

// History aggregates attempts per job, ordered by job index then name.
func (l *Ledger) History(ctx context.Context) ([]JobHistory, error) {
	entries, err := l.Entries(ctx)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]*JobHistory)
	for _, e := range entries {
		h, ok := byName[e.JobName]
		if !ok {
			h = &JobHistory{JobName: e.JobName, JobIndex: e.JobIndex}
			byName[e.JobName] = h
		}
		h.Attempts++
		if e.ExitCode != 0 {
			h.Failures++
		}
		if e.SchedulerJobID != "" {
			h.LastJobID = e.SchedulerJobID
		}
		h.LastSubmitted = e.SubmittedAt
	}

	out := make([]JobHistory, 0, len(byName))
	for _, h := range byName {
		out = append(out, *h)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].JobIndex != out[j].JobIndex {
			return out[i].JobIndex < out[j].JobIndex
		}
		return out[i].JobName < out[j].JobName
	})
	return out, nil
}

// ResubmittedCount is the number of jobs accepted by the scheduler more
// than once.
func (l *Ledger) ResubmittedCount(ctx context.Context) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var n int
	err := l.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM (
			SELECT job_name FROM submissions
			WHERE exit_code = 0
			GROUP BY job_name
			HAVING COUNT(*) > 1
		)`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count resubmissions: %w", err)
	}
	return n, nil
}

// Exists reports whether a ledger file is present at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
