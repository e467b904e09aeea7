package runner

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"ntuplesub/internal/logging"
)

// AuditRecord is one JSON line of the execution audit log.
type AuditRecord struct {
	Type       AuditEventType    `json:"type"`
	Timestamp  time.Time         `json:"timestamp"`
	RequestID  string            `json:"request_id"`
	Command    string            `json:"command"`
	Dir        string            `json:"dir,omitempty"`
	Tags       map[string]string `json:"tags,omitempty"`
	ExitCode   *int              `json:"exit_code,omitempty"`
	DurationMs int64             `json:"duration_ms,omitempty"`
	KillReason string            `json:"kill_reason,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// NewAuditRecord flattens an event for the log.
func NewAuditRecord(e AuditEvent) AuditRecord {
	rec := AuditRecord{
		Type:      e.Type,
		Timestamp: e.Timestamp,
		RequestID: e.Command.RequestID,
		Command:   e.Command.CommandString(),
		Dir:       e.Command.WorkingDirectory,
		Tags:      e.Command.Tags,
	}
	if e.Result != nil {
		code := e.Result.ExitCode
		rec.ExitCode = &code
		rec.DurationMs = e.Result.Duration.Milliseconds()
		rec.KillReason = e.Result.KillReason
		rec.Error = e.Result.Error
	}
	return rec
}

// AuditLog appends audit events as JSON lines to a file.
type AuditLog struct {
	mu   sync.Mutex
	f    *os.File
	enc  *json.Encoder
	path string
}

// OpenAuditLog opens (or creates) an append-only audit log.
func OpenAuditLog(path string) (*AuditLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	return &AuditLog{f: f, enc: json.NewEncoder(f), path: path}, nil
}

// Path returns the log file path.
func (a *AuditLog) Path() string { return a.path }

// Record writes one event. It matches ExecutorConfig.AuditCallback.
func (a *AuditLog) Record(e AuditEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.f == nil {
		return
	}
	if err := a.enc.Encode(NewAuditRecord(e)); err != nil {
		logging.ExecWarn("Failed to write audit record: %v", err)
	}
}

// Close closes the log. Further records are dropped.
func (a *AuditLog) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.f == nil {
		return nil
	}
	err := a.f.Close()
	a.f = nil
	return err
}
