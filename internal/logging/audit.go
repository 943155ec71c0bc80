// Audit logging for dispatch decisions. Every gate verdict, confirmation
// path, and job transition is appended as a JSON line so an operator can
// reconstruct exactly what the gateway allowed, denied, and executed.
package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// AuditEventType classifies an audit event.
type AuditEventType string

const (
	// Dispatch events
	AuditDispatchStart    AuditEventType = "dispatch_start"
	AuditDispatchComplete AuditEventType = "dispatch_complete"
	AuditDispatchError    AuditEventType = "dispatch_error"

	// Permission gate events
	AuditPermissionAllow AuditEventType = "permission_allow"
	AuditPermissionDeny  AuditEventType = "permission_deny"

	// Confirmation protocol events
	AuditConfirmPreview AuditEventType = "confirm_preview"
	AuditConfirmExecute AuditEventType = "confirm_execute"
	AuditAutoConfirm    AuditEventType = "auto_confirm"

	// Job lifecycle events
	AuditJobSubmit   AuditEventType = "job_submit"
	AuditJobComplete AuditEventType = "job_complete"
	AuditJobError    AuditEventType = "job_error"

	// Registry events
	AuditLazyLoad      AuditEventType = "lazy_load"
	AuditLazyLoadError AuditEventType = "lazy_load_error"
)

// AuditEvent is a single audit record.
type AuditEvent struct {
	Timestamp  int64          `json:"ts"`
	Type       AuditEventType `json:"type"`
	Tool       string         `json:"tool,omitempty"`
	Category   string         `json:"category,omitempty"`
	Action     string         `json:"action,omitempty"`
	JobID      string         `json:"job_id,omitempty"`
	DurationMs int64          `json:"duration_ms,omitempty"`
	Error      string         `json:"error,omitempty"`
	Detail     map[string]any `json:"detail,omitempty"`
}

// AuditLogger appends audit events to a single JSONL file.
type AuditLogger struct {
	mu      sync.Mutex
	file    *os.File
	enabled bool
}

var (
	auditLogger *AuditLogger
	auditOnce   sync.Once
)

// InitAudit opens the audit log under the state directory. Safe to call
// more than once; only the first call wins.
func InitAudit(stateDir string) error {
	var initErr error
	auditOnce.Do(func() {
		if stateDir == "" {
			auditLogger = &AuditLogger{}
			return
		}
		dir := filepath.Join(stateDir, "logs")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			initErr = fmt.Errorf("failed to create audit directory: %w", err)
			auditLogger = &AuditLogger{}
			return
		}
		path := filepath.Join(dir, "audit.jsonl")
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			initErr = fmt.Errorf("failed to open audit log: %w", err)
			auditLogger = &AuditLogger{}
			return
		}
		auditLogger = &AuditLogger{file: file, enabled: true}
	})
	return initErr
}

// Audit records a single event. A no-op before InitAudit or when the audit
// file could not be opened; the gateway never fails a dispatch because the
// audit trail is unavailable.
func Audit(event AuditEvent) {
	l := auditLogger
	if l == nil || !l.enabled {
		return
	}
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.file.Write(append(data, '\n'))
}

// AuditDispatch is a shorthand for dispatch outcome events.
func AuditDispatch(tool, category, action string, duration time.Duration, err error) {
	event := AuditEvent{
		Type:       AuditDispatchComplete,
		Tool:       tool,
		Category:   category,
		Action:     action,
		DurationMs: duration.Milliseconds(),
	}
	if err != nil {
		event.Type = AuditDispatchError
		event.Error = err.Error()
	}
	Audit(event)
}

// CloseAudit closes the audit file. Used at shutdown.
func CloseAudit() {
	l := auditLogger
	if l == nil || l.file == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	_ = l.file.Close()
	l.enabled = false
}
