package logging

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// The audit logger initializes once per process, so the whole lifecycle is
// exercised in a single test.
func TestAuditLifecycle(t *testing.T) {
	stateDir := t.TempDir()
	if err := InitAudit(stateDir); err != nil {
		t.Fatalf("InitAudit: %v", err)
	}

	Audit(AuditEvent{Type: AuditPermissionDeny, Tool: "netgate_delete_network", Category: "network", Action: "delete"})
	Audit(AuditEvent{Type: AuditJobSubmit, Tool: "netgate_reboot_device", JobID: "job-1"})
	AuditDispatch("netgate_list_devices", "device", "read", 5*time.Millisecond, nil)
	CloseAudit()

	f, err := os.Open(filepath.Join(stateDir, "logs", "audit.jsonl"))
	if err != nil {
		t.Fatalf("open audit log: %v", err)
	}
	defer f.Close()

	var events []AuditEvent
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e AuditEvent
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("bad audit line %q: %v", scanner.Text(), err)
		}
		events = append(events, e)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}

	if events[0].Type != AuditPermissionDeny || events[0].Category != "network" {
		t.Errorf("unexpected first event: %+v", events[0])
	}
	if events[1].JobID != "job-1" {
		t.Errorf("job id lost: %+v", events[1])
	}
	if events[2].Type != AuditDispatchComplete || events[2].DurationMs != 5 {
		t.Errorf("unexpected dispatch event: %+v", events[2])
	}
	for i, e := range events {
		if e.Timestamp == 0 {
			t.Errorf("event %d has no timestamp", i)
		}
	}
}

func TestAuditNoOpWithoutInit(t *testing.T) {
	// Must not panic even if InitAudit already ran for another directory.
	Audit(AuditEvent{Type: AuditAutoConfirm, Tool: "whatever"})
}
