// Package jobs tracks asynchronously executing operation invocations.
//
// Jobs live only in process memory: nothing survives a restart, and a
// started job cannot be cancelled from outside. Both are deliberate scope
// limits of the gateway, not oversights. Callers needing bounded latency
// on synchronous dispatch impose their own deadline at the transport edge.
package jobs

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"netgate/internal/logging"
)

// Status is a job's lifecycle state. Transitions are one-directional:
// pending -> running -> done|error. Only the goroutine owning a job writes
// its entry after submission.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusError   Status = "error"
)

// Terminal reports whether a status is final.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusError
}

// Job is one tracked invocation. Arguments are snapshotted at submission
// and immutable afterwards.
type Job struct {
	ID          string         `json:"jobId"`
	Tool        string         `json:"tool"`
	Arguments   map[string]any `json:"arguments,omitempty"`
	Status      Status         `json:"status"`
	Result      any            `json:"result,omitempty"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	CompletedAt time.Time      `json:"completed_at,omitempty"`
}

// Runner executes one operation through the full dispatch pipeline
// (registry resolution, permission gate, confirmation, handler).
type Runner func(ctx context.Context, tool string, args map[string]any) (any, error)

// Operation is one (tool, arguments) pair in a batch submission.
type Operation struct {
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments"`
}

// Manager owns the in-memory job map and the goroutines executing jobs.
type Manager struct {
	mu   sync.RWMutex
	jobs map[string]*Job

	run Runner
	wg  sync.WaitGroup
}

// NewManager creates a manager that executes jobs through run.
func NewManager(run Runner) *Manager {
	return &Manager{
		jobs: make(map[string]*Job),
		run:  run,
	}
}

// Submit starts one operation in the background and returns its job id
// immediately. The job runs on a fresh background context: once started it
// outlives the submitting request and cannot be cancelled.
func (m *Manager) Submit(tool string, args map[string]any) string {
	id := uuid.NewString()

	snapshot := make(map[string]any, len(args))
	for k, v := range args {
		snapshot[k] = v
	}

	job := &Job{
		ID:        id,
		Tool:      tool,
		Arguments: snapshot,
		Status:    StatusPending,
		CreatedAt: time.Now(),
	}

	m.mu.Lock()
	m.jobs[id] = job
	m.mu.Unlock()

	logging.Jobs("job %s submitted for %s", id, tool)
	logging.Audit(logging.AuditEvent{Type: logging.AuditJobSubmit, Tool: tool, JobID: id})

	m.wg.Add(1)
	go m.execute(job)

	return id
}

// SubmitBatch starts each operation independently and returns job ids in
// input order: ids[i] always corresponds to ops[i]. No ordering is
// guaranteed between the jobs themselves.
func (m *Manager) SubmitBatch(ops []Operation) []string {
	ids := make([]string, len(ops))
	for i, op := range ops {
		ids[i] = m.Submit(op.Tool, op.Arguments)
	}
	return ids
}

// execute owns the job's entry from here on: it is the only writer.
func (m *Manager) execute(job *Job) {
	defer m.wg.Done()

	// A handler panic becomes a structured job error; it must never take
	// down the manager or any sibling job.
	defer func() {
		if r := recover(); r != nil {
			logging.Get(logging.CategoryJobs).Error("job %s panicked: %v\n%s", job.ID, r, debug.Stack())
			m.complete(job, nil, fmt.Errorf("handler panic: %v", r))
		}
	}()

	m.transition(job, StatusRunning)

	result, err := m.run(context.Background(), job.Tool, job.Arguments)
	m.complete(job, result, err)
}

func (m *Manager) transition(job *Job, status Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job.Status = status
}

func (m *Manager) complete(job *Job, result any, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job.Status.Terminal() {
		// Already completed; the recover path may race a normal
		// completion only if complete itself panicked, so keep the
		// first terminal state.
		return
	}
	job.CompletedAt = time.Now()
	if err != nil {
		job.Status = StatusError
		job.Error = err.Error()
		logging.Jobs("job %s failed: %v", job.ID, err)
		logging.Audit(logging.AuditEvent{Type: logging.AuditJobError, Tool: job.Tool, JobID: job.ID, Error: err.Error()})
		return
	}
	job.Status = StatusDone
	job.Result = result
	logging.Jobs("job %s done", job.ID)
	logging.Audit(logging.AuditEvent{Type: logging.AuditJobComplete, Tool: job.Tool, JobID: job.ID})
}

// Status returns a copy of the job, so callers can never mutate the live
// entry. The read never blocks on job execution.
func (m *Manager) Status(id string) (Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// StatusBatch returns one entry per requested id, in request order.
// Unknown ids yield a Job with empty status and ok=false semantics folded
// into the returned found slice.
func (m *Manager) StatusBatch(ids []string) ([]Job, []bool) {
	out := make([]Job, len(ids))
	found := make([]bool, len(ids))
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i, id := range ids {
		if job, ok := m.jobs[id]; ok {
			out[i] = *job
			found[i] = true
		}
	}
	return out, found
}

// Len returns the number of tracked jobs (all states; jobs are never
// deleted within a process lifetime).
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.jobs)
}

// Wait blocks until every submitted job has reached a terminal state.
// Used by tests and by graceful shutdown to drain in-flight work.
func (m *Manager) Wait() {
	m.wg.Wait()
}
