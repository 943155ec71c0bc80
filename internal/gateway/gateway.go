// Package gateway is the discovery/dispatch surface: it ties the registry,
// permission gate, confirmation protocol and job manager together and
// converts every outcome into the structured result shapes the wire
// contract defines. No error, panic or handler fault crosses this boundary
// raw.
package gateway

import (
	"context"
	"fmt"
	"time"

	"netgate/internal/confirm"
	"netgate/internal/jobs"
	"netgate/internal/logging"
	"netgate/internal/registry"
)

// Gateway serves a single external caller.
type Gateway struct {
	reg  *registry.Registry
	jobs *jobs.Manager

	// autoConfirm forces every mutating call down the confirmed path.
	// Set from config; the NETGATE_AUTO_CONFIRM environment variable is
	// honored at call time on top of it.
	autoConfirm bool
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithAutoConfirm enables the global auto-confirm escape hatch. This
// removes the preview safety net for unattended automation; previews are
// never computed and every mutating call executes immediately.
func WithAutoConfirm(on bool) Option {
	return func(g *Gateway) { g.autoConfirm = on }
}

// New builds a gateway over a populated registry. The job manager is owned
// by the gateway and runs every job through the same dispatch pipeline as
// synchronous calls.
func New(reg *registry.Registry, opts ...Option) *Gateway {
	g := &Gateway{reg: reg}
	for _, opt := range opts {
		opt(g)
	}
	g.jobs = jobs.NewManager(g.execute)
	return g
}

// Jobs exposes the job manager (tests and shutdown draining).
func (g *Gateway) Jobs() *jobs.Manager {
	return g.jobs
}

func (g *Gateway) autoConfirmed() bool {
	return g.autoConfirm || confirm.AutoConfirmEnv()
}

// --- discovery ---

// SchemaPair is an operation's input/output schema pair.
type SchemaPair struct {
	Input  map[string]any `json:"input"`
	Output map[string]any `json:"output,omitempty"`
}

// ToolInfo is one discovery listing.
type ToolInfo struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Schema      SchemaPair `json:"schema"`
	Category    string     `json:"category,omitempty"`
	Action      string     `json:"action,omitempty"`
	Status      string     `json:"status"`
}

// Index is the full discovery response.
type Index struct {
	Tools []ToolInfo `json:"tools"`
	Count int        `json:"count"`
}

// ToolIndex enumerates the registry. Denied and unresolved operations stay
// visible; visibility and callability are independent. Pure read: never
// triggers a lazy load.
func (g *Gateway) ToolIndex() Index {
	snapshot := g.reg.Snapshot()
	index := Index{Tools: make([]ToolInfo, 0, len(snapshot)), Count: len(snapshot)}
	for _, e := range snapshot {
		d := e.Descriptor
		index.Tools = append(index.Tools, ToolInfo{
			Name:        d.Name,
			Description: d.Description,
			Schema:      SchemaPair{Input: d.InputSchema, Output: d.OutputSchema},
			Category:    d.Category,
			Action:      string(d.Action),
			Status:      string(e.Status),
		})
	}
	return index
}

// --- dispatch ---

// CallTool invokes one operation synchronously and returns a well-formed
// result object: {success:true,data} on success, {success:false,error,code}
// on failure, or the confirmation preview payload for an unconfirmed
// mutating call. Blocks until the handler returns; there is no internal
// timeout, callers needing bounded latency set their own deadline.
func (g *Gateway) CallTool(ctx context.Context, name string, args map[string]any) map[string]any {
	payload, err := g.execute(ctx, name, args)
	if err != nil {
		return map[string]any{
			"success": false,
			"error":   err.Error(),
			"code":    string(codeFor(err)),
		}
	}
	// Preview payloads already carry the full confirmation shape.
	if m, ok := payload.(map[string]any); ok {
		if rc, ok := m["requires_confirmation"].(bool); ok && rc {
			return m
		}
	}
	return map[string]any{"success": true, "data": payload}
}

// execute is the single dispatch pipeline, shared by synchronous calls and
// background jobs: resolve (lazy-loading if needed), check the fixed
// permission status, validate arguments, apply the confirmation protocol,
// run the handler.
func (g *Gateway) execute(ctx context.Context, name string, args map[string]any) (any, error) {
	start := time.Now()
	if args == nil {
		args = map[string]any{}
	}

	entry, err := g.reg.ResolveForCall(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("%w: no tool named %q is registered", ErrUnknownOperation, name)
	}

	d := entry.Descriptor
	switch entry.Status {
	case registry.StatusDenied:
		logging.Audit(logging.AuditEvent{Type: logging.AuditPermissionDeny, Tool: name, Category: d.Category, Action: string(d.Action)})
		return nil, fmt.Errorf("%w: %s actions on category %q are not permitted", ErrPermissionDenied, d.Action, d.Category)
	case registry.StatusLoadFailed:
		return nil, entry.LoadErr
	}

	if err := validateArgs(d, args); err != nil {
		return nil, err
	}

	handler := d.Handler
	if d.Mutating() {
		switch {
		case confirm.Requested(args):
			logging.Audit(logging.AuditEvent{Type: logging.AuditConfirmExecute, Tool: name, Category: d.Category, Action: string(d.Action)})
		case g.autoConfirmed():
			logging.Audit(logging.AuditEvent{Type: logging.AuditAutoConfirm, Tool: name})
		default:
			payload, err := g.preview(ctx, entry, args)
			if err != nil {
				return nil, fmt.Errorf("%w: preview: %w", ErrHandler, err)
			}
			logging.Audit(logging.AuditEvent{Type: logging.AuditConfirmPreview, Tool: name, Category: d.Category, Action: string(d.Action)})
			return payload, nil
		}
	}

	logging.Dispatch("executing %s (category=%s action=%s)", name, d.Category, d.Action)
	result, err := handler.Execute(ctx, args)
	logging.AuditDispatch(name, d.Category, string(d.Action), time.Since(start), err)
	if err != nil {
		// Both wraps stay in the chain: codeFor prefers the more specific
		// sentinel when the handler raised one.
		return nil, fmt.Errorf("%w: %s: %w", ErrHandler, name, err)
	}
	return result, nil
}

// preview runs the handler's side-effect-free path. Handlers without a
// preview of their own get a generic payload carrying the arguments that
// would be applied.
func (g *Gateway) preview(ctx context.Context, entry *registry.Entry, args map[string]any) (any, error) {
	d := entry.Descriptor
	if d.Handler.Preview != nil {
		return d.Handler.Preview(ctx, args)
	}

	proposed := make(map[string]any, len(args))
	for k, v := range args {
		if k == "confirm" {
			continue
		}
		proposed[k] = v
	}
	return confirm.Response(string(d.Action), d.Category, "", "", map[string]any{}, proposed, nil), nil
}

// validateArgs checks the schema's required parameters.
func validateArgs(d *registry.Descriptor, args map[string]any) error {
	for _, required := range d.RequiredArgs() {
		if _, ok := args[required]; !ok {
			return fmt.Errorf("%w: missing required argument %q for %s", ErrValidation, required, d.Name)
		}
	}
	return nil
}

// --- batch ---

// BatchJobRef ties a submitted operation's input index to its job id.
type BatchJobRef struct {
	Index int    `json:"index"`
	Tool  string `json:"tool"`
	JobID string `json:"jobId"`
}

// AsyncStart submits one operation as a background job and returns its id
// immediately.
func (g *Gateway) AsyncStart(tool string, args map[string]any) map[string]any {
	id := g.jobs.Submit(tool, args)
	return map[string]any{"jobId": id}
}

// AsyncStartBatch submits each operation independently. The response
// carries exactly one job ref per input operation, index-aligned. Jobs do
// not run in any guaranteed order relative to each other.
func (g *Gateway) AsyncStartBatch(ops []jobs.Operation) map[string]any {
	ids := g.jobs.SubmitBatch(ops)
	refs := make([]BatchJobRef, len(ids))
	for i, id := range ids {
		refs[i] = BatchJobRef{Index: i, Tool: ops[i].Tool, JobID: id}
	}
	return map[string]any{"jobs": refs}
}

// AsyncStatus reads one job's state without blocking on its execution.
func (g *Gateway) AsyncStatus(jobID string) map[string]any {
	job, ok := g.jobs.Status(jobID)
	if !ok {
		return map[string]any{"jobId": jobID, "status": "unknown"}
	}
	return jobPayload(job)
}

// AsyncStatusBatch reads many jobs' states; one entry per requested id,
// request order preserved.
func (g *Gateway) AsyncStatusBatch(jobIDs []string) map[string]any {
	statuses, found := g.jobs.StatusBatch(jobIDs)
	out := make([]map[string]any, len(jobIDs))
	for i := range jobIDs {
		if !found[i] {
			out[i] = map[string]any{"jobId": jobIDs[i], "status": "unknown"}
			continue
		}
		out[i] = jobPayload(statuses[i])
	}
	return map[string]any{"jobs": out}
}

func jobPayload(job jobs.Job) map[string]any {
	payload := map[string]any{
		"jobId":  job.ID,
		"tool":   job.Tool,
		"status": string(job.Status),
	}
	if job.Status == jobs.StatusDone {
		payload["result"] = job.Result
	}
	if job.Status == jobs.StatusError {
		payload["error"] = job.Error
	}
	return payload
}
