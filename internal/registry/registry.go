package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"

	"netgate/internal/logging"
	"netgate/internal/permissions"
)

// Registry is the in-memory operation catalog. Thread-safe.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Entry

	gate   Gate
	source Source

	loads singleflight.Group
}

// New creates an empty registry. source may be nil for pure eager mode.
func New(gate Gate, source Source) *Registry {
	return &Registry{
		entries: make(map[string]*Entry),
		gate:    gate,
		source:  source,
	}
}

func (r *Registry) validate(d *Descriptor) error {
	if d.Name == "" {
		return ErrNameEmpty
	}
	if _, err := permissions.ParseAction(string(d.Action)); err != nil {
		return fmt.Errorf("operation %s: %w", d.Name, err)
	}
	return nil
}

// Register adds an eagerly resolved operation. The gate is consulted
// immediately and the entry's status is fixed for the process lifetime.
func (r *Registry) Register(d *Descriptor) (*Entry, error) {
	if err := r.validate(d); err != nil {
		return nil, err
	}
	if d.Handler == nil || d.Handler.Execute == nil {
		return nil, fmt.Errorf("%w: %s", ErrHandlerNil, d.Name)
	}

	entry := &Entry{Descriptor: d, Status: StatusCallable}
	if !r.gate.Allowed(d.Category, d.Action) {
		entry.Status = StatusDenied
	}

	if err := r.insert(entry); err != nil {
		return nil, err
	}
	logging.RegistryDebug("registered %s (category=%s action=%s status=%s)", d.Name, d.Category, d.Action, entry.Status)
	return entry, nil
}

// RegisterDeferred adds a manifest-described operation without loading its
// handler. The gate is not consulted yet; that happens after the first
// dispatching resolve loads the handler.
func (r *Registry) RegisterDeferred(d *Descriptor) (*Entry, error) {
	if err := r.validate(d); err != nil {
		return nil, err
	}

	entry := &Entry{Descriptor: d, Status: StatusUnresolved}
	if err := r.insert(entry); err != nil {
		return nil, err
	}
	logging.RegistryDebug("registered %s deferred (category=%s action=%s)", d.Name, d.Category, d.Action)
	return entry, nil
}

func (r *Registry) insert(entry *Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := entry.Descriptor.Name
	if _, exists := r.entries[name]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, name)
	}
	r.entries[name] = entry
	return nil
}

// Resolve looks an operation up without triggering a lazy load. Used by
// discovery, which must be side-effect free.
func (r *Registry) Resolve(name string) (*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return entry, nil
}

// ResolveForCall looks an operation up for execution, performing the lazy
// load if the entry is still unresolved. Concurrent first callers share a
// single load; the handler is imported exactly once per name. The returned
// entry's status is fixed: callable, denied, or load_failed.
func (r *Registry) ResolveForCall(ctx context.Context, name string) (*Entry, error) {
	entry, err := r.Resolve(name)
	if err != nil {
		return nil, err
	}

	// Fast path: status already fixed, no gate re-evaluation.
	r.mu.RLock()
	status := entry.Status
	r.mu.RUnlock()
	if status != StatusUnresolved {
		return entry, nil
	}

	_, err, _ = r.loads.Do(name, func() (any, error) {
		return nil, r.load(ctx, entry)
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// load resolves the handler for a deferred entry and fixes its status.
// Callers hold no locks; exactly one load per name runs at a time via the
// singleflight group.
func (r *Registry) load(ctx context.Context, entry *Entry) error {
	r.mu.RLock()
	done := entry.Status != StatusUnresolved
	r.mu.RUnlock()
	if done {
		// A previous flight fixed the status between our fast path and Do.
		return nil
	}

	if r.source == nil {
		return ErrNoSource
	}

	d := entry.Descriptor
	handler, err := r.source.ResolveHandler(ctx, d.Name)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		entry.Status = StatusLoadFailed
		entry.LoadErr = fmt.Errorf("%w: %s: %v", ErrLoadFailed, d.Name, err)
		logging.Get(logging.CategoryRegistry).Error("lazy load of %s failed: %v", d.Name, err)
		logging.Audit(logging.AuditEvent{Type: logging.AuditLazyLoadError, Tool: d.Name, Error: err.Error()})
		return nil
	}

	d.Handler = handler
	if r.gate.Allowed(d.Category, d.Action) {
		entry.Status = StatusCallable
	} else {
		entry.Status = StatusDenied
	}
	logging.RegistryDebug("lazy loaded %s (status=%s)", d.Name, entry.Status)
	logging.Audit(logging.AuditEvent{Type: logging.AuditLazyLoad, Tool: d.Name, Category: d.Category, Action: string(d.Action)})
	return nil
}

// Snapshot returns copies of all entries sorted by name. Denied and
// unresolved entries are included; discovery visibility is independent of
// callability. Copies keep discovery readers clear of concurrent lazy-load
// status writes.
func (r *Registry) Snapshot() []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Entry, 0, len(r.entries))
	for _, e := range r.entries {
		c := *e
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Descriptor.Name < out[j].Descriptor.Name
	})
	return out
}

// Has reports whether an operation name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[name]
	return ok
}

// Len returns the number of registered operations.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// StatusOf returns the current status for an operation name.
func (r *Registry) StatusOf(name string) (Status, error) {
	entry, err := r.Resolve(name)
	if err != nil {
		return "", err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return entry.Status, nil
}
