// Package registry holds the operation catalog: one descriptor per tool
// name, populated either eagerly (handlers resolved at startup) or lazily
// (descriptors from a manifest, handler code resolved on first dispatch).
//
// The permission gate is consulted exactly once per entry, at the point the
// handler becomes resident; the resulting status is fixed for the process
// lifetime. Lazy loads are single-flight: concurrent first dispatches of
// the same tool share one load.
package registry

import (
	"context"

	"netgate/internal/permissions"
)

// ExecuteFunc runs an operation. args is the decoded JSON argument object.
type ExecuteFunc func(ctx context.Context, args map[string]any) (any, error)

// Handler is the resident executable for an operation. Preview is the
// side-effect-free path used by the confirmation protocol; it is nil for
// non-mutating operations.
type Handler struct {
	Execute ExecuteFunc
	Preview ExecuteFunc
}

// Descriptor describes one operation. Immutable once registered, except
// for Handler which is attached by the lazy load path.
type Descriptor struct {
	Name         string
	Description  string
	Category     string
	Action       permissions.Action
	InputSchema  map[string]any
	OutputSchema map[string]any

	// Handler is resident for eager registrations and nil for deferred
	// ones until the first dispatching resolve.
	Handler *Handler
}

// Mutating reports whether the operation changes external state.
// Derived, never stored: any action other than read mutates.
func (d *Descriptor) Mutating() bool {
	return d.Action != permissions.ActionRead
}

// RequiredArgs returns the schema's required parameter names.
func (d *Descriptor) RequiredArgs() []string {
	raw, ok := d.InputSchema["required"]
	if !ok {
		return nil
	}
	switch req := raw.(type) {
	case []string:
		return req
	case []any:
		out := make([]string, 0, len(req))
		for _, v := range req {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Status is an entry's registration state.
type Status string

const (
	// StatusCallable means the handler is resident and the gate allowed it.
	StatusCallable Status = "callable"

	// StatusDenied means the gate rejected the category/action pair. The
	// entry stays visible to discovery but rejects dispatch.
	StatusDenied Status = "denied"

	// StatusUnresolved means the descriptor came from a manifest and the
	// handler has not been loaded yet (lazy mode).
	StatusUnresolved Status = "unresolved"

	// StatusLoadFailed means a lazy load failed. Permanent for this
	// process run; dispatch fails fast instead of retrying the import.
	StatusLoadFailed Status = "load_failed"
)

// Entry wraps a descriptor with its registration state.
type Entry struct {
	Descriptor *Descriptor
	Status     Status

	// LoadErr holds the load failure when Status is StatusLoadFailed.
	LoadErr error
}

// Callable reports whether dispatch may invoke this entry.
func (e *Entry) Callable() bool {
	return e.Status == StatusCallable
}

// Source resolves handlers by operation name. Implementations: the
// built-in handler set and the yaegi script source.
type Source interface {
	// ResolveHandler returns the executable for the named operation. An
	// error marks the operation load-failed for the rest of the process.
	ResolveHandler(ctx context.Context, name string) (*Handler, error)
}

// Gate is the slice of the permission gate the registry needs.
type Gate interface {
	Allowed(category string, action permissions.Action) bool
}
