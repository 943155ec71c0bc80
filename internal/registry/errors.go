package registry

import "errors"

// Registry errors.
var (
	// ErrNotFound is returned when an operation name is not registered.
	ErrNotFound = errors.New("operation not found")

	// ErrNameEmpty is returned when a descriptor has no name.
	ErrNameEmpty = errors.New("operation name cannot be empty")

	// ErrHandlerNil is returned when an eager registration has no handler.
	ErrHandlerNil = errors.New("operation handler cannot be nil")

	// ErrAlreadyRegistered is returned when registering a duplicate name.
	ErrAlreadyRegistered = errors.New("operation already registered")

	// ErrNoSource is returned when a deferred entry needs loading but the
	// registry has no handler source.
	ErrNoSource = errors.New("no handler source configured")

	// ErrLoadFailed wraps a lazy load failure. Cached: repeated dispatches
	// of a broken operation fail fast without re-attempting the load.
	ErrLoadFailed = errors.New("handler load failed")
)
