package gateway

import (
	"errors"

	"netgate/internal/registry"
)

// Dispatch error taxonomy. Every error crossing the dispatch or batch
// boundary is converted to a structured result; these sentinels drive the
// code field on that result.
var (
	// ErrUnknownOperation means the name is not in the registry.
	ErrUnknownOperation = errors.New("unknown operation")

	// ErrPermissionDenied means the category/action pair is disallowed.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrValidation means the arguments fail the operation's schema.
	ErrValidation = errors.New("invalid arguments")

	// ErrHandler wraps a failure from the domain handler itself.
	ErrHandler = errors.New("handler error")
)

// ErrorCode is the machine-readable error classification on results.
type ErrorCode string

const (
	CodeUnknownOperation ErrorCode = "unknown_operation"
	CodePermissionDenied ErrorCode = "permission_denied"
	CodeValidation       ErrorCode = "validation_error"
	CodeLoadError        ErrorCode = "load_error"
	CodeHandlerError     ErrorCode = "handler_error"
	CodeInternal         ErrorCode = "internal_error"
)

// codeFor classifies an error from the dispatch pipeline.
func codeFor(err error) ErrorCode {
	switch {
	case errors.Is(err, ErrUnknownOperation), errors.Is(err, registry.ErrNotFound):
		return CodeUnknownOperation
	case errors.Is(err, ErrPermissionDenied):
		return CodePermissionDenied
	case errors.Is(err, ErrValidation):
		return CodeValidation
	case errors.Is(err, registry.ErrLoadFailed):
		return CodeLoadError
	case errors.Is(err, ErrHandler):
		return CodeHandlerError
	}
	return CodeInternal
}
