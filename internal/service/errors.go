package service

import (
	"errors"
	"fmt"

	"github.com/phrazzld/shelf/internal/domain"
	"github.com/phrazzld/shelf/internal/writeq"
)

// Sentinel errors callers check with errors.Is. The API layer maps them to
// status codes.
var (
	// ErrInvalidRequest indicates the caller supplied unusable input.
	// API layer should map this to HTTP 400 Bad Request.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrUnavailable indicates the write queue no longer accepts work,
	// typically during shutdown.
	// API layer should map this to HTTP 503 Service Unavailable.
	ErrUnavailable = errors.New("write queue unavailable")
)

// LibraryServiceError wraps errors from the library service with context.
type LibraryServiceError struct {
	// Operation is the operation that failed (e.g., "refresh_novel", "import_novels")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for LibraryServiceError.
func (e *LibraryServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("library service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("library service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *LibraryServiceError) Unwrap() error {
	return e.Err
}

// NewLibraryServiceError creates a new LibraryServiceError.
// Known conditions are returned as sentinels without wrapping.
func NewLibraryServiceError(operation, message string, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, writeq.ErrInvalidPayload):
		return fmt.Errorf("%w: %s", ErrInvalidRequest, message)
	case errors.Is(err, ErrUnavailable),
		errors.Is(err, writeq.ErrQueueClosed):
		return ErrUnavailable
	}

	return &LibraryServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
