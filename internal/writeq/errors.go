package writeq

import (
	"errors"
	"fmt"
)

var (
	// ErrQueueClosed is returned for work submitted after Close.
	ErrQueueClosed = errors.New("write queue is closed")

	// ErrNilRun is returned when a task has nothing to execute.
	ErrNilRun = errors.New("task has no run function")

	// ErrNoHandler is returned when an Other payload has no registered handler.
	ErrNoHandler = errors.New("no handler registered for payload kind")

	// ErrUnknownCategory is returned when decoding a payload of an unknown category.
	ErrUnknownCategory = errors.New("unknown task category")

	// ErrInvalidPayload is returned when a payload is missing required fields.
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrMalformedRecord is returned when a queue record file cannot be decoded.
	ErrMalformedRecord = errors.New("malformed queue record")

	// ErrStoresUnavailable is returned when a payload task is submitted to a
	// queue built without repositories.
	ErrStoresUnavailable = errors.New("repositories not configured")
)

// PanicError reports a panic raised by a task's run function. The panic is
// contained to that task; the queue keeps processing.
type PanicError struct {
	Value any
	Stack []byte
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("task panicked: %v", e.Value)
}
