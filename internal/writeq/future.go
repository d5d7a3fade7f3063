package writeq

import (
	"context"
	"sync"
)

// Result is the outcome of a settled task.
type Result struct {
	// Value is whatever the task's run function returned.
	Value any

	// Skipped is set when validation found the task's effect no longer
	// needed. A skipped task is not an error.
	Skipped bool
}

// Future resolves exactly once, when its task settles.
type Future struct {
	done      chan struct{}
	once      sync.Once
	result    Result
	err       error
	durableID string
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func rejectedFuture(err error) *Future {
	f := newFuture()
	f.reject(err)
	return f
}

func (f *Future) resolve(r Result) {
	f.once.Do(func() {
		f.result = r
		close(f.done)
	})
}

func (f *Future) reject(err error) {
	f.once.Do(func() {
		f.err = err
		close(f.done)
	})
}

// Done is closed when the task has settled.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the task settles or ctx is done. Giving up on the wait
// does not cancel the task.
func (f *Future) Wait(ctx context.Context) (Result, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// DurableID is the key of the task's on-disk record, or "" when the task
// was not persisted.
func (f *Future) DurableID() string {
	return f.durableID
}

// Completed returns a Future that has already settled with r, or with err
// when err is non-nil.
func Completed(r Result, err error) *Future {
	f := newFuture()
	if err != nil {
		f.reject(err)
	} else {
		f.resolve(r)
	}
	return f
}
