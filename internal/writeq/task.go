package writeq

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/phrazzld/shelf/internal/store"
)

// RunFunc performs a task's mutation through db, which is either the plain
// store handle or the transaction the task runs in.
type RunFunc func(ctx context.Context, db store.DBTX) (any, error)

// OtherHandler turns the data of an Other payload into the function that
// applies it.
type OtherHandler func(data []byte) (RunFunc, error)

// Options tune how a task is scheduled and executed.
type Options struct {
	// NonTransactional runs the task against the plain handle instead of a
	// transaction. Ignored when the task executes as part of a batch.
	NonTransactional bool

	// Exclusive runs the task in a transaction that takes the write lock up front.
	Exclusive bool

	// Category defaults to the payload's category, or CategoryOther.
	Category Category

	// Payload makes the task durable and subject to validation.
	Payload Payload

	// SkipPersistence keeps a payload task off disk.
	SkipPersistence bool

	// Individual persists a batch-eligible payload as its own record.
	Individual bool

	Priority Priority

	// Label is carried into the task's record for diagnostics.
	Label string
}

type task struct {
	seq             uint64
	run             RunFunc
	transactional   bool
	exclusive       bool
	category        Category
	priority        Priority
	payload         Payload
	label           string
	skipPersistence bool
	individual      bool
	durableID       string
	persisted       bool
	createdAt       time.Time
	future          *Future
}

func newTask(run RunFunc, opts Options, createdAt time.Time) (*task, error) {
	c := opts.Category
	switch {
	case opts.Payload != nil:
		c = opts.Payload.Category()
	case c == "":
		c = CategoryOther
	case !c.Valid():
		return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, c)
	}
	return &task{
		run:             run,
		transactional:   !opts.NonTransactional,
		exclusive:       opts.Exclusive || (opts.Payload != nil && opts.Payload.exclusive()),
		category:        c,
		priority:        opts.Priority,
		payload:         opts.Payload,
		label:           opts.Label,
		skipPersistence: opts.SkipPersistence,
		individual:      opts.Individual,
		createdAt:       createdAt,
		future:          newFuture(),
	}, nil
}

// ownRecord reports whether the task is persisted as its own individual
// record rather than as part of a batch record.
func (t *task) ownRecord() bool {
	return t.individual || !t.category.BatchEligible()
}

// batchable reports whether the task counts toward its category's batch.
func (t *task) batchable() bool {
	return t.priority == PriorityNormal && t.category.BatchEligible()
}

func (t *task) logAttrs() []any {
	attrs := []any{
		slog.Uint64("seq", t.seq),
		slog.String("category", string(t.category)),
	}
	if t.label != "" {
		attrs = append(attrs, slog.String("label", t.label))
	}
	if t.durableID != "" {
		attrs = append(attrs, slog.String("durable_id", t.durableID))
	}
	return attrs
}

// safeRun contains a panic in run to the task that raised it.
func safeRun(ctx context.Context, run RunFunc, db store.DBTX) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return run(ctx, db)
}
