package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/phrazzld/shelf/internal/platform/logger"
)

// TxFn is a function that executes within a database transaction.
// It receives the context and the transaction scope, and returns an error if the operation fails.
// The transaction is committed if the function returns nil, or rolled back if it returns an error.
type TxFn func(ctx context.Context, tx DBTX) error

// RunInTransaction executes the given function within a database transaction.
// If the function returns an error, the transaction is rolled back.
// Otherwise, the transaction is committed.
// The function handles rollbacks in case of panic and logs appropriate information.
func RunInTransaction(ctx context.Context, db *sql.DB, fn TxFn) error {
	log := logger.FromContext(ctx)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		log.Error("failed to begin transaction",
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			if txErr := tx.Rollback(); txErr != nil {
				log.Error("failed to roll back transaction after panic",
					slog.String("error", txErr.Error()),
					slog.Any("panic", p))
			} else {
				log.Error("rolled back transaction after panic",
					slog.Any("panic", p))
			}
			// ALLOW-PANIC: Propagating caught panic from transaction
			panic(p)
		}
	}()

	if err = fn(ctx, tx); err != nil {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			log.Error("failed to roll back transaction",
				slog.String("rollback_error", rollbackErr.Error()),
				slog.String("original_error", err.Error()))
			return fmt.Errorf(
				"error rolling back transaction: %v (original error: %w)",
				rollbackErr,
				err,
			)
		}
		log.Debug("rolled back transaction due to error",
			slog.String("error", err.Error()))
		return err
	}

	if err = tx.Commit(); err != nil {
		log.Error("failed to commit transaction",
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.Debug("transaction committed successfully")
	return nil
}

// RunInExclusiveTransaction executes fn inside a write-locking transaction
// (BEGIN IMMEDIATE) pinned to a single connection. The write lock is taken
// up front, so multi-step inserts cannot interleave with other writers.
// Commit, rollback and panic handling mirror RunInTransaction.
func RunInExclusiveTransaction(ctx context.Context, db *sql.DB, fn TxFn) error {
	log := logger.FromContext(ctx)

	conn, err := db.Conn(ctx)
	if err != nil {
		log.Error("failed to acquire connection",
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	if _, err = conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		log.Error("failed to begin exclusive transaction",
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to begin exclusive transaction: %w", err)
	}

	// Rollback must still run when ctx has been cancelled.
	rollback := func() error {
		_, err := conn.ExecContext(context.WithoutCancel(ctx), "ROLLBACK")
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			if txErr := rollback(); txErr != nil {
				log.Error("failed to roll back exclusive transaction after panic",
					slog.String("error", txErr.Error()),
					slog.Any("panic", p))
			} else {
				log.Error("rolled back exclusive transaction after panic",
					slog.Any("panic", p))
			}
			// ALLOW-PANIC: Propagating caught panic from transaction
			panic(p)
		}
	}()

	if err = fn(ctx, conn); err != nil {
		if rollbackErr := rollback(); rollbackErr != nil {
			log.Error("failed to roll back exclusive transaction",
				slog.String("rollback_error", rollbackErr.Error()),
				slog.String("original_error", err.Error()))
			return fmt.Errorf(
				"error rolling back transaction: %v (original error: %w)",
				rollbackErr,
				err,
			)
		}
		log.Debug("rolled back exclusive transaction due to error",
			slog.String("error", err.Error()))
		return err
	}

	if _, err = conn.ExecContext(ctx, "COMMIT"); err != nil {
		// A failed COMMIT (e.g. SQLITE_BUSY) leaves the transaction open.
		_ = rollback()
		log.Error("failed to commit exclusive transaction",
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.Debug("exclusive transaction committed successfully")
	return nil
}

// Handle is the durable store handle: the embedded database connection
// with its transactional execution primitives.
type Handle struct {
	db *sql.DB
}

// NewHandle wraps db.
func NewHandle(db *sql.DB) *Handle {
	return &Handle{db: db}
}

// DB returns the underlying connection for reads and non-transactional writes.
func (h *Handle) DB() DBTX {
	return h.db
}

// Transaction runs fn in a plain (deferred) transaction.
func (h *Handle) Transaction(ctx context.Context, fn TxFn) error {
	return RunInTransaction(ctx, h.db, fn)
}

// ExclusiveTransaction runs fn in a write-locking transaction.
func (h *Handle) ExclusiveTransaction(ctx context.Context, fn TxFn) error {
	return RunInExclusiveTransaction(ctx, h.db, fn)
}
