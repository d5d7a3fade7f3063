package store

import "context"

// DefaultCategoryID is the category created with the schema.
const DefaultCategoryID int64 = 1

// CategoryStore defines the interface for library category persistence.
type CategoryStore interface {
	// Create saves a new category and returns its ID.
	// Returns ErrDuplicate if the name is taken.
	Create(ctx context.Context, name string) (int64, error)

	// Contains reports whether the novel belongs to the category.
	Contains(ctx context.Context, categoryID, novelID int64) (bool, error)

	// AddNovel puts the novel in the category. Adding twice is a no-op.
	// Returns ErrInvalidEntity if either side does not exist.
	AddNovel(ctx context.Context, categoryID, novelID int64) error

	// WithTx returns a CategoryStore bound to the given transaction scope.
	WithTx(tx DBTX) CategoryStore
}
