package sqlite

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phrazzld/shelf/internal/store"
)

// CategoryStore implements store.CategoryStore on SQLite.
type CategoryStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewCategoryStore creates a CategoryStore over db.
func NewCategoryStore(db store.DBTX, logger *slog.Logger) *CategoryStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CategoryStore{
		db:     db,
		logger: logger.With(slog.String("component", "category_store")),
	}
}

var _ store.CategoryStore = (*CategoryStore)(nil)

// Create implements store.CategoryStore.
func (s *CategoryStore) Create(ctx context.Context, name string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO categories (name, sort) VALUES (?, (SELECT COALESCE(MAX(sort), 0) + 1 FROM categories))`, name)
	if err != nil {
		return 0, fmt.Errorf("create category: %w", MapError(err))
	}
	return res.LastInsertId()
}

// Contains implements store.CategoryStore.
func (s *CategoryStore) Contains(ctx context.Context, categoryID, novelID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM novel_categories WHERE category_id = ? AND novel_id = ?)`,
		categoryID, novelID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("category contains: %w", MapError(err))
	}
	return exists, nil
}

// AddNovel implements store.CategoryStore.
func (s *CategoryStore) AddNovel(ctx context.Context, categoryID, novelID int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO novel_categories (novel_id, category_id) VALUES (?, ?)`, novelID, categoryID)
	if err != nil {
		s.logger.Error("failed to add novel to category",
			"category_id", categoryID,
			"novel_id", novelID,
			"error", err)
		return fmt.Errorf("add novel to category: %w", MapError(err))
	}
	return nil
}

// WithTx implements store.CategoryStore.
func (s *CategoryStore) WithTx(tx store.DBTX) store.CategoryStore {
	return &CategoryStore{db: tx, logger: s.logger}
}
