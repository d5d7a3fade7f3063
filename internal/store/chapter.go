package store

import (
	"context"
	"time"

	"github.com/phrazzld/shelf/internal/domain"
)

// ChapterStore defines the interface for chapter data persistence.
type ChapterStore interface {
	// Create saves a new chapter and assigns its ID.
	// Returns ErrInvalidEntity if the novel does not exist.
	Create(ctx context.Context, chapter *domain.Chapter) error

	// GetByID retrieves a chapter by its ID.
	// Returns ErrChapterNotFound if the chapter does not exist.
	GetByID(ctx context.Context, id int64) (*domain.Chapter, error)

	// MarkDownloaded flags the chapter's content as stored locally.
	// Returns ErrChapterNotFound if the chapter does not exist.
	MarkDownloaded(ctx context.Context, id int64, at time.Time) error

	// WithTx returns a ChapterStore bound to the given transaction scope.
	WithTx(tx DBTX) ChapterStore
}
