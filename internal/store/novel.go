package store

import (
	"context"
	"time"

	"github.com/phrazzld/shelf/internal/domain"
)

// NovelStore defines the interface for novel data persistence.
type NovelStore interface {
	// Create saves a new novel and assigns its ID.
	// Returns ErrNovelExists if a novel with the same plugin and path exists.
	Create(ctx context.Context, novel *domain.Novel) error

	// GetByID retrieves a novel by its ID.
	// Returns ErrNovelNotFound if the novel does not exist.
	GetByID(ctx context.Context, id int64) (*domain.Novel, error)

	// GetByPath retrieves a novel by its source plugin and path.
	// Returns ErrNovelNotFound if the novel does not exist.
	GetByPath(ctx context.Context, pluginID, path string) (*domain.Novel, error)

	// Update applies the set fields of u and stamps the novel as modified at at.
	// Returns ErrNovelNotFound if the novel does not exist.
	Update(ctx context.Context, id int64, u domain.NovelUpdate, at time.Time) error

	// SetInLibrary marks the novel as (not) belonging to the library.
	// Returns ErrNovelNotFound if the novel does not exist.
	SetInLibrary(ctx context.Context, id int64, inLibrary bool) error

	// WithTx returns a NovelStore bound to the given transaction scope.
	WithTx(tx DBTX) NovelStore
}
