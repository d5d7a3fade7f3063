package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/shelf/internal/domain"
	"github.com/phrazzld/shelf/internal/store"
)

// ChapterStore implements store.ChapterStore on SQLite.
type ChapterStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewChapterStore creates a ChapterStore over db.
func NewChapterStore(db store.DBTX, logger *slog.Logger) *ChapterStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ChapterStore{
		db:     db,
		logger: logger.With(slog.String("component", "chapter_store")),
	}
}

var _ store.ChapterStore = (*ChapterStore)(nil)

// Create implements store.ChapterStore.
func (s *ChapterStore) Create(ctx context.Context, chapter *domain.Chapter) error {
	if err := chapter.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	var downloadedAt sql.NullInt64
	if chapter.DownloadedAt != nil {
		downloadedAt = sql.NullInt64{Int64: toMillis(*chapter.DownloadedAt), Valid: true}
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO chapters (novel_id, path, name, is_downloaded, downloaded_at)
		VALUES (?, ?, ?, ?, ?)`,
		chapter.NovelID, chapter.Path, chapter.Name, chapter.IsDownloaded, downloadedAt,
	)
	if err != nil {
		s.logger.Error("failed to create chapter",
			"novel_id", chapter.NovelID,
			"path", chapter.Path,
			"error", err)
		return fmt.Errorf("create chapter: %w", MapError(err))
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("create chapter: last insert id: %w", err)
	}
	chapter.ID = id
	return nil
}

// GetByID implements store.ChapterStore.
func (s *ChapterStore) GetByID(ctx context.Context, id int64) (*domain.Chapter, error) {
	var (
		c            domain.Chapter
		downloadedAt sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, novel_id, path, name, is_downloaded, downloaded_at
		FROM chapters WHERE id = ?`, id,
	).Scan(&c.ID, &c.NovelID, &c.Path, &c.Name, &c.IsDownloaded, &downloadedAt)
	if err != nil {
		return nil, mapNotFound(err, store.ErrChapterNotFound)
	}
	if downloadedAt.Valid {
		at := fromMillis(downloadedAt.Int64)
		c.DownloadedAt = &at
	}
	return &c, nil
}

// MarkDownloaded implements store.ChapterStore.
func (s *ChapterStore) MarkDownloaded(ctx context.Context, id int64, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE chapters SET is_downloaded = 1, downloaded_at = ? WHERE id = ?`, toMillis(at), id)
	if err != nil {
		s.logger.Error("failed to mark chapter downloaded", "chapter_id", id, "error", err)
		return fmt.Errorf("mark downloaded: %w", MapError(err))
	}
	return requireRow(res, store.ErrChapterNotFound)
}

// WithTx implements store.ChapterStore.
func (s *ChapterStore) WithTx(tx store.DBTX) store.ChapterStore {
	return &ChapterStore{db: tx, logger: s.logger}
}
