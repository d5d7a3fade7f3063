package sqlite

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/phrazzld/shelf/internal/domain"
	"github.com/phrazzld/shelf/internal/store"
)

const novelColumns = `id, plugin_id, path, name, author, cover, summary, status, in_library, updated_at`

// NovelStore implements store.NovelStore on SQLite.
type NovelStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewNovelStore creates a NovelStore over db (a connection or transaction).
// If logger is nil, a default logger will be used.
func NewNovelStore(db store.DBTX, logger *slog.Logger) *NovelStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &NovelStore{
		db:     db,
		logger: logger.With(slog.String("component", "novel_store")),
	}
}

var _ store.NovelStore = (*NovelStore)(nil)

// Create implements store.NovelStore.
func (s *NovelStore) Create(ctx context.Context, novel *domain.Novel) error {
	if err := novel.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO novels (plugin_id, path, name, author, cover, summary, status, in_library, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		novel.PluginID, novel.Path, novel.Name, novel.Author, novel.Cover,
		novel.Summary, novel.Status, novel.InLibrary, toMillis(novel.UpdatedAt),
	)
	if err != nil {
		mapped := MapError(err)
		if store.IsDuplicateError(mapped) {
			return store.ErrNovelExists
		}
		s.logger.Error("failed to create novel",
			"plugin_id", novel.PluginID,
			"path", novel.Path,
			"error", err)
		return fmt.Errorf("create novel: %w", mapped)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("create novel: last insert id: %w", err)
	}
	novel.ID = id
	return nil
}

// GetByID implements store.NovelStore.
func (s *NovelStore) GetByID(ctx context.Context, id int64) (*domain.Novel, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+novelColumns+` FROM novels WHERE id = ?`, id)
	novel, err := scanNovel(row)
	if err != nil {
		return nil, mapNotFound(err, store.ErrNovelNotFound)
	}
	return novel, nil
}

// GetByPath implements store.NovelStore.
func (s *NovelStore) GetByPath(ctx context.Context, pluginID, path string) (*domain.Novel, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+novelColumns+` FROM novels WHERE plugin_id = ? AND path = ?`, pluginID, path)
	novel, err := scanNovel(row)
	if err != nil {
		return nil, mapNotFound(err, store.ErrNovelNotFound)
	}
	return novel, nil
}

// Update implements store.NovelStore.
func (s *NovelStore) Update(ctx context.Context, id int64, u domain.NovelUpdate, at time.Time) error {
	if err := u.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	var (
		sets []string
		args []any
	)
	add := func(column string, v *string) {
		if v != nil {
			sets = append(sets, column+" = ?")
			args = append(args, *v)
		}
	}
	add("name", u.Name)
	add("author", u.Author)
	add("cover", u.Cover)
	add("summary", u.Summary)
	add("status", u.Status)
	sets = append(sets, "updated_at = ?")
	args = append(args, toMillis(at), id)

	res, err := s.db.ExecContext(ctx,
		`UPDATE novels SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		s.logger.Error("failed to update novel", "novel_id", id, "error", err)
		return fmt.Errorf("update novel: %w", MapError(err))
	}
	return requireRow(res, store.ErrNovelNotFound)
}

// SetInLibrary implements store.NovelStore.
func (s *NovelStore) SetInLibrary(ctx context.Context, id int64, inLibrary bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE novels SET in_library = ? WHERE id = ?`, inLibrary, id)
	if err != nil {
		return fmt.Errorf("set in library: %w", MapError(err))
	}
	return requireRow(res, store.ErrNovelNotFound)
}

// WithTx implements store.NovelStore.
func (s *NovelStore) WithTx(tx store.DBTX) store.NovelStore {
	return &NovelStore{db: tx, logger: s.logger}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNovel(row rowScanner) (*domain.Novel, error) {
	var (
		n         domain.Novel
		updatedAt int64
	)
	err := row.Scan(&n.ID, &n.PluginID, &n.Path, &n.Name, &n.Author, &n.Cover,
		&n.Summary, &n.Status, &n.InLibrary, &updatedAt)
	if err != nil {
		return nil, err
	}
	n.UpdatedAt = fromMillis(updatedAt)
	return &n, nil
}
