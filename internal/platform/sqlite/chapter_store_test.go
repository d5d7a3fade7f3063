package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/phrazzld/shelf/internal/domain"
	"github.com/phrazzld/shelf/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChapterStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := openTestDB(t)
	novels := NewNovelStore(db, testLogger())
	chapters := NewChapterStore(db, testLogger())

	n := &domain.Novel{PluginID: "p", Path: "/n"}
	require.NoError(t, novels.Create(ctx, n))

	c := &domain.Chapter{NovelID: n.ID, Path: "/n/1", Name: "Chapter 1"}
	require.NoError(t, chapters.Create(ctx, c))
	assert.NotZero(t, c.ID)

	got, err := chapters.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.False(t, got.IsDownloaded)
	assert.Nil(t, got.DownloadedAt)

	at := time.UnixMilli(1_700_000_000_500).UTC()
	require.NoError(t, chapters.MarkDownloaded(ctx, c.ID, at))

	got, err = chapters.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, got.IsDownloaded)
	require.NotNil(t, got.DownloadedAt)
	assert.Equal(t, at, *got.DownloadedAt)

	assert.ErrorIs(t, chapters.MarkDownloaded(ctx, 999, at), store.ErrChapterNotFound)
	_, err = chapters.GetByID(ctx, 999)
	assert.ErrorIs(t, err, store.ErrChapterNotFound)

	t.Run("unknown novel", func(t *testing.T) {
		err := chapters.Create(ctx, &domain.Chapter{NovelID: 12345, Path: "/x"})
		assert.ErrorIs(t, err, store.ErrInvalidEntity)
	})
}
