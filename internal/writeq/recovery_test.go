package writeq

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/shelf/internal/domain"
)

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestRecover_ReplaysRecords(t *testing.T) {
	t.Parallel()
	e := newEnv(t, nil)
	ctx := context.Background()

	n1 := e.novel(t, "/n/1", time.Time{})
	n2 := e.novel(t, "/n/2", time.Time{})
	ch := e.chapter(t, n1.ID, false)
	past := time.Now().Add(-time.Hour).UnixMilli()

	require.NoError(t, e.records.WriteIndividual(IndividualRecord{
		Category:  CategoryDownload,
		Data:      mustJSON(t, Download{NovelID: n1.ID, ChapterID: ch.ID}),
		Timestamp: past,
		ID:        "dl",
	}))
	require.NoError(t, e.records.WriteBatch(BatchRecord{
		Category: CategoryLibraryUpdate,
		Items: []json.RawMessage{
			mustJSON(t, LibraryUpdate{NovelID: n1.ID, Updates: domain.NovelUpdate{Name: strPtr("One")}}),
			mustJSON(t, LibraryUpdate{NovelID: n2.ID, Updates: domain.NovelUpdate{Name: strPtr("Two")}}),
			json.RawMessage(`{"novelId":0}`),
		},
		Timestamp: past + 1,
		BatchID:   "library_update_1_abc",
	}))
	require.NoError(t, afero.WriteFile(e.records.fs, filepath.Join(e.records.Dir(), "broken.json"), []byte("{"), 0o644))

	stats, err := e.queue.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, RecoveryStats{Individual: 1, Batches: 1, Resubmitted: 3, Dropped: 1, Malformed: 1}, stats)

	closeQueue(t, e.queue)

	got, err := e.stores.Chapters.GetByID(ctx, ch.ID)
	require.NoError(t, err)
	assert.True(t, got.IsDownloaded)
	for id, name := range map[int64]string{n1.ID: "One", n2.ID: "Two"} {
		n, err := e.stores.Novels.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, name, n.Name)
	}

	keys, err := e.records.ListAll()
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestRecover_SkipsWorkAlreadyApplied(t *testing.T) {
	t.Parallel()
	e := newEnv(t, nil)
	ctx := context.Background()

	// The update reached the store before the crash, stamping the novel with
	// the task's creation time, but its record was never deleted.
	ts := time.Now().Add(-time.Hour).UnixMilli()
	n := e.novel(t, "/n/1", time.UnixMilli(ts))
	require.NoError(t, e.records.WriteBatch(BatchRecord{
		Category:  CategoryLibraryUpdate,
		Items:     []json.RawMessage{mustJSON(t, LibraryUpdate{NovelID: n.ID, Updates: domain.NovelUpdate{Name: strPtr("Replayed")}})},
		Timestamp: ts,
		BatchID:   "library_update_2_abc",
	}))

	_, err := e.queue.Recover(ctx)
	require.NoError(t, err)
	closeQueue(t, e.queue)

	got, err := e.stores.Novels.GetByID(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, "Old", got.Name)
}

func TestRecover_IsIdempotent(t *testing.T) {
	t.Parallel()
	e := newEnv(t, nil)
	ctx := context.Background()

	n := e.novel(t, "/n/1", time.Time{})
	ch := e.chapter(t, n.ID, false)
	past := time.Now().Add(-time.Hour).UnixMilli()
	records := func() {
		require.NoError(t, e.records.WriteIndividual(IndividualRecord{
			Category:  CategoryDownload,
			Data:      mustJSON(t, Download{NovelID: n.ID, ChapterID: ch.ID}),
			Timestamp: past,
			ID:        "dl",
		}))
		require.NoError(t, e.records.WriteBatch(BatchRecord{
			Category:  CategoryBulkImport,
			Items:     []json.RawMessage{mustJSON(t, BulkImport{PluginID: "boxnovel", Path: "/n/imported", CategoryID: 1})},
			Timestamp: past,
			BatchID:   "bulk_import_3_abc",
		}))
	}

	records()
	_, err := e.queue.Recover(ctx)
	require.NoError(t, err)
	closeQueue(t, e.queue)

	first, err := e.stores.Chapters.GetByID(ctx, ch.ID)
	require.NoError(t, err)
	imported, err := e.stores.Novels.GetByPath(ctx, "boxnovel", "/n/imported")
	require.NoError(t, err)

	// Same records again, as if the process died before deleting them.
	records()
	q := e.newQueue(t, nil)
	_, err = q.Recover(ctx)
	require.NoError(t, err)
	closeQueue(t, q)

	second, err := e.stores.Chapters.GetByID(ctx, ch.ID)
	require.NoError(t, err)
	assert.Equal(t, first.DownloadedAt, second.DownloadedAt, "download not replayed")

	again, err := e.stores.Novels.GetByPath(ctx, "boxnovel", "/n/imported")
	require.NoError(t, err)
	assert.Equal(t, imported.ID, again.ID)
}

func TestRecover_LeavesOwnRecordsAlone(t *testing.T) {
	t.Parallel()
	e := newEnv(t, nil)
	ctx := context.Background()

	require.NoError(t, e.records.WriteIndividual(IndividualRecord{
		Category:  CategoryOther,
		Data:      mustJSON(t, Other{Kind: "noop"}),
		Timestamp: time.Now().Add(time.Minute).UnixMilli(),
		ID:        "live",
	}))

	stats, err := e.queue.Recover(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Resubmitted)

	keys, err := e.records.ListAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"live.json"}, keys)
}

func TestRecover_KeepsRecordsWhenQueueClosed(t *testing.T) {
	t.Parallel()
	e := newEnv(t, nil)
	ctx := context.Background()
	n := e.novel(t, "/n/1", time.Time{})

	require.NoError(t, e.records.WriteIndividual(IndividualRecord{
		Category:  CategoryLibraryUpdate,
		Data:      mustJSON(t, LibraryUpdate{NovelID: n.ID, Updates: domain.NovelUpdate{Name: strPtr("Recovered")}}),
		Timestamp: time.Now().Add(-time.Hour).UnixMilli(),
		ID:        "pending",
	}))
	closeQueue(t, e.queue)

	stats, err := e.queue.Recover(ctx)
	require.ErrorIs(t, err, ErrQueueClosed)
	assert.Zero(t, stats.Resubmitted)

	keys, err := e.records.ListAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"pending.json"}, keys)

	// A later process still replays it.
	next := e.newQueue(t, nil)
	stats, err = next.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Resubmitted)
	closeQueue(t, next)

	got, err := e.stores.Novels.GetByID(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, "Recovered", got.Name)
}

func TestRecover_DropsOtherWithoutHandler(t *testing.T) {
	t.Parallel()
	e := newEnv(t, nil)
	ctx := context.Background()

	require.NoError(t, e.records.WriteIndividual(IndividualRecord{
		Category:  CategoryOther,
		Label:     "orphan",
		Data:      mustJSON(t, Other{Kind: "unregistered"}),
		Timestamp: time.Now().Add(-time.Hour).UnixMilli(),
		ID:        "orphan",
	}))

	stats := <-e.queue.RecoverAsync(ctx)
	assert.Equal(t, 1, stats.Individual)
	assert.Equal(t, 1, stats.Dropped)

	keys, err := e.records.ListAll()
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestClearPersistentQueue(t *testing.T) {
	t.Parallel()
	e := newEnv(t, nil)
	ctx := context.Background()
	n := e.novel(t, "/n/1", time.Time{})

	waitAll(t, e.queue.Submit(LibraryUpdate{NovelID: n.ID, Updates: domain.NovelUpdate{Name: strPtr("x")}}, Options{}))
	removed, err := e.queue.ClearPersistentQueue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed, "the pending batch is flushed, then cleared")

	keys, err := e.records.ListAll()
	require.NoError(t, err)
	assert.Empty(t, keys)
	assert.Empty(t, e.queue.PendingBatches())
}
