package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/shelf/internal/domain"
	"github.com/phrazzld/shelf/internal/writeq"
)

// MockEnqueuer is a mock implementation of Enqueuer
type MockEnqueuer struct {
	mock.Mock
}

func (m *MockEnqueuer) Submit(p writeq.Payload, opts writeq.Options) *writeq.Future {
	args := m.Called(p, opts)
	return args.Get(0).(*writeq.Future)
}

func newTestService(t *testing.T) (LibraryService, *MockEnqueuer) {
	t.Helper()
	q := &MockEnqueuer{}
	svc, err := NewLibraryService(q, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return svc, q
}

func strPtr(s string) *string { return &s }

func TestNewLibraryService_RequiresQueue(t *testing.T) {
	_, err := NewLibraryService(nil, nil)
	var svcErr *LibraryServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, "create_service", svcErr.Operation)
}

func TestRefreshNovel(t *testing.T) {
	ctx := context.Background()
	u := domain.NovelUpdate{Name: strPtr("New")}

	t.Run("applied", func(t *testing.T) {
		svc, q := newTestService(t)
		q.On("Submit", writeq.LibraryUpdate{NovelID: 7, Updates: u}, writeq.Options{Label: "refresh"}).
			Return(writeq.Completed(writeq.Result{Value: int64(7)}, nil))

		out, err := svc.RefreshNovel(ctx, 7, u)
		require.NoError(t, err)
		assert.False(t, out.Skipped)
		q.AssertExpectations(t)
	})

	t.Run("skipped", func(t *testing.T) {
		svc, q := newTestService(t)
		q.On("Submit", mock.Anything, mock.Anything).
			Return(writeq.Completed(writeq.Result{Skipped: true}, nil))

		out, err := svc.RefreshNovel(ctx, 7, u)
		require.NoError(t, err)
		assert.True(t, out.Skipped)
	})

	t.Run("invalid payload", func(t *testing.T) {
		svc, q := newTestService(t)
		q.On("Submit", mock.Anything, mock.Anything).
			Return(writeq.Completed(writeq.Result{}, writeq.ErrInvalidPayload))

		_, err := svc.RefreshNovel(ctx, 0, u)
		assert.ErrorIs(t, err, ErrInvalidRequest)
	})

	t.Run("store failure", func(t *testing.T) {
		svc, q := newTestService(t)
		boom := errors.New("disk full")
		q.On("Submit", mock.Anything, mock.Anything).
			Return(writeq.Completed(writeq.Result{}, boom))

		_, err := svc.RefreshNovel(ctx, 7, u)
		var svcErr *LibraryServiceError
		require.ErrorAs(t, err, &svcErr)
		assert.Equal(t, "refresh_novel", svcErr.Operation)
		assert.ErrorIs(t, err, boom)
	})
}

func TestEditNovel_IsHighPriorityAndIndividual(t *testing.T) {
	svc, q := newTestService(t)
	u := domain.NovelUpdate{Status: strPtr("Completed")}
	q.On("Submit", writeq.LibraryUpdate{NovelID: 3, Updates: u, UserEdit: true}, mock.MatchedBy(func(o writeq.Options) bool {
		return o.Priority == writeq.PriorityHigh && o.Individual
	})).Return(writeq.Completed(writeq.Result{}, nil))

	_, err := svc.EditNovel(context.Background(), 3, u)
	require.NoError(t, err)
	q.AssertExpectations(t)
}

func TestMarkChapterDownloaded_QueueClosed(t *testing.T) {
	svc, q := newTestService(t)
	q.On("Submit", writeq.Download{NovelID: 1, ChapterID: 2}, mock.Anything).
		Return(writeq.Completed(writeq.Result{}, writeq.ErrQueueClosed))

	_, err := svc.MarkChapterDownloaded(context.Background(), 1, 2)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestImportNovels(t *testing.T) {
	ctx := context.Background()

	t.Run("queues every item", func(t *testing.T) {
		svc, q := newTestService(t)
		q.On("Submit", mock.AnythingOfType("writeq.BulkImport"), mock.Anything).
			Return(writeq.Completed(writeq.Result{}, nil)).Twice()

		receipt, err := svc.ImportNovels(ctx, 1, []ImportItem{
			{PluginID: "boxnovel", Path: "/a"},
			{NovelID: 9},
		})
		require.NoError(t, err)
		assert.Equal(t, 2, receipt.Queued)
		q.AssertNumberOfCalls(t, "Submit", 2)
	})

	t.Run("invalid item queues nothing", func(t *testing.T) {
		svc, q := newTestService(t)
		_, err := svc.ImportNovels(ctx, 1, []ImportItem{
			{PluginID: "boxnovel", Path: "/a"},
			{PluginID: "boxnovel"},
		})
		assert.ErrorIs(t, err, ErrInvalidRequest)
		q.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
	})

	t.Run("empty request", func(t *testing.T) {
		svc, _ := newTestService(t)
		_, err := svc.ImportNovels(ctx, 1, nil)
		assert.ErrorIs(t, err, ErrInvalidRequest)
	})

	t.Run("queue closed midway", func(t *testing.T) {
		svc, q := newTestService(t)
		q.On("Submit", mock.Anything, mock.Anything).
			Return(writeq.Completed(writeq.Result{}, writeq.ErrQueueClosed))

		receipt, err := svc.ImportNovels(ctx, 1, []ImportItem{{NovelID: 1}})
		assert.ErrorIs(t, err, ErrUnavailable)
		assert.Zero(t, receipt.Queued)
	})
}
