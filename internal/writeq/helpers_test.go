package writeq

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/shelf/internal/platform/sqlite"
	"github.com/phrazzld/shelf/internal/store"
	"github.com/phrazzld/shelf/internal/testdb"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeTx stands in for a transaction. Tasks see which transaction they ran
// in through its identity.
type fakeTx struct {
	id   int64
	mode string
}

func (*fakeTx) ExecContext(context.Context, string, ...any) (sql.Result, error) { return nil, nil }
func (*fakeTx) PrepareContext(context.Context, string) (*sql.Stmt, error) { return nil, nil }
func (*fakeTx) QueryContext(context.Context, string, ...any) (*sql.Rows, error) { return nil, nil }
func (*fakeTx) QueryRowContext(context.Context, string, ...any) *sql.Row { return nil }

// fakeHandle counts concurrent store access so tests can check that only one
// writer is ever active.
type fakeHandle struct {
	plain  *fakeTx
	nextID atomic.Int64
	active atomic.Int32
	peak   atomic.Int32

	mu    sync.Mutex
	modes []string
}

func newFakeHandle() *fakeHandle {
	return &fakeHandle{plain: &fakeTx{mode: "plain"}}
}

func (h *fakeHandle) DB() store.DBTX {
	return h.plain
}

func (h *fakeHandle) Transaction(ctx context.Context, fn store.TxFn) error {
	return h.run(ctx, "tx", fn)
}

func (h *fakeHandle) ExclusiveTransaction(ctx context.Context, fn store.TxFn) error {
	return h.run(ctx, "exclusive", fn)
}

func (h *fakeHandle) run(ctx context.Context, mode string, fn store.TxFn) error {
	n := h.active.Add(1)
	defer h.active.Add(-1)
	for {
		p := h.peak.Load()
		if n <= p || h.peak.CompareAndSwap(p, n) {
			break
		}
	}
	h.record(mode)
	return fn(ctx, &fakeTx{id: h.nextID.Add(1), mode: mode})
}

func (h *fakeHandle) record(mode string) {
	h.mu.Lock()
	h.modes = append(h.modes, mode)
	h.mu.Unlock()
}

func (h *fakeHandle) Modes() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.modes...)
}

func newFakeQueue(t *testing.T, cfg Config) (*Queue, *fakeHandle) {
	t.Helper()
	h := newFakeHandle()
	q := New(h, Deps{}, cfg, testLogger())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = q.Close(ctx)
	})
	return q, h
}

// gate blocks the processing loop until released, so that tasks enqueued
// meanwhile pile up and are scheduled together.
func gate(t *testing.T, q *Queue) (release func()) {
	t.Helper()
	entered := make(chan struct{})
	hold := make(chan struct{})
	q.Enqueue(func(context.Context, store.DBTX) (any, error) {
		close(entered)
		<-hold
		return nil, nil
	}, Options{})
	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("gate task never started")
	}
	var once sync.Once
	release = func() { once.Do(func() { close(hold) }) }
	t.Cleanup(release)
	return release
}

func waitAll(t *testing.T, futures ...*Future) []Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	out := make([]Result, len(futures))
	for i, f := range futures {
		select {
		case <-f.Done():
		case <-ctx.Done():
			t.Fatalf("future %d did not settle", i)
		}
		out[i], _ = f.Wait(ctx)
	}
	return out
}

type fixedWindow time.Duration

func (w fixedWindow) LibraryUpdateSkipWindow() time.Duration { return time.Duration(w) }

// env is a queue over a real, migrated database and in-memory record files.
type env struct {
	db      *sql.DB
	stores  Stores
	records *RecordStore
	queue   *Queue
}

func newEnv(t *testing.T, settings Settings) *env {
	t.Helper()
	l := testLogger()
	db := testdb.Open(t)

	records, err := NewRecordStore(afero.NewMemMapFs(), "queue")
	require.NoError(t, err)

	e := &env{
		db: db,
		stores: Stores{
			Novels:     sqlite.NewNovelStore(db, l),
			Chapters:   sqlite.NewChapterStore(db, l),
			Categories: sqlite.NewCategoryStore(db, l),
		},
		records: records,
	}
	e.queue = e.newQueue(t, settings)
	return e
}

// newQueue starts another queue over the same database and records, as a
// restarted process would.
func (e *env) newQueue(t *testing.T, settings Settings) *Queue {
	t.Helper()
	q := New(store.NewHandle(e.db), Deps{
		Stores:   e.stores,
		Records:  e.records,
		Settings: settings,
	}, DefaultConfig(), testLogger())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = q.Close(ctx)
	})
	return q
}

func closeQueue(t *testing.T, q *Queue) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, q.Close(ctx))
}

func strPtr(s string) *string { return &s }
