package writeq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/shelf/internal/metrics"
	"github.com/phrazzld/shelf/internal/platform/logger"
	"github.com/phrazzld/shelf/internal/store"
)

// Handle is the store the queue serializes access to.
type Handle interface {
	DB() store.DBTX
	Transaction(ctx context.Context, fn store.TxFn) error
	ExclusiveTransaction(ctx context.Context, fn store.TxFn) error
}

var _ Handle = (*store.Handle)(nil)

// Config tunes scheduling and persistence.
type Config struct {
	// BatchThreshold is how many queued tasks of one batch-eligible category
	// are executed together in one transaction.
	BatchThreshold int

	// BatchInsertThreshold is how many payloads make a full batch record.
	BatchInsertThreshold int

	// BatchFlushTimeout flushes a partial batch record after this long
	// without new payloads.
	BatchFlushTimeout time.Duration

	// ScheduleTimeout delays the loop when a category is close to the batch
	// threshold, giving stragglers a chance to join the batch.
	ScheduleTimeout time.Duration
}

// DefaultConfig returns the default Config.
func DefaultConfig() Config {
	return Config{
		BatchThreshold:       10,
		BatchInsertThreshold: 10,
		BatchFlushTimeout:    2 * time.Second,
		ScheduleTimeout:      time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.BatchThreshold < 2 {
		c.BatchThreshold = d.BatchThreshold
	}
	if c.BatchInsertThreshold < 1 {
		c.BatchInsertThreshold = d.BatchInsertThreshold
	}
	if c.BatchFlushTimeout <= 0 {
		c.BatchFlushTimeout = d.BatchFlushTimeout
	}
	if c.ScheduleTimeout <= 0 {
		c.ScheduleTimeout = d.ScheduleTimeout
	}
	return c
}

// Deps are the queue's optional collaborators.
type Deps struct {
	// Stores apply and validate payload tasks. Required for Submit.
	Stores Stores

	// Records persists payload tasks. Nil disables persistence and recovery.
	Records *RecordStore

	// Settings feeds the validation skip window. May be nil.
	Settings Settings
}

// Queue is the single writer of the store. All methods are safe for
// concurrent use.
type Queue struct {
	handle  Handle
	stores  Stores
	records *RecordStore
	batches *Accumulator
	oracle  *Oracle
	persist *persister
	cfg     Config
	logger  *slog.Logger
	now     func() time.Time
	started time.Time

	handlersMu sync.RWMutex
	handlers   map[string]OtherHandler

	mu         sync.Mutex
	tasks      []*task
	counts     map[Category]int // batchable tasks per category
	high       int              // high-priority tasks
	seq        uint64
	running    bool
	closed     bool
	schedTimer *time.Timer
	wg         sync.WaitGroup
}

// New returns a Queue writing through h.
func New(h Handle, deps Deps, cfg Config, l *slog.Logger) *Queue {
	if l == nil {
		l = slog.Default()
	}
	l = l.With(slog.String("component", "writeq"))
	cfg = cfg.withDefaults()

	q := &Queue{
		handle:   h,
		stores:   deps.Stores,
		records:  deps.Records,
		cfg:      cfg,
		logger:   l,
		now:      time.Now,
		handlers: make(map[string]OtherHandler),
		counts:   make(map[Category]int),
	}
	q.started = q.now()
	q.persist = newPersister(l)
	q.batches = NewAccumulator(cfg.BatchInsertThreshold, cfg.BatchFlushTimeout, q.writeBatch)
	q.oracle = NewOracle(deps.Stores.WithTx(h.DB()), deps.Settings, l)
	return q
}

// Handle registers the handler applying Other payloads of the given kind.
func (q *Queue) Handle(kind string, h OtherHandler) {
	q.handlersMu.Lock()
	defer q.handlersMu.Unlock()
	q.handlers[kind] = h
}

// Enqueue schedules run. The returned Future settles once run has executed,
// been skipped by validation, or failed.
func (q *Queue) Enqueue(run RunFunc, opts Options) *Future {
	if run == nil {
		return rejectedFuture(ErrNilRun)
	}
	t, err := newTask(run, opts, q.now())
	if err != nil {
		return rejectedFuture(err)
	}
	return q.enqueue(t)
}

// Submit schedules the mutation described by p. Category and exclusivity
// follow from the payload; the remaining options apply as for Enqueue.
func (q *Queue) Submit(p Payload, opts Options) *Future {
	return q.submit(p, opts, q.now())
}

func (q *Queue) submit(p Payload, opts Options, createdAt time.Time) *Future {
	if err := ValidatePayload(p); err != nil {
		return rejectedFuture(err)
	}
	run, err := q.runFor(p, createdAt)
	if err != nil {
		return rejectedFuture(err)
	}
	opts.Payload = p
	t, err := newTask(run, opts, createdAt)
	if err != nil {
		return rejectedFuture(err)
	}
	return q.enqueue(t)
}

// runFor returns the function applying p. Store payloads stamp their
// changes with at, the task's creation time.
func (q *Queue) runFor(p Payload, at time.Time) (RunFunc, error) {
	if o, ok := p.(Other); ok {
		q.handlersMu.RLock()
		h := q.handlers[o.Kind]
		q.handlersMu.RUnlock()
		if h == nil {
			return nil, fmt.Errorf("%w: %q", ErrNoHandler, o.Kind)
		}
		run, err := h(o.Data)
		if err != nil {
			return nil, err
		}
		if run == nil {
			return nil, ErrNilRun
		}
		return run, nil
	}

	if !q.stores.complete() {
		return nil, ErrStoresUnavailable
	}
	return func(ctx context.Context, db store.DBTX) (any, error) {
		return p.apply(ctx, q.stores.WithTx(db), at)
	}, nil
}

func (q *Queue) enqueue(t *task) *Future {
	durable := t.payload != nil && !t.skipPersistence && q.records != nil
	// Only individual records are keyed by the task; batched payloads share
	// their batch's key.
	if durable && t.ownRecord() {
		t.durableID = uuid.NewString()
		t.future.durableID = t.durableID
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		t.future.reject(ErrQueueClosed)
		return t.future
	}
	q.seq++
	t.seq = q.seq

	// Queued for persistence before the loop can see the task, so a record
	// is always written before it is deleted.
	if durable {
		q.persistLocked(t)
	}

	q.tasks = append(q.tasks, t)
	if t.batchable() {
		q.counts[t.category]++
	}
	if t.priority == PriorityHigh {
		q.high++
	}
	metrics.QueueDepth.Set(float64(len(q.tasks)))

	start := false
	if !q.batchCloseLocked() {
		start = q.startLocked()
	}
	q.mu.Unlock()

	if start {
		go q.process()
	}
	return t.future
}

func (q *Queue) persistLocked(t *task) {
	raw, err := json.Marshal(t.payload)
	if err != nil {
		q.logger.Warn("failed to encode payload, task will not be persisted",
			append(t.logAttrs(), "error", err)...)
		t.durableID = ""
		t.future.durableID = ""
		return
	}

	if !t.ownRecord() {
		q.batches.AddAt(t.category, raw, t.createdAt)
		return
	}

	rec := IndividualRecord{
		Category:  t.category,
		Label:     t.label,
		Data:      raw,
		Timestamp: t.createdAt.UnixMilli(),
		ID:        t.durableID,
	}
	t.persisted = true
	q.persist.Go("write", func() error {
		return q.records.WriteIndividual(rec)
	})
}

func (q *Queue) writeBatch(rec BatchRecord) {
	if q.records == nil {
		return
	}
	q.persist.Go("write_batch", func() error {
		return q.records.WriteBatch(rec)
	})
}

// batchCloseLocked arms the schedule timer and reports true when the loop is
// idle and some category has at least half, but not all, of a batch queued.
// The loop then starts when the timer fires or the batch fills up.
func (q *Queue) batchCloseLocked() bool {
	if q.running || q.high > 0 {
		return false
	}
	top := 0
	for _, n := range q.counts {
		top = max(top, n)
	}
	if top >= q.cfg.BatchThreshold || top*2 < q.cfg.BatchThreshold {
		return false
	}
	if q.schedTimer == nil {
		q.schedTimer = time.AfterFunc(q.cfg.ScheduleTimeout, q.onScheduleTimeout)
	}
	return true
}

func (q *Queue) onScheduleTimeout() {
	q.mu.Lock()
	q.schedTimer = nil
	start := q.startLocked()
	q.mu.Unlock()
	if start {
		go q.process()
	}
}

func (q *Queue) startLocked() bool {
	if q.running || len(q.tasks) == 0 {
		return false
	}
	q.running = true
	q.wg.Add(1)
	return true
}

// process is the single writer. At most one instance runs at a time.
func (q *Queue) process() {
	defer q.wg.Done()
	ctx := logger.WithLogger(context.Background(), q.logger)

	for {
		q.mu.Lock()
		unit, batched := q.nextLocked()
		if len(unit) == 0 {
			q.running = false
			if q.schedTimer != nil {
				q.schedTimer.Stop()
				q.schedTimer = nil
			}
			q.mu.Unlock()
			return
		}
		metrics.QueueDepth.Set(float64(len(q.tasks)))
		q.mu.Unlock()

		if batched {
			q.executeBatch(ctx, unit)
		} else {
			q.executeSingle(ctx, unit[0])
		}
	}
}

// nextLocked removes and returns the next unit of work: the oldest
// high-priority task, else the oldest full batch, else the oldest task.
func (q *Queue) nextLocked() ([]*task, bool) {
	if len(q.tasks) == 0 {
		return nil, false
	}

	if q.high > 0 {
		for i, t := range q.tasks {
			if t.priority == PriorityHigh {
				q.removeLocked(i)
				return []*task{t}, false
			}
		}
	}

	if c, ok := q.readyBatchLocked(); ok {
		return q.takeBatchLocked(c), true
	}

	t := q.tasks[0]
	q.removeLocked(0)
	return []*task{t}, false
}

// readyBatchLocked picks, among categories at the batch threshold, the one
// whose oldest task arrived first.
func (q *Queue) readyBatchLocked() (Category, bool) {
	ready := 0
	for _, n := range q.counts {
		if n >= q.cfg.BatchThreshold {
			ready++
		}
	}
	if ready == 0 {
		return "", false
	}
	for _, t := range q.tasks {
		if t.batchable() && q.counts[t.category] >= q.cfg.BatchThreshold {
			return t.category, true
		}
	}
	return "", false
}

// takeBatchLocked removes the oldest BatchThreshold tasks of c.
func (q *Queue) takeBatchLocked(c Category) []*task {
	batch := make([]*task, 0, q.cfg.BatchThreshold)
	rest := q.tasks[:0]
	for _, t := range q.tasks {
		if len(batch) < q.cfg.BatchThreshold && t.batchable() && t.category == c {
			batch = append(batch, t)
			continue
		}
		rest = append(rest, t)
	}
	clear(q.tasks[len(rest):])
	q.tasks = rest
	q.counts[c] -= len(batch)
	return batch
}

func (q *Queue) removeLocked(i int) {
	t := q.tasks[i]
	q.tasks = slices.Delete(q.tasks, i, i+1)
	if t.batchable() {
		q.counts[t.category]--
	}
	if t.priority == PriorityHigh {
		q.high--
	}
}

func (q *Queue) executeSingle(ctx context.Context, t *task) {
	if !q.oracle.Validate(ctx, t.payload, t.createdAt) {
		q.skip(t)
		return
	}

	var value any
	fn := func(ctx context.Context, db store.DBTX) error {
		v, err := safeRun(ctx, t.run, db)
		value = v
		return err
	}

	var err error
	switch {
	case !t.transactional:
		err = fn(ctx, q.handle.DB())
	case t.exclusive:
		err = q.handle.ExclusiveTransaction(ctx, fn)
	default:
		err = q.handle.Transaction(ctx, fn)
	}
	if err != nil {
		q.fail(t, err)
		return
	}
	q.complete(t, value)
}

// executeBatch runs every still-valid task of unit in one transaction. The
// first failure rolls back the whole group and fails every member with it.
func (q *Queue) executeBatch(ctx context.Context, unit []*task) {
	c := unit[0].category
	valid := make([]*task, 0, len(unit))
	exclusive := false
	for _, t := range unit {
		if !q.oracle.Validate(ctx, t.payload, t.createdAt) {
			q.skip(t)
			continue
		}
		valid = append(valid, t)
		exclusive = exclusive || t.exclusive
	}
	if len(valid) == 0 {
		return
	}

	values := make([]any, len(valid))
	fn := func(ctx context.Context, tx store.DBTX) error {
		for i, t := range valid {
			v, err := safeRun(ctx, t.run, tx)
			if err != nil {
				return err
			}
			values[i] = v
		}
		return nil
	}

	var err error
	if exclusive {
		err = q.handle.ExclusiveTransaction(ctx, fn)
	} else {
		err = q.handle.Transaction(ctx, fn)
	}
	metrics.QueueBatchesTotal.WithLabelValues(string(c)).Inc()
	metrics.QueueBatchSize.Observe(float64(len(valid)))

	if err != nil {
		q.logger.Error("batch failed",
			"category", c,
			"size", len(valid),
			"error", err)
		for _, t := range valid {
			q.fail(t, err)
		}
		return
	}
	for i, t := range valid {
		q.complete(t, values[i])
	}
}

func (q *Queue) complete(t *task, v any) {
	q.forget(t)
	metrics.QueueTasksTotal.WithLabelValues(string(t.category), metrics.Ok).Inc()
	t.future.resolve(Result{Value: v})
}

func (q *Queue) skip(t *task) {
	q.forget(t)
	metrics.QueueTasksTotal.WithLabelValues(string(t.category), metrics.Skipped).Inc()
	q.logger.Debug("task no longer needed, skipped", t.logAttrs()...)
	t.future.resolve(Result{Skipped: true})
}

func (q *Queue) fail(t *task, err error) {
	q.forget(t)
	metrics.QueueTasksTotal.WithLabelValues(string(t.category), metrics.Fail).Inc()
	q.logger.Error("task failed", append(t.logAttrs(), "error", err)...)
	t.future.reject(err)
}

// forget drops the task's individual record. Batch records stay until
// recovery consumes them.
func (q *Queue) forget(t *task) {
	if !t.persisted {
		return
	}
	key := IndividualKey(t.durableID)
	q.persist.Go("delete", func() error {
		return q.records.Delete(key)
	})
}

// Checkpoint flushes pending batch records and waits for all record I/O
// queued so far to finish.
func (q *Queue) Checkpoint(ctx context.Context) error {
	q.batches.FlushAll()
	return q.persist.Sync(ctx)
}

// Close stops accepting work, waits for queued tasks to settle, then flushes
// pending batch records. Tasks keep running if ctx expires first.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	if q.schedTimer != nil {
		q.schedTimer.Stop()
		q.schedTimer = nil
	}
	start := q.startLocked()
	q.mu.Unlock()
	if start {
		go q.process()
	}

	drained := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-ctx.Done():
		return fmt.Errorf("drain write queue: %w", ctx.Err())
	}

	q.batches.FlushAll()
	q.persist.Close()
	q.logger.Info("write queue closed")
	return nil
}
