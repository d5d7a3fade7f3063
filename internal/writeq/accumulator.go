package writeq

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Accumulator groups payloads of batch-eligible categories into batch
// records. A category is flushed when it reaches the size threshold or when
// no payload was added to it for the debounce timeout, whichever comes first.
type Accumulator struct {
	mu        sync.Mutex
	threshold int
	timeout   time.Duration
	pending   map[Category]*pendingBatch
	gen       uint64
	sink      func(BatchRecord)
	now       func() time.Time
}

type pendingBatch struct {
	items     []json.RawMessage
	startedAt time.Time
	timer     *time.Timer
	gen       uint64
}

// NewAccumulator returns an Accumulator handing flushed records to sink.
// sink must not call back into the Accumulator.
func NewAccumulator(threshold int, timeout time.Duration, sink func(BatchRecord)) *Accumulator {
	if threshold < 1 {
		threshold = 1
	}
	return &Accumulator{
		threshold: threshold,
		timeout:   timeout,
		pending:   make(map[Category]*pendingBatch),
		sink:      sink,
		now:       time.Now,
	}
}

// Add appends payload to the pending batch of c.
func (a *Accumulator) Add(c Category, payload json.RawMessage) {
	a.AddAt(c, payload, a.now())
}

// AddAt is Add for a payload created at at. The batch record carries the
// earliest creation time of its items.
func (a *Accumulator) AddAt(c Category, payload json.RawMessage, at time.Time) {
	a.mu.Lock()
	b := a.pending[c]
	if b == nil {
		b = &pendingBatch{startedAt: at}
		a.pending[c] = b
	}
	if at.Before(b.startedAt) {
		b.startedAt = at
	}
	b.items = append(b.items, payload)

	if len(b.items) >= a.threshold {
		rec := a.takeLocked(c)
		a.mu.Unlock()
		a.sink(rec)
		return
	}

	if b.timer != nil {
		b.timer.Stop()
	}
	a.gen++
	b.gen = a.gen
	gen := a.gen
	b.timer = time.AfterFunc(a.timeout, func() { a.flushGen(c, gen) })
	a.mu.Unlock()
}

// flushGen is the debounce timer callback. A timer that lost the race with
// a newer Add or a flush finds a different generation and does nothing.
func (a *Accumulator) flushGen(c Category, gen uint64) {
	a.mu.Lock()
	b := a.pending[c]
	if b == nil || b.gen != gen {
		a.mu.Unlock()
		return
	}
	rec := a.takeLocked(c)
	a.mu.Unlock()
	a.sink(rec)
}

// Flush writes out the pending batch of c, if any.
func (a *Accumulator) Flush(c Category) {
	a.mu.Lock()
	if b := a.pending[c]; b == nil || len(b.items) == 0 {
		a.mu.Unlock()
		return
	}
	rec := a.takeLocked(c)
	a.mu.Unlock()
	a.sink(rec)
}

// FlushAll writes out every pending batch.
func (a *Accumulator) FlushAll() {
	a.mu.Lock()
	var recs []BatchRecord
	for _, c := range Categories {
		if b := a.pending[c]; b != nil && len(b.items) > 0 {
			recs = append(recs, a.takeLocked(c))
		}
	}
	a.mu.Unlock()
	for _, rec := range recs {
		a.sink(rec)
	}
}

// Pending returns the number of buffered payloads per category. Categories
// with nothing buffered are absent.
func (a *Accumulator) Pending() map[Category]int {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[Category]int, len(a.pending))
	for c, b := range a.pending {
		if len(b.items) > 0 {
			out[c] = len(b.items)
		}
	}
	return out
}

func (a *Accumulator) takeLocked(c Category) BatchRecord {
	b := a.pending[c]
	delete(a.pending, c)
	if b.timer != nil {
		b.timer.Stop()
	}
	return BatchRecord{
		Category:  c,
		Items:     b.items,
		Timestamp: b.startedAt.UnixMilli(),
		BatchID:   newBatchID(c, b.startedAt),
	}
}

func newBatchID(c Category, t time.Time) string {
	return fmt.Sprintf("%s_%d_%s", strings.ToLower(string(c)), t.UnixMilli(), uuid.NewString()[:8])
}
