package writeq

import (
	"context"
	"log/slog"
	"sync"

	"github.com/phrazzld/shelf/internal/metrics"
)

// persistOp is one unit of background record I/O. An op with only an ack
// channel is a barrier.
type persistOp struct {
	name string
	fn   func() error
	ack  chan struct{}
}

// persister runs record writes and deletes on a single goroutine, in the
// order they were queued. Failures are logged and counted, never returned.
type persister struct {
	mu     sync.Mutex
	cond   *sync.Cond
	ops    []persistOp
	closed bool
	done   chan struct{}
	logger *slog.Logger
}

func newPersister(logger *slog.Logger) *persister {
	p := &persister{
		done:   make(chan struct{}),
		logger: logger,
	}
	p.cond = sync.NewCond(&p.mu)
	go p.loop()
	return p
}

// Go queues fn. After Close it runs inline.
func (p *persister) Go(name string, fn func() error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.run(persistOp{name: name, fn: fn})
		return
	}
	p.ops = append(p.ops, persistOp{name: name, fn: fn})
	p.cond.Signal()
	p.mu.Unlock()
}

// Sync waits until every op queued before the call has run.
func (p *persister) Sync(ctx context.Context) error {
	ack := make(chan struct{})
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.ops = append(p.ops, persistOp{name: "sync", ack: ack})
	p.cond.Signal()
	p.mu.Unlock()

	select {
	case <-ack:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close runs the remaining ops and stops the goroutine.
func (p *persister) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		<-p.done
		return
	}
	p.closed = true
	p.cond.Signal()
	p.mu.Unlock()
	<-p.done
}

func (p *persister) loop() {
	defer close(p.done)
	for {
		p.mu.Lock()
		for len(p.ops) == 0 && !p.closed {
			p.cond.Wait()
		}
		if len(p.ops) == 0 {
			p.mu.Unlock()
			return
		}
		op := p.ops[0]
		p.ops[0] = persistOp{}
		p.ops = p.ops[1:]
		p.mu.Unlock()

		p.run(op)
	}
}

func (p *persister) run(op persistOp) {
	if op.fn != nil {
		if err := op.fn(); err != nil {
			metrics.QueuePersistErrorsTotal.WithLabelValues(op.name).Inc()
			p.logger.Warn("queue record operation failed",
				"op", op.name,
				"error", err)
		}
	}
	if op.ack != nil {
		close(op.ack)
	}
}
