package writeq

import "context"

// Status is a point-in-time view of the queue.
type Status struct {
	Pending        int              `json:"pending"`
	PendingBatches map[Category]int `json:"pendingBatches"`
	Running        bool             `json:"running"`
	Closed         bool             `json:"closed"`
}

// PendingCount returns the number of tasks waiting to execute. The task
// currently executing is not counted.
func (q *Queue) PendingCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// PendingBatches returns the number of payloads buffered for batch records,
// per category.
func (q *Queue) PendingBatches() map[Category]int {
	return q.batches.Pending()
}

// Status returns a snapshot of the queue.
func (q *Queue) Status() Status {
	q.mu.Lock()
	s := Status{
		Pending: len(q.tasks),
		Running: q.running,
		Closed:  q.closed,
	}
	q.mu.Unlock()
	s.PendingBatches = q.batches.Pending()
	return s
}

// ClearPersistentQueue flushes pending batch records, then deletes every
// record on disk. Tasks still in memory are unaffected. It returns the
// number of records removed.
func (q *Queue) ClearPersistentQueue(ctx context.Context) (int, error) {
	if err := q.Checkpoint(ctx); err != nil {
		return 0, err
	}
	if q.records == nil {
		return 0, nil
	}
	n, err := q.records.Clear()
	if err != nil {
		return n, err
	}
	q.logger.Info("persistent queue cleared", "records", n)
	return n, nil
}
