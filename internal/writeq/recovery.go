package writeq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/phrazzld/shelf/internal/metrics"
)

// RecoveryStats summarizes a recovery pass.
type RecoveryStats struct {
	Individual  int `json:"individual"`
	Batches     int `json:"batches"`
	Resubmitted int `json:"resubmitted"`
	Dropped     int `json:"dropped"`
	Malformed   int `json:"malformed"`
}

// Recover resubmits the tasks recorded on disk by a previous process. Records
// are replayed oldest first; each one is deleted once its tasks are queued.
// Recovered tasks are validated like any other before they run, so work that
// already reached the store is skipped. Records written by this process are
// left alone. If the queue closes during the scan, Recover returns
// ErrQueueClosed and the records not yet handed off stay on disk.
func (q *Queue) Recover(ctx context.Context) (RecoveryStats, error) {
	var stats RecoveryStats
	if q.records == nil {
		return stats, nil
	}

	keys, err := q.records.ListAll()
	if err != nil {
		return stats, fmt.Errorf("recover queue: %w", err)
	}

	cutoff := time.UnixMilli(q.started.UnixMilli())
	recs := make([]Record, 0, len(keys))
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		rec, err := q.records.Read(key)
		if err != nil {
			stats.Malformed++
			q.logger.Warn("discarding unreadable queue record",
				"key", key,
				"error", err)
			q.deleteRecord(key)
			continue
		}
		if !rec.Time().Before(cutoff) {
			continue
		}
		recs = append(recs, rec)
	}
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Time().Before(recs[j].Time())
	})

	for _, rec := range recs {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		ts := rec.Time()
		if rec.Batch != nil {
			stats.Batches++
			for _, item := range rec.Batch.Items {
				if err := q.recoverItem(rec.Batch.Category, item, "", ts, &stats); err != nil {
					return stats, err
				}
			}
		} else {
			stats.Individual++
			if err := q.recoverItem(rec.Individual.Category, rec.Individual.Data, rec.Individual.Label, ts, &stats); err != nil {
				return stats, err
			}
		}
		q.deleteRecord(rec.Key)
	}

	metrics.QueueRecoveredTasksTotal.Add(float64(stats.Resubmitted))
	q.logger.Info("queue recovery finished",
		"individual", stats.Individual,
		"batches", stats.Batches,
		"resubmitted", stats.Resubmitted,
		"dropped", stats.Dropped,
		"malformed", stats.Malformed)
	return stats, nil
}

// RecoverAsync runs Recover on its own goroutine. The channel receives the
// stats and is then closed.
func (q *Queue) RecoverAsync(ctx context.Context) <-chan RecoveryStats {
	out := make(chan RecoveryStats, 1)
	go func() {
		defer close(out)
		stats, err := q.Recover(ctx)
		if err != nil {
			q.logger.Error("queue recovery failed", "error", err)
		}
		out <- stats
	}()
	return out
}

// recoverItem queues one recovered payload, keeping the record's timestamp
// as the task's creation time. It returns ErrQueueClosed when the queue no
// longer accepts work; the record must then stay on disk.
func (q *Queue) recoverItem(c Category, raw json.RawMessage, label string, ts time.Time, stats *RecoveryStats) error {
	p, err := DecodePayload(c, raw)
	if err != nil {
		stats.Dropped++
		q.logger.Warn("dropping recovered task", "category", c, "error", err)
		return nil
	}
	run, err := q.runFor(p, ts)
	if err != nil {
		stats.Dropped++
		q.logger.Warn("dropping recovered task", "category", c, "error", err)
		return nil
	}

	t, err := newTask(run, Options{
		Payload:         p,
		SkipPersistence: true,
		Label:           label,
	}, ts)
	if err != nil {
		stats.Dropped++
		q.logger.Warn("dropping recovered task", "category", c, "error", err)
		return nil
	}
	f := q.enqueue(t)
	select {
	case <-f.Done():
		if _, err := f.Wait(context.Background()); errors.Is(err, ErrQueueClosed) {
			return ErrQueueClosed
		}
	default:
	}
	stats.Resubmitted++
	return nil
}

func (q *Queue) deleteRecord(key string) {
	if err := q.records.Delete(key); err != nil {
		metrics.QueuePersistErrorsTotal.WithLabelValues("delete").Inc()
		q.logger.Warn("failed to delete queue record", "key", key, "error", err)
	}
}
