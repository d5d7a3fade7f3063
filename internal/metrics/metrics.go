// Package metrics declares the prometheus collectors exported by the write queue.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Task outcomes.
const (
	Ok      = "ok"
	Skipped = "skipped"
	Fail    = "fail"
)

// Collectors for writeq.Queue.
var (
	QueueTasksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shelf_queue_tasks_total",
		Help: "Cumulative number of settled tasks, by category and outcome.",
	}, []string{"category", "outcome"})
	QueueBatchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shelf_queue_batches_total",
		Help: "Cumulative number of batched transactions executed, by category.",
	}, []string{"category"})
	QueueBatchSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "shelf_queue_batch_size",
		Help:    "Number of tasks executed per batched transaction.",
		Buckets: prometheus.LinearBuckets(1, 5, 10),
	})
	QueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "shelf_queue_depth",
		Help: "Number of tasks waiting in the in-memory queue.",
	})
	QueuePersistErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shelf_queue_persist_errors_total",
		Help: "Cumulative number of failed queue record writes or deletes, by operation.",
	}, []string{"op"})
	QueueRecoveredTasksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "shelf_queue_recovered_tasks_total",
		Help: "Cumulative number of tasks resubmitted from persisted records.",
	})
)

// QueueCollectors returns all queue collectors.
func QueueCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		QueueTasksTotal,
		QueueBatchesTotal,
		QueueBatchSize,
		QueueDepth,
		QueuePersistErrorsTotal,
		QueueRecoveredTasksTotal,
	}
}

// Register registers the queue collectors with r.
func Register(r prometheus.Registerer) error {
	for _, c := range QueueCollectors() {
		if err := r.Register(c); err != nil {
			return err
		}
	}
	return nil
}
