// Package writeq serializes every mutation made to the embedded store.
//
// Producers (library refreshes, downloads, imports, user edits) hand work to a
// Queue with Enqueue or Submit and receive a Future. A single processing loop
// owns the store handle: it prefers high-priority tasks, then same-category
// groups that reached the batch threshold (executed together in one
// transaction), then plain arrival order.
//
// Tasks that carry a durable Payload are also recorded on disk, either as an
// individual record or, for batch-eligible categories, through an
// Accumulator that writes grouped batch records. After a crash, Recover
// rebuilds tasks from those records. Every task, live or recovered, is checked
// by the Oracle right before execution so stale or already-applied work is
// skipped rather than replayed.
//
// Persistence is best effort. Record writes and deletes run on one ordered
// background goroutine; their failures are logged and counted, never returned
// to producers. The in-memory queue is authoritative for the life of the process.
package writeq
