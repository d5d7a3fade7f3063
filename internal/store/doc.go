// Package store defines interfaces for data persistence operations and the
// transaction primitives every write to the embedded store goes through.
// These interfaces abstract the underlying data storage mechanism from
// the application's core logic.
package store
