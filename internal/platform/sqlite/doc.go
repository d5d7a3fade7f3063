// Package sqlite provides the embedded SQLite implementation of the data
// storage interfaces defined in the internal/store package. It owns the
// database file, its pragmas and schema migrations, and the mapping between
// domain entities and rows.
package sqlite
