// Package testdb provides migrated SQLite databases for tests in packages
// that sit above the store implementation.
package testdb
