// Package domain defines the core library entities (novels, chapters) and
// their validation rules, independent of how they are stored.
package domain
