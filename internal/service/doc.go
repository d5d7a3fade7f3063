// Package service exposes the library operations the API and CLI call. Every
// mutation is routed through the write queue; services never write to the
// store directly.
package service
