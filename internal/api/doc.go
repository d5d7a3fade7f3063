// Package api handles incoming HTTP requests, routing, request validation,
// and response formatting. It acts as an adapter between external clients
// and the library services, translating HTTP concerns to queued mutations.
package api
