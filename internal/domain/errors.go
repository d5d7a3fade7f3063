package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidID is returned when an ID is missing or not positive.
	ErrInvalidID = errors.New("invalid ID")

	// ErrEmptyPluginID is returned when a novel has no source plugin.
	ErrEmptyPluginID = errors.New("plugin ID cannot be empty")

	// ErrEmptyPath is returned when a novel or chapter has no source path.
	ErrEmptyPath = errors.New("path cannot be empty")

	// ErrEmptyUpdate is returned when a novel update carries no fields.
	ErrEmptyUpdate = errors.New("update has no fields")
)
