package domain

import (
	"fmt"
	"time"
)

// Novel is a library entry identified externally by its source plugin and
// path, and internally by ID.
type Novel struct {
	ID        int64     `json:"id"`
	PluginID  string    `json:"plugin_id"`
	Path      string    `json:"path"`
	Name      string    `json:"name"`
	Author    string    `json:"author,omitempty"`
	Cover     string    `json:"cover,omitempty"`
	Summary   string    `json:"summary,omitempty"`
	Status    string    `json:"status,omitempty"`
	InLibrary bool      `json:"in_library"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks that the novel can be stored.
func (n *Novel) Validate() error {
	if n.PluginID == "" {
		return fmt.Errorf("%w: %w", ErrValidation, ErrEmptyPluginID)
	}
	if n.Path == "" {
		return fmt.Errorf("%w: %w", ErrValidation, ErrEmptyPath)
	}
	return nil
}

// NovelUpdate is a partial set of novel metadata fields. Nil fields are left
// unchanged.
type NovelUpdate struct {
	Name    *string `json:"name,omitempty"`
	Author  *string `json:"author,omitempty"`
	Cover   *string `json:"cover,omitempty"`
	Summary *string `json:"summary,omitempty"`
	Status  *string `json:"status,omitempty"`
}

// IsEmpty reports whether the update changes nothing.
func (u NovelUpdate) IsEmpty() bool {
	return u.Name == nil && u.Author == nil && u.Cover == nil && u.Summary == nil && u.Status == nil
}

// Validate rejects empty updates.
func (u NovelUpdate) Validate() error {
	if u.IsEmpty() {
		return fmt.Errorf("%w: %w", ErrValidation, ErrEmptyUpdate)
	}
	return nil
}

// Apply copies the set fields of u onto n.
func (u NovelUpdate) Apply(n *Novel) {
	if u.Name != nil {
		n.Name = *u.Name
	}
	if u.Author != nil {
		n.Author = *u.Author
	}
	if u.Cover != nil {
		n.Cover = *u.Cover
	}
	if u.Summary != nil {
		n.Summary = *u.Summary
	}
	if u.Status != nil {
		n.Status = *u.Status
	}
}
