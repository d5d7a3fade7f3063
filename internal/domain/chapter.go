package domain

import (
	"fmt"
	"time"
)

// Chapter is a content unit of a novel.
type Chapter struct {
	ID           int64      `json:"id"`
	NovelID      int64      `json:"novel_id"`
	Path         string     `json:"path"`
	Name         string     `json:"name"`
	IsDownloaded bool       `json:"is_downloaded"`
	DownloadedAt *time.Time `json:"downloaded_at,omitempty"`
}

// Validate checks that the chapter can be stored.
func (c *Chapter) Validate() error {
	if c.NovelID <= 0 {
		return fmt.Errorf("%w: novel: %w", ErrValidation, ErrInvalidID)
	}
	if c.Path == "" {
		return fmt.Errorf("%w: %w", ErrValidation, ErrEmptyPath)
	}
	return nil
}
