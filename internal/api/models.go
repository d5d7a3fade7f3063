package api

import (
	"github.com/phrazzld/shelf/internal/domain"
	"github.com/phrazzld/shelf/internal/service"
)

// NovelUpdateRequest is the body of refresh and edit requests. Omitted fields
// are left unchanged.
type NovelUpdateRequest struct {
	Name    *string `json:"name,omitempty"    validate:"omitempty,min=1,max=500"`
	Author  *string `json:"author,omitempty"  validate:"omitempty,max=500"`
	Cover   *string `json:"cover,omitempty"   validate:"omitempty,max=2048"`
	Summary *string `json:"summary,omitempty" validate:"omitempty,max=20000"`
	Status  *string `json:"status,omitempty"  validate:"omitempty,max=100"`
}

// ToDomain converts the request to a domain.NovelUpdate.
func (r NovelUpdateRequest) ToDomain() domain.NovelUpdate {
	return domain.NovelUpdate{
		Name:    r.Name,
		Author:  r.Author,
		Cover:   r.Cover,
		Summary: r.Summary,
		Status:  r.Status,
	}
}

// ImportItemRequest names one novel to import.
type ImportItemRequest struct {
	NovelID  int64  `json:"novel_id,omitempty"  validate:"omitempty,gt=0"`
	PluginID string `json:"plugin_id,omitempty" validate:"required_without=NovelID"`
	Path     string `json:"path,omitempty"      validate:"required_with=PluginID"`
	Name     string `json:"name,omitempty"      validate:"max=500"`
}

// ImportRequest is the body of POST /categories/{id}/imports.
type ImportRequest struct {
	Novels []ImportItemRequest `json:"novels" validate:"required,min=1,max=1000,dive"`
}

// ToItems converts the request to service import items.
func (r ImportRequest) ToItems() []service.ImportItem {
	items := make([]service.ImportItem, len(r.Novels))
	for i, n := range r.Novels {
		items[i] = service.ImportItem{
			NovelID:  n.NovelID,
			PluginID: n.PluginID,
			Path:     n.Path,
			Name:     n.Name,
		}
	}
	return items
}

// SkipWindowRequest is the body of PUT /settings/skip-window.
type SkipWindowRequest struct {
	Minutes int `json:"minutes" validate:"gte=0,lte=10080"`
}

// SkipWindowResponse reports the current skip window.
type SkipWindowResponse struct {
	Minutes int `json:"minutes"`
}

// ClearQueueResponse reports how many records a clear removed.
type ClearQueueResponse struct {
	Removed int `json:"removed"`
}
