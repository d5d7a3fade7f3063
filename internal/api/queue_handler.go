package api

import (
	"context"
	"net/http"
	"time"

	"github.com/phrazzld/shelf/internal/api/shared"
	"github.com/phrazzld/shelf/internal/writeq"
)

// QueueInspector exposes the write queue's diagnostics. *writeq.Queue
// implements it.
type QueueInspector interface {
	Status() writeq.Status
	ClearPersistentQueue(ctx context.Context) (int, error)
}

// SkipWindowSettings reads and replaces the library update skip window.
type SkipWindowSettings interface {
	LibraryUpdateSkipWindow() time.Duration
	SetLibraryUpdateSkipWindow(d time.Duration)
}

// QueueHandler handles queue diagnostics and settings requests.
type QueueHandler struct {
	queue    QueueInspector
	settings SkipWindowSettings
}

// NewQueueHandler creates a new QueueHandler.
func NewQueueHandler(queue QueueInspector, settings SkipWindowSettings) *QueueHandler {
	return &QueueHandler{queue: queue, settings: settings}
}

// Status handles GET /queue requests.
func (h *QueueHandler) Status(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, h.queue.Status())
}

// ClearRecords handles DELETE /queue/records requests. Tasks already in
// memory keep running; only their on-disk records are dropped.
func (h *QueueHandler) ClearRecords(w http.ResponseWriter, r *http.Request) {
	n, err := h.queue.ClearPersistentQueue(r.Context())
	if err != nil {
		respondWithError(w, r, http.StatusInternalServerError, "Failed to clear queue records", err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, ClearQueueResponse{Removed: n})
}

// GetSkipWindow handles GET /settings/skip-window requests.
func (h *QueueHandler) GetSkipWindow(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, SkipWindowResponse{
		Minutes: int(h.settings.LibraryUpdateSkipWindow() / time.Minute),
	})
}

// PutSkipWindow handles PUT /settings/skip-window requests. The new window
// applies to every task validated afterwards, including ones already queued.
func (h *QueueHandler) PutSkipWindow(w http.ResponseWriter, r *http.Request) {
	var req SkipWindowRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	h.settings.SetLibraryUpdateSkipWindow(time.Duration(req.Minutes) * time.Minute)
	shared.RespondWithJSON(w, r, http.StatusOK, SkipWindowResponse(req))
}
