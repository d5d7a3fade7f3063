package api

import (
	"net/http"

	"github.com/phrazzld/shelf/internal/api/shared"
	"github.com/phrazzld/shelf/internal/platform/logger"
	"github.com/phrazzld/shelf/internal/service"
)

// LibraryHandler handles library mutation requests.
type LibraryHandler struct {
	library service.LibraryService
}

// NewLibraryHandler creates a new LibraryHandler.
func NewLibraryHandler(library service.LibraryService) *LibraryHandler {
	return &LibraryHandler{library: library}
}

// RefreshNovel handles POST /novels/{id}/refresh requests.
func (h *LibraryHandler) RefreshNovel(w http.ResponseWriter, r *http.Request) {
	novelID, ok := handlePathID(w, r, "id")
	if !ok {
		return
	}
	var req NovelUpdateRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	out, err := h.library.RefreshNovel(r.Context(), novelID, req.ToDomain())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, out)
}

// EditNovel handles PATCH /novels/{id} requests.
func (h *LibraryHandler) EditNovel(w http.ResponseWriter, r *http.Request) {
	novelID, ok := handlePathID(w, r, "id")
	if !ok {
		return
	}
	var req NovelUpdateRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	out, err := h.library.EditNovel(r.Context(), novelID, req.ToDomain())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	logger.FromContext(r.Context()).Info("novel edited",
		"novel_id", novelID,
		"skipped", out.Skipped)
	shared.RespondWithJSON(w, r, http.StatusOK, out)
}

// MarkChapterDownloaded handles POST /novels/{novelID}/chapters/{chapterID}/downloaded requests.
func (h *LibraryHandler) MarkChapterDownloaded(w http.ResponseWriter, r *http.Request) {
	novelID, ok := handlePathID(w, r, "novelID")
	if !ok {
		return
	}
	chapterID, ok := handlePathID(w, r, "chapterID")
	if !ok {
		return
	}

	out, err := h.library.MarkChapterDownloaded(r.Context(), novelID, chapterID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, out)
}

// ImportNovels handles POST /categories/{id}/imports requests. The imports
// are queued, not applied, when the response is sent.
func (h *LibraryHandler) ImportNovels(w http.ResponseWriter, r *http.Request) {
	categoryID, ok := handlePathID(w, r, "id")
	if !ok {
		return
	}
	var req ImportRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	receipt, err := h.library.ImportNovels(r.Context(), categoryID, req.ToItems())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusAccepted, receipt)
}
