package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phrazzld/shelf/internal/domain"
	"github.com/phrazzld/shelf/internal/writeq"
)

// Enqueuer accepts durable mutations. *writeq.Queue implements it.
type Enqueuer interface {
	Submit(p writeq.Payload, opts writeq.Options) *writeq.Future
}

var _ Enqueuer = (*writeq.Queue)(nil)

// Outcome reports how a queued mutation settled.
type Outcome struct {
	// Skipped is set when the change was already in place or superseded.
	Skipped bool `json:"skipped"`

	// DurableID identifies the on-disk record, when one was written.
	DurableID string `json:"durable_id,omitempty"`
}

// ImportItem names one novel to import, either by ID or by source.
type ImportItem struct {
	NovelID  int64  `json:"novel_id,omitempty"`
	PluginID string `json:"plugin_id,omitempty"`
	Path     string `json:"path,omitempty"`
	Name     string `json:"name,omitempty"`
}

// ImportReceipt acknowledges a queued import. Imports are persisted in
// batch records, so no per-item record key is returned.
type ImportReceipt struct {
	Queued int `json:"queued"`
}

// LibraryService provides library mutations.
type LibraryService interface {
	// RefreshNovel applies metadata fetched from a source. Refreshes are
	// batched with other refreshes and skipped when redundant.
	RefreshNovel(ctx context.Context, novelID int64, u domain.NovelUpdate) (*Outcome, error)

	// EditNovel applies a user's metadata change ahead of background work.
	EditNovel(ctx context.Context, novelID int64, u domain.NovelUpdate) (*Outcome, error)

	// MarkChapterDownloaded records a finished chapter download.
	MarkChapterDownloaded(ctx context.Context, novelID, chapterID int64) (*Outcome, error)

	// ImportNovels queues novels for addition to a category and returns
	// without waiting for them to be applied.
	ImportNovels(ctx context.Context, categoryID int64, items []ImportItem) (*ImportReceipt, error)
}

type libraryServiceImpl struct {
	queue  Enqueuer
	logger *slog.Logger
}

// NewLibraryService creates a new LibraryService.
// It returns an error if queue is nil.
func NewLibraryService(queue Enqueuer, logger *slog.Logger) (LibraryService, error) {
	if queue == nil {
		return nil, &LibraryServiceError{
			Operation: "create_service",
			Message:   "queue cannot be nil",
		}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &libraryServiceImpl{
		queue:  queue,
		logger: logger.With("component", "library_service"),
	}, nil
}

func (s *libraryServiceImpl) RefreshNovel(ctx context.Context, novelID int64, u domain.NovelUpdate) (*Outcome, error) {
	return s.submitAndWait(ctx, "refresh_novel",
		writeq.LibraryUpdate{NovelID: novelID, Updates: u},
		writeq.Options{Label: "refresh"})
}

func (s *libraryServiceImpl) EditNovel(ctx context.Context, novelID int64, u domain.NovelUpdate) (*Outcome, error) {
	return s.submitAndWait(ctx, "edit_novel",
		writeq.LibraryUpdate{NovelID: novelID, Updates: u, UserEdit: true},
		writeq.Options{Priority: writeq.PriorityHigh, Individual: true, Label: "edit"})
}

func (s *libraryServiceImpl) MarkChapterDownloaded(ctx context.Context, novelID, chapterID int64) (*Outcome, error) {
	return s.submitAndWait(ctx, "mark_chapter_downloaded",
		writeq.Download{NovelID: novelID, ChapterID: chapterID},
		writeq.Options{Label: "download"})
}

func (s *libraryServiceImpl) ImportNovels(ctx context.Context, categoryID int64, items []ImportItem) (*ImportReceipt, error) {
	if len(items) == 0 {
		return nil, NewLibraryServiceError("import_novels", "no novels to import", ErrInvalidRequest)
	}

	payloads := make([]writeq.BulkImport, len(items))
	for i, item := range items {
		p := writeq.BulkImport{
			NovelID:    item.NovelID,
			PluginID:   item.PluginID,
			Path:       item.Path,
			Name:       item.Name,
			CategoryID: categoryID,
		}
		// Reject the whole request before anything is queued.
		if err := writeq.ValidatePayload(p); err != nil {
			return nil, NewLibraryServiceError("import_novels", fmt.Sprintf("item %d is invalid", i), err)
		}
		payloads[i] = p
	}

	receipt := &ImportReceipt{}
	for _, p := range payloads {
		f := s.queue.Submit(p, writeq.Options{Label: "import"})
		select {
		case <-f.Done():
			// Settled already: either rejected outright or applied very fast.
			if _, err := f.Wait(ctx); err != nil {
				s.logger.Error("failed to queue import",
					"category_id", categoryID,
					"queued", receipt.Queued,
					"error", err)
				return receipt, NewLibraryServiceError("import_novels", "failed to queue import", err)
			}
		default:
		}
		receipt.Queued++
	}

	s.logger.Info("imports queued",
		"category_id", categoryID,
		"count", receipt.Queued)
	return receipt, nil
}

func (s *libraryServiceImpl) submitAndWait(ctx context.Context, op string, p writeq.Payload, opts writeq.Options) (*Outcome, error) {
	f := s.queue.Submit(p, opts)
	res, err := f.Wait(ctx)
	if err != nil {
		s.logger.Error("queued mutation failed",
			"operation", op,
			"category", p.Category(),
			"error", err)
		return nil, NewLibraryServiceError(op, "mutation failed", err)
	}
	if res.Skipped {
		s.logger.Debug("mutation skipped", "operation", op, "category", p.Category())
	}
	return &Outcome{Skipped: res.Skipped, DurableID: f.DurableID()}, nil
}
