package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apimiddleware "github.com/phrazzld/shelf/internal/api/middleware"
)

// RouterDeps are the handlers and collaborators mounted by NewRouter.
type RouterDeps struct {
	Library  *LibraryHandler
	Queue    *QueueHandler
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger
}

// NewRouter creates the application router with all routes and middleware.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(apimiddleware.NewTraceMiddleware(deps.Logger))

	r.Route("/api", func(r chi.Router) {
		r.Post("/novels/{id}/refresh", deps.Library.RefreshNovel)
		r.Patch("/novels/{id}", deps.Library.EditNovel)
		r.Post("/novels/{novelID}/chapters/{chapterID}/downloaded", deps.Library.MarkChapterDownloaded)
		r.Post("/categories/{id}/imports", deps.Library.ImportNovels)

		r.Get("/queue", deps.Queue.Status)
		r.Delete("/queue/records", deps.Queue.ClearRecords)

		r.Get("/settings/skip-window", deps.Queue.GetSkipWindow)
		r.Put("/settings/skip-window", deps.Queue.PutSkipWindow)
	})

	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			slog.Error("failed to write health check response", "error", err)
		}
	})

	return r
}
