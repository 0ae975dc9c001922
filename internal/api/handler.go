package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/sekaidex/chapterd/internal/download"
	"github.com/sekaidex/chapterd/internal/logger"
)

// Handler serves the JSON control surface over the download subsystem.
type Handler struct {
	Manager *download.Manager
	Meta    download.Metadata
	Logger  *logger.Logger
}

func NewHandler(manager *download.Manager, meta download.Metadata, log *logger.Logger) *Handler {
	return &Handler{
		Manager: manager,
		Meta:    meta,
		Logger:  log.WithComponent("api"),
	}
}

// Router builds the chi router with the standard middleware stack.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	h.RegisterRoutes(r)
	return r
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/queue", h.ListQueue)
		r.Post("/queue", h.EnqueueChapters)
		r.Delete("/queue", h.ClearQueue)
		r.Post("/queue/reorder", h.ReorderQueue)
		r.Post("/queue/start", h.StartQueue)
		r.Post("/queue/pause", h.PauseQueue)
		r.Post("/queue/resume", h.ResumeQueue)
		r.Post("/queue/stop", h.StopQueue)
		r.Post("/queue/download-now", h.DownloadNow)

		r.Route("/series/{seriesID}", func(r chi.Router) {
			r.Delete("/", h.DeleteSeries)
			r.Delete("/queue", h.ClearSeriesQueue)
			r.Post("/delete-chapters", h.DeleteChapters)
			r.Post("/cleanup", h.CleanupSeries)
			r.Post("/rename", h.RenameSeriesFolder)
			r.Get("/download-count", h.DownloadCount)
		})

		r.Get("/chapters/{chapterID}/downloaded", h.ChapterDownloaded)
		r.Post("/deletions/process", h.ProcessDeletions)
		r.Post("/cache/refresh", h.RefreshCache)
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.Logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return false
	}
	return true
}
