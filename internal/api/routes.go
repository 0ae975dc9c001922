package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sekaidex/chapterd/internal/constants"
	"github.com/sekaidex/chapterd/internal/domain"
)

func (h *Handler) ListQueue(w http.ResponseWriter, r *http.Request) {
	queue := h.Manager.Queue()
	snapshot := queue.Snapshot()
	if len(snapshot) > constants.MaxQueueListing {
		snapshot = snapshot[:constants.MaxQueueListing]
	}

	jobs := make([]QueuedJob, 0, len(snapshot))
	for _, job := range snapshot {
		done, total := job.Progress()
		item := QueuedJob{
			JobID:       job.ID,
			SeriesID:    job.Series.ID,
			SeriesTitle: job.Series.Title,
			ChapterID:   job.Chapter.ID,
			ChapterName: job.Chapter.Name,
			Status:      job.Status().String(),
			PagesDone:   done,
			PagesTotal:  total,
		}
		if err := job.Err(); err != nil {
			item.Error = err.Error()
		}
		jobs = append(jobs, item)
	}
	h.writeJSON(w, http.StatusOK, QueueResponse{Version: queue.Version(), Jobs: jobs})
}

func (h *Handler) EnqueueChapters(w http.ResponseWriter, r *http.Request) {
	var req EnqueueRequest
	if !h.decode(w, r, &req) {
		return
	}
	if len(req.ChapterIDs) == 0 {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("chapter_ids is required"))
		return
	}
	added, err := h.Manager.Enqueue(req.SeriesID, req.ChapterIDs, req.AutoStart)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	h.writeJSON(w, http.StatusAccepted, EnqueueResponse{Added: len(added)})
}

func (h *Handler) ClearQueue(w http.ResponseWriter, r *http.Request) {
	if err := h.Manager.Clear(); err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	h.writeJSON(w, http.StatusOK, StatusResponse{Status: "cleared"})
}

func (h *Handler) ReorderQueue(w http.ResponseWriter, r *http.Request) {
	var req ReorderRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.Manager.Reorder(req.ChapterIDs); err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	h.writeJSON(w, http.StatusOK, StatusResponse{Status: "reordered"})
}

func (h *Handler) StartQueue(w http.ResponseWriter, r *http.Request) {
	h.Manager.Start()
	h.writeJSON(w, http.StatusOK, StatusResponse{Status: "started"})
}

func (h *Handler) PauseQueue(w http.ResponseWriter, r *http.Request) {
	var req PauseRequest
	if r.ContentLength > 0 && !h.decode(w, r, &req) {
		return
	}
	h.Manager.Pause(req.Reason)
	h.writeJSON(w, http.StatusOK, StatusResponse{Status: "paused"})
}

func (h *Handler) ResumeQueue(w http.ResponseWriter, r *http.Request) {
	h.Manager.Resume()
	h.writeJSON(w, http.StatusOK, StatusResponse{Status: "resumed"})
}

func (h *Handler) StopQueue(w http.ResponseWriter, r *http.Request) {
	h.Manager.Stop("stopped by operator")
	h.writeJSON(w, http.StatusOK, StatusResponse{Status: "stopped"})
}

func (h *Handler) DownloadNow(w http.ResponseWriter, r *http.Request) {
	var req DownloadNowRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.Manager.StartDownloadNow(req.SeriesID, req.ChapterID); err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	h.writeJSON(w, http.StatusAccepted, StatusResponse{Status: "started"})
}

func (h *Handler) seriesParam(w http.ResponseWriter, r *http.Request) (*domain.Series, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "seriesID"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid series id"))
		return nil, false
	}
	series, err := h.Meta.GetSeries(id)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return nil, false
	}
	if series == nil {
		h.writeError(w, http.StatusNotFound, fmt.Errorf("series %d not found", id))
		return nil, false
	}
	return series, true
}

func (h *Handler) DeleteSeries(w http.ResponseWriter, r *http.Request) {
	series, ok := h.seriesParam(w, r)
	if !ok {
		return
	}
	if err := h.Manager.DeleteSeries(series); err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	h.writeJSON(w, http.StatusOK, StatusResponse{Status: "deleted"})
}

func (h *Handler) ClearSeriesQueue(w http.ResponseWriter, r *http.Request) {
	series, ok := h.seriesParam(w, r)
	if !ok {
		return
	}
	if err := h.Manager.ClearSeries(series.ID); err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	h.writeJSON(w, http.StatusOK, StatusResponse{Status: "cleared"})
}

func (h *Handler) DeleteChapters(w http.ResponseWriter, r *http.Request) {
	series, ok := h.seriesParam(w, r)
	if !ok {
		return
	}
	var req DeleteChaptersRequest
	if !h.decode(w, r, &req) {
		return
	}
	chapters := make([]*domain.Chapter, 0, len(req.ChapterIDs))
	for _, id := range req.ChapterIDs {
		chapter, err := h.Meta.GetChapter(id)
		if err != nil {
			h.writeError(w, http.StatusInternalServerError, err)
			return
		}
		if chapter != nil {
			chapters = append(chapters, chapter)
		}
	}

	if req.Staged {
		if err := h.Manager.StageDeletion(chapters, series); err != nil {
			h.writeError(w, http.StatusInternalServerError, err)
			return
		}
		h.writeJSON(w, http.StatusAccepted, StatusResponse{Status: "staged"})
		return
	}
	if err := h.Manager.DeleteChapters(chapters, series); err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	h.writeJSON(w, http.StatusOK, StatusResponse{Status: "deleted"})
}

func (h *Handler) CleanupSeries(w http.ResponseWriter, r *http.Request) {
	series, ok := h.seriesParam(w, r)
	if !ok {
		return
	}
	removed, err := h.Manager.CleanupSeries(series)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	h.writeJSON(w, http.StatusOK, CountResponse{Count: removed})
}

func (h *Handler) RenameSeriesFolder(w http.ResponseWriter, r *http.Request) {
	series, ok := h.seriesParam(w, r)
	if !ok {
		return
	}
	var req RenameRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.OldTitle == "" {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("old_title is required"))
		return
	}
	if err := h.Manager.RenameSeriesFolder(series, req.OldTitle); err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	h.writeJSON(w, http.StatusOK, StatusResponse{Status: "renamed"})
}

func (h *Handler) DownloadCount(w http.ResponseWriter, r *http.Request) {
	series, ok := h.seriesParam(w, r)
	if !ok {
		return
	}
	force := r.URL.Query().Get("force") == "true"
	count, err := h.Manager.DownloadCount(series, force)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	h.writeJSON(w, http.StatusOK, CountResponse{Count: count})
}

func (h *Handler) ChapterDownloaded(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "chapterID"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid chapter id"))
		return
	}
	chapter, err := h.Meta.GetChapter(id)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if chapter == nil {
		h.writeError(w, http.StatusNotFound, fmt.Errorf("chapter %d not found", id))
		return
	}
	series, err := h.Meta.GetSeries(chapter.SeriesID)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if series == nil {
		h.writeError(w, http.StatusNotFound, fmt.Errorf("series %d not found", chapter.SeriesID))
		return
	}
	skipCache := r.URL.Query().Get("skip_cache") == "true"
	downloaded, err := h.Manager.IsChapterDownloaded(chapter, series, skipCache)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	h.writeJSON(w, http.StatusOK, DownloadedResponse{Downloaded: downloaded})
}

func (h *Handler) ProcessDeletions(w http.ResponseWriter, r *http.Request) {
	if err := h.Manager.ProcessPendingDeletions(); err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	h.writeJSON(w, http.StatusOK, StatusResponse{Status: "processed"})
}

func (h *Handler) RefreshCache(w http.ResponseWriter, r *http.Request) {
	if err := h.Manager.RefreshCache(); err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	h.writeJSON(w, http.StatusOK, StatusResponse{Status: "refreshed"})
}
