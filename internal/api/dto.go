package api

// EnqueueRequest queues chapters of one series for download.
type EnqueueRequest struct {
	SeriesID   int64   `json:"series_id"`
	ChapterIDs []int64 `json:"chapter_ids"`
	AutoStart  bool    `json:"auto_start"`
}

// ReorderRequest replaces the queue order. Chapters not listed keep their
// relative order after the listed ones.
type ReorderRequest struct {
	ChapterIDs []int64 `json:"chapter_ids"`
}

// DownloadNowRequest front-splices one chapter and starts the engine.
type DownloadNowRequest struct {
	SeriesID  int64 `json:"series_id"`
	ChapterID int64 `json:"chapter_id"`
}

// DeleteChaptersRequest removes chapter files. With Staged the deletion is
// recorded durably and applied later instead of immediately.
type DeleteChaptersRequest struct {
	ChapterIDs []int64 `json:"chapter_ids"`
	Staged     bool    `json:"staged"`
}

// RenameRequest moves a series folder after a title change.
type RenameRequest struct {
	OldTitle string `json:"old_title"`
}

// PauseRequest optionally carries an operator-visible reason.
type PauseRequest struct {
	Reason string `json:"reason"`
}

// QueuedJob is the queue-listing view of one job.
type QueuedJob struct {
	JobID       string `json:"job_id"`
	SeriesID    int64  `json:"series_id"`
	SeriesTitle string `json:"series_title"`
	ChapterID   int64  `json:"chapter_id"`
	ChapterName string `json:"chapter_name"`
	Status      string `json:"status"`
	PagesDone   int    `json:"pages_done"`
	PagesTotal  int    `json:"pages_total"`
	Error       string `json:"error,omitempty"`
}

// QueueResponse is the full queue listing.
type QueueResponse struct {
	Version int64       `json:"version"`
	Jobs    []QueuedJob `json:"jobs"`
}

// EnqueueResponse reports how many chapters were actually queued.
type EnqueueResponse struct {
	Added int `json:"added"`
}

// CountResponse wraps a single counter.
type CountResponse struct {
	Count int `json:"count"`
}

// DownloadedResponse answers an existence query.
type DownloadedResponse struct {
	Downloaded bool `json:"downloaded"`
}

// StatusResponse acknowledges a control action.
type StatusResponse struct {
	Status string `json:"status"`
}

// ErrorResponse carries a failure message.
type ErrorResponse struct {
	Error string `json:"error"`
}
