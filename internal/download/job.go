package download

import (
	"sync"

	"github.com/google/uuid"

	"github.com/sekaidex/chapterd/internal/domain"
)

// Job is one chapter download moving through the queue. At most one live
// job exists per chapter id. Fields under mu are mutated by the worker and
// read by queue listings, so all access goes through the accessors.
type Job struct {
	ID      string
	Series  *domain.Series
	Chapter *domain.Chapter

	mu        sync.Mutex
	status    domain.JobStatus
	pages     []domain.Page
	pagesDone int
	err       error
}

func NewJob(series *domain.Series, chapter *domain.Chapter) *Job {
	return &Job{
		ID:      uuid.NewString(),
		Series:  series,
		Chapter: chapter,
		status:  domain.Queued,
	}
}

func (j *Job) Status() domain.JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

func (j *Job) SetStatus(s domain.JobStatus) {
	j.mu.Lock()
	j.status = s
	j.mu.Unlock()
}

// Pages returns the resolved page list, or nil before resolution.
func (j *Job) Pages() []domain.Page {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.pages
}

func (j *Job) SetPages(pages []domain.Page) {
	j.mu.Lock()
	j.pages = pages
	j.pagesDone = 0
	j.mu.Unlock()
}

// MarkPageDone bumps the completed-page count and returns the new count.
func (j *Job) MarkPageDone() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.pagesDone++
	return j.pagesDone
}

// Progress returns completed and total page counts. Total is zero before
// the page list is resolved.
func (j *Job) Progress() (done, total int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.pagesDone, len(j.pages)
}

func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

func (j *Job) SetErr(err error) {
	j.mu.Lock()
	j.err = err
	j.mu.Unlock()
}
