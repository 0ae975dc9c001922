package download

import (
	"fmt"

	"github.com/sekaidex/chapterd/internal/logger"
	"github.com/sekaidex/chapterd/internal/store"
)

// JobStore mirrors queue mutations into durable storage so a crash
// mid-download reconstructs a consistent queue on restart. Only identity
// and order are persisted; chapters and series are re-resolved from
// metadata when restoring.
type JobStore struct {
	store QueueStore
	meta  Metadata
	log   *logger.Logger
}

func NewJobStore(queueStore QueueStore, meta Metadata, log *logger.Logger) *JobStore {
	return &JobStore{
		store: queueStore,
		meta:  meta,
		log:   log.WithComponent("job-store"),
	}
}

// Add appends records for newly enqueued jobs.
func (s *JobStore) Add(jobs []*Job) error {
	if len(jobs) == 0 {
		return nil
	}
	next, err := s.store.NextQueuePosition()
	if err != nil {
		return fmt.Errorf("failed to allocate queue positions: %w", err)
	}
	records := make([]store.QueueRecord, len(jobs))
	for i, job := range jobs {
		records[i] = store.QueueRecord{
			ChapterID: job.Chapter.ID,
			SeriesID:  job.Series.ID,
			Position:  next + i,
		}
	}
	return s.store.PersistQueue(records)
}

// Remove deletes the records for finished or evicted jobs.
func (s *JobStore) Remove(jobs ...*Job) error {
	ids := make([]int64, len(jobs))
	for i, job := range jobs {
		ids[i] = job.Chapter.ID
	}
	return s.store.RemoveQueue(ids...)
}

// Replace rewrites the whole persisted queue to match the given order.
// Used after reorders, where positions change wholesale.
func (s *JobStore) Replace(jobs []*Job) error {
	if err := s.store.ClearQueue(); err != nil {
		return err
	}
	records := make([]store.QueueRecord, len(jobs))
	for i, job := range jobs {
		records[i] = store.QueueRecord{
			ChapterID: job.Chapter.ID,
			SeriesID:  job.Series.ID,
			Position:  i,
		}
	}
	return s.store.PersistQueue(records)
}

func (s *JobStore) Clear() error {
	return s.store.ClearQueue()
}

// Restore reads the persisted queue, resolves each record against metadata
// and clears the store. Records whose chapter or series no longer exists
// are skipped with a warning; restore never fails on individual records.
func (s *JobStore) Restore() ([]*Job, error) {
	records, err := s.store.ListQueue()
	if err != nil {
		return nil, fmt.Errorf("failed to read persisted queue: %w", err)
	}

	var jobs []*Job
	for _, rec := range records {
		chapter, err := s.meta.GetChapter(rec.ChapterID)
		if err != nil {
			return nil, err
		}
		series, err := s.meta.GetSeries(rec.SeriesID)
		if err != nil {
			return nil, err
		}
		if chapter == nil || series == nil {
			s.log.Warn("skipping dangling queue record",
				"chapter_id", rec.ChapterID, "series_id", rec.SeriesID)
			continue
		}
		jobs = append(jobs, NewJob(series, chapter))
	}

	if err := s.store.ClearQueue(); err != nil {
		return nil, fmt.Errorf("failed to clear persisted queue: %w", err)
	}
	s.log.Info("restored download queue", "jobs", len(jobs), "records", len(records))
	return jobs, nil
}
