package download

import (
	"context"
	"fmt"
	"sort"

	"github.com/sekaidex/chapterd/internal/domain"
	"github.com/sekaidex/chapterd/internal/logger"
	"github.com/sekaidex/chapterd/internal/provider"
	"github.com/sekaidex/chapterd/internal/storage"
)

// ManagerConfig carries the manager-level policy knobs.
type ManagerConfig struct {
	EngineConfig
	// BlockedScanlators are groups whose chapters are silently skipped at
	// enqueue time.
	BlockedScanlators []string
}

// Manager is the facade over the download subsystem: enqueueing, queue
// control, deletion and existence queries all go through it.
type Manager struct {
	queue    *Queue
	engine   *Engine
	cache    *Cache
	resolver *provider.Resolver
	jobStore *JobStore
	deleter  *PendingDeleter
	sources  Sources
	meta     Metadata
	notifier Notifier
	log      *logger.Logger

	blockedScanlators map[string]struct{}
}

// NewManager wires the download subsystem together. ctx bounds the engine's
// scheduler and every worker; pass the process lifecycle context, not a
// request one.
func NewManager(
	ctx context.Context,
	meta Metadata,
	queueStore QueueStore,
	deleteStore DeleteStore,
	sources Sources,
	resolver *provider.Resolver,
	notifier Notifier,
	log *logger.Logger,
	cfg ManagerConfig,
) *Manager {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	queue := NewQueue()
	cache := NewCache(resolver, sources, meta, log)
	jobStore := NewJobStore(queueStore, meta, log)
	engine := NewEngine(ctx, queue, jobStore, cache, resolver, sources, notifier, log, cfg.EngineConfig)
	deleter := NewPendingDeleter(deleteStore, log)

	blocked := make(map[string]struct{}, len(cfg.BlockedScanlators))
	for _, name := range cfg.BlockedScanlators {
		blocked[name] = struct{}{}
	}

	return &Manager{
		queue:             queue,
		engine:            engine,
		cache:             cache,
		resolver:          resolver,
		jobStore:          jobStore,
		deleter:           deleter,
		sources:           sources,
		meta:              meta,
		notifier:          notifier,
		log:               log.WithComponent("download-manager"),
		blockedScanlators: blocked,
	}
}

// Queue exposes the live queue for listings and subscriptions.
func (m *Manager) Queue() *Queue { return m.queue }

// Cache exposes the existence index.
func (m *Manager) Cache() *Cache { return m.cache }

// Enqueue adds the chapters to the download queue, skipping blocked
// scanlators, chapters already on disk and chapters already queued.
// Returns the jobs actually added.
func (m *Manager) Enqueue(seriesID int64, chapterIDs []int64, autoStart bool) ([]*Job, error) {
	series, err := m.meta.GetSeries(seriesID)
	if err != nil {
		return nil, err
	}
	if series == nil {
		return nil, fmt.Errorf("series %d not found", seriesID)
	}

	// one directory listing filters the whole batch against disk
	src, err := m.sources.Get(series.Source)
	if err != nil {
		return nil, err
	}
	seriesDir, err := m.resolver.FindSeriesDir(series, src.Name())
	if err != nil {
		return nil, err
	}
	var dirNames []string
	if seriesDir != "" {
		if dirNames, err = storage.ListDirNames(seriesDir); err != nil {
			return nil, err
		}
	}

	var added []*Job
	for _, chapterID := range chapterIDs {
		chapter, err := m.meta.GetChapter(chapterID)
		if err != nil {
			return nil, err
		}
		if chapter == nil {
			m.log.Warn("skipping unknown chapter", "chapter_id", chapterID)
			continue
		}
		if _, blocked := m.blockedScanlators[chapter.Scanlator]; blocked {
			m.log.Debug("skipping blocked scanlator",
				"chapter_id", chapterID, "scanlator", chapter.Scanlator)
			continue
		}
		if m.queue.Find(chapterID) != nil {
			continue
		}
		if m.resolver.ChapterExists(chapter, dirNames) {
			continue
		}
		added = append(added, NewJob(series, chapter))
	}
	if len(added) == 0 {
		return nil, nil
	}

	if err := m.jobStore.Add(added); err != nil {
		return nil, err
	}
	m.queue.Update(func(jobs []*Job) []*Job {
		return append(jobs, added...)
	})
	for _, job := range added {
		m.notifyStatus(job)
	}
	m.log.Info("enqueued chapters", "series_id", seriesID, "count", len(added))

	if autoStart {
		m.engine.Start()
	}
	return added, nil
}

// StartDownloadNow enqueues the chapter if needed and splices it to the
// front of the queue, then starts the engine.
func (m *Manager) StartDownloadNow(seriesID, chapterID int64) error {
	if m.queue.Find(chapterID) == nil {
		if _, err := m.Enqueue(seriesID, []int64{chapterID}, false); err != nil {
			return err
		}
	}
	m.queue.Update(func(jobs []*Job) []*Job {
		for i, job := range jobs {
			if job.Chapter.ID == chapterID {
				copy(jobs[1:i+1], jobs[:i])
				jobs[0] = job
				break
			}
		}
		return jobs
	})
	if err := m.jobStore.Replace(m.queue.Snapshot()); err != nil {
		return err
	}
	m.engine.Start()
	return nil
}

// Reorder replaces the queue order with the given chapter id sequence.
// Chapters absent from the sequence keep their relative order at the tail.
func (m *Manager) Reorder(chapterIDs []int64) error {
	rank := make(map[int64]int, len(chapterIDs))
	for i, id := range chapterIDs {
		rank[id] = i
	}
	m.queue.Update(func(jobs []*Job) []*Job {
		ordered := make([]*Job, 0, len(jobs))
		var tail []*Job
		for _, job := range jobs {
			if _, ok := rank[job.Chapter.ID]; ok {
				ordered = append(ordered, job)
			} else {
				tail = append(tail, job)
			}
		}
		sort.SliceStable(ordered, func(a, b int) bool {
			return rank[ordered[a].Chapter.ID] < rank[ordered[b].Chapter.ID]
		})
		return append(ordered, tail...)
	})
	return m.jobStore.Replace(m.queue.Snapshot())
}

// Start launches or resumes downloading.
func (m *Manager) Start() {
	m.engine.Start()
}

// Pause suspends downloading, keeping in-flight jobs queued. A reason may
// be surfaced to observers as a warning.
func (m *Manager) Pause(reason string) {
	m.engine.Pause()
	if reason != "" {
		m.notifier.Notify(Event{Kind: EventWarning, Message: reason})
	}
}

func (m *Manager) Resume() {
	m.engine.Resume()
}

// Stop halts the engine; in-flight jobs resolve to Error.
func (m *Manager) Stop(reason string) {
	m.engine.Stop(reason)
}

// Clear empties the queue, demoting evicted jobs to NotDownloaded.
func (m *Manager) Clear() error {
	return m.engine.Clear()
}

// ClearSeries removes the series' jobs from the queue and cancels any of
// them already downloading.
func (m *Manager) ClearSeries(seriesID int64) error {
	var evicted []*Job
	m.queue.Update(func(jobs []*Job) []*Job {
		out := jobs[:0]
		for _, job := range jobs {
			if job.Series.ID == seriesID {
				evicted = append(evicted, job)
			} else {
				out = append(out, job)
			}
		}
		return out
	})
	ids := make([]int64, 0, len(evicted))
	for _, job := range evicted {
		ids = append(ids, job.Chapter.ID)
	}
	m.engine.CancelJobs(ids...)
	for _, job := range evicted {
		job.SetStatus(domain.NotDownloaded)
		m.notifyStatus(job)
	}
	return m.jobStore.Remove(evicted...)
}

// Restore reloads the persisted queue after a restart. Restored jobs are
// queued but not started; the caller decides when downloading begins.
func (m *Manager) Restore() (int, error) {
	jobs, err := m.jobStore.Restore()
	if err != nil {
		return 0, err
	}
	if len(jobs) == 0 {
		return 0, nil
	}
	if err := m.jobStore.Add(jobs); err != nil {
		return 0, err
	}
	m.queue.Update(func(existing []*Job) []*Job {
		return append(existing, jobs...)
	})
	return len(jobs), nil
}

// IsChapterDownloaded answers from the index, or from disk with skipCache.
func (m *Manager) IsChapterDownloaded(chapter *domain.Chapter, series *domain.Series, skipCache bool) (bool, error) {
	return m.cache.IsDownloaded(chapter, series, skipCache)
}

// DownloadCount reports downloaded chapters for a series.
func (m *Manager) DownloadCount(series *domain.Series, forceCheckFolder bool) (int, error) {
	return m.cache.DownloadCount(series, forceCheckFolder)
}

// RefreshCache forces a full index rebuild.
func (m *Manager) RefreshCache() error {
	return m.cache.RefreshAll()
}

// StageDeletion records chapters for deferred deletion without touching
// files yet.
func (m *Manager) StageDeletion(chapters []*domain.Chapter, series *domain.Series) error {
	return m.deleter.Stage(chapters, series)
}

// DeleteChapters removes chapter files immediately. Jobs for those chapters
// are evicted from the queue and their workers cancelled first, so a
// download past its fetch cannot re-finalize a chapter that was just
// deleted.
func (m *Manager) DeleteChapters(chapters []*domain.Chapter, series *domain.Series) error {
	ids := make(map[int64]struct{}, len(chapters))
	for _, ch := range chapters {
		ids[ch.ID] = struct{}{}
	}
	var evicted []*Job
	m.queue.Update(func(jobs []*Job) []*Job {
		out := jobs[:0]
		for _, job := range jobs {
			if _, hit := ids[job.Chapter.ID]; hit {
				evicted = append(evicted, job)
			} else {
				out = append(out, job)
			}
		}
		return out
	})
	evictedIDs := make([]int64, 0, len(evicted))
	for _, job := range evicted {
		evictedIDs = append(evictedIDs, job.Chapter.ID)
	}
	m.engine.CancelJobs(evictedIDs...)
	for _, job := range evicted {
		job.SetStatus(domain.NotDownloaded)
	}
	if len(evicted) > 0 {
		if err := m.jobStore.Remove(evicted...); err != nil {
			return err
		}
	}

	src, err := m.sources.Get(series.Source)
	if err != nil {
		return err
	}
	dirs, err := m.resolver.FindChapterDirs(chapters, series, src.Name())
	if err != nil {
		return err
	}
	tmpDirs, err := m.resolver.FindTempDirs(chapters, series, src.Name())
	if err != nil {
		return err
	}
	for _, dir := range append(dirs, tmpDirs...) {
		if err := storage.RemoveAll(dir); err != nil {
			return err
		}
	}
	m.cache.RecordRemoved(chapters, series)
	m.cache.RecordFolderRemoved(dirs, series)
	if err := m.deleter.Resolve(chapters, series); err != nil {
		return err
	}

	seriesDir, err := m.resolver.FindSeriesDir(series, src.Name())
	if err != nil {
		return err
	}
	if seriesDir != "" {
		if err := storage.DeleteFolderIfEmpty(seriesDir); err != nil {
			return err
		}
	}
	m.log.Info("deleted chapters", "series_id", series.ID, "count", len(chapters))
	return nil
}

// ProcessPendingDeletions drains every staged deletion and deletes the
// files. Called at startup and whenever the operator flushes deletions.
func (m *Manager) ProcessPendingDeletions() error {
	entries, err := m.deleter.DrainAll()
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if err := m.DeleteChapters(entry.Chapters, entry.Series); err != nil {
			m.log.Error("failed to apply staged deletion",
				"series_id", entry.Series.ID, "error", err)
		}
	}
	return nil
}

// DeleteSeries removes the whole series directory and its index entry.
func (m *Manager) DeleteSeries(series *domain.Series) error {
	src, err := m.sources.Get(series.Source)
	if err != nil {
		return err
	}
	if err := m.ClearSeries(series.ID); err != nil {
		return err
	}
	dir, err := m.resolver.FindSeriesDir(series, src.Name())
	if err != nil {
		return err
	}
	if dir != "" {
		if err := storage.RemoveAll(dir); err != nil {
			return err
		}
	}
	m.cache.RecordSeriesRemoved(series)
	return nil
}

// CleanupSeries deletes orphan chapter directories and leftover temp
// directories that match none of the series' known chapters.
func (m *Manager) CleanupSeries(series *domain.Series) (int, error) {
	src, err := m.sources.Get(series.Source)
	if err != nil {
		return 0, err
	}
	chapters, err := m.meta.ListChapters(series.ID)
	if err != nil {
		return 0, err
	}
	orphans, err := m.resolver.FindUnmatchedChapterDirs(chapters, series, src.Name())
	if err != nil {
		return 0, err
	}
	for _, dir := range orphans {
		if err := storage.RemoveAll(dir); err != nil {
			return 0, err
		}
	}
	m.cache.RecordFolderRemoved(orphans, series)
	if len(orphans) > 0 {
		m.log.Info("cleaned series folder", "series_id", series.ID, "removed", len(orphans))
	}
	return len(orphans), nil
}

// RenameSeriesFolder moves the series directory after a title change and
// rebuilds its index entry under the new name.
func (m *Manager) RenameSeriesFolder(series *domain.Series, oldTitle string) error {
	src, err := m.sources.Get(series.Source)
	if err != nil {
		return err
	}
	if _, err := m.resolver.RenameSeriesFolder(oldTitle, series.Title, src.Name()); err != nil {
		return err
	}
	return m.cache.RefreshEntry(series)
}

func (m *Manager) notifyStatus(job *Job) {
	done, total := job.Progress()
	m.notifier.Notify(Event{
		Kind:      EventStatus,
		JobID:     job.ID,
		ChapterID: job.Chapter.ID,
		Status:    job.Status(),
		PagesDone: done,
		PagesAll:  total,
	})
}
