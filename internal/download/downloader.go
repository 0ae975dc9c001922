package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sekaidex/chapterd/internal/archive"
	"github.com/sekaidex/chapterd/internal/constants"
	"github.com/sekaidex/chapterd/internal/domain"
	"github.com/sekaidex/chapterd/internal/logger"
	"github.com/sekaidex/chapterd/internal/provider"
	"github.com/sekaidex/chapterd/internal/storage"
)

// EngineConfig carries the policy knobs for the engine.
type EngineConfig struct {
	// SaveAsCBZ seals finished chapters into archives instead of leaving
	// page directories.
	SaveAsCBZ bool
	// StopOnError halts the whole engine when any job fails, protecting a
	// possibly rate-limiting source at the cost of pausing healthy jobs.
	StopOnError bool
	// RetryBase is the first page-retry backoff; subsequent retries double
	// it. Defaults to constants.PageRetryBase.
	RetryBase time.Duration
}

// Engine owns the live queue and drives each job through its state machine.
// A scheduler goroutine reacts to queue changes and keeps at most
// constants.JobsPerSource workers running per source; each worker downloads
// one chapter with bounded page concurrency.
type Engine struct {
	queue    *Queue
	jobStore *JobStore
	cache    *Cache
	resolver *provider.Resolver
	sources  Sources
	notifier Notifier
	log      *logger.Logger
	// baseCtx bounds the scheduler's lifetime. It is the process context,
	// never a request context: callers of Start come and go, the engine
	// does not.
	baseCtx context.Context

	saveAsCBZ   bool
	stopOnError bool
	retryBase   time.Duration
	// spaceFn reports available bytes at a path, -1 when unknown.
	spaceFn func(string) int64

	muCtl   sync.Mutex
	running bool
	paused  bool
	cancel  context.CancelFunc
	active  map[int64]context.CancelFunc
}

func NewEngine(
	ctx context.Context,
	queue *Queue,
	jobStore *JobStore,
	cache *Cache,
	resolver *provider.Resolver,
	sources Sources,
	notifier Notifier,
	log *logger.Logger,
	cfg EngineConfig,
) *Engine {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = constants.PageRetryBase
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Engine{
		baseCtx:     ctx,
		queue:       queue,
		jobStore:    jobStore,
		cache:       cache,
		resolver:    resolver,
		sources:     sources,
		notifier:    notifier,
		log:         log.WithComponent("download-engine"),
		saveAsCBZ:   cfg.SaveAsCBZ,
		stopOnError: cfg.StopOnError,
		retryBase:   cfg.RetryBase,
		spaceFn:     storage.AvailableSpace,
		active:      make(map[int64]context.CancelFunc),
	}
}

// Start launches the scheduler. Calling Start on a running engine is a
// no-op; starting after a stop also re-queues errored jobs.
func (e *Engine) Start() {
	e.muCtl.Lock()
	if e.running {
		e.paused = false
		e.muCtl.Unlock()
		e.queue.Signal()
		return
	}
	ctx, cancel := context.WithCancel(e.baseCtx)
	e.running = true
	e.paused = false
	e.cancel = cancel
	e.muCtl.Unlock()

	e.requeueErrored()
	go e.schedule(ctx)
	e.log.Info("engine started")
}

// Stop cancels all workers and halts the scheduler. Jobs caught mid-download
// are marked Error; queued jobs stay queued for the next Start.
func (e *Engine) Stop(reason string) {
	e.muCtl.Lock()
	if !e.running {
		e.muCtl.Unlock()
		return
	}
	e.running = false
	cancel := e.cancel
	e.cancel = nil
	for id, cancelJob := range e.active {
		cancelJob()
		delete(e.active, id)
	}
	e.muCtl.Unlock()
	cancel()

	for _, job := range e.queue.Snapshot() {
		if job.Status() == domain.Downloading {
			job.SetStatus(domain.StatusError)
			e.notifyStatus(job)
		}
	}
	e.log.Info("engine stopped", "reason", reason)
}

// Pause cancels all workers but keeps the scheduler alive; jobs caught
// mid-download are demoted back to Queued so Resume picks them up cleanly.
func (e *Engine) Pause() {
	e.muCtl.Lock()
	if !e.running || e.paused {
		e.muCtl.Unlock()
		return
	}
	e.paused = true
	for id, cancelJob := range e.active {
		cancelJob()
		delete(e.active, id)
	}
	e.muCtl.Unlock()

	for _, job := range e.queue.Snapshot() {
		if job.Status() == domain.Downloading {
			job.SetStatus(domain.Queued)
			e.notifyStatus(job)
		}
	}
	e.log.Info("engine paused")
}

// CancelJobs cancels the workers for the given chapters. Callers evicting
// jobs from the queue use this so a deleted or cleared chapter cannot be
// finalized by a worker that is already past its fetch.
func (e *Engine) CancelJobs(chapterIDs ...int64) {
	e.muCtl.Lock()
	for _, id := range chapterIDs {
		if cancelJob, ok := e.active[id]; ok {
			cancelJob()
			delete(e.active, id)
		}
	}
	e.muCtl.Unlock()
}

// Resume lifts a pause.
func (e *Engine) Resume() {
	e.muCtl.Lock()
	wasPaused := e.running && e.paused
	e.paused = false
	e.muCtl.Unlock()
	if wasPaused {
		e.queue.Signal()
		e.log.Info("engine resumed")
	}
}

// Clear cancels everything and empties the queue. Evicted jobs are demoted
// to NotDownloaded so stale references report correctly.
func (e *Engine) Clear() error {
	e.muCtl.Lock()
	for id, cancelJob := range e.active {
		cancelJob()
		delete(e.active, id)
	}
	e.muCtl.Unlock()

	var evicted []*Job
	e.queue.Update(func(jobs []*Job) []*Job {
		evicted = jobs
		return nil
	})
	for _, job := range evicted {
		job.SetStatus(domain.NotDownloaded)
		e.notifyStatus(job)
	}
	return e.jobStore.Clear()
}

func (e *Engine) IsRunning() bool {
	e.muCtl.Lock()
	defer e.muCtl.Unlock()
	return e.running && !e.paused
}

func (e *Engine) requeueErrored() {
	changed := false
	for _, job := range e.queue.Snapshot() {
		if job.Status() == domain.StatusError {
			job.SetErr(nil)
			job.SetStatus(domain.Queued)
			changed = true
		}
	}
	if changed {
		e.queue.Signal()
	}
}

// schedule is the reactive loop: on every queue change it recomputes the
// active set and launches workers for queued jobs with free source slots.
func (e *Engine) schedule(ctx context.Context) {
	for {
		e.launchReady(ctx)
		select {
		case <-ctx.Done():
			return
		case <-e.queue.Changed():
		}
	}
}

func (e *Engine) launchReady(ctx context.Context) {
	e.muCtl.Lock()
	defer e.muCtl.Unlock()
	if !e.running || e.paused {
		return
	}

	perSource := make(map[int64]int)
	snapshot := e.queue.Snapshot()
	for _, job := range snapshot {
		if _, isActive := e.active[job.Chapter.ID]; isActive {
			perSource[job.Series.Source]++
		}
	}
	for _, job := range snapshot {
		if job.Status() != domain.Queued {
			continue
		}
		if _, isActive := e.active[job.Chapter.ID]; isActive {
			continue
		}
		if perSource[job.Series.Source] >= constants.JobsPerSource {
			continue
		}
		perSource[job.Series.Source]++

		jobCtx, cancelJob := context.WithCancel(ctx)
		e.active[job.Chapter.ID] = cancelJob
		go e.runJob(jobCtx, job)
	}
}

func (e *Engine) runJob(ctx context.Context, job *Job) {
	log := e.log.WithJob(job.ID, job.Chapter.ID)
	err := e.download(ctx, job)

	e.muCtl.Lock()
	delete(e.active, job.Chapter.ID)
	e.muCtl.Unlock()

	switch {
	case ctx.Err() != nil:
		// cancellation always wins and is never an error; whoever
		// cancelled already set the job's status
		return
	case err != nil:
		job.SetErr(err)
		job.SetStatus(domain.StatusError)
		log.Error("chapter download failed", "error", err)
		e.notifier.Notify(Event{
			Kind:      EventError,
			JobID:     job.ID,
			ChapterID: job.Chapter.ID,
			Status:    domain.StatusError,
			Message:   err.Error(),
		})
		if e.stopOnError {
			e.Stop("job failed")
			e.notifier.Notify(Event{
				Kind:    EventWarning,
				Message: "downloads stopped after a failed job",
			})
		} else {
			e.queue.Signal()
		}
	default:
		job.SetStatus(domain.Downloaded)
		log.Info("chapter downloaded", "pages", len(job.Pages()))
		e.notifyStatus(job)
		e.queue.Update(func(jobs []*Job) []*Job {
			out := jobs[:0]
			for _, j := range jobs {
				if j != job {
					out = append(out, j)
				}
			}
			return out
		})
		if err := e.jobStore.Remove(job); err != nil {
			log.Error("failed to unpersist finished job", "error", err)
		}
	}
}

// download runs one job end to end and returns the job-fatal error, if any.
func (e *Engine) download(ctx context.Context, job *Job) error {
	src, err := e.sources.Get(job.Series.Source)
	if err != nil {
		return err
	}

	seriesDir, err := e.resolver.SeriesDir(job.Series, src.Name())
	if err != nil {
		return err
	}

	if avail := e.spaceFn(e.resolver.Root()); avail >= 0 && avail < constants.MinDiskSpace {
		e.notifier.Notify(Event{
			Kind:      EventWarning,
			JobID:     job.ID,
			ChapterID: job.Chapter.ID,
			Message:   "low disk space",
		})
		return fmt.Errorf("insufficient disk space: %d bytes available", avail)
	}

	pages := job.Pages()
	if pages == nil {
		pages, err = src.GetPageList(ctx, job.Chapter)
		if err != nil {
			return fmt.Errorf("failed to fetch page list: %w", err)
		}
		// indices as reported by sources are not reliable; file naming
		// needs them dense and zero-based
		for i := range pages {
			pages[i].Index = i
		}
		job.SetPages(pages)
	}
	if len(pages) == 0 {
		return errors.New("page list is empty")
	}

	dirName := e.resolver.ChapterDirName(job.Chapter, false)
	if dirName == "" {
		dirName = e.resolver.ScanlatorDirName(job.Chapter)
	}
	tmpDir := filepath.Join(seriesDir, dirName+constants.TmpDirSuffix)
	if err := storage.EnsureDir(tmpDir); err != nil {
		return err
	}
	if err := dropTmpFragments(tmpDir); err != nil {
		return err
	}

	job.SetStatus(domain.Downloading)
	e.notifyStatus(job)

	if err := e.fetchPages(ctx, src, job, tmpDir, pages); err != nil {
		return err
	}

	got, err := countPageFiles(tmpDir)
	if err != nil {
		return err
	}
	if got != len(pages) {
		return fmt.Errorf("downloaded %d of %d pages", got, len(pages))
	}

	// a job cancelled between its last fetch and this point must not be
	// finalized; the chapter may have just been deleted
	if err := ctx.Err(); err != nil {
		return err
	}

	finalName := dirName
	if e.saveAsCBZ {
		finalName = dirName + constants.CBZExtension
		if err := archive.Seal(tmpDir, filepath.Join(seriesDir, finalName)); err != nil {
			return err
		}
		if err := storage.RemoveAll(tmpDir); err != nil {
			return err
		}
	} else {
		dest := filepath.Join(seriesDir, dirName)
		if err := storage.RemoveAll(dest); err != nil {
			return err
		}
		if err := storage.Rename(tmpDir, dest); err != nil {
			return err
		}
	}

	e.cache.RecordAdded(finalName, job.Series)
	return nil
}

// fetchPages fans pages out with bounded concurrency. Per-page failures are
// absorbed here; the caller detects incompleteness through the file count.
func (e *Engine) fetchPages(ctx context.Context, src sourceFetcher, job *Job, tmpDir string, pages []domain.Page) error {
	existing, err := storage.ListDirNames(tmpDir)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.sources.PageConcurrency(job.Series.Source))

	for i := range pages {
		page := &pages[i]
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			prefix := pagePrefix(page.Index)
			if name := findPageFile(existing, prefix); name != "" {
				// already complete from a previous attempt
				page.State = domain.PageReady
				page.LocalURI = filepath.Join(tmpDir, name)
				page.Progress = 100
				e.notifyProgress(job)
				return nil
			}
			if err := e.fetchPage(gctx, src, tmpDir, page, prefix); err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				page.State = domain.PageError
				e.log.WithJob(job.ID, job.Chapter.ID).Warn("page failed",
					"page", page.Index, "error", err)
				return nil
			}
			e.notifyProgress(job)
			return nil
		})
	}
	return g.Wait()
}

// sourceFetcher is the slice of Source the page loop needs.
type sourceFetcher interface {
	GetPageList(ctx context.Context, chapter *domain.Chapter) ([]domain.Page, error)
	FetchImage(ctx context.Context, page domain.Page) (io.ReadCloser, string, error)
}

// fetchPage downloads one page with bounded retries, writing to a .tmp file
// and renaming once the content type is known.
func (e *Engine) fetchPage(ctx context.Context, src sourceFetcher, tmpDir string, page *domain.Page, prefix string) error {
	page.State = domain.PageDownloading
	var lastErr error
	for attempt := 0; attempt <= constants.PageRetryCount; attempt++ {
		if attempt > 0 {
			backoff := e.retryBase << (attempt - 1)
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
		localPath, err := e.transferPage(ctx, src, tmpDir, page, prefix)
		if err == nil {
			page.State = domain.PageReady
			page.LocalURI = localPath
			page.Progress = 100
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		lastErr = err
	}
	return lastErr
}

func (e *Engine) transferPage(ctx context.Context, src sourceFetcher, tmpDir string, page *domain.Page, prefix string) (string, error) {
	body, contentType, err := src.FetchImage(ctx, *page)
	if err != nil {
		return "", err
	}
	defer body.Close()

	tmpPath := filepath.Join(tmpDir, prefix+constants.TmpFileSuffix)
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, constants.FilePermissions)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return "", err
	}

	finalPath := filepath.Join(tmpDir, prefix+imageExtension(contentType))
	if err := storage.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return "", err
	}
	return finalPath, nil
}

func (e *Engine) notifyStatus(job *Job) {
	done, total := job.Progress()
	e.notifier.Notify(Event{
		Kind:      EventStatus,
		JobID:     job.ID,
		ChapterID: job.Chapter.ID,
		Status:    job.Status(),
		PagesDone: done,
		PagesAll:  total,
	})
}

func (e *Engine) notifyProgress(job *Job) {
	done := job.MarkPageDone()
	_, total := job.Progress()
	e.notifier.Notify(Event{
		Kind:      EventProgress,
		JobID:     job.ID,
		ChapterID: job.Chapter.ID,
		Status:    job.Status(),
		PagesDone: done,
		PagesAll:  total,
	})
}

// pagePrefix is the zero-padded index every page file name starts with.
// Padding keeps lexical and source order aligned, which resume and readers
// both depend on.
func pagePrefix(index int) string {
	return fmt.Sprintf("%0*d", constants.MinPageDigits, index)
}

// findPageFile returns a finished file for the prefix, ignoring .tmp
// fragments.
func findPageFile(names []string, prefix string) string {
	for _, name := range names {
		if strings.HasSuffix(name, constants.TmpFileSuffix) {
			continue
		}
		if strings.HasPrefix(name, prefix+".") {
			return name
		}
	}
	return ""
}

// dropTmpFragments removes half-written page files from an earlier aborted
// attempt. Idempotent; finished pages stay for resume.
func dropTmpFragments(tmpDir string) error {
	names, err := storage.ListDirNames(tmpDir)
	if err != nil {
		return err
	}
	for _, name := range names {
		if strings.HasSuffix(name, constants.TmpFileSuffix) {
			if err := storage.RemoveFile(filepath.Join(tmpDir, name)); err != nil {
				return err
			}
		}
	}
	return nil
}

func countPageFiles(tmpDir string) (int, error) {
	names, err := storage.ListDirNames(tmpDir)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, name := range names {
		if !strings.HasSuffix(name, constants.TmpFileSuffix) {
			count++
		}
	}
	return count, nil
}

// imageExtension maps a response content type to the final page extension.
func imageExtension(contentType string) string {
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = contentType[:i]
	}
	switch strings.TrimSpace(contentType) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	}
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".jpg"
}
