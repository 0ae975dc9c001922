package download

import (
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sekaidex/chapterd/internal/constants"
	"github.com/sekaidex/chapterd/internal/domain"
	"github.com/sekaidex/chapterd/internal/logger"
	"github.com/sekaidex/chapterd/internal/provider"
	"github.com/sekaidex/chapterd/internal/storage"
)

// cacheEntry indexes one series' downloads. dirNames holds every on-disk
// entry name; remoteIDs holds the id-shaped suffixes extracted from them
// for the fast membership path.
type cacheEntry struct {
	dirNames  map[string]struct{}
	remoteIDs map[string]struct{}
}

func newCacheEntry() *cacheEntry {
	return &cacheEntry{
		dirNames:  make(map[string]struct{}),
		remoteIDs: make(map[string]struct{}),
	}
}

// Cache answers "is this chapter downloaded" without touching disk on
// every query. Disk stays the ground truth; the cache is a best-effort
// index, so every read path has a bypass and a staleness bound. Entries
// are rebuilt by swap, never mutated in place during a refresh, so a
// racing reader sees either the old or the new entry.
type Cache struct {
	resolver *provider.Resolver
	sources  Sources
	meta     Metadata
	log      *logger.Logger

	renewInterval time.Duration

	mu          sync.RWMutex
	entries     map[int64]*cacheEntry
	lastRefresh time.Time
}

func NewCache(resolver *provider.Resolver, sources Sources, meta Metadata, log *logger.Logger) *Cache {
	return &Cache{
		resolver:      resolver,
		sources:       sources,
		meta:          meta,
		log:           log.WithComponent("existence-cache"),
		renewInterval: constants.CacheRenewInterval,
		entries:       make(map[int64]*cacheEntry),
	}
}

func (c *Cache) sourceName(series *domain.Series) (string, error) {
	src, err := c.sources.Get(series.Source)
	if err != nil {
		return "", err
	}
	return src.Name(), nil
}

// IsDownloaded reports whether the chapter exists on disk. With bypassCache
// the resolver is consulted directly, which is the call to make right after
// a delete when the index may not have caught up yet.
func (c *Cache) IsDownloaded(chapter *domain.Chapter, series *domain.Series, bypassCache bool) (bool, error) {
	if bypassCache {
		name, err := c.sourceName(series)
		if err != nil {
			return false, err
		}
		dir, err := c.resolver.FindChapterDir(chapter, series, name)
		return dir != "", err
	}

	c.ensureFresh()

	// the lock covers the map reads below, not just the entry lookup:
	// Record* mutators edit these maps in place under the write lock
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry := c.entries[series.ID]
	if entry == nil {
		return false, nil
	}

	// merged chapters never carry the id shape the fast path expects
	if !chapter.IsMerged() {
		if chapter.RemoteID != "" {
			if _, ok := entry.remoteIDs[chapter.RemoteID]; ok {
				return true, nil
			}
		}
		if legacy := chapter.LegacyIDString(); legacy != "" {
			if _, ok := entry.remoteIDs[legacy]; ok {
				return true, nil
			}
		}
	}

	for _, name := range c.resolver.ValidChapterDirNames(chapter) {
		if _, ok := entry.dirNames[name]; ok {
			return true, nil
		}
		if _, ok := entry.dirNames[name+constants.CBZExtension]; ok {
			return true, nil
		}
	}
	return false, nil
}

// DownloadCount returns how many chapters of the series are on disk. With
// forceCheckFolder the series directory is listed instead of trusting the
// index.
func (c *Cache) DownloadCount(series *domain.Series, forceCheckFolder bool) (int, error) {
	if forceCheckFolder {
		name, err := c.sourceName(series)
		if err != nil {
			return 0, err
		}
		dir, err := c.resolver.FindSeriesDir(series, name)
		if err != nil || dir == "" {
			return 0, err
		}
		entries, err := storage.ListDirNames(dir)
		if err != nil {
			return 0, err
		}
		count := 0
		for _, entry := range entries {
			if !strings.HasSuffix(entry, constants.TmpDirSuffix) {
				count++
			}
		}
		return count, nil
	}

	c.ensureFresh()
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry := c.entries[series.ID]
	if entry == nil {
		return 0, nil
	}
	count := 0
	for name := range entry.dirNames {
		if !strings.HasSuffix(name, constants.TmpDirSuffix) {
			count++
		}
	}
	return count, nil
}

// RefreshEntry re-lists one series' directory and swaps in the rebuilt
// entry.
func (c *Cache) RefreshEntry(series *domain.Series) error {
	name, err := c.sourceName(series)
	if err != nil {
		return err
	}
	entry, err := c.buildEntry(series, name)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.entries[series.ID] = entry
	c.mu.Unlock()
	return nil
}

func (c *Cache) buildEntry(series *domain.Series, sourceName string) (*cacheEntry, error) {
	dir, err := c.resolver.FindSeriesDir(series, sourceName)
	if err != nil {
		return nil, err
	}
	entry := newCacheEntry()
	if dir == "" {
		return entry, nil
	}
	names, err := storage.ListDirNames(dir)
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		entry.add(name)
	}
	return entry, nil
}

func (e *cacheEntry) add(name string) {
	e.dirNames[name] = struct{}{}
	id := provider.ParseDirName(name)
	if id.Kind == provider.IdentifierRemote || id.Kind == provider.IdentifierLegacyNumeric {
		e.remoteIDs[id.Value] = struct{}{}
	}
}

func (e *cacheEntry) remove(name string) {
	delete(e.dirNames, name)
	id := provider.ParseDirName(name)
	if id.Kind == provider.IdentifierRemote || id.Kind == provider.IdentifierLegacyNumeric {
		delete(e.remoteIDs, id.Value)
	}
}

// RefreshAll rebuilds the whole index in one pass over the download root.
func (c *Cache) RefreshAll() error {
	allSeries, err := c.meta.ListSeries()
	if err != nil {
		return err
	}

	rebuilt := make(map[int64]*cacheEntry, len(allSeries))
	for _, series := range allSeries {
		name, err := c.sourceName(series)
		if err != nil {
			c.log.Warn("skipping series with unknown source",
				"series_id", series.ID, "source", series.Source)
			continue
		}
		entry, err := c.buildEntry(series, name)
		if err != nil {
			return err
		}
		if len(entry.dirNames) > 0 {
			rebuilt[series.ID] = entry
		}
	}

	c.mu.Lock()
	c.entries = rebuilt
	c.lastRefresh = time.Now()
	c.mu.Unlock()
	c.log.Debug("rebuilt download index", "series", len(rebuilt))
	return nil
}

// ensureFresh rebuilds the index when it has gone stale, bounding how long
// out-of-band filesystem changes can stay invisible.
func (c *Cache) ensureFresh() {
	c.mu.RLock()
	stale := time.Since(c.lastRefresh) > c.renewInterval
	c.mu.RUnlock()
	if !stale {
		return
	}
	if err := c.RefreshAll(); err != nil {
		c.log.Error("failed to refresh download index", "error", err)
		c.mu.Lock()
		c.lastRefresh = time.Now()
		c.mu.Unlock()
	}
}

// RecordAdded makes a just-finished download visible immediately.
func (c *Cache) RecordAdded(dirName string, series *domain.Series) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry := c.entries[series.ID]
	if entry == nil {
		entry = newCacheEntry()
		c.entries[series.ID] = entry
	}
	entry.add(dirName)
}

// RecordRemoved drops every name variant of the given chapters from the
// index.
func (c *Cache) RecordRemoved(chapters []*domain.Chapter, series *domain.Series) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry := c.entries[series.ID]
	if entry == nil {
		return
	}
	for _, chapter := range chapters {
		for _, name := range c.resolver.ValidChapterDirNames(chapter) {
			entry.remove(name)
			entry.remove(name + constants.CBZExtension)
		}
	}
}

// RecordFolderRemoved drops raw on-disk names from the index, for cleanup
// paths that operate on directory listings rather than chapters.
func (c *Cache) RecordFolderRemoved(folderPaths []string, series *domain.Series) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry := c.entries[series.ID]
	if entry == nil {
		return
	}
	for _, p := range folderPaths {
		entry.remove(filepath.Base(p))
	}
}

func (c *Cache) RecordSeriesRemoved(series *domain.Series) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, series.ID)
}
