package download

import (
	"encoding/json"
	"sync"

	"github.com/sekaidex/chapterd/internal/domain"
	"github.com/sekaidex/chapterd/internal/logger"
)

// PendingEntry is the staged deletion for one series: the chapters whose
// files should go once the deletion is resolved.
type PendingEntry struct {
	Series   *domain.Series    `json:"series"`
	Chapters []*domain.Chapter `json:"chapters"`
}

// PendingDeleter stages chapter deletions so they survive a restart that
// happens between the user action and the filesystem work. Staging the same
// series twice coalesces into one entry keyed by series id.
type PendingDeleter struct {
	store DeleteStore
	log   *logger.Logger

	mu   sync.Mutex
	last *PendingEntry
}

func NewPendingDeleter(deleteStore DeleteStore, log *logger.Logger) *PendingDeleter {
	return &PendingDeleter{
		store: deleteStore,
		log:   log.WithComponent("pending-deleter"),
	}
}

// Stage records chapters for deferred deletion, merging with any entry
// already staged for the series.
func (d *PendingDeleter) Stage(chapters []*domain.Chapter, series *domain.Series) error {
	if len(chapters) == 0 {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	entry, err := d.loadLocked(series)
	if err != nil {
		return err
	}
	if entry == nil {
		entry = &PendingEntry{Series: series}
	}

	staged := make(map[int64]struct{}, len(entry.Chapters))
	for _, ch := range entry.Chapters {
		staged[ch.ID] = struct{}{}
	}
	for _, ch := range chapters {
		if _, dup := staged[ch.ID]; dup {
			continue
		}
		staged[ch.ID] = struct{}{}
		entry.Chapters = append(entry.Chapters, ch)
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	if err := d.store.SetPendingDelete(series.ID, data); err != nil {
		return err
	}
	d.last = entry
	return nil
}

// loadLocked returns the staged entry for the series, using the last-write
// memo to skip a store read when staging repeatedly into the same series.
func (d *PendingDeleter) loadLocked(series *domain.Series) (*PendingEntry, error) {
	if d.last != nil && d.last.Series != nil && d.last.Series.ID == series.ID {
		return d.last, nil
	}
	data, err := d.store.GetPendingDelete(series.ID)
	if err != nil || data == nil {
		return nil, err
	}
	entry := &PendingEntry{}
	if err := json.Unmarshal(data, entry); err != nil {
		// unparsable entries never block staging
		d.log.Warn("discarding unparsable pending deletion", "series_id", series.ID, "error", err)
		return nil, nil
	}
	return entry, nil
}

// Resolve removes the named chapters from the series' staged entry once
// their files are gone, dropping the whole entry when nothing staged
// remains. Chapters never staged are ignored.
func (d *PendingDeleter) Resolve(chapters []*domain.Chapter, series *domain.Series) error {
	if len(chapters) == 0 {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	entry, err := d.loadLocked(series)
	if err != nil || entry == nil {
		return err
	}
	drop := make(map[int64]struct{}, len(chapters))
	for _, ch := range chapters {
		drop[ch.ID] = struct{}{}
	}
	kept := entry.Chapters[:0]
	for _, ch := range entry.Chapters {
		if _, hit := drop[ch.ID]; !hit {
			kept = append(kept, ch)
		}
	}
	if len(kept) == 0 {
		d.last = nil
		return d.store.DeletePendingDelete(series.ID)
	}
	entry.Chapters = kept

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	if err := d.store.SetPendingDelete(series.ID, data); err != nil {
		return err
	}
	d.last = entry
	return nil
}

// DrainAll reads every staged entry and clears the store. Unparsable
// records are skipped, never fatal, so a bad blob cannot wedge restore.
func (d *PendingDeleter) DrainAll() ([]*PendingEntry, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	blobs, err := d.store.ListPendingDeletes()
	if err != nil {
		return nil, err
	}
	var entries []*PendingEntry
	for seriesID, data := range blobs {
		entry := &PendingEntry{}
		if err := json.Unmarshal(data, entry); err != nil {
			d.log.Warn("skipping unparsable pending deletion", "series_id", seriesID, "error", err)
			continue
		}
		if entry.Series == nil || len(entry.Chapters) == 0 {
			continue
		}
		entries = append(entries, entry)
	}
	if err := d.store.ClearPendingDeletes(); err != nil {
		return nil, err
	}
	d.last = nil
	return entries, nil
}
