package download

import (
	"github.com/sekaidex/chapterd/internal/domain"
	"github.com/sekaidex/chapterd/internal/source"
	"github.com/sekaidex/chapterd/internal/store"
)

// Metadata is the read side of the series/chapter store. Lookups return
// (nil, nil) for missing rows so restore can skip dangling references.
type Metadata interface {
	GetSeries(id int64) (*domain.Series, error)
	GetChapter(id int64) (*domain.Chapter, error)
	ListSeries() ([]*domain.Series, error)
	ListChapters(seriesID int64) ([]*domain.Chapter, error)
}

// Sources resolves source ids to configured sources.
type Sources interface {
	Get(id int64) (source.Source, error)
	PageConcurrency(id int64) int
}

// QueueStore persists queue membership and order across restarts.
type QueueStore interface {
	PersistQueue(records []store.QueueRecord) error
	RemoveQueue(chapterIDs ...int64) error
	ClearQueue() error
	ListQueue() ([]store.QueueRecord, error)
	NextQueuePosition() (int, error)
}

// DeleteStore persists staged deletions, one opaque blob per series.
type DeleteStore interface {
	GetPendingDelete(seriesID int64) ([]byte, error)
	SetPendingDelete(seriesID int64, data []byte) error
	DeletePendingDelete(seriesID int64) error
	ListPendingDeletes() (map[int64][]byte, error)
	ClearPendingDeletes() error
}
