package source

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/sekaidex/chapterd/internal/constants"
	"github.com/sekaidex/chapterd/internal/domain"
)

// Source fetches chapter contents from one remote site.
type Source interface {
	// ID is the stable numeric identifier stored on series rows.
	ID() int64
	// Name is the human-readable site name used in directory names.
	Name() string
	// GetPageList resolves the chapter's ordered page URLs.
	GetPageList(ctx context.Context, chapter *domain.Chapter) ([]domain.Page, error)
	// FetchImage streams one page image. The returned content type drives
	// the final file extension.
	FetchImage(ctx context.Context, page domain.Page) (io.ReadCloser, string, error)
}

// Primary marks the source allowed a higher per-chapter page concurrency.
type Primary interface {
	Primary() bool
}

// Manager is a registry of configured sources keyed by id.
type Manager struct {
	mu      sync.RWMutex
	sources map[int64]Source
}

func NewManager() *Manager {
	return &Manager{sources: make(map[int64]Source)}
}

func (m *Manager) Register(s Source) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sources[s.ID()] = s
}

func (m *Manager) Get(id int64) (Source, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sources[id]
	if !ok {
		return nil, fmt.Errorf("source %d not registered", id)
	}
	return s, nil
}

func (m *Manager) List() []Source {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Source, 0, len(m.sources))
	for _, s := range m.sources {
		out = append(out, s)
	}
	return out
}

// PageConcurrency returns how many pages of one chapter may be fetched in
// parallel from the given source.
func (m *Manager) PageConcurrency(id int64) int {
	m.mu.RLock()
	s, ok := m.sources[id]
	m.mu.RUnlock()
	if ok {
		if p, isPrimary := s.(Primary); isPrimary && p.Primary() {
			return constants.PrimaryPageConcurrency
		}
	}
	return constants.SecondaryPageConcurrency
}
