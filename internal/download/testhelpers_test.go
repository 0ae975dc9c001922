package download

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/sekaidex/chapterd/internal/domain"
	"github.com/sekaidex/chapterd/internal/logger"
	"github.com/sekaidex/chapterd/internal/source"
	"github.com/sekaidex/chapterd/internal/store"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error", Format: "text"})
}

// fakeMeta is an in-memory Metadata implementation.
type fakeMeta struct {
	mu       sync.Mutex
	series   map[int64]*domain.Series
	chapters map[int64]*domain.Chapter
}

func newFakeMeta() *fakeMeta {
	return &fakeMeta{
		series:   make(map[int64]*domain.Series),
		chapters: make(map[int64]*domain.Chapter),
	}
}

func (m *fakeMeta) addSeries(s *domain.Series) { m.series[s.ID] = s }

func (m *fakeMeta) addChapter(c *domain.Chapter) { m.chapters[c.ID] = c }

func (m *fakeMeta) GetSeries(id int64) (*domain.Series, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.series[id], nil
}

func (m *fakeMeta) GetChapter(id int64) (*domain.Chapter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.chapters[id], nil
}

func (m *fakeMeta) ListSeries() ([]*domain.Series, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Series, 0, len(m.series))
	for _, s := range m.series {
		out = append(out, s)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out, nil
}

func (m *fakeMeta) ListChapters(seriesID int64) ([]*domain.Chapter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Chapter
	for _, c := range m.chapters {
		if c.SeriesID == seriesID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].SourceOrder < out[b].SourceOrder })
	return out, nil
}

// fakeQueueStore is an in-memory QueueStore.
type fakeQueueStore struct {
	mu      sync.Mutex
	records map[int64]store.QueueRecord
}

func newFakeQueueStore() *fakeQueueStore {
	return &fakeQueueStore{records: make(map[int64]store.QueueRecord)}
}

func (s *fakeQueueStore) PersistQueue(records []store.QueueRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range records {
		s.records[rec.ChapterID] = rec
	}
	return nil
}

func (s *fakeQueueStore) RemoveQueue(chapterIDs ...int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range chapterIDs {
		delete(s.records, id)
	}
	return nil
}

func (s *fakeQueueStore) ClearQueue() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[int64]store.QueueRecord)
	return nil
}

func (s *fakeQueueStore) ListQueue() ([]store.QueueRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.QueueRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Position < out[b].Position })
	return out, nil
}

func (s *fakeQueueStore) NextQueuePosition() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	max := 0
	for _, rec := range s.records {
		if rec.Position > max {
			max = rec.Position
		}
	}
	return max + 1, nil
}

func (s *fakeQueueStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// fakeDeleteStore is an in-memory DeleteStore.
type fakeDeleteStore struct {
	mu    sync.Mutex
	blobs map[int64][]byte
}

func newFakeDeleteStore() *fakeDeleteStore {
	return &fakeDeleteStore{blobs: make(map[int64][]byte)}
}

func (s *fakeDeleteStore) GetPendingDelete(seriesID int64) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blobs[seriesID], nil
}

func (s *fakeDeleteStore) SetPendingDelete(seriesID int64, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[seriesID] = data
	return nil
}

func (s *fakeDeleteStore) DeletePendingDelete(seriesID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, seriesID)
	return nil
}

func (s *fakeDeleteStore) ListPendingDeletes() (map[int64][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int64][]byte, len(s.blobs))
	for k, v := range s.blobs {
		out[k] = v
	}
	return out, nil
}

func (s *fakeDeleteStore) ClearPendingDeletes() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs = make(map[int64][]byte)
	return nil
}

// fakeSource serves a fixed page list and canned image bytes, with optional
// per-page failure injection.
type fakeSource struct {
	id    int64
	name  string
	pages []domain.Page
	// when set, FetchImage blocks until the channel closes
	gate chan struct{}

	mu          sync.Mutex
	fetches     map[int]int // page index -> fetch attempts
	failPages   map[int]int // page index -> failures before success (-1 = always)
	pageListErr error
}

func newFakeSource(id int64, name string, pageCount int) *fakeSource {
	pages := make([]domain.Page, pageCount)
	for i := range pages {
		pages[i] = domain.Page{Index: i, URL: fmt.Sprintf("http://img.test/%d.jpg", i)}
	}
	return &fakeSource{
		id:        id,
		name:      name,
		pages:     pages,
		fetches:   make(map[int]int),
		failPages: make(map[int]int),
	}
}

func (s *fakeSource) ID() int64 { return s.id }

func (s *fakeSource) Name() string { return s.name }

func (s *fakeSource) GetPageList(ctx context.Context, chapter *domain.Chapter) ([]domain.Page, error) {
	if s.pageListErr != nil {
		return nil, s.pageListErr
	}
	return append([]domain.Page(nil), s.pages...), nil
}

func (s *fakeSource) FetchImage(ctx context.Context, page domain.Page) (io.ReadCloser, string, error) {
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return nil, "", ctx.Err()
		}
	}
	s.mu.Lock()
	s.fetches[page.Index]++
	remaining, failing := s.failPages[page.Index]
	if failing && remaining != 0 {
		if remaining > 0 {
			s.failPages[page.Index] = remaining - 1
		}
		s.mu.Unlock()
		return nil, "", fmt.Errorf("injected failure for page %d", page.Index)
	}
	s.mu.Unlock()
	body := io.NopCloser(bytes.NewReader([]byte(fmt.Sprintf("image-%d", page.Index))))
	return body, "image/jpeg", nil
}

func (s *fakeSource) fetchCount(index int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches[index]
}

// fakeSources is a Sources registry over fakeSource values.
type fakeSources struct {
	sources map[int64]source.Source
}

func newFakeSources(srcs ...source.Source) *fakeSources {
	m := make(map[int64]source.Source, len(srcs))
	for _, s := range srcs {
		m[s.ID()] = s
	}
	return &fakeSources{sources: m}
}

func (f *fakeSources) Get(id int64) (source.Source, error) {
	s, ok := f.sources[id]
	if !ok {
		return nil, fmt.Errorf("source %d not registered", id)
	}
	return s, nil
}

func (f *fakeSources) PageConcurrency(id int64) int { return 3 }

// recordingNotifier captures every event for assertions.
type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
}

func (n *recordingNotifier) Notify(e Event) {
	n.mu.Lock()
	n.events = append(n.events, e)
	n.mu.Unlock()
}

func (n *recordingNotifier) byKind(kind EventKind) []Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []Event
	for _, e := range n.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}
