package download

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sekaidex/chapterd/internal/domain"
)

func queueTestJob(chapterID int64) *Job {
	return NewJob(
		&domain.Series{ID: 1, Title: "S", Source: 1},
		&domain.Chapter{ID: chapterID, SeriesID: 1, Name: "C"},
	)
}

func TestQueueUpdatePublishesNewSnapshot(t *testing.T) {
	q := NewQueue()
	before := q.Snapshot()
	v := q.Version()

	job := queueTestJob(1)
	q.Update(func(jobs []*Job) []*Job { return append(jobs, job) })

	assert.Empty(t, before, "old snapshot must stay untouched")
	assert.Equal(t, v+1, q.Version())
	require.Len(t, q.Snapshot(), 1)
	assert.Same(t, job, q.Find(1))
	assert.Nil(t, q.Find(2))
}

func TestQueueChangedSignalCoalesces(t *testing.T) {
	q := NewQueue()
	q.Update(func(jobs []*Job) []*Job { return append(jobs, queueTestJob(1)) })
	q.Update(func(jobs []*Job) []*Job { return append(jobs, queueTestJob(2)) })

	select {
	case <-q.Changed():
	default:
		t.Fatal("expected a pending change signal")
	}
	select {
	case <-q.Changed():
		t.Fatal("signals must coalesce, not accumulate")
	default:
	}
}

func TestQueueConcurrentUpdates(t *testing.T) {
	q := NewQueue()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			q.Update(func(jobs []*Job) []*Job {
				return append(jobs, queueTestJob(id))
			})
		}(int64(i))
	}
	wg.Wait()
	assert.Equal(t, 20, q.Len())
	assert.Equal(t, int64(20), q.Version())
}
