package download

import (
	"sync"
	"sync/atomic"
)

// queueState is one immutable snapshot of the queue. Readers hold the slice
// without locking; writers publish a fresh slice with a bumped version.
type queueState struct {
	version int64
	jobs    []*Job
}

// Queue is the live job queue. All mutations funnel through Update, which
// serializes writers and swaps in a copy, so readers never observe a torn
// list. Membership and order are immutable per snapshot; per-job state
// (status, progress) lives on the Job itself.
type Queue struct {
	mu      sync.Mutex
	state   atomic.Pointer[queueState]
	changed chan struct{}
}

func NewQueue() *Queue {
	q := &Queue{changed: make(chan struct{}, 1)}
	q.state.Store(&queueState{})
	return q
}

// Snapshot returns the current job list. Callers must not modify it.
func (q *Queue) Snapshot() []*Job {
	return q.state.Load().jobs
}

func (q *Queue) Version() int64 {
	return q.state.Load().version
}

func (q *Queue) Len() int {
	return len(q.state.Load().jobs)
}

// Find returns the live job for a chapter, or nil.
func (q *Queue) Find(chapterID int64) *Job {
	for _, job := range q.Snapshot() {
		if job.Chapter.ID == chapterID {
			return job
		}
	}
	return nil
}

// Update applies fn to a copy of the current list and publishes the result.
// fn receives its own copy and may rearrange or filter it freely.
func (q *Queue) Update(fn func(jobs []*Job) []*Job) {
	q.mu.Lock()
	cur := q.state.Load()
	next := fn(append([]*Job(nil), cur.jobs...))
	q.state.Store(&queueState{version: cur.version + 1, jobs: next})
	q.mu.Unlock()
	q.signal()
}

// Changed delivers a coalesced signal after every published snapshot.
func (q *Queue) Changed() <-chan struct{} {
	return q.changed
}

// Signal wakes subscribers without publishing a new snapshot. Used when
// per-job state changes in a way the scheduler must react to.
func (q *Queue) Signal() {
	q.signal()
}

func (q *Queue) signal() {
	select {
	case q.changed <- struct{}{}:
	default:
	}
}
