package download

import "github.com/sekaidex/chapterd/internal/domain"

// EventKind distinguishes what a queue event reports.
type EventKind int

const (
	// EventStatus is a job status transition.
	EventStatus EventKind = iota
	// EventProgress is a per-page progress update.
	EventProgress
	// EventWarning is a non-fatal condition (low disk, paused on error).
	EventWarning
	// EventError is a job-fatal failure.
	EventError
)

// Event is one observable occurrence in the download subsystem. JobID and
// ChapterID are zero for engine-wide warnings.
type Event struct {
	Kind      EventKind
	JobID     string
	ChapterID int64
	Status    domain.JobStatus
	PagesDone int
	PagesAll  int
	Message   string
}

// Notifier receives engine events. Implementations must not block; the
// engine calls it from worker goroutines.
type Notifier interface {
	Notify(Event)
}

// NopNotifier drops every event.
type NopNotifier struct{}

func (NopNotifier) Notify(Event) {}

// ChannelNotifier fans events into a buffered channel, dropping on overflow
// so a slow consumer can never stall a download.
type ChannelNotifier struct {
	ch chan Event
}

func NewChannelNotifier(buffer int) *ChannelNotifier {
	if buffer <= 0 {
		buffer = 256
	}
	return &ChannelNotifier{ch: make(chan Event, buffer)}
}

func (n *ChannelNotifier) Notify(e Event) {
	select {
	case n.ch <- e:
	default:
	}
}

func (n *ChannelNotifier) Events() <-chan Event {
	return n.ch
}
