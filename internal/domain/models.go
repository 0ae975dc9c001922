package domain

import "strconv"

// MergedScanlator marks chapters stitched together from several sources.
// Merged chapters don't carry a usable remote identifier, so existence
// checks for them can only go through directory names.
const MergedScanlator = "Merged"

// Series is a remote series tracked in the metadata store. The download
// subsystem only reads id, title, url and source.
type Series struct {
	ID     int64  `json:"id" db:"id"`
	URL    string `json:"url" db:"url"`
	Title  string `json:"title" db:"title"`
	Source int64  `json:"source" db:"source"`
}

// Chapter belongs to exactly one Series. RemoteID is the source-native
// identifier (UUID-shaped for the primary source); LegacyID is the numeric
// identifier older releases embedded in folder names.
type Chapter struct {
	ID          int64  `json:"id" db:"id"`
	SeriesID    int64  `json:"series_id" db:"series_id"`
	URL         string `json:"url" db:"url"`
	Name        string `json:"name" db:"name"`
	Scanlator   string `json:"scanlator,omitempty" db:"scanlator"`
	RemoteID    string `json:"remote_id" db:"remote_id"`
	LegacyID    *int64 `json:"legacy_id,omitempty" db:"legacy_id"`
	SourceOrder int    `json:"source_order" db:"source_order"`
}

// IsMerged reports whether the chapter comes from the merged pseudo-source.
func (c *Chapter) IsMerged() bool {
	return c.Scanlator == MergedScanlator
}

// LegacyIDString returns the legacy numeric identifier as a string, or ""
// when the chapter never had one.
func (c *Chapter) LegacyIDString() string {
	if c.LegacyID == nil {
		return ""
	}
	return strconv.FormatInt(*c.LegacyID, 10)
}

// JobStatus is the lifecycle state of one chapter download. NotDownloaded
// is not a queue-member state; it marks a job evicted from the queue without
// completing so stale references report correctly.
type JobStatus int

const (
	NotDownloaded JobStatus = iota
	Queued
	Downloading
	Downloaded
	StatusError
)

func (s JobStatus) String() string {
	switch s {
	case NotDownloaded:
		return "not_downloaded"
	case Queued:
		return "queued"
	case Downloading:
		return "downloading"
	case Downloaded:
		return "downloaded"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Active reports whether the job still needs a worker.
func (s JobStatus) Active() bool {
	return s == Queued || s == Downloading
}

// PageState tracks a single page through its download.
type PageState int

const (
	PageQueued PageState = iota
	PageDownloading
	PageReady
	PageError
)

// Page is one image of a chapter. Index is source order; file naming derives
// from it, so indices must stay dense and zero-based.
type Page struct {
	Index    int       `json:"index"`
	URL      string    `json:"url"`
	LocalURI string    `json:"local_uri,omitempty"`
	Progress int       `json:"progress"`
	State    PageState `json:"state"`
}
