// Package constants contains application-wide constants to avoid magic numbers and strings.
package constants

import "time"

// Application defaults
const (
	DefaultPort        = "8080"
	DefaultDBPath      = "chapterd.db"
	DefaultHTTPTimeout = 5 * time.Minute
	DefaultMangaDexURL = "https://api.mangadex.org"
	DefaultRetryCount  = 3
	DefaultRetryBase   = 1 * time.Second
	DefaultSourceRPS   = 250 * time.Millisecond
)

// Download engine tuning
const (
	// Minimum free space required before a chapter download starts: 200 MiB.
	MinDiskSpace = 200 * 1024 * 1024

	// Jobs running at once per distinct source.
	JobsPerSource = 2

	// Concurrent page fetches for the primary source and everyone else.
	PrimaryPageConcurrency   = 6
	SecondaryPageConcurrency = 3

	// Per-page retry policy: 3 attempts waiting 2, 4 and 8 seconds.
	PageRetryCount = 3
	PageRetryBase  = 2 * time.Second

	// Interval after which the existence cache re-scans the download root.
	CacheRenewInterval = time.Hour
)

// Filesystem layout
const (
	TmpDirSuffix  = "_tmp"
	TmpFileSuffix = ".tmp"
	CBZExtension  = ".cbz"

	// Zero padding for page file names, at least 3 digits.
	MinPageDigits = 3

	// Longest filename we generate; everything past it is truncated.
	MaxFilenameLength = 240
)

// File Permissions
const (
	DirPermissions  = 0755
	FilePermissions = 0644
)

// UI/UX
const (
	MaxQueueListing = 200
)
