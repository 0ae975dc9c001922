package provider

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sekaidex/chapterd/internal/constants"
	"github.com/sekaidex/chapterd/internal/domain"
	"github.com/sekaidex/chapterd/internal/storage"
)

// Resolver maps domain identities to filesystem names under the download
// root and performs the reverse lookups. Layout:
//
//	<root>/<source dir>/<series dir>/<chapter dir or archive>
//
// Lookups never fail for "not found"; they return an empty path. Only an
// inaccessible root surfaces as an error, and that is a configuration
// problem for the caller, not something to retry.
type Resolver struct {
	root string
}

func NewResolver(root string) *Resolver {
	return &Resolver{root: root}
}

func (r *Resolver) Root() string { return r.root }

// SourceDirName is always rendered with the canonical language tag so the
// layout stays stable across installations.
func (r *Resolver) SourceDirName(sourceName string) string {
	return fmt.Sprintf("%s (EN)", sourceName)
}

func (r *Resolver) SeriesDirName(series *domain.Series) string {
	return storage.Sanitize(series.Title)
}

// SeriesDir creates (if needed) and returns the series' download directory.
func (r *Resolver) SeriesDir(series *domain.Series, sourceName string) (string, error) {
	dir := filepath.Join(r.root, r.SourceDirName(sourceName), r.SeriesDirName(series))
	if err := storage.EnsureDir(dir); err != nil {
		return "", fmt.Errorf("invalid download location %s: %w", dir, err)
	}
	return dir, nil
}

// FindSourceDir returns the source directory path if it exists, matching
// case-insensitively.
func (r *Resolver) FindSourceDir(sourceName string) (string, error) {
	name, err := storage.FindEntry(r.root, r.SourceDirName(sourceName), true)
	if err != nil || name == "" {
		return "", err
	}
	return filepath.Join(r.root, name), nil
}

// FindSeriesDir returns the series directory path if it exists.
func (r *Resolver) FindSeriesDir(series *domain.Series, sourceName string) (string, error) {
	sourceDir, err := r.FindSourceDir(sourceName)
	if err != nil || sourceDir == "" {
		return "", err
	}
	name, err := storage.FindEntry(sourceDir, r.SeriesDirName(series), true)
	if err != nil || name == "" {
		return "", err
	}
	return filepath.Join(sourceDir, name), nil
}

// ChapterDirName returns the id-suffixed directory name. With useLegacy the
// old numeric id is used instead of the remote id; the result is empty when
// the requested id is absent. Merged chapters never carry a usable id and
// always fall back to the scanlator form.
func (r *Resolver) ChapterDirName(chapter *domain.Chapter, useLegacy bool) string {
	if chapter.IsMerged() {
		return r.ScanlatorDirName(chapter)
	}
	id := chapter.RemoteID
	if useLegacy {
		id = chapter.LegacyIDString()
	}
	if id == "" {
		return ""
	}
	return storage.ValidFilename(chapter.Name, " - "+id)
}

// ScanlatorDirName is the "<scanlator>_<name>" historical form, or the plain
// name when the chapter has no scanlator.
func (r *Resolver) ScanlatorDirName(chapter *domain.Chapter) string {
	return scanlatorDirName(chapter)
}

func scanlatorDirName(chapter *domain.Chapter) string {
	if chapter.Scanlator != "" {
		return storage.Sanitize(chapter.Scanlator + "_" + chapter.Name)
	}
	return storage.Sanitize(chapter.Name)
}

// ValidChapterDirNames lists every name the chapter could be stored under,
// most canonical first. Callers probe in order and accept the first hit.
func (r *Resolver) ValidChapterDirNames(chapter *domain.Chapter) []string {
	candidates := []string{
		r.ChapterDirName(chapter, false),
		scanlatorDirName(chapter),
		r.ChapterDirName(chapter, true),
		storage.Sanitize(chapter.Name),
	}
	names := make([]string, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	for _, name := range candidates {
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}

// TempDirName is the working directory name for an in-flight download.
func (r *Resolver) TempDirName(chapter *domain.Chapter) string {
	return r.ChapterDirName(chapter, false) + constants.TmpDirSuffix
}

// FindChapterDir locates the chapter's directory or archive under the
// series directory. Canonical names are probed first, with and without the
// archive extension; when none match, every entry is scanned for one whose
// name contains the remote id.
func (r *Resolver) FindChapterDir(chapter *domain.Chapter, series *domain.Series, sourceName string) (string, error) {
	seriesDir, err := r.FindSeriesDir(series, sourceName)
	if err != nil || seriesDir == "" {
		return "", err
	}
	for _, name := range r.ValidChapterDirNames(chapter) {
		for _, candidate := range []string{name, name + constants.CBZExtension} {
			found, err := storage.FindEntry(seriesDir, candidate, false)
			if err != nil {
				return "", err
			}
			if found != "" {
				return filepath.Join(seriesDir, found), nil
			}
		}
	}
	if chapter.IsMerged() || chapter.RemoteID == "" {
		return "", nil
	}
	entries, err := storage.ListDirNames(seriesDir)
	if err != nil {
		return "", err
	}
	for _, entry := range entries {
		// an in-flight temp dir carries the id too but is not a download
		if strings.HasSuffix(entry, constants.TmpDirSuffix) {
			continue
		}
		if strings.Contains(entry, chapter.RemoteID) {
			return filepath.Join(seriesDir, entry), nil
		}
	}
	return "", nil
}

// FindChapterDirs returns the on-disk entries belonging to any of the given
// chapters.
func (r *Resolver) FindChapterDirs(chapters []*domain.Chapter, series *domain.Series, sourceName string) ([]string, error) {
	seriesDir, err := r.FindSeriesDir(series, sourceName)
	if err != nil || seriesDir == "" {
		return nil, err
	}
	entries, err := storage.ListDirNames(seriesDir)
	if err != nil {
		return nil, err
	}
	var matched []string
	for _, entry := range entries {
		for _, chapter := range chapters {
			if Matches(chapter, entry) {
				matched = append(matched, filepath.Join(seriesDir, entry))
				break
			}
		}
	}
	return matched, nil
}

// FindUnmatchedChapterDirs returns entries in the series directory that
// belong to none of the given chapters, plus any leftover temp directories.
// Used to clean up orphans after the chapter list changes upstream.
func (r *Resolver) FindUnmatchedChapterDirs(chapters []*domain.Chapter, series *domain.Series, sourceName string) ([]string, error) {
	seriesDir, err := r.FindSeriesDir(series, sourceName)
	if err != nil || seriesDir == "" {
		return nil, err
	}
	entries, err := storage.ListDirNames(seriesDir)
	if err != nil {
		return nil, err
	}
	var unmatched []string
	for _, entry := range entries {
		if strings.HasSuffix(entry, constants.TmpDirSuffix) {
			unmatched = append(unmatched, filepath.Join(seriesDir, entry))
			continue
		}
		known := false
		for _, chapter := range chapters {
			if Matches(chapter, entry) {
				known = true
				break
			}
		}
		if !known {
			unmatched = append(unmatched, filepath.Join(seriesDir, entry))
		}
	}
	return unmatched, nil
}

// FindTempDirs returns existing temp directories for the given chapters.
func (r *Resolver) FindTempDirs(chapters []*domain.Chapter, series *domain.Series, sourceName string) ([]string, error) {
	seriesDir, err := r.FindSeriesDir(series, sourceName)
	if err != nil || seriesDir == "" {
		return nil, err
	}
	var dirs []string
	for _, chapter := range chapters {
		found, err := storage.FindEntry(seriesDir, r.TempDirName(chapter), false)
		if err != nil {
			return nil, err
		}
		if found != "" {
			dirs = append(dirs, filepath.Join(seriesDir, found))
		}
	}
	return dirs, nil
}

// RenameSeriesFolder moves a series directory after a title change. Missing
// directories are ignored.
func (r *Resolver) RenameSeriesFolder(oldTitle, newTitle, sourceName string) (string, error) {
	sourceDir, err := r.FindSourceDir(sourceName)
	if err != nil || sourceDir == "" {
		return "", err
	}
	oldName, err := storage.FindEntry(sourceDir, storage.Sanitize(oldTitle), false)
	if err != nil || oldName == "" {
		return "", err
	}
	newName := storage.Sanitize(newTitle)
	if err := storage.Rename(filepath.Join(sourceDir, oldName), filepath.Join(sourceDir, newName)); err != nil {
		return "", err
	}
	return newName, nil
}

// ChapterExists reports whether any of the given on-disk names belongs to
// the chapter. Used for bulk enqueue filtering against a pre-listed
// directory snapshot.
func (r *Resolver) ChapterExists(chapter *domain.Chapter, dirNames []string) bool {
	for _, name := range dirNames {
		if Matches(chapter, name) {
			return true
		}
	}
	return false
}
