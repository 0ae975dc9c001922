package provider

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sekaidex/chapterd/internal/domain"
)

const testUUID = "b9797c20-6c84-4a2c-bd59-ab8c2a56d17a"

func legacyID(id int64) *int64 { return &id }

func testChapter() *domain.Chapter {
	return &domain.Chapter{
		ID:        42,
		SeriesID:  7,
		Name:      "Chapter 1",
		Scanlator: "Pika Scans",
		RemoteID:  testUUID,
		LegacyID:  legacyID(123456),
	}
}

func testSeries() *domain.Series {
	return &domain.Series{ID: 7, Title: "One Piece", Source: 1}
}

func TestValidChapterDirNamesOrder(t *testing.T) {
	r := NewResolver(t.TempDir())
	names := r.ValidChapterDirNames(testChapter())
	require.Equal(t, []string{
		"Chapter 1 - " + testUUID,
		"Pika Scans_Chapter 1",
		"Chapter 1 - 123456",
		"Chapter 1",
	}, names)
}

func TestValidChapterDirNamesWithoutLegacyID(t *testing.T) {
	ch := testChapter()
	ch.LegacyID = nil
	ch.Scanlator = ""
	r := NewResolver(t.TempDir())
	names := r.ValidChapterDirNames(ch)
	require.Equal(t, []string{
		"Chapter 1 - " + testUUID,
		"Chapter 1",
	}, names)
}

func TestChapterDirNameMerged(t *testing.T) {
	ch := testChapter()
	ch.Scanlator = domain.MergedScanlator
	r := NewResolver(t.TempDir())
	assert.Equal(t, "Merged_Chapter 1", r.ChapterDirName(ch, false))
	assert.Equal(t, "Merged_Chapter 1", r.ChapterDirName(ch, true))
}

func TestChapterDirNameSanitizes(t *testing.T) {
	ch := testChapter()
	ch.Name = "What? A/B: the \"end\""
	r := NewResolver(t.TempDir())
	name := r.ChapterDirName(ch, false)
	assert.Equal(t, "What_ A_B_ the _end_ - "+testUUID, name)
}

func TestSourceAndSeriesDirNames(t *testing.T) {
	r := NewResolver(t.TempDir())
	assert.Equal(t, "MangaDex (EN)", r.SourceDirName("MangaDex"))
	assert.Equal(t, "One Piece", r.SeriesDirName(testSeries()))
}

func TestSeriesDirCreates(t *testing.T) {
	root := t.TempDir()
	r := NewResolver(root)
	dir, err := r.SeriesDir(testSeries(), "MangaDex")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "MangaDex (EN)", "One Piece"), dir)
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestFindSeriesDirCaseInsensitive(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "mangadex (en)", "one piece"), 0755))
	r := NewResolver(root)
	dir, err := r.FindSeriesDir(testSeries(), "MangaDex")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "mangadex (en)", "one piece"), dir)
}

func TestFindSeriesDirAbsent(t *testing.T) {
	r := NewResolver(t.TempDir())
	dir, err := r.FindSeriesDir(testSeries(), "MangaDex")
	require.NoError(t, err)
	assert.Empty(t, dir)
}

func TestFindChapterDirVariants(t *testing.T) {
	cases := []struct {
		name  string
		entry string
	}{
		{"remote id dir", "Chapter 1 - " + testUUID},
		{"remote id archive", "Chapter 1 - " + testUUID + ".cbz"},
		{"scanlator form", "Pika Scans_Chapter 1"},
		{"legacy numeric", "Chapter 1 - 123456"},
		{"plain name", "Chapter 1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			root := t.TempDir()
			seriesDir := filepath.Join(root, "MangaDex (EN)", "One Piece")
			require.NoError(t, os.MkdirAll(filepath.Join(seriesDir, tc.entry), 0755))

			r := NewResolver(root)
			dir, err := r.FindChapterDir(testChapter(), testSeries(), "MangaDex")
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(seriesDir, tc.entry), dir)
		})
	}
}

func TestFindChapterDirRemoteIDSuffixScan(t *testing.T) {
	root := t.TempDir()
	seriesDir := filepath.Join(root, "MangaDex (EN)", "One Piece")
	// renamed by hand, only the id survives
	entry := "weird custom name " + testUUID
	require.NoError(t, os.MkdirAll(filepath.Join(seriesDir, entry), 0755))

	r := NewResolver(root)
	dir, err := r.FindChapterDir(testChapter(), testSeries(), "MangaDex")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(seriesDir, entry), dir)
}

func TestFindChapterDirSuffixScanSkipsTempDirs(t *testing.T) {
	root := t.TempDir()
	seriesDir := filepath.Join(root, "MangaDex (EN)", "One Piece")
	// leftover from an interrupted download, carries the id but is not one
	require.NoError(t, os.MkdirAll(filepath.Join(seriesDir, "Chapter 1 - "+testUUID+"_tmp"), 0755))

	r := NewResolver(root)
	dir, err := r.FindChapterDir(testChapter(), testSeries(), "MangaDex")
	require.NoError(t, err)
	assert.Empty(t, dir)
}

func TestFindChapterDirNotFound(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "MangaDex (EN)", "One Piece", "Chapter 99"), 0755))
	r := NewResolver(root)
	dir, err := r.FindChapterDir(testChapter(), testSeries(), "MangaDex")
	require.NoError(t, err)
	assert.Empty(t, dir)
}

func TestFindUnmatchedChapterDirs(t *testing.T) {
	root := t.TempDir()
	seriesDir := filepath.Join(root, "MangaDex (EN)", "One Piece")
	for _, entry := range []string{
		"Chapter 1 - " + testUUID,
		"Chapter 2 - 00000000-1111-2222-3333-444444444444",
		"Chapter 3 - " + testUUID + "_tmp",
		"Random Extra",
	} {
		require.NoError(t, os.MkdirAll(filepath.Join(seriesDir, entry), 0755))
	}

	r := NewResolver(root)
	unmatched, err := r.FindUnmatchedChapterDirs([]*domain.Chapter{testChapter()}, testSeries(), "MangaDex")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(seriesDir, "Chapter 2 - 00000000-1111-2222-3333-444444444444"),
		filepath.Join(seriesDir, "Chapter 3 - "+testUUID+"_tmp"),
		filepath.Join(seriesDir, "Random Extra"),
	}, unmatched)
}

func TestRenameSeriesFolder(t *testing.T) {
	root := t.TempDir()
	sourceDir := filepath.Join(root, "MangaDex (EN)")
	require.NoError(t, os.MkdirAll(filepath.Join(sourceDir, "Old Title"), 0755))

	r := NewResolver(root)
	newName, err := r.RenameSeriesFolder("Old Title", "New: Title", "MangaDex")
	require.NoError(t, err)
	assert.Equal(t, "New_ Title", newName)

	_, err = os.Stat(filepath.Join(sourceDir, "New_ Title"))
	require.NoError(t, err)
}

func TestChapterExists(t *testing.T) {
	r := NewResolver(t.TempDir())
	ch := testChapter()

	assert.True(t, r.ChapterExists(ch, []string{"Chapter 1 - " + testUUID}))
	assert.True(t, r.ChapterExists(ch, []string{"Chapter 1 - " + testUUID + ".cbz"}))
	assert.True(t, r.ChapterExists(ch, []string{"Chapter 1 - 123456"}))
	assert.True(t, r.ChapterExists(ch, []string{"Pika Scans_Chapter 1"}))
	assert.True(t, r.ChapterExists(ch, []string{"Other Group_Chapter 1"}))
	assert.True(t, r.ChapterExists(ch, []string{"Chapter 1"}))

	assert.False(t, r.ChapterExists(ch, []string{"Chapter 1 - 99999"}))
	assert.False(t, r.ChapterExists(ch, []string{"Chapter 1 - 00000000-1111-2222-3333-444444444444"}))
	assert.False(t, r.ChapterExists(ch, []string{"Chapter 2"}))
	assert.False(t, r.ChapterExists(ch, nil))
}
