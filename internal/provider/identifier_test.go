package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sekaidex/chapterd/internal/domain"
)

func TestParseDirName(t *testing.T) {
	cases := []struct {
		in   string
		want Identifier
	}{
		{"Chapter 1 - " + testUUID, Identifier{IdentifierRemote, testUUID}},
		{"Chapter 1 - " + testUUID + ".cbz", Identifier{IdentifierRemote, testUUID}},
		{"Chapter 1 - 123456", Identifier{IdentifierLegacyNumeric, "123456"}},
		{"Chapter 1", Identifier{IdentifierNameOnly, "Chapter 1"}},
		{"Group_Chapter 1", Identifier{IdentifierNameOnly, "Group_Chapter 1"}},
		// a suffix that is neither uuid nor digits is part of the name
		{"Title - The Finale", Identifier{IdentifierNameOnly, "Title - The Finale"}},
		{"Chapter 1.cbz", Identifier{IdentifierNameOnly, "Chapter 1"}},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ParseDirName(tc.in), "input %q", tc.in)
	}
}

func TestMatchesMergedChapterIgnoresRemoteID(t *testing.T) {
	ch := &domain.Chapter{
		ID:        5,
		Name:      "Chapter 3",
		Scanlator: domain.MergedScanlator,
		RemoteID:  testUUID,
	}
	assert.False(t, Matches(ch, "Chapter 3 - "+testUUID))
	assert.True(t, Matches(ch, "Merged_Chapter 3"))
}

func TestMatchesScanlatorPrefixFallback(t *testing.T) {
	ch := &domain.Chapter{ID: 6, Name: "Chapter 4"}
	assert.True(t, Matches(ch, "Chapter 4"))
	assert.True(t, Matches(ch, "Somebody_Chapter 4"))
	assert.False(t, Matches(ch, "Somebody_Chapter 5"))
}
