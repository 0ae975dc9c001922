package provider

import (
	"strings"

	"github.com/google/uuid"

	"github.com/sekaidex/chapterd/internal/constants"
	"github.com/sekaidex/chapterd/internal/domain"
	"github.com/sekaidex/chapterd/internal/storage"
)

// IdentifierKind tags the naming dialect a directory or archive name was
// written in. Several generations of layouts coexist on disk, so reverse
// lookup has to classify a name before it can match it against a chapter.
type IdentifierKind int

const (
	// IdentifierRemote is the current form, "<name> - <remote uuid>".
	IdentifierRemote IdentifierKind = iota
	// IdentifierLegacyNumeric is the old form, "<name> - <numeric id>".
	IdentifierLegacyNumeric
	// IdentifierNameOnly covers plain names and "<scanlator>_<name>".
	IdentifierNameOnly
)

// Identifier is the classified identity carried by one on-disk name.
type Identifier struct {
	Kind  IdentifierKind
	Value string
}

// ParseDirName classifies an on-disk chapter entry name. The trailing
// ".cbz" is ignored; the segment after the last " - " separator decides
// the kind.
func ParseDirName(name string) Identifier {
	name = strings.TrimSuffix(name, constants.CBZExtension)
	if i := strings.LastIndex(name, " - "); i >= 0 {
		suffix := name[i+3:]
		if suffix != "" {
			if uuid.Validate(suffix) == nil {
				return Identifier{Kind: IdentifierRemote, Value: suffix}
			}
			if isDigits(suffix) {
				return Identifier{Kind: IdentifierLegacyNumeric, Value: suffix}
			}
		}
	}
	return Identifier{Kind: IdentifierNameOnly, Value: name}
}

// Matches reports whether the entry name belongs to the chapter. Matching
// is ordered by identifier kind: an id-shaped suffix is authoritative and
// name matching is only consulted when the name carries no recognizable id.
func Matches(chapter *domain.Chapter, name string) bool {
	id := ParseDirName(name)
	switch id.Kind {
	case IdentifierRemote:
		return !chapter.IsMerged() && chapter.RemoteID != "" && id.Value == chapter.RemoteID
	case IdentifierLegacyNumeric:
		legacy := chapter.LegacyIDString()
		return legacy != "" && id.Value == legacy
	default:
		return matchesByName(chapter, id.Value)
	}
}

func matchesByName(chapter *domain.Chapter, name string) bool {
	if name == scanlatorDirName(chapter) {
		return true
	}
	plain := storage.Sanitize(chapter.Name)
	if name == plain {
		return true
	}
	// a foreign scanlator prefix may hide a plain-name match
	if i := strings.Index(name, "_"); i >= 0 {
		return name[i+1:] == plain
	}
	return false
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
