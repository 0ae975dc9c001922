package storage

import (
	"os"
	"strings"

	"github.com/sekaidex/chapterd/internal/constants"
)

// Characters never allowed in a generated file or directory name.
const invalidPathChars = "<>:\"/\\|?*\x00"

// ValidFilename builds a filesystem-safe name from a display name plus a
// fixed suffix. Invalid characters become underscores and the base is
// truncated so base+suffix stays under the filename length limit. The suffix
// is appended verbatim, so identifier suffixes like " - <uuid>" survive
// truncation of long titles.
func ValidFilename(name, suffix string) string {
	mapped := strings.Map(func(r rune) rune {
		if strings.ContainsRune(invalidPathChars, r) {
			return '_'
		}
		return r
	}, strings.TrimSpace(name))

	limit := constants.MaxFilenameLength - len(suffix)
	if limit < 0 {
		limit = 0
	}
	if len(mapped) > limit {
		mapped = strings.TrimSpace(mapped[:limit])
	}

	return strings.TrimRight(mapped+suffix, ". ")
}

// Sanitize builds a filesystem-safe name with no suffix.
func Sanitize(s string) string {
	return ValidFilename(s, "")
}

func EnsureDir(path string) error {
	return os.MkdirAll(path, constants.DirPermissions)
}

func RemoveFile(path string) error {
	return os.Remove(path)
}

func DeleteFolderIfEmpty(dirPath string) error {
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(entries) == 0 {
		return os.Remove(dirPath)
	}
	return nil
}

// Rename moves an entry. The rename is atomic on the same filesystem, which
// is guaranteed here because both paths live under the download root.
func Rename(oldPath, newPath string) error {
	return os.Rename(oldPath, newPath)
}

// RemoveAll deletes a directory tree. Missing paths are not an error.
func RemoveAll(path string) error {
	return os.RemoveAll(path)
}

func IsNotExist(err error) bool {
	return os.IsNotExist(err)
}

// ListDirNames returns the names of all entries directly under dir. A missing
// directory is not an error; it simply has no entries.
func ListDirNames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

// FindEntry looks for an entry under dir whose name matches, optionally
// ignoring case. Returns "" when nothing matches.
func FindEntry(dir, name string, ignoreCase bool) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	for _, e := range entries {
		if e.Name() == name {
			return e.Name(), nil
		}
	}
	if ignoreCase {
		for _, e := range entries {
			if strings.EqualFold(e.Name(), name) {
				return e.Name(), nil
			}
		}
	}
	return "", nil
}
