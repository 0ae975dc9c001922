package archive

import (
	"archive/zip"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"sort"

	"github.com/sekaidex/chapterd/internal/constants"
)

// Seal packs every regular file in srcDir into a CBZ at dest. Entries are
// stored uncompressed so readers can random-access pages. The archive is
// written to a provisional path first and renamed into place only when
// complete, so a crash never leaves a half-written archive under the final
// name.
func Seal(srcDir, dest string) error {
	entries, err := os.ReadDir(srcDir)
	if err != nil {
		return fmt.Errorf("failed to read page directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}
	if len(names) == 0 {
		return fmt.Errorf("no pages to archive in %s", srcDir)
	}
	sort.Strings(names)

	tmpDest := dest + constants.TmpFileSuffix
	out, err := os.Create(tmpDest)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}

	zw := zip.NewWriter(out)
	for _, name := range names {
		if err := addStored(zw, filepath.Join(srcDir, name), name); err != nil {
			zw.Close()
			out.Close()
			os.Remove(tmpDest)
			return err
		}
	}
	if err := zw.Close(); err != nil {
		out.Close()
		os.Remove(tmpDest)
		return fmt.Errorf("failed to finalize archive: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmpDest)
		return fmt.Errorf("failed to close archive: %w", err)
	}

	if err := os.Rename(tmpDest, dest); err != nil {
		os.Remove(tmpDest)
		return fmt.Errorf("failed to move archive into place: %w", err)
	}
	return nil
}

// addStored writes one file as an uncompressed entry. Stored entries need
// size and CRC up front, so the file is read once before writing.
func addStored(zw *zip.Writer, path, name string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read page %s: %w", name, err)
	}
	header := &zip.FileHeader{
		Name:               name,
		Method:             zip.Store,
		CRC32:              crc32.ChecksumIEEE(data),
		UncompressedSize64: uint64(len(data)),
	}
	w, err := zw.CreateRaw(header)
	if err != nil {
		return fmt.Errorf("failed to create archive entry %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write archive entry %s: %w", name, err)
	}
	return nil
}
