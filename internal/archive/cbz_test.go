package archive

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeal(t *testing.T) {
	srcDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "001.jpg"), []byte("page-one"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "000.jpg"), []byte("page-zero"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(srcDir, "sub"), 0755))

	dest := filepath.Join(t.TempDir(), "chapter.cbz")
	require.NoError(t, Seal(srcDir, dest))

	// no provisional file left behind
	_, err := os.Stat(dest + ".tmp")
	assert.True(t, os.IsNotExist(err))

	zr, err := zip.OpenReader(dest)
	require.NoError(t, err)
	defer zr.Close()

	require.Len(t, zr.File, 2)
	assert.Equal(t, "000.jpg", zr.File[0].Name)
	assert.Equal(t, "001.jpg", zr.File[1].Name)

	for _, f := range zr.File {
		assert.Equal(t, zip.Store, f.Method)
	}

	rc, err := zr.File[0].Open()
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	rc.Close()
	require.NoError(t, err)
	assert.Equal(t, "page-zero", string(data))
}

func TestSealEmptyDir(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "chapter.cbz")
	err := Seal(t.TempDir(), dest)
	require.Error(t, err)
	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr))
}

func TestSealMissingDir(t *testing.T) {
	err := Seal(filepath.Join(t.TempDir(), "nope"), filepath.Join(t.TempDir(), "chapter.cbz"))
	require.Error(t, err)
}
