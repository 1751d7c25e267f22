package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsImageFile(t *testing.T) {
	for _, name := range []string{"a.jpg", "b.JPEG", "c.png", "dir/d.webp", "e.tif"} {
		assert.True(t, IsImageFile(name), name)
	}
	for _, name := range []string{"a.txt", "noext", "archive.png.zip"} {
		assert.False(t, IsImageFile(name), name)
	}
}

func TestListImageFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	for _, name := range []string{"b.png", "a.jpg", "notes.md", filepath.Join("sub", "c.webp")} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}

	files, err := ListImageFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.jpg"),
		filepath.Join(dir, "b.png"),
		filepath.Join(dir, "sub", "c.webp"),
	}, files)

	_, err = ListImageFiles(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestDirExists(t *testing.T) {
	dir := t.TempDir()
	assert.True(t, DirExists(dir))

	file := filepath.Join(dir, "f.png")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	assert.False(t, DirExists(file))
	assert.False(t, DirExists(filepath.Join(dir, "nope")))
}

func TestFormatFileSize(t *testing.T) {
	assert.Equal(t, "512 B", FormatFileSize(512))
	assert.Equal(t, "1.5 KB", FormatFileSize(1536))
	assert.Equal(t, "50.0 MB", FormatFileSize(50<<20))
}
