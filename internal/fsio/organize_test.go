package fsio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCategorySortsByExtension(t *testing.T) {
	cases := map[string]string{
		"pic.jpg":       "Images",
		"song.mp3":      "Music",
		"doc.pdf":       "Documents",
		"installer.exe": "Software",
		"movie.mp4":     "Videos",
		"archive.zip":   "Archives",
		"unknown.xyz":   "Others",
	}
	for filename, want := range cases {
		require.Equal(t, want, Category(filename), filename)
	}
}

func TestOrganizeIntoCategoryMovesFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "pic.jpg")
	require.NoError(t, os.WriteFile(src, []byte("dummy"), 0o644))

	newPath, err := OrganizeIntoCategory(src)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "Images", "pic.jpg"), newPath)
	require.FileExists(t, newPath)
	require.NoFileExists(t, src)
}

func TestOrganizeIntoCategoryHandlesCollision(t *testing.T) {
	dir := t.TempDir()
	imgDir := filepath.Join(dir, "Images")
	require.NoError(t, os.MkdirAll(imgDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(imgDir, "test.jpg"), []byte("existing"), 0o644))

	src := filepath.Join(dir, "test.jpg")
	require.NoError(t, os.WriteFile(src, []byte("new"), 0o644))

	newPath, err := OrganizeIntoCategory(src)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(imgDir, "test (1).jpg"), newPath)
}
