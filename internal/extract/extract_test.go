package extract

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDetectFormat(t *testing.T) {
	require.Equal(t, FormatZip, DetectFormat("foo.zip"))
	require.Equal(t, FormatTarGz, DetectFormat("foo.tar.gz"))
	require.Equal(t, FormatTarGz, DetectFormat("foo.tgz"))
	require.Equal(t, FormatTarZst, DetectFormat("foo.tar.zst"))
	require.Equal(t, FormatGzip, DetectFormat("foo.gz"))
	require.Equal(t, FormatUnknown, DetectFormat("foo.exe"))
}

func TestExtractZip(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "test.zip")

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("hello.txt")
	require.NoError(t, err)
	_, err = w.Write([]byte("hello world"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(archivePath, buf.Bytes(), 0o644))

	destDir := filepath.Join(dir, "out")
	res, err := Extract(archivePath, destDir)
	require.NoError(t, err)
	require.Equal(t, FormatZip, res.Format)
	require.Equal(t, 1, res.FileCount)

	data, err := os.ReadFile(filepath.Join(destDir, "hello.txt"))
	require.NoError(t, err)
	require.Equal(t, "hello world", string(data))
}

func TestExtractUnknownFormatErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mystery.bin")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	_, err := Extract(path, filepath.Join(dir, "out"))
	require.Error(t, err)
}

func TestSafeJoinRejectsTraversal(t *testing.T) {
	_, err := safeJoin("/tmp/dest", "../../etc/passwd")
	require.Error(t, err)
}
