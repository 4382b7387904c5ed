package fsio

import (
	"context"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSHA256FileEmptyInput(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.bin")
	require.NoError(t, WriteTextFile(path, ""))

	sum, err := SHA256File(path)
	require.NoError(t, err)
	require.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", sum)
}

func TestMoveAcrossSameVolume(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dst := filepath.Join(dir, "nested", "dst.txt")
	require.NoError(t, WriteTextFile(src, "hello"))

	require.NoError(t, Move(src, dst))
	require.False(t, Exists(src))
	content, err := ReadTextFile(dst)
	require.NoError(t, err)
	require.Equal(t, "hello", content)
}

func TestSizeMissingFile(t *testing.T) {
	require.Equal(t, int64(-1), Size(filepath.Join(t.TempDir(), "missing")))
}

func TestRemoveWithTrashRemovesPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gone.txt")
	require.NoError(t, WriteTextFile(path, "x"))

	require.NoError(t, Remove(path, true))
	require.False(t, Exists(path))
}

func TestAllocateFileSucceedsWhenFreeEqualsSize(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "out.bin")

	free, err := FreeSpace(dest)
	require.NoError(t, err)

	require.NoError(t, AllocateFile(dest, int64(free)))
}

func TestAllocateFileFailsAndReportsAvailable(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "out.bin")

	free, err := FreeSpace(dest)
	require.NoError(t, err)

	err = AllocateFile(dest, int64(free)+1)
	require.Error(t, err)

	var spaceErr *InsufficientSpaceError
	require.ErrorAs(t, err, &spaceErr)
	require.Equal(t, int64(free), spaceErr.Available)
	require.Equal(t, int64(free)+1, spaceErr.Required)
}

func TestRunnerCapturesOutputAndExitCode(t *testing.T) {
	r := NewRunner()
	r.SetExecCommand(func(ctx context.Context, name string, arg ...string) *exec.Cmd {
		return exec.CommandContext(ctx, "echo", "hello")
	})

	result, err := r.Run(context.Background(), 5*time.Second, "echo", "hello")
	require.NoError(t, err)
	require.Equal(t, 0, result.ExitCode)
	require.Contains(t, result.Stdout, "hello")
}

func TestDecodeProcessOutputPassesThroughUTF8(t *testing.T) {
	require.Equal(t, "plain ascii", decodeProcessOutput([]byte("plain ascii")))
}

func TestDecodeProcessOutputTranscodesUTF16LE(t *testing.T) {
	// "hi" encoded as UTF-16LE with a BOM.
	raw := []byte{0xFF, 0xFE, 'h', 0x00, 'i', 0x00}
	require.Equal(t, "hi", decodeProcessOutput(raw))
}
