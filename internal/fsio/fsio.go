// Package fsio is the Filesystem+Process port of §4.1: the only path by
// which the Engine, Cache, and providers may touch disk. It is grounded
// on the teacher's internal/filesystem (Allocator, free-space checks)
// and internal/integrity (streaming SHA-256) packages, generalized into
// one narrow port instead of being split by component.
package fsio

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/shirou/gopsutil/v3/disk"
)

const copyBufferSize = 4 * 1024 * 1024 // 4MiB, matches the teacher's integrity.Verify buffer

// OpenForWrite opens dest for atomic-ish writing: append mode if resuming
// from a non-zero offset, create/truncate otherwise (§4.4 step 11).
func OpenForWrite(dest string, resume bool) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return nil, fmt.Errorf("create destination directory: %w", err)
	}
	flags := os.O_CREATE | os.O_WRONLY
	if resume {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	return os.OpenFile(dest, flags, 0o644)
}

// MkdirAll creates a directory tree.
func MkdirAll(path string) error {
	return os.MkdirAll(path, 0o755)
}

// Exists reports whether path names an existing filesystem entry.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Size returns the byte length of path, or -1 if it does not exist.
func Size(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return -1
	}
	return info.Size()
}

// SHA256File streams path through SHA-256 without loading it into memory.
func SHA256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, copyBufferSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Move renames src to dst, falling back to copy+remove across volumes
// (os.Rename fails with EXDEV in that case).
func Move(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := copyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	buf := make([]byte, copyBufferSize)
	_, err = io.CopyBuffer(out, in, buf)
	return err
}

// Remove deletes path. When useTrash is true it first tries moveToTrash
// (a ".tachyon-trash" directory beside path); if that fails it falls
// back to a permanent delete rather than failing the caller's cleanup
// pass.
func Remove(path string, useTrash bool) error {
	if useTrash {
		if err := moveToTrash(path); err == nil {
			return nil
		}
	}
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// FreeSpace returns the bytes free on the volume containing path,
// grounded on the teacher's Allocator.checkDiskSpace.
func FreeSpace(path string) (uint64, error) {
	dir := filepath.Dir(path)
	usage, err := disk.Usage(dir)
	if err != nil {
		return 0, fmt.Errorf("check free space for %s: %w", dir, err)
	}
	return usage.Free, nil
}

// InsufficientSpaceError reports a destination volume with less free
// space than a download's total size, matching
// original_source/src-tauri/src/download/manager.rs's
// `DownloadError::InsufficientSpace{required,available}` exactly — no
// safety margin, since §4.4 step 10 fails only when free < total_bytes.
type InsufficientSpaceError struct {
	Required  int64
	Available int64
}

func (e *InsufficientSpaceError) Error() string {
	return fmt.Sprintf("disk full: required %d bytes, available %d bytes", e.Required, e.Available)
}

// AllocateFile confirms size bytes are free on dest's volume.
func AllocateFile(dest string, size int64) error {
	free, err := FreeSpace(dest)
	if err != nil {
		return err
	}
	if int64(free) < size {
		return &InsufficientSpaceError{Required: size, Available: int64(free)}
	}
	return nil
}

// ReadTextFile reads a small text file in full.
func ReadTextFile(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// WriteTextFile writes a small text file, creating parent directories.
func WriteTextFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}
