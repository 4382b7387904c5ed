package fsio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// categoryByExtension mirrors the teacher's SmartOrganizer.GetCategory
// extension table (internal/core/organizer.go).
var categoryByExtension = map[string]string{
	".jpg": "Images", ".jpeg": "Images", ".png": "Images", ".gif": "Images",
	".webp": "Images", ".bmp": "Images", ".svg": "Images",
	".mp4": "Videos", ".mkv": "Videos", ".mov": "Videos", ".avi": "Videos", ".webm": "Videos", ".wmv": "Videos",
	".mp3": "Music", ".wav": "Music", ".flac": "Music", ".aac": "Music", ".ogg": "Music", ".m4a": "Music",
	".zip": "Archives", ".rar": "Archives", ".7z": "Archives", ".tar": "Archives", ".gz": "Archives", ".iso": "Archives",
	".pdf": "Documents", ".docx": "Documents", ".xlsx": "Documents", ".pptx": "Documents", ".txt": "Documents", ".md": "Documents",
	".exe": "Software", ".msi": "Software", ".dmg": "Software", ".pkg": "Software", ".deb": "Software",
}

// Category returns the organizational bucket for a filename by
// extension, defaulting to "Others".
func Category(filename string) string {
	if category, ok := categoryByExtension[strings.ToLower(filepath.Ext(filename))]; ok {
		return category
	}
	return "Others"
}

// OrganizeIntoCategory moves dest into a Category(dest) subfolder of
// its own parent directory, returning the new path. This is an
// opt-in post-completion hook (storage.DownloadTask.AutoOrganize) —
// off unless a caller asks for it, since the destination path spec.md
// hands the Engine is otherwise caller-supplied and authoritative.
func OrganizeIntoCategory(dest string) (string, error) {
	targetDir := filepath.Join(filepath.Dir(dest), Category(filepath.Base(dest)))
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return dest, fmt.Errorf("create category dir: %w", err)
	}

	target := uniquePath(filepath.Join(targetDir, filepath.Base(dest)))
	if err := os.Rename(dest, target); err != nil {
		return dest, fmt.Errorf("move into category dir: %w", err)
	}
	return target, nil
}

func uniquePath(path string) string {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path
	}
	ext := filepath.Ext(path)
	dir := filepath.Dir(path)
	name := strings.TrimSuffix(filepath.Base(path), ext)

	for i := 1; i < 1000; i++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s (%d)%s", name, i, ext))
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
	return filepath.Join(dir, fmt.Sprintf("%s_overflow%s", name, ext))
}
