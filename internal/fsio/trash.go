package fsio

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// moveToTrash relocates path into a ".tachyon-trash" directory beside it
// rather than deleting outright. None of the retrieved example repos
// wire a desktop trash-bin library, so this is the narrow stdlib
// fallback the spec's "optionally via system trash" wording allows
// (§4.1); Remove still degrades to a permanent delete if even this
// fails.
func moveToTrash(path string) error {
	dir := filepath.Dir(path)
	trashDir := filepath.Join(dir, ".tachyon-trash")
	if err := os.MkdirAll(trashDir, 0o755); err != nil {
		return err
	}
	dest := filepath.Join(trashDir, fmt.Sprintf("%d-%s", time.Now().UnixNano(), filepath.Base(path)))
	return os.Rename(path, dest)
}
