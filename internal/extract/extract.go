// Package extract implements the narrow archive-extraction hook §9
// scopes in: given a downloaded archive and a destination directory,
// extract it and report what was written. Format support is
// intentionally limited to what the launcher's own provider
// downloads actually use (zip, tar.gz, tar.zst, plain gzip) — this is
// not a general-purpose archive library.
package extract

import (
	"archive/tar"
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Format is a recognized archive kind.
type Format string

const (
	FormatZip     Format = "zip"
	FormatTarGz   Format = "tar.gz"
	FormatTarZst  Format = "tar.zst"
	FormatGzip    Format = "gzip"
	FormatUnknown Format = ""
)

// DetectFormat infers the archive format from a file name's extension.
func DetectFormat(name string) Format {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".zip"):
		return FormatZip
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return FormatTarGz
	case strings.HasSuffix(lower, ".tar.zst"):
		return FormatTarZst
	case strings.HasSuffix(lower, ".gz"):
		return FormatGzip
	default:
		return FormatUnknown
	}
}

// Result reports what Extract wrote.
type Result struct {
	Format     Format
	FileCount  int
	BytesTotal int64
}

// Extract unpacks src into destDir, which is created if missing.
// Unsupported or undetectable formats return an error — callers are
// expected to have already confirmed an extraction was requested
// (storage.DownloadTask.AutoExtractDestination != "").
func Extract(src, destDir string) (Result, error) {
	format := DetectFormat(src)
	if format == FormatUnknown {
		return Result{}, fmt.Errorf("extract: unrecognized archive format for %q", src)
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return Result{}, err
	}

	switch format {
	case FormatZip:
		return extractZip(src, destDir)
	case FormatTarGz:
		return extractTarGz(src, destDir)
	case FormatTarZst:
		return extractTarZst(src, destDir)
	case FormatGzip:
		return extractPlainGzip(src, destDir)
	}
	return Result{}, fmt.Errorf("extract: unhandled format %q", format)
}

func extractZip(src, destDir string) (Result, error) {
	r, err := zip.OpenReader(src)
	if err != nil {
		return Result{}, err
	}
	defer r.Close()

	var res Result
	res.Format = FormatZip
	for _, f := range r.File {
		target, err := safeJoin(destDir, f.Name)
		if err != nil {
			return res, err
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return res, err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return res, err
		}
		rc, err := f.Open()
		if err != nil {
			return res, err
		}
		n, err := writeFile(target, rc, f.Mode())
		rc.Close()
		if err != nil {
			return res, err
		}
		res.FileCount++
		res.BytesTotal += n
	}
	return res, nil
}

func extractTarGz(src, destDir string) (Result, error) {
	f, err := os.Open(src)
	if err != nil {
		return Result{}, err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return Result{}, err
	}
	defer gz.Close()

	res, err := extractTarStream(gz, destDir)
	res.Format = FormatTarGz
	return res, err
}

func extractTarZst(src, destDir string) (Result, error) {
	f, err := os.Open(src)
	if err != nil {
		return Result{}, err
	}
	defer f.Close()

	zr, err := zstd.NewReader(f)
	if err != nil {
		return Result{}, err
	}
	defer zr.Close()

	res, err := extractTarStream(zr, destDir)
	res.Format = FormatTarZst
	return res, err
}

func extractTarStream(r io.Reader, destDir string) (Result, error) {
	var res Result
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return res, nil
		}
		if err != nil {
			return res, err
		}
		target, err := safeJoin(destDir, hdr.Name)
		if err != nil {
			return res, err
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return res, err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return res, err
			}
			n, err := writeFile(target, tr, os.FileMode(hdr.Mode))
			if err != nil {
				return res, err
			}
			res.FileCount++
			res.BytesTotal += n
		}
	}
}

// extractPlainGzip handles a bare .gz file (not a tarball): the
// decompressed stream is written as a single file with the .gz suffix
// stripped.
func extractPlainGzip(src, destDir string) (Result, error) {
	f, err := os.Open(src)
	if err != nil {
		return Result{}, err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return Result{}, err
	}
	defer gz.Close()

	name := strings.TrimSuffix(filepath.Base(src), ".gz")
	target := filepath.Join(destDir, name)
	n, err := writeFile(target, gz, 0o644)
	if err != nil {
		return Result{}, err
	}
	return Result{Format: FormatGzip, FileCount: 1, BytesTotal: n}, nil
}

func writeFile(target string, r io.Reader, mode os.FileMode) (int64, error) {
	out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode.Perm())
	if err != nil {
		return 0, err
	}
	defer out.Close()
	return io.Copy(out, r)
}

// safeJoin joins destDir and a archive member name, rejecting any
// result that would escape destDir (zip-slip protection).
func safeJoin(destDir, name string) (string, error) {
	cleaned := filepath.Clean(filepath.Join(destDir, name))
	if cleaned != destDir && !strings.HasPrefix(cleaned, destDir+string(os.PathSeparator)) {
		return "", fmt.Errorf("extract: illegal archive path %q escapes destination", name)
	}
	return cleaned, nil
}
