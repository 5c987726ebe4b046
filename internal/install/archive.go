package install

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	lzip "github.com/sorairolake/lzip-go"
	"github.com/ulikunitz/xz"
)

// maxExtractedBytes bounds the total decompressed size of a release
// archive, guarding against a decompression bomb masquerading as a
// signed release.
const maxExtractedBytes = 256 * 1024 * 1024

// extractArchive unpacks a signed release archive into dir, dispatching
// on the URL's extension. dir must already exist.
func extractArchive(data []byte, url, dir string) error {
	switch {
	case strings.HasSuffix(url, ".tar.gz") || strings.HasSuffix(url, ".tgz"):
		gz, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("open gzip stream: %w", err)
		}
		defer gz.Close()
		return extractTar(gz, dir)

	case strings.HasSuffix(url, ".tar.xz"):
		xzr, err := xz.NewReader(bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("open xz stream: %w", err)
		}
		return extractTar(xzr, dir)

	case strings.HasSuffix(url, ".tar.lz"):
		lzr, err := lzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("open lzip stream: %w", err)
		}
		return extractTar(lzr, dir)

	case strings.HasSuffix(url, ".zip"):
		return extractZip(data, dir)

	default:
		return fmt.Errorf("unsupported release archive format: %s", url)
	}
}

func extractTar(r io.Reader, dir string) error {
	tr := tar.NewReader(r)
	var written int64

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read tar entry: %w", err)
		}

		target, err := safeJoin(dir, hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return err
			}
			f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, os.FileMode(hdr.Mode&0777))
			if err != nil {
				return err
			}
			n, err := io.Copy(f, io.LimitReader(tr, maxExtractedBytes-written+1))
			f.Close()
			if err != nil {
				return err
			}
			written += n
			if written > maxExtractedBytes {
				return fmt.Errorf("release archive exceeds maximum extracted size of %d bytes", maxExtractedBytes)
			}
		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return err
			}
			os.Remove(target)
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return err
			}
		}
	}
}

func extractZip(data []byte, dir string) error {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("open zip archive: %w", err)
	}

	var written int64
	for _, f := range zr.File {
		target, err := safeJoin(dir, f.Name)
		if err != nil {
			return err
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}

		rc, err := f.Open()
		if err != nil {
			return err
		}
		out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.Mode())
		if err != nil {
			rc.Close()
			return err
		}
		n, err := io.Copy(out, io.LimitReader(rc, maxExtractedBytes-written+1))
		out.Close()
		rc.Close()
		if err != nil {
			return err
		}
		written += n
		if written > maxExtractedBytes {
			return fmt.Errorf("release archive exceeds maximum extracted size of %d bytes", maxExtractedBytes)
		}
	}
	return nil
}

// safeJoin joins dir and name, rejecting any entry whose resolved path
// escapes dir via ".." components or an absolute path (a "Zip Slip" entry).
func safeJoin(dir, name string) (string, error) {
	cleaned := filepath.Clean(name)
	if filepath.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("archive entry escapes extraction directory: %s", name)
	}
	dir = filepath.Clean(dir)
	target := filepath.Join(dir, cleaned)
	if target != dir && !strings.HasPrefix(target, dir+string(filepath.Separator)) {
		return "", fmt.Errorf("archive entry escapes extraction directory: %s", name)
	}
	return target, nil
}
