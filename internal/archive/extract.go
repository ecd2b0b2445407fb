// SPDX-License-Identifier: MPL-2.0

package archive

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// ExtractSdist unpacks a source distribution into destDir and returns the
// absolute path of the archive's single top-level directory. Entry names are
// validated against path traversal before anything is written; executable
// permission bits survive extraction so a wheel rebuilt from the tree gets
// the same permission classes.
func ExtractSdist(sdistPath, destDir string) (string, error) {
	f, err := os.Open(sdistPath)
	if err != nil {
		return "", fmt.Errorf("failed to open sdist: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return "", fmt.Errorf("failed to read sdist compression wrapper: %w", err)
	}
	defer gz.Close()

	absDest, err := filepath.Abs(destDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve destination directory: %w", err)
	}

	var root string
	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to read sdist entry: %w", err)
		}

		name := filepath.ToSlash(header.Name)
		top, _, found := strings.Cut(name, "/")
		if !found || top == "" || top == ".." {
			return "", fmt.Errorf("sdist entry %q is not under a top-level directory", header.Name)
		}
		if root == "" {
			root = top
		} else if top != root {
			return "", fmt.Errorf("sdist has multiple top-level directories: %s and %s", root, top)
		}

		target := filepath.Join(absDest, filepath.FromSlash(name))
		rel, err := filepath.Rel(absDest, target)
		if err != nil || strings.HasPrefix(rel, "..") {
			return "", fmt.Errorf("sdist entry %q escapes the destination directory", header.Name)
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return "", fmt.Errorf("failed to create directory: %w", err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return "", fmt.Errorf("failed to create parent directory: %w", err)
			}
			if err := extractRegular(tr, target, fs.FileMode(header.Mode)); err != nil {
				return "", fmt.Errorf("failed to extract %s: %w", header.Name, err)
			}
		default:
			return "", fmt.Errorf("sdist entry %q has unsupported type %d", header.Name, header.Typeflag)
		}
	}

	if root == "" {
		return "", fmt.Errorf("sdist %s is empty", sdistPath)
	}
	return filepath.Join(absDest, root), nil
}

func extractRegular(src io.Reader, target string, mode fs.FileMode) (err error) {
	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode.Perm())
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	_, err = io.Copy(out, src)
	return err
}
