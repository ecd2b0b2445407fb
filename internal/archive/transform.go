// SPDX-License-Identifier: MPL-2.0

package archive

import (
	"os"
	"path/filepath"
	"strings"
)

// StripPrefixes maps a source-relative path to its wheel path by removing the
// first configured prefix the path sits under. Prefixes match whole leading
// segments; at most one prefix is stripped. A path under no prefix is
// returned unchanged.
//
// The wheel is an installed-layout view, so "src/pkg/a.py" with prefix "src"
// becomes "pkg/a.py". Sdist paths are never stripped: the sdist preserves
// the source tree so it can be re-built.
func StripPrefixes(rel string, prefixes []string) string {
	for _, prefix := range prefixes {
		if rest, ok := strings.CutPrefix(rel, prefix+"/"); ok {
			return rest
		}
	}
	return rel
}

// writeAtomic creates the output directory if absent, writes the archive to
// a temporary file inside it, and renames it to filename only after write
// succeeds. An interrupted or failed build never leaves a correctly named
// artifact behind.
func writeAtomic(outputDir, filename string, write func(f *os.File) error) (string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(outputDir, ".wheelwright-*")
	if err != nil {
		return "", err
	}
	tmpPath := tmp.Name()

	if err := write(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", err
	}

	target := filepath.Join(outputDir, filename)
	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return "", err
	}
	return target, nil
}
