// SPDX-License-Identifier: MPL-2.0

package archive

import (
	"archive/tar"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/charmbracelet/log"
	"github.com/klauspost/compress/gzip"

	"wheelwright/internal/distmeta"
	"wheelwright/internal/manifest"
)

// sdistEntry is one tar entry: file-backed when sourceAbs is set, synthesized
// otherwise.
type sdistEntry struct {
	archivePath string
	sourceAbs   string
	data        []byte
}

// WriteSdist writes the source distribution for the manifest from the given
// file list (base-relative, already including any metadata files). Every
// entry goes under the single {name}-{version}/ top-level directory at its
// untouched relative path. The manifest itself is always embedded at the
// root of that directory, and a synthesized PKG-INFO carries the same core
// metadata the wheel's METADATA does.
//
// Tar headers are normalized beyond the wheel rules: uid and gid are zeroed
// and owner/group names blanked, because tar entries carry ownership that
// ZIP entries do not. The gzip wrapper is written without a name or
// timestamp, keeping the compressed byte stream reproducible.
func WriteSdist(m *manifest.Manifest, files []string, n Normalizer, outputDir string) (string, error) {
	distName := distmeta.NormalizeDistName(m.Name, m.Version)

	entries, err := sdistEntries(m, files, distName)
	if err != nil {
		return "", err
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].archivePath < entries[j].archivePath
	})

	filename := distmeta.SdistFilename(m.Name, m.Version)
	target, err := writeAtomic(outputDir, filename, func(f *os.File) error {
		return streamSdist(f, entries, n)
	})
	if err != nil {
		return "", fmt.Errorf("failed to write sdist: %w", err)
	}
	log.Debug("wrote sdist", "path", target, "entries", len(entries))
	return target, nil
}

// manifestFileName is the canonical name the manifest carries inside an
// sdist, whatever the source file was called. The wheel rebuild relies on
// finding it at this exact path in the extracted tree.
const manifestFileName = "pyproject.toml"

func sdistEntries(m *manifest.Manifest, files []string, distName string) ([]sdistEntry, error) {
	var entries []sdistEntry
	seen := make(map[string]string)

	add := func(rel, sourceAbs string, data []byte) error {
		archivePath := distName + "/" + rel
		if prev, dup := seen[archivePath]; dup {
			return &CollisionError{ArchivePath: archivePath, FirstSource: prev, SecondSource: rel}
		}
		seen[archivePath] = rel
		entries = append(entries, sdistEntry{archivePath: archivePath, sourceAbs: sourceAbs, data: data})
		return nil
	}

	for _, rel := range files {
		if rel == manifestFileName || rel == filepath.Base(m.Path) {
			// The manifest is embedded explicitly below.
			continue
		}
		if err := add(rel, filepath.Join(m.BaseDir, filepath.FromSlash(rel)), nil); err != nil {
			return nil, err
		}
	}

	// The manifest always travels with the sdist under its canonical name so
	// the wheel can be rebuilt from the extracted tree.
	if err := add(manifestFileName, m.Path, nil); err != nil {
		return nil, err
	}

	var metaBuf bytes.Buffer
	if err := distmeta.WriteCoreMetadata(&metaBuf, m); err != nil {
		return nil, err
	}
	if err := add("PKG-INFO", "", metaBuf.Bytes()); err != nil {
		return nil, err
	}

	return entries, nil
}

func streamSdist(f *os.File, entries []sdistEntry, n Normalizer) (err error) {
	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)
	defer func() {
		if closeErr := tw.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		if closeErr := gz.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	for _, entry := range entries {
		if writeErr := writeSdistEntry(tw, entry, n); writeErr != nil {
			return writeErr
		}
	}
	return nil
}

func writeSdistEntry(tw *tar.Writer, entry sdistEntry, n Normalizer) error {
	header := &tar.Header{
		Typeflag: tar.TypeReg,
		Name:     entry.archivePath,
		ModTime:  n.ModTime(),
		Uid:      0,
		Gid:      0,
		Uname:    "",
		Gname:    "",
		Format:   tar.FormatPAX,
	}

	var src io.Reader
	if entry.sourceAbs != "" {
		info, err := os.Stat(entry.sourceAbs)
		if err != nil {
			return fmt.Errorf("failed to stat %s: %w", entry.sourceAbs, err)
		}
		file, err := os.Open(entry.sourceAbs)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", entry.sourceAbs, err)
		}
		defer file.Close()
		src = file
		header.Size = info.Size()
		header.Mode = int64(n.Mode(info.Mode()))
	} else {
		src = bytes.NewReader(entry.data)
		header.Size = int64(len(entry.data))
		header.Mode = int64(n.Mode(0o644))
	}

	if err := tw.WriteHeader(header); err != nil {
		return fmt.Errorf("failed to write tar header for %s: %w", entry.archivePath, err)
	}
	if _, err := io.Copy(tw, src); err != nil {
		return fmt.Errorf("failed to write tar entry %s: %w", entry.archivePath, err)
	}
	return nil
}
