// SPDX-License-Identifier: MPL-2.0

package archive

import (
	"archive/zip"
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"hash"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/log"

	"wheelwright/internal/distmeta"
	"wheelwright/internal/manifest"
)

// WheelOptions control a single wheel build.
type WheelOptions struct {
	// OutputDir receives the finished archive. Created if absent.
	OutputDir string
	// Tag is the wheel compatibility tag recorded in the WHEEL descriptor
	// and the archive filename. Empty means the pure default tag.
	Tag string
	// Editable builds a wheel whose only payload is a path file pointing at
	// the live source tree instead of copying project files.
	Editable bool
}

// wheelEntry is one archive entry to write: either file-backed (sourcePath
// set) or synthesized (data set).
type wheelEntry struct {
	archivePath string
	sourcePath  string
	data        []byte
}

// recordRow is one line of the integrity manifest.
type recordRow struct {
	archivePath string
	digest      string
	size        int64
}

// WriteWheel writes a wheel for the manifest from the given selected and
// metadata file lists (both base-relative). Entries are deflated, normalized,
// and written in lexicographic archive-path order; the RECORD integrity
// manifest is computed as entries are streamed in and appended last,
// omitting its own hash and size.
func WriteWheel(m *manifest.Manifest, files, metaFiles []string, n Normalizer, opts WheelOptions) (string, error) {
	tag := opts.Tag
	if tag == "" {
		tag = distmeta.DefaultWheelTag
	}
	distInfo := distmeta.DistInfoDir(m.Name, m.Version)

	entries, err := wheelEntries(m, files, metaFiles, distInfo, tag, opts.Editable)
	if err != nil {
		return "", err
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].archivePath < entries[j].archivePath
	})

	filename := distmeta.WheelFilename(m.Name, m.Version, tag)
	target, err := writeAtomic(opts.OutputDir, filename, func(f *os.File) error {
		return streamWheel(f, m, entries, distInfo, n)
	})
	if err != nil {
		return "", fmt.Errorf("failed to write wheel: %w", err)
	}
	log.Debug("wrote wheel", "path", target, "entries", len(entries))
	return target, nil
}

// wheelEntries assembles the full entry list except RECORD: transformed
// project files (or the editable path file), flattened metadata files, and
// the generated descriptors.
func wheelEntries(m *manifest.Manifest, files, metaFiles []string, distInfo, tag string, editable bool) ([]wheelEntry, error) {
	var entries []wheelEntry
	sources := make(map[string]string)

	add := func(archivePath, sourcePath string, data []byte) error {
		if prev, dup := sources[archivePath]; dup {
			first, second := prev, sourcePath
			if first == "" {
				first = archivePath
			}
			if second == "" {
				second = archivePath
			}
			return &CollisionError{ArchivePath: archivePath, FirstSource: first, SecondSource: second}
		}
		sources[archivePath] = sourcePath
		entries = append(entries, wheelEntry{archivePath: archivePath, sourcePath: sourcePath, data: data})
		return nil
	}

	if editable {
		pth, err := editablePathFile(m)
		if err != nil {
			return nil, err
		}
		if err := add(m.Name+".pth", "", pth); err != nil {
			return nil, err
		}
	} else {
		for _, rel := range files {
			archivePath := StripPrefixes(rel, m.Packaging.WheelPathPrefixesToStrip)
			if err := add(archivePath, rel, nil); err != nil {
				return nil, err
			}
		}
	}

	// Metadata files flatten to their basename inside the dist-info dir;
	// uniqueness was verified at resolution time.
	for _, rel := range metaFiles {
		if err := add(distInfo+"/"+path.Base(rel), rel, nil); err != nil {
			return nil, err
		}
	}

	if len(m.EntryPoints) > 0 {
		var buf bytes.Buffer
		if err := distmeta.WriteEntryPoints(&buf, m.EntryPoints); err != nil {
			return nil, err
		}
		if err := add(distInfo+"/entry_points.txt", "", buf.Bytes()); err != nil {
			return nil, err
		}
	}

	var wheelBuf bytes.Buffer
	if err := distmeta.WriteWheelFile(&wheelBuf, tag); err != nil {
		return nil, err
	}
	if err := add(distInfo+"/WHEEL", "", wheelBuf.Bytes()); err != nil {
		return nil, err
	}

	var metaBuf bytes.Buffer
	if err := distmeta.WriteCoreMetadata(&metaBuf, m); err != nil {
		return nil, err
	}
	if err := add(distInfo+"/METADATA", "", metaBuf.Bytes()); err != nil {
		return nil, err
	}

	return entries, nil
}

// editablePathFile renders the .pth payload: one absolute path per configured
// editable path, defaulting to the project base directory.
func editablePathFile(m *manifest.Manifest) ([]byte, error) {
	paths := m.Packaging.EditablePaths
	if len(paths) == 0 {
		paths = []string{"."}
	}
	var b strings.Builder
	for _, rel := range paths {
		abs := filepath.Join(m.BaseDir, filepath.FromSlash(rel))
		b.WriteString(abs)
		b.WriteString("\n")
	}
	return []byte(b.String()), nil
}

func streamWheel(f *os.File, m *manifest.Manifest, entries []wheelEntry, distInfo string, n Normalizer) (err error) {
	zw := zip.NewWriter(f)
	defer func() {
		if closeErr := zw.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	records := make([]recordRow, 0, len(entries)+1)

	for _, entry := range entries {
		row, writeErr := writeWheelEntry(zw, m.BaseDir, entry, n)
		if writeErr != nil {
			return writeErr
		}
		records = append(records, row)
	}

	// RECORD is appended last so it can describe every prior entry. Its own
	// line carries no hash or size.
	var recordBuf bytes.Buffer
	for _, row := range records {
		fmt.Fprintf(&recordBuf, "%s,sha256=%s,%d\n", row.archivePath, row.digest, row.size)
	}
	fmt.Fprintf(&recordBuf, "%s/RECORD,,\n", distInfo)

	recordEntry := wheelEntry{archivePath: distInfo + "/RECORD", data: recordBuf.Bytes()}
	if _, err := writeWheelEntry(zw, m.BaseDir, recordEntry, n); err != nil {
		return err
	}
	return nil
}

// writeWheelEntry deflates one entry into the archive, hashing the content as
// it streams, and returns its integrity manifest row.
func writeWheelEntry(zw *zip.Writer, baseDir string, entry wheelEntry, n Normalizer) (recordRow, error) {
	header := &zip.FileHeader{
		Name:     entry.archivePath,
		Method:   zip.Deflate,
		Modified: n.ZipModTime(),
	}

	var (
		src    io.Reader
		hasher hash.Hash = sha256.New()
	)

	if entry.sourcePath != "" {
		abs := filepath.Join(baseDir, filepath.FromSlash(entry.sourcePath))
		info, err := os.Stat(abs)
		if err != nil {
			return recordRow{}, fmt.Errorf("failed to stat %s: %w", entry.sourcePath, err)
		}
		file, err := os.Open(abs)
		if err != nil {
			return recordRow{}, fmt.Errorf("failed to read %s: %w", entry.sourcePath, err)
		}
		defer file.Close()
		src = file
		header.SetMode(n.Mode(info.Mode()))
	} else {
		src = bytes.NewReader(entry.data)
		header.SetMode(n.Mode(0o644))
	}

	dst, err := zw.CreateHeader(header)
	if err != nil {
		return recordRow{}, fmt.Errorf("failed to create archive entry %s: %w", entry.archivePath, err)
	}
	// The recorded size is the byte count that actually streamed through the
	// hash, so the two integrity columns can never describe different content.
	written, err := io.Copy(io.MultiWriter(dst, hasher), src)
	if err != nil {
		return recordRow{}, fmt.Errorf("failed to write archive entry %s: %w", entry.archivePath, err)
	}

	digest := base64.RawURLEncoding.EncodeToString(hasher.Sum(nil))
	return recordRow{archivePath: entry.archivePath, digest: digest, size: written}, nil
}
