// SPDX-License-Identifier: MPL-2.0

// Package archive assembles reproducible distribution archives: the
// ZIP-based wheel (installed-layout view plus a dist-info descriptor
// directory) and the tar-based sdist (source-tree view under a single
// top-level directory).
//
// Every entry in both archive kinds is normalized before writing: one
// canonical modification time, two permission classes (0644 regular, 0755
// executable), and, for tar entries, zeroed ownership. Entries are written
// in lexicographic order of their in-archive path. This is what makes two
// builds from the same tree byte-identical.
package archive

import (
	"fmt"
	"io/fs"
	"time"
)

// CanonicalEpoch is the fixed timestamp (2022-02-02T02:02:02 UTC) applied to
// every archive entry when no override is supplied. Real file modification
// times are never used.
const CanonicalEpoch int64 = 1643767322

// zipTimeFloor is the earliest timestamp representable in a ZIP entry.
// Override epochs before it are clamped.
var zipTimeFloor = time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)

// Normalizer computes canonical entry metadata for one build. The zero value
// is not usable; construct with NewNormalizer.
type Normalizer struct {
	modTime time.Time
}

// NewNormalizer returns a Normalizer stamping entries with the override
// timestamp when one is given (sourced from SOURCE_DATE_EPOCH by the caller)
// and the canonical epoch otherwise.
func NewNormalizer(override *time.Time) Normalizer {
	if override != nil {
		return Normalizer{modTime: override.UTC()}
	}
	return Normalizer{modTime: time.Unix(CanonicalEpoch, 0).UTC()}
}

// ModTime returns the timestamp applied to every entry.
func (n Normalizer) ModTime() time.Time {
	return n.modTime
}

// ZipModTime returns the entry timestamp clamped to the ZIP format's floor.
func (n Normalizer) ZipModTime() time.Time {
	if n.modTime.Before(zipTimeFloor) {
		return zipTimeFloor
	}
	return n.modTime
}

// Mode maps source permission bits onto the two permission classes: files
// with the owner-executable bit become 0755, everything else 0644.
// Group and world bits from the filesystem are discarded.
func (n Normalizer) Mode(sourceMode fs.FileMode) fs.FileMode {
	if sourceMode&0o100 != 0 {
		return 0o755
	}
	return 0o644
}

// CollisionError reports two selected files mapping to the same in-archive
// path. It is fatal; the archive is never written.
type CollisionError struct {
	ArchivePath  string
	FirstSource  string
	SecondSource string
}

// Error implements the error interface.
func (e *CollisionError) Error() string {
	return fmt.Sprintf("both %s and %s map to the archive path %s",
		e.FirstSource, e.SecondSource, e.ArchivePath)
}
