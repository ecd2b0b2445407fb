// SPDX-License-Identifier: MPL-2.0

// Package distmeta generates the descriptor files embedded in distribution
// archives: the core metadata document (METADATA in wheels, PKG-INFO in
// sdists), the WHEEL descriptor, and entry_points.txt. It also owns
// distribution naming and the resolution of user metadata files (readme,
// license) into the archives.
package distmeta

import (
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"wheelwright/internal/manifest"
	"wheelwright/pkg/fileset"
	"wheelwright/pkg/pathspec"
)

// Generator identifies the build backend in generated descriptors.
const Generator = "wheelwright"

// GeneratorVersion is the backend version recorded in WHEEL files. Overridden
// at release time via -ldflags.
var GeneratorVersion = "dev"

// DefaultWheelTag means "pure Python, any interpreter version, any platform".
const DefaultWheelTag = "py3-none-any"

// MetadataVersion is the core metadata format version written to METADATA
// and PKG-INFO.
const MetadataVersion = "2.1"

// ReservedDistInfoNames are the file names wheelwright itself writes into the
// dist-info directory. A user metadata file flattening to one of these names
// would silently be shadowed, so the collision is rejected up front.
var ReservedDistInfoNames = map[string]bool{
	"RECORD":           true,
	"METADATA":         true,
	"WHEEL":            true,
	"INSTALLER":        true,
	"REQUESTED":        true,
	"direct_url.json":  true,
	"entry_points.txt": true,
}

// ErrMetadataCollision reports that two resolved metadata files cannot
// coexist in the flat dist-info directory.
var ErrMetadataCollision = errors.New("metadata file name collision")

var distNameRuns = regexp.MustCompile(`[-_.]+`)

// NormalizeDistName converts a project name and normalized version into the
// canonical distribution name used for dist-info directories and archive
// file names: runs of "-", "_", "." collapse to a single underscore and the
// name is lowercased.
func NormalizeDistName(name, version string) string {
	return fmt.Sprintf("%s-%s", strings.ToLower(distNameRuns.ReplaceAllString(name, "_")), version)
}

// DistInfoDir returns the descriptor directory name inside a wheel.
func DistInfoDir(name, version string) string {
	return NormalizeDistName(name, version) + ".dist-info"
}

// WheelFilename returns the archive file name for a wheel with the given tag.
func WheelFilename(name, version, tag string) string {
	return fmt.Sprintf("%s-%s.whl", NormalizeDistName(name, version), tag)
}

// SdistFilename returns the archive file name for an sdist.
func SdistFilename(name, version string) string {
	return NormalizeDistName(name, version) + ".tar.gz"
}

// WriteCoreMetadata writes the email-header core metadata document for the
// manifest: required fields first, optional fields only when set, then the
// repeatable fields, then the readme text as the body.
func WriteCoreMetadata(w io.Writer, m *manifest.Manifest) error {
	var b strings.Builder

	writeField := func(name, value string) {
		if value == "" {
			return
		}
		// Continuation lines in header values are indented.
		value = strings.Join(strings.Split(value, "\n"), "\n        ")
		fmt.Fprintf(&b, "%s: %s\n", name, value)
	}

	fmt.Fprintf(&b, "Metadata-Version: %s\n", MetadataVersion)
	fmt.Fprintf(&b, "Name: %s\n", m.Name)
	fmt.Fprintf(&b, "Version: %s\n", m.Version)

	writeField("Summary", m.Summary)
	writeField("Keywords", m.Keywords)
	writeField("Author", m.Author)
	writeField("Author-email", m.AuthorEmail)
	writeField("Maintainer", m.Maintainer)
	writeField("Maintainer-email", m.MaintainerEmail)
	writeField("License", m.License.Text)
	writeField("Requires-Python", m.RequiresPython)
	writeField("Description-Content-Type", m.Readme.ContentType)

	for _, classifier := range m.Classifiers {
		writeField("Classifier", classifier)
	}
	for _, req := range m.RequiresDist {
		writeField("Requires-Dist", req)
	}
	for _, url := range m.ProjectURLs {
		writeField("Project-URL", url)
	}
	for _, extra := range m.ProvidesExtra {
		writeField("Provides-Extra", extra)
	}

	if m.Readme.Text != "" {
		b.WriteString("\n")
		b.WriteString(m.Readme.Text)
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// WriteWheelFile writes the WHEEL descriptor. Root-Is-Purelib is derived from
// the tag: only the default pure tag installs into purelib.
func WriteWheelFile(w io.Writer, tag string) error {
	if tag == "" {
		tag = DefaultWheelTag
	}
	isPurelib := "false"
	if tag == DefaultWheelTag {
		isPurelib = "true"
	}
	_, err := fmt.Fprintf(w,
		"Wheel-Version: 1.0\nGenerator: %s %s\nRoot-Is-Purelib: %s\nTag: %s\n",
		Generator, GeneratorVersion, isPurelib, tag)
	return err
}

// WriteEntryPoints writes entry_points.txt from the two-level group map,
// sorting groups and names so output is reproducible.
func WriteEntryPoints(w io.Writer, entryPoints map[string]map[string]string) error {
	groups := maps.Keys(entryPoints)
	slices.Sort(groups)
	for _, group := range groups {
		if _, err := fmt.Fprintf(w, "[%s]\n", group); err != nil {
			return err
		}
		names := maps.Keys(entryPoints[group])
		slices.Sort(names)
		for _, name := range names {
			if _, err := fmt.Fprintf(w, "%s=%s\n", name, entryPoints[group][name]); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, "\n"); err != nil {
			return err
		}
	}
	return nil
}

// ResolveMetadataFiles applies the metadata-file patterns against the
// selector's base directory and returns the sorted relative paths of the
// matched files. Two resolved files must not collapse to the same bare
// filename (wheels flatten them into the dist-info directory), and none may
// collide with a reserved dist-info name; either collision is fatal.
func ResolveMetadataFiles(selector *fileset.Selector, patterns []pathspec.Pattern) ([]string, error) {
	files, err := selector.Select(patterns, nil, nil, nil)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]string, len(files))
	for _, rel := range files {
		base := path.Base(rel)
		if ReservedDistInfoNames[base] {
			return nil, &manifest.ConfigError{
				Reason: fmt.Sprintf("metadata file %s collides with the reserved dist-info name %s", rel, base),
				Cause:  ErrMetadataCollision,
			}
		}
		if prev, dup := seen[base]; dup {
			return nil, &manifest.ConfigError{
				Reason: fmt.Sprintf("metadata files %s and %s flatten to the same name %s in the dist-info directory", prev, rel, base),
				Cause:  ErrMetadataCollision,
			}
		}
		seen[base] = rel
	}
	return files, nil
}
