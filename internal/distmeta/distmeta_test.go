// SPDX-License-Identifier: MPL-2.0

package distmeta

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"wheelwright/internal/manifest"
	"wheelwright/pkg/fileset"
	"wheelwright/pkg/pathspec"
)

func TestNormalizeDistName(t *testing.T) {
	tests := []struct {
		name    string
		version string
		want    string
	}{
		{"mypackage", "1.0", "mypackage-1.0"},
		{"My-Package", "1.0", "my_package-1.0"},
		{"my.pack_age", "2.1", "my_pack_age-2.1"},
		{"a--b__c..d", "0.1", "a_b_c_d-0.1"},
	}
	for _, tt := range tests {
		if got := NormalizeDistName(tt.name, tt.version); got != tt.want {
			t.Errorf("NormalizeDistName(%q, %q) = %q, want %q", tt.name, tt.version, got, tt.want)
		}
	}
}

func TestArchiveNames(t *testing.T) {
	if got := DistInfoDir("My-Package", "1.0"); got != "my_package-1.0.dist-info" {
		t.Errorf("DistInfoDir = %q", got)
	}
	if got := WheelFilename("My-Package", "1.0", DefaultWheelTag); got != "my_package-1.0-py3-none-any.whl" {
		t.Errorf("WheelFilename = %q", got)
	}
	if got := SdistFilename("My-Package", "1.0"); got != "my_package-1.0.tar.gz" {
		t.Errorf("SdistFilename = %q", got)
	}
}

func TestWriteCoreMetadata(t *testing.T) {
	m := &manifest.Manifest{
		Name:           "mypackage",
		Version:        "1.0",
		Summary:        "A test package",
		RequiresPython: ">=3.8",
		AuthorEmail:    "Ada <ada@example.com>",
		Classifiers:    []string{"Programming Language :: Python :: 3"},
		RequiresDist:   []string{"requests >= 2.0"},
		ProjectURLs:    []string{"Homepage, https://example.com"},
		ProvidesExtra:  []string{"test"},
		Readme: manifest.Readme{
			Text:        "# mypackage\n\nHello.\n",
			ContentType: "text/markdown",
		},
	}

	var buf bytes.Buffer
	if err := WriteCoreMetadata(&buf, m); err != nil {
		t.Fatal(err)
	}
	got := buf.String()

	want := "Metadata-Version: 2.1\n" +
		"Name: mypackage\n" +
		"Version: 1.0\n" +
		"Summary: A test package\n" +
		"Author-email: Ada <ada@example.com>\n" +
		"Requires-Python: >=3.8\n" +
		"Description-Content-Type: text/markdown\n" +
		"Classifier: Programming Language :: Python :: 3\n" +
		"Requires-Dist: requests >= 2.0\n" +
		"Project-URL: Homepage, https://example.com\n" +
		"Provides-Extra: test\n" +
		"\n# mypackage\n\nHello.\n\n"
	if got != want {
		t.Errorf("WriteCoreMetadata output:\n%q\nwant:\n%q", got, want)
	}
}

func TestWriteCoreMetadataIndentsContinuations(t *testing.T) {
	m := &manifest.Manifest{
		Name:    "p",
		Version: "1.0",
		License: manifest.License{Text: "Line one\nLine two"},
	}
	var buf bytes.Buffer
	if err := WriteCoreMetadata(&buf, m); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "License: Line one\n        Line two\n") {
		t.Errorf("multi-line field not indented:\n%s", buf.String())
	}
}

func TestWriteWheelFile(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteWheelFile(&buf, ""); err != nil {
		t.Fatal(err)
	}
	got := buf.String()
	for _, want := range []string{
		"Wheel-Version: 1.0\n",
		"Generator: wheelwright ",
		"Root-Is-Purelib: true\n",
		"Tag: py3-none-any\n",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("WHEEL output %q missing %q", got, want)
		}
	}

	buf.Reset()
	if err := WriteWheelFile(&buf, "py3-none-linux_x86_64"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "Root-Is-Purelib: false\n") {
		t.Errorf("platform tag should not be purelib:\n%s", buf.String())
	}
}

func TestWriteEntryPoints(t *testing.T) {
	var buf bytes.Buffer
	err := WriteEntryPoints(&buf, map[string]map[string]string{
		"console_scripts": {
			"tool-b": "pkg.cli:b",
			"tool-a": "pkg.cli:a",
		},
		"pkg.plugins": {
			"default": "pkg.plugins:Default",
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	want := "[console_scripts]\n" +
		"tool-a=pkg.cli:a\n" +
		"tool-b=pkg.cli:b\n" +
		"\n" +
		"[pkg.plugins]\n" +
		"default=pkg.plugins:Default\n" +
		"\n"
	if buf.String() != want {
		t.Errorf("entry_points.txt = %q, want %q", buf.String(), want)
	}
}

func metadataSelector(t *testing.T, files ...string) *fileset.Selector {
	t.Helper()
	dir := t.TempDir()
	for _, rel := range files {
		full := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	selector, err := fileset.NewSelector(dir)
	if err != nil {
		t.Fatal(err)
	}
	return selector
}

func TestResolveMetadataFiles(t *testing.T) {
	selector := metadataSelector(t, "README.md", "LICENSE", "pkg/a.py")
	patterns, err := pathspec.CompileAll("metadata_files", []string{"README*", "LICENSE*"})
	if err != nil {
		t.Fatal(err)
	}

	got, err := ResolveMetadataFiles(selector, patterns)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"LICENSE", "README.md"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ResolveMetadataFiles = %v, want %v", got, want)
	}
}

func TestResolveMetadataFilesRejectsFlattenCollision(t *testing.T) {
	selector := metadataSelector(t, "README.md", "docs/README.md")
	patterns, err := pathspec.CompileAll("metadata_files", []string{"README*", "docs/README*"})
	if err != nil {
		t.Fatal(err)
	}

	_, err = ResolveMetadataFiles(selector, patterns)
	if err == nil {
		t.Fatal("expected a collision error")
	}
	if !errors.Is(err, ErrMetadataCollision) {
		t.Errorf("error %v should wrap ErrMetadataCollision", err)
	}
	if !strings.Contains(err.Error(), "README.md") {
		t.Errorf("error %q should name the colliding files", err)
	}
}

func TestResolveMetadataFilesRejectsReservedNames(t *testing.T) {
	selector := metadataSelector(t, "RECORD")
	patterns, err := pathspec.CompileAll("metadata_files", []string{"RECORD"})
	if err != nil {
		t.Fatal(err)
	}

	_, err = ResolveMetadataFiles(selector, patterns)
	if err == nil {
		t.Fatal("expected a reserved-name error")
	}
	if !errors.Is(err, ErrMetadataCollision) {
		t.Errorf("error %v should wrap ErrMetadataCollision", err)
	}
	if !strings.Contains(err.Error(), "reserved") {
		t.Errorf("error %q should mention the reserved name", err)
	}
}
