// SPDX-License-Identifier: MPL-2.0

package archive

import (
	"archive/zip"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"wheelwright/internal/manifest"
)

// testProject writes a small source tree and returns a manifest describing it.
func testProject(t *testing.T, files map[string]os.FileMode) *manifest.Manifest {
	t.Helper()
	dir := t.TempDir()
	for rel, mode := range files {
		full := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte("content of "+rel+"\n"), mode); err != nil {
			t.Fatal(err)
		}
	}
	return &manifest.Manifest{
		Path:    filepath.Join(dir, "pyproject.toml"),
		BaseDir: dir,
		Name:    "My-Pkg",
		Version: "1.0",
		Summary: "A test package",
	}
}

func readZipEntry(t *testing.T, zr *zip.ReadCloser, name string) []byte {
	t.Helper()
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatal(err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			t.Fatal(err)
		}
		return data
	}
	t.Fatalf("entry %s not found", name)
	return nil
}

func TestWriteWheel(t *testing.T) {
	m := testProject(t, map[string]os.FileMode{
		"pkg/a.py":     0o644,
		"pkg/sub/b.py": 0o664,
		"bin/tool":     0o755,
		"README.md":    0o644,
	})
	files := []string{"bin/tool", "pkg/a.py", "pkg/sub/b.py"}
	metaFiles := []string{"README.md"}

	target, err := WriteWheel(m, files, metaFiles, NewNormalizer(nil), WheelOptions{OutputDir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(target) != "my_pkg-1.0-py3-none-any.whl" {
		t.Errorf("wheel filename = %q", filepath.Base(target))
	}

	zr, err := zip.OpenReader(target)
	if err != nil {
		t.Fatal(err)
	}
	defer zr.Close()

	wantNames := []string{
		"bin/tool",
		"my_pkg-1.0.dist-info/METADATA",
		"my_pkg-1.0.dist-info/README.md",
		"my_pkg-1.0.dist-info/WHEEL",
		"pkg/a.py",
		"pkg/sub/b.py",
		"my_pkg-1.0.dist-info/RECORD",
	}
	if len(zr.File) != len(wantNames) {
		t.Fatalf("wheel has %d entries, want %d", len(zr.File), len(wantNames))
	}
	for i, f := range zr.File {
		if f.Name != wantNames[i] {
			t.Errorf("entry %d = %q, want %q", i, f.Name, wantNames[i])
		}
	}

	for _, f := range zr.File {
		if f.Modified.UTC().Year() != 2022 {
			t.Errorf("entry %s has timestamp %v, want the canonical epoch", f.Name, f.Modified)
		}
		wantMode := os.FileMode(0o644)
		if f.Name == "bin/tool" {
			wantMode = 0o755
		}
		if got := f.Mode().Perm(); got != wantMode {
			t.Errorf("entry %s mode = %o, want %o", f.Name, got, wantMode)
		}
	}
}

func TestWriteWheelRecord(t *testing.T) {
	m := testProject(t, map[string]os.FileMode{"pkg/a.py": 0o644})

	target, err := WriteWheel(m, []string{"pkg/a.py"}, nil, NewNormalizer(nil), WheelOptions{OutputDir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	zr, err := zip.OpenReader(target)
	if err != nil {
		t.Fatal(err)
	}
	defer zr.Close()

	record := string(readZipEntry(t, zr, "my_pkg-1.0.dist-info/RECORD"))
	lines := strings.Split(strings.TrimSuffix(record, "\n"), "\n")
	if len(lines) != len(zr.File) {
		t.Fatalf("RECORD has %d rows, want %d:\n%s", len(lines), len(zr.File), record)
	}
	if last := lines[len(lines)-1]; last != "my_pkg-1.0.dist-info/RECORD,," {
		t.Errorf("RECORD's own row = %q", last)
	}

	content := readZipEntry(t, zr, "pkg/a.py")
	sum := sha256.Sum256(content)
	wantRow := fmt.Sprintf("pkg/a.py,sha256=%s,%d",
		base64.RawURLEncoding.EncodeToString(sum[:]), len(content))
	found := false
	for _, line := range lines {
		if line == wantRow {
			found = true
		}
	}
	if !found {
		t.Errorf("RECORD missing row %q:\n%s", wantRow, record)
	}
}

func TestWriteWheelRecordMatchesContent(t *testing.T) {
	m := testProject(t, map[string]os.FileMode{
		"pkg/a.py":  0o644,
		"pkg/b.py":  0o644,
		"README.md": 0o644,
	})

	target, err := WriteWheel(m, []string{"pkg/a.py", "pkg/b.py"}, []string{"README.md"},
		NewNormalizer(nil), WheelOptions{OutputDir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	zr, err := zip.OpenReader(target)
	if err != nil {
		t.Fatal(err)
	}
	defer zr.Close()

	// Every row's hash and size must describe the bytes actually stored for
	// that entry; the two columns come from one pass over the content.
	record := string(readZipEntry(t, zr, "my_pkg-1.0.dist-info/RECORD"))
	for _, line := range strings.Split(strings.TrimSuffix(record, "\n"), "\n") {
		name, rest, _ := strings.Cut(line, ",")
		if name == "my_pkg-1.0.dist-info/RECORD" {
			continue
		}
		content := readZipEntry(t, zr, name)
		sum := sha256.Sum256(content)
		wantRest := fmt.Sprintf("sha256=%s,%d",
			base64.RawURLEncoding.EncodeToString(sum[:]), len(content))
		if rest != wantRest {
			t.Errorf("RECORD row for %s = %q, want %q", name, rest, wantRest)
		}
	}
}

func TestWriteWheelReproducible(t *testing.T) {
	m := testProject(t, map[string]os.FileMode{
		"pkg/a.py":  0o644,
		"README.md": 0o644,
	})
	files := []string{"pkg/a.py"}
	metaFiles := []string{"README.md"}

	first, err := WriteWheel(m, files, metaFiles, NewNormalizer(nil), WheelOptions{OutputDir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	second, err := WriteWheel(m, files, metaFiles, NewNormalizer(nil), WheelOptions{OutputDir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}

	a, err := os.ReadFile(first)
	if err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(second)
	if err != nil {
		t.Fatal(err)
	}
	if string(a) != string(b) {
		t.Error("two builds of the same tree should be byte-identical")
	}
}

func TestWriteWheelStripsPrefixes(t *testing.T) {
	m := testProject(t, map[string]os.FileMode{"src/pkg/a.py": 0o644})
	m.Packaging.WheelPathPrefixesToStrip = []string{"src"}

	target, err := WriteWheel(m, []string{"src/pkg/a.py"}, nil, NewNormalizer(nil), WheelOptions{OutputDir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	zr, err := zip.OpenReader(target)
	if err != nil {
		t.Fatal(err)
	}
	defer zr.Close()

	readZipEntry(t, zr, "pkg/a.py")
	for _, f := range zr.File {
		if strings.HasPrefix(f.Name, "src/") {
			t.Errorf("entry %s kept its stripped prefix", f.Name)
		}
	}
}

func TestWriteWheelRejectsCollisions(t *testing.T) {
	m := testProject(t, map[string]os.FileMode{
		"src/pkg/a.py": 0o644,
		"pkg/a.py":     0o644,
	})
	m.Packaging.WheelPathPrefixesToStrip = []string{"src"}

	_, err := WriteWheel(m, []string{"pkg/a.py", "src/pkg/a.py"}, nil, NewNormalizer(nil), WheelOptions{OutputDir: t.TempDir()})
	if err == nil {
		t.Fatal("expected a collision error")
	}
	var colErr *CollisionError
	if !errors.As(err, &colErr) {
		t.Fatalf("error %T is not a CollisionError", err)
	}
	if colErr.ArchivePath != "pkg/a.py" {
		t.Errorf("ArchivePath = %q", colErr.ArchivePath)
	}
}

func TestWriteWheelEditable(t *testing.T) {
	m := testProject(t, map[string]os.FileMode{"pkg/a.py": 0o644})

	target, err := WriteWheel(m, nil, nil, NewNormalizer(nil), WheelOptions{OutputDir: t.TempDir(), Editable: true})
	if err != nil {
		t.Fatal(err)
	}
	zr, err := zip.OpenReader(target)
	if err != nil {
		t.Fatal(err)
	}
	defer zr.Close()

	pth := string(readZipEntry(t, zr, "My-Pkg.pth"))
	if strings.TrimSpace(pth) != m.BaseDir {
		t.Errorf("pth payload = %q, want the base directory %q", pth, m.BaseDir)
	}
	for _, f := range zr.File {
		if strings.HasPrefix(f.Name, "pkg/") {
			t.Errorf("editable wheel should not carry project files, found %s", f.Name)
		}
	}
}
