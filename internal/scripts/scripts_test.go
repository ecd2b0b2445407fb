// SPDX-License-Identifier: MPL-2.0

package scripts

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeScript(t *testing.T, dir, rel, body string) {
	t.Helper()
	full := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}
}

func TestRunPassesManifestPath(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "scripts/gen.sh", `printf '%s' "$1" > arg.txt`)

	manifestPath := filepath.Join(dir, "pyproject.toml")
	if err := Run(context.Background(), dir, []string{"scripts/gen.sh"}, manifestPath); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "arg.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != manifestPath {
		t.Errorf("script received %q, want %q", data, manifestPath)
	}
}

func TestRunExecutesInBaseDir(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "gen.sh", `echo generated > out.txt`)

	if err := Run(context.Background(), dir, []string{"gen.sh"}, "pyproject.toml"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "out.txt")); err != nil {
		t.Errorf("script output not in base directory: %v", err)
	}
}

func TestRunStopsAtFirstFailure(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "fail.sh", `exit 3`)
	writeScript(t, dir, "after.sh", `echo ran > after.txt`)

	err := Run(context.Background(), dir, []string{"fail.sh", "after.sh"}, "pyproject.toml")
	if err == nil {
		t.Fatal("Run should report the failing script")
	}
	var scriptErr *ScriptError
	if !errors.As(err, &scriptErr) {
		t.Fatalf("error %T is not a ScriptError", err)
	}
	if scriptErr.Script != "fail.sh" {
		t.Errorf("ScriptError.Script = %q", scriptErr.Script)
	}
	if _, statErr := os.Stat(filepath.Join(dir, "after.txt")); statErr == nil {
		t.Error("later scripts should not run after a failure")
	}
}

func TestRunRejectsSyntaxErrors(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "broken.sh", `if then fi (`)

	err := Run(context.Background(), dir, []string{"broken.sh"}, "pyproject.toml")
	if err == nil {
		t.Fatal("Run should report the unparsable script")
	}
	if !strings.Contains(err.Error(), "broken.sh") {
		t.Errorf("error %q should name the script", err)
	}
}

func TestRunMissingScript(t *testing.T) {
	dir := t.TempDir()

	err := Run(context.Background(), dir, []string{"absent.sh"}, "pyproject.toml")
	var scriptErr *ScriptError
	if !errors.As(err, &scriptErr) {
		t.Fatalf("error %T is not a ScriptError", err)
	}
}

func TestRunNoScripts(t *testing.T) {
	if err := Run(context.Background(), t.TempDir(), nil, "pyproject.toml"); err != nil {
		t.Errorf("Run with no scripts should succeed, got %v", err)
	}
}
