// SPDX-License-Identifier: MPL-2.0

// Package scripts runs user pre-build scripts. Scripts are POSIX shell
// scripts named in the manifest, resolved relative to the project base
// directory, and executed in-process by the mvdan/sh interpreter. Each
// script receives the absolute manifest path as $1 and must exit zero;
// any failure aborts the build before file selection begins.
package scripts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// ScriptError reports a pre-build script that failed to parse or exited with
// a nonzero status.
type ScriptError struct {
	Script string
	Err    error
}

// Error implements the error interface.
func (e *ScriptError) Error() string {
	return fmt.Sprintf("pre-build script %s failed: %v", e.Script, e.Err)
}

// Unwrap returns the underlying interpreter error.
func (e *ScriptError) Unwrap() error {
	return e.Err
}

// Run executes the given scripts in order, stopping at the first failure.
// Script paths are relative to baseDir; manifestPath is passed to each
// script as its single positional argument. Standard output and error are
// inherited so scripts can report progress.
func Run(ctx context.Context, baseDir string, scriptPaths []string, manifestPath string) error {
	for _, rel := range scriptPaths {
		if err := runOne(ctx, baseDir, rel, manifestPath); err != nil {
			return err
		}
	}
	return nil
}

func runOne(ctx context.Context, baseDir, rel, manifestPath string) error {
	abs := filepath.Join(baseDir, filepath.FromSlash(rel))

	src, err := os.Open(abs)
	if err != nil {
		return &ScriptError{Script: rel, Err: err}
	}
	defer src.Close()

	prog, err := syntax.NewParser().Parse(src, rel)
	if err != nil {
		return &ScriptError{Script: rel, Err: fmt.Errorf("script syntax error: %w", err)}
	}

	runner, err := interp.New(
		interp.Dir(baseDir),
		interp.Env(expand.ListEnviron(os.Environ()...)),
		interp.StdIO(os.Stdin, os.Stdout, os.Stderr),
		// "--" ends option parsing; without it a manifest path starting with
		// a dash would be read as a shell option by interp.Params.
		interp.Params("--", manifestPath),
	)
	if err != nil {
		return &ScriptError{Script: rel, Err: fmt.Errorf("failed to create interpreter: %w", err)}
	}

	log.Debug("running pre-build script", "script", rel)
	if err := runner.Run(ctx, prog); err != nil {
		return &ScriptError{Script: rel, Err: err}
	}
	return nil
}
