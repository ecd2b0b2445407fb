// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"

	"wheelwright/internal/archive"
	"wheelwright/internal/manifest"
	"wheelwright/internal/scripts"
)

// Exit codes for the CLI. Configuration problems get their own code so that
// scripted callers can tell a broken manifest from a failed build.
const (
	ExitOK     = 0
	ExitFailed = 1
	ExitConfig = 2
)

// ExitError signals a non-zero exit code without forcing os.Exit in RunE handlers.
type ExitError struct {
	Code int
	Err  error
}

// Error returns the error message for ExitError.
func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

// Unwrap returns the underlying error, if any.
func (e *ExitError) Unwrap() error {
	return e.Err
}

// exitCodeFor maps an error to the CLI exit code. Manifest and selection
// problems are configuration errors; everything else is a build failure.
func exitCodeFor(err error) int {
	if err == nil {
		return ExitOK
	}
	var cfgErr *manifest.ConfigError
	var colErr *archive.CollisionError
	var scriptErr *scripts.ScriptError
	switch {
	case errors.As(err, &cfgErr), errors.As(err, &colErr):
		return ExitConfig
	case errors.As(err, &scriptErr):
		return ExitFailed
	default:
		return ExitFailed
	}
}
