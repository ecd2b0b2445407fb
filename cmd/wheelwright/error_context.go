// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"io/fs"

	"wheelwright/internal/archive"
	"wheelwright/internal/builder"
	"wheelwright/internal/issue"
	"wheelwright/internal/manifest"
	"wheelwright/internal/scripts"
)

// wrapBuildError attaches operation, resource, and remediation context to a
// build failure so the CLI renders an actionable message. The original error
// stays reachable through the chain, so exit-code and issue classification
// see the underlying typed error unchanged.
func wrapBuildError(err error, manifestPath string) error {
	if err == nil {
		return nil
	}

	var scriptErr *scripts.ScriptError
	var colErr *archive.CollisionError
	var cfgErr *manifest.ConfigError

	switch {
	case errors.As(err, &scriptErr):
		return issue.NewErrorContext().
			WithOperation("run pre-build script").
			WithResource(scriptErr.Script).
			WithSuggestion("Run the script by hand from the project root to see the failure").
			Wrap(err).
			BuildError()
	case errors.As(err, &colErr):
		return issue.NewErrorContext().
			WithOperation("assemble archive entries").
			WithResource(colErr.ArchivePath).
			WithSuggestion("Check wheel_path_prefixes_to_strip for prefixes that fold two files onto one path").
			Wrap(err).
			BuildError()
	case errors.Is(err, fs.ErrNotExist):
		return issue.NewErrorContext().
			WithOperation("load manifest").
			WithResource(manifestPath).
			WithSuggestions(
				"Run the build from the project root",
				"Point at the manifest with --manifest path/to/pyproject.toml",
				"Run 'wheelwright init' to scaffold a new manifest",
			).
			Wrap(err).
			BuildError()
	case errors.Is(err, builder.ErrEmptySelection):
		return issue.NewErrorContext().
			WithOperation("select files").
			WithResource(manifestPath).
			WithSuggestion("Run 'wheelwright validate --list' to inspect the resolved selection").
			Wrap(err).
			BuildError()
	case errors.As(err, &cfgErr):
		return issue.NewErrorContext().
			WithOperation("load manifest").
			WithResource(manifestPath).
			WithSuggestion("Run 'wheelwright validate' to check the manifest without building").
			Wrap(err).
			BuildError()
	default:
		return issue.WrapWithOperation(err, "build distribution archives")
	}
}
