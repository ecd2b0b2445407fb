// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"path/filepath"

	"wheelwright/internal/distmeta"
	"wheelwright/internal/manifest"
	"wheelwright/pkg/fileset"

	"github.com/spf13/cobra"
)

var (
	// validateList also prints the resolved file selections
	validateList bool

	// validateCmd checks the manifest without writing archives
	validateCmd = &cobra.Command{
		Use:   "validate",
		Short: "Validate the project manifest",
		Long: `Validate the project manifest without building anything.

Checks performed:
  - pyproject.toml parses and matches the manifest schema
  - All patterns compile and all referenced files exist
  - The include patterns match at least one file
  - Metadata files flatten into dist-info without collisions

With --list, the resolved wheel and sdist file selections are printed.

Examples:
  wheelwright validate
  wheelwright validate --list
  wheelwright validate --manifest subdir/pyproject.toml`,
		Args: cobra.NoArgs,
		RunE: runValidate,
	}
)

func init() {
	validateCmd.Flags().BoolVarP(&validateList, "list", "l", false, "print the resolved file selections")
}

func runValidate(cmd *cobra.Command, args []string) error {
	absPath, err := filepath.Abs(manifestPath)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	fmt.Println(TitleStyle.Render("Manifest Validation"))
	fmt.Printf("%s Path: %s\n\n", infoIcon, PathStyle.Render(absPath))

	m, err := manifest.Load(manifestPath)
	if err != nil {
		err = wrapBuildError(err, manifestPath)
		fmt.Printf("%s %s\n", errorIcon, formatErrorForDisplay(err, verbose))
		return &ExitError{Code: exitCodeFor(err), Err: err}
	}
	fmt.Printf("%s Manifest parses and matches the schema\n", successIcon)

	selector, err := fileset.NewSelector(m.BaseDir)
	if err != nil {
		return &ExitError{Code: ExitFailed, Err: err}
	}

	wheelFiles, err := selector.Select(m.Packaging.IncludePatterns, m.Packaging.ExcludePatterns, nil, nil)
	if err != nil {
		return &ExitError{Code: ExitFailed, Err: err}
	}
	if len(wheelFiles) == 0 {
		fmt.Printf("%s The include patterns match no files\n", errorIcon)
		return &ExitError{Code: ExitConfig, Err: fmt.Errorf("nothing to package")}
	}
	fmt.Printf("%s Includes resolve to %d file(s)\n", successIcon, len(wheelFiles))

	sdistFiles, err := selector.Select(
		m.Packaging.IncludePatterns,
		m.Packaging.ExcludePatterns,
		m.Packaging.SdistExtraIncludePatterns,
		m.Packaging.SdistExtraExcludePatterns,
	)
	if err != nil {
		return &ExitError{Code: ExitFailed, Err: err}
	}

	metaFiles, err := distmeta.ResolveMetadataFiles(selector, m.Packaging.MetadataFilePatterns)
	if err != nil {
		fmt.Printf("%s %s\n", errorIcon, formatErrorForDisplay(err, verbose))
		return &ExitError{Code: exitCodeFor(err), Err: err}
	}
	fmt.Printf("%s Metadata files flatten without collisions (%d file(s))\n", successIcon, len(metaFiles))

	if validateList {
		fmt.Println()
		printSelection("Wheel contents", wheelFiles)
		printSelection("Sdist contents", sdistFiles)
		printSelection("Metadata files", metaFiles)
	}

	fmt.Println()
	fmt.Printf("%s Manifest is valid\n", successIcon)
	return nil
}

func printSelection(title string, files []string) {
	fmt.Println(SubtitleStyle.Render(title + ":"))
	if len(files) == 0 {
		fmt.Println(VerboseStyle.Render("  (none)"))
		return
	}
	for _, f := range files {
		fmt.Printf("  %s\n", f)
	}
}
