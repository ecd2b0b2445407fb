// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"wheelwright/internal/archive"
	"wheelwright/internal/builder"
	"wheelwright/internal/distmeta"
	"wheelwright/internal/issue"
	"wheelwright/internal/manifest"
	"wheelwright/internal/scripts"

	"github.com/spf13/cobra"
)

var (
	buildWheel    bool
	buildSdist    bool
	buildEditable bool
	buildTag      string
	buildOutput   string

	// buildCmd builds the requested distribution archives
	buildCmd = &cobra.Command{
		Use:   "build",
		Short: "Build wheel and sdist archives",
		Long: `Build distribution archives from the project manifest.

Without --wheel or --sdist, both kinds are built. When both are built the
sdist is written first and the wheel is rebuilt from the extracted sdist,
so the two archives always describe the same snapshot of the source tree.

Set SOURCE_DATE_EPOCH to override the canonical timestamp recorded in
archive entries.

Examples:
  wheelwright build
  wheelwright build --wheel --tag py3-none-linux_x86_64
  wheelwright build --sdist --output-dir /tmp/dist
  wheelwright build --wheel --editable`,
		Args: cobra.NoArgs,
		RunE: runBuild,
	}
)

func init() {
	buildCmd.Flags().BoolVar(&buildWheel, "wheel", false, "build the wheel archive")
	buildCmd.Flags().BoolVar(&buildSdist, "sdist", false, "build the sdist archive")
	buildCmd.Flags().BoolVar(&buildEditable, "editable", false, "build an editable wheel pointing at the source tree")
	buildCmd.Flags().StringVar(&buildTag, "tag", "", "wheel compatibility tag (default py3-none-any)")
	buildCmd.Flags().StringVarP(&buildOutput, "output-dir", "o", "", "output directory for archives (default dist)")
}

func runBuild(cmd *cobra.Command, args []string) error {
	if buildEditable && !buildWheel {
		return &ExitError{Code: ExitConfig, Err: errors.New("--editable requires --wheel")}
	}

	outputDir := buildOutput
	if outputDir == "" {
		outputDir = settings.OutputDir
	}

	result, err := builder.New().Build(cmd.Context(), builder.Request{
		ManifestPath: manifestPath,
		OutputDir:    outputDir,
		Tag:          buildTag,
		Editable:     buildEditable,
		Wheel:        buildWheel,
		Sdist:        buildSdist,
	})
	if err != nil {
		err = wrapBuildError(err, manifestPath)
		reportBuildFailure(err)
		return &ExitError{Code: exitCodeFor(err), Err: err}
	}

	fmt.Println(TitleStyle.Render("Build"))
	if result.SdistPath != "" {
		printArtifact(result.SdistPath)
	}
	if result.WheelPath != "" {
		printArtifact(result.WheelPath)
	}
	return nil
}

// printArtifact prints one produced archive with its size.
func printArtifact(path string) {
	line := fmt.Sprintf("%s %s", successIcon, PathStyle.Render(filepath.Base(path)))
	if info, err := os.Stat(path); err == nil {
		line += VerboseStyle.Render(fmt.Sprintf(" (%s)", formatFileSize(info.Size())))
	}
	fmt.Println(line)
}

// reportBuildFailure prints the error followed by the rendered guidance for
// the matching issue, when one applies.
func reportBuildFailure(err error) {
	fmt.Fprintf(os.Stderr, "%s %s\n", errorIcon, formatErrorForDisplay(err, verbose))

	if id, ok := issueFor(err); ok {
		if md, renderErr := issue.Get(id).Render("dark"); renderErr == nil {
			fmt.Fprintln(os.Stderr, md)
		}
	}
}

// issueFor picks the guidance catalog entry for a build error.
func issueFor(err error) (issue.Id, bool) {
	var cfgErr *manifest.ConfigError
	var colErr *archive.CollisionError
	var scriptErr *scripts.ScriptError
	switch {
	case errors.As(err, &scriptErr):
		return issue.ScriptFailedId, true
	case errors.As(err, &colErr):
		return issue.DuplicateEntryId, true
	case errors.Is(err, fs.ErrNotExist):
		return issue.ManifestNotFoundId, true
	case errors.Is(err, builder.ErrEmptySelection):
		return issue.EmptySelectionId, true
	case errors.Is(err, distmeta.ErrMetadataCollision):
		return issue.MetadataCollisionId, true
	case errors.As(err, &cfgErr):
		return issue.ManifestInvalidId, true
	default:
		return 0, false
	}
}

// formatFileSize formats a file size in bytes to a human-readable string
func formatFileSize(size int64) string {
	const (
		KB = 1024
		MB = KB * 1024
	)

	switch {
	case size >= MB:
		return fmt.Sprintf("%.2f MB", float64(size)/float64(MB))
	case size >= KB:
		return fmt.Sprintf("%.2f KB", float64(size)/float64(KB))
	default:
		return fmt.Sprintf("%d bytes", size)
	}
}
