// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"strings"

	"wheelwright/internal/distmeta"
	"wheelwright/internal/manifest"
	"wheelwright/pkg/fileset"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
)

// describeCmd renders a summary of the project manifest
var describeCmd = &cobra.Command{
	Use:   "describe",
	Short: "Show a summary of the project",
	Long: `Render a summary of the project manifest: resolved metadata, the
archive names a build would produce, and the size of the file selection.

Examples:
  wheelwright describe
  wheelwright describe --manifest subdir/pyproject.toml`,
	Args: cobra.NoArgs,
	RunE: runDescribe,
}

func runDescribe(cmd *cobra.Command, args []string) error {
	m, err := manifest.Load(manifestPath)
	if err != nil {
		return &ExitError{Code: exitCodeFor(err), Err: err}
	}

	selector, err := fileset.NewSelector(m.BaseDir)
	if err != nil {
		return &ExitError{Code: ExitFailed, Err: err}
	}
	wheelFiles, err := selector.Select(m.Packaging.IncludePatterns, m.Packaging.ExcludePatterns, nil, nil)
	if err != nil {
		return &ExitError{Code: ExitFailed, Err: err}
	}
	sdistFiles, err := selector.Select(
		m.Packaging.IncludePatterns,
		m.Packaging.ExcludePatterns,
		m.Packaging.SdistExtraIncludePatterns,
		m.Packaging.SdistExtraExcludePatterns,
	)
	if err != nil {
		return &ExitError{Code: ExitFailed, Err: err}
	}

	out, err := glamour.Render(describeMarkdown(m, len(wheelFiles), len(sdistFiles)), "dark")
	if err != nil {
		return fmt.Errorf("failed to render summary: %w", err)
	}
	fmt.Print(out)
	return nil
}

func describeMarkdown(m *manifest.Manifest, wheelCount, sdistCount int) string {
	var md strings.Builder

	fmt.Fprintf(&md, "# %s %s\n\n", m.Name, m.Version)
	if m.Summary != "" {
		fmt.Fprintf(&md, "%s\n\n", m.Summary)
	}

	md.WriteString("## Project\n\n")
	writeDescribeRow(&md, "Requires-Python", m.RequiresPython)
	writeDescribeRow(&md, "Author", m.Author)
	writeDescribeRow(&md, "Author-email", m.AuthorEmail)
	writeDescribeRow(&md, "Maintainer", m.Maintainer)
	writeDescribeRow(&md, "License", m.License.File)
	if len(m.RequiresDist) > 0 {
		fmt.Fprintf(&md, "- **Dependencies**: %d\n", len(m.RequiresDist))
	}
	if len(m.EntryPoints) > 0 {
		fmt.Fprintf(&md, "- **Entry point groups**: %d\n", len(m.EntryPoints))
	}

	md.WriteString("\n## Build\n\n")
	fmt.Fprintf(&md, "- **Wheel**: `%s` (%d files)\n", distmeta.WheelFilename(m.Name, m.Version, distmeta.DefaultWheelTag), wheelCount)
	fmt.Fprintf(&md, "- **Sdist**: `%s` (%d files)\n", distmeta.SdistFilename(m.Name, m.Version), sdistCount)

	return md.String()
}

func writeDescribeRow(md *strings.Builder, label, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(md, "- **%s**: %s\n", label, value)
}
