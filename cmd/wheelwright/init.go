// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

var (
	initForce bool

	// initCmd creates a new pyproject.toml
	initCmd = &cobra.Command{
		Use:   "init [name]",
		Short: "Create a starter pyproject.toml in the current directory",
		Long: `Create a starter pyproject.toml with a [tool.wheelwright] table.

The package name defaults to the current directory name. The generated
includes pattern assumes the package sources live in a directory named
after the package.

Examples:
  wheelwright init
  wheelwright init mypackage
  wheelwright init mypackage --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: runInit,
	}
)

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite an existing pyproject.toml")
}

func runInit(cmd *cobra.Command, args []string) error {
	name := ""
	if len(args) > 0 {
		name = args[0]
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get working directory: %w", err)
		}
		name = sanitizePackageName(filepath.Base(wd))
	}

	filename := "pyproject.toml"
	if _, err := os.Stat(filename); err == nil && !initForce {
		return fmt.Errorf("file '%s' already exists. Use --force to overwrite", filename)
	}

	if err := os.WriteFile(filename, []byte(generateManifest(name)), 0o644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	absPath, _ := filepath.Abs(filename)
	fmt.Printf("%s Created %s\n", successIcon, absPath)
	fmt.Println()
	fmt.Println(SubtitleStyle.Render("Next steps:"))
	fmt.Println("  1. Fill in the project metadata")
	fmt.Println("  2. Adjust the includes patterns to match your sources")
	fmt.Println("  3. Run 'wheelwright validate --list' to preview the selection")
	fmt.Println("  4. Run 'wheelwright build' to produce the archives")

	return nil
}

// sanitizePackageName turns an arbitrary directory name into a plausible
// package name: spaces and hyphens become underscores, everything lowercased.
func sanitizePackageName(name string) string {
	name = strings.ToLower(name)
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, name)
	return strings.Trim(name, "_.")
}

func generateManifest(name string) string {
	return fmt.Sprintf(`[project]
name = %q
version = "0.1.0"
description = "TODO: describe the package"
requires-python = ">=3.8"

[tool.wheelwright]
includes = [%q]
metadata_files = ["README*", "LICENSE*"]
`, name, name+"/**/*.py")
}
