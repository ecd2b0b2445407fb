// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"wheelwright/internal/config"
	"wheelwright/internal/distmeta"
	"wheelwright/internal/issue"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"

	// Verbose enables verbose output
	verbose bool
	// manifestPath locates the pyproject.toml to operate on
	manifestPath string

	// settings is the loaded configuration, available after initRootConfig.
	settings *config.Settings

	// rootCmd represents the base command when called without any subcommands
	rootCmd = &cobra.Command{
		Use:   "wheelwright",
		Short: "A deterministic Python package archive builder",
		Long: TitleStyle.Render("wheelwright") + SubtitleStyle.Render(" - A deterministic Python package archive builder") + `

wheelwright builds wheel and sdist archives from a pyproject.toml manifest.
File selection is driven by glob patterns under [tool.wheelwright], and the
resulting archives are byte-for-byte reproducible: same tree in, same bytes
out, regardless of when or where the build runs.

` + SubtitleStyle.Render("Quick Start:") + `
  1. Add a [tool.wheelwright] table with an includes list to pyproject.toml
  2. Run 'wheelwright build' from the project root
  3. Find the archives in the dist/ directory

` + SubtitleStyle.Render("Examples:") + `
  wheelwright build                 Build both wheel and sdist
  wheelwright build --wheel         Build the wheel only
  wheelwright validate --list      Show the resolved file selection
  wheelwright init mypackage        Create a starter pyproject.toml
  wheelwright describe              Show a summary of the project`,
	}
)

func init() {
	cobra.OnInitialize(initRootConfig)

	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&manifestPath, "manifest", "m", "pyproject.toml", "path to the project manifest")

	// Add subcommands
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(describeCmd)
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	// Use fang.Execute for enhanced Cobra styling
	// Pass version via fang.WithVersion() since fang overrides rootCmd.Version
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(ExitFailed)
	}
}

// initRootConfig reads in config file and ENV variables if set.
func initRootConfig() {
	distmeta.GeneratorVersion = Version

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, WarningStyle.Render("Warning: ")+formatErrorForDisplay(err, verbose))
		cfg = &config.Settings{OutputDir: config.DefaultOutputDir}
	}
	settings = cfg

	if verbose {
		log.SetLevel(log.DebugLevel)
	} else if lvl, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	}
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}

// GetVerbose returns the verbose flag value
func GetVerbose() bool {
	return verbose
}
