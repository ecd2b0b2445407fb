// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for wheelwright.
//
// This package implements the Cobra command hierarchy for the wheelwright CLI:
// the root command plus subcommands for building, validating, describing, and
// scaffolding package manifests.
package cmd
