// SPDX-License-Identifier: MPL-2.0

// Package fileset selects files from a source tree by applying include and
// exclude path patterns.
//
// Selection semantics:
//   - a file is a candidate when at least one include pattern matches it;
//     literal patterns naming a directory pull in the directory's full subtree
//   - a candidate is dropped when any exclude pattern matches it, regardless
//     of which include matched it or of declaration order; exclusion always
//     wins
//   - two implicit exclude rule sets are merged at selector construction and
//     cannot be overridden: compiled-bytecode artifacts with their cache
//     directories, and version-control metadata directories
//
// The selector only reads the tree; it never follows the contents of files.
package fileset

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"wheelwright/pkg/pathspec"
)

// implicitExcludes are glob patterns applied after all user excludes. They are
// compiled once at package init; the pattern strings are constants and cannot
// fail validation.
var implicitExcludes = mustCompile(
	"**/__pycache__/**",
	"**/*.pyc",
	"**/.git/**",
	"**/.hg/**",
	"**/.svn/**",
)

// prunedDirNames are directory basenames whose subtrees can never contribute a
// selected file. The walk skips them wholesale instead of matching every
// nested path against the implicit excludes.
var prunedDirNames = map[string]bool{
	"__pycache__": true,
	".git":        true,
	".hg":         true,
	".svn":        true,
}

func mustCompile(patterns ...string) []pathspec.Pattern {
	compiled, err := pathspec.CompileAll("implicit exclude", patterns)
	if err != nil {
		panic(err)
	}
	return compiled
}

// Selector selects files under a single base directory. It is stateless apart
// from the base directory and safe to reuse for multiple Select calls.
type Selector struct {
	baseDir string
}

// NewSelector creates a Selector rooted at baseDir. The base directory is
// treated as read-only.
func NewSelector(baseDir string) (*Selector, error) {
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base directory: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to stat base directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("base directory %s is not a directory", abs)
	}
	return &Selector{baseDir: abs}, nil
}

// BaseDir returns the absolute base directory the selector walks.
func (s *Selector) BaseDir() string {
	return s.baseDir
}

// Select walks the base directory and returns the sorted, slash-separated
// relative paths of every regular file matched by at least one include or
// extra-include pattern and no exclude, extra-exclude, or implicit exclude
// pattern. An empty result is not an error here; callers that require a
// non-empty selection check for it at a higher level.
func (s *Selector) Select(includes, excludes, extraIncludes, extraExcludes []pathspec.Pattern) ([]string, error) {
	allIncludes := make([]pathspec.Pattern, 0, len(includes)+len(extraIncludes))
	allIncludes = append(allIncludes, includes...)
	allIncludes = append(allIncludes, extraIncludes...)

	allExcludes := make([]pathspec.Pattern, 0, len(excludes)+len(extraExcludes)+len(implicitExcludes))
	allExcludes = append(allExcludes, excludes...)
	allExcludes = append(allExcludes, extraExcludes...)
	allExcludes = append(allExcludes, implicitExcludes...)

	var selected []string
	err := filepath.WalkDir(s.baseDir, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if p == s.baseDir {
			return nil
		}

		rel, relErr := filepath.Rel(s.baseDir, p)
		if relErr != nil {
			return fmt.Errorf("failed to get relative path for %s: %w", p, relErr)
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if prunedDirNames[d.Name()] {
				return filepath.SkipDir
			}
			// Skip subtrees no include pattern can reach.
			reachable := false
			for _, inc := range allIncludes {
				if inc.MatchesPrefix(rel) {
					reachable = true
					break
				}
			}
			if !reachable {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		if !pathspec.MatchAny(allIncludes, rel) {
			return nil
		}
		if pathspec.MatchAny(allExcludes, rel) {
			return nil
		}
		selected = append(selected, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", s.baseDir, err)
	}

	sort.Strings(selected)
	return selected, nil
}
