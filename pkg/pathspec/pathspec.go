// SPDX-License-Identifier: MPL-2.0

// Package pathspec provides validated, POSIX-style relative path patterns and
// glob matching for file selection.
//
// A pattern supports three forms:
//   - literal segments ("pkg/util/helpers.py")
//   - single-segment wildcards ("pkg/*.py", "data/img?.png")
//   - the recursive wildcard "**", matching zero or more whole segments
//     ("pkg/**/*.py", "docs/**")
//
// A pattern with no wildcard that names a directory additionally matches every
// path nested under that directory, so "pkg" selects the whole pkg/ subtree.
//
// Pattern validity is checked once, at compile time, not per file:
//   - must be relative (no leading /)
//   - must not contain ".." segments
//   - must use forward slashes only
//   - must not contain control characters or any of < > : " \
//
// Matching itself never fails and is case-sensitive.
package pathspec

import (
	"fmt"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// forbiddenChars are characters that are invalid in portable file names.
// Windows filenames cannot contain them, and their presence in a pattern
// almost always indicates a mistake (e.g. backslash separators).
const forbiddenChars = `<>:"\`

// Pattern is a compiled, validated path pattern. The zero value is not usable;
// construct patterns with Compile or CompileAll.
type Pattern struct {
	// text is the normalized pattern string, forward-slash separated.
	text string
	// literal is true when the pattern contains no wildcard characters, in
	// which case it also matches everything nested under the named path.
	literal bool
}

// Compile validates and normalizes a single pattern.
// A malformed pattern (absolute, escaping, forbidden characters) returns a
// descriptive error; this is the only point where pattern handling can fail.
func Compile(pattern string) (Pattern, error) {
	if pattern == "" {
		return Pattern{}, fmt.Errorf("pattern is empty")
	}

	for _, r := range pattern {
		if r < 0x20 || r == 0x7f {
			return Pattern{}, fmt.Errorf("pattern %q contains control characters", pattern)
		}
		if strings.ContainsRune(forbiddenChars, r) {
			return Pattern{}, fmt.Errorf(`pattern %q contains a forbidden character (one of <>:"\)`, pattern)
		}
	}

	if strings.HasPrefix(pattern, "/") {
		return Pattern{}, fmt.Errorf("pattern %q is an absolute path; patterns must be relative to the base directory", pattern)
	}

	// Reject ".." on the raw pattern: even a segment that path.Clean would
	// cancel out ("pkg/../other") signals a mistake.
	for _, seg := range strings.Split(pattern, "/") {
		if seg == ".." {
			return Pattern{}, fmt.Errorf("pattern %q contains a parent-directory segment and may escape the base directory", pattern)
		}
	}

	// Normalize with pure slash semantics. Clean collapses "a//b" and "a/./b".
	normed := path.Clean(strings.TrimSuffix(pattern, "/"))
	if normed == "." {
		return Pattern{}, fmt.Errorf("pattern %q does not name anything inside the base directory", pattern)
	}

	if !doublestar.ValidatePattern(normed) {
		return Pattern{}, fmt.Errorf("pattern %q has invalid glob syntax", pattern)
	}

	return Pattern{
		text:    normed,
		literal: !strings.ContainsAny(normed, "*?[{"),
	}, nil
}

// CompileAll validates a list of patterns, reporting the first malformed one.
// The label names the configuration field the patterns came from (e.g.
// "includes") so the error message points at the offending manifest entry.
func CompileAll(label string, patterns []string) ([]Pattern, error) {
	compiled := make([]Pattern, 0, len(patterns))
	for _, p := range patterns {
		cp, err := Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s pattern: %w", label, err)
		}
		compiled = append(compiled, cp)
	}
	return compiled, nil
}

// String returns the normalized pattern text.
func (p Pattern) String() string {
	return p.text
}

// IsLiteral reports whether the pattern contains no wildcard characters.
func (p Pattern) IsLiteral() bool {
	return p.literal
}

// Matches reports whether the given slash-separated relative path matches the
// pattern. A literal pattern also matches every path nested under it, so that
// a pattern naming a directory selects the directory's full subtree.
func (p Pattern) Matches(rel string) bool {
	if p.literal {
		return rel == p.text || strings.HasPrefix(rel, p.text+"/")
	}
	// The pattern was validated at compile time; Match cannot fail here.
	ok, _ := doublestar.Match(p.text, rel)
	return ok
}

// MatchesPrefix reports whether the pattern could match paths under the given
// directory. It is used to prune tree walks: when no include pattern can reach
// a directory, the walk may skip its subtree entirely. A conservative true is
// always safe.
func (p Pattern) MatchesPrefix(dir string) bool {
	if p.literal {
		// The directory lies on the pattern's path, or inside the named tree.
		return strings.HasPrefix(p.text, dir+"/") || dir == p.text || strings.HasPrefix(dir, p.text+"/")
	}
	// Wildcard patterns are not worth analysing segment by segment; never
	// prune on their account.
	return true
}

// MatchAny reports whether any pattern in the set matches the path.
func MatchAny(patterns []Pattern, rel string) bool {
	for _, p := range patterns {
		if p.Matches(rel) {
			return true
		}
	}
	return false
}
