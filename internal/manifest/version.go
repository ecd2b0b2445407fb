// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"regexp"
	"strings"
)

// canonicalVersion matches a normalized PEP 440 public version: a release
// segment, then optional pre-release, post-release, and dev segments. Local
// version labels (+something) are accepted unchanged after the public part.
var canonicalVersion = regexp.MustCompile(
	`^[0-9]+(\.[0-9]+)*((a|b|rc)[0-9]+)?(\.post[0-9]+)?(\.dev[0-9]+)?(\+[a-z0-9]+(\.[a-z0-9]+)*)?$`)

// preRelease matches a dotted or spelled-out pre-release marker so that
// "1.0.alpha1" and "1.0-beta2" canonicalize to "1.0a1" and "1.0b2".
var preRelease = regexp.MustCompile(`\.?(alpha|beta|preview|pre|a|b|rc)\.?([0-9]+)`)

var preReleaseCanonical = map[string]string{
	"alpha":   "a",
	"beta":    "b",
	"preview": "rc",
	"pre":     "rc",
	"a":       "a",
	"b":       "b",
	"rc":      "rc",
}

// NormalizeVersion canonicalizes a version string: trims whitespace,
// lowercases, drops a leading "v", rewrites separator variants, and spells
// pre-release markers in their canonical short form. A version that still
// does not parse afterwards is a ConfigError; archives are never built for a
// project without a usable version.
func NormalizeVersion(version string) (string, error) {
	if strings.TrimSpace(version) == "" {
		return "", configErrorf("cannot package a project without a version")
	}

	v := strings.ToLower(strings.TrimSpace(version))
	v = strings.TrimPrefix(v, "v")
	// Underscores and dashes are alternate spellings of the dot separator.
	v = strings.ReplaceAll(v, "_", ".")
	v = strings.ReplaceAll(v, "-", ".")

	if !canonicalVersion.MatchString(v) {
		relaxed := preRelease.ReplaceAllStringFunc(v, func(seg string) string {
			parts := preRelease.FindStringSubmatch(seg)
			return preReleaseCanonical[parts[1]] + parts[2]
		})
		if !canonicalVersion.MatchString(relaxed) {
			return "", configErrorf("version %q is not a valid version string", version)
		}
		v = relaxed
	}
	return v, nil
}
