// SPDX-License-Identifier: MPL-2.0

// Package manifest loads and validates pyproject.toml project manifests.
//
// A manifest carries PEP 621 project metadata under [project] and the
// packaging configuration under [tool.wheelwright]: explicit include/exclude
// patterns, path prefixes to strip inside wheels, editable paths, and
// pre-build scripts. The manifest is immutable once loaded; the build
// pipeline never mutates it.
//
// Loading is three-phase: decode the TOML document, validate the decoded
// value against the embedded CUE schema (closed structs reject unknown keys),
// then resolve the typed fields, compile every path pattern, and read any
// referenced readme/license files.
package manifest

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"wheelwright/internal/cueutil"
	"wheelwright/pkg/pathspec"
)

//go:embed manifest_schema.cue
var manifestSchema []byte

// DefaultMetadataFiles is the pattern set used when the manifest declares no
// metadata_files. These match at the base directory only; metadata files are
// embedded verbatim in both archive kinds.
var DefaultMetadataFiles = []string{
	"README*",
	"LICENSE*",
	"LICENCE*",
	"COPYING*",
}

// ConfigError reports an invalid or unsafe manifest. It is always fatal and
// is raised before any archive is opened for writing.
type ConfigError struct {
	Reason string
	Cause  error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Cause)
	}
	return e.Reason
}

// Unwrap returns the underlying cause, if any.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

func configErrorf(format string, args ...any) *ConfigError {
	return &ConfigError{Reason: fmt.Sprintf(format, args...)}
}

// Readme is the resolved long description of the project.
type Readme struct {
	// Text is the full readme content, embedded in the core metadata body.
	Text string
	// ContentType is the MIME type (text/markdown, text/x-rst, text/plain),
	// empty when unknown.
	ContentType string
}

// License is the [project.license] table. Exactly one of File and Text is
// set when the table is present.
type License struct {
	File string
	Text string
}

// Packaging is the [tool.wheelwright] table. The pattern lists are kept both
// as the raw strings from the manifest (for display and for embedding the
// manifest in the sdist) and compiled for matching.
type Packaging struct {
	Includes           []string
	Excludes           []string
	SdistExtraIncludes []string
	SdistExtraExcludes []string
	MetadataFiles      []string

	WheelPathPrefixesToStrip []string
	EditablePaths            []string
	WheelScripts             []string
	SdistScripts             []string

	// Compiled patterns, one slice per list above, validated at load time.
	IncludePatterns           []pathspec.Pattern
	ExcludePatterns           []pathspec.Pattern
	SdistExtraIncludePatterns []pathspec.Pattern
	SdistExtraExcludePatterns []pathspec.Pattern
	MetadataFilePatterns      []pathspec.Pattern
}

// Manifest is a fully loaded, validated project manifest.
type Manifest struct {
	// Path is the absolute path of the pyproject.toml file.
	Path string
	// BaseDir is the directory containing the manifest; every relative path
	// in the manifest resolves against it.
	BaseDir string

	Name           string
	Version        string
	Summary        string
	Readme         Readme
	License        License
	RequiresPython string

	Author          string
	AuthorEmail     string
	Maintainer      string
	MaintainerEmail string

	Keywords    string
	Classifiers []string
	// ProjectURLs are "Label, url" lines, sorted by label.
	ProjectURLs []string

	// RequiresDist are opaque dependency declarations, never resolved.
	RequiresDist  []string
	ProvidesExtra []string

	// EntryPoints maps group name to name → object reference. Console and
	// GUI scripts from [project.scripts] / [project.gui-scripts] appear
	// under the console_scripts and gui_scripts groups.
	EntryPoints map[string]map[string]string

	// ReferencedFiles are base-relative paths named by the [project] table
	// (readme file, license file); they are verified to exist at load time.
	ReferencedFiles []string

	Packaging Packaging
}

// rawDocument mirrors the subset of pyproject.toml that wheelwright reads.
type rawDocument struct {
	Project *rawProject `toml:"project"`
	Tool    struct {
		Wheelwright *rawPackaging `toml:"wheelwright"`
	} `toml:"tool"`
}

type rawPerson struct {
	Name  string `toml:"name"`
	Email string `toml:"email"`
}

type rawProject struct {
	Name           string            `toml:"name"`
	Version        string            `toml:"version"`
	Description    string            `toml:"description"`
	Readme         any               `toml:"readme"`
	License        map[string]string `toml:"license"`
	RequiresPython string            `toml:"requires-python"`
	Authors        []rawPerson       `toml:"authors"`
	Maintainers    []rawPerson       `toml:"maintainers"`
	Keywords       []string          `toml:"keywords"`
	Classifiers    []string          `toml:"classifiers"`
	URLs           map[string]string `toml:"urls"`

	Scripts     map[string]string            `toml:"scripts"`
	GUIScripts  map[string]string            `toml:"gui-scripts"`
	EntryPoints map[string]map[string]string `toml:"entry-points"`

	Dependencies         []string            `toml:"dependencies"`
	OptionalDependencies map[string][]string `toml:"optional-dependencies"`
	Dynamic              []string            `toml:"dynamic"`
}

type rawPackaging struct {
	Includes           []string `toml:"includes"`
	Excludes           []string `toml:"excludes"`
	SdistExtraIncludes []string `toml:"sdist_extra_includes"`
	SdistExtraExcludes []string `toml:"sdist_extra_excludes"`
	MetadataFiles      []string `toml:"metadata_files"`

	WheelPathPrefixesToStrip []string `toml:"wheel_path_prefixes_to_strip"`
	EditablePaths            []string `toml:"editable_paths"`
	WheelScripts             []string `toml:"wheel_scripts"`
	SdistScripts             []string `toml:"sdist_scripts"`
}

// Load reads, validates, and resolves the manifest at the given path.
func Load(manifestPath string) (*Manifest, error) {
	absPath, err := filepath.Abs(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve manifest path: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	return Parse(data, absPath)
}

// Parse validates and resolves manifest bytes. The path locates the manifest
// on disk: referenced files (readme, license) are read relative to its
// directory, and error messages name it.
func Parse(data []byte, absPath string) (*Manifest, error) {
	filename := filepath.Base(absPath)

	// Phase 1: decode the full document for schema validation.
	var doc map[string]any
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, &ConfigError{Reason: fmt.Sprintf("invalid TOML in %s", filename), Cause: err}
	}
	if _, ok := doc["project"]; !ok {
		return nil, configErrorf("[project] not found in %s", filename)
	}
	tool, _ := doc["tool"].(map[string]any)
	if _, ok := tool["wheelwright"]; !ok {
		return nil, configErrorf("[tool.wheelwright] not found in %s", filename)
	}

	// Phase 2: schema validation. Closed structs catch unknown keys and
	// wrongly typed fields with per-field paths.
	if err := cueutil.Validate(manifestSchema, doc, "#Manifest", filename); err != nil {
		return nil, &ConfigError{Reason: "manifest schema validation failed", Cause: err}
	}

	// Phase 3: typed decode and field resolution.
	var raw rawDocument
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigError{Reason: fmt.Sprintf("invalid TOML in %s", filename), Cause: err}
	}

	m := &Manifest{
		Path:    absPath,
		BaseDir: filepath.Dir(absPath),
	}
	if err := m.resolveProject(raw.Project); err != nil {
		return nil, err
	}
	if err := m.resolvePackaging(raw.Tool.Wheelwright); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manifest) resolveProject(proj *rawProject) error {
	if len(proj.Dynamic) > 0 {
		return configErrorf("dynamic fields are not supported; every [project] field must be static")
	}
	if proj.Name == "" {
		return configErrorf("name must be specified under [project]")
	}
	if proj.Description == "" {
		return configErrorf("description must be specified under [project]")
	}

	m.Name = proj.Name
	version, err := NormalizeVersion(proj.Version)
	if err != nil {
		return err
	}
	m.Version = version
	m.Summary = proj.Description
	m.RequiresPython = proj.RequiresPython

	if err := m.resolveReadme(proj.Readme); err != nil {
		return err
	}
	if err := m.resolveLicense(proj.License); err != nil {
		return err
	}

	m.Author, m.AuthorEmail = collapsePeople(proj.Authors)
	m.Maintainer, m.MaintainerEmail = collapsePeople(proj.Maintainers)

	m.Keywords = strings.Join(proj.Keywords, ",")
	m.Classifiers = proj.Classifiers

	for _, label := range sortedKeys(proj.URLs) {
		m.ProjectURLs = append(m.ProjectURLs, fmt.Sprintf("%s, %s", label, proj.URLs[label]))
	}

	if err := m.resolveEntryPoints(proj); err != nil {
		return err
	}

	m.RequiresDist = append(m.RequiresDist, proj.Dependencies...)
	for _, extra := range sortedKeys(proj.OptionalDependencies) {
		m.ProvidesExtra = append(m.ProvidesExtra, extra)
		for _, req := range proj.OptionalDependencies[extra] {
			if name, marker, ok := strings.Cut(req, ";"); ok {
				m.RequiresDist = append(m.RequiresDist,
					fmt.Sprintf("%s ; extra == %q and (%s)", strings.TrimSpace(name), extra, strings.TrimSpace(marker)))
			} else {
				m.RequiresDist = append(m.RequiresDist, fmt.Sprintf("%s ; extra == %q", req, extra))
			}
		}
	}
	return nil
}

// readmeContentTypes maps readme file extensions to description content types.
var readmeContentTypes = map[string]string{
	".rst": "text/x-rst",
	".md":  "text/markdown",
	".txt": "text/plain",
}

func (m *Manifest) resolveReadme(readme any) error {
	switch v := readme.(type) {
	case nil:
		return nil
	case string:
		text, err := m.readReferencedFile(v, "readme")
		if err != nil {
			return err
		}
		m.Readme = Readme{
			Text:        text,
			ContentType: readmeContentTypes[strings.ToLower(filepath.Ext(v))],
		}
		return nil
	case map[string]any:
		file, _ := v["file"].(string)
		text, _ := v["text"].(string)
		contentType, _ := v["content-type"].(string)
		if file != "" && text != "" {
			return configErrorf("[project.readme] should specify file or text, not both")
		}
		if file == "" && text == "" {
			return configErrorf("file or text field required in [project.readme] table")
		}
		if contentType == "" {
			return configErrorf("content-type field required in [project.readme] table")
		}
		base := strings.TrimSpace(strings.Split(contentType, ";")[0])
		if !knownContentType(base) {
			return configErrorf("unrecognised readme content-type: %q", base)
		}
		if file != "" {
			content, err := m.readReferencedFile(file, "readme")
			if err != nil {
				return err
			}
			text = content
		}
		m.Readme = Readme{Text: text, ContentType: contentType}
		return nil
	default:
		return configErrorf("[project.readme] should be a string or a table")
	}
}

func knownContentType(base string) bool {
	for _, ct := range readmeContentTypes {
		if ct == base {
			return true
		}
	}
	return false
}

func (m *Manifest) resolveLicense(license map[string]string) error {
	if license == nil {
		return nil
	}
	file, hasFile := license["file"]
	text, hasText := license["text"]
	if hasFile && hasText {
		return configErrorf("[project.license] should specify file or text, not both")
	}
	switch {
	case hasFile:
		abs := filepath.Join(m.BaseDir, filepath.FromSlash(file))
		if _, err := os.Stat(abs); err != nil {
			return &ConfigError{Reason: fmt.Sprintf("license file %s does not exist", file), Cause: err}
		}
		m.ReferencedFiles = append(m.ReferencedFiles, file)
		m.License = License{File: file}
	case hasText:
		m.License = License{Text: text}
	default:
		return configErrorf("file or text field required in [project.license] table")
	}
	return nil
}

func (m *Manifest) resolveEntryPoints(proj *rawProject) error {
	for group := range proj.EntryPoints {
		if group == "console_scripts" || group == "gui_scripts" {
			return configErrorf("scripts should be specified in [project.scripts] or [project.gui-scripts], not under [project.entry-points]")
		}
	}
	eps := make(map[string]map[string]string)
	for group, entries := range proj.EntryPoints {
		eps[group] = entries
	}
	if len(proj.Scripts) > 0 {
		for _, ref := range proj.Scripts {
			if err := checkEntryPoint(ref); err != nil {
				return err
			}
		}
		eps["console_scripts"] = proj.Scripts
	}
	if len(proj.GUIScripts) > 0 {
		for _, ref := range proj.GUIScripts {
			if err := checkEntryPoint(ref); err != nil {
				return err
			}
		}
		eps["gui_scripts"] = proj.GUIScripts
	}
	if len(eps) > 0 {
		m.EntryPoints = eps
	}
	return nil
}

// checkEntryPoint validates a "package.module:func" object reference.
func checkEntryPoint(ref string) error {
	mod, fn, ok := strings.Cut(ref, ":")
	if !ok {
		return configErrorf("invalid entry point (no ':'): %q", ref)
	}
	for _, piece := range strings.Split(mod, ".") {
		if !isIdentifier(piece) {
			return configErrorf("invalid entry point %q: %q is not a module path", ref, piece)
		}
	}
	for _, piece := range strings.Split(fn, ".") {
		if !isIdentifier(piece) {
			return configErrorf("invalid entry point %q: %q is not an identifier", ref, piece)
		}
	}
	return nil
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_',
			r >= 'a' && r <= 'z',
			r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func (m *Manifest) resolvePackaging(pkg *rawPackaging) error {
	if len(pkg.Includes) == 0 {
		return configErrorf("includes should contain at least one file or directory")
	}

	p := Packaging{
		Includes:           pkg.Includes,
		Excludes:           pkg.Excludes,
		SdistExtraIncludes: pkg.SdistExtraIncludes,
		SdistExtraExcludes: pkg.SdistExtraExcludes,
		MetadataFiles:      pkg.MetadataFiles,

		WheelPathPrefixesToStrip: pkg.WheelPathPrefixesToStrip,
		EditablePaths:            pkg.EditablePaths,
		WheelScripts:             pkg.WheelScripts,
		SdistScripts:             pkg.SdistScripts,
	}
	if len(p.MetadataFiles) == 0 {
		p.MetadataFiles = DefaultMetadataFiles
	}

	var err error
	if p.IncludePatterns, err = compilePatterns("includes", p.Includes); err != nil {
		return err
	}
	if p.ExcludePatterns, err = compilePatterns("excludes", p.Excludes); err != nil {
		return err
	}
	if p.SdistExtraIncludePatterns, err = compilePatterns("sdist_extra_includes", p.SdistExtraIncludes); err != nil {
		return err
	}
	if p.SdistExtraExcludePatterns, err = compilePatterns("sdist_extra_excludes", p.SdistExtraExcludes); err != nil {
		return err
	}
	if p.MetadataFilePatterns, err = compilePatterns("metadata_files", p.MetadataFiles); err != nil {
		return err
	}

	// Prefixes, editable paths, and script paths are literal relative paths;
	// run them through the same validation so traversal and forbidden
	// characters are rejected at load time.
	for field, paths := range map[string][]string{
		"wheel_path_prefixes_to_strip": p.WheelPathPrefixesToStrip,
		"editable_paths":               p.EditablePaths,
		"wheel_scripts":                p.WheelScripts,
		"sdist_scripts":                p.SdistScripts,
	} {
		for _, entry := range paths {
			if field == "editable_paths" && entry == "." {
				continue
			}
			cp, cerr := pathspec.Compile(entry)
			if cerr != nil {
				return &ConfigError{Reason: fmt.Sprintf("invalid %s entry", field), Cause: cerr}
			}
			if !cp.IsLiteral() {
				return configErrorf("invalid %s entry %q: wildcards are not allowed here", field, entry)
			}
		}
	}

	m.Packaging = p
	return nil
}

func compilePatterns(label string, patterns []string) ([]pathspec.Pattern, error) {
	compiled, err := pathspec.CompileAll(label, patterns)
	if err != nil {
		return nil, &ConfigError{Reason: "invalid path pattern", Cause: err}
	}
	return compiled, nil
}

func (m *Manifest) readReferencedFile(rel, kind string) (string, error) {
	if filepath.IsAbs(rel) || strings.HasPrefix(filepath.ToSlash(rel), "../") {
		return "", configErrorf("%s path %q must be relative to the project directory", kind, rel)
	}
	abs := filepath.Join(m.BaseDir, filepath.FromSlash(rel))
	data, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return "", configErrorf("%s file %s does not exist", kind, rel)
		}
		return "", fmt.Errorf("failed to read %s file: %w", kind, err)
	}
	m.ReferencedFiles = append(m.ReferencedFiles, rel)
	return string(data), nil
}

// collapsePeople converts a PEP 621 author/maintainer list into the
// comma-joined name and email core metadata fields. A person with both name
// and email contributes a single RFC 5322 style address to the email field.
func collapsePeople(people []rawPerson) (names, emails string) {
	var nameList, emailList []string
	for _, person := range people {
		switch {
		case person.Email != "" && person.Name != "":
			emailList = append(emailList, fmt.Sprintf("%s <%s>", person.Name, person.Email))
		case person.Email != "":
			emailList = append(emailList, person.Email)
		case person.Name != "":
			nameList = append(nameList, person.Name)
		}
	}
	return strings.Join(nameList, ", "), strings.Join(emailList, ", ")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := maps.Keys(m)
	slices.Sort(keys)
	return keys
}
