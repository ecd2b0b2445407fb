// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

type Id int

const (
	ManifestNotFoundId Id = iota + 1
	ManifestInvalidId
	EmptySelectionId
	MetadataCollisionId
	DuplicateEntryId
	ScriptFailedId
	OutputWriteFailedId
)

type MarkdownMsg string

type HttpLink string

type Renderer interface {
	Render(in string, stylePath string) (string, error)
}

type Issue struct {
	id       Id          // ID used to lookup the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink  // must never be empty, because we need to have docs about all issue types
	extLinks []HttpLink  // external links that might be useful for the user
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

func (i *Issue) Render(stylePath string) (string, error) {
	extraMd := ""
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		extraMd += "\n\n"
		extraMd += "## See also: "
		for _, link := range i.docLinks {
			extraMd += "- [" + string(link) + "]"
		}
		for _, link := range i.extLinks {
			extraMd += "- [" + string(link) + "]"
		}
	}
	return render(string(i.mdMsg)+extraMd, stylePath)
}

var (
	render = glamour.Render

	manifestNotFoundIssue = &Issue{
		id: ManifestNotFoundId,
		mdMsg: `
# No pyproject.toml found!

We searched for a pyproject.toml but couldn't find one at the expected location.

## Things you can try:
- Run the build from your project root:
~~~
$ cd /path/to/your/project
$ wheelwright build
~~~

- Or point at the manifest explicitly:
~~~
$ wheelwright build --manifest path/to/pyproject.toml
~~~

- Scaffold a new manifest:
~~~
$ wheelwright init
~~~`,
	}

	manifestInvalidIssue = &Issue{
		id: ManifestInvalidId,
		mdMsg: `
# Failed to read pyproject.toml!

Your manifest contains syntax errors or invalid configuration.

## Common issues:
- Invalid TOML syntax (missing quotes, brackets, etc.)
- Unknown keys under [project] or [tool.wheelwright]
- Missing required fields (name, version, includes)
- Patterns that are absolute, contain "..", or use forbidden characters

## Things you can try:
- Check the error message above for the specific key
- Validate without building:
~~~
$ wheelwright validate
~~~

## Example of a minimal manifest:
~~~toml
[project]
name = "mypackage"
version = "1.0.0"
description = "An example package"

[tool.wheelwright]
includes = ["mypackage/**/*.py"]
~~~`,
	}

	emptySelectionIssue = &Issue{
		id: EmptySelectionId,
		mdMsg: `
# Nothing to package!

The include patterns matched no files, so the archive would be empty.

## Things you can try:
- List what the current patterns resolve to:
~~~
$ wheelwright validate --list
~~~

- Check for typos in the includes list
- Make sure the excludes are not swallowing everything an include matched
- Remember that excluded always wins over included`,
	}

	metadataCollisionIssue = &Issue{
		id: MetadataCollisionId,
		mdMsg: `
# Metadata file name collision!

Metadata files are stored flat inside the .dist-info directory, so two
files with the same base name cannot both be included.

## Common causes:
- A README at the project root and another one in a subdirectory both
  matched by the metadata_files patterns
- A metadata file named like a reserved installer file (RECORD, METADATA,
  WHEEL, INSTALLER, REQUESTED, direct_url.json, entry_points.txt)

## Things you can try:
- Narrow the metadata_files patterns to the project root:
~~~toml
[tool.wheelwright]
metadata_files = ["README.md", "LICENSE"]
~~~

- Rename one of the colliding files`,
	}

	duplicateEntryIssue = &Issue{
		id: DuplicateEntryId,
		mdMsg: `
# Duplicate archive entry!

Two source files mapped to the same path inside the archive.

## Common causes:
- wheel_path_prefixes_to_strip folding two directories onto one path,
  for example src/pkg/a.py and lib/pkg/a.py with both prefixes stripped

## Things you can try:
- Remove one of the colliding prefixes from wheel_path_prefixes_to_strip
- Exclude one of the colliding files`,
	}

	scriptFailedIssue = &Issue{
		id: ScriptFailedId,
		mdMsg: `
# Build script failed!

A script listed in wheel_scripts or sdist_scripts exited with an error,
so the build was aborted before any archive was written.

## Things you can try:
- Run the script by hand from the project root to see the failure
- Check that every tool the script calls is installed and on PATH
- Remove the script from the manifest if it is no longer needed`,
	}

	outputWriteFailedIssue = &Issue{
		id: OutputWriteFailedId,
		mdMsg: `
# Could not write the archive!

The build finished but the archive could not be written to the output
directory.

## Common causes:
- The output directory is not writable
- The disk is full
- Another process holds the destination file open (Windows)

## Things you can try:
- Pick a different output directory:
~~~
$ wheelwright build --output-dir /tmp/dist
~~~

- Check free space and directory permissions`,
	}

	issues = map[Id]*Issue{
		manifestNotFoundIssue.Id():  manifestNotFoundIssue,
		manifestInvalidIssue.Id():   manifestInvalidIssue,
		emptySelectionIssue.Id():    emptySelectionIssue,
		metadataCollisionIssue.Id(): metadataCollisionIssue,
		duplicateEntryIssue.Id():    duplicateEntryIssue,
		scriptFailedIssue.Id():      scriptFailedIssue,
		outputWriteFailedIssue.Id(): outputWriteFailedIssue,
	}
)

func Values() []*Issue {
	return maps.Values(issues)
}

func Get(id Id) *Issue {
	return issues[id]
}
