// SPDX-License-Identifier: MPL-2.0

// Package cueutil validates decoded manifest data against an embedded CUE
// schema. The manifest itself is TOML; CUE is used purely as the structural
// validator, which gives closed-struct unknown-key detection and typed field
// errors without hand-written checks for every table.
package cueutil

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

// Validate unifies a decoded Go value (maps, slices, scalars) with the schema
// definition at schemaPath (e.g. "#Manifest") inside the embedded schema
// source, and validates the result.
//
// The filename is used only for error messages. Validation errors are
// flattened into one error per offending field, each prefixed with the
// JSON-style path of the field.
func Validate(schema []byte, value any, schemaPath, filename string) error {
	ctx := cuecontext.New()

	schemaValue := ctx.CompileBytes(schema)
	if schemaValue.Err() != nil {
		return fmt.Errorf("internal error: failed to compile schema: %w", schemaValue.Err())
	}

	schemaRoot := schemaValue.LookupPath(cue.ParsePath(schemaPath))
	if schemaRoot.Err() != nil {
		return fmt.Errorf("internal error: schema definition %s not found: %w", schemaPath, schemaRoot.Err())
	}

	encoded := ctx.Encode(value)
	if encoded.Err() != nil {
		return FormatError(encoded.Err(), filename)
	}

	unified := schemaRoot.Unify(encoded)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return FormatError(err, filename)
	}
	return nil
}

// FormatError flattens a CUE error into per-field lines prefixed with the
// file name and the JSON-style path of the invalid value, e.g.
//
//	pyproject.toml: tool.wheelwright.includes[0]: conflicting values
func FormatError(err error, filename string) error {
	if err == nil {
		return nil
	}

	cueErrs := cueerrors.Errors(err)
	if len(cueErrs) == 0 {
		return fmt.Errorf("%s: %w", filename, err)
	}

	var lines []string
	for _, e := range cueErrs {
		pathStr := formatPath(cueerrors.Path(e))
		msg := e.Error()
		// CUE sometimes repeats the path inside the message; strip it.
		if pathStr != "" && strings.HasPrefix(msg, pathStr) {
			msg = strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(msg, pathStr), ":"))
		}
		if pathStr != "" {
			lines = append(lines, fmt.Sprintf("%s: %s", pathStr, msg))
		} else {
			lines = append(lines, msg)
		}
	}

	if len(lines) == 1 {
		return fmt.Errorf("%s: %s", filename, lines[0])
	}
	return fmt.Errorf("%s: validation failed:\n  %s", filename, strings.Join(lines, "\n  "))
}

// formatPath converts a CUE error path (["tool", "wheelwright", "includes",
// "0"]) into JSON-path notation ("tool.wheelwright.includes[0]").
func formatPath(path []string) string {
	var b strings.Builder
	for i, part := range path {
		if isIndex(part) && i > 0 {
			b.WriteString("[")
			b.WriteString(part)
			b.WriteString("]")
			continue
		}
		if i > 0 {
			b.WriteString(".")
		}
		b.WriteString(part)
	}
	return b.String()
}

func isIndex(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
