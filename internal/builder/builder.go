// SPDX-License-Identifier: MPL-2.0

// Package builder sequences a distribution build: load the manifest, run
// pre-build scripts, select files, normalize, and write the requested
// archive kinds.
//
// When both kinds are requested the sdist is always built first and the
// wheel is rebuilt from the extracted sdist rather than from the live source
// tree. The two archives are therefore guaranteed to describe the same
// snapshot; a file edited between the two steps cannot make them diverge.
// Editable wheels are the exception: they always build from the live tree,
// since their payload is a pointer to it.
package builder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"golang.org/x/exp/slices"

	"wheelwright/internal/archive"
	"wheelwright/internal/config"
	"wheelwright/internal/distmeta"
	"wheelwright/internal/manifest"
	"wheelwright/internal/scripts"
	"wheelwright/pkg/fileset"
)

// ErrEmptySelection reports that the include patterns matched no files.
var ErrEmptySelection = errors.New("no files matched the include patterns")

// State is the orchestrator's position in the build sequence.
type State int

// Build states, in transition order. Any failure moves the builder to
// StateFailed and aborts the remaining steps.
const (
	StateIdle State = iota
	StateSelecting
	StateNormalizing
	StateWritingSdist
	StateWritingWheel
	StateDone
	StateFailed
)

// String returns the state name for logging.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSelecting:
		return "selecting"
	case StateNormalizing:
		return "normalizing"
	case StateWritingSdist:
		return "writing-sdist"
	case StateWritingWheel:
		return "writing-wheel"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Request names everything one build needs. Zero-value Wheel and Sdist both
// false means both kinds.
type Request struct {
	// ManifestPath locates the pyproject.toml file.
	ManifestPath string
	// OutputDir receives the finished archives.
	OutputDir string
	// Tag is the wheel compatibility tag; empty means the pure default.
	Tag string
	// Editable builds the wheel as an editable install pointing at the live
	// source tree. Only meaningful when the wheel kind is requested.
	Editable bool

	Wheel bool
	Sdist bool
}

// Result carries the absolute paths of the archives produced.
type Result struct {
	WheelPath string
	SdistPath string
}

// Builder runs one build at a time. A single build is strictly sequential:
// the integrity manifest of each archive must describe exactly that
// archive's final entry set, so selection, normalization, and writing never
// overlap. Separate builds are independent processes with no shared state.
type Builder struct {
	state State
	// trace records every transition in order, for debugging failed builds.
	trace []State
}

// New returns an idle Builder.
func New() *Builder {
	return &Builder{state: StateIdle}
}

// State returns the builder's current state.
func (b *Builder) State() State {
	return b.state
}

func (b *Builder) setState(s State) {
	b.state = s
	b.trace = append(b.trace, s)
	log.Debug("build state", "state", s)
}

// Build runs the requested build and returns the archive paths. On failure
// the builder is left in StateFailed and no partially written archive
// remains at a final output path.
func (b *Builder) Build(ctx context.Context, req Request) (*Result, error) {
	result, err := b.build(ctx, req)
	if err != nil {
		b.setState(StateFailed)
		return nil, err
	}
	b.setState(StateDone)
	return result, nil
}

func (b *Builder) build(ctx context.Context, req Request) (*Result, error) {
	if !req.Wheel && !req.Sdist {
		req.Wheel = true
		req.Sdist = true
	}

	outputDir, err := filepath.Abs(req.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve output directory: %w", err)
	}

	m, err := manifest.Load(req.ManifestPath)
	if err != nil {
		return nil, err
	}

	result := &Result{}

	if req.Sdist {
		sdistPath, err := b.buildSdist(ctx, m, outputDir)
		if err != nil {
			return nil, err
		}
		result.SdistPath = sdistPath
	}

	if req.Wheel {
		wheelManifest := m
		if req.Sdist && !req.Editable {
			// Rebuild the wheel from the just-built sdist so both archives
			// come from one snapshot. Editable wheels are exempt: their .pth
			// payload must point at the live source tree, not at a temporary
			// extraction that is removed when the build finishes.
			extractDir, err := os.MkdirTemp("", "wheelwright-rebuild-*")
			if err != nil {
				return nil, fmt.Errorf("failed to create extraction directory: %w", err)
			}
			defer os.RemoveAll(extractDir)

			root, err := archive.ExtractSdist(result.SdistPath, extractDir)
			if err != nil {
				return nil, err
			}
			wheelManifest, err = manifest.Load(filepath.Join(root, "pyproject.toml"))
			if err != nil {
				return nil, fmt.Errorf("failed to reload manifest from extracted sdist: %w", err)
			}
		}

		wheelPath, err := b.buildWheel(ctx, wheelManifest, archive.WheelOptions{
			OutputDir: outputDir,
			Tag:       req.Tag,
			Editable:  req.Editable,
		})
		if err != nil {
			return nil, err
		}
		result.WheelPath = wheelPath
	}

	return result, nil
}

func (b *Builder) buildSdist(ctx context.Context, m *manifest.Manifest, outputDir string) (string, error) {
	if err := scripts.Run(ctx, m.BaseDir, m.Packaging.SdistScripts, m.Path); err != nil {
		return "", err
	}

	b.setState(StateSelecting)
	files, metaFiles, err := selectSdistFiles(m)
	if err != nil {
		return "", err
	}

	b.setState(StateNormalizing)
	n, err := buildNormalizer()
	if err != nil {
		return "", err
	}

	b.setState(StateWritingSdist)
	return archive.WriteSdist(m, mergeSorted(files, metaFiles), n, outputDir)
}

func (b *Builder) buildWheel(ctx context.Context, m *manifest.Manifest, opts archive.WheelOptions) (string, error) {
	if err := scripts.Run(ctx, m.BaseDir, m.Packaging.WheelScripts, m.Path); err != nil {
		return "", err
	}

	b.setState(StateSelecting)
	selector, err := fileset.NewSelector(m.BaseDir)
	if err != nil {
		return "", err
	}

	var files []string
	if !opts.Editable {
		files, err = selector.Select(m.Packaging.IncludePatterns, m.Packaging.ExcludePatterns, nil, nil)
		if err != nil {
			return "", err
		}
		if len(files) == 0 {
			return "", &manifest.ConfigError{Reason: "nothing to package", Cause: ErrEmptySelection}
		}
	}

	metaFiles, err := distmeta.ResolveMetadataFiles(selector, m.Packaging.MetadataFilePatterns)
	if err != nil {
		return "", err
	}

	b.setState(StateNormalizing)
	n, err := buildNormalizer()
	if err != nil {
		return "", err
	}

	b.setState(StateWritingWheel)
	return archive.WriteWheel(m, files, metaFiles, n, opts)
}

// selectSdistFiles computes the sdist selection: the wheel include set plus
// the sdist extras, minus all excludes, together with the resolved metadata
// files at their original relative paths.
func selectSdistFiles(m *manifest.Manifest) (files, metaFiles []string, err error) {
	selector, err := fileset.NewSelector(m.BaseDir)
	if err != nil {
		return nil, nil, err
	}

	files, err = selector.Select(
		m.Packaging.IncludePatterns,
		m.Packaging.ExcludePatterns,
		m.Packaging.SdistExtraIncludePatterns,
		m.Packaging.SdistExtraExcludePatterns,
	)
	if err != nil {
		return nil, nil, err
	}
	if len(files) == 0 {
		return nil, nil, &manifest.ConfigError{Reason: "nothing to package", Cause: ErrEmptySelection}
	}

	metaFiles, err = distmeta.ResolveMetadataFiles(selector, m.Packaging.MetadataFilePatterns)
	if err != nil {
		return nil, nil, err
	}
	return files, metaFiles, nil
}

// buildNormalizer resolves the entry timestamp: the SOURCE_DATE_EPOCH
// override when exported, the canonical epoch otherwise.
func buildNormalizer() (archive.Normalizer, error) {
	epoch, ok, err := config.SourceDateEpoch()
	if err != nil {
		return archive.Normalizer{}, err
	}
	if ok {
		log.Debug("using timestamp override", "epoch", epoch.Unix())
		return archive.NewNormalizer(&epoch), nil
	}
	return archive.NewNormalizer(nil), nil
}

// mergeSorted merges two sorted path lists, dropping duplicates (a metadata
// file may also be matched by an include pattern).
func mergeSorted(a, c []string) []string {
	seen := make(map[string]bool, len(a)+len(c))
	merged := make([]string, 0, len(a)+len(c))
	for _, list := range [][]string{a, c} {
		for _, p := range list {
			if !seen[p] {
				seen[p] = true
				merged = append(merged, p)
			}
		}
	}
	// Both inputs are sorted but the union may interleave.
	slices.Sort(merged)
	return merged
}
