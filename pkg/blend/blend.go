// Package blend accumulates per-location predictions into output volumes.
//
// An Accumulator owns one destination buffer per output head. Scans without
// overlap write patches directly; overlapping scans combine contributions
// with a weighting strategy selected by name.
package blend

import (
	"errors"
	"fmt"

	"volscan/internal/models"
	"volscan/pkg/geometry"
	"volscan/pkg/volume"
)

var (
	// ErrUnknownMode is returned for an unrecognised blend mode name
	ErrUnknownMode = errors.New("unknown blend mode")

	// ErrPatchMismatch is returned when a pushed sample does not match the
	// scan spec at the pushed location
	ErrPatchMismatch = errors.New("patch does not match scan spec")

	// ErrNoLocations is returned when preparing outputs for an empty scan
	ErrNoLocations = errors.New("no scan locations")
)

// Mode names a blending strategy
type Mode string

const (
	// ModeOverwrite writes each patch over whatever is already there
	ModeOverwrite Mode = "overwrite"

	// ModeAverage takes the unweighted mean of overlapping patches
	ModeAverage Mode = "average"

	// ModeBump weights each patch by a bump function that falls to zero at
	// the patch border
	ModeBump Mode = "bump"
)

// Accumulator merges predictions into output buffers
type Accumulator interface {
	// Push merges sample, produced for the patch centred at loc
	Push(loc geometry.Vec3d, sample models.Sample) error

	// Voxels returns the merged output per head in absolute coordinates.
	// It may be called at any point during a scan.
	Voxels() models.Sample
}

// Options controls how outputs are prepared
type Options struct {
	// Overlap is true when neighbouring patches overlap and need blending
	Overlap bool

	// Mode selects the blending strategy for overlapping scans. Empty
	// selects ModeBump.
	Mode string

	// Stride is the resolved scan stride
	Stride geometry.Vec3d
}

// ParseMode resolves a mode name. Without overlap every mode collapses to
// ModeOverwrite since patches are disjoint writes.
func ParseMode(name string, overlap bool) (Mode, error) {
	mode := Mode(name)
	switch mode {
	case "":
		mode = ModeBump
	case ModeOverwrite, ModeAverage, ModeBump:
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, name)
	}
	if !overlap {
		return ModeOverwrite, nil
	}
	return mode, nil
}

// Prepare allocates buffers covering every patch of every location and
// returns the accumulator for the selected mode
func Prepare(spec models.ScanSpec, locs []geometry.Vec3d, opts Options) (Accumulator, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if len(locs) == 0 {
		return nil, ErrNoLocations
	}
	for d := range opts.Stride {
		if opts.Stride[d] < 1 {
			return nil, fmt.Errorf("invalid stride %v", opts.Stride)
		}
	}
	mode, err := ParseMode(opts.Mode, opts.Overlap)
	if err != nil {
		return nil, err
	}

	buffers := make(models.Sample, len(spec))
	for key, shape := range spec {
		buffers[key] = volume.FromBox(shape.Channels(), span(locs, shape.Spatial()))
	}

	if mode == ModeOverwrite {
		return &overwriter{spec: spec, buffers: buffers}, nil
	}
	return newWeighted(spec, buffers, kernels(spec, mode)), nil
}

// span returns the union of the patch boxes centred at every location
func span(locs []geometry.Vec3d, size geometry.Vec3d) geometry.Box {
	box := geometry.CenteredBox(locs[0], size)
	for _, loc := range locs[1:] {
		box = box.Union(geometry.CenteredBox(loc, size))
	}
	return box
}

// checkPatch verifies that a head's patch sits where the scan expects it
func checkPatch(key string, shape models.PatchShape, loc geometry.Vec3d, patch *volume.Array) error {
	if patch == nil {
		return fmt.Errorf("%w: missing head %q", ErrPatchMismatch, key)
	}
	if patch.Channels != shape.Channels() {
		return fmt.Errorf("%w: head %q has %d channels, expected %d",
			ErrPatchMismatch, key, patch.Channels, shape.Channels())
	}
	want := geometry.CenteredBox(loc, shape.Spatial())
	got := patch.Bounds()
	if got.Min() != want.Min() || got.Max() != want.Max() {
		return fmt.Errorf("%w: head %q covers %v, expected %v", ErrPatchMismatch, key, got, want)
	}
	return nil
}
