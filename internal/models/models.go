package models

import (
	"errors"
	"fmt"
	"sort"

	"volscan/pkg/geometry"
	"volscan/pkg/volume"
)

// ErrInvalidSpec is returned for an empty scan spec or a malformed patch shape
var ErrInvalidSpec = errors.New("invalid scan spec")

// PatchShape describes the patch one output head (or input) requires.
// The trailing three entries are the spatial (z, y, x) size; the entry
// before them, if present, is the channel count.
type PatchShape []int

// Spatial returns the trailing (z, y, x) size
func (p PatchShape) Spatial() geometry.Vec3d {
	n := len(p)
	return geometry.NewVec3d(float64(p[n-3]), float64(p[n-2]), float64(p[n-1]))
}

// Channels returns the channel count, defaulting to 1
func (p PatchShape) Channels() int {
	if len(p) < 4 {
		return 1
	}
	return p[len(p)-4]
}

// Validate checks that the shape has positive spatial and channel sizes
func (p PatchShape) Validate() error {
	if len(p) < 3 {
		return fmt.Errorf("%w: shape %v has fewer than 3 dimensions", ErrInvalidSpec, []int(p))
	}
	for _, s := range p[len(p)-3:] {
		if s <= 0 {
			return fmt.Errorf("%w: shape %v has a non-positive spatial size", ErrInvalidSpec, []int(p))
		}
	}
	if p.Channels() <= 0 {
		return fmt.Errorf("%w: shape %v has a non-positive channel count", ErrInvalidSpec, []int(p))
	}
	return nil
}

// ScanSpec maps each output head to the patch shape it produces
type ScanSpec map[string]PatchShape

// Validate checks that the scan spec has at least one head and that every
// shape is well formed
func (s ScanSpec) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("%w: no output heads", ErrInvalidSpec)
	}
	for _, key := range s.Keys() {
		if err := s[key].Validate(); err != nil {
			return fmt.Errorf("head %q: %w", key, err)
		}
	}
	return nil
}

// Keys returns the head names in sorted order
func (s ScanSpec) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Sample holds one patch per head, each positioned in absolute volume
// coordinates
type Sample map[string]*volume.Array
