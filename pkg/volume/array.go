// Package volume provides a dense float64 array addressed by absolute
// volume coordinates rather than buffer-local indices.
package volume

import (
	"errors"
	"fmt"

	"volscan/pkg/geometry"
)

// ErrOutOfBounds is returned when a region does not fit inside an array
var ErrOutOfBounds = errors.New("region out of bounds")

// ErrShapeMismatch is returned when two arrays cannot be combined
var ErrShapeMismatch = errors.New("array shape mismatch")

// Array is a channels x z x y x x array stored in row-major order whose
// first voxel sits at Origin in volume coordinates
type Array struct {
	// Data holds the voxel values, channel outermost and x innermost
	Data []float64

	// Channels is the number of values stored per voxel
	Channels int

	// Origin is the absolute (z, y, x) coordinate of the first voxel
	Origin [3]int

	// Shape is the spatial (z, y, x) extent
	Shape [3]int
}

// New allocates a zero-filled array
func New(channels int, origin, shape [3]int) *Array {
	if channels < 1 {
		channels = 1
	}
	n := channels * shape[0] * shape[1] * shape[2]
	return &Array{
		Data:     make([]float64, n),
		Channels: channels,
		Origin:   origin,
		Shape:    shape,
	}
}

// FromBox allocates a zero-filled array covering box
func FromBox(channels int, box geometry.Box) *Array {
	return New(channels, box.Min().Ints(), box.Size().Ints())
}

// Bounds returns the spatial region covered by the array
func (a *Array) Bounds() geometry.Box {
	min := geometry.FromInts(a.Origin)
	return geometry.NewBox(min, min.Add(geometry.FromInts(a.Shape)))
}

// Voxels returns the number of spatial voxels
func (a *Array) Voxels() int {
	return a.Shape[0] * a.Shape[1] * a.Shape[2]
}

// index converts absolute coordinates into an offset into Data
func (a *Array) index(c, z, y, x int) int {
	z -= a.Origin[0]
	y -= a.Origin[1]
	x -= a.Origin[2]
	return ((c*a.Shape[0]+z)*a.Shape[1]+y)*a.Shape[2] + x
}

func (a *Array) inside(z, y, x int) bool {
	return z >= a.Origin[0] && z < a.Origin[0]+a.Shape[0] &&
		y >= a.Origin[1] && y < a.Origin[1]+a.Shape[1] &&
		x >= a.Origin[2] && x < a.Origin[2]+a.Shape[2]
}

// At returns the value at absolute coordinates. Coordinates outside the
// array read as zero.
func (a *Array) At(c, z, y, x int) float64 {
	if c < 0 || c >= a.Channels || !a.inside(z, y, x) {
		return 0
	}
	return a.Data[a.index(c, z, y, x)]
}

// Set stores a value at absolute coordinates
func (a *Array) Set(c, z, y, x int, v float64) error {
	if c < 0 || c >= a.Channels || !a.inside(z, y, x) {
		return fmt.Errorf("%w: (%d, %d, %d, %d)", ErrOutOfBounds, c, z, y, x)
	}
	a.Data[a.index(c, z, y, x)] = v
	return nil
}

// Clone returns a deep copy
func (a *Array) Clone() *Array {
	out := *a
	out.Data = make([]float64, len(a.Data))
	copy(out.Data, a.Data)
	return &out
}

// Fill sets every value to v
func (a *Array) Fill(v float64) {
	for i := range a.Data {
		a.Data[i] = v
	}
}

// Patch copies out the region described by box, which must lie inside the
// array
func (a *Array) Patch(box geometry.Box) (*Array, error) {
	if box.Empty() || !a.Bounds().ContainsBox(box) {
		return nil, fmt.Errorf("%w: %v not inside %v", ErrOutOfBounds, box, a.Bounds())
	}
	out := FromBox(a.Channels, box)
	out.forEach(box, func(c, z, y, x int) {
		out.Data[out.index(c, z, y, x)] = a.Data[a.index(c, z, y, x)]
	})
	return out, nil
}

// SetPatch overwrites the part of a covered by src. When clip is false
// src must lie entirely inside a; when true only the overlap is written.
func (a *Array) SetPatch(src *Array, clip bool) error {
	region, err := a.overlap(src, clip)
	if err != nil {
		return err
	}
	a.forEach(region, func(c, z, y, x int) {
		a.Data[a.index(c, z, y, x)] = src.Data[src.index(c, z, y, x)]
	})
	return nil
}

// AddPatch accumulates src into a, multiplying each value by the weight
// found at the same patch-local position in weights. A nil weights array
// means a uniform weight of one. When clip is false src must lie inside a;
// when true only the overlap is accumulated.
func (a *Array) AddPatch(src, weights *Array, clip bool) error {
	region, err := a.overlap(src, clip)
	if err != nil {
		return err
	}
	if weights != nil && weights.Shape != src.Shape {
		return fmt.Errorf("%w: weights %v vs patch %v", ErrShapeMismatch, weights.Shape, src.Shape)
	}
	a.forEach(region, func(c, z, y, x int) {
		w := 1.0
		if weights != nil {
			w = weights.Data[weights.localIndex(z-src.Origin[0], y-src.Origin[1], x-src.Origin[2])]
		}
		a.Data[a.index(c, z, y, x)] += w * src.Data[src.index(c, z, y, x)]
	})
	return nil
}

// localIndex addresses channel 0 by buffer-local coordinates
func (a *Array) localIndex(z, y, x int) int {
	return (z*a.Shape[1]+y)*a.Shape[2] + x
}

func (a *Array) overlap(src *Array, clip bool) (geometry.Box, error) {
	if src.Channels != a.Channels {
		return geometry.Box{}, fmt.Errorf("%w: %d channels vs %d", ErrShapeMismatch, src.Channels, a.Channels)
	}
	bounds := a.Bounds()
	if clip {
		return bounds.Intersect(src.Bounds()), nil
	}
	if !bounds.ContainsBox(src.Bounds()) {
		return geometry.Box{}, fmt.Errorf("%w: %v not inside %v", ErrOutOfBounds, src.Bounds(), bounds)
	}
	return src.Bounds(), nil
}

// forEach visits every (channel, z, y, x) inside region in storage order
func (a *Array) forEach(region geometry.Box, fn func(c, z, y, x int)) {
	if region.Empty() {
		return
	}
	min := region.Min().Ints()
	max := region.Max().Ints()
	for c := 0; c < a.Channels; c++ {
		for z := min[0]; z < max[0]; z++ {
			for y := min[1]; y < max[1]; y++ {
				for x := min[2]; x < max[2]; x++ {
					fn(c, z, y, x)
				}
			}
		}
	}
}
