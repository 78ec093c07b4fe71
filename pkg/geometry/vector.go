// Package geometry provides the 3D vector and bounding box primitives used
// to describe scan locations, strides and patch extents.
//
// All types use (z, y, x) ordering: index 0 is z, 1 is y and 2 is x.
package geometry

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"
)

// Dims is the number of spatial dimensions.
const Dims = 3

// Vec3d is an ordered (z, y, x) triple
type Vec3d [Dims]float64

// NewVec3d creates a vector from its z, y and x components
func NewVec3d(z, y, x float64) Vec3d {
	return Vec3d{z, y, x}
}

// FromSlice builds a vector from exactly three values.
// A nil or empty slice yields the zero vector.
func FromSlice(values []float64) (Vec3d, error) {
	var v Vec3d
	if len(values) == 0 {
		return v, nil
	}
	if len(values) != Dims {
		return v, fmt.Errorf("expected %d components, got %d", Dims, len(values))
	}
	copy(v[:], values)
	return v, nil
}

// FromInts builds a vector from three integer components
func FromInts(values [Dims]int) Vec3d {
	return Vec3d{float64(values[0]), float64(values[1]), float64(values[2])}
}

// Add returns the elementwise sum v + o
func (v Vec3d) Add(o Vec3d) Vec3d {
	for d := range v {
		v[d] += o[d]
	}
	return v
}

// Sub returns the elementwise difference v - o
func (v Vec3d) Sub(o Vec3d) Vec3d {
	for d := range v {
		v[d] -= o[d]
	}
	return v
}

// Get returns the component along dimension d
func (v Vec3d) Get(d int) float64 {
	return v[d]
}

// Set assigns the component along dimension d
func (v *Vec3d) Set(d int, value float64) {
	v[d] = value
}

// Min returns the smallest component
func (v Vec3d) Min() float64 {
	return floats.Min(v[:])
}

// Max returns the largest component
func (v Vec3d) Max() float64 {
	return floats.Max(v[:])
}

// Floor rounds every component down
func (v Vec3d) Floor() Vec3d {
	for d := range v {
		v[d] = math.Floor(v[d])
	}
	return v
}

// Ints truncates every component to an int
func (v Vec3d) Ints() [Dims]int {
	return [Dims]int{int(v[0]), int(v[1]), int(v[2])}
}

// IsZero reports whether all components are zero
func (v Vec3d) IsZero() bool {
	return v == Vec3d{}
}

func (v Vec3d) String() string {
	return fmt.Sprintf("(%g, %g, %g)", v[0], v[1], v[2])
}

// toR3 maps (z, y, x) onto gonum's (X, Y, Z) fields.
func (v Vec3d) toR3() r3.Vec {
	return r3.Vec{X: v[2], Y: v[1], Z: v[0]}
}

func fromR3(p r3.Vec) Vec3d {
	return Vec3d{p.Z, p.Y, p.X}
}
