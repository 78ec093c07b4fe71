package geometry

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Box is an axis-aligned region with an inclusive minimum corner and an
// exclusive maximum corner
type Box struct {
	b r3.Box
}

// NewBox creates a box from its corners
func NewBox(min, max Vec3d) Box {
	return Box{b: r3.Box{Min: min.toR3(), Max: max.toR3()}}
}

// CenteredBox creates a box of the given size around center.
// The minimum corner sits at center - floor(size/2), so even sizes extend
// one voxel further towards the minimum side.
func CenteredBox(center, size Vec3d) Box {
	var half Vec3d
	for d := range size {
		half[d] = math.Floor(size[d] / 2)
	}
	min := center.Sub(half)
	return NewBox(min, min.Add(size))
}

// Min returns the inclusive minimum corner
func (b Box) Min() Vec3d {
	return fromR3(b.b.Min)
}

// Max returns the exclusive maximum corner
func (b Box) Max() Vec3d {
	return fromR3(b.b.Max)
}

// Size returns the extent of the box, clamped at zero for empty boxes
func (b Box) Size() Vec3d {
	size := fromR3(b.b.Size())
	for d := range size {
		size[d] = math.Max(0, size[d])
	}
	return size
}

// Center returns the midpoint of the box
func (b Box) Center() Vec3d {
	return fromR3(b.b.Center())
}

// Empty reports whether the box encloses no volume
func (b Box) Empty() bool {
	return b.b.Empty()
}

// Contains reports whether p lies inside the box
func (b Box) Contains(p Vec3d) bool {
	min, max := b.Min(), b.Max()
	for d := range p {
		if p[d] < min[d] || p[d] >= max[d] {
			return false
		}
	}
	return true
}

// ContainsBox reports whether o lies entirely inside the box
func (b Box) ContainsBox(o Box) bool {
	min, max := b.Min(), b.Max()
	omin, omax := o.Min(), o.Max()
	for d := range min {
		if omin[d] < min[d] || omax[d] > max[d] {
			return false
		}
	}
	return true
}

// Intersect returns the overlap of two boxes. The result may be empty.
func (b Box) Intersect(o Box) Box {
	min, max := b.Min(), b.Max()
	omin, omax := o.Min(), o.Max()
	for d := range min {
		min[d] = math.Max(min[d], omin[d])
		max[d] = math.Min(max[d], omax[d])
	}
	return NewBox(min, max)
}

// Union returns the smallest box enclosing both boxes. An empty operand
// contributes nothing.
func (b Box) Union(o Box) Box {
	return Box{b: b.b.Union(o.b)}
}

// Translate shifts the box by v
func (b Box) Translate(v Vec3d) Box {
	return Box{b: b.b.Add(v.toR3())}
}

func (b Box) String() string {
	return fmt.Sprintf("[%v, %v)", b.Min(), b.Max())
}
