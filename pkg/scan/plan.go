// Package scan builds sliding-window scan plans over a volume and drives
// inference over them one location at a time.
package scan

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats/scalar"

	"volscan/internal/models"
	"volscan/pkg/geometry"
)

var (
	// ErrInvalidBounds is returned when the offset scan minimum does not
	// lie below the range maximum in every dimension
	ErrInvalidBounds = errors.New("invalid scan bounds")

	// ErrInvalidStride is returned for a negative stride or one that
	// resolves to less than one voxel
	ErrInvalidStride = errors.New("invalid stride")

	// ErrInconsistentGrid is returned when an explicit grid does not fit
	// inside the scan bounds at the resolved stride
	ErrInconsistentGrid = errors.New("inconsistent grid")
)

// Params are the declarative scan parameters. Zero values select the
// automatic behaviour in each dimension.
type Params struct {
	// Offset shifts the scan minimum away from the range minimum
	Offset geometry.Vec3d

	// Stride per dimension: 0 selects the default stride, a value in
	// (0, 1) is an overlap ratio of the default stride, anything else is
	// an absolute stride
	Stride geometry.Vec3d

	// Grid is the number of coordinates per dimension; 0 spans the whole
	// range and always includes the last coordinate
	Grid geometry.Vec3d

	// Blend names the blending mode used for overlapping scans
	Blend string
}

// Plan is an immutable scan plan
type Plan struct {
	spec          models.ScanSpec
	min           geometry.Vec3d
	max           geometry.Vec3d
	defaultStride geometry.Vec3d
	stride        geometry.Vec3d
	coords        [geometry.Dims][]int
	locs          []geometry.Vec3d
}

// BuildPlan derives the scan plan for spec over the given range of patch
// centres. Stride is resolved before coordinates, and coordinates before
// locations.
func BuildPlan(spec models.ScanSpec, rng geometry.Box, params Params) (*Plan, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	vmin := rng.Min().Add(params.Offset)
	vmax := rng.Max()
	for d := range vmin {
		if vmin[d] >= vmax[d] {
			return nil, fmt.Errorf("%w: min %v, max %v", ErrInvalidBounds, vmin, vmax)
		}
	}

	defaultStride, err := DefaultStride(spec)
	if err != nil {
		return nil, err
	}
	stride, err := ResolveStride(defaultStride, params.Stride)
	if err != nil {
		return nil, err
	}

	p := &Plan{
		spec:          spec,
		min:           vmin,
		max:           vmax,
		defaultStride: defaultStride,
		stride:        stride,
	}
	for d := 0; d < geometry.Dims; d++ {
		coords, err := resolveCoords(vmin[d], vmax[d], int(stride[d]), int(params.Grid[d]))
		if err != nil {
			return nil, fmt.Errorf("dimension %d: %w", d, err)
		}
		p.coords[d] = coords
	}
	p.locs = crossProduct(p.coords)
	return p, nil
}

// DefaultStride returns the size of the intersection of every head's patch
// box centred at the origin: the largest stride at which no head's patches
// overlap.
func DefaultStride(spec models.ScanSpec) (geometry.Vec3d, error) {
	if err := spec.Validate(); err != nil {
		return geometry.Vec3d{}, err
	}
	var box geometry.Box
	for i, key := range spec.Keys() {
		b := geometry.CenteredBox(geometry.Vec3d{}, spec[key].Spatial())
		if i == 0 {
			box = b
		} else {
			box = box.Intersect(b)
		}
	}
	return box.Size(), nil
}

// ResolveStride turns the declared stride into an absolute stride per
// dimension
func ResolveStride(defaultStride, stride geometry.Vec3d) (geometry.Vec3d, error) {
	var out geometry.Vec3d
	for d := range stride {
		s := stride[d]
		switch {
		case s < 0:
			return out, fmt.Errorf("%w: %v in dimension %d", ErrInvalidStride, s, d)
		case s == 0:
			s = defaultStride[d]
		case s < 1:
			s = scalar.Round(s*defaultStride[d], 0)
		}
		s = float64(int(s))
		if s < 1 {
			return out, fmt.Errorf("%w: %v in dimension %d resolves to %v", ErrInvalidStride, stride[d], d, s)
		}
		out[d] = s
	}
	return out, nil
}

// resolveCoords lists the scan coordinates along one dimension
func resolveCoords(vmin, vmax float64, stride, grid int) ([]int, error) {
	cmin := int(math.Floor(vmin))
	cmax := int(math.Floor(vmax))
	if cmin >= cmax {
		return nil, fmt.Errorf("%w: %d >= %d", ErrInvalidBounds, cmin, cmax)
	}
	if grid < 0 {
		return nil, fmt.Errorf("%w: negative grid %d", ErrInconsistentGrid, grid)
	}

	set := make(map[int]struct{})
	if grid == 0 {
		grid = (cmax-cmin-1)/stride + 1
		set[cmax-1] = struct{}{}
	}
	// cmin + (grid-1)*stride < cmax, without the product overflowing
	if grid-1 > (cmax-cmin-1)/stride {
		return nil, fmt.Errorf("%w: %d steps of %d from %d pass %d", ErrInconsistentGrid, grid, stride, cmin, cmax)
	}
	for i := 0; i < grid; i++ {
		set[cmin+i*stride] = struct{}{}
	}

	coords := make([]int, 0, len(set))
	for c := range set {
		coords = append(coords, c)
	}
	sort.Ints(coords)
	return coords, nil
}

// crossProduct combines coordinates with z outermost and x innermost
func crossProduct(coords [geometry.Dims][]int) []geometry.Vec3d {
	locs := make([]geometry.Vec3d, 0, len(coords[0])*len(coords[1])*len(coords[2]))
	for _, z := range coords[0] {
		for _, y := range coords[1] {
			for _, x := range coords[2] {
				locs = append(locs, geometry.FromInts([3]int{z, y, x}))
			}
		}
	}
	return locs
}

// Spec returns the scan spec the plan was built for
func (p *Plan) Spec() models.ScanSpec { return p.spec }

// Bounds returns the scan minimum and the exclusive maximum
func (p *Plan) Bounds() (min, max geometry.Vec3d) { return p.min, p.max }

// DefaultStride returns the non-overlapping stride derived from the scan spec
func (p *Plan) DefaultStride() geometry.Vec3d { return p.defaultStride }

// Stride returns the resolved stride
func (p *Plan) Stride() geometry.Vec3d { return p.stride }

// Coords returns a copy of the scan coordinates along dimension d
func (p *Plan) Coords(d int) []int {
	return append([]int(nil), p.coords[d]...)
}

// Len returns the number of scan locations
func (p *Plan) Len() int { return len(p.locs) }

// Location returns the i-th scan location
func (p *Plan) Location(i int) geometry.Vec3d { return p.locs[i] }

// Locations returns a copy of the ordered location list
func (p *Plan) Locations() []geometry.Vec3d {
	return append([]geometry.Vec3d(nil), p.locs...)
}

// Overlapping reports whether the resolved stride is smaller than the
// default stride in any dimension
func (p *Plan) Overlapping() bool {
	for d := range p.stride {
		if p.stride[d] < p.defaultStride[d] {
			return true
		}
	}
	return false
}
