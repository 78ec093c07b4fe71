// Package dataset provides the input side of a scan: the addressable range
// of patch centres and the extraction of an input sample at one of them.
package dataset

import (
	"errors"
	"fmt"
	"math"

	"volscan/internal/models"
	"volscan/pkg/geometry"
	"volscan/pkg/volume"
)

var (
	// ErrOutOfRange is returned when a patch does not fit inside its volume
	ErrOutOfRange = errors.New("location out of range")

	// ErrUnknownKey is returned when adding a volume with no patch shape
	ErrUnknownKey = errors.New("unknown input key")
)

// Dataset is the accessor the scanner pulls input samples from
type Dataset interface {
	// Range returns the box of valid patch centres. Max is exclusive.
	Range() geometry.Box

	// Sample extracts the input sample centred at loc
	Sample(loc geometry.Vec3d) (models.Sample, error)
}

// VolumeDataset serves patches from in-memory volumes. Every input key has
// its own patch shape, declared up front.
type VolumeDataset struct {
	spec    models.ScanSpec
	volumes map[string]*volume.Array
}

// NewVolumeDataset creates an empty dataset for the given input patch shapes
func NewVolumeDataset(spec models.ScanSpec) (*VolumeDataset, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &VolumeDataset{
		spec:    spec,
		volumes: make(map[string]*volume.Array),
	}, nil
}

// AddVolume registers the volume backing an input key
func (d *VolumeDataset) AddVolume(key string, arr *volume.Array) error {
	shape, ok := d.spec[key]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	if arr.Channels != shape.Channels() {
		return fmt.Errorf("input %q: volume has %d channels, patch expects %d",
			key, arr.Channels, shape.Channels())
	}
	d.volumes[key] = arr
	return nil
}

// Range returns the intersection of the valid centre range of every
// registered volume. A centred patch at c spans [c-half, c-half+size), so
// valid centres run from min+half up to max-size+half inclusive.
func (d *VolumeDataset) Range() geometry.Box {
	var rng geometry.Box
	first := true
	for _, key := range d.spec.Keys() {
		arr, ok := d.volumes[key]
		if !ok {
			continue
		}
		size := d.spec[key].Spatial()
		bounds := arr.Bounds()

		var half geometry.Vec3d
		for dim := range half {
			half[dim] = math.Floor(size[dim] / 2)
		}
		min := bounds.Min().Add(half)
		max := bounds.Max().Sub(size).Add(half)
		for dim := range max {
			max[dim]++
		}

		box := geometry.NewBox(min, max)
		if first {
			rng = box
			first = false
		} else {
			rng = rng.Intersect(box)
		}
	}
	return rng
}

// Sample crops every registered volume around loc
func (d *VolumeDataset) Sample(loc geometry.Vec3d) (models.Sample, error) {
	if len(d.volumes) == 0 {
		return nil, fmt.Errorf("%w: no volumes registered", ErrOutOfRange)
	}
	sample := make(models.Sample, len(d.volumes))
	for key, arr := range d.volumes {
		box := geometry.CenteredBox(loc, d.spec[key].Spatial())
		patch, err := arr.Patch(box)
		if err != nil {
			return nil, fmt.Errorf("%w: input %q at %v: %v", ErrOutOfRange, key, loc, err)
		}
		sample[key] = patch
	}
	return sample, nil
}
