package inference

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"volscan/internal/models"
	"volscan/pkg/scan"
	"volscan/pkg/volume"
)

// HeadMetrics summarises one output head
type HeadMetrics struct {
	// Mean and StdDev are taken over every voxel of every channel
	Mean   float64
	StdDev float64
	Min    float64
	Max    float64

	// Coverage is the fraction of the output buffer reached by at least
	// one patch of the scan
	Coverage float64
}

// Metrics summarises a completed scan
type Metrics struct {
	Locations int
	Heads     map[string]HeadMetrics
}

// CalculateMetrics computes per-head statistics for the outputs of plan
func CalculateMetrics(plan *scan.Plan, voxels models.Sample) Metrics {
	m := Metrics{
		Locations: plan.Len(),
		Heads:     make(map[string]HeadMetrics, len(voxels)),
	}
	spec := plan.Spec()
	for key, vol := range voxels {
		var h HeadMetrics
		if len(vol.Data) > 0 {
			h.Mean, h.StdDev = stat.MeanStdDev(vol.Data, nil)
			h.Min = floats.Min(vol.Data)
			h.Max = floats.Max(vol.Data)
		}
		if shape, ok := spec[key]; ok {
			h.Coverage = coverage(plan, shape, vol)
		}
		m.Heads[key] = h
	}
	return m
}

// coverage counts, per dimension, the buffer positions inside some patch.
// Locations form a full grid, so covered voxels are the product of the
// per-dimension counts.
func coverage(plan *scan.Plan, shape models.PatchShape, vol *volume.Array) float64 {
	if vol.Voxels() == 0 {
		return 0
	}
	size := shape.Spatial().Ints()
	frac := 1.0
	for d := 0; d < 3; d++ {
		covered := make([]bool, vol.Shape[d])
		half := size[d] / 2
		for _, c := range plan.Coords(d) {
			start := c - half - vol.Origin[d]
			for i := start; i < start+size[d]; i++ {
				if i >= 0 && i < len(covered) {
					covered[i] = true
				}
			}
		}
		n := 0
		for _, ok := range covered {
			if ok {
				n++
			}
		}
		frac *= float64(n) / float64(len(covered))
	}
	return math.Min(1, frac)
}
