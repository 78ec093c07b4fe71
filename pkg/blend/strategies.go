package blend

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"volscan/internal/models"
	"volscan/pkg/geometry"
	"volscan/pkg/volume"
)

// overwriter writes each patch straight into its buffer. With clip set,
// patches are cropped to the buffer instead of rejected.
type overwriter struct {
	spec    models.ScanSpec
	buffers models.Sample
	clip    bool
}

// Into returns an accumulator that merges into caller-owned buffers, one
// per head of spec, blending per opts like Prepare. Patches falling partly
// outside a buffer are cropped to it, so the buffers may cover any
// sub-region of the scan. Weighted modes keep their running sums
// internally and keep every buffer voxel reached so far normalised.
func Into(spec models.ScanSpec, buffers models.Sample, opts Options) (Accumulator, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	out := make(models.Sample, len(spec))
	for _, key := range spec.Keys() {
		buf, ok := buffers[key]
		if !ok {
			return nil, fmt.Errorf("%w: no buffer for head %q", ErrPatchMismatch, key)
		}
		if buf.Channels != spec[key].Channels() {
			return nil, fmt.Errorf("%w: buffer for head %q has %d channels, expected %d",
				ErrPatchMismatch, key, buf.Channels, spec[key].Channels())
		}
		out[key] = buf
	}
	mode, err := ParseMode(opts.Mode, opts.Overlap)
	if err != nil {
		return nil, err
	}

	if mode == ModeOverwrite {
		return &overwriter{spec: spec, buffers: out, clip: true}, nil
	}
	sums := make(models.Sample, len(out))
	for key, buf := range out {
		sums[key] = volume.New(buf.Channels, buf.Origin, buf.Shape)
	}
	w := newWeighted(spec, sums, kernels(spec, mode))
	w.clip = true
	w.out = out
	return w, nil
}

func (o *overwriter) Push(loc geometry.Vec3d, sample models.Sample) error {
	keys := o.spec.Keys()
	for _, key := range keys {
		if err := checkPatch(key, o.spec[key], loc, sample[key]); err != nil {
			return err
		}
	}
	for _, key := range keys {
		if err := o.buffers[key].SetPatch(sample[key], o.clip); err != nil {
			return fmt.Errorf("head %q: %w", key, err)
		}
	}
	return nil
}

func (o *overwriter) Voxels() models.Sample {
	return o.buffers
}

// weighted keeps a running weighted sum and total weight per head and
// normalises on read
type weighted struct {
	spec    models.ScanSpec
	sums    models.Sample
	weights models.Sample

	// kernels holds the per-head patch weights; nil means uniform
	kernels map[string]*volume.Array

	// clip crops patches to the buffers. out, when set, receives the
	// normalised values of every region a push touches.
	clip bool
	out  models.Sample
}

// kernels returns the per-head patch weights for mode, nil for uniform
func kernels(spec models.ScanSpec, mode Mode) map[string]*volume.Array {
	if mode != ModeBump {
		return nil
	}
	k := make(map[string]*volume.Array, len(spec))
	for key, shape := range spec {
		k[key] = bumpKernel(shape.Spatial().Ints())
	}
	return k
}

func newWeighted(spec models.ScanSpec, buffers models.Sample, kernels map[string]*volume.Array) *weighted {
	w := &weighted{
		spec:    spec,
		sums:    buffers,
		weights: make(models.Sample, len(buffers)),
		kernels: kernels,
	}
	for key, buf := range buffers {
		w.weights[key] = volume.New(1, buf.Origin, buf.Shape)
	}
	return w
}

func (w *weighted) Push(loc geometry.Vec3d, sample models.Sample) error {
	keys := w.spec.Keys()
	for _, key := range keys {
		if err := checkPatch(key, w.spec[key], loc, sample[key]); err != nil {
			return err
		}
	}
	for _, key := range keys {
		patch := sample[key]
		kernel := w.kernels[key]
		if err := w.sums[key].AddPatch(patch, kernel, w.clip); err != nil {
			return fmt.Errorf("head %q: %w", key, err)
		}

		ones := volume.New(1, patch.Origin, patch.Shape)
		ones.Fill(1)
		if err := w.weights[key].AddPatch(ones, kernel, w.clip); err != nil {
			return fmt.Errorf("head %q: %w", key, err)
		}

		if dst, ok := w.out[key]; ok {
			region := dst.Bounds().Intersect(patch.Bounds())
			if err := normalise(dst, w.sums[key], w.weights[key], region); err != nil {
				return fmt.Errorf("head %q: %w", key, err)
			}
		}
	}
	return nil
}

// normalise writes sum / weight into dst over region. dst and sum share
// bounds; voxels without weight are left alone.
func normalise(dst, sum, weight *volume.Array, region geometry.Box) error {
	if region.Empty() {
		return nil
	}
	min, max := region.Min().Ints(), region.Max().Ints()
	for c := 0; c < dst.Channels; c++ {
		for z := min[0]; z < max[0]; z++ {
			for y := min[1]; y < max[1]; y++ {
				for x := min[2]; x < max[2]; x++ {
					wt := weight.At(0, z, y, x)
					if wt <= 0 {
						continue
					}
					if err := dst.Set(c, z, y, x, sum.At(c, z, y, x)/wt); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}

// Voxels returns normalised copies, or the caller's buffers for an
// accumulator made by Into. Voxels no patch has reached yet are 0.
func (w *weighted) Voxels() models.Sample {
	if w.out != nil {
		return w.out
	}
	out := make(models.Sample, len(w.sums))
	for key, sum := range w.sums {
		norm := sum.Clone()
		weight := w.weights[key].Data
		n := len(weight)
		for c := 0; c < norm.Channels; c++ {
			ch := norm.Data[c*n : (c+1)*n]
			for i, wt := range weight {
				if wt > 0 {
					ch[i] /= wt
				}
			}
		}
		out[key] = norm
	}
	return out
}

// bumpKernel builds a separable bump function over a patch of the given
// size, scaled so that its largest value is 1. Every entry is strictly
// positive so any voxel covered by a patch receives some weight.
func bumpKernel(size [3]int) *volume.Array {
	k := volume.New(1, [3]int{}, size)

	axis := func(n int) []float64 {
		v := make([]float64, n)
		for i := range v {
			t := float64(i+1)/float64(n+1)*2 - 1
			v[i] = -1 / (1 - t*t)
		}
		return v
	}
	bz, by, bx := axis(size[0]), axis(size[1]), axis(size[2])

	i := 0
	for z := range bz {
		for y := range by {
			for x := range bx {
				k.Data[i] = math.Exp(bz[z] + by[y] + bx[x])
				i++
			}
		}
	}
	floats.Scale(1/floats.Max(k.Data), k.Data)
	return k
}
