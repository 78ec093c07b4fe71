package blend

import (
	"errors"
	"math"
	"testing"

	"volscan/internal/models"
	"volscan/pkg/geometry"
	"volscan/pkg/volume"
)

// constPatch returns a patch for shape centred at loc filled with v
func constPatch(shape models.PatchShape, loc geometry.Vec3d, v float64) *volume.Array {
	a := volume.FromBox(shape.Channels(), geometry.CenteredBox(loc, shape.Spatial()))
	a.Fill(v)
	return a
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		name    string
		overlap bool
		want    Mode
		wantErr bool
	}{
		{"", true, ModeBump, false},
		{"average", true, ModeAverage, false},
		{"overwrite", true, ModeOverwrite, false},
		{"bump", false, ModeOverwrite, false},
		{"", false, ModeOverwrite, false},
		{"gaussian", true, "", true},
	}

	for _, tc := range tests {
		got, err := ParseMode(tc.name, tc.overlap)
		if tc.wantErr {
			if !errors.Is(err, ErrUnknownMode) {
				t.Errorf("ParseMode(%q): expected ErrUnknownMode, got %v", tc.name, err)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("ParseMode(%q, %v): expected %q, got %q (err=%v)", tc.name, tc.overlap, tc.want, got, err)
		}
	}
}

// TestPrepareAllocatesSpan checks buffer geometry per head
func TestPrepareAllocatesSpan(t *testing.T) {
	spec := models.ScanSpec{
		"affinity": {3, 2, 4, 4},
		"myelin":   {4, 4, 4},
	}
	locs := []geometry.Vec3d{
		geometry.NewVec3d(2, 2, 2),
		geometry.NewVec3d(2, 2, 6),
		geometry.NewVec3d(4, 6, 6),
	}

	acc, err := Prepare(spec, locs, Options{Stride: geometry.NewVec3d(2, 4, 4)})
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}

	out := acc.Voxels()
	aff := out["affinity"]
	if aff.Channels != 3 {
		t.Errorf("Expected 3 affinity channels, got %d", aff.Channels)
	}
	if aff.Origin != [3]int{1, 0, 0} || aff.Shape != [3]int{4, 8, 8} {
		t.Errorf("Unexpected affinity buffer origin=%v shape=%v", aff.Origin, aff.Shape)
	}
	my := out["myelin"]
	if my.Origin != [3]int{0, 0, 0} || my.Shape != [3]int{6, 8, 8} {
		t.Errorf("Unexpected myelin buffer origin=%v shape=%v", my.Origin, my.Shape)
	}
}

func TestPrepareErrors(t *testing.T) {
	spec := models.ScanSpec{"out": {2, 2, 2}}
	locs := []geometry.Vec3d{{1, 1, 1}}
	stride := geometry.NewVec3d(1, 1, 1)

	if _, err := Prepare(spec, nil, Options{Stride: stride}); !errors.Is(err, ErrNoLocations) {
		t.Errorf("Expected ErrNoLocations, got %v", err)
	}
	if _, err := Prepare(spec, locs, Options{Overlap: true, Mode: "median", Stride: stride}); !errors.Is(err, ErrUnknownMode) {
		t.Errorf("Expected ErrUnknownMode, got %v", err)
	}
	if _, err := Prepare(spec, locs, Options{}); err == nil {
		t.Error("Expected error for zero stride")
	}
	if _, err := Prepare(models.ScanSpec{}, locs, Options{Stride: stride}); !errors.Is(err, models.ErrInvalidSpec) {
		t.Errorf("Expected ErrInvalidSpec, got %v", err)
	}
}

// TestOverwrite verifies disjoint writes and patch validation
func TestOverwrite(t *testing.T) {
	shape := models.PatchShape{2, 2, 2}
	spec := models.ScanSpec{"out": shape}
	locs := []geometry.Vec3d{{1, 1, 1}, {1, 1, 3}}

	acc, err := Prepare(spec, locs, Options{Stride: geometry.NewVec3d(2, 2, 2)})
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}

	for i, loc := range locs {
		if err := acc.Push(loc, models.Sample{"out": constPatch(shape, loc, float64(i+1))}); err != nil {
			t.Fatalf("Push(%v) failed: %v", loc, err)
		}
	}

	out := acc.Voxels()["out"]
	if got := out.At(0, 0, 0, 0); got != 1 {
		t.Errorf("Expected 1 in first patch, got %v", got)
	}
	if got := out.At(0, 1, 1, 3); got != 2 {
		t.Errorf("Expected 2 in second patch, got %v", got)
	}

	// Patch placed at the wrong location
	err = acc.Push(locs[0], models.Sample{"out": constPatch(shape, locs[1], 9)})
	if !errors.Is(err, ErrPatchMismatch) {
		t.Errorf("Expected ErrPatchMismatch for misplaced patch, got %v", err)
	}

	// Missing head
	if err := acc.Push(locs[0], models.Sample{}); !errors.Is(err, ErrPatchMismatch) {
		t.Errorf("Expected ErrPatchMismatch for missing head, got %v", err)
	}
}

// TestAverage verifies that overlapping contributions are averaged
func TestAverage(t *testing.T) {
	shape := models.PatchShape{1, 1, 4}
	spec := models.ScanSpec{"out": shape}
	locs := []geometry.Vec3d{{0, 0, 2}, {0, 0, 4}}

	acc, err := Prepare(spec, locs, Options{Overlap: true, Mode: "average", Stride: geometry.NewVec3d(1, 1, 2)})
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}

	// Partial read before anything was pushed
	for _, v := range acc.Voxels()["out"].Data {
		if v != 0 {
			t.Fatalf("Expected zero output before any push, got %v", v)
		}
	}

	if err := acc.Push(locs[0], models.Sample{"out": constPatch(shape, locs[0], 2)}); err != nil {
		t.Fatalf("Push failed: %v", err)
	}
	if err := acc.Push(locs[1], models.Sample{"out": constPatch(shape, locs[1], 4)}); err != nil {
		t.Fatalf("Push failed: %v", err)
	}

	out := acc.Voxels()["out"]
	// Patch 1 spans x in [0,4), patch 2 spans [2,6)
	want := map[int]float64{0: 2, 1: 2, 2: 3, 3: 3, 4: 4, 5: 4}
	for x, v := range want {
		if got := out.At(0, 0, 0, x); got != v {
			t.Errorf("x=%d: expected %v, got %v", x, v, got)
		}
	}
}

// TestBumpPreservesConstant checks that bump blending of identical values
// returns those values everywhere a patch reached
func TestBumpPreservesConstant(t *testing.T) {
	shape := models.PatchShape{2, 3, 4, 4}
	spec := models.ScanSpec{"out": shape}
	var locs []geometry.Vec3d
	for _, z := range []float64{2, 3} {
		for _, y := range []float64{2, 4} {
			for _, x := range []float64{2, 3, 4} {
				locs = append(locs, geometry.NewVec3d(z, y, x))
			}
		}
	}

	acc, err := Prepare(spec, locs, Options{Overlap: true, Stride: geometry.NewVec3d(1, 2, 1)})
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	for _, loc := range locs {
		if err := acc.Push(loc, models.Sample{"out": constPatch(shape, loc, 0.75)}); err != nil {
			t.Fatalf("Push(%v) failed: %v", loc, err)
		}
	}

	for i, v := range acc.Voxels()["out"].Data {
		if math.Abs(v-0.75) > 1e-9 {
			t.Fatalf("Voxel %d: expected 0.75, got %v", i, v)
		}
	}
}

func TestBumpKernel(t *testing.T) {
	k := bumpKernel([3]int{3, 5, 5})

	centre := k.At(0, 1, 2, 2)
	if math.Abs(centre-1) > 1e-12 {
		t.Errorf("Expected centre weight 1, got %v", centre)
	}
	corner := k.At(0, 0, 0, 0)
	if corner <= 0 || corner >= centre {
		t.Errorf("Expected corner weight in (0, centre), got %v", corner)
	}
	if k.At(0, 0, 2, 2) != k.At(0, 2, 2, 2) {
		t.Error("Expected kernel to be symmetric along z")
	}
}

// TestInto verifies writes into caller-owned, cropped buffers
func TestInto(t *testing.T) {
	shape := models.PatchShape{2, 2, 2}
	spec := models.ScanSpec{"out": shape}

	buf := volume.New(1, [3]int{0, 0, 1}, [3]int{2, 2, 2})
	acc, err := Into(spec, models.Sample{"out": buf}, Options{})
	if err != nil {
		t.Fatalf("Into failed: %v", err)
	}

	// Patch spans x in [0,2), buffer spans x in [1,3)
	loc := geometry.NewVec3d(1, 1, 1)
	if err := acc.Push(loc, models.Sample{"out": constPatch(shape, loc, 5)}); err != nil {
		t.Fatalf("Push failed: %v", err)
	}
	if got := buf.At(0, 0, 0, 1); got != 5 {
		t.Errorf("Expected 5 in overlap, got %v", got)
	}
	if got := buf.At(0, 0, 0, 2); got != 0 {
		t.Errorf("Expected 0 outside the patch, got %v", got)
	}
	if acc.Voxels()["out"] != buf {
		t.Error("Expected Voxels to expose the caller's buffer")
	}

	if _, err := Into(spec, models.Sample{}, Options{}); !errors.Is(err, ErrPatchMismatch) {
		t.Errorf("Expected ErrPatchMismatch for missing buffer, got %v", err)
	}
}

// TestIntoBlends verifies that caller-owned buffers blend overlapping
// patches the same way Prepare's buffers do
func TestIntoBlends(t *testing.T) {
	shape := models.PatchShape{1, 1, 4}
	spec := models.ScanSpec{"out": shape}
	locs := []geometry.Vec3d{
		geometry.NewVec3d(0, 0, 2),
		geometry.NewVec3d(0, 0, 4),
		geometry.NewVec3d(0, 0, 6),
	}
	opts := Options{Overlap: true, Mode: "average", Stride: geometry.NewVec3d(1, 1, 2)}

	prepared, err := Prepare(spec, locs, opts)
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	buf := volume.New(1, [3]int{}, [3]int{1, 1, 9})
	into, err := Into(spec, models.Sample{"out": buf}, opts)
	if err != nil {
		t.Fatalf("Into failed: %v", err)
	}

	for i, loc := range locs {
		sample := models.Sample{"out": constPatch(shape, loc, float64(i+1))}
		if err := prepared.Push(loc, sample); err != nil {
			t.Fatalf("Prepare push %d failed: %v", i, err)
		}
		if err := into.Push(loc, sample); err != nil {
			t.Fatalf("Into push %d failed: %v", i, err)
		}
		if i == 1 {
			// Mid-scan the buffer already holds the running average
			want := []float64{1, 1, 1.5, 1.5, 2, 2, 0, 0, 0}
			for x, w := range want {
				if got := buf.At(0, 0, 0, x); got != w {
					t.Errorf("After two pushes, x=%d: expected %v, got %v", x, w, got)
				}
			}
		}
	}

	want := []float64{1, 1, 1.5, 1.5, 2.5, 2.5, 3, 3, 0}
	merged := prepared.Voxels()["out"]
	for x, w := range want {
		if got := buf.At(0, 0, 0, x); got != w {
			t.Errorf("Into x=%d: expected %v, got %v", x, w, got)
		}
		if x < 8 {
			if got := merged.At(0, 0, 0, x); got != w {
				t.Errorf("Prepare x=%d: expected %v, got %v", x, w, got)
			}
		}
	}
	if into.Voxels()["out"] != buf {
		t.Error("Expected Voxels to expose the caller's buffer")
	}
}

// TestIntoBumpClips verifies bump blending into a buffer smaller than the
// scanned region
func TestIntoBumpClips(t *testing.T) {
	shape := models.PatchShape{2, 4, 4}
	spec := models.ScanSpec{"out": shape}

	buf := volume.New(1, [3]int{0, 1, 1}, [3]int{2, 3, 4})
	acc, err := Into(spec, models.Sample{"out": buf}, Options{Overlap: true})
	if err != nil {
		t.Fatalf("Into failed: %v", err)
	}

	for _, loc := range []geometry.Vec3d{
		geometry.NewVec3d(1, 2, 2),
		geometry.NewVec3d(1, 2, 4),
		geometry.NewVec3d(1, 4, 2),
		geometry.NewVec3d(1, 4, 4),
	} {
		if err := acc.Push(loc, models.Sample{"out": constPatch(shape, loc, 5)}); err != nil {
			t.Fatalf("Push at %v failed: %v", loc, err)
		}
	}
	for i, v := range buf.Data {
		if math.Abs(v-5) > 1e-9 {
			t.Fatalf("Voxel %d: expected 5, got %v", i, v)
		}
	}

	if _, err := Into(spec, models.Sample{"out": buf}, Options{Overlap: true, Mode: "median"}); !errors.Is(err, ErrUnknownMode) {
		t.Errorf("Expected ErrUnknownMode, got %v", err)
	}
}
