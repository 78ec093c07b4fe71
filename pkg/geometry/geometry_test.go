package geometry

import (
	"testing"
)

// TestVec3dArithmetic verifies elementwise arithmetic and reductions
func TestVec3dArithmetic(t *testing.T) {
	a := NewVec3d(1, 2, 3)
	b := NewVec3d(10, 20, 30)

	if got := a.Add(b); got != NewVec3d(11, 22, 33) {
		t.Errorf("Expected (11, 22, 33), got %v", got)
	}
	if got := b.Sub(a); got != NewVec3d(9, 18, 27) {
		t.Errorf("Expected (9, 18, 27), got %v", got)
	}

	// Add must not mutate its receiver
	if a != NewVec3d(1, 2, 3) {
		t.Errorf("Receiver was modified: %v", a)
	}

	if a.Min() != 1 || a.Max() != 3 {
		t.Errorf("Expected min=1 max=3, got min=%v max=%v", a.Min(), a.Max())
	}

	a.Set(1, 7)
	if a.Get(1) != 7 {
		t.Errorf("Expected y=7 after Set, got %v", a.Get(1))
	}

	if got := NewVec3d(1.7, -0.5, 2).Floor(); got != NewVec3d(1, -1, 2) {
		t.Errorf("Expected (1, -1, 2), got %v", got)
	}
}

// TestFromSlice checks component count validation
func TestFromSlice(t *testing.T) {
	v, err := FromSlice(nil)
	if err != nil || !v.IsZero() {
		t.Errorf("Expected zero vector for nil slice, got %v (err=%v)", v, err)
	}

	v, err = FromSlice([]float64{0.5, 1, 2})
	if err != nil {
		t.Fatalf("FromSlice failed: %v", err)
	}
	if v != NewVec3d(0.5, 1, 2) {
		t.Errorf("Expected (0.5, 1, 2), got %v", v)
	}

	if _, err := FromSlice([]float64{1, 2}); err == nil {
		t.Error("Expected error for two components")
	}
}

// TestCenteredBox verifies placement of odd and even sized boxes
func TestCenteredBox(t *testing.T) {
	box := CenteredBox(NewVec3d(0, 0, 0), NewVec3d(18, 256, 5))

	if got := box.Min(); got != NewVec3d(-9, -128, -2) {
		t.Errorf("Expected min (-9, -128, -2), got %v", got)
	}
	if got := box.Max(); got != NewVec3d(9, 128, 3) {
		t.Errorf("Expected max (9, 128, 3), got %v", got)
	}
	if got := box.Size(); got != NewVec3d(18, 256, 5) {
		t.Errorf("Expected size (18, 256, 5), got %v", got)
	}
}

// TestBoxIntersect verifies intersection, union and containment
func TestBoxIntersect(t *testing.T) {
	a := CenteredBox(Vec3d{}, NewVec3d(18, 256, 256))
	b := CenteredBox(Vec3d{}, NewVec3d(20, 200, 256))

	inter := a.Intersect(b)
	if got := inter.Size(); got != NewVec3d(18, 200, 256) {
		t.Errorf("Expected intersection size (18, 200, 256), got %v", got)
	}

	union := a.Union(b)
	if got := union.Size(); got != NewVec3d(20, 256, 256) {
		t.Errorf("Expected union size (20, 256, 256), got %v", got)
	}

	disjoint := NewBox(NewVec3d(0, 0, 0), NewVec3d(1, 1, 1)).
		Intersect(NewBox(NewVec3d(2, 2, 2), NewVec3d(3, 3, 3)))
	if !disjoint.Empty() {
		t.Errorf("Expected empty intersection, got %v", disjoint)
	}
	if got := disjoint.Size(); !got.IsZero() {
		t.Errorf("Expected zero size for empty box, got %v", got)
	}

	if !union.ContainsBox(a) || !union.ContainsBox(b) {
		t.Error("Union should contain both operands")
	}
	if !a.Contains(NewVec3d(-9, 0, 127)) {
		t.Error("Minimum corner should be inside the box")
	}
	if a.Contains(NewVec3d(9, 0, 0)) {
		t.Error("Maximum corner should be outside the box")
	}
}

// TestBoxTransforms covers centre, translation and union with empty boxes
func TestBoxTransforms(t *testing.T) {
	box := NewBox(NewVec3d(0, 2, 4), NewVec3d(2, 6, 10))

	if got := box.Center(); got != NewVec3d(1, 4, 7) {
		t.Errorf("Expected centre (1, 4, 7), got %v", got)
	}

	moved := box.Translate(NewVec3d(1, -2, 3))
	if got := moved.Min(); got != NewVec3d(1, 0, 7) {
		t.Errorf("Expected translated min (1, 0, 7), got %v", got)
	}
	if got := moved.Size(); got != box.Size() {
		t.Errorf("Translation changed size: %v != %v", got, box.Size())
	}

	empty := NewBox(NewVec3d(50, 50, 50), NewVec3d(50, 51, 51))
	if !empty.Empty() {
		t.Fatalf("Expected %v to be empty", empty)
	}
	if got := box.Union(empty); got.Min() != box.Min() || got.Max() != box.Max() {
		t.Errorf("Union with an empty box should return the other operand, got %v", got)
	}
}
