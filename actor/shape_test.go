package actor

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func vec3Equal(a, b mgl64.Vec3, tolerance float64) bool {
	return math.Abs(a.X()-b.X()) < tolerance &&
		math.Abs(a.Y()-b.Y()) < tolerance &&
		math.Abs(a.Z()-b.Z()) < tolerance
}

func floatEqual(a, b, tolerance float64) bool {
	return math.Abs(a-b) < tolerance
}

func mat3Equal(a, b mgl64.Mat3, tolerance float64) bool {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if math.Abs(a.At(i, j)-b.At(i, j)) >= tolerance {
				return false
			}
		}
	}
	return true
}

func TestBoxComputeInertia(t *testing.T) {
	tests := []struct {
		name         string
		box          *Box
		mass         float64
		expectedDiag mgl64.Vec3 // diagonal elements (ix, iy, iz)
	}{
		{
			name:         "unit cube",
			box:          &Box{HalfExtents: mgl64.Vec3{1, 1, 1}},
			mass:         12.0,                // m/12 = 1.0
			expectedDiag: mgl64.Vec3{8, 8, 8}, // (2*2 + 2*2, 2*2 + 2*2, 2*2 + 2*2)
		},
		{
			name:         "rectangular box 2x3x4",
			box:          &Box{HalfExtents: mgl64.Vec3{2, 3, 4}},
			mass:         12.0,
			expectedDiag: mgl64.Vec3{100, 80, 52},
		},
		{
			name:         "thin box",
			box:          &Box{HalfExtents: mgl64.Vec3{0.1, 5, 0.1}},
			mass:         60.0,
			expectedDiag: mgl64.Vec3{500.2, 0.4, 500.2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inertia := tt.box.ComputeInertia(tt.mass)
			expected := mgl64.Diag3(tt.expectedDiag)

			if !mat3Equal(inertia, expected, 1e-9) {
				t.Errorf("ComputeInertia() = %v, want %v", inertia, expected)
			}
		})
	}
}

func TestSphereComputeInertia(t *testing.T) {
	tests := []struct {
		name     string
		radius   float64
		mass     float64
		expected float64
	}{
		{name: "unit sphere", radius: 1, mass: 5, expected: 2},
		{name: "radius 2", radius: 2, mass: 10, expected: 16},
		{name: "zero mass", radius: 3, mass: 0, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sphere := &Sphere{Radius: tt.radius}
			inertia := sphere.ComputeInertia(tt.mass)

			for i := 0; i < 3; i++ {
				if !floatEqual(inertia.At(i, i), tt.expected, 1e-9) {
					t.Errorf("diagonal[%d] = %v, want %v", i, inertia.At(i, i), tt.expected)
				}
			}
			if inertia.At(0, 1) != 0 || inertia.At(1, 2) != 0 || inertia.At(0, 2) != 0 {
				t.Errorf("sphere inertia should be diagonal, got %v", inertia)
			}
		})
	}
}

func TestInfiniteMassInertiaIsZero(t *testing.T) {
	shapes := []ShapeInterface{
		&Box{HalfExtents: mgl64.Vec3{1, 1, 1}},
		&Sphere{Radius: 1},
		&Plane{Normal: mgl64.Vec3{0, 1, 0}},
	}

	for _, shape := range shapes {
		if inertia := shape.ComputeInertia(math.Inf(1)); inertia != (mgl64.Mat3{}) {
			t.Errorf("shape %d: inertia with infinite mass = %v, want zero", shape.Type(), inertia)
		}
	}
}

func TestComputeMass(t *testing.T) {
	tests := []struct {
		name     string
		shape    ShapeInterface
		density  float64
		expected float64
	}{
		{name: "unit cube", shape: &Box{HalfExtents: mgl64.Vec3{0.5, 0.5, 0.5}}, density: 3, expected: 3},
		{name: "box 2x4x6", shape: &Box{HalfExtents: mgl64.Vec3{1, 2, 3}}, density: 0.5, expected: 24},
		{name: "unit sphere", shape: &Sphere{Radius: 1}, density: 1, expected: 4.0 / 3.0 * math.Pi},
		{name: "plane", shape: &Plane{Normal: mgl64.Vec3{0, 1, 0}}, density: 1000, expected: math.Inf(1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mass := tt.shape.ComputeMass(tt.density)
			if math.IsInf(tt.expected, 1) {
				if !math.IsInf(mass, 1) {
					t.Errorf("ComputeMass() = %v, want +Inf", mass)
				}
				return
			}
			if !floatEqual(mass, tt.expected, 1e-9) {
				t.Errorf("ComputeMass() = %v, want %v", mass, tt.expected)
			}
		})
	}
}

func TestShapeType(t *testing.T) {
	if (&Sphere{}).Type() != ShapeTypeSphere {
		t.Error("Sphere.Type() should be ShapeTypeSphere")
	}
	if (&Box{}).Type() != ShapeTypeBox {
		t.Error("Box.Type() should be ShapeTypeBox")
	}
	if (&Plane{}).Type() != ShapeTypePlane {
		t.Error("Plane.Type() should be ShapeTypePlane")
	}
}
