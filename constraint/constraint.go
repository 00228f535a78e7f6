package constraint

import (
	"fmt"
	"math"

	"github.com/akmonengine/ballast/actor"
	"github.com/go-gl/mathgl/mgl64"
)

// Solver resolves the contacts of one island per step.
// Phases are called in order: Initialize, WarmStart, Solve, StoreImpulses.
type Solver interface {
	Initialize(dt float64, island *Island)
	WarmStart()
	Solve()
	StoreImpulses()
}

const (
	// machineEpsilon is the spacing of float64 around 1
	machineEpsilon = 0x1p-52

	// minEffectiveMass below which a constraint gets no impulse capacity
	minEffectiveMass = 1e-10
)

// ComputeRestitution mixes the restitution of two materials.
func ComputeRestitution(matA, matB actor.Material) float64 {
	// Average (more realistic)
	return (matA.Restitution + matB.Restitution) / 2.0
}

// ComputeFriction mixes the friction coefficients of two materials.
func ComputeFriction(matA, matB actor.Material) float64 {
	// Geometric mean (standard in physics), zero if either surface is frictionless
	return math.Sqrt(matA.Friction * matB.Friction)
}

// ComputeRollingResistance mixes the rolling resistance factors of two materials.
func ComputeRollingResistance(matA, matB actor.Material) float64 {
	return (matA.RollingResistance + matB.RollingResistance) / 2.0
}

// clampLength scales v down to maxLength, keeping its direction
func clampLength(v mgl64.Vec3, maxLength float64) mgl64.Vec3 {
	lengthSquared := v.Dot(v)
	if lengthSquared > maxLength*maxLength && lengthSquared > 0 {
		return v.Mul(maxLength / math.Sqrt(lengthSquared))
	}

	return v
}

// inverseOrZero returns 1/mass, or 0 for degenerate effective masses
func inverseOrZero(mass float64) float64 {
	if mass > minEffectiveMass {
		return 1.0 / mass
	}

	return 0
}

// inverse3 inverts m through its adjugate, or returns the zero matrix when m
// is singular relative to its own scale. Mat3.Inv tests the determinant
// against an absolute epsilon and zeroes the inverse of heavy bodies.
func inverse3(m mgl64.Mat3) mgl64.Mat3 {
	c0, c1, c2 := m.Col(0), m.Col(1), m.Col(2)

	scale := 0.0
	for _, v := range m {
		scale = math.Max(scale, math.Abs(v))
	}

	det := c0.Dot(c1.Cross(c2))
	if scale == 0 || math.Abs(det) <= machineEpsilon*scale*scale*scale {
		return mgl64.Mat3{}
	}

	// Rows of the inverse are the cross products of the columns
	invDet := 1.0 / det
	return mgl64.Mat3FromRows(
		c1.Cross(c2).Mul(invDet),
		c2.Cross(c0).Mul(invDet),
		c0.Cross(c1).Mul(invDet),
	)
}

// assert panics on violated preconditions: continuing would corrupt the
// velocities of unrelated bodies.
func assert(condition bool, format string, args ...any) {
	if !condition {
		panic(fmt.Sprintf("constraint: "+format, args...))
	}
}
