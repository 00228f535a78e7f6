package constraint

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// computeFrictionVectors returns the unit tangents t1, t2 spanning the
// friction plane of normal, such that t1 x t2 = normal.
//
// t1 follows the tangential part of deltaVelocity when there is one, so the
// first friction constraint directly opposes sliding.
func computeFrictionVectors(deltaVelocity, normal mgl64.Vec3) (mgl64.Vec3, mgl64.Vec3) {
	if normal.Len() <= machineEpsilon {
		return mgl64.Vec3{1, 0, 0}, mgl64.Vec3{0, 1, 0}
	}

	normalVelocity := normal.Mul(deltaVelocity.Dot(normal))
	tangentVelocity := deltaVelocity.Sub(normalVelocity)

	var t1 mgl64.Vec3
	if length := tangentVelocity.Len(); length > machineEpsilon {
		t1 = tangentVelocity.Mul(1.0 / length)

		// A large normal velocity leaves rounding noise along the normal
		t1 = t1.Sub(normal.Mul(t1.Dot(normal)))
		if length = t1.Len(); length > machineEpsilon {
			t1 = t1.Mul(1.0 / length)
		} else {
			t1 = oneUnitOrthogonalVector(normal)
		}
	} else {
		t1 = oneUnitOrthogonalVector(normal)
	}

	t2 := normal.Cross(t1).Normalize()

	return t1, t2
}

// oneUnitOrthogonalVector returns a unit vector orthogonal to v, built
// from its two largest components
func oneUnitOrthogonalVector(v mgl64.Vec3) mgl64.Vec3 {
	x, y, z := v.X(), v.Y(), v.Z()
	ax, ay, az := math.Abs(x), math.Abs(y), math.Abs(z)

	switch {
	case ax <= ay && ax <= az:
		return mgl64.Vec3{0, -z, y}.Mul(1.0 / math.Sqrt(y*y+z*z))
	case ay <= az:
		return mgl64.Vec3{-z, 0, x}.Mul(1.0 / math.Sqrt(x*x+z*z))
	default:
		return mgl64.Vec3{-y, x, 0}.Mul(1.0 / math.Sqrt(x*x+y*y))
	}
}
