package actor

import "github.com/go-gl/mathgl/mgl64"

// Transform places a body in world space. Rotation is a unit quaternion,
// InverseRotation is kept in sync by Integrate and NewRigidBody.
type Transform struct {
	Position        mgl64.Vec3
	Rotation        mgl64.Quat
	InverseRotation mgl64.Quat
}

// NewTransform creates an identity transform
func NewTransform() Transform {
	return Transform{
		Rotation:        mgl64.QuatIdent(),
		InverseRotation: mgl64.QuatIdent(),
	}
}

// Apply maps a point from body space to world space
func (t Transform) Apply(local mgl64.Vec3) mgl64.Vec3 {
	return t.Position.Add(t.Rotation.Rotate(local))
}

// Basis returns the rotation matrix R, so that world = R * local
func (t Transform) Basis() mgl64.Mat3 {
	return t.Rotation.Mat4().Mat3()
}

// Integrate moves the transform with linear velocity v and angular velocity w over dt
func (t *Transform) Integrate(dt float64, v, w mgl64.Vec3) {
	t.Position = t.Position.Add(v.Mul(dt))

	// dq/dt = 0.5 * ω * q
	omegaQuat := mgl64.Quat{V: w, W: 0}
	q_dot := omegaQuat.Mul(t.Rotation).Scale(0.5)
	t.Rotation = t.Rotation.Add(q_dot.Scale(dt)).Normalize()
	t.InverseRotation = t.Rotation.Inverse()
}
