package actor

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// BodyType represents the type of rigid body
type BodyType int

const (
	// BodyTypeDynamic bodies are affected by forces, gravity, and contacts
	// They have finite mass and can move freely
	BodyTypeDynamic BodyType = iota

	// BodyTypeStatic bodies are immovable and have infinite mass
	// They are not affected by forces or gravity (e.g., ground, walls)
	BodyTypeStatic

	// BodyTypeKinematic bodies move with a user-driven velocity
	// Contacts see them as infinite mass, they never receive impulses
	BodyTypeKinematic
)

// Material holds the surface and mass properties of a body.
// Contact coefficients of two bodies are mixed by the constraint package.
type Material struct {
	Density     float64
	mass        float64
	Restitution float64 // 0= no rebound, 1= perfect restitution

	Friction          float64 // Coulomb coefficient
	RollingResistance float64 // 0 disables rolling resistance
	LinearDamping     float64 // 0.0 - 1.0, typical: 0.01
	AngularDamping    float64 // 0.0 - 1.0, typical: 0.05
}

func (material Material) GetMass() float64 {
	return material.mass
}

// RigidBody represents a rigid body in the physics simulation
type RigidBody struct {
	Transform Transform

	Velocity        mgl64.Vec3 // Linear velocity (m/s)
	AngularVelocity mgl64.Vec3 // rad/s

	InertiaLocal        mgl64.Mat3 // Inertia tensor in local space
	InverseInertiaLocal mgl64.Mat3

	accumulatedForce  mgl64.Vec3
	accumulatedTorque mgl64.Vec3

	// Physical properties
	Material Material
	BodyType BodyType

	// Shape only provides mass and inertia
	Shape ShapeInterface

	// IsTrigger bodies report overlaps but never take part in the contact solver
	IsTrigger bool

	IsSleeping bool
	SleepTimer float64
}

// NewRigidBody creates a new rigid body with the given properties
// density is used to calculate mass for dynamic bodies (ignored otherwise)
func NewRigidBody(transform Transform, shape ShapeInterface, bodyType BodyType, density float64) *RigidBody {
	if transform.Rotation == (mgl64.Quat{}) {
		transform.Rotation = mgl64.QuatIdent()
	}
	transform.InverseRotation = transform.Rotation.Inverse()

	rb := &RigidBody{
		Transform: transform,
		Shape:     shape,
		BodyType:  bodyType,
	}

	if bodyType == BodyTypeDynamic {
		rb.Material = Material{
			Density: density,
			mass:    shape.ComputeMass(density),
		}
	} else {
		// Static and kinematic bodies have infinite mass
		rb.Material = Material{
			mass: math.Inf(1),
		}
	}

	rb.InertiaLocal = shape.ComputeInertia(rb.Material.mass)
	rb.InverseInertiaLocal = inverseDiagonal(rb.InertiaLocal)

	return rb
}

// inverseDiagonal inverts a tensor expressed in its principal axes.
// Mat3.Inv compares the determinant against an absolute epsilon, which
// zeroes the inverse of light bodies.
func inverseDiagonal(inertia mgl64.Mat3) mgl64.Mat3 {
	var inverse mgl64.Mat3
	for i := range 3 {
		if d := inertia.At(i, i); d > 0 {
			inverse.Set(i, i, 1.0/d)
		}
	}

	return inverse
}

// TrySleep puts a dynamic body to sleep once both its velocities stayed
// below velocityThreshold for timeThreshold seconds
func (rb *RigidBody) TrySleep(dt float64, timeThreshold float64, velocityThreshold float64) {
	if !rb.IsDynamic() {
		return
	}

	if rb.Velocity.Len() < velocityThreshold && rb.AngularVelocity.Len() < velocityThreshold {
		rb.SleepTimer += dt
		if rb.SleepTimer >= timeThreshold {
			rb.Sleep()
		}
	} else {
		rb.Awake()
	}
}

// Sleep freezes the body until Awake is called
func (rb *RigidBody) Sleep() {
	rb.IsSleeping = true
	rb.SleepTimer = 0.0

	rb.ClearForces()
	rb.Velocity = mgl64.Vec3{}
	rb.AngularVelocity = mgl64.Vec3{}
}

func (rb *RigidBody) Awake() {
	rb.IsSleeping = false
	rb.SleepTimer = 0.0
}

// IsDynamic reports whether contacts can push this body
func (rb *RigidBody) IsDynamic() bool {
	return rb.BodyType == BodyTypeDynamic
}

// InverseMass returns 0 for static, kinematic and infinite-mass bodies
func (rb *RigidBody) InverseMass() float64 {
	mass := rb.Material.GetMass()
	if !rb.IsDynamic() || mass <= 0 || math.IsInf(mass, 1) {
		return 0
	}

	return 1.0 / mass
}

// CenterOfMass returns the world position of the center of mass.
// Shapes are centered on their transform.
func (rb *RigidBody) CenterOfMass() mgl64.Vec3 {
	return rb.Transform.Position
}

// IntegrateVelocity returns the velocities after applying gravity, the
// accumulated forces and damping over dt. Forces are cleared.
// The body itself keeps its velocities until the step commits them.
func (rb *RigidBody) IntegrateVelocity(dt float64, gravity mgl64.Vec3) (mgl64.Vec3, mgl64.Vec3) {
	if !rb.IsDynamic() || rb.IsSleeping {
		return rb.Velocity, rb.AngularVelocity
	}

	invMass := rb.InverseMass()
	v := rb.Velocity.Add(gravity.Mul(dt))
	v = v.Add(rb.accumulatedForce.Mul(invMass * dt))
	v = v.Mul(math.Exp(-rb.Material.LinearDamping * dt))

	I_inv := rb.GetInverseInertiaWorld()
	w := rb.AngularVelocity.Add(I_inv.Mul3x1(rb.accumulatedTorque).Mul(dt))
	w = w.Mul(math.Exp(-rb.Material.AngularDamping * dt))

	rb.ClearForces()

	return v, w
}

// IntegratePosition moves the body with the given linear and angular velocity
func (rb *RigidBody) IntegratePosition(dt float64, v, w mgl64.Vec3) {
	if rb.BodyType == BodyTypeStatic || rb.IsSleeping {
		return
	}

	rb.Transform.Integrate(dt, v, w)
}

// AddForce in N
func (rb *RigidBody) AddForce(force mgl64.Vec3) {
	if rb.IsDynamic() {
		rb.Awake()

		rb.accumulatedForce = rb.accumulatedForce.Add(force)
	}
}

// AddTorque in N⋅m
func (rb *RigidBody) AddTorque(torque mgl64.Vec3) {
	if rb.IsDynamic() {
		rb.Awake()

		rb.accumulatedTorque = rb.accumulatedTorque.Add(torque)
	}
}

func (rb *RigidBody) ClearForces() {
	rb.accumulatedForce = mgl64.Vec3{0, 0, 0}
	rb.accumulatedTorque = mgl64.Vec3{0, 0, 0}
}

// GetInertiaWorld returns the inertia tensor in world space
func (rb *RigidBody) GetInertiaWorld() mgl64.Mat3 {
	// I_world = R * I_local * R^T
	R := rb.Transform.Basis()
	return R.Mul3(rb.InertiaLocal).Mul3(R.Transpose())
}

// GetInverseInertiaWorld returns the inverse inertia tensor in world space,
// the zero matrix for bodies that cannot be rotated by contacts
func (rb *RigidBody) GetInverseInertiaWorld() mgl64.Mat3 {
	if !rb.IsDynamic() {
		return mgl64.Mat3{}
	}

	// I_world^(-1) = R * I_local^(-1) * R^T
	R := rb.Transform.Basis()
	return R.Mul3(rb.InverseInertiaLocal).Mul3(R.Transpose())
}
