package constraint

import (
	"github.com/akmonengine/ballast/actor"
	"github.com/go-gl/mathgl/mgl64"
)

// ContactPoint is produced by the narrow phase and persists across steps,
// carrying the impulses used to warm start the next step.
type ContactPoint struct {
	WorldPointA mgl64.Vec3 // contact position on body A
	WorldPointB mgl64.Vec3 // contact position on body B
	Normal      mgl64.Vec3 // unit normal from A toward B
	Penetration float64

	// IsResting is true when the point already existed at the previous step
	IsResting bool

	PenetrationImpulse float64

	// Friction is solved per manifold. The per-point friction impulses and
	// rolling impulse are carried from step to step for callers, reset for
	// new points, and never solved. The per-point friction basis is
	// recomputed from the point relative velocity each step.
	FrictionImpulse1         float64
	FrictionImpulse2         float64
	RollingResistanceImpulse mgl64.Vec3
	FrictionVector1          mgl64.Vec3
	FrictionVector2          mgl64.Vec3
}

// ContactManifold groups the contact points between two bodies.
// Friction is solved once per manifold, at the centroid of its points.
type ContactManifold struct {
	BodyA  *actor.RigidBody
	BodyB  *actor.RigidBody
	Points []ContactPoint

	FrictionImpulse1         float64
	FrictionImpulse2         float64
	FrictionTwistImpulse     float64
	RollingResistanceImpulse mgl64.Vec3
	FrictionVector1          mgl64.Vec3
	FrictionVector2          mgl64.Vec3
}

// TotalPenetrationImpulse sums the normal impulses of all points
func (m *ContactManifold) TotalPenetrationImpulse() float64 {
	var total float64
	for i := range m.Points {
		total += m.Points[i].PenetrationImpulse
	}

	return total
}

// Island is a group of bodies connected by contacts.
// Two islands never share a body.
type Island struct {
	Bodies    []*actor.RigidBody
	Manifolds []*ContactManifold
}

// NbContactPoints counts the contact points of all manifolds
func (island *Island) NbContactPoints() int {
	n := 0
	for _, manifold := range island.Manifolds {
		n += len(manifold.Points)
	}

	return n
}

// BodyIndex maps a body to its slot in the velocity arrays
type BodyIndex map[*actor.RigidBody]int

// Velocities holds parallel linear and angular velocity arrays, indexed by BodyIndex.
// They are owned by the caller; the solver writes them in place.
type Velocities struct {
	Linear  []mgl64.Vec3
	Angular []mgl64.Vec3
}

// NewVelocities allocates zeroed arrays for n bodies
func NewVelocities(n int) Velocities {
	return Velocities{
		Linear:  make([]mgl64.Vec3, n),
		Angular: make([]mgl64.Vec3, n),
	}
}

// Len returns the number of body slots
func (v Velocities) Len() int {
	return len(v.Linear)
}

// Reset zeroes every velocity
func (v Velocities) Reset() {
	clear(v.Linear)
	clear(v.Angular)
}
