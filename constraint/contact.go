package constraint

import (
	"github.com/akmonengine/ballast/actor"
	"github.com/go-gl/mathgl/mgl64"
)

// ContactPointSolver is the solver-side state of one contact point, valid for one step.
type ContactPointSolver struct {
	// point is the index of the external point in its manifold
	point int

	normal   mgl64.Vec3
	rA       mgl64.Vec3 // contact point relative to the center of mass of A
	rB       mgl64.Vec3
	rACrossN mgl64.Vec3
	rBCrossN mgl64.Vec3

	penetrationDepth        float64
	penetrationImpulse      float64
	penetrationSplitImpulse float64
	restitutionBias         float64
	inversePenetrationMass  float64

	// Per-point friction state, persisted for the next step
	friction1Impulse         float64
	friction2Impulse         float64
	rollingResistanceImpulse mgl64.Vec3
	frictionVector1          mgl64.Vec3
	frictionVector2          mgl64.Vec3

	isRestingContact bool
}

// ContactManifoldSolver is the solver-side state of one manifold, valid for one step.
//
// Friction, twist and rolling resistance are solved once per manifold at the
// centroid of its points, whatever the number of points.
type ContactManifoldSolver struct {
	// manifold is the index of the external manifold in the island
	manifold int

	indexA, indexB     int
	invMassA, invMassB float64
	invInertiaA        mgl64.Mat3
	invInertiaB        mgl64.Mat3
	isDynamicA         bool
	isDynamicB         bool

	restitutionFactor       float64
	frictionCoefficient     float64
	rollingResistanceFactor float64

	normal             mgl64.Vec3
	frictionVector1    mgl64.Vec3
	frictionVector2    mgl64.Vec3
	oldFrictionVector1 mgl64.Vec3
	oldFrictionVector2 mgl64.Vec3

	// Lever arms of the friction point (centroid of the contact points)
	rAFriction mgl64.Vec3
	rBFriction mgl64.Vec3
	rACrossT1  mgl64.Vec3
	rACrossT2  mgl64.Vec3
	rBCrossT1  mgl64.Vec3
	rBCrossT2  mgl64.Vec3

	friction1Impulse         float64
	friction2Impulse         float64
	frictionTwistImpulse     float64
	rollingResistanceImpulse mgl64.Vec3

	inverseFriction1Mass     float64
	inverseFriction2Mass     float64
	inverseTwistFrictionMass float64
	inverseRollingResistance mgl64.Mat3

	contacts []ContactPointSolver
}

// ContactSolver is the sequential impulse (projected Gauss-Seidel) contact solver.
//
// One ContactSolver handles one island at a time. Independent islands can be
// solved concurrently by distinct solvers, each with its own Arena, as long as
// they share no dynamic body. Static and kinematic slots are only read.
type ContactSolver struct {
	settings  Settings
	bodyIndex BodyIndex
	arena     *Arena

	velocities      Velocities
	splitVelocities Velocities

	dt        float64
	island    *Island
	manifolds []ContactManifoldSolver
}

var _ Solver = (*ContactSolver)(nil)

// NewContactSolver creates a solver reading body slots from bodyIndex and
// allocating its per-step state from arena.
func NewContactSolver(bodyIndex BodyIndex, arena *Arena, settings Settings) *ContactSolver {
	assert(arena != nil, "nil arena")
	assert(settings.Iterations > 0, "iterations must be positive, got %d", settings.Iterations)

	return &ContactSolver{
		settings:  settings,
		bodyIndex: bodyIndex,
		arena:     arena,
	}
}

// SetVelocities borrows the constrained velocity arrays for the step
func (s *ContactSolver) SetVelocities(velocities Velocities) {
	s.velocities = velocities
}

// SetSplitVelocities borrows the split (position correction) velocity arrays
func (s *ContactSolver) SetSplitVelocities(velocities Velocities) {
	s.splitVelocities = velocities
}

// SetSplitImpulse toggles split impulse position correction
func (s *ContactSolver) SetSplitImpulse(active bool) {
	s.settings.SplitImpulse = active
}

// IsSplitImpulseActive reports whether penetration is corrected with split impulses
func (s *ContactSolver) IsSplitImpulseActive() bool {
	return s.settings.SplitImpulse
}

// Initialize builds the solver state of every manifold of the island.
// Resting flags of the external points are set for the next step.
func (s *ContactSolver) Initialize(dt float64, island *Island) {
	assert(dt > 0, "time step must be positive, got %v", dt)
	assert(island != nil, "nil island")
	assert(len(island.Bodies) > 0, "island has no bodies")
	assert(len(island.Manifolds) > 0, "island has no contact manifolds")
	assert(s.velocities.Len() > 0 && len(s.velocities.Angular) == s.velocities.Len(), "velocities not set")
	if s.settings.SplitImpulse {
		assert(s.splitVelocities.Len() == s.velocities.Len() && len(s.splitVelocities.Angular) == s.velocities.Len(),
			"split velocities not set")
	}

	s.dt = dt
	s.island = island
	s.manifolds = s.arena.allocManifolds(len(island.Manifolds))

	for i, external := range island.Manifolds {
		s.initializeManifold(&s.manifolds[i], i, external)
	}
}

func (s *ContactSolver) initializeManifold(m *ContactManifoldSolver, handle int, external *ContactManifold) {
	assert(external != nil, "nil contact manifold %d", handle)
	assert(len(external.Points) > 0, "contact manifold %d has no contact points", handle)

	bodyA := external.BodyA
	bodyB := external.BodyB

	m.manifold = handle
	m.indexA = s.indexOf(bodyA, handle)
	m.indexB = s.indexOf(bodyB, handle)
	m.invMassA = bodyA.InverseMass()
	m.invMassB = bodyB.InverseMass()
	m.invInertiaA = bodyA.GetInverseInertiaWorld()
	m.invInertiaB = bodyB.GetInverseInertiaWorld()
	m.isDynamicA = bodyA.IsDynamic()
	m.isDynamicB = bodyB.IsDynamic()
	m.restitutionFactor = ComputeRestitution(bodyA.Material, bodyB.Material)
	m.frictionCoefficient = ComputeFriction(bodyA.Material, bodyB.Material)
	m.rollingResistanceFactor = ComputeRollingResistance(bodyA.Material, bodyB.Material)

	centerA := bodyA.CenterOfMass()
	centerB := bodyB.CenterOfMass()

	vA := s.velocities.Linear[m.indexA]
	wA := s.velocities.Angular[m.indexA]
	vB := s.velocities.Linear[m.indexB]
	wB := s.velocities.Angular[m.indexB]

	m.contacts = s.arena.allocPoints(len(external.Points))

	var frictionPointA, frictionPointB, normal mgl64.Vec3

	for j := range external.Points {
		point := &external.Points[j]
		c := &m.contacts[j]

		c.point = j
		c.normal = point.Normal
		c.rA = point.WorldPointA.Sub(centerA)
		c.rB = point.WorldPointB.Sub(centerB)
		c.penetrationDepth = point.Penetration
		c.isRestingContact = point.IsResting
		point.IsResting = true

		c.penetrationImpulse = point.PenetrationImpulse
		c.penetrationSplitImpulse = 0
		c.friction1Impulse = point.FrictionImpulse1
		c.friction2Impulse = point.FrictionImpulse2
		c.rollingResistanceImpulse = point.RollingResistanceImpulse

		frictionPointA = frictionPointA.Add(point.WorldPointA)
		frictionPointB = frictionPointB.Add(point.WorldPointB)

		deltaV := vB.Add(wB.Cross(c.rB)).Sub(vA).Sub(wA.Cross(c.rA))

		c.rACrossN = c.rA.Cross(c.normal)
		c.rBCrossN = c.rB.Cross(c.normal)

		// K = 1/mA + 1/mB + ((IA^-1 (rA x n)) x rA).n + ((IB^-1 (rB x n)) x rB).n
		massPenetration := m.invMassA + m.invMassB +
			m.invInertiaA.Mul3x1(c.rACrossN).Cross(c.rA).Dot(c.normal) +
			m.invInertiaB.Mul3x1(c.rBCrossN).Cross(c.rB).Dot(c.normal)
		c.inversePenetrationMass = inverseOrZero(massPenetration)

		// The bias uses the velocity before any impulse: sub-threshold
		// approaches are resting contacts and must not bounce
		c.restitutionBias = 0
		deltaVDotN := deltaV.Dot(c.normal)
		if deltaVDotN < -s.settings.RestitutionVelocityThreshold {
			c.restitutionBias = m.restitutionFactor * deltaVDotN
		}

		c.frictionVector1, c.frictionVector2 = computeFrictionVectors(deltaV, c.normal)

		normal = normal.Add(c.normal)
	}

	nbContacts := float64(len(external.Points))
	frictionPointA = frictionPointA.Mul(1.0 / nbContacts)
	frictionPointB = frictionPointB.Mul(1.0 / nbContacts)
	m.rAFriction = frictionPointA.Sub(centerA)
	m.rBFriction = frictionPointB.Sub(centerB)

	m.normal = averageNormal(normal, external.Points[0].Normal)

	m.oldFrictionVector1 = external.FrictionVector1
	m.oldFrictionVector2 = external.FrictionVector2
	m.friction1Impulse = external.FrictionImpulse1
	m.friction2Impulse = external.FrictionImpulse2
	m.frictionTwistImpulse = external.FrictionTwistImpulse
	m.rollingResistanceImpulse = external.RollingResistanceImpulse

	m.inverseRollingResistance = mgl64.Mat3{}
	if m.rollingResistanceFactor > 0 && (m.isDynamicA || m.isDynamicB) {
		m.inverseRollingResistance = inverse3(m.invInertiaA.Add(m.invInertiaB))
	}

	deltaVFrictionPoint := vB.Add(wB.Cross(m.rBFriction)).Sub(vA).Sub(wA.Cross(m.rAFriction))
	m.frictionVector1, m.frictionVector2 = computeFrictionVectors(deltaVFrictionPoint, m.normal)

	m.rACrossT1 = m.rAFriction.Cross(m.frictionVector1)
	m.rACrossT2 = m.rAFriction.Cross(m.frictionVector2)
	m.rBCrossT1 = m.rBFriction.Cross(m.frictionVector1)
	m.rBCrossT2 = m.rBFriction.Cross(m.frictionVector2)

	friction1Mass := m.invMassA + m.invMassB +
		m.invInertiaA.Mul3x1(m.rACrossT1).Cross(m.rAFriction).Dot(m.frictionVector1) +
		m.invInertiaB.Mul3x1(m.rBCrossT1).Cross(m.rBFriction).Dot(m.frictionVector1)
	friction2Mass := m.invMassA + m.invMassB +
		m.invInertiaA.Mul3x1(m.rACrossT2).Cross(m.rAFriction).Dot(m.frictionVector2) +
		m.invInertiaB.Mul3x1(m.rBCrossT2).Cross(m.rBFriction).Dot(m.frictionVector2)
	twistMass := m.normal.Dot(m.invInertiaA.Mul3x1(m.normal)) +
		m.normal.Dot(m.invInertiaB.Mul3x1(m.normal))

	m.inverseFriction1Mass = inverseOrZero(friction1Mass)
	m.inverseFriction2Mass = inverseOrZero(friction2Mass)
	m.inverseTwistFrictionMass = inverseOrZero(twistMass)
}

func (s *ContactSolver) indexOf(body *actor.RigidBody, handle int) int {
	assert(body != nil, "contact manifold %d references a nil body", handle)

	index, ok := s.bodyIndex[body]
	assert(ok, "contact manifold %d references a body missing from the velocity index", handle)
	assert(index >= 0 && index < s.velocities.Len(), "body index %d out of range [0, %d)", index, s.velocities.Len())

	return index
}

// averageNormal normalizes the sum of the point normals. Opposite normals
// cancelling out fall back to the first point normal.
func averageNormal(sum, fallback mgl64.Vec3) mgl64.Vec3 {
	length := sum.Len()
	if length > machineEpsilon {
		return sum.Mul(1.0 / length)
	}

	length = fallback.Len()
	if length > machineEpsilon {
		return fallback.Mul(1.0 / length)
	}

	return mgl64.Vec3{}
}
