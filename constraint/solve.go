package constraint

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// WarmStart applies the impulses of the previous step to the velocities.
//
// New points start from zero. Manifold friction is projected from the old
// friction vectors onto the new ones, so a slightly rotated basis keeps the
// same friction force.
func (s *ContactSolver) WarmStart() {
	for i := range s.manifolds {
		m := &s.manifolds[i]

		atLeastOneRestingContactPoint := false

		for j := range m.contacts {
			c := &m.contacts[j]

			if c.isRestingContact {
				atLeastOneRestingContactPoint = true

				m.applyImpulse(s.velocities,
					c.normal.Mul(c.penetrationImpulse),
					c.rACrossN.Mul(c.penetrationImpulse),
					c.rBCrossN.Mul(c.penetrationImpulse))
			} else {
				c.penetrationImpulse = 0
				c.friction1Impulse = 0
				c.friction2Impulse = 0
				c.rollingResistanceImpulse = mgl64.Vec3{}
			}
		}

		if !atLeastOneRestingContactPoint {
			m.friction1Impulse = 0
			m.friction2Impulse = 0
			m.frictionTwistImpulse = 0
			m.rollingResistanceImpulse = mgl64.Vec3{}
			continue
		}

		oldFrictionImpulse := m.oldFrictionVector1.Mul(m.friction1Impulse).
			Add(m.oldFrictionVector2.Mul(m.friction2Impulse))
		m.friction1Impulse = oldFrictionImpulse.Dot(m.frictionVector1)
		m.friction2Impulse = oldFrictionImpulse.Dot(m.frictionVector2)

		m.applyImpulse(s.velocities,
			m.frictionVector1.Mul(m.friction1Impulse),
			m.rACrossT1.Mul(m.friction1Impulse),
			m.rBCrossT1.Mul(m.friction1Impulse))
		m.applyImpulse(s.velocities,
			m.frictionVector2.Mul(m.friction2Impulse),
			m.rACrossT2.Mul(m.friction2Impulse),
			m.rBCrossT2.Mul(m.friction2Impulse))

		m.applyAngularImpulse(s.velocities, m.normal.Mul(m.frictionTwistImpulse))
		m.applyAngularImpulse(s.velocities, m.rollingResistanceImpulse)
	}
}

// Solve runs the configured number of Gauss-Seidel sweeps over all manifolds
func (s *ContactSolver) Solve() {
	for range s.settings.Iterations {
		s.sweep()
	}
}

// sweep solves every constraint once, in manifold order. Each impulse is
// applied immediately so the following constraints see it.
func (s *ContactSolver) sweep() {
	splitImpulse := s.settings.SplitImpulse
	beta := s.settings.Beta
	if splitImpulse {
		beta = s.settings.BetaSplitImpulse
	}

	for i := range s.manifolds {
		m := &s.manifolds[i]

		sumPenetrationImpulse := 0.0

		// ========== Penetration ==========
		for j := range m.contacts {
			c := &m.contacts[j]

			Jv := m.relativeVelocity(s.velocities, c.rA, c.rB).Dot(c.normal)

			// Baumgarte stabilization
			biasPenetrationDepth := 0.0
			if c.penetrationDepth > s.settings.Slop {
				biasPenetrationDepth = -(beta / s.dt) * (c.penetrationDepth - s.settings.Slop)
			}

			var deltaLambda float64
			if splitImpulse {
				deltaLambda = -(Jv + c.restitutionBias) * c.inversePenetrationMass
			} else {
				deltaLambda = -(Jv + biasPenetrationDepth + c.restitutionBias) * c.inversePenetrationMass
			}

			// Contacts push, never pull
			lambdaTemp := c.penetrationImpulse
			c.penetrationImpulse = math.Max(c.penetrationImpulse+deltaLambda, 0)
			deltaLambda = c.penetrationImpulse - lambdaTemp

			m.applyImpulse(s.velocities,
				c.normal.Mul(deltaLambda),
				c.rACrossN.Mul(deltaLambda),
				c.rBCrossN.Mul(deltaLambda))

			sumPenetrationImpulse += c.penetrationImpulse

			if splitImpulse {
				JvSplit := m.relativeVelocity(s.splitVelocities, c.rA, c.rB).Dot(c.normal)
				deltaLambdaSplit := -(JvSplit + biasPenetrationDepth) * c.inversePenetrationMass

				lambdaTempSplit := c.penetrationSplitImpulse
				c.penetrationSplitImpulse = math.Max(c.penetrationSplitImpulse+deltaLambdaSplit, 0)
				deltaLambdaSplit = c.penetrationSplitImpulse - lambdaTempSplit

				m.applyImpulse(s.splitVelocities,
					c.normal.Mul(deltaLambdaSplit),
					c.rACrossN.Mul(deltaLambdaSplit),
					c.rBCrossN.Mul(deltaLambdaSplit))
			}
		}

		// Coulomb's law: |friction| <= μ * |normal|
		frictionLimit := m.frictionCoefficient * sumPenetrationImpulse

		// ========== Friction at the manifold center ==========
		deltaLambda := m.solveFriction(s.velocities, m.frictionVector1, m.inverseFriction1Mass, frictionLimit, &m.friction1Impulse)
		m.applyImpulse(s.velocities,
			m.frictionVector1.Mul(deltaLambda),
			m.rACrossT1.Mul(deltaLambda),
			m.rBCrossT1.Mul(deltaLambda))

		deltaLambda = m.solveFriction(s.velocities, m.frictionVector2, m.inverseFriction2Mass, frictionLimit, &m.friction2Impulse)
		m.applyImpulse(s.velocities,
			m.frictionVector2.Mul(deltaLambda),
			m.rACrossT2.Mul(deltaLambda),
			m.rBCrossT2.Mul(deltaLambda))

		// ========== Twist friction ==========
		Jv := s.velocities.Angular[m.indexB].Sub(s.velocities.Angular[m.indexA]).Dot(m.normal)
		deltaLambda = -Jv * m.inverseTwistFrictionMass
		lambdaTemp := m.frictionTwistImpulse
		m.frictionTwistImpulse = mgl64.Clamp(m.frictionTwistImpulse+deltaLambda, -frictionLimit, frictionLimit)
		deltaLambda = m.frictionTwistImpulse - lambdaTemp

		m.applyAngularImpulse(s.velocities, m.normal.Mul(deltaLambda))

		// ========== Rolling resistance ==========
		if m.rollingResistanceFactor > 0 {
			JvRolling := s.velocities.Angular[m.indexB].Sub(s.velocities.Angular[m.indexA])
			deltaLambdaRolling := m.inverseRollingResistance.Mul3x1(JvRolling.Mul(-1))
			rollingLimit := m.rollingResistanceFactor * sumPenetrationImpulse

			lambdaTempRolling := m.rollingResistanceImpulse
			m.rollingResistanceImpulse = clampLength(m.rollingResistanceImpulse.Add(deltaLambdaRolling), rollingLimit)
			deltaLambdaRolling = m.rollingResistanceImpulse.Sub(lambdaTempRolling)

			m.applyAngularImpulse(s.velocities, deltaLambdaRolling)
		}
	}
}

// StoreImpulses writes the accumulated impulses and friction vectors back
// to the external records, to warm start the next step
func (s *ContactSolver) StoreImpulses() {
	for i := range s.manifolds {
		m := &s.manifolds[i]
		external := s.island.Manifolds[m.manifold]

		for j := range m.contacts {
			c := &m.contacts[j]
			point := &external.Points[c.point]

			point.PenetrationImpulse = c.penetrationImpulse
			point.FrictionImpulse1 = c.friction1Impulse
			point.FrictionImpulse2 = c.friction2Impulse
			point.RollingResistanceImpulse = c.rollingResistanceImpulse
			point.FrictionVector1 = c.frictionVector1
			point.FrictionVector2 = c.frictionVector2
		}

		external.FrictionImpulse1 = m.friction1Impulse
		external.FrictionImpulse2 = m.friction2Impulse
		external.FrictionTwistImpulse = m.frictionTwistImpulse
		external.RollingResistanceImpulse = m.rollingResistanceImpulse
		external.FrictionVector1 = m.frictionVector1
		external.FrictionVector2 = m.frictionVector2
	}
}

// SolveIsland runs the four phases of a step on the island
func (s *ContactSolver) SolveIsland(dt float64, island *Island) {
	s.Initialize(dt, island)
	s.WarmStart()
	s.Solve()
	s.StoreImpulses()
}

// Reset drops the state borrowed for the step. The arena is reset by its owner.
func (s *ContactSolver) Reset() {
	s.island = nil
	s.manifolds = nil
	s.velocities = Velocities{}
	s.splitVelocities = Velocities{}
}

// solveFriction updates the accumulated impulse along tangent, clamped to
// [-limit, limit], and returns the applied delta
func (m *ContactManifoldSolver) solveFriction(v Velocities, tangent mgl64.Vec3, inverseMass, limit float64, accumulated *float64) float64 {
	Jv := m.relativeVelocity(v, m.rAFriction, m.rBFriction).Dot(tangent)
	deltaLambda := -Jv * inverseMass

	lambdaTemp := *accumulated
	*accumulated = mgl64.Clamp(*accumulated+deltaLambda, -limit, limit)

	return *accumulated - lambdaTemp
}

// relativeVelocity returns the velocity of the point on B relative to the point on A
func (m *ContactManifoldSolver) relativeVelocity(v Velocities, rA, rB mgl64.Vec3) mgl64.Vec3 {
	vA := v.Linear[m.indexA].Add(v.Angular[m.indexA].Cross(rA))
	vB := v.Linear[m.indexB].Add(v.Angular[m.indexB].Cross(rB))

	return vB.Sub(vA)
}

// applyImpulse applies the linear impulse P to B and -P to A.
// angularA and angularB are the moments rA x P and rB x P.
// Slots of non-dynamic bodies are never written, so islands can share them.
func (m *ContactManifoldSolver) applyImpulse(v Velocities, linear, angularA, angularB mgl64.Vec3) {
	if m.isDynamicA {
		v.Linear[m.indexA] = v.Linear[m.indexA].Sub(linear.Mul(m.invMassA))
		v.Angular[m.indexA] = v.Angular[m.indexA].Sub(m.invInertiaA.Mul3x1(angularA))
	}

	if m.isDynamicB {
		v.Linear[m.indexB] = v.Linear[m.indexB].Add(linear.Mul(m.invMassB))
		v.Angular[m.indexB] = v.Angular[m.indexB].Add(m.invInertiaB.Mul3x1(angularB))
	}
}

// applyAngularImpulse applies the angular impulse L to B and -L to A
func (m *ContactManifoldSolver) applyAngularImpulse(v Velocities, angular mgl64.Vec3) {
	if m.isDynamicA {
		v.Angular[m.indexA] = v.Angular[m.indexA].Sub(m.invInertiaA.Mul3x1(angular))
	}
	if m.isDynamicB {
		v.Angular[m.indexB] = v.Angular[m.indexB].Add(m.invInertiaB.Mul3x1(angular))
	}
}
