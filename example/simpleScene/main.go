package main

import (
	"context"
	"log"
	"os"

	"github.com/akmonengine/ballast"
	"github.com/akmonengine/ballast/actor"
	"github.com/akmonengine/ballast/constraint"
	"github.com/go-gl/mathgl/mgl64"
)

// boxCorners are the local corners of a unit box, scaled by the half extents
var boxCorners = []mgl64.Vec3{
	{-1, -1, -1}, {1, -1, -1}, {1, -1, 1}, {-1, -1, 1},
	{-1, 1, -1}, {1, 1, -1}, {1, 1, 1}, {-1, 1, 1},
}

// contactTracker keeps one manifold per pair alive across steps, so the
// solver can warm start from the impulses it stored
type contactTracker struct {
	manifold *constraint.ContactManifold
}

// update replaces the points of the manifold, keeping the stored impulses
// of the points that still exist. It returns nil when the bodies are apart.
func (c *contactTracker) update(bodyA, bodyB *actor.RigidBody, points []constraint.ContactPoint) *constraint.ContactManifold {
	if len(points) == 0 {
		c.manifold = nil
		return nil
	}

	if c.manifold == nil {
		c.manifold = &constraint.ContactManifold{BodyA: bodyA, BodyB: bodyB}
	}

	if len(points) == len(c.manifold.Points) {
		for i := range points {
			previous := c.manifold.Points[i]
			points[i].IsResting = previous.IsResting
			points[i].PenetrationImpulse = previous.PenetrationImpulse
			points[i].FrictionImpulse1 = previous.FrictionImpulse1
			points[i].FrictionImpulse2 = previous.FrictionImpulse2
			points[i].RollingResistanceImpulse = previous.RollingResistanceImpulse
			points[i].FrictionVector1 = previous.FrictionVector1
			points[i].FrictionVector2 = previous.FrictionVector2
		}
	}
	c.manifold.Points = points

	return c.manifold
}

// boxOnPlane returns the corners of the box below the plane y=0
func boxOnPlane(box *actor.RigidBody, shape *actor.Box) []constraint.ContactPoint {
	var points []constraint.ContactPoint

	for _, corner := range boxCorners {
		local := mgl64.Vec3{corner.X() * shape.HalfExtents.X(), corner.Y() * shape.HalfExtents.Y(), corner.Z() * shape.HalfExtents.Z()}
		world := box.Transform.Apply(local)
		if world.Y() >= 0 {
			continue
		}

		points = append(points, constraint.ContactPoint{
			WorldPointA: mgl64.Vec3{world.X(), 0, world.Z()},
			WorldPointB: world,
			Normal:      mgl64.Vec3{0, 1, 0},
			Penetration: -world.Y(),
		})
	}

	return points
}

// sphereSphere returns the contact point of two overlapping spheres
func sphereSphere(bodyA, bodyB *actor.RigidBody, radiusA, radiusB float64) []constraint.ContactPoint {
	delta := bodyB.Transform.Position.Sub(bodyA.Transform.Position)
	distance := delta.Len()
	if distance >= radiusA+radiusB || distance == 0 {
		return nil
	}

	normal := delta.Mul(1.0 / distance)

	return []constraint.ContactPoint{
		{
			WorldPointA: bodyA.Transform.Position.Add(normal.Mul(radiusA)),
			WorldPointB: bodyB.Transform.Position.Sub(normal.Mul(radiusB)),
			Normal:      normal,
			Penetration: radiusA + radiusB - distance,
		},
	}
}

func subscribe(world *ballast.World, logger *log.Logger) {
	world.Events.Subscribe(ballast.CONTACT_BEGIN, func(event ballast.Event) {
		e := event.(ballast.ContactBeginEvent)
		logger.Printf("contact begin: %d points", len(e.Manifold.Points))
	})
	world.Events.Subscribe(ballast.CONTACT_END, func(event ballast.Event) {
		logger.Printf("contact end")
	})
	world.Events.Subscribe(ballast.ON_SLEEP, func(event ballast.Event) {
		e := event.(ballast.SleepEvent)
		logger.Printf("body asleep at %v", e.Body.Transform.Position)
	})
	world.Events.Subscribe(ballast.POST_SOLVE, func(event ballast.Event) {
		e := event.(ballast.PostSolveEvent)
		logger.Printf("normal impulse: %.4f N.s", e.NormalImpulse)
	})
}

// runBoxScene drops a box on the ground and lets it slide to rest
func runBoxScene(ctx context.Context, cfg ballast.Config, logger *log.Logger) {
	world := ballast.NewWorld(cfg)
	subscribe(world, logger)

	plane := actor.NewRigidBody(actor.NewTransform(), &actor.Plane{Normal: mgl64.Vec3{0, 1, 0}}, actor.BodyTypeStatic, 0)
	plane.Material.Friction = 0.5
	world.AddBody(plane)

	boxShape := &actor.Box{HalfExtents: mgl64.Vec3{0.5, 0.5, 0.5}}
	box := actor.NewRigidBody(actor.Transform{Position: mgl64.Vec3{0, 2, 0}}, boxShape, actor.BodyTypeDynamic, 1.0)
	box.Velocity = mgl64.Vec3{2, 0, 0}
	box.Material.Friction = 0.5
	box.Material.Restitution = 0.3
	world.AddBody(box)

	var tracker contactTracker
	const maxSteps = 180

	for step := range maxSteps {
		var islands []*constraint.Island
		if manifold := tracker.update(plane, box, boxOnPlane(box, boxShape)); manifold != nil {
			islands = append(islands, &constraint.Island{
				Bodies:    []*actor.RigidBody{plane, box},
				Manifolds: []*constraint.ContactManifold{manifold},
			})
		}

		world.Step(ctx, cfg.TimeStep, islands)

		if step%30 == 0 {
			logger.Printf("box step %d: position %v velocity %v", step, box.Transform.Position, box.Velocity)
		}
	}

	logger.Printf("box at rest: position %v velocity %v", box.Transform.Position, box.Velocity)
}

// runSphereScene collides two bouncing spheres head on
func runSphereScene(ctx context.Context, cfg ballast.Config, logger *log.Logger) {
	cfg.Gravity = []float64{0, 0, 0}
	world := ballast.NewWorld(cfg)
	subscribe(world, logger)

	const radius = 1.0
	sphereA := actor.NewRigidBody(actor.Transform{Position: mgl64.Vec3{-3, 0, 0}}, &actor.Sphere{Radius: radius}, actor.BodyTypeDynamic, 1.0)
	sphereA.Velocity = mgl64.Vec3{5, 0, 0}
	sphereA.Material.Restitution = 0.9
	sphereB := actor.NewRigidBody(actor.Transform{Position: mgl64.Vec3{3, 0, 0}}, &actor.Sphere{Radius: radius}, actor.BodyTypeDynamic, 1.0)
	sphereB.Velocity = mgl64.Vec3{-5, 0, 0}
	sphereB.Material.Restitution = 0.9
	world.AddBody(sphereA)
	world.AddBody(sphereB)

	var tracker contactTracker
	const maxSteps = 60

	for range maxSteps {
		var islands []*constraint.Island
		if manifold := tracker.update(sphereA, sphereB, sphereSphere(sphereA, sphereB, radius, radius)); manifold != nil {
			islands = append(islands, &constraint.Island{
				Bodies:    []*actor.RigidBody{sphereA, sphereB},
				Manifolds: []*constraint.ContactManifold{manifold},
			})
		}

		world.Step(ctx, cfg.TimeStep, islands)
	}

	logger.Printf("spheres after impact: %v, %v", sphereA.Velocity, sphereB.Velocity)
}

func main() {
	logger := log.New(os.Stdout, "simpleScene ", log.LstdFlags|log.Lmsgprefix)

	cfg, err := ballast.ParseConfig()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	logger.Printf("solver: %d iterations, split impulse %t, %d workers", cfg.Iterations, cfg.SplitImpulse, cfg.Workers)

	ctx := context.Background()
	runBoxScene(ctx, cfg, logger)
	runSphereScene(ctx, cfg, logger)
}
