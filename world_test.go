package ballast

import (
	"context"
	"math"
	"testing"

	"github.com/akmonengine/ballast/actor"
	"github.com/akmonengine/ballast/constraint"
	"github.com/go-gl/mathgl/mgl64"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

const dt = 1.0 / 60.0

func floatEqual(a, b, tolerance float64) bool {
	return math.Abs(a-b) <= tolerance
}

func createGround() *actor.RigidBody {
	return actor.NewRigidBody(
		actor.NewTransform(),
		&actor.Plane{Normal: mgl64.Vec3{0, 1, 0}},
		actor.BodyTypeStatic,
		0,
	)
}

// groundIsland touches a unit sphere resting on the plane y=0
func groundIsland(ground, sphere *actor.RigidBody, penetration float64) *constraint.Island {
	contact := sphere.Transform.Position.Sub(mgl64.Vec3{0, 1, 0})

	return &constraint.Island{
		Bodies: []*actor.RigidBody{ground, sphere},
		Manifolds: []*constraint.ContactManifold{
			{
				BodyA: ground,
				BodyB: sphere,
				Points: []constraint.ContactPoint{
					{
						WorldPointA: contact,
						WorldPointB: contact,
						Normal:      mgl64.Vec3{0, 1, 0},
						Penetration: penetration,
					},
				},
			},
		},
	}
}

func newTestWorld(bodies ...*actor.RigidBody) *World {
	world := NewWorld(DefaultConfig())
	for _, body := range bodies {
		world.AddBody(body)
	}

	return world
}

func TestWorld_FreeFall(t *testing.T) {
	sphere := createTestBody(mgl64.Vec3{0, 10, 0})
	world := newTestWorld(sphere)

	world.Step(context.Background(), dt, nil)

	// Semi-implicit Euler: velocity first, then position
	expectedVelocity := -9.81 * dt
	if !floatEqual(sphere.Velocity.Y(), expectedVelocity, 1e-12) {
		t.Errorf("velocity = %v, want %v", sphere.Velocity.Y(), expectedVelocity)
	}
	if !floatEqual(sphere.Transform.Position.Y(), 10+expectedVelocity*dt, 1e-12) {
		t.Errorf("position = %v, want %v", sphere.Transform.Position.Y(), 10+expectedVelocity*dt)
	}
}

func TestWorld_RestingContact(t *testing.T) {
	ground := createGround()
	sphere := createTestBody(mgl64.Vec3{0, 1, 0})
	world := newTestWorld(ground, sphere)
	island := groundIsland(ground, sphere, 0)

	capture := &eventCapture{}
	capture.subscribeAll(&world.Events)

	mass := sphere.Material.GetMass()

	for i := range 3 {
		capture.reset()
		world.Step(context.Background(), dt, []*constraint.Island{island})

		if !floatEqual(sphere.Velocity.Y(), 0, 1e-9) {
			t.Errorf("step %d: velocity = %v, want 0", i, sphere.Velocity.Y())
		}
		if !floatEqual(sphere.Transform.Position.Y(), 1, 1e-9) {
			t.Errorf("step %d: position = %v, want 1", i, sphere.Transform.Position.Y())
		}

		if i == 0 && capture.countType(CONTACT_BEGIN) != 1 {
			t.Errorf("step %d: got %d begin events, want 1", i, capture.countType(CONTACT_BEGIN))
		}
		if i > 0 && capture.countType(CONTACT_PERSIST) != 1 {
			t.Errorf("step %d: got %d persist events, want 1", i, capture.countType(CONTACT_PERSIST))
		}

		if capture.countType(POST_SOLVE) != 1 {
			t.Fatalf("step %d: got %d post solve events, want 1", i, capture.countType(POST_SOLVE))
		}
		for _, event := range capture.events {
			if postSolve, ok := event.(PostSolveEvent); ok {
				// The ground holds the weight for one step
				if !floatEqual(postSolve.NormalImpulse, mass*9.81*dt, 1e-9) {
					t.Errorf("step %d: normal impulse = %v, want %v", i, postSolve.NormalImpulse, mass*9.81*dt)
				}
			}
		}
	}

	// The contact is gone
	capture.reset()
	world.Step(context.Background(), dt, nil)
	if capture.countType(CONTACT_END) != 1 {
		t.Errorf("got %d end events, want 1", capture.countType(CONTACT_END))
	}
}

func TestWorld_SplitImpulsePositionCorrection(t *testing.T) {
	ground := createGround()
	sphere := createTestBody(mgl64.Vec3{0, 0.9, 0})
	world := newTestWorld(ground, sphere)

	world.Step(context.Background(), dt, []*constraint.Island{groundIsland(ground, sphere, 0.1)})

	// Pushed out by β·(depth - slop) without gaining velocity
	expected := 0.9 + constraint.DefaultBetaSplitImpulse*(0.1-constraint.DefaultSlop)
	if !floatEqual(sphere.Transform.Position.Y(), expected, 1e-9) {
		t.Errorf("position = %v, want %v", sphere.Transform.Position.Y(), expected)
	}
	if !floatEqual(sphere.Velocity.Y(), 0, 1e-9) {
		t.Errorf("velocity = %v, want 0", sphere.Velocity.Y())
	}
}

func TestWorld_ParallelIslands(t *testing.T) {
	run := func(workers int) []mgl64.Vec3 {
		ground := createGround()
		var bodies []*actor.RigidBody
		var islands []*constraint.Island
		for i := range 6 {
			sphere := createTestBody(mgl64.Vec3{float64(i) * 3, 1, 0})
			sphere.Velocity = mgl64.Vec3{float64(i), -float64(i), 0}
			bodies = append(bodies, sphere)
			islands = append(islands, groundIsland(ground, sphere, 0.02*float64(i)))
		}

		world := newTestWorld(append([]*actor.RigidBody{ground}, bodies...)...)
		world.Workers = workers

		for range 5 {
			world.Step(context.Background(), dt, islands)
		}

		var results []mgl64.Vec3
		for _, body := range bodies {
			results = append(results, body.Velocity, body.Transform.Position)
		}

		return results
	}

	sequential := run(1)
	parallel := run(4)

	for i := range sequential {
		if sequential[i] != parallel[i] {
			t.Errorf("result %d differs: %v (1 worker) vs %v (4 workers)", i, sequential[i], parallel[i])
		}
	}
}

func TestWorld_EmptyIslandSkipped(t *testing.T) {
	sphere := createTestBody(mgl64.Vec3{0, 10, 0})
	world := newTestWorld(sphere)

	recorder := tracetest.NewSpanRecorder()
	world.Tracer = sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)).Tracer("test")

	world.Step(context.Background(), dt, []*constraint.Island{{Bodies: []*actor.RigidBody{sphere}}})

	for _, span := range recorder.Ended() {
		if span.Name() == "ContactSolver.Island" {
			t.Error("an island without manifolds should not be solved")
		}
	}
}

func TestWorld_Tracing(t *testing.T) {
	ground := createGround()
	sphere := createTestBody(mgl64.Vec3{0, 1, 0})
	world := newTestWorld(ground, sphere)

	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	world.Tracer = provider.Tracer("test")

	world.Step(context.Background(), dt, []*constraint.Island{groundIsland(ground, sphere, 0)})

	spans := make(map[string]sdktrace.ReadOnlySpan)
	for _, span := range recorder.Ended() {
		spans[span.Name()] = span
	}

	for _, name := range []string{
		"World.Step",
		"ContactSolver.Island",
		"ContactSolver.Initialize",
		"ContactSolver.WarmStart",
		"ContactSolver.Solve",
		"ContactSolver.StoreImpulses",
	} {
		if _, ok := spans[name]; !ok {
			t.Errorf("missing span %q", name)
		}
	}

	island, ok := spans["ContactSolver.Island"]
	if !ok {
		t.FailNow()
	}
	if island.Parent().SpanID() != spans["World.Step"].SpanContext().SpanID() {
		t.Error("island span should be a child of the step span")
	}
	if spans["ContactSolver.Solve"].Parent().SpanID() != island.SpanContext().SpanID() {
		t.Error("phase span should be a child of the island span")
	}

	found := false
	for _, kv := range island.Attributes() {
		if kv.Key == "ballast.contact_points" {
			found = true
			if kv.Value.AsInt64() != 1 {
				t.Errorf("ballast.contact_points = %d, want 1", kv.Value.AsInt64())
			}
		}
	}
	if !found {
		t.Error("island span has no contact point count")
	}
}

func TestWorld_RemoveBody(t *testing.T) {
	ground := createGround()
	sphere := createTestBody(mgl64.Vec3{0, 1, 0})
	world := newTestWorld(ground, sphere)

	capture := &eventCapture{}
	world.Events.Subscribe(CONTACT_END, capture.capture)

	world.Step(context.Background(), dt, []*constraint.Island{groundIsland(ground, sphere, 0)})
	world.RemoveBody(sphere)

	if len(world.Bodies) != 1 || world.Bodies[0] != ground {
		t.Fatalf("Bodies = %v, want only the ground", world.Bodies)
	}

	world.Step(context.Background(), dt, nil)
	if capture.count() != 0 {
		t.Errorf("got %d end events for a removed body, want 0", capture.count())
	}
}

func TestWorld_ZeroValue(t *testing.T) {
	sphere := createTestBody(mgl64.Vec3{0, 0, 0})
	world := &World{Gravity: mgl64.Vec3{0, -1, 0}}
	world.AddBody(sphere)

	world.Step(context.Background(), 1, nil)

	if sphere.Velocity != (mgl64.Vec3{0, -1, 0}) {
		t.Errorf("velocity = %v, want {0 -1 0}", sphere.Velocity)
	}
}

func TestWorld_ZeroValueContact(t *testing.T) {
	ground := createGround()
	sphere := createTestBody(mgl64.Vec3{0, 1, 0})
	world := &World{Gravity: mgl64.Vec3{0, -9.81, 0}}
	world.AddBody(ground)
	world.AddBody(sphere)

	world.Step(context.Background(), dt, []*constraint.Island{groundIsland(ground, sphere, 0)})

	if world.Settings != constraint.DefaultSettings() {
		t.Errorf("Settings = %+v, want the defaults", world.Settings)
	}
	if !floatEqual(sphere.Velocity.Y(), 0, 1e-9) {
		t.Errorf("velocity = %v, want 0", sphere.Velocity.Y())
	}
}

func TestWorld_Sleeping(t *testing.T) {
	ground := createGround()
	sphere := createTestBody(mgl64.Vec3{0, 1, 0})
	world := newTestWorld(ground, sphere)
	island := groundIsland(ground, sphere, 0)

	capture := &eventCapture{}
	capture.subscribeAll(&world.Events)

	for range 10 {
		world.Step(context.Background(), dt, []*constraint.Island{island})
	}

	if !sphere.IsSleeping {
		t.Fatal("resting sphere should fall asleep")
	}
	if capture.countType(ON_SLEEP) != 1 {
		t.Errorf("got %d sleep events, want 1", capture.countType(ON_SLEEP))
	}

	// A sleeping island is neither solved nor reported
	recorder := tracetest.NewSpanRecorder()
	world.Tracer = sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)).Tracer("test")
	capture.reset()
	position := sphere.Transform.Position

	world.Step(context.Background(), dt, []*constraint.Island{island})

	for _, span := range recorder.Ended() {
		if span.Name() == "ContactSolver.Island" {
			t.Error("a sleeping island should not be solved")
		}
	}
	if capture.count() != 0 {
		t.Errorf("got %d events from a sleeping island, want 0", capture.count())
	}
	if sphere.Transform.Position != position {
		t.Errorf("sleeping sphere moved from %v to %v", position, sphere.Transform.Position)
	}

	// Pushing the sphere wakes it up
	sphere.AddForce(mgl64.Vec3{100, 0, 0})
	world.Step(context.Background(), dt, []*constraint.Island{island})

	if sphere.IsSleeping {
		t.Error("pushed sphere should be awake")
	}
	if capture.countType(ON_WAKE) != 1 {
		t.Errorf("got %d wake events, want 1", capture.countType(ON_WAKE))
	}
	if sphere.Velocity.X() <= 0 || !floatEqual(sphere.Velocity.Y(), 0, 1e-9) {
		t.Errorf("velocity = %v, want sliding along x on the ground", sphere.Velocity)
	}
}

func TestWorld_WakeIsland(t *testing.T) {
	ground := createGround()
	sleeper := createTestBody(mgl64.Vec3{0, 1, 0})
	sleeper.Sleep()
	falling := createTestBody(mgl64.Vec3{0, 3, 0})
	falling.Velocity = mgl64.Vec3{0, -2, 0}
	world := newTestWorld(ground, sleeper, falling)

	contact := mgl64.Vec3{0, 2, 0}
	island := groundIsland(ground, sleeper, 0)
	island.Bodies = append(island.Bodies, falling)
	island.Manifolds = append(island.Manifolds, &constraint.ContactManifold{
		BodyA: sleeper,
		BodyB: falling,
		Points: []constraint.ContactPoint{
			{WorldPointA: contact, WorldPointB: contact, Normal: mgl64.Vec3{0, 1, 0}},
		},
	})

	world.Step(context.Background(), dt, []*constraint.Island{island})

	if sleeper.IsSleeping {
		t.Error("a body hit by a moving body should wake up")
	}
	if island.Manifolds[1].Points[0].PenetrationImpulse <= 0 {
		t.Error("the contact with the woken body was not solved")
	}
	if falling.Velocity.Y() < -0.1 {
		t.Errorf("falling sphere was not stopped by the sleeper: velocity %v", falling.Velocity)
	}
}

func TestWorld_Trigger(t *testing.T) {
	sensor := createGround()
	sensor.IsTrigger = true
	sphere := createTestBody(mgl64.Vec3{0, 1, 0})
	world := newTestWorld(sensor, sphere)
	island := groundIsland(sensor, sphere, 0)

	capture := &eventCapture{}
	capture.subscribeAll(&world.Events)

	world.Step(context.Background(), dt, []*constraint.Island{island})

	// Triggers never push
	if !floatEqual(sphere.Velocity.Y(), -9.81*dt, 1e-12) {
		t.Errorf("velocity = %v, want free fall %v", sphere.Velocity.Y(), -9.81*dt)
	}
	if island.Manifolds[0].Points[0].IsResting || island.Manifolds[0].Points[0].PenetrationImpulse != 0 {
		t.Error("trigger manifold should not reach the solver")
	}
	if capture.countType(TRIGGER_ENTER) != 1 || capture.countType(CONTACT_BEGIN) != 0 || capture.countType(POST_SOLVE) != 0 {
		t.Errorf("events = %v, want a single trigger enter", capture.events)
	}

	capture.reset()
	world.Step(context.Background(), dt, []*constraint.Island{island})
	if capture.countType(TRIGGER_STAY) != 1 {
		t.Errorf("got %d trigger stay events, want 1", capture.countType(TRIGGER_STAY))
	}

	capture.reset()
	world.Step(context.Background(), dt, nil)
	if capture.countType(TRIGGER_EXIT) != 1 || capture.countType(CONTACT_END) != 0 {
		t.Errorf("events = %v, want a single trigger exit", capture.events)
	}
}
