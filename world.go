package ballast

import (
	"context"

	"github.com/akmonengine/ballast/actor"
	"github.com/akmonengine/ballast/constraint"
	"github.com/go-gl/mathgl/mgl64"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	DEFAULT_WORKERS = 1

	DEFAULT_SLEEP_TIME_THRESHOLD     = 0.1
	DEFAULT_SLEEP_VELOCITY_THRESHOLD = 0.05
)

const tracerName = "github.com/akmonengine/ballast"

type World struct {
	// List of all rigid bodies in the world
	Bodies []*actor.RigidBody
	// Gravity acceleration (m/s², or N/kg)
	Gravity  mgl64.Vec3
	Settings constraint.Settings
	Workers  int

	// Bodies slower than SleepVelocityThreshold for SleepTimeThreshold
	// seconds fall asleep. A zero time threshold disables sleeping.
	SleepTimeThreshold     float64
	SleepVelocityThreshold float64

	Events Events
	Tracer trace.Tracer

	// Step scratch, reused across steps
	bodyIndex       constraint.BodyIndex
	velocities      constraint.Velocities
	splitVelocities constraint.Velocities
	arenas          []*constraint.Arena
}

// NewWorld creates an empty world from the configuration.
// Spans go to the global tracer provider, a no-op until one is registered.
func NewWorld(cfg Config) *World {
	return &World{
		Gravity:                cfg.GravityVec(),
		Settings:               cfg.Settings(),
		Workers:                cfg.Workers,
		SleepTimeThreshold:     cfg.SleepTimeThreshold,
		SleepVelocityThreshold: cfg.SleepVelocityThreshold,
		Events:                 NewEvents(),
		Tracer:                 otel.Tracer(tracerName),
		bodyIndex:              make(constraint.BodyIndex),
	}
}

// AddBody adds a rigid body to the world
func (w *World) AddBody(body *actor.RigidBody) {
	w.Bodies = append(w.Bodies, body)
}

// RemoveBody removes a rigid body from the world
func (w *World) RemoveBody(body *actor.RigidBody) {
	k := -1
	for i, b := range w.Bodies {
		if b == body {
			k = i
			break
		}
	}

	if k != -1 {
		w.Bodies = append(w.Bodies[:k], w.Bodies[k+1:]...)
	}

	delete(w.bodyIndex, body)
	w.Events.forget(body)
}

// islandJob pairs an island with the arena its solver allocates from
type islandJob struct {
	island *constraint.Island
	arena  *constraint.Arena
}

// Step advances the world by dt. islands are the contact groups found by
// the caller for the current body positions; they may share static and
// kinematic bodies but never a dynamic one.
// Impulses stored in the manifolds warm start the next step. Manifolds with
// a trigger body only raise trigger events, and islands whose bodies all
// sleep are not solved.
func (w *World) Step(ctx context.Context, dt float64, islands []*constraint.Island) {
	if w.Tracer == nil {
		w.Tracer = otel.Tracer(tracerName)
	}
	if w.Events.listeners == nil {
		w.Events = NewEvents()
	}
	if w.Settings.Iterations <= 0 {
		w.Settings = constraint.DefaultSettings()
	}

	ctx, span := w.Tracer.Start(ctx, "World.Step", trace.WithAttributes(
		attribute.Int("ballast.bodies", len(w.Bodies)),
		attribute.Int("ballast.islands", len(islands)),
	))
	defer span.End()

	w.Workers = max(DEFAULT_WORKERS, w.Workers)

	// Phase 1: dense body indices for the velocity arrays
	w.indexBodies()

	solid := w.Events.recordContacts(islands)
	awake := w.wakeIslands(solid)

	// Phase 2: gravity, forces and damping
	w.integrateVelocities(dt)

	// Phase 3: contact solver, islands are spread over the workers
	w.solveIslands(ctx, dt, awake)

	// Phase 4: positions move with velocity plus position correction
	w.integratePositions(dt)

	w.Events.recordPostSolve(awake)

	w.trySleep(dt)
	w.Events.processSleepEvents(w.Bodies)
	w.Events.flush()
}

func (w *World) indexBodies() {
	if w.bodyIndex == nil {
		w.bodyIndex = make(constraint.BodyIndex, len(w.Bodies))
	}
	clear(w.bodyIndex)
	for i, body := range w.Bodies {
		w.bodyIndex[body] = i
	}

	n := len(w.Bodies)
	if w.velocities.Len() < n {
		w.velocities = constraint.NewVelocities(n)
		w.splitVelocities = constraint.NewVelocities(n)
	}
	w.velocities = constraint.Velocities{Linear: w.velocities.Linear[:n], Angular: w.velocities.Angular[:n]}
	w.splitVelocities = constraint.Velocities{Linear: w.splitVelocities.Linear[:n], Angular: w.splitVelocities.Angular[:n]}
	w.splitVelocities.Reset()
}

// wakeIslands wakes every body of an island touched by a moving body, and
// returns the islands left to solve. Islands without manifolds are dropped.
func (w *World) wakeIslands(islands []*constraint.Island) []*constraint.Island {
	awake := make([]*constraint.Island, 0, len(islands))

	for _, island := range islands {
		// Nothing to solve
		if len(island.Manifolds) == 0 {
			continue
		}

		if !isIslandMoving(island) {
			continue
		}

		for _, body := range island.Bodies {
			if body.IsSleeping {
				body.Awake()
			}
		}
		awake = append(awake, island)
	}

	return awake
}

func isIslandMoving(island *constraint.Island) bool {
	for _, body := range island.Bodies {
		switch body.BodyType {
		case actor.BodyTypeDynamic:
			if !body.IsSleeping {
				return true
			}
		case actor.BodyTypeKinematic:
			if body.Velocity != (mgl64.Vec3{}) || body.AngularVelocity != (mgl64.Vec3{}) {
				return true
			}
		}
	}

	return false
}

func (w *World) integrateVelocities(dt float64) {
	task(w.Workers, w.Bodies, func(body *actor.RigidBody) {
		i := w.bodyIndex[body]
		w.velocities.Linear[i], w.velocities.Angular[i] = body.IntegrateVelocity(dt, w.Gravity)
	})
}

func (w *World) solveIslands(ctx context.Context, dt float64, islands []*constraint.Island) {
	jobs := make([]islandJob, 0, len(islands))
	for _, island := range islands {
		if len(w.arenas) <= len(jobs) {
			w.arenas = append(w.arenas, constraint.NewArena(0, 0))
		}
		arena := w.arenas[len(jobs)]
		arena.Reset()
		arena.Reserve(len(island.Manifolds), island.NbContactPoints())

		jobs = append(jobs, islandJob{island: island, arena: arena})
	}

	task(w.Workers, jobs, func(job islandJob) {
		solver := constraint.NewContactSolver(w.bodyIndex, job.arena, w.Settings)
		solver.SetVelocities(w.velocities)
		solver.SetSplitVelocities(w.splitVelocities)

		w.solveIsland(ctx, solver, dt, job.island)
	})
}

// solveIsland runs the solver phases, each in its own span
func (w *World) solveIsland(ctx context.Context, solver constraint.Solver, dt float64, island *constraint.Island) {
	ctx, span := w.Tracer.Start(ctx, "ContactSolver.Island", trace.WithAttributes(
		attribute.Int("ballast.bodies", len(island.Bodies)),
		attribute.Int("ballast.manifolds", len(island.Manifolds)),
		attribute.Int("ballast.contact_points", island.NbContactPoints()),
	))
	defer span.End()

	w.phase(ctx, "ContactSolver.Initialize", func() { solver.Initialize(dt, island) })
	w.phase(ctx, "ContactSolver.WarmStart", solver.WarmStart)
	w.phase(ctx, "ContactSolver.Solve", solver.Solve)
	w.phase(ctx, "ContactSolver.StoreImpulses", solver.StoreImpulses)
}

func (w *World) phase(ctx context.Context, name string, fn func()) {
	_, span := w.Tracer.Start(ctx, name)
	defer span.End()

	fn()
}

func (w *World) integratePositions(dt float64) {
	task(w.Workers, w.Bodies, func(body *actor.RigidBody) {
		i := w.bodyIndex[body]
		v := w.velocities.Linear[i]
		omega := w.velocities.Angular[i]

		body.IntegratePosition(dt, v.Add(w.splitVelocities.Linear[i]), omega.Add(w.splitVelocities.Angular[i]))
		body.Velocity = v
		body.AngularVelocity = omega
	})
}

// trySleep sets the bodies to sleep once they stayed slow long enough.
// This loop is too cheap to be worth a task.
func (w *World) trySleep(dt float64) {
	if w.SleepTimeThreshold <= 0 {
		return
	}

	for _, body := range w.Bodies {
		body.TrySleep(dt, w.SleepTimeThreshold, w.SleepVelocityThreshold)
	}
}
