package constraint

// Arena is a step-scoped scratch allocator for solver structures.
// The caller sizes it with Reserve and clears it with Reset once per step;
// the solver only bump-allocates views out of it.
type Arena struct {
	manifolds []ContactManifoldSolver
	points    []ContactPointSolver

	nbManifolds int
	nbPoints    int
}

// NewArena creates an arena able to hold the given number of manifolds and points
func NewArena(manifolds, points int) *Arena {
	return &Arena{
		manifolds: make([]ContactManifoldSolver, manifolds),
		points:    make([]ContactPointSolver, points),
	}
}

// Reserve grows the arena so that it can hold at least the given counts.
// Views handed out before are invalidated, so it must follow a Reset.
func (a *Arena) Reserve(manifolds, points int) {
	assert(a.nbManifolds == 0 && a.nbPoints == 0, "arena reserved while in use")

	if manifolds > len(a.manifolds) {
		a.manifolds = make([]ContactManifoldSolver, manifolds)
	}
	if points > len(a.points) {
		a.points = make([]ContactPointSolver, points)
	}
}

// Reset releases every allocation at once
func (a *Arena) Reset() {
	clear(a.manifolds[:a.nbManifolds])
	clear(a.points[:a.nbPoints])
	a.nbManifolds = 0
	a.nbPoints = 0
}

// Cap returns the manifold and point capacity
func (a *Arena) Cap() (int, int) {
	return len(a.manifolds), len(a.points)
}

// Used returns the number of manifolds and points allocated since the last Reset
func (a *Arena) Used() (int, int) {
	return a.nbManifolds, a.nbPoints
}

func (a *Arena) allocManifolds(n int) []ContactManifoldSolver {
	start := a.nbManifolds
	end := start + n
	assert(end <= len(a.manifolds), "arena exhausted: %d manifolds requested, %d available", n, len(a.manifolds)-start)
	a.nbManifolds = end

	return a.manifolds[start:end:end]
}

func (a *Arena) allocPoints(n int) []ContactPointSolver {
	start := a.nbPoints
	end := start + n
	assert(end <= len(a.points), "arena exhausted: %d points requested, %d available", n, len(a.points)-start)
	a.nbPoints = end

	return a.points[start:end:end]
}
