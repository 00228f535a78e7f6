package constraint

const (
	// DefaultIterations is the number of velocity sweeps per step
	DefaultIterations = 10

	// DefaultBeta is the Baumgarte factor: fraction of the penetration
	// (beyond the slop) corrected per step through velocity
	DefaultBeta = 0.2

	// DefaultBetaSplitImpulse is the Baumgarte factor of the split impulse pass
	DefaultBetaSplitImpulse = 0.2

	// DefaultSlop is the penetration tolerated without correction (m)
	DefaultSlop = 0.01

	// DefaultRestitutionVelocityThreshold is the closing speed (m/s) under
	// which contacts are treated as resting and do not bounce
	DefaultRestitutionVelocityThreshold = 1.0
)

// Settings tunes the contact solver
type Settings struct {
	Iterations                   int
	SplitImpulse                 bool
	Beta                         float64
	BetaSplitImpulse             float64
	Slop                         float64
	RestitutionVelocityThreshold float64
}

func DefaultSettings() Settings {
	return Settings{
		Iterations:                   DefaultIterations,
		SplitImpulse:                 true,
		Beta:                         DefaultBeta,
		BetaSplitImpulse:             DefaultBetaSplitImpulse,
		Slop:                         DefaultSlop,
		RestitutionVelocityThreshold: DefaultRestitutionVelocityThreshold,
	}
}
