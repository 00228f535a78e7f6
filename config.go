package ballast

import (
	"errors"
	"fmt"

	"github.com/akmonengine/ballast/constraint"
	"github.com/caarlos0/env/v11"
	"github.com/go-gl/mathgl/mgl64"
)

var (
	ErrInvalidIterations = errors.New("solver iterations must be positive")
	ErrInvalidWorkers    = errors.New("workers must be at least 1")
	ErrInvalidGravity    = errors.New("gravity must have 3 components")
	ErrInvalidTimeStep   = errors.New("time step must be positive")
	ErrInvalidSleep      = errors.New("sleep thresholds must not be negative")
)

// Config holds the world and contact solver settings, loaded from the environment.
type Config struct {
	Iterations                   int       `env:"BALLAST_SOLVER_ITERATIONS" envDefault:"10"`
	SplitImpulse                 bool      `env:"BALLAST_SPLIT_IMPULSE" envDefault:"true"`
	Beta                         float64   `env:"BALLAST_BETA" envDefault:"0.2"`
	BetaSplitImpulse             float64   `env:"BALLAST_BETA_SPLIT_IMPULSE" envDefault:"0.2"`
	Slop                         float64   `env:"BALLAST_SLOP" envDefault:"0.01"`
	RestitutionVelocityThreshold float64   `env:"BALLAST_RESTITUTION_VELOCITY_THRESHOLD" envDefault:"1.0"`
	Workers                      int       `env:"BALLAST_WORKERS" envDefault:"1"`
	Gravity                      []float64 `env:"BALLAST_GRAVITY" envDefault:"0,-9.81,0"`
	TimeStep                     float64   `env:"BALLAST_TIME_STEP" envDefault:"0.016666666666666666"`
	SleepTimeThreshold           float64   `env:"BALLAST_SLEEP_TIME_THRESHOLD" envDefault:"0.1"`
	SleepVelocityThreshold       float64   `env:"BALLAST_SLEEP_VELOCITY_THRESHOLD" envDefault:"0.05"`
}

// DefaultConfig returns the configuration used when no variable is set
func DefaultConfig() Config {
	return Config{
		Iterations:                   constraint.DefaultIterations,
		SplitImpulse:                 true,
		Beta:                         constraint.DefaultBeta,
		BetaSplitImpulse:             constraint.DefaultBetaSplitImpulse,
		Slop:                         constraint.DefaultSlop,
		RestitutionVelocityThreshold: constraint.DefaultRestitutionVelocityThreshold,
		Workers:                      DEFAULT_WORKERS,
		Gravity:                      []float64{0, -9.81, 0},
		TimeStep:                     1.0 / 60.0,
		SleepTimeThreshold:           DEFAULT_SLEEP_TIME_THRESHOLD,
		SleepVelocityThreshold:       DEFAULT_SLEEP_VELOCITY_THRESHOLD,
	}
}

// ParseConfig loads the configuration from BALLAST_* environment variables.
func ParseConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

func (cfg Config) Validate() error {
	if cfg.Iterations <= 0 {
		return fmt.Errorf("%w, got %d", ErrInvalidIterations, cfg.Iterations)
	}
	if cfg.Workers < 1 {
		return fmt.Errorf("%w, got %d", ErrInvalidWorkers, cfg.Workers)
	}
	if len(cfg.Gravity) != 3 {
		return fmt.Errorf("%w, got %v", ErrInvalidGravity, cfg.Gravity)
	}
	if cfg.TimeStep <= 0 {
		return fmt.Errorf("%w, got %v", ErrInvalidTimeStep, cfg.TimeStep)
	}
	if cfg.SleepTimeThreshold < 0 || cfg.SleepVelocityThreshold < 0 {
		return fmt.Errorf("%w, got %v s and %v m/s", ErrInvalidSleep, cfg.SleepTimeThreshold, cfg.SleepVelocityThreshold)
	}

	return nil
}

// Settings converts the configuration into contact solver settings
func (cfg Config) Settings() constraint.Settings {
	return constraint.Settings{
		Iterations:                   cfg.Iterations,
		SplitImpulse:                 cfg.SplitImpulse,
		Beta:                         cfg.Beta,
		BetaSplitImpulse:             cfg.BetaSplitImpulse,
		Slop:                         cfg.Slop,
		RestitutionVelocityThreshold: cfg.RestitutionVelocityThreshold,
	}
}

// GravityVec returns the gravity acceleration, zero when not configured
func (cfg Config) GravityVec() mgl64.Vec3 {
	if len(cfg.Gravity) != 3 {
		return mgl64.Vec3{}
	}

	return mgl64.Vec3{cfg.Gravity[0], cfg.Gravity[1], cfg.Gravity[2]}
}
