// Package engine composes the core: it turns a parsed scenario into
// normalized timelines for both bodies (synthesizing Earth analytically when
// the payload carries no Earth samples), owns the active simulation, and
// hands out per-owner playback clocks.
package engine

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/LordOfTheToroids/Quack-Meteor-Madness/internal/diagnostics"
	"github.com/LordOfTheToroids/Quack-Meteor-Madness/internal/metrics"
	"github.com/LordOfTheToroids/Quack-Meteor-Madness/internal/orbit"
	"github.com/LordOfTheToroids/Quack-Meteor-Madness/internal/playback"
	"github.com/LordOfTheToroids/Quack-Meteor-Madness/internal/scenario"
	"github.com/LordOfTheToroids/Quack-Meteor-Madness/internal/timeline"
	"github.com/LordOfTheToroids/Quack-Meteor-Madness/internal/units"
)

// Config holds the engine tunables.
type Config struct {
	// ScaleFactor is display units per kilometer.
	ScaleFactor float64

	// MetersThreshold overrides the unit classification threshold.
	// Zero keeps the default.
	MetersThreshold float64

	// OrbitPathPoints is the sample count for static orbit paths.
	OrbitPathPoints int

	// DurationMs is the nominal wall-clock time to animate progress 0→1.
	DurationMs float64

	// IdleRate is the idle fallback speed in simulated seconds per wall
	// second. Zero keeps the default (one day per second).
	IdleRate float64
}

// Simulation is the immutable product of loading one scenario. Replaced
// wholesale when new simulation data arrives; consumers holding an old
// pointer keep a consistent view until they re-read.
type Simulation struct {
	Scenario *scenario.Scenario

	Asteroid *timeline.Timeline
	Earth    *timeline.Timeline

	// AsteroidOrbit is the analytic propagator built from the payload
	// metadata; nil when the metadata was absent or invalid.
	AsteroidOrbit *orbit.Propagator

	// EarthOrbit is the fixed analytic Earth model.
	EarthOrbit *orbit.Propagator

	Span playback.TimeSpan
}

// Report is the diagnostics output for the active simulation.
type Report struct {
	AsteroidID string              `json:"asteroid_id"`
	Asteroid   *diagnostics.Report `json:"asteroid,omitempty"`
	Earth      *diagnostics.Report `json:"earth,omitempty"`
	Approach   *ApproachReport     `json:"closest_approach,omitempty"`
}

// ApproachReport describes the minimum separation over synchronized samples.
type ApproachReport struct {
	Index      int     `json:"index"`
	DistanceKm float64 `json:"distance_km"`
	Progress   float64 `json:"progress"`
}

// Engine owns the active simulation and the shared normalization policy.
type Engine struct {
	cfg    Config
	norm   units.Normalizer
	store  *scenario.Store
	logger *slog.Logger

	earthOrbit *orbit.Propagator
	sim        atomic.Pointer[Simulation]
}

// New creates an Engine. The analytic Earth model is constructed once here;
// its elements are fixed constants, so failure is a programming error.
func New(cfg Config, store *scenario.Store, logger *slog.Logger) (*Engine, error) {
	if cfg.ScaleFactor <= 0 {
		return nil, fmt.Errorf("engine: scale factor must be positive, got %g", cfg.ScaleFactor)
	}
	norm := units.NewNormalizer(cfg.ScaleFactor)
	if cfg.MetersThreshold > 0 {
		norm.MetersThreshold = cfg.MetersThreshold
	}

	earth, err := orbit.NewPropagator(orbit.EarthElements())
	if err != nil {
		return nil, fmt.Errorf("engine: earth model: %w", err)
	}

	return &Engine{
		cfg:        cfg,
		norm:       norm,
		store:      store,
		logger:     logger,
		earthOrbit: earth,
	}, nil
}

// Normalizer returns the engine's unit normalizer.
func (e *Engine) Normalizer() units.Normalizer {
	return e.norm
}

// Current returns the active simulation, or nil before the first load.
func (e *Engine) Current() *Simulation {
	return e.sim.Load()
}

// Load builds a Simulation from the scenario and atomically replaces the
// active one. The new simulation is fully constructed before the swap, so no
// partial state is ever visible to consumers.
func (e *Engine) Load(sc *scenario.Scenario) (*Simulation, error) {
	if sc == nil || len(sc.AsteroidPositions) == 0 {
		return nil, fmt.Errorf("engine: scenario has no asteroid samples")
	}

	start := time.Now()
	builder := timeline.NewBuilder(e.norm)

	asteroidTL := builder.Build(sc.AsteroidPositions, sc.Timestamps, sc.AsteroidVelocities)
	earthTL := e.buildEarthTimeline(builder, sc)

	sim := &Simulation{
		Scenario:   sc,
		Asteroid:   asteroidTL,
		Earth:      earthTL,
		EarthOrbit: e.earthOrbit,
	}

	if !sc.AsteroidOrbit.Zero() {
		prop, err := orbit.NewPropagator(sc.AsteroidOrbit.Elements())
		if err != nil {
			// Bad metadata degrades the idle/orbit-path features but does
			// not reject the sampled trajectory.
			e.logger.Warn("asteroid orbit metadata rejected", "asteroid_id", sc.AsteroidID, "error", err)
		} else {
			sim.AsteroidOrbit = prop
		}
	}

	// Derive the global span the way a clock would see it.
	probe := playback.NewClock(e.cfg.DurationMs, e.norm)
	probe.LoadTimelines(asteroidTL, earthTL)
	sim.Span = probe.Span()

	e.store.Set(sc)
	e.sim.Store(sim)

	metrics.ObserveTimelineBuild(time.Since(start))
	metrics.SetTimelinePoints("asteroid", asteroidTL.Len())
	metrics.SetTimelinePoints("earth", earthTL.Len())

	e.logger.Info("scenario loaded",
		"asteroid_id", sc.AsteroidID,
		"asteroid_points", asteroidTL.Len(),
		"earth_points", earthTL.Len(),
		"earth_synthesized", sc.EarthPositions == nil,
		"span_valid", sim.Span.Valid,
		"source", sc.Source,
	)

	return sim, nil
}

// buildEarthTimeline uses the payload's Earth samples when present, otherwise
// synthesizes them by propagating the analytic Earth model at the asteroid's
// own timestamps so both bodies share one comparable timeline.
func (e *Engine) buildEarthTimeline(builder timeline.Builder, sc *scenario.Scenario) *timeline.Timeline {
	if sc.EarthPositions != nil {
		return builder.Build(sc.EarthPositions, sc.Timestamps, sc.EarthVelocities)
	}

	var states []orbit.State
	if sc.Timestamps != nil {
		states = e.earthOrbit.SampleAtTimes(sc.Timestamps)
	} else {
		// Untimed asteroid samples: spread Earth evenly over one period with
		// the same sample count so progress alignment still holds.
		states = e.earthOrbit.SampleTimed(len(sc.AsteroidPositions))
	}

	positions := make([]orbit.Vec3, len(states))
	velocities := make([]orbit.Vec3, len(states))
	for i, st := range states {
		positions[i] = st.Position
		velocities[i] = st.Velocity
	}
	return builder.Build(positions, sc.Timestamps, velocities)
}

// NewClock returns a playback clock for a single owner, preloaded with the
// active simulation's timelines and idle bodies. The caller owns the clock
// exclusively.
func (e *Engine) NewClock() *playback.Clock {
	clock := playback.NewClock(e.cfg.DurationMs, e.norm)
	if e.cfg.IdleRate > 0 {
		clock.SetIdleRate(e.cfg.IdleRate)
	}

	sim := e.sim.Load()
	if sim == nil {
		clock.SetIdleBodies(nil, e.earthOrbit)
		return clock
	}
	clock.SetIdleBodies(sim.AsteroidOrbit, sim.EarthOrbit)
	clock.LoadTimelines(sim.Asteroid, sim.Earth)
	return clock
}

// FrameAt samples both bodies of the active simulation at progress p without
// any playback state. ok is false before the first load.
func (e *Engine) FrameAt(p float64) (playback.Frame, bool) {
	sim := e.sim.Load()
	if sim == nil {
		return playback.Frame{}, false
	}
	clock := playback.NewClock(e.cfg.DurationMs, e.norm)
	clock.LoadTimelines(sim.Asteroid, sim.Earth)
	return clock.FrameAt(p), true
}

// OrbitPath returns the static full-orbit path for "asteroid" or "earth" in
// display units. ok is false for an unknown body or when the asteroid has no
// usable orbit metadata.
func (e *Engine) OrbitPath(body string) ([]orbit.Vec3, bool) {
	var prop *orbit.Propagator
	switch body {
	case "earth":
		prop = e.earthOrbit
	case "asteroid":
		sim := e.sim.Load()
		if sim == nil || sim.AsteroidOrbit == nil {
			return nil, false
		}
		prop = sim.AsteroidOrbit
	default:
		return nil, false
	}

	raw := prop.SampleOrbit(e.cfg.OrbitPathPoints)
	path := make([]orbit.Vec3, len(raw))
	for i, p := range raw {
		path[i] = e.norm.KilometersToDisplay(p)
	}
	return path, true
}

// Diagnostics analyzes the active simulation's point clouds against the
// authoritative metadata. ok is false before the first load or when the
// asteroid cloud is too small to analyze.
func (e *Engine) Diagnostics() (*Report, bool) {
	sim := e.sim.Load()
	if sim == nil {
		return nil, false
	}

	report := &Report{AsteroidID: sim.Scenario.AsteroidID}

	asteroidPts := positionsOf(sim.Asteroid)
	var ref *diagnostics.Reference
	if meta := sim.Scenario.AsteroidOrbit; !meta.Zero() {
		ref = &diagnostics.Reference{
			SemiMajorAxisKm: meta.AAU * orbit.AUKilometers,
			Eccentricity:    meta.E,
			PerihelionKm:    meta.QAU * orbit.AUKilometers,
			AphelionKm:      meta.QApAU * orbit.AUKilometers,
		}
	}
	asteroidReport, ok := diagnostics.Analyze(asteroidPts, e.norm, ref)
	if !ok {
		return nil, false
	}
	report.Asteroid = asteroidReport

	earthPts := positionsOf(sim.Earth)
	el := e.earthOrbit.Elements()
	earthRef := &diagnostics.Reference{
		SemiMajorAxisKm: el.SemiMajorAxisKm,
		Eccentricity:    el.Eccentricity,
		PerihelionKm:    el.PerihelionKm(),
		AphelionKm:      el.AphelionKm(),
	}
	if earthReport, ok := diagnostics.Analyze(earthPts, e.norm, earthRef); ok {
		report.Earth = earthReport
	}

	if idx, dist, ok := diagnostics.ClosestApproach(asteroidPts, earthPts); ok {
		// The timeline is timestamp-parameterized, so the sample's own T is
		// the progress that lands playback on the approach pair; an index
		// ratio only agrees with it for uniformly spaced timestamps.
		report.Approach = &ApproachReport{
			Index:      idx,
			DistanceKm: e.norm.ToKilometers(orbit.Vec3{X: dist}).X,
			Progress:   sim.Asteroid.Points()[idx].T,
		}
	}

	return report, true
}

func positionsOf(tl *timeline.Timeline) []orbit.Vec3 {
	pts := tl.Points()
	out := make([]orbit.Vec3, len(pts))
	for i, p := range pts {
		out[i] = p.Position
	}
	return out
}
