// Package playback owns the shared progress state that keeps both bodies'
// timelines in lock-step. A Clock advances progress in real time while
// playing and produces an immutable Frame snapshot per tick; all sampling
// within a tick uses the single progress value computed at the start of that
// tick, so asteroid and Earth positions are always mutually consistent for a
// given rendered frame.
//
// A Clock has exactly one writer. It is not safe for concurrent use; every
// owner (an SSE connection, a render loop, a test) holds its own instance.
package playback

import (
	"errors"

	"github.com/LordOfTheToroids/Quack-Meteor-Madness/internal/orbit"
	"github.com/LordOfTheToroids/Quack-Meteor-Madness/internal/timeline"
	"github.com/LordOfTheToroids/Quack-Meteor-Madness/internal/units"
)

// DefaultDurationMs is the nominal wall-clock time to animate progress 0→1.
const DefaultDurationMs = 20000.0

// ErrNoTimelines is returned by Play when no timeline is loaded.
var ErrNoTimelines = errors.New("playback: no timelines loaded")

// State is the externally visible playback state.
type State struct {
	Progress   float64
	IsPlaying  bool
	DurationMs float64
}

// TimeSpan is the min/max timestamp across all present timelines. Valid is
// false when no timeline carries at least two timestamped samples, in which
// case playback falls back to a frame-index interpretation with no physical
// time label.
type TimeSpan struct {
	Start float64
	End   float64
	Valid bool
}

// Frame is the immutable per-tick snapshot consumed by the renderer. Each
// tick produces a fresh Frame; nothing is mutated through long-lived handles.
type Frame struct {
	Progress   float64
	Asteroid   timeline.Value
	AsteroidOK bool
	Earth      timeline.Value
	EarthOK    bool

	// SimTime is the global timestamp derived from the shared progress and
	// the time span; meaningful only when HasSimTime.
	SimTime    float64
	HasSimTime bool

	// Idle reports that the frame came from the idle fallback animation
	// rather than loaded timelines.
	Idle bool
}

// Clock drives synchronized playback over up to two timelines.
type Clock struct {
	asteroid *timeline.Timeline
	earth    *timeline.Timeline

	state State
	span  TimeSpan

	// Idle fallback: analytic motion driven by an accelerated wall clock,
	// independent of progress.
	idleAsteroid *orbit.Propagator
	idleEarth    *orbit.Propagator
	idleRate     float64 // simulated seconds per wall millisecond
	idleSimSec   float64
	norm         units.Normalizer
}

// NewClock creates a clock with the given nominal duration. durationMs <= 0
// falls back to DefaultDurationMs.
func NewClock(durationMs float64, norm units.Normalizer) *Clock {
	if durationMs <= 0 {
		durationMs = DefaultDurationMs
	}
	return &Clock{
		state: State{DurationMs: durationMs},
		norm:  norm,
		// One simulated day per rendered second.
		idleRate: 86400.0 / 1000.0,
	}
}

// SetIdleBodies configures the propagators used for idle fallback motion
// when no timelines are loaded. Either may be nil.
func (c *Clock) SetIdleBodies(asteroid, earth *orbit.Propagator) {
	c.idleAsteroid = asteroid
	c.idleEarth = earth
}

// SetIdleRate overrides the idle animation speed, in simulated seconds per
// wall second. Non-positive values are ignored.
func (c *Clock) SetIdleRate(simSecondsPerWallSecond float64) {
	if simSecondsPerWallSecond > 0 {
		c.idleRate = simSecondsPerWallSecond / 1000.0
	}
}

// SetDuration overrides the nominal wall-clock duration for one full
// playback pass. Non-positive values are ignored.
func (c *Clock) SetDuration(durationMs float64) {
	if durationMs > 0 {
		c.state.DurationMs = durationMs
	}
}

// LoadTimelines installs new timelines, atomically discarding prior playback
// state: progress resets to 0, playback pauses, and the global time span is
// recomputed. Either timeline may be nil or empty.
func (c *Clock) LoadTimelines(asteroid, earth *timeline.Timeline) {
	c.asteroid = asteroid
	c.earth = earth
	c.state.Progress = 0
	c.state.IsPlaying = false
	c.span = computeSpan(asteroid, earth)
}

// Clear removes all timelines and resets playback state.
func (c *Clock) Clear() {
	c.LoadTimelines(nil, nil)
}

// Loaded reports whether at least one non-empty timeline is present.
func (c *Clock) Loaded() bool {
	return !c.asteroid.Empty() || !c.earth.Empty()
}

// State returns the current playback state.
func (c *Clock) State() State {
	return c.state
}

// Span returns the global time span across the loaded timelines.
func (c *Clock) Span() TimeSpan {
	return c.span
}

// Play transitions Idle/Paused → Playing. It fails if no timeline is loaded.
func (c *Clock) Play() error {
	if !c.Loaded() {
		return ErrNoTimelines
	}
	c.state.IsPlaying = true
	return nil
}

// Pause transitions Playing → Paused.
func (c *Clock) Pause() {
	c.state.IsPlaying = false
}

// Seek sets progress directly (clamped to [0,1]). A manual seek while
// playing pauses playback, matching scrub semantics.
func (c *Clock) Seek(p float64) {
	c.state.Progress = clamp01(p)
	c.state.IsPlaying = false
}

// Tick advances the clock by deltaMs of wall time and returns the frame for
// the resulting progress value. While playing, progress advances by
// deltaMs/durationMs; reaching progress >= 1 wraps to 0 and playback
// continues (looping, not stopping). When no timelines are loaded the clock
// serves the idle fallback animation instead.
func (c *Clock) Tick(deltaMs float64) Frame {
	if !c.Loaded() {
		return c.tickIdle(deltaMs)
	}

	if c.state.IsPlaying && deltaMs > 0 {
		p := c.state.Progress + deltaMs/c.state.DurationMs
		if p >= 1 {
			p = 0
		}
		c.state.Progress = p
	}

	// Progress is fixed for the remainder of the tick; both bodies sample
	// the identical value.
	return c.FrameAt(c.state.Progress)
}

// FrameAt samples both timelines at progress p without touching playback
// state. Pure with respect to the loaded timelines; used for scrubbing.
func (c *Clock) FrameAt(p float64) Frame {
	p = clamp01(p)
	f := Frame{Progress: p}
	f.Asteroid, f.AsteroidOK = c.asteroid.Sample(p)
	f.Earth, f.EarthOK = c.earth.Sample(p)
	if c.span.Valid {
		f.SimTime = c.span.Start + p*(c.span.End-c.span.Start)
		f.HasSimTime = true
	}
	return f
}

// tickIdle advances the accelerated wall-clock accumulator and propagates
// the idle bodies analytically.
func (c *Clock) tickIdle(deltaMs float64) Frame {
	if deltaMs > 0 {
		c.idleSimSec += deltaMs * c.idleRate
	}
	f := Frame{Idle: true}
	if c.idleAsteroid != nil {
		st := c.idleAsteroid.StateAt(c.idleSimSec)
		f.Asteroid = timeline.Value{
			Position:    c.norm.KilometersToDisplay(st.Position),
			Velocity:    c.norm.KilometersToDisplay(st.Velocity),
			HasVelocity: true,
			Timestamp:   c.idleSimSec,
		}
		f.AsteroidOK = true
	}
	if c.idleEarth != nil {
		st := c.idleEarth.StateAt(c.idleSimSec)
		f.Earth = timeline.Value{
			Position:    c.norm.KilometersToDisplay(st.Position),
			Velocity:    c.norm.KilometersToDisplay(st.Velocity),
			HasVelocity: true,
			Timestamp:   c.idleSimSec,
		}
		f.EarthOK = true
	}
	return f
}

// computeSpan derives the global min/max timestamp across the timelines that
// carry at least two timestamped samples.
func computeSpan(timelines ...*timeline.Timeline) TimeSpan {
	var span TimeSpan
	for _, tl := range timelines {
		first, last, ok := tl.Span()
		if !ok {
			continue
		}
		if !span.Valid {
			span = TimeSpan{Start: first, End: last, Valid: true}
			continue
		}
		if first < span.Start {
			span.Start = first
		}
		if last > span.End {
			span.End = last
		}
	}
	return span
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
