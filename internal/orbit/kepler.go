package orbit

import (
	"math"

	"github.com/LordOfTheToroids/Quack-Meteor-Madness/internal/metrics"
)

const (
	// keplerMaxIterations caps the Newton-Raphson loop. The historical model
	// ran a fixed 7 iterations with no convergence check; the cap is higher so
	// near-parabolic eccentricities get a chance to settle, with an early exit
	// once the step size is negligible.
	keplerMaxIterations = 16

	// keplerStepTolerance is the early-exit threshold on |ΔE|.
	keplerStepTolerance = 1e-12

	// keplerResidualTolerance is the convergence bound on |E - e·sinE - M|.
	keplerResidualTolerance = 1e-9

	// DefaultOrbitPathPoints is the default sample count for a full-orbit path.
	DefaultOrbitPathPoints = 512
)

// SolveEccentricAnomaly solves Kepler's equation E - e·sinE = M for E via
// Newton-Raphson, seeded E0 = M. The boolean reports whether the residual
// met the convergence bound; when it did not, the best estimate is still
// returned and the caller decides how to treat it (non-convergence is a
// tolerance warning, not an error).
func SolveEccentricAnomaly(meanAnomaly, eccentricity float64) (float64, bool) {
	e := eccentricity
	m := meanAnomaly
	eccAnom := m
	for i := 0; i < keplerMaxIterations; i++ {
		f := eccAnom - e*math.Sin(eccAnom) - m
		fp := 1 - e*math.Cos(eccAnom)
		delta := f / fp
		eccAnom -= delta
		if math.Abs(delta) < keplerStepTolerance {
			break
		}
	}
	residual := math.Abs(eccAnom - e*math.Sin(eccAnom) - m)
	return eccAnom, residual < keplerResidualTolerance
}

// State is an inertial-frame position/velocity pair at a time offset.
type State struct {
	Position Vec3    // km, ecliptic frame
	Velocity Vec3    // km/s, ecliptic frame
	Time     float64 // seconds since epoch
}

// Propagator computes heliocentric positions on a fixed closed orbit by
// solving Kepler's equation. Stateless after construction; safe for
// concurrent use.
type Propagator struct {
	elements Elements
	rotation RotationMatrix
}

// NewPropagator validates the elements and precomputes the frame rotation.
func NewPropagator(el Elements) (*Propagator, error) {
	if err := el.Validate(); err != nil {
		return nil, err
	}
	return &Propagator{
		elements: el,
		rotation: NewPerifocalToEcliptic(el.RAANRad, el.InclinationRad, el.ArgPerihelionRad),
	}, nil
}

// Elements returns the orbit's elements.
func (p *Propagator) Elements() Elements {
	return p.elements
}

// Rotation returns the perifocal-to-ecliptic rotation for this orbit.
func (p *Propagator) Rotation() RotationMatrix {
	return p.rotation
}

// PositionAt returns the ecliptic-frame position at t seconds since epoch.
// Time is taken modulo the period, so arbitrarily large or negative t is valid.
func (p *Propagator) PositionAt(t float64) Vec3 {
	st := p.StateAt(t)
	return st.Position
}

// StateAt returns the ecliptic-frame position and velocity at t seconds
// since epoch.
func (p *Propagator) StateAt(t float64) State {
	el := p.elements

	t = math.Mod(t, el.PeriodSeconds)
	if t < 0 {
		t += el.PeriodSeconds
	}

	m := el.MeanAnomaly0Rad + el.MeanMotion()*t
	eccAnom, converged := SolveEccentricAnomaly(m, el.Eccentricity)
	if !converged {
		metrics.IncKeplerNonConverged()
	}

	e := el.Eccentricity
	a := el.SemiMajorAxisKm
	sinE, cosE := math.Sincos(eccAnom)

	pos := Vec3{
		X: a * (cosE - e),
		Y: a * math.Sqrt(1-e*e) * sinE,
		Z: 0,
	}

	// True anomaly and perifocal velocity (v = μ/h · (-sinν, e+cosν, 0)).
	nu := 2 * math.Atan2(math.Sqrt(1+e)*math.Sin(eccAnom/2), math.Sqrt(1-e)*math.Cos(eccAnom/2))
	mu := el.Mu()
	h := math.Sqrt(mu * a * (1 - e*e))
	vel := Vec3{
		X: -mu / h * math.Sin(nu),
		Y: mu / h * (e + math.Cos(nu)),
		Z: 0,
	}

	return State{
		Position: p.rotation.Apply(pos),
		Velocity: p.rotation.Apply(vel),
		Time:     t,
	}
}

// SampleOrbit returns n evenly time-spaced positions over one full period,
// used to draw a static orbit path. n <= 0 falls back to
// DefaultOrbitPathPoints.
func (p *Propagator) SampleOrbit(n int) []Vec3 {
	if n <= 0 {
		n = DefaultOrbitPathPoints
	}
	points := make([]Vec3, n)
	step := p.elements.PeriodSeconds / float64(n)
	for i := 0; i < n; i++ {
		points[i] = p.PositionAt(float64(i) * step)
	}
	return points
}

// SampleTimed returns n evenly time-spaced states over one full period,
// suitable for building a playback timeline for the analytically-modeled body.
func (p *Propagator) SampleTimed(n int) []State {
	if n <= 0 {
		n = DefaultOrbitPathPoints
	}
	states := make([]State, n)
	step := p.elements.PeriodSeconds / float64(n)
	for i := 0; i < n; i++ {
		states[i] = p.StateAt(float64(i) * step)
	}
	return states
}

// SampleAtTimes returns states for each of the given time offsets. Used to
// synthesize one body's samples on another body's timestamps so both share a
// timeline.
func (p *Propagator) SampleAtTimes(times []float64) []State {
	states := make([]State, len(times))
	for i, t := range times {
		states[i] = p.StateAt(t)
		states[i].Time = times[i]
	}
	return states
}
