// Package orbit implements analytic two-body orbit propagation: classical
// orbital elements, Kepler's equation, and the perifocal-to-ecliptic frame
// rotation.
//
// Positions are heliocentric kilometers in the shared ecliptic frame unless
// stated otherwise. Only closed orbits (0 <= e < 1) are supported; parabolic
// and hyperbolic trajectories are rejected at construction.
package orbit

import (
	"errors"
	"fmt"
	"math"
)

// AUKilometers is one astronomical unit in kilometers.
const AUKilometers = 149597870.7

// Configuration errors. These are fatal and must be rejected at construction,
// never silently clamped.
var (
	ErrUnsupportedOrbit  = errors.New("orbit: eccentricity must be in [0, 1)")
	ErrNonPositivePeriod = errors.New("orbit: period must be positive")
)

// Elements are the classical Keplerian elements defining a closed orbit's
// shape and orientation. Immutable per body.
type Elements struct {
	SemiMajorAxisKm  float64 // a, kilometers
	Eccentricity     float64 // e, unitless, 0 <= e < 1
	InclinationRad   float64 // i
	RAANRad          float64 // Ω, longitude of ascending node
	ArgPerihelionRad float64 // ω, argument of perihelion
	MeanAnomaly0Rad  float64 // M0, mean anomaly at epoch
	PeriodSeconds    float64 // orbital period
}

// Validate checks the elements for configuration errors.
func (el Elements) Validate() error {
	if el.Eccentricity < 0 || el.Eccentricity >= 1 {
		return fmt.Errorf("%w: got e=%g", ErrUnsupportedOrbit, el.Eccentricity)
	}
	if el.PeriodSeconds <= 0 {
		return fmt.Errorf("%w: got %gs", ErrNonPositivePeriod, el.PeriodSeconds)
	}
	if el.SemiMajorAxisKm <= 0 {
		return fmt.Errorf("orbit: semi-major axis must be positive, got %g km", el.SemiMajorAxisKm)
	}
	return nil
}

// MeanMotion returns the mean motion n = 2π/T in rad/s.
func (el Elements) MeanMotion() float64 {
	return 2 * math.Pi / el.PeriodSeconds
}

// Mu returns the gravitational parameter implied by a and T (μ = n²a³),
// in km³/s². Deriving μ from the supplied period keeps position and velocity
// mutually consistent regardless of which central body the metadata assumed.
func (el Elements) Mu() float64 {
	n := el.MeanMotion()
	a := el.SemiMajorAxisKm
	return n * n * a * a * a
}

// PerihelionKm returns q = a(1-e).
func (el Elements) PerihelionKm() float64 {
	return el.SemiMajorAxisKm * (1 - el.Eccentricity)
}

// AphelionKm returns Q = a(1+e).
func (el Elements) AphelionKm() float64 {
	return el.SemiMajorAxisKm * (1 + el.Eccentricity)
}

// EarthElements returns the fixed analytic model of Earth's heliocentric
// orbit: a = 1 AU, e = 0.0167, one sidereal year. Angles are zero so the
// orbital plane coincides with the ecliptic.
func EarthElements() Elements {
	return Elements{
		SemiMajorAxisKm: AUKilometers,
		Eccentricity:    0.0167,
		PeriodSeconds:   365.256363004 * 86400.0,
	}
}
