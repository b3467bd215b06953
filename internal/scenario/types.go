// Package scenario ingests simulation payloads from the external physics
// service: ordered position sample arrays for the asteroid (and optionally
// Earth), parallel timestamp and velocity arrays, and authoritative orbital
// metadata. The package owns parsing, validation and the atomic store of the
// active scenario; it performs no retries or job polling.
package scenario

import (
	"math"
	"time"

	"github.com/LordOfTheToroids/Quack-Meteor-Madness/internal/orbit"
)

// OrbitMeta is the authoritative orbital metadata attached to a payload.
// Lengths are in AU, angles in degrees, matching the physics service wire
// format.
type OrbitMeta struct {
	AAU           float64 `json:"a_au"`
	E             float64 `json:"e"`
	QAU           float64 `json:"q_au"`
	QApAU         float64 `json:"Q_au"`
	IDeg          float64 `json:"i_deg"`
	RAANDeg       float64 `json:"raan_deg"`
	ArgPDeg       float64 `json:"argp_deg"`
	PeriodSeconds float64 `json:"period_seconds"`
}

// Elements converts the wire metadata into orbital elements (km, radians).
// The result still needs Validate before use in a propagator.
func (m OrbitMeta) Elements() orbit.Elements {
	const degToRad = math.Pi / 180
	return orbit.Elements{
		SemiMajorAxisKm:  m.AAU * orbit.AUKilometers,
		Eccentricity:     m.E,
		InclinationRad:   m.IDeg * degToRad,
		RAANRad:          m.RAANDeg * degToRad,
		ArgPerihelionRad: m.ArgPDeg * degToRad,
		PeriodSeconds:    m.PeriodSeconds,
	}
}

// Zero reports whether the metadata is absent (all fields zero).
func (m OrbitMeta) Zero() bool {
	return m == OrbitMeta{}
}

// EarthSpin is the Earth rotation model forwarded to the rendering
// collaborator. The engine itself does not consume it.
type EarthSpin struct {
	ObliquityDeg            float64 `json:"obliquity_deg"`
	RotationPeriodSeconds   float64 `json:"rotation_period_s"`
	PrimeMeridianRadAtEpoch float64 `json:"prime_meridian_rad_at_epoch"`
}

// DefaultEarthSpin returns the J2000 mean obliquity and sidereal day.
func DefaultEarthSpin() EarthSpin {
	return EarthSpin{
		ObliquityDeg:          23.439281,
		RotationPeriodSeconds: 86164.0905,
	}
}

// Scenario is a parsed, validated simulation payload. Immutable after
// construction; replaced wholesale when new simulation data arrives.
type Scenario struct {
	AsteroidID string
	Epoch      float64 // POSIX seconds reference for the timestamps

	AsteroidPositions  []orbit.Vec3 // raw, unit-ambiguous
	AsteroidVelocities []orbit.Vec3 // nil when absent
	Timestamps         []float64    // nil when absent (index order applies)

	EarthPositions  []orbit.Vec3 // nil when absent (synthesized analytically)
	EarthVelocities []orbit.Vec3

	AsteroidOrbit OrbitMeta
	Spin          EarthSpin

	Source    string
	FetchedAt time.Time
}
