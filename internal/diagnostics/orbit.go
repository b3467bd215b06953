// Package diagnostics derives orbit shape estimates from a sampled point
// cloud and compares them against authoritative metadata. It is a
// diagnostic, not a correctness gate: it never blocks propagation or
// rendering, and insufficient input yields no report rather than an error.
package diagnostics

import (
	"math"

	"github.com/LordOfTheToroids/Quack-Meteor-Madness/internal/orbit"
	"github.com/LordOfTheToroids/Quack-Meteor-Madness/internal/units"
)

// MinPoints is the minimum point-cloud size for a meaningful estimate.
const MinPoints = 4

// Reference is authoritative orbital metadata to compare estimates against.
type Reference struct {
	SemiMajorAxisKm float64
	Eccentricity    float64
	PerihelionKm    float64
	AphelionKm      float64
}

// Delta is the difference between an estimate and its reference value.
// Percent is meaningful only when PercentValid; it is undefined when the
// reference value is zero.
type Delta struct {
	Absolute     float64 `json:"absolute"`
	Percent      float64 `json:"percent"`
	PercentValid bool    `json:"percent_valid"`
}

// Comparison holds per-quantity deltas against the reference metadata.
type Comparison struct {
	SemiMajorAxis Delta `json:"semi_major_axis"`
	Eccentricity  Delta `json:"eccentricity"`
	Perihelion    Delta `json:"perihelion"`
	Aphelion      Delta `json:"aphelion"`
}

// Report holds shape estimates derived from the sampled radii, in physical
// kilometers, plus an optional comparison when reference metadata was given.
type Report struct {
	PointCount      int     `json:"point_count"`
	RMinKm          float64 `json:"r_min_km"`
	RMaxKm          float64 `json:"r_max_km"`
	PerihelionKm    float64 `json:"perihelion_km"`
	AphelionKm      float64 `json:"aphelion_km"`
	SemiMajorAxisKm float64 `json:"semi_major_axis_km"`
	Eccentricity    float64 `json:"eccentricity"`

	Comparison *Comparison `json:"comparison,omitempty"`
}

// Analyze derives q/Q/a/e estimates from a heliocentric point cloud in
// display units, converting radii back to kilometers through the inverse of
// the display scale. ref may be nil. Returns ok=false when fewer than
// MinPoints points are supplied.
func Analyze(points []orbit.Vec3, norm units.Normalizer, ref *Reference) (*Report, bool) {
	if len(points) < MinPoints {
		return nil, false
	}

	rMin := math.Inf(1)
	rMax := math.Inf(-1)
	for _, p := range points {
		r := norm.ToKilometers(p).Norm()
		if r < rMin {
			rMin = r
		}
		if r > rMax {
			rMax = r
		}
	}

	qEst := rMin
	bigQEst := rMax
	aEst := (qEst + bigQEst) / 2
	eEst := 0.0
	if qEst+bigQEst > 0 {
		eEst = (bigQEst - qEst) / (bigQEst + qEst)
	}

	report := &Report{
		PointCount:      len(points),
		RMinKm:          rMin,
		RMaxKm:          rMax,
		PerihelionKm:    qEst,
		AphelionKm:      bigQEst,
		SemiMajorAxisKm: aEst,
		Eccentricity:    eEst,
	}

	if ref != nil {
		report.Comparison = &Comparison{
			SemiMajorAxis: delta(aEst, ref.SemiMajorAxisKm),
			Eccentricity:  delta(eEst, ref.Eccentricity),
			Perihelion:    delta(qEst, ref.PerihelionKm),
			Aphelion:      delta(bigQEst, ref.AphelionKm),
		}
	}

	return report, true
}

// ClosestApproach scans two synchronized point sequences for the minimum
// separation. Returns the sample index and the distance in the sequences'
// own units; ok=false when the inputs are empty or of unequal length.
func ClosestApproach(a, b []orbit.Vec3) (index int, distance float64, ok bool) {
	if len(a) == 0 || len(a) != len(b) {
		return -1, math.NaN(), false
	}
	index = 0
	minSq := math.Inf(1)
	for i := range a {
		d := a[i].Sub(b[i])
		sq := d.X*d.X + d.Y*d.Y + d.Z*d.Z
		if sq < minSq {
			minSq = sq
			index = i
		}
	}
	return index, math.Sqrt(minSq), true
}

func delta(estimate, reference float64) Delta {
	d := Delta{Absolute: math.Abs(estimate - reference)}
	if reference != 0 {
		d.Percent = d.Absolute / math.Abs(reference) * 100
		d.PercentValid = true
	}
	return d
}
