// Package units resolves the unit ambiguity of raw trajectory samples and
// rescales them into display units.
//
// The physics service reports heliocentric positions without a unit tag;
// depending on the code path they arrive in meters or kilometers. The
// normalizer classifies by magnitude: anything whose largest component
// exceeds the threshold is assumed to be meters. The default threshold of
// 5e8 sits above inner-system heliocentric distances expressed in kilometers
// (Earth is ~1.5e8 km) and below the same distances expressed in meters
// (~1.5e11 m). This is a documented heuristic, not a physical law; the
// threshold is an explicit, overridable field.
package units

import "github.com/LordOfTheToroids/Quack-Meteor-Madness/internal/orbit"

// DefaultMetersThreshold is the component magnitude above which a raw
// sample is classified as meters.
const DefaultMetersThreshold = 5e8

// Normalizer converts raw unit-ambiguous vectors into display units. It is a
// pure value type with no hidden state; apply it uniformly to every sample of
// a trajectory (mixing units within one trajectory is a caller error and is
// not detected).
type Normalizer struct {
	// MetersThreshold classifies a raw vector as meters when its largest
	// absolute component exceeds it.
	MetersThreshold float64

	// ScaleFactor is display units per kilometer.
	ScaleFactor float64
}

// NewNormalizer returns a Normalizer with the default meters threshold.
func NewNormalizer(scaleFactor float64) Normalizer {
	return Normalizer{
		MetersThreshold: DefaultMetersThreshold,
		ScaleFactor:     scaleFactor,
	}
}

// IsMeters reports whether the raw vector is classified as meters.
func (n Normalizer) IsMeters(v orbit.Vec3) bool {
	return v.MaxAbs() > n.MetersThreshold
}

// ClassifyMeters classifies a whole trajectory from its position samples:
// meters if any position component crosses the threshold. The one decision
// covers every parallel array of the trajectory — velocities arrive in the
// same unit system as their positions (m and m/s, or km and km/s) but their
// magnitudes are far below the positional threshold, so they can never be
// classified on their own.
func (n Normalizer) ClassifyMeters(positions []orbit.Vec3) bool {
	for _, p := range positions {
		if n.IsMeters(p) {
			return true
		}
	}
	return false
}

// NormalizeAs converts a raw vector into display units using an explicit
// meters decision instead of per-vector classification.
func (n Normalizer) NormalizeAs(v orbit.Vec3, meters bool) orbit.Vec3 {
	if meters {
		v = v.Scale(1.0 / 1000.0)
	}
	return v.Scale(n.ScaleFactor)
}

// Normalize converts a raw vector into display units: meters are divided by
// 1000 first, then the kilometer value is scaled by ScaleFactor.
func (n Normalizer) Normalize(v orbit.Vec3) orbit.Vec3 {
	if n.IsMeters(v) {
		v = v.Scale(1.0 / 1000.0)
	}
	return v.Scale(n.ScaleFactor)
}

// ToKilometers converts a display-unit vector back into kilometers. The
// meter classification is not re-applied; display units map to kilometers
// one-to-one through ScaleFactor.
func (n Normalizer) ToKilometers(v orbit.Vec3) orbit.Vec3 {
	return v.Scale(1.0 / n.ScaleFactor)
}

// KilometersToDisplay scales a kilometer vector into display units without
// unit classification. Used for positions already known to be kilometers
// (analytic propagation output).
func (n Normalizer) KilometersToDisplay(v orbit.Vec3) orbit.Vec3 {
	return v.Scale(n.ScaleFactor)
}
