package timeline

import (
	"sort"

	"github.com/LordOfTheToroids/Quack-Meteor-Madness/internal/orbit"
)

// Value is an interpolated sample at a progress query.
type Value struct {
	Position    orbit.Vec3 // display units
	Velocity    orbit.Vec3
	HasVelocity bool
	Timestamp   float64
}

// Sample interpolates the timeline at progress p. p is clamped to [0,1].
// Returns ok=false for an empty timeline ("nothing to display", not an
// error). Sampling is a pure function of (timeline, p): identical inputs
// always produce identical outputs.
//
// Interpolation is deliberately linear-in-progress between adjacent samples,
// not velocity-aware; sample density is assumed sufficient for visual
// smoothness.
func (tl *Timeline) Sample(p float64) (Value, bool) {
	if tl.Empty() {
		return Value{}, false
	}

	p = clamp01(p)
	pts := tl.points

	// Lower-bound search: smallest index with t[lo] >= p.
	lo := sort.Search(len(pts), func(i int) bool {
		return pts[i].T >= p
	})
	if lo >= len(pts) {
		lo = len(pts) - 1
	}
	upper := lo
	lower := lo - 1
	if lower < 0 {
		lower = 0
	}

	a, b := pts[lower], pts[upper]

	// Zero-duration segment (or single point): no interpolation.
	localT := 0.0
	if dt := b.T - a.T; dt > 0 {
		localT = (p - a.T) / dt
	}

	v := Value{
		Position:  a.Position.Lerp(b.Position, localT),
		Timestamp: a.Timestamp + (b.Timestamp-a.Timestamp)*localT,
	}
	if a.HasVelocity && b.HasVelocity {
		v.Velocity = a.Velocity.Lerp(b.Velocity, localT)
		v.HasVelocity = true
	}
	return v, true
}
