// Package timeline converts arbitrarily-timestamped trajectory samples into a
// normalized playback timeline keyed by fractional progress in [0,1], and
// samples it deterministically at any progress value.
//
// A timeline is a faithful, monotonic reparameterization of its input by
// normalized elapsed time, not by sample index: playback speed reflects true
// orbital velocity variation (faster near perihelion). No resampling or
// smoothing is performed. Built once per trajectory load; immutable afterward.
package timeline

import (
	"github.com/LordOfTheToroids/Quack-Meteor-Madness/internal/orbit"
	"github.com/LordOfTheToroids/Quack-Meteor-Madness/internal/units"
)

// Point is one normalized timeline entry. T is strictly non-decreasing across
// a timeline; the first entry has T=0 and the last exactly T=1.
type Point struct {
	T           float64
	Position    orbit.Vec3 // display units
	Velocity    orbit.Vec3 // display units per second; zero when absent
	HasVelocity bool
	Timestamp   float64 // effective timestamp (epoch seconds, or index when untimed)
}

// Timeline is an immutable ordered sequence of points.
type Timeline struct {
	points      []Point
	timestamped bool
}

// Len returns the number of points.
func (tl *Timeline) Len() int {
	if tl == nil {
		return 0
	}
	return len(tl.points)
}

// Empty reports whether the timeline has no points. An empty timeline is a
// valid "no trajectory" value, not an error.
func (tl *Timeline) Empty() bool {
	return tl.Len() == 0
}

// Timestamped reports whether the timeline was built from real timestamps
// (as opposed to the index fallback). Only timestamped timelines with at
// least two points contribute to a physical time span.
func (tl *Timeline) Timestamped() bool {
	return tl != nil && tl.timestamped
}

// Points returns the underlying points. Callers must not mutate the slice.
func (tl *Timeline) Points() []Point {
	if tl == nil {
		return nil
	}
	return tl.points
}

// Span returns the first and last effective timestamps. ok is false for
// timelines without at least two timestamped points.
func (tl *Timeline) Span() (first, last float64, ok bool) {
	if tl == nil || !tl.timestamped || len(tl.points) < 2 {
		return 0, 0, false
	}
	return tl.points[0].Timestamp, tl.points[len(tl.points)-1].Timestamp, true
}

// Builder normalizes raw samples into timelines. Positions pass through the
// configured unit normalizer; the builder itself is stateless.
type Builder struct {
	norm units.Normalizer
}

// NewBuilder returns a Builder using the given normalizer.
func NewBuilder(norm units.Normalizer) Builder {
	return Builder{norm: norm}
}

// Build converts parallel sample arrays into a Timeline. timestamps and
// velocities may be nil; a non-nil timestamps slice must be the same length
// as positions (shorter slices fall back to index timestamps), and effective
// timestamps are the sample timestamps when present, else the sample index.
// Zero positions produce an empty timeline.
func (b Builder) Build(positions []orbit.Vec3, timestamps []float64, velocities []orbit.Vec3) *Timeline {
	if len(positions) == 0 {
		return &Timeline{}
	}

	timestamped := len(timestamps) == len(positions)
	effective := func(i int) float64 {
		if timestamped {
			return timestamps[i]
		}
		return float64(i)
	}

	count := len(positions)
	first := effective(0)
	last := effective(count - 1)
	span := last - first
	if span == 0 {
		span = float64(max(count-1, 1))
	}

	// One unit decision per trajectory, judged from the positions. Velocity
	// magnitudes (~3e4 m/s) sit far below the positional threshold and would
	// misclassify as kilometers on their own.
	meters := b.norm.ClassifyMeters(positions)

	points := make([]Point, count)
	for i, pos := range positions {
		t := clamp01((effective(i) - first) / span)
		p := Point{
			T:         t,
			Position:  b.norm.NormalizeAs(pos, meters),
			Timestamp: effective(i),
		}
		if velocities != nil && i < len(velocities) {
			p.Velocity = b.norm.NormalizeAs(velocities[i], meters)
			p.HasVelocity = true
		}
		points[i] = p
	}
	// Force the boundary exactly to eliminate floating round-off.
	points[count-1].T = 1

	return &Timeline{points: points, timestamped: timestamped}
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

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
