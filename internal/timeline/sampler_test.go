package timeline

import (
	"math"
	"testing"

	"github.com/LordOfTheToroids/Quack-Meteor-Madness/internal/orbit"
)

func TestSampleEmpty(t *testing.T) {
	var nilTL *Timeline
	if _, ok := nilTL.Sample(0.5); ok {
		t.Error("nil timeline must report ok=false")
	}
	if _, ok := testBuilder().Build(nil, nil, nil).Sample(0.5); ok {
		t.Error("empty timeline must report ok=false")
	}
}

func TestSampleEndpoints(t *testing.T) {
	positions := []orbit.Vec3{{X: 0}, {X: 10}, {X: 20}}
	timestamps := []float64{100, 200, 300}
	tl := testBuilder().Build(positions, timestamps, nil)

	v, ok := tl.Sample(0)
	if !ok || v.Position.X != 0 || v.Timestamp != 100 {
		t.Errorf("Sample(0) = %+v, %v; want first point", v, ok)
	}

	v, ok = tl.Sample(1)
	if !ok || v.Position.X != 20 || v.Timestamp != 300 {
		t.Errorf("Sample(1) = %+v, %v; want last point", v, ok)
	}
}

func TestSampleInterpolates(t *testing.T) {
	positions := []orbit.Vec3{{X: 0}, {X: 10}}
	timestamps := []float64{0, 100}
	tl := testBuilder().Build(positions, timestamps, nil)

	v, ok := tl.Sample(0.25)
	if !ok {
		t.Fatal("sample failed")
	}
	if math.Abs(v.Position.X-2.5) > 1e-12 {
		t.Errorf("position X = %g, want 2.5", v.Position.X)
	}
	if math.Abs(v.Timestamp-25) > 1e-12 {
		t.Errorf("timestamp = %g, want 25", v.Timestamp)
	}
}

func TestSampleClamps(t *testing.T) {
	tl := testBuilder().Build([]orbit.Vec3{{X: 0}, {X: 10}}, nil, nil)

	lo, _ := tl.Sample(-0.5)
	if lo.Position.X != 0 {
		t.Errorf("Sample(-0.5) X = %g, want 0", lo.Position.X)
	}
	hi, _ := tl.Sample(1.5)
	if hi.Position.X != 10 {
		t.Errorf("Sample(1.5) X = %g, want 10", hi.Position.X)
	}
}

func TestSampleSinglePoint(t *testing.T) {
	tl := testBuilder().Build([]orbit.Vec3{{X: 7}}, nil, nil)
	for _, p := range []float64{0, 0.5, 1} {
		v, ok := tl.Sample(p)
		if !ok || v.Position.X != 7 {
			t.Errorf("Sample(%g) = %+v, %v; want the single point", p, v, ok)
		}
	}
}

func TestSampleUnevenSpacing(t *testing.T) {
	// 0..100..400: the first segment covers T in [0, 0.25].
	positions := []orbit.Vec3{{X: 0}, {X: 10}, {X: 40}}
	timestamps := []float64{0, 100, 400}
	tl := testBuilder().Build(positions, timestamps, nil)

	// Halfway through the first segment in progress terms.
	v, _ := tl.Sample(0.125)
	if math.Abs(v.Position.X-5) > 1e-9 {
		t.Errorf("X = %g, want 5", v.Position.X)
	}
	if math.Abs(v.Timestamp-50) > 1e-9 {
		t.Errorf("timestamp = %g, want 50", v.Timestamp)
	}
}

func TestSampleVelocityRequiresBothEndpoints(t *testing.T) {
	b := testBuilder()

	withVel := b.Build(
		[]orbit.Vec3{{X: 0}, {X: 10}},
		nil,
		[]orbit.Vec3{{X: 1}, {X: 3}},
	)
	v, _ := withVel.Sample(0.5)
	if !v.HasVelocity {
		t.Fatal("expected interpolated velocity")
	}
	if math.Abs(v.Velocity.X-2) > 1e-12 {
		t.Errorf("velocity X = %g, want 2", v.Velocity.X)
	}

	noVel := b.Build([]orbit.Vec3{{X: 0}, {X: 10}}, nil, nil)
	v, _ = noVel.Sample(0.5)
	if v.HasVelocity {
		t.Error("velocity reported without velocity samples")
	}
}

func TestSampleDeterministic(t *testing.T) {
	positions := []orbit.Vec3{{X: 0}, {X: 3}, {X: 9}, {X: 27}}
	timestamps := []float64{0, 10, 40, 100}
	tl := testBuilder().Build(positions, timestamps, nil)

	for p := 0.0; p <= 1.0; p += 0.01 {
		a, okA := tl.Sample(p)
		b, okB := tl.Sample(p)
		if okA != okB || a != b {
			t.Fatalf("non-deterministic sample at p=%g", p)
		}
	}
}
