package orbit

import (
	"math"
	"testing"
)

func testElements() Elements {
	return Elements{
		SemiMajorAxisKm:  1.5 * AUKilometers,
		Eccentricity:     0.3,
		InclinationRad:   0.2,
		RAANRad:          1.1,
		ArgPerihelionRad: 0.7,
		PeriodSeconds:    2.1 * 365.25 * 86400,
	}
}

func TestSolveEccentricAnomalyResidual(t *testing.T) {
	// Sweep eccentricity and mean anomaly; every solve must meet the residual
	// bound within the iteration cap for the supported range.
	for e := 0.0; e < 0.95; e += 0.05 {
		for m := -2 * math.Pi; m <= 2*math.Pi; m += 0.1 {
			eccAnom, converged := SolveEccentricAnomaly(m, e)
			if !converged {
				t.Fatalf("no convergence at e=%.2f m=%.2f", e, m)
			}
			residual := math.Abs(eccAnom - e*math.Sin(eccAnom) - m)
			if residual >= 1e-9 {
				t.Errorf("residual %g at e=%.2f m=%.2f", residual, e, m)
			}
		}
	}
}

func TestSolveEccentricAnomalyCircular(t *testing.T) {
	// For e=0, E = M exactly.
	for _, m := range []float64{0, 0.5, math.Pi, 5.9} {
		eccAnom, converged := SolveEccentricAnomaly(m, 0)
		if !converged {
			t.Fatalf("no convergence at m=%g", m)
		}
		if math.Abs(eccAnom-m) > 1e-15 {
			t.Errorf("E=%g, want %g", eccAnom, m)
		}
	}
}

func TestNewPropagatorRejectsBadElements(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Elements)
	}{
		{"negative eccentricity", func(el *Elements) { el.Eccentricity = -0.1 }},
		{"parabolic", func(el *Elements) { el.Eccentricity = 1.0 }},
		{"hyperbolic", func(el *Elements) { el.Eccentricity = 1.5 }},
		{"zero period", func(el *Elements) { el.PeriodSeconds = 0 }},
		{"negative period", func(el *Elements) { el.PeriodSeconds = -1 }},
		{"zero semi-major axis", func(el *Elements) { el.SemiMajorAxisKm = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			el := testElements()
			tt.mutate(&el)
			if _, err := NewPropagator(el); err == nil {
				t.Error("expected construction error, got nil")
			}
		})
	}
}

func TestPositionAtPeriodicity(t *testing.T) {
	prop, err := NewPropagator(testElements())
	if err != nil {
		t.Fatal(err)
	}
	period := testElements().PeriodSeconds

	p0 := prop.PositionAt(12345)
	p1 := prop.PositionAt(12345 + period)
	p2 := prop.PositionAt(12345 - 3*period)

	if p0.Sub(p1).Norm() > 1e-3 {
		t.Errorf("position not periodic: %v vs %v", p0, p1)
	}
	if p0.Sub(p2).Norm() > 1e-3 {
		t.Errorf("negative time not wrapped: %v vs %v", p0, p2)
	}
}

func TestPositionAtRadiusBounds(t *testing.T) {
	el := testElements()
	prop, err := NewPropagator(el)
	if err != nil {
		t.Fatal(err)
	}

	q := el.PerihelionKm()
	bigQ := el.AphelionKm()
	step := el.PeriodSeconds / 200
	for i := 0; i < 200; i++ {
		r := prop.PositionAt(float64(i) * step).Norm()
		if r < q*(1-1e-9) || r > bigQ*(1+1e-9) {
			t.Fatalf("radius %g km outside [q=%g, Q=%g] at sample %d", r, q, bigQ, i)
		}
	}
}

func TestStateAtVelocityVisViva(t *testing.T) {
	// Speed must satisfy v² = μ(2/r - 1/a) everywhere on the orbit.
	el := testElements()
	prop, err := NewPropagator(el)
	if err != nil {
		t.Fatal(err)
	}
	mu := el.Mu()

	step := el.PeriodSeconds / 50
	for i := 0; i < 50; i++ {
		st := prop.StateAt(float64(i) * step)
		r := st.Position.Norm()
		want := math.Sqrt(mu * (2/r - 1/el.SemiMajorAxisKm))
		got := st.Velocity.Norm()
		if math.Abs(got-want)/want > 1e-6 {
			t.Fatalf("speed %g km/s, want %g at sample %d", got, want, i)
		}
	}
}

func TestSampleOrbit(t *testing.T) {
	prop, err := NewPropagator(EarthElements())
	if err != nil {
		t.Fatal(err)
	}

	pts := prop.SampleOrbit(128)
	if len(pts) != 128 {
		t.Fatalf("got %d points, want 128", len(pts))
	}
	for i, p := range pts {
		if !p.IsFinite() {
			t.Fatalf("non-finite sample at %d: %v", i, p)
		}
		r := p.Norm()
		if r < 0.9*AUKilometers || r > 1.1*AUKilometers {
			t.Fatalf("earth radius %g km implausible at sample %d", r, i)
		}
	}

	if got := len(prop.SampleOrbit(0)); got != DefaultOrbitPathPoints {
		t.Errorf("default sample count = %d, want %d", got, DefaultOrbitPathPoints)
	}
}

func TestSampleAtTimes(t *testing.T) {
	prop, err := NewPropagator(EarthElements())
	if err != nil {
		t.Fatal(err)
	}

	times := []float64{0, 86400, 2 * 86400, 10 * 86400}
	states := prop.SampleAtTimes(times)
	if len(states) != len(times) {
		t.Fatalf("got %d states, want %d", len(states), len(times))
	}
	for i, st := range states {
		if st.Time != times[i] {
			t.Errorf("state %d time = %g, want %g", i, st.Time, times[i])
		}
		if direct := prop.PositionAt(times[i]); direct.Sub(st.Position).Norm() > 1e-6 {
			t.Errorf("state %d position diverges from PositionAt", i)
		}
	}
}
