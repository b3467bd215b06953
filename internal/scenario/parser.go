package scenario

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/LordOfTheToroids/Quack-Meteor-Madness/internal/orbit"
)

// payload is the physics-service wire format. orbit_meta is a legacy alias
// for asteroid_orbit kept for older payloads.
type payload struct {
	AsteroidID         string       `json:"asteroid_id"`
	Epoch              float64      `json:"epoch"`
	AsteroidPositions  [][3]float64 `json:"asteroid_positions"`
	AsteroidVelocities [][3]float64 `json:"asteroid_velocities"`
	Timestamps         []float64    `json:"timestamps"`
	EarthPositions     [][3]float64 `json:"earth_positions"`
	EarthVelocities    [][3]float64 `json:"earth_velocities"`

	AsteroidOrbit *OrbitMeta `json:"asteroid_orbit"`
	OrbitMeta     *OrbitMeta `json:"orbit_meta"`

	EarthOrbit *struct {
		Spin *EarthSpin `json:"spin"`
	} `json:"earth_orbit"`
}

// Parse reads a physics-service JSON payload from r and returns a validated
// Scenario. Optional arrays that do not line up with the positions are
// dropped with a warning rather than failing the whole load; missing
// asteroid positions are a hard error.
func Parse(r io.Reader, logger *slog.Logger) (*Scenario, error) {
	var p payload
	dec := json.NewDecoder(r)
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("decoding scenario payload: %w", err)
	}

	if len(p.AsteroidPositions) == 0 {
		return nil, fmt.Errorf("scenario payload has no asteroid positions")
	}

	sc := &Scenario{
		AsteroidID:        p.AsteroidID,
		Epoch:             p.Epoch,
		AsteroidPositions: toVecs(p.AsteroidPositions),
		Spin:              DefaultEarthSpin(),
		FetchedAt:         time.Now(),
	}
	if sc.AsteroidID == "" {
		sc.AsteroidID = "unknown"
	}

	n := len(sc.AsteroidPositions)

	if p.Timestamps != nil {
		if len(p.Timestamps) != n {
			logger.Warn("scenario timestamps length mismatch, falling back to index order",
				"timestamps", len(p.Timestamps), "positions", n)
		} else {
			sc.Timestamps = p.Timestamps
		}
	}

	if p.AsteroidVelocities != nil {
		if len(p.AsteroidVelocities) != n {
			logger.Warn("scenario asteroid velocities length mismatch, dropping velocities",
				"velocities", len(p.AsteroidVelocities), "positions", n)
		} else {
			sc.AsteroidVelocities = toVecs(p.AsteroidVelocities)
		}
	}

	if p.EarthPositions != nil {
		if len(p.EarthPositions) != n {
			logger.Warn("scenario earth positions length mismatch, earth samples dropped",
				"earth_positions", len(p.EarthPositions), "positions", n)
		} else {
			sc.EarthPositions = toVecs(p.EarthPositions)
			if p.EarthVelocities != nil {
				if len(p.EarthVelocities) != n {
					logger.Warn("scenario earth velocities length mismatch, dropping velocities",
						"velocities", len(p.EarthVelocities), "positions", n)
				} else {
					sc.EarthVelocities = toVecs(p.EarthVelocities)
				}
			}
		}
	}

	if meta := firstMeta(p.AsteroidOrbit, p.OrbitMeta); meta != nil {
		sc.AsteroidOrbit = *meta
	}
	if p.EarthOrbit != nil && p.EarthOrbit.Spin != nil {
		sc.Spin = *p.EarthOrbit.Spin
	}

	return sc, nil
}

func firstMeta(metas ...*OrbitMeta) *OrbitMeta {
	for _, m := range metas {
		if m != nil && !m.Zero() {
			return m
		}
	}
	return nil
}

func toVecs(triples [][3]float64) []orbit.Vec3 {
	out := make([]orbit.Vec3, len(triples))
	for i, t := range triples {
		out[i] = orbit.Vec3{X: t[0], Y: t[1], Z: t[2]}
	}
	return out
}
