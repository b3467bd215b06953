package orbit

import "math"

// RotationMatrix is a fixed 3×3 rotation from the perifocal (orbital-plane)
// frame into the shared ecliptic frame. Computed once per orbit; orthonormal
// within floating tolerance by construction.
type RotationMatrix [3][3]float64

// NewPerifocalToEcliptic builds the rotation R3(-Ω)·R1(-i)·R3(-ω) in closed
// form. The perifocal x-axis points toward perihelion. i = 0 is a valid
// limiting case (the matrix degenerates to a plain R3 rotation by Ω+ω).
func NewPerifocalToEcliptic(raan, inc, argp float64) RotationMatrix {
	sinO, cosO := math.Sincos(raan)
	sinI, cosI := math.Sincos(inc)
	sinW, cosW := math.Sincos(argp)

	return RotationMatrix{
		{
			cosO*cosW - sinO*sinW*cosI,
			-cosO*sinW - sinO*cosW*cosI,
			sinO * sinI,
		},
		{
			sinO*cosW + cosO*sinW*cosI,
			-sinO*sinW + cosO*cosW*cosI,
			-cosO * sinI,
		},
		{
			sinW * sinI,
			cosW * sinI,
			cosI,
		},
	}
}

// Apply rotates a perifocal-frame vector into the ecliptic frame.
func (m RotationMatrix) Apply(v Vec3) Vec3 {
	return Vec3{
		X: m[0][0]*v.X + m[0][1]*v.Y + m[0][2]*v.Z,
		Y: m[1][0]*v.X + m[1][1]*v.Y + m[1][2]*v.Z,
		Z: m[2][0]*v.X + m[2][1]*v.Y + m[2][2]*v.Z,
	}
}

// IsOrthonormal reports whether rows are unit length and mutually
// perpendicular within tol.
func (m RotationMatrix) IsOrthonormal(tol float64) bool {
	for r := 0; r < 3; r++ {
		norm := m[r][0]*m[r][0] + m[r][1]*m[r][1] + m[r][2]*m[r][2]
		if math.Abs(norm-1) > tol {
			return false
		}
	}
	for a := 0; a < 3; a++ {
		for b := a + 1; b < 3; b++ {
			dot := m[a][0]*m[b][0] + m[a][1]*m[b][1] + m[a][2]*m[b][2]
			if math.Abs(dot) > tol {
				return false
			}
		}
	}
	return true
}
