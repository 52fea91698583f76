// Package transform provides the coordinate-frame conversions behind the
// tracking engine.
//
// The chain is TEME (True Equator Mean Equinox, the SGP4 output frame) to ECEF
// (Earth-Centered Earth-Fixed) via the GMST rotation, then ECEF to topocentric
// SEZ look angles for a ground observer. The TEME→ECEF step is a simplified
// Vallado-style rotation using GMST only (TEME → PEF ≈ ECEF), ignoring polar
// motion and the equation of equinoxes. That introduces ~50m of position error
// at most, well under the slant ranges involved in amateur ground tracking.
//
// Reference: Vallado, "Fundamentals of Astrodynamics and Applications", Ch. 3-4.
package transform

import (
	"math"
	"time"
)

// PositionECEF represents a satellite position and velocity in the ECEF frame.
// Units are meters and m/s.
type PositionECEF struct {
	X, Y, Z    float64
	VX, VY, VZ float64
}

// TEMEToECEF transforms a TEME position/velocity (meters, m/s) to ECEF at the
// given UTC time.
func TEMEToECEF(pos, vel [3]float64, t time.Time) PositionECEF {
	gmst := GMST(t)
	return TEMEToECEFWithGMST(pos, vel, gmst)
}

// TEMEToECEFWithGMST transforms TEME to ECEF using a precomputed GMST angle (radians).
// Useful when transforming several samples at the same instant (compute GMST once).
//
// Position transform: r_ECEF = R3(θ) * r_TEME
// Velocity transform: v_ECEF = R3(θ) * v_TEME - ω × r_ECEF
//
// where R3(θ) is a rotation about the Z-axis by angle θ (GMST),
// and ω = [0, 0, ω_earth] is Earth's angular velocity vector.
func TEMEToECEFWithGMST(pos, vel [3]float64, gmst float64) PositionECEF {
	cosG := math.Cos(gmst)
	sinG := math.Sin(gmst)

	// Position: R3(GMST) rotation.
	xECEF := pos[0]*cosG + pos[1]*sinG
	yECEF := -pos[0]*sinG + pos[1]*cosG
	zECEF := pos[2]

	// Velocity: R3(GMST) rotation, then subtract Earth rotation effect.
	// ω × r_ECEF = [-ω*y_ECEF, ω*x_ECEF, 0]
	vxRot := vel[0]*cosG + vel[1]*sinG
	vyRot := -vel[0]*sinG + vel[1]*cosG
	vzRot := vel[2]

	return PositionECEF{
		X:  xECEF,
		Y:  yECEF,
		Z:  zECEF,
		VX: vxRot + OmegaEarth*yECEF,
		VY: vyRot - OmegaEarth*xECEF,
		VZ: vzRot,
	}
}

// ValidateECEF checks that an ECEF position is physically reasonable for an
// Earth-orbiting satellite. Returns true if valid.
// Expected: magnitude between Earth radius (~6371km) and ~50000km (high orbit).
func ValidateECEF(pos PositionECEF) bool {
	if math.IsNaN(pos.X) || math.IsNaN(pos.Y) || math.IsNaN(pos.Z) {
		return false
	}
	if math.IsInf(pos.X, 0) || math.IsInf(pos.Y, 0) || math.IsInf(pos.Z, 0) {
		return false
	}

	mag := math.Sqrt(pos.X*pos.X + pos.Y*pos.Y + pos.Z*pos.Z)

	// Earth radius is ~6371km. LEO is ~6571-6971km. GEO is ~42164km.
	const minRadius = 6200.0 * 1000.0
	const maxRadius = 50000.0 * 1000.0

	return mag >= minRadius && mag <= maxRadius
}
