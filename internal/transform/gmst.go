package transform

import (
	"math"
	"time"
)

const (
	// jdUnixEpoch is the Julian Date of 1970-01-01T00:00:00 UTC.
	jdUnixEpoch = 2440587.5
	// jdJ2000 is the Julian Date of the J2000.0 epoch.
	jdJ2000 = 2451545.0

	secondsPerDay = 86400.0
	julianCentury = 36525.0
)

// OmegaEarth is Earth's mean rotation rate in rad/s (IAU value).
const OmegaEarth = 7.292115146706979e-5

// JulianDate converts a UTC instant to Julian Date. time.Time already counts
// seconds from the Unix epoch, so no calendar decomposition is needed; the
// conversion is a fixed offset plus the fractional day.
func JulianDate(t time.Time) float64 {
	sec := float64(t.Unix()) + float64(t.Nanosecond())/1e9
	return jdUnixEpoch + sec/secondsPerDay
}

// GMST returns Greenwich Mean Sidereal Time in radians at t, from the IAU-82
// polynomial (Vallado Eq 3-47) in Julian centuries since J2000.0. UTC stands
// in for UT1: the difference is bounded at 0.9 s, far below what a TLE
// ephemeris resolves.
func GMST(t time.Time) float64 {
	tc := (JulianDate(t.UTC()) - jdJ2000) / julianCentury

	// Seconds of sidereal time. The linear coefficient folds together the
	// whole revolutions (876600 h) and the secular drift term.
	sec := 67310.54841 + tc*(3164400184.812866+tc*(0.093104-tc*6.2e-6))

	rad := math.Mod(sec, secondsPerDay) * (2 * math.Pi / secondsPerDay)
	if rad < 0 {
		rad += 2 * math.Pi
	}
	return rad
}
