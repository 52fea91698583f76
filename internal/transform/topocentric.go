package transform

import "math"

// WGS-84 ellipsoid parameters.
const (
	wgs84A  = 6378137.0             // semi-major axis (meters)
	wgs84F  = 1.0 / 298.257223563   // flattening
	wgs84E2 = wgs84F * (2 - wgs84F) // first eccentricity squared
)

// ObserverPosition holds a ground observer's location in both geodetic and ECEF frames.
// ECEF coordinates are precomputed once so they can be reused across many tracking ticks.
type ObserverPosition struct {
	LatRad, LonRad, AltM float64 // geodetic (radians, meters above the ellipsoid)
	ECEFx, ECEFy, ECEFz  float64 // precomputed ECEF (meters)
}

// LookAngles holds azimuth, elevation, and slant range from observer to satellite.
type LookAngles struct {
	AzimuthDeg   float64 // 0 = North, clockwise, [0, 360)
	ElevationDeg float64 // 0 = horizon, 90 = zenith
	RangeKm      float64
}

// RangeM returns the slant range in meters.
func (la LookAngles) RangeM() float64 {
	return la.RangeKm * 1000.0
}

// NewObserverPosition creates an ObserverPosition from geodetic coordinates.
// Latitude and longitude are in degrees, altitude in meters above the WGS-84 ellipsoid.
func NewObserverPosition(latDeg, lonDeg, altM float64) ObserverPosition {
	lat := latDeg * math.Pi / 180.0
	lon := lonDeg * math.Pi / 180.0

	sinLat := math.Sin(lat)
	cosLat := math.Cos(lat)
	sinLon := math.Sin(lon)
	cosLon := math.Cos(lon)

	// Radius of curvature in the prime vertical.
	N := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	x := (N + altM) * cosLat * cosLon
	y := (N + altM) * cosLat * sinLon
	z := (N*(1-wgs84E2) + altM) * sinLat

	return ObserverPosition{
		LatRad: lat,
		LonRad: lon,
		AltM:   altM,
		ECEFx:  x,
		ECEFy:  y,
		ECEFz:  z,
	}
}

// ECEFToLookAngles computes azimuth, elevation, and range from an observer
// to a satellite given in ECEF meters.
//
// Uses the SEZ (South-East-Zenith) topocentric rotation per Vallado Section 4.4.
// Azimuth: 0 = North, measured clockwise. Elevation: 0 = horizon, 90 = zenith.
//
// Near the zenith the azimuth is geometrically undefined; the horizontal
// component of the range vector vanishes, so a stable 0 is returned instead
// of feeding near-zero operands to atan2.
func ECEFToLookAngles(obs ObserverPosition, satX, satY, satZ float64) LookAngles {
	// Range vector in ECEF.
	rx := satX - obs.ECEFx
	ry := satY - obs.ECEFy
	rz := satZ - obs.ECEFz

	sinLat := math.Sin(obs.LatRad)
	cosLat := math.Cos(obs.LatRad)
	sinLon := math.Sin(obs.LonRad)
	cosLon := math.Cos(obs.LonRad)

	// Rotate ECEF range vector to SEZ (South, East, Zenith).
	south := sinLat*cosLon*rx + sinLat*sinLon*ry - cosLat*rz
	east := -sinLon*rx + cosLon*ry
	zenith := cosLat*cosLon*rx + cosLat*sinLon*ry + sinLat*rz

	rangeMag := math.Sqrt(south*south + east*east + zenith*zenith)

	// Elevation: angle above horizon.
	el := math.Asin(zenith / rangeMag)

	// Azimuth: measured clockwise from North.
	// In SEZ, North = -South direction, so az = atan2(east, -south).
	var az float64
	if math.Hypot(south, east) > 1e-9 {
		az = math.Atan2(east, -south)
		if az < 0 {
			az += 2 * math.Pi
		}
	}

	return LookAngles{
		AzimuthDeg:   az * 180.0 / math.Pi,
		ElevationDeg: el * 180.0 / math.Pi,
		RangeKm:      rangeMag / 1000.0,
	}
}
