package export

import (
	"fmt"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/AstarAeroespacial/rustar-tracking/internal/passes"
)

// GroundTrackGeoJSON renders a pass's sub-satellite track as a GeoJSON
// FeatureCollection: one LineString for the track plus one Point at maximum
// elevation. Coordinates are lon/lat per the GeoJSON spec.
func GroundTrackGeoJSON(p passes.Pass) ([]byte, error) {
	if len(p.GroundTrack) == 0 {
		return nil, fmt.Errorf("pass has no ground track points")
	}

	line := make(orb.LineString, 0, len(p.GroundTrack))
	var maxPt *passes.GroundTrackPoint
	for i := range p.GroundTrack {
		gt := &p.GroundTrack[i]
		line = append(line, orb.Point{gt.Longitude, gt.Latitude})
		if maxPt == nil || gt.Elevation > maxPt.Elevation {
			maxPt = gt
		}
	}

	fc := geojson.NewFeatureCollection()

	trackFeature := geojson.NewFeature(line)
	trackFeature.Properties["aos"] = p.AOS.UTC().Format(time.RFC3339)
	trackFeature.Properties["los"] = p.LOS.UTC().Format(time.RFC3339)
	trackFeature.Properties["max_elevation_deg"] = p.MaxElevationDeg
	trackFeature.Properties["truncated"] = p.Truncated
	fc.Append(trackFeature)

	culmination := geojson.NewFeature(orb.Point{maxPt.Longitude, maxPt.Latitude})
	culmination.Properties["time"] = maxPt.Time.UTC().Format(time.RFC3339)
	culmination.Properties["elevation_deg"] = maxPt.Elevation
	culmination.Properties["altitude_m"] = maxPt.Altitude
	fc.Append(culmination)

	data, err := fc.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("marshaling ground track: %w", err)
	}
	return data, nil
}
