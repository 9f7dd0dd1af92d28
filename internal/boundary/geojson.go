// Package boundary validates and converts farm boundary geometries.
package boundary

import (
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// Validate checks that raw is a GeoJSON polygonal geometry (or a Feature
// wrapping one) with at least one ring. The map frontend draws polygons, so
// points and lines are rejected.
func Validate(raw json.RawMessage) error {
	if len(raw) == 0 {
		return eris.New("boundary: geometry is required")
	}

	g, err := decodeGeometry(raw)
	if err != nil {
		return err
	}

	switch p := g.(type) {
	case *geom.Polygon:
		if p.NumLinearRings() == 0 || p.NumCoords() < 4 {
			return eris.New("boundary: polygon has no closed ring")
		}
	case *geom.MultiPolygon:
		if p.NumPolygons() == 0 {
			return eris.New("boundary: multipolygon is empty")
		}
	default:
		return eris.Errorf("boundary: unsupported geometry type %T", g)
	}
	return nil
}

// decodeGeometry accepts either a bare geometry object or a Feature.
func decodeGeometry(raw json.RawMessage) (geom.T, error) {
	var g geom.T
	if err := geojson.Unmarshal(raw, &g); err == nil {
		return g, nil
	}

	var f geojson.Feature
	if err := json.Unmarshal(raw, &f); err != nil || f.Geometry == nil {
		return nil, eris.New("boundary: not a valid GeoJSON geometry or feature")
	}
	return f.Geometry, nil
}
