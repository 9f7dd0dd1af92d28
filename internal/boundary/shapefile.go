package boundary

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"
)

// Named pairs a farm name with its GeoJSON boundary, as extracted from a
// shapefile record.
type Named struct {
	Name     string
	Boundary json.RawMessage
}

// ReadShapefile extracts polygon boundaries from a shapefile. The farm name
// is taken from the attribute column named nameField (case-insensitive);
// records without one are named by position. Non-polygon shapes are skipped.
func ReadShapefile(path, nameField string) ([]Named, error) {
	r, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "boundary: open shapefile %s", path)
	}
	defer r.Close()

	nameIdx := -1
	for i, f := range r.Fields() {
		if strings.EqualFold(f.String(), nameField) {
			nameIdx = i
			break
		}
	}

	var out []Named
	row := 0
	for r.Next() {
		_, shape := r.Shape()
		poly, ok := shape.(*shp.Polygon)
		if !ok {
			zap.L().Debug("boundary: skipping non-polygon shape", zap.Int("row", row))
			row++
			continue
		}

		g := polygonToMultiPolygon(poly)
		if g == nil {
			row++
			continue
		}

		data, err := geojson.Marshal(g)
		if err != nil {
			return nil, eris.Wrapf(err, "boundary: encode record %d", row)
		}

		name := fmt.Sprintf("Field %d", row+1)
		if nameIdx >= 0 {
			if v := r.ReadAttribute(row, nameIdx); v != "" {
				name = v
			}
		}

		out = append(out, Named{Name: name, Boundary: data})
		row++
	}
	if err := r.Err(); err != nil {
		return nil, eris.Wrap(err, "boundary: read shapefile")
	}
	return out, nil
}

// polygonToMultiPolygon converts a shapefile Polygon to a geom.MultiPolygon.
func polygonToMultiPolygon(p *shp.Polygon) geom.T {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY)

	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		var end int32
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		} else {
			end = int32(len(p.Points))
		}

		flat := make([]float64, 0, (end-start)*2)
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}

		ring := geom.NewLinearRingFlat(geom.XY, flat)
		poly := geom.NewPolygon(geom.XY)
		if err := poly.Push(ring); err != nil {
			zap.L().Debug("boundary: skipping malformed ring", zap.Int32("part", i), zap.Error(err))
			continue
		}
		if err := mp.Push(poly); err != nil {
			zap.L().Debug("boundary: skipping malformed polygon part", zap.Int32("part", i), zap.Error(err))
			continue
		}
	}

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}
