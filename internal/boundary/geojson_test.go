package boundary

import (
	"encoding/json"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom/encoding/geojson"
)

const polygonJSON = `{"type":"Polygon","coordinates":[[[36.8,-1.3],[36.9,-1.3],[36.9,-1.2],[36.8,-1.2],[36.8,-1.3]]]}`

func TestValidate_Polygon(t *testing.T) {
	assert.NoError(t, Validate(json.RawMessage(polygonJSON)))
}

func TestValidate_MultiPolygon(t *testing.T) {
	raw := `{"type":"MultiPolygon","coordinates":[[[[36.8,-1.3],[36.9,-1.3],[36.9,-1.2],[36.8,-1.3]]]]}`
	assert.NoError(t, Validate(json.RawMessage(raw)))
}

func TestValidate_FeatureWrapper(t *testing.T) {
	raw := `{"type":"Feature","properties":{"name":"North Field"},"geometry":` + polygonJSON + `}`
	assert.NoError(t, Validate(json.RawMessage(raw)))
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"garbage", "not json"},
		{"point", `{"type":"Point","coordinates":[36.8,-1.3]}`},
		{"linestring", `{"type":"LineString","coordinates":[[36.8,-1.3],[36.9,-1.2]]}`},
		{"feature without geometry", `{"type":"Feature","properties":{}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, Validate(json.RawMessage(tt.raw)))
		})
	}
}

func TestPolygonToMultiPolygon(t *testing.T) {
	poly := &shp.Polygon{
		NumParts: 1,
		Parts:    []int32{0},
		Points: []shp.Point{
			{X: 36.8, Y: -1.3},
			{X: 36.9, Y: -1.3},
			{X: 36.9, Y: -1.2},
			{X: 36.8, Y: -1.3},
		},
	}

	g := polygonToMultiPolygon(poly)
	require.NotNil(t, g)

	// Round-trip: the shapefile geometry must survive GeoJSON validation.
	data, err := geojson.Marshal(g)
	require.NoError(t, err)
	assert.NoError(t, Validate(data))
}

func TestPolygonToMultiPolygon_Empty(t *testing.T) {
	assert.Nil(t, polygonToMultiPolygon(nil))
	assert.Nil(t, polygonToMultiPolygon(&shp.Polygon{}))
}
