package export

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// WriteGeoJSON writes fc as indented GeoJSON.
func WriteGeoJSON(w io.Writer, fc *geojson.FeatureCollection) error {
	if fc == nil {
		fc = &geojson.FeatureCollection{}
	}
	if fc.Features == nil {
		fc.Features = []*geojson.Feature{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(fc), "export: write geojson")
}
