package geo

import (
	"strconv"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/mapeo-verde/mapeo-verde-api/internal/model"
)

// GreenAreaFeatures builds a point feature per green area. Areas without a
// plottable coordinate are left out.
func GreenAreaFeatures(areas []model.GreenArea) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(areas))}
	for _, a := range areas {
		if !ValidLatLng(a.Lat, a.Lng) {
			continue
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:       strconv.Itoa(a.ID),
			Geometry: point(a.Lat, a.Lng),
			Properties: map[string]any{
				"name":    a.Name,
				"address": a.Address,
				"tags":    a.Tags,
				"need":    a.Need,
				"image":   a.Image,
			},
		})
	}
	return fc
}

// ProjectFeatures builds a point feature per project or gazette record.
func ProjectFeatures(projects []model.Project) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(projects))}
	for _, p := range projects {
		if !ValidLatLng(p.Lat, p.Lng) {
			continue
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:       p.ID,
			Geometry: point(p.Lat, p.Lng),
			Properties: map[string]any{
				"project":   p.Project,
				"promoter":  p.Promoter,
				"type":      p.Type,
				"date":      p.Date,
				"year":      p.Year,
				"status":    p.Status,
				"source":    p.Source,
				"defaulted": p.Defaulted,
			},
		})
	}
	return fc
}

// GeoJSON positions are lng,lat.
func point(lat, lng float64) *geom.Point {
	return geom.NewPointFlat(geom.XY, []float64{lng, lat}).SetSRID(4326)
}
