package export

import (
	"path/filepath"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"

	"github.com/mapeo-verde/mapeo-verde-api/internal/geo"
	"github.com/mapeo-verde/mapeo-verde-api/internal/model"
)

// DBF column names are limited to 10 characters.
var projectFields = []shp.Field{
	shp.StringField("ID", 40),
	shp.StringField("EXPEDIENTE", 40),
	shp.StringField("PROYECTO", 254),
	shp.StringField("PROMOVENTE", 254),
	shp.StringField("FECHA", 10),
	shp.StringField("ESTATUS", 40),
	shp.StringField("DEFAULTED", 40),
}

var greenAreaFields = []shp.Field{
	shp.NumberField("ID", 10),
	shp.StringField("NOMBRE", 254),
	shp.StringField("DIRECCION", 254),
	shp.StringField("ETIQUETAS", 254),
	shp.StringField("NECESIDAD", 254),
}

// WriteShapefile writes projects as a point shapefile at path, plus the
// .shx and .dbf siblings. Records without a plottable location are
// skipped. It returns the number of points written.
func WriteShapefile(path string, projects []model.Project) (int, error) {
	rows := make([][]any, 0, len(projects))
	points := make([]shp.Point, 0, len(projects))
	for _, p := range projects {
		if !geo.ValidLatLng(p.Lat, p.Lng) {
			continue
		}
		points = append(points, shp.Point{X: p.Lng, Y: p.Lat})
		rows = append(rows, []any{p.ID, p.Expediente, p.Project, p.Promoter, p.Date, p.Status, strings.Join(p.Defaulted, ",")})
	}
	return writePoints(path, projectFields, points, rows)
}

// WriteGreenAreasShapefile is the green-area variant of WriteShapefile.
func WriteGreenAreasShapefile(path string, areas []model.GreenArea) (int, error) {
	rows := make([][]any, 0, len(areas))
	points := make([]shp.Point, 0, len(areas))
	for _, a := range areas {
		if !geo.ValidLatLng(a.Lat, a.Lng) {
			continue
		}
		points = append(points, shp.Point{X: a.Lng, Y: a.Lat})
		rows = append(rows, []any{a.ID, a.Name, a.Address, strings.Join(a.Tags, ","), a.Need})
	}
	return writePoints(path, greenAreaFields, points, rows)
}

func writePoints(path string, fields []shp.Field, points []shp.Point, rows [][]any) (int, error) {
	if filepath.Ext(path) != ".shp" {
		path += ".shp"
	}
	w, err := shp.Create(path, shp.POINT)
	if err != nil {
		return 0, eris.Wrap(err, "export: create shapefile")
	}
	defer w.Close()

	if err := w.SetFields(fields); err != nil {
		return 0, eris.Wrap(err, "export: set shapefile fields")
	}
	for i := range points {
		n := int(w.Write(&points[i]))
		for j, v := range rows[i] {
			if err := w.WriteAttribute(n, j, v); err != nil {
				return i, eris.Wrapf(err, "export: write attribute %d of record %d", j, i)
			}
		}
	}
	return len(points), nil
}
