// Package export writes datasets as spreadsheets and GeoJSON files.
package export

import (
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/mapeo-verde/mapeo-verde-api/internal/model"
)

// ProjectHeader is the first row of a project sheet.
var ProjectHeader = []string{
	"ID", "Expediente", "Proyecto", "Promovente", "Tipo", "Fecha", "Año", "Estatus", "Lat", "Lng", "Campos por defecto",
}

// GreenAreaHeader is the first row of a green-area sheet.
var GreenAreaHeader = []string{"ID", "Nombre", "Dirección", "Lat", "Lng", "Etiquetas", "Necesidad"}

// WriteXLSX writes one row per project to a new workbook.
func WriteXLSX(w io.Writer, projects []model.Project, sheet string) error {
	f, s, err := newSheet(sheet, ProjectHeader)
	if err != nil {
		return err
	}
	for _, p := range projects {
		row := s.AddRow()
		addStrings(row, p.ID, p.Expediente, p.Project, p.Promoter, p.Type, p.Date, p.Year, p.Status)
		row.AddCell().SetFloat(p.Lat)
		row.AddCell().SetFloat(p.Lng)
		row.AddCell().SetString(strings.Join(p.Defaulted, ", "))
	}
	return eris.Wrap(f.Write(w), "export: write xlsx")
}

// WriteGreenAreasXLSX writes one row per green area to a new workbook.
func WriteGreenAreasXLSX(w io.Writer, areas []model.GreenArea, sheet string) error {
	f, s, err := newSheet(sheet, GreenAreaHeader)
	if err != nil {
		return err
	}
	for _, a := range areas {
		row := s.AddRow()
		row.AddCell().SetInt(a.ID)
		addStrings(row, a.Name, a.Address)
		row.AddCell().SetFloat(a.Lat)
		row.AddCell().SetFloat(a.Lng)
		addStrings(row, strings.Join(a.Tags, ", "), a.Need)
	}
	return eris.Wrap(f.Write(w), "export: write xlsx")
}

func newSheet(name string, header []string) (*xlsx.File, *xlsx.Sheet, error) {
	if name == "" {
		name = "Datos"
	}
	f := xlsx.NewFile()
	s, err := f.AddSheet(name)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "export: add sheet %s", name)
	}
	addStrings(s.AddRow(), header...)
	return f, s, nil
}

func addStrings(row *xlsx.Row, vals ...string) {
	for _, v := range vals {
		row.AddCell().SetString(v)
	}
}
