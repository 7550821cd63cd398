// Package model defines the records served by the data provider.
package model

// Project status values.
const (
	StatusIngreso    = "Ingreso"
	StatusResolutivo = "Resolutivo Emitido"
)

// Project sources.
const (
	SourceBoletin = "boletin"
	SourceGaceta  = "gaceta"
	SourceBackend = "backend"
)

// Substituted values for records that arrive without a date or a location.
// Records that receive one of these list the field in Defaulted.
const (
	FallbackDate  = "2025-01-01"
	FallbackYear  = "2025"
	CityCenterLat = 21.8818
	CityCenterLng = -102.2916
)

// Names recorded in Project.Defaulted.
const (
	DefaultedDate        = "date"
	DefaultedCoordinates = "coordinates"
)

// GreenArea is an entry in the green-area inventory. Lat/Lng are not
// validated; use geo.ValidLatLng before plotting.
type GreenArea struct {
	ID      int      `json:"id" yaml:"id"`
	Name    string   `json:"name" yaml:"name"`
	Address string   `json:"address" yaml:"address"`
	Lat     float64  `json:"lat" yaml:"lat"`
	Lng     float64  `json:"lng" yaml:"lng"`
	Tags    []string `json:"tags" yaml:"tags"`
	Need    string   `json:"need" yaml:"need"` // empty = no reported issue
	Image   string   `json:"image" yaml:"image"`
}

// Project is a construction-impact filing or resolution.
type Project struct {
	ID          string   `json:"id"`
	Expediente  string   `json:"expediente,omitempty"`
	Project     string   `json:"project"`
	Promoter    string   `json:"promoter"`
	Type        string   `json:"type"`
	Date        string   `json:"date"`
	Year        string   `json:"year"`
	Status      string   `json:"status"`
	Lat         float64  `json:"lat"`
	Lng         float64  `json:"lng"`
	Description string   `json:"description"`
	Impact      string   `json:"impact"`
	URL         string   `json:"url,omitempty"`
	Filename    string   `json:"filename,omitempty"`
	Source      string   `json:"source,omitempty"`
	Defaulted   []string `json:"defaulted,omitempty"`
}

// IsDefaulted reports whether field carries a substituted value.
func (p Project) IsDefaulted(field string) bool {
	for _, f := range p.Defaulted {
		if f == field {
			return true
		}
	}
	return false
}

// Gazette is a federal gazette record. It shares the Project shape.
type Gazette = Project

// CloneGreenAreas returns a copy of areas that shares no backing arrays.
func CloneGreenAreas(areas []GreenArea) []GreenArea {
	out := make([]GreenArea, len(areas))
	for i, a := range areas {
		a.Tags = append([]string(nil), a.Tags...)
		out[i] = a
	}
	return out
}

// CloneProjects returns a copy of projects that shares no backing arrays.
func CloneProjects(projects []Project) []Project {
	out := make([]Project, len(projects))
	for i, p := range projects {
		p.Defaulted = append([]string(nil), p.Defaulted...)
		out[i] = p
	}
	return out
}
