//go:build !integration

package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mapeo-verde/mapeo-verde-api/internal/model"
	"github.com/mapeo-verde/mapeo-verde-api/internal/provider"
)

func sampleState() provider.State {
	return provider.State{
		GreenAreas: []model.GreenArea{{ID: 1, Name: "Parque Rodolfo Landeros", Lat: 21.85, Lng: -102.28}},
		Projects: []model.Project{
			{ID: "B1-1", Project: "Plaza Norte", Date: "2025-03-01", Year: "2025", Status: model.StatusIngreso, Lat: 21.9, Lng: -102.3},
			{ID: "B1-R1", Project: "Torre Sur", Date: "2025-04-01", Year: "2025", Status: model.StatusResolutivo, Lat: 21.8, Lng: -102.2},
		},
		Gazettes: []model.Gazette{},
		Events:   []model.Event{{ID: "e1", Title: "Reforestación", Date: "2025-06-01", Time: "Todo el día", Category: "Reforestación", Location: "Parque México"}},
		Sources: map[string]string{
			provider.KeyGreenAreas: provider.OriginFallback,
			provider.KeyProjects:   provider.OriginStaticFile,
			provider.KeyGazettes:   provider.OriginFallback,
			provider.KeyEvents:     provider.OriginCalendar,
		},
	}
}

func TestFormatSummary_AllDatasets(t *testing.T) {
	var buf bytes.Buffer
	formatSummary(&buf, sampleState(), "")

	out := buf.String()
	assert.Contains(t, out, "DATASET")
	assert.Contains(t, out, "green-areas")
	assert.Contains(t, out, "static-file")
	assert.Contains(t, out, "calendar")
	assert.Contains(t, out, "gazettes")
	assert.NotContains(t, out, provider.ErrorFallback)
}

func TestFormatSummary_SingleDatasetWithError(t *testing.T) {
	state := sampleState()
	state.Error = provider.ErrorFallback

	var buf bytes.Buffer
	formatSummary(&buf, state, "projects")

	out := buf.String()
	assert.Contains(t, out, "projects")
	assert.NotContains(t, out, "green-areas")
	assert.NotContains(t, out, "events")
	assert.Contains(t, out, provider.ErrorFallback)
}

func TestWriteStateJSON_Dataset(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeStateJSON(&buf, sampleState(), "projects"))

	var projects []model.Project
	require.NoError(t, json.Unmarshal(buf.Bytes(), &projects))
	require.Len(t, projects, 2)
	assert.Equal(t, "B1-R1", projects[1].ID)
}

func TestWriteStateJSON_FullState(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeStateJSON(&buf, sampleState(), ""))

	var out map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	for _, key := range []string{"greenAreas", "projects", "gazettes", "events", "sources"} {
		assert.Contains(t, out, key)
	}
}

func TestFormatEvents(t *testing.T) {
	var buf bytes.Buffer
	formatEvents(&buf, sampleState().Events)

	out := buf.String()
	assert.Contains(t, out, "TITLE")
	assert.Contains(t, out, "Reforestación")
	assert.Contains(t, out, "Todo el día")
	assert.Contains(t, out, "1 events")
}

func TestCheckExportFlags(t *testing.T) {
	assert.NoError(t, checkExportFlags("projects", "xlsx"))
	assert.NoError(t, checkExportFlags("green-areas", "geojson"))
	assert.Error(t, checkExportFlags("events", "xlsx"))
	assert.NoError(t, checkExportFlags("gazettes", "shp"))
	assert.Error(t, checkExportFlags("gazettes", "csv"))
}

func TestWriteExport_GeoJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeExport(&buf, sampleState(), "projects", "geojson"))

	var fc struct {
		Type     string            `json:"type"`
		Features []json.RawMessage `json:"features"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	assert.Len(t, fc.Features, 2)
}

func TestWriteExport_EmptyGazettes(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeExport(&buf, sampleState(), "gazettes", "geojson"))
	assert.Contains(t, buf.String(), `"features": []`)
}

func TestWriteExport_XLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeExport(&buf, sampleState(), "green-areas", "xlsx"))
	// XLSX files are zip archives.
	assert.Equal(t, "PK", buf.String()[:2])
}

func TestWriteShapefile_Projects(t *testing.T) {
	path := filepath.Join(t.TempDir(), "proyectos.shp")
	n, err := writeShapefile(path, sampleState(), "projects")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = writeShapefile(filepath.Join(t.TempDir(), "gacetas.shp"), sampleState(), "gazettes")
	require.NoError(t, err)
	assert.Zero(t, n)
}
