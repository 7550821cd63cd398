package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mapeo-verde/mapeo-verde-api/internal/data"
	"github.com/mapeo-verde/mapeo-verde-api/internal/metrics"
	"github.com/mapeo-verde/mapeo-verde-api/internal/model"
	"github.com/mapeo-verde/mapeo-verde-api/internal/provider"
	"github.com/mapeo-verde/mapeo-verde-api/internal/static"
	"github.com/mapeo-verde/mapeo-verde-api/internal/store"
)

func testProjects(n int) []model.Project {
	out := make([]model.Project, n)
	for i := range out {
		out[i] = model.Project{
			ID:      fmt.Sprintf("B1-%d", i+1),
			Project: fmt.Sprintf("Proyecto %d", i+1),
			Year:    "2025",
			Status:  model.StatusIngreso,
			Lat:     21.88,
			Lng:     -102.29,
		}
	}
	out[0].Project = "Ampliación del Jardín"
	out[1].Status = model.StatusResolutivo
	return out
}

// newTestRouter serves a provider seeded from a SQLite backend. A nil
// backend means static-only mode.
func newTestRouter(t *testing.T, backend store.Backend) http.Handler {
	t.Helper()
	access := data.NewAccess(backend, nil, nil, nil)
	p := provider.New(provider.Deps{Access: access, Static: static.Fallbacks()})
	p.Refresh(context.Background())
	return NewRouter(Deps{Provider: p, Access: access, Metrics: metrics.Handler()})
}

func newSQLiteBackend(t *testing.T, projects []model.Project) store.Backend {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	_, err = s.Seed(context.Background(), store.SeedData{Projects: projects})
	require.NoError(t, err)
	return s
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHealth(t *testing.T) {
	rr := get(t, newTestRouter(t, nil), "/health")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestMetricsRoute(t *testing.T) {
	require.NoError(t, metrics.Register(prometheus.DefaultRegisterer))
	h := newTestRouter(t, nil)
	get(t, h, "/health")

	rr := get(t, h, "/metrics")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "mapeo_http_requests_total")
}

func TestStateEndpoint(t *testing.T) {
	rr := get(t, newTestRouter(t, nil), "/api/data")
	require.Equal(t, http.StatusOK, rr.Code)

	var state provider.State
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &state))
	assert.NotEmpty(t, state.GreenAreas)
	assert.NotNil(t, state.Projects)
	assert.Equal(t, provider.ErrorFallback, state.Error)
	assert.False(t, state.Loading)
}

func TestProjects_Pagination(t *testing.T) {
	h := newTestRouter(t, newSQLiteBackend(t, testProjects(30)))

	rr := get(t, h, "/api/projects?page=3&per_page=12")
	require.Equal(t, http.StatusOK, rr.Code)

	var page Page[model.Project]
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &page))
	assert.Equal(t, 30, page.Total)
	assert.Equal(t, 3, page.Page)
	assert.Equal(t, 12, page.PerPage)
	assert.Equal(t, 3, page.TotalPages)
	assert.Len(t, page.Items, 6)

	rr = get(t, h, "/api/projects?per_page=1000")
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &page))
	assert.Equal(t, maxPerPage, page.PerPage)
	assert.Len(t, page.Items, 30)

	rr = get(t, h, "/api/projects?page=9")
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &page))
	assert.Empty(t, page.Items)
	assert.NotNil(t, page.Items)
}

func TestProjects_HugePageIsEmpty(t *testing.T) {
	h := newTestRouter(t, newSQLiteBackend(t, testProjects(30)))

	rr := get(t, h, "/api/projects?page=9223372036854775807&per_page=100")
	require.Equal(t, http.StatusOK, rr.Code)

	var page Page[model.Project]
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &page))
	assert.Equal(t, 30, page.Total)
	assert.Equal(t, 1, page.TotalPages)
	assert.Empty(t, page.Items)
}

func TestProjects_AccentInsensitiveSearch(t *testing.T) {
	h := newTestRouter(t, newSQLiteBackend(t, testProjects(5)))

	var page Page[model.Project]
	rr := get(t, h, "/api/projects?q=AMPLIACION%20del%20jardin")
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &page))
	require.Equal(t, 1, page.Total)
	assert.Equal(t, "Ampliación del Jardín", page.Items[0].Project)

	rr = get(t, h, "/api/projects?status=resolutivo%20emitido")
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &page))
	assert.Equal(t, 1, page.Total)
}

func TestGreenAreas_DefaultPage(t *testing.T) {
	rr := get(t, newTestRouter(t, nil), "/api/green-areas")
	require.Equal(t, http.StatusOK, rr.Code)

	var page Page[model.GreenArea]
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &page))
	assert.Equal(t, len(static.Fallbacks().GreenAreas), page.Total)
	assert.Equal(t, defaultPerPage, page.PerPage)
}

func TestEvents_Endpoint(t *testing.T) {
	rr := get(t, newTestRouter(t, nil), "/api/events")
	require.Equal(t, http.StatusOK, rr.Code)

	var page Page[model.Event]
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &page))
	assert.Equal(t, len(static.Fallbacks().Events), page.Total)
}

func TestGeoJSON(t *testing.T) {
	h := newTestRouter(t, newSQLiteBackend(t, testProjects(3)))

	rr := get(t, h, "/api/geojson/projects")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/geo+json", rr.Header().Get("Content-Type"))

	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			Geometry struct {
				Coordinates []float64 `json:"coordinates"`
			} `json:"geometry"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	require.Len(t, fc.Features, 3)
	assert.InDelta(t, -102.29, fc.Features[0].Geometry.Coordinates[0], 1e-9)

	rr = get(t, h, "/api/geojson/rivers")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestConvert(t *testing.T) {
	h := newTestRouter(t, nil)

	rr := get(t, h, "/api/convert?x=780000&y=2422000")
	require.Equal(t, http.StatusOK, rr.Code)
	var conv struct {
		Lat          float64 `json:"lat"`
		Lng          float64 `json:"lng"`
		WasConverted bool    `json:"wasConverted"`
		OriginalType string  `json:"originalType"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &conv))
	assert.True(t, conv.WasConverted)
	assert.Equal(t, "utm", conv.OriginalType)
	assert.InDelta(t, 21.879879, conv.Lat, 1e-4)
	assert.InDelta(t, -102.290381, conv.Lng, 1e-4)

	rr = get(t, h, "/api/convert?x=236000&y=2420000&zone=14")
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &conv))
	assert.InDelta(t, -101.554583, conv.Lng, 1e-4)

	assert.Equal(t, http.StatusBadRequest, get(t, h, "/api/convert?x=abc&y=1").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, h, "/api/convert?x=1").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, h, "/api/convert?x=1&y=2&zone=99").Code)
}

func TestConvert_ExplicitZoneRejectsNonFinite(t *testing.T) {
	h := newTestRouter(t, nil)

	for _, q := range []string{
		"x=NaN&y=2400000&zone=13",
		"x=750000&y=Inf&zone=13",
		"x=-Inf&y=2400000&zone=13",
	} {
		rr := get(t, h, "/api/convert?"+q)
		assert.Equal(t, http.StatusBadRequest, rr.Code, q)

		var body map[string]string
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body), q)
		assert.NotEmpty(t, body["error"], q)
	}
}

func post(h http.Handler, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestParticipation_NoBackend(t *testing.T) {
	rr := post(newTestRouter(t, nil), "/api/participation", `{"type":"voluntariado","email":"ana@example.com"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.NotEmpty(t, body["error"])
}

func TestParticipation_Invalid(t *testing.T) {
	h := newTestRouter(t, nil)

	rr := post(h, "/api/participation", `{"type":"voluntariado"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "correo")

	rr = post(h, "/api/participation", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestParticipation_Stored(t *testing.T) {
	h := newTestRouter(t, newSQLiteBackend(t, nil))

	rr := post(h, "/api/participation", `{"type":"donacion","name":"Luis","whatsapp":"4491234567","data":{"arboles":3}}`)
	require.Equal(t, http.StatusCreated, rr.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.NotEmpty(t, body["id"])
}

func TestRefreshEndpoint(t *testing.T) {
	h := newTestRouter(t, nil)

	rr := post(h, "/api/refresh", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var state provider.State
	require.NoError(t, json.NewDecoder(bytes.NewReader(rr.Body.Bytes())).Decode(&state))
	assert.Equal(t, uint64(2), state.Epoch)
}

func TestCORSPreflight(t *testing.T) {
	h := NewRouter(Deps{AllowedOrigins: []string{"https://mapeoverde.org"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/projects", nil)
	req.Header.Set("Origin", "https://mapeoverde.org")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, "https://mapeoverde.org", rr.Header().Get("Access-Control-Allow-Origin"))
}
