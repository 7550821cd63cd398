package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mapeo-verde/mapeo-verde-api/internal/geo"
	"github.com/mapeo-verde/mapeo-verde-api/internal/model"
	"github.com/mapeo-verde/mapeo-verde-api/internal/store"
)

const maxSubmissionBytes = 64 << 10

func (s *server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) state(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Provider.Snapshot())
}

func filtersFrom(r *http.Request) filters {
	q := r.URL.Query()
	return filters{
		q:        fold(q.Get("q")),
		year:     fold(q.Get("year")),
		status:   fold(q.Get("status")),
		kind:     fold(q.Get("type")),
		category: fold(q.Get("category")),
		tag:      fold(q.Get("tag")),
	}
}

func (s *server) greenAreas(w http.ResponseWriter, r *http.Request) {
	f := filtersFrom(r)
	items := filterSlice(s.deps.Provider.Snapshot().GreenAreas, f.greenArea)
	writeJSON(w, http.StatusOK, paginate(items, r))
}

func (s *server) projects(w http.ResponseWriter, r *http.Request) {
	f := filtersFrom(r)
	items := filterSlice(s.deps.Provider.Snapshot().Projects, f.project)
	writeJSON(w, http.StatusOK, paginate(items, r))
}

func (s *server) gazettes(w http.ResponseWriter, r *http.Request) {
	f := filtersFrom(r)
	items := filterSlice(s.deps.Provider.Snapshot().Gazettes, f.project)
	writeJSON(w, http.StatusOK, paginate(items, r))
}

func (s *server) events(w http.ResponseWriter, r *http.Request) {
	f := filtersFrom(r)
	items := filterSlice(s.deps.Provider.Snapshot().Events, f.event)
	writeJSON(w, http.StatusOK, paginate(items, r))
}

func (s *server) geoJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.deps.Provider.Snapshot()

	var fc any
	switch chi.URLParam(r, "dataset") {
	case "green-areas":
		fc = geo.GreenAreaFeatures(snap.GreenAreas)
	case "projects":
		fc = geo.ProjectFeatures(snap.Projects)
	case "gazettes":
		fc = geo.ProjectFeatures(snap.Gazettes)
	default:
		writeError(w, http.StatusNotFound, "unknown dataset")
		return
	}

	w.Header().Set("Content-Type", "application/geo+json")
	if err := json.NewEncoder(w).Encode(fc); err != nil {
		zap.L().Debug("api: write geojson", zap.Error(err))
	}
}

func parseFloatParam(r *http.Request, name string) *float64 {
	v, err := strconv.ParseFloat(r.URL.Query().Get(name), 64)
	if err != nil {
		return nil
	}
	return &v
}

func (s *server) convert(w http.ResponseWriter, r *http.Request) {
	x, y := parseFloatParam(r, "x"), parseFloatParam(r, "y")

	if zs := r.URL.Query().Get("zone"); zs != "" {
		zone, err := strconv.Atoi(zs)
		var conv *geo.Conversion
		if err == nil {
			conv = geo.ConvertZone(x, y, zone)
		}
		if conv == nil {
			writeError(w, http.StatusBadRequest, "finite x and y and a zone between 1 and 60 are required")
			return
		}
		writeJSON(w, http.StatusOK, conv)
		return
	}

	conv := geo.ConvertToLatLong(x, y)
	if conv == nil {
		writeError(w, http.StatusBadRequest, "x and y must be finite numbers")
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (s *server) refresh(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.deps.RefreshTimeout)
	defer cancel()

	s.deps.Provider.Invalidate()
	writeJSON(w, http.StatusOK, s.deps.Provider.Refresh(ctx))
}

func (s *server) participation(w http.ResponseWriter, r *http.Request) {
	var sub model.Submission
	body := io.LimitReader(r.Body, maxSubmissionBytes)
	if err := json.NewDecoder(body).Decode(&sub); err != nil {
		writeError(w, http.StatusBadRequest, "No pudimos leer el formulario.")
		return
	}
	sub.ID = ""

	err := s.deps.Access.Submit(r.Context(), &sub)
	var verr *store.ValidationError
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, map[string]string{"status": "ok", "id": sub.ID})
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Message)
	case errors.Is(err, store.ErrNoBackend):
		writeError(w, http.StatusServiceUnavailable, "El registro no está disponible en este momento. Intenta más tarde.")
	default:
		zap.L().Error("api: participation insert failed", zap.String("type", sub.Type), zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "No pudimos guardar tu registro. Intenta más tarde.")
	}
}
