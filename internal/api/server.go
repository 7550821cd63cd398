// Package api serves the provider state and the participation form over
// JSON HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/mapeo-verde/mapeo-verde-api/internal/data"
	"github.com/mapeo-verde/mapeo-verde-api/internal/provider"
)

// Deps are the handlers' collaborators. Metrics may be nil to omit
// /metrics.
type Deps struct {
	Provider       *provider.Provider
	Access         *data.Access
	AllowedOrigins []string
	Metrics        http.Handler
	RefreshTimeout time.Duration
}

type server struct {
	deps Deps
}

// NewRouter builds the API router.
func NewRouter(deps Deps) http.Handler {
	if len(deps.AllowedOrigins) == 0 {
		deps.AllowedOrigins = []string{"*"}
	}
	if deps.Access == nil {
		deps.Access = data.NewAccess(nil, nil, nil, nil)
	}
	if deps.Provider == nil {
		deps.Provider = provider.New(provider.Deps{Access: deps.Access})
	}
	if deps.RefreshTimeout <= 0 {
		deps.RefreshTimeout = 60 * time.Second
	}
	s := &server{deps: deps}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: deps.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(countRequests)

	r.Get("/health", s.health)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/data", s.state)
		r.Get("/green-areas", s.greenAreas)
		r.Get("/projects", s.projects)
		r.Get("/gazettes", s.gazettes)
		r.Get("/events", s.events)
		r.Get("/geojson/{dataset}", s.geoJSON)
		r.Get("/convert", s.convert)
		r.Post("/refresh", s.refresh)
		r.Post("/participation", s.participation)
	})
	return r
}
