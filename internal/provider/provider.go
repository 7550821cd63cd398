// Package provider owns the aggregate dataset state. It refreshes the four
// collections concurrently and hands out copies to readers.
package provider

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mapeo-verde/mapeo-verde-api/internal/data"
	"github.com/mapeo-verde/mapeo-verde-api/internal/mapper"
	"github.com/mapeo-verde/mapeo-verde-api/internal/metrics"
	"github.com/mapeo-verde/mapeo-verde-api/internal/model"
	"github.com/mapeo-verde/mapeo-verde-api/internal/static"
)

// ErrorFallback is the advisory set when no dataset came from a live source.
const ErrorFallback = "live sources unavailable; showing fallback data"

// Origins recorded in State.Sources.
const (
	OriginCalendar   = "calendar"
	OriginBackend    = "backend"
	OriginStaticFile = "static-file"
	OriginFallback   = "fallback"
)

// Keys of State.Sources.
const (
	KeyGreenAreas = "greenAreas"
	KeyProjects   = "projects"
	KeyGazettes   = "gazettes"
	KeyEvents     = "events"
)

// EventSource is the live calendar.
type EventSource interface {
	FetchEvents(ctx context.Context) []model.Event
}

// AssetLoader reads the public bulletin and gazette files.
type AssetLoader interface {
	Load(ctx context.Context, name string) ([]byte, error)
}

// Config tunes the provider.
type Config struct {
	BoletinesFile   string
	GacetasFile     string
	LiveGreenAreas  bool
	RefreshInterval time.Duration
	CleanupInterval time.Duration
}

// Deps are the provider's collaborators. Access is required. A nil
// Calendar or Loader skips that source. A zero Static uses the embedded
// fallbacks.
type Deps struct {
	Access   *data.Access
	Calendar EventSource
	Static   static.Fallback
	Loader   AssetLoader
	Config   Config
}

// State is the exposed aggregate. The four collections are never nil.
type State struct {
	GreenAreas []model.GreenArea `json:"greenAreas"`
	Projects   []model.Project   `json:"projects"`
	Gazettes   []model.Gazette   `json:"gazettes"`
	Events     []model.Event     `json:"events"`
	Loading    bool              `json:"loading"`
	Error      string            `json:"error,omitempty"`
	Sources    map[string]string `json:"sources"`
	Epoch      uint64            `json:"epoch"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}

func (s State) clone() State {
	out := s
	out.GreenAreas = model.CloneGreenAreas(s.GreenAreas)
	out.Projects = model.CloneProjects(s.Projects)
	out.Gazettes = model.CloneProjects(s.Gazettes)
	out.Events = model.CloneEvents(s.Events)
	out.Sources = make(map[string]string, len(s.Sources))
	for k, v := range s.Sources {
		out.Sources[k] = v
	}
	return out
}

// Provider holds the current State.
type Provider struct {
	deps Deps

	mu    sync.RWMutex
	state State
	epoch uint64
}

// New creates a provider whose initial state is the static fallback,
// marked as loading until the first Refresh commits.
func New(deps Deps) *Provider {
	if len(deps.Static.GreenAreas) == 0 && len(deps.Static.Events) == 0 {
		deps.Static = static.Fallbacks()
	}
	if deps.Access == nil {
		deps.Access = data.NewAccess(nil, nil, nil, nil)
	}
	if deps.Config.BoletinesFile == "" {
		deps.Config.BoletinesFile = "boletines.json"
	}
	if deps.Config.GacetasFile == "" {
		deps.Config.GacetasFile = "gacetas_semarnat_analizadas.json"
	}
	p := &Provider{deps: deps}
	p.state = State{
		GreenAreas: model.CloneGreenAreas(deps.Static.GreenAreas),
		Projects:   []model.Project{},
		Gazettes:   []model.Gazette{},
		Events:     model.CloneEvents(deps.Static.Events),
		Loading:    true,
		Sources: map[string]string{
			KeyGreenAreas: OriginFallback,
			KeyProjects:   OriginFallback,
			KeyGazettes:   OriginFallback,
			KeyEvents:     OriginFallback,
		},
	}
	return p
}

// Snapshot returns a copy of the current state.
func (p *Provider) Snapshot() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state.clone()
}

// Invalidate drops cached backend reads so the next Refresh queries again.
func (p *Provider) Invalidate() {
	p.deps.Access.Invalidate()
}

// Refresh reloads every dataset and commits the result unless a newer
// Refresh started meanwhile. It returns the state as committed.
func (p *Provider) Refresh(ctx context.Context) State {
	start := time.Now()

	p.mu.Lock()
	p.epoch++
	epoch := p.epoch
	p.state.Loading = true
	p.mu.Unlock()

	var (
		next = State{Epoch: epoch}
		srcs [4]string
	)

	// Branches report failure through their origin, never to the group.
	var g errgroup.Group
	g.Go(func() error {
		next.GreenAreas, srcs[0] = p.loadGreenAreas(ctx)
		return nil
	})
	g.Go(func() error {
		next.Projects, srcs[1] = p.loadProjectFile(ctx, p.deps.Config.BoletinesFile, mapper.MapBoletinesToProjects, p.deps.Access.FetchProjects)
		return nil
	})
	g.Go(func() error {
		next.Gazettes, srcs[2] = p.loadProjectFile(ctx, p.deps.Config.GacetasFile, mapper.MapGacetasToDataset, p.deps.Access.FetchGazettes)
		return nil
	})
	g.Go(func() error {
		next.Events, srcs[3] = p.loadEvents(ctx)
		return nil
	})
	_ = g.Wait()

	next.Sources = map[string]string{
		KeyGreenAreas: srcs[0],
		KeyProjects:   srcs[1],
		KeyGazettes:   srcs[2],
		KeyEvents:     srcs[3],
	}
	outcome := "live"
	if !anyLive(srcs[:]) {
		next.Error = ErrorFallback
		outcome = "fallback"
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	elapsed := time.Since(start)
	metrics.RefreshDuration.Observe(elapsed.Seconds())

	if epoch != p.epoch {
		metrics.RefreshTotal.WithLabelValues("stale").Inc()
		zap.L().Info("provider: dropping stale refresh",
			zap.Uint64("epoch", epoch),
			zap.Uint64("current", p.epoch),
			zap.Duration("elapsed", elapsed),
		)
		return p.state.clone()
	}

	next.UpdatedAt = time.Now().UTC()
	p.state = next
	metrics.RefreshTotal.WithLabelValues(outcome).Inc()
	zap.L().Info("provider: refreshed",
		zap.Uint64("epoch", epoch),
		zap.Int("green_areas", len(next.GreenAreas)),
		zap.Int("projects", len(next.Projects)),
		zap.Int("gazettes", len(next.Gazettes)),
		zap.Int("events", len(next.Events)),
		zap.Any("sources", next.Sources),
		zap.Duration("elapsed", elapsed),
	)
	return p.state.clone()
}

func anyLive(origins []string) bool {
	for _, o := range origins {
		if o != OriginFallback {
			return true
		}
	}
	return false
}

func (p *Provider) loadGreenAreas(ctx context.Context) ([]model.GreenArea, string) {
	fallback := model.CloneGreenAreas(p.deps.Static.GreenAreas)
	if !p.deps.Config.LiveGreenAreas {
		return fallback, OriginFallback
	}
	areas, live := p.deps.Access.FetchGreenAreas(ctx, data.DefaultOptions().WithFallback(fallback))
	if live {
		return areas, OriginBackend
	}
	return areas, OriginFallback
}

// loadProjectFile maps the static file and offers it as the fallback for
// the backend read.
func (p *Provider) loadProjectFile(
	ctx context.Context,
	name string,
	mapFn func([]byte) []model.Project,
	fetch func(context.Context, data.Options) ([]model.Project, bool),
) ([]model.Project, string) {
	var fromFile []model.Project
	if p.deps.Loader != nil {
		raw, err := p.deps.Loader.Load(ctx, name)
		switch {
		case errors.Is(err, static.ErrNotConfigured):
			zap.L().Debug("provider: no static asset source", zap.String("dataset", name))
		case err != nil:
			zap.L().Warn("provider: static file unavailable", zap.String("dataset", name), zap.Error(err))
		default:
			fromFile = mapFn(raw)
		}
	}

	items, live := fetch(ctx, data.DefaultOptions().WithFallback(fromFile))
	switch {
	case live:
		return items, OriginBackend
	case len(fromFile) > 0:
		return items, OriginStaticFile
	}
	return items, OriginFallback
}

func (p *Provider) loadEvents(ctx context.Context) ([]model.Event, string) {
	if p.deps.Calendar != nil {
		if events := p.deps.Calendar.FetchEvents(ctx); len(events) > 0 {
			return events, OriginCalendar
		}
	}
	fallback := model.CloneEvents(p.deps.Static.Events)
	events, live := p.deps.Access.FetchEvents(ctx, data.DefaultOptions().WithFallback(fallback))
	if live {
		return events, OriginBackend
	}
	return events, OriginFallback
}

// Run performs the initial load, then refreshes every RefreshInterval
// (when positive) and sweeps the cache and deduplicator until ctx is done.
func (p *Provider) Run(ctx context.Context) {
	cleanup := p.deps.Config.CleanupInterval
	if cleanup <= 0 {
		cleanup = time.Minute
	}
	go p.deps.Access.Cache().Run(ctx, cleanup)
	go p.deps.Access.Deduplicator().Run(ctx, cleanup)

	p.Refresh(ctx)

	if p.deps.Config.RefreshInterval <= 0 {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(p.deps.Config.RefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Refresh(ctx)
		}
	}
}
