package data

import (
	"context"
	"encoding/json"
	"slices"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/mapeo-verde/mapeo-verde-api/internal/cache"
	"github.com/mapeo-verde/mapeo-verde-api/internal/mapper"
	"github.com/mapeo-verde/mapeo-verde-api/internal/model"
	"github.com/mapeo-verde/mapeo-verde-api/internal/resilience"
	"github.com/mapeo-verde/mapeo-verde-api/internal/store"
)

// Dataset names, also used as cache key prefixes and metric labels.
const (
	DatasetGreenAreas = "green_areas"
	DatasetProjects   = "projects"
	DatasetGazettes   = "gazettes"
	DatasetEvents     = "events"
)

// Tier names.
const (
	TierTable = "table"
	TierJSON  = "json"
)

// BackendBreaker is the breaker name guarding every backend call.
const BackendBreaker = "backend"

// Options controls one read. Fallback must be a []T of the dataset's type;
// anything else is ignored.
type Options struct {
	UseCache bool
	CacheTTL time.Duration
	Fallback any
}

// DefaultOptions reads through the cache with the default TTL.
func DefaultOptions() Options {
	return Options{UseCache: true}
}

// WithFallback returns a copy of o carrying fallback.
func (o Options) WithFallback(fallback any) Options {
	o.Fallback = fallback
	return o
}

// Access is the data access layer. A nil backend is the normal
// static-only mode: every read returns its fallback.
type Access struct {
	backend store.Backend
	cache   *cache.QueryCache
	dedupe  *cache.Deduplicator
	breaker *resilience.Breaker
	retry   resilience.RetryPolicy
}

// NewAccess wires the layer. Nil cache, deduplicator or breakers get
// defaults.
func NewAccess(backend store.Backend, qc *cache.QueryCache, dd *cache.Deduplicator, breakers *resilience.Breakers) *Access {
	if qc == nil {
		qc = cache.NewQueryCache(cache.DefaultTTL)
	}
	if dd == nil {
		dd = cache.NewDeduplicator(cache.DefaultWindow)
	}
	if breakers == nil {
		breakers = resilience.NewBreakers(resilience.BreakerConfig{})
	}
	return &Access{
		backend: backend,
		cache:   qc,
		dedupe:  dd,
		breaker: breakers.Get(BackendBreaker),
		retry:   resilience.RetryPolicy{Attempts: 2},
	}
}

// HasBackend reports whether a backend is configured.
func (a *Access) HasBackend() bool { return a.backend != nil }

// Cache returns the query cache, for sweeping and stats.
func (a *Access) Cache() *cache.QueryCache { return a.cache }

// Deduplicator returns the request deduplicator, for sweeping.
func (a *Access) Deduplicator() *cache.Deduplicator { return a.dedupe }

// Invalidate drops every cached dataset so the next read hits the backend.
func (a *Access) Invalidate() { a.cache.Clear() }

// GreenAreas reads green_areas, then the areas_donacion_json blob.
func (a *Access) GreenAreas(ctx context.Context, opts Options) []model.GreenArea {
	items, _ := a.FetchGreenAreas(ctx, opts)
	return items
}

// Projects reads projects, then the boletines_json blob through the
// bulletin mapper.
func (a *Access) Projects(ctx context.Context, opts Options) []model.Project {
	items, _ := a.FetchProjects(ctx, opts)
	return items
}

// Gazettes reads gazettes, then the gacetas_json blob through the gazette
// mapper.
func (a *Access) Gazettes(ctx context.Context, opts Options) []model.Gazette {
	items, _ := a.FetchGazettes(ctx, opts)
	return items
}

// Events reads events, then the documentos_json row named eventos.
func (a *Access) Events(ctx context.Context, opts Options) []model.Event {
	items, _ := a.FetchEvents(ctx, opts)
	return items
}

// FetchGreenAreas is GreenAreas plus whether the backend (or the cache)
// supplied the result rather than the fallback.
func (a *Access) FetchGreenAreas(ctx context.Context, opts Options) ([]model.GreenArea, bool) {
	return read(ctx, a, DatasetGreenAreas, opts, func() []Tier[model.GreenArea] {
		return []Tier[model.GreenArea]{
			{Name: TierTable, Fetch: guarded(a, DatasetGreenAreas, a.backend.GreenAreas)},
			{Name: TierJSON, Fetch: guarded(a, DatasetGreenAreas, func(ctx context.Context) ([]model.GreenArea, error) {
				raw, err := a.backend.Document(ctx, store.TableAreasJSON, "")
				if err != nil {
					return nil, err
				}
				return unwrapList[model.GreenArea](raw, "areas", "data")
			})},
		}
	})
}

// FetchProjects is the Projects variant of FetchGreenAreas.
func (a *Access) FetchProjects(ctx context.Context, opts Options) ([]model.Project, bool) {
	return read(ctx, a, DatasetProjects, opts, func() []Tier[model.Project] {
		return []Tier[model.Project]{
			{Name: TierTable, Fetch: guarded(a, DatasetProjects, a.backend.Projects)},
			{Name: TierJSON, Fetch: guarded(a, DatasetProjects, a.documentMapper(store.TableBoletinesJSON, mapper.MapBoletinesToProjects))},
		}
	})
}

// FetchGazettes is the Gazettes variant of FetchGreenAreas.
func (a *Access) FetchGazettes(ctx context.Context, opts Options) ([]model.Gazette, bool) {
	return read(ctx, a, DatasetGazettes, opts, func() []Tier[model.Gazette] {
		return []Tier[model.Gazette]{
			{Name: TierTable, Fetch: guarded(a, DatasetGazettes, a.backend.Gazettes)},
			{Name: TierJSON, Fetch: guarded(a, DatasetGazettes, a.documentMapper(store.TableGacetasJSON, mapper.MapGacetasToDataset))},
		}
	})
}

// FetchEvents is the Events variant of FetchGreenAreas.
func (a *Access) FetchEvents(ctx context.Context, opts Options) ([]model.Event, bool) {
	return read(ctx, a, DatasetEvents, opts, func() []Tier[model.Event] {
		return []Tier[model.Event]{
			{Name: TierTable, Fetch: guarded(a, DatasetEvents, a.backend.Events)},
			{Name: TierJSON, Fetch: guarded(a, DatasetEvents, func(ctx context.Context) ([]model.Event, error) {
				raw, err := a.backend.Document(ctx, store.TableDocumentosJSON, store.EventsDocument)
				if err != nil {
					return nil, err
				}
				return unwrapList[model.Event](raw, "events", "eventos", "data")
			})},
		}
	})
}

// Submit stores a participation form. It returns a *store.ValidationError
// for bad input and store.ErrNoBackend when there is nowhere to write.
func (a *Access) Submit(ctx context.Context, sub *model.Submission) error {
	if err := store.ValidateSubmission(sub); err != nil {
		return err
	}
	if a.backend == nil {
		return store.ErrNoBackend
	}
	_, err := resilience.Call(ctx, a.breaker, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, a.backend.InsertSubmission(ctx, sub)
	})
	if err != nil {
		return eris.Wrap(err, "data: submit participation")
	}
	return nil
}

func (a *Access) documentMapper(table string, fn func([]byte) []model.Project) func(context.Context) ([]model.Project, error) {
	return func(ctx context.Context) ([]model.Project, error) {
		raw, err := a.backend.Document(ctx, table, "")
		if err != nil {
			return nil, err
		}
		if raw == nil {
			return nil, nil
		}
		return fn(raw), nil
	}
}

// guarded runs a backend call through the breaker, retrying transient
// failures.
func guarded[T any](a *Access, dataset string, fn func(context.Context) ([]T, error)) func(context.Context) ([]T, error) {
	return func(ctx context.Context) ([]T, error) {
		return resilience.Call(ctx, a.breaker, func(ctx context.Context) ([]T, error) {
			return resilience.DoVal(ctx, "backend:"+dataset, a.retry, fn)
		})
	}
}

type tiered[T any] struct {
	items []T
	tier  string
}

// read is the shared algorithm: cache, then a deduplicated tiered fetch,
// then the fallback. live reports whether the items came from the backend.
func read[T any](ctx context.Context, a *Access, dataset string, opts Options, tiers func() []Tier[T]) ([]T, bool) {
	fallback := fallbackOf[T](opts.Fallback)
	key := cache.KeyFor(dataset, nil)

	if opts.UseCache {
		if items, ok := cache.Lookup[[]T](a.cache, key); ok && len(items) > 0 {
			return slices.Clone(items), true
		}
	}
	if a.backend == nil {
		zap.L().Debug("data: no backend, using fallback", zap.String("dataset", dataset))
		return fallback, false
	}
	res, err := cache.Do(ctx, a.dedupe, key, func(ctx context.Context) (tiered[T], error) {
		items, tier, err := FetchTiered(ctx, dataset, tiers())
		return tiered[T]{items: items, tier: tier}, err
	})
	if err != nil || len(res.items) == 0 {
		zap.L().Debug("data: using fallback",
			zap.String("dataset", dataset),
			zap.Int("fallback", len(fallback)),
			zap.Error(err),
		)
		return fallback, false
	}

	if opts.UseCache {
		a.cache.Set(key, res.items, opts.CacheTTL)
	}
	zap.L().Debug("data: loaded from backend",
		zap.String("dataset", dataset),
		zap.String("tier", res.tier),
		zap.Int("count", len(res.items)),
	)
	return slices.Clone(res.items), true
}

func fallbackOf[T any](v any) []T {
	if items, ok := v.([]T); ok && items != nil {
		return slices.Clone(items)
	}
	return []T{}
}

// unwrapList decodes a JSON blob that is either an array or an object
// holding the array under one of keys. A nil blob is empty.
func unwrapList[T any](raw []byte, keys ...string) ([]T, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var list []T
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, eris.Wrap(err, "data: decode json blob")
	}
	for _, k := range keys {
		inner, ok := obj[k]
		if !ok {
			continue
		}
		if err := json.Unmarshal(inner, &list); err != nil {
			return nil, eris.Wrapf(err, "data: decode json blob key %s", k)
		}
		return list, nil
	}
	return nil, nil
}
