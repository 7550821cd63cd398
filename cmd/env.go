package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mapeo-verde/mapeo-verde-api/internal/cache"
	"github.com/mapeo-verde/mapeo-verde-api/internal/config"
	"github.com/mapeo-verde/mapeo-verde-api/internal/data"
	"github.com/mapeo-verde/mapeo-verde-api/internal/fetcher"
	"github.com/mapeo-verde/mapeo-verde-api/internal/ical"
	"github.com/mapeo-verde/mapeo-verde-api/internal/provider"
	"github.com/mapeo-verde/mapeo-verde-api/internal/resilience"
	"github.com/mapeo-verde/mapeo-verde-api/internal/static"
	"github.com/mapeo-verde/mapeo-verde-api/internal/store"
)

// appEnv holds the wired collaborators shared by the commands.
type appEnv struct {
	Fetcher  *fetcher.HTTPFetcher
	Breakers *resilience.Breakers
	Backend  store.Backend
	Access   *data.Access
	Calendar *ical.Adapter
	Loader   *static.Loader
	Provider *provider.Provider
}

// Close releases the backend connection, if any.
func (e *appEnv) Close() {
	if e.Backend != nil {
		if err := e.Backend.Close(); err != nil {
			zap.L().Warn("close backend", zap.Error(err))
		}
	}
}

func newFetcher(c *config.Config) *fetcher.HTTPFetcher {
	return fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:  c.Fetch.UserAgent,
		Timeout:    time.Duration(c.Fetch.TimeoutSecs) * time.Second,
		MaxRetries: c.Fetch.MaxRetries,
		RatePerSec: c.Fetch.RatePerSec,
	})
}

func storeConfig(c *config.Config) store.Config {
	return store.Config{
		Driver:      c.Store.Driver,
		DatabaseURL: c.Store.DatabaseURL,
		SQLitePath:  c.Store.SQLitePath,
		MaxConns:    c.Store.MaxConns,
	}
}

// openBackend connects to the configured backend. A nil backend with a nil
// error means none is configured.
func openBackend(ctx context.Context, c *config.Config) (store.Backend, error) {
	return store.New(ctx, storeConfig(c))
}

// initEnv wires the provider. A backend that fails to open or migrate is
// logged and skipped; the service then runs on files and fallbacks.
func initEnv(ctx context.Context, c *config.Config) *appEnv {
	env := &appEnv{
		Fetcher:  newFetcher(c),
		Breakers: resilience.NewBreakers(resilience.FromConfig(data.BackendBreaker, c.Backend.FailureThreshold, c.Backend.ResetTimeoutSecs)),
	}

	backend, err := openBackend(ctx, c)
	switch {
	case err != nil:
		zap.L().Warn("backend unavailable, continuing without it", zap.String("driver", c.Store.Driver), zap.Error(err))
	case backend != nil:
		if err := backend.Migrate(ctx); err != nil {
			zap.L().Warn("backend migrate failed, continuing without it", zap.Error(err))
			_ = backend.Close()
		} else {
			env.Backend = backend
		}
	default:
		zap.L().Info("no backend configured, serving files and fallbacks")
	}

	env.Access = data.NewAccess(
		env.Backend,
		cache.NewQueryCache(c.Cache.TTL()),
		cache.NewDeduplicator(c.Cache.DedupWindow()),
		env.Breakers,
	)
	env.Calendar = ical.NewAdapter(env.Fetcher, ical.Config{
		URL:          c.Calendar.URL,
		Proxies:      c.Calendar.Proxies,
		Timezone:     c.Calendar.Timezone,
		DefaultImage: c.Calendar.DefaultImage,
	}, env.Breakers)
	env.Loader = static.NewLoader(env.Fetcher, c.Static.BaseURL, c.Static.Dir)

	deps := provider.Deps{
		Access: env.Access,
		Config: provider.Config{
			BoletinesFile:   c.Static.BoletinesFile,
			GacetasFile:     c.Static.GacetasFile,
			LiveGreenAreas:  c.Provider.LiveGreenAreas,
			RefreshInterval: c.Provider.RefreshInterval(),
			CleanupInterval: c.Cache.CleanupInterval(),
		},
	}
	if env.Calendar.Configured() {
		deps.Calendar = env.Calendar
	}
	if env.Loader.Configured() {
		deps.Loader = env.Loader
	}
	env.Provider = provider.New(deps)
	return env
}
