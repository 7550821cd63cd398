// Package ical fetches the public volunteer calendar and maps its VEVENTs
// to model.Event.
package ical

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/mapeo-verde/mapeo-verde-api/internal/fetcher"
	"github.com/mapeo-verde/mapeo-verde-api/internal/metrics"
	"github.com/mapeo-verde/mapeo-verde-api/internal/model"
	"github.com/mapeo-verde/mapeo-verde-api/internal/resilience"
)

// ErrAllSourcesFailed is returned when neither the feed nor any relay answered.
var ErrAllSourcesFailed = eris.New("ical: all calendar sources failed")

// Config locates the feed.
type Config struct {
	URL          string
	Proxies      []string
	Timezone     string
	DefaultImage string
}

// Adapter fetches and parses the calendar feed.
type Adapter struct {
	fetcher  fetcher.Fetcher
	cfg      Config
	breakers *resilience.Breakers
	images   ImageExtractor
}

// NewAdapter creates an adapter. breakers may be nil.
func NewAdapter(f fetcher.Fetcher, cfg Config, breakers *resilience.Breakers) *Adapter {
	if breakers == nil {
		breakers = resilience.NewBreakers(resilience.BreakerConfig{})
	}
	return &Adapter{fetcher: f, cfg: cfg, breakers: breakers, images: TextImageExtractor{}}
}

// WithImageExtractor swaps the description scanner.
func (a *Adapter) WithImageExtractor(x ImageExtractor) *Adapter {
	a.images = x
	return a
}

// Configured reports whether a feed URL is set.
func (a *Adapter) Configured() bool {
	return a != nil && a.cfg.URL != "" && a.fetcher != nil
}

// FetchEvents returns the calendar's events. It never fails: any error is
// logged and yields an empty list.
func (a *Adapter) FetchEvents(ctx context.Context) []model.Event {
	events, err := a.Events(ctx)
	if err != nil {
		zap.L().Warn("ical: calendar unavailable", zap.Error(err))
		return []model.Event{}
	}
	return events
}

// Events fetches and parses the feed, reporting why it failed.
func (a *Adapter) Events(ctx context.Context) ([]model.Event, error) {
	if !a.Configured() {
		return nil, eris.New("ical: no calendar url configured")
	}
	start := time.Now()

	raw, source, err := a.fetchFeed(ctx)
	if err != nil {
		return nil, err
	}

	events, err := Parse(bytes.NewReader(raw), ParseOptions{
		Timezone:     a.cfg.Timezone,
		DefaultImage: a.cfg.DefaultImage,
		Images:       a.images,
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("ical: calendar loaded",
		zap.String("source", source),
		zap.Int("events", len(events)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return events, nil
}

type feedSource struct {
	name string
	url  string
}

// sources lists the direct feed URL followed by each relay, with the feed
// URL query-escaped onto the relay prefix.
func (a *Adapter) sources() []feedSource {
	out := []feedSource{{name: "direct", url: a.cfg.URL}}
	escaped := url.QueryEscape(a.cfg.URL)
	for i, p := range a.cfg.Proxies {
		if p == "" {
			continue
		}
		out = append(out, feedSource{name: fmt.Sprintf("proxy-%d", i+1), url: p + escaped})
	}
	return out
}

func (a *Adapter) fetchFeed(ctx context.Context) ([]byte, string, error) {
	for _, src := range a.sources() {
		if ctx.Err() != nil {
			return nil, "", eris.Wrap(ctx.Err(), "ical: fetch cancelled")
		}

		breaker := a.breakers.Get("calendar:" + src.name)
		raw, err := resilience.Call(ctx, breaker, func(ctx context.Context) ([]byte, error) {
			body, err := a.fetcher.Get(ctx, src.url)
			if err != nil {
				return nil, err
			}
			if !bytes.Contains(body, []byte("BEGIN:VCALENDAR")) {
				return nil, eris.Errorf("ical: %s returned a non-calendar body", src.name)
			}
			return body, nil
		})
		if err != nil {
			metrics.CalendarFetchTotal.WithLabelValues(src.name, "error").Inc()
			zap.L().Debug("ical: calendar source failed",
				zap.String("source", src.name),
				zap.Error(err),
			)
			continue
		}
		metrics.CalendarFetchTotal.WithLabelValues(src.name, "ok").Inc()
		return raw, src.name, nil
	}
	return nil, "", ErrAllSourcesFailed
}
