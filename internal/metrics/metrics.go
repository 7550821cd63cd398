// Package metrics declares the service's Prometheus collectors.
package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SourceFetchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mapeo_source_fetch_total",
		Help: "Dataset fetch attempts by tier and outcome",
	}, []string{"dataset", "tier", "outcome"})
	CacheRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mapeo_cache_requests_total",
		Help: "Query cache lookups by result (hit, miss, expired)",
	}, []string{"result"})
	DedupJoinedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mapeo_dedup_joined_total",
		Help: "Callers that joined an in-flight request instead of starting one",
	})
	RefreshDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "mapeo_refresh_duration_seconds",
		Help:    "Duration of a full provider refresh",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})
	RefreshTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mapeo_refresh_total",
		Help: "Provider refreshes by outcome (live, fallback, stale)",
	}, []string{"outcome"})
	CalendarFetchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mapeo_calendar_fetch_total",
		Help: "Calendar feed fetches by source and outcome",
	}, []string{"source", "outcome"})
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mapeo_http_requests_total",
		Help: "API requests by route pattern and status code",
	}, []string{"route", "code"})
)

// Collectors returns every collector declared by this package.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		SourceFetchTotal,
		CacheRequestsTotal,
		DedupJoinedTotal,
		RefreshDuration,
		RefreshTotal,
		CalendarFetchTotal,
		HTTPRequestsTotal,
	}
}

// Register adds the collectors to reg. Registering twice is not an error.
func Register(reg prometheus.Registerer) error {
	for _, c := range Collectors() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}

// Handler exposes the default registry for scraping.
func Handler() http.Handler { return promhttp.Handler() }
