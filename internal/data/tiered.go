// Package data reads each dataset through a chain of backend tiers, with a
// query cache, request deduplication and a caller-supplied fallback.
// Public methods never return errors: a failed chain yields the fallback.
package data

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/mapeo-verde/mapeo-verde-api/internal/metrics"
	"github.com/mapeo-verde/mapeo-verde-api/internal/resilience"
)

// ErrNoData is returned by FetchTiered when every tier came back empty.
var ErrNoData = eris.New("data: no tier returned data")

// Tier is one source in a dataset's chain.
type Tier[T any] struct {
	Name  string
	Fetch func(ctx context.Context) ([]T, error)
}

// FetchTiered tries tiers in order and returns the first non-empty result
// with the name of the tier that produced it. A failing tier is logged and
// skipped. The last error is returned when no tier has data.
func FetchTiered[T any](ctx context.Context, dataset string, tiers []Tier[T]) ([]T, string, error) {
	var lastErr error
	for _, t := range tiers {
		if err := ctx.Err(); err != nil {
			return nil, "", eris.Wrapf(err, "data: fetch %s cancelled", dataset)
		}

		items, err := t.Fetch(ctx)
		switch {
		case err != nil:
			metrics.SourceFetchTotal.WithLabelValues(dataset, t.Name, "error").Inc()
			lastErr = eris.Wrapf(err, "data: %s tier %s", dataset, t.Name)
			log := zap.L().Warn
			if errors.Is(err, resilience.ErrCircuitOpen) {
				log = zap.L().Debug
			}
			log("data: tier failed",
				zap.String("dataset", dataset),
				zap.String("tier", t.Name),
				zap.Error(err),
			)
		case len(items) == 0:
			metrics.SourceFetchTotal.WithLabelValues(dataset, t.Name, "empty").Inc()
		default:
			metrics.SourceFetchTotal.WithLabelValues(dataset, t.Name, "ok").Inc()
			return items, t.Name, nil
		}
	}
	if lastErr != nil {
		return nil, "", lastErr
	}
	return nil, "", ErrNoData
}
