// Package static provides the datasets that ship with the service and reads
// the public JSON assets (bulletins and gazettes).
package static

import (
	_ "embed"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/mapeo-verde/mapeo-verde-api/internal/model"
)

//go:embed fallback.yaml
var fallbackYAML []byte

// Fallback holds the static constant lists.
type Fallback struct {
	GreenAreas []model.GreenArea `yaml:"green_areas"`
	Events     []model.Event     `yaml:"events"`
}

var loadFallback = sync.OnceValues(func() (Fallback, error) {
	return parseFallback(fallbackYAML)
})

func parseFallback(data []byte) (Fallback, error) {
	var fb Fallback
	if err := yaml.Unmarshal(data, &fb); err != nil {
		return Fallback{}, eris.Wrap(err, "static: parse fallback")
	}
	return fb, nil
}

// Fallbacks returns a fresh copy of the static lists. Callers may modify
// the result.
func Fallbacks() Fallback {
	fb, err := loadFallback()
	if err != nil {
		zap.L().Error("static: embedded fallback unreadable", zap.Error(err))
	}
	return Fallback{
		GreenAreas: model.CloneGreenAreas(fb.GreenAreas),
		Events:     model.CloneEvents(fb.Events),
	}
}
