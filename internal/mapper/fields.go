// Package mapper flattens the bulletin and gazette JSON files into
// model.Project records. Mappers are total: bad input yields an empty list.
package mapper

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/mapeo-verde/mapeo-verde-api/internal/geo"
	"github.com/mapeo-verde/mapeo-verde-api/internal/model"
)

// record is one decoded JSON object with alias-tolerant accessors.
type record map[string]any

// decode parses raw JSON into a generic value. Malformed input is nil.
func decode(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v
}

// asRecord returns v as an object. A string holding a JSON object is
// decoded first.
func asRecord(v any) record {
	switch t := v.(type) {
	case map[string]any:
		return t
	case string:
		if obj, ok := decode([]byte(t)).(map[string]any); ok {
			return obj
		}
	}
	return nil
}

// asList returns v as an array, decoding a JSON string if needed.
func asList(v any) []any {
	switch t := v.(type) {
	case []any:
		return t
	case string:
		if arr, ok := decode([]byte(t)).([]any); ok {
			return arr
		}
	}
	return nil
}

// list returns the first array found under keys.
func (r record) list(keys ...string) []any {
	for _, k := range keys {
		if l := asList(r[k]); l != nil {
			return l
		}
	}
	return nil
}

// str returns the first non-empty value under keys, rendered as text.
func (r record) str(keys ...string) string {
	for _, k := range keys {
		if s := toString(r[k]); s != "" {
			return s
		}
	}
	return ""
}

// num returns the first numeric value under keys. Numeric strings count,
// with either a dot or a comma as the decimal separator.
func (r record) num(keys ...string) *float64 {
	for _, k := range keys {
		if f, ok := toFloat(r[k]); ok {
			return &f
		}
	}
	return nil
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1e15 {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case json.Number:
		return t.String()
	}
	return ""
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, !math.IsNaN(t) && !math.IsInf(t, 0)
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, false
		}
		if !strings.Contains(s, ".") {
			s = strings.Replace(s, ",", ".", 1)
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

type xy struct{ x, y *float64 }

// coordinates extracts a location from the record. Explicit lat/lng keys
// win, then x/y, then a nested coordenadas object. UTM values are
// converted. ok is false when nothing usable was found.
func (r record) coordinates() (lat, lng float64, ok bool) {
	candidates := []xy{
		{r.num("lng", "lon", "longitud", "longitude"), r.num("lat", "latitud", "latitude")},
		{r.num("x", "utm_x", "este"), r.num("y", "utm_y", "norte")},
	}
	if nested := asRecord(r["coordenadas"]); nested != nil {
		candidates = append(candidates, nested.coordinateCandidates()...)
	}
	if nested := asRecord(r["ubicacion"]); nested != nil {
		candidates = append(candidates, nested.coordinateCandidates()...)
	}

	for _, c := range candidates {
		conv := geo.ConvertToLatLong(c.x, c.y)
		if conv == nil || !geo.ValidLatLng(conv.Lat, conv.Lng) {
			continue
		}
		return conv.Lat, conv.Lng, true
	}
	return 0, 0, false
}

func (r record) coordinateCandidates() []xy {
	return []xy{
		{r.num("x", "este"), r.num("y", "norte")},
		{r.num("lng", "lon", "longitud"), r.num("lat", "latitud")},
	}
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"2006/01/02",
}

// normalizeDate returns s as YYYY-MM-DD, or "" when it is not a date.
func normalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	if len(s) >= 10 {
		if t, err := time.Parse("2006-01-02", s[:10]); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return ""
}

// finish fills the date, year and location of p, substituting the fallback
// values and recording which fields were defaulted.
func finish(p *model.Project, item record, dateCandidates ...string) {
	for _, d := range dateCandidates {
		if norm := normalizeDate(d); norm != "" {
			p.Date = norm
			break
		}
	}
	if p.Date == "" {
		p.Date = model.FallbackDate
		p.Defaulted = append(p.Defaulted, model.DefaultedDate)
	}
	p.Year = p.Date[:4]

	if lat, lng, ok := item.coordinates(); ok {
		p.Lat, p.Lng = lat, lng
	} else {
		p.Lat, p.Lng = model.CityCenterLat, model.CityCenterLng
		p.Defaulted = append(p.Defaulted, model.DefaultedCoordinates)
	}
}
