package ical

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
	_ "time/tzdata"

	ics "github.com/arran4/golang-ical"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/mapeo-verde/mapeo-verde-api/internal/model"
)

// AllDay is the display time for events without a time of day.
const AllDay = "Todo el día"

const (
	isoLayout     = "20060102T150405"
	displayLayout = "3:04 PM"
)

// ParseOptions controls how a feed is rendered.
type ParseOptions struct {
	// Timezone applies when the feed has no X-WR-TIMEZONE. Empty means UTC.
	Timezone string

	// DefaultImage is used when no image is found.
	DefaultImage string

	// Images scans descriptions. Nil means TextImageExtractor.
	Images ImageExtractor
}

// Parse reads an iCal document and returns its events ordered by start.
// Events without a usable DTSTART are skipped.
func Parse(r io.Reader, opts ParseOptions) ([]model.Event, error) {
	cal, err := ics.ParseCalendar(r)
	if err != nil {
		return nil, eris.Wrap(err, "ical: parse calendar")
	}
	if opts.Images == nil {
		opts.Images = TextImageExtractor{}
	}

	zone := calendarZone(cal, opts.Timezone)

	events := make([]model.Event, 0, len(cal.Events()))
	for i, ev := range cal.Events() {
		e, err := convertEvent(i, properties(ev.Properties), zone, opts)
		if err != nil {
			zap.L().Debug("ical: skipping event", zap.Int("index", i), zap.Error(err))
			continue
		}
		events = append(events, e)
	}

	sort.SliceStable(events, func(a, b int) bool {
		return events[a].IsoStart < events[b].IsoStart
	})
	return events, nil
}

// calendarZone resolves the zone times are displayed in: X-WR-TIMEZONE,
// then the configured fallback, then UTC.
func calendarZone(cal *ics.Calendar, fallback string) *time.Location {
	candidates := []string{}
	for _, p := range cal.CalendarProperties {
		if strings.EqualFold(p.IANAToken, "X-WR-TIMEZONE") {
			candidates = append(candidates, strings.TrimSpace(p.Value))
		}
	}
	candidates = append(candidates, fallback)

	for _, name := range candidates {
		if name == "" {
			continue
		}
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
		zap.L().Debug("ical: unknown timezone", zap.String("tz", name))
	}
	return time.UTC
}

// prop is one property occurrence with its parameters.
type prop struct {
	value  string
	params map[string][]string
}

func (p prop) param(name string) string {
	for k, v := range p.params {
		if strings.EqualFold(k, name) && len(v) > 0 {
			return v[0]
		}
	}
	return ""
}

type propSet map[string][]prop

func properties(in []ics.IANAProperty) propSet {
	out := make(propSet, len(in))
	for _, p := range in {
		name := strings.ToUpper(p.IANAToken)
		out[name] = append(out[name], prop{value: p.Value, params: p.ICalParameters})
	}
	return out
}

func (s propSet) first(name string) (prop, bool) {
	if ps := s[name]; len(ps) > 0 {
		return ps[0], true
	}
	return prop{}, false
}

func (s propSet) text(name string) string {
	p, _ := s.first(name)
	return strings.TrimSpace(p.value)
}

func convertEvent(idx int, props propSet, zone *time.Location, opts ParseOptions) (model.Event, error) {
	startProp, ok := props.first("DTSTART")
	if !ok || strings.TrimSpace(startProp.value) == "" {
		return model.Event{}, eris.New("ical: event has no DTSTART")
	}
	start, allDay, err := parseDateTime(startProp, zone)
	if err != nil {
		return model.Event{}, err
	}

	end := start
	if endProp, ok := props.first("DTEND"); ok {
		if t, _, err := parseDateTime(endProp, zone); err == nil {
			end = t
		}
	}

	e := model.Event{
		ID:          props.text("UID"),
		Title:       props.text("SUMMARY"),
		Date:        start.Format("2006-01-02"),
		Time:        displayTime(start, end, allDay),
		IsoStart:    start.Format(isoLayout),
		IsoEnd:      end.Format(isoLayout),
		Location:    props.text("LOCATION"),
		Category:    category(props),
		Description: props.text("DESCRIPTION"),
	}
	if e.ID == "" {
		e.ID = fmt.Sprintf("event-%d-%s", idx, e.Date)
	}
	e.Image = eventImage(props, e.Description, opts)
	return e, nil
}

// parseDateTime reads a DATE or DATE-TIME value and returns it in the
// calendar zone. UTC values are converted, TZID values are honoured and
// floating values are read as calendar-local.
func parseDateTime(p prop, zone *time.Location) (time.Time, bool, error) {
	v := strings.TrimSpace(p.value)

	if strings.EqualFold(p.param("VALUE"), "DATE") || len(v) == 8 {
		t, err := time.ParseInLocation("20060102", v[:min(8, len(v))], zone)
		if err != nil {
			return time.Time{}, false, eris.Wrapf(err, "ical: bad date %q", v)
		}
		return t, true, nil
	}

	if strings.HasSuffix(v, "Z") {
		t, err := time.Parse("20060102T150405Z", v)
		if err != nil {
			return time.Time{}, false, eris.Wrapf(err, "ical: bad utc time %q", v)
		}
		return t.In(zone), false, nil
	}

	loc := zone
	if tzid := p.param("TZID"); tzid != "" {
		if l, err := time.LoadLocation(strings.Trim(tzid, `"`)); err == nil {
			loc = l
		}
	}
	t, err := time.ParseInLocation(isoLayout, v, loc)
	if err != nil {
		return time.Time{}, false, eris.Wrapf(err, "ical: bad time %q", v)
	}
	return t.In(zone), false, nil
}

func displayTime(start, end time.Time, allDay bool) string {
	if allDay {
		return AllDay
	}
	s := start.Format(displayLayout)
	e := end.Format(displayLayout)
	if e == s {
		return s
	}
	return s + " - " + e
}

func category(props propSet) string {
	for _, name := range []string{"CATEGORIES", "KEYWORDS"} {
		p, _ := props.first(name)
		for _, part := range splitList(p.value) {
			if part != "" {
				return part
			}
		}
	}
	return model.DefaultCategory
}

// splitList splits a comma-separated value. The parser has already
// unescaped it.
func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func eventImage(props propSet, description string, opts ParseOptions) string {
	for _, a := range props["ATTACH"] {
		if img, ok := attachmentImage(a.value); ok {
			return img
		}
	}
	if img, ok := opts.Images.Extract(description); ok {
		return img
	}
	return opts.DefaultImage
}
