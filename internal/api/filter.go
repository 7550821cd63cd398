package api

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/mapeo-verde/mapeo-verde-api/internal/model"
)

// fold lowercases s and strips combining marks, so "Jardín" matches
// "jardin".
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.TrimSpace(out))
}

// matches reports whether any field contains the folded query. An empty
// query matches everything.
func matches(query string, fields ...string) bool {
	if query == "" {
		return true
	}
	for _, f := range fields {
		if strings.Contains(fold(f), query) {
			return true
		}
	}
	return false
}

// equalFold compares a filter value to a field; an empty filter passes.
func equalFold(filter, field string) bool {
	return filter == "" || fold(field) == filter
}

type filters struct {
	q, year, status, kind, category, tag string
}

func (f filters) greenArea(a model.GreenArea) bool {
	if f.tag != "" {
		found := false
		for _, t := range a.Tags {
			if fold(t) == f.tag {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return matches(f.q, append([]string{a.Name, a.Address, a.Need}, a.Tags...)...)
}

func (f filters) project(p model.Project) bool {
	return equalFold(f.year, p.Year) &&
		equalFold(f.status, p.Status) &&
		equalFold(f.kind, p.Type) &&
		matches(f.q, p.Project, p.Promoter, p.Description, p.Expediente, p.Impact)
}

func (f filters) event(e model.Event) bool {
	return (f.year == "" || strings.HasPrefix(e.Date, f.year)) &&
		equalFold(f.category, e.Category) &&
		matches(f.q, e.Title, e.Description, e.Location)
}

func filterSlice[T any](items []T, keep func(T) bool) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		if keep(it) {
			out = append(out, it)
		}
	}
	return out
}
