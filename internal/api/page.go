package api

import (
	"net/http"
	"strconv"
)

const (
	defaultPerPage = 12
	maxPerPage     = 100
)

// Page is one slice of a filtered list.
type Page[T any] struct {
	Items      []T `json:"items"`
	Total      int `json:"total"`
	Page       int `json:"page"`
	PerPage    int `json:"perPage"`
	TotalPages int `json:"totalPages"`
}

func queryInt(r *http.Request, name string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

// paginate cuts items by the page and per_page query parameters. A page
// past the end is empty.
func paginate[T any](items []T, r *http.Request) Page[T] {
	page := queryInt(r, "page", 1)
	perPage := min(queryInt(r, "per_page", defaultPerPage), maxPerPage)

	total := len(items)
	totalPages := (total + perPage - 1) / perPage

	start := total
	if page <= totalPages {
		start = (page - 1) * perPage
	}
	end := min(start+perPage, total)
	return Page[T]{
		Items:      append(make([]T, 0, end-start), items[start:end]...),
		Total:      total,
		Page:       page,
		PerPage:    perPage,
		TotalPages: totalPages,
	}
}
