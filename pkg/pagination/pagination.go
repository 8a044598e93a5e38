// Package pagination provides pagination utilities.
package pagination

import (
	"net/http"
	"strconv"
)

// Defaults and bounds.
const (
	DefaultPage    = 1
	DefaultPerPage = 25
	MaxPerPage     = 200
)

// Pagination holds pagination parameters.
type Pagination struct {
	Page    int
	PerPage int
}

// Default returns the default pagination.
func Default() Pagination {
	return Pagination{Page: DefaultPage, PerPage: DefaultPerPage}
}

// FromRequest parses page/per_page query parameters, clamping to bounds.
func FromRequest(r *http.Request) Pagination {
	p := Default()
	if v := r.URL.Query().Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			p.Page = n
		}
	}
	if v := r.URL.Query().Get("per_page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			p.PerPage = n
		}
	}
	if p.PerPage > MaxPerPage {
		p.PerPage = MaxPerPage
	}
	return p
}

// Offset returns the SQL offset for this page.
func (p Pagination) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.PerPage
}

// Limit returns the SQL limit for this page.
func (p Pagination) Limit() int {
	if p.PerPage < 1 {
		return DefaultPerPage
	}
	return p.PerPage
}

// Result wraps a page of items with totals.
type Result[T any] struct {
	Data       []T   `json:"data"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	TotalPages int   `json:"total_pages"`
}

// NewResult builds a Result computing TotalPages from the total count.
func NewResult[T any](data []T, total int64, p Pagination) Result[T] {
	pages := 0
	if p.PerPage > 0 {
		pages = int((total + int64(p.PerPage) - 1) / int64(p.PerPage))
	}
	return Result[T]{
		Data:       data,
		Total:      total,
		Page:       p.Page,
		PerPage:    p.PerPage,
		TotalPages: pages,
	}
}
