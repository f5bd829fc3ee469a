package common

import (
	"net/http"
	"strconv"
)

// Pagination is the page block on list responses.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalItems int `json:"total_items"`
	TotalPages int `json:"total_pages"`
}

// NewPagination fills TotalPages from the item count.
func NewPagination(page, perPage int, total int64) Pagination {
	p := Pagination{Page: page, PerPage: perPage, TotalItems: int(total)}
	if perPage > 0 {
		p.TotalPages = int((total + int64(perPage) - 1) / int64(perPage))
	}
	return p
}

// ParsePagination reads ?page and ?limit. Missing or invalid values fall back
// to page 1 and defaultPerPage; limit is capped at maxPerPage when positive.
func ParsePagination(r *http.Request, defaultPerPage, maxPerPage int) (page, perPage int) {
	q := r.URL.Query()
	page = positiveOr(q.Get("page"), 1)
	perPage = positiveOr(q.Get("limit"), defaultPerPage)
	if maxPerPage > 0 {
		perPage = min(perPage, maxPerPage)
	}
	return page, perPage
}

func positiveOr(raw string, fallback int) int {
	if n, err := strconv.Atoi(raw); err == nil && n > 0 {
		return n
	}
	return fallback
}

// Offset is the SQL OFFSET for a 1-based page.
func Offset(page, perPage int) int {
	return (max(page, 1) - 1) * perPage
}
