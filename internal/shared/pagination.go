package shared

import (
	"net/http"
	"strconv"
)

// PageFilters represents standard list page filters.
type PageFilters struct {
	Page     int
	PageSize int
}

// Normalize clamps page and page size into sane bounds.
func (f PageFilters) Normalize(defaultSize, maxSize int) PageFilters {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.PageSize <= 0 {
		f.PageSize = defaultSize
	}
	if f.PageSize > maxSize {
		f.PageSize = maxSize
	}
	return f
}

// Offset returns the row offset for the current page.
func (f PageFilters) Offset() int {
	return (f.Page - 1) * f.PageSize
}

// PageFiltersFromQuery reads page and size query parameters. Invalid or
// missing values fall back to zero and are clamped later by Normalize.
func PageFiltersFromQuery(r *http.Request) PageFilters {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))
	return PageFilters{Page: page, PageSize: size}
}

// PagingInfo carries paging metadata back to the caller.
type PagingInfo struct {
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
	HasNext  bool `json:"has_next"`
}
