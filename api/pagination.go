package api

import (
	"net/http"
	"strconv"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// Pagination is the paging block of a list envelope.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// parsePagination reads the 1-based "page" and "page_size" query
// parameters. Missing or invalid values fall back to page 1 and
// defaultPageSize; page_size is capped at maxPageSize.
func parsePagination(r *http.Request) (page, pageSize int) {
	q := r.URL.Query()

	page = 1
	if v := q.Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			page = n
		}
	}

	pageSize = defaultPageSize
	if v := q.Get("page_size"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			pageSize = n
		}
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

// paginateSlice returns the [start, end) bounds of the requested page of a
// total-item collection plus its Pagination block. A page past the end is
// empty.
func paginateSlice(total, page, pageSize int) (start, end int, meta Pagination) {
	start = min((page-1)*pageSize, total)
	end = min(start+pageSize, total)
	meta = Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: (total + pageSize - 1) / pageSize,
	}
	return start, end, meta
}
