package dto

import (
	"io"
	"strconv"
	"strings"
)

// UploadedFile is a file taken from a multipart form, e.g. a profile picture.
type UploadedFile struct {
	Reader   io.Reader
	FileName string
}

type PaginationMeta struct {
	CurrentPage int   `json:"current_page"`
	TotalPages  int   `json:"total_pages"`
	TotalItems  int64 `json:"total_items"`
	Limit       int   `json:"limit"`
	HasPrevious bool  `json:"has_previous"`
	HasNext     bool  `json:"has_next"`
}

// TotalPages is the number of pages needed for total items. An empty result
// still has one (empty) page.
func TotalPages(limit int, total int64) int {
	if limit <= 0 {
		return 1
	}
	pages := int((total + int64(limit) - 1) / int64(limit))
	if pages == 0 {
		pages = 1
	}
	return pages
}

// ResolvePage turns the raw page query value into a valid 1-indexed page.
// Anything that is not a number means the first page; numbers below 1 or past
// the end mean the last page.
func ResolvePage(raw string, limit int, total int64) int {
	page, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 1
	}

	last := TotalPages(limit, total)
	if page < 1 || page > last {
		return last
	}
	return page
}

// NewPaginationMeta builds the metadata for page out of total items.
func NewPaginationMeta(page, limit int, total int64) PaginationMeta {
	totalPages := TotalPages(limit, total)

	return PaginationMeta{
		CurrentPage: page,
		TotalPages:  totalPages,
		TotalItems:  total,
		Limit:       limit,
		HasPrevious: page > 1,
		HasNext:     page < totalPages,
	}
}
