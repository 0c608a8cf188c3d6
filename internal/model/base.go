package model

import (
	"time"

	"github.com/google/uuid"
)

// Base contains common fields for all models
type Base struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Pagination represents common pagination parameters
type Pagination struct {
	Page     int `json:"page" form:"page"`
	PageSize int `json:"page_size" form:"page_size"`
}

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Normalize clamps pagination parameters to their valid ranges. Pages
// below 1 become 1; page sizes outside [1,MaxPageSize] fall back to the
// default.
func (p *Pagination) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 || p.PageSize > MaxPageSize {
		p.PageSize = DefaultPageSize
	}
}

// Offset returns the row offset for the current page.
func (p *Pagination) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// PagedResult wraps a page of items with paging metadata.
type PagedResult[T any] struct {
	Items       []T   `json:"items"`
	TotalCount  int64 `json:"total_count"`
	PageSize    int   `json:"page_size"`
	CurrentPage int   `json:"current_page"`
	TotalPages  int   `json:"total_pages"`
}

// NewPagedResult computes paging metadata for a result set.
func NewPagedResult[T any](items []T, total int64, p Pagination) *PagedResult[T] {
	totalPages := int((total + int64(p.PageSize) - 1) / int64(p.PageSize))
	return &PagedResult[T]{
		Items:       items,
		TotalCount:  total,
		PageSize:    p.PageSize,
		CurrentPage: p.Page,
		TotalPages:  totalPages,
	}
}
