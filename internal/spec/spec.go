package spec

import (
	"strings"
)

// Specification is one reusable query description.
type Specification struct {
	Where          Predicate
	Sorts          []Sort
	Page           *Page
	Preload        []string
	IncludeDeleted bool
}

// New returns a specification filtered by p.
func New(p Predicate) Specification {
	return Specification{Where: p}
}

// OrderBy appends sorts.
func (s Specification) OrderBy(sorts ...Sort) Specification {
	s.Sorts = append(append([]Sort(nil), s.Sorts...), sorts...)
	return s
}

// Paged sets the page window.
func (s Specification) Paged(p Page) Specification {
	s.Page = &p
	return s
}

// WithPreload loads the named associations.
func (s Specification) WithPreload(assoc ...string) Specification {
	s.Preload = append(append([]string(nil), s.Preload...), assoc...)
	return s
}

// Unscoped includes soft-deleted rows.
func (s Specification) Unscoped() Specification {
	s.IncludeDeleted = true
	return s
}

// ── Sorting ──

// Sort orders by one column.
type Sort struct {
	Field string
	Desc  bool
}

// Asc / Desc build a Sort.
func Asc(field string) Sort  { return Sort{Field: field} }
func Desc(field string) Sort { return Sort{Field: field, Desc: true} }

// SortKeys maps caller-facing sort keys to columns.
type SortKeys struct {
	Columns map[string]string
	Default string
}

// Resolve maps key to its column. Unknown or empty keys fall back to the
// default column; direction is "desc" (any case) or ascending.
func (k SortKeys) Resolve(key, direction string) Sort {
	col, ok := k.Columns[strings.ToLower(strings.TrimSpace(key))]
	if !ok {
		col = k.Default
	}
	return Sort{Field: col, Desc: strings.EqualFold(strings.TrimSpace(direction), "desc")}
}

// ── Paging ──

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Page is a 1-based page window.
type Page struct {
	Number int
	Size   int
}

// NewPage clamps: number < 1 → 1, size < 1 → DefaultPageSize, size >
// MaxPageSize → MaxPageSize.
func NewPage(number, size int) Page {
	if number < 1 {
		number = 1
	}
	switch {
	case size < 1:
		size = DefaultPageSize
	case size > MaxPageSize:
		size = MaxPageSize
	}
	return Page{Number: number, Size: size}
}

// Offset is the number of rows skipped.
func (p Page) Offset() int { return (p.Number - 1) * p.Size }

// PageResult is one page of items plus totals.
type PageResult[T any] struct {
	Items      []T   `json:"items"`
	TotalCount int64 `json:"total_count"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

// NewPageResult never returns a nil Items slice.
func NewPageResult[T any](items []T, total int64, p Page) PageResult[T] {
	if items == nil {
		items = []T{}
	}
	pages := 0
	if p.Size > 0 {
		pages = int((total + int64(p.Size) - 1) / int64(p.Size))
	}
	return PageResult[T]{Items: items, TotalCount: total, Page: p.Number, PageSize: p.Size, TotalPages: pages}
}

// IsEmpty reports an empty page.
func (r PageResult[T]) IsEmpty() bool { return len(r.Items) == 0 }

// MapPage converts the items of a page.
func MapPage[T, U any](r PageResult[T], fn func(T) U) PageResult[U] {
	out := make([]U, len(r.Items))
	for i, it := range r.Items {
		out[i] = fn(it)
	}
	return PageResult[U]{Items: out, TotalCount: r.TotalCount, Page: r.Page, PageSize: r.PageSize, TotalPages: r.TotalPages}
}
