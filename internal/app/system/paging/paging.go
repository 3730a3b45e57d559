// internal/app/system/paging/paging.go
package paging

import (
	"net/http"
	"strconv"

	"github.com/dalemusser/waffle/pantry/query"
)

// PageSize is the default number of rows returned by list endpoints.
// Keep this as an int because most call sites add/subtract and then
// cast to int64 for Mongo $skip/$limit.
const PageSize = 50

// LimitPlusOne returns PageSize+1 as int64 for look‑ahead pagination
// (fetch one extra document to detect hasNext).
func LimitPlusOne() int64 { return int64(PageSize + 1) }

// ParseStart extracts the human-friendly "start" query parameter (1-based index).
// Returns 1 if not present or invalid.
func ParseStart(r *http.Request) int {
	s := query.Get(r, "start")
	if s == "" {
		return 1
	}
	return NormalizeStart(s)
}

// NormalizeStart parses a 1-based start index, falling back to 1.
func NormalizeStart(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// Skip converts a 1-based start index into a $skip value.
func Skip(start int) int64 {
	if start < 1 {
		return 0
	}
	return int64(start - 1)
}

// Page is one page of a list response.
type Page[T any] struct {
	Items     []T  `json:"items"`
	HasNext   bool `json:"has_next"`
	NextStart int  `json:"next_start,omitempty"`
}

// TrimPage builds a Page from rows fetched with LimitPlusOne. The extra
// look-ahead row is dropped and reported as HasNext.
func TrimPage[T any](rows []T, start int) Page[T] {
	if start < 1 {
		start = 1
	}
	p := Page[T]{Items: rows}
	if p.Items == nil {
		p.Items = []T{}
	}
	if len(p.Items) > PageSize {
		p.Items = p.Items[:PageSize]
		p.HasNext = true
		p.NextStart = start + PageSize
	}
	return p
}
