package models

import (
	"fmt"
	"strings"
	"time"
)

// FilterSet restricts retrieval by metadata. Dimensions are combined with AND;
// values within a dimension are combined with OR. The zero value matches everything.
type FilterSet struct {
	DocumentTypes []string   `json:"document_types,omitempty"`
	Vendors       []string   `json:"vendors,omitempty"`
	Products      []string   `json:"products,omitempty"`
	CreatedAfter  *time.Time `json:"created_after,omitempty"`
	CreatedBefore *time.Time `json:"created_before,omitempty"`
}

// IsEmpty reports whether no dimension is constrained.
func (f *FilterSet) IsEmpty() bool {
	return f == nil || f.Count() == 0
}

// Count returns the number of constrained dimensions. The creation-date range counts once.
func (f *FilterSet) Count() int {
	if f == nil {
		return 0
	}
	n := 0
	if len(f.DocumentTypes) > 0 {
		n++
	}
	if len(f.Vendors) > 0 {
		n++
	}
	if len(f.Products) > 0 {
		n++
	}
	if f.CreatedAfter != nil || f.CreatedBefore != nil {
		n++
	}
	return n
}

// Matches reports whether m satisfies every constrained dimension.
// Date bounds are inclusive.
func (f *FilterSet) Matches(m ChunkMetadata) bool {
	if f == nil {
		return true
	}
	if len(f.DocumentTypes) > 0 && !containsFold(f.DocumentTypes, m.DocumentType) {
		return false
	}
	if len(f.Vendors) > 0 && !containsFold(f.Vendors, m.Vendor) {
		return false
	}
	if len(f.Products) > 0 && !containsFold(f.Products, m.Product) {
		return false
	}
	if f.CreatedAfter != nil && m.CreatedAt.Before(*f.CreatedAfter) {
		return false
	}
	if f.CreatedBefore != nil && m.CreatedAt.After(*f.CreatedBefore) {
		return false
	}
	return true
}

func containsFold(values []string, v string) bool {
	for _, x := range values {
		if strings.EqualFold(strings.TrimSpace(x), v) {
			return true
		}
	}
	return false
}

var dateLayouts = []string{time.RFC3339, "2006-01-02"}

// ParseDate accepts RFC 3339 timestamps and YYYY-MM-DD dates (UTC midnight).
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q: use YYYY-MM-DD or RFC 3339", s)
}

// EndOfDay returns the last instant of t's UTC day. A bare date used as an upper
// bound should include the whole day.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 23, 59, 59, int(time.Second-time.Nanosecond), time.UTC)
}
