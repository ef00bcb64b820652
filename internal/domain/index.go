package domain

import "strings"

// IndexFilter restricts an index query to records whose metadata field
// equals one of Values, or contains one of them when Contains is set.
// Comparison is exact for remote indexes; the local index also ignores case.
type IndexFilter struct {
	Field    string
	Values   []string
	Contains bool
}

// NewIndexFilter builds a filter for field, dropping empty and repeated values
func NewIndexFilter(field string, values ...string) *IndexFilter {
	f := &IndexFilter{Field: field}
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		f.Values = append(f.Values, v)
	}
	return f
}

// NewContainsFilter builds a filter matching records whose field contains
// one of values
func NewContainsFilter(field string, values ...string) *IndexFilter {
	f := NewIndexFilter(field, values...)
	f.Contains = true
	return f
}

// Matches reports whether metadata satisfies the filter. A nil filter matches everything.
func (f *IndexFilter) Matches(md map[string]any) bool {
	if f == nil {
		return true
	}
	got := stringField(md, f.Field)
	if got == "" {
		return false
	}
	if f.Contains {
		got = strings.ToLower(got)
		for _, v := range f.Values {
			if strings.Contains(got, strings.ToLower(v)) {
				return true
			}
		}
		return false
	}
	for _, v := range f.Values {
		if strings.EqualFold(got, v) {
			return true
		}
	}
	return false
}

// IndexMatch is one hit of a vector query
type IndexMatch struct {
	ID       string
	Score    float64
	Metadata map[string]any
}

// IndexRecord is a stored vector with its metadata
type IndexRecord struct {
	ID       string
	Vector   []float32
	Metadata map[string]any
}

// Candidate converts a match into a ranked candidate
func (m IndexMatch) Candidate() Candidate {
	return Candidate{ID: m.ID, Score: m.Score, Product: ProductFromMetadata(m.Metadata)}
}
