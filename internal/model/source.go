package model

import "strings"

// Source describes a publisher known to the news API.
type Source struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	URL         string   `json:"url"`
	Category    Category `json:"category,omitempty"`
	Language    string   `json:"language,omitempty"`
	Country     string   `json:"country,omitempty"`
}

// Specification selects which subset of articles or sources to fetch.
// Build a fresh one per query; the zero value selects everything.
type Specification struct {
	Category Category
	Country  string
	Language string
}

// ForCategory is shorthand for a category-only Specification.
func ForCategory(c Category) Specification {
	return Specification{Category: c}
}

// Key is a stable identifier for caching the result of this query.
func (s Specification) Key() string {
	parts := []string{
		s.Category.String(),
		strings.ToLower(s.Country),
		strings.ToLower(s.Language),
	}
	return strings.Join(parts, ":")
}

// Matches reports whether src falls inside the specification.
func (s Specification) Matches(src Source) bool {
	if s.Category != CategoryNone && src.Category != s.Category {
		return false
	}
	if s.Country != "" && !strings.EqualFold(src.Country, s.Country) {
		return false
	}
	if s.Language != "" && !strings.EqualFold(src.Language, s.Language) {
		return false
	}
	return true
}
