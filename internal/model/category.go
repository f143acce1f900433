package model

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownCategory = errors.New("unknown category")

// Category is one of the fixed headline categories offered by the news API.
// The zero value means "no category".
type Category int

const (
	CategoryNone Category = iota
	CategoryBusiness
	CategoryEntertainment
	CategoryGeneral
	CategoryHealth
	CategoryScience
	CategorySports
	CategoryTechnology
)

var categoryNames = map[Category]string{
	CategoryBusiness:      "business",
	CategoryEntertainment: "entertainment",
	CategoryGeneral:       "general",
	CategoryHealth:        "health",
	CategoryScience:       "science",
	CategorySports:        "sports",
	CategoryTechnology:    "technology",
}

// Categories lists every concrete category in display order.
func Categories() []Category {
	return []Category{
		CategoryGeneral,
		CategoryBusiness,
		CategoryTechnology,
		CategoryScience,
		CategoryHealth,
		CategorySports,
		CategoryEntertainment,
	}
}

// ParseCategory maps an identifier back to its Category. Unrecognised
// identifiers are rejected with ErrUnknownCategory.
func ParseCategory(s string) (Category, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for c, name := range categoryNames {
		if name == key {
			return c, nil
		}
	}
	return CategoryNone, fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}

func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return ""
}

// Title is the label used for tabs and headings.
func (c Category) Title() string {
	name := c.String()
	if name == "" {
		return "All"
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

func (c Category) Valid() bool {
	_, ok := categoryNames[c]
	return ok
}

func (c Category) MarshalText() ([]byte, error) {
	if c == CategoryNone {
		return []byte{}, nil
	}
	if !c.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCategory, int(c))
	}
	return []byte(c.String()), nil
}

func (c *Category) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*c = CategoryNone
		return nil
	}
	parsed, err := ParseCategory(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
