package tui

import (
	"fmt"

	"newsdesk/internal/model"
)

// Mode selects which collection a List shows. It is either HeadlinesMode or
// SavedMode and never changes after the list is built.
type Mode interface {
	// Arg is the persisted form of the mode, read back by ModeFromArgs.
	Arg() string
	Label() string
	isMode()
}

// HeadlinesMode shows the remote headlines of one category.
type HeadlinesMode struct {
	Category model.Category
}

func (m HeadlinesMode) Arg() string   { return m.Category.String() }
func (m HeadlinesMode) Label() string { return m.Category.Title() }
func (HeadlinesMode) isMode()         {}

// SavedMode shows the user's saved articles.
type SavedMode struct{}

func (SavedMode) Arg() string   { return savedArg }
func (SavedMode) Label() string { return "Saved" }
func (SavedMode) isMode()       {}

const savedArg = "saved"

// ModeFromArgs decodes a persisted mode. An empty argument, or "saved", is
// SavedMode; any other value must name a category.
func ModeFromArgs(arg string) (Mode, error) {
	if arg == "" || arg == savedArg {
		return SavedMode{}, nil
	}
	c, err := model.ParseCategory(arg)
	if err != nil {
		return nil, fmt.Errorf("list mode: %w", err)
	}
	return HeadlinesMode{Category: c}, nil
}
