package tui

import (
	"newsdesk/internal/model"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
)

type Animation int

const (
	AnimationNone Animation = iota
	AnimationSlideUp
	AnimationFade
	AnimationFallDown
)

func (a Animation) String() string {
	switch a {
	case AnimationSlideUp:
		return "slide-up"
	case AnimationFade:
		return "fade"
	case AnimationFallDown:
		return "fall-down"
	default:
		return "none"
	}
}

// Transition is the animation pair used when a screen is pushed and popped.
type Transition struct {
	Enter Animation
	Exit  Animation
}

// DetailTransition is used when a list opens the article detail screen.
var DetailTransition = Transition{Enter: AnimationSlideUp, Exit: AnimationFade}

// Navigator shows an opened article.
type Navigator interface {
	OpenArticle(article model.Article, t Transition) tea.Cmd
}

// OptionsRequest carries what the options sheet needs to decide which
// actions apply.
type OptionsRequest struct {
	Title string
	URL   string
	ID    uuid.UUID
	Mode  Mode
}

// OptionsPresenter shows the per-article options sheet.
type OptionsPresenter interface {
	ShowOptions(req OptionsRequest) tea.Cmd
}
