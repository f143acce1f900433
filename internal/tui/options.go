package tui

import (
	"strings"

	"newsdesk/internal/live"
	"newsdesk/internal/sanitize"

	tea "github.com/charmbracelet/bubbletea"
)

type optionAction int

const (
	actionSave optionAction = iota
	actionRemove
	actionOpen
)

func (a optionAction) String() string {
	switch a {
	case actionSave:
		return "Save for later"
	case actionRemove:
		return "Remove from saved"
	case actionOpen:
		return "Open in browser"
	}
	return ""
}

// optionsSheet is the modal list of actions for one article. Which actions
// it offers depends on the mode of the list that asked for it and, for
// headlines, on whether the article is already saved.
type optionsSheet struct {
	req     OptionsRequest
	actions []optionAction
	cursor  int
	flag    *live.Subscription[bool]
}

func newOptionsSheet(req OptionsRequest) *optionsSheet {
	s := &optionsSheet{req: req}
	_, saved := req.Mode.(SavedMode)
	s.setSaved(saved)
	return s
}

func (s *optionsSheet) setSaved(saved bool) {
	if saved {
		s.actions = []optionAction{actionRemove, actionOpen}
	} else {
		s.actions = []optionAction{actionSave, actionOpen}
	}
	s.cursor = min(s.cursor, len(s.actions)-1)
}

// release drops the saved-flag subscription, if any.
func (s *optionsSheet) release() {
	if s.flag != nil {
		s.flag.Cancel()
		s.flag = nil
	}
}

// handleKey returns the chosen action, or done=true when the sheet was
// dismissed without a choice.
func (s *optionsSheet) handleKey(msg tea.KeyMsg) (action optionAction, chosen bool, done bool) {
	switch msg.String() {
	case "j", "down", "tab":
		if s.cursor < len(s.actions)-1 {
			s.cursor++
		}
	case "k", "up", "shift+tab":
		if s.cursor > 0 {
			s.cursor--
		}
	case "enter", " ":
		return s.actions[s.cursor], true, true
	case "esc", "q", ".", "m":
		return 0, false, true
	}
	return 0, false, false
}

func (s *optionsSheet) View(width int) string {
	w := min(max(width-8, 20), 60)

	var b strings.Builder
	b.WriteString(sheetTitleStyle.Render(sanitize.Truncate(s.req.Title, w)))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(sanitize.Truncate(s.req.URL, w)))
	b.WriteString("\n\n")
	for i, a := range s.actions {
		if i == s.cursor {
			b.WriteString(itemSelectedStyle.Render("> " + a.String()))
		} else {
			b.WriteString("  " + a.String())
		}
		if i < len(s.actions)-1 {
			b.WriteString("\n")
		}
	}
	return sheetStyle.Render(b.String())
}
