package tui

import (
	"fmt"
	"strings"
	"time"

	"newsdesk/internal/model"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	detailFrames    = 6
	detailFrameTime = 30 * time.Millisecond
)

// detailView shows one article full screen. It slides up on entry and fades
// on exit, per its Transition.
type detailView struct {
	article    model.Article
	transition Transition
	archived   *model.SavedArticle
	viewport   viewport.Model

	width  int
	height int

	frame    int
	entering bool
	exiting  bool
}

func newDetailView(a model.Article, t Transition, width, height int) (*detailView, tea.Cmd) {
	d := &detailView{
		article:    a,
		transition: t,
		viewport:   viewport.New(width, max(height, 1)),
	}
	d.setSize(width, height)

	if t.Enter == AnimationNone {
		return d, nil
	}
	d.entering = true
	return d, detailTick(0)
}

func detailTick(frame int) tea.Cmd {
	return tea.Tick(detailFrameTime, func(time.Time) tea.Msg {
		return detailTickMsg{frame: frame + 1}
	})
}

func (d *detailView) setSize(width, height int) {
	d.width = width
	d.height = height
	d.viewport.Width = width
	d.viewport.Height = max(height, 1)
	d.viewport.SetContent(d.content())
}

func (d *detailView) setArchived(sa *model.SavedArticle) {
	d.archived = sa
	d.viewport.SetContent(d.content())
}

// close starts the exit animation. It reports true when the view can be
// dropped right away.
func (d *detailView) close() (tea.Cmd, bool) {
	if d.transition.Exit == AnimationNone || d.exiting {
		return nil, d.transition.Exit == AnimationNone
	}
	d.entering = false
	d.exiting = true
	d.frame = 0
	return detailTick(0), false
}

// tick advances the running animation. done is true once an exit animation
// has finished.
func (d *detailView) tick(msg detailTickMsg) (cmd tea.Cmd, done bool) {
	if !d.entering && !d.exiting {
		return nil, false
	}
	d.frame = msg.frame
	if d.frame < detailFrames {
		return detailTick(d.frame), false
	}
	if d.exiting {
		return nil, true
	}
	d.entering = false
	return nil, false
}

func (d *detailView) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	d.viewport, cmd = d.viewport.Update(msg)
	return cmd
}

func (d *detailView) content() string {
	w := d.width - 2
	if w < 10 {
		w = 10
	}
	a := d.article

	title := detailTitleStyle.Width(w).Render(a.Title)
	meta := a.SourceName
	if a.Author != "" {
		meta += " · " + a.Author
	}
	meta += " · " + a.PublishedAt.Format("Jan 2, 2006 15:04")
	source := detailSourceStyle.Render(meta)

	body := a.Description
	if a.Content != "" && !strings.HasPrefix(a.Content, a.Description) {
		body += "\n\n" + a.Content
	} else if a.Content != "" {
		body = a.Content
	}
	if d.archived != nil {
		switch d.archived.Status {
		case model.StatusArchived:
			body = d.archived.Content
		case model.StatusFailed:
			body += "\n\n" + dimStyle.Render("Archiving failed: "+d.archived.ErrorMessage)
		case model.StatusPending:
			body += "\n\n" + dimStyle.Render("Full text is being archived...")
		}
	}
	if strings.TrimSpace(body) == "" {
		body = "(No description available)"
	}

	parts := []string{
		title,
		source,
		detailBodyStyle.Width(w).Render(body),
		detailLinkStyle.Width(w).Render("Read more: " + a.URL),
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (d *detailView) View() string {
	view := d.viewport.View()

	switch {
	case d.entering && d.transition.Enter == AnimationSlideUp:
		drop := max(d.height*(detailFrames-d.frame)/detailFrames, 0)
		lines := strings.Split(view, "\n")
		pad := make([]string, drop)
		lines = append(pad, lines...)
		if len(lines) > d.height {
			lines = lines[:d.height]
		}
		return strings.Join(lines, "\n")
	case d.exiting && d.transition.Exit == AnimationFade:
		// the last frames drop the body so the list shows through
		if d.frame >= detailFrames/2 {
			return ""
		}
		return lipgloss.NewStyle().Faint(true).Render(view)
	}
	return view
}

func (d *detailView) scrollHint() string {
	return fmt.Sprintf("%3.f%%", d.viewport.ScrollPercent()*100)
}
