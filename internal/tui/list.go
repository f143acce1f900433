package tui

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"newsdesk/internal/live"
	"newsdesk/internal/model"
	"newsdesk/internal/sanitize"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
)

const (
	itemHeight    = 3
	fallFrameTime = 40 * time.Millisecond
)

var listIDs atomic.Int64

// ArticleFeed is the part of the headline view-model a List reads from.
type ArticleFeed interface {
	GetNewsHeadlines(spec model.Specification) *live.Value[[]model.Article]
	GetAllSaved() *live.Value[[]model.Article]
}

type ListDeps struct {
	Feed      ArticleFeed
	Navigator Navigator
	Options   OptionsPresenter
	Logger    *zap.Logger
	// Spec builds the headline query for a category. Defaults to
	// model.ForCategory.
	Spec func(model.Category) model.Specification
}

// List renders one live article collection and keeps its scroll position
// across deactivation.
type List struct {
	id     int64
	mode   Mode
	feed   ArticleFeed
	nav    Navigator
	opts   OptionsPresenter
	logger *zap.Logger
	spec   func(model.Category) model.Specification

	sub *live.Subscription[[]model.Article]
	gen int

	articles []model.Article
	state    model.ListState
	pending  *model.ListState
	renders  int

	width  int
	height int

	fallOnResume bool
	fallFrame    int
	falling      bool
}

func NewHeadlineList(c model.Category, deps ListDeps) *List {
	return newList(HeadlinesMode{Category: c}, deps)
}

func NewSavedList(deps ListDeps) *List {
	return newList(SavedMode{}, deps)
}

// NewList builds a list for a decoded mode, see ModeFromArgs.
func NewList(mode Mode, deps ListDeps) *List {
	return newList(mode, deps)
}

func newList(mode Mode, deps ListDeps) *List {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Spec == nil {
		deps.Spec = model.ForCategory
	}
	return &List{
		id:     listIDs.Add(1),
		mode:   mode,
		feed:   deps.Feed,
		nav:    deps.Navigator,
		opts:   deps.Options,
		logger: deps.Logger.With(zap.String("list", mode.Label())),
		spec:   deps.Spec,
	}
}

func (l *List) Mode() Mode { return l.mode }

func (l *List) Articles() []model.Article { return l.articles }

func (l *List) State() model.ListState { return l.state }

func (l *List) Active() bool { return l.sub != nil }

// Selected returns the article under the cursor.
func (l *List) Selected() (model.Article, bool) {
	if l.state.Cursor < 0 || l.state.Cursor >= len(l.articles) {
		return model.Article{}, false
	}
	return l.articles[l.state.Cursor], true
}

func (l *List) SetSize(width, height int) {
	l.width = width
	l.height = height
	l.state = l.state.Clamp(len(l.articles), l.visible())
}

// Activate subscribes to the mode's collection. state is a blob returned by
// an earlier Deactivate; it is applied once the next emission has
// repopulated the list.
func (l *List) Activate(state []byte) tea.Cmd {
	if l.sub != nil {
		return nil
	}

	if len(state) > 0 {
		st, err := model.DecodeListState(state)
		if err != nil {
			l.logger.Warn("Discarding list state", zap.Error(err))
		} else {
			l.pending = &st
		}
	}

	var src *live.Value[[]model.Article]
	switch m := l.mode.(type) {
	case HeadlinesMode:
		src = l.feed.GetNewsHeadlines(l.spec(m.Category))
	case SavedMode:
		src = l.feed.GetAllSaved()
	}

	l.gen++
	l.sub = src.Subscribe()
	return waitForArticles(l.sub, l.id, l.gen)
}

// Deactivate captures the scroll position and releases the subscription.
// Messages still in flight for the old subscription are dropped.
func (l *List) Deactivate() []byte {
	blob := l.state.Encode()
	if l.sub != nil {
		l.sub.Cancel()
		l.sub = nil
	}
	l.gen++
	return blob
}

// Resume is called when the list is shown again after the detail screen.
func (l *List) Resume() tea.Cmd {
	if !l.fallOnResume {
		return nil
	}
	l.fallOnResume = false
	l.falling = true
	l.fallFrame = 0
	return fallTick(l.id, 0)
}

func waitForArticles(sub *live.Subscription[[]model.Article], id int64, gen int) tea.Cmd {
	return func() tea.Msg {
		articles, ok := <-sub.C()
		if !ok {
			return articlesMsg{list: id, gen: gen, closed: true}
		}
		return articlesMsg{list: id, gen: gen, articles: articles}
	}
}

func fallTick(id int64, frame int) tea.Cmd {
	return tea.Tick(fallFrameTime, func(time.Time) tea.Msg {
		return fallTickMsg{list: id, frame: frame + 1}
	})
}

// Owns reports whether msg was produced by this list.
func (l *List) Owns(msg tea.Msg) bool {
	switch msg := msg.(type) {
	case articlesMsg:
		return msg.list == l.id
	case fallTickMsg:
		return msg.list == l.id
	}
	return false
}

func (l *List) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case articlesMsg:
		if msg.list != l.id || msg.gen != l.gen || msg.closed || l.sub == nil {
			return nil
		}
		l.receive(msg.articles)
		return waitForArticles(l.sub, l.id, l.gen)

	case fallTickMsg:
		if msg.list != l.id || !l.falling {
			return nil
		}
		l.fallFrame = msg.frame
		if l.fallFrame >= l.visible() {
			l.falling = false
			return nil
		}
		return fallTick(l.id, l.fallFrame)

	case tea.KeyMsg:
		return l.handleKey(msg)
	}
	return nil
}

func (l *List) receive(articles []model.Article) {
	if articles == nil {
		if _, ok := l.mode.(HeadlinesMode); ok {
			return
		}
		// nothing new to show, but the position still has to be restored
		l.renders++
		l.restoreState()
		return
	}
	l.articles = articles
	l.renders++
	l.state = l.state.Clamp(len(l.articles), l.visible())
	l.restoreState()
}

func (l *List) restoreState() {
	if l.pending == nil || len(l.articles) == 0 {
		return
	}
	l.state = l.pending.Clamp(len(l.articles), l.visible())
	l.pending = nil
}

func (l *List) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "j", "down":
		l.move(1)
	case "k", "up":
		l.move(-1)
	case "pgdown", "ctrl+d":
		l.move(l.visible())
	case "pgup", "ctrl+u":
		l.move(-l.visible())
	case "g", "home":
		l.move(-len(l.articles))
	case "G", "end":
		l.move(len(l.articles))
	case "enter":
		return l.openSelected()
	case ".", "m":
		return l.requestOptions()
	}
	return nil
}

func (l *List) move(delta int) {
	if len(l.articles) == 0 {
		return
	}
	cur := l.state.Cursor + delta
	if cur < 0 {
		cur = 0
	}
	st := model.ListState{Cursor: cur, Offset: l.state.Offset}
	l.state = st.Clamp(len(l.articles), l.visible())
}

func (l *List) openSelected() tea.Cmd {
	a, ok := l.Selected()
	if !ok || l.nav == nil {
		return nil
	}
	l.fallOnResume = true
	return l.nav.OpenArticle(a, DetailTransition)
}

func (l *List) requestOptions() tea.Cmd {
	a, ok := l.Selected()
	if !ok {
		return nil
	}
	if l.opts == nil {
		l.logger.Error("Options requested with no presenter attached", zap.String("article", a.ID.String()))
		return nil
	}
	return l.opts.ShowOptions(OptionsRequest{
		Title: a.Title,
		URL:   a.URL,
		ID:    a.ID,
		Mode:  l.mode,
	})
}

func (l *List) visible() int {
	v := l.height / itemHeight
	if v < 1 {
		return 1
	}
	return v
}

func (l *List) View() string {
	width := l.width
	if width < 10 {
		width = 30
	}
	if len(l.articles) == 0 {
		msg := "Loading headlines..."
		if _, ok := l.mode.(SavedMode); ok {
			msg = "No saved articles yet"
		} else if l.renders > 0 {
			msg = "No headlines found"
		}
		return centered(msg, width, l.height)
	}

	start := l.state.Offset
	end := start + l.visible()
	if end > len(l.articles) {
		end = len(l.articles)
	}

	var b strings.Builder
	for i := start; i < end; i++ {
		if l.falling && i-start >= l.fallFrame {
			break
		}
		b.WriteString(renderListItem(l.articles[i], i == l.state.Cursor, width))
		if i < end-1 {
			b.WriteString("\n\n")
		}
	}
	return b.String()
}

func renderListItem(a model.Article, selected bool, width int) string {
	var title string
	if selected {
		title = itemSelectedStyle.Render("> " + sanitize.Truncate(a.Title, width-4))
	} else {
		title = itemTitleStyle.Render("  " + sanitize.Truncate(a.Title, width-4))
	}

	source := a.SourceName
	if source == "" {
		source = "unknown"
	}
	meta := "  " + itemSourceStyle.Render(source) + " " + itemTimeStyle.Render("· "+relativeTime(a.PublishedAt))
	return title + "\n" + meta
}

func relativeTime(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	default:
		return t.Format("Jan 2")
	}
}

func centered(s string, width, height int) string {
	return lipgloss.Place(width, max(height, 1), lipgloss.Center, lipgloss.Center, dimStyle.Render(s))
}
