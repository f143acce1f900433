package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"newsdesk/internal/config"
	"newsdesk/internal/live"
	"newsdesk/internal/model"
	"newsdesk/internal/store"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const actionTimeout = 30 * time.Second

// HeadlineActions is the headline view-model as the app shell uses it.
type HeadlineActions interface {
	ArticleFeed
	IsSaved(id uuid.UUID) *live.Value[bool]
	Save(ctx context.Context, article model.Article) error
	ToggleSave(ctx context.Context, id uuid.UUID) error
}

// Backend covers the repository calls the shell makes directly.
type Backend interface {
	Refresh(ctx context.Context, spec model.Specification) error
	RefreshSources(ctx context.Context, spec model.Specification) error
	SavedArticle(ctx context.Context, id uuid.UUID) (*model.SavedArticle, error)
	Errors() *live.Value[error]
}

type Options struct {
	Config      *config.Config
	Headlines   HeadlineActions
	Sources     SourceFeed
	Backend     Backend
	Logger      *zap.Logger
	Session     Session
	SessionPath string
	OpenURL     func(string) error
}

type tab struct {
	key     string
	label   string
	list    *List
	sources *sourcesView
	state   []byte
}

func (t *tab) activate() tea.Cmd {
	if t.list != nil {
		return t.list.Activate(t.state)
	}
	return t.sources.Activate(t.state)
}

func (t *tab) deactivate() {
	if t.list != nil {
		t.state = t.list.Deactivate()
		return
	}
	t.state = t.sources.Deactivate()
}

type App struct {
	cfg       *config.Config
	headlines HeadlineActions
	backend   Backend
	logger    *zap.Logger
	openURL   func(string) error

	tabs   []*tab
	active int

	detail *detailView
	sheet  *optionsSheet

	spinner    spinner.Model
	refreshing bool
	status     string
	err        error
	errSub     *live.Subscription[error]
	closed     bool

	width       int
	height      int
	currentDate string
}

func NewApp(opts Options) *App {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.OpenURL == nil {
		opts.OpenURL = func(string) error { return errors.New("no browser configured") }
	}

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = spinnerStyle

	a := &App{
		cfg:         opts.Config,
		headlines:   opts.Headlines,
		backend:     opts.Backend,
		logger:      opts.Logger,
		openURL:     opts.OpenURL,
		spinner:     sp,
		currentDate: time.Now().Format("Mon Jan 2"),
	}

	deps := ListDeps{
		Feed:      opts.Headlines,
		Navigator: a,
		Options:   a,
		Logger:    opts.Logger,
		Spec:      opts.Config.Spec,
	}
	for _, c := range opts.Config.Categories {
		l := NewHeadlineList(c, deps)
		a.tabs = append(a.tabs, &tab{key: l.Mode().Arg(), label: l.Mode().Label(), list: l})
	}
	saved := NewSavedList(deps)
	a.tabs = append(a.tabs, &tab{key: saved.Mode().Arg(), label: saved.Mode().Label(), list: saved})
	a.tabs = append(a.tabs, &tab{
		key:     sourcesTabKey,
		label:   "Sources",
		sources: newSourcesView(opts.Sources, opts.Config.SourceSpec()),
	})

	for i, t := range a.tabs {
		t.state = opts.Session.Lists[t.key]
		if opts.Session.Active != "" && t.key == opts.Session.Active {
			a.active = i
		}
	}
	return a
}

// OpenArticle implements Navigator.
func (a *App) OpenArticle(article model.Article, t Transition) tea.Cmd {
	return func() tea.Msg {
		return openArticleMsg{article: article, transition: t}
	}
}

// ShowOptions implements OptionsPresenter.
func (a *App) ShowOptions(req OptionsRequest) tea.Cmd {
	return func() tea.Msg {
		return showOptionsMsg{req: req}
	}
}

func (a *App) Init() tea.Cmd {
	a.errSub = a.backend.Errors().Subscribe()
	return tea.Batch(a.tabs[a.active].activate(), waitForRepoErr(a.errSub))
}

func waitForRepoErr(sub *live.Subscription[error]) tea.Cmd {
	return func() tea.Msg {
		err, ok := <-sub.C()
		return repoErrMsg{err: err, closed: !ok}
	}
}

// Close releases the active tab and the error subscription. Safe to call
// more than once.
func (a *App) Close() {
	if a.closed {
		return
	}
	a.closed = true
	a.closeSheet()
	a.tabs[a.active].deactivate()
	if a.errSub != nil {
		a.errSub.Cancel()
	}
}

// Session captures the active tab and every tab's scroll position.
func (a *App) Session() Session {
	s := Session{Active: a.tabs[a.active].key, Lists: map[string][]byte{}}
	for _, t := range a.tabs {
		if len(t.state) > 0 {
			s.Lists[t.key] = t.state
		}
	}
	return s
}

func (a *App) activeTab() *tab {
	return a.tabs[a.active]
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.resize(msg.Width, msg.Height)
		return a, nil

	case tea.KeyMsg:
		// Clear sticky error on any keypress
		a.err = nil
		a.status = ""
		return a.handleKey(msg)

	case articlesMsg, fallTickMsg:
		for _, t := range a.tabs {
			if t.list != nil && t.list.Owns(msg) {
				return a, t.list.Update(msg)
			}
		}
		return a, nil

	case sourcesMsg:
		return a, a.tabs[len(a.tabs)-1].sources.Update(msg)

	case openArticleMsg:
		d, cmd := newDetailView(msg.article, msg.transition, a.width, a.contentHeight())
		a.detail = d
		return a, tea.Batch(cmd, a.loadArchived(msg.article.ID))

	case archivedTextMsg:
		if msg.err != nil {
			if !errors.Is(msg.err, store.ErrNotFound) {
				a.logger.Warn("Loading saved copy failed", zap.Error(msg.err))
			}
			return a, nil
		}
		if a.detail != nil && a.detail.article.ID == msg.saved.ID {
			a.detail.setArchived(msg.saved)
		}
		return a, nil

	case detailTickMsg:
		if a.detail == nil {
			return a, nil
		}
		cmd, done := a.detail.tick(msg)
		if done {
			return a, a.closeDetail()
		}
		return a, cmd

	case showOptionsMsg:
		return a, a.openSheet(msg.req)

	case savedFlagMsg:
		if a.sheet == nil || a.sheet.flag != msg.sub || msg.closed {
			return a, nil
		}
		a.sheet.setSaved(msg.saved)
		return a, waitForSavedFlag(msg.sub)

	case refreshDoneMsg:
		a.refreshing = false
		if msg.err != nil {
			a.err = msg.err
		} else {
			a.status = msg.what + " refreshed"
		}
		return a, nil

	case actionDoneMsg:
		if msg.err != nil {
			a.err = msg.err
		} else {
			a.status = msg.status
		}
		return a, nil

	case repoErrMsg:
		if msg.closed {
			return a, nil
		}
		if msg.err != nil {
			a.err = msg.err
		}
		return a, waitForRepoErr(a.errSub)

	case spinner.TickMsg:
		if a.refreshing {
			var cmd tea.Cmd
			a.spinner, cmd = a.spinner.Update(msg)
			return a, cmd
		}
		return a, nil
	}

	return a, nil
}

func (a *App) resize(width, height int) {
	a.width = width
	a.height = height
	h := a.contentHeight()
	for _, t := range a.tabs {
		if t.list != nil {
			t.list.SetSize(width-4, h)
		} else {
			t.sources.SetSize(width-4, h)
		}
	}
	if a.detail != nil {
		a.detail.setSize(width, h)
	}
}

// contentHeight leaves room for header, tabs, status bar and pane borders.
func (a *App) contentHeight() int {
	return max(a.height-5, 3)
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return a, a.quit()
	}

	if a.sheet != nil {
		action, chosen, done := a.sheet.handleKey(msg)
		req := a.sheet.req
		if done {
			a.closeSheet()
		}
		if chosen {
			return a, a.runAction(req, action)
		}
		return a, nil
	}

	if a.detail != nil {
		switch msg.String() {
		case "esc", "q", "backspace", "left", "h":
			cmd, now := a.detail.close()
			if now {
				return a, a.closeDetail()
			}
			return a, cmd
		case "b", "o":
			return a, a.openCmd(a.detail.article.URL)
		}
		return a, a.detail.Update(msg)
	}

	switch msg.String() {
	case "q":
		return a, a.quit()
	case "tab", "right", "l":
		return a, a.switchTab(a.active + 1)
	case "shift+tab", "left", "h":
		return a, a.switchTab(a.active - 1)
	case "1", "2", "3", "4", "5", "6", "7", "8", "9":
		i := int(msg.String()[0] - '1')
		if i >= len(a.tabs) {
			return a, nil
		}
		return a, a.switchTab(i)
	case "r":
		return a, a.refresh()
	case "o", "b":
		if t := a.activeTab(); t.list != nil {
			if art, ok := t.list.Selected(); ok {
				return a, a.openCmd(art.URL)
			}
		}
		return a, nil
	}

	t := a.activeTab()
	if t.list != nil {
		return a, t.list.Update(msg)
	}
	return a, t.sources.Update(msg)
}

func (a *App) quit() tea.Cmd {
	a.Close()
	return tea.Quit
}

// openSheet shows the options for req. In headline mode the sheet follows
// the article's saved flag, so it offers removal for an article that is
// already saved.
func (a *App) openSheet(req OptionsRequest) tea.Cmd {
	a.closeSheet()
	a.sheet = newOptionsSheet(req)
	if _, ok := req.Mode.(HeadlinesMode); !ok {
		return nil
	}
	flag := a.headlines.IsSaved(req.ID)
	if saved, ok := flag.Get(); ok {
		a.sheet.setSaved(saved)
	}
	a.sheet.flag = flag.Subscribe()
	return waitForSavedFlag(a.sheet.flag)
}

func (a *App) closeSheet() {
	if a.sheet != nil {
		a.sheet.release()
		a.sheet = nil
	}
}

func waitForSavedFlag(sub *live.Subscription[bool]) tea.Cmd {
	return func() tea.Msg {
		saved, ok := <-sub.C()
		return savedFlagMsg{sub: sub, saved: saved, closed: !ok}
	}
}

func (a *App) closeDetail() tea.Cmd {
	a.detail = nil
	if t := a.activeTab(); t.list != nil {
		return t.list.Resume()
	}
	return nil
}

func (a *App) switchTab(i int) tea.Cmd {
	n := len(a.tabs)
	i = ((i % n) + n) % n
	if i == a.active {
		return nil
	}
	a.tabs[a.active].deactivate()
	a.active = i
	return a.tabs[i].activate()
}

func (a *App) refresh() tea.Cmd {
	if a.refreshing {
		return nil
	}
	t := a.activeTab()

	var (
		what string
		run  func(ctx context.Context) error
	)
	switch {
	case t.sources != nil:
		what = "Sources"
		spec := a.cfg.SourceSpec()
		run = func(ctx context.Context) error { return a.backend.RefreshSources(ctx, spec) }
	default:
		m, ok := t.list.Mode().(HeadlinesMode)
		if !ok {
			a.status = "Saved articles are stored locally"
			return nil
		}
		what = m.Category.Title()
		spec := a.cfg.Spec(m.Category)
		run = func(ctx context.Context) error { return a.backend.Refresh(ctx, spec) }
	}

	a.refreshing = true
	return tea.Batch(func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		return refreshDoneMsg{what: what, err: run(ctx)}
	}, a.spinner.Tick)
}

func (a *App) loadArchived(id uuid.UUID) tea.Cmd {
	backend := a.backend
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		sa, err := backend.SavedArticle(ctx, id)
		return archivedTextMsg{saved: sa, err: err}
	}
}

func (a *App) runAction(req OptionsRequest, action optionAction) tea.Cmd {
	switch action {
	case actionSave:
		article := a.lookup(req)
		vm := a.headlines
		return func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
			defer cancel()
			if err := vm.Save(ctx, article); err != nil {
				return actionDoneMsg{err: err}
			}
			return actionDoneMsg{status: "Saved for later"}
		}
	case actionRemove:
		vm := a.headlines
		return func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
			defer cancel()
			if err := vm.ToggleSave(ctx, req.ID); err != nil {
				return actionDoneMsg{err: err}
			}
			return actionDoneMsg{status: "Removed from saved"}
		}
	case actionOpen:
		return a.openCmd(req.URL)
	}
	return nil
}

// lookup finds the full article behind an options request.
func (a *App) lookup(req OptionsRequest) model.Article {
	for _, t := range a.tabs {
		if t.list == nil {
			continue
		}
		for _, art := range t.list.Articles() {
			if art.ID == req.ID {
				return art
			}
		}
	}
	return model.Article{ID: req.ID, Title: req.Title, URL: req.URL, PublishedAt: time.Now()}
}

func (a *App) openCmd(url string) tea.Cmd {
	open := a.openURL
	return func() tea.Msg {
		if err := open(url); err != nil {
			return actionDoneMsg{err: err}
		}
		return actionDoneMsg{status: "Opened in browser"}
	}
}

func (a *App) View() string {
	if a.width == 0 {
		return lipgloss.NewStyle().Foreground(colorAccent).Render("  newsdesk")
	}

	headerLeft := headerStyle.Render("newsdesk")
	headerRight := headerDateStyle.Render(a.currentDate)
	gap := max(a.width-lipgloss.Width(headerLeft)-lipgloss.Width(headerRight), 0)
	header := headerLeft + strings.Repeat(" ", gap) + headerRight

	h := a.contentHeight()
	var body string
	switch {
	case a.detail != nil:
		body = a.detail.View()
	default:
		t := a.activeTab()
		var content string
		if t.list != nil {
			content = t.list.View()
		} else {
			content = t.sources.View()
		}
		body = paneStyle.Width(a.width - 2).Height(h).Render(content)
	}
	if a.sheet != nil {
		body = lipgloss.Place(a.width, h+2, lipgloss.Center, lipgloss.Center, a.sheet.View(a.width))
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, a.renderTabs(), body, a.renderStatus())
}

func (a *App) renderTabs() string {
	parts := make([]string, len(a.tabs))
	for i, t := range a.tabs {
		label := fmt.Sprintf("%d %s", i+1, t.label)
		if i == a.active {
			parts[i] = tabActiveStyle.Render(label)
		} else {
			parts[i] = tabInactiveStyle.Render(label)
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (a *App) renderStatus() string {
	if a.err != nil {
		return statusBarStyle.Width(a.width).Render(errorStyle.Render(a.err.Error()))
	}

	var left string
	t := a.activeTab()
	switch {
	case a.detail != nil:
		left = a.detail.scrollHint()
	case t.list != nil:
		left = fmt.Sprintf("%d articles", len(t.list.Articles()))
	default:
		left = fmt.Sprintf("%d sources", len(t.sources.sources))
	}
	if a.refreshing {
		left = a.spinner.View() + " " + left + " (refreshing...)"
	}
	if a.status != "" {
		left += " · " + a.status
	}

	right := "tab switch  enter open  . options  r refresh  q quit"
	switch {
	case a.sheet != nil:
		right = "enter choose  esc close"
	case a.detail != nil:
		right = "b browser  esc back"
	}

	gap := max(a.width-lipgloss.Width(left)-lipgloss.Width(right)-2, 0)
	return statusBarStyle.Width(a.width).Render(left + strings.Repeat(" ", gap) + right)
}

// Run loads the saved session, runs the program until the user quits, and
// writes the session back.
func Run(opts Options) error {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.SessionPath != "" {
		s, err := LoadSession(opts.SessionPath)
		if err != nil {
			opts.Logger.Error("Ignoring saved session", zap.Error(err))
		}
		opts.Session = s
	}

	app := NewApp(opts)
	p := tea.NewProgram(app, tea.WithAltScreen())
	_, err := p.Run()
	app.Close()

	if opts.SessionPath != "" {
		if serr := SaveSession(opts.SessionPath, app.Session()); serr != nil {
			opts.Logger.Warn("Saving session failed", zap.Error(serr))
		}
	}
	return err
}
