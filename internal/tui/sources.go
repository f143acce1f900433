package tui

import (
	"fmt"
	"strings"

	"newsdesk/internal/live"
	"newsdesk/internal/model"
	"newsdesk/internal/sanitize"

	tea "github.com/charmbracelet/bubbletea"
)

// SourceFeed is the source view-model as the sources screen sees it.
type SourceFeed interface {
	GetSource(spec model.Specification) *live.Value[[]model.Source]
}

// sourcesView lists the cached publishers for one query.
type sourcesView struct {
	feed SourceFeed
	spec model.Specification

	sub *live.Subscription[[]model.Source]
	gen int

	sources []model.Source
	loaded  bool
	state   model.ListState

	width  int
	height int
}

func newSourcesView(feed SourceFeed, spec model.Specification) *sourcesView {
	return &sourcesView{feed: feed, spec: spec}
}

func (v *sourcesView) Activate(state []byte) tea.Cmd {
	if v.sub != nil {
		return nil
	}
	if st, err := model.DecodeListState(state); err == nil {
		v.state = st
	}
	v.gen++
	v.sub = v.feed.GetSource(v.spec).Subscribe()
	return waitForSources(v.sub, v.gen)
}

func (v *sourcesView) Deactivate() []byte {
	blob := v.state.Encode()
	if v.sub != nil {
		v.sub.Cancel()
		v.sub = nil
	}
	v.gen++
	return blob
}

func waitForSources(sub *live.Subscription[[]model.Source], gen int) tea.Cmd {
	return func() tea.Msg {
		sources, ok := <-sub.C()
		if !ok {
			return sourcesMsg{gen: gen, closed: true}
		}
		return sourcesMsg{gen: gen, sources: sources}
	}
}

func (v *sourcesView) SetSize(width, height int) {
	v.width = width
	v.height = height
}

func (v *sourcesView) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case sourcesMsg:
		if msg.gen != v.gen || msg.closed || v.sub == nil {
			return nil
		}
		if msg.sources != nil {
			v.sources = msg.sources
			v.loaded = true
			v.state = v.state.Clamp(len(v.sources), v.visible())
		}
		return waitForSources(v.sub, v.gen)

	case tea.KeyMsg:
		delta := 0
		switch msg.String() {
		case "j", "down":
			delta = 1
		case "k", "up":
			delta = -1
		case "pgdown", "ctrl+d":
			delta = v.visible()
		case "pgup", "ctrl+u":
			delta = -v.visible()
		}
		if delta != 0 && len(v.sources) > 0 {
			st := model.ListState{Cursor: max(v.state.Cursor+delta, 0), Offset: v.state.Offset}
			v.state = st.Clamp(len(v.sources), v.visible())
		}
	}
	return nil
}

// Selected returns the source under the cursor.
func (v *sourcesView) Selected() (model.Source, bool) {
	if v.state.Cursor >= len(v.sources) {
		return model.Source{}, false
	}
	return v.sources[v.state.Cursor], true
}

func (v *sourcesView) visible() int {
	return max(v.height/itemHeight, 1)
}

func (v *sourcesView) View() string {
	width := max(v.width, 30)
	if len(v.sources) == 0 {
		msg := "Loading sources..."
		if v.loaded {
			msg = "No sources cached"
		}
		return centered(msg, width, v.height)
	}

	start := v.state.Offset
	end := min(start+v.visible(), len(v.sources))

	var b strings.Builder
	for i := start; i < end; i++ {
		s := v.sources[i]
		name := sanitize.Truncate(s.Name, width-4)
		if i == v.state.Cursor {
			b.WriteString(itemSelectedStyle.Render("> " + name))
		} else {
			b.WriteString(itemTitleStyle.Render("  " + name))
		}
		meta := s.Category.Title()
		if s.Country != "" {
			meta += fmt.Sprintf(" · %s", strings.ToUpper(s.Country))
		}
		desc := sanitize.Truncate(s.Description, width-len(meta)-8)
		b.WriteString("\n  " + itemSourceStyle.Render(meta) + " " + itemTimeStyle.Render(desc))
		if i < end-1 {
			b.WriteString("\n\n")
		}
	}
	return b.String()
}
