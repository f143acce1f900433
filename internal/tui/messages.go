package tui

import (
	"newsdesk/internal/live"
	"newsdesk/internal/model"
)

type articlesMsg struct {
	list     int64
	gen      int
	articles []model.Article
	closed   bool
}

type sourcesMsg struct {
	gen     int
	sources []model.Source
	closed  bool
}

type fallTickMsg struct {
	list  int64
	frame int
}

type detailTickMsg struct {
	frame int
}

type openArticleMsg struct {
	article    model.Article
	transition Transition
}

type showOptionsMsg struct {
	req OptionsRequest
}

type savedFlagMsg struct {
	sub    *live.Subscription[bool]
	saved  bool
	closed bool
}

type archivedTextMsg struct {
	saved *model.SavedArticle
	err   error
}

type refreshDoneMsg struct {
	what string
	err  error
}

type actionDoneMsg struct {
	status string
	err    error
}

type repoErrMsg struct {
	err    error
	closed bool
}
