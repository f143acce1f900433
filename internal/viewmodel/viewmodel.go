// Package viewmodel exposes repository collections to the presentation
// layer. Every call is a single delegation to the repository.
package viewmodel

import (
	"context"

	"newsdesk/internal/live"
	"newsdesk/internal/model"

	"github.com/google/uuid"
)

// HeadlineSource is the part of the repository the headline view-model uses.
type HeadlineSource interface {
	Headlines(spec model.Specification) *live.Value[[]model.Article]
	Saved() *live.Value[[]model.Article]
	IsSaved(id uuid.UUID) *live.Value[bool]
	Save(ctx context.Context, article model.Article) error
	RemoveSaved(ctx context.Context, id uuid.UUID) error
}

// SourceLister is the part of the repository the source view-model uses.
type SourceLister interface {
	Sources(spec model.Specification) *live.Value[[]model.Source]
}

type Headlines struct {
	repo HeadlineSource
}

func NewHeadlines(repo HeadlineSource) *Headlines {
	return &Headlines{repo: repo}
}

// GetNewsHeadlines returns the live headline list for spec as the
// repository publishes it.
func (h *Headlines) GetNewsHeadlines(spec model.Specification) *live.Value[[]model.Article] {
	return h.repo.Headlines(spec)
}

func (h *Headlines) GetAllSaved() *live.Value[[]model.Article] {
	return h.repo.Saved()
}

func (h *Headlines) IsSaved(id uuid.UUID) *live.Value[bool] {
	return h.repo.IsSaved(id)
}

// ToggleSave removes id from the saved set. It never adds: use Save for
// that. Removing an id that is not saved is a no-op.
func (h *Headlines) ToggleSave(ctx context.Context, id uuid.UUID) error {
	return h.repo.RemoveSaved(ctx, id)
}

func (h *Headlines) Save(ctx context.Context, article model.Article) error {
	return h.repo.Save(ctx, article)
}

type Sources struct {
	repo SourceLister
}

func NewSources(repo SourceLister) *Sources {
	return &Sources{repo: repo}
}

// GetSource returns the live list of cached sources matching spec.
func (s *Sources) GetSource(spec model.Specification) *live.Value[[]model.Source] {
	return s.repo.Sources(spec)
}
