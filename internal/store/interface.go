package store

import (
	"context"
	"errors"
	"time"

	"newsdesk/internal/model"

	"github.com/google/uuid"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrQueueEmpty = errors.New("queue empty")
)

// HeadlineSnapshot is the cached result of one headline query.
type HeadlineSnapshot struct {
	Articles  []model.Article `json:"articles"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// Stale reports whether the snapshot is older than ttl.
func (h HeadlineSnapshot) Stale(ttl time.Duration) bool {
	return time.Since(h.FetchedAt) > ttl
}

type HeadlineStore interface {
	PutHeadlines(ctx context.Context, spec model.Specification, articles []model.Article) error
	Headlines(ctx context.Context, spec model.Specification) (HeadlineSnapshot, error)
}

type SavedStore interface {
	Save(ctx context.Context, article *model.SavedArticle) error
	Update(ctx context.Context, article *model.SavedArticle) error
	Get(ctx context.Context, id uuid.UUID) (*model.SavedArticle, error)
	List(ctx context.Context, limit int) ([]model.SavedArticle, error)
	IsSaved(ctx context.Context, id uuid.UUID) (bool, error)
	Remove(ctx context.Context, id uuid.UUID) error
	PopQueue(ctx context.Context) (uuid.UUID, error)
}

type Store interface {
	HeadlineStore
	SavedStore
}
