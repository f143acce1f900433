package model

import (
	"time"

	"github.com/google/uuid"
)

type ArchiveStatus string

const (
	StatusPending  ArchiveStatus = "pending"
	StatusArchived ArchiveStatus = "archived"
	StatusFailed   ArchiveStatus = "failed"
)

// articleNamespace scopes the name-based IDs derived from article URLs.
var articleNamespace = uuid.MustParse("6b7a1c2e-94d4-4f5e-9a57-2f1b3d8e0c41")

// Article is a single news item as fetched from a provider.
type Article struct {
	ID          uuid.UUID `json:"id"`
	SourceID    string    `json:"source_id,omitempty"`
	SourceName  string    `json:"source_name"`
	Author      string    `json:"author,omitempty"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	ImageURL    string    `json:"image_url,omitempty"`
	Category    Category  `json:"category,omitempty"`
	PublishedAt time.Time `json:"published_at"`
	Content     string    `json:"content,omitempty"`
}

// ArticleID returns the stable identity of the story behind rawURL.
func ArticleID(rawURL string) uuid.UUID {
	return uuid.NewSHA1(articleNamespace, []byte(rawURL))
}

// NewArticle creates an Article for rawURL with its ID filled in.
func NewArticle(rawURL string) Article {
	return Article{
		ID:          ArticleID(rawURL),
		URL:         rawURL,
		PublishedAt: time.Now(),
	}
}

// SavedArticle is an article the user flagged, plus its archive bookkeeping.
type SavedArticle struct {
	Article
	SavedAt      time.Time     `json:"saved_at"`
	Status       ArchiveStatus `json:"status"`
	ArchivedAt   *time.Time    `json:"archived_at,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
}

// NewSavedArticle wraps a into a pending SavedArticle.
func NewSavedArticle(a Article) SavedArticle {
	return SavedArticle{
		Article: a,
		SavedAt: time.Now(),
		Status:  StatusPending,
	}
}

// Dedupe drops articles whose ID was already seen, keeping the first.
func Dedupe(articles []Article) []Article {
	seen := make(map[uuid.UUID]struct{}, len(articles))
	out := make([]Article, 0, len(articles))
	for _, a := range articles {
		if _, ok := seen[a.ID]; ok {
			continue
		}
		seen[a.ID] = struct{}{}
		out = append(out, a)
	}
	return out
}
