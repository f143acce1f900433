// Package feed serves headlines and sources from configured RSS/Atom feeds.
package feed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"newsdesk/internal/config"
	"newsdesk/internal/model"
	"newsdesk/internal/sanitize"

	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"
)

const (
	maxAge         = 7 * 24 * time.Hour
	descriptionCap = 300
)

var ErrNoFeeds = errors.New("no enabled feeds match the query")

type Provider struct {
	parser *gofeed.Parser
	feeds  []config.Feed
	logger *zap.Logger
	text   *sanitize.Text
	now    func() time.Time
}

func NewProvider(httpClient *http.Client, feeds []config.Feed, logger *zap.Logger) *Provider {
	parser := gofeed.NewParser()
	parser.Client = httpClient
	return &Provider{
		parser: parser,
		feeds:  feeds,
		logger: logger,
		text:   sanitize.NewText(),
		now:    time.Now,
	}
}

// Headlines fetches every enabled feed in spec's category concurrently and
// merges the items newest first. A feed that fails is logged and skipped;
// the call only fails when every feed failed.
func (p *Provider) Headlines(ctx context.Context, spec model.Specification) ([]model.Article, error) {
	feeds := p.matching(spec.Category)
	if len(feeds) == 0 {
		return nil, ErrNoFeeds
	}

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		articles []model.Article
		errs     []error
	)
	for _, f := range feeds {
		wg.Add(1)
		go func(f config.Feed) {
			defer wg.Done()
			items, err := p.fetch(ctx, f)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				p.logger.Warn("Feed fetch failed", zap.String("feed", f.Name), zap.Error(err))
				errs = append(errs, err)
				return
			}
			articles = append(articles, items...)
		}(f)
	}
	wg.Wait()

	if len(errs) == len(feeds) {
		return nil, errors.Join(errs...)
	}

	sort.SliceStable(articles, func(i, j int) bool {
		return articles[i].PublishedAt.After(articles[j].PublishedAt)
	})
	return model.Dedupe(articles), nil
}

// Sources lists the configured feeds as publishers.
func (p *Provider) Sources(_ context.Context, spec model.Specification) ([]model.Source, error) {
	sources := make([]model.Source, 0, len(p.feeds))
	for _, f := range p.feeds {
		if !f.Enabled {
			continue
		}
		src := model.Source{
			ID:       sourceID(f.Name),
			Name:     f.Name,
			URL:      siteURL(f.URL),
			Category: f.Category,
			Language: spec.Language,
			Country:  spec.Country,
		}
		if spec.Matches(src) {
			sources = append(sources, src)
		}
	}
	return sources, nil
}

func (p *Provider) matching(cat model.Category) []config.Feed {
	var out []config.Feed
	for _, f := range p.feeds {
		if !f.Enabled {
			continue
		}
		if cat == model.CategoryNone || f.Category == cat {
			out = append(out, f)
		}
	}
	return out
}

func (p *Provider) fetch(ctx context.Context, f config.Feed) ([]model.Article, error) {
	parsed, err := p.parser.ParseURLWithContext(f.URL, ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", f.Name, err)
	}

	now := p.now()
	oldest := now.Add(-maxAge)
	articles := make([]model.Article, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item.Link == "" {
			continue
		}
		pub := now
		if item.PublishedParsed != nil {
			pub = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			pub = *item.UpdatedParsed
		}
		if pub.Before(oldest) {
			continue
		}

		desc := item.Description
		if desc == "" {
			desc = item.Content
		}

		a := model.Article{
			ID:          model.ArticleID(item.Link),
			SourceID:    sourceID(f.Name),
			SourceName:  f.Name,
			Title:       p.text.Clean(item.Title),
			Description: sanitize.Truncate(p.text.Clean(desc), descriptionCap),
			URL:         item.Link,
			Category:    f.Category,
			PublishedAt: pub,
			Content:     p.text.Clean(item.Content),
		}
		if len(item.Authors) > 0 && item.Authors[0] != nil {
			a.Author = item.Authors[0].Name
		}
		if item.Image != nil {
			a.ImageURL = item.Image.URL
		}
		articles = append(articles, a)
	}
	return articles, nil
}

func sourceID(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "-")
}

func siteURL(feedURL string) string {
	u, err := url.Parse(feedURL)
	if err != nil || u.Host == "" {
		return feedURL
	}
	return u.Scheme + "://" + u.Host
}
