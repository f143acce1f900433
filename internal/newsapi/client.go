// Package newsapi is a client for NewsAPI-compatible headline services.
package newsapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"newsdesk/internal/model"
	"newsdesk/internal/sanitize"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	userAgent      = "newsdesk/1.0"
	maxBodyBytes   = 4 << 20
	pageSize       = 50
	descriptionCap = 400
)

var ErrUnauthorized = errors.New("news api rejected the api key")

// APIError is the error document the service returns with status "error".
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("news api %d %s: %s", e.StatusCode, e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusUnauthorized || e.Code == "apiKeyInvalid" || e.Code == "apiKeyMissing" {
		return ErrUnauthorized
	}
	return nil
}

type wireSource struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	URL         string `json:"url"`
	Category    string `json:"category"`
	Language    string `json:"language"`
	Country     string `json:"country"`
}

type wireArticle struct {
	Source      wireSource `json:"source"`
	Author      string     `json:"author"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	URL         string     `json:"url"`
	URLToImage  string     `json:"urlToImage"`
	PublishedAt time.Time  `json:"publishedAt"`
	Content     string     `json:"content"`
}

type headlinesResponse struct {
	Status   string        `json:"status"`
	Articles []wireArticle `json:"articles"`
}

type sourcesResponse struct {
	Status  string       `json:"status"`
	Sources []wireSource `json:"sources"`
}

type Client struct {
	httpClient *http.Client
	logger     *zap.Logger
	baseURL    string
	apiKey     string
	limiter    *rate.Limiter
	text       *sanitize.Text
}

// NewClient builds a client for baseURL. rps <= 0 disables rate limiting.
func NewClient(httpClient *http.Client, logger *zap.Logger, baseURL, apiKey string, rps float64) *Client {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		limiter:    rate.NewLimiter(limit, 1),
		text:       sanitize.NewText(),
	}
}

// Headlines fetches the top headlines matching spec.
func (c *Client) Headlines(ctx context.Context, spec model.Specification) ([]model.Article, error) {
	q := url.Values{}
	if spec.Category != model.CategoryNone {
		q.Set("category", spec.Category.String())
	}
	if spec.Country != "" {
		q.Set("country", strings.ToLower(spec.Country))
	}
	if spec.Language != "" {
		q.Set("language", strings.ToLower(spec.Language))
	}
	q.Set("pageSize", fmt.Sprint(pageSize))

	var resp headlinesResponse
	if err := c.get(ctx, "/top-headlines", q, &resp); err != nil {
		return nil, err
	}

	articles := make([]model.Article, 0, len(resp.Articles))
	for _, w := range resp.Articles {
		// the service uses "[Removed]" placeholders for withdrawn stories
		if w.URL == "" || w.Title == "[Removed]" {
			continue
		}
		articles = append(articles, model.Article{
			ID:          model.ArticleID(w.URL),
			SourceID:    w.Source.ID,
			SourceName:  w.Source.Name,
			Author:      w.Author,
			Title:       strings.TrimSpace(w.Title),
			Description: sanitize.Truncate(c.text.Clean(w.Description), descriptionCap),
			URL:         w.URL,
			ImageURL:    w.URLToImage,
			Category:    spec.Category,
			PublishedAt: w.PublishedAt,
			Content:     sanitize.TrimAPIMarker(c.text.Clean(w.Content)),
		})
	}
	return model.Dedupe(articles), nil
}

// Sources fetches the publishers matching spec.
func (c *Client) Sources(ctx context.Context, spec model.Specification) ([]model.Source, error) {
	q := url.Values{}
	if spec.Category != model.CategoryNone {
		q.Set("category", spec.Category.String())
	}
	if spec.Country != "" {
		q.Set("country", strings.ToLower(spec.Country))
	}
	if spec.Language != "" {
		q.Set("language", strings.ToLower(spec.Language))
	}

	var resp sourcesResponse
	if err := c.get(ctx, "/top-headlines/sources", q, &resp); err != nil {
		return nil, err
	}

	sources := make([]model.Source, 0, len(resp.Sources))
	for _, w := range resp.Sources {
		if w.ID == "" {
			continue
		}
		src := model.Source{
			ID:          w.ID,
			Name:        w.Name,
			Description: c.text.Clean(w.Description),
			URL:         w.URL,
			Language:    w.Language,
			Country:     w.Country,
		}
		if cat, err := model.ParseCategory(w.Category); err == nil {
			src.Category = cat
		} else if w.Category != "" {
			c.logger.Debug("Source with unknown category", zap.String("source", w.ID), zap.String("category", w.Category))
		}
		sources = append(sources, src)
	}
	return sources, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	reqURL := c.baseURL + path
	if len(q) > 0 {
		reqURL += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("News API request failed", zap.String("path", path), zap.Error(err))
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	c.logger.Debug("News API response",
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
	)

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if jsonErr := json.Unmarshal(body, apiErr); jsonErr != nil || apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}
