package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"newsdesk/internal/metrics"
	"newsdesk/internal/model"
	"newsdesk/internal/sanitize"
	"newsdesk/internal/store"

	"github.com/doyensec/safeurl"
	"github.com/go-shiori/go-readability"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	scrapeTimeout  = 30 * time.Second
	maxPageSize    = 8 << 20
	queueErrorWait = time.Second
)

// Scraper downloads a page and extracts its readable part.
type Scraper interface {
	Scrape(ctx context.Context, rawURL string) (*readability.Article, error)
}

// DefaultScraper fetches pages through a client that refuses private and
// loopback addresses.
type DefaultScraper struct {
	client *http.Client
}

func NewDefaultScraper() *DefaultScraper {
	cfg := safeurl.GetConfigBuilder().
		SetTimeout(scrapeTimeout).
		SetAllowedSchemes("http", "https").
		SetAllowedPorts(80, 443).
		Build()
	return &DefaultScraper{client: safeurl.Client(cfg).Client}
}

func (s *DefaultScraper) Scrape(ctx context.Context, rawURL string) (*readability.Article, error) {
	pageURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "newsdesk/1.0 (+archive)")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	art, err := readability.FromReader(io.LimitReader(resp.Body, maxPageSize), pageURL)
	if err != nil {
		return nil, fmt.Errorf("parsing page: %w", err)
	}
	return &art, nil
}

// Queue is the archive bookkeeping the worker drives.
type Queue interface {
	NextArchiveJob(ctx context.Context) (uuid.UUID, error)
	SavedArticle(ctx context.Context, id uuid.UUID) (*model.SavedArticle, error)
	CompleteArchive(ctx context.Context, id uuid.UUID, title, content string) error
	FailArchive(ctx context.Context, id uuid.UUID, reason string) error
}

// Worker stores a readable copy of every article the user saves.
type Worker struct {
	queue   Queue
	logger  *zap.Logger
	scraper Scraper
	text    *sanitize.Text
	metrics metrics.Recorder
}

// NewWorker initializes the worker with the DefaultScraper
func NewWorker(queue Queue, logger *zap.Logger, rec metrics.Recorder) *Worker {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Worker{
		queue:   queue,
		logger:  logger,
		scraper: NewDefaultScraper(),
		text:    sanitize.NewText(),
		metrics: rec,
	}
}

// Start runs the worker loop until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("Worker started. Waiting for jobs...")

	for {
		id, err := w.queue.NextArchiveJob(ctx)
		if err != nil {
			if ctx.Err() != nil {
				w.logger.Info("Worker shutting down")
				return
			}
			if errors.Is(err, store.ErrQueueEmpty) {
				continue
			}
			w.logger.Error("Queue error", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(queueErrorWait):
			}
			continue
		}

		w.processJob(ctx, id)
	}
}

func (w *Worker) processJob(ctx context.Context, id uuid.UUID) {
	logger := w.logger.With(zap.String("job_id", id.String()))
	logger.Info("Processing started")

	article, err := w.queue.SavedArticle(ctx, id)
	if err != nil {
		// removed before the worker got to it
		if errors.Is(err, store.ErrNotFound) {
			logger.Info("Skipping job for removed article")
			return
		}
		logger.Error("Job failed: article not loaded", zap.Error(err))
		return
	}
	if article.Status == model.StatusArchived {
		logger.Info("Already archived")
		return
	}

	logger.Info("Downloading", zap.String("url", article.URL))

	parsed, err := w.scraper.Scrape(ctx, article.URL)
	if err != nil {
		logger.Error("Scraping failed", zap.Error(err))
		w.failJob(ctx, logger, id, err.Error())
		return
	}

	content := w.text.Paragraphs(parsed.Content)
	if content == "" {
		w.failJob(ctx, logger, id, "no readable content")
		return
	}

	if err := w.queue.CompleteArchive(ctx, id, parsed.Title, content); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			logger.Info("Article removed while archiving")
			return
		}
		logger.Error("Failed to save result", zap.Error(err))
		w.metrics.RecordArchive(metrics.OutcomeFailed)
		return
	}

	w.metrics.RecordArchive(metrics.OutcomeArchived)
	logger.Info("Archiving complete", zap.String("title", parsed.Title))
}

func (w *Worker) failJob(ctx context.Context, logger *zap.Logger, id uuid.UUID, msg string) {
	w.metrics.RecordArchive(metrics.OutcomeFailed)
	if err := w.queue.FailArchive(ctx, id, msg); err != nil && !errors.Is(err, store.ErrNotFound) {
		logger.Error("Failed to record failure", zap.Error(err))
	}
}
