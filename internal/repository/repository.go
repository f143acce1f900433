// Package repository mediates between the news providers, the local source
// cache and the saved-article store, and exposes the results as live values.
package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"newsdesk/internal/live"
	"newsdesk/internal/metrics"
	"newsdesk/internal/model"
	"newsdesk/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrClosed = errors.New("repository closed")

// Provider fetches fresh data from a remote news service.
type Provider interface {
	Headlines(ctx context.Context, spec model.Specification) ([]model.Article, error)
	Sources(ctx context.Context, spec model.Specification) ([]model.Source, error)
}

// SourceCache is the local table of known publishers.
type SourceCache interface {
	BulkInsert(ctx context.Context, sources []model.Source) error
	AllSources() *live.Value[[]model.Source]
	Count(ctx context.Context) (int, error)
	NeedsRefresh(ctx context.Context, interval time.Duration) bool
	SetLastRefresh(ctx context.Context) error
}

type Options struct {
	Provider Provider
	Store    store.Store
	Cache    SourceCache
	Logger   *zap.Logger
	Metrics  metrics.Recorder

	// HeadlineTTL is how old a cached headline snapshot may get before
	// Headlines triggers a background refresh.
	HeadlineTTL time.Duration
	// SourceInterval is how often the source table is refetched.
	SourceInterval time.Duration
}

type sourceView struct {
	spec  model.Specification
	value *live.Value[[]model.Source]
}

type Repository struct {
	provider Provider
	store    store.Store
	cache    SourceCache
	logger   *zap.Logger
	metrics  metrics.Recorder
	ttl      time.Duration
	srcEvery time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	closed    bool
	headlines map[string]*live.Value[[]model.Article]
	sources   map[string]*sourceView
	saved     *live.Value[[]model.Article]
	savedOnce sync.Once
	savedIDs  map[uuid.UUID]*live.Value[bool]
	errs      *live.Value[error]

	allSources *live.Subscription[[]model.Source]
}

// New builds a Repository and starts following the source cache. Call Close
// to stop its goroutines.
func New(opts Options) *Repository {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Nop{}
	}
	if opts.HeadlineTTL <= 0 {
		opts.HeadlineTTL = 15 * time.Minute
	}
	if opts.SourceInterval <= 0 {
		opts.SourceInterval = 24 * time.Hour
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Repository{
		provider:  opts.Provider,
		store:     opts.Store,
		cache:     opts.Cache,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		ttl:       opts.HeadlineTTL,
		srcEvery:  opts.SourceInterval,
		ctx:       ctx,
		cancel:    cancel,
		headlines: make(map[string]*live.Value[[]model.Article]),
		sources:   make(map[string]*sourceView),
		saved:     live.New[[]model.Article](),
		savedIDs:  make(map[uuid.UUID]*live.Value[bool]),
		errs:      live.New[error](),
	}

	if r.cache != nil {
		r.allSources = r.cache.AllSources().Subscribe()
		r.wg.Add(1)
		go r.followSources(r.allSources)
	}
	return r
}

// Close stops background work and releases the source cache subscription.
// The store and cache stay open; they belong to the caller.
func (r *Repository) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.mu.Unlock()

	r.cancel()
	if r.allSources != nil {
		r.allSources.Cancel()
	}
	r.wg.Wait()
}

// Errors carries the latest failure of background work, for status lines.
func (r *Repository) Errors() *live.Value[error] {
	return r.errs
}

// Headlines returns the live headline list for spec. The first call for a
// given spec seeds it from the headline cache and refreshes from the
// provider in the background when the snapshot is missing or stale.
func (r *Repository) Headlines(spec model.Specification) *live.Value[[]model.Article] {
	key := spec.Key()

	r.mu.Lock()
	v, ok := r.headlines[key]
	if !ok {
		v = live.New[[]model.Article]()
		r.headlines[key] = v
	}
	r.mu.Unlock()

	if !ok {
		r.background("load headlines", func(ctx context.Context) error {
			return r.loadHeadlines(ctx, spec, v)
		})
	}
	return v
}

func (r *Repository) loadHeadlines(ctx context.Context, spec model.Specification, v *live.Value[[]model.Article]) error {
	snap, err := r.store.Headlines(ctx, spec)
	switch {
	case err == nil:
		v.Set(snap.Articles)
		if !snap.Stale(r.ttl) {
			return nil
		}
	case errors.Is(err, store.ErrNotFound):
	default:
		r.logger.Warn("Reading headline cache failed", zap.String("spec", spec.Key()), zap.Error(err))
	}

	if err := r.Refresh(ctx, spec); err != nil {
		if _, ok := v.Get(); !ok {
			v.Set([]model.Article{})
		}
		return err
	}
	return nil
}

// Refresh fetches headlines for spec from the provider, writes them through
// to the cache and publishes them.
func (r *Repository) Refresh(ctx context.Context, spec model.Specification) error {
	start := time.Now()
	articles, err := r.provider.Headlines(ctx, spec)
	r.metrics.RecordRefreshLatency(metrics.KindHeadlines, time.Since(start))
	r.metrics.RecordRefresh(metrics.KindHeadlines, err)
	if err != nil {
		return fmt.Errorf("refreshing %s headlines: %w", spec.Category.Title(), err)
	}

	articles = model.Dedupe(articles)
	r.metrics.RecordArticlesFetched(len(articles))

	if err := r.store.PutHeadlines(ctx, spec, articles); err != nil {
		r.logger.Warn("Writing headline cache failed", zap.String("spec", spec.Key()), zap.Error(err))
	}

	r.mu.Lock()
	v, ok := r.headlines[spec.Key()]
	if !ok {
		v = live.New[[]model.Article]()
		r.headlines[spec.Key()] = v
	}
	r.mu.Unlock()

	v.Set(articles)
	r.logger.Debug("Headlines refreshed", zap.String("spec", spec.Key()), zap.Int("count", len(articles)))
	return nil
}

// AutoRefresh refreshes every spec each interval until ctx ends.
func (r *Repository) AutoRefresh(ctx context.Context, specs []model.Specification, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, spec := range specs {
				if err := r.Refresh(ctx, spec); err != nil {
					r.logger.Error("Scheduled refresh failed", zap.String("spec", spec.Key()), zap.Error(err))
					r.errs.Set(err)
				}
			}
		}
	}
}

// Saved returns the live saved set, most recently saved first.
func (r *Repository) Saved() *live.Value[[]model.Article] {
	r.savedOnce.Do(func() {
		r.background("load saved", r.reloadSaved)
	})
	return r.saved
}

// IsSaved returns a live flag tracking whether id is in the saved set.
func (r *Repository) IsSaved(id uuid.UUID) *live.Value[bool] {
	r.mu.Lock()
	v, ok := r.savedIDs[id]
	if !ok {
		v = live.New[bool]()
		r.savedIDs[id] = v
	}
	r.mu.Unlock()

	if !ok {
		r.background("check saved", func(ctx context.Context) error {
			saved, err := r.store.IsSaved(ctx, id)
			if err != nil {
				return err
			}
			// a reload that finished first is newer than this read
			v.SetIfUnset(saved)
			return nil
		})
	}
	return v
}

// Save adds article to the saved set and queues it for archiving. Saving an
// article that is already saved does nothing.
func (r *Repository) Save(ctx context.Context, article model.Article) error {
	saved, err := r.store.IsSaved(ctx, article.ID)
	if err != nil {
		return err
	}
	if saved {
		return nil
	}

	sa := model.NewSavedArticle(article)
	// the archive worker fills in the full text
	sa.Content = ""
	if err := r.store.Save(ctx, &sa); err != nil {
		return fmt.Errorf("saving article: %w", err)
	}
	r.logger.Info("Article saved", zap.String("id", article.ID.String()), zap.String("url", article.URL))
	return r.reloadSaved(ctx)
}

// RemoveSaved drops id from the saved set. Removing an id that is not saved
// is a no-op.
func (r *Repository) RemoveSaved(ctx context.Context, id uuid.UUID) error {
	if err := r.store.Remove(ctx, id); err != nil {
		return fmt.Errorf("removing saved article: %w", err)
	}
	return r.reloadSaved(ctx)
}

// ListSaved returns up to limit saved articles with their archive status,
// newest first. A limit of 0 returns all of them.
func (r *Repository) ListSaved(ctx context.Context, limit int) ([]model.SavedArticle, error) {
	return r.store.List(ctx, limit)
}

// reloadSaved republishes the saved set and every membership flag. When the
// store cannot be read it publishes nil so observers keep what they show.
func (r *Repository) reloadSaved(ctx context.Context) error {
	list, err := r.store.List(ctx, 0)
	if err != nil {
		r.saved.Set(nil)
		return fmt.Errorf("listing saved articles: %w", err)
	}

	articles := make([]model.Article, len(list))
	ids := make(map[uuid.UUID]struct{}, len(list))
	for i, sa := range list {
		articles[i] = sa.Article
		ids[sa.ID] = struct{}{}
	}
	r.saved.Set(articles)

	r.mu.Lock()
	flags := make(map[uuid.UUID]*live.Value[bool], len(r.savedIDs))
	for id, v := range r.savedIDs {
		flags[id] = v
	}
	r.mu.Unlock()

	for id, v := range flags {
		_, in := ids[id]
		if cur, ok := v.Get(); !ok || cur != in {
			v.Set(in)
		}
	}
	return nil
}

// Sources returns the live list of cached sources matching spec. If the
// cache is empty or due for a refresh, the provider is asked in the
// background.
func (r *Repository) Sources(spec model.Specification) *live.Value[[]model.Source] {
	key := spec.Key()

	r.mu.Lock()
	view, ok := r.sources[key]
	if !ok {
		view = &sourceView{spec: spec, value: live.New[[]model.Source]()}
		r.sources[key] = view
	}
	r.mu.Unlock()

	if ok {
		return view.value
	}

	if all, set := r.cache.AllSources().Get(); set {
		view.value.Set(filterSources(all, spec))
	}
	r.background("load sources", func(ctx context.Context) error {
		n, err := r.cache.Count(ctx)
		if err != nil {
			return err
		}
		if n > 0 && !r.cache.NeedsRefresh(ctx, r.srcEvery) {
			return nil
		}
		return r.RefreshSources(ctx, spec)
	})
	return view.value
}

// RefreshSources fetches sources from the provider into the cache. Sources
// already cached are kept as they are.
func (r *Repository) RefreshSources(ctx context.Context, spec model.Specification) error {
	start := time.Now()
	sources, err := r.provider.Sources(ctx, spec)
	r.metrics.RecordRefreshLatency(metrics.KindSources, time.Since(start))
	r.metrics.RecordRefresh(metrics.KindSources, err)
	if err != nil {
		return fmt.Errorf("refreshing sources: %w", err)
	}

	if err := r.cache.BulkInsert(ctx, sources); err != nil {
		return err
	}
	r.metrics.RecordSourcesInserted(len(sources))
	if err := r.cache.SetLastRefresh(ctx); err != nil {
		r.logger.Warn("Recording source refresh time failed", zap.Error(err))
	}
	return nil
}

func (r *Repository) followSources(sub *live.Subscription[[]model.Source]) {
	defer r.wg.Done()
	for all := range sub.C() {
		r.mu.Lock()
		views := make([]*sourceView, 0, len(r.sources))
		for _, v := range r.sources {
			views = append(views, v)
		}
		r.mu.Unlock()

		for _, v := range views {
			v.value.Set(filterSources(all, v.spec))
		}
	}
}

func filterSources(all []model.Source, spec model.Specification) []model.Source {
	if all == nil {
		return nil
	}
	out := make([]model.Source, 0, len(all))
	for _, src := range all {
		if spec.Matches(src) {
			out = append(out, src)
		}
	}
	return out
}

// NextArchiveJob waits briefly for the next saved article to archive.
func (r *Repository) NextArchiveJob(ctx context.Context) (uuid.UUID, error) {
	return r.store.PopQueue(ctx)
}

// SavedArticle returns the saved copy of id, archived text included.
func (r *Repository) SavedArticle(ctx context.Context, id uuid.UUID) (*model.SavedArticle, error) {
	return r.store.Get(ctx, id)
}

// CompleteArchive stores the readable text for a saved article. It returns
// store.ErrNotFound if the article was removed meanwhile.
func (r *Repository) CompleteArchive(ctx context.Context, id uuid.UUID, title, content string) error {
	sa, err := r.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if sa.Title == "" {
		sa.Title = title
	}
	now := time.Now()
	sa.Content = content
	sa.Status = model.StatusArchived
	sa.ArchivedAt = &now
	sa.ErrorMessage = ""
	if err := r.store.Update(ctx, sa); err != nil {
		return err
	}
	return r.reloadSaved(ctx)
}

// FailArchive marks a saved article as not archivable. Like CompleteArchive
// it leaves a removed article removed.
func (r *Repository) FailArchive(ctx context.Context, id uuid.UUID, reason string) error {
	sa, err := r.store.Get(ctx, id)
	if err != nil {
		return err
	}
	sa.Content = ""
	sa.Status = model.StatusFailed
	sa.ErrorMessage = reason
	if err := r.store.Update(ctx, sa); err != nil {
		return err
	}
	return r.reloadSaved(ctx)
}

func (r *Repository) background(what string, fn func(ctx context.Context) error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		if err := fn(r.ctx); err != nil && r.ctx.Err() == nil {
			r.logger.Error("Background work failed", zap.String("task", what), zap.Error(err))
			r.errs.Set(err)
		}
	}()
}
