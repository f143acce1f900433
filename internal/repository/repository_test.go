package repository

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"newsdesk/internal/cache"
	"newsdesk/internal/live"
	"newsdesk/internal/model"
	"newsdesk/internal/store"

	"github.com/alicebob/miniredis/v2"
	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeProvider struct {
	mu             sync.Mutex
	headlines      map[model.Category][]model.Article
	sources        []model.Source
	err            error
	headlineCalls  int
	sourceRequests int
}

func (p *fakeProvider) Headlines(_ context.Context, spec model.Specification) ([]model.Article, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.headlineCalls++
	if p.err != nil {
		return nil, p.err
	}
	return append([]model.Article(nil), p.headlines[spec.Category]...), nil
}

func (p *fakeProvider) Sources(_ context.Context, _ model.Specification) ([]model.Source, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sourceRequests++
	if p.err != nil {
		return nil, p.err
	}
	return append([]model.Source(nil), p.sources...), nil
}

func (p *fakeProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.headlineCalls
}

type fixture struct {
	repo     *Repository
	provider *fakeProvider
	store    *store.HybridStore
	cache    *cache.Cache
}

func newFixture(t *testing.T, ttl time.Duration) *fixture {
	t.Helper()
	return newWrappedFixture(t, ttl, nil)
}

// newWrappedFixture lets a test put its own store in front of the real one.
func newWrappedFixture(t *testing.T, ttl time.Duration, wrap func(*store.HybridStore) store.Store) *fixture {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	db, err := badger.Open(opts)
	require.NoError(t, err)

	st := store.New(redis.NewClient(&redis.Options{Addr: mr.Addr()}), db)
	t.Cleanup(st.Close)

	c, err := cache.Open(filepath.Join(t.TempDir(), "sources.db"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	var repoStore store.Store = st
	if wrap != nil {
		repoStore = wrap(st)
	}

	p := &fakeProvider{headlines: map[model.Category][]model.Article{}}
	repo := New(Options{
		Provider:    p,
		Store:       repoStore,
		Cache:       c,
		Logger:      zap.NewNop(),
		HeadlineTTL: ttl,
	})
	t.Cleanup(repo.Close)

	return &fixture{repo: repo, provider: p, store: st, cache: c}
}

func article(url string, cat model.Category) model.Article {
	a := model.NewArticle(url)
	a.Title = "Story " + url
	a.Category = cat
	return a
}

func waitFor[T any](t *testing.T, v *live.Value[T], ok func(T) bool) T {
	t.Helper()
	var got T
	require.Eventually(t, func() bool {
		cur, set := v.Get()
		if !set || !ok(cur) {
			return false
		}
		got = cur
		return true
	}, 2*time.Second, 5*time.Millisecond)
	return got
}

func titles(articles []model.Article) []string {
	out := make([]string, len(articles))
	for i, a := range articles {
		out[i] = a.Title
	}
	return out
}

func TestHeadlinesFetchesWhenCacheEmpty(t *testing.T) {
	f := newFixture(t, time.Hour)
	spec := model.ForCategory(model.CategoryScience)
	f.provider.headlines[model.CategoryScience] = []model.Article{
		article("https://a", model.CategoryScience),
		article("https://a", model.CategoryScience),
		article("https://b", model.CategoryScience),
	}

	got := waitFor(t, f.repo.Headlines(spec), func(a []model.Article) bool { return len(a) > 0 })
	assert.Equal(t, []string{"Story https://a", "Story https://b"}, titles(got), "duplicates are dropped")

	snap, err := f.store.Headlines(context.Background(), spec)
	require.NoError(t, err)
	assert.Len(t, snap.Articles, 2, "fetched headlines are written through")
}

func TestHeadlinesServedFromFreshCache(t *testing.T) {
	f := newFixture(t, time.Hour)
	spec := model.ForCategory(model.CategoryHealth)
	cached := []model.Article{article("https://cached", model.CategoryHealth)}
	require.NoError(t, f.store.PutHeadlines(context.Background(), spec, cached))

	got := waitFor(t, f.repo.Headlines(spec), func(a []model.Article) bool { return len(a) == 1 })
	assert.Equal(t, cached[0].ID, got[0].ID)

	f.repo.Close()
	assert.Zero(t, f.provider.calls(), "fresh snapshot needs no provider call")
}

func TestHeadlinesStaleCacheIsRefreshed(t *testing.T) {
	f := newFixture(t, time.Nanosecond)
	spec := model.ForCategory(model.CategoryBusiness)
	require.NoError(t, f.store.PutHeadlines(context.Background(), spec, []model.Article{article("https://old", model.CategoryBusiness)}))
	f.provider.headlines[model.CategoryBusiness] = []model.Article{article("https://new", model.CategoryBusiness)}

	got := waitFor(t, f.repo.Headlines(spec), func(a []model.Article) bool {
		return len(a) == 1 && a[0].URL == "https://new"
	})
	assert.Equal(t, "Story https://new", got[0].Title)
}

func TestHeadlinesSameSpecSharesValue(t *testing.T) {
	f := newFixture(t, time.Hour)
	spec := model.ForCategory(model.CategorySports)
	assert.Same(t, f.repo.Headlines(spec), f.repo.Headlines(model.ForCategory(model.CategorySports)))
}

func TestHeadlinesNoCrossCategoryLeakage(t *testing.T) {
	f := newFixture(t, time.Hour)
	ctx := context.Background()
	f.provider.headlines[model.CategoryScience] = []model.Article{article("https://sci", model.CategoryScience)}
	f.provider.headlines[model.CategorySports] = []model.Article{article("https://sport", model.CategorySports)}

	science := model.ForCategory(model.CategoryScience)
	sports := model.ForCategory(model.CategorySports)
	require.NoError(t, f.repo.Refresh(ctx, science))
	require.NoError(t, f.repo.Refresh(ctx, sports))

	sci := waitFor(t, f.repo.Headlines(science), func(a []model.Article) bool { return len(a) == 1 })
	spo := waitFor(t, f.repo.Headlines(sports), func(a []model.Article) bool { return len(a) == 1 })
	assert.Equal(t, model.CategoryScience, sci[0].Category)
	assert.Equal(t, model.CategorySports, spo[0].Category)
}

func TestHeadlinesProviderFailurePublishesEmpty(t *testing.T) {
	f := newFixture(t, time.Hour)
	f.provider.err = errors.New("offline")

	got := waitFor(t, f.repo.Headlines(model.ForCategory(model.CategoryGeneral)), func([]model.Article) bool { return true })
	assert.NotNil(t, got)
	assert.Empty(t, got)

	lastErr := waitFor(t, f.repo.Errors(), func(err error) bool { return err != nil })
	assert.Contains(t, lastErr.Error(), "offline")
}

func TestSaveRemoveLifecycle(t *testing.T) {
	f := newFixture(t, time.Hour)
	ctx := context.Background()
	a := article("https://keep", model.CategoryScience)
	a.Content = "snippet"

	flag := f.repo.IsSaved(a.ID)
	waitFor(t, flag, func(saved bool) bool { return !saved })

	require.NoError(t, f.repo.Save(ctx, a))
	require.NoError(t, f.repo.Save(ctx, a), "saving twice is a no-op")

	saved := waitFor(t, f.repo.Saved(), func(s []model.Article) bool { return len(s) == 1 })
	assert.Equal(t, a.ID, saved[0].ID)
	waitFor(t, flag, func(saved bool) bool { return saved })

	list, err := f.repo.ListSaved(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, model.StatusPending, list[0].Status)
	assert.Empty(t, list[0].Content, "headline snippets are not kept")

	require.NoError(t, f.repo.RemoveSaved(ctx, a.ID))
	require.NoError(t, f.repo.RemoveSaved(ctx, a.ID), "removing twice is a no-op")

	waitFor(t, f.repo.Saved(), func(s []model.Article) bool { return len(s) == 0 })
	waitFor(t, flag, func(saved bool) bool { return !saved })
}

func TestSavedIndependentOfHeadlines(t *testing.T) {
	f := newFixture(t, time.Hour)
	ctx := context.Background()
	spec := model.ForCategory(model.CategoryTechnology)

	old := article("https://yesterday", model.CategoryTechnology)
	require.NoError(t, f.repo.Save(ctx, old))

	f.provider.headlines[model.CategoryTechnology] = []model.Article{article("https://today", model.CategoryTechnology)}
	require.NoError(t, f.repo.Refresh(ctx, spec))

	saved := waitFor(t, f.repo.Saved(), func(s []model.Article) bool { return len(s) == 1 })
	assert.Equal(t, old.ID, saved[0].ID)

	ok, err := f.store.IsSaved(ctx, old.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSourcesFilledFromProvider(t *testing.T) {
	f := newFixture(t, time.Hour)
	f.provider.sources = []model.Source{
		{ID: "bbc-news", Name: "BBC News", Category: model.CategoryGeneral, Language: "en"},
		{ID: "ars-technica", Name: "Ars Technica", Category: model.CategoryTechnology, Language: "en"},
	}

	tech := f.repo.Sources(model.Specification{Category: model.CategoryTechnology})
	got := waitFor(t, tech, func(s []model.Source) bool { return len(s) == 1 })
	assert.Equal(t, "ars-technica", got[0].ID)

	all := waitFor(t, f.repo.Sources(model.Specification{}), func(s []model.Source) bool { return len(s) == 2 })
	assert.Len(t, all, 2)
}

func TestRefreshSourcesKeepsFirstWrite(t *testing.T) {
	f := newFixture(t, time.Hour)
	ctx := context.Background()

	f.provider.sources = []model.Source{{ID: "bbc-news", Name: "BBC News"}}
	require.NoError(t, f.repo.RefreshSources(ctx, model.Specification{}))

	f.provider.sources = []model.Source{{ID: "bbc-news", Name: "Renamed"}, {ID: "cnn", Name: "CNN"}}
	require.NoError(t, f.repo.RefreshSources(ctx, model.Specification{}))

	got := waitFor(t, f.cache.AllSources(), func(s []model.Source) bool { return len(s) == 2 })
	assert.Equal(t, "BBC News", got[0].Name)
	assert.False(t, f.cache.NeedsRefresh(ctx, time.Hour))
}

func TestArchiveHooks(t *testing.T) {
	f := newFixture(t, time.Hour)
	ctx := context.Background()

	ok := article("https://ok", model.CategoryScience)
	bad := article("https://bad", model.CategoryScience)
	require.NoError(t, f.repo.Save(ctx, ok))
	require.NoError(t, f.repo.Save(ctx, bad))

	first, err := f.repo.NextArchiveJob(ctx)
	require.NoError(t, err)
	assert.Equal(t, ok.ID, first, "jobs come out in save order")

	require.NoError(t, f.repo.CompleteArchive(ctx, ok.ID, "Readable", "full readable text"))
	require.NoError(t, f.repo.FailArchive(ctx, bad.ID, "403 forbidden"))

	got, err := f.repo.SavedArticle(ctx, ok.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusArchived, got.Status)
	assert.Equal(t, "full readable text", got.Content)
	assert.NotNil(t, got.ArchivedAt)
	assert.Equal(t, ok.Title, got.Title, "existing title is kept")

	failed, err := f.repo.SavedArticle(ctx, bad.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, failed.Status)
	assert.Equal(t, "403 forbidden", failed.ErrorMessage)

	err = f.repo.CompleteArchive(ctx, model.ArticleID("https://gone"), "", "x")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

// removingStore removes an article right after it is read, as a concurrent
// RemoveSaved from another client would.
type removingStore struct {
	*store.HybridStore
}

func (s removingStore) Get(ctx context.Context, id uuid.UUID) (*model.SavedArticle, error) {
	sa, err := s.HybridStore.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.HybridStore.Remove(ctx, id); err != nil {
		return nil, err
	}
	return sa, nil
}

func TestArchiveAfterRemoveDoesNotResave(t *testing.T) {
	f := newWrappedFixture(t, time.Hour, func(st *store.HybridStore) store.Store {
		return removingStore{st}
	})
	ctx := context.Background()

	done := article("https://done", model.CategoryScience)
	failed := article("https://failed", model.CategoryScience)
	require.NoError(t, f.repo.Save(ctx, done))
	require.NoError(t, f.repo.Save(ctx, failed))

	err := f.repo.CompleteArchive(ctx, done.ID, "Readable", "full text")
	assert.ErrorIs(t, err, store.ErrNotFound)
	err = f.repo.FailArchive(ctx, failed.ID, "403 forbidden")
	assert.ErrorIs(t, err, store.ErrNotFound)

	for _, id := range []uuid.UUID{done.ID, failed.ID} {
		saved, err := f.store.IsSaved(ctx, id)
		require.NoError(t, err)
		assert.False(t, saved, "removed article came back")
		_, err = f.store.Get(ctx, id)
		assert.ErrorIs(t, err, store.ErrNotFound)
	}

	list, err := f.repo.ListSaved(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, list)
}

// slowCheckStore holds the first IsSaved answer back until released, so a
// save can land between the read and the publish.
type slowCheckStore struct {
	*store.HybridStore
	first   atomic.Bool
	read    chan struct{}
	release chan struct{}
}

func (s *slowCheckStore) IsSaved(ctx context.Context, id uuid.UUID) (bool, error) {
	saved, err := s.HybridStore.IsSaved(ctx, id)
	if s.first.CompareAndSwap(false, true) {
		close(s.read)
		<-s.release
	}
	return saved, err
}

func TestIsSavedCheckDoesNotOverwriteNewerFlag(t *testing.T) {
	slow := &slowCheckStore{read: make(chan struct{}), release: make(chan struct{})}
	f := newWrappedFixture(t, time.Hour, func(st *store.HybridStore) store.Store {
		slow.HybridStore = st
		return slow
	})
	ctx := context.Background()
	a := article("https://racy", model.CategoryScience)

	flag := f.repo.IsSaved(a.ID)
	<-slow.read
	require.NoError(t, f.repo.Save(ctx, a))
	waitFor(t, flag, func(saved bool) bool { return saved })

	close(slow.release)
	f.repo.Close()

	saved, _ := flag.Get()
	assert.True(t, saved, "stale check must not clear the flag")
}

func TestCloseIsIdempotent(t *testing.T) {
	f := newFixture(t, time.Hour)
	f.repo.Close()
	f.repo.Close()

	v := f.repo.Headlines(model.ForCategory(model.CategoryScience))
	_, set := v.Get()
	assert.False(t, set, "no background work after Close")
	assert.Zero(t, f.cache.AllSources().Subscribers())
}
