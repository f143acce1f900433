package viewmodel

import (
	"context"
	"testing"

	"newsdesk/internal/live"
	"newsdesk/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	headlines map[string]*live.Value[[]model.Article]
	saved     *live.Value[[]model.Article]
	flags     map[uuid.UUID]*live.Value[bool]
	sources   *live.Value[[]model.Source]

	specs   []model.Specification
	removed []uuid.UUID
	added   []model.Article
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		headlines: map[string]*live.Value[[]model.Article]{},
		saved:     live.New[[]model.Article](),
		flags:     map[uuid.UUID]*live.Value[bool]{},
		sources:   live.New[[]model.Source](),
	}
}

func (r *fakeRepo) Headlines(spec model.Specification) *live.Value[[]model.Article] {
	r.specs = append(r.specs, spec)
	v, ok := r.headlines[spec.Key()]
	if !ok {
		v = live.New[[]model.Article]()
		r.headlines[spec.Key()] = v
	}
	return v
}

func (r *fakeRepo) Saved() *live.Value[[]model.Article] { return r.saved }

func (r *fakeRepo) IsSaved(id uuid.UUID) *live.Value[bool] {
	v, ok := r.flags[id]
	if !ok {
		v = live.Of(false)
		r.flags[id] = v
	}
	return v
}

func (r *fakeRepo) Save(_ context.Context, a model.Article) error {
	r.added = append(r.added, a)
	return nil
}

func (r *fakeRepo) RemoveSaved(_ context.Context, id uuid.UUID) error {
	r.removed = append(r.removed, id)
	return nil
}

func (r *fakeRepo) Sources(spec model.Specification) *live.Value[[]model.Source] {
	r.specs = append(r.specs, spec)
	return r.sources
}

func TestGetNewsHeadlinesDelegates(t *testing.T) {
	repo := newFakeRepo()
	vm := NewHeadlines(repo)
	spec := model.ForCategory(model.CategoryScience)

	got := vm.GetNewsHeadlines(spec)
	assert.Same(t, repo.headlines[spec.Key()], got)
	assert.Equal(t, []model.Specification{spec}, repo.specs)

	a := model.NewArticle("https://science")
	repo.headlines[spec.Key()].Set([]model.Article{a})
	v, ok := got.Get()
	require.True(t, ok)
	assert.Equal(t, []model.Article{a}, v, "emissions pass through unmodified")
}

func TestGetAllSavedAndIsSaved(t *testing.T) {
	repo := newFakeRepo()
	vm := NewHeadlines(repo)

	assert.Same(t, repo.saved, vm.GetAllSaved())

	id := model.ArticleID("https://a")
	flag := vm.IsSaved(id)
	assert.Same(t, repo.flags[id], flag)
	v, _ := flag.Get()
	assert.False(t, v)
}

func TestToggleSaveOnlyRemoves(t *testing.T) {
	repo := newFakeRepo()
	vm := NewHeadlines(repo)
	id := model.ArticleID("https://a")

	require.NoError(t, vm.ToggleSave(context.Background(), id))
	require.NoError(t, vm.ToggleSave(context.Background(), id))

	assert.Equal(t, []uuid.UUID{id, id}, repo.removed)
	assert.Empty(t, repo.added, "toggle never adds to the saved set")
}

func TestSave(t *testing.T) {
	repo := newFakeRepo()
	vm := NewHeadlines(repo)
	a := model.NewArticle("https://a")

	require.NoError(t, vm.Save(context.Background(), a))
	assert.Equal(t, []model.Article{a}, repo.added)
}

func TestGetSource(t *testing.T) {
	repo := newFakeRepo()
	vm := NewSources(repo)
	spec := model.Specification{Language: "en"}

	assert.Same(t, repo.sources, vm.GetSource(spec))
	assert.Equal(t, []model.Specification{spec}, repo.specs)
}
