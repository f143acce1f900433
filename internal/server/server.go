package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strings"
	"time"

	"newsdesk/internal/live"
	"newsdesk/internal/metrics"
	"newsdesk/internal/model"
	"newsdesk/internal/store"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	savedPageSize   = 50
	headlineTimeout = 10 * time.Second
)

// Backend is what the web UI reads and writes.
type Backend interface {
	Headlines(spec model.Specification) *live.Value[[]model.Article]
	ListSaved(ctx context.Context, limit int) ([]model.SavedArticle, error)
	SavedArticle(ctx context.Context, id uuid.UUID) (*model.SavedArticle, error)
	Save(ctx context.Context, article model.Article) error
	RemoveSaved(ctx context.Context, id uuid.UUID) error
}

type Server struct {
	backend Backend
	logger  *zap.Logger
	spec    func(model.Category) model.Specification
	router  *mux.Router
	server  *http.Server
	pages   map[string]*template.Template
	flash   *flashes
}

// NewServer builds the web UI. spec turns a category into a headline query;
// gatherer, when non-nil, is exposed on /metrics.
func NewServer(b Backend, logger *zap.Logger, spec func(model.Category) model.Specification, gatherer prometheus.Gatherer) *Server {
	if spec == nil {
		spec = model.ForCategory
	}
	s := &Server{
		backend: b,
		logger:  logger,
		spec:    spec,
		router:  mux.NewRouter(),
		pages:   parsePages(),
		flash:   newFlashes(),
	}
	s.routes(gatherer)
	return s
}

func parsePages() map[string]*template.Template {
	funcs := template.FuncMap{
		"paragraphs": func(s string) []string { return strings.Split(s, "\n\n") },
		"date":       func(t time.Time) string { return t.Format("Jan 02, 2006") },
	}
	pages := map[string]*template.Template{}
	for _, name := range []string{"index.html", "headlines.html", "view.html"} {
		pages[name] = template.Must(template.New(name).Funcs(funcs).
			ParseFS(templateFS, "templates/layout.html", "templates/"+name))
	}
	return pages
}

func (s *Server) routes(gatherer prometheus.Gatherer) {
	s.router.HandleFunc("/", s.handleIndex).Methods("GET")
	s.router.HandleFunc("/add", s.handleAdd).Methods("POST")
	s.router.HandleFunc("/view/{id}", s.handleView).Methods("GET")
	s.router.HandleFunc("/remove/{id}", s.handleRemove).Methods("POST")
	s.router.HandleFunc("/category/{category}", s.handleCategory).Methods("GET")
	if gatherer != nil {
		s.router.Handle("/metrics", metrics.Handler(gatherer)).Methods("GET")
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start launches the HTTP server
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	s.logger.Info("Web server listening", zap.String("addr", addr))
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop gracefully shuts down
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) render(w http.ResponseWriter, page string, data map[string]any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.pages[page].ExecuteTemplate(w, "layout", data); err != nil {
		s.logger.Error("Template error", zap.String("page", page), zap.Error(err))
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	articles, err := s.backend.ListSaved(r.Context(), savedPageSize)
	if err != nil {
		s.logger.Error("Failed to list articles", zap.Error(err))
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}

	s.render(w, "index.html", map[string]any{
		"Title":      "Saved",
		"Articles":   articles,
		"Categories": model.Categories(),
		"Flash":      s.flash.pop(r),
	})
}

func (s *Server) handleCategory(w http.ResponseWriter, r *http.Request) {
	cat, err := model.ParseCategory(mux.Vars(r)["category"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), headlineTimeout)
	defer cancel()

	articles, err := firstValue(ctx, s.backend.Headlines(s.spec(cat)))
	if err != nil {
		s.logger.Warn("Headlines not ready", zap.String("category", cat.String()), zap.Error(err))
		http.Error(w, "Headlines are still loading", http.StatusServiceUnavailable)
		return
	}

	s.render(w, "headlines.html", map[string]any{
		"Title":      cat.Title(),
		"Category":   cat,
		"Articles":   articles,
		"Categories": model.Categories(),
		"Flash":      s.flash.pop(r),
	})
}

// firstValue returns the current value of v, waiting for the first
// publication if there is none yet.
func firstValue[T any](ctx context.Context, v *live.Value[T]) (T, error) {
	if cur, ok := v.Get(); ok {
		return cur, nil
	}
	sub := v.Subscribe()
	defer sub.Cancel()

	var zero T
	select {
	case x, ok := <-sub.C():
		if !ok {
			return zero, errors.New("subscription closed")
		}
		return x, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid ID", http.StatusBadRequest)
		return
	}

	article, err := s.backend.SavedArticle(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		s.logger.Error("Failed to load article", zap.Error(err))
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}

	s.render(w, "view.html", map[string]any{
		"Title":      article.Title,
		"Article":    article,
		"Categories": model.Categories(),
	})
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.FormValue("url"))
	if raw == "" {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	if err := checkURL(raw); err != nil {
		s.flash.set(r, "Error: "+err.Error())
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	article := model.NewArticle(raw)
	article.Title = strings.TrimSpace(r.FormValue("title"))
	if article.Title == "" {
		article.Title = raw
	}
	if err := s.backend.Save(r.Context(), article); err != nil {
		s.logger.Error("Failed to queue article", zap.Error(err))
		http.Error(w, "Failed to save", http.StatusInternalServerError)
		return
	}

	s.flash.set(r, "Saved "+raw)
	http.Redirect(w, r, redirectTarget(r), http.StatusSeeOther)
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid ID", http.StatusBadRequest)
		return
	}
	if err := s.backend.RemoveSaved(r.Context(), id); err != nil {
		s.logger.Error("Failed to remove article", zap.Error(err))
		http.Error(w, "Failed to remove", http.StatusInternalServerError)
		return
	}
	s.flash.set(r, "Removed from saved")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// redirectTarget sends the user back to the headline page they saved from.
func redirectTarget(r *http.Request) string {
	back := r.FormValue("back")
	if strings.HasPrefix(back, "/category/") {
		return back
	}
	return "/"
}

func checkURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("URL has no host")
	}
	return nil
}
