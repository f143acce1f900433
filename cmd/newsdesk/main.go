package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"newsdesk/internal/browser"
	"newsdesk/internal/cache"
	"newsdesk/internal/config"
	"newsdesk/internal/feed"
	"newsdesk/internal/logging"
	"newsdesk/internal/metrics"
	"newsdesk/internal/model"
	"newsdesk/internal/newsapi"
	"newsdesk/internal/repository"
	"newsdesk/internal/sanitize"
	web "newsdesk/internal/server"
	"newsdesk/internal/store"
	"newsdesk/internal/tui"
	"newsdesk/internal/viewmodel"
	"newsdesk/internal/worker"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var version = "dev"

var (
	logger     *zap.Logger
	cfg        *config.Config
	configPath string
	redisAddr  string
	badgerPath string
	debug      bool
)

const (
	httpTimeout = 20 * time.Second
	gcInterval  = 10 * time.Minute
)

var rootCmd = &cobra.Command{
	Use:           "newsdesk",
	Short:         "newsdesk - headlines in the terminal, with a read-it-later archive",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if redisAddr == "" {
			redisAddr = cfg.RedisAddr
		}

		// The TUI owns the terminal, so it logs to a file.
		logPath := ""
		if cmd.Name() == "tui" || cmd == cmd.Root() {
			logPath = config.LogPath()
		}
		logger, err = logging.New(logPath, debug)
		return err
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTUI()
	},
}

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Browse headlines and saved articles (default)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTUI()
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the archive worker, the headline refresher and the web UI",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		rec := metrics.NewCollector(reg)

		b, err := openBackend(badgerPath, rec)
		if err != nil {
			return err
		}
		defer b.Close()

		specs := make([]model.Specification, len(cfg.Categories))
		for i, c := range cfg.Categories {
			specs[i] = cfg.Spec(c)
		}

		// Stop the loops before b.Close so no job is cut off mid-write.
		bgCtx, stopBackground := context.WithCancel(ctx)
		w := worker.NewWorker(b.repo, logger, rec)
		wait := startBackground(bgCtx,
			w.Start,
			func(ctx context.Context) { b.store.RunGC(ctx, gcInterval, logger) },
			func(ctx context.Context) { b.repo.AutoRefresh(ctx, specs, cfg.RefreshDuration()) },
		)
		defer wait()
		defer stopBackground()

		srv := web.NewServer(b.repo, logger, cfg.Spec, reg)
		errCh := make(chan error, 1)
		go func() { errCh <- srv.Start(cfg.ListenAddr) }()

		logger.Info("Server running.", zap.String("addr", cfg.ListenAddr))

		select {
		case <-ctx.Done():
		case err := <-errCh:
			if err != nil {
				return err
			}
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Stop(shutdownCtx); err != nil {
			logger.Warn("Web server shutdown", zap.Error(err))
		}
		logger.Info("Goodbye!")
		return nil
	},
}

var refreshCmd = &cobra.Command{
	Use:   "refresh [category...]",
	Short: "Fetch fresh headlines and sources into the local cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		cats := cfg.Categories
		if len(args) > 0 {
			cats = nil
			for _, a := range args {
				c, err := model.ParseCategory(a)
				if err != nil {
					return err
				}
				cats = append(cats, c)
			}
		}

		b, err := openBackend("", nil)
		if err != nil {
			return err
		}
		defer b.Close()

		ctx := cmd.Context()
		var errs []error
		for _, c := range cats {
			if err := b.repo.Refresh(ctx, cfg.Spec(c)); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", c, err))
				continue
			}
			fmt.Printf("refreshed %s\n", c.Title())
		}
		if err := b.repo.RefreshSources(ctx, cfg.SourceSpec()); err != nil {
			errs = append(errs, fmt.Errorf("sources: %w", err))
		} else {
			fmt.Println("refreshed sources")
		}
		return errors.Join(errs...)
	},
}

var saveCmd = &cobra.Command{
	Use:   "save [url]",
	Short: "Save a URL for later and queue it for archiving",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		url := args[0]

		// CLIENT MODE: Redis only, so a running server keeps the Badger lock.
		b, err := openBackend("", nil)
		if err != nil {
			return err
		}
		defer b.Close()

		article := model.NewArticle(url)
		article.Title = url
		if err := b.repo.Save(cmd.Context(), article); err != nil {
			return fmt.Errorf("saving article: %w", err)
		}

		logger.Info("Article queued",
			zap.String("id", article.ID.String()),
			zap.String("url", url))
		return nil
	},
}

var savedCmd = &cobra.Command{
	Use:   "saved",
	Short: "List saved articles and their archive status",
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := openBackend("", nil)
		if err != nil {
			return err
		}
		defer b.Close()

		list, err := b.repo.ListSaved(cmd.Context(), 0)
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Println("No saved articles.")
			return nil
		}

		t := table.New().
			Border(lipgloss.NormalBorder()).
			Headers("SAVED", "STATUS", "TITLE", "URL")
		for _, sa := range list {
			t.Row(sa.SavedAt.Format("2006-01-02"), string(sa.Status), sanitize.Truncate(sa.Title, 50), sa.URL)
		}
		fmt.Println(t)
		return nil
	},
}

var sourcesCmd = &cobra.Command{
	Use:   "sources [category]",
	Short: "List cached news sources",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		spec := cfg.SourceSpec()
		if len(args) == 1 {
			c, err := model.ParseCategory(args[0])
			if err != nil {
				return err
			}
			spec.Category = c
		}

		b, err := openBackend("", nil)
		if err != nil {
			return err
		}
		defer b.Close()

		ctx := cmd.Context()
		if n, err := b.cache.Count(ctx); err == nil && n == 0 {
			if err := b.repo.RefreshSources(ctx, cfg.SourceSpec()); err != nil {
				return err
			}
		}
		sources, err := b.cache.Sources(ctx, spec)
		if err != nil {
			return err
		}

		t := table.New().
			Border(lipgloss.NormalBorder()).
			Headers("ID", "NAME", "CATEGORY", "COUNTRY", "URL")
		for _, s := range sources {
			t.Row(s.ID, s.Name, s.Category.String(), strings.ToUpper(s.Country), s.URL)
		}
		fmt.Println(t)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("newsdesk", version)
	},
}

// backend bundles everything a command needs to reach the repository.
type backend struct {
	store *store.HybridStore
	cache *cache.Cache
	repo  *repository.Repository
}

func (b *backend) Close() {
	b.repo.Close()
	if err := b.cache.Close(); err != nil {
		logger.Warn("Closing source cache", zap.Error(err))
	}
	b.store.Close()
}

// openBackend wires the provider, store and cache into a repository.
// archivePath "" opens the store without Badger.
func openBackend(archivePath string, rec metrics.Recorder) (*backend, error) {
	st, err := store.NewHybridStore(redisAddr, archivePath)
	if err != nil {
		return nil, err
	}
	c, err := cache.Open(config.CachePath())
	if err != nil {
		st.Close()
		return nil, err
	}
	provider, err := newProvider()
	if err != nil {
		c.Close()
		st.Close()
		return nil, err
	}

	repo := repository.New(repository.Options{
		Provider:    provider,
		Store:       st,
		Cache:       c,
		Logger:      logger,
		Metrics:     rec,
		HeadlineTTL: cfg.HeadlineTTLDuration(),
	})
	return &backend{store: st, cache: c, repo: repo}, nil
}

func newProvider() (repository.Provider, error) {
	httpClient := &http.Client{Timeout: httpTimeout}
	switch cfg.Provider {
	case config.ProviderRSS:
		return feed.NewProvider(httpClient, cfg.EnabledFeeds(), logger), nil
	case config.ProviderNewsAPI:
		key := cfg.APIKey()
		if key == "" {
			logger.Warn("No NewsAPI key: set newsapi.api_key or NEWSDESK_API_KEY, or use provider: rss")
		}
		return newsapi.NewClient(httpClient, logger, cfg.NewsAPI.BaseURL, key, cfg.NewsAPI.RequestsPerSecond), nil
	}
	return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
}

func runTUI() error {
	// The archive is shared with `serve`; without it the detail screen only
	// lacks the archived text.
	b, err := openBackend(badgerPath, nil)
	if err != nil {
		logger.Warn("Archive unavailable, opening without it", zap.Error(err))
		b, err = openBackend("", nil)
	}
	if err != nil {
		return err
	}
	defer b.Close()

	headlines := viewmodel.NewHeadlines(b.repo)
	return tui.Run(tui.Options{
		Config:      cfg,
		Headlines:   headlines,
		Sources:     viewmodel.NewSources(b.repo),
		Backend:     b.repo,
		Logger:      logger,
		SessionPath: config.SessionPath(),
		OpenURL:     browser.Open,
	})
}

// startBackground runs each loop in its own goroutine. The returned wait
// blocks until all of them have returned; cancel ctx first.
func startBackground(ctx context.Context, loops ...func(context.Context)) (wait func()) {
	var wg sync.WaitGroup
	for _, loop := range loops {
		wg.Add(1)
		go func() {
			defer wg.Done()
			loop(ctx)
		}()
	}
	return wg.Wait
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigChan:
			logger.Info("Shutting down...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()
	return ctx, cancel
}

func main() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: XDG config dir)")
	rootCmd.PersistentFlags().StringVar(&redisAddr, "redis", "", "Address of Redis server (default: redis_addr from config)")
	rootCmd.PersistentFlags().StringVar(&badgerPath, "badger", config.ArchivePath(), "Path to BadgerDB archive directory")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Verbose development logging")

	rootCmd.AddCommand(tuiCmd, serveCmd, refreshCmd, saveCmd, savedCmd, sourcesCmd, versionCmd)

	err := rootCmd.Execute()
	if logger != nil {
		_ = logger.Sync()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
