package config

import (
	"embed"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"newsdesk/internal/model"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

//go:embed default_config.yaml
var defaultConfigFS embed.FS

const (
	ProviderNewsAPI = "newsapi"
	ProviderRSS     = "rss"

	apiKeyEnv = "NEWSDESK_API_KEY"
)

type Feed struct {
	Name     string         `yaml:"name"`
	URL      string         `yaml:"url"`
	Category model.Category `yaml:"category"`
	Enabled  bool           `yaml:"enabled"`
}

type NewsAPI struct {
	BaseURL           string  `yaml:"base_url"`
	APIKey            string  `yaml:"api_key"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

type Config struct {
	Provider        string           `yaml:"provider"`
	Categories      []model.Category `yaml:"categories"`
	Country         string           `yaml:"country"`
	Language        string           `yaml:"language"`
	RefreshInterval string           `yaml:"refresh_interval"`
	HeadlineTTL     string           `yaml:"headline_ttl"`
	NewsAPI         NewsAPI          `yaml:"newsapi"`
	RedisAddr       string           `yaml:"redis_addr"`
	ListenAddr      string           `yaml:"listen_addr"`
	Feeds           []Feed           `yaml:"feeds"`
}

// APIKey returns the configured key, falling back to NEWSDESK_API_KEY.
func (c *Config) APIKey() string {
	if c.NewsAPI.APIKey != "" {
		return c.NewsAPI.APIKey
	}
	return os.Getenv(apiKeyEnv)
}

func (c *Config) RefreshDuration() time.Duration {
	d, err := time.ParseDuration(c.RefreshInterval)
	if err != nil || d <= 0 {
		return 30 * time.Minute
	}
	return d
}

func (c *Config) HeadlineTTLDuration() time.Duration {
	d, err := time.ParseDuration(c.HeadlineTTL)
	if err != nil || d <= 0 {
		return 15 * time.Minute
	}
	return d
}

// Spec builds the headline query for one category using the configured
// country and language.
func (c *Config) Spec(cat model.Category) model.Specification {
	s := model.Specification{Category: cat, Country: c.Country}
	if c.Provider == ProviderRSS {
		s.Country = ""
	}
	return s
}

// SourceSpec is the query used for the sources screen.
func (c *Config) SourceSpec() model.Specification {
	return model.Specification{Language: c.Language, Country: c.Country}
}

func (c *Config) EnabledFeeds() []Feed {
	var out []Feed
	for _, f := range c.Feeds {
		if f.Enabled {
			out = append(out, f)
		}
	}
	return out
}

func DefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, "newsdesk", "config.yaml")
}

func CachePath() string {
	return filepath.Join(xdg.CacheHome, "newsdesk", "sources.db")
}

func ArchivePath() string {
	return filepath.Join(xdg.DataHome, "newsdesk", "archive")
}

func SessionPath() string {
	return filepath.Join(xdg.StateHome, "newsdesk", "session.json")
}

func LogPath() string {
	return filepath.Join(xdg.StateHome, "newsdesk", "newsdesk.log")
}

func loadDefaults() (*Config, error) {
	data, err := defaultConfigFS.ReadFile("default_config.yaml")
	if err != nil {
		return nil, fmt.Errorf("reading embedded config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded config: %w", err)
	}
	return &cfg, nil
}

// Load reads the config at path (the XDG default when empty). Keys missing
// from the file keep their embedded default. On first run the defaults are
// written out so the user has something to edit.
func Load(path string) (*Config, error) {
	cfg, err := loadDefaults()
	if err != nil {
		return nil, err
	}

	if path == "" {
		path = DefaultConfigPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Non-fatal: the embedded defaults still apply
			_ = writeDefaults(path)
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func writeDefaults(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, _ := defaultConfigFS.ReadFile("default_config.yaml")
	return os.WriteFile(path, data, 0o644)
}

func validate(cfg *Config) error {
	switch cfg.Provider {
	case ProviderNewsAPI:
		if err := checkURL("newsapi.base_url", cfg.NewsAPI.BaseURL); err != nil {
			return err
		}
		if cfg.NewsAPI.RequestsPerSecond < 0 {
			return fmt.Errorf("newsapi.requests_per_second must not be negative")
		}
	case ProviderRSS:
		if len(cfg.EnabledFeeds()) == 0 {
			return fmt.Errorf("provider %q needs at least one enabled feed", ProviderRSS)
		}
	default:
		return fmt.Errorf("unknown provider %q (valid: %s, %s)", cfg.Provider, ProviderNewsAPI, ProviderRSS)
	}

	if len(cfg.Categories) == 0 {
		return fmt.Errorf("at least one category is required")
	}
	for i, c := range cfg.Categories {
		if !c.Valid() {
			return fmt.Errorf("categories[%d]: %w", i, model.ErrUnknownCategory)
		}
	}

	for i, f := range cfg.Feeds {
		if f.Name == "" {
			return fmt.Errorf("feed %d: name is required", i)
		}
		if err := checkURL(fmt.Sprintf("feed %q", f.Name), f.URL); err != nil {
			return err
		}
		if !f.Category.Valid() {
			return fmt.Errorf("feed %q: %w", f.Name, model.ErrUnknownCategory)
		}
	}

	if cfg.RedisAddr == "" {
		return fmt.Errorf("redis_addr is required")
	}
	return nil
}

func checkURL(field, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s: url is required", field)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: invalid url: %w", field, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s: url scheme must be http or https, got %q", field, u.Scheme)
	}
	return nil
}
