package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"newsdesk/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := loadDefaults()
	require.NoError(t, err)
	assert.Equal(t, ProviderNewsAPI, cfg.Provider)
	assert.NotEmpty(t, cfg.Categories)
	assert.NotEmpty(t, cfg.Feeds)
	assert.NoError(t, validate(cfg))
}

func TestLoadWritesDefaultsOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "newsdesk", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, model.CategoryGeneral, cfg.Categories[0])

	_, err = os.Stat(path)
	assert.NoError(t, err, "defaults should be written to the config path")
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
provider: rss
categories: [science, sports]
headline_ttl: 5m
feeds:
  - name: Example
    url: https://example.com/feed.xml
    category: science
    enabled: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ProviderRSS, cfg.Provider)
	assert.Equal(t, []model.Category{model.CategoryScience, model.CategorySports}, cfg.Categories)
	assert.Equal(t, 5*time.Minute, cfg.HeadlineTTLDuration())
	require.Len(t, cfg.Feeds, 1)
	assert.Equal(t, model.CategoryScience, cfg.Feeds[0].Category)
	// untouched keys keep their defaults
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
}

func TestLoadRejectsUnknownCategory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("categories: [weather]\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown category")
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := loadDefaults()
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"unknown provider", func(c *Config) { c.Provider = "carrier-pigeon" }, "unknown provider"},
		{"bad api url", func(c *Config) { c.NewsAPI.BaseURL = "ftp://x" }, "scheme"},
		{"no categories", func(c *Config) { c.Categories = nil }, "at least one category"},
		{"rss without feeds", func(c *Config) { c.Provider = ProviderRSS; c.Feeds = nil }, "enabled feed"},
		{"feed without name", func(c *Config) { c.Feeds[0].Name = "" }, "name is required"},
		{"missing redis", func(c *Config) { c.RedisAddr = "" }, "redis_addr"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := validate(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestDurationsFallBack(t *testing.T) {
	cfg := &Config{RefreshInterval: "nope", HeadlineTTL: "-1m"}
	assert.Equal(t, 30*time.Minute, cfg.RefreshDuration())
	assert.Equal(t, 15*time.Minute, cfg.HeadlineTTLDuration())
}

func TestAPIKeyFromEnv(t *testing.T) {
	t.Setenv(apiKeyEnv, "from-env")
	cfg := &Config{}
	assert.Equal(t, "from-env", cfg.APIKey())
	cfg.NewsAPI.APIKey = "from-file"
	assert.Equal(t, "from-file", cfg.APIKey())
}

func TestSpecDropsCountryForRSS(t *testing.T) {
	cfg := &Config{Provider: ProviderRSS, Country: "us"}
	assert.Equal(t, model.Specification{Category: model.CategoryHealth}, cfg.Spec(model.CategoryHealth))
	cfg.Provider = ProviderNewsAPI
	assert.Equal(t, "us", cfg.Spec(model.CategoryHealth).Country)
}
