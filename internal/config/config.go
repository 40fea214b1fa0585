// Package config loads the service configuration from a YAML file and the
// environment.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultFetchTimeout bounds a single feed download.
const DefaultFetchTimeout = 10 * time.Second

// FeedURLs maps an apartment id to the ICS export URL of its upstream
// calendar.
type FeedURLs map[int]string

// URL returns the feed URL configured for an apartment.
func (f FeedURLs) URL(apartmentID int) (string, bool) {
	u, ok := f[apartmentID]
	if !ok || strings.TrimSpace(u) == "" {
		return "", false
	}
	return u, true
}

// ApartmentIDs returns the configured apartment ids in ascending order.
func (f FeedURLs) ApartmentIDs() []int {
	ids := make([]int, 0, len(f))
	for id := range f {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// SyncConfig controls feed synchronization.
type SyncConfig struct {
	// FetchTimeout bounds one HTTP fetch of a feed.
	FetchTimeout time.Duration `yaml:"fetch_timeout" json:"fetch_timeout"`

	// Schedule is a robfig/cron spec ("@every 15m", "0 */30 * * * *").
	// Empty disables periodic sync; callers then drive sync over HTTP.
	Schedule string `yaml:"schedule" json:"schedule"`

	// RefreshOnPublish fires a detached sync whenever an availability feed
	// is served.
	RefreshOnPublish bool `yaml:"refresh_on_publish" json:"refresh_on_publish"`
}

// CORSConfig lists the browser origins allowed to call the API.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen" json:"listen"`

	// DataDir holds the SQLite database file.
	DataDir string `yaml:"data_dir" json:"data_dir"`

	LogLevel string `yaml:"log_level" json:"log_level"`

	// Feeds is the apartment id to ICS URL mapping (AIRBNB_ICS_URLS).
	Feeds FeedURLs `yaml:"ics_urls" json:"ics_urls"`

	Sync SyncConfig `yaml:"sync" json:"sync"`
	CORS CORSConfig `yaml:"cors" json:"cors"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:   ":8099",
		DataDir:  "/data",
		LogLevel: "info",
		Feeds:    FeedURLs{},
		Sync: SyncConfig{
			FetchTimeout: DefaultFetchTimeout,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"*"},
		},
	}
}

// Load reads the YAML file at path (a missing file is not an error), applies
// environment overrides and normalizes the result.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			// defaults + environment only
		case err != nil:
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides file values with environment variables.
func (c *Config) applyEnv() error {
	c.Listen = getEnv("LISTEN_ADDR", c.Listen)
	c.DataDir = getEnv("DATA_DIR", c.DataDir)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.Sync.Schedule = getEnv("SYNC_SCHEDULE", c.Sync.Schedule)

	if raw := os.Getenv("AIRBNB_ICS_URLS"); raw != "" {
		feeds, err := ParseFeedURLs(raw)
		if err != nil {
			return fmt.Errorf("parsing AIRBNB_ICS_URLS: %w", err)
		}
		c.Feeds = feeds
	}

	if raw := os.Getenv("FETCH_TIMEOUT"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("parsing FETCH_TIMEOUT: %w", err)
		}
		c.Sync.FetchTimeout = d
	}

	if raw := os.Getenv("REFRESH_ON_PUBLISH"); raw != "" {
		c.Sync.RefreshOnPublish = raw == "1" || strings.EqualFold(raw, "true")
	}

	if raw := os.Getenv("CORS_ALLOWED_ORIGINS"); raw != "" {
		var origins []string
		for _, o := range strings.Split(raw, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		c.CORS.AllowedOrigins = origins
	}

	return nil
}

// ParseFeedURLs decodes a JSON object such as {"1": "https://host/a.ics"}.
func ParseFeedURLs(raw string) (FeedURLs, error) {
	feeds := FeedURLs{}
	if err := json.Unmarshal([]byte(raw), &feeds); err != nil {
		return nil, err
	}
	return feeds, nil
}

// Normalize fills in missing values with defaults.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.DataDir == "" {
		c.DataDir = def.DataDir
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.Feeds == nil {
		c.Feeds = FeedURLs{}
	}
	if c.Sync.FetchTimeout <= 0 {
		c.Sync.FetchTimeout = DefaultFetchTimeout
	}
	c.Sync.Schedule = strings.TrimSpace(c.Sync.Schedule)
	if len(c.CORS.AllowedOrigins) == 0 {
		c.CORS.AllowedOrigins = def.CORS.AllowedOrigins
	}
}

// Validate rejects feed entries that can never be fetched. Blank URLs are
// allowed and behave as unconfigured.
func (c *Config) Validate() error {
	for id, raw := range c.Feeds {
		if id <= 0 {
			return fmt.Errorf("ics_urls: apartment id must be positive, got %d", id)
		}
		if strings.TrimSpace(raw) == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("ics_urls: apartment %d: invalid feed URL", id)
		}
	}
	return nil
}

// getEnv returns an environment variable value or a default if not set.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
