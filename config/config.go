package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"headlines/models"

	"github.com/BurntSushi/toml"
)

const (
	DefaultLimit        = 20
	DefaultLogPath      = "feeds/articles.ndjson"
	DefaultArchivePath  = "archive.db"
	DefaultFetchTimeout = 15 * time.Second
	DefaultUserAgent    = "headlines/1.0 (+https://github.com/headlines)"
)

// Duration wraps time.Duration so it can be written as "15s" in TOML
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config represents the top-level configuration
type Config struct {
	// Maximum number of entries returned by an ingestion run
	Limit int `toml:"limit"`

	// Where each run writes its line-delimited entry log
	LogPath string `toml:"log_path"`

	// SQLite file used by the archive, migrate and tidy commands
	ArchivePath string `toml:"archive_path"`

	FetchTimeout Duration `toml:"fetch_timeout"`
	UserAgent    string   `toml:"user_agent"`

	// What to do with entries without a publication date: "error" or "earliest"
	MissingPublished string `toml:"missing_published"`

	Home  models.HomeMessage `toml:"home"`
	Feeds []models.Source    `toml:"feeds"`
}

// DefaultFeeds are used when the configuration file lists none
func DefaultFeeds() []models.Source {
	return []models.Source{
		{Name: "BBC News", URL: "http://feeds.bbci.co.uk/news/rss.xml?edition=uk"},
		{Name: "The Guardian", URL: "https://www.theguardian.com/world/rss"},
	}
}

func DefaultHome() models.HomeMessage {
	return models.HomeMessage{
		Title: "Hello world",
		Text:  "This is just a placeholder for something awesome.",
	}
}

func Default() *Config {
	return &Config{
		Limit:            DefaultLimit,
		LogPath:          DefaultLogPath,
		ArchivePath:      DefaultArchivePath,
		FetchTimeout:     Duration{DefaultFetchTimeout},
		UserAgent:        DefaultUserAgent,
		MissingPublished: "error",
		Home:             DefaultHome(),
		Feeds:            DefaultFeeds(),
	}
}

// LoadConfig reads a TOML file on top of the defaults. An empty path
// returns the defaults unchanged.
func LoadConfig(path string) (*Config, error) {
	config := Default()
	if path == "" {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	config.Feeds = nil
	config.Home = models.HomeMessage{}
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if len(config.Feeds) == 0 {
		config.Feeds = DefaultFeeds()
	}
	if config.Home == (models.HomeMessage{}) {
		config.Home = DefaultHome()
	}

	return config, nil
}

var (
	ErrNoFeeds = errors.New("no feeds configured")
)

// Validate checks the values a run depends on
func (c *Config) Validate() error {
	if len(c.Feeds) == 0 {
		return ErrNoFeeds
	}
	for i, feed := range c.Feeds {
		u, err := url.Parse(feed.URL)
		if err != nil {
			return fmt.Errorf("feed %d: invalid url %q: %w", i, feed.URL, err)
		}
		if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("feed %d: url %q must be an absolute http(s) address", i, feed.URL)
		}
	}
	if c.Limit < 0 {
		return fmt.Errorf("limit must not be negative, got %d", c.Limit)
	}
	if c.FetchTimeout.Duration <= 0 {
		return fmt.Errorf("fetch_timeout must be positive, got %s", c.FetchTimeout.Duration)
	}
	if c.LogPath == "" {
		return errors.New("log_path must be set")
	}
	switch c.MissingPublished {
	case "error", "earliest":
	default:
		return fmt.Errorf("missing_published must be \"error\" or \"earliest\", got %q", c.MissingPublished)
	}
	return nil
}
