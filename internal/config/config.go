// Package config provides configuration management for the search engine.
// It defines the site list, connection profiles and tuning parameters for
// crawling, lemmatization and search.
package config

import (
	"strings"
	"time"
)

// SiteConfig identifies one site the crawler is allowed to index.
type SiteConfig struct {
	URL  string `mapstructure:"url" yaml:"url"`   // Root URL, e.g. https://example.com
	Name string `mapstructure:"name" yaml:"name"` // Display name shown in search results
}

// Profile is one {User-Agent, Referrer} pair the crawler rotates through.
type Profile struct {
	UserAgent string `mapstructure:"user_agent" yaml:"user_agent"`
	Referrer  string `mapstructure:"referrer" yaml:"referrer"`
}

// Config holds the full engine configuration.
type Config struct {
	// Sites the indexer is allowed to touch, in configured order.
	Sites []SiteConfig `mapstructure:"sites" yaml:"sites"`

	// Connection profiles rotated across fetches.
	Profiles       []Profile     `mapstructure:"profiles" yaml:"profiles"`
	ProfileRefresh time.Duration `mapstructure:"profile_refresh" yaml:"profile_refresh"` // Interval for the current-profile rotation

	// Crawling parameters
	Concurrency    int           `mapstructure:"concurrency" yaml:"concurrency"`         // Worker pool size, 0 = NumCPU
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"` // Per-fetch timeout
	RequestDelay   time.Duration `mapstructure:"request_delay" yaml:"request_delay"`     // Minimum delay between requests to one host
	StopGrace      time.Duration `mapstructure:"stop_grace" yaml:"stop_grace"`           // How long Stop waits for the pool to drain

	// Lemmatization
	Language string `mapstructure:"language" yaml:"language"` // Target language for morphological analysis

	// Search tuning
	FrequencyThreshold float64       `mapstructure:"frequency_threshold" yaml:"frequency_threshold"` // Document-frequency ratio above which a lemma is discarded
	ShortQueryLemmas   int           `mapstructure:"short_query_lemmas" yaml:"short_query_lemmas"`   // Skip the frequency filter for queries with fewer distinct lemmas
	SnippetRadius      int           `mapstructure:"snippet_radius" yaml:"snippet_radius"`           // Context window around a snippet match, in runes
	CacheTTL           time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`                     // Search result cache entry lifetime

	// Database configuration
	DatabasePath string `mapstructure:"database_path" yaml:"database_path"` // Path to SQLite database file
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Profiles: []Profile{
			{UserAgent: "SiteSearchBot/1.0", Referrer: "https://www.google.com"},
		},
		ProfileRefresh:     30 * time.Second,
		Concurrency:        0, // NumCPU
		RequestTimeout:     5 * time.Second,
		RequestDelay:       100 * time.Millisecond,
		StopGrace:          15 * time.Second,
		Language:           "russian",
		FrequencyThreshold: 0.8,
		ShortQueryLemmas:   4,
		SnippetRadius:      200,
		CacheTTL:           30 * time.Minute,
		DatabasePath:       "./sitesearch.db",
	}
}

// Validate checks if the configuration is valid. It also canonicalizes
// site URLs to carry no trailing slash, so storage, crawling and the
// search site filter all agree on the root form.
func (c *Config) Validate() error {
	if len(c.Sites) == 0 {
		return ErrNoSites
	}
	for i, site := range c.Sites {
		if !strings.HasPrefix(site.URL, "http://") && !strings.HasPrefix(site.URL, "https://") {
			return ErrInvalidSiteURL
		}
		c.Sites[i].URL = strings.TrimSuffix(site.URL, "/")
	}

	if len(c.Profiles) == 0 {
		return ErrNoProfiles
	}

	if c.Concurrency < 0 {
		return ErrInvalidConcurrency
	}

	if c.RequestTimeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.FrequencyThreshold <= 0 || c.FrequencyThreshold > 1 {
		return ErrInvalidThreshold
	}

	if c.DatabasePath == "" {
		return ErrEmptyDatabasePath
	}

	return nil
}

// SiteFor returns the configured site whose URL is a prefix of the given
// page URL, or false when the page is outside every configured site.
func (c *Config) SiteFor(pageURL string) (SiteConfig, bool) {
	for _, site := range c.Sites {
		if strings.HasPrefix(pageURL, site.URL) {
			return site, true
		}
	}
	return SiteConfig{}, false
}
