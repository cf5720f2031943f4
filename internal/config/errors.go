package config

import "errors"

var (
	// ErrNoSites is returned when the site list is empty
	ErrNoSites = errors.New("no sites configured")
	// ErrInvalidSiteURL is returned when a configured site URL has no http(s) scheme
	ErrInvalidSiteURL = errors.New("site url must start with http:// or https://")
	// ErrNoProfiles is returned when no connection profiles are configured
	ErrNoProfiles = errors.New("no connection profiles configured")
	// ErrInvalidConcurrency is returned when concurrency is negative
	ErrInvalidConcurrency = errors.New("concurrency must not be negative")
	// ErrInvalidTimeout is returned when request timeout is not greater than 0
	ErrInvalidTimeout = errors.New("request_timeout must be greater than 0")
	// ErrInvalidThreshold is returned when the frequency threshold is outside (0, 1]
	ErrInvalidThreshold = errors.New("frequency_threshold must be in (0, 1]")
	// ErrEmptyDatabasePath is returned when database path is empty
	ErrEmptyDatabasePath = errors.New("database_path cannot be empty")
)
