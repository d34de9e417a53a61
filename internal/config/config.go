// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() with defaults; Load layers file and env on top.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"runtime"
	"time"
)

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// DatabaseDSN is the postgres connection string for the snapshot
	// archive. Empty disables durable storage; the service degrades to
	// memory-only caching.
	DatabaseDSN string `koanf:"database_dsn"`

	// GeminiAPIKey enables AI relevance scoring. Empty falls back to
	// keyword matching.
	GeminiAPIKey string `koanf:"gemini_api_key"`

	// HighlightCadence inserts one highlight after every N ranked items.
	HighlightCadence int `koanf:"highlight_cadence"`

	// QueueCapacity bounds the in-memory archive queue.
	QueueCapacity int `koanf:"queue_capacity"`

	// WorkerCount sets the number of archive workers.
	WorkerCount int `koanf:"worker_count"`

	// FetchTimeoutMS bounds one physical source fetch.
	FetchTimeoutMS int `koanf:"fetch_timeout_ms"`

	// StaleWindowHours bounds how old archived items may be when a live
	// fetch fails.
	StaleWindowHours int `koanf:"stale_window_hours"`

	// EnrichConcurrency bounds parallel enrichment calls.
	EnrichConcurrency int `koanf:"enrich_concurrency"`

	// Per-source endpoint overrides, mainly for integration testing.
	HackerNewsURL string `koanf:"hackernews_url"`
	LobstersURL   string `koanf:"lobsters_url"`
	DevtoURL      string `koanf:"devto_url"`
	GoBlogURL     string `koanf:"goblog_url"`

	// Ranking parameters.
	Gravity              float64 `koanf:"gravity"`
	LikeWeight           float64 `koanf:"like_weight"`
	CommentWeight        float64 `koanf:"comment_weight"`
	AgeOffset            float64 `koanf:"age_offset"`
	BoostWeight          float64 `koanf:"boost_weight"`
	ScaleFactor          float64 `koanf:"scale_factor"`
	LowEngagementPenalty float64 `koanf:"low_engagement_penalty"`

	// Per-source engagement weight overrides keyed by source name.
	SourceLikeWeights    map[string]float64 `koanf:"source_like_weights"`
	SourceCommentWeights map[string]float64 `koanf:"source_comment_weights"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:             "info",
		Addr:                 ":8080",
		HighlightCadence:     5,
		QueueCapacity:        4096,
		WorkerCount:          runtime.NumCPU(),
		FetchTimeoutMS:       10_000,
		StaleWindowHours:     48,
		EnrichConcurrency:    8,
		Gravity:              1.5,
		LikeWeight:           1.0,
		CommentWeight:        2.0,
		AgeOffset:            4.0,
		BoostWeight:          0.005,
		ScaleFactor:          1000.0,
		LowEngagementPenalty: 0.2,
	}
}

// FetchTimeout returns the per-fetch bound as a duration.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutMS) * time.Millisecond
}

// StaleWindow returns the archive fallback window as a duration.
func (c *Config) StaleWindow() time.Duration {
	return time.Duration(c.StaleWindowHours) * time.Hour
}
