// Package config defines plushub configuration and its loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Load layers defaults, an optional YAML file and PLUSHUB_* env vars.
// - Errors returned from Load wrap ErrLoadConfig or ErrInvalidConfig.
package config

import (
	"context"
	"runtime"
)

// Store drivers understood by the service.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// AdminID is the user id that may edit any calendar event.
	AdminID int64 `koanf:"admin_id"`

	// DescriptionLimit bounds suggestion and comment descriptions.
	DescriptionLimit int `koanf:"description_limit"`

	// Store selects the repository driver: memory or sqlite.
	Store string `koanf:"store"`

	// StorePath is the sqlite database file.
	StorePath string `koanf:"store_path"`

	// SeedPath is an optional YAML file loaded into the store on start.
	SeedPath string `koanf:"seed_path"`

	// NotificationQueueSize bounds the in-memory notification queue.
	NotificationQueueSize int `koanf:"notification_queue_size"`

	// NotificationWorkers sets the number of delivery workers.
	NotificationWorkers int `koanf:"notification_workers"`

	// QueryCacheSize bounds the query cache.
	QueryCacheSize int `koanf:"query_cache_size"`

	// VotingStartHourUTC is the hour voting opens on the first Friday of a month.
	VotingStartHourUTC int `koanf:"voting_start_hour_utc"`

	// VotingDurationHours is how long the voting window stays open.
	VotingDurationHours int `koanf:"voting_duration_hours"`

	// APIBaseURL is where CLI client commands send requests.
	APIBaseURL string `koanf:"api_base_url"`

	// ClientTimeoutMS bounds a single client request.
	ClientTimeoutMS int `koanf:"client_timeout_ms"`

	// MetricsNamespace prefixes every exported metric name.
	MetricsNamespace string `koanf:"metrics_namespace"`

	// MetricsSubsystem is inserted between the namespace and the metric name.
	MetricsSubsystem string `koanf:"metrics_subsystem"`

	// MetricsBucketsMS overrides the latency histogram buckets. Empty keeps
	// the built-in buckets.
	MetricsBucketsMS []float64 `koanf:"metrics_buckets_ms"`
}

// New returns a Config populated with defaults. The context is reserved for
// future lookups and is currently unused.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:              "info",
		LogFormat:             "text",
		Addr:                  ":9080",
		AdminID:               8,
		DescriptionLimit:      500,
		Store:                 StoreMemory,
		StorePath:             "plushub.db",
		NotificationQueueSize: 1024,
		NotificationWorkers:   runtime.NumCPU(),
		QueryCacheSize:        256,
		VotingStartHourUTC:    10,
		VotingDurationHours:   72,
		APIBaseURL:            "http://localhost:9080",
		ClientTimeoutMS:       10_000,
		MetricsNamespace:      "plushub",
	}
}
