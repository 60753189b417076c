// Package config defines service configuration and its loader.
//
// Values are layered: defaults from New, then an optional YAML file, then
// ROCATRUN_* environment variables.
package config

import (
	"runtime"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// DBPath is the SQLite database file.
	DBPath string `koanf:"db_path"`

	// EventQueueSize bounds the in-memory game result queue.
	EventQueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of game result workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets the size of the game result idempotency cache.
	DedupeSize int `koanf:"dedupe_size"`

	// MaxRankingSize caps the ranking list returned next to the caller's rank.
	MaxRankingSize int `koanf:"max_ranking_size"`

	// ImageDir is where character images are stored.
	ImageDir string `koanf:"image_dir"`

	// DefaultImage is the image every new character starts with. It is never deleted.
	DefaultImage string `koanf:"default_image"`
}

// New returns a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:       "info",
		LogFormat:      "text",
		Addr:           ":9080",
		DBPath:         "rocatrun.db",
		EventQueueSize: 10_000,
		WorkerCount:    runtime.NumCPU(),
		DedupeSize:     100_000,
		MaxRankingSize: 100,
		ImageDir:       "images",
		DefaultImage:   "default.png",
	}
}
