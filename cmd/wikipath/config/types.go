// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the wikipath command configuration.
//
// A configuration file is YAML or TOML, chosen by extension. Values from
// WIKIPATH_* environment variables override the file.
package config

import (
	"time"

	"github.com/AleutianAI/wikipath/services/wikipath/ingest"
	"github.com/AleutianAI/wikipath/services/wikipath/telemetry"
)

// Config is the full wikipath configuration.
type Config struct {
	// Graph locates the graph manifest and the records it is built from.
	Graph GraphConfig `yaml:"graph" toml:"graph"`

	// Server configures "wikipath serve".
	Server ServerConfig `yaml:"server" toml:"server"`

	// Cache configures the path cache.
	Cache CacheConfig `yaml:"cache" toml:"cache"`

	// Log configures logging.
	Log LogConfig `yaml:"log" toml:"log"`

	// Telemetry configures OpenTelemetry.
	Telemetry telemetry.Config `yaml:"telemetry" toml:"telemetry"`
}

// GraphConfig locates graph data.
type GraphConfig struct {
	// Manifest is the manifest.json served and written by build.
	Manifest string `yaml:"manifest" toml:"manifest" validate:"required"`

	// Shards is the number of shard files build writes.
	Shards int `yaml:"shards" toml:"shards" validate:"min=1,max=1024"`

	// Workers bounds parallel link shard parsing. 0 means GOMAXPROCS.
	Workers int `yaml:"workers" toml:"workers" validate:"min=0"`

	// Records are the TSV inputs of build.
	Records ingest.Files `yaml:"records" toml:"records"`

	// Watch reloads the manifest when it is replaced.
	Watch bool `yaml:"watch" toml:"watch"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	// Addr is the listen address.
	Addr string `yaml:"addr" toml:"addr" validate:"required"`

	// SearchTimeout bounds one uncached search.
	SearchTimeout time.Duration `yaml:"search_timeout" toml:"search_timeout" validate:"gt=0"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" toml:"shutdown_timeout" validate:"gt=0"`

	// ArticleURL formats article links from a page id.
	ArticleURL string `yaml:"article_url" toml:"article_url" validate:"required,contains=%d"`

	// RateLimit limits searches per client. Zero Requests disables it.
	RateLimit RateLimitConfig `yaml:"rate_limit" toml:"rate_limit"`
}

// RateLimitConfig configures per-client search limits.
type RateLimitConfig struct {
	Requests int           `yaml:"requests" toml:"requests" validate:"min=0"`
	Window   time.Duration `yaml:"window" toml:"window" validate:"required_with=Requests"`
	Burst    int           `yaml:"burst" toml:"burst" validate:"min=0"`
}

// CacheConfig configures the path cache.
type CacheConfig struct {
	// Capacity is the in-memory cache size.
	Capacity int `yaml:"capacity" toml:"capacity" validate:"min=1"`

	// Longest is how many longest searches are kept.
	Longest int `yaml:"longest" toml:"longest" validate:"min=1"`

	// Dir enables the persistent cache in this directory.
	Dir string `yaml:"dir" toml:"dir"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level" toml:"level" validate:"oneof=debug info warn warning error"`

	// Dir enables JSON file logs in this directory.
	Dir string `yaml:"dir" toml:"dir"`

	// JSON switches console output to JSON.
	JSON bool `yaml:"json" toml:"json"`

	// Color is auto, always or never.
	Color string `yaml:"color" toml:"color" validate:"oneof=auto always never"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Graph: GraphConfig{
			Manifest: "data/graph/manifest.json",
			Shards:   8,
			Records: ingest.Files{
				Pages:     "data/records/pages.tsv",
				Redirects: "data/records/redirects.tsv",
				Links:     []string{"data/records/links*.tsv"},
			},
		},
		Server: ServerConfig{
			Addr:            ":8080",
			SearchTimeout:   10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			ArticleURL:      "https://simple.wikipedia.org/?curid=%d",
			RateLimit: RateLimitConfig{
				Requests: 120,
				Window:   time.Minute,
				Burst:    20,
			},
		},
		Cache: CacheConfig{
			Capacity: 1024,
			Longest:  16,
		},
		Log: LogConfig{
			Level: "info",
			Color: "auto",
		},
		Telemetry: telemetry.DefaultConfig(),
	}
}
