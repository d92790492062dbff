// Overwatch - Multi-Site Monitoring and Event Aggregation
// Copyright 2026 BrightPlum
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/brightplum/overwatch

// Package config defines the configuration for both Overwatch binaries and
// loads it with Koanf from layered sources: built-in defaults, an optional
// YAML file, and OVERWATCH_-prefixed environment variables (highest
// priority).
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration shared by the agent and the server.
// Each binary reads only the sections it needs.
type Config struct {
	Site     SiteConfig     `koanf:"site"`
	Remote   RemoteConfig   `koanf:"remote"`
	Queue    QueueConfig    `koanf:"queue"`
	Snapshot SnapshotConfig `koanf:"snapshot"`
	Capture  CaptureConfig  `koanf:"capture"`
	Database DatabaseConfig `koanf:"database"`
	Server   ServerConfig   `koanf:"server"`
	Security SecurityConfig `koanf:"security"`
	Ingest   IngestConfig   `koanf:"ingest"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// SiteConfig identifies the tenant site an agent reports for.
type SiteConfig struct {
	// Name is the human display name. The machine name is always derived
	// from it, never configured directly.
	Name    string `koanf:"name"`
	BaseURL string `koanf:"base_url"`
	// Type is reported in snapshots (e.g. "drupal").
	Type string `koanf:"type"`
	// CoreVersion is the platform version reported in snapshots.
	CoreVersion string `koanf:"core_version"`
	// ManifestPath points at the YAML site manifest the snapshot builder
	// reads extensions and requirements from.
	ManifestPath string `koanf:"manifest_path"`
}

// RemoteConfig locates the central monitoring platform.
type RemoteConfig struct {
	// URL is the monitoring platform base URL, e.g. https://overwatch.example.
	URL     string        `koanf:"url"`
	Timeout time.Duration `koanf:"timeout"`

	// Client-credentials used by the explicit connect action. Stored
	// operator credentials; the core never refreshes tokens on its own.
	ClientID     string `koanf:"client_id"`
	ClientSecret string `koanf:"client_secret"`
	Username     string `koanf:"username"`
	Password     string `koanf:"password"`
	Scope        string `koanf:"scope"`
}

// QueueConfig configures the durable delivery queue (NATS JetStream via
// Watermill).
type QueueConfig struct {
	URL            string        `koanf:"url"`
	EmbeddedServer bool          `koanf:"embedded_server"`
	StoreDir       string        `koanf:"store_dir"`
	MaxMemory      int64         `koanf:"max_memory"`
	MaxStore       int64         `koanf:"max_store"`
	MaxReconnects  int           `koanf:"max_reconnects"`
	ReconnectWait  time.Duration `koanf:"reconnect_wait"`
	AckWaitTimeout time.Duration `koanf:"ack_wait_timeout"`
	// MaxDeliver bounds redelivery attempts per item; the queue owns retry
	// policy, the worker only acks or nacks.
	MaxDeliver  int    `koanf:"max_deliver"`
	DurableName string `koanf:"durable_name"`
	QueueGroup  string `koanf:"queue_group"`
}

// SnapshotConfig controls periodic site-health snapshot reporting.
type SnapshotConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Interval time.Duration `koanf:"interval"`
}

// CaptureConfig bounds the capture layer's publish rate. When the limit is
// exceeded events are dropped and counted rather than blocking the
// triggering operation.
type CaptureConfig struct {
	PublishRate  float64 `koanf:"publish_rate"`
	PublishBurst int     `koanf:"publish_burst"`
}

// DatabaseConfig configures the server-side DuckDB store.
type DatabaseConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"`
}

// ServerConfig configures the monitoring platform's HTTP listener.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`
}

// SecurityConfig configures the token endpoint and bearer authentication.
type SecurityConfig struct {
	// TokenSecret signs issued access tokens (HS256). Minimum 32 bytes.
	TokenSecret string `koanf:"token_secret"`
	// TokenTTL is the lifetime of issued tokens; expiry is absolute
	// (issue time + TTL) and never renewed automatically.
	TokenTTL time.Duration `koanf:"token_ttl"`
	// ClientID and ClientSecretHash (bcrypt) authenticate the
	// client-credentials grant on /oauth/token.
	ClientID         string `koanf:"client_id"`
	ClientSecretHash string `koanf:"client_secret_hash"`

	CredentialStorePath string `koanf:"credential_store_path"`

	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
	CORSOrigins     []string      `koanf:"cors_origins"`
}

// IngestConfig seeds the live allowed-value sets the ingestion validator
// checks enumerated fields against. The running sets are mutable at runtime;
// these are only the initial values.
type IngestConfig struct {
	AllowedEntities   []string `koanf:"allowed_entities"`
	AllowedSeverities []string `koanf:"allowed_severities"`
	AllowedTypes      []string `koanf:"allowed_types"`
}

// LoggingConfig configures the global zerolog logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Validate checks cross-field constraints that cannot be expressed as
// defaults.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Security.TokenSecret != "" && len(c.Security.TokenSecret) < 32 {
		return fmt.Errorf("security.token_secret must be at least 32 characters")
	}
	if c.Snapshot.Enabled && c.Snapshot.Interval <= 0 {
		return fmt.Errorf("snapshot.interval must be positive when snapshots are enabled")
	}
	if c.Capture.PublishRate < 0 {
		return fmt.Errorf("capture.publish_rate must not be negative")
	}
	return nil
}
