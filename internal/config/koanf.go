// Overwatch - Multi-Site Monitoring and Event Aggregation
// Copyright 2026 BrightPlum
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/brightplum/overwatch

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"overwatch.yaml",
	"overwatch.yml",
	"/etc/overwatch/overwatch.yaml",
	"/etc/overwatch/overwatch.yml",
}

// ConfigPathEnvVar overrides the config file path when set.
const ConfigPathEnvVar = "OVERWATCH_CONFIG"

// envPrefix is stripped from environment variables before mapping them to
// config paths: OVERWATCH_REMOTE_URL -> remote.url.
const envPrefix = "OVERWATCH_"

// defaultConfig returns a Config with all defaults applied. Defaults load
// first and are overridden by the config file and environment.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			Name:         "",
			BaseURL:      "",
			Type:         "drupal",
			CoreVersion:  "",
			ManifestPath: "site-manifest.yaml",
		},
		Remote: RemoteConfig{
			URL:     "",
			Timeout: 30 * time.Second,
			Scope:   "overwatch",
		},
		Queue: QueueConfig{
			URL:            "nats://127.0.0.1:4222",
			EmbeddedServer: true,
			StoreDir:       "/data/overwatch/jetstream",
			MaxMemory:      256 << 20, // 256MB
			MaxStore:       2 << 30,   // 2GB; bounds queue depth when delivery stalls
			MaxReconnects:  -1,
			ReconnectWait:  2 * time.Second,
			AckWaitTimeout: 30 * time.Second,
			MaxDeliver:     -1,
			DurableName:    "overwatch-delivery",
			QueueGroup:     "delivery",
		},
		Snapshot: SnapshotConfig{
			Enabled:  true,
			Interval: 6 * time.Hour,
		},
		Capture: CaptureConfig{
			PublishRate:  50,
			PublishBurst: 200,
		},
		Database: DatabaseConfig{
			Path:      "/data/overwatch/overwatch.duckdb",
			MaxMemory: "1GB",
			Threads:   0, // 0 = runtime.NumCPU()
		},
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    8480,
			Timeout: 30 * time.Second,
		},
		Security: SecurityConfig{
			TokenSecret:         "",
			TokenTTL:            14 * 24 * time.Hour,
			ClientID:            "",
			ClientSecretHash:    "",
			CredentialStorePath: "/data/overwatch/credentials",
			RateLimitReqs:       100,
			RateLimitWindow:     time.Minute,
			CORSOrigins:         []string{"*"},
		},
		Ingest: IngestConfig{
			AllowedEntities:   []string{"node", "user", "block", "error"},
			AllowedSeverities: []string{"low", "high"},
			AllowedTypes:      []string{"insert", "update", "delete"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load builds the configuration from layered sources: defaults, then an
// optional YAML file, then OVERWATCH_ environment variables.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// OVERWATCH_SECURITY_TOKEN_SECRET -> security.token_secret
	envProvider := env.Provider(envPrefix, ".", func(key string) string {
		key = strings.TrimPrefix(key, envPrefix)
		return strings.ReplaceAll(strings.ToLower(key), "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first config file found, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths lists config paths parsed as comma-separated slices when
// they arrive as strings from the environment.
var sliceConfigPaths = []string{
	"security.cors_origins",
	"ingest.allowed_entities",
	"ingest.allowed_severities",
	"ingest.allowed_types",
}

// processSliceFields converts comma-separated env strings into slices for
// known slice fields. YAML-sourced slices pass through untouched.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("set %s: %w", path, err)
			}
		}
	}
	return nil
}
