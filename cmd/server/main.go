// Overwatch - Multi-Site Monitoring and Event Aggregation
// Copyright 2026 BrightPlum
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/brightplum/overwatch

// Package main is the entry point for the Overwatch monitoring platform.
//
// The server receives events and health snapshots from site agents over an
// authenticated REST API, validates and persists them in DuckDB, and serves
// aggregated views across all reporting sites.
//
// # Startup Order
//
//  1. Configuration: Koanf v2 layered sources (defaults, YAML file,
//     OVERWATCH_-prefixed environment variables)
//  2. Database: DuckDB storage for events, snapshots, and child records
//  3. Authentication: token issuer for the /oauth/token grant and bearer
//     verification on the ingest and aggregation endpoints
//  4. HTTP server: Chi router under a Suture supervisor tree
//
// # Configuration
//
// Required settings for production:
//   - OVERWATCH_SECURITY__TOKEN_SECRET: 32+ character token signing secret
//   - OVERWATCH_SECURITY__CLIENT_ID: agent client identifier
//   - OVERWATCH_SECURITY__CLIENT_SECRET_HASH: bcrypt hash of the agent secret
//
// # Signal Handling
//
// SIGINT and SIGTERM trigger graceful shutdown: the listener stops accepting
// connections, in-flight requests drain, and the database closes last.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/brightplum/overwatch/internal/api"
	"github.com/brightplum/overwatch/internal/auth"
	"github.com/brightplum/overwatch/internal/config"
	"github.com/brightplum/overwatch/internal/database"
	"github.com/brightplum/overwatch/internal/logging"
	"github.com/brightplum/overwatch/internal/supervisor"
	"github.com/brightplum/overwatch/internal/validation"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
		Output:    os.Stderr,
	})

	logging.Info().
		Str("db_path", cfg.Database.Path).
		Int("port", cfg.Server.Port).
		Msg("Starting Overwatch platform server")

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()

	issuer, err := auth.NewTokenIssuer(&cfg.Security)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize token issuer")
	}

	allowed := validation.NewAllowedValues(&cfg.Ingest)

	handler := api.NewHandler(db, issuer, allowed)
	router := api.NewRouter(handler, issuer, &cfg.Security)
	server := api.NewServer(&cfg.Server, router)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tree := supervisor.NewTree("overwatch-server", logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddAPIService(server)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	errCh := tree.ServeBackground(ctx)
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Platform server stopped")
}
