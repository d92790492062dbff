// Overwatch - Multi-Site Monitoring and Event Aggregation
// Copyright 2026 BrightPlum
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/brightplum/overwatch

// Package main is the entry point for the Overwatch site agent.
//
// The agent runs next to a monitored site. It captures entity-change and
// error-log events, buffers them in a durable JetStream queue (embedded by
// default), builds periodic health snapshots from the site manifest, and
// delivers everything to the central platform with a stored bearer token.
//
// # Modes
//
// Without flags the agent runs the capture-and-deliver pipeline under a
// Suture supervisor tree. Credential management is explicit:
//
//	overwatch-agent -connect     obtain and store an access token
//	overwatch-agent -disconnect  delete the stored token
//	overwatch-agent -status      print connection status
//
// Tokens carry an absolute expiry and are never renewed automatically; when
// delivery starts failing with an expired token, run -connect again.
//
// # Signal Handling
//
// SIGINT and SIGTERM stop the pipeline gracefully. Undelivered queue items
// persist in the JetStream store directory and resume after restart.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brightplum/overwatch/internal/capture"
	"github.com/brightplum/overwatch/internal/config"
	"github.com/brightplum/overwatch/internal/credential"
	"github.com/brightplum/overwatch/internal/delivery"
	"github.com/brightplum/overwatch/internal/logging"
	"github.com/brightplum/overwatch/internal/queue"
	"github.com/brightplum/overwatch/internal/snapshot"
	"github.com/brightplum/overwatch/internal/supervisor"
)

func main() {
	connect := flag.Bool("connect", false, "obtain an access token from the platform and store it")
	disconnect := flag.Bool("disconnect", false, "delete the stored access token")
	status := flag.Bool("status", false, "print connection status and exit")
	flag.Parse()

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

	store, err := credential.Open(cfg.Security.CredentialStorePath)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open credential store")
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing credential store")
		}
	}()

	switch {
	case *connect:
		runConnect(cfg, store)
		return
	case *disconnect:
		runDisconnect(store)
		return
	case *status:
		runStatus(store)
		return
	}

	runPipeline(cfg, store)
}

// runConnect performs the explicit connect action: exchange the configured
// credentials for an access token and store it locally.
func runConnect(cfg *config.Config, store *credential.Store) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	token, err := credential.NewConnector(&cfg.Remote, store).Connect(ctx)
	if err != nil {
		logging.Fatal().Err(err).Msg("Connect failed")
	}
	fmt.Printf("Connected to %s, token valid for %d days\n", cfg.Remote.URL, token.RemainingDays(time.Now()))
}

func runDisconnect(store *credential.Store) {
	if err := store.Delete(); err != nil {
		logging.Fatal().Err(err).Msg("Disconnect failed")
	}
	fmt.Println("Stored access token deleted")
}

func runStatus(store *credential.Store) {
	fmt.Println(store.Status(time.Now()).String())
}

// runPipeline starts the capture, snapshot, and delivery services and blocks
// until a shutdown signal arrives.
func runPipeline(cfg *config.Config, store *credential.Store) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	queueURL := cfg.Queue.URL
	var embedded *queue.EmbeddedServer
	if cfg.Queue.EmbeddedServer {
		var err error
		embedded, err = queue.NewEmbeddedServer(&cfg.Queue)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to start embedded queue server")
		}
		queueURL = embedded.ClientURL()
	}

	if err := queue.EnsureStream(ctx, queueURL, &cfg.Queue); err != nil {
		logging.Fatal().Err(err).Msg("Failed to provision queue stream")
	}

	wmLogger := queue.NewLoggerAdapter()
	publisher, err := queue.NewPublisher(queueURL, &cfg.Queue, wmLogger)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create queue publisher")
	}
	defer publisher.Close()

	subscriber, err := queue.NewSubscriber(queueURL, &cfg.Queue, wmLogger)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create queue subscriber")
	}
	defer subscriber.Close()

	recorder := capture.NewRecorder(&cfg.Site, &cfg.Capture, publisher)
	logging.SetLogger(logging.Logger().Hook(capture.NewLogHook(recorder)))

	manifest := snapshot.NewManifestSource(cfg.Site.ManifestPath)
	builder := snapshot.NewBuilder(&cfg.Site, manifest, manifest)

	client := delivery.NewClient(&cfg.Remote, store)
	worker, err := delivery.NewWorker(subscriber, client, builder, wmLogger)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create delivery worker")
	}

	tree := supervisor.NewTree("overwatch-agent", logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if embedded != nil {
		tree.AddQueueService(embedded)
	}
	tree.AddPipelineService(worker)
	if cfg.Snapshot.Enabled {
		tree.AddPipelineService(snapshot.NewScheduler(&cfg.Snapshot, publisher))
	}

	logging.Info().
		Str("site", cfg.Site.Name).
		Str("queue_url", queueURL).
		Bool("snapshots", cfg.Snapshot.Enabled).
		Msg("Starting agent pipeline")

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

	logging.Info().Msg("Agent stopped")
}
