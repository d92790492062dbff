// Overwatch - Multi-Site Monitoring and Event Aggregation
// Copyright 2026 BrightPlum
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/brightplum/overwatch

package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"

	"github.com/brightplum/overwatch/internal/config"
)

// EmbeddedServer wraps an in-process NATS JetStream server. The agent runs
// one by default so a deployment needs no external broker; queue.url can
// point at an external cluster instead.
type EmbeddedServer struct {
	server    *server.Server
	clientURL string
}

// NewEmbeddedServer creates and starts the embedded server. JetStream
// storage is file-backed under cfg.StoreDir; MaxStore bounds queue growth
// when the remote platform is unreachable for long stretches.
func NewEmbeddedServer(cfg *config.QueueConfig) (*EmbeddedServer, error) {
	opts := &server.Options{
		ServerName:         "overwatch-agent",
		Host:               "127.0.0.1",
		Port:               server.RANDOM_PORT,
		JetStream:          true,
		StoreDir:           cfg.StoreDir,
		JetStreamMaxMemory: cfg.MaxMemory,
		JetStreamMaxStore:  cfg.MaxStore,
		NoLog:              true,
		NoSigs:             true,
		MaxPayload:         8 * 1024 * 1024,
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("create NATS server: %w", err)
	}

	go ns.Start()

	if !ns.ReadyForConnections(30 * time.Second) {
		ns.Shutdown()
		return nil, fmt.Errorf("NATS server not ready within timeout")
	}

	return &EmbeddedServer{
		server:    ns,
		clientURL: ns.ClientURL(),
	}, nil
}

// Serve runs the already-started server under supervision: it blocks until
// the context is canceled, then shuts the server down. A server that dies
// on its own surfaces as an error for the supervisor to report.
func (s *EmbeddedServer) Serve(ctx context.Context) error {
	stopped := make(chan struct{})
	go func() {
		s.server.WaitForShutdown()
		close(stopped)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return ctx.Err()
	case <-stopped:
		return fmt.Errorf("embedded queue server stopped unexpectedly")
	}
}

// String names the service in supervisor logs.
func (s *EmbeddedServer) String() string { return "queue-server" }

// ClientURL returns the connection URL for clients.
func (s *EmbeddedServer) ClientURL() string {
	return s.clientURL
}

// Shutdown stops the server, waiting for completion or context expiry.
func (s *EmbeddedServer) Shutdown(ctx context.Context) error {
	s.server.Shutdown()

	done := make(chan struct{})
	go func() {
		s.server.WaitForShutdown()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// IsRunning reports server health.
func (s *EmbeddedServer) IsRunning() bool {
	return s.server.Running()
}
