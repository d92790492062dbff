// Overwatch - Multi-Site Monitoring and Event Aggregation
// Copyright 2026 BrightPlum
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/brightplum/overwatch

package snapshot

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	"github.com/brightplum/overwatch/internal/config"
	"github.com/brightplum/overwatch/internal/logging"
	"github.com/brightplum/overwatch/internal/metrics"
	"github.com/brightplum/overwatch/internal/queue"
)

// Publisher is the queue surface the scheduler needs.
type Publisher interface {
	Publish(topic string, msg *message.Message) error
}

// markerPayload is what a queued snapshot marker carries. Delivery checks
// it is truthy before building; anything else is malformed and dropped.
var markerPayload = []byte("true")

// Scheduler enqueues a snapshot marker once per interval. It runs as a
// suture service: Serve blocks until the context is canceled.
type Scheduler struct {
	cfg       *config.SnapshotConfig
	publisher Publisher
}

// NewScheduler creates a Scheduler.
func NewScheduler(cfg *config.SnapshotConfig, publisher Publisher) *Scheduler {
	return &Scheduler{cfg: cfg, publisher: publisher}
}

// Serve publishes one marker immediately, then one per interval. A failed
// publish is logged and retried at the next tick; losing a single marker
// only delays the next snapshot.
func (s *Scheduler) Serve(ctx context.Context) error {
	s.publish()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.publish()
		}
	}
}

func (s *Scheduler) publish() {
	msg := message.NewMessage(uuid.New().String(), markerPayload)
	if err := s.publisher.Publish(queue.TopicSnapshot, msg); err != nil {
		logging.Err(err).Msg("Failed to enqueue snapshot marker")
		return
	}
	metrics.SnapshotsScheduled.Inc()
	logging.Debug().Msg("Snapshot marker enqueued")
}

// String names the service in supervisor logs.
func (s *Scheduler) String() string { return "snapshot-scheduler" }
