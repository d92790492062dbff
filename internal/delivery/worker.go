// Overwatch - Multi-Site Monitoring and Event Aggregation
// Copyright 2026 BrightPlum
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/brightplum/overwatch

package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/goccy/go-json"

	"github.com/brightplum/overwatch/internal/logging"
	"github.com/brightplum/overwatch/internal/metrics"
	"github.com/brightplum/overwatch/internal/models"
	"github.com/brightplum/overwatch/internal/queue"
)

// Builder assembles a snapshot document at delivery time.
type Builder interface {
	Build(ctx context.Context) (*models.SystemData, error)
}

// Worker routes queued items to the platform. Events are posted verbatim;
// snapshot markers trigger a fresh build first. A handler error nacks the
// message and the queue redelivers it later.
type Worker struct {
	router *message.Router
}

// NewWorker wires the delivery handlers onto a Watermill router.
func NewWorker(subscriber message.Subscriber, client *Client, builder Builder, logger watermill.LoggerAdapter) (*Worker, error) {
	if logger == nil {
		logger = queue.NewLoggerAdapter()
	}

	router, err := message.NewRouter(message.RouterConfig{}, logger)
	if err != nil {
		return nil, fmt.Errorf("create delivery router: %w", err)
	}

	// A panicking handler must nack, not kill the worker.
	router.AddMiddleware(middleware.Recoverer)

	w := &Worker{router: router}

	router.AddNoPublisherHandler(
		"deliver-events",
		queue.TopicEvent,
		subscriber,
		eventHandler(client),
	)
	router.AddNoPublisherHandler(
		"deliver-snapshots",
		queue.TopicSnapshot,
		subscriber,
		snapshotHandler(client, builder),
	)

	return w, nil
}

// Serve runs the router until context cancellation. It satisfies
// suture.Service.
func (w *Worker) Serve(ctx context.Context) error {
	return w.router.Run(ctx)
}

// Close shuts the router down.
func (w *Worker) Close() error {
	return w.router.Close()
}

// String names the service in supervisor logs.
func (w *Worker) String() string { return "delivery-worker" }

// eventHandler posts a queued event payload as-is.
func eventHandler(client *Client) message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		start := time.Now()
		err := client.Post(msg.Context(), eventPath, msg.Payload)
		return settle("event", msg, start, err)
	}
}

// snapshotHandler validates the marker, builds a current snapshot, and
// posts it.
func snapshotHandler(client *Client, builder Builder) message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		if !truthyMarker(msg.Payload) {
			// A falsy marker is producer misuse, not a transient fault.
			// Retrying would fail identically forever, so consume it.
			metrics.RecordDelivery("system_data", "dropped", 0)
			logging.Error().
				Str("message_uuid", msg.UUID).
				Str("payload", truncate(string(msg.Payload), 50)).
				Msg("Snapshot marker is not truthy, dropping without retry")
			return nil
		}

		start := time.Now()
		data, err := builder.Build(msg.Context())
		if err != nil {
			metrics.RecordDelivery("system_data", "failed", time.Since(start))
			return fmt.Errorf("build snapshot: %w", err)
		}

		payload, err := json.Marshal(data)
		if err != nil {
			metrics.RecordDelivery("system_data", "failed", time.Since(start))
			return fmt.Errorf("serialize snapshot: %w", err)
		}

		err = client.Post(msg.Context(), systemDataPath, payload)
		return settle("system_data", msg, start, err)
	}
}

// settle maps a post result onto ack/nack semantics and metrics.
func settle(kind string, msg *message.Message, start time.Time, err error) error {
	elapsed := time.Since(start)

	switch {
	case err == nil:
		metrics.RecordDelivery(kind, "success", elapsed)
		logging.Debug().Str("kind", kind).Str("message_uuid", msg.UUID).Msg("Delivered")
		return nil

	case errors.Is(err, ErrNoConfirmationID):
		// Accepted by the platform; redelivering would duplicate it.
		metrics.RecordDelivery(kind, "rejected", elapsed)
		logging.Error().
			Str("kind", kind).
			Str("message_uuid", msg.UUID).
			Msg("Platform accepted item without confirmation id")
		return nil

	default:
		metrics.RecordDelivery(kind, "failed", elapsed)
		logging.Err(err).Str("kind", kind).Str("message_uuid", msg.UUID).Msg("Delivery failed, will retry")
		return err
	}
}

// truthyMarker applies loose truthiness to the marker payload: JSON false,
// 0, "", null, and empty payloads are falsy, everything else truthy.
func truthyMarker(payload []byte) bool {
	if len(payload) == 0 {
		return false
	}
	var v interface{}
	if err := json.Unmarshal(payload, &v); err != nil {
		return false
	}
	switch val := v.(type) {
	case bool:
		return val
	case float64:
		return val != 0
	case string:
		return val != ""
	case nil:
		return false
	default:
		return true
	}
}
