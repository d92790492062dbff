// Overwatch - Multi-Site Monitoring and Event Aggregation
// Copyright 2026 BrightPlum
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/brightplum/overwatch

// Package capture observes local activity and enqueues monitoring events.
// Capture is strictly fire-and-forget: no failure here may surface to the
// operation that triggered it. Errors are logged and counted, never
// returned.
package capture

import (
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/brightplum/overwatch/internal/config"
	"github.com/brightplum/overwatch/internal/identity"
	"github.com/brightplum/overwatch/internal/logging"
	"github.com/brightplum/overwatch/internal/metrics"
	"github.com/brightplum/overwatch/internal/models"
	"github.com/brightplum/overwatch/internal/queue"
)

// nowUnix is swappable for tests.
var nowUnix = func() int64 { return time.Now().Unix() }

// Publisher is the queue surface the recorder needs.
type Publisher interface {
	Publish(topic string, msg *message.Message) error
}

// watchedEntities are the entity kinds whose lifecycle changes produce
// events. Changes to anything else are ignored.
var watchedEntities = map[string]struct{}{
	models.EntityNode:  {},
	models.EntityUser:  {},
	models.EntityBlock: {},
}

// EntityChange describes one observed entity lifecycle change.
type EntityChange struct {
	// Entity is the kind of thing that changed (node, user, block).
	Entity string
	// Action is what happened to it (insert, update, delete).
	Action string
	// Title is the entity's display label.
	Title  string
	Author string
	Bundle string
}

// Recorder turns observed changes into queued events, stamped with the
// site's identity. A token-bucket limiter bounds the publish rate; events
// beyond it are dropped and counted rather than blocking the caller.
type Recorder struct {
	site      *config.SiteConfig
	publisher Publisher
	limiter   *rate.Limiter

	machineName string
}

// NewRecorder builds a Recorder for the configured site.
func NewRecorder(site *config.SiteConfig, captureCfg *config.CaptureConfig, publisher Publisher) *Recorder {
	return &Recorder{
		site:        site,
		publisher:   publisher,
		limiter:     rate.NewLimiter(rate.Limit(captureCfg.PublishRate), captureCfg.PublishBurst),
		machineName: identity.MachineName(site.Name),
	}
}

// EntityChanged records an entity lifecycle change at low severity.
// Unwatched entity kinds are ignored silently.
func (r *Recorder) EntityChanged(change EntityChange) {
	if _, ok := watchedEntities[change.Entity]; !ok {
		return
	}

	r.enqueue(&models.Event{
		UUID:            uuid.New().String(),
		Title:           change.Title,
		Author:          change.Author,
		Bundle:          change.Bundle,
		Entity:          change.Entity,
		Type:            change.Action,
		Severity:        models.SeverityLow,
		SiteBaseURL:     r.site.BaseURL,
		SiteMachineName: r.machineName,
		SiteName:        r.site.Name,
	})
}

// strippedContextKeys are removed from error-log context before
// serialization. Backtraces and exception objects are noisy, large, and
// can leak internals off-site.
var strippedContextKeys = []string{"backtrace", "exception"}

// ErrorLogged records an error-log entry as a high-severity event.
func (r *Recorder) ErrorLogged(logContext map[string]interface{}) {
	context := ""
	if len(logContext) > 0 {
		sanitized := make(map[string]interface{}, len(logContext))
		for k, v := range logContext {
			sanitized[k] = v
		}
		for _, key := range strippedContextKeys {
			delete(sanitized, key)
		}
		if data, err := json.Marshal(sanitized); err == nil {
			context = string(data)
		}
	}

	r.enqueue(&models.Event{
		UUID:            uuid.New().String(),
		Title:           "Error log",
		Bundle:          models.EntityError,
		Entity:          models.EntityError,
		Type:            models.ActionInsert,
		Severity:        models.SeverityHigh,
		Context:         context,
		SiteBaseURL:     r.site.BaseURL,
		SiteMachineName: r.machineName,
		SiteName:        r.site.Name,
	})
}

// enqueue serializes and publishes an event, dropping it when the rate
// limit is exhausted or the publish fails.
func (r *Recorder) enqueue(event *models.Event) {
	event.Timestamp = nowUnix()
	metrics.RecordCapture(event.Entity, event.Type)

	if !r.limiter.Allow() {
		metrics.RecordDrop("rate_limit")
		logging.Warn().
			Str("entity", event.Entity).
			Str("type", event.Type).
			Msg("Capture rate limit exceeded, event dropped")
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		metrics.RecordDrop("serialize")
		logging.Err(err).Str("entity", event.Entity).Msg("Failed to serialize captured event")
		return
	}

	msg := message.NewMessage(event.UUID, payload)
	if err := r.publisher.Publish(queue.TopicEvent, msg); err != nil {
		metrics.RecordDrop("publish_failed")
		logging.Err(err).Str("entity", event.Entity).Msg("Failed to enqueue captured event")
	}
}
