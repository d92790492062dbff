// Overwatch - Multi-Site Monitoring and Event Aggregation
// Copyright 2026 BrightPlum
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/brightplum/overwatch

package capture

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"

	"github.com/brightplum/overwatch/internal/config"
	"github.com/brightplum/overwatch/internal/models"
	"github.com/brightplum/overwatch/internal/queue"
)

// chanPublisher adapts the in-memory pubsub to the recorder's interface.
type chanPublisher struct {
	pub message.Publisher
}

func (p chanPublisher) Publish(topic string, msg *message.Message) error {
	return p.pub.Publish(topic, msg)
}

func testSite() *config.SiteConfig {
	return &config.SiteConfig{
		Name:    "Alpha Site",
		BaseURL: "https://alpha.example",
	}
}

func newTestRecorder(t *testing.T, captureCfg *config.CaptureConfig) (*Recorder, <-chan *message.Message) {
	t.Helper()
	pubsub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, watermill.NopLogger{})
	t.Cleanup(func() { pubsub.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	messages, err := pubsub.Subscribe(ctx, queue.TopicEvent)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	return NewRecorder(testSite(), captureCfg, chanPublisher{pubsub}), messages
}

func receiveEvent(t *testing.T, messages <-chan *message.Message) *models.Event {
	t.Helper()
	select {
	case msg := <-messages:
		msg.Ack()
		var event models.Event
		if err := json.Unmarshal(msg.Payload, &event); err != nil {
			t.Fatalf("unmarshal event: %v", err)
		}
		return &event
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
		return nil
	}
}

func TestEntityChangedCapturesWatchedKinds(t *testing.T) {
	recorder, messages := newTestRecorder(t, &config.CaptureConfig{PublishRate: 1000, PublishBurst: 1000})

	recorder.EntityChanged(EntityChange{
		Entity: models.EntityNode,
		Action: models.ActionUpdate,
		Title:  "About us",
		Author: "editor",
		Bundle: "page",
	})

	event := receiveEvent(t, messages)
	if event.Entity != models.EntityNode || event.Type != models.ActionUpdate {
		t.Errorf("entity/type = %q/%q", event.Entity, event.Type)
	}
	if event.Severity != models.SeverityLow {
		t.Errorf("severity = %q, want low", event.Severity)
	}
	if event.SiteMachineName != "alpha_site" {
		t.Errorf("machine name = %q, want alpha_site", event.SiteMachineName)
	}
	if event.SiteName != "Alpha Site" || event.SiteBaseURL != "https://alpha.example" {
		t.Errorf("site identity not stamped: %+v", event)
	}
	if event.UUID == "" || event.Timestamp == 0 {
		t.Errorf("uuid/timestamp missing: %+v", event)
	}
}

func TestEntityChangedIgnoresUnwatchedKinds(t *testing.T) {
	recorder, messages := newTestRecorder(t, &config.CaptureConfig{PublishRate: 1000, PublishBurst: 1000})

	recorder.EntityChanged(EntityChange{Entity: "comment", Action: models.ActionInsert, Title: "First!"})
	recorder.EntityChanged(EntityChange{Entity: "taxonomy_term", Action: models.ActionDelete})

	select {
	case msg := <-messages:
		t.Fatalf("unexpected event published: %s", msg.Payload)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestErrorLoggedHighSeverity(t *testing.T) {
	recorder, messages := newTestRecorder(t, &config.CaptureConfig{PublishRate: 1000, PublishBurst: 1000})

	recorder.ErrorLogged(map[string]interface{}{
		"message":   "database gone away",
		"backtrace": []string{"frame1", "frame2"},
		"exception": map[string]string{"class": "PDOException"},
		"channel":   "php",
	})

	event := receiveEvent(t, messages)
	if event.Severity != models.SeverityHigh {
		t.Errorf("severity = %q, want high", event.Severity)
	}
	if event.Entity != models.EntityError || event.Bundle != models.EntityError {
		t.Errorf("entity/bundle = %q/%q, want error/error", event.Entity, event.Bundle)
	}
	if event.Type != models.ActionInsert {
		t.Errorf("type = %q, want insert", event.Type)
	}
	if event.Title != "Error log" {
		t.Errorf("title = %q", event.Title)
	}

	var ctx map[string]interface{}
	if err := json.Unmarshal([]byte(event.Context), &ctx); err != nil {
		t.Fatalf("context is not JSON: %v", err)
	}
	if _, ok := ctx["backtrace"]; ok {
		t.Error("backtrace should be stripped from context")
	}
	if _, ok := ctx["exception"]; ok {
		t.Error("exception should be stripped from context")
	}
	if ctx["message"] != "database gone away" {
		t.Errorf("message field lost: %v", ctx)
	}
}

func TestRateLimitDropsExcessEvents(t *testing.T) {
	recorder, messages := newTestRecorder(t, &config.CaptureConfig{PublishRate: 0.001, PublishBurst: 2})

	for i := 0; i < 5; i++ {
		recorder.EntityChanged(EntityChange{
			Entity: models.EntityNode,
			Action: models.ActionInsert,
			Title:  "Post",
		})
	}

	received := 0
	for {
		select {
		case <-messages:
			received++
		case <-time.After(300 * time.Millisecond):
			if received != 2 {
				t.Errorf("received %d events, want burst of 2", received)
			}
			return
		}
	}
}
