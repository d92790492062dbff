// Overwatch - Multi-Site Monitoring and Event Aggregation
// Copyright 2026 BrightPlum
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/brightplum/overwatch

// Package queue provides the agent's durable delivery queue: an embedded
// NATS JetStream server plus Watermill publisher and subscriber wrappers.
// Captured events and snapshot markers are enqueued here and survive
// restarts until delivery acknowledges them.
package queue

// Queue topics. Both live on the same stream so a single durable consumer
// group drains them.
const (
	// TopicEvent carries serialized events awaiting delivery.
	TopicEvent = "overwatch.event"
	// TopicSnapshot carries snapshot markers. The payload is a JSON true;
	// the snapshot document itself is assembled at delivery time so it
	// reflects current site state.
	TopicSnapshot = "overwatch.snapshot"

	// StreamName is the JetStream stream holding both topics.
	StreamName = "OVERWATCH"
	// StreamSubjects is the wildcard binding for the stream.
	StreamSubjects = "overwatch.>"
)
