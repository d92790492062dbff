// Overwatch - Multi-Site Monitoring and Event Aggregation
// Copyright 2026 BrightPlum
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/brightplum/overwatch

// Package models defines the wire and domain types shared by the agent and
// the monitoring server: operational events, site health snapshots, and the
// standard API response envelope.
package models

// Event severities. Lifecycle actions report "low"; captured error logs
// report "high".
const (
	SeverityLow  = "low"
	SeverityHigh = "high"
)

// Lifecycle actions recorded for watched entities.
const (
	ActionInsert = "insert"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// Entity kinds watched by the capture layer. Captured error logs use
// EntityError.
const (
	EntityNode  = "node"
	EntityUser  = "user"
	EntityBlock = "block"
	EntityError = "error"
)

// Event is an operational event reported by a tenant site: an entity
// lifecycle action or a captured error-level log emission. Events are
// immutable once created.
type Event struct {
	UUID            string `json:"uuid"`
	Title           string `json:"title"`
	Author          string `json:"author"`
	Bundle          string `json:"bundle"`
	Entity          string `json:"entity"`
	Timestamp       int64  `json:"timestamp"`
	Type            string `json:"type"`
	SiteBaseURL     string `json:"site_base_url"`
	SiteMachineName string `json:"site_machine_name"`
	SiteName        string `json:"site_name"`
	Severity        string `json:"severity"`
	// Context is an opaque serialized blob. The capture layer stores it
	// without interpreting it and the server persists it verbatim.
	Context string `json:"context"`
}
