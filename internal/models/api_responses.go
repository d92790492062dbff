// Overwatch - Multi-Site Monitoring and Event Aggregation
// Copyright 2026 BrightPlum
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/brightplum/overwatch

package models

import "time"

// APIResponse is the standardized response wrapper used by all HTTP
// endpoints.
//
// Status is "success" or "error". Data carries the payload on success;
// Error is populated only when Status is "error".
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata contains response metadata for observability.
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
}

// APIError describes a failed request.
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// SiteOverview is one aggregated dashboard row: the joined attributes of a
// system_data record selected by the active query mode.
type SiteOverview struct {
	ID              int64     `json:"id"`
	SiteName        string    `json:"site_name"`
	SiteMachineName string    `json:"site_machine_name"`
	SiteType        string    `json:"site_type"`
	CoreVersion     string    `json:"core_version"`
	ReportTime      string    `json:"report_time"`
	ExtensionCount  int       `json:"extension_count"`
	AllUpdates      int       `json:"all_updates"`
	SecurityUpdates int       `json:"security_updates"`
	Errors          int       `json:"errors"`
	Warnings        int       `json:"warnings"`
	StatusReport    string    `json:"status_report"`
	CreatedAt       time.Time `json:"created_at"`
}

// SiteIssue is an error or warning child record joined to its snapshot row.
type SiteIssue struct {
	SystemDataID    int64  `json:"system_data_id"`
	SiteMachineName string `json:"site_machine_name"`
	Title           string `json:"title"`
	Description     string `json:"description"`
	Timestamp       string `json:"timestamp"`
	Kind            string `json:"kind"`
}

// SiteExtension is an extension-update child record joined to its snapshot
// row.
type SiteExtension struct {
	SystemDataID       int64  `json:"system_data_id"`
	SiteMachineName    string `json:"site_machine_name"`
	Name               string `json:"extension_name"`
	CurrentVersion     string `json:"current_version"`
	RecommendedVersion string `json:"recommended_version"`
	UpdateAvailable    bool   `json:"update_available"`
	SecurityUpdate     bool   `json:"security_update"`
}

// SiteSummary is the cross-tenant rollup over whichever row set the active
// query mode selected.
type SiteSummary struct {
	Errors          int `json:"errors"`
	Warnings        int `json:"warnings"`
	SecurityUpdates int `json:"security_updates"`
	AllUpdates      int `json:"all_updates"`
}
