// Overwatch - Multi-Site Monitoring and Event Aggregation
// Copyright 2026 BrightPlum
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/brightplum/overwatch

package models

// Issue kinds for ErrorWarningRecord.
const (
	IssueError   = "error"
	IssueWarning = "warning"
)

// SystemData is a point-in-time health snapshot for one tenant site.
// One snapshot equals one report; snapshots are immutable once created.
type SystemData struct {
	SiteName         string            `json:"site_name"`
	SiteType         string            `json:"site_type"`
	SiteMachineName  string            `json:"site_machine_name"`
	CoreVersion      string            `json:"core_version"`
	ReportTime       string            `json:"report_time"`
	Extensions       []Extension       `json:"extensions"`
	UpdatesAvailable UpdatesAvailable  `json:"updates_available"`
	ExtensionsCount  int               `json:"extensions_count"`
	StatusReport     map[string]string `json:"status_report"`
	ErrorsAndWarning ErrorsAndWarnings `json:"errors_and_warnings"`
}

// Extension reports update status for a single installed extension.
//
// UpdateAvailable is true whenever CurrentVersion differs from
// RecommendedVersion, or whenever the update source flags a security update
// even with no recommended version published.
type Extension struct {
	Name               string `json:"extension_name"`
	CurrentVersion     string `json:"current_version"`
	RecommendedVersion string `json:"recommended_version"`
	UpdateAvailable    bool   `json:"update_available"`
	SecurityUpdate     bool   `json:"security_update"`
}

// UpdatesAvailable aggregates the per-extension update flags.
type UpdatesAvailable struct {
	SecurityUpdates int `json:"security_updates"`
	AllUpdates      int `json:"all_updates"`
}

// ErrorsAndWarnings groups status-report issues by severity.
type ErrorsAndWarnings struct {
	Errors   []ErrorWarningRecord `json:"errors"`
	Warnings []ErrorWarningRecord `json:"warnings"`
}

// ErrorWarningRecord is a single error or warning from a tenant's status
// report. Kind is set server-side from the group the record arrived in and
// is not part of the wire format.
type ErrorWarningRecord struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Timestamp   string `json:"timestamp"`
	Kind        string `json:"-"`
}
