// Overwatch - Multi-Site Monitoring and Event Aggregation
// Copyright 2026 BrightPlum
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/brightplum/overwatch

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/brightplum/overwatch/internal/logging"
	"github.com/brightplum/overwatch/internal/metrics"
	"github.com/brightplum/overwatch/internal/models"
)

// InsertEvent persists one validated event and returns its row ID.
func (db *DB) InsertEvent(ctx context.Context, event *models.Event) (int64, error) {
	start := time.Now()
	var id int64
	err := db.conn.QueryRowContext(ctx, `
		INSERT INTO events (
			uuid, title, author, bundle, entity, event_timestamp, event_type,
			site_base_url, site_machine_name, site_name, severity, context
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		event.UUID, event.Title, event.Author, event.Bundle, event.Entity,
		event.Timestamp, event.Type, event.SiteBaseURL, event.SiteMachineName,
		event.SiteName, event.Severity, event.Context,
	).Scan(&id)
	metrics.RecordDBQuery("insert", "events", time.Since(start), err)
	if err != nil {
		return 0, fmt.Errorf("insert event: %w", err)
	}
	return id, nil
}

// BatchResult reports what a snapshot persist actually stored. Child
// failures do not fail the batch; the parent row records the real counts.
type BatchResult struct {
	ParentID         int64
	IssuesSaved      int
	IssuesFailed     int
	ExtensionsSaved  int
	ExtensionsFailed int
}

// InsertSystemData persists a snapshot document: the parent row first,
// then each issue and extension child independently. A bad child is logged
// and skipped, never rolled back into a batch failure, and the parent's
// counts reflect only what was stored.
func (db *DB) InsertSystemData(ctx context.Context, data *models.SystemData) (*BatchResult, error) {
	statusReport := ""
	if data.StatusReport != nil {
		if encoded, err := json.Marshal(data.StatusReport); err == nil {
			statusReport = string(encoded)
		}
	}

	start := time.Now()
	var parentID int64
	err := db.conn.QueryRowContext(ctx, `
		INSERT INTO system_data (
			site_name, site_machine_name, site_type, core_version, report_time,
			extension_count, all_updates, security_updates, errors, warnings,
			status_report
		) VALUES (?, ?, ?, ?, ?, 0, ?, ?, 0, 0, ?)
		RETURNING id`,
		data.SiteName, data.SiteMachineName, data.SiteType, data.CoreVersion,
		data.ReportTime, data.UpdatesAvailable.AllUpdates,
		data.UpdatesAvailable.SecurityUpdates, statusReport,
	).Scan(&parentID)
	metrics.RecordDBQuery("insert", "system_data", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("insert system data: %w", err)
	}

	result := &BatchResult{ParentID: parentID}

	errorsSaved := db.insertIssues(ctx, parentID, data.ErrorsAndWarning.Errors, models.IssueError, result)
	warningsSaved := db.insertIssues(ctx, parentID, data.ErrorsAndWarning.Warnings, models.IssueWarning, result)

	for _, ext := range data.Extensions {
		if err := db.insertExtension(ctx, parentID, &ext); err != nil {
			result.ExtensionsFailed++
			metrics.ChildPersistFailures.WithLabelValues("extension").Inc()
			logging.Err(err).
				Int64("system_data_id", parentID).
				Str("extension", ext.Name).
				Msg("Failed to persist extension record")
			continue
		}
		result.ExtensionsSaved++
	}

	_, err = db.conn.ExecContext(ctx, `
		UPDATE system_data SET extension_count = ?, errors = ?, warnings = ? WHERE id = ?`,
		result.ExtensionsSaved, errorsSaved, warningsSaved, parentID)
	if err != nil {
		return nil, fmt.Errorf("update system data counts: %w", err)
	}

	return result, nil
}

func (db *DB) insertIssues(ctx context.Context, parentID int64, issues []models.ErrorWarningRecord, kind string, result *BatchResult) int {
	saved := 0
	for _, issue := range issues {
		if err := db.insertIssue(ctx, parentID, &issue, kind); err != nil {
			result.IssuesFailed++
			metrics.ChildPersistFailures.WithLabelValues("issue").Inc()
			logging.Err(err).
				Int64("system_data_id", parentID).
				Str("kind", kind).
				Str("title", issue.Title).
				Msg("Failed to persist issue record")
			continue
		}
		result.IssuesSaved++
		saved++
	}
	return saved
}

func (db *DB) insertIssue(ctx context.Context, parentID int64, issue *models.ErrorWarningRecord, kind string) error {
	if issue.Title == "" {
		return fmt.Errorf("issue has no title")
	}
	start := time.Now()
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO error_warnings (system_data_id, kind, title, description, reported_at)
		VALUES (?, ?, ?, ?, ?)`,
		parentID, kind, issue.Title, issue.Description, issue.Timestamp)
	metrics.RecordDBQuery("insert", "error_warnings", time.Since(start), err)
	return err
}

func (db *DB) insertExtension(ctx context.Context, parentID int64, ext *models.Extension) error {
	if ext.Name == "" {
		return fmt.Errorf("extension has no name")
	}
	start := time.Now()
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO extension_info (
			system_data_id, extension_name, current_version, recommended_version,
			update_available, security_update
		) VALUES (?, ?, ?, ?, ?, ?)`,
		parentID, ext.Name, ext.CurrentVersion, ext.RecommendedVersion,
		ext.UpdateAvailable, ext.SecurityUpdate)
	metrics.RecordDBQuery("insert", "extension_info", time.Since(start), err)
	return err
}
