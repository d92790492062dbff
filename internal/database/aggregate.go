// Overwatch - Multi-Site Monitoring and Event Aggregation
// Copyright 2026 BrightPlum
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/brightplum/overwatch

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/brightplum/overwatch/internal/metrics"
	"github.com/brightplum/overwatch/internal/models"
)

// Scope selects which snapshot rows an aggregation query sees. The default
// is latest-only: each site's newest snapshot. History widens it to every
// snapshot inside the rolling window. Site narrows either mode to one
// tenant.
type Scope struct {
	History bool
	// Site is a machine name, or empty/"all" for every tenant.
	Site string
}

// clause renders the scope as a WHERE fragment over alias sd.
func (s Scope) clause(now time.Time) (string, []interface{}) {
	var conds []string
	var args []interface{}

	if s.History {
		conds = append(conds, "sd.created_at >= ?")
		args = append(args, now.Add(-historyWindow))
	} else {
		conds = append(conds, "sd.id IN (SELECT MAX(id) FROM system_data GROUP BY site_machine_name)")
	}

	if s.Site != "" && s.Site != "all" {
		conds = append(conds, "sd.site_machine_name = ?")
		args = append(args, s.Site)
	}

	where := conds[0]
	for _, c := range conds[1:] {
		where += " AND " + c
	}
	return where, args
}

// Sites returns the dashboard overview rows for the scope.
func (db *DB) Sites(ctx context.Context, scope Scope) ([]models.SiteOverview, error) {
	where, args := scope.clause(time.Now())
	query := fmt.Sprintf(`
		SELECT sd.id, sd.site_name, sd.site_machine_name, sd.site_type,
		       sd.core_version, sd.report_time, sd.extension_count,
		       sd.all_updates, sd.security_updates, sd.errors, sd.warnings,
		       sd.status_report, sd.created_at
		FROM system_data sd
		WHERE %s
		ORDER BY sd.site_machine_name, sd.id DESC`, where)

	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, query, args...)
	metrics.RecordDBQuery("select", "system_data", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("query sites: %w", err)
	}
	defer rows.Close()

	var sites []models.SiteOverview
	for rows.Next() {
		var row models.SiteOverview
		if err := rows.Scan(
			&row.ID, &row.SiteName, &row.SiteMachineName, &row.SiteType,
			&row.CoreVersion, &row.ReportTime, &row.ExtensionCount,
			&row.AllUpdates, &row.SecurityUpdates, &row.Errors, &row.Warnings,
			&row.StatusReport, &row.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan site row: %w", err)
		}
		sites = append(sites, row)
	}
	return sites, rows.Err()
}

// Issues returns the error and warning child rows for the scope. kind
// narrows to "error" or "warning" rows; anything else returns both.
func (db *DB) Issues(ctx context.Context, scope Scope, kind string) ([]models.SiteIssue, error) {
	where, args := scope.clause(time.Now())
	if kind == models.IssueError || kind == models.IssueWarning {
		where += " AND ew.kind = ?"
		args = append(args, kind)
	}
	query := fmt.Sprintf(`
		SELECT ew.system_data_id, sd.site_machine_name, ew.title,
		       ew.description, ew.reported_at, ew.kind
		FROM error_warnings ew
		JOIN system_data sd ON sd.id = ew.system_data_id
		WHERE %s
		ORDER BY sd.site_machine_name, ew.id`, where)

	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, query, args...)
	metrics.RecordDBQuery("select", "error_warnings", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("query issues: %w", err)
	}
	defer rows.Close()

	var issues []models.SiteIssue
	for rows.Next() {
		var row models.SiteIssue
		if err := rows.Scan(
			&row.SystemDataID, &row.SiteMachineName, &row.Title,
			&row.Description, &row.Timestamp, &row.Kind,
		); err != nil {
			return nil, fmt.Errorf("scan issue row: %w", err)
		}
		issues = append(issues, row)
	}
	return issues, rows.Err()
}

// Extensions returns the extension child rows for the scope. filter
// "update" keeps rows with any update available, "security" keeps rows with
// a security update; anything else returns all rows.
func (db *DB) Extensions(ctx context.Context, scope Scope, filter string) ([]models.SiteExtension, error) {
	where, args := scope.clause(time.Now())
	switch filter {
	case "update":
		where += " AND ei.update_available"
	case "security":
		where += " AND ei.security_update"
	}
	query := fmt.Sprintf(`
		SELECT ei.system_data_id, sd.site_machine_name, ei.extension_name,
		       ei.current_version, ei.recommended_version,
		       ei.update_available, ei.security_update
		FROM extension_info ei
		JOIN system_data sd ON sd.id = ei.system_data_id
		WHERE %s
		ORDER BY sd.site_machine_name, ei.extension_name`, where)

	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, query, args...)
	metrics.RecordDBQuery("select", "extension_info", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("query extensions: %w", err)
	}
	defer rows.Close()

	var extensions []models.SiteExtension
	for rows.Next() {
		var row models.SiteExtension
		if err := rows.Scan(
			&row.SystemDataID, &row.SiteMachineName, &row.Name,
			&row.CurrentVersion, &row.RecommendedVersion,
			&row.UpdateAvailable, &row.SecurityUpdate,
		); err != nil {
			return nil, fmt.Errorf("scan extension row: %w", err)
		}
		extensions = append(extensions, row)
	}
	return extensions, rows.Err()
}

// Summary returns the cross-tenant rollup for the scope: sums over
// whichever snapshot rows the scope selects.
func (db *DB) Summary(ctx context.Context, scope Scope) (*models.SiteSummary, error) {
	where, args := scope.clause(time.Now())
	query := fmt.Sprintf(`
		SELECT COALESCE(SUM(sd.errors), 0), COALESCE(SUM(sd.warnings), 0),
		       COALESCE(SUM(sd.security_updates), 0), COALESCE(SUM(sd.all_updates), 0)
		FROM system_data sd
		WHERE %s`, where)

	start := time.Now()
	var summary models.SiteSummary
	err := db.conn.QueryRowContext(ctx, query, args...).Scan(
		&summary.Errors, &summary.Warnings,
		&summary.SecurityUpdates, &summary.AllUpdates,
	)
	metrics.RecordDBQuery("select", "system_data", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("query summary: %w", err)
	}
	return &summary, nil
}
