// Overwatch - Multi-Site Monitoring and Event Aggregation
// Copyright 2026 BrightPlum
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/brightplum/overwatch

package database

import "fmt"

// schemaStatements create the sequences and tables. DuckDB has no
// auto-increment; explicit sequences feed the primary keys.
var schemaStatements = []string{
	`CREATE SEQUENCE IF NOT EXISTS seq_events_id START 1`,
	`CREATE SEQUENCE IF NOT EXISTS seq_system_data_id START 1`,
	`CREATE SEQUENCE IF NOT EXISTS seq_error_warnings_id START 1`,
	`CREATE SEQUENCE IF NOT EXISTS seq_extension_info_id START 1`,

	`CREATE TABLE IF NOT EXISTS events (
		id BIGINT PRIMARY KEY DEFAULT nextval('seq_events_id'),
		uuid VARCHAR NOT NULL,
		title VARCHAR NOT NULL,
		author VARCHAR,
		bundle VARCHAR,
		entity VARCHAR NOT NULL,
		event_timestamp BIGINT NOT NULL,
		event_type VARCHAR NOT NULL,
		site_base_url VARCHAR NOT NULL,
		site_machine_name VARCHAR NOT NULL,
		site_name VARCHAR NOT NULL,
		severity VARCHAR,
		context VARCHAR,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS system_data (
		id BIGINT PRIMARY KEY DEFAULT nextval('seq_system_data_id'),
		site_name VARCHAR NOT NULL,
		site_machine_name VARCHAR NOT NULL,
		site_type VARCHAR NOT NULL,
		core_version VARCHAR NOT NULL,
		report_time VARCHAR NOT NULL,
		extension_count INTEGER NOT NULL DEFAULT 0,
		all_updates INTEGER NOT NULL DEFAULT 0,
		security_updates INTEGER NOT NULL DEFAULT 0,
		errors INTEGER NOT NULL DEFAULT 0,
		warnings INTEGER NOT NULL DEFAULT 0,
		status_report VARCHAR,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS error_warnings (
		id BIGINT PRIMARY KEY DEFAULT nextval('seq_error_warnings_id'),
		system_data_id BIGINT NOT NULL,
		kind VARCHAR NOT NULL,
		title VARCHAR NOT NULL,
		description VARCHAR,
		reported_at VARCHAR,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS extension_info (
		id BIGINT PRIMARY KEY DEFAULT nextval('seq_extension_info_id'),
		system_data_id BIGINT NOT NULL,
		extension_name VARCHAR NOT NULL,
		current_version VARCHAR,
		recommended_version VARCHAR,
		update_available BOOLEAN NOT NULL DEFAULT FALSE,
		security_update BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE INDEX IF NOT EXISTS idx_events_machine_name ON events (site_machine_name)`,
	`CREATE INDEX IF NOT EXISTS idx_system_data_machine_name ON system_data (site_machine_name)`,
	`CREATE INDEX IF NOT EXISTS idx_error_warnings_parent ON error_warnings (system_data_id)`,
	`CREATE INDEX IF NOT EXISTS idx_extension_info_parent ON extension_info (system_data_id)`,
}

func (db *DB) createTables() error {
	for _, stmt := range schemaStatements {
		if _, err := db.conn.Exec(stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	return nil
}
