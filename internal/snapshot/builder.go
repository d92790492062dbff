// Overwatch - Multi-Site Monitoring and Event Aggregation
// Copyright 2026 BrightPlum
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/brightplum/overwatch

// Package snapshot assembles site-health snapshot documents. The scheduler
// only enqueues lightweight markers; the document is built at delivery
// time so it always reflects the site's state at send, not at enqueue.
package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/brightplum/overwatch/internal/config"
	"github.com/brightplum/overwatch/internal/identity"
	"github.com/brightplum/overwatch/internal/metrics"
	"github.com/brightplum/overwatch/internal/models"
)

// RawExtension is an extension as reported by an update source, before the
// update flag is derived.
type RawExtension struct {
	Name               string
	CurrentVersion     string
	RecommendedVersion string
	SecurityUpdate     bool
}

// UpdateSource reports the site's installed extensions and their known
// recommended versions.
type UpdateSource interface {
	Extensions(ctx context.Context) ([]RawExtension, error)
}

// HealthSource reports the site's requirement checks.
type HealthSource interface {
	StatusReport(ctx context.Context) (map[string]string, error)
	Issues(ctx context.Context) (errors, warnings []models.ErrorWarningRecord, err error)
}

// Builder assembles complete snapshot documents from the configured
// sources.
type Builder struct {
	site    *config.SiteConfig
	updates UpdateSource
	health  HealthSource

	machineName string
	now         func() time.Time
}

// NewBuilder creates a Builder for the configured site.
func NewBuilder(site *config.SiteConfig, updates UpdateSource, health HealthSource) *Builder {
	return &Builder{
		site:        site,
		updates:     updates,
		health:      health,
		machineName: identity.MachineName(site.Name),
		now:         time.Now,
	}
}

// Build assembles the snapshot document. Unlike capture, a snapshot is
// all-or-nothing: if a source fails the whole build fails and the queued
// marker is retried later.
func (b *Builder) Build(ctx context.Context) (*models.SystemData, error) {
	start := time.Now()
	defer func() {
		metrics.SnapshotBuildDuration.Observe(time.Since(start).Seconds())
	}()

	raw, err := b.updates.Extensions(ctx)
	if err != nil {
		return nil, fmt.Errorf("read extensions: %w", err)
	}

	status, err := b.health.StatusReport(ctx)
	if err != nil {
		return nil, fmt.Errorf("read status report: %w", err)
	}

	issueErrors, issueWarnings, err := b.health.Issues(ctx)
	if err != nil {
		return nil, fmt.Errorf("read issues: %w", err)
	}

	extensions := make([]models.Extension, len(raw))
	securityUpdates := 0
	allUpdates := 0
	for i, ext := range raw {
		extensions[i] = models.Extension{
			Name:               ext.Name,
			CurrentVersion:     ext.CurrentVersion,
			RecommendedVersion: ext.RecommendedVersion,
			UpdateAvailable:    updateAvailable(ext),
			SecurityUpdate:     ext.SecurityUpdate,
		}
		if extensions[i].SecurityUpdate {
			securityUpdates++
		}
		if extensions[i].UpdateAvailable {
			allUpdates++
		}
	}

	return &models.SystemData{
		SiteName:        b.site.Name,
		SiteType:        b.site.Type,
		SiteMachineName: b.machineName,
		CoreVersion:     b.site.CoreVersion,
		ReportTime:      b.now().UTC().Format(time.RFC3339),
		Extensions:      extensions,
		UpdatesAvailable: models.UpdatesAvailable{
			SecurityUpdates: securityUpdates,
			AllUpdates:      allUpdates,
		},
		ExtensionsCount: len(extensions),
		StatusReport:    status,
		ErrorsAndWarning: models.ErrorsAndWarnings{
			Errors:   issueErrors,
			Warnings: issueWarnings,
		},
	}, nil
}

// updateAvailable derives the per-extension update flag. When a
// recommended version is known, any divergence from it counts as an
// available update. When none is known, the security flag alone decides.
func updateAvailable(ext RawExtension) bool {
	if ext.RecommendedVersion != "" {
		return ext.CurrentVersion != ext.RecommendedVersion
	}
	return ext.SecurityUpdate
}
