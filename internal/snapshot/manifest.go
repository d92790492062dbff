// Overwatch - Multi-Site Monitoring and Event Aggregation
// Copyright 2026 BrightPlum
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/brightplum/overwatch

package snapshot

import (
	"context"
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/brightplum/overwatch/internal/models"
)

// manifest is the YAML shape of the site manifest file.
type manifest struct {
	Extensions []struct {
		Name               string `koanf:"name"`
		CurrentVersion     string `koanf:"current_version"`
		RecommendedVersion string `koanf:"recommended_version"`
		SecurityUpdate     bool   `koanf:"security_update"`
	} `koanf:"extensions"`
	StatusReport map[string]string `koanf:"status_report"`
	Errors       []manifestIssue   `koanf:"errors"`
	Warnings     []manifestIssue   `koanf:"warnings"`
}

type manifestIssue struct {
	Title       string `koanf:"title"`
	Description string `koanf:"description"`
	Timestamp   string `koanf:"timestamp"`
}

// ManifestSource reads extensions, requirement checks, and outstanding
// issues from a YAML site manifest maintained alongside the monitored
// site. The file is re-read on every build so snapshots track its current
// contents.
type ManifestSource struct {
	path string
}

// NewManifestSource returns a source reading from path.
func NewManifestSource(path string) *ManifestSource {
	return &ManifestSource{path: path}
}

func (s *ManifestSource) load() (*manifest, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(s.path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load site manifest %s: %w", s.path, err)
	}
	var m manifest
	if err := k.Unmarshal("", &m); err != nil {
		return nil, fmt.Errorf("unmarshal site manifest: %w", err)
	}
	return &m, nil
}

// Extensions implements UpdateSource.
func (s *ManifestSource) Extensions(ctx context.Context) ([]RawExtension, error) {
	m, err := s.load()
	if err != nil {
		return nil, err
	}
	extensions := make([]RawExtension, len(m.Extensions))
	for i, ext := range m.Extensions {
		extensions[i] = RawExtension{
			Name:               ext.Name,
			CurrentVersion:     ext.CurrentVersion,
			RecommendedVersion: ext.RecommendedVersion,
			SecurityUpdate:     ext.SecurityUpdate,
		}
	}
	return extensions, nil
}

// StatusReport implements HealthSource.
func (s *ManifestSource) StatusReport(ctx context.Context) (map[string]string, error) {
	m, err := s.load()
	if err != nil {
		return nil, err
	}
	if m.StatusReport == nil {
		return map[string]string{}, nil
	}
	return m.StatusReport, nil
}

// Issues implements HealthSource.
func (s *ManifestSource) Issues(ctx context.Context) ([]models.ErrorWarningRecord, []models.ErrorWarningRecord, error) {
	m, err := s.load()
	if err != nil {
		return nil, nil, err
	}
	return convertManifestIssues(m.Errors, models.IssueError),
		convertManifestIssues(m.Warnings, models.IssueWarning), nil
}

func convertManifestIssues(issues []manifestIssue, kind string) []models.ErrorWarningRecord {
	records := make([]models.ErrorWarningRecord, len(issues))
	for i, issue := range issues {
		records[i] = models.ErrorWarningRecord{
			Title:       issue.Title,
			Description: issue.Description,
			Timestamp:   issue.Timestamp,
			Kind:        kind,
		}
	}
	return records
}
