// Overwatch - Multi-Site Monitoring and Event Aggregation
// Copyright 2026 BrightPlum
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/brightplum/overwatch

package snapshot

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/brightplum/overwatch/internal/config"
	"github.com/brightplum/overwatch/internal/models"
)

type stubSource struct {
	extensions []RawExtension
	status     map[string]string
	errs       []models.ErrorWarningRecord
	warns      []models.ErrorWarningRecord
	fail       error
}

func (s *stubSource) Extensions(ctx context.Context) ([]RawExtension, error) {
	if s.fail != nil {
		return nil, s.fail
	}
	return s.extensions, nil
}

func (s *stubSource) StatusReport(ctx context.Context) (map[string]string, error) {
	if s.fail != nil {
		return nil, s.fail
	}
	return s.status, nil
}

func (s *stubSource) Issues(ctx context.Context) ([]models.ErrorWarningRecord, []models.ErrorWarningRecord, error) {
	if s.fail != nil {
		return nil, nil, s.fail
	}
	return s.errs, s.warns, nil
}

func testBuilder(source *stubSource) *Builder {
	b := NewBuilder(&config.SiteConfig{
		Name:        "Alpha Site",
		BaseURL:     "https://alpha.example",
		Type:        "drupal",
		CoreVersion: "10.3.1",
	}, source, source)
	b.now = func() time.Time { return time.Date(2026, 8, 29, 6, 0, 0, 0, time.UTC) }
	return b
}

func TestBuildAssemblesDocument(t *testing.T) {
	source := &stubSource{
		extensions: []RawExtension{
			{Name: "pathauto", CurrentVersion: "1.12", RecommendedVersion: "1.13"},
			{Name: "token", CurrentVersion: "1.9", RecommendedVersion: "1.9"},
		},
		status: map[string]string{"cron": "ok"},
		errs:   []models.ErrorWarningRecord{{Title: "Cron overdue", Timestamp: "2026-08-29T05:00:00Z", Kind: models.IssueError}},
	}

	data, err := testBuilder(source).Build(context.Background())
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	if data.SiteMachineName != "alpha_site" {
		t.Errorf("machine name = %q", data.SiteMachineName)
	}
	if data.ReportTime != "2026-08-29T06:00:00Z" {
		t.Errorf("report time = %q", data.ReportTime)
	}
	if data.ExtensionsCount != 2 {
		t.Errorf("extensions_count = %d, want 2", data.ExtensionsCount)
	}
	if data.UpdatesAvailable.AllUpdates != 1 || data.UpdatesAvailable.SecurityUpdates != 0 {
		t.Errorf("updates_available = %+v", data.UpdatesAvailable)
	}
	if len(data.ErrorsAndWarning.Errors) != 1 {
		t.Errorf("errors = %d, want 1", len(data.ErrorsAndWarning.Errors))
	}
}

func TestUpdateAvailableDerivation(t *testing.T) {
	tests := []struct {
		name string
		ext  RawExtension
		want bool
	}{
		{
			name: "behind recommended",
			ext:  RawExtension{CurrentVersion: "1.0", RecommendedVersion: "1.1"},
			want: true,
		},
		{
			name: "at recommended",
			ext:  RawExtension{CurrentVersion: "1.1", RecommendedVersion: "1.1"},
			want: false,
		},
		{
			name: "at recommended but security flagged",
			ext:  RawExtension{CurrentVersion: "1.1", RecommendedVersion: "1.1", SecurityUpdate: true},
			want: false,
		},
		{
			name: "no recommended, security flagged",
			ext:  RawExtension{CurrentVersion: "1.0", SecurityUpdate: true},
			want: true,
		},
		{
			name: "no recommended, no flag",
			ext:  RawExtension{CurrentVersion: "1.0"},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := updateAvailable(tt.ext); got != tt.want {
				t.Errorf("updateAvailable(%+v) = %v, want %v", tt.ext, got, tt.want)
			}
		})
	}
}

func TestBuildFailsWhenSourceFails(t *testing.T) {
	source := &stubSource{fail: errors.New("manifest unreadable")}
	if _, err := testBuilder(source).Build(context.Background()); err == nil {
		t.Fatal("expected build failure when a source fails")
	}
}

func TestManifestSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "site-manifest.yaml")
	content := `
extensions:
  - name: pathauto
    current_version: "1.12"
    recommended_version: "1.13"
  - name: views_bulk
    current_version: "4.2"
    security_update: true
status_report:
  cron: "Last run 2 minutes ago"
  database: "ok"
errors:
  - title: Cron overdue
    description: Cron has not run for a day
    timestamp: "2026-08-29T05:00:00Z"
warnings:
  - title: Modules outdated
    timestamp: "2026-08-28T00:00:00Z"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	source := NewManifestSource(path)
	ctx := context.Background()

	extensions, err := source.Extensions(ctx)
	if err != nil {
		t.Fatalf("extensions: %v", err)
	}
	if len(extensions) != 2 {
		t.Fatalf("extensions = %d, want 2", len(extensions))
	}
	if extensions[1].Name != "views_bulk" || !extensions[1].SecurityUpdate {
		t.Errorf("second extension wrong: %+v", extensions[1])
	}

	status, err := source.StatusReport(ctx)
	if err != nil {
		t.Fatalf("status report: %v", err)
	}
	if status["database"] != "ok" {
		t.Errorf("status report = %v", status)
	}

	errs, warns, err := source.Issues(ctx)
	if err != nil {
		t.Fatalf("issues: %v", err)
	}
	if len(errs) != 1 || errs[0].Kind != models.IssueError {
		t.Errorf("errors = %+v", errs)
	}
	if len(warns) != 1 || warns[0].Kind != models.IssueWarning {
		t.Errorf("warnings = %+v", warns)
	}
}

func TestManifestSourceMissingFile(t *testing.T) {
	source := NewManifestSource(filepath.Join(t.TempDir(), "absent.yaml"))
	if _, err := source.Extensions(context.Background()); err == nil {
		t.Fatal("expected error for missing manifest")
	}
}
