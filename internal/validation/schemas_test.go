// Overwatch - Multi-Site Monitoring and Event Aggregation
// Copyright 2026 BrightPlum
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/brightplum/overwatch

package validation

import (
	"strings"
	"testing"

	"github.com/brightplum/overwatch/internal/config"
)

func testAllowedValues() *AllowedValues {
	return NewAllowedValues(&config.IngestConfig{
		AllowedEntities:   []string{"node", "user", "block", "error"},
		AllowedSeverities: []string{"low", "high"},
		AllowedTypes:      []string{"insert", "update", "delete"},
	})
}

func validEventJSON() string {
	return `{
		"uuid": "7b1deb4d-3b7d-4bad-9bdd-2b0d7b3dcb6d",
		"title": "Example article",
		"author": "editor",
		"bundle": "article",
		"entity": "node",
		"timestamp": 1756400000,
		"type": "insert",
		"site_base_url": "https://alpha.example",
		"site_machine_name": "alpha_site",
		"site_name": "Alpha Site",
		"severity": "low",
		"context": ""
	}`
}

func TestValidateEventValid(t *testing.T) {
	event, verr := ValidateEvent([]byte(validEventJSON()), testAllowedValues())
	if verr != nil {
		t.Fatalf("expected valid event, got: %v", verr)
	}
	if event.Entity != "node" || event.Type != "insert" {
		t.Errorf("decoded fields wrong: entity=%q type=%q", event.Entity, event.Type)
	}
	if event.Timestamp != 1756400000 {
		t.Errorf("timestamp = %d, want 1756400000", event.Timestamp)
	}
	if event.SiteMachineName != "alpha_site" {
		t.Errorf("site_machine_name = %q", event.SiteMachineName)
	}
}

func TestValidateEventMissingFields(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		field   string
	}{
		{
			name:    "missing uuid",
			payload: strings.Replace(validEventJSON(), `"uuid": "7b1deb4d-3b7d-4bad-9bdd-2b0d7b3dcb6d",`, "", 1),
			field:   "UUID",
		},
		{
			name:    "missing entity",
			payload: strings.Replace(validEventJSON(), `"entity": "node",`, "", 1),
			field:   "Entity",
		},
		{
			name:    "missing timestamp",
			payload: strings.Replace(validEventJSON(), `"timestamp": 1756400000,`, "", 1),
			field:   "Timestamp",
		},
		{
			name:    "missing site_name",
			payload: strings.Replace(validEventJSON(), `"site_name": "Alpha Site",`, "", 1),
			field:   "SiteName",
		},
	}

	allowed := testAllowedValues()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, verr := ValidateEvent([]byte(tt.payload), allowed)
			if verr == nil {
				t.Fatal("expected validation error")
			}
			found := false
			for _, fe := range verr.Errors() {
				if fe.Field() == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("expected failure on field %s, got: %v", tt.field, verr)
			}
		})
	}
}

func TestValidateEventWrongTypes(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{
			name:    "timestamp as string",
			payload: strings.Replace(validEventJSON(), `"timestamp": 1756400000`, `"timestamp": "yesterday"`, 1),
		},
		{
			name:    "title as number",
			payload: strings.Replace(validEventJSON(), `"title": "Example article"`, `"title": 7`, 1),
		},
		{
			name:    "not json at all",
			payload: "uuid,title,author",
		},
		{
			name:    "empty body",
			payload: "",
		},
	}

	allowed := testAllowedValues()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, verr := ValidateEvent([]byte(tt.payload), allowed); verr == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestValidateEventUnknownFieldRejected(t *testing.T) {
	payload := strings.Replace(validEventJSON(), `"context": ""`, `"context": "", "surprise": true`, 1)
	_, verr := ValidateEvent([]byte(payload), testAllowedValues())
	if verr == nil {
		t.Fatal("expected unknown field to be rejected")
	}
}

func TestValidateEventEnumRejection(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		field   string
	}{
		{
			name:    "unknown entity",
			payload: strings.Replace(validEventJSON(), `"entity": "node"`, `"entity": "comment"`, 1),
			field:   "entity",
		},
		{
			name:    "unknown type",
			payload: strings.Replace(validEventJSON(), `"type": "insert"`, `"type": "publish"`, 1),
			field:   "type",
		},
		{
			name:    "unknown severity",
			payload: strings.Replace(validEventJSON(), `"severity": "low"`, `"severity": "critical"`, 1),
			field:   "severity",
		},
	}

	allowed := testAllowedValues()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, verr := ValidateEvent([]byte(tt.payload), allowed)
			if verr == nil {
				t.Fatal("expected enum rejection")
			}
			if got := verr.Errors()[0].Field(); got != tt.field {
				t.Errorf("rejected field = %q, want %q", got, tt.field)
			}
		})
	}
}

// Validation outcomes must track the live sets: the same payload can flip
// between accepted and rejected when an admin changes the configuration.
func TestValidateEventLiveAllowedValues(t *testing.T) {
	allowed := testAllowedValues()
	payload := []byte(strings.Replace(validEventJSON(), `"entity": "node"`, `"entity": "comment"`, 1))

	if _, verr := ValidateEvent(payload, allowed); verr == nil {
		t.Fatal("comment entity should be rejected under initial sets")
	}

	allowed.Replace(
		[]string{"node", "user", "block", "error", "comment"},
		[]string{"low", "high"},
		[]string{"insert", "update", "delete"},
	)

	if _, verr := ValidateEvent(payload, allowed); verr != nil {
		t.Fatalf("comment entity should be accepted after Replace: %v", verr)
	}

	allowed.Replace([]string{"node"}, []string{"low"}, []string{"insert"})

	if _, verr := ValidateEvent(payload, allowed); verr == nil {
		t.Fatal("comment entity should be rejected again after the sets shrank")
	}
}

func validSystemDataJSON() string {
	return `{
		"site_name": "Alpha Site",
		"site_machine_name": "alpha_site",
		"site_type": "drupal",
		"core_version": "10.3.1",
		"report_time": "2026-08-29T06:00:00Z",
		"extensions": [
			{
				"extension_name": "pathauto",
				"current_version": "8.x-1.12",
				"recommended_version": "8.x-1.13",
				"update_available": true,
				"security_update": false
			}
		],
		"updates_available": {"security_updates": 0, "all_updates": 1},
		"extensions_count": 1,
		"status_report": {"cron": "Last run 2 minutes ago"},
		"errors_and_warnings": {
			"errors": [
				{"title": "Cron overdue", "description": "Cron has not run", "timestamp": "2026-08-29T05:00:00Z"}
			],
			"warnings": []
		}
	}`
}

func TestValidateSystemDataValid(t *testing.T) {
	data, verr := ValidateSystemData([]byte(validSystemDataJSON()))
	if verr != nil {
		t.Fatalf("expected valid system data, got: %v", verr)
	}
	if data.SiteMachineName != "alpha_site" {
		t.Errorf("site_machine_name = %q", data.SiteMachineName)
	}
	if len(data.Extensions) != 1 || data.Extensions[0].Name != "pathauto" {
		t.Errorf("extensions not decoded: %+v", data.Extensions)
	}
	if data.UpdatesAvailable.AllUpdates != 1 {
		t.Errorf("all_updates = %d, want 1", data.UpdatesAvailable.AllUpdates)
	}
	if len(data.ErrorsAndWarning.Errors) != 1 {
		t.Fatalf("errors = %d, want 1", len(data.ErrorsAndWarning.Errors))
	}
	if data.ErrorsAndWarning.Errors[0].Kind != "error" {
		t.Errorf("error record kind = %q, want error", data.ErrorsAndWarning.Errors[0].Kind)
	}
}

func TestValidateSystemDataInvalid(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{
			name:    "missing site_name",
			payload: strings.Replace(validSystemDataJSON(), `"site_name": "Alpha Site",`, "", 1),
		},
		{
			name:    "bad report_time",
			payload: strings.Replace(validSystemDataJSON(), `"report_time": "2026-08-29T06:00:00Z"`, `"report_time": "today"`, 1),
		},
		{
			name:    "extension missing name",
			payload: strings.Replace(validSystemDataJSON(), `"extension_name": "pathauto",`, "", 1),
		},
		{
			name:    "unknown top-level field",
			payload: strings.Replace(validSystemDataJSON(), `"extensions_count": 1,`, `"extensions_count": 1, "bonus": 2,`, 1),
		},
		{
			name:    "missing updates_available",
			payload: strings.Replace(validSystemDataJSON(), `"updates_available": {"security_updates": 0, "all_updates": 1},`, "", 1),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, verr := ValidateSystemData([]byte(tt.payload)); verr == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestToAPIErrorShape(t *testing.T) {
	payload := strings.Replace(validEventJSON(), `"entity": "node"`, `"entity": "comment"`, 1)
	_, verr := ValidateEvent([]byte(payload), testAllowedValues())
	if verr == nil {
		t.Fatal("expected validation error")
	}
	apiErr := verr.ToAPIError()
	if apiErr.Code != "VALIDATION_ERROR" {
		t.Errorf("code = %q, want VALIDATION_ERROR", apiErr.Code)
	}
	if apiErr.Message == "" {
		t.Error("message should not be empty")
	}
}
