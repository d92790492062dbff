// Overwatch - Multi-Site Monitoring and Event Aggregation
// Copyright 2026 BrightPlum
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/brightplum/overwatch

package validation

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/brightplum/overwatch/internal/models"
)

// Wire schemas use pointer fields so that a missing key is distinguishable
// from a zero value. Unknown keys are rejected outright: keyed decoding
// replaces the old positional mapping, so an arity or naming mismatch is a
// clear client error instead of silent field misalignment.

type eventWire struct {
	UUID            *string  `json:"uuid" validate:"required"`
	Title           *string  `json:"title" validate:"required"`
	Author          *string  `json:"author" validate:"required"`
	Bundle          *string  `json:"bundle" validate:"required"`
	Entity          *string  `json:"entity" validate:"required"`
	Timestamp       *float64 `json:"timestamp" validate:"required"`
	Type            *string  `json:"type" validate:"required"`
	SiteBaseURL     *string  `json:"site_base_url" validate:"required"`
	SiteMachineName *string  `json:"site_machine_name" validate:"required"`
	SiteName        *string  `json:"site_name" validate:"required"`
	Severity        *string  `json:"severity"`
	Context         *string  `json:"context"`
}

type extensionWire struct {
	Name               *string `json:"extension_name" validate:"required"`
	CurrentVersion     *string `json:"current_version" validate:"required"`
	RecommendedVersion *string `json:"recommended_version"`
	UpdateAvailable    *bool   `json:"update_available" validate:"required"`
	SecurityUpdate     *bool   `json:"security_update" validate:"required"`
}

type updatesAvailableWire struct {
	SecurityUpdates *int `json:"security_updates" validate:"required"`
	AllUpdates      *int `json:"all_updates" validate:"required"`
}

type issueWire struct {
	Title       *string `json:"title" validate:"required"`
	Description *string `json:"description"`
	Timestamp   *string `json:"timestamp" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
}

type issueGroupsWire struct {
	Errors   []issueWire `json:"errors" validate:"dive"`
	Warnings []issueWire `json:"warnings" validate:"dive"`
}

type systemDataWire struct {
	SiteName         *string               `json:"site_name" validate:"required"`
	SiteMachineName  *string               `json:"site_machine_name" validate:"required"`
	SiteType         *string               `json:"site_type" validate:"required"`
	CoreVersion      *string               `json:"core_version" validate:"required"`
	ReportTime       *string               `json:"report_time" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	Extensions       []extensionWire       `json:"extensions" validate:"dive"`
	UpdatesAvailable *updatesAvailableWire `json:"updates_available" validate:"required"`
	ExtensionsCount  *int                  `json:"extensions_count" validate:"required"`
	StatusReport     map[string]string     `json:"status_report"`
	ErrorsAndWarning *issueGroupsWire      `json:"errors_and_warnings" validate:"required"`
}

// decodeStrict decodes body into v, rejecting unknown fields and trailing
// garbage.
func decodeStrict(body []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return fmt.Errorf("unexpected trailing data")
	}
	return nil
}

// ValidateEvent validates a raw event payload: shape first, then the
// enumerated fields against the live allowed sets. On success it returns
// the decoded immutable Event; on failure no persistence may occur.
func ValidateEvent(body []byte, allowed *AllowedValues) (*models.Event, *RequestValidationError) {
	var wire eventWire
	if err := decodeStrict(body, &wire); err != nil {
		return nil, newFieldError("body", "decode", fmt.Sprintf("malformed event payload: %v", err))
	}

	if verr := ValidateStruct(&wire); verr != nil {
		return nil, verr
	}

	if !allowed.EntityAllowed(*wire.Entity) {
		return nil, newFieldError("entity", "allowed_values",
			fmt.Sprintf("entity value %q is not currently allowed", *wire.Entity))
	}
	if !allowed.TypeAllowed(*wire.Type) {
		return nil, newFieldError("type", "allowed_values",
			fmt.Sprintf("type value %q is not currently allowed", *wire.Type))
	}
	if wire.Severity != nil && !allowed.SeverityAllowed(*wire.Severity) {
		return nil, newFieldError("severity", "allowed_values",
			fmt.Sprintf("severity value %q is not currently allowed", *wire.Severity))
	}

	event := &models.Event{
		UUID:            *wire.UUID,
		Title:           *wire.Title,
		Author:          *wire.Author,
		Bundle:          *wire.Bundle,
		Entity:          *wire.Entity,
		Timestamp:       int64(*wire.Timestamp),
		Type:            *wire.Type,
		SiteBaseURL:     *wire.SiteBaseURL,
		SiteMachineName: *wire.SiteMachineName,
		SiteName:        *wire.SiteName,
	}
	if wire.Severity != nil {
		event.Severity = *wire.Severity
	}
	if wire.Context != nil {
		event.Context = *wire.Context
	}
	return event, nil
}

// ValidateSystemData validates a raw snapshot payload against the
// SystemData schema. Enumerated event fields do not apply here; the nested
// extension and issue entries are shape-checked recursively.
func ValidateSystemData(body []byte) (*models.SystemData, *RequestValidationError) {
	var wire systemDataWire
	if err := decodeStrict(body, &wire); err != nil {
		return nil, newFieldError("body", "decode", fmt.Sprintf("malformed system data payload: %v", err))
	}

	if verr := ValidateStruct(&wire); verr != nil {
		return nil, verr
	}

	data := &models.SystemData{
		SiteName:        *wire.SiteName,
		SiteMachineName: *wire.SiteMachineName,
		SiteType:        *wire.SiteType,
		CoreVersion:     *wire.CoreVersion,
		ReportTime:      *wire.ReportTime,
		ExtensionsCount: *wire.ExtensionsCount,
		StatusReport:    wire.StatusReport,
		UpdatesAvailable: models.UpdatesAvailable{
			SecurityUpdates: *wire.UpdatesAvailable.SecurityUpdates,
			AllUpdates:      *wire.UpdatesAvailable.AllUpdates,
		},
	}

	data.Extensions = make([]models.Extension, len(wire.Extensions))
	for i, ext := range wire.Extensions {
		data.Extensions[i] = models.Extension{
			Name:            *ext.Name,
			CurrentVersion:  *ext.CurrentVersion,
			UpdateAvailable: *ext.UpdateAvailable,
			SecurityUpdate:  *ext.SecurityUpdate,
		}
		if ext.RecommendedVersion != nil {
			data.Extensions[i].RecommendedVersion = *ext.RecommendedVersion
		}
	}

	data.ErrorsAndWarning.Errors = convertIssues(wire.ErrorsAndWarning.Errors, models.IssueError)
	data.ErrorsAndWarning.Warnings = convertIssues(wire.ErrorsAndWarning.Warnings, models.IssueWarning)

	return data, nil
}

func convertIssues(wires []issueWire, kind string) []models.ErrorWarningRecord {
	records := make([]models.ErrorWarningRecord, len(wires))
	for i, w := range wires {
		records[i] = models.ErrorWarningRecord{
			Title:     *w.Title,
			Timestamp: *w.Timestamp,
			Kind:      kind,
		}
		if w.Description != nil {
			records[i].Description = *w.Description
		}
	}
	return records
}
