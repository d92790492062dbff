// Overwatch - Multi-Site Monitoring and Event Aggregation
// Copyright 2026 BrightPlum
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/brightplum/overwatch

package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/brightplum/overwatch/internal/database"
	"github.com/brightplum/overwatch/internal/logging"
	"github.com/brightplum/overwatch/internal/models"
)

// respondJSON writes a standardized API response.
func respondJSON(w http.ResponseWriter, status int, response *models.APIResponse) {
	w.Header().Set("Content-Type", "application/json")

	data, err := json.Marshal(response)
	if err != nil {
		logging.Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Err(err).Msg("Failed to write JSON response")
	}
}

// respondSuccess wraps data in a success envelope with query timing.
func respondSuccess(w http.ResponseWriter, status int, data interface{}, started time.Time) {
	respondJSON(w, status, &models.APIResponse{
		Status: "success",
		Data:   data,
		Metadata: models.Metadata{
			Timestamp:   time.Now(),
			QueryTimeMS: time.Since(started).Milliseconds(),
		},
	})
}

// respondError writes an error envelope and logs the underlying cause.
func respondError(w http.ResponseWriter, status int, code, message string, err error) {
	if err != nil {
		logging.Err(err).Str("code", code).Msg("API error")
	}
	respondJSON(w, status, &models.APIResponse{
		Status:   "error",
		Metadata: models.Metadata{Timestamp: time.Now()},
		Error:    &models.APIError{Code: code, Message: message},
	})
}

// respondValidationError writes the validator's error shape with a 400.
func respondValidationError(w http.ResponseWriter, apiErr *models.APIError) {
	respondJSON(w, http.StatusBadRequest, &models.APIResponse{
		Status:   "error",
		Metadata: models.Metadata{Timestamp: time.Now()},
		Error:    apiErr,
	})
}

// scopeFromRequest parses the aggregation query parameters. client_site
// defaults to all tenants; history switches from latest-only to the
// rolling window.
func scopeFromRequest(r *http.Request) database.Scope {
	scope := database.Scope{
		Site: r.URL.Query().Get("client_site"),
	}
	switch strings.ToLower(r.URL.Query().Get("history")) {
	case "1", "true", "yes":
		scope.History = true
	}
	return scope
}
