// Overwatch - Multi-Site Monitoring and Event Aggregation
// Copyright 2026 BrightPlum
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/brightplum/overwatch

// Package api implements the monitoring platform's HTTP surface: ingestion
// of events and snapshots from site agents, the token grant, and the
// aggregation endpoints the dashboard reads.
package api

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/brightplum/overwatch/internal/auth"
	"github.com/brightplum/overwatch/internal/database"
	"github.com/brightplum/overwatch/internal/logging"
	"github.com/brightplum/overwatch/internal/metrics"
	"github.com/brightplum/overwatch/internal/models"
	"github.com/brightplum/overwatch/internal/validation"
)

// maxBodySize bounds ingest payloads.
const maxBodySize = 4 << 20 // 4MB

// Handler carries the dependencies the endpoints need.
type Handler struct {
	db      *database.DB
	issuer  *auth.TokenIssuer
	allowed *validation.AllowedValues
}

// NewHandler builds the endpoint handler set.
func NewHandler(db *database.DB, issuer *auth.TokenIssuer, allowed *validation.AllowedValues) *Handler {
	return &Handler{db: db, issuer: issuer, allowed: allowed}
}

// CreateEvent ingests one event: validate against the schema and the live
// allowed sets, persist, echo back with the row ID. Status 201 plus the ID
// is the agent's signal to dequeue.
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	body, err := readBody(r)
	if err != nil {
		metrics.IngestRejected.WithLabelValues("event", "validation").Inc()
		respondError(w, http.StatusBadRequest, "INVALID_BODY", "Unable to read request body", err)
		return
	}

	event, verr := validation.ValidateEvent(body, h.allowed)
	if verr != nil {
		metrics.IngestRejected.WithLabelValues("event", "validation").Inc()
		respondValidationError(w, verr.ToAPIError())
		return
	}

	id, err := h.db.InsertEvent(r.Context(), event)
	if err != nil {
		metrics.IngestRejected.WithLabelValues("event", "database").Inc()
		respondError(w, http.StatusInternalServerError, "PERSIST_FAILED", "Failed to persist event", err)
		return
	}

	metrics.IngestAccepted.WithLabelValues("event").Inc()
	respondSuccess(w, http.StatusCreated, map[string]interface{}{
		"id":    id,
		"event": event,
	}, started)
}

// CreateSystemData ingests a snapshot document. Child record failures are
// tolerated; the response reports what was actually stored.
func (h *Handler) CreateSystemData(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	body, err := readBody(r)
	if err != nil {
		metrics.IngestRejected.WithLabelValues("system_data", "validation").Inc()
		respondError(w, http.StatusBadRequest, "INVALID_BODY", "Unable to read request body", err)
		return
	}

	data, verr := validation.ValidateSystemData(body)
	if verr != nil {
		metrics.IngestRejected.WithLabelValues("system_data", "validation").Inc()
		respondValidationError(w, verr.ToAPIError())
		return
	}

	result, err := h.db.InsertSystemData(r.Context(), data)
	if err != nil {
		metrics.IngestRejected.WithLabelValues("system_data", "database").Inc()
		respondError(w, http.StatusInternalServerError, "PERSIST_FAILED", "Failed to persist system data", err)
		return
	}

	metrics.IngestAccepted.WithLabelValues("system_data").Inc()
	respondSuccess(w, http.StatusCreated, map[string]interface{}{
		"id":                result.ParentID,
		"site_machine_name": data.SiteMachineName,
		"extensions_saved":  result.ExtensionsSaved,
		"extensions_failed": result.ExtensionsFailed,
		"issues_saved":      result.IssuesSaved,
		"issues_failed":     result.IssuesFailed,
	}, started)
}

// tokenReply matches the OAuth token response shape agents expect.
type tokenReply struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Token is the grant endpoint. Credentials are checked on every request;
// issued tokens carry an absolute expiry and are never renewed.
func (h *Handler) Token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Malformed form body", err)
		return
	}

	grantType := r.PostFormValue("grant_type")
	if grantType != "password" && grantType != "client_credentials" {
		metrics.TokensIssued.WithLabelValues("rejected").Inc()
		respondError(w, http.StatusBadRequest, "UNSUPPORTED_GRANT_TYPE", "Unsupported grant type", nil)
		return
	}

	clientID := r.PostFormValue("client_id")
	if err := h.issuer.Authenticate(clientID, r.PostFormValue("client_secret")); err != nil {
		metrics.TokensIssued.WithLabelValues("rejected").Inc()
		respondError(w, http.StatusUnauthorized, "INVALID_CLIENT", "Client authentication failed", nil)
		return
	}

	token, expiresIn, err := h.issuer.Issue(clientID, r.PostFormValue("scope"))
	if err != nil {
		metrics.TokensIssued.WithLabelValues("rejected").Inc()
		respondError(w, http.StatusInternalServerError, "TOKEN_FAILED", "Failed to issue token", err)
		return
	}

	metrics.TokensIssued.WithLabelValues("issued").Inc()
	logging.Info().Str("client_id", clientID).Msg("Access token issued")

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	data, _ := json.Marshal(tokenReply{AccessToken: token, TokenType: "Bearer", ExpiresIn: expiresIn})
	w.Write(data)
}

// Sites returns the per-site overview rows for the requested scope.
func (h *Handler) Sites(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	sites, err := h.db.Sites(r.Context(), scopeFromRequest(r))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "QUERY_FAILED", "Failed to query sites", err)
		return
	}
	if sites == nil {
		sites = []models.SiteOverview{}
	}
	respondSuccess(w, http.StatusOK, sites, started)
}

// Issues returns error and warning records for the requested scope. The
// kind parameter narrows to errors or warnings only.
func (h *Handler) Issues(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	kind := strings.ToLower(r.URL.Query().Get("kind"))
	issues, err := h.db.Issues(r.Context(), scopeFromRequest(r), kind)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "QUERY_FAILED", "Failed to query issues", err)
		return
	}
	if issues == nil {
		issues = []models.SiteIssue{}
	}
	respondSuccess(w, http.StatusOK, issues, started)
}

// Extensions returns extension records for the requested scope. The filter
// parameter narrows to rows with updates or security updates pending.
func (h *Handler) Extensions(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	filter := strings.ToLower(r.URL.Query().Get("filter"))
	extensions, err := h.db.Extensions(r.Context(), scopeFromRequest(r), filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "QUERY_FAILED", "Failed to query extensions", err)
		return
	}
	if extensions == nil {
		extensions = []models.SiteExtension{}
	}
	respondSuccess(w, http.StatusOK, extensions, started)
}

// Summary returns the cross-tenant rollup for the requested scope.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	summary, err := h.db.Summary(r.Context(), scopeFromRequest(r))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "QUERY_FAILED", "Failed to query summary", err)
		return
	}
	respondSuccess(w, http.StatusOK, summary, started)
}

// allowedValuesPayload is the admin endpoint's wire shape.
type allowedValuesPayload struct {
	Entities   []string `json:"entities"`
	Severities []string `json:"severities"`
	Types      []string `json:"types"`
}

// GetAllowedValues returns the live enumerated-value sets.
func (h *Handler) GetAllowedValues(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	entities, severities, types := h.allowed.Snapshot()
	respondSuccess(w, http.StatusOK, allowedValuesPayload{
		Entities:   entities,
		Severities: severities,
		Types:      types,
	}, started)
}

// PutAllowedValues replaces the live sets. Requests validated after this
// returns see the new configuration.
func (h *Handler) PutAllowedValues(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	body, err := readBody(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", "Unable to read request body", err)
		return
	}

	var payload allowedValuesPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", "Malformed allowed values payload", err)
		return
	}
	if len(payload.Entities) == 0 || len(payload.Severities) == 0 || len(payload.Types) == 0 {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", "All three allowed value sets must be non-empty", nil)
		return
	}

	h.allowed.Replace(payload.Entities, payload.Severities, payload.Types)
	logging.Info().
		Strs("entities", payload.Entities).
		Strs("severities", payload.Severities).
		Strs("types", payload.Types).
		Msg("Allowed value sets replaced")

	respondSuccess(w, http.StatusOK, payload, started)
}

// HealthLive reports process liveness.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, http.StatusOK, map[string]string{"status": "alive"}, time.Now())
}

// HealthReady reports readiness: the database must answer.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	if err := h.db.Ping(); err != nil {
		respondError(w, http.StatusServiceUnavailable, "NOT_READY", "Database unavailable", err)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]string{"status": "ready"}, started)
}

func readBody(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxBodySize {
		return nil, errors.New("request body too large")
	}
	return body, nil
}
