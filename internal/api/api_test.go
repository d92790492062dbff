// Overwatch - Multi-Site Monitoring and Event Aggregation
// Copyright 2026 BrightPlum
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/brightplum/overwatch

package api

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/brightplum/overwatch/internal/auth"
	"github.com/brightplum/overwatch/internal/config"
	"github.com/brightplum/overwatch/internal/database"
	"github.com/brightplum/overwatch/internal/validation"
)

const testTokenSecret = "0123456789abcdef0123456789abcdef"

type testEnv struct {
	server *httptest.Server
	db     *database.DB
	token  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.NewMemory()
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	hash, err := auth.HashClientSecret("agent-secret")
	if err != nil {
		t.Fatalf("hash secret: %v", err)
	}
	security := &config.SecurityConfig{
		TokenSecret:      testTokenSecret,
		TokenTTL:         time.Hour,
		ClientID:         "agent-1",
		ClientSecretHash: hash,
		RateLimitReqs:    1000,
		RateLimitWindow:  time.Minute,
		CORSOrigins:      []string{"*"},
	}
	issuer, err := auth.NewTokenIssuer(security)
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}

	allowed := validation.NewAllowedValues(&config.IngestConfig{
		AllowedEntities:   []string{"node", "user", "block", "error"},
		AllowedSeverities: []string{"low", "high"},
		AllowedTypes:      []string{"insert", "update", "delete"},
	})

	handler := NewHandler(db, issuer, allowed)
	server := httptest.NewServer(NewRouter(handler, issuer, security))
	t.Cleanup(server.Close)

	token, _, err := issuer.Issue("agent-1", "overwatch")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	return &testEnv{server: server, db: db, token: token}
}

func (e *testEnv) do(t *testing.T, method, path, body string, authed bool) (*http.Response, map[string]interface{}) {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, decoded
}

func validEventBody() string {
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
		"severity": "low"
	}`
}

func validSystemDataBody(machineName string) string {
	return `{
		"site_name": "Alpha Site",
		"site_machine_name": "` + machineName + `",
		"site_type": "drupal",
		"core_version": "10.3.1",
		"report_time": "2026-08-29T06:00:00Z",
		"extensions": [
			{"extension_name": "pathauto", "current_version": "1.12", "recommended_version": "1.13", "update_available": true, "security_update": false}
		],
		"updates_available": {"security_updates": 0, "all_updates": 1},
		"extensions_count": 1,
		"status_report": {"cron": "ok"},
		"errors_and_warnings": {
			"errors": [{"title": "Cron overdue", "timestamp": "2026-08-29T05:00:00Z"}],
			"warnings": []
		}
	}`
}

func TestTokenGrant(t *testing.T) {
	env := newTestEnv(t)

	form := url.Values{
		"grant_type":    {"password"},
		"client_id":     {"agent-1"},
		"client_secret": {"agent-secret"},
	}
	resp, err := http.PostForm(env.server.URL+"/oauth/token", form)
	if err != nil {
		t.Fatalf("post form: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var reply struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if reply.AccessToken == "" || reply.TokenType != "Bearer" || reply.ExpiresIn != 3600 {
		t.Errorf("token reply = %+v", reply)
	}
}

func TestTokenGrantRejectsBadCredentials(t *testing.T) {
	env := newTestEnv(t)

	form := url.Values{
		"grant_type":    {"password"},
		"client_id":     {"agent-1"},
		"client_secret": {"wrong"},
	}
	resp, err := http.PostForm(env.server.URL+"/oauth/token", form)
	if err != nil {
		t.Fatalf("post form: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestCreateEventRequiresAuth(t *testing.T) {
	env := newTestEnv(t)
	resp, _ := env.do(t, http.MethodPost, "/api/overwatch/event", validEventBody(), false)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestCreateEvent(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodPost, "/api/overwatch/event", validEventBody(), true)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %v", resp.StatusCode, body)
	}
	data, ok := body["data"].(map[string]interface{})
	if !ok {
		t.Fatalf("no data in response: %v", body)
	}
	if data["id"] == nil {
		t.Error("201 response must carry the persisted id")
	}
}

func TestCreateEventValidationFailure(t *testing.T) {
	env := newTestEnv(t)

	bad := strings.Replace(validEventBody(), `"entity": "node"`, `"entity": "comment"`, 1)
	resp, body := env.do(t, http.MethodPost, "/api/overwatch/event", bad, true)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	errObj, ok := body["error"].(map[string]interface{})
	if !ok || errObj["code"] != "VALIDATION_ERROR" {
		t.Errorf("error = %v", body["error"])
	}
}

func TestCreateSystemData(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodPost, "/api/overwatch/system_data", validSystemDataBody("alpha_site"), true)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %v", resp.StatusCode, body)
	}
	data := body["data"].(map[string]interface{})
	if data["id"] == nil {
		t.Error("missing id")
	}
	if data["extensions_saved"].(float64) != 1 {
		t.Errorf("extensions_saved = %v", data["extensions_saved"])
	}
}

func TestAggregationEndpoints(t *testing.T) {
	env := newTestEnv(t)

	// Two snapshots for alpha, one for beta: latest mode sees one row each.
	for i := 0; i < 2; i++ {
		resp, _ := env.do(t, http.MethodPost, "/api/overwatch/system_data", validSystemDataBody("alpha_site"), true)
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("seed snapshot failed: %d", resp.StatusCode)
		}
	}
	resp, _ := env.do(t, http.MethodPost, "/api/overwatch/system_data", validSystemDataBody("beta_site"), true)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("seed snapshot failed: %d", resp.StatusCode)
	}

	resp, body := env.do(t, http.MethodGet, "/api/overwatch/sites", "", true)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("sites status = %d", resp.StatusCode)
	}
	if rows := body["data"].([]interface{}); len(rows) != 2 {
		t.Errorf("latest sites = %d rows, want 2", len(rows))
	}

	resp, body = env.do(t, http.MethodGet, "/api/overwatch/sites?history=true", "", true)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("history sites status = %d", resp.StatusCode)
	}
	if rows := body["data"].([]interface{}); len(rows) != 3 {
		t.Errorf("history sites = %d rows, want 3", len(rows))
	}

	resp, body = env.do(t, http.MethodGet, "/api/overwatch/sites?client_site=beta_site", "", true)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("filtered sites status = %d", resp.StatusCode)
	}
	if rows := body["data"].([]interface{}); len(rows) != 1 {
		t.Errorf("filtered sites = %d rows, want 1", len(rows))
	}

	resp, body = env.do(t, http.MethodGet, "/api/overwatch/summary", "", true)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("summary status = %d", resp.StatusCode)
	}
	summary := body["data"].(map[string]interface{})
	if summary["all_updates"].(float64) != 2 {
		t.Errorf("summary all_updates = %v, want 2 (latest rows only)", summary["all_updates"])
	}

	resp, body = env.do(t, http.MethodGet, "/api/overwatch/issues", "", true)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("issues status = %d", resp.StatusCode)
	}
	if rows := body["data"].([]interface{}); len(rows) != 2 {
		t.Errorf("issues = %d rows, want 2", len(rows))
	}

	// The seeded snapshots only carry errors, no warnings.
	_, body = env.do(t, http.MethodGet, "/api/overwatch/issues?kind=error", "", true)
	if rows := body["data"].([]interface{}); len(rows) != 2 {
		t.Errorf("error issues = %d rows, want 2", len(rows))
	}
	_, body = env.do(t, http.MethodGet, "/api/overwatch/issues?kind=warning", "", true)
	if rows := body["data"].([]interface{}); len(rows) != 0 {
		t.Errorf("warning issues = %d rows, want 0", len(rows))
	}

	resp, body = env.do(t, http.MethodGet, "/api/overwatch/extensions", "", true)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("extensions status = %d", resp.StatusCode)
	}
	if rows := body["data"].([]interface{}); len(rows) != 2 {
		t.Errorf("extensions = %d rows, want 2", len(rows))
	}

	// Every seeded extension has an update pending, none are security.
	_, body = env.do(t, http.MethodGet, "/api/overwatch/extensions?filter=update", "", true)
	if rows := body["data"].([]interface{}); len(rows) != 2 {
		t.Errorf("update extensions = %d rows, want 2", len(rows))
	}
	_, body = env.do(t, http.MethodGet, "/api/overwatch/extensions?filter=security", "", true)
	if rows := body["data"].([]interface{}); len(rows) != 0 {
		t.Errorf("security extensions = %d rows, want 0", len(rows))
	}
}

func TestAllowedValuesRoundTrip(t *testing.T) {
	env := newTestEnv(t)

	// comment entity rejected under the defaults
	commentEvent := strings.Replace(validEventBody(), `"entity": "node"`, `"entity": "comment"`, 1)
	resp, _ := env.do(t, http.MethodPost, "/api/overwatch/event", commentEvent, true)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 before sets change", resp.StatusCode)
	}

	payload := `{"entities":["node","user","block","error","comment"],"severities":["low","high"],"types":["insert","update","delete"]}`
	resp, _ = env.do(t, http.MethodPut, "/api/overwatch/allowed-values", payload, true)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("put allowed-values status = %d", resp.StatusCode)
	}

	resp, _ = env.do(t, http.MethodPost, "/api/overwatch/event", commentEvent, true)
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("status = %d, want 201 after sets change", resp.StatusCode)
	}

	resp, body := env.do(t, http.MethodGet, "/api/overwatch/allowed-values", "", true)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get allowed-values status = %d", resp.StatusCode)
	}
	data := body["data"].(map[string]interface{})
	if len(data["entities"].([]interface{})) != 5 {
		t.Errorf("entities = %v", data["entities"])
	}
}

func TestPutAllowedValuesRejectsEmptySets(t *testing.T) {
	env := newTestEnv(t)
	resp, _ := env.do(t, http.MethodPut, "/api/overwatch/allowed-values", `{"entities":[],"severities":["low"],"types":["insert"]}`, true)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(t, http.MethodGet, "/health/live", "", false)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("live status = %d", resp.StatusCode)
	}
	resp, _ = env.do(t, http.MethodGet, "/health/ready", "", false)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("ready status = %d", resp.StatusCode)
	}
}
