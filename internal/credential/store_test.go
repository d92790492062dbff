// Overwatch - Multi-Site Monitoring and Event Aggregation
// Copyright 2026 BrightPlum
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/brightplum/overwatch

package credential

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/brightplum/overwatch/internal/config"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreRoundTrip(t *testing.T) {
	store := openTestStore(t)

	if _, err := store.Current(); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected on empty store, got: %v", err)
	}

	want := &Token{
		AccessToken: "abc123",
		ExpiresAt:   time.Now().Add(14 * 24 * time.Hour).Unix(),
	}
	if err := store.Save(want); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := store.Current()
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if got.AccessToken != want.AccessToken || got.ExpiresAt != want.ExpiresAt {
		t.Errorf("got %+v, want %+v", got, want)
	}

	if err := store.Delete(); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Current(); !errors.Is(err, ErrNotConnected) {
		t.Errorf("expected ErrNotConnected after delete, got: %v", err)
	}
}

func TestTokenRemainingDays(t *testing.T) {
	now := time.Unix(1756400000, 0)

	tests := []struct {
		name      string
		expiresAt int64
		wantDays  int
		expired   bool
	}{
		{"two weeks out", now.Unix() + 14*86400, 14, false},
		{"under a day", now.Unix() + 3600, 0, false},
		{"exactly now", now.Unix(), 0, true},
		{"expired yesterday", now.Unix() - 90000, -1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token := &Token{AccessToken: "x", ExpiresAt: tt.expiresAt}
			if got := token.RemainingDays(now); got != tt.wantDays {
				t.Errorf("RemainingDays = %d, want %d", got, tt.wantDays)
			}
			if got := token.Expired(now); got != tt.expired {
				t.Errorf("Expired = %v, want %v", got, tt.expired)
			}
		})
	}
}

func TestStoreStatus(t *testing.T) {
	store := openTestStore(t)
	now := time.Now()

	status := store.Status(now)
	if status.Connected {
		t.Error("empty store should report disconnected")
	}

	if err := store.Save(&Token{AccessToken: "x", ExpiresAt: now.Unix() + 7*86400}); err != nil {
		t.Fatalf("save: %v", err)
	}
	status = store.Status(now)
	if !status.Connected || status.Expired {
		t.Errorf("expected connected status, got %+v", status)
	}
	if status.RemainingDays != 7 {
		t.Errorf("RemainingDays = %d, want 7", status.RemainingDays)
	}

	if err := store.Save(&Token{AccessToken: "x", ExpiresAt: now.Unix() - 10}); err != nil {
		t.Fatalf("save: %v", err)
	}
	status = store.Status(now)
	if status.Connected || !status.Expired {
		t.Errorf("expected expired status, got %+v", status)
	}
}

func TestStatusString(t *testing.T) {
	expiry := time.Date(2026, 9, 12, 6, 0, 0, 0, time.UTC).Unix()
	stamp := time.Unix(expiry, 0).Format(time.RFC3339)

	tests := []struct {
		name   string
		status Status
		want   string
	}{
		{"disconnected", Status{}, "Not connected: no stored access token"},
		// Expired wins over disconnected: an expired token also reports
		// Connected false, but the operator needs the expiry, not "no token".
		{"expired", Status{Expired: true, ExpiresAt: expiry, RemainingDays: -1},
			"Token expired at " + stamp + ", run -connect to obtain a new one"},
		{"connected", Status{Connected: true, ExpiresAt: expiry, RemainingDays: 14},
			"Connected, token expires " + stamp + " (14 days remaining)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.status.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConnectorConnect(t *testing.T) {
	var gotGrant, gotClientID string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/oauth/token" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		gotGrant = r.PostFormValue("grant_type")
		gotClientID = r.PostFormValue("client_id")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"issued-token","token_type":"Bearer","expires_in":1209600}`))
	}))
	defer server.Close()

	store := openTestStore(t)
	connector := NewConnector(&config.RemoteConfig{
		URL:          server.URL,
		Timeout:      5 * time.Second,
		ClientID:     "agent-1",
		ClientSecret: "s3cret",
		Username:     "operator",
		Password:     "hunter2",
		Scope:        "overwatch",
	}, store)

	token, err := connector.Connect(context.Background())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if gotGrant != "client_credentials" {
		t.Errorf("grant_type = %q, want client_credentials", gotGrant)
	}
	if gotClientID != "agent-1" {
		t.Errorf("client_id = %q", gotClientID)
	}
	if token.AccessToken != "issued-token" {
		t.Errorf("access token = %q", token.AccessToken)
	}
	if token.RemainingDays(time.Now()) != 13 {
		t.Errorf("RemainingDays = %d, want 13", token.RemainingDays(time.Now()))
	}

	stored, err := store.Current()
	if err != nil {
		t.Fatalf("current after connect: %v", err)
	}
	if stored.AccessToken != "issued-token" {
		t.Errorf("stored token = %q", stored.AccessToken)
	}
}

func TestConnectorConnectRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_client"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	store := openTestStore(t)
	connector := NewConnector(&config.RemoteConfig{URL: server.URL, Timeout: 5 * time.Second}, store)

	if _, err := connector.Connect(context.Background()); err == nil {
		t.Fatal("expected error on rejected credentials")
	}
	if _, err := store.Current(); !errors.Is(err, ErrNotConnected) {
		t.Errorf("store should remain empty after rejection, got: %v", err)
	}
}
