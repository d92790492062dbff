// Overwatch - Multi-Site Monitoring and Event Aggregation
// Copyright 2026 BrightPlum
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/brightplum/overwatch

package credential

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/brightplum/overwatch/internal/config"
	"github.com/brightplum/overwatch/internal/logging"
)

// tokenResponse is the monitoring platform's /oauth/token reply.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Connector performs the explicit connect action: it exchanges the
// operator-supplied client credentials for an access token and stores it.
type Connector struct {
	cfg    *config.RemoteConfig
	store  *Store
	client *http.Client
}

// NewConnector builds a Connector against the configured remote platform.
func NewConnector(cfg *config.RemoteConfig, store *Store) *Connector {
	return &Connector{
		cfg:   cfg,
		store: store,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Connect requests a token from <remote>/oauth/token with the
// client_credentials grant and persists it. This only ever runs from the
// operator's connect action; nothing in the delivery path calls it.
func (c *Connector) Connect(ctx context.Context) (*Token, error) {
	if c.cfg.URL == "" {
		return nil, fmt.Errorf("remote.url is not configured")
	}

	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {c.cfg.ClientID},
		"client_secret": {c.cfg.ClientSecret},
		"username":      {c.cfg.Username},
		"password":      {c.cfg.Password},
		"scope":         {c.cfg.Scope},
	}

	endpoint := strings.TrimRight(c.cfg.URL, "/") + "/oauth/token"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request token: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token endpoint returned %d", resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return nil, fmt.Errorf("token endpoint returned no access token")
	}

	token := &Token{
		AccessToken: tr.AccessToken,
		ExpiresAt:   time.Now().Unix() + tr.ExpiresIn,
	}
	if err := c.store.Save(token); err != nil {
		return nil, err
	}

	logging.Info().
		Int("remaining_days", token.RemainingDays(time.Now())).
		Msg("Connected to monitoring platform")

	return token, nil
}
