// Overwatch - Multi-Site Monitoring and Event Aggregation
// Copyright 2026 BrightPlum
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/brightplum/overwatch

// Package delivery drains the durable queue and pushes items to the
// monitoring platform. Retry policy lives entirely in the queue: the
// worker acks consumed items and nacks failures, and JetStream redelivers
// whatever was nacked.
package delivery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/brightplum/overwatch/internal/config"
	"github.com/brightplum/overwatch/internal/credential"
	"github.com/brightplum/overwatch/internal/logging"
	"github.com/brightplum/overwatch/internal/metrics"
)

// API paths on the monitoring platform.
const (
	eventPath      = "/api/overwatch/event"
	systemDataPath = "/api/overwatch/system_data"
)

// ErrNoConfirmationID marks a 201 response whose body lacked the persisted
// record ID. The platform accepted the item, so it must not be redelivered,
// but the missing confirmation is worth a log line.
var ErrNoConfirmationID = errors.New("delivery: accepted without confirmation id")

// StatusError is a non-201 response from the platform. It is retryable:
// the queue item stays until a later attempt succeeds.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("delivery: platform returned %d: %s", e.StatusCode, e.Body)
}

// Client posts payloads to the platform with bearer authentication and a
// circuit breaker. The credential is read from the store on every send, so
// a reconnect takes effect without restarting the worker.
type Client struct {
	cfg     *config.RemoteConfig
	store   *credential.Store
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[int]
}

// NewClient builds a delivery client.
func NewClient(cfg *config.RemoteConfig, store *credential.Store) *Client {
	settings := gobreaker.Settings{
		Name:    "delivery",
		Timeout: 60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerState.Set(float64(to))
			logging.Warn().
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Delivery circuit breaker state changed")
		},
	}

	return &Client{
		cfg:     cfg,
		store:   store,
		http:    &http.Client{Timeout: cfg.Timeout},
		breaker: gobreaker.NewCircuitBreaker[int](settings),
	}
}

// Post sends payload to the given platform path. It returns nil only when
// the platform confirmed persistence (201 with an id), ErrNoConfirmationID
// when it accepted without one, and a retryable error otherwise.
func (c *Client) Post(ctx context.Context, path string, payload []byte) error {
	token, err := c.store.Current()
	if err != nil {
		return err
	}

	// The token is sent even when its expiry has passed. Expiry is the
	// platform's call: a stale token comes back as a 401 StatusError and the
	// item waits in the queue until an operator reconnects.
	_, err = c.breaker.Execute(func() (int, error) {
		return 0, c.post(ctx, path, payload, token.AccessToken)
	})
	return err
}

func (c *Client) post(ctx context.Context, path string, payload []byte, accessToken string) error {
	endpoint := strings.TrimRight(c.cfg.URL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build delivery request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("deliver to %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read delivery response: %w", err)
	}

	if resp.StatusCode != http.StatusCreated {
		return &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(body), 200)}
	}

	if !confirmsPersistence(body) {
		return ErrNoConfirmationID
	}
	return nil
}

// confirmsPersistence checks the 201 body carries the persisted record ID.
func confirmsPersistence(body []byte) bool {
	var reply struct {
		ID   interface{} `json:"id"`
		Data struct {
			ID interface{} `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &reply); err != nil {
		return false
	}
	return reply.ID != nil || reply.Data.ID != nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
