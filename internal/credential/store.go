// Overwatch - Multi-Site Monitoring and Event Aggregation
// Copyright 2026 BrightPlum
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/brightplum/overwatch

// Package credential manages the agent's connection credential: the access
// token obtained once by an explicit operator connect action and read on
// every delivery. Tokens are never refreshed automatically; when one
// expires the agent keeps queueing and failing deliveries until an
// operator reconnects.
package credential

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/brightplum/overwatch/internal/metrics"
)

// ErrNotConnected is returned when no credential has been stored yet, or
// the store was cleared by a disconnect.
var ErrNotConnected = errors.New("credential: not connected to a monitoring platform")

const tokenKey = "credential:token"

// Token is the stored connection credential.
type Token struct {
	AccessToken string `json:"access_token"`
	// ExpiresAt is the absolute expiry as a Unix timestamp, fixed at issue
	// time. There is no refresh.
	ExpiresAt int64 `json:"expires_at"`
}

// Expired reports whether the token's absolute expiry has passed.
func (t *Token) Expired(now time.Time) bool {
	return now.Unix() >= t.ExpiresAt
}

// RemainingDays returns the number of whole days until expiry. Zero or
// negative means the token is expired or about to expire.
func (t *Token) RemainingDays(now time.Time) int {
	return int((t.ExpiresAt - now.Unix()) / 86400)
}

// Store persists the connection credential in BadgerDB so it survives
// agent restarts.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) the credential store at path.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open credential store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save replaces the stored credential.
func (s *Store) Save(token *Token) error {
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(tokenKey), data)
	})
	if err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	metrics.CredentialDaysRemaining.Set(float64(token.RemainingDays(time.Now())))
	return nil
}

// Current returns the stored credential, or ErrNotConnected when none
// exists. Expired tokens are still returned; callers decide whether expiry
// matters for their operation.
func (s *Store) Current() (*Token, error) {
	var token Token
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(tokenKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotConnected
		}
		if err != nil {
			return fmt.Errorf("get token: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &token)
		})
	})
	if err != nil {
		return nil, err
	}
	return &token, nil
}

// Delete removes the stored credential, returning the agent to the
// disconnected state.
func (s *Store) Delete() error {
	return s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte(tokenKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
}

// Status describes the connection state for operator display.
type Status struct {
	Connected     bool  `json:"connected"`
	Expired       bool  `json:"expired"`
	ExpiresAt     int64 `json:"expires_at,omitempty"`
	RemainingDays int   `json:"remaining_days"`
}

// String renders the status for operator display.
func (s Status) String() string {
	switch {
	case s.Expired:
		return fmt.Sprintf("Token expired at %s, run -connect to obtain a new one",
			time.Unix(s.ExpiresAt, 0).Format(time.RFC3339))
	case !s.Connected:
		return "Not connected: no stored access token"
	default:
		return fmt.Sprintf("Connected, token expires %s (%d days remaining)",
			time.Unix(s.ExpiresAt, 0).Format(time.RFC3339), s.RemainingDays)
	}
}

// Status reports the current connection state. A missing or expired token
// reports as disconnected for delivery purposes.
func (s *Store) Status(now time.Time) Status {
	token, err := s.Current()
	if err != nil {
		return Status{}
	}
	return Status{
		Connected:     !token.Expired(now),
		Expired:       token.Expired(now),
		ExpiresAt:     token.ExpiresAt,
		RemainingDays: token.RemainingDays(now),
	}
}
