// Overwatch - Multi-Site Monitoring and Event Aggregation
// Copyright 2026 BrightPlum
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/brightplum/overwatch

// Package auth implements the monitoring platform's token grant and bearer
// authentication. Tokens are HS256 JWTs with an absolute expiry set at
// issue time; nothing in the system renews them automatically.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/brightplum/overwatch/internal/config"
)

var (
	// ErrInvalidClient is returned when the client id or secret does not
	// match the configured credentials.
	ErrInvalidClient = errors.New("auth: invalid client credentials")
	// ErrInvalidToken is returned for malformed, mis-signed, or expired
	// tokens.
	ErrInvalidToken = errors.New("auth: invalid token")
)

// Claims are the platform's token claims.
type Claims struct {
	ClientID string `json:"client_id"`
	Scope    string `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

// TokenIssuer issues and verifies access tokens.
type TokenIssuer struct {
	secret           []byte
	ttl              time.Duration
	clientID         string
	clientSecretHash string
	now              func() time.Time
}

// NewTokenIssuer builds an issuer from security configuration.
func NewTokenIssuer(cfg *config.SecurityConfig) (*TokenIssuer, error) {
	if len(cfg.TokenSecret) < 32 {
		return nil, fmt.Errorf("auth: token secret must be at least 32 characters")
	}
	return &TokenIssuer{
		secret:           []byte(cfg.TokenSecret),
		ttl:              cfg.TokenTTL,
		clientID:         cfg.ClientID,
		clientSecretHash: cfg.ClientSecretHash,
		now:              time.Now,
	}, nil
}

// Authenticate checks the presented client credentials against the
// configured client. The stored secret is a bcrypt hash; comparison cost
// is the point, not a problem.
func (i *TokenIssuer) Authenticate(clientID, clientSecret string) error {
	if clientID == "" || clientID != i.clientID {
		return ErrInvalidClient
	}
	if err := bcrypt.CompareHashAndPassword([]byte(i.clientSecretHash), []byte(clientSecret)); err != nil {
		return ErrInvalidClient
	}
	return nil
}

// Issue creates a signed token for the client. Expiry is issue time plus
// the configured TTL and never moves afterwards.
func (i *TokenIssuer) Issue(clientID, scope string) (token string, expiresIn int64, err error) {
	now := i.now()
	claims := Claims{
		ClientID: clientID,
		Scope:    scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "overwatch",
			Subject:   clientID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", 0, fmt.Errorf("sign token: %w", err)
	}
	return signed, int64(i.ttl.Seconds()), nil
}

// Verify parses and validates a bearer token, returning its claims.
func (i *TokenIssuer) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.now))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// HashClientSecret produces the bcrypt hash stored in configuration. Used
// by operator tooling, not at runtime.
func HashClientSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash client secret: %w", err)
	}
	return string(hash), nil
}
