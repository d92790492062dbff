// Overwatch - Multi-Site Monitoring and Event Aggregation
// Copyright 2026 BrightPlum
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/brightplum/overwatch

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/brightplum/overwatch/internal/auth"
	"github.com/brightplum/overwatch/internal/config"
	"github.com/brightplum/overwatch/internal/middleware"
)

// NewRouter wires the platform's routes. Ingestion and aggregation sit
// behind bearer auth; the token grant and health checks do not.
func NewRouter(handler *Handler, issuer *auth.TokenIssuer, security *config.SecurityConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   security.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(middleware.Prometheus)

	// Token grant: tight rate limit, brute force is the threat model here.
	r.With(httprate.LimitByIP(10, security.RateLimitWindow)).
		Post("/oauth/token", handler.Token)

	r.Route("/api/overwatch", func(r chi.Router) {
		r.Use(httprate.LimitByIP(security.RateLimitReqs, security.RateLimitWindow))
		r.Use(issuer.RequireBearer)

		// Ingestion (agents)
		r.Post("/event", handler.CreateEvent)
		r.Post("/system_data", handler.CreateSystemData)

		// Aggregation (dashboard)
		r.Get("/sites", handler.Sites)
		r.Get("/issues", handler.Issues)
		r.Get("/extensions", handler.Extensions)
		r.Get("/summary", handler.Summary)

		// Runtime ingest configuration
		r.Get("/allowed-values", handler.GetAllowedValues)
		r.Put("/allowed-values", handler.PutAllowedValues)
	})

	r.Route("/health", func(r chi.Router) {
		r.Use(httprate.LimitByIP(1000, security.RateLimitWindow))
		r.Get("/live", handler.HealthLive)
		r.Get("/ready", handler.HealthReady)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
