// Overwatch - Multi-Site Monitoring and Event Aggregation
// Copyright 2026 BrightPlum
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/brightplum/overwatch

package validation

import (
	"sync"

	"github.com/brightplum/overwatch/internal/config"
)

// AllowedValues holds the receiving system's currently configured sets of
// allowed enumerated values for events. The sets are external mutable
// configuration: an admin can replace them at runtime, so validation
// results for the same payload can change over time without a code change.
type AllowedValues struct {
	mu         sync.RWMutex
	entities   map[string]struct{}
	severities map[string]struct{}
	types      map[string]struct{}
}

// NewAllowedValues seeds the live sets from ingest configuration.
func NewAllowedValues(cfg *config.IngestConfig) *AllowedValues {
	a := &AllowedValues{}
	a.Replace(cfg.AllowedEntities, cfg.AllowedSeverities, cfg.AllowedTypes)
	return a
}

// Replace swaps in new allowed value sets. Requests validated after Replace
// returns see the new sets.
func (a *AllowedValues) Replace(entities, severities, types []string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entities = toSet(entities)
	a.severities = toSet(severities)
	a.types = toSet(types)
}

// EntityAllowed reports whether the entity kind is currently accepted.
func (a *AllowedValues) EntityAllowed(v string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.entities[v]
	return ok
}

// SeverityAllowed reports whether the severity is currently accepted.
func (a *AllowedValues) SeverityAllowed(v string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.severities[v]
	return ok
}

// TypeAllowed reports whether the action type is currently accepted.
func (a *AllowedValues) TypeAllowed(v string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.types[v]
	return ok
}

// Snapshot returns copies of the current sets, for the admin read endpoint.
func (a *AllowedValues) Snapshot() (entities, severities, types []string) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return keys(a.entities), keys(a.severities), keys(a.types)
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

func keys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}
