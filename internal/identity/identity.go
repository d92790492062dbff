// Overwatch - Multi-Site Monitoring and Event Aggregation
// Copyright 2026 BrightPlum
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/brightplum/overwatch

// Package identity derives canonical tenant machine names from human site
// names. The derivation runs on both the producer and aggregation sides, so
// it must stay deterministic: records from the same tenant correlate only
// through this value.
package identity

import "strings"

// maxMachineNameLen bounds the derived machine name to the storage column
// width used by the receiving side.
const maxMachineNameLen = 32

// MachineName derives the canonical machine name for a tenant display name:
// lowercase, spaces replaced with underscores, truncated to 32 bytes.
// The function is idempotent: MachineName(MachineName(s)) == MachineName(s).
func MachineName(siteName string) string {
	name := strings.ToLower(strings.ReplaceAll(siteName, " ", "_"))
	if len(name) > maxMachineNameLen {
		name = name[:maxMachineNameLen]
	}
	return name
}
