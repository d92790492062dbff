// Overwatch - Multi-Site Monitoring and Event Aggregation
// Copyright 2026 BrightPlum
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/brightplum/overwatch

package capture

import (
	"sync/atomic"

	"github.com/rs/zerolog"
)

// LogHook feeds the agent's own error-level log entries into capture, the
// same path an application would use for its error log. Install it on the
// global logger after the recorder exists.
type LogHook struct {
	recorder *Recorder
	// capturing breaks the cycle when capture itself logs an error.
	capturing atomic.Bool
}

// NewLogHook returns a zerolog hook bound to the recorder.
func NewLogHook(recorder *Recorder) *LogHook {
	return &LogHook{recorder: recorder}
}

// Run captures error and fatal entries. Lower levels never produce events.
func (h *LogHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	if level < zerolog.ErrorLevel || level == zerolog.NoLevel {
		return
	}
	if !h.capturing.CompareAndSwap(false, true) {
		return
	}
	defer h.capturing.Store(false)
	h.recorder.ErrorLogged(map[string]interface{}{"message": msg})
}
