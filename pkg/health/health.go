// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memex Contributors

package health

import "time"

// Metrics exposes the current health state of the embedding provider for
// monitoring and operator visibility. All fields are point-in-time snapshots
// safe to serialize to JSON. FailureCount is cumulative for the process;
// ConsecutiveFailures resets on the next successful call. Latency figures
// cover successful calls only.
type Metrics struct {
	FailureCount        int64      `json:"failure_count"`
	ConsecutiveFailures int64      `json:"consecutive_failures"`
	LastErrorReason     string     `json:"last_error_reason,omitempty"`
	LastFailureAt       *time.Time `json:"last_failure_at,omitempty"`
	CooldownUntil       *time.Time `json:"cooldown_until,omitempty"`
	LastLatencyMS       int64      `json:"last_latency_ms,omitempty"`
	AvgLatencyMS        int64      `json:"avg_latency_ms,omitempty"`
	Available           bool       `json:"available"`
}
