// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memex Contributors

package provider

import (
	"sync"
	"time"

	memexerr "github.com/memex-dev/memex/pkg/errors"
	"github.com/memex-dev/memex/pkg/health"
)

// HealthMetrics is an alias for health.Metrics, the snapshot shape shared
// with the status endpoint and the doctor command.
type HealthMetrics = health.Metrics

// DefaultHealthCooldown is the duration after which an unhealthy provider
// becomes eligible for retry.
const DefaultHealthCooldown = 30 * time.Second

// HealthTracker records the outcome of embedding calls. The provider starts
// healthy; a failure marks it unhealthy until the cooldown elapses, so a
// broken endpoint is flagged without blocking recovery. Success latencies
// feed the latency figures reported alongside the failure counts.
type HealthTracker struct {
	mu           sync.RWMutex
	healthy      bool
	cooldown     time.Duration
	failedAt     time.Time
	failures     int64 // cumulative for the process
	consecutive  int64 // reset by the next success
	lastReason   string
	lastLatency  time.Duration
	totalLatency time.Duration
	successes    int64
	nowFunc      func() time.Time // for testing
}

// NewHealthTracker creates a HealthTracker that starts healthy.
// Returns an error if cooldown is zero or negative.
func NewHealthTracker(cooldown time.Duration) (*HealthTracker, error) {
	if cooldown <= 0 {
		return nil, memexerr.Errorf(memexerr.CodeConfigValidateInvalidValue,
			"health tracker cooldown must be positive, got %s", cooldown)
	}
	return &HealthTracker{
		healthy:  true,
		cooldown: cooldown,
		nowFunc:  time.Now,
	}, nil
}

// RecordSuccess marks the provider healthy and folds the call latency into
// the running figures. Non-positive latencies still count as health signals
// but are excluded from the latency average.
func (h *HealthTracker) RecordSuccess(latency time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.healthy = true
	h.consecutive = 0
	if latency > 0 {
		h.lastLatency = latency
		h.totalLatency += latency
		h.successes++
	}
}

// RecordFailure marks the provider unhealthy and remembers why, so status
// surfaces can show the reason next to the counts.
func (h *HealthTracker) RecordFailure(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.healthy = false
	h.failedAt = h.nowFunc()
	h.failures++
	h.consecutive++
	h.lastReason = failureReason(err)
}

// IsHealthy returns true if the provider is healthy or the cooldown has elapsed.
func (h *HealthTracker) IsHealthy() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.availableLocked()
}

// availableLocked reports whether calls should be attempted. The caller
// must hold at least h.mu.RLock.
func (h *HealthTracker) availableLocked() bool {
	if h.healthy {
		return true
	}
	// Allow retry after cooldown expires.
	return h.nowFunc().Sub(h.failedAt) >= h.cooldown
}

// HealthMetrics returns a point-in-time snapshot safe to serialize; it holds
// no references to tracker state.
func (h *HealthTracker) HealthMetrics() HealthMetrics {
	h.mu.RLock()
	defer h.mu.RUnlock()

	m := HealthMetrics{
		FailureCount:        h.failures,
		ConsecutiveFailures: h.consecutive,
		LastErrorReason:     h.lastReason,
		LastLatencyMS:       h.lastLatency.Milliseconds(),
		Available:           h.availableLocked(),
	}
	if h.successes > 0 {
		m.AvgLatencyMS = (h.totalLatency / time.Duration(h.successes)).Milliseconds()
	}
	if h.failures > 0 {
		t := h.failedAt
		m.LastFailureAt = &t
	}
	if !h.healthy {
		until := h.failedAt.Add(h.cooldown)
		m.CooldownUntil = &until
	}
	return m
}

// SetNowFunc overrides the time source (for testing).
func (h *HealthTracker) SetNowFunc(fn func() time.Time) {
	h.mu.Lock()
	h.nowFunc = fn
	h.mu.Unlock()
}

// failureReason renders err compactly for status output: the attached error
// code when there is one, the message otherwise.
func failureReason(err error) string {
	if err == nil {
		return "unknown"
	}
	if code := memexerr.CodeOf(err); code != "" {
		return string(code)
	}
	return err.Error()
}
