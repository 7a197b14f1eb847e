// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memex Contributors

package provider_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memex-dev/memex/internal/provider"
)

func newTracker(t *testing.T, cooldown time.Duration) *provider.HealthTracker {
	t.Helper()
	h, err := provider.NewHealthTracker(cooldown)
	require.NoError(t, err)
	return h
}

func TestHealthTracker_StartsHealthy(t *testing.T) {
	h := newTracker(t, 30*time.Second)
	assert.True(t, h.IsHealthy())
}

func TestHealthTracker_InvalidCooldown(t *testing.T) {
	_, err := provider.NewHealthTracker(0)
	require.Error(t, err)

	_, err = provider.NewHealthTracker(-time.Second)
	require.Error(t, err)
}

func TestHealthTracker_FailureMakesUnhealthy(t *testing.T) {
	h := newTracker(t, 30*time.Second)
	h.RecordFailure(errors.New("connection refused"))
	assert.False(t, h.IsHealthy())
}

func TestHealthTracker_SuccessRestoresHealth(t *testing.T) {
	h := newTracker(t, 30*time.Second)
	h.RecordFailure(errors.New("connection refused"))
	assert.False(t, h.IsHealthy())

	h.RecordSuccess(12 * time.Millisecond)
	assert.True(t, h.IsHealthy())
}

func TestHealthTracker_CooldownWindow(t *testing.T) {
	cooldown := 10 * time.Second
	now := time.Now()

	tests := []struct {
		name        string
		elapsed     time.Duration
		wantHealthy bool
	}{
		{name: "inside cooldown", elapsed: 9 * time.Second, wantHealthy: false},
		{name: "at cooldown boundary", elapsed: 10 * time.Second, wantHealthy: true},
		{name: "past cooldown", elapsed: 15 * time.Second, wantHealthy: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTracker(t, cooldown)
			h.SetNowFunc(func() time.Time { return now })
			h.RecordFailure(errors.New("boom"))
			require.False(t, h.IsHealthy())

			h.SetNowFunc(func() time.Time { return now.Add(tt.elapsed) })
			assert.Equal(t, tt.wantHealthy, h.IsHealthy())
		})
	}
}

func TestHealthTracker_MidBatchFailure(t *testing.T) {
	h := newTracker(t, 30*time.Second)

	// A warm-up batch that starts well and then hits a dead endpoint must
	// leave the tracker unhealthy regardless of the earlier successes.
	h.RecordSuccess(8 * time.Millisecond)
	require.True(t, h.IsHealthy())

	h.RecordFailure(errors.New("upstream gone"))
	assert.False(t, h.IsHealthy())
}

// Run with -race; the exact-count assertion also catches lost increments.
func TestHealthTracker_ConcurrentRecordCalls(t *testing.T) {
	h := newTracker(t, 30*time.Second)

	const writers = 8
	const iterations = 50

	var wg sync.WaitGroup
	for range writers {
		wg.Add(3)
		go func() {
			defer wg.Done()
			for range iterations {
				h.RecordFailure(errors.New("flaky endpoint"))
			}
		}()
		go func() {
			defer wg.Done()
			for range iterations {
				h.RecordSuccess(time.Millisecond)
			}
		}()
		go func() {
			defer wg.Done()
			for range iterations {
				_ = h.IsHealthy()
			}
		}()
	}
	wg.Wait()

	m := h.HealthMetrics()
	assert.Equal(t, int64(writers*iterations), m.FailureCount)
	assert.LessOrEqual(t, m.ConsecutiveFailures, m.FailureCount)
}
