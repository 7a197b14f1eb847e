// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memex Contributors

package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	memexerr "github.com/memex-dev/memex/pkg/errors"
)

func TestRateLimitConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     RateLimitConfig
		wantErr bool
	}{
		{"disabled", RateLimitConfig{}, false},
		{"valid", RateLimitConfig{RequestsPerSecond: 5, Burst: 10}, false},
		{"rate without burst", RateLimitConfig{RequestsPerSecond: 5}, true},
		{"negative rate", RateLimitConfig{RequestsPerSecond: -1, Burst: 1}, true},
		{"negative max visitors", RateLimitConfig{MaxVisitors: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, memexerr.HasCode(err, memexerr.CodeConfigValidateInvalidValue))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestRateLimitConfig_Validate_DefaultsMaxVisitors(t *testing.T) {
	cfg := RateLimitConfig{RequestsPerSecond: 5, Burst: 10}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 10000, cfg.MaxVisitors)
}

func TestNewSearchRateLimiter_DisabledReturnsNil(t *testing.T) {
	done := make(chan struct{})
	defer close(done)

	l, err := newSearchRateLimiter(RateLimitConfig{}, done)
	require.NoError(t, err)
	assert.Nil(t, l)

	// A nil limiter allows everything.
	assert.True(t, l.allow("1.2.3.4"))
}

func TestSearchRateLimiter_BurstThenDeny(t *testing.T) {
	done := make(chan struct{})
	defer close(done)

	l, err := newSearchRateLimiter(RateLimitConfig{RequestsPerSecond: 1, Burst: 3}, done)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		assert.True(t, l.allow("1.2.3.4"), "request %d within burst", i+1)
	}
	assert.False(t, l.allow("1.2.3.4"), "burst exhausted")
}

func TestSearchRateLimiter_PerIPBuckets(t *testing.T) {
	done := make(chan struct{})
	defer close(done)

	l, err := newSearchRateLimiter(RateLimitConfig{RequestsPerSecond: 1, Burst: 1}, done)
	require.NoError(t, err)

	assert.True(t, l.allow("1.2.3.4"))
	assert.False(t, l.allow("1.2.3.4"))
	assert.True(t, l.allow("5.6.7.8"), "a different IP has its own bucket")
}

func TestSearchRateLimiter_Refill(t *testing.T) {
	done := make(chan struct{})
	defer close(done)

	l, err := newSearchRateLimiter(RateLimitConfig{RequestsPerSecond: 100, Burst: 1}, done)
	require.NoError(t, err)

	assert.True(t, l.allow("1.2.3.4"))
	assert.False(t, l.allow("1.2.3.4"))

	time.Sleep(20 * time.Millisecond)
	assert.True(t, l.allow("1.2.3.4"), "bucket refills at the configured rate")
}

func TestSearchRateLimiter_CleanupDropsStale(t *testing.T) {
	done := make(chan struct{})
	defer close(done)

	l, err := newSearchRateLimiter(RateLimitConfig{RequestsPerSecond: 1, Burst: 1}, done)
	require.NoError(t, err)

	l.allow("1.2.3.4")
	l.allow("5.6.7.8")

	l.mu.Lock()
	l.visitors["1.2.3.4"].lastSeen = time.Now().Add(-time.Hour)
	l.mu.Unlock()

	l.cleanup(time.Now())

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.NotContains(t, l.visitors, "1.2.3.4")
	assert.Contains(t, l.visitors, "5.6.7.8")
}

func TestSearchRateLimiter_CleanupEnforcesCap(t *testing.T) {
	done := make(chan struct{})
	defer close(done)

	l, err := newSearchRateLimiter(RateLimitConfig{RequestsPerSecond: 1, Burst: 1, MaxVisitors: 2}, done)
	require.NoError(t, err)

	now := time.Now()
	l.allow("1.1.1.1")
	l.allow("2.2.2.2")
	l.allow("3.3.3.3")

	// Make eviction order deterministic: 1.1.1.1 is the oldest.
	l.mu.Lock()
	l.visitors["1.1.1.1"].lastSeen = now.Add(-3 * time.Minute)
	l.visitors["2.2.2.2"].lastSeen = now.Add(-2 * time.Minute)
	l.visitors["3.3.3.3"].lastSeen = now.Add(-time.Minute)
	l.mu.Unlock()

	l.cleanup(now)

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.Len(t, l.visitors, 2)
	assert.NotContains(t, l.visitors, "1.1.1.1")
}

func TestClientIPFromRemoteAddr(t *testing.T) {
	assert.Equal(t, "1.2.3.4", clientIPFromRemoteAddr("1.2.3.4:5678"))
	assert.Equal(t, "2001:db8::1", clientIPFromRemoteAddr("[2001:db8::1]:443"))
	assert.Equal(t, "no-port-here", clientIPFromRemoteAddr("no-port-here"))
}
