// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memex Contributors

package server

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"

	memexerr "github.com/memex-dev/memex/pkg/errors"
)

const searchRateLimitRetryAfter = "1"

// RateLimitConfig configures the per-IP rate limit on the search route.
// Every search costs one upstream embedding call, so this protects the
// provider quota, not the server itself.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained search rate per IP. Zero disables limiting.
	RequestsPerSecond float64
	// Burst is the maximum burst size per IP.
	Burst int
	// MaxVisitors caps the number of unique IPs tracked concurrently.
	// Oldest entries are evicted during cleanup when the cap is exceeded.
	// Zero means the default of 10000.
	MaxVisitors int
}

// Validate checks the RateLimitConfig and applies defaults.
func (c *RateLimitConfig) Validate() error {
	if c.RequestsPerSecond > 0 && c.Burst <= 0 {
		return memexerr.Errorf(memexerr.CodeConfigValidateInvalidValue,
			"rate limit burst must be positive when rate is set (got burst=%d, rate=%g)",
			c.Burst, c.RequestsPerSecond)
	}
	if c.RequestsPerSecond < 0 {
		return memexerr.Errorf(memexerr.CodeConfigValidateInvalidValue,
			"rate limit requests per second must not be negative (got %g)",
			c.RequestsPerSecond)
	}
	if c.MaxVisitors < 0 {
		return memexerr.Errorf(memexerr.CodeConfigValidateInvalidValue,
			"rate limit max visitors must not be negative (got %d)",
			c.MaxVisitors)
	}
	if c.MaxVisitors == 0 {
		c.MaxVisitors = 10000
	}
	return nil
}

type visitorEntry struct {
	tokens     float64
	lastSeen   time.Time
	lastRefill time.Time
}

// searchRateLimiter is a token-bucket limiter keyed by client IP. A nil
// limiter allows everything.
type searchRateLimiter struct {
	cfg      RateLimitConfig
	mu       sync.Mutex
	visitors map[string]*visitorEntry
}

// newSearchRateLimiter validates cfg and starts the cleanup goroutine.
// Returns (nil, nil) when limiting is disabled. The done channel stops
// the cleanup goroutine on shutdown.
func newSearchRateLimiter(cfg RateLimitConfig, done <-chan struct{}) (*searchRateLimiter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.RequestsPerSecond <= 0 {
		return nil, nil
	}

	l := &searchRateLimiter{
		cfg:      cfg,
		visitors: make(map[string]*visitorEntry),
	}
	go l.cleanupLoop(done)
	return l, nil
}

func (l *searchRateLimiter) allow(key string) bool {
	if l == nil {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	v, ok := l.visitors[key]
	if !ok {
		v = &visitorEntry{
			tokens:     float64(l.cfg.Burst),
			lastSeen:   now,
			lastRefill: now,
		}
		l.visitors[key] = v
	}
	v.lastSeen = now

	// Token bucket: refill based on elapsed time.
	elapsed := now.Sub(v.lastRefill).Seconds()
	v.tokens += elapsed * l.cfg.RequestsPerSecond
	if v.tokens > float64(l.cfg.Burst) {
		v.tokens = float64(l.cfg.Burst)
	}
	v.lastRefill = now

	if v.tokens < 1 {
		return false
	}
	v.tokens--
	return true
}

// cleanupLoop periodically removes stale entries so the visitor map
// cannot grow without bound.
func (l *searchRateLimiter) cleanupLoop(done <-chan struct{}) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.cleanup(time.Now())
		case <-done:
			return
		}
	}
}

// cleanup drops entries idle past the stale threshold and enforces the
// MaxVisitors cap by evicting the oldest remaining entries.
func (l *searchRateLimiter) cleanup(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	const staleThreshold = 10 * time.Minute

	type entry struct {
		ip       string
		lastSeen time.Time
	}
	entries := make([]entry, 0, len(l.visitors))
	for ip, v := range l.visitors {
		if now.Sub(v.lastSeen) > staleThreshold {
			delete(l.visitors, ip)
		} else {
			entries = append(entries, entry{ip: ip, lastSeen: v.lastSeen})
		}
	}

	if l.cfg.MaxVisitors > 0 && len(entries) > l.cfg.MaxVisitors {
		slices.SortFunc(entries, func(a, b entry) int {
			if a.lastSeen.Before(b.lastSeen) {
				return -1
			}
			if a.lastSeen.After(b.lastSeen) {
				return 1
			}
			return 0
		})
		toEvict := len(entries) - l.cfg.MaxVisitors
		for i := 0; i < toEvict; i++ {
			delete(l.visitors, entries[i].ip)
		}
		slog.Warn("search rate limiter visitor cap enforced",
			"evicted", toEvict, "max_visitors", l.cfg.MaxVisitors, "remaining", len(l.visitors))
	}
}

// checkSearchLimit enforces the search rate limit for the calling client.
// Returns a ready-to-serve 429 error when the limit is exceeded.
func (s *Server) checkSearchLimit(ctx context.Context) error {
	if s.searchLimiter == nil {
		return nil
	}
	ip := clientIPFromContext(ctx)
	if ip == "" {
		ip = "unknown"
	}
	if s.searchLimiter.allow(ip) {
		return nil
	}
	slog.Warn("search rate limit exceeded", "ip", ip)
	err429 := huma.NewError(http.StatusTooManyRequests, "search rate limit exceeded")
	return huma.ErrorWithHeaders(err429, http.Header{"Retry-After": []string{searchRateLimitRetryAfter}})
}

type clientIPContextKey struct{}

// clientIPContextMiddleware stores the client IP in the request context
// so huma handlers, which never see *http.Request, can key rate limits.
func clientIPContextMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIPFromRemoteAddr(r.RemoteAddr)
		ctx := context.WithValue(r.Context(), clientIPContextKey{}, ip)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// clientIPFromRemoteAddr strips the port from RemoteAddr. Without this,
// clients opening multiple connections from ephemeral ports would each
// get separate rate limit buckets, bypassing the limit.
func clientIPFromRemoteAddr(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		// RemoteAddr might not have a port (e.g., in tests).
		return remoteAddr
	}
	return host
}

func clientIPFromContext(ctx context.Context) string {
	if ip, ok := ctx.Value(clientIPContextKey{}).(string); ok {
		return ip
	}
	return ""
}
