// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memex Contributors

package server

import (
	"log/slog"
	"net"
	"net/http"
	"strings"

	memexerr "github.com/memex-dev/memex/pkg/errors"
)

// parseTrustedProxies parses CIDR strings into net.IPNet values.
func parseTrustedProxies(cidrs []string) ([]*net.IPNet, error) {
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, cidr := range cidrs {
		cidr = strings.TrimSpace(cidr)
		if cidr == "" {
			continue
		}
		_, ipNet, err := net.ParseCIDR(cidr)
		if err != nil {
			return nil, memexerr.Errorf(memexerr.CodeConfigValidateInvalidValue,
				"invalid trusted proxy CIDR %q: %w", cidr, err)
		}
		nets = append(nets, ipNet)
	}
	if len(nets) == 0 {
		return nil, memexerr.New(memexerr.CodeConfigValidateInvalidValue,
			"trusted_proxies must contain at least one valid CIDR range")
	}
	return nets, nil
}

func isTrustedProxy(ip net.IP, trusted []*net.IPNet) bool {
	for _, n := range trusted {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// trustedProxyRealIP rewrites r.RemoteAddr from X-Forwarded-For or
// X-Real-IP only when the direct peer is in the trusted proxy list.
// Untrusted peers keep their connection address, so they cannot spoof
// another client's rate limit bucket.
func trustedProxyRealIP(trusted []*net.IPNet) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			peer, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				peer = r.RemoteAddr
			}

			ip := net.ParseIP(peer)
			if ip == nil || !isTrustedProxy(ip, trusted) {
				next.ServeHTTP(w, r)
				return
			}

			if forwarded := forwardedClientIP(r); forwarded != "" {
				r.RemoteAddr = forwarded + ":0"
			}
			next.ServeHTTP(w, r)
		})
	}
}

// forwardedClientIP extracts the original client IP from proxy headers.
// X-Forwarded-For may hold a chain "client, proxy1, proxy2"; the leftmost
// entry is the client. Returns "" when no header carries a parseable IP.
func forwardedClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		client := strings.TrimSpace(strings.Split(xff, ",")[0])
		if net.ParseIP(client) != nil {
			return client
		}
		slog.Warn("invalid IP in X-Forwarded-For, using connection address", "xff", client)
		return ""
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		if net.ParseIP(xri) != nil {
			return xri
		}
	}
	return ""
}
