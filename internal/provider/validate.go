// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memex Contributors

package provider

import (
	"context"
	"io"
	"net/http"
	"strings"

	memexerr "github.com/memex-dev/memex/pkg/errors"
)

// ValidateKey makes a lightweight HTTP call to the endpoint's models listing
// to confirm the endpoint is reachable and, when a key is set, that the
// credential is accepted. Local endpoints pass key as an empty string.
func ValidateKey(ctx context.Context, client *http.Client, baseURL, key string) error {
	if baseURL == "" {
		return memexerr.New(memexerr.CodeProviderKeyCheckFailed,
			"validation requires a base URL")
	}

	url := strings.TrimSuffix(baseURL, "/") + "/models"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return memexerr.Errorf(memexerr.CodeProviderKeyCheckFailed,
			"building validation request: %w", err)
	}
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}

	resp, err := client.Do(req)
	if err != nil {
		return memexerr.Errorf(memexerr.CodeProviderKeyCheckFailed,
			"validating endpoint %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return memexerr.Errorf(memexerr.CodeProviderKeyInvalid,
			"invalid API key (HTTP %d)", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return memexerr.Errorf(memexerr.CodeProviderKeyCheckFailed,
			"endpoint validation failed (HTTP %d)", resp.StatusCode)
	}

	return nil
}
