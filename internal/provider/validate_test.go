// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memex Contributors

package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	memexerr "github.com/memex-dev/memex/pkg/errors"
)

func TestValidateKey_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models", r.URL.Path)
		assert.Equal(t, "Bearer test-api-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": []any{}})
	}))
	defer srv.Close()

	err := ValidateKey(context.Background(), srv.Client(), srv.URL, "test-api-key")
	require.NoError(t, err)
}

func TestValidateKey_NoKeyOmitsAuthorization(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": []any{}})
	}))
	defer srv.Close()

	err := ValidateKey(context.Background(), srv.Client(), srv.URL, "")
	require.NoError(t, err)
}

func TestValidateKey_TrailingSlashBaseURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/models", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := ValidateKey(context.Background(), srv.Client(), srv.URL+"/v1/", "key")
	require.NoError(t, err)
}

func TestValidateKey_StatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		wantCode   memexerr.Code
	}{
		{
			name:       "401 means bad key",
			statusCode: http.StatusUnauthorized,
			wantCode:   memexerr.CodeProviderKeyInvalid,
		},
		{
			name:       "403 means bad key",
			statusCode: http.StatusForbidden,
			wantCode:   memexerr.CodeProviderKeyInvalid,
		},
		{
			name:       "500 means check failed",
			statusCode: http.StatusInternalServerError,
			wantCode:   memexerr.CodeProviderKeyCheckFailed,
		},
		{
			name:       "404 means check failed",
			statusCode: http.StatusNotFound,
			wantCode:   memexerr.CodeProviderKeyCheckFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.statusCode)
			}))
			defer srv.Close()

			err := ValidateKey(context.Background(), srv.Client(), srv.URL, "bad-key")
			require.Error(t, err)
			assert.True(t, memexerr.HasCode(err, tt.wantCode),
				"expected %s, got %s", tt.wantCode, memexerr.CodeOf(err))
		})
	}
}

func TestValidateKey_MissingBaseURL(t *testing.T) {
	err := ValidateKey(context.Background(), http.DefaultClient, "", "key")
	require.Error(t, err)
	assert.True(t, memexerr.HasCode(err, memexerr.CodeProviderKeyCheckFailed))
}

func TestValidateKey_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	err := ValidateKey(context.Background(), http.DefaultClient, url, "key")
	require.Error(t, err)
	assert.True(t, memexerr.HasCode(err, memexerr.CodeProviderKeyCheckFailed))
}
