// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memex Contributors

package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memex-dev/memex/internal/config"
	memexerr "github.com/memex-dev/memex/pkg/errors"
)

func TestLoad_DefaultValues(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 8175, cfg.Server.Port)
	assert.Equal(t, "api", cfg.Provider.Mode)
	assert.Equal(t, "bge-m3", cfg.Provider.Model)
	assert.Equal(t, 30*time.Second, cfg.Provider.Timeout)
	assert.Equal(t, "sqlite", cfg.Cache.Backend)
	assert.Equal(t, 4, cfg.Warmup.Concurrency)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "memex.yaml")

	content := `
server:
  host: "0.0.0.0"
  port: 9999
provider:
  mode: local
  model: bge-small-zh-v1.5
  timeout: 5s
sources:
  classic:
    dir: /srv/memes/classic
    pattern: "^[0-9]+-"
    replacement: ""
  stickers:
    dir: /srv/stickers
    kind: sticker
    recursive: true
`
	err := os.WriteFile(cfgPath, []byte(content), 0o644)
	require.NoError(t, err)

	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "local", cfg.Provider.Mode)
	assert.Equal(t, "bge-small-zh-v1.5", cfg.Provider.Model)
	assert.Equal(t, 5*time.Second, cfg.Provider.Timeout)

	require.Len(t, cfg.Sources, 2)
	classic := cfg.Sources["classic"]
	assert.Equal(t, "/srv/memes/classic", classic.Dir)
	assert.Equal(t, "meme", classic.Kind, "kind defaults to meme when omitted")
	assert.False(t, classic.Recursive)
	stickers := cfg.Sources["stickers"]
	assert.Equal(t, "sticker", stickers.Kind)
	assert.True(t, stickers.Recursive)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("MEMEX_PROVIDER_MODEL", "custom-embedder")
	t.Setenv("MEMEX_PROVIDER_API_KEY", "sk-from-env")
	t.Setenv("MEMEX_SERVER_PORT", "9090")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "custom-embedder", cfg.Provider.Model)
	assert.Equal(t, "sk-from-env", cfg.Provider.APIKey)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestLoad_ExpandsHomePaths(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "memex.yaml")
	content := `
sources:
  memes:
    dir: ~/memes
`
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0o644))

	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "memes"), cfg.Sources["memes"].Dir)
	assert.Equal(t, filepath.Join(home, ".memex", "memex.db"), cfg.Cache.Path,
		"sqlite backend gets the default cache path when none is set")
}

func TestLoad_MemoryBackendNeedsNoPath(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "memex.yaml")
	content := `
cache:
  backend: memory
`
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0o644))

	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Empty(t, cfg.Cache.Path)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, memexerr.HasCode(err, memexerr.CodeConfigLoadReadFailure),
		"expected CodeConfigLoadReadFailure, got %s", memexerr.CodeOf(err))
}

func TestLoad_MalformedYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "memex.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("server: [not: closed"), 0o644))

	_, err := config.Load(cfgPath)
	require.Error(t, err)
	assert.True(t, memexerr.HasCode(err, memexerr.CodeConfigParseInvalidFormat),
		"expected CodeConfigParseInvalidFormat, got %s", memexerr.CodeOf(err))
}

func TestLoad_ValidationCalledAtLoadTime(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "memex.yaml")

	content := `
provider:
  mode: "cloud"
`
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0o644))

	_, err := config.Load(cfgPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider.mode")
}

func TestLoad_InvalidPatternSurfacesPatternCode(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "memex.yaml")

	content := `
sources:
  broken:
    dir: /srv/memes
    pattern: "("
`
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0o644))

	_, err := config.Load(cfgPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sources.broken.pattern")
	assert.True(t, memexerr.HasCode(err, memexerr.CodeConfigPatternInvalid),
		"expected CodeConfigPatternInvalid, got %s", memexerr.CodeOf(err))
}

// validConfig returns a minimal config that passes all validation.
func validConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host: "127.0.0.1",
			Port: 8175,
		},
		Provider: config.ProviderConfig{
			Mode:    "api",
			Model:   "bge-m3",
			Timeout: 30 * time.Second,
		},
		Cache: config.CacheConfig{
			Backend: "sqlite",
			Path:    "/tmp/memex.db",
		},
		Warmup: config.WarmupConfig{
			Concurrency: 4,
		},
		Sources: map[string]config.SourceConfig{
			"memes": {Dir: "/srv/memes", Kind: "meme", Pattern: "[-_]", Replacement: " "},
		},
		Logging: config.LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	cfg := validConfig()
	errs := cfg.Validate()
	assert.Empty(t, errs, "valid config should produce no validation errors")
}

func TestValidate_ServerPort(t *testing.T) {
	tests := []struct {
		name    string
		port    int
		wantErr bool
	}{
		{"valid port", 8175, false},
		{"minimum port", 1, false},
		{"maximum port", 65535, false},
		{"zero port", 0, true},
		{"negative port", -1, true},
		{"port too high", 70000, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Server.Port = tt.port
			errs := cfg.Validate()
			if tt.wantErr {
				require.NotEmpty(t, errs)
				assert.Contains(t, errs[0].Error(), "server.port")
			} else {
				for _, err := range errs {
					assert.NotContains(t, err.Error(), "server.port")
				}
			}
		})
	}
}

func TestValidate_RateLimit(t *testing.T) {
	tests := []struct {
		name    string
		rps     float64
		burst   int
		wantErr string
	}{
		{"disabled - zero rps and burst", 0, 0, ""},
		{"valid rate limit", 10.0, 20, ""},
		{"valid fractional rps", 0.5, 5, ""},
		{"negative rps", -5.0, 10, "rate_limit_rps must not be negative"},
		{"rps set but burst zero", 10.0, 0, "rate_limit_burst must be positive"},
		{"negative burst", 0, -5, "rate_limit_burst must not be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Server.RateLimitRPS = tt.rps
			cfg.Server.RateLimitBurst = tt.burst
			errs := cfg.Validate()
			if tt.wantErr != "" {
				require.NotEmpty(t, errs)
				found := false
				for _, err := range errs {
					if strings.Contains(err.Error(), tt.wantErr) {
						found = true
						break
					}
				}
				assert.True(t, found, "expected error containing %q, got: %v", tt.wantErr, errs)
			} else {
				for _, err := range errs {
					assert.NotContains(t, err.Error(), "rate_limit")
				}
			}
		})
	}
}

func TestValidate_ProviderMode(t *testing.T) {
	tests := []struct {
		name    string
		mode    string
		wantErr bool
	}{
		{"valid api", "api", false},
		{"valid local", "local", false},
		{"invalid mode", "cloud", true},
		{"empty mode", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Provider.Mode = tt.mode
			errs := cfg.Validate()
			if tt.wantErr {
				require.NotEmpty(t, errs)
				assert.Contains(t, errs[0].Error(), "provider.mode")
			} else {
				for _, err := range errs {
					assert.NotContains(t, err.Error(), "provider.mode")
				}
			}
		})
	}
}

func TestValidate_ProviderModel(t *testing.T) {
	cfg := validConfig()
	cfg.Provider.Model = ""
	errs := cfg.Validate()
	require.NotEmpty(t, errs)
	assert.Contains(t, errs[0].Error(), "provider.model")
}

func TestValidate_ProviderTimeout(t *testing.T) {
	tests := []struct {
		name    string
		timeout time.Duration
		wantErr bool
	}{
		{"valid timeout", 30 * time.Second, false},
		{"short timeout", time.Millisecond, false},
		{"zero timeout", 0, true},
		{"negative timeout", -time.Second, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Provider.Timeout = tt.timeout
			errs := cfg.Validate()
			if tt.wantErr {
				require.NotEmpty(t, errs)
				assert.Contains(t, errs[0].Error(), "provider.timeout")
			} else {
				for _, err := range errs {
					assert.NotContains(t, err.Error(), "provider.timeout")
				}
			}
		})
	}
}

func TestValidate_ProviderDimensions(t *testing.T) {
	cfg := validConfig()
	cfg.Provider.Dimensions = -1
	errs := cfg.Validate()
	require.NotEmpty(t, errs)
	assert.Contains(t, errs[0].Error(), "provider.dimensions")

	cfg = validConfig()
	cfg.Provider.Dimensions = 1024
	assert.Empty(t, cfg.Validate())
}

func TestValidate_CacheBackend(t *testing.T) {
	tests := []struct {
		name    string
		backend string
		wantErr bool
	}{
		{"valid sqlite", "sqlite", false},
		{"valid memory", "memory", false},
		{"invalid backend", "postgres", true},
		{"empty backend", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Cache.Backend = tt.backend
			errs := cfg.Validate()
			if tt.wantErr {
				require.NotEmpty(t, errs)
				assert.Contains(t, errs[0].Error(), "cache.backend")
			} else {
				for _, err := range errs {
					assert.NotContains(t, err.Error(), "cache.backend")
				}
			}
		})
	}
}

func TestValidate_WarmupConcurrency(t *testing.T) {
	tests := []struct {
		name        string
		concurrency int
		wantErr     bool
	}{
		{"valid concurrency", 4, false},
		{"minimum concurrency", 1, false},
		{"zero concurrency", 0, true},
		{"negative concurrency", -2, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Warmup.Concurrency = tt.concurrency
			errs := cfg.Validate()
			if tt.wantErr {
				require.NotEmpty(t, errs)
				assert.Contains(t, errs[0].Error(), "warmup.concurrency")
			} else {
				for _, err := range errs {
					assert.NotContains(t, err.Error(), "warmup.concurrency")
				}
			}
		})
	}
}

func TestValidate_Sources(t *testing.T) {
	t.Run("empty dir", func(t *testing.T) {
		cfg := validConfig()
		cfg.Sources["memes"] = config.SourceConfig{Dir: "", Kind: "meme"}
		errs := cfg.Validate()
		require.NotEmpty(t, errs)
		found := false
		for _, err := range errs {
			if strings.Contains(err.Error(), "sources.memes.dir") {
				found = true
			}
		}
		assert.True(t, found, "expected error about sources.memes.dir, got: %v", errs)
	})

	t.Run("unknown kind", func(t *testing.T) {
		cfg := validConfig()
		cfg.Sources["memes"] = config.SourceConfig{Dir: "/srv/memes", Kind: "poster"}
		errs := cfg.Validate()
		require.NotEmpty(t, errs)
		assert.Contains(t, errs[0].Error(), "sources.memes.kind")
	})

	t.Run("kind is case-insensitive", func(t *testing.T) {
		cfg := validConfig()
		cfg.Sources["memes"] = config.SourceConfig{Dir: "/srv/memes", Kind: "MEME"}
		assert.Empty(t, cfg.Validate())
	})

	t.Run("bad pattern", func(t *testing.T) {
		cfg := validConfig()
		cfg.Sources["memes"] = config.SourceConfig{Dir: "/srv/memes", Kind: "meme", Pattern: "[z"}
		errs := cfg.Validate()
		require.NotEmpty(t, errs)
		assert.Contains(t, errs[0].Error(), "sources.memes.pattern")
		assert.True(t, memexerr.HasCode(errs[0], memexerr.CodeConfigPatternInvalid))
	})

	t.Run("no sources is valid", func(t *testing.T) {
		cfg := validConfig()
		cfg.Sources = nil
		assert.Empty(t, cfg.Validate())
	})
}

func TestValidate_Logging(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		format  string
		wantErr string
	}{
		{"valid", "info", "text", ""},
		{"valid json", "debug", "json", ""},
		{"invalid level", "verbose", "text", "logging.level"},
		{"invalid format", "info", "xml", "logging.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Logging.Level = tt.level
			cfg.Logging.Format = tt.format
			errs := cfg.Validate()
			if tt.wantErr != "" {
				require.NotEmpty(t, errs)
				assert.Contains(t, errs[0].Error(), tt.wantErr)
			} else {
				assert.Empty(t, errs)
			}
		})
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	cfg := &config.Config{
		Server: config.ServerConfig{
			Port:         0,
			RateLimitRPS: -1,
		},
		Provider: config.ProviderConfig{
			Mode:  "cloud",
			Model: "",
		},
		Cache: config.CacheConfig{
			Backend: "postgres",
		},
		Warmup: config.WarmupConfig{
			Concurrency: 0,
		},
		Logging: config.LoggingConfig{
			Level:  "verbose",
			Format: "xml",
		},
	}

	errs := cfg.Validate()
	// Should collect multiple errors, not stop at the first one
	assert.GreaterOrEqual(t, len(errs), 7, "expected at least 7 validation errors, got %d: %v", len(errs), errs)
}

func TestConfig_SetDefaults(t *testing.T) {
	v := viper.New()
	config.SetDefaults(v)

	assert.Equal(t, "127.0.0.1", v.GetString("server.host"))
	assert.Equal(t, 8175, v.GetInt("server.port"))
	assert.Equal(t, "api", v.GetString("provider.mode"))
	assert.Equal(t, "bge-m3", v.GetString("provider.model"))
	assert.Equal(t, "sqlite", v.GetString("cache.backend"))
	assert.Equal(t, 4, v.GetInt("warmup.concurrency"))
}

func TestServerConfig_ListenAddr(t *testing.T) {
	assert.Equal(t, "127.0.0.1:8175", config.ServerConfig{Host: "127.0.0.1", Port: 8175}.ListenAddr())
	assert.Equal(t, "[::1]:9090", config.ServerConfig{Host: "::1", Port: 9090}.ListenAddr())
	assert.Equal(t, ":8175", config.ServerConfig{Port: 8175}.ListenAddr())
}
