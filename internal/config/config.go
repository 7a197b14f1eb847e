// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memex Contributors

package config

import (
	"errors"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	memexerr "github.com/memex-dev/memex/pkg/errors"
	"github.com/memex-dev/memex/pkg/types"
)

// Config is the top-level Memex configuration.
type Config struct {
	Server   ServerConfig            `mapstructure:"server"`
	Provider ProviderConfig          `mapstructure:"provider"`
	Cache    CacheConfig             `mapstructure:"cache"`
	Warmup   WarmupConfig            `mapstructure:"warmup"`
	Sources  map[string]SourceConfig `mapstructure:"sources"`
	Logging  LoggingConfig           `mapstructure:"logging"`
}

// ServerConfig controls how the HTTP server listens.
type ServerConfig struct {
	Host        string   `mapstructure:"host"`
	Port        int      `mapstructure:"port"`
	CORSOrigins []string `mapstructure:"cors_origins"`

	// TrustedProxies lists CIDR ranges whose forwarded-for headers are
	// honored. Empty means the direct peer address is always used.
	TrustedProxies []string `mapstructure:"trusted_proxies"`

	// RateLimitRPS throttles the search endpoint per client IP.
	// Zero disables rate limiting.
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// ListenAddr returns the host:port address to bind.
func (s ServerConfig) ListenAddr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// ProviderConfig selects and credentials the embedding provider.
type ProviderConfig struct {
	Mode       string        `mapstructure:"mode"`
	BaseURL    string        `mapstructure:"base_url"`
	Model      string        `mapstructure:"model"`
	Dimensions int           `mapstructure:"dimensions"`
	APIKey     string        `mapstructure:"api_key"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// CacheConfig selects the embedding cache backend.
type CacheConfig struct {
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
}

// WarmupConfig bounds parallelism while computing missing embeddings.
type WarmupConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

// SourceConfig defines one named image directory.
type SourceConfig struct {
	Dir         string `mapstructure:"dir"`
	Kind        string `mapstructure:"kind"`
	Pattern     string `mapstructure:"pattern"`
	Replacement string `mapstructure:"replacement"`
	Recursive   bool   `mapstructure:"recursive"`
}

// LoggingConfig controls log verbosity and output format.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from the given path (or defaults) with
// environment variable overrides (prefix MEMEX_).
func Load(path string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)

	// Environment
	v.SetEnvPrefix("MEMEX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// File
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var parseErr viper.ConfigParseError
			if errors.As(err, &parseErr) {
				return nil, memexerr.Errorf(memexerr.CodeConfigParseInvalidFormat, "parsing config %s: %w", path, err)
			}
			return nil, memexerr.Errorf(memexerr.CodeConfigLoadReadFailure, "reading config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, memexerr.Errorf(memexerr.CodeConfigParseInvalidFormat, "unmarshalling config: %w", err)
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}

	for name, src := range cfg.Sources {
		if src.Kind == "" {
			src.Kind = string(types.SourceKindMeme)
			cfg.Sources[name] = src
		}
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, memexerr.Wrap(memexerr.Join(errs...), memexerr.CodeConfigValidateInvalidValue, "validating config")
	}

	return &cfg, nil
}

// SetDefaults registers every scalar key's default on v. Registering the
// empty-valued keys too lets MEMEX_* environment variables reach them.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8175)
	v.SetDefault("server.rate_limit_rps", 0)
	v.SetDefault("server.rate_limit_burst", 0)
	v.SetDefault("provider.mode", "api")
	v.SetDefault("provider.base_url", "")
	v.SetDefault("provider.model", "bge-m3")
	v.SetDefault("provider.dimensions", 0)
	v.SetDefault("provider.api_key", "")
	v.SetDefault("provider.timeout", "30s")
	v.SetDefault("cache.backend", "sqlite")
	v.SetDefault("cache.path", "")
	v.SetDefault("warmup.concurrency", 4)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Validate checks the configuration for logical errors. It returns all
// validation errors found rather than stopping at the first one. Source
// directory existence is not checked here; the catalog reports missing
// directories when it scans.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateServer()...)
	errs = append(errs, c.validateProvider()...)
	errs = append(errs, c.validateCache()...)
	errs = append(errs, c.validateWarmup()...)
	errs = append(errs, c.validateSources()...)
	errs = append(errs, c.validateLogging()...)

	return errs
}

func (c *Config) validateServer() []error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, memexerr.Errorf(memexerr.CodeConfigValidateInvalidValue,
			"config: server.port must be between 1 and 65535, got %d",
			c.Server.Port,
		))
	}

	if c.Server.RateLimitRPS < 0 {
		errs = append(errs, memexerr.Errorf(memexerr.CodeConfigValidateInvalidValue,
			"config: server.rate_limit_rps must not be negative, got %g",
			c.Server.RateLimitRPS,
		))
	}
	if c.Server.RateLimitBurst < 0 {
		errs = append(errs, memexerr.Errorf(memexerr.CodeConfigValidateInvalidValue,
			"config: server.rate_limit_burst must not be negative, got %d",
			c.Server.RateLimitBurst,
		))
	}
	if c.Server.RateLimitRPS > 0 && c.Server.RateLimitBurst == 0 {
		errs = append(errs, memexerr.Errorf(memexerr.CodeConfigValidateInvalidValue,
			"config: server.rate_limit_burst must be positive when server.rate_limit_rps is set",
		))
	}

	return errs
}

func (c *Config) validateProvider() []error {
	var errs []error

	validModes := map[string]bool{"api": true, "local": true}
	if !validModes[c.Provider.Mode] {
		errs = append(errs, memexerr.Errorf(memexerr.CodeConfigValidateInvalidValue,
			"config: provider.mode must be one of [api, local], got %q",
			c.Provider.Mode,
		))
	}

	if c.Provider.Model == "" {
		errs = append(errs, memexerr.Errorf(memexerr.CodeConfigValidateInvalidValue,
			"config: provider.model must not be empty"))
	}

	if c.Provider.Dimensions < 0 {
		errs = append(errs, memexerr.Errorf(memexerr.CodeConfigValidateInvalidValue,
			"config: provider.dimensions must not be negative, got %d",
			c.Provider.Dimensions,
		))
	}

	if c.Provider.Timeout <= 0 {
		errs = append(errs, memexerr.Errorf(memexerr.CodeConfigValidateInvalidValue,
			"config: provider.timeout must be greater than 0, got %s",
			c.Provider.Timeout,
		))
	}

	return errs
}

func (c *Config) validateCache() []error {
	var errs []error

	validBackends := map[string]bool{"sqlite": true, "memory": true}
	if !validBackends[c.Cache.Backend] {
		errs = append(errs, memexerr.Errorf(memexerr.CodeConfigValidateInvalidValue,
			"config: cache.backend must be one of [sqlite, memory], got %q",
			c.Cache.Backend,
		))
	}

	return errs
}

func (c *Config) validateWarmup() []error {
	var errs []error

	if c.Warmup.Concurrency <= 0 {
		errs = append(errs, memexerr.Errorf(memexerr.CodeConfigValidateInvalidValue,
			"config: warmup.concurrency must be greater than 0, got %d",
			c.Warmup.Concurrency,
		))
	}

	return errs
}

func (c *Config) validateSources() []error {
	var errs []error

	for name, src := range c.Sources {
		if src.Dir == "" {
			errs = append(errs, memexerr.Errorf(memexerr.CodeConfigValidateInvalidValue,
				"config: sources.%s.dir must not be empty", name))
		}

		if _, err := types.ParseSourceKind(src.Kind); err != nil {
			errs = append(errs, memexerr.Errorf(memexerr.CodeConfigValidateInvalidValue,
				"config: sources.%s.kind %q is not a known source kind", name, src.Kind))
		}

		if src.Pattern != "" {
			if _, err := regexp.Compile(src.Pattern); err != nil {
				errs = append(errs, memexerr.Errorf(memexerr.CodeConfigPatternInvalid,
					"config: sources.%s.pattern %q does not compile: %w", name, src.Pattern, err))
			}
		}
	}

	return errs
}

func (c *Config) validateLogging() []error {
	var errs []error

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		errs = append(errs, memexerr.Errorf(memexerr.CodeConfigValidateInvalidValue,
			"config: logging.level must be one of [debug, info, warn, error], got %q",
			c.Logging.Level,
		))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Logging.Format] {
		errs = append(errs, memexerr.Errorf(memexerr.CodeConfigValidateInvalidValue,
			"config: logging.format must be one of [text, json], got %q",
			c.Logging.Format,
		))
	}

	return errs
}

// expandPaths resolves leading ~ in the cache path and source directories
// and fills the default cache location when none is configured.
func (c *Config) expandPaths() error {
	if c.Cache.Backend == "sqlite" && c.Cache.Path == "" {
		p, err := DefaultCachePath()
		if err != nil {
			return err
		}
		c.Cache.Path = p
	}

	p, err := expandHome(c.Cache.Path)
	if err != nil {
		return err
	}
	c.Cache.Path = p

	for name, src := range c.Sources {
		dir, err := expandHome(src.Dir)
		if err != nil {
			return err
		}
		src.Dir = dir
		c.Sources[name] = src
	}

	return nil
}

// DefaultCachePath returns ~/.memex/memex.db.
func DefaultCachePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", memexerr.Errorf(memexerr.CodeConfigLoadReadFailure, "resolving home directory: %w", err)
	}
	return filepath.Join(home, ".memex", "memex.db"), nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", memexerr.Errorf(memexerr.CodeConfigLoadReadFailure, "resolving home directory: %w", err)
	}
	if path == "~" {
		return home, nil
	}
	return filepath.Join(home, path[2:]), nil
}
